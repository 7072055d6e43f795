package render

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnavailable    = errors.New("render engine unavailable")
	ErrEngineClosed   = errors.New("render engine closed")
	ErrSurfaceClosed  = errors.New("render surface closed")
	ErrTargetClosed   = errors.New("render target closed")
	ErrCaptureTimeout = errors.New("capture timeout")
)

// Error wraps adapter failures with the operation and a short code.
type Error struct {
	Op   string
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("render %s [%s]: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("render %s [%s]", e.Op, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error without an underlying cause.
func NewError(op, code string) *Error {
	return &Error{Op: op, Code: code}
}

// WrapError wraps err with render operation context.
func WrapError(op, code string, err error) *Error {
	return &Error{Op: op, Code: code, Err: err}
}

// IsTerminal reports whether err means the surface or its engine is gone and
// the owning session can no longer be used.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTargetClosed) || errors.Is(err, ErrEngineClosed) {
		return true
	}
	var renderErr *Error
	if errors.As(err, &renderErr) {
		return renderErr.Code == "target_closed" || renderErr.Code == "connection_lost"
	}
	return false
}

// IsTimeout reports whether err is a slow-render timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCaptureTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var renderErr *Error
	if errors.As(err, &renderErr) {
		return renderErr.Code == "timeout"
	}
	return false
}
