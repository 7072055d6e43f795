package chrome

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/go-rod/rod/lib/cdp"

	"github.com/odvcencio/pagestream/pkg/render"
)

var targetGoneMessages = []string{
	"target closed",
	"no target with given id",
	"session with given id not found",
	"cannot find context with specified id",
	"inspected target navigated or closed",
}

var connectionLostMessages = []string{
	"use of closed network connection",
	"connection closed",
	"connection reset",
	"broken pipe",
	"websocket: close",
}

// classify maps rod and CDP failures onto render.Error codes.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return render.WrapError(op, "timeout", err)
	case errors.Is(err, context.Canceled):
		return render.WrapError(op, "canceled", err)
	case errors.Is(err, io.EOF):
		return render.WrapError(op, "connection_lost", err)
	}

	var cdpErr *cdp.Error
	if errors.As(err, &cdpErr) {
		if containsAny(cdpErr.Message, targetGoneMessages) {
			return render.WrapError(op, "target_closed", err)
		}
		return render.WrapError(op, "protocol", err)
	}

	msg := err.Error()
	switch {
	case containsAny(msg, targetGoneMessages):
		return render.WrapError(op, "target_closed", err)
	case containsAny(msg, connectionLostMessages):
		return render.WrapError(op, "connection_lost", err)
	}
	return render.WrapError(op, "error", err)
}

func containsAny(s string, needles []string) bool {
	s = strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func isConnectionLost(err error) bool {
	var renderErr *render.Error
	return errors.As(err, &renderErr) && renderErr.Code == "connection_lost"
}
