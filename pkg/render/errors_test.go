package render

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		terminal bool
		timeout  bool
	}{
		{name: "nil", err: nil},
		{name: "target closed sentinel", err: ErrTargetClosed, terminal: true},
		{name: "wrapped engine closed", err: fmt.Errorf("capture: %w", ErrEngineClosed), terminal: true},
		{name: "connection lost code", err: NewError("click", "connection_lost"), terminal: true},
		{name: "deadline", err: WrapError("capture", "io", context.DeadlineExceeded), timeout: true},
		{name: "timeout code", err: NewError("capture", "timeout"), timeout: true},
		{name: "surface closed is neither", err: ErrSurfaceClosed},
		{name: "generic", err: errors.New("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.terminal, IsTerminal(tt.err))
			assert.Equal(t, tt.timeout, IsTimeout(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := WrapError("navigate", "io", errors.New("reset"))
	assert.Equal(t, "render navigate [io]: reset", err.Error())
	assert.Equal(t, "render capture [timeout]", NewError("capture", "timeout").Error())
}

func TestParseMouseButton(t *testing.T) {
	assert.Equal(t, MouseButtonLeft, ParseMouseButton(""))
	assert.Equal(t, MouseButtonRight, ParseMouseButton("right"))
	assert.Equal(t, MouseButtonMiddle, ParseMouseButton("middle"))
	assert.Equal(t, MouseButtonLeft, ParseMouseButton("thumb"))
}
