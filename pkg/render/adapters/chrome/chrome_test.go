package chrome

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/pagestream/pkg/render"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Headless: true, Bin: "  /usr/bin/chromium  "}.withDefaults()
	assert.Equal(t, "/usr/bin/chromium", cfg.Bin)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 30*time.Second, cfg.LaunchTimeout)
	require.NoError(t, cfg.Validate())

	headful := Config{}.withDefaults()
	assert.False(t, headful.Headless)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{LaunchTimeout: -time.Second}.Validate())
	assert.Error(t, Config{Flags: []string{"--"}}.Validate())
	assert.NoError(t, Config{Flags: []string{"--disable-gpu", "lang=en-US"}}.Validate())

	_, err := NewLauncher(Config{Flags: []string{" - "}}, nil)
	assert.Error(t, err)
}

func TestValidViewport(t *testing.T) {
	assert.Equal(t, render.DefaultViewport(), validViewport(render.Viewport{}))
	vp := validViewport(render.Viewport{Width: 800, Height: 600})
	assert.Equal(t, 1.0, vp.DeviceScaleFactor)
}

func TestLookupKey(t *testing.T) {
	tests := []struct {
		name string
		want input.Key
		ok   bool
	}{
		{name: "Enter", want: input.Enter, ok: true},
		{name: "ArrowLeft", want: input.ArrowLeft, ok: true},
		{name: "escape", want: input.Escape, ok: true},
		{name: "Space", want: input.Key(' '), ok: true},
		{name: "a", want: input.Key('a'), ok: true},
		{name: "7", want: input.Key('7'), ok: true},
		{name: "é", ok: false},
		{name: "F13", ok: false},
		{name: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := lookupKey(tt.name)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     string
		terminal bool
		timeout  bool
	}{
		{name: "deadline", err: fmt.Errorf("screenshot: %w", context.DeadlineExceeded), code: "timeout", timeout: true},
		{name: "canceled", err: context.Canceled, code: "canceled"},
		{name: "eof", err: io.EOF, code: "connection_lost", terminal: true},
		{name: "cdp target", err: &cdp.Error{Code: -32000, Message: "No target with given id found"}, code: "target_closed", terminal: true},
		{name: "cdp other", err: &cdp.Error{Code: -32602, Message: "Invalid parameters"}, code: "protocol"},
		{name: "closed socket", err: errors.New("write tcp: use of closed network connection"), code: "connection_lost", terminal: true},
		{name: "target text", err: errors.New("Target closed"), code: "target_closed", terminal: true},
		{name: "navigation", err: errors.New("navigation failed: net::ERR_NAME_NOT_RESOLVED"), code: "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", tt.err)
			var renderErr *render.Error
			require.ErrorAs(t, err, &renderErr)
			assert.Equal(t, tt.code, renderErr.Code)
			assert.Equal(t, "op", renderErr.Op)
			assert.Equal(t, tt.terminal, render.IsTerminal(err))
			assert.Equal(t, tt.timeout, render.IsTimeout(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
	assert.NoError(t, classify("op", nil))
}

func TestMouseButton(t *testing.T) {
	assert.Equal(t, proto.InputMouseButtonLeft, mouseButton(render.MouseButtonLeft))
	assert.Equal(t, proto.InputMouseButtonMiddle, mouseButton(render.MouseButtonMiddle))
	assert.Equal(t, proto.InputMouseButtonRight, mouseButton(render.MouseButtonRight))
}
