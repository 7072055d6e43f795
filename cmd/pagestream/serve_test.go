package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/pagestream/pkg/config"
	"github.com/odvcencio/pagestream/pkg/render"
	"github.com/odvcencio/pagestream/pkg/render/fake"
)

func TestExitCodeForError(t *testing.T) {
	assert.Equal(t, 0, exitCodeForError(nil))
	assert.Equal(t, exitFailure, exitCodeForError(errors.New("boom")))
	assert.Equal(t, exitConfigError, exitCodeForError(withExitCode(errors.New("bad"), exitConfigError)))

	wrapped := withExitCode(errors.New("bad"), exitConfigError)
	assert.Equal(t, exitConfigError, exitCodeForError(errors.Join(errors.New("context"), wrapped)))
	assert.Nil(t, withExitCode(nil, exitConfigError))
}

func TestDispatchSubcommand(t *testing.T) {
	assert.Equal(t, 0, dispatchSubcommand([]string{"version"}))
	assert.Equal(t, 0, dispatchSubcommand([]string{"--help"}))
	assert.Equal(t, exitConfigError, dispatchSubcommand([]string{"frobnicate"}))
	assert.Equal(t, exitConfigError, dispatchSubcommand(nil))
}

func TestServeConfigErrorsExitWithCode2(t *testing.T) {
	orig := serveLoadConfigFn
	t.Cleanup(func() { serveLoadConfigFn = orig })
	serveLoadConfigFn = func(string) (*config.Config, error) {
		return nil, errors.New("config validation: server.bind is required")
	}

	err := runServeCommand(nil)
	require.Error(t, err)
	assert.Equal(t, exitConfigError, exitCodeForError(err))
}

func TestServeRejectsUnknownFlag(t *testing.T) {
	err := runServeCommand([]string{"--no-such-flag"})
	require.Error(t, err)
	assert.Equal(t, exitConfigError, exitCodeForError(err))
}

func TestServeRejectsInvalidEngineFlag(t *testing.T) {
	orig := serveLoadConfigFn
	t.Cleanup(func() { serveLoadConfigFn = orig })
	serveLoadConfigFn = func(string) (*config.Config, error) { return config.DefaultConfig(), nil }

	err := runServeCommand([]string{"--engine", "netscape"})
	require.Error(t, err)
	assert.Equal(t, exitConfigError, exitCodeForError(err))
}

func TestNewLauncher(t *testing.T) {
	launcher, err := newLauncher(config.EngineConfig{Kind: config.EngineFake}, nil)
	require.NoError(t, err)
	assert.IsType(t, &fake.Launcher{}, launcher)

	_, err = newLauncher(config.EngineConfig{Kind: "netscape"}, nil)
	require.Error(t, err)
	assert.Equal(t, exitConfigError, exitCodeForError(err))
}

func TestSessionConfigMapping(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Session.GracePeriod = 2 * time.Second
	cfg.Stream.SettleDelay = 900 * time.Millisecond
	cfg.Stream.CaptureFormat = "png"

	got := sessionConfig(cfg)
	assert.Equal(t, 2*time.Second, got.GracePeriod)
	assert.Equal(t, cfg.Session.DefaultURL, got.DefaultURL)
	assert.Equal(t, cfg.Engine.Chrome.Viewport, got.Viewport)
	assert.Equal(t, 900*time.Millisecond, got.Stream.SettleDelay)
	assert.Equal(t, render.FrameFormatPNG, got.Stream.CaptureFormat)
	assert.Equal(t, cfg.Stream.ScrollMultiplier, got.Stream.ScrollMultiplier)
}

func TestStringListValue(t *testing.T) {
	var origins []string
	v := &stringListValue{target: &origins}
	require.NoError(t, v.Set("http://a.test, http://b.test"))
	require.NoError(t, v.Set("http://c.test"))
	assert.Equal(t, []string{"http://a.test", "http://b.test", "http://c.test"}, origins)
	assert.Equal(t, "http://a.test,http://b.test,http://c.test", v.String())

	assert.Error(t, (&stringListValue{}).Set("x"))
}

func TestAppRunShutsDownOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Engine.Kind = config.EngineFake
	cfg.Server.Bind = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = time.Second

	a, err := newApp(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, a.run(ctx))
	assert.Zero(t, a.registry.Len())
	assert.Zero(t, a.pool.Len())
}
