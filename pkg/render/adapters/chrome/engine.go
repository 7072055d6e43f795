// Package chrome implements the render ports on top of Chrome via go-rod.
// Each engine is one Chrome process; each surface is a page inside its own
// incognito browser context.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/odvcencio/pagestream/pkg/observability"
	"github.com/odvcencio/pagestream/pkg/render"
)

// Launcher starts one Chrome process per user.
type Launcher struct {
	cfg    Config
	logger *observability.Logger
}

// NewLauncher creates a Chrome launcher.
func NewLauncher(cfg Config, logger *observability.Logger) (*Launcher, error) {
	merged := cfg.withDefaults()
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.Discard()
	}
	return &Launcher{cfg: merged, logger: logger.WithComponent("chrome")}, nil
}

// Launch implements render.Launcher.
func (l *Launcher) Launch(ctx context.Context, userID string) (render.Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	proc := launcher.New().
		Headless(l.cfg.Headless).
		NoSandbox(l.cfg.NoSandbox).
		Leakless(true)
	if l.cfg.Bin != "" {
		proc = proc.Bin(l.cfg.Bin)
	}
	for _, raw := range l.cfg.Flags {
		name, val, hasVal := strings.Cut(strings.TrimLeft(strings.TrimSpace(raw), "-"), "=")
		if hasVal {
			proc = proc.Set(flags.Flag(name), val)
		} else {
			proc = proc.Set(flags.Flag(name))
		}
	}

	controlURL, err := l.start(ctx, proc)
	if err != nil {
		proc.Kill()
		proc.Cleanup()
		return nil, render.WrapError("launch", "unavailable", fmt.Errorf("%w: %v", render.ErrUnavailable, err))
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		proc.Kill()
		proc.Cleanup()
		return nil, render.WrapError("launch", "unavailable", fmt.Errorf("connect to chrome: %w", err))
	}

	eng := &Engine{
		id:      fmt.Sprintf("chrome-%s-%d", userID, proc.PID()),
		userID:  userID,
		proc:    proc,
		browser: browser,
		logger:  l.logger.WithUser(userID),
	}
	eng.logger.Info("chrome launched", "engine_id", eng.id, "headless", l.cfg.Headless)
	return eng, nil
}

// start runs the blocking launch bounded by ctx and the launch timeout.
func (l *Launcher) start(ctx context.Context, proc *launcher.Launcher) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.LaunchTimeout)
	defer cancel()

	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)
	go func() {
		u, err := proc.Launch()
		done <- result{url: u, err: err}
	}()

	select {
	case res := <-done:
		return res.url, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("launch chrome: %w", ctx.Err())
	}
}

// Engine is one Chrome process.
type Engine struct {
	id      string
	userID  string
	proc    *launcher.Launcher
	browser *rod.Browser
	logger  *observability.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (e *Engine) ID() string { return e.id }

// IsClosed reports whether the engine was closed or lost its connection.
func (e *Engine) IsClosed() bool { return e.closed.Load() }

func (e *Engine) markLost(err error) {
	if e.closed.CompareAndSwap(false, true) {
		e.logger.Warn("chrome connection lost", "engine_id", e.id, "error", err.Error())
	}
}

// NewSurface opens a page in a fresh incognito context.
func (e *Engine) NewSurface(ctx context.Context, opts render.SurfaceOptions) (render.Surface, error) {
	if e.IsClosed() {
		return nil, render.ErrEngineClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	incognito, err := e.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, e.fail("new_surface", err)
	}
	// Detach from the creation context; the surface outlives this request.
	incognito = incognito.Context(context.Background())

	page, err := incognito.Page(proto.TargetCreateTarget{URL: render.BlankURL})
	if err != nil {
		_ = incognito.Close()
		return nil, e.fail("new_surface", err)
	}

	vp := validViewport(opts.Viewport)
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: vp.DeviceScaleFactor,
		Mobile:            false,
	}).Call(page); err != nil {
		e.logger.Warn("set viewport failed", "engine_id", e.id, "error", err.Error())
	}

	return &Surface{
		engine:    e,
		incognito: incognito,
		page:      page,
		viewport:  vp,
	}, nil
}

func (e *Engine) fail(op string, err error) error {
	classified := classify(op, err)
	if isConnectionLost(classified) {
		e.markLost(err)
	}
	return classified
}

// Close shuts Chrome down, killing the process if the graceful close fails.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		done := make(chan error, 1)
		go func() { done <- e.browser.Close() }()

		var err error
		select {
		case err = <-done:
		case <-time.After(5 * time.Second):
			err = errors.New("browser close timed out")
		}
		if err != nil {
			e.proc.Kill()
			e.closeErr = fmt.Errorf("close chrome %s: %w", e.id, err)
		}
		e.proc.Cleanup()
	})
	return e.closeErr
}
