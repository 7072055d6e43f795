package interact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odvcencio/pagestream/pkg/observability"
	"github.com/odvcencio/pagestream/pkg/render"
	"github.com/odvcencio/pagestream/pkg/stream"
)

// ErrIgnored is returned for commands that were dropped without touching the surface.
var ErrIgnored = errors.New("command ignored")

// Frames is the part of the capture scheduler the router drives.
//
//go:generate mockgen -package=interact -destination=mock_frames_test.go github.com/odvcencio/pagestream/pkg/interact Frames
type Frames interface {
	Config() stream.Config
	Schedule(delay time.Duration, force bool)
	Settle(delay time.Duration, force bool)
	ScrollFrame()
}

// Options configures a Router.
type Options struct {
	// NavigationTimeout bounds navigate, reload, back and forward.
	NavigationTimeout time.Duration
	Logger            *observability.Logger
	// OnTerminal is called when the surface reports itself unreachable.
	OnTerminal func()
}

// Router applies client commands to one session's surface.
type Router struct {
	surface    render.Surface
	frames     Frames
	cfg        stream.Config
	navTimeout time.Duration
	logger     *observability.Logger
	onTerminal func()
}

// NewRouter creates a router for surface whose frames are scheduled on frames.
func NewRouter(surface render.Surface, frames Frames, opts Options) *Router {
	if opts.Logger == nil {
		opts.Logger = observability.Discard()
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 10 * time.Second
	}
	return &Router{
		surface:    surface,
		frames:     frames,
		cfg:        frames.Config(),
		navTimeout: opts.NavigationTimeout,
		logger:     opts.Logger,
		onTerminal: opts.OnTerminal,
	}
}

// Prime schedules the frames a freshly attached connection needs: a forced
// frame right away and a forced settle frame once the page has had time to
// finish loading.
func (r *Router) Prime() {
	r.frames.Schedule(r.cfg.InteractionFrameDelay, true)
	r.frames.Settle(r.cfg.SettleDelay, true)
}

// Dispatch decodes raw and applies it. Malformed commands and commands against
// a closed surface return an error wrapping ErrMalformed or ErrIgnored and
// leave the surface untouched.
func (r *Router) Dispatch(ctx context.Context, raw []byte) error {
	cmd, err := Decode(raw)
	if err != nil {
		observability.CommandsReceived.WithLabelValues("invalid", "malformed").Inc()
		r.logger.CommandIgnored(string(cmd.Type), err.Error())
		return err
	}
	return r.Apply(ctx, cmd)
}

// Apply runs a decoded command against the surface and arms its follow-up frames.
func (r *Router) Apply(ctx context.Context, cmd Command) error {
	if r.surface.IsClosed() {
		observability.CommandsReceived.WithLabelValues(string(cmd.Type), "ignored").Inc()
		r.logger.CommandIgnored(string(cmd.Type), "surface closed")
		return fmt.Errorf("%w: surface closed", ErrIgnored)
	}

	err := r.act(ctx, cmd)
	switch {
	case err == nil:
	case errors.Is(err, render.ErrSurfaceClosed):
		observability.CommandsReceived.WithLabelValues(string(cmd.Type), "ignored").Inc()
		r.logger.CommandIgnored(string(cmd.Type), "surface closed")
		return fmt.Errorf("%w: surface closed", ErrIgnored)
	case render.IsTerminal(err):
		observability.CommandsReceived.WithLabelValues(string(cmd.Type), "terminal").Inc()
		r.logger.Warn("surface unreachable", "command_type", string(cmd.Type), "error", err.Error())
		if r.onTerminal != nil {
			r.onTerminal()
		}
		return err
	case r.surface.IsClosed():
		observability.CommandsReceived.WithLabelValues(string(cmd.Type), "ignored").Inc()
		r.logger.CommandIgnored(string(cmd.Type), "surface closed")
		return fmt.Errorf("%w: surface closed", ErrIgnored)
	default:
		observability.CommandsReceived.WithLabelValues(string(cmd.Type), "failed").Inc()
		r.logger.Warn("command failed", "command_type", string(cmd.Type), "error", err.Error())
	}
	if err == nil {
		observability.CommandsReceived.WithLabelValues(string(cmd.Type), "applied").Inc()
	}

	r.schedule(cmd.Type)
	return err
}

func (r *Router) act(ctx context.Context, cmd Command) error {
	switch cmd.Type {
	case CommandClick:
		return r.surface.Click(ctx, *cmd.X, *cmd.Y, render.ParseMouseButton(cmd.Button))
	case CommandKey:
		if cmd.Text != "" {
			return r.surface.TypeText(ctx, cmd.Text)
		}
		return r.surface.KeyPress(ctx, cmd.Key)
	case CommandScroll:
		k := r.cfg.ScrollMultiplier
		return r.surface.Wheel(ctx, cmd.DeltaX*k, cmd.DeltaY*k)
	}

	navCtx, cancel := context.WithTimeout(ctx, r.navTimeout)
	defer cancel()
	switch cmd.Type {
	case CommandReload:
		return r.surface.Reload(navCtx)
	case CommandBack:
		return r.surface.GoBack(navCtx)
	case CommandForward:
		return r.surface.GoForward(navCtx)
	case CommandNavigate:
		return r.surface.Navigate(navCtx, cmd.URL)
	}
	return fmt.Errorf("%w: unknown type %q", ErrMalformed, cmd.Type)
}

func (r *Router) schedule(t CommandType) {
	switch t {
	case CommandClick, CommandKey:
		r.frames.Schedule(r.cfg.InteractionFrameDelay, false)
		r.frames.Settle(r.cfg.SettleDelay, false)
	case CommandScroll:
		r.frames.ScrollFrame()
	case CommandReload, CommandBack, CommandForward, CommandNavigate:
		r.frames.Schedule(r.cfg.NavigationFrameDelay, true)
		r.frames.Settle(r.cfg.SettleDelay, false)
	}
}
