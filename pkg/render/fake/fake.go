// Package fake provides an in-memory render engine. Frames are derived from
// the surface state so identical state always produces identical bytes.
package fake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/odvcencio/pagestream/pkg/render"
)

// Launcher launches fake engines and counts launches per user.
type Launcher struct {
	mu        sync.Mutex
	launches  map[string]int
	engines   []*Engine
	LaunchErr error
	// Configure, when set, is applied to every surface the launched engines create.
	Configure func(*Surface)
}

// NewLauncher creates a fake Launcher.
func NewLauncher() *Launcher {
	return &Launcher{launches: make(map[string]int)}
}

// Launch implements render.Launcher.
func (l *Launcher) Launch(ctx context.Context, userID string) (render.Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	l.launches[userID]++
	eng := &Engine{
		id:        fmt.Sprintf("fake-%s-%d", userID, l.launches[userID]),
		configure: l.Configure,
	}
	l.engines = append(l.engines, eng)
	return eng, nil
}

// Launches returns how many engines were launched for userID.
func (l *Launcher) Launches(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches[userID]
}

// Engines returns every engine launched so far.
func (l *Launcher) Engines() []*Engine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Engine(nil), l.engines...)
}

// Engine is a fake render.Engine.
type Engine struct {
	id        string
	configure func(*Surface)

	mu       sync.Mutex
	surfaces []*Surface
	closed   bool
	closes   int

	NewSurfaceErr error
	CloseErr      error
}

// NewEngine creates a standalone fake engine.
func NewEngine(id string) *Engine {
	return &Engine{id: id}
}

func (e *Engine) ID() string { return e.id }

// NewSurface implements render.Engine.
func (e *Engine) NewSurface(ctx context.Context, opts render.SurfaceOptions) (render.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, render.ErrEngineClosed
	}
	if e.NewSurfaceErr != nil {
		return nil, e.NewSurfaceErr
	}
	s := NewSurface()
	s.viewport = opts.Viewport
	if e.configure != nil {
		e.configure(s)
	}
	e.surfaces = append(e.surfaces, s)
	return s, nil
}

// Surfaces returns every surface created by the engine.
func (e *Engine) Surfaces() []*Surface {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Surface(nil), e.surfaces...)
}

func (e *Engine) IsClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Crash marks the engine closed without going through Close.
func (e *Engine) Crash() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

// Closes returns how many times Close was called.
func (e *Engine) Closes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closes
}

func (e *Engine) Close() error {
	e.mu.Lock()
	e.closes++
	e.closed = true
	surfaces := append([]*Surface(nil), e.surfaces...)
	err := e.CloseErr
	e.mu.Unlock()
	for _, s := range surfaces {
		_ = s.Close()
	}
	return err
}

// Call records one surface interaction.
type Call struct {
	Op     string
	X, Y   float64
	Button render.MouseButton
	Text   string
}

// Surface is a fake render.Surface.
type Surface struct {
	mu       sync.Mutex
	viewport render.Viewport
	history  []string
	index    int
	scrollX  float64
	scrollY  float64
	revision int
	calls    []Call
	closed   bool

	captures    atomic.Int64
	inflight    atomic.Int32
	maxInflight atomic.Int32

	// CaptureDelay simulates render latency.
	CaptureDelay time.Duration
	// CaptureErr, when set, decides the outcome of each capture.
	CaptureErr func(n int64) error
	// NavigateErr fails navigation to the named URL.
	NavigateErr map[string]error
	// ActionErr, when set, decides the outcome of every interaction by op name.
	ActionErr func(op string) error
}

// NewSurface creates a fake surface parked on the blank page.
func NewSurface() *Surface {
	return &Surface{history: []string{render.BlankURL}}
}

func (s *Surface) Capture(ctx context.Context, opts render.CaptureOptions) ([]byte, error) {
	n := s.captures.Add(1)
	cur := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		max := s.maxInflight.Load()
		if cur <= max || s.maxInflight.CompareAndSwap(max, cur) {
			break
		}
	}

	if s.IsClosed() {
		return nil, render.ErrSurfaceClosed
	}
	if s.CaptureDelay > 0 {
		select {
		case <-time.After(s.CaptureDelay):
		case <-ctx.Done():
			return nil, render.WrapError("capture", "timeout", ctx.Err())
		}
	}
	if s.CaptureErr != nil {
		if err := s.CaptureErr(n); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	frame := fmt.Sprintf("%s|%s|%d|%.1f|%.1f|%d|%dx%d",
		opts.Format, s.history[s.index], s.index, s.scrollX, s.scrollY, s.revision,
		s.viewport.Width, s.viewport.Height)
	return []byte(frame), nil
}

func (s *Surface) Click(ctx context.Context, x, y float64, button render.MouseButton) error {
	return s.record(Call{Op: "click", X: x, Y: y, Button: button}, func() { s.revision++ })
}

func (s *Surface) Wheel(ctx context.Context, dx, dy float64) error {
	return s.record(Call{Op: "wheel", X: dx, Y: dy}, func() {
		s.scrollX += dx
		s.scrollY += dy
	})
}

func (s *Surface) KeyPress(ctx context.Context, key string) error {
	return s.record(Call{Op: "key", Text: key}, func() { s.revision++ })
}

func (s *Surface) TypeText(ctx context.Context, text string) error {
	return s.record(Call{Op: "type", Text: text}, func() { s.revision++ })
}

func (s *Surface) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	err := s.NavigateErr[url]
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.record(Call{Op: "navigate", Text: url}, func() {
		s.history = append(s.history[:s.index+1], url)
		s.index = len(s.history) - 1
		s.scrollX, s.scrollY = 0, 0
	})
}

func (s *Surface) Reload(ctx context.Context) error {
	return s.record(Call{Op: "reload"}, func() { s.scrollX, s.scrollY = 0, 0 })
}

func (s *Surface) GoBack(ctx context.Context) error {
	return s.record(Call{Op: "back"}, func() {
		if s.index > 0 {
			s.index--
		}
	})
}

func (s *Surface) GoForward(ctx context.Context) error {
	return s.record(Call{Op: "forward"}, func() {
		if s.index < len(s.history)-1 {
			s.index++
		}
	})
}

func (s *Surface) record(call Call, apply func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return render.ErrSurfaceClosed
	}
	if s.ActionErr != nil {
		if err := s.ActionErr(call.Op); err != nil {
			return err
		}
	}
	s.calls = append(s.calls, call)
	apply()
	return nil
}

func (s *Surface) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("surface already closed")
	}
	s.closed = true
	return nil
}

// URL returns the current page.
func (s *Surface) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[s.index]
}

// Calls returns the recorded interactions.
func (s *Surface) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Captures returns how many capture attempts were made.
func (s *Surface) Captures() int64 { return s.captures.Load() }

// MaxConcurrentCaptures returns the highest number of overlapping captures observed.
func (s *Surface) MaxConcurrentCaptures() int32 { return s.maxInflight.Load() }
