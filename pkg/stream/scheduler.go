// Package stream decides when a session's surface is captured and which
// frames reach the attached connection.
package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/odvcencio/pagestream/pkg/observability"
	"github.com/odvcencio/pagestream/pkg/render"
)

// Frame is one captured image and its content hash.
type Frame struct {
	Data       []byte
	Hash       uint64
	Forced     bool
	CapturedAt time.Time
}

// Sink receives delivered frames. Implementations must be comparable so the
// scheduler can tell attachments apart.
type Sink interface {
	SendFrame(ctx context.Context, frame Frame) error
}

// Scheduler owns single-flight capture, deduplication and the timers that
// drive captures for one session.
type Scheduler struct {
	surface    render.Surface
	cfg        Config
	logger     *observability.Logger
	onTerminal func()

	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	flight          flight
	lastHash        uint64
	hasHash         bool
	lastScrollFrame time.Time
	sink            Sink
	closed          bool
	timers          map[*time.Timer]struct{}

	settle     TimerSlot
	timeoutLog rate.Sometimes
}

// NewScheduler creates a scheduler for surface. onTerminal is invoked when a
// capture reports the surface unreachable.
func NewScheduler(surface render.Surface, cfg Config, logger *observability.Logger, onTerminal func()) *Scheduler {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = observability.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		surface:    surface,
		cfg:        cfg,
		logger:     logger,
		onTerminal: onTerminal,
		ctx:        ctx,
		cancel:     cancel,
		timers:     make(map[*time.Timer]struct{}),
		timeoutLog: rate.Sometimes{Interval: cfg.TimeoutLogCooldown},
	}
}

// Config returns the effective timing policy.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Attach makes sink the receiver of delivered frames, replacing any previous one.
func (s *Scheduler) Attach(sink Sink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// Detach clears sink if it is still the attached one and reports whether it was.
func (s *Scheduler) Detach(sink Sink) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink != sink {
		return false
	}
	s.sink = nil
	return true
}

// Schedule runs a capture after delay.
func (s *Scheduler) Schedule(delay time.Duration, force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()
		s.RunCapture(s.ctx, force)
	})
	s.timers[t] = struct{}{}
}

// Settle re-arms the session's settle timer. Only the most recent call fires.
func (s *Scheduler) Settle(delay time.Duration, force bool) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.settle.Reset(delay, func() {
		s.RunCapture(s.ctx, force)
	})
}

// ScrollFrame applies the scroll policy: a live frame at most once per
// ScrollMinInterval, and a forced frame once scrolling has been quiet for
// SettleDelay.
func (s *Scheduler) ScrollFrame() {
	now := time.Now()
	s.mu.Lock()
	live := now.Sub(s.lastScrollFrame) > s.cfg.ScrollMinInterval
	if live {
		s.lastScrollFrame = now
	}
	s.mu.Unlock()

	if live {
		s.Schedule(0, false)
	}
	s.Settle(s.cfg.SettleDelay, true)
}

// RunCapture captures immediately unless a capture is in flight, in which case
// the request is deferred and replayed after the in-flight capture completes.
func (s *Scheduler) RunCapture(ctx context.Context, force bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if !s.flight.begin(force) {
		s.mu.Unlock()
		observability.CaptureDeferred.Inc()
		return
	}
	s.mu.Unlock()

	s.capture(ctx, force)

	s.mu.Lock()
	replay, replayForce := s.flight.finish()
	s.mu.Unlock()
	if replay {
		s.Schedule(s.cfg.InteractionFrameDelay, replayForce)
	}
}

func (s *Scheduler) capture(ctx context.Context, force bool) {
	if s.surface.IsClosed() {
		return
	}
	ctx, span := observability.StartSpan(ctx, "stream.capture", attribute.Bool("force", force))
	captureCtx, cancel := context.WithTimeout(ctx, s.cfg.CaptureTimeout)
	start := time.Now()
	data, err := s.surface.Capture(captureCtx, render.CaptureOptions{
		Format:  s.cfg.CaptureFormat,
		Quality: s.cfg.CaptureQuality,
	})
	cancel()
	observability.CaptureLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.handleCaptureError(err)
		observability.EndSpan(span, err)
		return
	}
	observability.FramesCaptured.Inc()

	frame := Frame{
		Data:       data,
		Hash:       xxhash.Sum64(data),
		Forced:     force,
		CapturedAt: time.Now(),
	}
	span.SetAttributes(attribute.Int("frame.bytes", len(data)))

	s.mu.Lock()
	if !force && s.hasHash && frame.Hash == s.lastHash {
		s.mu.Unlock()
		observability.FramesDeduplicated.Inc()
		span.SetAttributes(attribute.Bool("frame.deduplicated", true))
		observability.EndSpan(span, nil)
		return
	}
	sink := s.sink
	s.mu.Unlock()

	if sink == nil {
		observability.EndSpan(span, nil)
		return
	}
	if err := sink.SendFrame(ctx, frame); err != nil {
		s.logger.Debug("frame delivery failed", "error", err.Error())
		observability.EndSpan(span, err)
		return
	}

	s.mu.Lock()
	s.lastHash = frame.Hash
	s.hasHash = true
	s.mu.Unlock()
	observability.FramesDelivered.Inc()
	observability.EndSpan(span, nil)
}

func (s *Scheduler) handleCaptureError(err error) {
	switch {
	case errors.Is(err, render.ErrSurfaceClosed):
		return
	case render.IsTerminal(err):
		observability.CaptureErrors.WithLabelValues("terminal").Inc()
		s.logger.CaptureFailed("terminal", err)
		if s.onTerminal != nil {
			s.onTerminal()
		}
	case s.surface.IsClosed():
		return
	case render.IsTimeout(err):
		observability.CaptureErrors.WithLabelValues("timeout").Inc()
		s.timeoutLog.Do(func() {
			s.logger.CaptureFailed("timeout", err)
		})
	default:
		observability.CaptureErrors.WithLabelValues("error").Inc()
		s.logger.CaptureFailed("error", err)
	}
}

// Close stops every timer. Later scheduled callbacks and captures are no-ops.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for t := range s.timers {
		t.Stop()
	}
	s.timers = make(map[*time.Timer]struct{})
	s.sink = nil
	s.mu.Unlock()

	s.settle.Stop()
	s.cancel()
}
