package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/odvcencio/pagestream/pkg/observability"
	"github.com/odvcencio/pagestream/pkg/render"
	"github.com/odvcencio/pagestream/pkg/stream"
	"github.com/odvcencio/pagestream/pkg/telemetry"
)

// ErrRegistryClosed is returned by Resolve after Close.
var ErrRegistryClosed = errors.New("session registry closed")

// Removal reasons reported in logs, metrics and events.
const (
	ReasonExpired  = "expired"
	ReasonForced   = "forced"
	ReasonClosed   = "surface_closed"
	ReasonShutdown = "shutdown"
)

// EngineSource hands out engines for a user. The returned func ends the
// acquisition once the new session is registered.
type EngineSource interface {
	Acquire(ctx context.Context, userID string) (render.Engine, func(), error)
}

// Config controls session lifetime and creation.
type Config struct {
	GracePeriod       time.Duration
	NavigationTimeout time.Duration
	DefaultURL        string
	Viewport          render.Viewport
	Stream            stream.Config
}

// DefaultConfig returns the default session settings.
func DefaultConfig() Config {
	return Config{
		GracePeriod:       30000 * time.Millisecond,
		NavigationTimeout: 10 * time.Second,
		DefaultURL:        "https://example.com",
		Viewport:          render.DefaultViewport(),
		Stream:            stream.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.GracePeriod <= 0 {
		c.GracePeriod = d.GracePeriod
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = d.NavigationTimeout
	}
	if c.DefaultURL == "" {
		c.DefaultURL = d.DefaultURL
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		c.Viewport = d.Viewport
	}
	c.Stream = c.Stream.WithDefaults()
	return c
}

// Registry owns session lifetime. Callers go through Resolve, Release and
// ForceRemove; the map is never exposed.
type Registry struct {
	engines EngineSource
	cfg     Config
	logger  *observability.Logger
	hub     *telemetry.Hub

	mu       sync.Mutex
	sessions map[Key]*Session
	closed   bool

	creating singleflight.Group
}

// NewRegistry creates a registry that opens surfaces on engines from source.
func NewRegistry(source EngineSource, cfg Config, logger *observability.Logger, hub *telemetry.Hub) *Registry {
	if logger == nil {
		logger = observability.Discard()
	}
	return &Registry{
		engines:  source,
		cfg:      cfg.withDefaults(),
		logger:   logger.WithComponent("session_registry"),
		hub:      hub,
		sessions: make(map[Key]*Session),
	}
}

// Config returns the effective configuration.
func (r *Registry) Config() Config {
	return r.cfg
}

// Resolve returns the live session for (userID, sessionID), creating it when
// none exists or its surface has closed. A new session is navigated to target
// (or the default URL); if that fails within the navigation timeout it lands
// on the blank page instead. The bool reports whether an existing session was
// reused.
func (r *Registry) Resolve(ctx context.Context, userID, sessionID, target string) (*Session, bool, error) {
	key := Key{UserID: userID, SessionID: sessionID}
	if s, ok, err := r.reuse(key); err != nil || ok {
		return s, ok, err
	}

	type resolved struct {
		session *Session
		reused  bool
	}
	v, err, shared := r.creating.Do(key.String(), func() (any, error) {
		if s, ok, err := r.reuse(key); err != nil || ok {
			return resolved{session: s, reused: ok}, err
		}
		s, err := r.create(ctx, key, target)
		return resolved{session: s}, err
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(resolved)
	return res.session, res.reused || shared, nil
}

func (r *Registry) reuse(key Key) (*Session, bool, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, false, ErrRegistryClosed
	}
	s, ok := r.sessions[key]
	if !ok {
		r.mu.Unlock()
		return nil, false, nil
	}
	if s.surface.IsClosed() {
		r.removeLocked(s)
		r.mu.Unlock()
		r.teardown(s, ReasonClosed)
		return nil, false, nil
	}
	wasPending := s.State() == StatePendingRemoval
	if wasPending {
		s.removalGen++
		s.removal.Stop()
		s.setState(StateActive)
	}
	r.mu.Unlock()

	observability.SessionsResolved.WithLabelValues("reused").Inc()
	r.logger.WithSession(key.UserID, key.SessionID).Info("session reused", "reclaimed", wasPending)
	r.hub.Publish(telemetry.Event{
		Type:      telemetry.EventSessionReused,
		UserID:    key.UserID,
		SessionID: key.SessionID,
		Data:      map[string]any{"reclaimed": wasPending},
	})
	return s, true, nil
}

func (r *Registry) create(ctx context.Context, key Key, target string) (_ *Session, err error) {
	ctx, span := observability.StartSpan(ctx, "session.create",
		attribute.String("user.id", key.UserID),
		attribute.String("session.id", key.SessionID),
	)
	defer func() { observability.EndSpan(span, err) }()

	eng, done, err := r.engines.Acquire(ctx, key.UserID)
	if err != nil {
		return nil, fmt.Errorf("acquire engine: %w", err)
	}
	defer done()

	surface, err := eng.NewSurface(ctx, render.SurfaceOptions{Viewport: r.cfg.Viewport})
	if err != nil {
		return nil, fmt.Errorf("open surface: %w", err)
	}

	logger := r.logger.WithSession(key.UserID, key.SessionID)
	landed, navigated := r.navigate(ctx, logger, surface, target)
	if ctx.Err() != nil {
		r.closeSurface(logger, surface)
		return nil, fmt.Errorf("create session: %w", ctx.Err())
	}

	s := &Session{
		key:       key,
		surface:   surface,
		engine:    eng,
		target:    landed,
		createdAt: time.Now(),
	}
	s.scheduler = stream.NewScheduler(surface, r.cfg.Stream, logger, func() {
		r.Evict(s, ReasonClosed)
	})

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		s.scheduler.Close()
		r.closeSurface(logger, surface)
		return nil, ErrRegistryClosed
	}
	stale := r.sessions[key]
	if stale != nil {
		r.removeLocked(stale)
	}
	r.sessions[key] = s
	count := len(r.sessions)
	r.mu.Unlock()

	if stale != nil {
		r.teardown(stale, ReasonClosed)
	}

	observability.SessionsResolved.WithLabelValues("created").Inc()
	observability.ActiveSessions.Set(float64(count))
	logger.SessionCreated(eng.ID(), landed, navigated)
	r.hub.Publish(telemetry.Event{
		Type:      telemetry.EventSessionCreated,
		UserID:    key.UserID,
		SessionID: key.SessionID,
		Data: map[string]any{
			"engine_id": eng.ID(),
			"target":    landed,
			"navigated": navigated,
		},
	})
	return s, nil
}

func (r *Registry) navigate(ctx context.Context, logger *observability.Logger, surface render.Surface, target string) (string, bool) {
	if target == "" {
		target = r.cfg.DefaultURL
	}
	navCtx, cancel := context.WithTimeout(ctx, r.cfg.NavigationTimeout)
	err := surface.Navigate(navCtx, target)
	cancel()
	if err == nil {
		return target, true
	}
	logger.Warn("navigation failed, falling back to blank page",
		"target", target,
		"error", err.Error(),
	)

	blankCtx, cancel := context.WithTimeout(ctx, r.cfg.NavigationTimeout)
	defer cancel()
	if err := surface.Navigate(blankCtx, render.BlankURL); err != nil {
		logger.Warn("blank page fallback failed", "error", err.Error())
	}
	return render.BlankURL, false
}

// Get returns the session registered under key.
func (r *Registry) Get(key Key) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

// Release schedules removal of the session after the grace period. A Resolve
// for the same key before then reclaims the session and the removal becomes a
// no-op.
func (r *Registry) Release(key Key) {
	r.mu.Lock()
	s, ok := r.sessions[key]
	if !ok || r.closed || s.State() != StateActive {
		r.mu.Unlock()
		return
	}
	s.setState(StatePendingRemoval)
	s.removalGen++
	gen := s.removalGen
	grace := r.cfg.GracePeriod
	s.removal.Reset(grace, func() {
		r.expire(s, gen)
	})
	r.mu.Unlock()

	r.logger.WithSession(key.UserID, key.SessionID).Debug("session release scheduled", "grace", grace.String())
	r.hub.Publish(telemetry.Event{
		Type:      telemetry.EventSessionReleaseScheduled,
		UserID:    key.UserID,
		SessionID: key.SessionID,
		Data:      map[string]any{"grace_ms": grace.Milliseconds()},
	})
}

func (r *Registry) expire(s *Session, gen uint64) {
	r.mu.Lock()
	if r.sessions[s.key] != s || s.State() != StatePendingRemoval || s.removalGen != gen {
		r.mu.Unlock()
		return
	}
	r.removeLocked(s)
	r.mu.Unlock()
	r.teardown(s, ReasonExpired)
}

// ForceRemove removes the session under key immediately and closes its
// surface. Close failures are logged and swallowed.
func (r *Registry) ForceRemove(key Key) {
	r.mu.Lock()
	s, ok := r.sessions[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	r.removeLocked(s)
	r.mu.Unlock()
	r.teardown(s, ReasonForced)
}

// Evict removes s if it is still the session registered under its key. It
// reports whether s was removed.
func (r *Registry) Evict(s *Session, reason string) bool {
	r.mu.Lock()
	if r.sessions[s.key] != s {
		r.mu.Unlock()
		return false
	}
	r.removeLocked(s)
	r.mu.Unlock()
	r.teardown(s, reason)
	return true
}

// ReferencesEngine reports whether any active or pending-removal session
// points at engine.
func (r *Registry) ReferencesEngine(engine render.Engine) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.engine == engine {
			return true
		}
	}
	return false
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// List returns a snapshot of every registered session ordered by key.
func (r *Registry) List() []Info {
	r.mu.Lock()
	out := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.info())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

// Close removes every session. Later Resolve calls fail with ErrRegistryClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	for _, s := range sessions {
		r.removeLocked(s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		r.teardown(s, ReasonShutdown)
	}
}

// removeLocked unregisters s. Callers hold r.mu and must call teardown after
// releasing it.
func (r *Registry) removeLocked(s *Session) {
	delete(r.sessions, s.key)
	s.removalGen++
	s.removal.Stop()
	s.setState(StateRemoved)
	observability.ActiveSessions.Set(float64(len(r.sessions)))
}

func (r *Registry) teardown(s *Session, reason string) {
	logger := r.logger.WithSession(s.key.UserID, s.key.SessionID)
	s.scheduler.Close()
	r.closeSurface(logger, s.surface)

	observability.SessionsRemoved.WithLabelValues(reason).Inc()
	logger.SessionRemoved(reason)
	r.hub.Publish(telemetry.Event{
		Type:      telemetry.EventSessionRemoved,
		UserID:    s.key.UserID,
		SessionID: s.key.SessionID,
		Data:      map[string]any{"reason": reason},
	})
}

func (r *Registry) closeSurface(logger *observability.Logger, surface render.Surface) {
	if surface.IsClosed() {
		return
	}
	if err := surface.Close(); err != nil {
		logger.Warn("surface close failed", "error", err.Error())
	}
}
