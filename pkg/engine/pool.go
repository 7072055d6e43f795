// Package engine pools render engines per user and reaps the ones no session
// references.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odvcencio/pagestream/pkg/observability"
	"github.com/odvcencio/pagestream/pkg/render"
	"github.com/odvcencio/pagestream/pkg/telemetry"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("engine pool closed")

const (
	maxAcquireAttempts   = 3
	defaultCloseParallel = 4
)

// Referencer reports whether any live session still points at an engine.
type Referencer interface {
	ReferencesEngine(engine render.Engine) bool
}

type entry struct {
	engine     render.Engine
	holds      int
	launchedAt time.Time
}

// EngineInfo is a point-in-time view of a pooled engine.
type EngineInfo struct {
	UserID     string    `json:"userId"`
	EngineID   string    `json:"engineId"`
	Holds      int       `json:"holds"`
	Closed     bool      `json:"closed"`
	LaunchedAt time.Time `json:"launchedAt"`
}

// Pool owns engine lifetime. Engines are launched lazily, one per user, and
// are only closed by Sweep or Close.
type Pool struct {
	launcher render.Launcher
	logger   *observability.Logger
	hub      *telemetry.Hub

	mu      sync.Mutex
	engines map[string]*entry
	closed  bool

	launches singleflight.Group
}

// NewPool creates a pool that launches engines with launcher.
func NewPool(launcher render.Launcher, logger *observability.Logger, hub *telemetry.Hub) *Pool {
	if logger == nil {
		logger = observability.Discard()
	}
	return &Pool{
		launcher: launcher,
		logger:   logger.WithComponent("engine_pool"),
		hub:      hub,
		engines:  make(map[string]*entry),
	}
}

// Acquire returns the engine for userID, launching it if needed. The returned
// func ends the acquisition; until it is called Sweep will not reap the engine.
func (p *Pool) Acquire(ctx context.Context, userID string) (render.Engine, func(), error) {
	for attempt := 0; attempt < maxAcquireAttempts; attempt++ {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, nil, ErrPoolClosed
		}
		if e, ok := p.engines[userID]; ok && !e.engine.IsClosed() {
			e.holds++
			p.mu.Unlock()
			return e.engine, p.releaser(e), nil
		}
		p.mu.Unlock()

		// A launch is shared between callers; one caller going away must not
		// abort it for the others.
		launchCtx := context.WithoutCancel(ctx)
		result := p.launches.DoChan(userID, func() (any, error) {
			return p.launch(launchCtx, userID)
		})
		var res singleflight.Result
		select {
		case res = <-result:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
		if res.Err != nil {
			return nil, nil, res.Err
		}

		launched := res.Val.(*entry)
		p.mu.Lock()
		if p.engines[userID] == launched && !p.closed {
			launched.holds++
			p.mu.Unlock()
			return launched.engine, p.releaser(launched), nil
		}
		p.mu.Unlock()
	}
	return nil, nil, fmt.Errorf("acquire engine for %s: engine replaced during acquisition", userID)
}

func (p *Pool) releaser(e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			e.holds--
			p.mu.Unlock()
		})
	}
}

func (p *Pool) launch(ctx context.Context, userID string) (*entry, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	stale, ok := p.engines[userID]
	if ok && !stale.engine.IsClosed() {
		p.mu.Unlock()
		return stale, nil
	}
	if ok {
		delete(p.engines, userID)
	}
	p.mu.Unlock()

	if stale != nil {
		p.logger.WithUser(userID).Warn("replacing closed engine", "engine_id", stale.engine.ID())
		p.closeEngine(userID, stale.engine, "replaced")
	}

	ctx, span := observability.StartSpan(ctx, "engine.launch", attribute.String("user.id", userID))
	eng, err := p.launcher.Launch(ctx, userID)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("launch engine for %s: %w", userID, err)
	}

	launched := &entry{engine: eng, launchedAt: time.Now()}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = eng.Close()
		return nil, ErrPoolClosed
	}
	p.engines[userID] = launched
	count := len(p.engines)
	p.mu.Unlock()

	observability.EnginesLaunched.Inc()
	observability.ActiveEngines.Set(float64(count))
	p.logger.WithUser(userID).Info("engine launched", "engine_id", eng.ID())
	p.hub.Publish(telemetry.Event{
		Type:   telemetry.EventEngineLaunched,
		UserID: userID,
		Data:   map[string]any{"engine_id": eng.ID()},
	})
	return launched, nil
}

// Sweep closes and removes every engine that has no open acquisition and no
// session referencing it. It returns how many engines were removed. Close
// failures are logged and do not stop the other closes.
func (p *Pool) Sweep(ctx context.Context, ref Referencer) int {
	if ctx.Err() != nil {
		return 0
	}

	type victim struct {
		userID string
		engine render.Engine
	}
	var victims []victim

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0
	}
	for userID, e := range p.engines {
		if e.holds > 0 {
			continue
		}
		if ref != nil && ref.ReferencesEngine(e.engine) {
			continue
		}
		delete(p.engines, userID)
		victims = append(victims, victim{userID: userID, engine: e.engine})
	}
	count := len(p.engines)
	p.mu.Unlock()

	observability.ActiveEngines.Set(float64(count))
	if len(victims) == 0 {
		return 0
	}

	var g errgroup.Group
	g.SetLimit(defaultCloseParallel)
	for _, v := range victims {
		g.Go(func() error {
			p.closeEngine(v.userID, v.engine, "reaped")
			return nil
		})
	}
	_ = g.Wait()
	return len(victims)
}

func (p *Pool) closeEngine(userID string, eng render.Engine, reason string) error {
	err := eng.Close()
	if err != nil {
		observability.EnginesReaped.WithLabelValues("error").Inc()
	} else {
		observability.EnginesReaped.WithLabelValues(reason).Inc()
	}
	p.logger.EngineReaped(userID, eng.ID(), err)

	data := map[string]any{"engine_id": eng.ID(), "reason": reason}
	if err != nil {
		data["error"] = err.Error()
	}
	p.hub.Publish(telemetry.Event{
		Type:   telemetry.EventEngineReaped,
		UserID: userID,
		Data:   data,
	})
	return err
}

// Len returns the number of pooled engines.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.engines)
}

// List returns a snapshot of the pooled engines.
func (p *Pool) List() []EngineInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EngineInfo, 0, len(p.engines))
	for userID, e := range p.engines {
		out = append(out, EngineInfo{
			UserID:     userID,
			EngineID:   e.engine.ID(),
			Holds:      e.holds,
			Closed:     e.engine.IsClosed(),
			LaunchedAt: e.launchedAt,
		})
	}
	return out
}

// Close closes every pooled engine. Later Acquire calls fail with ErrPoolClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	engines := p.engines
	p.engines = make(map[string]*entry)
	p.mu.Unlock()
	observability.ActiveEngines.Set(0)

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(defaultCloseParallel)
	for userID, e := range engines {
		g.Go(func() error {
			if err := p.closeEngine(userID, e.engine, "shutdown"); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("close engine %s: %w", e.engine.ID(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
