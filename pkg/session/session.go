// Package session maps (user, session) keys to live render surfaces that
// survive connection churn within a grace period.
package session

import (
	"sync/atomic"
	"time"

	"github.com/odvcencio/pagestream/pkg/render"
	"github.com/odvcencio/pagestream/pkg/stream"
)

// Key identifies a session.
type Key struct {
	UserID    string
	SessionID string
}

func (k Key) String() string {
	return k.UserID + "/" + k.SessionID
}

// State is the lifecycle state of a session.
type State int32

const (
	StateActive State = iota
	StatePendingRemoval
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePendingRemoval:
		return "pending_removal"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Session binds a key to one surface. The engine reference is lookup-only;
// the engine pool owns the engine.
type Session struct {
	key       Key
	surface   render.Surface
	engine    render.Engine
	scheduler *stream.Scheduler
	target    string
	createdAt time.Time

	state atomic.Int32

	// guarded by Registry.mu
	removalGen uint64
	removal    stream.TimerSlot
}

func (s *Session) Key() Key                     { return s.key }
func (s *Session) Surface() render.Surface      { return s.surface }
func (s *Session) Engine() render.Engine        { return s.engine }
func (s *Session) Scheduler() *stream.Scheduler { return s.scheduler }
func (s *Session) CreatedAt() time.Time         { return s.createdAt }

// Target is the page the session landed on when it was created.
func (s *Session) Target() string { return s.target }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// Attach binds sink as the receiver of this session's frames, superseding any
// previous connection.
func (s *Session) Attach(sink stream.Sink) {
	s.scheduler.Attach(sink)
}

// Detach unbinds sink. It reports whether sink was still the attached one;
// only then should the caller release the session.
func (s *Session) Detach(sink stream.Sink) bool {
	return s.scheduler.Detach(sink)
}

// Info is a point-in-time view of a session.
type Info struct {
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`
	EngineID  string    `json:"engineId"`
	State     string    `json:"state"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Session) info() Info {
	return Info{
		UserID:    s.key.UserID,
		SessionID: s.key.SessionID,
		EngineID:  s.engine.ID(),
		State:     s.State().String(),
		Target:    s.target,
		CreatedAt: s.createdAt,
	}
}
