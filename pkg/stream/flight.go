package stream

// captureState is the single-flight state of one session's capture pipeline.
type captureState int

const (
	stateIdle captureState = iota
	stateCapturing
	stateCapturingPending
)

func (s captureState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateCapturing:
		return "capturing"
	case stateCapturingPending:
		return "capturing+pending"
	default:
		return "unknown"
	}
}

// flight tracks the capture state machine. It does no I/O and is guarded by
// the owning Scheduler's mutex.
type flight struct {
	state        captureState
	pendingForce bool
}

// begin reports whether the caller may start a capture now. When a capture is
// already running the request is folded into the pending replay instead.
func (f *flight) begin(force bool) bool {
	if f.state == stateIdle {
		f.state = stateCapturing
		return true
	}
	f.state = stateCapturingPending
	f.pendingForce = f.pendingForce || force
	return false
}

// finish ends the running capture and returns whether a deferred request must
// be replayed, and with which force flag.
func (f *flight) finish() (replay bool, force bool) {
	replay = f.state == stateCapturingPending
	force = f.pendingForce
	f.state = stateIdle
	f.pendingForce = false
	return replay, force
}
