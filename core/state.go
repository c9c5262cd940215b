package pipeline

import "sync/atomic"

// State is the pipeline lifecycle state. Speaking and Playing both mean a
// playback session is rendering; Speaking is synthesized speech specifically,
// which is what barge-in applies to. Interrupted is the transient state
// between an interrupt landing and the pipeline settling back to Inactive.
type State int32

const (
	StateInactive State = iota
	StateRecording
	StatePlaying
	StateSpeaking
	StateInterrupted
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateRecording:
		return "recording"
	case StatePlaying:
		return "playing"
	case StateSpeaking:
		return "speaking"
	case StateInterrupted:
		return "interrupted"
	}

	return "unknown"
}

// stateTracker owns the pipeline state. Writes happen only on the run loop
// goroutine; the atomic mirror serves reads from everywhere else.
type stateTracker struct {
	current State
	mirror  atomic.Int32
}

func (t *stateTracker) set(next State) (previous State, changed bool) {
	previous = t.current
	if previous == next {
		return previous, false
	}

	t.current = next
	t.mirror.Store(int32(next))
	return previous, true
}

func (t *stateTracker) load() State {
	return State(t.mirror.Load())
}
