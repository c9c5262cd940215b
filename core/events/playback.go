package events

const (
	// KindPlaybackStart identifies the start of a playback session.
	KindPlaybackStart Kind = "playback_start"
	// KindPlaybackStop identifies a playback session cut short by an interrupt.
	KindPlaybackStop Kind = "playback_stop"
	// KindPlaybackEnd identifies a playback session that drained naturally.
	KindPlaybackEnd Kind = "playback_end"
)

// PlaybackStart marks the first chunk of a new playback session entering the
// queue. It is emitted once per session, not per chunk.
type PlaybackStart struct {
	Base
	Session string
}

// NewPlaybackStart creates a playback started event.
func NewPlaybackStart(session string) PlaybackStart {
	return PlaybackStart{Base: NewBase(KindPlaybackStart), Session: session}
}

// PlaybackStop marks a playback session interrupted before its queue drained.
// Previous records the state the pipeline was in when the interrupt landed.
type PlaybackStop struct {
	Base
	Session  string
	Previous string
	Reason   string
}

// NewPlaybackStop creates a playback interrupted event.
func NewPlaybackStop(session, previous, reason string) PlaybackStop {
	return PlaybackStop{Base: NewBase(KindPlaybackStop), Session: session, Previous: previous, Reason: reason}
}

// PlaybackEnd marks a playback session whose queue drained without
// interruption.
type PlaybackEnd struct {
	Base
	Session  string
	Previous string
}

// NewPlaybackEnd creates a playback completed event.
func NewPlaybackEnd(session, previous string) PlaybackEnd {
	return PlaybackEnd{Base: NewBase(KindPlaybackEnd), Session: session, Previous: previous}
}
