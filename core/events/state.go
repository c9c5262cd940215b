package events

const (
	// KindStateChange identifies a pipeline state transition or mute toggle.
	KindStateChange Kind = "audio_state_change"
	// KindAudioError identifies a non-fatal audio processing failure.
	KindAudioError Kind = "audio_error"
)

// StateChange carries a pipeline state transition. A mute toggle is published
// as a state change with Previous equal to Current.
type StateChange struct {
	Base
	Previous string
	Current  string
	Muted    bool
}

// NewStateChange creates a state change event.
func NewStateChange(previous, current string, muted bool) StateChange {
	return StateChange{Base: NewBase(KindStateChange), Previous: previous, Current: current, Muted: muted}
}

// AudioError carries a failure that was contained to a single operation, such
// as one undecodable chunk or one failed render.
type AudioError struct {
	Base
	Op  string
	Err error
}

// NewAudioError creates an audio error event.
func NewAudioError(op string, err error) AudioError {
	return AudioError{Base: NewBase(KindAudioError), Op: op, Err: err}
}
