package events

const (
	// KindRecordingStart identifies the start of microphone capture.
	KindRecordingStart Kind = "recording_start"
	// KindRecordingStop identifies the end of microphone capture.
	KindRecordingStop Kind = "recording_stop"
	// KindRecordingData identifies a per-frame capture measurement.
	KindRecordingData Kind = "recording_data"
)

// RecordingStart marks the start of microphone capture.
type RecordingStart struct{ Base }

// NewRecordingStart creates a recording started event.
func NewRecordingStart() RecordingStart {
	return RecordingStart{Base: NewBase(KindRecordingStart)}
}

// RecordingStop marks the end of microphone capture.
type RecordingStop struct{ Base }

// NewRecordingStop creates a recording stopped event.
func NewRecordingStop() RecordingStop {
	return RecordingStop{Base: NewBase(KindRecordingStop)}
}

// RecordingData carries one captured frame together with its measured energy
// and the voice decision for that frame. The frame is the raw capture buffer,
// not the low-pass filtered copy used for measurement.
type RecordingData struct {
	Base
	Frame  []float32
	Energy float64
	Voice  bool
}

// NewRecordingData creates a per-frame capture measurement event.
func NewRecordingData(frame []float32, energy float64, voice bool) RecordingData {
	return RecordingData{Base: NewBase(KindRecordingData), Frame: frame, Energy: energy, Voice: voice}
}
