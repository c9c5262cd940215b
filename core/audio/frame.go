package audio

import "time"

// Frame is one capture callback's worth of mono audio samples in the
// [-1, 1] range. Frames are treated as immutable once produced; anything
// that keeps samples past the callback copies them first.
type Frame struct {
	Data       []float32
	SampleRate int
	Channels   int
}

// Duration reports the playback time covered by the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}

	return time.Duration(float64(len(f.Data)) / float64(f.SampleRate) * float64(time.Second))
}

// Clone returns a frame backed by its own copy of the sample data.
func (f Frame) Clone() Frame {
	data := make([]float32, len(f.Data))
	copy(data, f.Data)
	return Frame{Data: data, SampleRate: f.SampleRate, Channels: f.Channels}
}
