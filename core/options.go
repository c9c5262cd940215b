package pipeline

import (
	"context"

	"github.com/Electron910/Vocalis/core/audio"
)

type PipelineOption func(*Pipeline)

// FrameSource is the capture side of the hardware contract. Capture must not
// block: implementations deliver frames from their own callback or reader
// goroutine until StopCapture or Close. Delivered frames are owned by the
// pipeline, so implementations must hand over a fresh buffer per frame.
type FrameSource interface {
	Capture(ctx context.Context, onFrame func(frame audio.Frame)) error
	StopCapture() error
	EncodingInfo() audio.EncodingInfo
	Close() error
}

// WithFrameSource configures the hardware input the pipeline captures from.
func WithFrameSource(source FrameSource) PipelineOption {
	return func(p *Pipeline) { p.capture.Set(source) }
}

// FrameSink is the playback side of the hardware contract. Play appends PCM16
// audio to the device buffer and invokes onPlayed once the playhead passes the
// end of that chunk. Clear drops buffered audio that has not rendered yet,
// together with its pending callbacks.
type FrameSink interface {
	Play(pcm []byte, onPlayed func()) error
	Clear()
	EncodingInfo() audio.EncodingInfo
	Close() error
}

// WithFrameSink configures the hardware output playback renders to.
func WithFrameSink(sink FrameSink) PipelineOption {
	return func(p *Pipeline) { p.sink.Set(sink) }
}

// WithDetectionConfig overrides the default voice detection tuning.
func WithDetectionConfig(config DetectionConfig) PipelineOption {
	return func(p *Pipeline) { p.config = config }
}

type StartOptions struct {
	onUtterance       func(utterance Utterance)
	onInterruptSignal func()
	onStateChange     func(previous, current State, muted bool)
}

type StartOption func(*StartOptions)

// WithUtteranceCallback registers a callback for flushed utterances. The
// callback receives encoded WAV ready for transport and runs inline on the
// run loop, so it should hand off rather than block.
func WithUtteranceCallback(callback func(utterance Utterance)) StartOption {
	return func(o *StartOptions) { o.onUtterance = callback }
}

// WithInterruptSignalCallback registers a callback invoked whenever playback
// is interrupted, locally or by request, so the transport side can cancel any
// synthesis still queued remotely.
func WithInterruptSignalCallback(callback func()) StartOption {
	return func(o *StartOptions) { o.onInterruptSignal = callback }
}

// WithStateChangeCallback registers a callback for pipeline state transitions
// and mute toggles. Mute toggles report previous equal to current.
func WithStateChangeCallback(callback func(previous, current State, muted bool)) StartOption {
	return func(o *StartOptions) { o.onStateChange = callback }
}
