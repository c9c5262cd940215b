package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Electron910/Vocalis/core/audio"
	"github.com/Electron910/Vocalis/core/events"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Pipeline is the capture/voice-activity/playback engine. All mutable state
// is owned by one run-loop goroutine; hardware callbacks and public controls
// post tasks onto it, and the handful of externally readable flags are
// mirrored in atomics.
type Pipeline struct {
	config DetectionConfig

	loop *taskLoop

	// capture is the input facade used to normalize device wiring.
	capture *captureSource
	// sink is the output facade used to normalize device wiring.
	sink *frameSink

	segmenter   segmenterState
	accumulator utteranceAccumulator
	scheduler   playbackScheduler
	state       stateTracker

	// processing, greeting and visionProcessing are the protection flags
	// collaborators set while a remote round-trip is in flight. While any is
	// raised, detected voice is visualized but neither accumulated nor sent.
	processing       atomic.Bool
	greeting         atomic.Bool
	visionProcessing atomic.Bool

	muted        atomic.Bool
	interrupted  atomic.Bool
	speechActive atomic.Bool
	// lastEnergy holds the most recent frame's measured energy as float64
	// bits.
	lastEnergy atomic.Uint64

	bus *events.Bus

	startOptions StartOptions
	baseContext  context.Context
	closeOnce    sync.Once

	now func() time.Time
}

// NewPipeline builds a pipeline from the default detection tuning and the
// given options.
func NewPipeline(opts ...PipelineOption) (*Pipeline, error) {
	p := &Pipeline{
		config:      DefaultDetectionConfig(),
		loop:        newTaskLoop(),
		bus:         events.NewBus(),
		baseContext: context.Background(),
		now:         time.Now,
	}
	p.capture = newCaptureSource(nil)
	p.sink = newFrameSink(nil)

	for _, opt := range opts {
		opt(p)
	}

	if err := p.config.validate(); err != nil {
		return nil, fmt.Errorf("invalid detection config: %w", err)
	}

	p.segmenter.filter = audio.NewLowPassFilter(p.config.LowPassCutoff, p.config.SampleRate)
	p.accumulator.sampleRate = p.config.SampleRate

	return p, nil
}

// Start launches the run loop. ctx is the base context for the pipeline's
// lifetime; its cancellation closes the pipeline.
//
// Contract: call Start at most once per pipeline instance.
func (p *Pipeline) Start(ctx context.Context, opts ...StartOption) error {
	if p == nil {
		return errors.New("pipeline is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.startOptions = StartOptions{}
	for _, opt := range opts {
		opt(&p.startOptions)
	}

	p.baseContext = ctx
	if started := p.loop.Start(); !started {
		return errors.New("pipeline already started or closed")
	}

	go func() {
		select {
		case <-ctx.Done():
			p.Close()
		case <-p.loop.done:
		}
	}()

	return nil
}

// Close shuts the pipeline down: capture stops, pending voice flushes through
// the normal path, playback clears, devices are released, and the run loop
// drains. Idempotent.
func (p *Pipeline) Close() {
	if p == nil {
		return
	}

	p.closeOnce.Do(func() {
		if err := p.ReleaseHardware(); err != nil {
			recordedErr := fmt.Errorf("failed to release hardware on close: %w", err)
			span := trace.SpanFromContext(p.baseContext)
			span.RecordError(recordedErr)
			span.SetStatus(codes.Error, recordedErr.Error())
		}

		// Stopping through a posted task lets everything already queued,
		// including the stop-recording flush, run first.
		if !p.loop.IsRunning() || !p.loop.Post(p.loop.Stop) {
			p.loop.Stop()
		}
		p.loop.AwaitDone()
	})
}

// ReleaseHardware stops capture and playback and closes the configured
// devices; it fully relinquishes the hardware rather than muting it. The run
// loop keeps going and devices can be rewired afterwards.
func (p *Pipeline) ReleaseHardware() error {
	if p == nil {
		return nil
	}

	err := p.StopRecording()
	p.Interrupt()

	if closeErr := p.capture.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to close input device: %w", closeErr)
	}
	if closeErr := p.sink.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to close output device: %w", closeErr)
	}

	p.capture.Set(nil)
	p.sink.Set(nil)
	return err
}

// Events returns the bus collaborators subscribe to for audio notifications.
func (p *Pipeline) Events() *events.Bus {
	if p == nil {
		return nil
	}

	return p.bus
}

func (p *Pipeline) publish(event events.Event) {
	p.bus.Publish(event)
}

// setState runs on the loop and is the only state mutation path. It reports
// the previous state so notifications can carry it.
func (p *Pipeline) setState(next State) (previous State) {
	previous, changed := p.state.set(next)
	if !changed {
		return previous
	}

	muted := p.muted.Load()
	p.publish(events.NewStateChange(previous.String(), next.String(), muted))
	if p.startOptions.onStateChange != nil {
		p.startOptions.onStateChange(previous, next, muted)
	}

	return previous
}

// State reports the current pipeline state.
func (p *Pipeline) State() State {
	if p == nil {
		return StateInactive
	}

	return p.state.load()
}

// IsRecording reports whether capture is running.
func (p *Pipeline) IsRecording() bool { return p != nil && p.capture.IsCapturing() }

// IsSpeechActive reports whether voice is currently flagged.
func (p *Pipeline) IsSpeechActive() bool { return p != nil && p.speechActive.Load() }

// LastRMS reports the measured energy of the most recently processed frame,
// for pollers that do not subscribe to recording data events.
func (p *Pipeline) LastRMS() float64 {
	if p == nil {
		return 0
	}

	return math.Float64frombits(p.lastEnergy.Load())
}

// QueueLength reports the number of chunks waiting behind the one rendering.
func (p *Pipeline) QueueLength() int {
	if p == nil {
		return 0
	}

	return int(p.scheduler.queueLen.Load())
}

// SetMuted toggles the input track independent of pipeline state. While
// muted, captured frames are replaced with silence before detection. The
// intended state is recorded even with no active input device and applies
// immediately once capture runs.
func (p *Pipeline) SetMuted(muted bool) {
	if p == nil {
		return
	}

	if p.muted.Swap(muted) == muted {
		return
	}

	state := p.State()
	p.publish(events.NewStateChange(state.String(), state.String(), muted))
	if p.startOptions.onStateChange != nil {
		p.startOptions.onStateChange(state, state, muted)
	}
}

// ToggleMute flips the mute flag and reports the new value.
func (p *Pipeline) ToggleMute() bool {
	if p == nil {
		return false
	}

	muted := !p.muted.Load()
	p.SetMuted(muted)
	return muted
}

// IsMuted reports whether the input track is muted.
func (p *Pipeline) IsMuted() bool { return p != nil && p.muted.Load() }

// SetProcessing marks a remote request in flight.
func (p *Pipeline) SetProcessing(processing bool) { p.processing.Store(processing) }

// SetGreeting marks greeting playback, which voice neither accumulates into
// nor interrupts.
func (p *Pipeline) SetGreeting(greeting bool) { p.greeting.Store(greeting) }

// SetVisionProcessing marks image analysis in flight.
func (p *Pipeline) SetVisionProcessing(vision bool) { p.visionProcessing.Store(vision) }

func (p *Pipeline) protectionActive() bool {
	return p.processing.Load() || p.greeting.Load() || p.visionProcessing.Load()
}
