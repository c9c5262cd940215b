package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sync/atomic"

	"github.com/Electron910/Vocalis/core/audio"
	"github.com/Electron910/Vocalis/core/events"
)

// captureSource normalizes the configured input client behind one facade.
// Without a configured client, capture still "starts" so frames can be fed
// through ProcessCaptureFrame.
type captureSource struct {
	base FrameSource

	// connected reports whether a concrete input client is configured.
	connected atomic.Bool
	// capturing reports whether capture is currently running.
	capturing atomic.Bool
}

func newCaptureSource(client FrameSource) *captureSource {
	source := captureSource{}
	source.Set(client)
	return &source
}

// Set replaces the configured input client. Nil and typed-nil clients are
// treated as unconfigured.
func (c *captureSource) Set(client FrameSource) {
	if c == nil {
		return
	}

	c.base = nil
	c.connected.Store(false)
	c.capturing.Store(false)

	if isNilFrameSource(client) {
		return
	}

	c.base = client
	c.connected.Store(true)
}

func (c *captureSource) IsConfigured() bool { return c != nil && c.connected.Load() }
func (c *captureSource) IsCapturing() bool  { return c != nil && c.capturing.Load() }

func (c *captureSource) EncodingInfo() audio.EncodingInfo {
	if !c.IsConfigured() {
		return audio.GetDefaultEncodingInfo()
	}

	return c.base.EncodingInfo()
}

// Capture starts the configured device. It reports whether this call started
// capture; a second call while capturing is a no-op. A device that fails to
// start is released again best-effort so no handle leaks.
func (c *captureSource) Capture(ctx context.Context, onFrame func(audio.Frame)) (bool, error) {
	if c == nil {
		return false, nil
	}

	if !c.capturing.CompareAndSwap(false, true) {
		return false, nil
	}

	if !c.IsConfigured() {
		return true, nil
	}

	if err := c.base.Capture(ctx, onFrame); err != nil {
		if stopErr := c.base.StopCapture(); stopErr != nil {
			log.Printf("failed to release input device after failed start: %v", stopErr)
		}
		c.capturing.Store(false)
		return false, err
	}

	return true, nil
}

func (c *captureSource) StopCapture() error {
	if c == nil || !c.capturing.CompareAndSwap(true, false) {
		return nil
	}

	if !c.IsConfigured() {
		return nil
	}

	return c.base.StopCapture()
}

func (c *captureSource) Close() error {
	if c == nil {
		return nil
	}

	c.capturing.Store(false)
	if !c.IsConfigured() {
		return nil
	}

	return c.base.Close()
}

// isNilFrameSource detects nil and typed-nil interface values so Set can
// avoid storing unusable interface wrappers as configured clients.
func isNilFrameSource(client FrameSource) bool {
	if client == nil {
		return true
	}

	v := reflect.ValueOf(client)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}

// StartRecording acquires the input device and begins voice detection. It is
// idempotent while capturing. A hardware-acquisition failure publishes an
// audio error, tears down as if stop had been called, and propagates.
func (p *Pipeline) StartRecording(ctx context.Context) error {
	if p == nil {
		return errors.New("pipeline is not initialized")
	}
	if !p.loop.IsRunning() {
		return errors.New("pipeline is not running")
	}
	if ctx == nil {
		ctx = p.baseContext
	}

	started, err := p.capture.Capture(ctx, p.ingestFrame)
	if err != nil {
		err = fmt.Errorf("failed to acquire input device: %w", err)
		p.publish(events.NewAudioError("acquire input device", err))
		return err
	}
	if !started {
		return nil
	}

	p.loop.Post(func() {
		p.setState(StateRecording)
		p.publish(events.NewRecordingStart())
	})

	return nil
}

// StopRecording releases the input device and flushes any pending utterance
// through the normal flush path. Safe to call from any state, including a
// partially-initialized one.
func (p *Pipeline) StopRecording() error {
	if p == nil {
		return nil
	}

	wasCapturing := p.capture.IsCapturing()
	err := p.capture.StopCapture()
	if err != nil {
		err = fmt.Errorf("failed to release input device: %w", err)
	}
	if !wasCapturing {
		return err
	}

	p.loop.Post(p.stopRecordingTask)
	return err
}

// stopRecordingTask runs on the loop after capture stopped. Frames ingested
// before the stop are already ahead of it in the queue, so the flush sees
// everything that was captured. Voice still flagged at this point keeps a
// short utterance instead of discarding it.
func (p *Pipeline) stopRecordingTask() {
	p.flushUtterance()
	p.segmenter.voiceDetected = false
	p.speechActive.Store(false)

	if p.state.current == StateRecording {
		p.setState(StateInactive)
	}
	p.publish(events.NewRecordingStop())
}

// ingestFrame is the device callback path. It must not block: the frame is
// posted to the loop, and dropped with a log line if the queue is full.
func (p *Pipeline) ingestFrame(frame audio.Frame) {
	if !p.capture.IsCapturing() {
		return
	}

	if !p.loop.Post(func() { p.processFrame(frame) }) {
		log.Printf("dropped capture frame: task queue full")
	}
}

// ProcessCaptureFrame feeds one frame through voice detection directly,
// without a configured input device. The pipeline takes ownership of the
// frame's buffer. It reports whether the frame was accepted.
func (p *Pipeline) ProcessCaptureFrame(frame audio.Frame) bool {
	if p == nil || !p.loop.IsRunning() {
		return false
	}

	return p.loop.Post(func() { p.processFrame(frame) })
}
