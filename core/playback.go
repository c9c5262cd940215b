package pipeline

import (
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/Electron910/Vocalis/core/audio"
	"github.com/Electron910/Vocalis/core/events"
	"github.com/google/uuid"
)

const (
	// FormatWAV labels chunks carried in a RIFF/WAV container.
	FormatWAV = "wav"
	// FormatLinear16 labels raw little-endian PCM16 chunks, assumed to be at
	// the output device's sample rate.
	FormatLinear16 = "linear16"
)

// frameSink normalizes the configured output client behind one facade so the
// scheduler can render without caring whether hardware is wired. Without a
// configured client, chunks complete immediately so the queue keeps
// progressing.
type frameSink struct {
	base FrameSink

	// connected reports whether a concrete output client is configured.
	connected atomic.Bool
}

func newFrameSink(client FrameSink) *frameSink {
	sink := frameSink{}
	sink.Set(client)
	return &sink
}

// Set replaces the configured output client. Nil and typed-nil clients are
// treated as unconfigured.
func (s *frameSink) Set(client FrameSink) {
	if s == nil {
		return
	}

	s.base = nil
	s.connected.Store(false)

	if isNilFrameSink(client) {
		return
	}

	s.base = client
	s.connected.Store(true)
}

func (s *frameSink) IsConfigured() bool { return s != nil && s.connected.Load() }

func (s *frameSink) EncodingInfo() audio.EncodingInfo {
	if !s.IsConfigured() {
		return audio.GetDefaultEncodingInfo()
	}

	return s.base.EncodingInfo()
}

func (s *frameSink) Play(pcm []byte, onPlayed func()) error {
	if !s.IsConfigured() {
		if onPlayed != nil {
			onPlayed()
		}
		return nil
	}

	return s.base.Play(pcm, onPlayed)
}

func (s *frameSink) Clear() {
	if !s.IsConfigured() {
		return
	}

	s.base.Clear()
}

func (s *frameSink) Close() error {
	if !s.IsConfigured() {
		return nil
	}

	return s.base.Close()
}

// isNilFrameSink detects nil and typed-nil interface values so Set can avoid
// storing unusable interface wrappers as configured clients.
func isNilFrameSink(client FrameSink) bool {
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

type playbackChunk struct {
	pcm        []byte
	sampleRate int
	speech     bool
}

// playbackScheduler is the loop-owned FIFO of decoded chunks. rendering marks
// a chunk handed to the sink whose completion has not come back yet; session
// names one continuous playback stretch from first enqueue to drain.
type playbackScheduler struct {
	queue      []playbackChunk
	rendering  bool
	session    string
	warnedRate bool

	// renderingSpeech is the generic "speaking" flag barge-in checks. It
	// outlives the state enum's Speaking value for the rest of the session,
	// even if a later transition overwrites the enum.
	renderingSpeech bool

	// queueLen mirrors len(queue) for reads off the loop goroutine.
	queueLen atomic.Int32
}

// EnqueueSpeech queues a synthesized speech chunk for gap-free playback.
// Speech playback puts the pipeline in the Speaking state, which is the state
// barge-in applies to.
func (p *Pipeline) EnqueueSpeech(blob []byte, format string) error {
	return p.enqueue(blob, format, true)
}

// EnqueuePlayback queues a generic audio blob, such as a notification sound.
// It renders through the same queue but in the Playing state, which barge-in
// leaves alone.
func (p *Pipeline) EnqueuePlayback(blob []byte, format string) error {
	return p.enqueue(blob, format, false)
}

func (p *Pipeline) enqueue(blob []byte, format string, speech bool) error {
	if p == nil {
		return errors.New("pipeline is not initialized")
	}

	chunk, err := p.decodeChunk(blob, format)
	if err != nil {
		err = fmt.Errorf("failed to decode playback chunk: %w", err)
		p.publish(events.NewAudioError("decode chunk", err))
		return err
	}
	chunk.speech = speech

	if !p.loop.Post(func() { p.enqueueChunk(chunk) }) {
		return errors.New("pipeline is not running")
	}

	return nil
}

func (p *Pipeline) decodeChunk(blob []byte, format string) (playbackChunk, error) {
	switch format {
	case FormatWAV, "":
		pcm, sampleRate, err := audio.DecodeWAVPCM(blob)
		if err != nil {
			return playbackChunk{}, err
		}
		return playbackChunk{pcm: pcm, sampleRate: sampleRate}, nil
	case FormatLinear16, "pcm":
		return playbackChunk{pcm: blob, sampleRate: p.sink.EncodingInfo().SampleRate}, nil
	}

	return playbackChunk{}, fmt.Errorf("unsupported chunk format %q", format)
}

// enqueueChunk runs on the loop. The first chunk of a session starts
// rendering inline because first-chunk latency matters; later chunks wait
// their turn. Chunks arriving while an interrupt is pending belong to the
// cancelled session and are dropped.
func (p *Pipeline) enqueueChunk(chunk playbackChunk) {
	if p.interrupted.Load() {
		return
	}

	wasPlaying := p.scheduler.rendering || len(p.scheduler.queue) > 0
	p.scheduler.queue = append(p.scheduler.queue, chunk)
	p.scheduler.queueLen.Store(int32(len(p.scheduler.queue)))

	if !wasPlaying {
		p.scheduler.session = uuid.NewString()
		p.scheduler.warnedRate = false
		p.publish(events.NewPlaybackStart(p.scheduler.session))
		p.renderNext()
	}
}

// renderNext runs on the loop and hands the head chunk to the sink. The
// completion comes back as a posted task, never inline, so rapid short chunks
// cannot grow the stack.
func (p *Pipeline) renderNext() {
	if p.interrupted.Load() || p.scheduler.rendering {
		return
	}
	if len(p.scheduler.queue) == 0 {
		p.finishPlayback()
		return
	}

	chunk := p.scheduler.queue[0]
	p.scheduler.queue = p.scheduler.queue[1:]
	p.scheduler.queueLen.Store(int32(len(p.scheduler.queue)))

	if deviceRate := p.sink.EncodingInfo().SampleRate; chunk.sampleRate != deviceRate && !p.scheduler.warnedRate {
		p.scheduler.warnedRate = true
		logger.Warn("playback chunk sample rate differs from output device",
			"chunk_sample_rate", chunk.sampleRate,
			"device_sample_rate", deviceRate,
		)
	}

	p.scheduler.rendering = true
	p.scheduler.renderingSpeech = chunk.speech
	if chunk.speech {
		p.setState(StateSpeaking)
	} else {
		p.setState(StatePlaying)
	}

	if err := p.sink.Play(chunk.pcm, func() { p.loop.Post(p.chunkPlayed) }); err != nil {
		p.scheduler.rendering = false
		p.publish(events.NewAudioError("render chunk", fmt.Errorf("failed to render chunk: %w", err)))
		p.loop.Post(p.renderNext)
	}
}

// chunkPlayed runs on the loop when the sink reports the rendering chunk
// done. A pending interrupt wins here: the chain stops and the settle task
// owns the remaining transition.
func (p *Pipeline) chunkPlayed() {
	p.scheduler.rendering = false

	if p.interrupted.Load() {
		return
	}

	if len(p.scheduler.queue) > 0 {
		p.loop.Post(p.renderNext)
		return
	}

	p.finishPlayback()
}

// finishPlayback runs on the loop when the session's queue drained naturally.
func (p *Pipeline) finishPlayback() {
	if p.scheduler.session == "" {
		return
	}

	session := p.scheduler.session
	p.scheduler.session = ""
	p.scheduler.renderingSpeech = false

	previous := p.setState(StateInactive)
	p.publish(events.NewPlaybackEnd(session, previous.String()))
}
