package pipeline

import (
	"errors"
	"testing"

	"github.com/Electron910/Vocalis/core/audio"
	"github.com/Electron910/Vocalis/core/events"
)

func firstSampleOf(t *testing.T, pcm []byte) float32 {
	t.Helper()
	samples := audio.PCM16BytesToFloat32(pcm)
	if len(samples) == 0 {
		t.Fatalf("expected non-empty chunk")
	}
	return samples[0]
}

func TestFirstChunkRendersInlineAtEnqueue(t *testing.T) {
	sink := &testFrameSink{}
	p, _ := newTestPipeline(t, WithFrameSink(sink))
	recorder := recordAllEvents(p.Events())
	startTestPipeline(t, p)

	if err := p.EnqueueSpeech(speechWAV(p.config, 0.5), FormatWAV); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	drainLoop(t, p)

	if got := sink.playedCount(); got != 1 {
		t.Fatalf("expected first chunk handed to sink immediately, got %d", got)
	}
	if got := p.State(); got != StateSpeaking {
		t.Fatalf("expected speaking state while rendering, got %s", got)
	}
	if got := recorder.countOf(events.KindPlaybackStart); got != 1 {
		t.Fatalf("expected one playback start, got %d", got)
	}
	if got := p.QueueLength(); got != 0 {
		t.Fatalf("expected empty queue behind the rendering chunk, got %d", got)
	}
}

func TestChunksRenderInOrderWithOneStartPerSession(t *testing.T) {
	sink := &testFrameSink{}
	p, _ := newTestPipeline(t, WithFrameSink(sink))
	recorder := recordAllEvents(p.Events())
	startTestPipeline(t, p)

	values := []float32{0.2, 0.4, 0.6}
	for _, value := range values {
		if err := p.EnqueueSpeech(speechWAV(p.config, value), FormatWAV); err != nil {
			t.Fatalf("expected enqueue to succeed, got %v", err)
		}
	}
	drainLoop(t, p)

	if got := p.QueueLength(); got != 2 {
		t.Fatalf("expected two chunks waiting, got %d", got)
	}

	for sink.completeNext() {
		drainLoop(t, p)
	}

	sink.mu.Lock()
	played := append([][]byte(nil), sink.played...)
	sink.mu.Unlock()

	if len(played) != len(values) {
		t.Fatalf("expected %d chunks rendered, got %d", len(values), len(played))
	}
	for i, want := range values {
		got := firstSampleOf(t, played[i])
		if diff := got - want; diff > 0.01 || diff < -0.01 {
			t.Fatalf("expected chunk %d to carry value %f, got %f", i, want, got)
		}
	}

	if got := recorder.countOf(events.KindPlaybackStart); got != 1 {
		t.Fatalf("expected one playback start per session, got %d", got)
	}
	if got := recorder.countOf(events.KindPlaybackEnd); got != 1 {
		t.Fatalf("expected one playback end, got %d", got)
	}
	if got := p.State(); got != StateInactive {
		t.Fatalf("expected inactive after drain, got %s", got)
	}

	start := recorder.ofKind(events.KindPlaybackStart)[0].(events.PlaybackStart)
	end := recorder.ofKind(events.KindPlaybackEnd)[0].(events.PlaybackEnd)
	if start.Session == "" || start.Session != end.Session {
		t.Fatalf("expected matching session ids, got %q and %q", start.Session, end.Session)
	}
	if end.Previous != StateSpeaking.String() {
		t.Fatalf("expected playback end to carry the speaking state, got %q", end.Previous)
	}
}

func TestSecondSessionEmitsFreshStart(t *testing.T) {
	sink := &testFrameSink{}
	p, _ := newTestPipeline(t, WithFrameSink(sink))
	recorder := recordAllEvents(p.Events())
	startTestPipeline(t, p)

	for session := 0; session < 2; session++ {
		if err := p.EnqueueSpeech(speechWAV(p.config, 0.5), FormatWAV); err != nil {
			t.Fatalf("expected enqueue to succeed, got %v", err)
		}
		drainLoop(t, p)
		sink.completeNext()
		drainLoop(t, p)
	}

	if got := recorder.countOf(events.KindPlaybackStart); got != 2 {
		t.Fatalf("expected a start per session, got %d", got)
	}
	starts := recorder.ofKind(events.KindPlaybackStart)
	first := starts[0].(events.PlaybackStart).Session
	second := starts[1].(events.PlaybackStart).Session
	if first == second {
		t.Fatalf("expected distinct session ids, both were %q", first)
	}
}

func TestGenericPlaybackUsesPlayingState(t *testing.T) {
	sink := &testFrameSink{}
	p, _ := newTestPipeline(t, WithFrameSink(sink))
	recorder := recordAllEvents(p.Events())
	startTestPipeline(t, p)

	if err := p.EnqueuePlayback(speechWAV(p.config, 0.5), FormatWAV); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	drainLoop(t, p)

	if got := p.State(); got != StatePlaying {
		t.Fatalf("expected playing state for generic audio, got %s", got)
	}

	sink.completeNext()
	drainLoop(t, p)

	end := recorder.ofKind(events.KindPlaybackEnd)[0].(events.PlaybackEnd)
	if end.Previous != StatePlaying.String() {
		t.Fatalf("expected playback end to carry the playing state, got %q", end.Previous)
	}
}

func TestDecodeFailureSkipsChunkWithoutAbortingStream(t *testing.T) {
	sink := &testFrameSink{}
	p, _ := newTestPipeline(t, WithFrameSink(sink))
	recorder := recordAllEvents(p.Events())
	startTestPipeline(t, p)

	if err := p.EnqueueSpeech(speechWAV(p.config, 0.2), FormatWAV); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if err := p.EnqueueSpeech([]byte{0x01, 0x02, 0x03}, FormatWAV); err == nil {
		t.Fatalf("expected malformed chunk to fail decode")
	}
	if err := p.EnqueueSpeech(speechWAV(p.config, 0.4), FormatWAV); err != nil {
		t.Fatalf("expected stream to continue after bad chunk, got %v", err)
	}
	drainLoop(t, p)

	for sink.completeNext() {
		drainLoop(t, p)
	}

	if got := sink.playedCount(); got != 2 {
		t.Fatalf("expected two good chunks rendered, got %d", got)
	}
	if got := recorder.countOf(events.KindAudioError); got != 1 {
		t.Fatalf("expected one audio error, got %d", got)
	}
	if got := recorder.countOf(events.KindPlaybackEnd); got != 1 {
		t.Fatalf("expected session to end normally, got %d end events", got)
	}
}

func TestUnconfiguredSinkCompletesChunksImmediately(t *testing.T) {
	p, _ := newTestPipeline(t)
	recorder := recordAllEvents(p.Events())
	startTestPipeline(t, p)

	if err := p.EnqueueSpeech(speechWAV(p.config, 0.5), FormatWAV); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if err := p.EnqueueSpeech(speechWAV(p.config, 0.5), FormatWAV); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	drainLoop(t, p)

	if got := p.State(); got != StateInactive {
		t.Fatalf("expected queue to drain without hardware, got %s", got)
	}
	if got := recorder.countOf(events.KindPlaybackEnd); got != 1 {
		t.Fatalf("expected one playback end, got %d", got)
	}
	if got := p.QueueLength(); got != 0 {
		t.Fatalf("expected empty queue, got %d", got)
	}
}

func TestLinear16ChunksBypassContainerParsing(t *testing.T) {
	sink := &testFrameSink{}
	p, _ := newTestPipeline(t, WithFrameSink(sink))
	startTestPipeline(t, p)

	pcm := audio.Float32ToPCM16Bytes([]float32{0.25, -0.25})
	if err := p.EnqueueSpeech(pcm, FormatLinear16); err != nil {
		t.Fatalf("expected raw chunk to enqueue, got %v", err)
	}
	drainLoop(t, p)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.played) != 1 {
		t.Fatalf("expected one chunk rendered, got %d", len(sink.played))
	}
	if len(sink.played[0]) != len(pcm) {
		t.Fatalf("expected raw payload passed through, got %d bytes", len(sink.played[0]))
	}
}

func TestRenderFailureEndsSessionAndLeavesPipelineUsable(t *testing.T) {
	sink := &testFrameSink{}
	p, _ := newTestPipeline(t, WithFrameSink(sink))
	recorder := recordAllEvents(p.Events())
	startTestPipeline(t, p)

	sink.mu.Lock()
	sink.playErr = errors.New("device gone")
	sink.mu.Unlock()

	if err := p.EnqueueSpeech(speechWAV(p.config, 0.2), FormatWAV); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	drainLoop(t, p)

	if got := recorder.countOf(events.KindAudioError); got != 1 {
		t.Fatalf("expected render failure to publish an audio error, got %d", got)
	}
	if got := recorder.countOf(events.KindPlaybackEnd); got != 1 {
		t.Fatalf("expected failed session to end, got %d end events", got)
	}
	if got := p.State(); got != StateInactive {
		t.Fatalf("expected inactive after failed session, got %s", got)
	}

	sink.mu.Lock()
	sink.playErr = nil
	sink.mu.Unlock()

	if err := p.EnqueueSpeech(speechWAV(p.config, 0.4), FormatWAV); err != nil {
		t.Fatalf("expected enqueue to succeed after recovery, got %v", err)
	}
	drainLoop(t, p)
	sink.completeNext()
	drainLoop(t, p)

	if got := sink.playedCount(); got != 1 {
		t.Fatalf("expected recovered chunk to render, got %d", got)
	}
	if got := recorder.countOf(events.KindPlaybackStart); got != 2 {
		t.Fatalf("expected a fresh session after recovery, got %d starts", got)
	}
}
