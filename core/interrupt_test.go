package pipeline

import (
	"sync/atomic"
	"testing"

	"github.com/Electron910/Vocalis/core/events"
)

func TestInterruptPurgesQueueAndSignals(t *testing.T) {
	sink := &testFrameSink{}
	p, _ := newTestPipeline(t, WithFrameSink(sink))
	recorder := recordAllEvents(p.Events())

	var signals atomic.Int32
	startTestPipeline(t, p, WithInterruptSignalCallback(func() { signals.Add(1) }))

	for i := 0; i < 3; i++ {
		if err := p.EnqueueSpeech(speechWAV(p.config, 0.5), FormatWAV); err != nil {
			t.Fatalf("expected enqueue to succeed, got %v", err)
		}
	}
	drainLoop(t, p)

	p.Interrupt()
	drainLoop(t, p)

	if got := p.QueueLength(); got != 0 {
		t.Fatalf("expected queue purged, got %d", got)
	}
	if got := p.State(); got != StateInactive {
		t.Fatalf("expected settled interrupt to land on inactive, got %s", got)
	}
	if got := sink.clearCount(); got != 1 {
		t.Fatalf("expected device buffer cleared once, got %d", got)
	}
	if got := signals.Load(); got != 1 {
		t.Fatalf("expected one interrupt signal, got %d", got)
	}
	if got := recorder.countOf(events.KindPlaybackEnd); got != 0 {
		t.Fatalf("expected no natural end for an interrupted session, got %d", got)
	}

	stops := recorder.ofKind(events.KindPlaybackStop)
	if len(stops) != 1 {
		t.Fatalf("expected one playback stop, got %d", len(stops))
	}
	stop := stops[0].(events.PlaybackStop)
	start := recorder.ofKind(events.KindPlaybackStart)[0].(events.PlaybackStart)
	if stop.Session != start.Session {
		t.Fatalf("expected stop to name the started session, got %q and %q", stop.Session, start.Session)
	}
	if stop.Previous != StateSpeaking.String() {
		t.Fatalf("expected stop to carry the speaking state, got %q", stop.Previous)
	}
	if stop.Reason != interruptReasonRequested {
		t.Fatalf("expected requested reason, got %q", stop.Reason)
	}
}

func TestInterruptWithNothingPlayingOnlyResetsState(t *testing.T) {
	p, _ := newTestPipeline(t)
	recorder := recordAllEvents(p.Events())
	startTestPipeline(t, p)

	p.Interrupt()
	drainLoop(t, p)

	if got := p.State(); got != StateInactive {
		t.Fatalf("expected idle interrupt to settle on inactive, got %s", got)
	}

	stops := recorder.ofKind(events.KindPlaybackStop)
	if len(stops) != 1 {
		t.Fatalf("expected one playback stop, got %d", len(stops))
	}
	if stop := stops[0].(events.PlaybackStop); stop.Session != "" {
		t.Fatalf("expected no session for an idle interrupt, got %q", stop.Session)
	}

	changes := recorder.ofKind(events.KindStateChange)
	if len(changes) != 2 {
		t.Fatalf("expected interrupted then inactive transitions, got %d", len(changes))
	}
}

func TestBargeInInterruptsWithinTheVoicedFrame(t *testing.T) {
	sink := &testFrameSink{}
	p, clock := newTestPipeline(t, WithFrameSink(sink))
	recorder := recordAllEvents(p.Events())

	var signals atomic.Int32
	startTestPipeline(t, p, WithInterruptSignalCallback(func() { signals.Add(1) }))

	if err := p.EnqueueSpeech(speechWAV(p.config, 0.5), FormatWAV); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	drainLoop(t, p)
	if got := p.State(); got != StateSpeaking {
		t.Fatalf("expected speaking before barge-in, got %s", got)
	}

	// feedFrame waits for the frame task only, so assertions here observe the
	// moment the voiced frame finished: cancelled queue, interrupted state, and
	// the settle transition still pending.
	feedFrame(t, p, clock, voicedFrame(p.config))

	if got := p.State(); got != StateInterrupted {
		t.Fatalf("expected interruption inside the voiced frame, got %s", got)
	}
	if got := p.QueueLength(); got != 0 {
		t.Fatalf("expected queue purged inside the voiced frame, got %d", got)
	}
	if got := sink.clearCount(); got != 1 {
		t.Fatalf("expected device buffer cleared, got %d", got)
	}

	drainLoop(t, p)
	if got := p.State(); got != StateInactive {
		t.Fatalf("expected settle to inactive, got %s", got)
	}
	if got := signals.Load(); got != 1 {
		t.Fatalf("expected one interrupt signal, got %d", got)
	}

	stops := recorder.ofKind(events.KindPlaybackStop)
	if len(stops) != 1 {
		t.Fatalf("expected one playback stop, got %d", len(stops))
	}
	if stop := stops[0].(events.PlaybackStop); stop.Reason != interruptReasonBargeIn {
		t.Fatalf("expected barge-in reason, got %q", stop.Reason)
	}

	if !p.IsSpeechActive() {
		t.Fatalf("expected the barge-in frame to open an utterance")
	}
}

func TestGreetingSuppressesBargeIn(t *testing.T) {
	sink := &testFrameSink{}
	p, clock := newTestPipeline(t, WithFrameSink(sink))
	recorder := recordAllEvents(p.Events())
	startTestPipeline(t, p)

	p.SetGreeting(true)
	if err := p.EnqueueSpeech(speechWAV(p.config, 0.5), FormatWAV); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	drainLoop(t, p)

	feedFrames(t, p, clock, voicedFrame(p.config), 3)

	if got := p.State(); got != StateSpeaking {
		t.Fatalf("expected greeting playback to survive voice, got %s", got)
	}
	if got := recorder.countOf(events.KindPlaybackStop); got != 0 {
		t.Fatalf("expected no interruption during greeting, got %d stops", got)
	}
	for i, event := range recorder.ofKind(events.KindRecordingData) {
		if data := event.(events.RecordingData); data.Voice {
			t.Fatalf("expected frame %d to report no voice while protected", i)
		}
	}
}

func TestProcessingDoesNotSuppressBargeIn(t *testing.T) {
	sink := &testFrameSink{}
	p, clock := newTestPipeline(t, WithFrameSink(sink))
	recorder := recordAllEvents(p.Events())
	startTestPipeline(t, p)

	p.SetProcessing(true)
	if err := p.EnqueueSpeech(speechWAV(p.config, 0.5), FormatWAV); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	drainLoop(t, p)

	feedFrame(t, p, clock, voicedFrame(p.config))
	drainLoop(t, p)

	stops := recorder.ofKind(events.KindPlaybackStop)
	if len(stops) != 1 {
		t.Fatalf("expected barge-in despite processing, got %d stops", len(stops))
	}
	if stop := stops[0].(events.PlaybackStop); stop.Reason != interruptReasonBargeIn {
		t.Fatalf("expected barge-in reason, got %q", stop.Reason)
	}

	// Protected frames interrupt but never accumulate.
	if p.IsSpeechActive() {
		t.Fatalf("expected no utterance opened while protected")
	}
}

func TestPendingInterruptWinsOverStaleCompletion(t *testing.T) {
	sink := &testFrameSink{}
	p, _ := newTestPipeline(t, WithFrameSink(sink))
	recorder := recordAllEvents(p.Events())
	startTestPipeline(t, p)

	if err := p.EnqueueSpeech(speechWAV(p.config, 0.2), FormatWAV); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if err := p.EnqueueSpeech(speechWAV(p.config, 0.4), FormatWAV); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	drainLoop(t, p)

	sink.mu.Lock()
	if len(sink.pending) != 1 {
		sink.mu.Unlock()
		t.Fatalf("expected one in-flight chunk")
	}
	stale := sink.pending[0]
	sink.mu.Unlock()

	p.Interrupt()
	drainLoop(t, p)

	// The device reports the cancelled chunk done after the fact. The chain
	// must not restart and the dead session must not emit an end event.
	stale()
	drainLoop(t, p)

	if got := sink.playedCount(); got != 1 {
		t.Fatalf("expected no chunk rendered after the interrupt, got %d", got)
	}
	if got := recorder.countOf(events.KindPlaybackEnd); got != 0 {
		t.Fatalf("expected no end event for the cancelled session, got %d", got)
	}
	if got := recorder.countOf(events.KindPlaybackStart); got != 1 {
		t.Fatalf("expected one playback start, got %d", got)
	}
	if got := p.State(); got != StateInactive {
		t.Fatalf("expected inactive after stale completion, got %s", got)
	}
}

func TestChunksArrivingDuringInterruptAreDropped(t *testing.T) {
	sink := &testFrameSink{}
	p, _ := newTestPipeline(t, WithFrameSink(sink))
	recorder := recordAllEvents(p.Events())
	startTestPipeline(t, p)

	if err := p.EnqueueSpeech(speechWAV(p.config, 0.2), FormatWAV); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	drainLoop(t, p)

	// The gate holds the loop so the chunk lands behind the interrupt task and
	// ahead of the settle task, the window where straggling chunks of a
	// cancelled stream arrive.
	gate := make(chan struct{})
	p.loop.Post(func() { <-gate })
	p.Interrupt()
	if err := p.EnqueueSpeech(speechWAV(p.config, 0.4), FormatWAV); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	close(gate)
	drainLoop(t, p)

	if got := p.QueueLength(); got != 0 {
		t.Fatalf("expected straggler chunk dropped, got %d queued", got)
	}
	if got := sink.playedCount(); got != 1 {
		t.Fatalf("expected only the first chunk rendered, got %d", got)
	}
	if got := recorder.countOf(events.KindPlaybackStart); got != 1 {
		t.Fatalf("expected no new session from the straggler, got %d starts", got)
	}
	if got := p.State(); got != StateInactive {
		t.Fatalf("expected inactive after settle, got %s", got)
	}
}

func TestDoubleInterruptCollapsesIntoOne(t *testing.T) {
	sink := &testFrameSink{}
	p, _ := newTestPipeline(t, WithFrameSink(sink))
	recorder := recordAllEvents(p.Events())

	var signals atomic.Int32
	startTestPipeline(t, p, WithInterruptSignalCallback(func() { signals.Add(1) }))

	if err := p.EnqueueSpeech(speechWAV(p.config, 0.5), FormatWAV); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	drainLoop(t, p)

	// Both interrupts queue while the gate holds the loop, so the second runs
	// before the first has settled.
	gate := make(chan struct{})
	p.loop.Post(func() { <-gate })
	p.Interrupt()
	p.Interrupt()
	close(gate)
	drainLoop(t, p)

	if got := recorder.countOf(events.KindPlaybackStop); got != 1 {
		t.Fatalf("expected one playback stop, got %d", got)
	}
	if got := signals.Load(); got != 1 {
		t.Fatalf("expected one interrupt signal, got %d", got)
	}
	if got := p.State(); got != StateInactive {
		t.Fatalf("expected inactive after settle, got %s", got)
	}
}
