package main

import (
	"context"
	"fmt"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	pipeline "github.com/Electron910/Vocalis/core"
	"github.com/Electron910/Vocalis/core/events"
	"github.com/Electron910/Vocalis/core/transport"
	"github.com/Electron910/Vocalis/core/transport/backend"
)

// session glues the three sides of the application together: the audio
// pipeline produces utterances and consumes synthesized speech, the backend
// client carries the conversation, and the terminal program displays it.
// Everything crossing between them goes through here.
type session struct {
	config   Config
	pipeline *pipeline.Pipeline
	client   *backend.Client

	// program is attached after construction; events arriving before that are
	// dropped rather than buffered.
	program atomic.Pointer[tea.Program]

	// processing mirrors the server round-trip window during which captured
	// voice must not open a fresh utterance.
	processing atomic.Bool
	// greeting mirrors the uninterruptible greeting playback window.
	greeting atomic.Bool

	followup     *followupTimer
	unsubscribes []func()
}

// newSession dials the backend and wires its callbacks into the pipeline and
// the terminal program.
func newSession(ctx context.Context, config Config, p *pipeline.Pipeline) (*session, error) {
	s := &session{config: config, pipeline: p}
	s.followup = newFollowupTimer(config.followupDelay(), s.sendFollowup)

	client, err := backend.Dial(ctx, config.Server.URL,
		transport.WithTranscriptionCallback(s.onTranscription),
		transport.WithResponseTextCallback(s.onResponseText),
		transport.WithSpeechAudioCallback(s.onSpeechChunk),
		transport.WithSpeechEndedCallback(s.onSpeechEnded),
		transport.WithStatusCallback(s.onStatus),
		transport.WithErrorCallback(s.onServerError),
		transport.WithSystemPromptCallback(s.onSystemPrompt),
	)
	if err != nil {
		return nil, err
	}
	s.client = client

	s.subscribeEvents()
	return s, nil
}

// Start launches the pipeline, begins capturing, and opens the conversation.
func (s *session) Start(ctx context.Context) error {
	err := s.pipeline.Start(ctx,
		pipeline.WithUtteranceCallback(s.onUtterance),
		pipeline.WithInterruptSignalCallback(s.onInterrupted),
	)
	if err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	if err := s.pipeline.StartRecording(ctx); err != nil {
		return err
	}

	if name := s.config.Conversation.UserName; name != "" {
		if err := s.client.UpdateUserProfile(name); err != nil {
			s.notifyError(err)
		}
	}
	if s.config.Conversation.Greeting {
		if err := s.RequestGreeting(); err != nil {
			s.notifyError(err)
		}
	}

	s.followup.Reset()
	return nil
}

// Close releases the conversation side. The pipeline and devices are owned by
// main and closed there.
func (s *session) Close() {
	if s == nil {
		return
	}

	s.followup.Stop()
	for _, unsubscribe := range s.unsubscribes {
		unsubscribe()
	}
	s.unsubscribes = nil

	if err := s.client.Close(); err != nil {
		logger.Warn("failed to close backend session", "error", err)
	}
}

func (s *session) attachProgram(program *tea.Program) {
	s.program.Store(program)
}

// Done closes when the backend connection is gone.
func (s *session) Done() <-chan struct{} {
	return s.client.Done()
}

func (s *session) send(msg tea.Msg) {
	if program := s.program.Load(); program != nil {
		program.Send(msg)
	}
}

func (s *session) notifyError(err error) {
	s.send(noticeMsg{text: err.Error(), isError: true})
}

// subscribeEvents forwards pipeline notifications into the terminal program
// and keeps the session flags honest.
func (s *session) subscribeEvents() {
	bus := s.pipeline.Events()

	s.unsubscribes = append(s.unsubscribes,
		bus.Subscribe(events.KindStateChange, func(event events.Event) {
			change := event.(events.StateChange)
			s.send(stateMsg{previous: change.Previous, current: change.Current, muted: change.Muted})
		}),
		bus.Subscribe(events.KindRecordingData, func(event events.Event) {
			data := event.(events.RecordingData)
			s.send(meterMsg{energy: data.Energy, voice: data.Voice})
		}),
		bus.Subscribe(events.KindPlaybackEnd, func(events.Event) { s.onPlaybackSettled() }),
		bus.Subscribe(events.KindPlaybackStop, func(events.Event) { s.onPlaybackSettled() }),
		bus.Subscribe(events.KindAudioError, func(event events.Event) {
			audioError := event.(events.AudioError)
			s.notifyError(audioError.Err)
		}),
	)
}

// onUtterance runs on the pipeline loop when a spoken turn is flushed; it
// must hand off and return.
func (s *session) onUtterance(utterance pipeline.Utterance) {
	s.setProcessing(true)
	s.followup.Reset()

	go func() {
		if err := s.client.SendUtterance(utterance.Audio); err != nil {
			s.setProcessing(false)
			s.notifyError(err)
		}
	}()
}

// onInterrupted runs whenever playback is cancelled, by barge-in or by
// request. The server stops synthesizing and the processing window closes so
// the user's interjection is captured as a fresh utterance.
func (s *session) onInterrupted() {
	s.setProcessing(false)

	go func() {
		if err := s.client.Interrupt(); err != nil {
			s.notifyError(err)
		}
	}()
}

func (s *session) onPlaybackSettled() {
	if s.greeting.CompareAndSwap(true, false) {
		s.pipeline.SetGreeting(false)
	}
	s.followup.Reset()
}

func (s *session) onTranscription(text string) {
	s.send(transcriptMsg{speaker: speakerUser, text: text})
}

func (s *session) onResponseText(text string) {
	s.send(transcriptMsg{speaker: speakerAssistant, text: text})
}

func (s *session) onSpeechChunk(audio []byte, format string) {
	// Decode failures already publish an audio error through the bus.
	_ = s.pipeline.EnqueueSpeech(audio, format)
}

func (s *session) onSpeechEnded() {
	s.setProcessing(false)
}

func (s *session) onStatus(status string) {
	s.send(statusMsg{status: status})
}

func (s *session) onServerError(err error) {
	// A failed round-trip would otherwise leave the processing window stuck
	// shut and the microphone effectively dead.
	s.setProcessing(false)
	if s.greeting.CompareAndSwap(true, false) {
		s.pipeline.SetGreeting(false)
	}
	s.notifyError(err)
}

func (s *session) onSystemPrompt(prompt string) {
	s.send(noticeMsg{text: "system prompt: " + prompt})
}

func (s *session) setProcessing(processing bool) {
	if s.processing.Swap(processing) == processing {
		return
	}

	s.pipeline.SetProcessing(processing)
	s.send(processingMsg{active: processing})
}

// sendFollowup fires from the idle timer. It reports whether a follow-up was
// actually requested so the timer knows whether to escalate the tier.
func (s *session) sendFollowup(tier int) bool {
	if s.processing.Load() || s.greeting.Load() {
		return false
	}
	if s.pipeline.State() != pipeline.StateInactive || s.pipeline.IsSpeechActive() {
		return false
	}

	if err := s.client.SendSilentFollowup(tier); err != nil {
		s.notifyError(err)
		return false
	}

	s.setProcessing(true)
	return true
}

// The methods below are the terminal program's control surface.

func (s *session) ToggleMute() bool {
	return s.pipeline.ToggleMute()
}

func (s *session) ToggleRecording() error {
	if s.pipeline.IsRecording() {
		return s.pipeline.StopRecording()
	}
	return s.pipeline.StartRecording(context.Background())
}

func (s *session) Interrupt() {
	s.pipeline.Interrupt()
}

func (s *session) ClearHistory() error {
	if err := s.client.ClearHistory(); err != nil {
		return err
	}

	s.send(historyClearedMsg{})
	return nil
}

func (s *session) RequestGreeting() error {
	if !s.greeting.CompareAndSwap(false, true) {
		return nil
	}

	s.pipeline.SetGreeting(true)
	if err := s.client.RequestGreeting(); err != nil {
		s.greeting.Store(false)
		s.pipeline.SetGreeting(false)
		return err
	}
	return nil
}

func (s *session) RequestSystemPrompt() error {
	return s.client.RequestSystemPrompt()
}
