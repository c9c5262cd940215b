package pipeline

import (
	"time"

	"github.com/Electron910/Vocalis/core/audio"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Utterance is one flushed stretch of captured voice, encoded as a WAV blob
// ready for transport.
type Utterance struct {
	ID       string
	Audio    []byte
	Duration time.Duration
}

// utteranceAccumulator collects kept frames between flushes. Loop-owned; the
// backing buffer is reused across utterances.
type utteranceAccumulator struct {
	samples    []float32
	sampleRate int
	open       bool
}

func (a *utteranceAccumulator) append(samples []float32) {
	a.samples = append(a.samples, samples...)
	a.open = true
}

func (a *utteranceAccumulator) duration() time.Duration {
	if a.sampleRate <= 0 {
		return 0
	}

	return time.Duration(len(a.samples)) * time.Second / time.Duration(a.sampleRate)
}

func (a *utteranceAccumulator) reset() {
	a.samples = a.samples[:0]
	a.open = false
}

// flushUtterance runs on the loop. Accumulated audio shorter than the
// configured minimum is discarded unless voice is still flagged, which keeps
// utterances cut short by a stop call and drops threshold blips.
func (p *Pipeline) flushUtterance() {
	if !p.accumulator.open {
		return
	}
	defer p.accumulator.reset()

	duration := p.accumulator.duration()
	if duration < p.config.MinUtteranceLength && !p.segmenter.voiceDetected {
		return
	}

	utterance := Utterance{
		ID:       uuid.NewString(),
		Audio:    audio.EncodeWAV(p.accumulator.samples, p.accumulator.sampleRate),
		Duration: duration,
	}

	_, span := tracer.Start(p.baseContext, "flush utterance")
	span.SetAttributes(
		attribute.String("utterance.id", utterance.ID),
		attribute.Float64("utterance.duration_seconds", duration.Seconds()),
		attribute.Int("utterance.bytes", len(utterance.Audio)),
	)
	span.End()

	if p.startOptions.onUtterance != nil {
		p.startOptions.onUtterance(utterance)
	}
}
