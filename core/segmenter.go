package pipeline

import (
	"math"
	"time"

	"github.com/Electron910/Vocalis/core/audio"
	"github.com/Electron910/Vocalis/core/events"
)

// segmenterState is the loop-owned voice detection state. voiceDetected
// latches on the first voiced frame and clears on flush; lastVoiceTime moves
// forward on every voiced frame and anchors the silence timeout.
type segmenterState struct {
	filter        audio.LowPassFilter
	scratch       []float32
	silent        []float32
	voiceDetected bool
	lastVoiceTime time.Time
}

// silence returns a zeroed frame of the requested length, reused across
// calls. Muted capture substitutes it for the real frame so detection decays
// naturally instead of freezing.
func (s *segmenterState) silence(length int) []float32 {
	if cap(s.silent) < length {
		s.silent = make([]float32, length)
	}

	return s.silent[:length]
}

// processFrame runs on the loop for every captured frame: condition a copy of
// the frame for measurement, decide voice, accumulate or flush, and always
// publish the visualization measurement.
func (p *Pipeline) processFrame(frame audio.Frame) {
	samples := frame.Data
	if p.muted.Load() {
		samples = p.segmenter.silence(len(samples))
	}

	filtered := p.segmenter.filter.Apply(p.segmenter.scratch, samples)
	p.segmenter.scratch = filtered
	energy := audio.RMS(filtered)
	p.lastEnergy.Store(math.Float64bits(energy))
	voiced := energy > p.config.EnergyThreshold

	if p.protectionActive() {
		// Accumulation is suppressed, but barge-in still pierces the
		// processing and vision suppression. Greeting playback stays
		// uninterruptible.
		if voiced && p.scheduler.renderingSpeech && !p.greeting.Load() {
			p.interruptNow(interruptReasonBargeIn)
		}

		p.publish(events.NewRecordingData(samples, energy, false))
		return
	}

	now := p.now()
	if voiced {
		if !p.segmenter.voiceDetected {
			p.segmenter.voiceDetected = true
			if p.scheduler.renderingSpeech && !p.greeting.Load() {
				p.interruptNow(interruptReasonBargeIn)
			}
		}
		p.segmenter.lastVoiceTime = now
	}

	// The flush check runs before accumulation so the utterance spans voice
	// onset through the silence-timeout boundary and nothing past it.
	if !voiced && p.segmenter.voiceDetected && now.Sub(p.segmenter.lastVoiceTime) > p.config.SilenceTimeout {
		p.segmenter.voiceDetected = false
		p.flushUtterance()
	}

	if p.segmenter.voiceDetected || now.Sub(p.segmenter.lastVoiceTime) < p.config.SilenceTimeout {
		p.accumulator.append(samples)
	}

	p.speechActive.Store(p.segmenter.voiceDetected)
	p.publish(events.NewRecordingData(samples, energy, p.segmenter.voiceDetected))
}
