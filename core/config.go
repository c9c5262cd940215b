package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/Electron910/Vocalis/core/audio"
)

// DetectionConfig tunes voice detection and utterance segmentation.
type DetectionConfig struct {
	// EnergyThreshold is the RMS energy above which a frame counts as voice.
	EnergyThreshold float64
	// SilenceTimeout is how long accumulation keeps running after the last
	// voiced frame before the utterance is flushed.
	SilenceTimeout time.Duration
	// MinUtteranceLength discards utterances shorter than this, unless voice
	// is still flagged at flush time.
	MinUtteranceLength time.Duration
	// LowPassCutoff is the cutoff of the measurement filter in Hz. Zero
	// disables filtering. The filter only conditions the energy measurement;
	// accumulated audio stays unfiltered.
	LowPassCutoff float64
	// SampleRate, Channels and FrameSize describe the capture format the
	// detector expects.
	SampleRate int
	Channels   int
	FrameSize  int
}

// DefaultDetectionConfig returns the tuning the pipeline ships with.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		EnergyThreshold:    0.03,
		SilenceTimeout:     time.Second,
		MinUtteranceLength: time.Second,
		LowPassCutoff:      3000,
		SampleRate:         audio.DefaultSampleRate,
		Channels:           1,
		FrameSize:          4096,
	}
}

func (c DetectionConfig) validate() error {
	if c.EnergyThreshold <= 0 {
		return errors.New("energy threshold must be positive")
	}
	if c.SilenceTimeout < 0 {
		return errors.New("silence timeout must not be negative")
	}
	if c.MinUtteranceLength < 0 {
		return errors.New("minimum utterance length must not be negative")
	}
	if c.LowPassCutoff < 0 {
		return errors.New("low-pass cutoff must not be negative")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", c.SampleRate)
	}
	if c.Channels != 1 {
		return fmt.Errorf("unsupported channel count %d", c.Channels)
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("invalid frame size %d", c.FrameSize)
	}

	return nil
}
