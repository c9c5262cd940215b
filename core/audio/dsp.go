package audio

import "math"

// LowPassFilter is a single-pole IIR low-pass filter used to strip
// high-frequency noise from a frame before energy measurement. Each
// [LowPassFilter.Apply] call seeds the recurrence from the frame's first
// sample, so the filter carries no state between frames.
type LowPassFilter struct {
	alpha float64
}

// NewLowPassFilter derives the smoothing coefficient from the cutoff
// frequency and sample rate. A cutoff or sample rate of zero or less
// disables filtering entirely.
func NewLowPassFilter(cutoffHz float64, sampleRate int) LowPassFilter {
	if cutoffHz <= 0 || sampleRate <= 0 {
		return LowPassFilter{}
	}

	rc := 1 / (2 * math.Pi * cutoffHz)
	dt := 1 / float64(sampleRate)
	return LowPassFilter{alpha: dt / (rc + dt)}
}

// Alpha returns the smoothing coefficient, zero when filtering is disabled.
func (f LowPassFilter) Alpha() float64 {
	return f.alpha
}

// Enabled reports whether Apply does any smoothing.
func (f LowPassFilter) Enabled() bool {
	return f.alpha > 0
}

// Apply filters src into dst and returns dst, growing it as needed. src is
// never modified; callers can reuse the returned slice across frames to
// avoid per-frame allocations. With filtering disabled the samples are
// copied through unchanged.
func (f LowPassFilter) Apply(dst, src []float32) []float32 {
	if cap(dst) < len(src) {
		dst = make([]float32, len(src))
	}
	dst = dst[:len(src)]

	if len(src) == 0 {
		return dst
	}

	if f.alpha <= 0 {
		copy(dst, src)
		return dst
	}

	alpha := float32(f.alpha)
	dst[0] = src[0]
	for i := 1; i < len(src); i++ {
		dst[i] = dst[i-1] + alpha*(src[i]-dst[i-1])
	}
	return dst
}

// RMS computes the root-mean-square energy of a frame. An empty frame has
// zero energy.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
