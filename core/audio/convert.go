package audio

import "encoding/binary"

// Float32ToPCM16 converts a [-1, 1] sample to a signed 16-bit value.
// Out-of-range input is clamped first. Negative samples scale by 32768 and
// non-negative ones by 32767 so both extremes land exactly on the
// asymmetric signed range.
func Float32ToPCM16(sample float32) int16 {
	if sample > 1 {
		sample = 1
	} else if sample < -1 {
		sample = -1
	}

	if sample < 0 {
		return int16(sample * 32768)
	}
	return int16(sample * 32767)
}

// PCM16ToFloat32 converts a signed 16-bit sample back into the [-1, 1]
// float range.
func PCM16ToFloat32(sample int16) float32 {
	return float32(sample) / 32768.0
}

// Float32ToPCM16Bytes serializes samples as little-endian 16-bit PCM.
func Float32ToPCM16Bytes(samples []float32) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(Float32ToPCM16(sample)))
	}
	return pcm
}

// PCM16BytesToFloat32 parses little-endian 16-bit PCM into float samples.
// A trailing odd byte is ignored.
func PCM16BytesToFloat32(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = PCM16ToFloat32(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return samples
}
