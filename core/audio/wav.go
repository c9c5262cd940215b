package audio

import (
	"encoding/binary"
	"fmt"
)

// wavHeaderSize is the canonical RIFF/WAVE header length produced by
// EncodeWAV: RIFF descriptor, a 16-byte fmt chunk, and the data chunk
// header.
const wavHeaderSize = 44

// EncodeWAV serializes mono float samples into a RIFF/WAVE container with
// 16-bit little-endian PCM data and a 44-byte header.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	dataSize := len(samples) * 2
	wav := make([]byte, wavHeaderSize+dataSize)

	copy(wav[0:4], "RIFF")
	binary.LittleEndian.PutUint32(wav[4:8], uint32(36+dataSize))
	copy(wav[8:12], "WAVE")
	copy(wav[12:16], "fmt ")
	binary.LittleEndian.PutUint32(wav[16:20], 16)
	binary.LittleEndian.PutUint16(wav[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(wav[22:24], 1) // mono
	binary.LittleEndian.PutUint32(wav[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(wav[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(wav[32:34], 2)
	binary.LittleEndian.PutUint16(wav[34:36], 16)
	copy(wav[36:40], "data")
	binary.LittleEndian.PutUint32(wav[40:44], uint32(dataSize))

	for i, sample := range samples {
		binary.LittleEndian.PutUint16(wav[wavHeaderSize+i*2:], uint16(Float32ToPCM16(sample)))
	}
	return wav
}

// DecodeWAV parses a RIFF/WAVE container holding 16-bit mono PCM and
// returns the samples as a Frame in the [-1, 1] range.
func DecodeWAV(data []byte) (Frame, error) {
	format, pcm, err := parseWAV(data)
	if err != nil {
		return Frame{}, err
	}

	return Frame{
		Data:       PCM16BytesToFloat32(pcm),
		SampleRate: int(format.sampleRate),
		Channels:   int(format.channels),
	}, nil
}

// DecodeWAVPCM returns the container's raw 16-bit little-endian PCM payload
// and sample rate without converting samples, for handing straight to a
// playback device.
func DecodeWAVPCM(data []byte) ([]byte, int, error) {
	format, pcm, err := parseWAV(data)
	if err != nil {
		return nil, 0, err
	}

	return pcm, int(format.sampleRate), nil
}

type wavFormat struct {
	audioFormat   uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
}

func parseWAV(data []byte) (wavFormat, []byte, error) {
	if len(data) < wavHeaderSize {
		return wavFormat{}, nil, fmt.Errorf("container too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return wavFormat{}, nil, fmt.Errorf("not a RIFF/WAVE container")
	}

	var format wavFormat
	var pcm []byte
	haveFormat := false
	haveData := false

	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if size < 0 || body+size > len(data) {
			return wavFormat{}, nil, fmt.Errorf("chunk %q overruns container", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return wavFormat{}, nil, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			format.audioFormat = binary.LittleEndian.Uint16(data[body : body+2])
			format.channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			format.sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			format.bitsPerSample = binary.LittleEndian.Uint16(data[body+14 : body+16])
			haveFormat = true
		case "data":
			// Trim a trailing odd byte so the payload holds whole samples.
			pcm = data[body : body+size&^1]
			haveData = true
		}

		// Chunk bodies are word aligned.
		if size%2 == 1 {
			size++
		}
		offset = body + size
	}

	if !haveFormat {
		return wavFormat{}, nil, fmt.Errorf("missing fmt chunk")
	}
	if !haveData {
		return wavFormat{}, nil, fmt.Errorf("missing data chunk")
	}
	if format.audioFormat != 1 {
		return wavFormat{}, nil, fmt.Errorf("unsupported audio format %d, expected PCM", format.audioFormat)
	}
	if format.bitsPerSample != 16 {
		return wavFormat{}, nil, fmt.Errorf("unsupported bit depth %d, expected 16", format.bitsPerSample)
	}
	if format.channels != 1 {
		return wavFormat{}, nil, fmt.Errorf("unsupported channel count %d, expected mono", format.channels)
	}
	if format.sampleRate == 0 {
		return wavFormat{}, nil, fmt.Errorf("invalid sample rate 0")
	}

	return format, pcm, nil
}
