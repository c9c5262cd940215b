package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/Electron910/Vocalis/core/audio"
)

// PlaybackClient feeds the default output device from an appended PCM16
// buffer. Every queued chunk carries a completion mark; the device callback
// fires marks whose audio has fully left the buffer, which is what drives the
// pipeline's chunk chaining.
type PlaybackClient struct {
	device     *malgo.Device
	config     malgo.DeviceConfig
	sampleRate int

	mu sync.Mutex

	// audioMu guards the buffer and marks together, they advance in lockstep.
	audioMu       sync.Mutex
	leftoverAudio []byte
	marks         []playbackMark
}

// playbackMark is a completion boundary: remaining counts the bytes still
// buffered ahead of it, including its own chunk.
type playbackMark struct {
	remaining int
	onPlayed  func()
}

func (c *PlaybackClient) init(audioContext *malgo.AllocatedContext, sampleRate int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.sampleRate = sampleRate
	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = uint32(sampleRate)
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = uint32(sampleRate / 10) // ~100ms of audio
	c.config.Periods = 4

	var err error
	if c.device, err = malgo.InitDevice(
		audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return nil
}

// Play appends the chunk behind whatever is still buffered and registers its
// completion. The device starts on the first chunk and keeps running on
// silence between sessions.
func (c *PlaybackClient) Play(pcm []byte, onPlayed func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}
	if !c.device.IsStarted() {
		if err := c.device.Start(); err != nil {
			return fmt.Errorf("failed to start playback device: %w", err)
		}
	}

	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.leftoverAudio = append(c.leftoverAudio, pcm...)
	c.marks = append(c.marks, playbackMark{
		remaining: len(c.leftoverAudio),
		onPlayed:  onPlayed,
	})
	return nil
}

// Clear drops buffered audio that has not rendered yet. The dropped chunks'
// completions never fire, their chunks were cancelled, not played.
func (c *PlaybackClient) Clear() {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.leftoverAudio = c.leftoverAudio[:0]
	c.marks = nil
}

func (c *PlaybackClient) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: c.sampleRate,
		Format:     audio.EncodingLinear16,
	}
}

func (c *PlaybackClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	c.Clear()
	return nil
}

// processAudio is the device callback. It copies the next period out of the
// buffer and advances the marks by however much actually rendered; the
// remainder of the output stays silent when the buffer runs dry.
func (c *PlaybackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame
		if need == 0 {
			return
		}

		c.audioMu.Lock()
		consumed := copy(pOutput[:need], c.leftoverAudio)
		c.leftoverAudio = c.leftoverAudio[consumed:]

		passed := 0
		for i := range c.marks {
			c.marks[i].remaining -= consumed
			if c.marks[i].remaining <= 0 {
				passed = i + 1
			}
		}
		var toCall []playbackMark
		if passed > 0 {
			toCall = c.marks[:passed]
			c.marks = c.marks[passed:]
		}
		c.audioMu.Unlock()

		if len(toCall) > 0 {
			// Completions run off the audio thread.
			go func() {
				for _, mark := range toCall {
					if mark.onPlayed != nil {
						mark.onPlayed()
					}
				}
			}()
		}
	}
}
