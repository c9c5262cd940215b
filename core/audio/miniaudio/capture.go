package miniaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/Electron910/Vocalis/core/audio"
)

// CaptureClient reads the default input device as 32-bit float mono frames.
// The device callback owns no state beyond the registered frame handler, so
// frames convert and hand off without blocking the audio thread.
type CaptureClient struct {
	device     *malgo.Device
	config     malgo.DeviceConfig
	sampleRate int

	mu      sync.Mutex
	onFrame func(frame audio.Frame)
}

func (c *CaptureClient) init(audioContext *malgo.AllocatedContext, sampleRate, frameSize int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels := 1
	format := malgo.FormatF32
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.sampleRate = sampleRate
	c.config = malgo.DefaultDeviceConfig(malgo.Capture)
	c.config.SampleRate = uint32(sampleRate)
	c.config.Capture.Format = format
	c.config.Capture.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PerformanceProfile = malgo.LowLatency
	c.config.PeriodSizeInFrames = uint32(frameSize)
	c.config.Periods = 3

	var err error
	c.device, err = malgo.InitDevice(audioContext.Context, c.config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}

			c.mu.Lock()
			onFrame := c.onFrame
			c.mu.Unlock()
			if onFrame == nil {
				return
			}

			// The pipeline owns delivered frames, so every callback decodes
			// into a fresh buffer.
			samples := make([]float32, frameCount)
			for i := range samples {
				samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(pInput[i*4:]))
			}

			onFrame(audio.Frame{
				Data:       samples,
				SampleRate: sampleRate,
				Channels:   channels,
			})
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	return nil
}

// Capture starts the device and delivers frames to onFrame until StopCapture.
// The context is unused, the device callback drives delivery.
func (c *CaptureClient) Capture(_ context.Context, onFrame func(frame audio.Frame)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if c.device.IsStarted() {
		return nil
	}

	c.onFrame = onFrame
	if err := c.device.Start(); err != nil {
		c.onFrame = nil
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	return nil
}

func (c *CaptureClient) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}

	c.onFrame = nil
	return nil
}

func (c *CaptureClient) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: c.sampleRate,
		Format:     audio.EncodingFloat32,
	}
}

func (c *CaptureClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	c.onFrame = nil
	return nil
}
