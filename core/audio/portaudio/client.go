// Package portaudio is the fallback device client for platforms where the
// miniaudio backend misbehaves. One duplex stream serves as both the
// pipeline's frame source and its frame sink.
package portaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/Electron910/Vocalis/core/audio"
)

type Client struct {
	bufferSize int

	in  []int16
	out []int16

	mu         sync.Mutex
	stream     *portaudio.Stream
	started    bool
	onFrame    func(frame audio.Frame)
	readerStop chan struct{}
	readerDone chan struct{}

	// writeMu serializes blocking writes against Clear and Close; generation
	// invalidates renders queued before the last Clear.
	writeMu    sync.Mutex
	generation uint64

	closeOnce sync.Once
	closeErr  error
}

// NewClient opens the default duplex stream. bufferSize is in samples and
// should match the detection config's frame size.
func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize audio backend: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

// Capture registers the frame handler and starts the reader goroutine on
// first use. The context is unused, the stream drives pacing.
func (c *Client) Capture(_ context.Context, onFrame func(frame audio.Frame)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return fmt.Errorf("stream not initialized")
	}
	if err := c.ensureStartedLocked(); err != nil {
		return err
	}

	c.onFrame = onFrame
	if c.readerStop == nil {
		c.readerStop = make(chan struct{})
		c.readerDone = make(chan struct{})
		go c.captureLoop(c.readerStop, c.readerDone)
	}
	return nil
}

// captureLoop keeps draining the input side for the stream's lifetime.
// StopCapture only unregisters the handler: a blocked duplex read cannot be
// cancelled without aborting playback with it, so frames are dropped instead.
func (c *Client) captureLoop(stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			select {
			case <-stop:
				return
			default:
			}
			log.Printf("portaudio: failed to read stream: %v", err)
			continue
		}

		c.mu.Lock()
		onFrame := c.onFrame
		c.mu.Unlock()
		if onFrame == nil {
			continue
		}

		samples := make([]float32, len(c.in))
		for i, sample := range c.in {
			samples[i] = audio.PCM16ToFloat32(sample)
		}

		onFrame(audio.Frame{
			Data:       samples,
			SampleRate: audio.DefaultSampleRate,
			Channels:   1,
		})
	}
}

func (c *Client) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFrame = nil
	return nil
}

// Play renders the chunk through blocking writes on a worker goroutine and
// fires onPlayed once the final buffer has been handed to the device. A Clear
// issued mid-chunk abandons the rest and swallows the completion.
func (c *Client) Play(pcm []byte, onPlayed func()) error {
	c.mu.Lock()
	if c.stream == nil {
		c.mu.Unlock()
		return fmt.Errorf("stream not initialized")
	}
	if err := c.ensureStartedLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	generation := c.generation
	c.writeMu.Unlock()

	go c.render(pcm, generation, onPlayed)
	return nil
}

func (c *Client) render(pcm []byte, generation uint64, onPlayed func()) {
	chunkBytes := c.bufferSize * 2

	for offset := 0; offset < len(pcm); offset += chunkBytes {
		c.writeMu.Lock()
		if c.generation != generation {
			c.writeMu.Unlock()
			return
		}

		end := offset + chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		part := pcm[offset:end]
		for i := range c.out {
			if i*2+1 < len(part) {
				c.out[i] = int16(binary.LittleEndian.Uint16(part[i*2:]))
			} else {
				c.out[i] = 0
			}
		}

		if err := c.stream.Write(); err != nil {
			log.Printf("portaudio: failed to write stream: %v", err)
		}
		c.writeMu.Unlock()
	}

	c.writeMu.Lock()
	current := c.generation == generation
	c.writeMu.Unlock()
	if current && onPlayed != nil {
		onPlayed()
	}
}

// Clear abandons whatever remains of the rendering chunk. Buffers already
// written to the device still drain, only a period's worth at this buffer
// size.
func (c *Client) Clear() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.generation++
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}

// Close tears the stream down. The pipeline closes its source and sink
// independently, which lands here twice for a duplex client, so the teardown
// runs once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.onFrame = nil
		readerStop, readerDone := c.readerStop, c.readerDone
		started := c.started
		c.mu.Unlock()

		if readerStop != nil {
			close(readerStop)
		}
		c.Clear()
		if started {
			// Abort unblocks any read or write still pending on the stream.
			_ = c.stream.Abort()
		}
		if readerDone != nil {
			<-readerDone
		}

		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.stream != nil {
			if err := c.stream.Close(); err != nil {
				c.closeErr = fmt.Errorf("failed to close audio stream: %w", err)
			}
			c.stream = nil
		}
		if err := portaudio.Terminate(); err != nil && c.closeErr == nil {
			c.closeErr = fmt.Errorf("failed to terminate audio backend: %w", err)
		}
	})
	return c.closeErr
}

func (c *Client) ensureStartedLocked() error {
	if c.started {
		return nil
	}
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	c.started = true
	return nil
}
