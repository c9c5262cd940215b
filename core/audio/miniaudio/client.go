// Package miniaudio drives default capture and playback devices through the
// malgo bindings. One Client owns the audio context; its capture and playback
// sides plug into the pipeline as its frame source and sink.
package miniaudio

import (
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/Electron910/Vocalis/core/audio"
)

const defaultCaptureFrameSize = 4096

type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext

	sampleRate int
	frameSize  int

	capture  CaptureClient
	playback PlaybackClient
}

// NewClient initializes the backend context and both devices. The devices
// stay stopped until the pipeline asks for capture or hands over the first
// playback chunk.
func NewClient(opts ...Option) (*Client, error) {
	client := &Client{
		sampleRate: audio.DefaultSampleRate,
		frameSize:  defaultCaptureFrameSize,
	}
	for _, opt := range opts {
		opt(client)
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio backend: %w", err)
	}
	client.audioContext = audioCtx

	if err := client.playback.init(audioCtx, client.sampleRate); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := client.capture.init(audioCtx, client.sampleRate, client.frameSize); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}

	return client, nil
}

// Source is the capture side, wired into the pipeline as its frame source.
func (c *Client) Source() *CaptureClient { return &c.capture }

// Sink is the playback side, wired into the pipeline as its frame sink.
func (c *Client) Sink() *PlaybackClient { return &c.playback }

// Close releases both devices and the backend context.
func (c *Client) Close() error {
	if c == nil || c.audioContext == nil {
		return nil
	}

	captureErr := c.capture.Close()
	playbackErr := c.playback.Close()
	contextErr := c.audioContext.Uninit()
	c.audioContext.Free()
	c.audioContext = nil

	if captureErr != nil {
		return fmt.Errorf("failed to close capture device: %w", captureErr)
	}
	if playbackErr != nil {
		return fmt.Errorf("failed to close playback device: %w", playbackErr)
	}
	if contextErr != nil {
		return fmt.Errorf("failed to close audio backend: %w", contextErr)
	}
	return nil
}
