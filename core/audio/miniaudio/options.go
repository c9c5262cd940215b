package miniaudio

type Option func(*Client)

// WithSampleRate overrides the sample rate both devices open with. It should
// match the detection config's sample rate so captured frames measure
// correctly.
func WithSampleRate(sampleRate int) Option {
	return func(c *Client) { c.sampleRate = sampleRate }
}

// WithCaptureFrameSize overrides how many samples the capture device delivers
// per frame. It should match the detection config's frame size.
func WithCaptureFrameSize(samples int) Option {
	return func(c *Client) { c.frameSize = samples }
}
