// Package transport defines the callback surface a conversation session
// exposes, independent of the concrete backend client carrying it.
package transport

type SessionOptions struct {
	// TranscriptionCallback is called when the server has transcribed an
	// uploaded utterance
	TranscriptionCallback func(text string)
	// ResponseTextCallback is called when the server produces the assistant's
	// text reply
	ResponseTextCallback func(text string)
	// SpeechStartedCallback is called when the server starts synthesizing
	// speech for the reply
	SpeechStartedCallback func()
	// SpeechAudioCallback is called for every synthesized audio chunk, decoded
	// from the wire encoding and ready to queue for playback
	SpeechAudioCallback func(audio []byte, format string)
	// SpeechEndedCallback is called when the server has finished synthesizing
	SpeechEndedCallback func()
	// StatusCallback is called for server-side processing status updates
	StatusCallback func(status string)
	// ErrorCallback is called when the server reports an error or a message
	// fails to decode
	ErrorCallback func(err error)
	// SystemPromptCallback is called when the server returns the active system
	// prompt
	SystemPromptCallback func(prompt string)
	// SystemPromptUpdatedCallback is called when the server confirms a system
	// prompt update
	SystemPromptUpdatedCallback func(success bool)
	// UserProfileCallback is called when the server returns the stored user
	// profile
	UserProfileCallback func(name string)
	// UserProfileUpdatedCallback is called when the server confirms a user
	// profile update
	UserProfileUpdatedCallback func(success bool)
	// DisconnectCallback is called once when the connection drops for any
	// reason other than Close
	DisconnectCallback func(err error)
}

type SessionOption func(*SessionOptions)

func WithTranscriptionCallback(callback func(text string)) SessionOption {
	return func(o *SessionOptions) { o.TranscriptionCallback = callback }
}

func WithResponseTextCallback(callback func(text string)) SessionOption {
	return func(o *SessionOptions) { o.ResponseTextCallback = callback }
}

func WithSpeechStartedCallback(callback func()) SessionOption {
	return func(o *SessionOptions) { o.SpeechStartedCallback = callback }
}

func WithSpeechAudioCallback(callback func(audio []byte, format string)) SessionOption {
	return func(o *SessionOptions) { o.SpeechAudioCallback = callback }
}

func WithSpeechEndedCallback(callback func()) SessionOption {
	return func(o *SessionOptions) { o.SpeechEndedCallback = callback }
}

func WithStatusCallback(callback func(status string)) SessionOption {
	return func(o *SessionOptions) { o.StatusCallback = callback }
}

func WithErrorCallback(callback func(err error)) SessionOption {
	return func(o *SessionOptions) { o.ErrorCallback = callback }
}

func WithSystemPromptCallback(callback func(prompt string)) SessionOption {
	return func(o *SessionOptions) { o.SystemPromptCallback = callback }
}

func WithSystemPromptUpdatedCallback(callback func(success bool)) SessionOption {
	return func(o *SessionOptions) { o.SystemPromptUpdatedCallback = callback }
}

func WithUserProfileCallback(callback func(name string)) SessionOption {
	return func(o *SessionOptions) { o.UserProfileCallback = callback }
}

func WithUserProfileUpdatedCallback(callback func(success bool)) SessionOption {
	return func(o *SessionOptions) { o.UserProfileUpdatedCallback = callback }
}

func WithDisconnectCallback(callback func(err error)) SessionOption {
	return func(o *SessionOptions) { o.DisconnectCallback = callback }
}
