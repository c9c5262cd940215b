package backend

import "encoding/base64"

// Wire message types, shared by both directions where the server echoes them
// back.
const (
	messageTypeAudio               = "audio"
	messageTypeInterrupt           = "interrupt"
	messageTypeClearHistory        = "clear_history"
	messageTypeGreeting            = "greeting"
	messageTypeSilentFollowup      = "silent_followup"
	messageTypeGetSystemPrompt     = "get_system_prompt"
	messageTypeUpdateSystemPrompt  = "update_system_prompt"
	messageTypeGetUserProfile      = "get_user_profile"
	messageTypeUpdateUserProfile   = "update_user_profile"
	messageTypePing                = "ping"
	messageTypePong                = "pong"
	messageTypeTranscription       = "transcription"
	messageTypeResponse            = "llm_response"
	messageTypeSpeechStart         = "tts_start"
	messageTypeSpeechChunk         = "tts_chunk"
	messageTypeSpeechEnd           = "tts_end"
	messageTypeStatus              = "status"
	messageTypeError               = "error"
	messageTypeSystemPrompt        = "system_prompt"
	messageTypeSystemPromptUpdated = "system_prompt_updated"
	messageTypeUserProfile         = "user_profile"
	messageTypeUserProfileUpdated  = "user_profile_updated"
)

type typedMessage struct {
	Type string `json:"type"`
}

type audioMessage struct {
	Type      string `json:"type"`
	AudioData string `json:"audio_data"`
}

// newAudioMessage wraps an encoded utterance for upload. The server expects
// the WAV bytes base64 encoded inside the JSON envelope.
func newAudioMessage(wav []byte) audioMessage {
	return audioMessage{
		Type:      messageTypeAudio,
		AudioData: base64.StdEncoding.EncodeToString(wav),
	}
}

type silentFollowupMessage struct {
	Type string `json:"type"`
	Tier int    `json:"tier"`
}

type updateSystemPromptMessage struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
}

type updateUserProfileMessage struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

var (
	interruptMsg    = typedMessage{Type: messageTypeInterrupt}
	clearHistoryMsg = typedMessage{Type: messageTypeClearHistory}
	greetingMsg     = typedMessage{Type: messageTypeGreeting}
	pingMsg         = typedMessage{Type: messageTypePing}
	pongMsg         = typedMessage{Type: messageTypePong}
)

// Server messages all carry a type discriminator and an ISO timestamp; only
// the fields the client reacts to are declared.

type transcriptionMessage struct {
	Text string `json:"text"`
}

type responseMessage struct {
	Text string `json:"text"`
}

type speechChunkMessage struct {
	AudioChunk string `json:"audio_chunk"`
	Format     string `json:"format"`
}

type statusMessage struct {
	Status string `json:"status"`
}

type errorMessage struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details"`
}

type systemPromptMessage struct {
	Prompt string `json:"prompt"`
}

type updateConfirmedMessage struct {
	Success bool `json:"success"`
}

type userProfileMessage struct {
	Name string `json:"name"`
}
