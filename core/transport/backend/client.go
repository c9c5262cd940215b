// Package backend carries a conversation session against a Vocalis backend:
// utterance upload, synthesized speech download, and the prompt and profile
// management the server exposes over its websocket.
package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Electron910/Vocalis/core/transport"
)

type Client struct {
	serverURL *url.URL
	options   transport.SessionOptions

	ws *websocket.Conn
	mu sync.Mutex

	closed atomic.Bool
	done   chan struct{}

	configMu     sync.Mutex
	cachedConfig *RemoteConfig
}

// Dial connects to the backend's websocket endpoint and starts reading server
// messages. serverURL accepts http, https, ws and wss schemes; a bare
// host:port defaults to http.
func Dial(ctx context.Context, serverURL string, opts ...transport.SessionOption) (*Client, error) {
	ctx, span := tracer.Start(ctx, "connect to backend")
	defer span.End()
	span.SetAttributes(attribute.String("server.url", serverURL))

	parsed, err := parseServerURL(serverURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse server url")
		return nil, err
	}

	client := &Client{
		serverURL: parsed,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&client.options)
	}

	wsURL := *parsed
	if wsURL.Scheme == "https" {
		wsURL.Scheme = "wss"
	} else {
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/ws"

	client.ws, _, err = websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		err = fmt.Errorf("failed to open socket connection to backend: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to dial backend")
		return nil, err
	}

	go client.processIncomingMessages()

	return client, nil
}

func parseServerURL(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server url: %w", err)
	}

	switch parsed.Scheme {
	case "http", "https":
	case "ws":
		parsed.Scheme = "http"
	case "wss":
		parsed.Scheme = "https"
	default:
		return nil, fmt.Errorf("unsupported server url scheme %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return nil, fmt.Errorf("server url %q has no host", raw)
	}
	return parsed, nil
}

func (c *Client) processIncomingMessages() {
	defer close(c.done)

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", "error", err)
			}
			if c.options.DisconnectCallback != nil {
				c.options.DisconnectCallback(err)
			}
			return
		}

		c.handleServerMessage(msg)
	}
}

func (c *Client) handleServerMessage(raw []byte) {
	var envelope typedMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		logger.Warn("failed to unmarshal server message", "error", err)
		return
	}

	switch envelope.Type {
	case messageTypeTranscription:
		var parsed transcriptionMessage
		if !c.parse(raw, envelope.Type, &parsed) {
			return
		}
		if c.options.TranscriptionCallback != nil {
			c.options.TranscriptionCallback(parsed.Text)
		}

	case messageTypeResponse:
		var parsed responseMessage
		if !c.parse(raw, envelope.Type, &parsed) {
			return
		}
		if c.options.ResponseTextCallback != nil {
			c.options.ResponseTextCallback(parsed.Text)
		}

	case messageTypeSpeechStart:
		if c.options.SpeechStartedCallback != nil {
			c.options.SpeechStartedCallback()
		}

	case messageTypeSpeechChunk:
		var parsed speechChunkMessage
		if !c.parse(raw, envelope.Type, &parsed) {
			return
		}
		audio, err := base64.StdEncoding.DecodeString(parsed.AudioChunk)
		if err != nil {
			c.reportError(fmt.Errorf("failed to decode speech chunk: %w", err))
			return
		}
		if c.options.SpeechAudioCallback != nil {
			c.options.SpeechAudioCallback(audio, parsed.Format)
		}

	case messageTypeSpeechEnd:
		if c.options.SpeechEndedCallback != nil {
			c.options.SpeechEndedCallback()
		}

	case messageTypeStatus:
		var parsed statusMessage
		if !c.parse(raw, envelope.Type, &parsed) {
			return
		}
		if c.options.StatusCallback != nil {
			c.options.StatusCallback(parsed.Status)
		}

	case messageTypeError:
		var parsed errorMessage
		if !c.parse(raw, envelope.Type, &parsed) {
			return
		}
		c.reportError(errors.New(parsed.Error))

	case messageTypeSystemPrompt:
		var parsed systemPromptMessage
		if !c.parse(raw, envelope.Type, &parsed) {
			return
		}
		if c.options.SystemPromptCallback != nil {
			c.options.SystemPromptCallback(parsed.Prompt)
		}

	case messageTypeSystemPromptUpdated:
		var parsed updateConfirmedMessage
		if !c.parse(raw, envelope.Type, &parsed) {
			return
		}
		if c.options.SystemPromptUpdatedCallback != nil {
			c.options.SystemPromptUpdatedCallback(parsed.Success)
		}

	case messageTypeUserProfile:
		var parsed userProfileMessage
		if !c.parse(raw, envelope.Type, &parsed) {
			return
		}
		if c.options.UserProfileCallback != nil {
			c.options.UserProfileCallback(parsed.Name)
		}

	case messageTypeUserProfileUpdated:
		var parsed updateConfirmedMessage
		if !c.parse(raw, envelope.Type, &parsed) {
			return
		}
		if c.options.UserProfileUpdatedCallback != nil {
			c.options.UserProfileUpdatedCallback(parsed.Success)
		}

	case messageTypePing:
		// The server pings after 30 seconds of idle; answering keeps the
		// session alive through long silences.
		if err := c.send(pongMsg); err != nil {
			logger.Warn("failed to answer server ping", "error", err)
		}

	case messageTypePong:

	default:
		logger.Warn("unknown server message type", "type", envelope.Type)
	}
}

func (c *Client) parse(raw []byte, messageType string, target any) bool {
	if err := json.Unmarshal(raw, target); err != nil {
		c.reportError(fmt.Errorf("failed to unmarshal %s message: %w", messageType, err))
		return false
	}
	return true
}

func (c *Client) reportError(err error) {
	if c.options.ErrorCallback != nil {
		c.options.ErrorCallback(err)
		return
	}
	logger.Warn("backend reported error", "error", err)
}

// SendUtterance uploads one encoded utterance for transcription. The server
// answers with transcription, response text, and synthesized speech messages
// in that order.
func (c *Client) SendUtterance(wav []byte) error {
	if err := c.send(newAudioMessage(wav)); err != nil {
		return fmt.Errorf("failed to send utterance: %w", err)
	}
	return nil
}

// Interrupt tells the server to abandon any synthesis still in flight.
func (c *Client) Interrupt() error {
	if err := c.send(interruptMsg); err != nil {
		return fmt.Errorf("failed to send interrupt: %w", err)
	}
	return nil
}

// ClearHistory wipes the server-side conversation history.
func (c *Client) ClearHistory() error {
	if err := c.send(clearHistoryMsg); err != nil {
		return fmt.Errorf("failed to send clear history: %w", err)
	}
	return nil
}

// RequestGreeting asks the server to open the conversation with a spoken
// greeting.
func (c *Client) RequestGreeting() error {
	if err := c.send(greetingMsg); err != nil {
		return fmt.Errorf("failed to send greeting request: %w", err)
	}
	return nil
}

// SendSilentFollowup asks the server for a follow-up after the user has gone
// quiet. Tiers 0 through 2 escalate the follow-up's tone.
func (c *Client) SendSilentFollowup(tier int) error {
	if tier < 0 || tier > 2 {
		return fmt.Errorf("follow-up tier %d out of range", tier)
	}
	if err := c.send(silentFollowupMessage{Type: messageTypeSilentFollowup, Tier: tier}); err != nil {
		return fmt.Errorf("failed to send silent follow-up: %w", err)
	}
	return nil
}

// RequestSystemPrompt asks for the active system prompt; the answer arrives
// through the system prompt callback.
func (c *Client) RequestSystemPrompt() error {
	if err := c.send(typedMessage{Type: messageTypeGetSystemPrompt}); err != nil {
		return fmt.Errorf("failed to request system prompt: %w", err)
	}
	return nil
}

// UpdateSystemPrompt replaces the server's system prompt. The server rejects
// empty prompts, so the check happens before anything hits the wire.
func (c *Client) UpdateSystemPrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return errors.New("system prompt cannot be empty")
	}
	if err := c.send(updateSystemPromptMessage{Type: messageTypeUpdateSystemPrompt, Prompt: prompt}); err != nil {
		return fmt.Errorf("failed to update system prompt: %w", err)
	}
	return nil
}

// RequestUserProfile asks for the stored user profile; the answer arrives
// through the user profile callback.
func (c *Client) RequestUserProfile() error {
	if err := c.send(typedMessage{Type: messageTypeGetUserProfile}); err != nil {
		return fmt.Errorf("failed to request user profile: %w", err)
	}
	return nil
}

// UpdateUserProfile stores the user's name server-side.
func (c *Client) UpdateUserProfile(name string) error {
	if err := c.send(updateUserProfileMessage{Type: messageTypeUpdateUserProfile, Name: name}); err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return nil
}

// Ping checks the connection; the server answers with a pong.
func (c *Client) Ping() error {
	if err := c.send(pingMsg); err != nil {
		return fmt.Errorf("failed to send ping: %w", err)
	}
	return nil
}

func (c *Client) send(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return errors.New("connection closed")
	} else if c.ws == nil {
		return errors.New("connection closed")
	}

	if err := c.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

// Done closes when the read pump exits, whether through Close or a dropped
// connection.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close ends the session. Repeated calls are ignored.
func (c *Client) Close() error {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.mu.Unlock()

	if err := c.ws.Close(); err != nil {
		return fmt.Errorf("failed to close websocket: %w", err)
	}
	return nil
}
