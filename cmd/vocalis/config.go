package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	pipeline "github.com/Electron910/Vocalis/core"
)

// defaultConfigPath is probed when no -config flag is given; a missing file
// there just means defaults.
const defaultConfigPath = "vocalis.yaml"

// Config is the root configuration, loaded from a YAML file. Every field has
// a default, so an empty file and no file at all are both valid.
type Config struct {
	Server       ServerConfig       `yaml:"server" json:"server"`
	Audio        AudioConfig        `yaml:"audio" json:"audio"`
	Conversation ConversationConfig `yaml:"conversation" json:"conversation"`
}

// ServerConfig locates the Vocalis backend.
type ServerConfig struct {
	// URL is the backend address; http, https, ws and wss schemes are
	// accepted, and a bare host:port defaults to http.
	URL string `yaml:"url" json:"url" jsonschema:"title=Backend URL,description=Address of the Vocalis backend,default=localhost:8000"`

	// ConnectTimeoutMS bounds the initial health check and websocket dial.
	ConnectTimeoutMS int `yaml:"connect_timeout_ms" json:"connect_timeout_ms" jsonschema:"title=Connect timeout,description=Timeout for the initial health check and dial in milliseconds,default=5000"`
}

// AudioConfig tunes capture and voice detection. The zero values of the
// detection fields mean "use the pipeline defaults".
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate" json:"sample_rate" jsonschema:"title=Sample rate,description=Capture and playback sample rate in Hz,default=44100"`
	FrameSize  int `yaml:"frame_size" json:"frame_size" jsonschema:"title=Frame size,description=Samples delivered per capture frame,default=4096"`

	EnergyThreshold  float64 `yaml:"energy_threshold" json:"energy_threshold" jsonschema:"title=Energy threshold,description=RMS energy above which a frame counts as voice,default=0.03"`
	SilenceTimeoutMS int     `yaml:"silence_timeout_ms" json:"silence_timeout_ms" jsonschema:"title=Silence timeout,description=Milliseconds of silence that end an utterance,default=1000"`
	MinUtteranceMS   int     `yaml:"min_utterance_ms" json:"min_utterance_ms" jsonschema:"title=Minimum utterance length,description=Utterances shorter than this many milliseconds are discarded,default=1000"`
	LowPassCutoffHz  float64 `yaml:"low_pass_cutoff_hz" json:"low_pass_cutoff_hz" jsonschema:"title=Low-pass cutoff,description=Cutoff of the measurement filter in Hz; 0 disables filtering,default=3000"`
}

// ConversationConfig tunes the session behaviour around the audio pipeline.
type ConversationConfig struct {
	// Greeting asks the backend for a spoken greeting once the session is up.
	Greeting bool `yaml:"greeting" json:"greeting" jsonschema:"title=Greeting,description=Request a spoken greeting when the session starts,default=true"`

	// UserName is stored in the backend's user profile at connect so the
	// assistant can address the user by name. Empty leaves the profile alone.
	UserName string `yaml:"user_name" json:"user_name" jsonschema:"title=User name,description=Name stored in the backend user profile at connect"`

	// FollowupDelayMS is how long the conversation may idle before a silent
	// follow-up is requested. Zero disables follow-ups.
	FollowupDelayMS int `yaml:"followup_delay_ms" json:"followup_delay_ms" jsonschema:"title=Follow-up delay,description=Idle milliseconds before a silent follow-up is requested; 0 disables,default=30000"`
}

func defaultConfig() Config {
	detection := pipeline.DefaultDetectionConfig()
	return Config{
		Server: ServerConfig{
			URL:              "localhost:8000",
			ConnectTimeoutMS: 5000,
		},
		Audio: AudioConfig{
			SampleRate:       detection.SampleRate,
			FrameSize:        detection.FrameSize,
			EnergyThreshold:  detection.EnergyThreshold,
			SilenceTimeoutMS: int(detection.SilenceTimeout / time.Millisecond),
			MinUtteranceMS:   int(detection.MinUtteranceLength / time.Millisecond),
			LowPassCutoffHz:  detection.LowPassCutoff,
		},
		Conversation: ConversationConfig{
			Greeting:        true,
			FollowupDelayMS: 30000,
		},
	}
}

// loadConfig reads the YAML file at path, or falls back to defaults when path
// is empty and the default file is absent. An explicitly named file must
// exist.
func loadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	f, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return Config{}, fmt.Errorf("failed to open config file %q: %w", path, err)
	}
	defer f.Close()

	config, err := loadConfigFromReader(f)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load config file %q: %w", path, err)
	}
	return config, nil
}

// loadConfigFromReader decodes YAML over the defaults, so partial files only
// override what they mention.
func loadConfigFromReader(r io.Reader) (Config, error) {
	config := defaultConfig()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) validate() error {
	if c.Server.URL == "" {
		return errors.New("server.url must not be empty")
	}
	if c.Server.ConnectTimeoutMS <= 0 {
		return fmt.Errorf("server.connect_timeout_ms must be positive, got %d", c.Server.ConnectTimeoutMS)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.FrameSize <= 0 {
		return fmt.Errorf("audio.frame_size must be positive, got %d", c.Audio.FrameSize)
	}
	if c.Audio.EnergyThreshold <= 0 {
		return fmt.Errorf("audio.energy_threshold must be positive, got %f", c.Audio.EnergyThreshold)
	}
	if c.Audio.SilenceTimeoutMS < 0 {
		return fmt.Errorf("audio.silence_timeout_ms must not be negative, got %d", c.Audio.SilenceTimeoutMS)
	}
	if c.Audio.MinUtteranceMS < 0 {
		return fmt.Errorf("audio.min_utterance_ms must not be negative, got %d", c.Audio.MinUtteranceMS)
	}
	if c.Audio.LowPassCutoffHz < 0 {
		return fmt.Errorf("audio.low_pass_cutoff_hz must not be negative, got %f", c.Audio.LowPassCutoffHz)
	}
	if c.Conversation.FollowupDelayMS < 0 {
		return fmt.Errorf("conversation.followup_delay_ms must not be negative, got %d", c.Conversation.FollowupDelayMS)
	}
	return nil
}

func (c Config) detectionConfig() pipeline.DetectionConfig {
	return pipeline.DetectionConfig{
		EnergyThreshold:    c.Audio.EnergyThreshold,
		SilenceTimeout:     time.Duration(c.Audio.SilenceTimeoutMS) * time.Millisecond,
		MinUtteranceLength: time.Duration(c.Audio.MinUtteranceMS) * time.Millisecond,
		LowPassCutoff:      c.Audio.LowPassCutoffHz,
		SampleRate:         c.Audio.SampleRate,
		Channels:           1,
		FrameSize:          c.Audio.FrameSize,
	}
}

func (c Config) connectTimeout() time.Duration {
	return time.Duration(c.Server.ConnectTimeoutMS) * time.Millisecond
}

func (c Config) followupDelay() time.Duration {
	return time.Duration(c.Conversation.FollowupDelayMS) * time.Millisecond
}

// configSchema renders the configuration file's JSON schema, for editors and
// validation tooling.
func configSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(Config{})

	rendered, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render config schema: %w", err)
	}
	return rendered, nil
}
