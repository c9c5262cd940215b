package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigFromReaderEmptyKeepsDefaults(t *testing.T) {
	config, err := loadConfigFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("expected empty config to load, got error %v", err)
	}

	if config.Server.URL != "localhost:8000" {
		t.Fatalf("expected default server URL, got %q", config.Server.URL)
	}
	if config.Server.ConnectTimeoutMS != 5000 {
		t.Fatalf("expected default connect timeout, got %d", config.Server.ConnectTimeoutMS)
	}
	if config.Audio.SampleRate != 44100 {
		t.Fatalf("expected default sample rate, got %d", config.Audio.SampleRate)
	}
	if config.Audio.FrameSize != 4096 {
		t.Fatalf("expected default frame size, got %d", config.Audio.FrameSize)
	}
	if config.Audio.EnergyThreshold != 0.03 {
		t.Fatalf("expected default energy threshold, got %f", config.Audio.EnergyThreshold)
	}
	if config.Audio.SilenceTimeoutMS != 1000 {
		t.Fatalf("expected default silence timeout, got %d", config.Audio.SilenceTimeoutMS)
	}
	if !config.Conversation.Greeting {
		t.Fatal("expected greeting to default on")
	}
	if config.Conversation.FollowupDelayMS != 30000 {
		t.Fatalf("expected default follow-up delay, got %d", config.Conversation.FollowupDelayMS)
	}
}

func TestLoadConfigFromReaderPartialOverride(t *testing.T) {
	config, err := loadConfigFromReader(strings.NewReader(`
server:
  url: wss://assistant.local:9000
audio:
  energy_threshold: 0.05
`))
	if err != nil {
		t.Fatalf("expected partial config to load, got error %v", err)
	}

	if config.Server.URL != "wss://assistant.local:9000" {
		t.Fatalf("expected overridden server URL, got %q", config.Server.URL)
	}
	if config.Audio.EnergyThreshold != 0.05 {
		t.Fatalf("expected overridden energy threshold, got %f", config.Audio.EnergyThreshold)
	}

	// Everything the file does not mention keeps its default, including
	// siblings of overridden fields.
	if config.Server.ConnectTimeoutMS != 5000 {
		t.Fatalf("expected default connect timeout to survive, got %d", config.Server.ConnectTimeoutMS)
	}
	if config.Audio.SampleRate != 44100 {
		t.Fatalf("expected default sample rate to survive, got %d", config.Audio.SampleRate)
	}
}

func TestLoadConfigFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := loadConfigFromReader(strings.NewReader("volume: 11\n"))
	if err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestLoadConfigFromReaderRejectsInvalidValues(t *testing.T) {
	for name, body := range map[string]string{
		"negative sample rate":    "audio:\n  sample_rate: -1\n",
		"zero frame size":         "audio:\n  frame_size: 0\n",
		"zero energy threshold":   "audio:\n  energy_threshold: 0\n",
		"negative followup delay": "conversation:\n  followup_delay_ms: -5\n",
		"empty server url":        "server:\n  url: \"\"\n",
	} {
		if _, err := loadConfigFromReader(strings.NewReader(body)); err == nil {
			t.Fatalf("expected %s to be rejected", name)
		}
	}
}

func TestLoadConfigReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocalis.yaml")
	if err := os.WriteFile(path, []byte("conversation:\n  user_name: Ada\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	config, err := loadConfig(path)
	if err != nil {
		t.Fatalf("expected config file to load, got error %v", err)
	}
	if config.Conversation.UserName != "Ada" {
		t.Fatalf("expected user name from file, got %q", config.Conversation.UserName)
	}
}

func TestLoadConfigExplicitMissingFileFails(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected an explicitly named missing file to fail")
	}
}

func TestDetectionConfigConversion(t *testing.T) {
	config := defaultConfig()
	config.Audio.SilenceTimeoutMS = 750
	config.Audio.MinUtteranceMS = 250
	config.Audio.SampleRate = 16000
	config.Audio.FrameSize = 1024

	detection := config.detectionConfig()
	if detection.SilenceTimeout != 750*time.Millisecond {
		t.Fatalf("expected silence timeout 750ms, got %v", detection.SilenceTimeout)
	}
	if detection.MinUtteranceLength != 250*time.Millisecond {
		t.Fatalf("expected min utterance 250ms, got %v", detection.MinUtteranceLength)
	}
	if detection.SampleRate != 16000 || detection.FrameSize != 1024 {
		t.Fatalf("expected audio geometry to carry over, got %d/%d", detection.SampleRate, detection.FrameSize)
	}
	if detection.Channels != 1 {
		t.Fatalf("expected mono capture, got %d channels", detection.Channels)
	}
}

func TestConfigSchemaListsTopLevelSections(t *testing.T) {
	rendered, err := configSchema()
	if err != nil {
		t.Fatalf("expected schema to render, got error %v", err)
	}

	var schema struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(rendered, &schema); err != nil {
		t.Fatalf("expected schema to be valid JSON, got error %v", err)
	}

	for _, section := range []string{"server", "audio", "conversation"} {
		if _, ok := schema.Properties[section]; !ok {
			t.Fatalf("expected schema to describe the %q section", section)
		}
	}
}
