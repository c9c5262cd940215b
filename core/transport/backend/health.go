package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jinzhu/copier"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HealthReport mirrors the backend's health endpoint.
type HealthReport struct {
	Status   string `json:"status"`
	Services struct {
		Transcription bool `json:"transcription"`
		LLM           bool `json:"llm"`
		TTS           bool `json:"tts"`
	} `json:"services"`
	Config struct {
		WhisperModel  string `json:"whisper_model"`
		TTSVoice      string `json:"tts_voice"`
		WebsocketPort int    `json:"websocket_port"`
		VisionEnabled bool   `json:"vision_enabled"`
	} `json:"config"`
}

// Ready reports whether every backend service came up.
func (r HealthReport) Ready() bool {
	return r.Status == "ok" && r.Services.Transcription && r.Services.LLM && r.Services.TTS
}

// RemoteConfig mirrors the backend's config endpoint. The per-service maps
// are free-form, the backend surfaces whatever its services expose.
type RemoteConfig struct {
	Transcription map[string]any `json:"transcription"`
	LLM           map[string]any `json:"llm"`
	TTS           map[string]any `json:"tts"`
	System        map[string]any `json:"system"`
}

// CheckHealth probes the backend before opening a session.
func CheckHealth(ctx context.Context, serverURL string) (HealthReport, error) {
	base, err := parseServerURL(serverURL)
	if err != nil {
		return HealthReport{}, err
	}

	var report HealthReport
	if err := getJSON(ctx, base, "/health", &report); err != nil {
		return HealthReport{}, fmt.Errorf("failed to check backend health: %w", err)
	}
	return report, nil
}

// FetchConfig retrieves the backend's full configuration and caches it on the
// client.
func (c *Client) FetchConfig(ctx context.Context) (RemoteConfig, error) {
	var config RemoteConfig
	if err := getJSON(ctx, c.serverURL, "/config", &config); err != nil {
		return RemoteConfig{}, fmt.Errorf("failed to fetch backend config: %w", err)
	}

	c.configMu.Lock()
	c.cachedConfig = &config
	c.configMu.Unlock()
	return config, nil
}

// CachedConfig returns a copy of the last fetched configuration, so callers
// can read it without racing a concurrent refresh.
func (c *Client) CachedConfig() (RemoteConfig, bool) {
	c.configMu.Lock()
	defer c.configMu.Unlock()

	if c.cachedConfig == nil {
		return RemoteConfig{}, false
	}

	var config RemoteConfig
	copier.CopyWithOption(&config, c.cachedConfig, copier.Option{DeepCopy: true})
	return config, true
}

func getJSON(ctx context.Context, base *url.URL, path string, target any) error {
	endpoint := *base
	endpoint.Path = path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
			return operationName + " " + request.URL.Path
		}),
	)}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}
