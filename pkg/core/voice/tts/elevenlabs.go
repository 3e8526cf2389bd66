package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vango-go/pitch-relay/pkg/core"
)

const (
	ElevenLabsDefaultBaseURL = "https://api.elevenlabs.io"

	// FormatMPEG is the only format the relay requests.
	FormatMPEG = "audio/mpeg"

	DefaultStability       = 0.75
	DefaultSimilarityBoost = 0.75

	maxErrorBody = 4 << 10
)

type ElevenLabsProvider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

func NewElevenLabs(apiKey string) *ElevenLabsProvider {
	return NewElevenLabsWithClient(apiKey, nil)
}

func NewElevenLabsWithClient(apiKey string, client *http.Client) *ElevenLabsProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &ElevenLabsProvider{
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: client,
		baseURL:    ElevenLabsDefaultBaseURL,
	}
}

func (e *ElevenLabsProvider) WithBaseURL(base string) *ElevenLabsProvider {
	if e == nil {
		return e
	}
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base != "" {
		e.baseURL = base
	}
	return e
}

func (e *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

// Configured reports whether an API key is present.
func (e *ElevenLabsProvider) Configured() bool {
	return e != nil && e.apiKey != ""
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize calls POST /v1/text-to-speech/{voice_id} and returns the whole
// audio body.
func (e *ElevenLabsProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	if !e.Configured() {
		return nil, core.NewConfigurationError("Missing API configuration")
	}
	voiceID := strings.TrimSpace(opts.Voice)
	if voiceID == "" {
		return nil, core.NewInvalidRequestError("voice id is required")
	}

	settings := voiceSettings{Stability: opts.Stability, SimilarityBoost: opts.SimilarityBoost}
	if settings.Stability == 0 {
		settings.Stability = DefaultStability
	}
	if settings.SimilarityBoost == 0 {
		settings.SimilarityBoost = DefaultSimilarityBoost
	}
	body, err := json.Marshal(synthesizeRequest{Text: text, VoiceSettings: settings})
	if err != nil {
		return nil, fmt.Errorf("encode tts request: %w", err)
	}

	format := opts.Format
	if format == "" {
		format = FormatMPEG
	}

	endpoint := e.baseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", format)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, core.NewProviderError(e.Name(), err, nil)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewProviderError(e.Name(), fmt.Errorf("read audio: %w", err), nil)
	}
	return &Synthesis{Audio: audio, Format: format}, nil
}

// parseError prefers ElevenLabs' {"detail": ...} body for details and falls
// back to the raw text.
func parseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var details any = strings.TrimSpace(string(raw))
	var parsed struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Detail != nil {
		details = parsed.Detail
	}
	return core.NewProviderError("elevenlabs", fmt.Errorf("request failed with status code %d", resp.StatusCode), details)
}
