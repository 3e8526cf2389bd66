package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/vango-go/pitch-relay/pkg/core"
)

// DefaultGeminiModel is used when the relay is configured for Gemini.
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini implements Completer against the Gemini Developer API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini completer. An empty apiKey is a configuration
// error because the SDK would otherwise fall back to ambient credentials.
func NewGemini(ctx context.Context, apiKey string, opts ...Option) (*Gemini, error) {
	if apiKey == "" {
		return nil, errMissingConfig()
	}
	o := buildOptions(DefaultGeminiModel, opts)

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if o.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{client: client, model: o.model}, nil
}

func (p *Gemini) Name() string  { return "gemini" }
func (p *Gemini) Model() string { return p.model }

// Complete sends the prompt and optional image as one user turn.
func (p *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.ImageURL != "" {
		part, err := imagePart(req.ImageURL)
		if err != nil {
			return "", core.NewInvalidRequestError(err.Error())
		}
		parts = append(parts, part)
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(min(req.MaxTokens, math.MaxInt32))
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		return "", geminiError(err)
	}
	return resp.Text(), nil
}

// imagePart turns a data URL into inline bytes; any other URL is passed by reference.
func imagePart(url string) (*genai.Part, error) {
	mime, data, ok := parseDataURL(url)
	if !ok {
		return genai.NewPartFromURI(url, "image/jpeg"), nil
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	return genai.NewPartFromBytes(raw, mime), nil
}

func parseDataURL(url string) (mime, data string, ok bool) {
	rest, found := strings.CutPrefix(url, "data:")
	if !found {
		return "", "", false
	}
	meta, data, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", "", false
	}
	if mime == "" {
		mime = "image/jpeg"
	}
	return mime, data, true
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return core.NewProviderError("gemini", fmt.Errorf("generate content: status %d", apiErr.Code), map[string]any{
			"status":  apiErr.Code,
			"message": apiErr.Message,
		})
	}
	return core.NewProviderError("gemini", fmt.Errorf("generate content: %w", err), nil)
}
