// Package vision wraps the chat completion providers used to analyse pitch
// frames and to answer food advice questions.
package vision

import (
	"context"
	"net/http"

	"github.com/vango-go/pitch-relay/pkg/core"
)

// MsgMissingConfig is reported when a provider has no API key.
const MsgMissingConfig = "Missing API configuration"

// Request is a single-turn completion request. ImageURL is optional and, when
// set, is either a data URL or a remote image URL.
type Request struct {
	System    string
	Prompt    string
	ImageURL  string
	MaxTokens int64
}

// Completer sends one completion request and returns the raw reply text.
type Completer interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Option configures a provider.
type Option func(*options)

type options struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithBaseURL points the provider at a different endpoint (for testing or proxying).
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithHTTPClient sets the HTTP client used for outbound calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

func buildOptions(defaultModel string, opts []Option) options {
	o := options{model: defaultModel}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func errMissingConfig() *core.Error {
	return core.NewConfigurationError(MsgMissingConfig)
}
