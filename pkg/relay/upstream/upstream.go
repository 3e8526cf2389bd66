// Package upstream builds the outbound HTTP client and the provider clients
// that share it.
package upstream

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"

	"github.com/vango-go/pitch-relay/pkg/core/vision"
	"github.com/vango-go/pitch-relay/pkg/core/voice/tts"
	"github.com/vango-go/pitch-relay/pkg/relay/config"
)

// NewHTTPClient returns the client every provider call goes through. With
// SOCKSProxy set, connections are dialed through that SOCKS5 proxy and the
// environment proxy settings are ignored.
func NewHTTPClient(cfg config.Config) (*http.Client, error) {
	connectTimeout := cfg.UpstreamConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	direct := &net.Dialer{Timeout: connectTimeout}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           direct.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: cfg.UpstreamResponseHeaderTimeout,
	}

	if cfg.SOCKSProxy != "" {
		dialer, err := proxy.SOCKS5("tcp", cfg.SOCKSProxy, nil, direct)
		if err != nil {
			return nil, fmt.Errorf("socks5 proxy %s: %w", cfg.SOCKSProxy, err)
		}
		transport.Proxy = nil
		transport.DialContext = contextDialer(dialer)
	}

	return &http.Client{Transport: transport}, nil
}

func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}

// Factory creates provider clients bound to one HTTP client.
type Factory struct {
	HTTPClient *http.Client
}

// Vision returns the configured completer, or nil when its API key is
// missing. Callers treat nil as "Missing API configuration".
func (f Factory) Vision(ctx context.Context, cfg config.Config) (vision.Completer, error) {
	opts := []vision.Option{
		vision.WithHTTPClient(f.client()),
		vision.WithModel(cfg.VisionModel),
	}

	switch cfg.VisionProvider {
	case config.VisionProviderOpenAI, "":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, vision.WithBaseURL(cfg.OpenAIBaseURL))
		}
		return vision.NewOpenAI(cfg.OpenAIAPIKey, opts...), nil
	case config.VisionProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, nil
		}
		g, err := vision.NewGemini(ctx, cfg.GeminiAPIKey, opts...)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown vision provider %q", cfg.VisionProvider)
	}
}

// Speech returns the ElevenLabs client. It is always non-nil; a missing key
// surfaces at request time.
func (f Factory) Speech(cfg config.Config) *tts.ElevenLabsProvider {
	return tts.NewElevenLabsWithClient(cfg.ElevenLabsAPIKey, f.client()).WithBaseURL(cfg.ElevenLabsBaseURL)
}

func (f Factory) client() *http.Client {
	if f.HTTPClient == nil {
		return &http.Client{}
	}
	return f.HTTPClient
}
