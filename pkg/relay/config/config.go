package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type VisionProvider string

const (
	VisionProviderOpenAI VisionProvider = "openai"
	VisionProviderGemini VisionProvider = "gemini"
)

// CORSWildcard in CORSAllowedOrigins allows every origin.
const CORSWildcard = "*"

type Config struct {
	Addr string

	// Provider credentials. Missing keys are not a startup error; the affected
	// routes answer 500 "Missing API configuration" instead.
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	GeminiAPIKey      string
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string

	VisionProvider VisionProvider
	VisionModel    string // empty => provider default

	// Frame analysis and advice.
	FrameInterval   time.Duration
	FrameMaxTokens  int64
	AdviceMaxTokens int64

	// Optional YAML persona table merged over the built-in voices.
	VoicesFile string

	MaxBodyBytes int64

	// WebSocket (/ws).
	WSMaxMessageBytes int64
	WSPingInterval    time.Duration
	WSPongTimeout     time.Duration
	WSWriteTimeout    time.Duration

	// CORS; "*" allows every origin.
	CORSAllowedOrigins map[string]struct{}

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration

	// Upstream HTTP client defaults
	UpstreamConnectTimeout        time.Duration
	UpstreamResponseHeaderTimeout time.Duration
	SOCKSProxy                    string // host:port, empty => direct
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                          envOr("RELAY_ADDR", ":3001"),
		OpenAIAPIKey:                  envOr("OPENAI_API_KEY", envOr("OPENAI_KEY", "")),
		OpenAIBaseURL:                 envOr("OPENAI_BASE_URL", ""),
		GeminiAPIKey:                  envOr("GEMINI_API_KEY", ""),
		ElevenLabsAPIKey:              envOr("ELEVENLABS_API_KEY", ""),
		ElevenLabsBaseURL:             envOr("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		VisionProvider:                VisionProvider(strings.ToLower(envOr("RELAY_VISION_PROVIDER", string(VisionProviderOpenAI)))),
		VisionModel:                   envOr("RELAY_VISION_MODEL", ""),
		FrameInterval:                 envDurationOr("RELAY_FRAME_INTERVAL", 10*time.Second),
		FrameMaxTokens:                envInt64Or("RELAY_FRAME_MAX_TOKENS", 500),
		AdviceMaxTokens:               envInt64Or("RELAY_ADVICE_MAX_TOKENS", 300),
		VoicesFile:                    envOr("RELAY_VOICES_FILE", ""),
		MaxBodyBytes:                  envInt64Or("RELAY_MAX_BODY_BYTES", 1<<20),        // 1 MiB
		WSMaxMessageBytes:             envInt64Or("RELAY_WS_MAX_MESSAGE_BYTES", 16<<20), // 16 MiB
		WSPingInterval:                envDurationOr("RELAY_WS_PING_INTERVAL", 25*time.Second),
		WSPongTimeout:                 envDurationOr("RELAY_WS_PONG_TIMEOUT", 60*time.Second),
		WSWriteTimeout:                envDurationOr("RELAY_WS_WRITE_TIMEOUT", 10*time.Second),
		CORSAllowedOrigins:            make(map[string]struct{}),
		ReadHeaderTimeout:             envDurationOr("RELAY_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:                   envDurationOr("RELAY_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:           envDurationOr("RELAY_SHUTDOWN_GRACE_PERIOD", 15*time.Second),
		UpstreamConnectTimeout:        envDurationOr("RELAY_CONNECT_TIMEOUT", 5*time.Second),
		UpstreamResponseHeaderTimeout: envDurationOr("RELAY_UPSTREAM_RESPONSE_HEADER_TIMEOUT", 60*time.Second),
		SOCKSProxy:                    envOr("RELAY_SOCKS_PROXY", ""),
	}

	switch cfg.VisionProvider {
	case VisionProviderOpenAI, VisionProviderGemini:
	default:
		return Config{}, fmt.Errorf("RELAY_VISION_PROVIDER must be one of openai|gemini")
	}

	for _, origin := range splitCSV(envOr("RELAY_CORS_ORIGINS", CORSWildcard)) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.FrameInterval <= 0 {
		return Config{}, fmt.Errorf("RELAY_FRAME_INTERVAL must be > 0")
	}
	if cfg.FrameMaxTokens <= 0 {
		return Config{}, fmt.Errorf("RELAY_FRAME_MAX_TOKENS must be > 0")
	}
	if cfg.AdviceMaxTokens <= 0 {
		return Config{}, fmt.Errorf("RELAY_ADVICE_MAX_TOKENS must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("RELAY_MAX_BODY_BYTES must be > 0")
	}
	if cfg.WSMaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("RELAY_WS_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("RELAY_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSPongTimeout <= cfg.WSPingInterval {
		return Config{}, fmt.Errorf("RELAY_WS_PONG_TIMEOUT must be > RELAY_WS_PING_INTERVAL")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("RELAY_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.UpstreamConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.UpstreamResponseHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_UPSTREAM_RESPONSE_HEADER_TIMEOUT must be > 0")
	}
	if err := validateURL("ELEVENLABS_BASE_URL", cfg.ElevenLabsBaseURL); err != nil {
		return Config{}, err
	}
	if cfg.OpenAIBaseURL != "" {
		if err := validateURL("OPENAI_BASE_URL", cfg.OpenAIBaseURL); err != nil {
			return Config{}, err
		}
	}
	if cfg.SOCKSProxy != "" && strings.Contains(cfg.SOCKSProxy, "://") {
		return Config{}, fmt.Errorf("RELAY_SOCKS_PROXY must be host:port")
	}

	return cfg, nil
}

// AllowsAnyOrigin reports whether CORS is configured with the wildcard.
func (c Config) AllowsAnyOrigin() bool {
	_, ok := c.CORSAllowedOrigins[CORSWildcard]
	return ok
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL", key)
	}
	return nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
