package handlers

import (
	"net/http"
	"time"

	"github.com/vango-go/pitch-relay/pkg/core/vision"
	"github.com/vango-go/pitch-relay/pkg/core/voice/tts"
	"github.com/vango-go/pitch-relay/pkg/relay/config"
	"github.com/vango-go/pitch-relay/pkg/relay/frames"
	"github.com/vango-go/pitch-relay/pkg/relay/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ReadyHandler reports 503 while draining. Missing provider keys are listed
// as issues but do not make the relay unready; the affected routes answer
// with a configuration error instead.
type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
	Sessions  *frames.Tracker
	Vision    vision.Completer
	Speech    tts.Provider
}

type readyResp struct {
	OK               bool     `json:"ok"`
	Draining         bool     `json:"draining"`
	VisionProvider   string   `json:"vision_provider"`
	VisionModel      string   `json:"vision_model,omitempty"`
	VisionConfigured bool     `json:"vision_configured"`
	SpeechConfigured bool     `json:"speech_configured"`
	ActiveSessions   int      `json:"active_sessions"`
	UptimeSeconds    int64    `json:"uptime_seconds"`
	Issues           []string `json:"issues,omitempty"`
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	issues := make([]string, 0, 2)

	visionConfigured := h.Vision != nil
	if !visionConfigured {
		issues = append(issues, "vision provider api key is not configured")
	}
	speechConfigured := speechReady(h.Speech)
	if !speechConfigured {
		issues = append(issues, "elevenlabs api key is not configured")
	}

	draining := h.Lifecycle.IsDraining()
	status := http.StatusOK
	if draining {
		status = http.StatusServiceUnavailable
	}

	resp := readyResp{
		OK:               !draining,
		Draining:         draining,
		VisionProvider:   string(h.Config.VisionProvider),
		VisionConfigured: visionConfigured,
		SpeechConfigured: speechConfigured,
		ActiveSessions:   h.Sessions.Count(),
		UptimeSeconds:    int64(h.Lifecycle.Uptime(time.Now()).Seconds()),
		Issues:           issues,
	}
	if h.Vision != nil {
		resp.VisionModel = h.Vision.Model()
	}
	writeJSON(w, status, resp)
}

func speechReady(p tts.Provider) bool {
	if p == nil {
		return false
	}
	if c, ok := p.(interface{ Configured() bool }); ok {
		return c.Configured()
	}
	return true
}
