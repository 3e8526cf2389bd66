package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/pitch-relay/pkg/core"
	"github.com/vango-go/pitch-relay/pkg/core/extract"
	"github.com/vango-go/pitch-relay/pkg/core/vision"
	"github.com/vango-go/pitch-relay/pkg/relay/apierror"
	"github.com/vango-go/pitch-relay/pkg/relay/config"
	"github.com/vango-go/pitch-relay/pkg/relay/frames"
	"github.com/vango-go/pitch-relay/pkg/relay/lifecycle"
	"github.com/vango-go/pitch-relay/pkg/relay/metrics"
	"github.com/vango-go/pitch-relay/pkg/relay/mw"
)

// FramesHandler upgrades GET /ws and runs one frames.Session per connection.
type FramesHandler struct {
	Config    config.Config
	Vision    vision.Completer
	Logger    *slog.Logger
	Metrics   *metrics.Collector
	Lifecycle *lifecycle.Lifecycle
	Sessions  *frames.Tracker
}

func (h FramesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if h.Lifecycle.IsDraining() {
		apierror.WriteError(w, core.NewAPIError("relay is draining").WithStatus(http.StatusServiceUnavailable))
		return
	}

	reqID, _ := mw.RequestIDFrom(r.Context())
	var respHeader http.Header
	if reqID != "" {
		respHeader = http.Header{"X-Request-ID": {reqID}}
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: h.originAllowed,
	}
	conn, err := upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	session := frames.NewSession(context.WithoutCancel(r.Context()), conn, frames.Config{
		Interval:        h.Config.FrameInterval,
		PingInterval:    h.Config.WSPingInterval,
		PongTimeout:     h.Config.WSPongTimeout,
		WriteTimeout:    h.Config.WSWriteTimeout,
		MaxMessageBytes: h.Config.WSMaxMessageBytes,
	}, h.analyzer(), frames.WithLogger(logger.With("request_id", reqID)), frames.WithMetrics(h.Metrics))

	unregister := h.Sessions.Register(session.ID, session)
	defer unregister()

	logger.Info("frames session opened", "session_id", session.ID, "request_id", reqID)
	start := time.Now()
	err = session.Run()
	logger.Info("frames session closed",
		"session_id", session.ID,
		"request_id", reqID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err,
	)
}

func (h FramesHandler) analyzer() frames.Analyzer {
	return func(ctx context.Context, frame string) (extract.Result, error) {
		start := time.Now()
		result, err := vision.AnalyzeFrame(ctx, h.Vision, frame, h.Config.FrameMaxTokens)
		h.Metrics.RecordProviderCall(providerName(h.Vision), "frame", metrics.Outcome(err), time.Since(start))
		return result, err
	}
}

func (h FramesHandler) originAllowed(r *http.Request) bool {
	if h.Config.AllowsAnyOrigin() {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}
