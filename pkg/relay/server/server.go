package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vango-go/pitch-relay/pkg/core/vision"
	"github.com/vango-go/pitch-relay/pkg/core/voice/tts"
	"github.com/vango-go/pitch-relay/pkg/relay/config"
	"github.com/vango-go/pitch-relay/pkg/relay/frames"
	"github.com/vango-go/pitch-relay/pkg/relay/handlers"
	"github.com/vango-go/pitch-relay/pkg/relay/lifecycle"
	"github.com/vango-go/pitch-relay/pkg/relay/metrics"
	"github.com/vango-go/pitch-relay/pkg/relay/mw"
	"github.com/vango-go/pitch-relay/pkg/relay/upstream"
)

const drainingWarning = "relay is shutting down"

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	metrics   *metrics.Collector
	lifecycle *lifecycle.Lifecycle
	sessions  *frames.Tracker

	vision vision.Completer
	speech tts.Provider
	voices tts.Voices
}

func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient, err := upstream.NewHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("upstream client: %w", err)
	}
	factory := upstream.Factory{HTTPClient: httpClient}

	completer, err := factory.Vision(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("vision provider: %w", err)
	}
	voices, err := tts.LoadVoices(cfg.VoicesFile)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		metrics:   metrics.New(),
		lifecycle: &lifecycle.Lifecycle{},
		sessions:  frames.NewTracker(),
		vision:    completer,
		speech:    factory.Speech(cfg),
		voices:    voices,
	}
	if completer == nil {
		logger.Warn("vision provider api key is not configured", "provider", cfg.VisionProvider)
	}

	s.routes()
	s.lifecycle.MarkStarted(time.Now())
	return s, nil
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Config:    s.cfg,
		Lifecycle: s.lifecycle,
		Sessions:  s.sessions,
		Vision:    s.vision,
		Speech:    s.speech,
	})
	s.mux.Handle("/metrics", s.metrics.Handler())

	s.mux.Handle("/ws", handlers.FramesHandler{
		Config:    s.cfg,
		Vision:    s.vision,
		Logger:    s.logger,
		Metrics:   s.metrics,
		Lifecycle: s.lifecycle,
		Sessions:  s.sessions,
	})
	s.mux.Handle("/advice", handlers.AdviceHandler{
		Config:  s.cfg,
		Vision:  s.vision,
		Logger:  s.logger,
		Metrics: s.metrics,
	})

	speech := handlers.TTSHandler{
		Config:  s.cfg,
		Voices:  s.voices,
		Speech:  s.speech,
		Logger:  s.logger,
		Metrics: s.metrics,
	}
	s.mux.Handle("/api/tts", speech)
	s.mux.Handle("/api/tts/{persona}", speech)

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.Metrics(s.metrics, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining makes /readyz report 503 and refuses new WebSocket sessions.
func (s *Server) SetDraining() {
	s.lifecycle.SetDraining(true)
}

// WarnSessions tells every open session the relay is going away.
func (s *Server) WarnSessions() int {
	n := s.sessions.WarnAll("draining", drainingWarning)
	if n > 0 {
		s.logger.Info("warned frame sessions", "count", n)
	}
	return n
}

func (s *Server) CancelSessions() int {
	return s.sessions.CancelAll()
}

// WaitSessions blocks until every session has ended or ctx is done.
func (s *Server) WaitSessions(ctx context.Context) bool {
	return s.sessions.Wait(ctx)
}
