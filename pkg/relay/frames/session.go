// Package frames relays video frames from a WebSocket client to a vision
// provider on a fixed cadence and pushes the analysis back.
package frames

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-go/pitch-relay/pkg/core"
	"github.com/vango-go/pitch-relay/pkg/core/extract"
	"github.com/vango-go/pitch-relay/pkg/relay/metrics"
)

const noDetails = "No additional details"

// ErrSessionClosed is returned when sending on a closed session.
var ErrSessionClosed = errors.New("frames: session closed")

// Analyzer turns one frame into a result. Errors are reported to the client
// as the update payload.
type Analyzer func(ctx context.Context, frame string) (extract.Result, error)

type Config struct {
	Interval        time.Duration
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxMessageBytes int64
	SendQueue       int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 16
	}
	return c
}

// wsConn is the subset of *websocket.Conn a session uses.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Session is the state of one connection: the latest frame, its ticker and
// its outbound queue. Frames coalesce; only the newest is ever analysed.
type Session struct {
	ID string

	conn    wsConn
	cfg     Config
	analyze Analyzer
	logger  *slog.Logger
	metrics *metrics.Collector

	mu    sync.Mutex
	frame string

	out    chan []byte
	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Session) { s.metrics = m }
}

func NewSession(ctx context.Context, conn wsConn, cfg Config, analyze Analyzer, opts ...Option) *Session {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = cfg.withDefaults()
	sctx, cancel := context.WithCancel(ctx)

	s := &Session{
		ID:      uuid.NewString(),
		conn:    conn,
		cfg:     cfg,
		analyze: analyze,
		logger:  slog.Default(),
		out:     make(chan []byte, cfg.SendQueue),
		ctx:     sctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.ID)
	return s
}

// Run serves the connection until the client disconnects or the session is
// closed. The reader runs on the calling goroutine; the ticker and writer run
// alongside it and are joined before Run returns.
func (s *Session) Run() error {
	defer s.cancel()
	s.metrics.SessionOpened()
	defer s.metrics.SessionClosed()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer s.cancel()
		if err := s.writeLoop(); err != nil {
			s.logger.Debug("frames writer stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		s.tickLoop()
	}()

	_ = s.Send(EventConnected, ConnectedPayload{ID: s.ID})

	err := s.readLoop()
	s.cancel()
	wg.Wait()
	return err
}

// Close stops the session. It is safe to call more than once.
func (s *Session) Close() {
	s.cancel()
}

func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// SetFrame replaces the buffered frame.
func (s *Session) SetFrame(frame string) {
	s.mu.Lock()
	s.frame = frame
	s.mu.Unlock()
}

// Frame returns the buffered frame, if any.
func (s *Session) Frame() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.frame != ""
}

// Send queues an event for the writer.
func (s *Session) Send(event string, data any) error {
	msg, err := EncodeEvent(event, data)
	if err != nil {
		return err
	}
	select {
	case <-s.ctx.Done():
		return ErrSessionClosed
	default:
	}
	select {
	case s.out <- msg:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
}

// Warn tells the client the relay is about to close the connection.
func (s *Session) Warn(code, message string) error {
	return s.Send(EventWarning, WarningPayload{Code: code, Message: message})
}

func (s *Session) readLoop() error {
	if s.cfg.MaxMessageBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	for {
		messageType, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			if s.ctx.Err() != nil {
				return nil
			}
			return err
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		s.handleMessage(messageType, raw)
	}
}

func (s *Session) handleMessage(messageType int, raw []byte) {
	msg, err := DecodeClientMessage(messageType, raw)
	if err != nil {
		s.logger.Debug("frames: undecodable message", "error", err, "bytes", len(raw))
		_ = s.Send(EventError, ErrorPayload{Error: MsgInvalidMessage})
		return
	}
	if msg.Event != EventFrame {
		s.logger.Debug("frames: ignoring event", "event", msg.Event)
		return
	}
	if msg.Frame == "" {
		_ = s.Send(EventError, ErrorPayload{Error: MsgFrameRequired})
		return
	}
	s.SetFrame(msg.Frame)
	s.metrics.FrameReceived()
}

func (s *Session) tickLoop() {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick analyses the buffered frame once. The frame is kept, so an unchanged
// frame is analysed again on the next tick.
func (s *Session) tick() {
	frame, ok := s.Frame()
	s.metrics.FrameTick(ok)
	if !ok {
		return
	}
	if s.analyze == nil {
		_ = s.Send(EventUpdate, UpdatePayload{Result: failurePayload(core.NewConfigurationError("Missing API configuration"))})
		return
	}

	result, err := s.analyze(s.ctx, frame)
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		s.logger.Warn("frame analysis failed", "error", err)
		_ = s.Send(EventUpdate, UpdatePayload{Result: failurePayload(err)})
		return
	}
	_ = s.Send(EventUpdate, UpdatePayload{Result: result})
}

// failurePayload renders an analysis error the way clients expect it inside
// an update: {"error"} for unparseable replies, {"error","details"} otherwise.
func failurePayload(err error) map[string]any {
	var failure *extract.Failure
	if errors.As(err, &failure) {
		return map[string]any{"error": failure.Message}
	}
	var ce *core.Error
	if errors.As(err, &ce) {
		var details any = noDetails
		if ce.Details != nil {
			details = ce.Details
		}
		return map[string]any{"error": ce.Message, "details": details}
	}
	return map[string]any{"error": err.Error(), "details": noDetails}
}

func (s *Session) writeLoop() error {
	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()
	defer s.conn.Close()

	for {
		select {
		case <-s.ctx.Done():
			s.flush()
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.cfg.WriteTimeout))
			return nil
		case msg := <-s.out:
			if err := s.write(msg); err != nil {
				return err
			}
		case <-ping.C:
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				return err
			}
		}
	}
}

// flush writes whatever is already queued, such as a shutdown warning.
func (s *Session) flush() {
	for {
		select {
		case msg := <-s.out:
			if err := s.write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) write(msg []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}
