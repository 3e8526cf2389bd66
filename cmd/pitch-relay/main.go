package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	"github.com/vango-go/pitch-relay/internal/dotenv"
	"github.com/vango-go/pitch-relay/pkg/relay/config"
	relayserver "github.com/vango-go/pitch-relay/pkg/relay/server"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

type relayDeps struct {
	loadConfig   func() (config.Config, error)
	newRelay     func(config.Config, *slog.Logger) (*relayserver.Server, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultRelayDeps() relayDeps {
	return relayDeps{
		loadConfig: config.LoadFromEnv,
		newRelay:   relayserver.New,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

type flags struct {
	envFile  string
	logLevel string
	addr     string
}

func parseFlags(args []string, stderr io.Writer) (flags, error) {
	var f flags
	fs := cli.NewFlagSet("pitch-relay", cli.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&f.envFile, "env", "e", ".env", "Env file path")
	fs.StringVarP(&f.logLevel, "log", "l", "info", "Log level (debug, info, warn, error)")
	fs.StringVarP(&f.addr, "addr", "a", "", "Listen address, overrides RELAY_ADDR")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	if _, ok := logLevels[strings.ToLower(f.logLevel)]; !ok {
		return flags{}, fmt.Errorf("unknown log level %q", f.logLevel)
	}
	return f, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      logLevels[strings.ToLower(level)],
		TimeFormat: time.TimeOnly,
	}))
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func runRelay(ctx context.Context, logger *slog.Logger, addr string, deps relayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.newRelay == nil {
		return errors.New("missing newRelay dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr != "" {
		cfg.Addr = addr
	}

	relay, err := deps.newRelay(cfg, logger)
	if err != nil {
		return fmt.Errorf("build relay: %w", err)
	}
	httpSrv := buildHTTPServer(cfg, relay.Handler())

	logger.Info("starting pitch relay",
		"addr", cfg.Addr,
		"vision_provider", cfg.VisionProvider,
		"frame_interval", cfg.FrameInterval,
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown requested", "reason", ctx.Err())
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	relay.SetDraining()
	relay.WarnSessions()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	// Hijacked WebSocket connections outlive Shutdown.
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !relay.WaitSessions(waitCtx) {
		n := relay.CancelSessions()
		logger.Warn("cancelled frame sessions after grace period", "count", n)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("pitch relay stopped")
	return nil
}

func runMain(ctx context.Context, args []string, stderr io.Writer, deps relayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}

	f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "pitch-relay: %v\n", err)
		return 2
	}
	logger := newLogger(stderr, f.logLevel)

	if err := dotenv.LoadFile(f.envFile); err != nil {
		fmt.Fprintf(stderr, "pitch-relay: %v\n", err)
		return 1
	}

	if err := runRelay(ctx, logger, f.addr, deps); err != nil {
		fmt.Fprintf(stderr, "pitch-relay: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stderr, defaultRelayDeps()))
}
