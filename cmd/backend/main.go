package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	configloader "github.com/foxseedlab/livescribe/external/config"
	metricsimpl "github.com/foxseedlab/livescribe/external/metrics"
	recognizerimpl "github.com/foxseedlab/livescribe/external/recognizer"
	transcoderimpl "github.com/foxseedlab/livescribe/external/transcoder"
	"github.com/foxseedlab/livescribe/external/websocket"
	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/recognizer"
	"github.com/foxseedlab/livescribe/internal/session"
	"github.com/samber/do/v2"
)

const shutdownTimeout = 15 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "transcoder", cfg.Transcoder, "recognizer", cfg.RecognizerEngine)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	runServer(injector)
}

func mustLoadConfig() *config.Config {
	if err := configloader.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env file", "error", err)
		os.Exit(1)
	}
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	metricsimpl.RegisterDI(injector)
	transcoderimpl.RegisterDI(injector)
	recognizerimpl.RegisterDI(injector)
	session.RegisterDI(injector)
	websocket.RegisterDI(injector)

	return injector
}

func runServer(injector do.Injector) {
	server, err := do.Invoke[*websocket.Server](injector)
	if err != nil {
		slog.Error("failed to resolve server", "error", err)
		os.Exit(1)
	}

	failed := make(chan error, 1)
	go func() {
		failed <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case err := <-failed:
		if err != nil {
			slog.Error("server stopped", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	releaseRecognizer(injector)
	slog.Info("shutdown complete")
}

func releaseRecognizer(injector do.Injector) {
	factory, err := do.Invoke[recognizer.Factory](injector)
	if err != nil {
		return
	}
	if s, ok := factory.(interface{ Shutdown() error }); ok {
		if err := s.Shutdown(); err != nil {
			slog.Error("failed to release recognizer", "error", err)
		}
	}
}
