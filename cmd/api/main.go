package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/voicegate/voicegate/internal/api"
	"github.com/voicegate/voicegate/internal/audio"
	"github.com/voicegate/voicegate/internal/config"
	"github.com/voicegate/voicegate/internal/engine"
	"github.com/voicegate/voicegate/internal/metrics"
	"github.com/voicegate/voicegate/internal/speakers"
	"github.com/voicegate/voicegate/internal/synth"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Engine sidecar — the service cannot synthesize without it.
	eng := engine.NewSidecar(engine.SidecarConfig{
		BaseURL: cfg.Engine.URL,
		Timeout: cfg.Engine.Timeout,
	}, logger)
	initCtx, cancel := context.WithTimeout(ctx, cfg.Engine.Timeout)
	if err := eng.Init(initCtx); err != nil {
		cancel()
		slog.Error("engine initialization failed", "url", cfg.Engine.URL, "error", err)
		os.Exit(1)
	}
	cancel()
	slog.Info("engine ready", "sample_rate", eng.SampleRate(), "capabilities", eng.Capabilities())

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	promReg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	met := metrics.New(promReg)

	ingestor := audio.NewIngestor(audio.EngineInputRate, cfg.Speakers.Protected, logger)
	encoder := audio.NewEncoder(logger)
	registry := speakers.NewRegistry(cfg.Speakers.Dir, cfg.Speakers.Protected, ingestor, eng, logger)

	dispatcher := synth.NewDispatcher(eng, ingestor, registry, encoder, synth.DispatcherConfig{
		MaxConcurrent: cfg.Engine.MaxConcurrent,
		OutputDir:     cfg.Audio.OutputDir,
		FixturePaths:  cfg.Audio.FixturePaths,
	}, met, logger)

	router := api.NewRouter(cfg, eng, dispatcher, registry, promReg, logger)
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // synthesis streams can run for minutes
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
