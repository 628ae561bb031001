// Package main provides the scribeq transcription server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kweber/scribeq/internal/config"
	"github.com/kweber/scribeq/internal/engine"
	"github.com/kweber/scribeq/internal/job"
	"github.com/kweber/scribeq/internal/metrics"
	"github.com/kweber/scribeq/internal/server"
	"github.com/kweber/scribeq/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file overlaid on the environment")
	flag.Parse()

	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	cfg := config.Load()
	if *configPath != "" {
		if err := cfg.ApplyFile(*configPath); err != nil {
			slog.Error("failed to apply config file", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()
	slog.SetDefault(logger)

	logger.Info("starting scribeq-server",
		"addr", cfg.Addr,
		"engine", cfg.EngineCommand,
		"result_ttl", cfg.ResultTTL,
		"failure_ttl", cfg.FailureTTL)

	collector := metrics.NewCollector()
	store := job.NewStore()
	eng := engine.NewExec(cfg.EngineCommand, cfg.EngineArgs...)
	wrk := worker.New(eng, collector, logger)

	srv := server.New(server.Options{
		Store:          store,
		Worker:         wrk,
		Metrics:        collector,
		Logger:         logger,
		DefaultToken:   cfg.DefaultToken,
		WorkDir:        cfg.WorkDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	reaper := job.NewReaper(store, cfg.CleanupInterval, cfg.ResultTTL, cfg.FailureTTL, logger)
	reaper.Start(reaperCtx)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
		// No WriteTimeout: downloads of large archives and long-lived
		// progress streams must not be cut off mid-response.
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("upload page available", "url", "http://localhost"+cfg.Addr+"/")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopReaper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
