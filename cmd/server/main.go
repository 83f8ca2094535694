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

	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"

	"snapfolio/internal/api"
	"snapfolio/internal/config"
	"snapfolio/internal/logging"
	"snapfolio/pkg/snapfolio"
)

func main() {
	var addr string
	var dbPath string
	flag.StringVar(&addr, "addr", "", "Listen address (overrides SNAPFOLIO_ADDR)")
	flag.StringVar(&dbPath, "db-path", "", "SQLite database path (overrides SNAPFOLIO_DB_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	logger, writer, err := logging.NewLogger(cfg.LogDir, slog.LevelInfo)
	if err != nil {
		slog.Error("failed to initialize logger", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("failed to close log writer", "err", err)
		}
	}()

	core, err := snapfolio.OpenWithOptions(snapfolio.Options{
		DBPath:      cfg.DBPath,
		Logger:      logger,
		Pipeline:    pipelineConfig(cfg),
		Categorizer: buildCategorizer(cfg, logger),
	})
	if err != nil {
		logger.Error("failed to initialize core", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := core.Close(); err != nil {
			logger.Error("failed to close core", "err", err)
		}
	}()

	sweeper := startSessionSweeper(core, cfg.SweepInterval, logger)
	defer sweeper.Stop()

	handler := middleware.Compress(5)(api.NewRouter(core, logger))
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server starting", "addr", cfg.Addr, "db", cfg.DBPath)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "err", err)
	}
}

func pipelineConfig(cfg config.Config) snapfolio.PipelineConfig {
	detector := snapfolio.DefaultDetectorConfig()
	detector.NameWeight = cfg.NameWeight
	detector.ValueWeight = cfg.ValueWeight
	detector.SimilarityThreshold = cfg.SimilarityThreshold
	detector.ValueTolerancePct = cfg.ValueTolerancePct

	matcher := snapfolio.DefaultDateMatcherConfig()
	matcher.NearWindowDays = cfg.NearWindowDays

	return snapfolio.PipelineConfig{
		MaxDocuments:        cfg.MaxDocuments,
		ClassifyConcurrency: cfg.ClassifyConcurrency,
		SessionTTL:          cfg.SessionTTL,
		Detector:            detector,
		DateMatcher:         matcher,
	}
}

// buildCategorizer wires the configured AI backend. Without an API key the
// server still runs; parse requests fail with a clear error while review
// and snapshot endpoints keep working.
func buildCategorizer(cfg config.Config, logger *slog.Logger) snapfolio.Categorizer {
	if cfg.AIAPIKey == "" {
		logger.Warn("no AI API key configured; statement parsing is disabled")
		return nil
	}
	categorizer, err := snapfolio.NewAICategorizer(snapfolio.AICategorizerOptions{
		Backend: cfg.AIBackend,
		APIKey:  cfg.AIAPIKey,
		Model:   cfg.AIModel,
		BaseURL: cfg.AIBaseURL,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to build AI categorizer", "err", err)
		os.Exit(1)
	}
	logger.Info("AI categorizer ready", "backend", cfg.AIBackend, "model", cfg.AIModel)
	return categorizer
}

// startSessionSweeper schedules periodic removal of expired review sessions.
func startSessionSweeper(core *snapfolio.Core, spec string, logger *slog.Logger) *cron.Cron {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := core.CleanupExpiredSessions(); err != nil {
			logger.Error("expired session sweep failed", "err", err)
		}
	}); err != nil {
		logger.Error("invalid sweep schedule, sweeper disabled", "spec", spec, "err", err)
		return c
	}
	c.Start()
	return c
}
