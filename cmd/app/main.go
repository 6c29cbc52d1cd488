package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/infra/ai"
	"document-ai-pipeline/internal/infra/engine"
	"document-ai-pipeline/internal/infra/logging"
	"document-ai-pipeline/internal/infra/metrics"
	"document-ai-pipeline/internal/infra/queue"
	red "document-ai-pipeline/internal/infra/redis"
	"document-ai-pipeline/internal/infra/storage"
	"document-ai-pipeline/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, verbose)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	// ---- Metrics / admin listener ----
	metrics.MustRegister()
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	adminMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	adminSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Admin.Port), Handler: adminMux}
	go func() {
		logger.Info().Str("addr", adminSrv.Addr).Msg("admin listener up")
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin listener error")
		}
	}()

	// ---- Pipeline collaborators ----
	storageFactory := storage.NewFactory(cfg.Storage, logging.Component(logger, "storage"))
	engineFactory := engine.NewFactory(cfg.OCR, logging.Component(logger, "engine"))

	analyzer, err := ai.NewAnalyzer(ctx, cfg.AI, logging.Component(logger, "ai"))
	if err != nil {
		logger.Fatal().Err(err).Msg("ai analyzer")
	}

	processor := usecase.NewProcessor(
		engineFactory, storageFactory, analyzer,
		cfg.Processing, cfg.AI.Enabled,
		logging.Component(logger, "processor"),
	)

	// Fail fast on a misconfigured default backend.
	if _, err := storageFactory.Backend(ctx, ""); err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("storage backend")
	}

	// ---- Job queue (optional; sync-only without redis) ----
	var manager *queue.Manager
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable; async queue disabled, running sync-only")
	} else {
		manager = queue.NewManager(redisClient, processor, cfg.Processing, logging.Component(logger, "queue"))
		if err := manager.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("queue start")
		}
	}

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	if manager != nil {
		manager.Stop()
		_ = redisClient.Close()
	}
	_ = adminSrv.Close()
	if err := processor.Cleanup(context.Background()); err != nil {
		logger.Error().Err(err).Msg("pipeline cleanup")
	}
	logger.Info().Msg("shutdown complete")
}
