package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/toastytimes/climate-series-service/internal/adapter/feedcache"
	httpadapter "github.com/toastytimes/climate-series-service/internal/adapter/http"
	kafkaadapter "github.com/toastytimes/climate-series-service/internal/adapter/kafka"
	"github.com/toastytimes/climate-series-service/internal/adapter/nsidc"
	"github.com/toastytimes/climate-series-service/internal/adapter/reanalyzer"
	"github.com/toastytimes/climate-series-service/internal/config"
	"github.com/toastytimes/climate-series-service/internal/observability"
	"github.com/toastytimes/climate-series-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	router := pipeline.NewKindRouter()
	router.Register(config.SourceKindNSIDC, nsidc.NewClient(cfg.FetchTimeout, metrics, logger))
	router.Register(config.SourceKindReanalyzer, reanalyzer.NewClient(cfg.FetchTimeout, metrics, logger))

	fetcher := feedcache.New(router, cfg.CacheSize, cfg.CacheTTL, metrics)

	// Sink is feature-flagged via CLIMATE_KAFKA_BROKERS / CLIMATE_KAFKA_TOPIC.
	var loader pipeline.Loader
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled() {
		writer = kafkaadapter.NewWriter(cfg, logger)
		loader = writer
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka sink disabled")
	}

	svc := pipeline.New(cfg, fetcher, loader, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh loop.
	go func() {
		if err := svc.Run(ctx); err != nil {
			logger.Error("refresh loop error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
