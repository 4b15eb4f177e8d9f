package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/roamstack/place-resolver/internal/adapter/googlemaps"
	httpadapter "github.com/roamstack/place-resolver/internal/adapter/http"
	kafkaadapter "github.com/roamstack/place-resolver/internal/adapter/kafka"
	"github.com/roamstack/place-resolver/internal/adapter/mapbox"
	"github.com/roamstack/place-resolver/internal/adapter/nominatim"
	"github.com/roamstack/place-resolver/internal/cache"
	"github.com/roamstack/place-resolver/internal/config"
	"github.com/roamstack/place-resolver/internal/domain"
	"github.com/roamstack/place-resolver/internal/engine"
	"github.com/roamstack/place-resolver/internal/observability"
	"github.com/roamstack/place-resolver/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Providers in priority order: paid and precise first, free fallback
	// second (it also serves disambiguation probes), paid backstop last.
	var providers []domain.Provider
	if cfg.MapboxEnabled {
		providers = append(providers, mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger))
		logger.Info("mapbox provider enabled", "timeout", cfg.MapboxTimeout)
	}
	if cfg.NominatimEnabled {
		providers = append(providers, nominatim.NewClient(cfg.NominatimBaseURL, cfg.NominatimUserAgent, cfg.NominatimTimeout, metrics, logger))
		logger.Info("nominatim provider enabled", "base_url", cfg.NominatimBaseURL)
	}
	if cfg.GoogleMapsEnabled {
		providers = append(providers, googlemaps.NewClient(cfg.GoogleMapsAPIKey, cfg.GoogleMapsTimeout, metrics, logger))
		logger.Info("google maps provider enabled", "timeout", cfg.GoogleMapsTimeout)
	}

	cacheCfg := cache.MemoryConfig{
		TTL:         cfg.CacheTTL,
		HighConfTTL: cfg.CacheHighConfTTL,
		MaxEntries:  cfg.CacheMaxEntries,
	}
	var resultCache cache.Cache
	switch cfg.CacheBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		resultCache = cache.NewRedis(client, cacheCfg, logger)
		logger.Info("redis result cache enabled", "addr", cfg.RedisAddr)
	default:
		resultCache = cache.NewMemory(cacheCfg, clockwork.NewRealClock())
	}

	var reader *kafkaadapter.Reader
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled || cfg.KafkaSinkEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
	}

	// In batch mode the pipeline loader publishes every outcome, so the
	// engine's own sink stays nil to keep one event per resolution.
	var sink domain.ResolutionSink
	if writer != nil && !cfg.KafkaEnabled {
		sink = writer
	}

	engineCfg := engine.DefaultConfig()
	engineCfg.AcceptConfidence = cfg.AcceptConfidence
	engineCfg.FuzzyKeepConfidence = cfg.FuzzyKeepConfidence
	engineCfg.MaxAlternatives = cfg.MaxAlternatives

	eng := engine.New(providers, resultCache, sink, engineCfg, logger, metrics)

	var ready httpadapter.ReadinessChecker = eng
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		transformer := pipeline.NewTransformer(eng, logger)
		p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)
		ready = p

		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
		logger.Info("batch resolution pipeline enabled",
			"source_topic", cfg.KafkaSourceTopic,
			"sink_topic", cfg.KafkaSinkTopic,
			"batch_size", cfg.BatchSize,
		)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, eng, ready, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
