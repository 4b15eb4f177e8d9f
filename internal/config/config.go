// Package config loads all service settings from environment variables.
// A .env file in the working directory is honored for local development;
// real environments always win over it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Provider configuration. Providers are attempted in fixed priority
	// order: Mapbox, Nominatim, Google Maps.
	MapboxToken   string
	MapboxEnabled bool
	MapboxTimeout time.Duration

	NominatimBaseURL   string
	NominatimUserAgent string
	NominatimTimeout   time.Duration
	NominatimEnabled   bool

	GoogleMapsAPIKey  string
	GoogleMapsEnabled bool
	GoogleMapsTimeout time.Duration

	// Result cache configuration.
	CacheBackend     string // "memory" or "redis"
	CacheTTL         time.Duration
	CacheHighConfTTL time.Duration
	CacheMaxEntries  int
	RedisAddr        string

	// Engine thresholds.
	AcceptConfidence    float64
	FuzzyKeepConfidence float64
	MaxAlternatives     int

	// Kafka batch-resolution mode. When disabled the service is HTTP-only
	// and no brokers are contacted. KafkaSinkEnabled streams HTTP-path
	// resolution events to the sink topic without running the batch
	// consumer; it is implied by KafkaEnabled, where the pipeline itself
	// publishes every outcome.
	KafkaEnabled       bool
	KafkaSinkEnabled   bool
	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	nominatimTimeout, err := parseDuration("NOMINATIM_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	googleTimeout, err := parseDuration("GOOGLE_MAPS_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("CACHE_TTL", "24h")
	if err != nil {
		return nil, err
	}
	highConfTTL, err := parseDuration("CACHE_HIGH_CONFIDENCE_TTL", "168h")
	if err != nil {
		return nil, err
	}
	flushInterval, err := parseDuration("BATCH_FLUSH_INTERVAL", "5s")
	if err != nil {
		return nil, err
	}

	cacheMaxEntries, err := parseInt("CACHE_MAX_ENTRIES", 10_000)
	if err != nil {
		return nil, err
	}
	batchSize, err := parseInt("BATCH_SIZE", 100)
	if err != nil {
		return nil, err
	}
	maxAlternatives, err := parseInt("MAX_ALTERNATIVES", 3)
	if err != nil {
		return nil, err
	}

	acceptConfidence, err := parseFloat("ACCEPT_CONFIDENCE", 0.5)
	if err != nil {
		return nil, err
	}
	fuzzyKeepConfidence, err := parseFloat("FUZZY_KEEP_CONFIDENCE", 0.6)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	googleKey := os.Getenv("GOOGLE_MAPS_API_KEY")

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MapboxToken:   mapboxToken,
		MapboxEnabled: envBool("MAPBOX_ENABLED", mapboxToken != ""),
		MapboxTimeout: mapboxTimeout,

		NominatimBaseURL:   envOrDefault("NOMINATIM_BASE_URL", ""),
		NominatimUserAgent: envOrDefault("NOMINATIM_USER_AGENT", "place-resolver/1.0"),
		NominatimTimeout:   nominatimTimeout,
		NominatimEnabled:   envBool("NOMINATIM_ENABLED", true),

		GoogleMapsAPIKey:  googleKey,
		GoogleMapsEnabled: envBool("GOOGLE_MAPS_ENABLED", googleKey != ""),
		GoogleMapsTimeout: googleTimeout,

		CacheBackend:     envOrDefault("CACHE_BACKEND", "memory"),
		CacheTTL:         cacheTTL,
		CacheHighConfTTL: highConfTTL,
		CacheMaxEntries:  cacheMaxEntries,
		RedisAddr:        os.Getenv("REDIS_ADDR"),

		AcceptConfidence:    acceptConfidence,
		FuzzyKeepConfidence: fuzzyKeepConfidence,
		MaxAlternatives:     maxAlternatives,

		KafkaEnabled:       envBool("KAFKA_ENABLED", false),
		KafkaSinkEnabled:   envBool("KAFKA_SINK_ENABLED", false),
		KafkaBrokers:       parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   envOrDefault("KAFKA_SOURCE_TOPIC", "location-queries"),
		KafkaSinkTopic:     envOrDefault("KAFKA_SINK_TOPIC", "resolved-locations"),
		KafkaGroupID:       envOrDefault("KAFKA_GROUP_ID", "place-resolver"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if cfg.GoogleMapsEnabled && cfg.GoogleMapsAPIKey == "" {
		return nil, errors.New("GOOGLE_MAPS_ENABLED is true but GOOGLE_MAPS_API_KEY is not set")
	}
	if !cfg.MapboxEnabled && !cfg.NominatimEnabled && !cfg.GoogleMapsEnabled {
		return nil, errors.New("no geocoding provider enabled")
	}
	switch cfg.CacheBackend {
	case "memory":
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, errors.New("CACHE_BACKEND is redis but REDIS_ADDR is not set")
		}
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q, want memory or redis", cfg.CacheBackend)
	}
	if cfg.KafkaEnabled || cfg.KafkaSinkEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when Kafka is enabled")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required when Kafka is enabled")
		}
	}
	if cfg.KafkaEnabled && cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true"
	}
	return def
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || f >= 1 {
		return 0, fmt.Errorf("invalid %s, want a value in (0,1)", key)
	}
	return f, nil
}
