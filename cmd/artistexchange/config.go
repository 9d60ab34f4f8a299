package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Config holds the process settings, read from EXCHANGE_* environment
// variables.
type Config struct {
	PostgresDSN string
	NATSURL     string
	GRPCAddr    string
	HTTPAddr    string
	MetricsAddr string

	// Channel sizes
	PersistChanSize int
	PublishChanSize int

	// Persistence
	PersistBatchSize    int
	PersistFlushTimeout time.Duration

	// Snapshot
	SnapshotInterval int64 // events between snapshots

	// Registry
	Owner       uuid.UUID
	OpenListing bool

	// API
	RateLimitRPS      float64
	RateLimitBurst    int
	RateLimitClients  int
	IdempotencyLRUCap int
}

func DefaultConfig() Config {
	return Config{
		PostgresDSN:         envOrDefault("EXCHANGE_POSTGRES_DSN", "postgres://localhost:5432/artistexchange?sslmode=disable"),
		NATSURL:             envOrDefault("EXCHANGE_NATS_URL", "nats://localhost:4222"),
		GRPCAddr:            envOrDefault("EXCHANGE_GRPC_ADDR", ":9090"),
		HTTPAddr:            envOrDefault("EXCHANGE_HTTP_ADDR", ":8080"),
		MetricsAddr:         envOrDefault("EXCHANGE_METRICS_ADDR", ":9100"),
		PersistChanSize:     envIntOrDefault("EXCHANGE_PERSIST_CHAN_SIZE", 8192),
		PublishChanSize:     envIntOrDefault("EXCHANGE_PUBLISH_CHAN_SIZE", 8192),
		PersistBatchSize:    envIntOrDefault("EXCHANGE_PERSIST_BATCH_SIZE", 50),
		PersistFlushTimeout: envDurationOrDefault("EXCHANGE_PERSIST_FLUSH_TIMEOUT", 10*time.Millisecond),
		SnapshotInterval:    int64(envIntOrDefault("EXCHANGE_SNAPSHOT_INTERVAL", 10000)),
		OpenListing:         envBoolOrDefault("EXCHANGE_OPEN_LISTING", false),
		RateLimitRPS:        envFloatOrDefault("EXCHANGE_RATE_LIMIT_RPS", 50),
		RateLimitBurst:      envIntOrDefault("EXCHANGE_RATE_LIMIT_BURST", 100),
		RateLimitClients:    envIntOrDefault("EXCHANGE_RATE_LIMIT_CLIENTS", 10000),
		IdempotencyLRUCap:   envIntOrDefault("EXCHANGE_IDEMPOTENCY_LRU_CAPACITY", 100000),
	}
}

// LoadConfig reads the defaults and resolves the registry owner, which has
// no default.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	raw := os.Getenv("EXCHANGE_OWNER_ID")
	if raw == "" {
		return cfg, fmt.Errorf("EXCHANGE_OWNER_ID is required")
	}
	owner, err := uuid.Parse(raw)
	if err != nil {
		return cfg, fmt.Errorf("EXCHANGE_OWNER_ID: %w", err)
	}
	cfg.Owner = owner

	if cfg.RateLimitRPS < 0 {
		return cfg, fmt.Errorf("EXCHANGE_RATE_LIMIT_RPS must not be negative")
	}
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return def
}

func envFloatOrDefault(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBoolOrDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDurationOrDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
