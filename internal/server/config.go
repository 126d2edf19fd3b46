// Package server provides configuration helpers that define runtime
// defaults, validation, and rate-limiting parameters for the relay.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Bus backend names accepted in configuration.
const (
	BusMemory = "memory"
	BusRedis  = "redis"
	BusNats   = "nats"
)

// RateLimitConfig defines the parameters for per-connection frame rate
// limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the relay configuration, including the transport security
// controls and the external collaborator endpoints.
type Config struct {
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      RateLimitConfig

	// BusBackend selects the pub/sub backbone: "redis", "nats" or "memory".
	BusBackend string
	RedisAddr  string
	NatsURL    string

	// DirectoryDB is the SQLite path of the user table. Empty means an
	// empty in-memory directory (every nonce lookup will miss).
	DirectoryDB string

	// NonceTTL is how long issued nonces stay resolvable.
	NonceTTL time.Duration
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	return &Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 4096,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		BusBackend: BusMemory,
		RedisAddr:  "localhost:6379",
		NatsURL:    "nats://localhost:4222",
		NonceTTL:   60 * time.Second,
	}
}

// NewConfigFromEnv creates a Config from environment variables, falling back
// to defaults for anything unset.
func NewConfigFromEnv() *Config {
	cfg := NewConfig()

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseInt64Value(maxSize, cfg.MaxMessageSize)
	}
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}
	if backend := os.Getenv("BUS_BACKEND"); backend != "" {
		cfg.BusBackend = strings.ToLower(strings.TrimSpace(backend))
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.NatsURL = url
	}
	if db := os.Getenv("DIRECTORY_DB"); db != "" {
		cfg.DirectoryDB = db
	}
	if ttl := os.Getenv("NONCE_TTL_SECONDS"); ttl != "" {
		cfg.NonceTTL = parseSeconds(ttl, cfg.NonceTTL)
	}

	return cfg.sanitized()
}

// sanitized resets out-of-range values to their defaults.
func (c *Config) sanitized() *Config {
	def := NewConfig()

	if c.Port == "" {
		c.Port = def.Port
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = def.RateLimit.Burst
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	switch c.BusBackend {
	case BusMemory, BusRedis, BusNats:
	default:
		c.BusBackend = def.BusBackend
	}
	if c.NonceTTL <= 0 {
		c.NonceTTL = def.NonceTTL
	}

	return c
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseInt64Value(value string, defaultValue int64) int64 {
	if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
