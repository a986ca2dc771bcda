// Package config loads this service's runtime configuration the way the
// teacher's pkg/database/config.go loads DB configuration: environment
// variables first, with validation and production-ready defaults, plus an
// optional YAML-backed static overlay for anything that isn't a secret.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment gates debug surfaces (tap stream, replay endpoints). It does
// not select a RedemptionUpdater: main wires none in every environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTest        Environment = "test"
)

// Config is the full set of service-level configuration options, loaded
// from the environment at startup.
type Config struct {
	BindAddress string
	Environment Environment

	WebhookSharedSecret string
	SSETokenSigningKey  string

	SSEHeartbeat      time.Duration
	SSERingMaxEntries int
	SSERingTTL        time.Duration

	EventRetention      time.Duration
	CommandLogRetention time.Duration
	RetentionInterval   time.Duration
}

// LoadFromEnv loads Config from environment variables with validation and
// production defaults, mirroring pkg/database.LoadConfigFromEnv.
func LoadFromEnv() (Config, error) {
	heartbeat, err := strconv.Atoi(getEnvOrDefault("SSE_HEARTBEAT_SECONDS", "25"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SSE_HEARTBEAT_SECONDS: %w", err)
	}
	ringMax, err := strconv.Atoi(getEnvOrDefault("SSE_RING_MAX_ENTRIES", "1000"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SSE_RING_MAX_ENTRIES: %w", err)
	}
	ringTTL, err := strconv.Atoi(getEnvOrDefault("SSE_RING_TTL_SECONDS", "120"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SSE_RING_TTL_SECONDS: %w", err)
	}
	eventRetention, err := parseDuration(getEnvOrDefault("EVENT_RETENTION", "168h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid EVENT_RETENTION: %w", err)
	}
	commandLogRetention, err := parseDuration(getEnvOrDefault("COMMAND_LOG_RETENTION", "720h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid COMMAND_LOG_RETENTION: %w", err)
	}
	retentionInterval, err := parseDuration(getEnvOrDefault("RETENTION_INTERVAL", "1h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid RETENTION_INTERVAL: %w", err)
	}

	cfg := Config{
		BindAddress:         getEnvOrDefault("BIND_ADDRESS", ":8080"),
		Environment:         Environment(getEnvOrDefault("ENVIRONMENT", string(EnvDevelopment))),
		WebhookSharedSecret: os.Getenv("WEBHOOK_SHARED_SECRET"),
		SSETokenSigningKey:  os.Getenv("SSE_TOKEN_SIGNING_KEY"),
		SSEHeartbeat:        time.Duration(heartbeat) * time.Second,
		SSERingMaxEntries:   ringMax,
		SSERingTTL:          time.Duration(ringTTL) * time.Second,
		EventRetention:      eventRetention,
		CommandLogRetention: commandLogRetention,
		RetentionInterval:   retentionInterval,
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants LoadFromEnv's defaults can't already guarantee.
func (c Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("invalid ENVIRONMENT %q", c.Environment)
	}
	if c.Environment == EnvProduction {
		if c.WebhookSharedSecret == "" {
			return fmt.Errorf("WEBHOOK_SHARED_SECRET is required in production")
		}
		if c.SSETokenSigningKey == "" {
			return fmt.Errorf("SSE_TOKEN_SIGNING_KEY is required in production")
		}
	}
	if c.SSERingMaxEntries < 1 {
		return fmt.Errorf("SSE_RING_MAX_ENTRIES must be at least 1")
	}
	if c.SSEHeartbeat <= 0 {
		return fmt.Errorf("SSE_HEARTBEAT_SECONDS must be positive")
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
