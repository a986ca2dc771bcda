package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/broadcastqueue/eventsubd/pkg/config"
)

func TestLoadFromEnv_AppliesDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.BindAddress)
	assert.Equal(t, config.EnvDevelopment, cfg.Environment)
	assert.Equal(t, 25*time.Second, cfg.SSEHeartbeat)
	assert.Equal(t, 1000, cfg.SSERingMaxEntries)
	assert.Equal(t, 120*time.Second, cfg.SSERingTTL)
}

func TestLoadFromEnv_RequiresSecretsInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("WEBHOOK_SHARED_SECRET", "")
	t.Setenv("SSE_TOKEN_SIGNING_KEY", "")

	_, err := config.LoadFromEnv()
	assert.Error(t, err)
}

func TestLoadFromEnv_AcceptsExplicitOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("BIND_ADDRESS", "0.0.0.0:9090")
	t.Setenv("WEBHOOK_SHARED_SECRET", "whsec")
	t.Setenv("SSE_TOKEN_SIGNING_KEY", "ssekey")
	t.Setenv("SSE_HEARTBEAT_SECONDS", "30")
	t.Setenv("SSE_RING_MAX_ENTRIES", "500")
	t.Setenv("SSE_RING_TTL_SECONDS", "60")

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.BindAddress)
	assert.Equal(t, 30*time.Second, cfg.SSEHeartbeat)
	assert.Equal(t, 500, cfg.SSERingMaxEntries)
	assert.Equal(t, 60*time.Second, cfg.SSERingTTL)
}

func TestLoadFromEnv_RejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")
	_, err := config.LoadFromEnv()
	assert.Error(t, err)
}
