package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("TABLE_PREFIX", "")
	t.Setenv("WORKFLOW_MODE", "")
	t.Setenv("STREAM_STALL_TIMEOUT", "")
	t.Setenv("AUTO_MIGRATE", "")

	cfg := Load()

	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, "dev_", cfg.TablePrefix)
	assert.Equal(t, "webhook", cfg.WorkflowMode)
	assert.Equal(t, 60*time.Second, cfg.StreamStallTimeout)
	assert.True(t, cfg.Debug)
	assert.False(t, cfg.AutoMigrate)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("TABLE_PREFIX", "")
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co")
	t.Setenv("WORKFLOW_TIMEOUT", "45s")
	t.Setenv("RATE_LIMIT_BURST", "9")
	t.Setenv("EMBEDDING_DIMENSIONS", "not-a-number")
	t.Setenv("AUTO_MIGRATE", "true")

	cfg := Load()

	assert.Equal(t, "prod_", cfg.TablePrefix)
	assert.Equal(t, "https://abc.supabase.co/auth/v1/.well-known/jwks.json", cfg.SupabaseJWKSURL)
	assert.Equal(t, 45*time.Second, cfg.WorkflowTimeout)
	assert.Equal(t, 9, cfg.RateLimitBurst)
	assert.Equal(t, 1536, cfg.EmbeddingDimensions)
	assert.False(t, cfg.Debug)
	assert.True(t, cfg.AutoMigrate)
}

func TestGetTablePrefix_ManualOverride(t *testing.T) {
	t.Setenv("TABLE_PREFIX", "custom_")
	assert.Equal(t, "custom_", getTablePrefix("prod"))
}
