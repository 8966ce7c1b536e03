package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.OrganizationIDs)
	assert.Equal(t, "podwatch.db", cfg.SQLitePath)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.True(t, cfg.AutoNotifyEnabled)
	assert.Equal(t, 100*time.Millisecond, cfg.OutboxPollInterval)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.Equal(t, 5, cfg.OutboxMaxRetries)
	assert.Equal(t, 14, cfg.OutboxRetentionDays)
	assert.True(t, cfg.OutboxProcessorEnabled)
	assert.Equal(t, 5, cfg.NotifierFailureThreshold)
	assert.Equal(t, "0.0.0.0:8081", cfg.WorkerHealthAddr)

	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/podwatch")
	t.Setenv("PODWATCH_ORGANIZATION_IDS", "org_1, org_2 ,org_3,,")
	t.Setenv("PODWATCH_SWEEP_INTERVAL", "30s")
	t.Setenv("OUTBOX_BATCH_SIZE", "250")
	t.Setenv("OUTBOX_PROCESSOR_ENABLED", "false")
	t.Setenv("PODWATCH_AUTO_NOTIFY", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "postgres://localhost/podwatch", cfg.DatabaseURL)
	assert.Equal(t, []string{"org_1", "org_2", "org_3"}, cfg.OrganizationIDs)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 250, cfg.OutboxBatchSize)
	assert.False(t, cfg.OutboxProcessorEnabled)
	assert.False(t, cfg.AutoNotifyEnabled)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")
	t.Setenv("PODWATCH_SWEEP_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
}

func TestConfig_UseLocalStack(t *testing.T) {
	cfg := &Config{}
	assert.True(t, cfg.UseLocalStack())

	cfg.DatabaseURL = "postgres://localhost/podwatch"
	assert.False(t, cfg.UseLocalStack())
}

func TestConfig_EffectiveShiftCacheTTL(t *testing.T) {
	cfg := &Config{ShiftCacheTTL: 30 * time.Second, SweepInterval: time.Minute}
	assert.Equal(t, 30*time.Second, cfg.EffectiveShiftCacheTTL())

	// A TTL at or above the sweep interval would hide clock-ins for a
	// full extra cycle; it gets capped to half the interval.
	cfg.ShiftCacheTTL = 2 * time.Minute
	assert.Equal(t, 30*time.Second, cfg.EffectiveShiftCacheTTL())

	cfg.ShiftCacheTTL = time.Minute
	assert.Equal(t, 30*time.Second, cfg.EffectiveShiftCacheTTL())
}
