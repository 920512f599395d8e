package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "signaldesk-triage", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())

	assert.InDelta(t, 0.7, cfg.Triage.ConfidenceThreshold, 1e-9)
	assert.Equal(t, []string{"lawsuit", "security breach", "data leak"}, cfg.Triage.HighRiskKeywords)
	assert.Equal(t, 20*time.Second, cfg.Triage.ClassifyTimeout())
	assert.Equal(t, 10*time.Second, cfg.Triage.DeliveryTimeout())
	assert.Equal(t, 3, cfg.Triage.DeliveryRetryAttempts)

	assert.Equal(t, 8, cfg.Worker.PoolSize)
	assert.Equal(t, 256, cfg.Worker.QueueCapacity)

	assert.Empty(t, cfg.Classifier.Endpoint)
	assert.Equal(t, "gpt-4o-mini", cfg.Classifier.Model)
	assert.Equal(t, "#triage-review", cfg.Slack.Channel)
	assert.Equal(t, "SUP", cfg.Jira.ProjectKey)
	assert.True(t, cfg.Postgres.RunMigrations)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("TRIAGE_CONFIDENCE_THRESHOLD", "0.85")
	t.Setenv("TRIAGE_HIGH_RISK_KEYWORDS", "chargeback| fraud |")
	t.Setenv("WORKER_POOL_SIZE", "2")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.InDelta(t, 0.85, cfg.Triage.ConfidenceThreshold, 1e-9)
	assert.Equal(t, []string{"chargeback", "fraud"}, cfg.Triage.HighRiskKeywords)
	assert.Equal(t, 2, cfg.Worker.PoolSize)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoadRejectsInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	_, err := Load()
	assert.Error(t, err)
}

func TestInvalidNumericOverridesFallBack(t *testing.T) {
	t.Setenv("WORKER_POOL_SIZE", "many")
	t.Setenv("TRIAGE_CONFIDENCE_THRESHOLD", "high")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Worker.PoolSize)
	assert.InDelta(t, 0.7, cfg.Triage.ConfidenceThreshold, 1e-9)
}
