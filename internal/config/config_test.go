package config_test

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottaicode/seoul-sister/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "seoul_sister", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, 3, cfg.Fetch.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Fetch.MinDelay)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.Fetch.RetryAfterCap)

	assert.Equal(t, "claude-sonnet-4-5", cfg.Anthropic.Model)
	assert.Equal(t, 2048, cfg.Anthropic.MaxTokens)

	assert.Equal(t, 25, cfg.Pipeline.BatchSize)
	assert.Equal(t, 5, cfg.Pipeline.ChunkConcurrency)
	assert.Equal(t, 50, cfg.Pipeline.LinkBatchSize)

	assert.InDelta(t, 0.5, cfg.Prices.MinConfidence, 1e-9)
	assert.Equal(t, 24*time.Hour, cfg.Prices.Staleness)
	assert.Equal(t, 20, cfg.Prices.BatchSize)

	assert.Equal(t, ":8085", cfg.Server.Address)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_OverridesKeepDefaultsElsewhere(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("database.host", "db.internal")
	viper.Set("database.port", 6543)
	viper.Set("fetch.concurrency", 1)
	viper.Set("anthropic.api_key", "sk-test")
	viper.Set("prices.min_confidence", 0.7)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, 1, cfg.Fetch.Concurrency)
	assert.Equal(t, "sk-test", cfg.Anthropic.APIKey)
	assert.InDelta(t, 0.7, cfg.Prices.MinConfidence, 1e-9)

	// Untouched sections keep their defaults.
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, 25, cfg.Pipeline.BatchSize)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("fetch.concurrency", -2)
	viper.Set("pipeline.batch_size", 0)
	viper.Set("prices.staleness", "-1h")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Fetch.Concurrency)
	assert.Equal(t, 25, cfg.Pipeline.BatchSize)
	assert.Equal(t, 24*time.Hour, cfg.Prices.Staleness)
}
