package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/cascade/pkg/pipeline/support/exception"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.Cascade.System.Timezone)
	assert.Equal(t, 500, cfg.Cascade.Ingest.BatchSize)
	assert.Equal(t, 0.5, cfg.Cascade.Ingest.Breaker.Threshold)
	assert.Equal(t, 1000, cfg.Cascade.Ingest.Breaker.MinSample)
	assert.Equal(t, 3, cfg.Cascade.Cascade.Predictor.Horizon)
	assert.Equal(t, 2, cfg.Cascade.Cascade.Segments.NewMaxOrders)
	assert.Equal(t, 5, cfg.Cascade.Upsell.MaxSuggestions)
	assert.Equal(t, "SNAPPY", cfg.Cascade.Export.CompressionType)
	assert.Equal(t, "pipeline", cfg.Cascade.Infrastructure.DatabaseRef)
}

func TestLoadConfigMergesEmbeddedYAML(t *testing.T) {
	embedded := EmbeddedConfig(`
cascade:
  ingest:
    batch_size: 250
    breaker:
      threshold: 0.25
  database:
    pipeline:
      type: "postgres"
      host: "db.internal"
`)

	cfg, err := loadConfig("", embedded)
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Cascade.Ingest.BatchSize)
	assert.Equal(t, 0.25, cfg.Cascade.Ingest.Breaker.Threshold)
	// Untouched keys keep their defaults.
	assert.Equal(t, 60, cfg.Cascade.Ingest.BatchTimeoutSeconds)
	assert.Equal(t, 1000, cfg.Cascade.Ingest.Breaker.MinSample)

	raw, ok := cfg.Cascade.DatabaseConfigs["pipeline"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "postgres", raw["type"])
}

func TestLoadConfigExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_CASCADE_DB_HOST", "db.example.net")
	embedded := EmbeddedConfig(`
cascade:
  database:
    pipeline:
      host: "${TEST_CASCADE_DB_HOST}"
`)

	cfg, err := loadConfig("", embedded)
	require.NoError(t, err)

	raw, ok := cfg.Cascade.DatabaseConfigs["pipeline"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "db.example.net", raw["host"])
}

func TestLoadConfigEnvOverridesWinOverYAML(t *testing.T) {
	t.Setenv("CASCADE_CASCADE_INGEST_BATCH_SIZE", "123")
	t.Setenv("CASCADE_CASCADE_SYSTEM_LOGGING_LEVEL", "DEBUG")
	embedded := EmbeddedConfig(`
cascade:
  ingest:
    batch_size: 250
`)

	cfg, err := loadConfig("", embedded)
	require.NoError(t, err)

	assert.Equal(t, 123, cfg.Cascade.Ingest.BatchSize)
	assert.Equal(t, "DEBUG", cfg.Cascade.System.Logging.Level)
}

func TestLoadConfigIgnoresMalformedEnvOverride(t *testing.T) {
	t.Setenv("CASCADE_CASCADE_INGEST_BATCH_SIZE", "not-a-number")

	cfg, err := loadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Cascade.Ingest.BatchSize)
}

func TestLoadConfigRejectsInvalidYAML(t *testing.T) {
	_, err := loadConfig("", EmbeddedConfig("cascade: [unclosed"))
	assert.Error(t, err)
}

func TestLoadConfigValidatesTuning(t *testing.T) {
	tests := []struct {
		name     string
		embedded string
		wantMsg  string
	}{
		{
			"non-positive batch size",
			"cascade:\n  ingest:\n    batch_size: 0\n",
			"batch_size must be positive",
		},
		{
			"threshold above one",
			"cascade:\n  ingest:\n    breaker:\n      threshold: 1.5\n",
			"threshold must be in (0, 1]",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadConfig("", EmbeddedConfig(tc.embedded))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
			assert.Equal(t, exception.KindStorageUnavailable, exception.KindOf(err))
		})
	}
}
