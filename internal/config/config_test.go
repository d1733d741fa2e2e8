package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/energy-data-hub/internal/breaker"
	"github.com/i474232898/energy-data-hub/internal/logger"
	"github.com/i474232898/energy-data-hub/internal/retry"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "Europe/Amsterdam", cfg.TargetTimezone)
	assert.Equal(t, time.Hour, cfg.CollectInterval)
	assert.Equal(t, 48*time.Hour, cfg.CollectWindow)
	assert.Equal(t, 2, cfg.HostConcurrency)
	assert.Equal(t, 48, cfg.StoreMaxHistory)
	assert.Equal(t, 72*time.Hour, cfg.StoreMaxAge)
	assert.Equal(t, 100, cfg.MetricsHistory)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, logger.FormatConsole, cfg.LogFormat)
	assert.InDelta(t, 51.966472, cfg.Latitude, 1e-9)
	assert.Equal(t, retry.DefaultPolicy(), cfg.Retry)
	assert.Equal(t, breaker.DefaultPolicy(), cfg.Breaker)

	sc := cfg.Source("energyzero")
	assert.True(t, sc.Enabled)
	assert.Equal(t, retry.DefaultPolicy(), sc.Retry)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TARGET_TIMEZONE", "UTC")
	t.Setenv("COLLECT_INTERVAL", "30m")
	t.Setenv("HOST_CONCURRENCY", "3")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("RETRY_JITTER", "false")
	t.Setenv("BREAKER_TIMEOUT", "0s")
	t.Setenv("BREAKER_ENABLED", "0")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.TargetTimezone)
	assert.Equal(t, 30*time.Minute, cfg.CollectInterval)
	assert.Equal(t, 3, cfg.HostConcurrency)
	assert.Equal(t, logger.FormatJSON, cfg.LogFormat)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.False(t, cfg.Retry.Jitter)
	assert.Equal(t, time.Duration(0), cfg.Breaker.Timeout)
	assert.False(t, cfg.Breaker.Enabled)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"COLLECT_INTERVAL":          "soon",
		"HOST_CONCURRENCY":          "0",
		"STORE_MAX_HISTORY":         "many",
		"LOCATION_LAT":              "123",
		"LOG_FORMAT":                "xml",
		"RETRY_MAX_ATTEMPTS":        "0",
		"RETRY_EXPONENTIAL_BASE":    "1",
		"BREAKER_FAILURE_THRESHOLD": "0",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestSourcesFileOverridesOnlyGivenFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sources:
  openweather:
    enabled: false
  energyzero:
    retry:
      max_attempts: 5
      initial_delay: 2s
    breaker:
      failure_threshold: 3
`), 0o600))
	t.Setenv("SOURCES_FILE", path)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.False(t, cfg.Source("openweather").Enabled)

	ez := cfg.Source("energyzero")
	assert.True(t, ez.Enabled)
	assert.Equal(t, 5, ez.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, ez.Retry.InitialDelay)
	assert.Equal(t, 60*time.Second, ez.Retry.MaxDelay)
	assert.Equal(t, 3, ez.Breaker.FailureThreshold)
	assert.Equal(t, 2, ez.Breaker.SuccessThreshold)

	assert.Equal(t, cfg.Retry, cfg.Source("openmeteo").Retry)
}

func TestSourcesFileValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources:\n  energyzero:\n    retry:\n      max_attempts: 0\n"), 0o600))
	t.Setenv("SOURCES_FILE", path)

	_, err := FromEnv()
	assert.ErrorContains(t, err, "energyzero")

	t.Setenv("SOURCES_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = FromEnv()
	assert.Error(t, err)
}
