package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, settings.SchedulerWorkers)
	assert.Equal(t, 10*time.Second, settings.RetryBaseDelay)
	assert.Equal(t, 60*time.Second, settings.RetryMaxDelay)
	assert.Equal(t, 3, settings.MaxRetries)
	assert.Equal(t, 24*time.Hour, settings.RetryHorizon)
	assert.Equal(t, 10*time.Minute, settings.WaitTimeout)
	assert.Equal(t, "google", settings.DefaultRetriever)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("QUARRY_SCHEDULER_WORKERS", "2")
	t.Setenv("QUARRY_RETRY_BASE_DELAY", "250ms")
	t.Setenv("QUARRY_LOG_LEVEL", "debug")

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, settings.SchedulerWorkers)
	assert.Equal(t, 250*time.Millisecond, settings.RetryBaseDelay)
	assert.Equal(t, slog.LevelDebug, settings.LogLevel)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	settings := Default()
	settings.SchedulerWorkers = 0
	assert.Error(t, settings.Validate())

	settings = Default()
	settings.RetryMaxDelay = settings.RetryBaseDelay / 2
	assert.Error(t, settings.Validate())

	settings = Default()
	settings.ChunkOverlap = settings.ChunkSize
	assert.Error(t, settings.Validate())
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("hello", "key", "value")

	assert.Contains(t, stderr.String(), "hello")
	assert.Contains(t, file.String(), `"msg":"hello"`)
}
