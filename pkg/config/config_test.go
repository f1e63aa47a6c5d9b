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

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ImportModeInline, cfg.Import.Mode)
	assert.Equal(t, 3, cfg.Import.MaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Import.JobTimeout)
	assert.Equal(t, 5*time.Second, cfg.Import.RetryBackoff)
	assert.Equal(t, int64(10<<20), cfg.Import.MaxUploadBytes)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("IMPORT_MODE", "queue")
	t.Setenv("IMPORT_MAX_ATTEMPTS", "5")
	t.Setenv("IMPORT_RETRY_BACKOFF", "30s")
	t.Setenv("DB_NAME", "smartkosh_test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ImportModeQueue, cfg.Import.Mode)
	assert.Equal(t, 5, cfg.Import.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Import.RetryBackoff)
	assert.Contains(t, cfg.Database.DSN(), "dbname=smartkosh_test")
}

func TestLoad_InvalidImportMode(t *testing.T) {
	t.Setenv("IMPORT_MODE", "celery")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMPORT_MODE")
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("IMPORT_JOB_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Import.JobTimeout)
}
