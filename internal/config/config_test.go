package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(databaseDSNEnv, "")
	t.Setenv(maxURLsPerRunEnv, "")
	t.Setenv(maxURLsPerSourceEnv, "")

	cfg := Load()

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 30, cfg.Discovery.MaxURLsPerRun)
	assert.Equal(t, 10, cfg.Discovery.MaxURLsPerSource)
	assert.Equal(t, 15*time.Second, cfg.Discovery.SourceTimeout)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, "UTC", cfg.Scheduler.Location().String())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := []byte(`
logging:
  level: warn
  format: json
discovery:
  maxUrlsPerSource: 4
  sourceTimeout: 3s
embedding:
  provider: http
  dimension: 768
scheduler:
  interval: 6h
  timezone: Europe/Paris
`)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	t.Setenv(configPathEnv, path)
	t.Setenv(databaseDSNEnv, "postgres://example/db")
	t.Setenv(maxURLsPerRunEnv, "12")
	t.Setenv(maxURLsPerSourceEnv, "not-a-number")

	cfg := Load()

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://example/db", cfg.Database.DSN)
	assert.Equal(t, 12, cfg.Discovery.MaxURLsPerRun)
	assert.Equal(t, 4, cfg.Discovery.MaxURLsPerSource)
	assert.Equal(t, 3*time.Second, cfg.Discovery.SourceTimeout)
	assert.Equal(t, 10*time.Second, cfg.Discovery.ArticleTimeout)
	assert.Equal(t, "http", cfg.Embedding.Provider)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
	assert.Equal(t, 6*time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, "Europe/Paris", cfg.Scheduler.Location().String())
}

func TestLoadUnreadableFileFallsBack(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv(databaseDSNEnv, "")

	cfg := Load()
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}
