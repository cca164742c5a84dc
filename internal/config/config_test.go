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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "logs", cfg.LogDir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.InDelta(t, 0.5, cfg.Scoring.Threshold, 1e-9)
	assert.Equal(t, 3, cfg.Scoring.BaselineWeeks)
	assert.Equal(t, 100, cfg.Exec.RateLimitMax)
	assert.Equal(t, time.Minute, cfg.Exec.RateLimitWindow)
	assert.Equal(t, 3, cfg.Exec.MaxRetries)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_dir: /var/lib/sia
logging:
  level: debug
  format: json
scoring:
  threshold: 0.6
execution:
  max_retries: 5
metrics:
  enabled: true
  port: 2112
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/sia", cfg.DataDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.InDelta(t, 0.6, cfg.Scoring.Threshold, 1e-9)
	assert.Equal(t, 5, cfg.Exec.MaxRetries)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 2112, cfg.Metrics.Port)

	// Untouched sections keep their defaults.
	assert.Equal(t, "logs", cfg.LogDir)
	assert.Equal(t, 100, cfg.Exec.RateLimitMax)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLLMEnabled(t *testing.T) {
	assert.False(t, LLMConfig{}.Enabled())
	assert.True(t, LLMConfig{APIKey: "sk-ant-test"}.Enabled())
}
