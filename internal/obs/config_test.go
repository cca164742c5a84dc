package obs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 9090, cfg.PrometheusPort)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
observability:
  enabled: true
  prometheus_port: 8080
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 8080, cfg.PrometheusPort)
}

func TestLoadConfigKeepsDefaultPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("observability:\n  enabled: true\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 9090, cfg.PrometheusPort)
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: [\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestNewMetricsDisabledIsNoop(t *testing.T) {
	m, err := NewMetrics(Config{Enabled: false}, nil)
	require.NoError(t, err)
	require.NotNil(t, m)

	// All record paths must be safe no-ops when disabled.
	m.RecordProblem(t.Context(), "email")
	m.RecordGaps(t.Context(), "email", 2)
	require.NoError(t, m.Shutdown(t.Context()))
}
