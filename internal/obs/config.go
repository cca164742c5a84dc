// Package obs exposes pipeline and runtime metrics through the
// OpenTelemetry metric API with a Prometheus scrape endpoint.
package obs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config configures the metrics collector.
type Config struct {
	Enabled        bool `yaml:"enabled"`
	PrometheusPort int  `yaml:"prometheus_port"`
}

// DefaultConfig keeps metrics off; the CLI opts in.
func DefaultConfig() Config {
	return Config{Enabled: false, PrometheusPort: 9090}
}

// LoadConfig reads an optional YAML file with an `observability:`
// section. A missing file yields defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read observability config: %w", err)
	}

	var file struct {
		Observability Config `yaml:"observability"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parse observability config: %w", err)
	}

	cfg.Enabled = file.Observability.Enabled
	if file.Observability.PrometheusPort > 0 {
		cfg.PrometheusPort = file.Observability.PrometheusPort
	}
	return cfg, nil
}
