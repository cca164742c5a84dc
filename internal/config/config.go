package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the process-wide runtime configuration.
type Config struct {
	DataDir string `mapstructure:"data_dir"`
	LogDir  string `mapstructure:"log_dir"`

	Logging LoggingConfig `mapstructure:"logging"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Scoring ScoringConfig `mapstructure:"scoring"`
	Exec    ExecConfig    `mapstructure:"execution"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls the application logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LLMConfig controls the language-model capability. APIKey empty means
// every LLM call takes its deterministic fallback.
type LLMConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether the LLM capability is wired.
func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

// ScoringConfig controls gap selection.
type ScoringConfig struct {
	Threshold     float64 `mapstructure:"threshold"`
	BaselineWeeks int     `mapstructure:"baseline_weeks"`
	SnoozeDays    int     `mapstructure:"snooze_days"`
}

// ExecConfig controls the execution mini-runtime.
type ExecConfig struct {
	RateLimitMax    int           `mapstructure:"rate_limit_max"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
	MaxRetries      int           `mapstructure:"max_retries"`
	BackoffBase     time.Duration `mapstructure:"backoff_base"`
	BackoffCap      time.Duration `mapstructure:"backoff_cap"`
	ProcessedCap    int           `mapstructure:"processed_cap"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load reads configuration from an optional YAML file and SIA_-prefixed
// environment variables. The Anthropic key is taken from the conventional
// ANTHROPIC_API_KEY variable rather than the SIA_ namespace.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SIA")
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sia"))
		}
		// Missing file is fine, defaults apply.
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("log_dir", "logs")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("llm.model", "claude-3-5-sonnet-20241022")
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.timeout", 30*time.Second)

	v.SetDefault("scoring.threshold", 0.5)
	v.SetDefault("scoring.baseline_weeks", 3)
	v.SetDefault("scoring.snooze_days", 7)

	v.SetDefault("execution.rate_limit_max", 100)
	v.SetDefault("execution.rate_limit_window", time.Minute)
	v.SetDefault("execution.max_retries", 3)
	v.SetDefault("execution.backoff_base", time.Second)
	v.SetDefault("execution.backoff_cap", 60*time.Second)
	v.SetDefault("execution.processed_cap", 10000)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
}
