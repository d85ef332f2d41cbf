package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/classify"
)

// Config is the root configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Topics     TopicsConfig     `yaml:"topics"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Server     ServerConfig     `yaml:"server"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Log        LogConfig        `yaml:"log"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ClassifierConfig configures the toxicity scoring stage.
type ClassifierConfig struct {
	Backend   string     `yaml:"backend"` // "lexicon" or "http"
	BatchSize int        `yaml:"batch_size"`
	Threshold float64    `yaml:"threshold"`
	HTTP      HTTPConfig `yaml:"http"`
}

// HTTPConfig configures the remote inference scorer.
type HTTPConfig struct {
	BaseURL string  `yaml:"base_url"`
	Model   string  `yaml:"model"`
	APIKey  string  `yaml:"api_key"`
	Timeout string  `yaml:"timeout"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

// ParseTimeout returns the request timeout as time.Duration.
func (h HTTPConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(h.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// TopicsConfig configures mention aggregation.
type TopicsConfig struct {
	Dictionary string `yaml:"dictionary"` // path to a YAML dictionary, empty = builtin
}

// ScheduleConfig configures the daemon pipeline interval.
type ScheduleConfig struct {
	Interval string `yaml:"interval"`
}

// ParseInterval returns the pipeline interval as time.Duration.
func (s ScheduleConfig) ParseInterval() time.Duration {
	d, err := time.ParseDuration(s.Interval)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// MetricsConfig configures the prometheus endpoint. Empty addr
// disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// AlertsConfig configures moderation alert destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./reddit_abuse.db"},
		Classifier: ClassifierConfig{
			Backend:   "lexicon",
			BatchSize: classify.DefaultBatchSize,
			Threshold: classify.DefaultThreshold,
			HTTP: HTTPConfig{
				Timeout: "60s",
				RPS:     2,
				Burst:   4,
			},
		},
		Schedule: ScheduleConfig{Interval: "30m"},
		Server:   ServerConfig{Port: 8080},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ABUSEWATCH_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("ABUSEWATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Classifier.Threshold = f
		}
	}
	if v := os.Getenv("HF_API_TOKEN"); v != "" {
		cfg.Classifier.HTTP.APIKey = v
		cfg.Classifier.Backend = "http"
	}
	if v := os.Getenv("ABUSEWATCH_SCORER_URL"); v != "" {
		cfg.Classifier.HTTP.BaseURL = v
	}
	if v := os.Getenv("ABUSEWATCH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ABUSEWATCH_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
}
