// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted for snapshot archiving and event publishing.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendPubSub = "pubsub"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Events  EventsConfig  `mapstructure:"events"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// DBConfig controls access to the campaign database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// LLMConfig configures the completion service client.
type LLMConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	Model          string  `mapstructure:"model"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int64   `mapstructure:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// ScraperConfig governs the metadata scraper.
type ScraperConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	ExcerptChars   int    `mapstructure:"excerpt_chars"`
}

// ArchiveConfig selects where raw page snapshots are kept, if anywhere.
type ArchiveConfig struct {
	Backend     string `mapstructure:"backend"`
	LocalDir    string `mapstructure:"local_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// EventsConfig selects the publisher for campaign.created events.
type EventsConfig struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CAMPAIGN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Keys without defaults (secrets, backend targets) are invisible to
	// Unmarshal unless bound, so env-only configuration needs explicit binds.
	for _, key := range []string{
		"db.dsn",
		"llm.api_key",
		"archive.local_dir",
		"archive.gcs_bucket",
		"events.project_id",
	} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 120)
	v.SetDefault("db.table", "campaigns")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	v.SetDefault("scraper.timeout_seconds", 10)
	v.SetDefault("scraper.excerpt_chars", 500)
	v.SetDefault("archive.backend", BackendNone)
	v.SetDefault("archive.prefix", "snapshots")
	v.SetDefault("archive.content_type", "text/html; charset=utf-8")
	v.SetDefault("events.backend", BackendMemory)
	v.SetDefault("events.topic", "campaign-created")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be > 0")
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	switch c.Archive.Backend {
	case BackendNone:
	case BackendLocal:
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir must be set when archive.backend is %q", BackendLocal)
		}
	case BackendGCS:
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set when archive.backend is %q", BackendGCS)
		}
	default:
		return fmt.Errorf("unknown archive.backend %q", c.Archive.Backend)
	}
	switch c.Events.Backend {
	case BackendMemory:
	case BackendPubSub:
		if c.Events.ProjectID == "" || c.Events.Topic == "" {
			return fmt.Errorf("events.project_id and events.topic must be set when events.backend is %q", BackendPubSub)
		}
	default:
		return fmt.Errorf("unknown events.backend %q", c.Events.Backend)
	}
	return nil
}

// ScrapeTimeout converts the scraper timeout config into a duration.
func (c Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}

// LLMTimeout converts the completion timeout config into a duration.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// RequestTimeout converts the server timeout config into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}
