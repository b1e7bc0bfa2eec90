// Package config provides unified configuration loading for foresight.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Dir is the name of the per-user and per-project foresight directory.
const Dir = ".foresight"

// Config contains all foresight configuration settings.
type Config struct {
	// Engine contains simulation defaults.
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// Field configures the RSS-derived field context.
	Field FieldConfig `json:"field" yaml:"field"`

	// Translation configures optional pre-translation of arguments.
	Translation TranslationConfig `json:"translation" yaml:"translation"`

	// Server configures the HTTP API.
	Server ServerConfig `json:"server" yaml:"server"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Backup configures catalog backups and their retention.
	Backup BackupConfig `json:"backup" yaml:"backup"`
}

// EngineConfig holds simulation defaults.
type EngineConfig struct {
	// Steps is the default number of iterations of a run.
	Steps int `json:"steps" yaml:"steps" env:"FORESIGHT_STEPS"`

	// MaxSteps bounds the iterations (and battle rounds) a caller may request.
	MaxSteps int `json:"max_steps" yaml:"max_steps" env:"FORESIGHT_MAX_STEPS"`

	// Temperature scales engine noise; 1.0 is neutral.
	Temperature float64 `json:"temperature" yaml:"temperature" env:"FORESIGHT_TEMPERATURE"`
}

// FieldConfig configures field context fetching.
type FieldConfig struct {
	// Enabled turns RSS fetching on for simulations that ask for it.
	Enabled bool `json:"enabled" yaml:"enabled" env:"FORESIGHT_FIELD_ENABLED"`

	// Feeds is the ordered list of RSS feed URLs.
	Feeds []string `json:"feeds" yaml:"feeds" env:"FORESIGHT_FIELD_FEEDS" envSeparator:","`

	// MaxFeeds is how many feeds of Feeds are fetched per request.
	MaxFeeds int `json:"max_feeds" yaml:"max_feeds" env:"FORESIGHT_FIELD_MAX_FEEDS"`

	// Timeout bounds each feed fetch.
	Timeout time.Duration `json:"timeout" yaml:"timeout" env:"FORESIGHT_FIELD_TIMEOUT"`

	// UserAgent is sent with feed requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" env:"FORESIGHT_FIELD_USER_AGENT"`
}

// TranslationConfig configures argument translation.
type TranslationConfig struct {
	// Enabled turns translation on.
	Enabled bool `json:"enabled" yaml:"enabled" env:"FORESIGHT_TRANSLATION_ENABLED"`

	// APIKey is the OpenAI API key. Supports ${VAR} syntax in the file.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" env:"OPENAI_API_KEY"`

	// BaseURL overrides the OpenAI-compatible endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" env:"FORESIGHT_TRANSLATION_BASE_URL"`

	// Model is the chat model used for translation.
	Model string `json:"model,omitempty" yaml:"model,omitempty" env:"FORESIGHT_TRANSLATION_MODEL"`

	// TargetLanguage is the canonical language arguments are translated into.
	TargetLanguage string `json:"target_language" yaml:"target_language" env:"FORESIGHT_TRANSLATION_TARGET"`

	// Timeout bounds a single translation call.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"FORESIGHT_TRANSLATION_TIMEOUT"`
}

// RedactedAPIKey returns the API key with most characters masked.
// Shows first 4 and last 4 characters, e.g., "sk-a...xyz9".
// Returns "" for empty keys and "(set)" for keys shorter than 12 chars.
func (c TranslationConfig) RedactedAPIKey() string {
	if c.APIKey == "" {
		return ""
	}
	if len(c.APIKey) < 12 {
		return "(set)"
	}
	return c.APIKey[:4] + "..." + c.APIKey[len(c.APIKey)-4:]
}

// String implements fmt.Stringer so the API key never reaches logs.
func (c TranslationConfig) String() string {
	return fmt.Sprintf("TranslationConfig{Enabled:%t, APIKey:%s, Model:%s, Target:%s}",
		c.Enabled, c.RedactedAPIKey(), c.Model, c.TargetLanguage)
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address. When empty, ":<Port>" is used.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty" env:"FORESIGHT_ADDR"`

	// Port is used when Addr is empty.
	Port int `json:"port" yaml:"port" env:"PORT"`

	// RateLimit is the sustained requests per second allowed per client.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" env:"FORESIGHT_RATE_LIMIT"`

	// Burst is the per-client burst size.
	Burst int `json:"burst" yaml:"burst" env:"FORESIGHT_RATE_BURST"`
}

// ListenAddr returns the address the HTTP server binds to.
func (c ServerConfig) ListenAddr() string {
	if c.Addr != "" {
		return c.Addr
	}
	return fmt.Sprintf(":%d", c.Port)
}

// LoggingConfig configures foresight's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to .foresight/decisions.jsonl.
	Level string `json:"level" yaml:"level" env:"FORESIGHT_LOG_LEVEL"`

	// Format is "text" (default) or "json".
	Format string `json:"format" yaml:"format" env:"FORESIGHT_LOG_FORMAT"`
}

// BackupConfig configures catalog backups.
type BackupConfig struct {
	// Dir overrides the backup directory (default ~/.foresight/backups).
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty" env:"FORESIGHT_BACKUP_DIR"`

	// MaxCount keeps the N most recent backups. Zero disables count retention.
	MaxCount int `json:"max_count" yaml:"max_count" env:"FORESIGHT_BACKUP_MAX_COUNT"`

	// MaxAge keeps backups younger than this, e.g. "30d", "2w" or "720h".
	MaxAge string `json:"max_age,omitempty" yaml:"max_age,omitempty" env:"FORESIGHT_BACKUP_MAX_AGE"`
}

// DefaultFeeds are the world-news feeds consulted for field context.
func DefaultFeeds() []string {
	return []string{
		"https://feeds.bbci.co.uk/news/world/rss.xml",
		"https://rss.nytimes.com/services/xml/rss/nyt/World.xml",
		"https://feeds.reuters.com/reuters/worldNews",
		"https://www.theguardian.com/world/rss",
		"https://feeds.skynews.com/feeds/rss/world.xml",
	}
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Steps:       5,
			MaxSteps:    10,
			Temperature: 1.0,
		},
		Field: FieldConfig{
			Enabled:   true,
			Feeds:     DefaultFeeds(),
			MaxFeeds:  3,
			Timeout:   6 * time.Second,
			UserAgent: "Foresight/1.0 RSS Reader",
		},
		Translation: TranslationConfig{
			Enabled:        false,
			Model:          "gpt-4o-mini",
			TargetLanguage: "English",
			Timeout:        10 * time.Second,
		},
		Server: ServerConfig{
			Port:      10001,
			RateLimit: 2,
			Burst:     10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Backup: BackupConfig{
			MaxCount: 10,
		},
	}
}

// DefaultPath returns ~/.foresight/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, Dir, "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.foresight/config.yaml -> environment variables
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		path = ""
	}
	return LoadWithPath(path)
}

// LoadWithPath is Load with an explicit config file. A missing file is not
// an error; defaults and environment variables still apply.
func LoadWithPath(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			fileCfg, err := LoadFromFile(path)
			if err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
			cfg = fileCfg
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Translation.APIKey = expandEnvVars(cfg.Translation.APIKey)

	return cfg, nil
}

// ApplyEnv overrides cfg with any environment variables that are set.
// Unset variables leave the current values untouched.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Engine.MaxSteps < 1 {
		return fmt.Errorf("max_steps must be at least 1, got %d", c.Engine.MaxSteps)
	}
	if c.Engine.Steps < 1 || c.Engine.Steps > c.Engine.MaxSteps {
		return fmt.Errorf("steps must be between 1 and %d, got %d", c.Engine.MaxSteps, c.Engine.Steps)
	}
	if c.Engine.Temperature < 0.1 || c.Engine.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.1 and 2.0, got %f", c.Engine.Temperature)
	}

	if c.Field.MaxFeeds < 0 {
		return fmt.Errorf("max_feeds must be non-negative, got %d", c.Field.MaxFeeds)
	}
	if c.Field.Timeout < 0 {
		return fmt.Errorf("field timeout must be non-negative, got %v", c.Field.Timeout)
	}

	if c.Translation.Timeout < 0 {
		return fmt.Errorf("translation timeout must be non-negative, got %v", c.Translation.Timeout)
	}
	if c.Translation.Enabled && c.Translation.APIKey == "" {
		return fmt.Errorf("translation enabled but no api_key (or OPENAI_API_KEY) set")
	}

	if c.Server.Addr == "" && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.RateLimit <= 0 || c.Server.Burst < 1 {
		return fmt.Errorf("rate_limit and burst must be positive, got %f/%d", c.Server.RateLimit, c.Server.Burst)
	}

	if c.Backup.MaxCount < 0 {
		return fmt.Errorf("backup max_count must be non-negative, got %d", c.Backup.MaxCount)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}
	validFormats := map[string]bool{"": true, "text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Logging.Format)
	}

	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
