// Package config handles configuration loading and validation for tradeoff.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scoring backends.
const (
	BackendHTTP   = "http"
	BackendGemini = "gemini"
)

// defaultExamples are the decisions offered by the pick-example affordance.
var defaultExamples = []string{
	"I want to drink bubble tea every day for a year.",
	"I'm considering buying a gaming console for $600.",
	"Should I subscribe to 3 streaming services?",
	"Should I pull an all-nighter to study for my calc test",
}

// Config holds the application configuration.
type Config struct {
	Scoring       ScoringConfig       `yaml:"scoring"`
	Gemini        GeminiConfig        `yaml:"gemini"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Media         MediaConfig         `yaml:"media"`
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Examples      []string            `yaml:"examples"`
	DataDir       string              `yaml:"-"` // set by caller, not from config file
}

// ScoringConfig selects and configures the analysis gateway.
type ScoringConfig struct {
	Backend     string        `yaml:"backend"`      // http or gemini
	BaseURL     string        `yaml:"base_url"`     // scoring service root for the http backend
	AnalyzePath string        `yaml:"analyze_path"` // defaults to /analyze
	VerifyPath  string        `yaml:"verify_path"`  // defaults to /verify
	Timeout     time.Duration `yaml:"timeout"`      // per request
}

// GeminiConfig configures the Gemini scorer.
type GeminiConfig struct {
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"` // environment variable holding the API key
}

// APIKey reads the key from the configured environment variable.
func (g GeminiConfig) APIKey() string {
	return os.Getenv(g.APIKeyEnv)
}

// NotificationsConfig configures the notification center.
type NotificationsConfig struct {
	Dwell time.Duration `yaml:"dwell"`
}

// MediaConfig configures verification uploads.
type MediaConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

// ServerConfig configures `tradeoff serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig tunes the SQLite connection pool.
type DatabaseConfig struct {
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Scoring: ScoringConfig{
			Backend:     BackendHTTP,
			BaseURL:     "http://localhost:5000",
			AnalyzePath: "/analyze",
			VerifyPath:  "/verify",
			Timeout:     60 * time.Second,
		},
		Gemini: GeminiConfig{
			Model:     "gemini-2.0-flash",
			APIKeyEnv: "GEMINI_API_KEY",
		},
		Notifications: NotificationsConfig{Dwell: 3 * time.Second},
		Media:         MediaConfig{MaxBytes: 5 << 20},
		Server:        ServerConfig{Addr: ":5000"},
		Database: DatabaseConfig{
			MaxOpenConns: 2,
			MaxIdleConns: 2,
			BusyTimeout:  5 * time.Second,
		},
		Examples: append([]string(nil), defaultExamples...),
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.DataDir = dataDir
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	d := DefaultConfig()

	if c.Scoring.Backend == "" {
		c.Scoring.Backend = d.Scoring.Backend
	}
	if c.Scoring.BaseURL == "" {
		c.Scoring.BaseURL = d.Scoring.BaseURL
	}
	if c.Scoring.AnalyzePath == "" {
		c.Scoring.AnalyzePath = d.Scoring.AnalyzePath
	}
	if c.Scoring.VerifyPath == "" {
		c.Scoring.VerifyPath = d.Scoring.VerifyPath
	}
	if c.Scoring.Timeout == 0 {
		c.Scoring.Timeout = d.Scoring.Timeout
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = d.Gemini.Model
	}
	if c.Gemini.APIKeyEnv == "" {
		c.Gemini.APIKeyEnv = d.Gemini.APIKeyEnv
	}
	if c.Notifications.Dwell == 0 {
		c.Notifications.Dwell = d.Notifications.Dwell
	}
	if c.Media.MaxBytes == 0 {
		c.Media.MaxBytes = d.Media.MaxBytes
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = d.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = d.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = d.Database.BusyTimeout
	}
	if len(c.Examples) == 0 {
		c.Examples = d.Examples
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	switch c.Scoring.Backend {
	case BackendHTTP:
		if c.Scoring.BaseURL == "" {
			return fmt.Errorf("scoring.base_url cannot be empty for the http backend")
		}
	case BackendGemini:
		if c.Gemini.Model == "" {
			return fmt.Errorf("gemini.model cannot be empty")
		}
	default:
		return fmt.Errorf("scoring.backend %q must be %q or %q", c.Scoring.Backend, BackendHTTP, BackendGemini)
	}

	if c.Scoring.Timeout < 0 {
		return fmt.Errorf("scoring.timeout cannot be negative")
	}
	if c.Notifications.Dwell <= 0 {
		return fmt.Errorf("notifications.dwell must be positive")
	}
	if c.Media.MaxBytes <= 0 {
		return fmt.Errorf("media.max_bytes must be positive")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1")
	}
	if c.Database.MaxIdleConns < 0 || c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns must be between 0 and max_open_conns")
	}

	for i, ex := range c.Examples {
		if ex == "" {
			return fmt.Errorf("examples[%d] cannot be empty", i)
		}
	}

	return nil
}

// DatabaseFile returns the path to the SQLite database.
func (c *Config) DatabaseFile() string {
	return filepath.Join(c.DataDir, "tradeoff.db")
}

// LogFile returns the default log file path.
func (c *Config) LogFile() string {
	return filepath.Join(c.DataDir, "tradeoff.log")
}
