// Package config handles loading and managing mailtx configuration.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rotisserie/eris"
)

// DataConfig holds data storage configuration.
type DataConfig struct {
	DataDir      string `toml:"data_dir"`
	DatabasePath string `toml:"database_path"`
}

// OracleConfig holds LLM oracle configuration.
type OracleConfig struct {
	Server         string  `toml:"server"`          // Ollama server URL
	EmbedModel     string  `toml:"embed_model"`     // Embedding model name
	ChatModel      string  `toml:"chat_model"`      // Extraction/intent model name
	RateQPS        float64 `toml:"rate_qps"`        // Oracle calls per second (0 = unlimited)
	TimeoutSeconds int     `toml:"timeout_seconds"` // Per-call deadline
}

// EmbedConfig holds embedding index configuration.
type EmbedConfig struct {
	Workers int `toml:"workers"` // Bounded fan-out for oracle calls
	TopK    int `toml:"top_k"`   // Default similarity result count
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	APIPort int    `toml:"api_port"` // HTTP server port
	APIKey  string `toml:"api_key"`  // Optional API authentication key
}

// ScheduleConfig holds the cron schedule for automated pipeline runs.
type ScheduleConfig struct {
	Pipeline string `toml:"pipeline"` // Cron expression (e.g., "0 2 * * *")
	Enabled  bool   `toml:"enabled"`
}

type Config struct {
	Data     DataConfig     `toml:"data"`
	Oracle   OracleConfig   `toml:"oracle"`
	Embed    EmbedConfig    `toml:"embed"`
	Server   ServerConfig   `toml:"server"`
	Schedule ScheduleConfig `toml:"schedule"`

	// Computed at load time, not from the config file
	HomeDir string `toml:"-"`
}

// DefaultHome returns the default mailtx home directory.
// Respects the MAILTX_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("MAILTX_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mailtx"
	}
	return filepath.Join(home, ".mailtx")
}

// Load reads the configuration from the specified file. If path is empty,
// the default location (~/.mailtx/config.toml) is used. A missing config
// file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	homeDir := DefaultHome()

	if path == "" {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := &Config{
		HomeDir: homeDir,
		Data: DataConfig{
			DataDir: homeDir,
		},
		Oracle: OracleConfig{
			Server:         "http://localhost:11434",
			EmbedModel:     "nomic-embed-text",
			ChatModel:      "llama3.2",
			TimeoutSeconds: 60,
		},
		Embed: EmbedConfig{
			Workers: 1,
			TopK:    10,
		},
		Server: ServerConfig{
			APIPort: 8080,
		},
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, eris.Wrap(err, "decode config")
	}

	cfg.Data.DataDir = expandPath(cfg.Data.DataDir)
	cfg.Data.DatabasePath = expandPath(cfg.Data.DatabasePath)

	return cfg, nil
}

// EnsureHomeDir creates the data directory if it does not exist.
func (c *Config) EnsureHomeDir() error {
	if err := os.MkdirAll(c.Data.DataDir, 0755); err != nil {
		return eris.Wrap(err, "create data directory")
	}
	return nil
}

// DatabasePath returns the path to the SQLite database.
func (c *Config) DatabasePath() string {
	if c.Data.DatabasePath != "" {
		return c.Data.DatabasePath
	}
	return filepath.Join(c.Data.DataDir, "mailtx.db")
}

// RawDir returns the path to the raw blob content store.
func (c *Config) RawDir() string {
	return filepath.Join(c.Data.DataDir, "raw")
}

// OracleTimeout returns the per-call oracle deadline.
func (c *Config) OracleTimeout() time.Duration {
	if c.Oracle.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Oracle.TimeoutSeconds) * time.Second
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
