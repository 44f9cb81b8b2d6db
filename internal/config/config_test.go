package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("MAILTX_HOME", home)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HomeDir != home || cfg.Data.DataDir != home {
		t.Errorf("home = %q, data dir = %q, want %q", cfg.HomeDir, cfg.Data.DataDir, home)
	}
	if cfg.Oracle.Server != "http://localhost:11434" {
		t.Errorf("server = %q", cfg.Oracle.Server)
	}
	if cfg.Oracle.EmbedModel != "nomic-embed-text" || cfg.Oracle.ChatModel != "llama3.2" {
		t.Errorf("models = %q / %q", cfg.Oracle.EmbedModel, cfg.Oracle.ChatModel)
	}
	if cfg.Embed.Workers != 1 || cfg.Embed.TopK != 10 {
		t.Errorf("embed = %+v", cfg.Embed)
	}
	if cfg.Server.APIPort != 8080 {
		t.Errorf("api port = %d", cfg.Server.APIPort)
	}
	if cfg.Schedule.Enabled {
		t.Error("schedule should default to disabled")
	}
}

func TestLoadFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("MAILTX_HOME", home)

	content := `
[data]
data_dir = "/var/lib/mailtx"

[oracle]
server = "http://ollama.internal:11434"
chat_model = "qwen2.5"
rate_qps = 2.0
timeout_seconds = 30

[embed]
workers = 4

[server]
api_port = 9090
api_key = "secret"

[schedule]
pipeline = "0 2 * * *"
enabled = true
`
	path := filepath.Join(home, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := OracleConfig{
		Server:         "http://ollama.internal:11434",
		EmbedModel:     "nomic-embed-text", // default survives partial section
		ChatModel:      "qwen2.5",
		RateQPS:        2.0,
		TimeoutSeconds: 30,
	}
	if diff := cmp.Diff(want, cfg.Oracle); diff != "" {
		t.Errorf("oracle config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Data.DataDir != "/var/lib/mailtx" {
		t.Errorf("data dir = %q", cfg.Data.DataDir)
	}
	if cfg.Embed.Workers != 4 || cfg.Embed.TopK != 10 {
		t.Errorf("embed = %+v", cfg.Embed)
	}
	if cfg.Server.APIPort != 9090 || cfg.Server.APIKey != "secret" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if !cfg.Schedule.Enabled || cfg.Schedule.Pipeline != "0 2 * * *" {
		t.Errorf("schedule = %+v", cfg.Schedule)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("MAILTX_HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("missing config file should not error: %v", err)
	}
	if cfg.Oracle.Server != "http://localhost:11434" {
		t.Errorf("server = %q", cfg.Oracle.Server)
	}
}

func TestLoadBadTOML(t *testing.T) {
	home := t.TempDir()
	t.Setenv("MAILTX_HOME", home)
	path := filepath.Join(home, "config.toml")
	if err := os.WriteFile(path, []byte("not [valid toml"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestDatabasePath(t *testing.T) {
	cfg := &Config{Data: DataConfig{DataDir: "/data"}}
	if got := cfg.DatabasePath(); got != filepath.Join("/data", "mailtx.db") {
		t.Errorf("default db path = %q", got)
	}

	cfg.Data.DatabasePath = "/elsewhere/db.sqlite"
	if got := cfg.DatabasePath(); got != "/elsewhere/db.sqlite" {
		t.Errorf("explicit db path = %q", got)
	}
}

func TestRawDir(t *testing.T) {
	cfg := &Config{Data: DataConfig{DataDir: "/data"}}
	if got := cfg.RawDir(); got != filepath.Join("/data", "raw") {
		t.Errorf("raw dir = %q", got)
	}
}

func TestOracleTimeout(t *testing.T) {
	cfg := &Config{Oracle: OracleConfig{TimeoutSeconds: 30}}
	if got := cfg.OracleTimeout(); got != 30*time.Second {
		t.Errorf("timeout = %v", got)
	}
	cfg.Oracle.TimeoutSeconds = 0
	if got := cfg.OracleTimeout(); got != 60*time.Second {
		t.Errorf("zero timeout should default to 60s, got %v", got)
	}
}
