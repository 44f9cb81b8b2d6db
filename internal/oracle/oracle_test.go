package oracle

import (
	"testing"
	"time"
)

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient(Config{EmbedModel: "nomic-embed-text", ChatModel: "llama3.2"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if c.timeout != 60*time.Second {
		t.Errorf("timeout = %v, want 60s default", c.timeout)
	}
}

func TestNewClientSchemeNormalization(t *testing.T) {
	for _, serverURL := range []string{
		"localhost:11434",
		"http://localhost:11434",
		"https://ollama.internal:11434",
	} {
		if _, err := NewClient(Config{ServerURL: serverURL}); err != nil {
			t.Errorf("NewClient(%q): %v", serverURL, err)
		}
	}
}

func TestNewClientRejectsHostless(t *testing.T) {
	if _, err := NewClient(Config{ServerURL: "http://"}); err == nil {
		t.Error("expected error for URL without host")
	}
}
