// Package oracle wraps the external LLM services mailtx depends on: the
// embedding oracle and the JSON-mode chat oracle used for structured
// extraction and intent parsing. Both are black boxes that may time out,
// fail, or return garbage; callers skip the current record and retry on a
// later run.
package oracle

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Embedder returns a fixed-length vector for the given text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chatter sends a system+user prompt pair and returns the raw response
// text. Responses are requested in JSON mode at temperature 0, but the
// contract makes no promise the output actually parses.
type Chatter interface {
	ChatJSON(ctx context.Context, system, user string) (string, error)
}

// Client talks to an Ollama server.
type Client struct {
	api        *api.Client
	embedModel string
	chatModel  string
	limiter    *rate.Limiter
	timeout    time.Duration
}

// Config holds oracle client settings.
type Config struct {
	ServerURL  string
	EmbedModel string
	ChatModel  string
	QPS        float64       // rate cap across all oracle calls; <=0 disables
	Timeout    time.Duration // per-call deadline; <=0 means 60s
}

// NewClient creates a Client for the given server and models.
func NewClient(cfg Config) (*Client, error) {
	serverURL := cfg.ServerURL
	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}
	// Prepend scheme if missing so url.Parse produces a valid host.
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		serverURL = "http://" + serverURL
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid server URL %q", cfg.ServerURL)
	}
	if u.Host == "" {
		return nil, eris.Errorf("invalid server URL %q: missing host", cfg.ServerURL)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.QPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.QPS), 1)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		api:        api.NewClient(u, &http.Client{}),
		embedModel: cfg.EmbedModel,
		chatModel:  cfg.ChatModel,
		limiter:    limiter,
		timeout:    timeout,
	}, nil
}

// Embed returns the embedding vector for text. A stuck server call is cut
// off by the per-call deadline rather than stalling the whole batch.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limit wait")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  c.embedModel,
		Prompt: text,
	})
	if err != nil {
		return nil, eris.Wrap(err, "embedding oracle")
	}
	if len(resp.Embedding) == 0 {
		return nil, eris.New("embedding oracle returned empty vector")
	}

	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// ChatJSON sends system+user messages in JSON mode at temperature 0 and
// returns the complete response text.
func (c *Client) ChatJSON(ctx context.Context, system, user string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "rate limit wait")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream := false
	req := &api.ChatRequest{
		Model: c.chatModel,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream:  &stream,
		Format:  "json",
		Options: map[string]interface{}{"temperature": 0},
	}

	var sb strings.Builder
	err := c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", eris.Wrap(err, "chat oracle")
	}
	return sb.String(), nil
}
