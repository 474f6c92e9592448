package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	ollamaenv "github.com/ollama/ollama/envconfig"
)

// OllamaClient talks to a local or remote Ollama server.
type OllamaClient struct {
	config *ClientConfig
	client *api.Client
}

// NewOllamaClient uses config.Host when set and OLLAMA_HOST otherwise.
func NewOllamaClient(config *ClientConfig) (*OllamaClient, error) {
	if config.EmbedModel == "" {
		config.EmbedModel = "nomic-embed-text"
	}
	if config.ChatModel == "" {
		config.ChatModel = "llama3.2"
	}
	if config.Dim == 0 {
		config.Dim = 768
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	base := ollamaenv.Host()
	if h := strings.TrimSpace(config.Host); h != "" {
		u, err := url.Parse(h)
		if err != nil {
			return nil, fmt.Errorf("parse ollama host %q: %w", h, err)
		}
		base = u
	}

	return &OllamaClient{
		config: config,
		client: api.NewClient(base, &http.Client{Timeout: config.Timeout}),
	}, nil
}

func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Embed(ctx, &api.EmbedRequest{
		Model: c.config.EmbedModel,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, ErrNoEmbedding
	}
	return resp.Embeddings[0], nil
}

func (c *OllamaClient) Complete(ctx context.Context, system, user string) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model: c.config.ChatModel,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: &stream,
	}

	var sb strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		_, err := sb.WriteString(resp.Message.Content)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	if sb.Len() == 0 {
		return "", ErrNoChoices
	}
	return sb.String(), nil
}

func (c *OllamaClient) Dim() int {
	return c.config.Dim
}
