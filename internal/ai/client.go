package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Client provides both embedding and chat completion capabilities
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Complete(ctx context.Context, system, user string) (string, error)
	Dim() int
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderVertexAI Provider = "vertexai"
	ProviderOllama   Provider = "ollama"
	ProviderStub     Provider = "stub"
)

var (
	ErrNoCredential = errors.New("no provider credential configured")
	ErrNoEmbedding  = errors.New("no embedding returned")
	ErrNoChoices    = errors.New("no choices returned")
)

const defaultTimeout = 30 * time.Second

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	APIKey            string
	EmbedModel        string
	ChatModel         string
	Dim               int
	ProjectID         string
	Provider          Provider
	Location          string
	BaseURL           string
	Host              string
	RequestsPerMinute int
	Timeout           time.Duration
}

// HasCredential reports whether the configured provider can reach a real model.
func (c *ClientConfig) HasCredential() bool {
	switch c.Provider {
	case ProviderOpenAI:
		return strings.TrimSpace(c.APIKey) != ""
	case ProviderVertexAI:
		return strings.TrimSpace(c.APIKey) != "" || strings.TrimSpace(c.ProjectID) != ""
	case ProviderOllama:
		return true
	default:
		return false
	}
}

// NewClient creates a new AI client based on configuration. A provider without
// a credential yields a StubClient, which callers treat as demo mode.
func NewClient(config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	var c Client
	switch config.Provider {
	case ProviderOpenAI, ProviderVertexAI, ProviderOllama:
		if !config.HasCredential() {
			log.Warn().Str("provider", string(config.Provider)).Msg("no API key configured, running in demo mode")
			return NewStubClient(config.Dim), nil
		}
	}

	switch config.Provider {
	case ProviderOpenAI:
		c = NewOpenAIClient(config)
	case ProviderVertexAI:
		v, err := NewVertexAIClient(context.Background(), config)
		if err != nil {
			return nil, err
		}
		c = v
	case ProviderOllama:
		o, err := NewOllamaClient(config)
		if err != nil {
			return nil, err
		}
		c = o
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}

	if config.RequestsPerMinute > 0 {
		c = NewRateLimited(c, config.RequestsPerMinute)
	}
	return c, nil
}

// IsLive reports whether c talks to a real model. Nil and stub clients are
// demo mode.
func IsLive(c Client) bool {
	switch v := c.(type) {
	case nil:
		return false
	case *StubClient:
		return false
	case *RateLimited:
		return IsLive(v.Client)
	default:
		return true
	}
}

// StubClient is the demo-mode client: it never reaches a model.
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient
func NewStubClient(dim int) *StubClient {
	return &StubClient{dim: dim}
}

// Embed returns a zero vector of the configured dimension.
func (s *StubClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, s.dim), nil
}

func (s *StubClient) Complete(ctx context.Context, system, user string) (string, error) {
	return "", ErrNoCredential
}

// Dim returns the embedding dimension
func (s *StubClient) Dim() int {
	return s.dim
}

// RateLimited spaces out calls to the wrapped client.
type RateLimited struct {
	Client
	limiter *rate.Limiter
}

// NewRateLimited allows perMinute calls per minute with a burst of one.
func NewRateLimited(c Client, perMinute int) *RateLimited {
	return &RateLimited{
		Client:  c,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Client.Embed(ctx, text)
}

func (r *RateLimited) Complete(ctx context.Context, system, user string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.Client.Complete(ctx, system, user)
}
