// Package embedding turns text into query vectors. It always produces a
// vector of the expected dimension: when no model is reachable it substitutes
// a pseudo-random one and marks the result as degraded.
package embedding

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seanblong/promptcoach/internal/ai"
)

// Vector is an embedding plus whether it carries real semantics.
type Vector struct {
	Values   []float32
	Degraded bool
}

// Provider embeds text through an ai.Client. A nil or stub client means demo
// mode.
type Provider struct {
	client  ai.Client
	dim     int
	timeout time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// Option customizes a Provider.
type Option func(*Provider)

// WithTimeout bounds each embedding call.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// WithRand replaces the random source used for fallback vectors.
func WithRand(r *rand.Rand) Option {
	return func(p *Provider) { p.rng = r }
}

// NewProvider returns a Provider producing vectors of length dim.
func NewProvider(client ai.Client, dim int, opts ...Option) *Provider {
	p := &Provider{
		client:  client,
		dim:     dim,
		timeout: 30 * time.Second,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Dim returns the vector length this provider guarantees.
func (p *Provider) Dim() int { return p.dim }

// Live reports whether embeddings come from a real model.
func (p *Provider) Live() bool { return ai.IsLive(p.client) }

// Embed never fails. Any error from the model is logged and replaced by a
// random vector.
func (p *Provider) Embed(ctx context.Context, text string) Vector {
	if !p.Live() {
		return Vector{Values: p.Random(), Degraded: true}
	}

	vec, err := p.embed(ctx, text)
	if err != nil {
		log.Warn().Err(err).Msg("embedding failed, using random vector")
		return Vector{Values: p.Random(), Degraded: true}
	}
	return Vector{Values: vec}
}

func (p *Provider) embed(ctx context.Context, text string) ([]float32, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	vec, err := p.client.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, ai.ErrNoEmbedding
	}
	if p.dim > 0 && len(vec) != p.dim {
		return nil, fmt.Errorf("embedding has %d dimensions, store expects %d", len(vec), p.dim)
	}
	return vec, nil
}

// Random draws a vector from the standard normal distribution.
func (p *Provider) Random() []float32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := make([]float32, p.dim)
	for i := range v {
		v[i] = float32(p.rng.NormFloat64())
	}
	return v
}
