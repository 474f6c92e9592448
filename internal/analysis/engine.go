package analysis

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seanblong/promptcoach/internal/ai"
	"github.com/seanblong/promptcoach/internal/search"
	"github.com/seanblong/promptcoach/pkg/models"
)

const defaultTimeout = 30 * time.Second

// Retriever ranks stored chunks against a prompt.
type Retriever interface {
	TopK(ctx context.Context, q string, k int) search.Retrieval
}

// Engine runs the retrieve, compose, complete and parse pipeline.
type Engine struct {
	Retriever Retriever
	Client    ai.Client
	TopK      int
	Timeout   time.Duration
}

// NewEngine wires an engine. A nil or stub client puts it in demo mode.
func NewEngine(retriever Retriever, client ai.Client, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Engine{
		Retriever: retriever,
		Client:    client,
		TopK:      search.DefaultK,
		Timeout:   timeout,
	}
}

// Analyze coaches a single prompt. It never fails: missing credentials and
// chat errors both fall back to the placeholder analysis, and the result's
// Source says which path was taken.
func (e *Engine) Analyze(ctx context.Context, prompt string) models.AnalysisResult {
	retrieval := e.Retriever.TopK(ctx, prompt, e.TopK)

	result := models.AnalysisResult{
		OriginalPrompt:   prompt,
		Kind:             models.KindStructured,
		RelevantSections: models.SectionsFrom(retrieval.Chunks),
		Degraded:         retrieval.Degraded,
	}

	if !ai.IsLive(e.Client) {
		log.Info().Msg("no model credential configured, returning placeholder analysis")
		placeholder := Placeholder(prompt)
		result.Structured = &placeholder
		result.Source = models.SourcePlaceholderDemo
		result.Degraded = true
		return result
	}

	system, user := BuildMessages(prompt, retrieval.Chunks)

	reply, err := e.complete(ctx, system, user)
	if err != nil {
		log.Error().Err(err).Msg("chat completion failed, returning placeholder analysis")
		placeholder := Placeholder(prompt)
		result.Structured = &placeholder
		result.Source = models.SourcePlaceholderError
		result.Degraded = true
		return result
	}

	parsed, ok := Parse(reply)
	if !ok {
		log.Warn().Int("reply_len", len(reply)).Msg("no sections recognized in model reply, keeping raw text")
		result.Kind = models.KindRaw
		result.Raw = reply
		result.Source = models.SourceRaw
		return result
	}

	parsed = WithDefaults(parsed, prompt)
	result.Structured = &parsed
	result.Source = models.SourceModel
	return result
}

func (e *Engine) complete(ctx context.Context, system, user string) (string, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	return e.Client.Complete(ctx, system, user)
}
