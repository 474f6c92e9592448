package search

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/seanblong/promptcoach/internal/embedding"
	"github.com/seanblong/promptcoach/internal/store"
	"github.com/seanblong/promptcoach/pkg/models"
)

// DefaultK is the number of chunks returned when the caller passes k <= 0.
const DefaultK = 3

// Embedder produces query vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) embedding.Vector
}

// Retrieval is a ranked list of chunks for one query.
type Retrieval struct {
	Chunks   []models.ScoredChunk
	Degraded bool
}

// Service ranks the store's chunks by cosine similarity to an embedded query.
type Service struct {
	Embedder Embedder
	Store    store.ChunkStore
}

// NewService creates a new search service with the provided embedder and store
func NewService(embedder Embedder, store store.ChunkStore) *Service {
	return &Service{
		Embedder: embedder,
		Store:    store,
	}
}

// TopK embeds q and returns the k stored chunks most similar to it, best
// first. Chunks with equal scores keep their store order. Scores are written
// to the returned slice only, so concurrent calls are safe.
func (s *Service) TopK(ctx context.Context, q string, k int) Retrieval {
	q = strings.TrimSpace(q)
	if k <= 0 {
		k = DefaultK
	}

	vec := s.Embedder.Embed(ctx, q)
	if vec.Degraded {
		log.Debug().Str("query", q).Msg("ranking with a degraded query vector")
	}

	chunks := s.Store.Chunks()
	scored := make([]models.ScoredChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = models.ScoredChunk{Chunk: c, Similarity: CosineSimilarity(vec.Values, c.Embedding)}
	}

	slices.SortStableFunc(scored, func(a, b models.ScoredChunk) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		default:
			return 0
		}
	})

	if k > len(scored) {
		k = len(scored)
	}
	return Retrieval{Chunks: scored[:k:k], Degraded: vec.Degraded}
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|). A zero-norm vector has
// similarity 0 with everything. If the lengths differ only the common prefix
// is compared.
func CosineSimilarity(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(sim) {
		return 0
	}
	return sim
}
