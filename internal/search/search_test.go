package search

import (
	"context"
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/seanblong/promptcoach/internal/embedding"
	"github.com/seanblong/promptcoach/pkg/models"
)

// MockEmbedder implements the Embedder interface for testing
type MockEmbedder struct {
	EmbedFunc func(ctx context.Context, text string) embedding.Vector
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) embedding.Vector {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return embedding.Vector{Values: []float32{1, 0, 0}}
}

// MockStore implements store.ChunkStore for testing
type MockStore struct {
	chunks []models.Chunk
}

func (m *MockStore) Chunks() []models.Chunk { return m.chunks }
func (m *MockStore) Len() int               { return len(m.chunks) }
func (m *MockStore) Dim() int {
	if len(m.chunks) == 0 {
		return 0
	}
	return len(m.chunks[0].Embedding)
}

func fixedVector(v ...float32) *MockEmbedder {
	return &MockEmbedder{EmbedFunc: func(ctx context.Context, text string) embedding.Vector {
		return embedding.Vector{Values: v}
	}}
}

func sampleStore() *MockStore {
	return &MockStore{chunks: []models.Chunk{
		{Content: "persona", Embedding: []float32{0, 1, 0}, Filename: "roles.md"},
		{Content: "be specific", Embedding: []float32{1, 0, 0}, Filename: "specificity.md"},
		{Content: "examples", Embedding: []float32{1, 1, 0}, Filename: "few-shot.md"},
		{Content: "format", Embedding: []float32{0, 0, 1}, Filename: "format.md"},
		{Content: "opposite", Embedding: []float32{-1, 0, 0}, Filename: "anti.md"},
	}}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
		{"empty", nil, []float32{1}, 0},
		{"length mismatch uses prefix", []float32{1, 0, 5}, []float32{1, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestCosineSimilarity_SelfAndSymmetry(t *testing.T) {
	vectors := [][]float32{
		{0.3, -1.2, 4.5, 0.01},
		{-7, 2, 0, 1},
		{1e-3, 1e-3, 1e-3, 1e-3},
	}
	for i, a := range vectors {
		if got := CosineSimilarity(a, a); math.Abs(got-1) > 1e-6 {
			t.Errorf("vector %d: self similarity %v, expected 1", i, got)
		}
		for j, b := range vectors {
			if CosineSimilarity(a, b) != CosineSimilarity(b, a) {
				t.Errorf("vectors %d,%d: similarity not symmetric", i, j)
			}
		}
	}
}

func TestService_TopK(t *testing.T) {
	tests := []struct {
		name          string
		query         []float32
		k             int
		expectedFiles []string
	}{
		{
			name:          "best three",
			query:         []float32{1, 0, 0},
			k:             3,
			expectedFiles: []string{"specificity.md", "few-shot.md", "roles.md"},
		},
		{
			name:          "k larger than store returns everything",
			query:         []float32{1, 0, 0},
			k:             10,
			expectedFiles: []string{"specificity.md", "few-shot.md", "roles.md", "format.md", "anti.md"},
		},
		// only format.md scores non-zero; the ties keep store order
		{
			name:          "zero k uses default",
			query:         []float32{0, 0, 1},
			k:             0,
			expectedFiles: []string{"format.md", "roles.md", "specificity.md"},
		},
		{
			name:          "zero query keeps store order",
			query:         []float32{0, 0, 0},
			k:             5,
			expectedFiles: []string{"roles.md", "specificity.md", "few-shot.md", "format.md", "anti.md"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(fixedVector(tt.query...), sampleStore())
			res := svc.TopK(context.Background(), "prompt", tt.k)

			expected := tt.expectedFiles
			var got []string
			for _, c := range res.Chunks {
				got = append(got, c.Chunk.Filename)
			}
			if !reflect.DeepEqual(got, expected) {
				t.Errorf("Expected %v, got %v", expected, got)
			}
		})
	}
}

func TestService_TopKDescending(t *testing.T) {
	svc := NewService(fixedVector(0.2, 0.9, -0.4), sampleStore())
	res := svc.TopK(context.Background(), "q", 5)

	for i := 1; i < len(res.Chunks); i++ {
		if res.Chunks[i-1].Similarity < res.Chunks[i].Similarity {
			t.Errorf("results not descending at %d: %v < %v", i, res.Chunks[i-1].Similarity, res.Chunks[i].Similarity)
		}
	}
}

func TestService_TopKFullCoverage(t *testing.T) {
	st := sampleStore()
	svc := NewService(fixedVector(0.5, -0.1, 0.7), st)
	res := svc.TopK(context.Background(), "q", st.Len())

	if len(res.Chunks) != st.Len() {
		t.Fatalf("Expected %d chunks, got %d", st.Len(), len(res.Chunks))
	}
	seen := map[string]int{}
	for _, c := range res.Chunks {
		seen[c.Chunk.Content]++
	}
	for _, c := range st.Chunks() {
		if seen[c.Content] != 1 {
			t.Errorf("chunk %q returned %d times", c.Content, seen[c.Content])
		}
	}
}

func TestService_TopKDemoMode(t *testing.T) {
	st := sampleStore()
	svc := NewService(embedding.NewProvider(nil, 3), st)

	for i := 0; i < 2; i++ {
		res := svc.TopK(context.Background(), "Write a blog post about AI", 3)
		if len(res.Chunks) != 3 {
			t.Errorf("call %d: expected 3 chunks, got %d", i, len(res.Chunks))
		}
		if !res.Degraded {
			t.Errorf("call %d: demo mode retrieval must be marked degraded", i)
		}
	}
}

func TestService_TopKTrimsQuery(t *testing.T) {
	var seen string
	emb := &MockEmbedder{EmbedFunc: func(ctx context.Context, text string) embedding.Vector {
		seen = text
		return embedding.Vector{Values: []float32{1, 0, 0}}
	}}
	NewService(emb, sampleStore()).TopK(context.Background(), "   hello world  ", 1)

	if seen != "hello world" {
		t.Errorf("Expected trimmed text 'hello world', got '%s'", seen)
	}
}

func TestService_TopKDoesNotMutateStore(t *testing.T) {
	st := sampleStore()
	before := make([]models.Chunk, len(st.chunks))
	copy(before, st.chunks)

	svc := NewService(embedding.NewProvider(nil, 3), st)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.TopK(context.Background(), "q", 2)
		}()
	}
	wg.Wait()

	if !reflect.DeepEqual(before, st.chunks) {
		t.Error("store chunks were modified by retrieval")
	}
}

func TestService_TopKEmptyStore(t *testing.T) {
	svc := NewService(fixedVector(1, 0, 0), &MockStore{})
	res := svc.TopK(context.Background(), "q", 3)
	if len(res.Chunks) != 0 {
		t.Errorf("Expected no chunks, got %d", len(res.Chunks))
	}
}
