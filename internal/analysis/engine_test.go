package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanblong/promptcoach/internal/ai"
	"github.com/seanblong/promptcoach/internal/embedding"
	"github.com/seanblong/promptcoach/internal/search"
	"github.com/seanblong/promptcoach/pkg/models"
)

// MockRetriever implements the Retriever interface for testing
type MockRetriever struct {
	Result search.Retrieval
	gotK   int
	gotQ   string
}

func (m *MockRetriever) TopK(ctx context.Context, q string, k int) search.Retrieval {
	m.gotQ, m.gotK = q, k
	return m.Result
}

// MockAIClient implements the ai.Client interface for testing
type MockAIClient struct {
	CompleteFunc func(ctx context.Context, system, user string) (string, error)
	system, user string
}

func (m *MockAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (m *MockAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	m.system, m.user = system, user
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, system, user)
	}
	return "", nil
}

func (m *MockAIClient) Dim() int { return 3 }

func reply(s string) *MockAIClient {
	return &MockAIClient{CompleteFunc: func(ctx context.Context, system, user string) (string, error) {
		return s, nil
	}}
}

func threeChunks() search.Retrieval {
	return search.Retrieval{Chunks: []models.ScoredChunk{
		{Chunk: models.Chunk{Content: "Be specific.", Filename: "specificity.md"}, Similarity: 0.9},
		{Chunk: models.Chunk{Content: "Give the model a role.", Filename: "roles.md"}, Similarity: 0.8},
		{Chunk: models.Chunk{Content: "Show examples.", Filename: "few-shot.md"}, Similarity: 0.7},
	}}
}

func TestAnalyze_DemoMode(t *testing.T) {
	tests := []struct {
		name   string
		client ai.Client
	}{
		{name: "nil client", client: nil},
		{name: "stub client", client: ai.NewStubClient(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retriever := &MockRetriever{Result: threeChunks()}
			e := NewEngine(retriever, tt.client, 0)

			res := e.Analyze(context.Background(), "Write a blog post about AI")

			assert.Equal(t, search.DefaultK, retriever.gotK)
			assert.Equal(t, models.KindStructured, res.Kind)
			assert.Equal(t, models.SourcePlaceholderDemo, res.Source)
			assert.True(t, res.Degraded)
			require.NotNil(t, res.Structured)
			assert.Equal(t, "Your prompt 'Write a blog post about AI' could be improved by adding more specificity and context.", res.Structured.Assessment)
			assert.Contains(t, res.Structured.RefinedPrompt, "blog post about AI.")
			assert.Len(t, res.RelevantSections, 3)
		})
	}
}

func TestAnalyze_DemoModeWithRealRetrieval(t *testing.T) {
	st := &memStore{chunks: []models.Chunk{
		{Content: "a", Embedding: []float32{1, 0}, Filename: "a.md"},
		{Content: "b", Embedding: []float32{0, 1}, Filename: "b.md"},
		{Content: "c", Embedding: []float32{1, 1}, Filename: "c.md"},
		{Content: "d", Embedding: []float32{-1, 0}, Filename: "d.md"},
	}}
	svc := search.NewService(embedding.NewProvider(nil, 2), st)
	e := NewEngine(svc, nil, 0)

	res := e.Analyze(context.Background(), "Write a blog post about AI")
	assert.Len(t, res.RelevantSections, 3)
	assert.True(t, res.Degraded)
	assert.Equal(t, models.SourcePlaceholderDemo, res.Source)
}

func TestAnalyze_Structured(t *testing.T) {
	client := reply("Strengths:\n- clear\n- concise")
	e := NewEngine(&MockRetriever{Result: threeChunks()}, client, 0)

	res := e.Analyze(context.Background(), "Summarize this article")

	assert.Equal(t, models.KindStructured, res.Kind)
	assert.Equal(t, models.SourceModel, res.Source)
	assert.False(t, res.Degraded)
	require.NotNil(t, res.Structured)
	assert.Equal(t, []string{"clear", "concise"}, res.Structured.Strengths)
	assert.Equal(t, "This prompt could be improved based on Google's prompt engineering guide.", res.Structured.Assessment)
	assert.Equal(t, []string{"The prompt lacks specificity", "Context could be improved"}, res.Structured.Weaknesses)
	assert.Equal(t, "Improved version of: Summarize this article", res.Structured.RefinedPrompt)
	assert.Equal(t, "The refined prompt adds more specificity and context.", res.Structured.Explanation)
}

func TestAnalyze_RawReply(t *testing.T) {
	text := "Looks fine to me.\nNothing to add."
	e := NewEngine(&MockRetriever{Result: threeChunks()}, reply(text), 0)

	res := e.Analyze(context.Background(), "hello")

	assert.Equal(t, models.KindRaw, res.Kind)
	assert.Equal(t, models.SourceRaw, res.Source)
	assert.Equal(t, text, res.Raw)
	assert.Nil(t, res.Structured)
	assert.Len(t, res.RelevantSections, 3)
}

func TestAnalyze_CompletionError(t *testing.T) {
	client := &MockAIClient{CompleteFunc: func(ctx context.Context, system, user string) (string, error) {
		return "", errors.New("429 rate limited")
	}}
	e := NewEngine(&MockRetriever{Result: threeChunks()}, client, 0)

	res := e.Analyze(context.Background(), "Write a blog post about Go")

	assert.Equal(t, models.SourcePlaceholderError, res.Source)
	assert.True(t, res.Degraded)
	require.NotNil(t, res.Structured)
	assert.Equal(t, Placeholder("Write a blog post about Go"), *res.Structured)
}

func TestAnalyze_CompletionTimeout(t *testing.T) {
	client := &MockAIClient{CompleteFunc: func(ctx context.Context, system, user string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	e := NewEngine(&MockRetriever{Result: threeChunks()}, client, 20*time.Millisecond)

	res := e.Analyze(context.Background(), "p")
	assert.Equal(t, models.SourcePlaceholderError, res.Source)
}

func TestAnalyze_ComposedMessages(t *testing.T) {
	client := reply("Assessment: ok")
	e := NewEngine(&MockRetriever{Result: threeChunks()}, client, 0)

	e.Analyze(context.Background(), "Explain quantum computing")

	assert.True(t, strings.HasPrefix(client.system, "You are a Prompt Coach"))
	assert.Contains(t, client.user, "Here is the user's prompt:\n\"Explain quantum computing\"")
	assert.Contains(t, client.user, "Be specific.\n\nGive the model a role.\n\nShow examples.")
	assert.True(t, strings.HasSuffix(client.user, "4. Explanation of changes made"))
}

func TestAnalyze_RetrievalDegradedPropagates(t *testing.T) {
	r := threeChunks()
	r.Degraded = true
	e := NewEngine(&MockRetriever{Result: r}, reply("Assessment: ok"), 0)

	res := e.Analyze(context.Background(), "p")
	assert.Equal(t, models.SourceModel, res.Source)
	assert.True(t, res.Degraded)
}

func TestAnalyze_EmptyPrompt(t *testing.T) {
	e := NewEngine(&MockRetriever{Result: threeChunks()}, nil, 0)

	res := e.Analyze(context.Background(), "")
	assert.Equal(t, "", res.OriginalPrompt)
	require.NotNil(t, res.Structured)
	assert.Equal(t, "Your prompt '' could be improved by adding more specificity and context.", res.Structured.Assessment)
}

func TestAnalysisResult_JSON(t *testing.T) {
	e := NewEngine(&MockRetriever{Result: threeChunks()}, reply("no headers here"), 0)
	res := e.Analyze(context.Background(), "p")

	b, err := json.Marshal(res)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(b, &wire))
	assert.Equal(t, "no headers here", wire["analysis"])
	assert.Equal(t, "raw", wire["source"])

	var back models.AnalysisResult
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, models.KindRaw, back.Kind)
	assert.Equal(t, "no headers here", back.Raw)
}

func TestAnalyze_ZeroTimeoutLiteral(t *testing.T) {
	client := &MockAIClient{CompleteFunc: func(ctx context.Context, system, user string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "Overall Assessment: solid\nStrengths:\n- clear", nil
	}}
	e := &Engine{Retriever: &MockRetriever{Result: threeChunks()}, Client: client}

	res := e.Analyze(context.Background(), "Summarize this article")

	assert.Equal(t, models.SourceModel, res.Source)
	assert.False(t, res.Degraded)
	require.NotNil(t, res.Structured)
	assert.Equal(t, "solid", res.Structured.Assessment)
}

func TestPlaceholder(t *testing.T) {
	p := Placeholder("Write a blog post about AI")

	assert.Len(t, p.Strengths, 2)
	assert.Len(t, p.Weaknesses, 3)
	assert.Equal(t, "You are an expert content creator. Write a comprehensive, well-researched blog post about AI. "+
		"Include 5 key sections with headers, practical examples, and actionable takeaways. "+
		"Format the response with markdown and optimize it for a technical audience.", p.RefinedPrompt)
	assert.Equal(t, p, Placeholder("Write a blog post about AI"))
}

func TestPlaceholder_TopicExtraction(t *testing.T) {
	tests := []struct {
		prompt string
		topic  string
	}{
		{"Write a blog post about AI", "AI"},
		{"Please Write a blog post about AI", "Please AI"},
		{"Write a blog post about Write a blog post about Go", "Go"},
		{"Summarize this article", "Summarize this article"},
	}

	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			p := Placeholder(tt.prompt)
			assert.Contains(t, p.RefinedPrompt, "blog post about "+tt.topic+". Include")
			assert.Contains(t, p.Assessment, "'"+tt.prompt+"'")
		})
	}
}

type memStore struct {
	chunks []models.Chunk
}

func (m *memStore) Chunks() []models.Chunk { return m.chunks }
func (m *memStore) Len() int               { return len(m.chunks) }
func (m *memStore) Dim() int               { return 2 }
