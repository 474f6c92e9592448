package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/seanblong/promptcoach/pkg/models"
)

// Store holds the chunk corpus loaded at startup. It is never modified after
// Load returns, so it may be shared between goroutines.
type Store struct {
	chunks []models.Chunk
	dim    int
}

// ChunkStore defines the read-only view the retriever needs.
type ChunkStore interface {
	Chunks() []models.Chunk
	Len() int
	Dim() int
}

// LoadError reports why a chunk file could not be used.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := "load chunks " + e.Path + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

// rawChunk keeps pointers so missing fields can be told apart from empty ones.
type rawChunk struct {
	Content   *string    `json:"content"`
	Embedding *[]float32 `json:"embedding"`
	Filename  *string    `json:"filename"`
}

// Load reads a JSON array of {content, embedding, filename} objects.
func Load(path string) (*Store, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "read file", Err: err}
	}
	return Parse(path, b)
}

// Parse decodes and validates chunk file contents. path is only used in errors.
func Parse(path string, b []byte) (*Store, error) {
	var raw []rawChunk
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, &LoadError{Path: path, Reason: "malformed json", Err: err}
	}
	if len(raw) == 0 {
		return nil, &LoadError{Path: path, Reason: "no chunks"}
	}

	s := &Store{chunks: make([]models.Chunk, 0, len(raw))}
	for i, r := range raw {
		switch {
		case r.Content == nil || strings.TrimSpace(*r.Content) == "":
			return nil, &LoadError{Path: path, Reason: fmt.Sprintf("chunk %d: missing content", i)}
		case r.Embedding == nil || len(*r.Embedding) == 0:
			return nil, &LoadError{Path: path, Reason: fmt.Sprintf("chunk %d: missing embedding", i)}
		case r.Filename == nil:
			return nil, &LoadError{Path: path, Reason: fmt.Sprintf("chunk %d: missing filename", i)}
		}
		if s.dim == 0 {
			s.dim = len(*r.Embedding)
		} else if len(*r.Embedding) != s.dim {
			return nil, &LoadError{Path: path, Reason: fmt.Sprintf("chunk %d: embedding has %d dimensions, expected %d", i, len(*r.Embedding), s.dim)}
		}
		s.chunks = append(s.chunks, models.Chunk{
			Content:   *r.Content,
			Embedding: *r.Embedding,
			Filename:  *r.Filename,
		})
	}
	return s, nil
}

// Chunks returns the stored chunks in file order. Callers must not modify them.
func (s *Store) Chunks() []models.Chunk { return s.chunks }

func (s *Store) Len() int { return len(s.chunks) }

// Dim returns the shared embedding dimensionality.
func (s *Store) Dim() int { return s.dim }

// Write serializes chunks to path atomically (temp file + rename).
func Write(path string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return errors.New("no chunks to write")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	f, err := os.CreateTemp(dir, ".chunks-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		_ = os.Remove(tmp)
	}()

	if err := json.NewEncoder(f).Encode(chunks); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode chunks: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmp, path)
}
