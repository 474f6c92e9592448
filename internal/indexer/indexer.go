package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/seanblong/promptcoach/internal/ai"
	"github.com/seanblong/promptcoach/internal/store"
	"github.com/seanblong/promptcoach/pkg/models"
)

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for reading files
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// ChunkWriter persists the finished chunk set.
type ChunkWriter interface {
	Write(path string, chunks []models.Chunk) error
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// FileChunkWriter writes the chunk store file with store.Write.
type FileChunkWriter struct{}

func (FileChunkWriter) Write(path string, chunks []models.Chunk) error {
	return store.Write(path, chunks)
}

// Options controls how documents are cut into chunks.
type Options struct {
	MaxChars int
	Overlap  int
	Workers  int
}

// Indexer turns a directory of guide documents into an embedded chunk store.
type Indexer struct {
	GuideRoot  string
	OutPath    string
	Client     ai.Client
	Options    Options
	Walker     FileSystemWalker
	FileReader FileReader
	Writer     ChunkWriter
}

// New creates a new Indexer instance.
func New(guideRoot, outPath string, clientConfig *ai.ClientConfig, opts Options) (*Indexer, error) {
	client, err := ai.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}
	return NewWithDependencies(guideRoot, outPath, client, opts, &DefaultFileSystemWalker{}, &DefaultFileReader{}, FileChunkWriter{}), nil
}

// NewWithDependencies creates a new Indexer instance with custom dependencies for testing
func NewWithDependencies(guideRoot, outPath string, client ai.Client, opts Options, walker FileSystemWalker, fileReader FileReader, writer ChunkWriter) *Indexer {
	return &Indexer{
		GuideRoot:  guideRoot,
		OutPath:    outPath,
		Client:     client,
		Options:    opts,
		Walker:     walker,
		FileReader: fileReader,
		Writer:     writer,
	}
}

// document is a file read from the guide root.
type document struct {
	path    string
	content []byte
}

// Run walks the guide root, chunks every supported document, embeds the
// chunks and writes the store. Any embedding failure aborts the run: a store
// holding placeholder vectors would rank nonsense.
func (ix *Indexer) Run(ctx context.Context) error {
	if !ai.IsLive(ix.Client) {
		return errors.New("indexing requires a configured embedding provider")
	}

	docs, err := ix.collect(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no supported documents under %s", ix.GuideRoot)
	}

	chunks := ix.chunk(docs)
	if len(chunks) == 0 {
		return fmt.Errorf("no text extracted from %d documents", len(docs))
	}

	if err := ix.embed(ctx, chunks); err != nil {
		return err
	}

	log.Info().Int("documents", len(docs)).Int("chunks", len(chunks)).Str("out", ix.OutPath).Msg("writing chunk store")
	return ix.Writer.Write(ix.OutPath, chunks)
}

// collect reads every supported file under the guide root, sorted by
// relative path so the output order is stable.
func (ix *Indexer) collect(ctx context.Context) ([]document, error) {
	var docs []document
	err := ix.Walker.Walk(ix.GuideRoot, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if de != nil && de.IsDir() {
				if path != ix.GuideRoot && shouldSkipDir(path) {
					return godirwalk.SkipThis
				}
				return nil
			}
			if shouldSkip(path) || !supported(path) {
				return nil
			}

			b, err := ix.FileReader.ReadFile(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to read file")
				return nil
			}
			docs = append(docs, document{path: rel(ix.GuideRoot, path), content: b})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", ix.GuideRoot, err)
	}

	slices.SortFunc(docs, func(a, b document) int { return strings.Compare(a.path, b.path) })
	return docs, nil
}

// chunk extracts, packs and windows every document. Chunks come out grouped
// by document in path order, then in position order within a document.
func (ix *Indexer) chunk(docs []document) []models.Chunk {
	var out []models.Chunk
	for _, d := range docs {
		sections, err := extract(d.path, d.content)
		if err != nil {
			log.Warn().Err(err).Str("path", d.path).Msg("failed to extract text")
			continue
		}
		n := 0
		for _, s := range pack(sections, ix.Options.MaxChars) {
			for _, piece := range window(s.Text, ix.Options.MaxChars, ix.Options.Overlap) {
				out = append(out, models.Chunk{Content: piece, Filename: displayName(d.path, s.Title)})
				n++
			}
		}
		log.Debug().Str("path", d.path).Int("sections", len(sections)).Int("chunks", n).Msg("chunked document")
	}
	return out
}

// displayName labels a chunk with its document path and, when the section
// has one, the heading or page it starts at.
func displayName(path, title string) string {
	if title == "" {
		return path
	}
	return path + " § " + title
}

// embed fills in Embedding for every chunk using a bounded worker pool.
func (ix *Indexer) embed(ctx context.Context, chunks []models.Chunk) error {
	numWorkers := ix.Options.Workers
	if numWorkers <= 0 {
		numWorkers = min(runtime.NumCPU(), 8)
	}
	log.Info().Int("workers", numWorkers).Int("chunks", len(chunks)).Msg("embedding chunks")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)
	for i := range chunks {
		g.Go(func() error {
			vec, err := ix.Client.Embed(ctx, chunks[i].Content)
			if err != nil {
				return fmt.Errorf("embed %s chunk %d: %w", chunks[i].Filename, i, err)
			}
			if len(vec) == 0 {
				return fmt.Errorf("embed %s chunk %d: %w", chunks[i].Filename, i, ai.ErrNoEmbedding)
			}
			chunks[i].Embedding = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	dim := len(chunks[0].Embedding)
	for i, c := range chunks {
		if len(c.Embedding) != dim {
			return fmt.Errorf("chunk %d: embedding has %d dimensions, expected %d", i, len(c.Embedding), dim)
		}
	}
	return nil
}

// shouldSkipDir returns true for hidden and tooling directories.
func shouldSkipDir(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if strings.HasPrefix(base, ".") {
		return true
	}
	switch base {
	case "vendor", "node_modules", "__pycache__", "venv", "build", "dist":
		return true
	}
	return false
}

// shouldSkip returns true if the file at path should be skipped.
func shouldSkip(path string) bool {
	p := filepath.ToSlash(strings.ToLower(path))
	for _, dir := range []string{"/.git/", "/vendor/", "/node_modules/", "/.venv/", "/venv/", "/__pycache__/", "/.cache/"} {
		if strings.Contains(p, dir) {
			return true
		}
	}
	return strings.HasPrefix(filepath.Base(p), ".")
}

func rel(root, p string) string {
	r, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(r)
}
