package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/seanblong/promptcoach/internal/ai"
	"github.com/seanblong/promptcoach/internal/analysis"
	"github.com/seanblong/promptcoach/internal/config"
	"github.com/seanblong/promptcoach/internal/embedding"
	"github.com/seanblong/promptcoach/internal/search"
	"github.com/seanblong/promptcoach/internal/store"
	"github.com/seanblong/promptcoach/pkg/models"
)

const maxPromptBytes = 64 << 10

type Simple struct {
	Filename   string  `json:"filename"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

func output(res []models.ScoredChunk) (out []Simple) {
	out = make([]Simple, 0, len(res))
	for _, r := range res {
		score := r.Similarity
		if math.IsNaN(score) || math.IsInf(score, 0) {
			score = 0
		}
		out = append(out, Simple{
			Filename:   r.Chunk.Filename,
			Content:    r.Chunk.Content,
			Similarity: score,
		})
	}
	return out
}

type analyzeRequest struct {
	Prompt string `json:"prompt"`
}

// Analyzer is the part of the analysis engine the server needs.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string) models.AnalysisResult
}

// Searcher is the part of the search service the server needs.
type Searcher interface {
	TopK(ctx context.Context, q string, k int) search.Retrieval
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to encode response")
	}
}

func newMux(engine Analyzer, svc Searcher, timeout time.Duration) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	mux.HandleFunc("/analyze", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		start := time.Now()

		var req analyzeRequest
		dec := json.NewDecoder(io.LimitReader(r.Body, maxPromptBytes))
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			http.Error(w, "missing prompt", http.StatusBadRequest)
			return
		}

		// embedding and chat each get the full timeout
		ctx, cancel := context.WithTimeout(r.Context(), 2*timeout)
		defer cancel()
		res := engine.Analyze(ctx, req.Prompt)

		writeJSON(w, r, http.StatusOK, res)
		hlog.FromRequest(r).Info().
			Str("path", "/analyze").
			Str("source", string(res.Source)).
			Bool("degraded", res.Degraded).
			Dur("dur", time.Since(start)).
			Msg("served")
	})

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		q := r.URL.Query().Get("q")
		k := search.DefaultK
		if v := r.URL.Query().Get("k"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				k = n
			}
		}
		if strings.TrimSpace(q) == "" {
			http.Error(w, "missing query parameter q", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		res := svc.TopK(ctx, q, k)

		if res.Degraded {
			w.Header().Set("X-Degraded", "true")
		}
		writeJSON(w, r, http.StatusOK, output(res.Chunks))
		hlog.FromRequest(r).Info().Str("path", "/search").Str("q", q).Int("k", k).Dur("dur", time.Since(start)).Msg("served")
	})
	return mux
}

func main() {
	// Create flagset for configuration
	fs := pflag.NewFlagSet("promptcoach-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level '%s': %v\n", cfg.LogLevel, err)
		os.Exit(1)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	zlog.Logger = logger
	zerolog.SetGlobalLevel(level)
	logger.Info().Str("provider", cfg.Provider).Str("log_level", cfg.LogLevel).Msg("starting promptcoach api")

	clientConfig, err := cfg.ClientConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid provider configuration")
	}

	st, err := store.Load(cfg.ChunksPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load chunk store")
	}

	c, err := ai.NewClient(clientConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create AI client")
	}
	if !ai.IsLive(c) {
		logger.Warn().Msg("no provider credential, serving placeholder analyses and random retrieval")
	} else if c.Dim() != st.Dim() {
		logger.Warn().Int("client_dim", c.Dim()).Int("store_dim", st.Dim()).Msg("embedding dimensions differ, queries will fall back to random vectors")
	}
	logger.Info().Int("chunks", st.Len()).Int("embedding_dim", st.Dim()).Msg("chunk store loaded")

	emb := embedding.NewProvider(c, st.Dim(), embedding.WithTimeout(cfg.Timeout))
	svc := search.NewService(emb, st)
	engine := analysis.NewEngine(svc, c, cfg.Timeout)
	engine.TopK = cfg.TopK

	mux := newMux(engine, svc, cfg.Timeout)
	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
