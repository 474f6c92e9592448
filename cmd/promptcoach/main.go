package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/seanblong/promptcoach/internal/ai"
	"github.com/seanblong/promptcoach/internal/analysis"
	"github.com/seanblong/promptcoach/internal/config"
	"github.com/seanblong/promptcoach/internal/embedding"
	"github.com/seanblong/promptcoach/internal/search"
	"github.com/seanblong/promptcoach/internal/store"
	"github.com/seanblong/promptcoach/pkg/models"
)

func main() {
	fs := pflag.NewFlagSet("promptcoach", pflag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print the analysis as JSON")

	cfg, err := config.Load("", fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: promptcoach [flags] [prompt...]  (reads stdin when no prompt is given)")
		cfg.Usage()
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level '%s': %v\n", cfg.LogLevel, err)
		os.Exit(1)
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	prompt, err := readPrompt(fs.Args(), os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		os.Exit(2)
	}

	clientConfig, err := cfg.ClientConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid provider configuration")
	}
	st, err := store.Load(cfg.ChunksPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load chunk store")
	}
	c, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create AI client")
	}

	emb := embedding.NewProvider(c, st.Dim(), embedding.WithTimeout(cfg.Timeout))
	engine := analysis.NewEngine(search.NewService(emb, st), c, cfg.Timeout)
	engine.TopK = cfg.TopK

	res := engine.Analyze(context.Background(), prompt)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Fatal().Err(err).Msg("failed to encode result")
		}
		return
	}
	render(os.Stdout, res)
}

// readPrompt joins the positional arguments, or reads all of r when there
// are none. A blank prompt is an error.
func readPrompt(args []string, r io.Reader) (string, error) {
	prompt := strings.Join(args, " ")
	if len(args) == 0 {
		b, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		prompt = string(b)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("no prompt given")
	}
	return prompt, nil
}

func render(w io.Writer, res models.AnalysisResult) {
	fmt.Fprintf(w, "Prompt: %s\n", res.OriginalPrompt)
	if res.Degraded {
		fmt.Fprintf(w, "(degraded result, source: %s)\n", res.Source)
	}
	fmt.Fprintln(w)

	if res.Kind == models.KindRaw || res.Structured == nil {
		fmt.Fprintln(w, res.Raw)
	} else {
		a := res.Structured
		fmt.Fprintf(w, "Assessment:\n  %s\n\n", a.Assessment)
		fmt.Fprintln(w, "Strengths:")
		for _, s := range a.Strengths {
			fmt.Fprintf(w, "  - %s\n", s)
		}
		fmt.Fprintln(w, "\nWeaknesses:")
		for _, s := range a.Weaknesses {
			fmt.Fprintf(w, "  - %s\n", s)
		}
		fmt.Fprintf(w, "\nRefined prompt:\n  %s\n\n", a.RefinedPrompt)
		fmt.Fprintf(w, "Explanation:\n  %s\n", a.Explanation)
	}

	if len(res.RelevantSections) > 0 {
		fmt.Fprintln(w, "\nRelevant guide sections:")
		for _, s := range res.RelevantSections {
			fmt.Fprintf(w, "  * %s\n", s.Title)
		}
	}
}
