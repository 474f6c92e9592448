package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/seanblong/promptcoach/internal/config"
	"github.com/seanblong/promptcoach/internal/indexer"
)

func main() {
	fs := pflag.NewFlagSet("promptcoach-indexer", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level '%s': %v\n", cfg.LogLevel, err)
		os.Exit(1)
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	clientConfig, err := cfg.ClientConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid provider configuration")
	}
	log.Info().Str("provider", string(clientConfig.Provider)).Str("guide_root", cfg.GuideRoot).Msg("indexing guide")

	ix, err := indexer.New(cfg.GuideRoot, cfg.ChunksPath, clientConfig, indexer.Options{
		MaxChars: cfg.ChunkMaxChars,
		Overlap:  cfg.ChunkOverlap,
		Workers:  cfg.Workers,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create indexer")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := ix.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("indexing failed")
	}
	log.Info().Str("out", cfg.ChunksPath).Dur("dur", time.Since(start)).Msg("indexing complete")
}
