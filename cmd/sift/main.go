// Command sift executes one pipeline run: ingest from the enabled sources,
// then generate and deliver the digest. Use the skip flags to run only one
// of the two phases.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"sift/internal/config"
	"sift/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "sift.toml", "path to config file")
	dataDir := flag.String("data-dir", "./data", "path to data directory")
	skipIngest := flag.Bool("skip-ingest", false, "generate a digest from already-stored items without fetching")
	skipGenerate := flag.Bool("skip-generate", false, "ingest without generating a digest")
	flag.Parse()

	// Load configuration (auto-creates default if missing).
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cleanup := config.SetupLogging(cfg.Log)
	defer cleanup()

	if *skipIngest && *skipGenerate {
		slog.Error("both phases skipped, nothing to do")
		os.Exit(1)
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		slog.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}

	runner, err := pipeline.NewFromConfig(cfg, *dataDir)
	if err != nil {
		slog.Error("failed to initialize pipeline", "error", err)
		os.Exit(1)
	}
	defer runner.Close()

	ctx := context.Background()
	switch {
	case *skipIngest:
		err = runner.RunGeneration(ctx)
	case *skipGenerate:
		err = runner.RunIngestion(ctx)
	default:
		err = runner.Run(ctx)
	}
	if err != nil {
		slog.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}
}
