// Command sift-server exposes the pipeline over HTTP: trigger runs, inspect
// jobs, flip preferences, and read stored digests.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"sift/internal/api"
	"sift/internal/config"
	"sift/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "sift.toml", "path to config file")
	dataDir := flag.String("data-dir", "./data", "path to data directory")
	flag.Parse()

	// Load configuration (auto-creates default if missing).
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cleanup := config.SetupLogging(cfg.Log)
	defer cleanup()

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

	router := api.NewRouter(runner, pipeline.NewJobs())

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("starting server", "addr", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
