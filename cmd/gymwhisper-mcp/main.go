// Command gymwhisper-mcp serves the workout history to an MCP client over
// stdio. With -url it reads from a running GymWhisper server (typically over
// the tailnet); otherwise it opens the configured store directly.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/claude/gymwhisper/internal/config"
	"github.com/claude/gymwhisper/internal/ingest"
	"github.com/claude/gymwhisper/internal/mcp"
	"github.com/claude/gymwhisper/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (local mode)")
	baseURL := flag.String("url", "", "GymWhisper server URL (remote mode)")
	apiKey := flag.String("api-key", os.Getenv("GYMWHISPER_API_KEY"), "API key for the remote server")
	owner := flag.String("owner", mcp.DefaultOwner, "history owner (local mode)")
	flag.Parse()

	// stdout carries the protocol; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds mcp.DataSource
	if *baseURL != "" {
		ds = mcp.NewHTTPClient(*baseURL, *apiKey)
		log.Info("remote mode", "url", *baseURL)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		store, err := storage.Open(context.Background(), cfg.Storage, "migrations", log)
		if err != nil {
			log.Error("failed to open store", "error", err)
			os.Exit(1)
		}
		defer store.Close()

		loc, err := ingest.LoadLocation(cfg.Ledger.TimeZone)
		if err != nil {
			log.Error("bad ledger timezone", "error", err)
			os.Exit(1)
		}
		ds = mcp.NewLocal(storage.NewHistoryRepository(store, loc, log))
		log.Info("local mode", "owner", *owner)
	}

	s := mcp.New(ds, Version, log)
	if err := mcp.ServeStdio(s, *owner); err != nil {
		log.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
