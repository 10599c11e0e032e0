package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"tailscale.com/tsnet"

	gymwhisper "github.com/claude/gymwhisper"
	"github.com/claude/gymwhisper/internal/config"
	"github.com/claude/gymwhisper/internal/extract"
	"github.com/claude/gymwhisper/internal/ingest"
	"github.com/claude/gymwhisper/internal/ledger"
	"github.com/claude/gymwhisper/internal/mcp"
	"github.com/claude/gymwhisper/internal/observe"
	"github.com/claude/gymwhisper/internal/server"
	"github.com/claude/gymwhisper/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("GymWhisper starting", "version", Version)

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Error("failed to load env file", "path", *envPath, "error", err)
		os.Exit(1)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Open store (runs migrations for postgres)
	store, err := storage.Open(ctx, cfg.Storage, "migrations", log)
	if err != nil {
		log.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Metrics
	provider, err := observe.InitProvider(observe.ProviderConfig{ServiceVersion: Version})
	if err != nil {
		log.Error("metrics init failed", "error", err)
		os.Exit(1)
	}
	metrics, err := observe.NewMetrics(provider.MeterProvider())
	if err != nil {
		log.Error("metrics init failed", "error", err)
		os.Exit(1)
	}

	// Extraction
	backend, err := extract.NewBackend(ctx, extract.Config{
		Provider: cfg.Extraction.Provider,
		APIKey:   cfg.Extraction.APIKey,
		Model:    cfg.Extraction.Model,
		BaseURL:  cfg.Extraction.BaseURL,
	})
	if err != nil {
		log.Error("extraction backend failed", "error", err)
		os.Exit(1)
	}
	extractor := extract.NewService(backend, metrics, log)
	log.Info("extraction ready", "provider", extractor.Provider())

	// Capture pipeline and ledgers
	loc, err := ingest.LoadLocation(cfg.Ledger.TimeZone)
	if err != nil {
		log.Error("bad ledger timezone", "error", err)
		os.Exit(1)
	}
	policy, err := ingest.ParseStalePolicy(cfg.Ledger.StalePolicy)
	if err != nil {
		log.Error("bad stale policy", "error", err)
		os.Exit(1)
	}
	pipeline := ingest.NewPipeline(extractor, ingest.PipelineConfig{
		Location: loc,
		Policy:   policy,
		Timeout:  cfg.Extraction.Timeout,
		Metrics:  metrics,
	}, log)

	registry := ledger.NewRegistry(cfg.Ledger.IdleTTL, metrics, log)
	go registry.Run(ctx, sweepInterval(cfg.Ledger.IdleTTL))

	history := storage.NewHistoryRepository(store, loc, log)
	prefs := storage.NewPreferencesRepository(store, log)

	mcpServer := mcp.New(mcp.NewLocal(history), Version, log)

	srv := server.New(server.Deps{
		Registry:       registry,
		Pipeline:       pipeline,
		Extract:        extractor,
		History:        history,
		Preferences:    prefs,
		Store:          store,
		Metrics:        metrics,
		MetricsHandler: provider.Handler,
		MCP:            mcp.NewHTTPHandler(mcpServer, server.Owner),
	}, cfg.Auth.APIKey, log)

	// Serve embedded frontend
	webDist, err := fs.Sub(gymwhisper.WebFS, "web/dist")
	if err != nil {
		log.Error("failed to load embedded frontend", "error", err)
		os.Exit(1)
	}
	srv.SetFrontend(webDist)

	// Start server: tsnet or plain HTTP
	var listener net.Listener

	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown error", "error", err)
	}
	log.Info("server stopped")
}

// sweepInterval checks for idle ledgers a few times per TTL, at most once a
// minute.
func sweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return max(ttl/4, time.Minute)
}
