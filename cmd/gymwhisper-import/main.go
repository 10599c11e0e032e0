package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/gymwhisper/internal/config"
	"github.com/claude/gymwhisper/internal/importer"
	"github.com/claude/gymwhisper/internal/ingest"
	"github.com/claude/gymwhisper/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dumpPath := flag.String("path", "", "path to a storage dump (.json or .json.gz) or a directory of them (required)")
	owner := flag.String("owner", "local", "identity to import the history for")
	noPrefs := flag.Bool("no-preferences", false, "import history only, leave preferences alone")
	dryRun := flag.Bool("dry-run", false, "report counts without writing to the store")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *dumpPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: gymwhisper-import -config config.yaml -path dump.json [-owner login] [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if *dryRun {
		log.Info("DRY RUN mode: nothing will be written to the store")
	}

	store, err := storage.Open(ctx, cfg.Storage, "migrations", log)
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
	history := storage.NewHistoryRepository(store, loc, log)
	var prefs *storage.PreferencesRepository
	if !*noPrefs {
		prefs = storage.NewPreferencesRepository(store, log)
	}

	// Run import
	imp := importer.New(history, prefs, log, *dryRun)
	stats, err := imp.Import(ctx, *owner, *dumpPath)
	if err != nil {
		log.Error("import failed", "error", err)
		printStats(log, stats)
		os.Exit(1)
	}

	printStats(log, stats)
	log.Info("import complete", "owner", *owner)
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"files_processed", stats.FilesProcessed,
		"files_skipped", stats.FilesSkipped,
		"files_errored", stats.FilesErrored,
		"sessions_imported", stats.SessionsImported,
		"sessions_duplicated", stats.SessionsDuplicated,
		"records_imported", stats.RecordsImported,
		"preferences_applied", stats.PreferencesApplied,
		"preferences_skipped", stats.PreferencesSkipped,
	)
}
