package importer

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/claude/gymwhisper/internal/models"
	"github.com/claude/gymwhisper/internal/storage"
)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesErrored   int

	SessionsImported   int
	SessionsDuplicated int
	RecordsImported    int

	PreferencesApplied int
	PreferencesSkipped int
}

// Importer loads browser storage dumps into the durable store. A dump is
// either the bare gymWhisperData array or a whole localStorage object, plain
// or gzipped.
type Importer struct {
	history *storage.HistoryRepository
	prefs   *storage.PreferencesRepository
	log     *slog.Logger
	dryRun  bool
	stats   Stats

	seen map[string]bool
}

// New creates a new Importer. prefs may be nil to import history only.
func New(history *storage.HistoryRepository, prefs *storage.PreferencesRepository, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{history: history, prefs: prefs, log: log, dryRun: dryRun}
}

// Import reads path, a dump file or a directory of them, into owner's
// history. Sessions already stored for owner, or seen earlier in the run,
// are counted as duplicates and skipped. Unreadable files are logged and
// counted; store failures abort the import.
func (imp *Importer) Import(ctx context.Context, owner, path string) (*Stats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return &imp.stats, err
	}

	imp.seen = map[string]bool{}
	for _, s := range imp.history.LoadSessions(ctx, owner) {
		imp.seen[sessionKey(s)] = true
	}

	files := []string{path}
	if info.IsDir() {
		if files, err = dumpFiles(path); err != nil {
			return &imp.stats, err
		}
		imp.stats.FilesSkipped = countEntries(path) - len(files)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &imp.stats, err
		}
		if err := imp.importFile(ctx, owner, f); err != nil {
			return &imp.stats, fmt.Errorf("importing %s: %w", filepath.Base(f), err)
		}
	}
	return &imp.stats, nil
}

func (imp *Importer) importFile(ctx context.Context, owner, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		imp.log.Warn("reading dump failed", "file", path, "error", err)
		imp.stats.FilesErrored++
		return nil
	}
	data, err := Decompress(raw)
	if err != nil {
		imp.log.Warn("decompressing dump failed", "file", path, "error", err)
		imp.stats.FilesErrored++
		return nil
	}
	d, err := ParseDump(data)
	if err != nil {
		imp.log.Warn("parsing dump failed", "file", path, "error", err)
		imp.stats.FilesErrored++
		return nil
	}
	imp.stats.FilesProcessed++

	var fresh []models.WorkoutSession
	for _, s := range d.Sessions {
		key := sessionKey(s)
		if imp.seen[key] {
			imp.stats.SessionsDuplicated++
			continue
		}
		imp.seen[key] = true
		fresh = append(fresh, s)
		imp.stats.RecordsImported += len(s.Records)
	}
	imp.stats.SessionsImported += len(fresh)
	imp.log.Info("dump parsed", "file", filepath.Base(path), "sessions", len(d.Sessions), "new", len(fresh))

	if !imp.dryRun {
		if err := imp.history.ImportSessions(ctx, owner, fresh); err != nil {
			return err
		}
	}
	return imp.applyPreferences(ctx, owner, d)
}

func (imp *Importer) applyPreferences(ctx context.Context, owner string, d *Dump) error {
	if imp.prefs == nil {
		return nil
	}
	if d.DarkMode != nil {
		if !imp.dryRun {
			if err := imp.prefs.SetDarkMode(ctx, owner, *d.DarkMode); err != nil {
				return err
			}
		}
		imp.stats.PreferencesApplied++
	}
	if d.Language != "" {
		if !models.ValidLanguage(d.Language) {
			imp.log.Warn("skipping unsupported language", "language", d.Language)
			imp.stats.PreferencesSkipped++
			return nil
		}
		if !imp.dryRun {
			if err := imp.prefs.SetLanguage(ctx, owner, d.Language); err != nil {
				return err
			}
		}
		imp.stats.PreferencesApplied++
	}
	return nil
}

// Dump is the decoded content of one storage dump.
type Dump struct {
	Sessions []models.WorkoutSession
	DarkMode *bool
	Language string
}

// ParseDump decodes a dump. A JSON array, or an object holding a "workouts"
// array, is taken as the gymWhisperData value itself. Any other JSON object is taken as a localStorage snapshot, whose
// values may be strings holding JSON (as the browser stores them) or
// already-decoded JSON.
func ParseDump(data []byte) (*Dump, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty dump")
	}

	switch data[0] {
	case '[':
		sessions, err := models.ParseStoredHistory(data)
		if err != nil {
			return nil, err
		}
		return &Dump{Sessions: sessions}, nil
	case '{':
	default:
		return nil, errors.New("dump is neither an array nor an object")
	}

	var items map[string]json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decoding dump: %w", err)
	}

	if _, ok := items["workouts"]; ok {
		if _, ok := items[storage.HistoryKey]; !ok {
			sessions, err := models.ParseStoredHistory(data)
			if err != nil {
				return nil, err
			}
			return &Dump{Sessions: sessions}, nil
		}
	}

	d := &Dump{}
	if v, ok := items[storage.HistoryKey]; ok {
		sessions, err := models.ParseStoredHistory(unwrap(v))
		if err != nil {
			return nil, err
		}
		d.Sessions = sessions
	}
	if v, ok := items[storage.DarkModeKey]; ok {
		var dark bool
		if err := json.Unmarshal(unwrap(v), &dark); err == nil {
			d.DarkMode = &dark
		}
	}
	if v, ok := items[storage.LanguageKey]; ok {
		inner := unwrap(v)
		var lang string
		if err := json.Unmarshal(inner, &lang); err != nil {
			lang = string(inner)
		}
		d.Language = strings.TrimSpace(lang)
	}
	return d, nil
}

// unwrap returns the contents of a JSON string value, or v unchanged when
// it is not a string.
func unwrap(v json.RawMessage) []byte {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return v
	}
	return []byte(s)
}

// Decompress returns data gunzipped when it starts with the gzip magic
// bytes, and unchanged otherwise.
func Decompress(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip header: %w", err)
	}
	defer func() { _ = zr.Close() }()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gzip body: %w", err)
	}
	return out, nil
}

// dumpFiles lists the .json and .json.gz files in dir, sorted by name.
func dumpFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".json.gz") {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

func countEntries(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}

func sessionKey(s models.WorkoutSession) string {
	return s.FinalizedAt + "\x00" + strings.Join(s.Records, "\n")
}
