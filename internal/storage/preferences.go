package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/claude/gymwhisper/internal/models"
)

// Preference keys, stored next to HistoryKey.
const (
	DarkModeKey = "darkMode"
	LanguageKey = "appLanguage"
)

// ErrInvalidPreference is returned for values the UI cannot use.
var ErrInvalidPreference = errors.New("invalid preference")

// Preferences are the UI settings kept in the durable store.
type Preferences struct {
	DarkMode bool   `json:"dark_mode"`
	Language string `json:"language"`
}

// DefaultPreferences is light mode, English.
func DefaultPreferences() Preferences {
	return Preferences{DarkMode: false, Language: models.LanguageEnglish}
}

// PreferencesRepository reads and writes Preferences.
type PreferencesRepository struct {
	kv  KV
	log *slog.Logger
}

// NewPreferencesRepository creates a preferences repository.
func NewPreferencesRepository(kv KV, log *slog.Logger) *PreferencesRepository {
	return &PreferencesRepository{kv: kv, log: log}
}

// Get returns owner's preferences. Absent or corrupt values fall back to the
// defaults; only store failures are errors.
func (p *PreferencesRepository) Get(ctx context.Context, owner string) (Preferences, error) {
	prefs := DefaultPreferences()

	if data, ok, err := p.kv.Get(ctx, owner, DarkModeKey); err != nil {
		return prefs, fmt.Errorf("loading %s: %w", DarkModeKey, err)
	} else if ok {
		var dark bool
		if err := json.Unmarshal(data, &dark); err != nil {
			p.log.Warn("ignoring corrupt preference", "owner", owner, "key", DarkModeKey, "error", err)
		} else {
			prefs.DarkMode = dark
		}
	}

	if data, ok, err := p.kv.Get(ctx, owner, LanguageKey); err != nil {
		return prefs, fmt.Errorf("loading %s: %w", LanguageKey, err)
	} else if ok {
		var lang string
		if err := json.Unmarshal(data, &lang); err != nil || !models.ValidLanguage(lang) {
			p.log.Warn("ignoring corrupt preference", "owner", owner, "key", LanguageKey, "value", string(data))
		} else {
			prefs.Language = lang
		}
	}

	return prefs, nil
}

// SetDarkMode stores the dark mode flag.
func (p *PreferencesRepository) SetDarkMode(ctx context.Context, owner string, dark bool) error {
	data, _ := json.Marshal(dark)
	if err := p.kv.Put(ctx, owner, DarkModeKey, data); err != nil {
		return fmt.Errorf("saving %s: %w", DarkModeKey, err)
	}
	return nil
}

// SetLanguage stores the UI language. Only supported tags are accepted.
func (p *PreferencesRepository) SetLanguage(ctx context.Context, owner, lang string) error {
	if !models.ValidLanguage(lang) {
		return fmt.Errorf("%w: unsupported language %q", ErrInvalidPreference, lang)
	}
	data, _ := json.Marshal(lang)
	if err := p.kv.Put(ctx, owner, LanguageKey, data); err != nil {
		return fmt.Errorf("saving %s: %w", LanguageKey, err)
	}
	return nil
}
