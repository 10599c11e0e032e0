package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/gymwhisper/internal/models"
)

// HistoryKey is the durable key holding finalized sessions.
const HistoryKey = "gymWhisperData"

// HistoryRepository is the append-only session log under HistoryKey.
//
// AppendSession is a read-modify-write of the whole value with no locking or
// versioning. Two concurrent appends for the same owner can both read the
// same old value, and the later write then drops the earlier session.
type HistoryRepository struct {
	kv  KV
	loc *time.Location
	now func() time.Time
	log *slog.Logger
}

// NewHistoryRepository creates a repository stamping sessions in loc.
func NewHistoryRepository(kv KV, loc *time.Location, log *slog.Logger) *HistoryRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &HistoryRepository{kv: kv, loc: loc, now: time.Now, log: log}
}

// AppendSession appends [finalizedAt, records] to owner's history. An absent
// or corrupt stored value counts as empty. Existing entries, including ones
// in older layouts, are written back unchanged. A read failure aborts the
// append so the stored history is never replaced.
func (h *HistoryRepository) AppendSession(ctx context.Context, owner string, records []string) error {
	session := models.WorkoutSession{
		FinalizedAt: h.now().In(h.loc).Format(time.DateTime),
		Records:     records,
	}
	return h.append(ctx, owner, session)
}

// ImportSessions appends already-stamped sessions in one write.
func (h *HistoryRepository) ImportSessions(ctx context.Context, owner string, sessions []models.WorkoutSession) error {
	if len(sessions) == 0 {
		return nil
	}
	return h.append(ctx, owner, sessions...)
}

func (h *HistoryRepository) append(ctx context.Context, owner string, sessions ...models.WorkoutSession) error {
	entries, err := h.readEntries(ctx, owner)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encoding session: %w", err)
		}
		entries = append(entries, data)
	}

	value, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	if err := h.kv.Put(ctx, owner, HistoryKey, value); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	return nil
}

// readEntries returns the raw stored entries. Only a store failure is an
// error; a corrupt value is logged and treated as empty.
func (h *HistoryRepository) readEntries(ctx context.Context, owner string) ([]json.RawMessage, error) {
	data, ok, err := h.kv.Get(ctx, owner, HistoryKey)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	if !ok || len(data) == 0 {
		return nil, nil
	}
	entries, err := models.StoredEntries(data)
	if err != nil {
		h.log.Warn("stored history is corrupt, starting fresh", "owner", owner, "error", err)
		return nil, nil
	}
	return entries, nil
}

// LoadSessions returns owner's sessions in stored order. Legacy batches
// become sessions without a timestamp. Failures are logged and yield an
// empty result.
func (h *HistoryRepository) LoadSessions(ctx context.Context, owner string) []models.WorkoutSession {
	data, ok, err := h.kv.Get(ctx, owner, HistoryKey)
	if err != nil {
		h.log.Warn("loading history failed", "owner", owner, "error", err)
		return []models.WorkoutSession{}
	}
	if !ok {
		return []models.WorkoutSession{}
	}
	sessions, err := models.ParseStoredHistory(data)
	if err != nil {
		h.log.Warn("stored history is corrupt", "owner", owner, "error", err)
		return []models.WorkoutSession{}
	}
	if sessions == nil {
		return []models.WorkoutSession{}
	}
	return sessions
}

// LoadHistory returns every stored record, flattened one level, preserving
// session order and order within each session.
func (h *HistoryRepository) LoadHistory(ctx context.Context, owner string) []string {
	records := models.FlattenSessions(h.LoadSessions(ctx, owner))
	if records == nil {
		return []string{}
	}
	return records
}
