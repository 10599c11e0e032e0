package mcp

import (
	"context"

	"github.com/claude/gymwhisper/internal/models"
	"github.com/claude/gymwhisper/internal/storage"
)

// DataSource abstracts the history store for MCP tools. Local (in-process)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	Sessions(ctx context.Context, owner string) ([]models.WorkoutSession, error)
}

// Local reads history straight from the repository.
type Local struct {
	repo *storage.HistoryRepository
}

// Compile-time check: Local satisfies DataSource.
var _ DataSource = (*Local)(nil)

// NewLocal creates a DataSource over repo.
func NewLocal(repo *storage.HistoryRepository) *Local {
	return &Local{repo: repo}
}

// Sessions returns owner's finalized sessions. Unreadable history is already
// reported as empty by the repository.
func (l *Local) Sessions(ctx context.Context, owner string) ([]models.WorkoutSession, error) {
	return l.repo.LoadSessions(ctx, owner), nil
}
