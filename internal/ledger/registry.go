package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/gymwhisper/internal/observe"
)

// ErrUnknownLedger is returned for ids that do not exist or belong to
// another owner.
var ErrUnknownLedger = errors.New("unknown ledger")

// Registry maps UI session ids to ledgers. Each browser tab creates its own.
type Registry struct {
	mu      sync.Mutex
	ledgers map[string]*Ledger

	ttl     time.Duration
	now     func() time.Time
	metrics *observe.Metrics
	log     *slog.Logger
}

// NewRegistry creates a registry that evicts ledgers idle for longer than
// ttl. A zero ttl disables eviction. metrics may be nil.
func NewRegistry(ttl time.Duration, metrics *observe.Metrics, log *slog.Logger) *Registry {
	return &Registry{
		ledgers: make(map[string]*Ledger),
		ttl:     ttl,
		now:     time.Now,
		metrics: metrics,
		log:     log,
	}
}

// Create makes a new empty ledger for owner.
func (r *Registry) Create(owner string) *Ledger {
	l := New(uuid.NewString(), owner)
	l.now = r.now
	l.touch()

	r.mu.Lock()
	r.ledgers[l.id] = l
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ActiveLedgers.Add(context.Background(), 1)
	}
	r.log.Debug("ledger created", "ledger", l.id, "owner", owner)
	return l
}

// Get returns owner's ledger with the given id.
func (r *Registry) Get(id, owner string) (*Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ledgers[id]
	if !ok || l.owner != owner {
		return nil, ErrUnknownLedger
	}
	return l, nil
}

// Delete removes owner's ledger with the given id. Unsaved records are lost.
func (r *Registry) Delete(id, owner string) error {
	r.mu.Lock()
	l, ok := r.ledgers[id]
	if !ok || l.owner != owner {
		r.mu.Unlock()
		return ErrUnknownLedger
	}
	delete(r.ledgers, id)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ActiveLedgers.Add(context.Background(), -1)
	}
	return nil
}

// Len returns the number of live ledgers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ledgers)
}

// Sweep evicts ledgers whose last mutation is older than the ttl and
// returns how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-r.ttl)

	r.mu.Lock()
	var evicted []string
	for id, l := range r.ledgers {
		if l.Touched().Before(cutoff) {
			delete(r.ledgers, id)
			evicted = append(evicted, id)
		}
	}
	r.mu.Unlock()

	if len(evicted) > 0 {
		if r.metrics != nil {
			r.metrics.ActiveLedgers.Add(context.Background(), -int64(len(evicted)))
		}
		r.log.Info("evicted idle ledgers", "count", len(evicted), "ttl", r.ttl)
	}
	return len(evicted)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			r.Sweep(t)
		}
	}
}
