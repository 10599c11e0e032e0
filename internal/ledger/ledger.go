// Package ledger holds the in-session list of workout records and the
// review, edit and finalize state machine around it.
//
// Every operation is safe to call in any state. Operations that do not apply
// in the current state, or that get an out-of-range index, return false and
// change nothing.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/claude/gymwhisper/internal/models"
)

// State is the ledger's interaction state.
type State int

const (
	Editing State = iota
	EditingEntry
	Finalizing
	ConfirmingExport
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case EditingEntry:
		return "editing_entry"
	case Finalizing:
		return "finalizing"
	case ConfirmingExport:
		return "confirming_export"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Warning is a user-facing policy message. It is not an error.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WarningNeedsReview blocks finalize while flagged records remain.
const WarningNeedsReview = "needs_review"

// SessionWriter persists a finalized snapshot.
type SessionWriter interface {
	AppendSession(ctx context.Context, owner string, records []string) error
}

// Ledger is one UI session's record list.
type Ledger struct {
	mu sync.Mutex

	id    string
	owner string

	state      State
	records    []string
	editIndex  int
	editBuffer string
	snapshot   []string

	capture  string
	captures map[string]struct{}

	now func() time.Time
	// touched is the unix-nano time of the last applied mutation. It is read
	// without mu so the registry sweep never waits on a ledger mid-export.
	touched atomic.Int64
}

// New creates an empty ledger in the Editing state.
func New(id, owner string) *Ledger {
	l := &Ledger{id: id, owner: owner, editIndex: -1, now: time.Now}
	l.touch()
	return l
}

// ID returns the ledger id.
func (l *Ledger) ID() string { return l.id }

// Owner returns the identity the ledger belongs to.
func (l *Ledger) Owner() string { return l.owner }

// State returns the current state.
func (l *Ledger) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Touched returns the time of the last applied mutation.
func (l *Ledger) Touched() time.Time {
	return time.Unix(0, l.touched.Load())
}

// Records returns a copy of the live records.
func (l *Ledger) Records() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.records...)
}

// Len returns the number of live records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *Ledger) touch() { l.touched.Store(l.now().UnixNano()) }

func (l *Ledger) validIndex(i int) bool { return i >= 0 && i < len(l.records) }

// Append adds records to the end. It is legal in every state; while
// finalizing, new records go to the live list, not the frozen snapshot.
func (l *Ledger) Append(records ...string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(records)
}

func (l *Ledger) appendLocked(records []string) bool {
	if len(records) == 0 {
		return false
	}
	l.records = append(l.records, records...)
	l.touch()
	return true
}

// BeginCapture starts a new capture and makes it current. Results for older
// captures are then stale.
func (l *Ledger) BeginCapture() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.capture = uuid.NewString()
	if l.captures == nil {
		l.captures = make(map[string]struct{})
	}
	l.captures[l.capture] = struct{}{}
	l.touch()
	return l.capture
}

// CurrentCapture returns the id of the latest capture, or "".
func (l *Ledger) CurrentCapture() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.capture
}

// IssuedCapture reports whether BeginCapture ever returned captureID.
func (l *Ledger) IssuedCapture(captureID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.captures[captureID]
	return ok
}

// AppendCapture appends records produced by captureID. The currency check
// and the append happen under one lock.
func (l *Ledger) AppendCapture(captureID string, onlyCurrent bool, records ...string) (appended, current bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current = captureID != "" && captureID == l.capture
	if onlyCurrent && !current {
		return false, current
	}
	return l.appendLocked(records), current
}

// StartEdit opens record i for editing and seeds the buffer with its text.
// Only one edit may be open at a time.
func (l *Ledger) StartEdit(i int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Editing || !l.validIndex(i) {
		return false
	}
	l.state = EditingEntry
	l.editIndex = i
	l.editBuffer = l.records[i]
	l.touch()
	return true
}

// SetEditBuffer replaces the open edit's buffer.
func (l *Ledger) SetEditBuffer(text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != EditingEntry {
		return false
	}
	l.editBuffer = text
	l.touch()
	return true
}

// SaveEdit replaces the edited record with text, trimmed. Text that trims to
// empty is rejected and the edit stays open.
func (l *Ledger) SaveEdit(text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked(text)
}

// SaveEditBuffer saves the current buffer.
func (l *Ledger) SaveEditBuffer() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked(l.editBuffer)
}

func (l *Ledger) saveLocked(text string) bool {
	if l.state != EditingEntry {
		return false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	l.records[l.editIndex] = text
	l.closeEditLocked()
	l.touch()
	return true
}

// CancelEdit discards the open edit.
func (l *Ledger) CancelEdit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != EditingEntry {
		return false
	}
	l.closeEditLocked()
	l.touch()
	return true
}

func (l *Ledger) closeEditLocked() {
	l.state = Editing
	l.editIndex = -1
	l.editBuffer = ""
}

// RemoveEntry deletes record i in any state. Removing the record under edit
// cancels the edit; removing one before it shifts the edit index.
func (l *Ledger) RemoveEntry(i int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.validIndex(i) {
		return false
	}
	l.records = append(l.records[:i], l.records[i+1:]...)
	if l.state == EditingEntry {
		switch {
		case i == l.editIndex:
			l.closeEditLocked()
		case i < l.editIndex:
			l.editIndex--
		}
	}
	l.touch()
	return true
}

// ApproveEntry clears the review flag on record i. It applies only in the
// Editing state and only to a flagged record.
func (l *Ledger) ApproveEntry(i int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Editing || !l.validIndex(i) {
		return false
	}
	approved := models.ApproveRaw(l.records[i])
	if approved == l.records[i] {
		return false
	}
	l.records[i] = approved
	l.touch()
	return true
}

// RequestFinalize freezes the records into a snapshot and moves to
// Finalizing. It is blocked with a warning while any record still contains
// the review flag. An empty ledger may be finalized.
func (l *Ledger) RequestFinalize() (bool, *Warning) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Editing {
		return false, nil
	}
	if flagged := l.flaggedLocked(); flagged > 0 {
		return false, &Warning{
			Code:    WarningNeedsReview,
			Message: fmt.Sprintf("Please review the %d flagged entr%s before finalizing.", flagged, plural(flagged, "y", "ies")),
		}
	}
	l.snapshot = append([]string{}, l.records...)
	l.state = Finalizing
	l.touch()
	return true, nil
}

// CancelFinalize drops the snapshot and returns to Editing.
func (l *Ledger) CancelFinalize() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Finalizing {
		return false
	}
	l.snapshot = nil
	l.state = Editing
	l.touch()
	return true
}

// RequestExportConfirmation asks for confirmation of the irreversible export.
func (l *Ledger) RequestExportConfirmation() bool {
	return l.transition(Finalizing, ConfirmingExport)
}

// CancelExportConfirmation goes back to the read-only snapshot.
func (l *Ledger) CancelExportConfirmation() bool {
	return l.transition(ConfirmingExport, Finalizing)
}

func (l *Ledger) transition(from, to State) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != from {
		return false
	}
	l.state = to
	l.touch()
	return true
}

// ConfirmExport writes the snapshot through w and then clears the whole
// ledger. An empty snapshot writes nothing. If the write fails the ledger is
// kept, the state returns to Finalizing and the error is returned.
func (l *Ledger) ConfirmExport(ctx context.Context, w SessionWriter) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != ConfirmingExport {
		return false, nil
	}
	if len(l.snapshot) > 0 {
		if err := w.AppendSession(ctx, l.owner, l.snapshot); err != nil {
			l.state = Finalizing
			l.touch()
			return false, fmt.Errorf("saving session for ledger %s: %w", l.id, err)
		}
	}
	l.records = nil
	l.snapshot = nil
	l.state = Editing
	l.touch()
	return true, nil
}

func (l *Ledger) flaggedLocked() int {
	n := 0
	for _, r := range l.records {
		if models.RawNeedsReview(r) {
			n++
		}
	}
	return n
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
