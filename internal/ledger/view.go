package ledger

import "github.com/claude/gymwhisper/internal/models"

// Entry is one ledger row as rendered.
type Entry struct {
	Index  int                     `json:"index"`
	Raw    string                  `json:"raw"`
	Record models.WorkoutSetRecord `json:"record"`
}

// View is a point-in-time copy of the ledger for rendering.
type View struct {
	ID             string  `json:"id"`
	State          string  `json:"state"`
	Entries        []Entry `json:"entries"`
	EditIndex      *int    `json:"edit_index,omitempty"`
	EditBuffer     *string `json:"edit_buffer,omitempty"`
	Snapshot       []Entry `json:"snapshot,omitempty"`
	NeedsReview    int     `json:"needs_review"`
	CanFinalize    bool    `json:"can_finalize"`
	CurrentCapture string  `json:"current_capture,omitempty"`
	Notice         string  `json:"notice,omitempty"`
}

// NoDataNotice is shown when an empty ledger is finalized.
const NoDataNotice = "No data to finalize."

// Snapshot returns a View of the ledger.
func (l *Ledger) Snapshot() View {
	l.mu.Lock()
	defer l.mu.Unlock()

	flagged := l.flaggedLocked()
	v := View{
		ID:             l.id,
		State:          l.state.String(),
		Entries:        entries(l.records),
		NeedsReview:    flagged,
		CanFinalize:    l.state == Editing && flagged == 0,
		CurrentCapture: l.capture,
	}
	switch l.state {
	case EditingEntry:
		idx, buf := l.editIndex, l.editBuffer
		v.EditIndex = &idx
		v.EditBuffer = &buf
	case Finalizing, ConfirmingExport:
		v.Snapshot = entries(l.snapshot)
		if len(l.snapshot) == 0 {
			v.Notice = NoDataNotice
		}
	}
	return v
}

func entries(records []string) []Entry {
	out := make([]Entry, len(records))
	for i, r := range records {
		out[i] = Entry{Index: i, Raw: r, Record: models.ParseRecord(r)}
	}
	return out
}
