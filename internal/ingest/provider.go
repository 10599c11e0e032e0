package ingest

import "context"

// Extractor turns a spoken transcript into the raw extraction text:
// semicolon-separated "name,reps,weight[,NeedsReview]" segments.
type Extractor interface {
	Extract(ctx context.Context, text, language string) (string, error)
}

// Sink receives normalized records. The ledger implements it.
type Sink interface {
	// IssuedCapture reports whether captureID was ever handed out for this
	// sink, current or not.
	IssuedCapture(captureID string) bool

	// AppendCapture appends records produced by captureID and reports whether
	// captureID was still the current capture. When onlyCurrent is set and
	// it was not, nothing is appended.
	AppendCapture(captureID string, onlyCurrent bool, records ...string) (appended, current bool)
}

// Result holds the outcome of an ingest operation.
type Result struct {
	CaptureID string   `json:"capture_id,omitempty"`
	Received  int      `json:"received"`
	Added     int      `json:"added"`
	Records   []string `json:"records"`
	// Stale is set when captureID had been superseded by a newer capture
	// when the result arrived. Ids the sink never issued are rejected
	// before extraction and never reach a Result.
	Stale     bool     `json:"stale,omitempty"`

	Message string `json:"message,omitempty"`
}
