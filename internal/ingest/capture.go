package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/gymwhisper/internal/observe"
)

// ErrStaleCapture is returned when a result arrives for a capture that has
// been superseded and the discard policy is active.
var ErrStaleCapture = errors.New("capture superseded by a newer capture")

// ErrUnknownCapture is returned for a capture id the sink never issued.
var ErrUnknownCapture = errors.New("unknown capture")

// StalePolicy decides what happens to an extraction result whose capture is
// no longer the current one.
type StalePolicy string

const (
	// StaleApply appends late results anyway.
	StaleApply StalePolicy = "apply"
	// StaleDiscard drops late results.
	StaleDiscard StalePolicy = "discard"
)

// ParseStalePolicy validates a policy name. Empty means StaleApply.
func ParseStalePolicy(s string) (StalePolicy, error) {
	switch StalePolicy(s) {
	case "", StaleApply:
		return StaleApply, nil
	case StaleDiscard:
		return StaleDiscard, nil
	default:
		return "", fmt.Errorf("unknown stale policy %q (want %q or %q)", s, StaleApply, StaleDiscard)
	}
}

// PipelineConfig holds the optional knobs of a Pipeline.
type PipelineConfig struct {
	Location *time.Location
	Policy   StalePolicy
	Timeout  time.Duration // 0 means no deadline
	Clock    Clock
	Metrics  *observe.Metrics
}

// Pipeline runs transcript → extraction → normalization → ledger append.
type Pipeline struct {
	extractor Extractor
	loc       *time.Location
	policy    StalePolicy
	timeout   time.Duration
	clock     Clock
	metrics   *observe.Metrics
	log       *slog.Logger
}

// NewPipeline creates a capture pipeline around extractor.
func NewPipeline(extractor Extractor, cfg PipelineConfig, log *slog.Logger) *Pipeline {
	p := &Pipeline{
		extractor: extractor,
		loc:       cfg.Location,
		policy:    cfg.Policy,
		timeout:   cfg.Timeout,
		clock:     cfg.Clock,
		metrics:   cfg.Metrics,
		log:       log,
	}
	if p.loc == nil {
		p.loc = time.UTC
	}
	if p.policy == "" {
		p.policy = StaleApply
	}
	if p.clock == nil {
		p.clock = SystemClock{}
	}
	return p
}

// Policy returns the active stale-response policy.
func (p *Pipeline) Policy() StalePolicy { return p.policy }

// ReferenceDate returns today's date in the pipeline's zone.
func (p *Pipeline) ReferenceDate() string {
	return ReferenceDate(p.clock.Now(), p.loc)
}

// Submit extracts records from text and appends them to sink on behalf of
// captureID. Extraction runs without touching sink, so the ledger stays
// usable while the call is in flight. An extraction failure leaves sink
// unchanged. An id the sink never issued is rejected with ErrUnknownCapture
// before the extraction call.
func (p *Pipeline) Submit(ctx context.Context, sink Sink, captureID, text, language string) (*Result, error) {
	if !sink.IssuedCapture(captureID) {
		return nil, fmt.Errorf("capture %q: %w", captureID, ErrUnknownCapture)
	}

	callCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	raw, err := p.extractor.Extract(callCtx, text, language)
	if err != nil {
		p.log.Error("extraction failed", "capture", captureID, "error", err)
		return nil, fmt.Errorf("extracting capture %s: %w", captureID, err)
	}

	records := Normalize(raw, p.ReferenceDate())
	result := &Result{
		CaptureID: captureID,
		Received:  len(records),
		Records:   records,
	}

	appended, current := sink.AppendCapture(captureID, p.policy == StaleDiscard, records...)
	if !current {
		result.Stale = true
		if p.metrics != nil {
			p.metrics.RecordStaleCapture(ctx, string(p.policy))
		}
		if p.policy == StaleDiscard {
			p.log.Info("discarding stale capture result", "capture", captureID, "records", len(records))
			result.Message = "Result discarded: a newer capture has started."
			return result, ErrStaleCapture
		}
		p.log.Debug("applying stale capture result", "capture", captureID, "records", len(records))
	}
	if appended {
		result.Added = len(records)
		if p.metrics != nil {
			p.metrics.RecordsAppended.Add(ctx, int64(len(records)))
		}
	}
	return result, nil
}
