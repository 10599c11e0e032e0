package models

import "strings"

// NeedsReviewFlag is the field the extraction service appends to a record
// whose values look physiologically implausible.
const NeedsReviewFlag = "NeedsReview"

// WorkoutSetRecord is one logged exercise set.
type WorkoutSetRecord struct {
	ExerciseName string `json:"exercise_name"`
	Reps         string `json:"reps"`
	Weight       string `json:"weight"`
	NeedsReview  bool   `json:"needs_review"`
	CapturedOn   string `json:"captured_on,omitempty"` // YYYY-MM-DD
}

// ParseRecord reads the comma-joined wire form:
//
//	exerciseName,reps,weight[,NeedsReview][,capturedOn]
//
// Missing trailing fields are left empty. Fields past the third are matched by
// value rather than position, so a record without the review flag still yields
// its date. Unknown extra fields are ignored.
//
// The flag is recognized wherever it appears: as its own field in any
// position, or joined onto another value ("2000lbs NeedsReview"). It is
// stripped from the value it was found in, so NeedsReview agrees with
// RawNeedsReview and ApproveRaw.
func ParseRecord(raw string) WorkoutSetRecord {
	parts := strings.Split(raw, ",")
	var rec WorkoutSetRecord
	field := func(i int) string {
		if i >= len(parts) {
			return ""
		}
		v, flagged := stripFlag(parts[i])
		if flagged {
			rec.NeedsReview = true
		}
		return v
	}

	rec.ExerciseName = field(0)
	rec.Reps = field(1)
	rec.Weight = field(2)
	for i := 3; i < len(parts); i++ {
		if v := field(i); v != "" && rec.CapturedOn == "" {
			rec.CapturedOn = v
		}
	}
	return rec
}

// stripFlag trims p and removes the review flag from it, reporting whether
// the flag was there.
func stripFlag(p string) (string, bool) {
	p = strings.TrimSpace(p)
	if !strings.Contains(p, NeedsReviewFlag) {
		return p, false
	}
	return strings.TrimSpace(strings.ReplaceAll(p, NeedsReviewFlag, "")), true
}

// String serializes the record in canonical field order.
func (r WorkoutSetRecord) String() string {
	fields := []string{r.ExerciseName, r.Reps, r.Weight}
	if r.NeedsReview {
		fields = append(fields, NeedsReviewFlag)
	}
	if r.CapturedOn != "" {
		fields = append(fields, r.CapturedOn)
	}
	return strings.Join(fields, ",")
}

// RawNeedsReview reports whether the raw record text still carries the review
// flag anywhere. Finalizing is gated on this.
func RawNeedsReview(raw string) bool {
	return strings.Contains(raw, NeedsReviewFlag)
}

// ApproveRaw removes every occurrence of the review flag from raw record text.
// A field that was only the flag is dropped when it sits past the weight and
// left empty otherwise, so the positions of name, reps and weight hold. A flag
// joined onto a value is cut from it. Untouched fields stay verbatim and text
// without the flag is returned unchanged.
func ApproveRaw(raw string) string {
	if !RawNeedsReview(raw) {
		return raw
	}
	parts := strings.Split(raw, ",")
	kept := make([]string, 0, len(parts))
	for i, p := range parts {
		v, flagged := stripFlag(p)
		switch {
		case !flagged:
			kept = append(kept, p)
		case v == "" && i >= 3:
		default:
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, ",")
}
