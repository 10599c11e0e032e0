package mcp

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/claude/gymwhisper/internal/models"
)

// SetEntry is one historical set with the date it belongs to.
type SetEntry struct {
	models.WorkoutSetRecord
	Date        string `json:"date,omitempty"`
	FinalizedAt string `json:"finalized_at,omitempty"`
}

// setFilter selects sets by date range (inclusive, YYYY-MM-DD, empty means
// open) and exercise name substring.
type setFilter struct {
	start, end string
	exercise   string
}

func (f setFilter) match(e SetEntry) bool {
	if f.start != "" || f.end != "" {
		if e.Date == "" {
			return false
		}
		if f.start != "" && e.Date < f.start {
			return false
		}
		if f.end != "" && e.Date > f.end {
			return false
		}
	}
	if f.exercise != "" && !strings.Contains(strings.ToLower(e.ExerciseName), strings.ToLower(f.exercise)) {
		return false
	}
	return true
}

// flattenSets expands sessions into dated sets. A set's date is its capture
// date, falling back to the day its session was finalized.
func flattenSets(sessions []models.WorkoutSession) []SetEntry {
	var out []SetEntry
	for _, s := range sessions {
		sessionDay := ""
		if len(s.FinalizedAt) >= len(time.DateOnly) {
			sessionDay = s.FinalizedAt[:len(time.DateOnly)]
		}
		for _, rec := range s.ParsedRecords() {
			date := rec.CapturedOn
			if date == "" {
				date = sessionDay
			}
			out = append(out, SetEntry{WorkoutSetRecord: rec, Date: date, FinalizedAt: s.FinalizedAt})
		}
	}
	return out
}

func filterSets(sets []SetEntry, f setFilter) []SetEntry {
	out := []SetEntry{}
	for _, s := range sets {
		if f.match(s) {
			out = append(out, s)
		}
	}
	return out
}

// ExerciseStat summarizes one exercise across the history.
type ExerciseStat struct {
	Name        string `json:"name"`
	Sets        int    `json:"sets"`
	NeedsReview int    `json:"needs_review"`
	FirstDate   string `json:"first_date,omitempty"`
	LastDate    string `json:"last_date,omitempty"`
}

// exerciseStats groups sets by case-insensitive exercise name, sorted by
// name. The first spelling seen is kept.
func exerciseStats(sets []SetEntry) []ExerciseStat {
	byKey := map[string]*ExerciseStat{}
	var keys []string
	for _, s := range sets {
		key := strings.ToLower(s.ExerciseName)
		st, ok := byKey[key]
		if !ok {
			st = &ExerciseStat{Name: s.ExerciseName}
			byKey[key] = st
			keys = append(keys, key)
		}
		st.Sets++
		if s.NeedsReview {
			st.NeedsReview++
		}
		if s.Date != "" {
			if st.FirstDate == "" || s.Date < st.FirstDate {
				st.FirstDate = s.Date
			}
			if s.Date > st.LastDate {
				st.LastDate = s.Date
			}
		}
	}
	sort.Strings(keys)
	out := make([]ExerciseStat, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byKey[k])
	}
	return out
}

// ProgressPoint is one day of an exercise.
type ProgressPoint struct {
	Date      string   `json:"date"`
	Sets      int      `json:"sets"`
	Reps      []string `json:"reps"`
	Weights   []string `json:"weights"`
	TopWeight string   `json:"top_weight,omitempty"`
}

// progress groups sets by date in ascending order. TopWeight is the heaviest
// weight with a leading number; bodyweight sets never set it.
func progress(sets []SetEntry) []ProgressPoint {
	byDate := map[string]*ProgressPoint{}
	best := map[string]float64{}
	var dates []string
	for _, s := range sets {
		p, ok := byDate[s.Date]
		if !ok {
			p = &ProgressPoint{Date: s.Date, Reps: []string{}, Weights: []string{}}
			byDate[s.Date] = p
			dates = append(dates, s.Date)
		}
		p.Sets++
		p.Reps = append(p.Reps, s.Reps)
		p.Weights = append(p.Weights, s.Weight)
		if w, ok := leadingNumber(s.Weight); ok && (p.TopWeight == "" || w > best[s.Date]) {
			best[s.Date] = w
			p.TopWeight = s.Weight
		}
	}
	sort.Strings(dates)
	out := make([]ProgressPoint, 0, len(dates))
	for _, d := range dates {
		out = append(out, *byDate[d])
	}
	return out
}

// leadingNumber parses the number at the start of a weight such as "135lbs"
// or "22.5 kg".
func leadingNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// dateRange validates optional start/end dates and returns them as
// YYYY-MM-DD. Empty input stays empty (open bound).
func dateRange(startStr, endStr string) (string, string, error) {
	var start, end string
	if startStr != "" {
		t, err := parseFlexTime(startStr)
		if err != nil {
			return "", "", err
		}
		start = t.Format(time.DateOnly)
	}
	if endStr != "" {
		t, err := parseFlexTime(endStr)
		if err != nil {
			return "", "", err
		}
		end = t.Format(time.DateOnly)
	}
	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.DateOnly, s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}
