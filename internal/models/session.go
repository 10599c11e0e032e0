package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Supported transcript languages.
const (
	LanguageEnglish = "en"
	LanguageFrench  = "fr"
)

// SupportedLanguages lists the language tags the extraction prompts cover.
var SupportedLanguages = []string{LanguageEnglish, LanguageFrench}

// ValidLanguage reports whether tag is one of SupportedLanguages.
func ValidLanguage(tag string) bool {
	for _, l := range SupportedLanguages {
		if tag == l {
			return true
		}
	}
	return false
}

// WorkoutSession is one finalized batch of records.
//
// Its JSON form is the two-element array [finalizedAt, [records...]] used by
// the gymWhisperData key.
type WorkoutSession struct {
	FinalizedAt string   `json:"finalized_at"`
	Records     []string `json:"records"`
}

// MarshalJSON encodes the session as a [finalizedAt, records] pair.
func (s WorkoutSession) MarshalJSON() ([]byte, error) {
	records := s.Records
	if records == nil {
		records = []string{}
	}
	return json.Marshal([]any{s.FinalizedAt, records})
}

// UnmarshalJSON decodes a [finalizedAt, records] pair. Non-string entries in
// the record array are dropped.
func (s *WorkoutSession) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("session entry has %d elements, want 2", len(pair))
	}
	var at string
	if err := json.Unmarshal(pair[0], &at); err != nil {
		return fmt.Errorf("session timestamp: %w", err)
	}
	records, ok := stringItems(pair[1])
	if !ok {
		return errors.New("session records is not an array")
	}
	s.FinalizedAt = at
	s.Records = records
	return nil
}

// ParsedRecords returns the session's records run through ParseRecord.
func (s WorkoutSession) ParsedRecords() []WorkoutSetRecord {
	out := make([]WorkoutSetRecord, 0, len(s.Records))
	for _, r := range s.Records {
		out = append(out, ParseRecord(r))
	}
	return out
}

// StoredEntries returns the entries of a gymWhisperData value.
//
// The value is normally an array. An object with a "workouts" array yields
// that array, and any other single value is taken as a one-entry list. An
// empty value or null yields no entries. Only undecodable JSON is an error.
func StoredEntries(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}
	var wrapper struct {
		Workouts []json.RawMessage `json:"workouts"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.Workouts != nil {
		return wrapper.Workouts, nil
	}
	if !json.Valid(data) {
		return nil, errors.New("decoding history: invalid JSON")
	}
	return []json.RawMessage{json.RawMessage(data)}, nil
}

// ParseStoredHistory decodes the value stored under gymWhisperData.
//
// Each entry (see StoredEntries) is either a session pair, a legacy flat
// batch of record strings (earlier layout), or a single record string. Legacy
// entries become sessions with an empty FinalizedAt. Entries of any other
// shape are skipped.
func ParseStoredHistory(data []byte) ([]WorkoutSession, error) {
	entries, err := StoredEntries(data)
	if err != nil || entries == nil {
		return nil, err
	}

	sessions := make([]WorkoutSession, 0, len(entries))
	for _, e := range entries {
		var s WorkoutSession
		if err := json.Unmarshal(e, &s); err == nil {
			sessions = append(sessions, s)
			continue
		}
		if batch, ok := stringItems(e); ok {
			sessions = append(sessions, WorkoutSession{Records: batch})
			continue
		}
		var single string
		if err := json.Unmarshal(e, &single); err == nil && single != "" {
			sessions = append(sessions, WorkoutSession{Records: []string{single}})
		}
	}
	return sessions, nil
}

// FlattenSessions concatenates the records of all sessions in order.
func FlattenSessions(sessions []WorkoutSession) []string {
	var out []string
	for _, s := range sessions {
		out = append(out, s.Records...)
	}
	return out
}

// stringItems decodes a JSON array and keeps its string elements. ok is false
// when data is not an array, or when it is an array with no string elements
// but some non-string ones.
func stringItems(data json.RawMessage) ([]string, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		var s string
		if err := json.Unmarshal(it, &s); err == nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(items) > 0 {
		return nil, false
	}
	return out, true
}
