package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

// TestSessionMarshalPair verifies sessions are stored as [finalizedAt, records].
func TestSessionMarshalPair(t *testing.T) {
	s := WorkoutSession{FinalizedAt: "2025-06-01 18:30:00", Records: []string{"BenchPress,10,135lbs,2025-06-01"}}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	want := `["2025-06-01 18:30:00",["BenchPress,10,135lbs,2025-06-01"]]`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}

	empty, _ := json.Marshal(WorkoutSession{FinalizedAt: "x"})
	if string(empty) != `["x",[]]` {
		t.Errorf("empty session json = %s", empty)
	}
}

// TestParseStoredHistoryMixedLayouts verifies session pairs, legacy flat
// batches, and single strings are all accepted, while junk is skipped.
func TestParseStoredHistoryMixedLayouts(t *testing.T) {
	data := []byte(`[
		["2025-06-01 18:30:00", ["BenchPress,10,135lbs,2025-06-01", "PushUps,9,Bodyweight,2025-06-01"]],
		["Squats,5,225lbs", "Lunges,10,40lbs"],
		"Cycling,10min,0lbs",
		42,
		{"workouts": []},
		["2025-06-02 07:00:00", []]
	]`)

	sessions, err := ParseStoredHistory(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []WorkoutSession{
		{FinalizedAt: "2025-06-01 18:30:00", Records: []string{"BenchPress,10,135lbs,2025-06-01", "PushUps,9,Bodyweight,2025-06-01"}},
		{Records: []string{"Squats,5,225lbs", "Lunges,10,40lbs"}},
		{Records: []string{"Cycling,10min,0lbs"}},
		{FinalizedAt: "2025-06-02 07:00:00", Records: []string{}},
	}
	if !reflect.DeepEqual(sessions, want) {
		t.Errorf("sessions = %+v\nwant %+v", sessions, want)
	}

	flat := FlattenSessions(sessions)
	wantFlat := []string{
		"BenchPress,10,135lbs,2025-06-01", "PushUps,9,Bodyweight,2025-06-01",
		"Squats,5,225lbs", "Lunges,10,40lbs", "Cycling,10min,0lbs",
	}
	if !reflect.DeepEqual(flat, wantFlat) {
		t.Errorf("flattened = %v, want %v", flat, wantFlat)
	}
}

// TestParseStoredHistoryMalformed verifies undecodable values are rejected so
// callers can fall back to an empty history.
func TestParseStoredHistoryMalformed(t *testing.T) {
	for _, raw := range []string{`{not json`, `[1,`} {
		if _, err := ParseStoredHistory([]byte(raw)); err == nil {
			t.Errorf("ParseStoredHistory(%s): expected error", raw)
		}
	}
	for _, raw := range []string{"", "null"} {
		sessions, err := ParseStoredHistory([]byte(raw))
		if err != nil || len(sessions) != 0 {
			t.Errorf("ParseStoredHistory(%q): sessions=%v err=%v", raw, sessions, err)
		}
	}
}

// TestParseStoredHistoryWrappedValues verifies the non-array layouts the
// history page also reads: a "workouts" object and a single bare entry.
func TestParseStoredHistoryWrappedValues(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []WorkoutSession
	}{
		{
			name: "workouts object",
			raw:  `{"workouts":["BenchPress,10,135lbs,2025-07-01",["2025-07-02 08:00:00",["Squats,5,225lbs"]]]}`,
			want: []WorkoutSession{
				{Records: []string{"BenchPress,10,135lbs,2025-07-01"}},
				{FinalizedAt: "2025-07-02 08:00:00", Records: []string{"Squats,5,225lbs"}},
			},
		},
		{
			name: "empty workouts",
			raw:  `{"workouts":[]}`,
			want: []WorkoutSession{},
		},
		{
			name: "single record string",
			raw:  `"BenchPress,10,135lbs"`,
			want: []WorkoutSession{{Records: []string{"BenchPress,10,135lbs"}}},
		},
		{
			name: "unrecognized object",
			raw:  `{"other":1}`,
			want: []WorkoutSession{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStoredHistory([]byte(tt.raw))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestValidLanguage verifies only the prompt languages are accepted.
func TestValidLanguage(t *testing.T) {
	if !ValidLanguage("en") || !ValidLanguage("fr") {
		t.Error("en and fr must be valid")
	}
	if ValidLanguage("de") || ValidLanguage("") {
		t.Error("de and empty must be invalid")
	}
}
