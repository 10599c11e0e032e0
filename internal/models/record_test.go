package models

import (
	"encoding/json"
	"testing"
)

// TestParseRecord verifies positional parsing of the wire form, including
// records with missing trailing fields and a date without the review flag.
func TestParseRecord(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want WorkoutSetRecord
	}{
		{
			name: "three fields",
			raw:  "BenchPress,10,135lbs",
			want: WorkoutSetRecord{ExerciseName: "BenchPress", Reps: "10", Weight: "135lbs"},
		},
		{
			name: "flag and date",
			raw:  "Squats,5000,2000lbs,NeedsReview,2025-06-01",
			want: WorkoutSetRecord{ExerciseName: "Squats", Reps: "5000", Weight: "2000lbs", NeedsReview: true, CapturedOn: "2025-06-01"},
		},
		{
			name: "date without flag",
			raw:  "PushUps,9,Bodyweight,2025-06-01",
			want: WorkoutSetRecord{ExerciseName: "PushUps", Reps: "9", Weight: "Bodyweight", CapturedOn: "2025-06-01"},
		},
		{
			name: "missing trailing fields",
			raw:  "Cycling,10min",
			want: WorkoutSetRecord{ExerciseName: "Cycling", Reps: "10min"},
		},
		{
			name: "empty",
			raw:  "",
			want: WorkoutSetRecord{},
		},
		{
			name: "flag in weight position",
			raw:  "PushUps,500,NeedsReview,2025-06-01",
			want: WorkoutSetRecord{ExerciseName: "PushUps", Reps: "500", NeedsReview: true, CapturedOn: "2025-06-01"},
		},
		{
			name: "flag joined onto weight",
			raw:  "Squats,5000,2000lbs NeedsReview,2025-06-01",
			want: WorkoutSetRecord{ExerciseName: "Squats", Reps: "5000", Weight: "2000lbs", NeedsReview: true, CapturedOn: "2025-06-01"},
		},
		{
			name: "whitespace around fields",
			raw:  " Deadlift , 5 , 315lbs ",
			want: WorkoutSetRecord{ExerciseName: "Deadlift", Reps: "5", Weight: "315lbs"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseRecord(tt.raw)
			if got != tt.want {
				t.Errorf("ParseRecord(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

// TestRecordStringCanonical verifies String() reproduces canonical input.
func TestRecordStringCanonical(t *testing.T) {
	for _, raw := range []string{
		"BenchPress,10,135lbs",
		"BenchPress,10,135lbs,2025-06-01",
		"Squats,5000,2000lbs,NeedsReview",
		"Squats,5000,2000lbs,NeedsReview,2025-06-01",
	} {
		if got := ParseRecord(raw).String(); got != raw {
			t.Errorf("String() = %q, want %q", got, raw)
		}
	}
}

// TestApproveRaw verifies the flag is removed without leaving a dangling
// comma, and that records without the flag come back unchanged.
func TestApproveRaw(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Squats,5000,2000lbs,NeedsReview", "Squats,5000,2000lbs"},
		{"Squats,5000,2000lbs,NeedsReview,2025-06-01", "Squats,5000,2000lbs,2025-06-01"},
		{"Squats,5000,2000lbs, NeedsReview ,2025-06-01", "Squats,5000,2000lbs,2025-06-01"},
		{"BenchPress,10,135lbs", "BenchPress,10,135lbs"},
		{"BenchPress,10,135lbs,2025-06-01", "BenchPress,10,135lbs,2025-06-01"},
		{"PushUps,500,NeedsReview,2025-06-01", "PushUps,500,,2025-06-01"},
		{"Squats,5000,2000lbs NeedsReview,2025-06-01", "Squats,5000,2000lbs,2025-06-01"},
		{"Squats,5000,2000lbsNeedsReview", "Squats,5000,2000lbs"},
		{"NeedsReview,1,2", ",1,2"},
	}
	for _, tt := range tests {
		got := ApproveRaw(tt.raw)
		if got != tt.want {
			t.Errorf("ApproveRaw(%q) = %q, want %q", tt.raw, got, tt.want)
		}
		if RawNeedsReview(got) {
			t.Errorf("ApproveRaw(%q) still flagged: %q", tt.raw, got)
		}
	}
}

// TestFlagRulesAgree verifies ParseRecord and RawNeedsReview see the same
// flag, and that approving always clears it.
func TestFlagRulesAgree(t *testing.T) {
	for _, raw := range []string{
		"BenchPress,10,135lbs",
		"Squats,5000,2000lbs,NeedsReview",
		"PushUps,500,NeedsReview",
		"Squats,5000,2000lbs NeedsReview,2025-06-01",
		"Curls,12,NeedsReview 30lbs",
	} {
		if got, want := ParseRecord(raw).NeedsReview, RawNeedsReview(raw); got != want {
			t.Errorf("ParseRecord(%q).NeedsReview = %v, RawNeedsReview = %v", raw, got, want)
		}
		if ParseRecord(ApproveRaw(raw)).NeedsReview {
			t.Errorf("approved %q still parses as flagged", raw)
		}
	}
}

// TestRawNeedsReview verifies the substring check used to gate finalize.
func TestRawNeedsReview(t *testing.T) {
	if !RawNeedsReview("Squats,5000,2000lbs,NeedsReview") {
		t.Error("expected flagged record to need review")
	}
	if RawNeedsReview("Squats,5,200lbs") {
		t.Error("expected clean record not to need review")
	}
}

// TestRecordJSON verifies the JSON field names served to the history view.
func TestRecordJSON(t *testing.T) {
	data, err := json.Marshal(ParseRecord("PushUps,9,Bodyweight"))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"exercise_name":"PushUps","reps":"9","weight":"Bodyweight","needs_review":false}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}
