package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/claude/gymwhisper/internal/models"
)

// ErrNothingToExport is returned when exporting an empty ledger.
var ErrNothingToExport = errors.New("no workout data to export")

// ExportFilename is the download name of the CSV export.
const ExportFilename = "workout_data.csv"

var (
	csvHeader     = []string{"workoutType", "Reps", "Weight"}
	csvFullHeader = []string{"workoutType", "Reps", "Weight", "NeedsReview", "Date"}
)

// ExportCSV writes the header workoutType,Reps,Weight and the first three
// fields of each record, with CRLF line endings. The review flag and date
// are not part of this export.
func ExportCSV(w io.Writer, records []string) error {
	return writeCSV(w, records, csvHeader, func(r models.WorkoutSetRecord) []string {
		return []string{r.ExerciseName, r.Reps, r.Weight}
	})
}

// ExportCSVFull is ExportCSV with NeedsReview and Date columns.
func ExportCSVFull(w io.Writer, records []string) error {
	return writeCSV(w, records, csvFullHeader, func(r models.WorkoutSetRecord) []string {
		flag := ""
		if r.NeedsReview {
			flag = "true"
		}
		return []string{r.ExerciseName, r.Reps, r.Weight, flag, r.CapturedOn}
	})
}

func writeCSV(w io.Writer, records []string, header []string, row func(models.WorkoutSetRecord) []string) error {
	if len(records) == 0 {
		return ErrNothingToExport
	}
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, raw := range records {
		if err := cw.Write(row(models.ParseRecord(raw))); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
