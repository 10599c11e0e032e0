package ingest

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// DefaultTimeZone is the zone used to stamp records when none is configured.
const DefaultTimeZone = "America/Los_Angeles"

const dateLayout = "2006-01-02"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// LoadLocation resolves an IANA zone name, falling back to DefaultTimeZone
// when name is empty.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimeZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", name, err)
	}
	return loc, nil
}

// ReferenceDate formats now in loc as YYYY-MM-DD.
func ReferenceDate(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(dateLayout)
}

// Normalize splits the extraction response on ';', trims each segment, drops
// empty ones and appends ",<referenceDate>" to the rest. Order is preserved.
// Segments are not validated.
func Normalize(response, referenceDate string) []string {
	if strings.TrimSpace(response) == "" {
		return []string{}
	}
	segments := strings.Split(response, ";")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		out = append(out, seg+","+referenceDate)
	}
	return out
}

// NormalizeAny is Normalize for loosely typed input such as a decoded JSON
// body. nil and non-string values yield an empty slice.
func NormalizeAny(response any, referenceDate string) []string {
	switch v := response.(type) {
	case string:
		return Normalize(v, referenceDate)
	case *string:
		if v == nil {
			return []string{}
		}
		return Normalize(*v, referenceDate)
	default:
		return []string{}
	}
}
