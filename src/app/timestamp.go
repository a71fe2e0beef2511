package app

import (
	"math"
	"strings"
	"time"
)

const (
	// Millisecond epochs of plausible dates are above this; anything below is seconds.
	secondsThreshold = 1e12

	// Stored values above this were multiplied by 1000 twice.
	doubleMultiplied = 2e13
)

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// TimestampCandidates holds every field a creation date may be derived from.
type TimestampCandidates struct {
	// Explicitly selected date, ISO encoded. Wins over everything else.
	Selected string

	// Raw numeric timestamps in seconds or milliseconds, in priority order.
	Numeric []*float64

	// Creation date string, ISO encoded.
	CreatedAt string
}

// NormalizeMillis converts a raw seconds-or-milliseconds value into epoch
// milliseconds. It reports false for a nil value.
func NormalizeMillis(raw *float64) (int64, bool) {
	if raw == nil {
		return 0, false
	}
	v := *raw
	if v < secondsThreshold {
		return int64(math.Round(v * 1000)), true
	}
	return int64(v), true
}

// RepairStored undoes the accidental second multiplication some stored
// records carry. It is only applied when reading records for queries.
func RepairStored(ms int64) int64 {
	if ms > doubleMultiplied {
		return ms / 1000
	}
	return ms
}

// ParseISO parses the date encodings seen in records and form values.
func ParseISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ResolveCreationDate picks the canonical timestamp from c, falling back to now.
func ResolveCreationDate(c TimestampCandidates, now time.Time) int64 {
	if t, ok := ParseISO(c.Selected); ok {
		return t.UnixMilli()
	}
	for _, raw := range c.Numeric {
		if ms, ok := NormalizeMillis(raw); ok && ms != 0 {
			return ms
		}
	}
	if t, ok := ParseISO(c.CreatedAt); ok {
		return t.UnixMilli()
	}
	return now.UnixMilli()
}
