package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// epochMillisBoundary is the magnitude above which a numeric epoch value is
// treated as milliseconds rather than seconds. Exactly 10^12 still falls in
// the seconds branch; only values strictly greater switch to milliseconds.
const epochMillisBoundary = 1_000_000_000_000

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z0700",
}

// ParseTimestamp normalizes an epoch (seconds or milliseconds, numeric or
// numeric-string) or ISO-ish timestamp into a UTC instant. Naive instants
// (no offset) are treated as UTC. Returns an error for missing or
// unparseable input; callers must fail the parse rather than substitute
// time.Now().
func ParseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("timestamp: missing value")
	case time.Time:
		return t.UTC(), nil
	case float64:
		return epochToUTC(int64(t)), nil
	case int64:
		return epochToUTC(t), nil
	case int:
		return epochToUTC(int64(t)), nil
	case string:
		return parseTimestampString(t)
	default:
		return time.Time{}, fmt.Errorf("timestamp: unsupported type %T", v)
	}
}

func parseTimestampString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("timestamp: empty string")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return epochToUTC(n), nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp: unrecognized format %q", s)
}

func epochToUTC(n int64) time.Time {
	if n > epochMillisBoundary {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// NormalizeTimestamp re-expresses t as a UTC instant truncated to whole
// seconds so repeated normalization is idempotent:
// NormalizeTimestamp(NormalizeTimestamp(x)) == NormalizeTimestamp(x).
func NormalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
