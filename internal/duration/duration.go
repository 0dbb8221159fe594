// Package duration parses human-readable durations for config values and
// flags.
package duration

import (
	"fmt"
	"time"
)

// Parse parses a duration. Go syntax ("30s", "1h30m") is tried first, then
// a count with a calendar unit like "1d", "2w" or "6mo".
func Parse(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	var n int
	var unit string
	if _, err := fmt.Sscanf(s, "%d%s", &n, &unit); err != nil {
		return 0, fmt.Errorf("invalid duration format: %s (use e.g., 30s, 5m, 1d)", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative duration: %s", s)
	}

	switch unit {
	case "min", "mins":
		return time.Duration(n) * time.Minute, nil
	case "hr", "hrs", "hour", "hours":
		return time.Duration(n) * time.Hour, nil
	case "d", "day", "days":
		return time.Duration(n) * 24 * time.Hour, nil
	case "w", "wk", "wks", "week", "weeks":
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case "mo", "month", "months":
		return time.Duration(n) * 30 * 24 * time.Hour, nil
	case "y", "yr", "yrs", "year", "years":
		return time.Duration(n) * 365 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration unit: %s", unit)
	}
}

// ParseOr parses s, returning def when s is empty.
func ParseOr(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return Parse(s)
}
