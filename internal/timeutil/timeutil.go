package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTimezone is used when the config leaves scheduler.timezone empty.
const DefaultTimezone = "Asia/Ho_Chi_Minh"

const (
	layoutMinute = "2006-01-02 15:04"
	layoutSecond = "2006-01-02 15:04:05"
)

// Zone loads the configured IANA timezone. An empty name falls back to
// DefaultTimezone.
func Zone(name string) (*time.Location, error) {
	tz := strings.TrimSpace(name)
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", tz, err)
	}
	return loc, nil
}

// ParseLocal parses a user-supplied date-time string in loc.
// Accepted layouts, tried in order: "2006-01-02 15:04:05", "2006-01-02 15:04".
func ParseLocal(s string, loc *time.Location) (time.Time, error) {
	raw := strings.TrimSpace(s)
	if t, err := time.ParseInLocation(layoutSecond, raw, loc); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(layoutMinute, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date-time %q, expected YYYY-MM-DD HH:MM[:SS]", s)
	}
	return t, nil
}

// FormatLocal renders an epoch-milliseconds instant as "YYYY-MM-DD HH:MM" in loc.
func FormatLocal(ms int64, loc *time.Location) string {
	return time.UnixMilli(ms).In(loc).Format(layoutMinute)
}

// FormatLocalSeconds renders an instant with seconds, for "current time" replies.
func FormatLocalSeconds(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(layoutSecond)
}
