package job

import (
	"fmt"
	"time"
)

// NextOccurrence maps a fired occurrence's scheduled run_at to the next one.
//
// It is a pure transform of the scheduled instant, never of the actual fire
// time, so a late fire does not drift the series: daily means "same wall
// clock tomorrow" and weekly "same wall clock in seven days" in loc.
// Calling it with RepeatNone is a caller bug.
func NextOccurrence(runAtMs int64, repeat Repeat, loc *time.Location) (int64, error) {
	cur := time.UnixMilli(runAtMs).In(loc)
	switch repeat {
	case RepeatDaily:
		return addDays(cur, 1).UnixMilli(), nil
	case RepeatWeekly:
		return addDays(cur, 7).UnixMilli(), nil
	default:
		return 0, fmt.Errorf("no next occurrence for repeat %q", repeat)
	}
}

// addDays advances the calendar date, preserving the wall-clock time in the
// instant's location.
func addDays(t time.Time, days int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+days,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
