package job

import (
	"testing"
	"time"
)

func TestNextOccurrence(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	base := time.Date(2026, 1, 28, 20, 30, 0, 0, loc)

	tests := []struct {
		name   string
		repeat Repeat
		want   time.Time
	}{
		{name: "daily", repeat: RepeatDaily, want: time.Date(2026, 1, 29, 20, 30, 0, 0, loc)},
		{name: "weekly", repeat: RepeatWeekly, want: time.Date(2026, 2, 4, 20, 30, 0, 0, loc)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(base.UnixMilli(), tt.repeat, loc)
			if err != nil {
				t.Fatalf("NextOccurrence: %v", err)
			}
			if got != tt.want.UnixMilli() {
				t.Fatalf("NextOccurrence = %s, want %s",
					time.UnixMilli(got).In(loc), tt.want)
			}
		})
	}
}

func TestNextOccurrenceMonthBoundary(t *testing.T) {
	t.Parallel()
	loc := time.UTC
	base := time.Date(2026, 1, 31, 9, 0, 0, 0, loc)
	got, err := NextOccurrence(base.UnixMilli(), RepeatDaily, loc)
	if err != nil {
		t.Fatalf("NextOccurrence: %v", err)
	}
	want := time.Date(2026, 2, 1, 9, 0, 0, 0, loc)
	if got != want.UnixMilli() {
		t.Fatalf("NextOccurrence = %s, want %s", time.UnixMilli(got).In(loc), want)
	}
}

func TestNextOccurrenceIgnoresFireLag(t *testing.T) {
	t.Parallel()
	// The transform only sees the scheduled run_at, so a late fire cannot
	// shift the series; equal inputs always give equal outputs.
	loc := time.UTC
	base := time.Date(2026, 5, 10, 7, 15, 0, 0, loc).UnixMilli()
	a, err := NextOccurrence(base, RepeatDaily, loc)
	if err != nil {
		t.Fatalf("NextOccurrence: %v", err)
	}
	b, err := NextOccurrence(base, RepeatDaily, loc)
	if err != nil {
		t.Fatalf("NextOccurrence: %v", err)
	}
	if a != b || a != base+24*time.Hour.Milliseconds() {
		t.Fatalf("unexpected next occurrence: %d vs %d", a, b)
	}
}

func TestNextOccurrenceNone(t *testing.T) {
	t.Parallel()
	if _, err := NextOccurrence(0, RepeatNone, time.UTC); err == nil {
		t.Fatal("expected error for RepeatNone")
	}
}
