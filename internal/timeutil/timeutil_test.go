package timeutil

import (
	"testing"
	"time"
)

func TestParseLocalVariants(t *testing.T) {
	t.Parallel()
	loc, err := Zone("Asia/Ho_Chi_Minh")
	if err != nil {
		t.Fatalf("Zone: %v", err)
	}

	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{name: "minute", raw: "2026-01-28 20:30", want: time.Date(2026, 1, 28, 20, 30, 0, 0, loc)},
		{name: "second", raw: "2026-01-28 20:30:45", want: time.Date(2026, 1, 28, 20, 30, 45, 0, loc)},
		{name: "padded", raw: "  2026-01-28 20:30  ", want: time.Date(2026, 1, 28, 20, 30, 0, 0, loc)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLocal(tt.raw, loc)
			if err != nil {
				t.Fatalf("ParseLocal(%q) error: %v", tt.raw, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ParseLocal(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseLocalInvalid(t *testing.T) {
	t.Parallel()
	loc := time.UTC
	for _, raw := range []string{"", "tomorrow", "2026-01-28", "28/01/2026 20:30"} {
		if _, err := ParseLocal(raw, loc); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestFormatLocal(t *testing.T) {
	t.Parallel()
	loc, err := Zone("")
	if err != nil {
		t.Fatalf("Zone: %v", err)
	}
	at := time.Date(2026, 3, 2, 9, 5, 0, 0, loc)
	if got := FormatLocal(at.UnixMilli(), loc); got != "2026-03-02 09:05" {
		t.Fatalf("FormatLocal = %q", got)
	}
}

func TestZoneInvalid(t *testing.T) {
	t.Parallel()
	if _, err := Zone("Not/AZone"); err == nil {
		t.Fatal("expected error for bogus timezone")
	}
}

func TestManualClockFiresInOrder(t *testing.T) {
	t.Parallel()
	c := NewManualClock(time.Unix(1000, 0))

	var order []int
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })
	c.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	late := c.AfterFunc(10*time.Second, func() { order = append(order, 3) })

	c.Advance(5 * time.Second)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("unexpected firing order: %v", order)
	}

	if !late.Stop() {
		t.Fatal("Stop on pending timer should report true")
	}
	c.Advance(10 * time.Second)
	if len(order) != 2 {
		t.Fatalf("stopped timer fired: %v", order)
	}
}

func TestManualClockImmediate(t *testing.T) {
	t.Parallel()
	c := NewManualClock(time.Unix(1000, 0))
	fired := false
	tm := c.AfterFunc(-time.Second, func() { fired = true })
	if fired {
		t.Fatal("callback must not run inside AfterFunc")
	}
	c.Advance(0)
	if !fired {
		t.Fatal("overdue timer should fire on next Advance")
	}
	if tm.Stop() {
		t.Fatal("Stop after firing should report false")
	}
}
