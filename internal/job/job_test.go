package job

import "testing"

func TestStatusTransitions(t *testing.T) {
	t.Parallel()
	terminals := []Status{StatusSent, StatusFailed, StatusCancelled}

	for _, to := range terminals {
		if !CanTransition(StatusPending, to) {
			t.Fatalf("pending -> %s should be allowed", to)
		}
	}
	for _, from := range terminals {
		for _, to := range []Status{StatusPending, StatusSent, StatusFailed, StatusCancelled} {
			if CanTransition(from, to) {
				t.Fatalf("%s -> %s should be forbidden", from, to)
			}
		}
	}
	if CanTransition(StatusPending, StatusPending) {
		t.Fatal("pending -> pending should be forbidden")
	}
}

func TestParseEnums(t *testing.T) {
	t.Parallel()

	if m, err := ParseMode(" FORWARD "); err != nil || m != ModeForward {
		t.Fatalf("ParseMode = %v, %v", m, err)
	}
	if _, err := ParseMode("broadcast"); err == nil {
		t.Fatal("expected error for unknown mode")
	}

	if r, err := ParseRepeat(""); err != nil || r != RepeatNone {
		t.Fatalf("ParseRepeat empty = %v, %v", r, err)
	}
	if _, err := ParseRepeat("hourly"); err == nil {
		t.Fatal("expected error for unknown repeat")
	}

	if s, err := ParseStatus("sent"); err != nil || s != StatusSent {
		t.Fatalf("ParseStatus = %v, %v", s, err)
	}
}

func TestRepeatCycle(t *testing.T) {
	t.Parallel()
	if RepeatNone.Cycle() != RepeatDaily || RepeatDaily.Cycle() != RepeatWeekly || RepeatWeekly.Cycle() != RepeatNone {
		t.Fatal("cycle order should be none -> daily -> weekly -> none")
	}
}

func TestDraftMissing(t *testing.T) {
	t.Parallel()
	var d Draft
	if got := d.Missing(); len(got) != 3 {
		t.Fatalf("empty draft Missing = %v", got)
	}
	d.Payload = MessageRef{ChatID: 1, MessageID: 2}
	d.Target = -100123
	d.RunAt = 1700000000000
	if got := d.Missing(); len(got) != 0 {
		t.Fatalf("complete draft Missing = %v", got)
	}
}
