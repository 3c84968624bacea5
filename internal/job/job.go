package job

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the store and the scheduler core.
var (
	// ErrNotFound is returned when a job id does not exist.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when a status update would leave a
	// terminal state. It indicates a caller bug or a lost race, never normal
	// operation.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrValidation is returned for malformed user input to draft setters.
	// No state is mutated when it is returned.
	ErrValidation = errors.New("validation failed")
)

// Mode selects the delivery semantics for a job's payload.
type Mode string

const (
	ModeCopy    Mode = "copy"
	ModeForward Mode = "forward"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeCopy:
		return ModeCopy, nil
	case ModeForward:
		return ModeForward, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrValidation, s)
	}
}

// Toggle returns the other delivery mode.
func (m Mode) Toggle() Mode {
	if m == ModeCopy {
		return ModeForward
	}
	return ModeCopy
}

// Status is the job lifecycle state. Transitions are monotonic:
// pending may move to sent, failed or cancelled; terminal states never change.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusSent:
		return StatusSent, nil
	case StatusFailed:
		return StatusFailed, nil
	case StatusCancelled:
		return StatusCancelled, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool { return s != StatusPending }

// CanTransition reports whether from -> to is a legal status move.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.Terminal()
}

// Repeat is the recurrence cadence carried unchanged to spawned occurrences.
type Repeat string

const (
	RepeatNone   Repeat = "none"
	RepeatDaily  Repeat = "daily"
	RepeatWeekly Repeat = "weekly"
)

func ParseRepeat(s string) (Repeat, error) {
	switch Repeat(strings.ToLower(strings.TrimSpace(s))) {
	case RepeatNone, "":
		return RepeatNone, nil
	case RepeatDaily:
		return RepeatDaily, nil
	case RepeatWeekly:
		return RepeatWeekly, nil
	default:
		return "", fmt.Errorf("%w: unknown repeat %q", ErrValidation, s)
	}
}

// Cycle returns the next cadence in the UI toggle order none -> daily -> weekly.
func (r Repeat) Cycle() Repeat {
	switch r {
	case RepeatNone:
		return RepeatDaily
	case RepeatDaily:
		return RepeatWeekly
	default:
		return RepeatNone
	}
}

// MessageRef is the opaque payload reference: the chat a sample message was
// captured in plus its message id. Immutable once set on a Job.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

func (r MessageRef) IsZero() bool { return r.ChatID == 0 && r.MessageID == 0 }

// Job is one scheduled delivery with its own lifecycle. Recurring series are
// modeled as a chain of Jobs: a fired occurrence stays terminal and spawns a
// child row with a fresh id.
type Job struct {
	ID          int64
	Owner       int64
	Payload     MessageRef
	Mode        Mode
	Target      int64
	RunAt       int64 // epoch milliseconds
	Status      Status
	Error       string
	Repeat      Repeat
	DeleteAfter int64 // milliseconds after delivery; 0 means keep
	CreatedAt   int64 // epoch milliseconds
}

// Draft is an owner's job-under-construction. At most one exists per owner;
// it holds every Job field pre-commit and is discarded on cancel or commit.
type Draft struct {
	Owner       int64
	Payload     MessageRef
	Mode        Mode
	Target      int64
	RunAt       int64
	Repeat      Repeat
	DeleteAfter int64
	CreatedAt   int64
}

// Missing reports which required fields are not set yet. An empty result
// means the draft is complete enough to commit.
func (d Draft) Missing() []string {
	var out []string
	if d.Payload.IsZero() {
		out = append(out, "payload")
	}
	if d.Target == 0 {
		out = append(out, "target")
	}
	if d.RunAt == 0 {
		out = append(out, "time")
	}
	return out
}

// Channel is a registered destination the bot can post to.
type Channel struct {
	ChatID   int64
	Title    string
	Username string
	Type     string
	AddedAt  int64
}
