package draft

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kdus09/BotAutoGuiTinNhan/internal/job"
	"github.com/kdus09/BotAutoGuiTinNhan/internal/timeutil"
	"github.com/kdus09/BotAutoGuiTinNhan/pkg/logx"
)

type memDrafts struct {
	drafts map[int64]job.Draft
}

func newMemDrafts() *memDrafts { return &memDrafts{drafts: map[int64]job.Draft{}} }

func (m *memDrafts) UpsertDraft(ctx context.Context, d job.Draft) error {
	m.drafts[d.Owner] = d
	return nil
}

func (m *memDrafts) GetDraft(ctx context.Context, owner int64) (job.Draft, error) {
	d, ok := m.drafts[owner]
	if !ok {
		return job.Draft{}, fmt.Errorf("draft for %d: %w", owner, job.ErrNotFound)
	}
	return d, nil
}

func (m *memDrafts) DeleteDraft(ctx context.Context, owner int64) error {
	delete(m.drafts, owner)
	return nil
}

type fakeCommitter struct {
	nextID    int64
	submitted []job.Job
	err       error
}

func (f *fakeCommitter) Submit(ctx context.Context, j job.Job) (job.Job, error) {
	if f.err != nil {
		return job.Job{}, f.err
	}
	f.nextID++
	j.ID = f.nextID
	j.Status = job.StatusPending
	f.submitted = append(f.submitted, j)
	return j, nil
}

type fakeResolver struct {
	deny map[int64]bool
}

func (f *fakeResolver) CanPost(ctx context.Context, target int64) bool {
	return !f.deny[target]
}

func newTestService(clock timeutil.Clock) (*Service, *memDrafts, *fakeCommitter, *fakeResolver) {
	st := newMemDrafts()
	c := &fakeCommitter{}
	r := &fakeResolver{deny: map[int64]bool{}}
	return NewService(st, c, r, clock, logx.Nop()), st, c, r
}

func TestSettersBuildDraft(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := timeutil.NewManualClock(start)
	s, _, _, _ := newTestService(clock)
	ctx := context.Background()

	if _, err := s.Begin(ctx, 9); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := s.SetPayload(ctx, 9, job.MessageRef{ChatID: 9, MessageID: 11}); err != nil {
		t.Fatalf("SetPayload: %v", err)
	}
	if _, err := s.SetTarget(ctx, 9, -100321); err != nil {
		t.Fatalf("SetTarget: %v", err)
	}
	runAt := start.Add(time.Hour).UnixMilli()
	if _, err := s.SetTime(ctx, 9, runAt); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	d, err := s.CycleRepeat(ctx, 9)
	if err != nil {
		t.Fatalf("CycleRepeat: %v", err)
	}
	if d.Repeat != job.RepeatDaily {
		t.Fatalf("Repeat = %s, want daily", d.Repeat)
	}
	d, err = s.SetDeleteAfter(ctx, 9, 10*time.Minute)
	if err != nil {
		t.Fatalf("SetDeleteAfter: %v", err)
	}
	if d.DeleteAfter != (10 * time.Minute).Milliseconds() {
		t.Fatalf("DeleteAfter = %d", d.DeleteAfter)
	}
	d, err = s.ToggleMode(ctx, 9)
	if err != nil {
		t.Fatalf("ToggleMode: %v", err)
	}
	if d.Mode != job.ModeForward {
		t.Fatalf("Mode = %s, want forward", d.Mode)
	}
	if len(d.Missing()) != 0 {
		t.Fatalf("Missing = %v", d.Missing())
	}
}

func TestSetterValidationLeavesDraftUntouched(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := timeutil.NewManualClock(start)
	s, st, _, r := newTestService(clock)
	ctx := context.Background()

	if _, err := s.Begin(ctx, 9); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	before := st.drafts[9]

	cases := []func() error{
		func() error { _, err := s.SetPayload(ctx, 9, job.MessageRef{}); return err },
		func() error { _, err := s.SetTarget(ctx, 9, 0); return err },
		func() error { _, err := s.SetTime(ctx, 9, start.Add(-time.Minute).UnixMilli()); return err },
		func() error { _, err := s.SetTime(ctx, 9, start.UnixMilli()); return err },
		func() error { _, err := s.SetDeleteAfter(ctx, 9, -time.Minute); return err },
	}
	for i, fn := range cases {
		if err := fn(); !errors.Is(err, job.ErrValidation) {
			t.Fatalf("case %d: err = %v, want ErrValidation", i, err)
		}
	}

	// Denied target: resolver consulted before any mutation.
	r.deny[-5] = true
	if _, err := s.SetTarget(ctx, 9, -5); !errors.Is(err, job.ErrValidation) {
		t.Fatal("expected validation error for denied target")
	}

	if st.drafts[9] != before {
		t.Fatalf("draft mutated by failed setter:\n got %+v\nwas %+v", st.drafts[9], before)
	}
}

func TestCommitHappyPath(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := timeutil.NewManualClock(start)
	s, st, c, _ := newTestService(clock)
	ctx := context.Background()

	mustBuild(t, s, ctx, 9, start.Add(time.Hour))

	j, err := s.Commit(ctx, 9)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if j.ID == 0 || j.Status != job.StatusPending {
		t.Fatalf("committed job = %+v", j)
	}
	if len(c.submitted) != 1 {
		t.Fatalf("submitted = %d", len(c.submitted))
	}
	if _, ok := st.drafts[9]; ok {
		t.Fatal("draft must be discarded after commit")
	}
}

func TestCommitIncompleteDraft(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewManualClock(time.Unix(1000, 0))
	s, st, c, _ := newTestService(clock)
	ctx := context.Background()

	if _, err := s.Begin(ctx, 9); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := s.Commit(ctx, 9); !errors.Is(err, job.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if len(c.submitted) != 0 {
		t.Fatal("incomplete draft was submitted")
	}
	if _, ok := st.drafts[9]; !ok {
		t.Fatal("draft must survive a failed commit")
	}
}

func TestCommitStaleTimeRejected(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := timeutil.NewManualClock(start)
	s, _, _, _ := newTestService(clock)
	ctx := context.Background()

	mustBuild(t, s, ctx, 9, start.Add(time.Minute))

	// The owner sat on the confirm button for two minutes.
	clock.Advance(2 * time.Minute)
	if _, err := s.Commit(ctx, 9); !errors.Is(err, job.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation for stale run_at", err)
	}
}

func TestCommitRechecksTarget(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := timeutil.NewManualClock(start)
	s, _, c, r := newTestService(clock)
	ctx := context.Background()

	mustBuild(t, s, ctx, 9, start.Add(time.Hour))

	// Bot demoted between target pick and confirm.
	r.deny[-100321] = true
	if _, err := s.Commit(ctx, 9); !errors.Is(err, job.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if len(c.submitted) != 0 {
		t.Fatal("job submitted despite unreachable target")
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewManualClock(time.Unix(1000, 0))
	s, st, _, _ := newTestService(clock)
	ctx := context.Background()

	if _, err := s.Begin(ctx, 9); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Discard(ctx, 9); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if _, ok := st.drafts[9]; ok {
		t.Fatal("draft not discarded")
	}
	// Discarding again is fine.
	if err := s.Discard(ctx, 9); err != nil {
		t.Fatalf("second Discard: %v", err)
	}
}

func mustBuild(t *testing.T, s *Service, ctx context.Context, owner int64, runAt time.Time) {
	t.Helper()
	if _, err := s.Begin(ctx, owner); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := s.SetPayload(ctx, owner, job.MessageRef{ChatID: owner, MessageID: 1}); err != nil {
		t.Fatalf("SetPayload: %v", err)
	}
	if _, err := s.SetTarget(ctx, owner, -100321); err != nil {
		t.Fatalf("SetTarget: %v", err)
	}
	if _, err := s.SetTime(ctx, owner, runAt.UnixMilli()); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
}
