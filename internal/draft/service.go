// Package draft implements the interactive job-builder surface: one
// owner-scoped draft, mutated field by field, committed into a scheduled job.
package draft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kdus09/BotAutoGuiTinNhan/internal/delivery"
	"github.com/kdus09/BotAutoGuiTinNhan/internal/job"
	"github.com/kdus09/BotAutoGuiTinNhan/internal/timeutil"
	"github.com/kdus09/BotAutoGuiTinNhan/pkg/logx"
)

// minLead is how far in the future a run_at must be at commit time.
// Matches the UI's "time must be in the future" guard.
const minLead = 5 * time.Second

// Store is the draft persistence slice of the job store.
type Store interface {
	UpsertDraft(ctx context.Context, d job.Draft) error
	GetDraft(ctx context.Context, owner int64) (job.Draft, error)
	DeleteDraft(ctx context.Context, owner int64) error
}

// Committer turns a finished draft into an armed pending job.
// Implemented by sched.Core.
type Committer interface {
	Submit(ctx context.Context, j job.Job) (job.Job, error)
}

// Service validates and persists per-field draft edits. Each setter checks
// its own field in isolation and leaves the draft untouched on bad input;
// Commit re-validates the whole draft.
type Service struct {
	store    Store
	commit   Committer
	resolver delivery.TargetResolver
	clock    timeutil.Clock
	log      logx.Logger
}

func NewService(st Store, c Committer, r delivery.TargetResolver, clock timeutil.Clock, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: st, commit: c, resolver: r, clock: clock, log: log}
}

// Begin resets the owner's draft to a fresh one (copy mode, no repeat).
func (s *Service) Begin(ctx context.Context, owner int64) (job.Draft, error) {
	d := job.Draft{
		Owner:     owner,
		Mode:      job.ModeCopy,
		Repeat:    job.RepeatNone,
		CreatedAt: s.clock.Now().UnixMilli(),
	}
	if err := s.store.UpsertDraft(ctx, d); err != nil {
		return job.Draft{}, err
	}
	return d, nil
}

// Get returns the owner's draft, creating a fresh one when none exists.
func (s *Service) Get(ctx context.Context, owner int64) (job.Draft, error) {
	d, err := s.store.GetDraft(ctx, owner)
	if errors.Is(err, job.ErrNotFound) {
		return s.Begin(ctx, owner)
	}
	return d, err
}

// SetPayload records the sample message to deliver.
func (s *Service) SetPayload(ctx context.Context, owner int64, ref job.MessageRef) (job.Draft, error) {
	if ref.IsZero() {
		return job.Draft{}, fmt.Errorf("%w: empty payload reference", job.ErrValidation)
	}
	return s.mutate(ctx, owner, func(d *job.Draft) error {
		d.Payload = ref
		return nil
	})
}

// SetTarget records the destination after checking the bot can post there.
func (s *Service) SetTarget(ctx context.Context, owner, target int64) (job.Draft, error) {
	if target == 0 {
		return job.Draft{}, fmt.Errorf("%w: empty target", job.ErrValidation)
	}
	if !s.resolver.CanPost(ctx, target) {
		return job.Draft{}, fmt.Errorf("%w: bot cannot post to %d", job.ErrValidation, target)
	}
	return s.mutate(ctx, owner, func(d *job.Draft) error {
		d.Target = target
		return nil
	})
}

// SetTime records the scheduled instant; it must be in the future.
func (s *Service) SetTime(ctx context.Context, owner, runAtMs int64) (job.Draft, error) {
	if runAtMs < s.clock.Now().Add(minLead).UnixMilli() {
		return job.Draft{}, fmt.Errorf("%w: run time must be in the future", job.ErrValidation)
	}
	return s.mutate(ctx, owner, func(d *job.Draft) error {
		d.RunAt = runAtMs
		return nil
	})
}

// CycleRepeat rotates none -> daily -> weekly -> none.
func (s *Service) CycleRepeat(ctx context.Context, owner int64) (job.Draft, error) {
	return s.mutate(ctx, owner, func(d *job.Draft) error {
		d.Repeat = d.Repeat.Cycle()
		return nil
	})
}

// SetDeleteAfter records the auto-delete delay; zero disables it.
func (s *Service) SetDeleteAfter(ctx context.Context, owner int64, after time.Duration) (job.Draft, error) {
	if after < 0 {
		return job.Draft{}, fmt.Errorf("%w: delete delay must be >= 0", job.ErrValidation)
	}
	return s.mutate(ctx, owner, func(d *job.Draft) error {
		d.DeleteAfter = after.Milliseconds()
		return nil
	})
}

// ToggleMode flips copy <-> forward.
func (s *Service) ToggleMode(ctx context.Context, owner int64) (job.Draft, error) {
	return s.mutate(ctx, owner, func(d *job.Draft) error {
		d.Mode = d.Mode.Toggle()
		return nil
	})
}

// Commit re-validates the whole draft, submits it as a pending job and
// discards the draft. The draft survives unchanged when validation fails.
func (s *Service) Commit(ctx context.Context, owner int64) (job.Job, error) {
	d, err := s.store.GetDraft(ctx, owner)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return job.Job{}, fmt.Errorf("%w: no draft to commit", job.ErrValidation)
		}
		return job.Job{}, err
	}
	if missing := d.Missing(); len(missing) > 0 {
		return job.Job{}, fmt.Errorf("%w: draft incomplete, missing %v", job.ErrValidation, missing)
	}
	if d.RunAt < s.clock.Now().Add(minLead).UnixMilli() {
		return job.Job{}, fmt.Errorf("%w: run time must be in the future", job.ErrValidation)
	}
	// Permissions may have changed since the target was picked.
	if !s.resolver.CanPost(ctx, d.Target) {
		return job.Job{}, fmt.Errorf("%w: bot cannot post to %d", job.ErrValidation, d.Target)
	}

	j, err := s.commit.Submit(ctx, job.Job{
		Owner:       d.Owner,
		Payload:     d.Payload,
		Mode:        d.Mode,
		Target:      d.Target,
		RunAt:       d.RunAt,
		Repeat:      d.Repeat,
		DeleteAfter: d.DeleteAfter,
	})
	if err != nil {
		return job.Job{}, err
	}
	if err := s.store.DeleteDraft(ctx, owner); err != nil {
		// The job is in; a leftover draft is only cosmetic.
		s.log.Warn("draft cleanup failed", logx.Int64("owner", owner), logx.Err(err))
	}
	s.log.Info("draft committed",
		logx.Int64("owner", owner),
		logx.Int64("job_id", j.ID),
		logx.Int64("run_at", j.RunAt),
	)
	return j, nil
}

// Discard drops the owner's draft. Missing draft is a no-op.
func (s *Service) Discard(ctx context.Context, owner int64) error {
	return s.store.DeleteDraft(ctx, owner)
}

func (s *Service) mutate(ctx context.Context, owner int64, fn func(*job.Draft) error) (job.Draft, error) {
	d, err := s.Get(ctx, owner)
	if err != nil {
		return job.Draft{}, err
	}
	if err := fn(&d); err != nil {
		return job.Draft{}, err
	}
	if err := s.store.UpsertDraft(ctx, d); err != nil {
		return job.Draft{}, err
	}
	return d, nil
}
