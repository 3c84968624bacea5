package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kdus09/BotAutoGuiTinNhan/internal/job"
	"github.com/kdus09/BotAutoGuiTinNhan/internal/timeutil"
	"github.com/kdus09/BotAutoGuiTinNhan/pkg/logx"
)

var (
	// ErrAlreadyArmed means a second timer was requested for a job that
	// already has one. Guards against UI actions racing boot replay.
	ErrAlreadyArmed = errors.New("job already armed")
	// ErrStopped is returned once the core has shut down.
	ErrStopped = errors.New("scheduler stopped")
)

// Store is the slice of the job store the core depends on.
type Store interface {
	CreateJob(ctx context.Context, j job.Job) (job.Job, error)
	GetJob(ctx context.Context, id int64) (job.Job, error)
	MarkStatus(ctx context.Context, id int64, to job.Status, errMsg string) error
	ListPending(ctx context.Context) ([]job.Job, error)
	ListPendingByOwner(ctx context.Context, owner int64) ([]job.Job, error)
}

// Deliverer executes a job's payload. Implemented by delivery.Dispatcher.
type Deliverer interface {
	Deliver(ctx context.Context, j job.Job) error
}

// Config controls core policy.
type Config struct {
	// ContinueAfterFailure spawns the next occurrence of a recurring job even
	// when delivery failed. Default false: a series continues only from
	// successful occurrences.
	ContinueAfterFailure bool
}

// Core is the scheduler state machine. One armed timer per pending job id;
// fires for distinct jobs may run concurrently, a single job's fire never
// overlaps itself because only its one timer triggers it.
type Core struct {
	cfg     Config
	log     logx.Logger
	store   Store
	deliver Deliverer
	clock   timeutil.Clock
	loc     *time.Location

	mu       sync.Mutex
	timers   map[int64]timeutil.Timer
	restored bool
	closed   bool

	fires sync.WaitGroup
}

func New(cfg Config, st Store, d Deliverer, clock timeutil.Clock, loc *time.Location, log logx.Logger) *Core {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Core{
		cfg:     cfg,
		log:     log,
		store:   st,
		deliver: d,
		clock:   clock,
		loc:     loc,
		timers:  map[int64]timeutil.Timer{},
	}
}

// Arm registers the timer for a pending job. A run_at already in the past
// (including exactly now) fires immediately instead of being rejected.
func (c *Core) Arm(j job.Job) error {
	if j.Status != job.StatusPending {
		return fmt.Errorf("arm job %d in status %s: %w", j.ID, j.Status, job.ErrInvalidTransition)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrStopped
	}
	if _, ok := c.timers[j.ID]; ok {
		return fmt.Errorf("job %d: %w", j.ID, ErrAlreadyArmed)
	}

	delay := time.UnixMilli(j.RunAt).Sub(c.clock.Now())
	if delay < 0 {
		delay = 0
	}
	id := j.ID
	c.timers[id] = c.clock.AfterFunc(delay, func() { c.fire(id) })
	c.log.Debug("job armed", logx.Int64("job_id", id), logx.Duration("in", delay))
	return nil
}

// Submit persists a new pending job and arms it in one step.
func (c *Core) Submit(ctx context.Context, j job.Job) (job.Job, error) {
	created, err := c.store.CreateJob(ctx, j)
	if err != nil {
		return job.Job{}, err
	}
	if err := c.Arm(created); err != nil {
		return job.Job{}, err
	}
	return created, nil
}

// Cancel disarms a pending job and marks it cancelled. Cancelling a job that
// already reached a terminal status is a no-op. The stale in-flight timer, if
// any, is defused by fire's status re-read and the store's conditional update.
func (c *Core) Cancel(ctx context.Context, id int64) error {
	c.mu.Lock()
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	c.mu.Unlock()

	err := c.store.MarkStatus(ctx, id, job.StatusCancelled, "")
	if errors.Is(err, job.ErrInvalidTransition) {
		// Already sent/failed/cancelled; idempotent.
		return nil
	}
	if err != nil {
		return err
	}
	c.log.Info("job cancelled", logx.Int64("job_id", id))
	return nil
}

// ListForOwner returns the owner's pending jobs, soonest first.
func (c *Core) ListForOwner(ctx context.Context, owner int64) ([]job.Job, error) {
	return c.store.ListPendingByOwner(ctx, owner)
}

// Restore replays every pending row into the timer registry. It must run
// once, after the store is ready and before any new job request is accepted;
// a store error aborts the whole replay so the caller can treat it as fatal.
func (c *Core) Restore(ctx context.Context) error {
	c.mu.Lock()
	if c.restored {
		c.mu.Unlock()
		return errors.New("restore already ran")
	}
	c.restored = true
	c.mu.Unlock()

	pending, err := c.store.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("boot reconcile: %w", err)
	}

	overdue := 0
	now := c.clock.Now()
	for _, j := range pending {
		if time.UnixMilli(j.RunAt).Before(now) {
			overdue++
		}
		if err := c.Arm(j); err != nil && !errors.Is(err, ErrAlreadyArmed) {
			return fmt.Errorf("boot reconcile job %d: %w", j.ID, err)
		}
	}
	c.log.Info("pending jobs re-armed",
		logx.Int("count", len(pending)),
		logx.Int("overdue", overdue),
	)
	return nil
}

// Stop disarms every timer and waits for in-flight fires to finish.
func (c *Core) Stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = map[int64]timeutil.Timer{}
	c.mu.Unlock()

	c.fires.Wait()
	c.log.Info("scheduler stopped")
}

// fire runs when a job's timer matures. Delivery for this job is serial and
// unbounded: a hung transport stalls only this job's path.
func (c *Core) fire(id int64) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	delete(c.timers, id)
	c.fires.Add(1)
	c.mu.Unlock()
	defer c.fires.Done()

	ctx := context.Background()
	log := c.log.With(logx.Int64("job_id", id))

	j, err := c.store.GetJob(ctx, id)
	if err != nil {
		log.Error("fire: job row unreadable", logx.Err(err))
		return
	}
	if j.Status != job.StatusPending {
		// Cancelled (or otherwise finished) between arm and fire.
		log.Debug("fire skipped", logx.String("status", string(j.Status)))
		return
	}

	if err := c.deliver.Deliver(ctx, j); err != nil {
		if mErr := c.store.MarkStatus(ctx, id, job.StatusFailed, err.Error()); mErr != nil {
			if errors.Is(mErr, job.ErrInvalidTransition) {
				log.Debug("failure lost race to cancel", logx.Err(err))
				return
			}
			log.Error("fire: recording failure", logx.Err(mErr))
			return
		}
		log.Warn("delivery failed", logx.Err(err))
		if c.cfg.ContinueAfterFailure {
			c.spawnNext(ctx, j, log)
		}
		return
	}

	if err := c.store.MarkStatus(ctx, id, job.StatusSent, ""); err != nil {
		if errors.Is(err, job.ErrInvalidTransition) {
			// Cancel won the row while delivery was in flight; the message is
			// out, the series ends here.
			log.Debug("sent but row already terminal")
			return
		}
		log.Error("fire: recording success", logx.Err(err))
		return
	}
	log.Info("job sent", logx.Int64("target", j.Target))

	c.spawnNext(ctx, j, log)
}

// spawnNext creates and arms the following occurrence of a recurring job.
// The child gets a fresh id and a run_at derived from the fired occurrence's
// scheduled time, so late fires never shift the series.
func (c *Core) spawnNext(ctx context.Context, j job.Job, log logx.Logger) {
	if j.Repeat == job.RepeatNone {
		return
	}
	next, err := job.NextOccurrence(j.RunAt, j.Repeat, c.loc)
	if err != nil {
		log.Error("next occurrence", logx.Err(err))
		return
	}

	child := j
	child.ID = 0
	child.RunAt = next
	child.Error = ""
	child.CreatedAt = 0

	created, err := c.store.CreateJob(ctx, child)
	if err != nil {
		log.Error("spawning next occurrence", logx.Err(err))
		return
	}
	if err := c.Arm(created); err != nil && !errors.Is(err, ErrStopped) {
		log.Error("arming next occurrence", logx.Int64("child_id", created.ID), logx.Err(err))
		return
	}
	log.Info("next occurrence scheduled",
		logx.Int64("child_id", created.ID),
		logx.Int64("run_at", created.RunAt),
		logx.String("repeat", string(created.Repeat)),
	)
}
