package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kdus09/BotAutoGuiTinNhan/internal/job"
	"github.com/kdus09/BotAutoGuiTinNhan/pkg/logx"
)

const jobColumns = `id, owner_id, from_chat_id, message_id, mode, target_chat_id,
	run_at, status, COALESCE(error, ''), repeat, delete_after, created_at`

// CreateJob persists a new pending job and returns the full row with its
// assigned id. The input's ID and Status fields are ignored.
func (s *Store) CreateJob(ctx context.Context, j job.Job) (job.Job, error) {
	if j.CreatedAt == 0 {
		j.CreatedAt = time.Now().UnixMilli()
	}
	j.Status = job.StatusPending
	j.Error = ""

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (owner_id, from_chat_id, message_id, mode, target_chat_id,
		   run_at, status, error, repeat, delete_after, created_at)
		 VALUES (?,?,?,?,?,?,?,NULL,?,?,?)`,
		j.Owner, j.Payload.ChatID, j.Payload.MessageID, string(j.Mode), j.Target,
		j.RunAt, string(j.Status), string(j.Repeat), j.DeleteAfter, j.CreatedAt,
	)
	if err != nil {
		return job.Job{}, fmt.Errorf("create job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return job.Job{}, fmt.Errorf("create job: %w", err)
	}
	j.ID = id
	s.log.Debug("job created",
		logx.Int64("job_id", id),
		logx.Int64("run_at", j.RunAt),
		logx.String("repeat", string(j.Repeat)),
	)
	return j, nil
}

// GetJob returns a job row or job.ErrNotFound.
func (s *Store) GetJob(ctx context.Context, id int64) (job.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return job.Job{}, fmt.Errorf("job %d: %w", id, job.ErrNotFound)
	}
	if err != nil {
		return job.Job{}, fmt.Errorf("get job %d: %w", id, err)
	}
	return j, nil
}

// MarkStatus moves a pending job into a terminal status. The update is
// conditional on the row still being pending, which serializes racing
// writers (cancel vs fire) at the storage layer: exactly one wins, the
// loser gets job.ErrInvalidTransition.
func (s *Store) MarkStatus(ctx context.Context, id int64, to job.Status, errMsg string) error {
	if !job.CanTransition(job.StatusPending, to) {
		return fmt.Errorf("job %d -> %s: %w", id, to, job.ErrInvalidTransition)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ? WHERE id = ? AND status = ?`,
		string(to), nullStr(errMsg), id, string(job.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("mark job %d %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark job %d %s: %w", id, to, err)
	}
	if n == 0 {
		// Either the row is gone or it already left pending.
		var cur string
		err := s.db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id).Scan(&cur)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("job %d: %w", id, job.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("mark job %d %s: %w", id, to, err)
		}
		return fmt.Errorf("job %d is %s: %w", id, cur, job.ErrInvalidTransition)
	}
	return nil
}

// ListPending returns every pending job ordered by run_at ascending.
// The boot reconciler replays this list on startup.
func (s *Store) ListPending(ctx context.Context) ([]job.Job, error) {
	return s.listPending(ctx, 0)
}

// ListPendingByOwner returns an owner's pending jobs ordered by run_at
// ascending.
func (s *Store) ListPendingByOwner(ctx context.Context, owner int64) ([]job.Job, error) {
	return s.listPending(ctx, owner)
}

func (s *Store) listPending(ctx context.Context, owner int64) ([]job.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE status = ? ORDER BY run_at ASC`
	args := []any{string(job.StatusPending)}
	if owner != 0 {
		q = `SELECT ` + jobColumns + ` FROM jobs WHERE status = ? AND owner_id = ? ORDER BY run_at ASC`
		args = append(args, owner)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var out []job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list pending: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// PruneTerminal deletes sent/failed/cancelled rows created before the cutoff.
// Pending rows are never touched.
func (s *Store) PruneTerminal(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status != ? AND created_at < ?`,
		string(job.StatusPending), before.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (job.Job, error) {
	var (
		j              job.Job
		mode, st, rep  string
		fromChat       int64
		messageID      int
	)
	err := r.Scan(&j.ID, &j.Owner, &fromChat, &messageID, &mode, &j.Target,
		&j.RunAt, &st, &j.Error, &rep, &j.DeleteAfter, &j.CreatedAt)
	if err != nil {
		return job.Job{}, err
	}
	j.Payload = job.MessageRef{ChatID: fromChat, MessageID: messageID}
	if j.Mode, err = job.ParseMode(mode); err != nil {
		return job.Job{}, err
	}
	if j.Status, err = job.ParseStatus(st); err != nil {
		return job.Job{}, err
	}
	if j.Repeat, err = job.ParseRepeat(rep); err != nil {
		return job.Job{}, err
	}
	return j, nil
}
