package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kdus09/BotAutoGuiTinNhan/internal/job"
)

// UpsertDraft writes an owner's whole draft in one row. The draft is one
// entity: repeat and delete_after live in the same table as the rest.
func (s *Store) UpsertDraft(ctx context.Context, d job.Draft) error {
	if d.Owner == 0 {
		return fmt.Errorf("%w: draft owner is required", job.ErrValidation)
	}
	if d.CreatedAt == 0 {
		d.CreatedAt = time.Now().UnixMilli()
	}
	if d.Mode == "" {
		d.Mode = job.ModeCopy
	}
	if d.Repeat == "" {
		d.Repeat = job.RepeatNone
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drafts (owner_id, from_chat_id, message_id, mode, target_chat_id,
		   run_at, repeat, delete_after, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(owner_id) DO UPDATE SET
		   from_chat_id=excluded.from_chat_id,
		   message_id=excluded.message_id,
		   mode=excluded.mode,
		   target_chat_id=excluded.target_chat_id,
		   run_at=excluded.run_at,
		   repeat=excluded.repeat,
		   delete_after=excluded.delete_after`,
		d.Owner, d.Payload.ChatID, d.Payload.MessageID, string(d.Mode), d.Target,
		d.RunAt, string(d.Repeat), d.DeleteAfter, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

// GetDraft returns the owner's draft, or job.ErrNotFound when none exists.
func (s *Store) GetDraft(ctx context.Context, owner int64) (job.Draft, error) {
	var (
		d         job.Draft
		mode, rep string
		fromChat  int64
		messageID int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, from_chat_id, message_id, mode, target_chat_id,
		   run_at, repeat, delete_after, created_at
		 FROM drafts WHERE owner_id = ?`, owner,
	).Scan(&d.Owner, &fromChat, &messageID, &mode, &d.Target,
		&d.RunAt, &rep, &d.DeleteAfter, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return job.Draft{}, fmt.Errorf("draft for %d: %w", owner, job.ErrNotFound)
	}
	if err != nil {
		return job.Draft{}, fmt.Errorf("get draft: %w", err)
	}
	d.Payload = job.MessageRef{ChatID: fromChat, MessageID: messageID}
	if d.Mode, err = job.ParseMode(mode); err != nil {
		return job.Draft{}, err
	}
	if d.Repeat, err = job.ParseRepeat(rep); err != nil {
		return job.Draft{}, err
	}
	return d, nil
}

// DeleteDraft discards the owner's draft. Deleting a missing draft is a no-op.
func (s *Store) DeleteDraft(ctx context.Context, owner int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE owner_id = ?`, owner); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
