package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kdus09/BotAutoGuiTinNhan/internal/job"
)

// SaveChannel upserts a registered destination. added_at is preserved on
// re-registration so ListChannels keeps a stable order.
func (s *Store) SaveChannel(ctx context.Context, c job.Channel) error {
	if c.AddedAt == 0 {
		c.AddedAt = time.Now().UnixMilli()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (chat_id, title, username, type, added_at)
		 VALUES (?,?,?,?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET
		   title=excluded.title,
		   username=excluded.username,
		   type=excluded.type`,
		c.ChatID, c.Title, c.Username, c.Type, c.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("save channel: %w", err)
	}
	return nil
}

// ListChannels returns registered destinations, newest first.
func (s *Store) ListChannels(ctx context.Context) ([]job.Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, title, username, type, added_at
		 FROM channels ORDER BY added_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var out []job.Channel
	for rows.Next() {
		var c job.Channel
		if err := rows.Scan(&c.ChatID, &c.Title, &c.Username, &c.Type, &c.AddedAt); err != nil {
			return nil, fmt.Errorf("list channels: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
