package delivery

import (
	"context"

	"github.com/kdus09/BotAutoGuiTinNhan/internal/job"
)

// Artifact identifies a delivered message so it can later be deleted.
type Artifact struct {
	ChatID    int64
	MessageID int
}

// Delivery is the transport boundary: something that can place a payload in a
// target chat and later remove it. Implemented by the Telegram adapter.
type Delivery interface {
	Send(ctx context.Context, mode job.Mode, payload job.MessageRef, target int64) (Artifact, error)
	Delete(ctx context.Context, art Artifact) error
}

// TargetResolver answers whether the bot may post to a target. Consulted when
// a target is chosen and again at draft commit; never at fire time (a revoked
// permission surfaces as a failed delivery instead).
type TargetResolver interface {
	CanPost(ctx context.Context, target int64) bool
}
