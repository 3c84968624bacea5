package delivery

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/kdus09/BotAutoGuiTinNhan/internal/job"
	"github.com/kdus09/BotAutoGuiTinNhan/internal/timeutil"
	"github.com/kdus09/BotAutoGuiTinNhan/pkg/logx"
)

const deleteTimeout = 30 * time.Second

// Config controls the dispatcher.
type Config struct {
	// SendRatePerSec bounds outgoing sends (Telegram flood limits).
	// Zero or negative falls back to 20.
	SendRatePerSec int
}

// Dispatcher executes a job's payload against the transport and owns the
// optional post-delivery cleanup. Deletion is fire-and-forget: it is armed on
// successful delivery and its failures never touch job status.
type Dispatcher struct {
	transport Delivery
	lim       *rate.Limiter
	clock     timeutil.Clock
	log       logx.Logger
}

func NewDispatcher(cfg Config, transport Delivery, clock timeutil.Clock, log logx.Logger) *Dispatcher {
	rps := cfg.SendRatePerSec
	if rps <= 0 {
		rps = 20
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		transport: transport,
		lim:       rate.NewLimiter(rate.Limit(rps), rps),
		clock:     clock,
		log:       log,
	}
}

// Deliver sends the job's payload. On success, if the job asks for
// auto-delete, a deletion is scheduled delete_after past now.
func (d *Dispatcher) Deliver(ctx context.Context, j job.Job) error {
	if err := d.lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	art, err := d.transport.Send(ctx, j.Mode, j.Payload, j.Target)
	if err != nil {
		return err
	}
	d.log.Debug("delivered",
		logx.Int64("job_id", j.ID),
		logx.Int64("target", j.Target),
		logx.String("mode", string(j.Mode)),
	)

	if j.DeleteAfter > 0 {
		d.scheduleDelete(j.ID, art, time.Duration(j.DeleteAfter)*time.Millisecond)
	}
	return nil
}

func (d *Dispatcher) scheduleDelete(jobID int64, art Artifact, after time.Duration) {
	d.clock.AfterFunc(after, func() {
		ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
		defer cancel()
		if err := d.transport.Delete(ctx, art); err != nil {
			// Best-effort cleanup: the message may already be gone.
			d.log.Debug("auto-delete failed",
				logx.Int64("job_id", jobID),
				logx.Int64("chat", art.ChatID),
				logx.Int("message", art.MessageID),
				logx.Err(err),
			)
			return
		}
		d.log.Debug("auto-deleted",
			logx.Int64("job_id", jobID),
			logx.Int64("chat", art.ChatID),
			logx.Int("message", art.MessageID),
		)
	})
}
