package tgbot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/kdus09/BotAutoGuiTinNhan/internal/delivery"
	"github.com/kdus09/BotAutoGuiTinNhan/internal/job"
	"github.com/kdus09/BotAutoGuiTinNhan/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

// Adapter owns the telebot instance. It is both the delivery transport
// (copy, forward, delete) and the permission check for targets.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func NewAdapter(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

func (a *Adapter) Bot() *tele.Bot { return a.bot }

// Start blocks polling for updates until Stop is called.
func (a *Adapter) Start() {
	a.log.Info("polling started", logx.String("bot", a.bot.Me.Username))
	a.bot.Start()
	a.log.Info("polling stopped")
}

func (a *Adapter) Stop() { a.bot.Stop() }

// Send places the payload message in the target chat. The payload is
// re-copied (no forward header) or forwarded depending on mode.
func (a *Adapter) Send(ctx context.Context, mode job.Mode, payload job.MessageRef, target int64) (delivery.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return delivery.Artifact{}, err
	}

	src := tele.StoredMessage{
		MessageID: strconv.Itoa(payload.MessageID),
		ChatID:    payload.ChatID,
	}
	to := &tele.Chat{ID: target}

	var (
		msg *tele.Message
		err error
	)
	if mode == job.ModeForward {
		msg, err = a.bot.Forward(to, src)
	} else {
		msg, err = a.bot.Copy(to, src)
	}
	if err != nil {
		return delivery.Artifact{}, err
	}
	return delivery.Artifact{ChatID: target, MessageID: msg.ID}, nil
}

// Delete removes a previously delivered message.
func (a *Adapter) Delete(ctx context.Context, art delivery.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.bot.Delete(tele.StoredMessage{
		MessageID: strconv.Itoa(art.MessageID),
		ChatID:    art.ChatID,
	})
}

// CanPost reports whether the bot can place messages in the target chat.
// Channels need an admin seat with the post right; in groups membership
// is enough.
func (a *Adapter) CanPost(ctx context.Context, target int64) bool {
	if ctx.Err() != nil {
		return false
	}
	chat, err := a.bot.ChatByID(target)
	if err != nil {
		a.log.Debug("target lookup failed", logx.Int64("chat_id", target), logx.Err(err))
		return false
	}
	m, err := a.bot.ChatMemberOf(chat, a.bot.Me)
	if err != nil {
		a.log.Debug("membership lookup failed", logx.Int64("chat_id", target), logx.Err(err))
		return false
	}
	switch m.Role {
	case tele.Creator:
		return true
	case tele.Administrator:
		if chat.Type == tele.ChatChannel {
			return m.Rights.CanPostMessages
		}
		return true
	case tele.Member:
		return chat.Type == tele.ChatGroup || chat.Type == tele.ChatSuperGroup
	default:
		return false
	}
}
