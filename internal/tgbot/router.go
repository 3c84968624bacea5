package tgbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/kdus09/BotAutoGuiTinNhan/internal/draft"
	"github.com/kdus09/BotAutoGuiTinNhan/internal/job"
	"github.com/kdus09/BotAutoGuiTinNhan/internal/timeutil"
	"github.com/kdus09/BotAutoGuiTinNhan/pkg/logx"
	"github.com/kdus09/BotAutoGuiTinNhan/pkg/tgui"
)

// Scheduler is the slice of the scheduler core the UI needs.
type Scheduler interface {
	Cancel(ctx context.Context, id int64) error
	ListForOwner(ctx context.Context, owner int64) ([]job.Job, error)
}

// ChannelDirectory records chats the bot may be asked to post to.
type ChannelDirectory interface {
	SaveChannel(ctx context.Context, ch job.Channel) error
	ListChannels(ctx context.Context) ([]job.Channel, error)
}

// inputState tracks what the next private text message from the owner means.
type inputState int

const (
	stateIdle inputState = iota
	stateAwaitPayload
	stateAwaitTime
	stateAwaitDeleteAfter
)

const handlerTimeout = 15 * time.Second

// Router drives the owner's private chat UI and the chat registration
// side channels. Exactly one user, the configured owner, may use it.
type Router struct {
	owner    int64
	loc      *time.Location
	clock    timeutil.Clock
	drafts   *draft.Service
	sched    Scheduler
	channels ChannelDirectory
	log      logx.Logger

	mu    sync.Mutex
	await inputState
}

func NewRouter(owner int64, loc *time.Location, clock timeutil.Clock, drafts *draft.Service, sched Scheduler, channels ChannelDirectory, log logx.Logger) *Router {
	return &Router{
		owner:    owner,
		loc:      loc,
		clock:    clock,
		drafts:   drafts,
		sched:    sched,
		channels: channels,
		log:      log,
	}
}

// Attach registers all handlers on the bot.
func (r *Router) Attach(b *tele.Bot) {
	b.Handle("/start", r.wrap(r.onStart))
	b.Handle("/id", r.wrap(r.onID))
	b.Handle("/now", r.wrap(r.onNow))
	b.Handle("/register", r.wrap(r.onRegister))
	b.Handle("/mychannels", r.wrap(r.onMyChannels))
	b.Handle(tele.OnText, r.wrap(r.onText))
	b.Handle(tele.OnMedia, r.wrap(r.onMedia))
	b.Handle(tele.OnCallback, r.wrap(r.onCallback))
	b.Handle(tele.OnChannelPost, r.wrap(r.onChannelPost))
	b.Handle(tele.OnMyChatMember, r.wrap(r.onMyChatMember))
}

// wrap gives each handler a bounded context and recovers panics so one bad
// update cannot kill the poll loop.
func (r *Router) wrap(h func(ctx context.Context, c tele.Context) error) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("handler panic", logx.Any("panic", rec))
				err = fmt.Errorf("panic: %v", rec)
			}
		}()
		if err := h(ctx, c); err != nil {
			r.log.Warn("handler failed", logx.Err(err))
		}
		return nil
	}
}

func (r *Router) fromOwner(c tele.Context) bool {
	return c.Sender() != nil && c.Sender().ID == r.owner
}

func (r *Router) privateOwner(c tele.Context) bool {
	return r.fromOwner(c) && c.Chat() != nil && c.Chat().Type == tele.ChatPrivate
}

func (r *Router) setAwait(s inputState) {
	r.mu.Lock()
	r.await = s
	r.mu.Unlock()
}

func (r *Router) takeAwait() inputState {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.await
	r.await = stateIdle
	return s
}

func (r *Router) onStart(ctx context.Context, c tele.Context) error {
	if !r.privateOwner(c) {
		if c.Chat() != nil && c.Chat().Type == tele.ChatPrivate {
			return c.Send("⛔ Bot này chỉ chủ sở hữu mới được dùng.")
		}
		return nil
	}
	r.setAwait(stateIdle)
	if _, err := r.drafts.Begin(ctx, r.owner); err != nil {
		return err
	}
	now := timeutil.FormatLocalSeconds(r.clock.Now(), r.loc)
	if err := c.Send("👋 Bot lên lịch gửi tin nhắn\n⏱ Giờ hiện tại (VN): " + now); err != nil {
		return err
	}
	return r.sendMenu(ctx, c)
}

func (r *Router) onID(ctx context.Context, c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	msg := fmt.Sprintf("🆔 ID của bạn: %d", c.Sender().ID)
	if c.Chat() != nil && c.Chat().Type != tele.ChatPrivate {
		msg += fmt.Sprintf("\n🆔 ID chat này: %d", c.Chat().ID)
	}
	return c.Send(msg)
}

func (r *Router) onNow(ctx context.Context, c tele.Context) error {
	if !r.privateOwner(c) {
		return nil
	}
	return c.Send("⏱ Giờ hiện tại (VN): " + timeutil.FormatLocalSeconds(r.clock.Now(), r.loc))
}

// onRegister handles /register in groups; in private it only explains how
// registration works. Channel posts go through onChannelPost instead.
func (r *Router) onRegister(ctx context.Context, c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	if chat.Type == tele.ChatPrivate {
		if !r.fromOwner(c) {
			return nil
		}
		return c.Send("📣 Thêm bot vào kênh/nhóm (quyền admin) rồi gửi /register trong đó.")
	}
	if !r.fromOwner(c) {
		return nil
	}
	if err := r.saveChat(ctx, chat); err != nil {
		return err
	}
	return c.Send("✅ Đã lưu chat này làm nơi gửi.")
}

func (r *Router) onMyChannels(ctx context.Context, c tele.Context) error {
	if !r.privateOwner(c) {
		return nil
	}
	chans, err := r.channels.ListChannels(ctx)
	if err != nil {
		return err
	}
	if len(chans) == 0 {
		return c.Send("❌ Chưa lưu kênh/nhóm nào. Thêm bot vào kênh/nhóm (admin) hoặc gửi /register trong đó.")
	}
	var b strings.Builder
	b.WriteString("📋 Kênh/nhóm đã lưu:\n\n")
	for _, ch := range chans {
		fmt.Fprintf(&b, "• %s (%d)\n", channelLabel(ch), ch.ChatID)
	}
	return c.Send(b.String())
}

func (r *Router) onText(ctx context.Context, c tele.Context) error {
	if !r.privateOwner(c) {
		return nil
	}
	switch r.takeAwait() {
	case stateAwaitPayload:
		return r.capturePayload(ctx, c)
	case stateAwaitTime:
		return r.captureTime(ctx, c)
	case stateAwaitDeleteAfter:
		return r.captureDeleteAfter(ctx, c)
	default:
		return c.Send("Dùng /start để mở menu.")
	}
}

func (r *Router) onMedia(ctx context.Context, c tele.Context) error {
	if !r.privateOwner(c) {
		return nil
	}
	if r.takeAwait() == stateAwaitPayload {
		return r.capturePayload(ctx, c)
	}
	return nil
}

func (r *Router) capturePayload(ctx context.Context, c tele.Context) error {
	m := c.Message()
	if m == nil {
		return nil
	}
	ref := job.MessageRef{ChatID: m.Chat.ID, MessageID: m.ID}
	if _, err := r.drafts.SetPayload(ctx, r.owner, ref); err != nil {
		return err
	}
	if err := c.Send("✅ Đã lưu tin nhắn mẫu."); err != nil {
		return err
	}
	return r.sendMenu(ctx, c)
}

func (r *Router) captureTime(ctx context.Context, c tele.Context) error {
	t, err := timeutil.ParseLocal(c.Text(), r.loc)
	if err != nil {
		r.setAwait(stateAwaitTime)
		return c.Send("⚠️ Sai định dạng. Nhập " + datetimeHint + ", ví dụ: " +
			r.clock.Now().In(r.loc).Add(10*time.Minute).Format("2006-01-02 15:04"))
	}
	if _, err := r.drafts.SetTime(ctx, r.owner, t.UnixMilli()); err != nil {
		if errors.Is(err, job.ErrValidation) {
			r.setAwait(stateAwaitTime)
			return c.Send("⚠️ Thời gian phải ở tương lai.")
		}
		return err
	}
	if err := c.Send("✅ Đã đặt thời gian: " + timeutil.FormatLocal(t.UnixMilli(), r.loc) + " (VN)"); err != nil {
		return err
	}
	return r.sendMenu(ctx, c)
}

func (r *Router) captureDeleteAfter(ctx context.Context, c tele.Context) error {
	d, err := parseDeleteAfter(c.Text())
	if err != nil {
		r.setAwait(stateAwaitDeleteAfter)
		return c.Send("⚠️ Nhập số phút (0 để tắt), ví dụ: 10")
	}
	if _, err := r.drafts.SetDeleteAfter(ctx, r.owner, d); err != nil {
		return err
	}
	if err := c.Send("✅ Dọn dẹp: " + deleteAfterLabel(d.Milliseconds())); err != nil {
		return err
	}
	return r.sendMenu(ctx, c)
}

func (r *Router) onCallback(ctx context.Context, c tele.Context) error {
	cb := c.Callback()
	if cb == nil || !r.privateOwner(c) {
		return nil
	}
	action, payload := tgui.SplitData(cb.Data)

	ack := func(text string) error {
		return c.Respond(&tele.CallbackResponse{Text: text})
	}

	switch action {
	case actMenu:
		if err := ack(""); err != nil {
			return err
		}
		return r.editMenu(ctx, c)

	case actSetPayload:
		r.setAwait(stateAwaitPayload)
		if err := ack(""); err != nil {
			return err
		}
		return c.Send("📩 Gửi tin nhắn mẫu vào đây. Bot sẽ copy/forward tin này theo lịch.")

	case actPickTarget:
		chans, err := r.channels.ListChannels(ctx)
		if err != nil {
			return err
		}
		if len(chans) == 0 {
			return ack("Chưa có kênh/nhóm nào được lưu.")
		}
		if err := ack(""); err != nil {
			return err
		}
		return c.Edit("📌 Chọn kênh/nhóm đích:", targetMarkup(chans))

	case actSetTarget:
		target, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return ack("Chat không hợp lệ.")
		}
		if _, err := r.drafts.SetTarget(ctx, r.owner, target); err != nil {
			if errors.Is(err, job.ErrValidation) {
				return ack("⚠️ Bot không có quyền gửi ở kênh/nhóm này.")
			}
			return err
		}
		if err := ack("Đã chọn nơi gửi."); err != nil {
			return err
		}
		return r.editMenu(ctx, c)

	case actSetTime:
		r.setAwait(stateAwaitTime)
		if err := ack(""); err != nil {
			return err
		}
		example := r.clock.Now().In(r.loc).Add(10 * time.Minute).Format("2006-01-02 15:04")
		return c.Send("⏰ Nhập thời gian:\n• " + datetimeHint + " (giờ VN)\nVí dụ: " + example)

	case actQuickTime:
		if payload == "" {
			if err := ack(""); err != nil {
				return err
			}
			return c.Edit("⚡ Chọn nhanh thời gian:", quickMarkup(r.clock.Now(), r.loc))
		}
		idx, err := strconv.Atoi(payload)
		choices := quickChoices(r.clock.Now(), r.loc)
		if err != nil || idx < 0 || idx >= len(choices) {
			return ack("Lựa chọn không hợp lệ.")
		}
		at := choices[idx].At
		if _, err := r.drafts.SetTime(ctx, r.owner, at.UnixMilli()); err != nil {
			if errors.Is(err, job.ErrValidation) {
				return ack("⚠️ Thời gian phải ở tương lai.")
			}
			return err
		}
		if err := ack("Đã đặt " + timeutil.FormatLocal(at.UnixMilli(), r.loc)); err != nil {
			return err
		}
		return r.editMenu(ctx, c)

	case actCycleRepeat:
		d, err := r.drafts.CycleRepeat(ctx, r.owner)
		if err != nil {
			return err
		}
		if err := ack("Lặp lại: " + repeatLabel(d.Repeat)); err != nil {
			return err
		}
		return r.editMenu(ctx, c)

	case actToggleMode:
		d, err := r.drafts.ToggleMode(ctx, r.owner)
		if err != nil {
			return err
		}
		if err := ack("Chế độ: " + modeLabel(d.Mode)); err != nil {
			return err
		}
		return r.editMenu(ctx, c)

	case actDeleteAfter:
		r.setAwait(stateAwaitDeleteAfter)
		if err := ack(""); err != nil {
			return err
		}
		return c.Send("🗑 Nhập số phút để tự xoá bài sau khi đăng.\nVí dụ: 10\nNhập 0 để tắt.")

	case actConfirm:
		j, err := r.drafts.Commit(ctx, r.owner)
		if err != nil {
			if errors.Is(err, job.ErrValidation) {
				return c.Respond(&tele.CallbackResponse{Text: commitErrorText(err), ShowAlert: true})
			}
			return err
		}
		if err := ack(""); err != nil {
			return err
		}
		msg := fmt.Sprintf("✅ Đã lên lịch #%d lúc %s (VN)", j.ID, timeutil.FormatLocal(j.RunAt, r.loc))
		if j.Repeat != job.RepeatNone {
			msg += " · lặp " + repeatLabel(j.Repeat)
		}
		if err := c.Send(msg); err != nil {
			return err
		}
		return r.sendMenu(ctx, c)

	case actListJobs:
		if err := ack(""); err != nil {
			return err
		}
		return r.editJobs(ctx, c)

	case actCancelJob:
		id, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return ack("Job không hợp lệ.")
		}
		if err := r.sched.Cancel(ctx, id); err != nil {
			if errors.Is(err, job.ErrNotFound) {
				return ack("Job không tồn tại.")
			}
			return err
		}
		if err := ack("✅ Đã huỷ #" + payload); err != nil {
			return err
		}
		return r.editJobs(ctx, c)

	case actDiscard:
		if err := r.drafts.Discard(ctx, r.owner); err != nil {
			return err
		}
		if _, err := r.drafts.Begin(ctx, r.owner); err != nil {
			return err
		}
		if err := ack("🧹 Đã huỷ nháp."); err != nil {
			return err
		}
		return r.editMenu(ctx, c)

	default:
		return ack("")
	}
}

// commitErrorText turns a commit validation error into a short alert.
func commitErrorText(err error) string {
	s := err.Error()
	switch {
	case strings.Contains(s, "payload"):
		return "❌ Bạn chưa gửi tin nhắn mẫu."
	case strings.Contains(s, "target"):
		return "❌ Bạn chưa chọn kênh/nhóm đích."
	case strings.Contains(s, "time"), strings.Contains(s, "future"):
		return "❌ Thời gian gửi chưa hợp lệ."
	case strings.Contains(s, "post"):
		return "❌ Bot không có quyền gửi ở kênh/nhóm đích."
	default:
		return "❌ Chưa thể lên lịch: " + s
	}
}

func (r *Router) onChannelPost(ctx context.Context, c tele.Context) error {
	m := c.Message()
	if m == nil || m.Chat == nil {
		return nil
	}
	if !strings.Contains(m.Text, "/register") {
		return nil
	}
	if err := r.saveChat(ctx, m.Chat); err != nil {
		return err
	}
	// Keep the channel clean; deletion needs admin rights so failure is fine.
	_ = c.Delete()
	r.log.Info("channel registered via post", logx.Int64("chat_id", m.Chat.ID))
	return nil
}

// onMyChatMember auto-registers chats the bot is promoted or added into.
func (r *Router) onMyChatMember(ctx context.Context, c tele.Context) error {
	upd := c.ChatMember()
	if upd == nil || upd.Chat == nil || upd.NewChatMember == nil {
		return nil
	}
	if upd.Chat.Type == tele.ChatPrivate {
		return nil
	}
	switch upd.NewChatMember.Role {
	case tele.Administrator, tele.Creator, tele.Member:
		if err := r.saveChat(ctx, upd.Chat); err != nil {
			return err
		}
		r.log.Info("chat registered",
			logx.Int64("chat_id", upd.Chat.ID),
			logx.String("type", string(upd.Chat.Type)),
			logx.String("role", string(upd.NewChatMember.Role)))
	}
	return nil
}

func (r *Router) saveChat(ctx context.Context, chat *tele.Chat) error {
	return r.channels.SaveChannel(ctx, job.Channel{
		ChatID:   chat.ID,
		Title:    chat.Title,
		Username: chat.Username,
		Type:     string(chat.Type),
		AddedAt:  r.clock.Now().UnixMilli(),
	})
}

func (r *Router) menuContent(ctx context.Context) (string, *tele.ReplyMarkup, error) {
	d, err := r.drafts.Get(ctx, r.owner)
	if err != nil {
		return "", nil, err
	}
	chans, err := r.channels.ListChannels(ctx)
	if err != nil {
		return "", nil, err
	}
	return renderDraft(d, chans, r.loc), draftMarkup(d), nil
}

func (r *Router) sendMenu(ctx context.Context, c tele.Context) error {
	text, markup, err := r.menuContent(ctx)
	if err != nil {
		return err
	}
	return c.Send(text, markup, tele.ModeHTML)
}

func (r *Router) editMenu(ctx context.Context, c tele.Context) error {
	text, markup, err := r.menuContent(ctx)
	if err != nil {
		return err
	}
	if err := c.Edit(text, markup, tele.ModeHTML); err != nil && !isNotModified(err) {
		return err
	}
	return nil
}

func (r *Router) editJobs(ctx context.Context, c tele.Context) error {
	jobs, err := r.sched.ListForOwner(ctx, r.owner)
	if err != nil {
		return err
	}
	chans, err := r.channels.ListChannels(ctx)
	if err != nil {
		return err
	}
	if err := c.Edit(renderJobs(jobs, chans, r.loc), jobsMarkup(jobs), tele.ModeHTML); err != nil && !isNotModified(err) {
		return err
	}
	return nil
}

// isNotModified matches Telegram's "message is not modified" edit error,
// which just means the screen already shows the right thing.
func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not modified")
}
