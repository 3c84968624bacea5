package tgbot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/kdus09/BotAutoGuiTinNhan/internal/job"
	"github.com/kdus09/BotAutoGuiTinNhan/internal/timeutil"
	"github.com/kdus09/BotAutoGuiTinNhan/pkg/tgui"
)

// Callback actions used in inline keyboards.
const (
	actMenu        = "menu"
	actSetPayload  = "payload"
	actPickTarget  = "targets"
	actSetTarget   = "target"
	actSetTime     = "time"
	actQuickTime   = "quick"
	actCycleRepeat = "repeat"
	actDeleteAfter = "delafter"
	actToggleMode  = "mode"
	actConfirm     = "confirm"
	actListJobs    = "jobs"
	actCancelJob   = "cancel"
	actDiscard     = "discard"
)

const datetimeHint = "YYYY-MM-DD HH:MM"

// quickChoice is one preset schedule time offered under the menu.
type quickChoice struct {
	Label string
	At    time.Time
}

// quickChoices returns the preset times relative to now. Wall-clock presets
// that already passed today roll forward one day.
func quickChoices(now time.Time, loc *time.Location) []quickChoice {
	now = now.In(loc)
	at := func(hour int) time.Time {
		t := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, loc)
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t
	}
	tomorrow := now.AddDate(0, 0, 1)
	return []quickChoice{
		{Label: "+10m", At: now.Add(10 * time.Minute)},
		{Label: "+30m", At: now.Add(30 * time.Minute)},
		{Label: "Hôm nay 20:00", At: at(20)},
		{Label: "Mai 09:00", At: time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 9, 0, 0, 0, loc)},
	}
}

// channelLabel picks the most readable name for a registered chat.
func channelLabel(ch job.Channel) string {
	if t := strings.TrimSpace(ch.Title); t != "" {
		return tgui.TruncRunes(t, 32)
	}
	if u := strings.TrimSpace(ch.Username); u != "" {
		return "@" + u
	}
	return strconv.FormatInt(ch.ChatID, 10)
}

func repeatLabel(r job.Repeat) string {
	switch r {
	case job.RepeatDaily:
		return "hằng ngày"
	case job.RepeatWeekly:
		return "hằng tuần"
	default:
		return "một lần"
	}
}

func modeLabel(m job.Mode) string {
	if m == job.ModeForward {
		return "forward"
	}
	return "copy"
}

func deleteAfterLabel(ms int64) string {
	if ms <= 0 {
		return "giữ lại"
	}
	d := time.Duration(ms) * time.Millisecond
	if d < time.Hour {
		return fmt.Sprintf("xoá sau %dp", int(d.Minutes()))
	}
	if d%time.Hour == 0 {
		return fmt.Sprintf("xoá sau %dh", int(d.Hours()))
	}
	return fmt.Sprintf("xoá sau %dh%02dp", int(d.Hours()), int(d.Minutes())%60)
}

// renderDraft builds the HTML body of the main menu for the current draft.
func renderDraft(d job.Draft, channels []job.Channel, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(string(tgui.B("Lên lịch gửi tin")) + "\n\n")

	if d.Payload.IsZero() {
		b.WriteString("Nội dung: chưa chọn\n")
	} else {
		b.WriteString("Nội dung: đã lưu (#" + strconv.Itoa(d.Payload.MessageID) + ")\n")
	}

	if d.Target == 0 {
		b.WriteString("Nơi gửi: chưa chọn\n")
	} else {
		label := strconv.FormatInt(d.Target, 10)
		for _, ch := range channels {
			if ch.ChatID == d.Target {
				label = string(tgui.Esc(channelLabel(ch)))
				break
			}
		}
		b.WriteString("Nơi gửi: " + label + "\n")
	}

	if d.RunAt == 0 {
		b.WriteString("Thời gian: chưa chọn\n")
	} else {
		b.WriteString("Thời gian: " + timeutil.FormatLocal(d.RunAt, loc) + "\n")
	}

	b.WriteString("Lặp lại: " + repeatLabel(d.Repeat) + "\n")
	b.WriteString("Chế độ: " + modeLabel(d.Mode) + "\n")
	b.WriteString("Dọn dẹp: " + deleteAfterLabel(d.DeleteAfter) + "\n")

	if missing := d.Missing(); len(missing) == 0 {
		b.WriteString("\nSẵn sàng. Bấm ✅ để xác nhận.")
	}
	return b.String()
}

// draftMarkup builds the main menu keyboard. The confirm row only shows up
// once the draft is complete.
func draftMarkup(d job.Draft) *tele.ReplyMarkup {
	kb := tgui.NewInline().
		Row(
			tgui.Btn("📝 Nội dung", actSetPayload),
			tgui.Btn("📣 Nơi gửi", actPickTarget),
		).
		Row(
			tgui.Btn("🕑 Thời gian", actSetTime),
			tgui.Btn("⚡ "+datetimeQuickLabel, actQuickTime),
		).
		Row(
			tgui.Btn("🔁 "+repeatLabel(d.Repeat), actCycleRepeat),
			tgui.Btn("♻️ "+modeLabel(d.Mode), actToggleMode),
		).
		Row(
			tgui.Btn("🧹 "+deleteAfterLabel(d.DeleteAfter), actDeleteAfter),
			tgui.Btn("📋 Danh sách", actListJobs),
		)
	if len(d.Missing()) == 0 {
		kb.Row(tgui.Btn("✅ Xác nhận", actConfirm), tgui.Btn("🗑 Huỷ nháp", actDiscard))
	} else {
		kb.Row(tgui.Btn("🗑 Huỷ nháp", actDiscard))
	}
	return kb.Markup()
}

const datetimeQuickLabel = "Chọn nhanh"

// quickMarkup lists the preset times plus a way back.
func quickMarkup(now time.Time, loc *time.Location) *tele.ReplyMarkup {
	kb := tgui.NewInline()
	for i, q := range quickChoices(now, loc) {
		kb.Row(tgui.Btn(q.Label+" · "+q.At.Format("15:04 02/01"), tgui.Data(actQuickTime, strconv.Itoa(i))))
	}
	kb.Row(tgui.Btn("« Quay lại", actMenu))
	return kb.Markup()
}

// targetMarkup lists registered chats as target choices.
func targetMarkup(channels []job.Channel) *tele.ReplyMarkup {
	kb := tgui.NewInline()
	for _, ch := range channels {
		kb.Row(tgui.Btn(channelLabel(ch), tgui.Data(actSetTarget, strconv.FormatInt(ch.ChatID, 10))))
	}
	kb.Row(tgui.Btn("« Quay lại", actMenu))
	return kb.Markup()
}

// renderJobs builds the pending-jobs list body.
func renderJobs(jobs []job.Job, channels []job.Channel, loc *time.Location) string {
	if len(jobs) == 0 {
		return "Không có lịch nào đang chờ."
	}
	byID := make(map[int64]job.Channel, len(channels))
	for _, ch := range channels {
		byID[ch.ChatID] = ch
	}

	var b strings.Builder
	b.WriteString(string(tgui.B("Lịch đang chờ")) + "\n\n")
	for _, j := range jobs {
		label := strconv.FormatInt(j.Target, 10)
		if ch, ok := byID[j.Target]; ok {
			label = string(tgui.Esc(channelLabel(ch)))
		}
		fmt.Fprintf(&b, "#%d · %s · %s", j.ID, timeutil.FormatLocal(j.RunAt, loc), label)
		if j.Repeat != job.RepeatNone {
			b.WriteString(" · " + repeatLabel(j.Repeat))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// jobsMarkup offers a cancel button per pending job.
func jobsMarkup(jobs []job.Job) *tele.ReplyMarkup {
	kb := tgui.NewInline()
	row := make([]tele.Btn, 0, 2)
	for _, j := range jobs {
		row = append(row, tgui.Btn("✖ #"+strconv.FormatInt(j.ID, 10), tgui.Data(actCancelJob, strconv.FormatInt(j.ID, 10))))
		if len(row) == 2 {
			kb.Row(row...)
			row = row[:0:0]
			row = make([]tele.Btn, 0, 2)
		}
	}
	if len(row) > 0 {
		kb.Row(row...)
	}
	kb.Row(tgui.Btn("« Quay lại", actMenu))
	return kb.Markup()
}

// parseDeleteAfter reads a cleanup delay typed by the user: a bare number is
// minutes, otherwise a Go duration ("90m", "2h"). 0 disables cleanup.
func parseDeleteAfter(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty delete-after", job.ErrValidation)
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("%w: delete-after must be >= 0", job.ErrValidation)
		}
		return time.Duration(n) * time.Minute, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: bad delete-after %q", job.ErrValidation, s)
	}
	return d, nil
}
