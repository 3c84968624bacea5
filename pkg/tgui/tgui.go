// Package tgui holds small Telegram UI helpers: an inline keyboard builder,
// callback data encoding and HTML escaping for ParseMode="HTML".
package tgui

import (
	"strings"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"
)

// MaxCallbackDataLen is Telegram's byte limit for callback_data.
const MaxCallbackDataLen = 64

// Inline accumulates rows for an inline keyboard.
type Inline struct {
	rm   *tele.ReplyMarkup
	rows []tele.Row
}

func NewInline() *Inline {
	return &Inline{rm: &tele.ReplyMarkup{}}
}

// Row appends one row of buttons.
func (i *Inline) Row(btn ...tele.Btn) *Inline {
	i.rows = append(i.rows, i.rm.Row(btn...))
	i.rm.Inline(i.rows...)
	return i
}

func (i *Inline) Markup() *tele.ReplyMarkup { return i.rm }

// Btn creates a callback button carrying raw callback_data.
func Btn(text, data string) tele.Btn {
	return tele.Btn{Text: text, Data: data}
}

// Data joins an action and an optional payload into callback_data.
// The result must stay under MaxCallbackDataLen.
func Data(action, payload string) string {
	if payload == "" {
		return action
	}
	return action + ":" + payload
}

// SplitData is the inverse of Data. Telebot prefixes callback data from
// unique-style buttons with "\f"; that prefix is stripped here so both
// flavors route the same.
func SplitData(data string) (action, payload string) {
	data = strings.TrimPrefix(data, "\f")
	if i := strings.IndexByte(data, ':'); i >= 0 {
		return data[:i], data[i+1:]
	}
	return data, ""
}

// TruncRunes cuts s to at most n runes, appending an ellipsis when cut.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	rs := []rune(s)
	return string(rs[:n]) + "…"
}
