package tgui

import (
	"fmt"
	"html"
)

// H is HTML already safe for Telegram's HTML parse mode.
type H string

func (h H) String() string { return string(h) }

// Esc escapes arbitrary text for HTML parse mode.
func Esc(s string) H { return H(html.EscapeString(s)) }

func tag(name string, inner H) H { return H("<" + name + ">" + string(inner) + "</" + name + ">") }

func B(s string) H    { return tag("b", Esc(s)) }
func I(s string) H    { return tag("i", Esc(s)) }
func Code(s string) H { return tag("code", Esc(s)) }

// Mention links a display name to a Telegram user id.
func Mention(name string, userID int64) H {
	return H(fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(name)))
}
