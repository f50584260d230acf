// Package keyboard renders inline and reply keyboards for telebot.
package keyboard

import (
	"fmt"

	tele "gopkg.in/telebot.v4"
)

// MaxCallbackData is Telegram's limit on callback_data, in bytes.
const MaxCallbackData = 64

// Button is one inline button. Unique selects the callback handler and
// Data is passed to it.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// encodedLen is the size of the "\f<unique>|<data>" string telebot sends.
func (b Button) encodedLen() int {
	n := 1 + len(b.Unique)
	if b.Data != "" {
		n += 1 + len(b.Data)
	}
	return n
}

// Inline builds an inline keyboard. It fails when a button would be
// rejected by Telegram for oversized callback data.
func Inline(rows ...[]Button) (*tele.ReplyMarkup, error) {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			if n := b.encodedLen(); n > MaxCallbackData {
				return nil, fmt.Errorf("keyboard: button %q carries %d bytes of callback data, limit %d", b.Text, n, MaxCallbackData)
			}
			out = append(out, *markup.Data(b.Text, b.Unique, b.Data).Inline())
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, out)
	}
	return markup, nil
}

// Reply builds a resized reply keyboard that stays open between messages.
func Reply(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true, IsPersistent: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		buttons := make([]tele.Btn, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}
