package bot

import (
	"context"
	"errors"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/lovematch/core/telegram/keyboard"
	"github.com/m3rciful/lovematch/internal/flow"
)

var errNoCallback = errors.New("bot: edit without a pressed button")

// contextTransport answers in the chat of the update being handled.
type contextTransport struct {
	c tele.Context
}

func (t contextTransport) Reply(_ context.Context, text string, kb *flow.Keyboard) error {
	return t.send(text, kb)
}

func (t contextTransport) ReplyWithImage(_ context.Context, image, caption string, kb *flow.Keyboard) error {
	return t.send(&tele.Photo{File: tele.File{FileID: image}, Caption: caption}, kb)
}

func (t contextTransport) send(what any, kb *flow.Keyboard) error {
	m, err := markup(kb)
	if err != nil {
		return err
	}
	if m != nil {
		return t.c.Send(what, m)
	}
	return t.c.Send(what)
}

// EditLast edits the message carrying the pressed button. An empty text
// swaps only the inline keyboard; a text without keyboard drops it.
func (t contextTransport) EditLast(_ context.Context, text string, kb *flow.Keyboard) error {
	if t.c.Callback() == nil {
		return errNoCallback
	}
	m, err := markup(kb)
	if err != nil {
		return err
	}
	switch {
	case text == "" && m == nil:
		return t.c.Edit(&tele.ReplyMarkup{})
	case text == "":
		return t.c.Edit(m)
	case m != nil:
		return t.c.Edit(text, m)
	}
	return t.c.Edit(text)
}

// markup renders kb with the core keyboard helpers. Button actions become
// callback uniques and payloads the callback data.
func markup(kb *flow.Keyboard) (*tele.ReplyMarkup, error) {
	switch {
	case kb == nil:
		return nil, nil
	case len(kb.Inline) > 0:
		rows := make([][]keyboard.Button, len(kb.Inline))
		for i, row := range kb.Inline {
			rows[i] = make([]keyboard.Button, len(row))
			for j, b := range row {
				rows[i][j] = keyboard.Button{Text: b.Label, Unique: b.Action, Data: b.Payload}
			}
		}
		return keyboard.Inline(rows...)
	case len(kb.Reply) > 0:
		return keyboard.Reply(kb.Reply...), nil
	}
	return nil, nil
}
