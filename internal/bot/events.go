package bot

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/lovematch/core/telegram/callbacks"
	"github.com/m3rciful/lovematch/internal/flow"
)

func baseEvent(c tele.Context, kind flow.EventKind) flow.Event {
	ev := flow.Event{Kind: kind}
	if u := c.Sender(); u != nil {
		ev.UserID = u.ID
		ev.Handle = u.Username
	}
	return ev
}

func commandEvent(c tele.Context, command string) flow.Event {
	ev := baseEvent(c, flow.EventCommand)
	ev.Command = strings.TrimPrefix(command, "/")
	return ev
}

func actionEvent(c tele.Context) flow.Event {
	ev := baseEvent(c, flow.EventAction)
	ev.Action, ev.Payload = callbacks.Split(c.Callback())
	return ev
}

// messageEvent maps a text or photo message. Telegram hands telebot only
// the largest rendition, so a photo yields at most one size.
func messageEvent(c tele.Context) flow.Event {
	msg := c.Message()
	if msg != nil && msg.Photo != nil {
		ev := baseEvent(c, flow.EventPhoto)
		if msg.Photo.FileID != "" {
			ev.Photos = []flow.PhotoSize{{
				FileID: msg.Photo.FileID,
				Width:  msg.Photo.Width,
				Height: msg.Photo.Height,
			}}
		}
		return ev
	}
	ev := baseEvent(c, flow.EventText)
	ev.Text = c.Text()
	return ev
}
