package router

import (
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/lovematch/core/telegram"
	"github.com/m3rciful/lovematch/core/telegram/middleware"
)

// Conversation is the per-user dialogue that owns free-form messages.
type Conversation interface {
	// InProgress reports whether userID already has a dialogue to continue.
	InProgress(userID int64) bool
	Handle(c tele.Context) error
}

// MessageOptions controls fallback behaviour for text and photo updates.
type MessageOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownPhoto tele.HandlerFunc
}

// MessageRoutes builds handlers for text and photo routing. Messages go to
// the conversation when one is in progress, then to registered commands and
// aliases, then to the registry's text fallback.
func MessageRoutes(conv Conversation, reg *tg.Registry, opts MessageOptions) []tg.Route {
	inProgress := func(c tele.Context) bool {
		return conv != nil && c.Sender() != nil && conv.InProgress(c.Sender().ID)
	}

	textHandler := func(c tele.Context) error {
		start := time.Now()

		if inProgress(c) {
			return handleWithSummary(c, "conversation.text", start, func() error {
				return conv.Handle(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}
		logSkip(c, "unknown_text", start)
		return nil
	}

	photoHandler := func(c tele.Context) error {
		start := time.Now()
		if inProgress(c) {
			return handleWithSummary(c, "conversation.photo", start, func() error {
				return conv.Handle(c)
			})
		}
		if opts.UnknownPhoto != nil {
			return handleWithSummary(c, "unexpected_photo", start, func() error {
				return opts.UnknownPhoto(c)
			})
		}
		logSkip(c, "unexpected_photo", start)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(textHandler)),
		},
		{
			Endpoint: tele.OnPhoto,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(photoHandler)),
		},
	}
}
