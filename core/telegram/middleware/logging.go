package middleware

import (
	"log/slog"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/lovematch/core/logger"
	"github.com/m3rciful/lovematch/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/lovematch/core/telegram/helpers"
)

const loggedKey = "update_logged"

// LoggerMiddleware attaches the logging context and writes one sampled
// update.received line per update, even though routes wrap it again on top
// of the global chain. Message texts carry profile data, so only their
// length is logged.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Get(loggedKey) != nil {
			return next(c)
		}
		c.Set(loggedKey, true)
		ctx := tghelpers.Attach(c)
		if logger.ShouldSampleDebug() {
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context) []slog.Attr {
	attrs := make([]slog.Attr, 0, 6)
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.Int64("chat_id", chat.ID), slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil && user.LanguageCode != "" {
		attrs = append(attrs, slog.String("lang", user.LanguageCode))
	}

	upd := c.Update()
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.Split(upd.Callback)
		attrs = append(attrs,
			slog.String("kind", "callback"),
			slog.String("cb_key", logger.SanitizeLimit(key, 64)),
			slog.String("cb_payload", logger.SanitizeLimit(payload, 64)),
		)
	case upd.Message != nil && upd.Message.Photo != nil:
		attrs = append(attrs, slog.String("kind", "photo"))
	case upd.Message != nil:
		attrs = append(attrs,
			slog.String("kind", "text"),
			slog.Int("text_len", utf8.RuneCountInString(upd.Message.Text)),
		)
	}
	return attrs
}
