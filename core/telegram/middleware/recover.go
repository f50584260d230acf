package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/lovematch/core/logger"
	tghelpers "github.com/m3rciful/lovematch/core/telegram/helpers"
)

// RecoverMiddleware turns a handler panic into an error. A pending button
// press is still answered so the client does not spin until timeout.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelError, "tg.panic",
				slog.Any("err", r),
				slog.String("stack", logger.SanitizeLimit(string(debug.Stack()), 4096)),
			)
			if c.Callback() != nil {
				_ = c.Respond()
			}
			err = fmt.Errorf("handler panic: %v", r)
		}()
		return next(c)
	}
}
