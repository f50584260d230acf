// Package helpers carries per-update logging context through telebot handlers.
package helpers

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/lovematch/core/logger"
)

const (
	contextKey = "logger_ctx"
	ridKey     = "rid"
)

// IDs returns the update, chat and sender ids of c. Missing parts are zero.
func IDs(c tele.Context) (updateID int, chatID, userID int64) {
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	return c.Update().ID, chatID, userID
}

// Attach starts a fresh logging context for the update in c and caches it.
func Attach(c tele.Context) context.Context {
	updateID, chatID, userID := IDs(c)
	rid := logger.BuildRID(updateID, chatID, userID)
	c.Set(ridKey, rid)

	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.TG)
	c.Set(contextKey, ctx)
	return ctx
}

// BuildContext returns the cached logging context for c, attaching one
// when no middleware has done so yet.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(contextKey).(context.Context); ok {
		return ctx
	}
	return Attach(c)
}

// WithHandler tags the cached context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	c.Set(contextKey, ctx)
	return ctx
}
