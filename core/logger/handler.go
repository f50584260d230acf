package logger

import (
	"context"
	"io"
	"log/slog"
	"time"
)

const timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"
)

// contextHandler decorates records with the correlation metadata stored in ctx.
type contextHandler struct {
	next slog.Handler
}

func newHandler(w io.Writer, format logFormat, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr}
	var base slog.Handler
	if format == formatKV {
		base = slog.NewTextHandler(w, opts)
	} else {
		base = slog.NewJSONHandler(w, opts)
	}
	return &contextHandler{next: base}
}

// Enabled reports whether the wrapped handler accepts level.
func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle appends the correlation metadata of ctx before delegating.
func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(metaFrom(ctx).attrs()...)
	return h.next.Handle(ctx, r)
}

// WithAttrs returns a handler carrying attrs on every record.
func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs)}
}

// WithGroup returns a handler nesting subsequent attrs under name.
func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name)}
}

// replaceAttr keeps timestamps at millisecond precision in UTC and drops the
// empty message emitted by event-style calls.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		if t, ok := a.Value.Any().(time.Time); ok {
			return slog.String("ts", t.UTC().Truncate(time.Millisecond).Format(timeFormatMillis))
		}
	case slog.MessageKey:
		if a.Value.String() == "" {
			return slog.Attr{}
		}
	}
	return a
}
