package logger

import (
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Status maps err to the status label used by logs and metrics.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Took returns the time since start rounded to milliseconds.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds d to milliseconds. Negative durations become zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// Preview renders at most limit values under key, noting how many were left out.
func Preview(key string, values []string, limit int) slog.Attr {
	if limit < 0 {
		limit = 0
	}
	if len(values) <= limit {
		return slog.String(key, strings.Join(values, ", "))
	}
	rest := len(values) - limit
	return slog.String(key, strings.Join(values[:limit], ", ")+" (+"+strconv.Itoa(rest)+" more)")
}
