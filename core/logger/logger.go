// Package logger provides the process-wide structured loggers. Each
// subsystem logs through its own component logger so records can be
// filtered by the "component" attribute.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/lovematch/core/buildinfo"
	coreconfig "github.com/m3rciful/lovematch/core/config"
)

const defaultDebugSample = 50

var (
	initOnce sync.Once
	closeMu  sync.Mutex
	closers  []io.Closer

	levelVar      slog.LevelVar
	debugSampler  = newRatioSampler(1, defaultDebugSample)
	traceOverride bool

	// L is the base logger. It writes to the slog default until InitLogger runs.
	L *slog.Logger

	// App logs process lifecycle.
	App *slog.Logger
	// DB logs database connection events.
	DB *slog.Logger
	// MIG logs schema migrations.
	MIG *slog.Logger
	// TG logs incoming Telegram updates and handler outcomes.
	TG *slog.Logger
	// TWire logs Telegram wiring steps.
	TWire *slog.Logger
	// Sender logs outbound Telegram calls made by the dispatcher.
	Sender *slog.Logger
	// Store logs profile store persistence.
	Store *slog.Logger
	// Flow logs conversation transitions.
	Flow *slog.Logger
	// Notify logs new-match alert fan-out.
	Notify *slog.Logger
	// Metrics logs the metrics HTTP listener.
	Metrics *slog.Logger
)

func init() {
	L = slog.New(&contextHandler{next: slog.Default().Handler()})
	wireComponents()
}

// InitLogger configures the global structured logger. Only the first call
// has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	initOnce.Do(func() {
		if cfg == nil {
			cfg = &coreconfig.Config{}
		}
		levelVar.Set(parseLevel(cfg.Logging.Level))
		debugSampler.Set(parseDebugSample(cfg.Logging.DebugSample))
		traceOverride = isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE"))

		out, err := openOutput(cfg.Logging)
		if err != nil {
			initErr = err
			return
		}
		L = slog.New(newHandler(out, selectFormat(cfg.Logging), &levelVar))
		slog.SetDefault(L)
		wireComponents()

		L.LogAttrs(context.Background(), slog.LevelInfo, "",
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build", buildinfo.String()),
			slog.String("cfg_profile", profile(cfg.Logging)),
		)
	})
	return initErr
}

func wireComponents() {
	component := func(name string) *slog.Logger { return L.With("component", name) }
	App = component("app")
	DB = component("db")
	MIG = component("db.migrate")
	TG = component("tg")
	TWire = component("tg.wire")
	Sender = component("tg.sender")
	Store = component("store")
	Flow = component("flow")
	Notify = component("notify")
	Metrics = component("metrics")
}

// Shutdown closes opened log files. Calling it more than once is a no-op.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	closers = nil
	return errors.Join(errs...)
}

// selectFormat picks JSON unless kv is asked for, or the profile is a
// development one and no format is set.
func selectFormat(cfg coreconfig.LoggingConfig) logFormat {
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	switch profile(cfg) {
	case "debug", "dev":
		return formatKV
	}
	return formatJSON
}

// parseLevel accepts slog level names, "warning" and offsets like "debug-2".
func parseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if s == "" || lvl.UnmarshalText([]byte(s)) != nil {
		return slog.LevelInfo
	}
	return lvl
}

// openOutput writes to stdout and, when a log file is configured, appends
// to it as well.
func openOutput(cfg coreconfig.LoggingConfig) (io.Writer, error) {
	dir, file := strings.TrimSpace(cfg.Dir), strings.TrimSpace(cfg.BotFile)
	if dir == "" || file == "" {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logger: create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, file), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open log file: %w", err)
	}
	closeMu.Lock()
	closers = append(closers, f)
	closeMu.Unlock()
	return io.MultiWriter(os.Stdout, f), nil
}

func profile(cfg coreconfig.LoggingConfig) string {
	if p := strings.ToLower(strings.TrimSpace(cfg.Profile)); p != "" {
		return p
	}
	return "prod"
}

// LogEvent logs attrs under the given event name using logg or the context logger.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// parseDebugSample reads logging.debug_sample. An explicit "0" disables
// sampling; anything unparsable keeps the default of one in fifty.
func parseDebugSample(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 1, defaultDebugSample
	}
	if spec == "0" {
		return 0, 0
	}
	num, den := parseRatioSpec(spec)
	if num <= 0 || den <= 0 {
		return 1, defaultDebugSample
	}
	return num, den
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether debug-level details should be logged for high-volume events.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}
