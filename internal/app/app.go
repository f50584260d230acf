// Package app assembles the bot from configuration: infrastructure, the
// profile store, the conversation engine and the Telegram adapter.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/lovematch/core/bootstrap"
	corecmd "github.com/m3rciful/lovematch/core/cmd"
	"github.com/m3rciful/lovematch/core/logger"
	tg "github.com/m3rciful/lovematch/core/telegram"
	"github.com/m3rciful/lovematch/core/telegram/sender"
	"github.com/m3rciful/lovematch/internal/bot"
	"github.com/m3rciful/lovematch/internal/config"
	"github.com/m3rciful/lovematch/internal/flow"
	"github.com/m3rciful/lovematch/internal/metrics"
	"github.com/m3rciful/lovematch/internal/store"
)

const loadTimeout = 30 * time.Second

// App is the assembled bot.
type App struct {
	cfg      *config.Config
	store    *store.Store
	bot      *bot.Bot
	alerter  *bot.Alerter
	registry *tg.Registry
	closer   func() error
}

// Options override infrastructure steps; zero values use the defaults.
type Options struct {
	Bootstrap func(bootstrap.Options) (*bootstrap.Result, error)
}

// Bootstrap builds the app from cfg and loads the profile table.
func Bootstrap(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	run := opts.Bootstrap
	if run == nil {
		run = bootstrap.Run
	}
	res, err := run(bootstrap.Options{Config: cfg.CoreConfig(), Database: cfg.Database, Migrate: Migrate})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	persister, closer, err := store.Open(ctx, cfg.Storage, res.DB)
	if err != nil {
		_ = res.Close()
		return nil, fmt.Errorf("app: open store: %w", err)
	}
	st := store.New(persister, cfg.Storage.Backend)
	if err := st.Load(ctx); err != nil {
		_ = closer()
		return nil, fmt.Errorf("app: load profiles: %w", err)
	}

	alerter := &bot.Alerter{}
	engine := flow.New(st, alerter, flow.Options{SupportHandle: cfg.Bot.SupportHandle})
	b := bot.New(engine, st, cfg.Telegram.AdminID)
	reg := tg.NewRegistry()
	if err := b.Register(reg); err != nil {
		_ = closer()
		return nil, err
	}

	return &App{
		cfg:      cfg,
		store:    st,
		bot:      b,
		alerter:  alerter,
		registry: reg,
		closer:   closer,
	}, nil
}

// Store returns the profile store.
func (a *App) Store() *store.Store { return a.store }

// TelegramRunOptions describes the runtime for the core runner.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	return tg.RunOptions{
		Config:   core,
		Registry: a.registry,
		DispatcherOptions: sender.Options{
			QueueSize:    core.Sender.QueueSize,
			Workers:      core.Sender.Workers,
			MaxRetries:   core.Sender.MaxRetries,
			RetryBackoff: time.Duration(core.Sender.RetryBackoffMS) * time.Millisecond,
		},
		Middlewares: tg.DefaultMiddlewares(core, onLimited),
		Routes:      a.bot.Routes(a.registry),
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			if rt.Bot != nil {
				a.alerter.Bind(rt.Bot, rt.Dispatcher)
			}
			counts := a.store.CountByState()
			total := 0
			for _, n := range counts {
				total += n
			}
			logger.LogEvent(ctx, logger.Store, slog.LevelInfo, "store.ready",
				slog.String("backend", a.cfg.Storage.Backend),
				slog.Int("profiles", total),
			)
			return nil
		},
		OnStop: func(ctx context.Context, rt tg.Runtime) error {
			if rt.Dispatcher != nil {
				logger.LogEvent(ctx, logger.Notify, slog.LevelInfo, "notify.stop",
					slog.Uint64("send_errors", rt.Dispatcher.ErrorCount()),
				)
			}
			return a.Close()
		},
	}, nil
}

// Services runs the metrics listener next to the bot when configured.
func (a *App) Services() []corecmd.Service {
	addr := a.cfg.Metrics.Listen
	if addr == "" {
		return nil
	}
	return []corecmd.Service{
		func(ctx context.Context) error { return metrics.Serve(ctx, addr) },
	}
}

// Close releases the store backend.
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer()
	a.closer = nil
	return err
}

func onLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: "⏳ Slow down a little."})
	}
	return nil
}
