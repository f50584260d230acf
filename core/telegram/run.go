package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/lovematch/core/config"
	"github.com/m3rciful/lovematch/core/logger"
	tgsender "github.com/m3rciful/lovematch/core/telegram/sender"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram composes and runs a Telegram bot until the provided context is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}

	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	pollOpts := pollerOptions(cfg)

	buildStart := time.Now()
	bot, err := tele.NewBot(botSettings(ctx, cfg, pollOpts))
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	buildTook := time.Since(buildStart)

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}

	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: reg}

	logMode(ctx, pollOpts, buildTook)
	if !pollOpts.UsesWebhook() && !opts.DisableWebhookCleanup {
		// A leftover webhook makes getUpdates fail with 409.
		if err := bot.RemoveWebhook(false); err != nil {
			logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "delete_webhook",
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		}
	}

	wire(bot, opts.Middlewares, opts.Routes)
	InitBotCommands(bot, reg)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			dispatcher.Close()
			return err
		}
	}

	runErr := serve(ctx, bot)

	// Queued alerts drain before the stop hook releases what they depend on.
	dispatcher.Close()
	if opts.OnStop != nil {
		if err := opts.OnStop(context.WithoutCancel(ctx), rt); err != nil {
			return err
		}
	}
	return runErr
}

func pollerOptions(cfg *coreconfig.Config) PollerOptions {
	return PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
	}
}

// botSettings builds the telebot settings. Dial retries share the sender
// retry budget.
func botSettings(ctx context.Context, cfg *coreconfig.Config, poll PollerOptions) tele.Settings {
	return tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: BuildPoller(poll),
		Client: BuildHTTPClient(ClientOptions{
			PollTimeout:  poll.PollTimeout(),
			DialRetries:  cfg.Sender.MaxRetries,
			RetryBackoff: time.Duration(cfg.Sender.RetryBackoffMS) * time.Millisecond,
		}),
		OnError: func(err error, c tele.Context) {
			attrs := []slog.Attr{slog.String("err", logger.SanitizeLimit(err.Error(), 256))}
			if c != nil && c.Sender() != nil {
				attrs = append(attrs, slog.Int64("user_id", c.Sender().ID))
			}
			logger.LogEvent(ctx, logger.TG, slog.LevelError, "tg.error", attrs...)
		},
	}
}

func wire(bot *tele.Bot, mws []Middleware, routes []Route) {
	for _, mw := range mws {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range routes {
		if route.Endpoint != nil && route.Handler != nil {
			bot.Handle(route.Endpoint, route.Handler)
		}
	}
}

// serve runs the poller until ctx ends. A cancelled context is a clean stop.
func serve(ctx context.Context, bot *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		bot.Stop()
		<-done
	}
	if err := ctx.Err(); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func logMode(ctx context.Context, opts PollerOptions, took time.Duration) {
	attrs := []slog.Attr{
		slog.String("event", "mode"),
		slog.Any("allowed_updates", AllowedUpdates),
		slog.Duration("duration", logger.RoundMS(took)),
	}
	if opts.UsesWebhook() {
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("public_url", opts.Webhook.URL),
		)
	} else {
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("poll_timeout", opts.PollTimeout()),
		)
	}
	logger.TG.LogAttrs(ctx, slog.LevelInfo, "", attrs...)
}
