package bot

import (
	"context"
	"log/slog"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/lovematch/core/logger"
	"github.com/m3rciful/lovematch/core/telegram/sender"
	"github.com/m3rciful/lovematch/internal/metrics"
)

// messenger is the part of *tele.Bot used for out-of-band messages.
type messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// submitter is the part of *sender.Dispatcher used for alerts.
type submitter interface {
	Submit(ctx context.Context, action, endpoint string, run func() error) bool
}

var _ submitter = (*sender.Dispatcher)(nil)

// Alerter delivers new-match alerts through the sender dispatcher. It is
// bound to the bot once the runtime starts; alerts before that are dropped.
type Alerter struct {
	mu    sync.RWMutex
	bot   messenger
	queue submitter
}

// Bind attaches the running bot and its dispatcher.
func (a *Alerter) Bind(bot messenger, queue submitter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bot, a.queue = bot, queue
}

// Alert queues text for chat to and returns without waiting for delivery.
func (a *Alerter) Alert(ctx context.Context, to int64, text string) {
	a.mu.RLock()
	bot, queue := a.bot, a.queue
	a.mu.RUnlock()

	if bot == nil || queue == nil {
		metrics.Alerts.WithLabelValues("dropped").Inc()
		logger.LogEvent(ctx, logger.Notify, slog.LevelWarn, "notify.dropped",
			slog.Int64("to", to),
			slog.String("reason", "not_started"),
		)
		return
	}

	// Delivery outlives the update that triggered it.
	ctx = logger.WithChat(context.WithoutCancel(ctx), to)
	run := func() error {
		_, err := bot.Send(tele.ChatID(to), text)
		return err
	}
	if queue.Submit(ctx, "alert", "sendMessage", run) {
		metrics.Alerts.WithLabelValues("queued").Inc()
		return
	}
	metrics.Alerts.WithLabelValues("fallback").Inc()
}
