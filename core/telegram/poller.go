package telegram

import (
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/lovematch/core/config"
)

const defaultPollTimeout = 10 * time.Second

// AllowedUpdates lists the update kinds the bot reacts to. Telegram
// drops everything else server-side.
var AllowedUpdates = []string{"message", "callback_query"}

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
}

// UsesWebhook reports whether updates arrive through the webhook listener.
func (o PollerOptions) UsesWebhook() bool {
	return strings.EqualFold(strings.TrimSpace(o.RunMode), coreconfig.RunModeWebhook)
}

// PollTimeout is how long a single getUpdates call may be held open.
func (o PollerOptions) PollTimeout() time.Duration {
	if o.UsesWebhook() {
		return 0
	}
	if o.LongPollTimeoutSeconds <= 0 {
		return defaultPollTimeout
	}
	return time.Duration(o.LongPollTimeoutSeconds) * time.Second
}

// BuildPoller returns the webhook listener or a long poller.
func BuildPoller(opts PollerOptions) tele.Poller {
	if opts.UsesWebhook() {
		return &tele.Webhook{
			Listen:         fmt.Sprintf("%s:%d", opts.Webhook.Listen, opts.Webhook.Port),
			AllowedUpdates: AllowedUpdates,
			Endpoint:       &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
		}
	}
	return &tele.LongPoller{
		Timeout:        opts.PollTimeout(),
		AllowedUpdates: AllowedUpdates,
	}
}
