package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	tele "gopkg.in/telebot.v4"
)

const (
	messagesKey = "messages"
	keyboardKey = "kb"
)

var messagesSent = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tg_messages_sent_total",
		Help: "Messages sent or edited in reply to updates, by content kind.",
	},
	[]string{"op", "kind", "kb"},
)

// countingContext counts what a handler sends so the handler summary can
// report it.
type countingContext struct{ tele.Context }

func (m countingContext) count(op string, what any, opts []any) {
	kb := hasKeyboard(what, opts)
	n, _ := m.Get(messagesKey).(int)
	m.Set(messagesKey, n+1)
	if kb {
		m.Set(keyboardKey, true)
	}
	kbLabel := "false"
	if kb {
		kbLabel = "true"
	}
	messagesSent.WithLabelValues(op, contentKind(what), kbLabel).Inc()
}

func contentKind(what any) string {
	switch what.(type) {
	case string:
		return "text"
	case *tele.Photo:
		return "photo"
	case *tele.ReplyMarkup:
		return "markup"
	}
	return "other"
}

func hasKeyboard(what any, opts []any) bool {
	if rm, ok := what.(*tele.ReplyMarkup); ok && rm != nil {
		return true
	}
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// Send counts successful sends.
func (m countingContext) Send(what any, opts ...any) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.count("send", what, opts)
	}
	return err
}

// Edit counts successful edits.
func (m countingContext) Edit(what any, opts ...any) error {
	err := m.Context.Edit(what, opts...)
	if err == nil {
		m.count("edit", what, opts)
	}
	return err
}

// MessageMetricsMiddleware instruments c to track what the handler sends.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(messagesKey, 0)
		c.Set(keyboardKey, false)
		return next(countingContext{Context: c})
	}
}

// GetCounters returns how many messages the handler sent and whether any
// carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	msgs, _ := c.Get(messagesKey).(int)
	kb, _ := c.Get(keyboardKey).(bool)
	return msgs, kb
}
