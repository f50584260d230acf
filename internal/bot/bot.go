// Package bot adapts the conversation engine to telebot: it maps updates to
// engine events, renders keyboards and registers commands and callbacks.
package bot

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/lovematch/core/logger"
	tg "github.com/m3rciful/lovematch/core/telegram"
	tghelpers "github.com/m3rciful/lovematch/core/telegram/helpers"
	"github.com/m3rciful/lovematch/core/telegram/router"
	"github.com/m3rciful/lovematch/internal/flow"
	"github.com/m3rciful/lovematch/internal/profile"
)

// Stats reports how many profiles sit in each state.
type Stats interface {
	CountByState() map[profile.State]int
}

// Bot wires the engine into the Telegram runtime.
type Bot struct {
	engine  *flow.Engine
	stats   Stats
	adminID int64
}

// New returns a Bot over engine. stats backs the admin /stats command.
func New(engine *flow.Engine, stats Stats, adminID int64) *Bot {
	return &Bot{engine: engine, stats: stats, adminID: adminID}
}

type command struct {
	name        string
	description string
	menu        string
}

var commands = []command{
	{flow.CommandStart, "Start or resume", ""},
	{flow.CommandMatches, "See matches", flow.MenuMatches},
	{flow.CommandProfile, "Show your profile", flow.MenuProfile},
	{flow.CommandEdit, "Edit your profile", flow.MenuEdit},
	{flow.CommandHelp, "How it works", flow.MenuHelp},
	{flow.CommandSupport, "Contact support", flow.MenuSupport},
}

// Register adds commands, callbacks and fallbacks to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	for _, cmd := range commands {
		var aliases []string
		if cmd.menu != "" {
			aliases = []string{cmd.menu}
		}
		err := reg.RegisterCommand("/"+cmd.name, tg.Command{
			Handler:     b.commandHandler(cmd.name),
			Description: cmd.description,
			Aliases:     aliases,
		})
		if err != nil {
			return fmt.Errorf("bot: register command %s: %w", cmd.name, err)
		}
	}
	err := reg.RegisterCommand("/stats", tg.Command{
		Handler:     b.handleStats,
		Description: "Profile counts by state",
		AdminOnly:   true,
		Hidden:      true,
	})
	if err != nil {
		return fmt.Errorf("bot: register command stats: %w", err)
	}

	for _, action := range flow.Actions {
		if err := reg.RegisterCallback(action, b.handleCallback); err != nil {
			return fmt.Errorf("bot: register callback %s: %w", action, err)
		}
	}
	reg.SetCallbackNotFound(func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: "This button is no longer active."})
	})
	reg.SetTextFallback(b.Handle)
	return nil
}

// Routes returns every handler the bot serves.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: b.adminID,
		OnAdminReject: func(c tele.Context) error {
			return b.Handle(c)
		},
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	return append(routes, router.MessageRoutes(b, reg, router.MessageOptions{
		UnknownPhoto: b.Handle,
	})...)
}

// InProgress reports whether the sender already has a profile, so free
// text goes to the conversation first.
func (b *Bot) InProgress(userID int64) bool {
	return b.engine.InProgress(userID)
}

// Handle feeds a text or photo message to the engine.
func (b *Bot) Handle(c tele.Context) error {
	return b.dispatch(c, messageEvent(c))
}

func (b *Bot) commandHandler(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		return b.dispatch(c, commandEvent(c, name))
	}
}

func (b *Bot) handleCallback(c tele.Context) error {
	return b.dispatch(c, actionEvent(c))
}

func (b *Bot) dispatch(c tele.Context, ev flow.Event) error {
	if ev.UserID == 0 {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	logger.LogEvent(ctx, logger.Flow, slog.LevelDebug, "flow.event",
		slog.String("kind", ev.Kind.String()),
		slog.String("command", ev.Command),
		slog.String("action", ev.Action),
	)
	return b.engine.Handle(ctx, ev, contextTransport{c: c})
}

func (b *Bot) handleStats(c tele.Context) error {
	if b.stats == nil {
		return c.Send("No stats available.")
	}
	counts := b.stats.CountByState()
	states := make([]profile.State, 0, len(counts))
	total, onboarding := 0, 0
	for st, n := range counts {
		states = append(states, st)
		total += n
		if st.Onboarding() {
			onboarding += n
		}
	}
	slices.Sort(states)

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Profiles: %d (onboarding: %d)", total, onboarding)
	for _, st := range states {
		fmt.Fprintf(&sb, "\n%s: %d", st, counts[st])
	}
	return c.Send(sb.String())
}
