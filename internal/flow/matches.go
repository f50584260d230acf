package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/lovematch/core/logger"
	"github.com/m3rciful/lovematch/internal/metrics"
	"github.com/m3rciful/lovematch/internal/profile"
)

// FindMatches filters profiles to completed ones of the other gender with a
// valid age whose location equals location exactly. Input order is kept.
func FindMatches(requester profile.Profile, location string, profiles []profile.Profile) []profile.Profile {
	var out []profile.Profile
	for _, p := range profiles {
		if p.ID == requester.ID ||
			p.State != profile.Completed ||
			!p.Gender.Valid() ||
			p.Gender == requester.Gender ||
			!profile.ValidAge(p.Age) ||
			p.Location != location {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (e *Engine) startMatches(ctx context.Context, tr Transport, p profile.Profile) error {
	p.MatchStep = profile.MatchAwaitingLocation
	if err := e.save(ctx, p, p.State); err != nil {
		return err
	}
	return tr.Reply(ctx, textMatchWhere, locationKeyboard(ActionMatchLocation))
}

func (e *Engine) matchLocation(ctx context.Context, tr Transport, p profile.Profile, payload string) error {
	if !p.IsCompleted() || p.MatchStep != profile.MatchAwaitingLocation {
		return e.reprompt(ctx, tr, p)
	}
	if payload == payloadOther {
		p.MatchStep = profile.MatchAwaitingLocationTyped
		if err := e.save(ctx, p, p.State); err != nil {
			return err
		}
		return tr.Reply(ctx, textMatchTyped, nil)
	}
	loc, ok := pick(profile.Locations, payload)
	if !ok {
		return tr.Reply(ctx, textMatchWhere, locationKeyboard(ActionMatchLocation))
	}
	e.editLast(ctx, tr, "🌍 Searching in: "+loc, nil)
	return e.searchIn(ctx, tr, p, loc)
}

func (e *Engine) matchTyped(ctx context.Context, tr Transport, p profile.Profile, text string) error {
	loc := strings.TrimSpace(text)
	if !profile.ValidString(loc) {
		return tr.Reply(ctx, textMatchTyped, nil)
	}
	return e.searchIn(ctx, tr, p, loc)
}

// searchIn closes the browse sub-flow and lists matches in loc.
func (e *Engine) searchIn(ctx context.Context, tr Transport, p profile.Profile, loc string) error {
	p.MatchStep = profile.MatchIdle
	p.MatchLocation = loc
	if err := e.save(ctx, p, p.State); err != nil {
		return err
	}

	matches := FindMatches(p, loc, e.store.All())
	logger.LogEvent(ctx, logger.Flow, slog.LevelInfo, "flow.match_search",
		slog.String("location", loc),
		slog.Int("results", len(matches)),
	)
	if len(matches) == 0 {
		metrics.MatchSearches.WithLabelValues("empty").Inc()
		return tr.Reply(ctx, textNoMatches, mainMenu())
	}
	metrics.MatchSearches.WithLabelValues("found").Inc()

	for _, m := range matches {
		caption := profile.MatchCaption(m)
		var err error
		if m.Photo != "" {
			err = tr.ReplyWithImage(ctx, m.Photo, caption, revealKeyboard(m.ID))
		} else {
			err = tr.Reply(ctx, caption, revealKeyboard(m.ID))
		}
		if err != nil {
			return err
		}
	}
	return tr.Reply(ctx, textMatchesHeader, mainMenu())
}

// reveal shows a match's contact if the target is still completed.
func (e *Engine) reveal(ctx context.Context, tr Transport, payload string) error {
	id, err := strconv.ParseInt(payload, 10, 64)
	target, ok := e.store.Get(id)
	if err != nil || !ok || !target.IsCompleted() {
		metrics.Reveals.WithLabelValues("not_found").Inc()
		return tr.Reply(ctx, textNoContact, nil)
	}
	metrics.Reveals.WithLabelValues("shown").Inc()
	return tr.Reply(ctx, fmt.Sprintf("📞 Contact info:\n%s (%s)", target.Handle, target.ContactLabel()), nil)
}

// NotifyNewMatch alerts every completed profile compatible with sourceID
// that has not been told about it yet. Each (waiting, source) pair is
// alerted at most once, however often this runs.
func (e *Engine) NotifyNewMatch(ctx context.Context, sourceID int64) error {
	src, ok := e.store.Get(sourceID)
	if !ok || !src.IsCompleted() || !profile.ValidAge(src.Age) {
		return nil
	}

	start := time.Now()
	var errs []error
	alerted := 0
	for _, w := range e.store.All() {
		if w.ID == src.ID || !w.IsCompleted() || w.Gender == src.Gender || !profile.ValidAge(w.Age) {
			continue
		}
		fresh, err := e.store.MarkNotified(ctx, w.ID, src.ID)
		if err != nil {
			metrics.Alerts.WithLabelValues("mark_failed").Inc()
			errs = append(errs, fmt.Errorf("mark %d: %w", w.ID, err))
			continue
		}
		if !fresh {
			continue
		}
		alerted++
		if e.alerter != nil {
			e.alerter.Alert(ctx, w.ID, AlertText)
		}
	}

	logger.LogEvent(ctx, logger.Notify, slog.LevelInfo, "notify.fanout",
		slog.Int64("source_id", src.ID),
		slog.Int("alerted", alerted),
		slog.Duration("duration", logger.Took(start)),
	)
	return errors.Join(errs...)
}
