package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/lovematch/core/logger"
	"github.com/m3rciful/lovematch/internal/metrics"
	"github.com/m3rciful/lovematch/internal/profile"
)

// ErrSave marks a failed profile write. The user got a generic failure
// reply and the profile is unchanged.
var ErrSave = errors.New("flow: save profile")

// Options tune user-facing texts.
type Options struct {
	// SupportHandle is shown by the Support command, e.g. "@LoveMatchHelp".
	SupportHandle string
}

// Engine runs both state machines for every user. Events of one user are
// handled one at a time; different users proceed in parallel.
type Engine struct {
	store   Store
	alerter Alerter
	opts    Options
	locks   *keyedMutex
}

// New builds an engine over store. alerter may be nil to disable alerts.
func New(store Store, alerter Alerter, opts Options) *Engine {
	if opts.SupportHandle == "" {
		opts.SupportHandle = "@YourSupportHandle"
	}
	return &Engine{
		store:   store,
		alerter: alerter,
		opts:    opts,
		locks:   newKeyedMutex(),
	}
}

// InProgress reports whether userID already has a profile to continue.
func (e *Engine) InProgress(userID int64) bool {
	_, ok := e.store.Get(userID)
	return ok
}

// Handle processes one event and replies through tr.
func (e *Engine) Handle(ctx context.Context, ev Event, tr Transport) error {
	unlock := e.locks.Lock(ev.UserID)
	defer unlock()

	if ev.Kind == EventText {
		if cmd, ok := MenuCommands[strings.TrimSpace(ev.Text)]; ok {
			ev.Kind, ev.Command = EventCommand, cmd
		} else if cmd, ok := slashCommand(ev.Text); ok {
			ev.Kind, ev.Command = EventCommand, cmd
		}
	}

	var err error
	switch ev.Kind {
	case EventCommand:
		err = e.handleCommand(ctx, tr, ev)
	case EventAction:
		err = e.handleAction(ctx, tr, ev)
	case EventText:
		err = e.handleText(ctx, tr, ev)
	case EventPhoto:
		err = e.handlePhoto(ctx, tr, ev)
	default:
		err = fmt.Errorf("flow: unknown event kind %d", ev.Kind)
	}

	if errors.Is(err, ErrSave) {
		if rerr := tr.Reply(ctx, textSomethingWrong, nil); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}
	return err
}

func (e *Engine) handleCommand(ctx context.Context, tr Transport, ev Event) error {
	p, ok := e.store.Get(ev.UserID)

	switch ev.Command {
	case CommandStart:
		if err := tr.Reply(ctx, textWelcome, nil); err != nil {
			return err
		}
		if err := tr.Reply(ctx, textConsent, nil); err != nil {
			return err
		}
		if !ok {
			return tr.Reply(ctx, textBegin, signUpKeyboard())
		}
		return e.reprompt(ctx, tr, p)

	case CommandMatches, CommandProfile, CommandEdit:
		if !ok || (!p.IsCompleted() && !p.IsEditing()) {
			return tr.Reply(ctx, textCompleteFirst, nil)
		}
		if p.IsEditing() {
			switch ev.Command {
			case CommandMatches:
				return tr.Reply(ctx, textFinishMatches, editMenu(p))
			case CommandProfile:
				return tr.Reply(ctx, textFinishProfile, editMenu(p))
			}
			return e.moveTo(ctx, tr, p, profile.Editing)
		}
		switch ev.Command {
		case CommandMatches:
			return e.startMatches(ctx, tr, p)
		case CommandProfile:
			return e.showOwnProfile(ctx, tr, p)
		}
		return e.moveTo(ctx, tr, p, profile.Editing)

	case CommandHelp:
		return tr.Reply(ctx, textHelp, nil)
	case CommandSupport:
		return tr.Reply(ctx, "💬 Contact support: "+e.opts.SupportHandle, nil)
	}
	if !ok {
		return tr.Reply(ctx, textSignUpFirst, signUpKeyboard())
	}
	return e.reprompt(ctx, tr, p)
}

func (e *Engine) handleAction(ctx context.Context, tr Transport, ev Event) error {
	if ev.Action == ActionSignUp {
		return e.signUp(ctx, tr, ev.UserID)
	}
	if ev.Action == ActionReveal {
		return e.reveal(ctx, tr, ev.Payload)
	}

	p, ok := e.store.Get(ev.UserID)
	if !ok {
		return tr.Reply(ctx, textSignUpFirst, signUpKeyboard())
	}

	switch ev.Action {
	case ActionMatchLocation:
		return e.matchLocation(ctx, tr, p, ev.Payload)
	case ActionEdit:
		f, known := editFields[ev.Payload]
		if !p.IsEditing() || !known {
			return e.reprompt(ctx, tr, p)
		}
		// Switching field abandons an unfinished contact edit.
		p.PendingHandle = ""
		return e.moveTo(ctx, tr, p, statesBySlot[slot{f, stageMain, modeEdit}])
	case ActionEditDone, ActionEditCancel:
		if !p.IsEditing() {
			return e.reprompt(ctx, tr, p)
		}
		from := p.State
		p.State = profile.Completed
		p.PendingHandle = ""
		if err := e.save(ctx, p, from); err != nil {
			return err
		}
		text := textEditDone
		if ev.Action == ActionEditCancel {
			text = textEditCancelled
		}
		return tr.Reply(ctx, text, mainMenu())
	}

	sl, ok := slots[p.State]
	if !ok {
		return e.reprompt(ctx, tr, p)
	}
	return e.handleFieldAction(ctx, tr, p, sl, ev)
}

func (e *Engine) handleText(ctx context.Context, tr Transport, ev Event) error {
	p, ok := e.store.Get(ev.UserID)
	if !ok {
		return tr.Reply(ctx, textSignUpFirst, signUpKeyboard())
	}
	if p.IsCompleted() && p.MatchStep == profile.MatchAwaitingLocationTyped {
		return e.matchTyped(ctx, tr, p, ev.Text)
	}
	sl, ok := slots[p.State]
	if !ok {
		if p.State == profile.Editing {
			return tr.Reply(ctx, textContinueEdit, editMenu(p))
		}
		return tr.Reply(ctx, textNotUnderstood, mainMenu())
	}
	return e.handleFieldText(ctx, tr, p, sl, ev)
}

// handlePhoto stores the largest variant. It completes onboarding or returns
// to the editing hub.
func (e *Engine) handlePhoto(ctx context.Context, tr Transport, ev Event) error {
	p, ok := e.store.Get(ev.UserID)
	if !ok {
		return tr.Reply(ctx, textSignUpFirst, signUpKeyboard())
	}
	sl, ok := slots[p.State]
	if !ok || sl.field != fieldPhoto {
		return e.reprompt(ctx, tr, p)
	}
	best, ok := largest(ev.Photos)
	if !ok {
		return tr.Reply(ctx, textNoPhoto, nil)
	}
	p.Photo = best.FileID
	if sl.mode == modeEdit {
		return e.finish(ctx, tr, p, sl, "", "📸 Photo updated!")
	}

	from := p.State
	p.State = profile.Completed
	if err := e.save(ctx, p, from); err != nil {
		return err
	}
	metrics.ProfilesCompleted.Inc()
	replyErr := tr.Reply(ctx, textCompleted, mainMenu())
	if err := e.NotifyNewMatch(ctx, p.ID); err != nil {
		logger.LogEvent(ctx, logger.Notify, slog.LevelError, "notify.failed",
			slog.Int64("source_id", p.ID),
			slog.String("err", err.Error()),
		)
	}
	return replyErr
}

func (e *Engine) signUp(ctx context.Context, tr Transport, userID int64) error {
	if p, ok := e.store.Get(userID); ok {
		return e.reprompt(ctx, tr, p)
	}
	p := profile.New(userID)
	if err := e.save(ctx, p, ""); err != nil {
		return err
	}
	text, kb := prompt(p)
	return tr.Reply(ctx, text, kb)
}

func (e *Engine) showOwnProfile(ctx context.Context, tr Transport, p profile.Profile) error {
	caption := profile.OwnCaption(p)
	if p.Photo != "" {
		return tr.ReplyWithImage(ctx, p.Photo, caption, nil)
	}
	return tr.Reply(ctx, caption, nil)
}

func (e *Engine) reprompt(ctx context.Context, tr Transport, p profile.Profile) error {
	text, kb := prompt(p)
	return tr.Reply(ctx, text, kb)
}

func (e *Engine) save(ctx context.Context, p profile.Profile, from profile.State) error {
	if err := e.store.Upsert(ctx, p); err != nil {
		return fmt.Errorf("%w %d: %w", ErrSave, p.ID, err)
	}
	if from != p.State {
		logger.LogEvent(ctx, logger.Flow, slog.LevelDebug, "flow.transition",
			slog.Int64("profile_id", p.ID),
			slog.String("from", string(from)),
			slog.String("to", string(p.State)),
		)
	}
	return nil
}

func (e *Engine) editLast(ctx context.Context, tr Transport, text string, kb *Keyboard) {
	if err := tr.EditLast(ctx, text, kb); err != nil {
		logger.LogEvent(ctx, logger.Flow, slog.LevelWarn, "flow.edit_last",
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

func largest(sizes []PhotoSize) (PhotoSize, bool) {
	var best PhotoSize
	found := false
	for _, s := range sizes {
		if s.FileID == "" {
			continue
		}
		if !found || s.Width*s.Height >= best.Width*best.Height {
			best, found = s, true
		}
	}
	return best, found
}

// slashCommand reports whether text looks like a bot command and returns its
// name without the leading slash or a "@bot" suffix. Such text never fills a
// profile field.
func slashCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name, _, _ := strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), true
}
