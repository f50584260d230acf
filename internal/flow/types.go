// Package flow is the transport-neutral conversation core: onboarding, field
// editing, photo ingestion, match browsing and new-match alerts.
package flow

import (
	"context"

	"github.com/m3rciful/lovematch/internal/profile"
)

// EventKind classifies inbound events.
type EventKind int

const (
	EventCommand EventKind = iota + 1
	EventText
	EventPhoto
	EventAction
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventText:
		return "text"
	case EventPhoto:
		return "photo"
	case EventAction:
		return "action"
	}
	return "unknown"
}

// PhotoSize is one resolution variant of an uploaded photo.
type PhotoSize struct {
	FileID string
	Width  int
	Height int
}

// Event is one inbound update from a user.
type Event struct {
	UserID int64
	Kind   EventKind

	Command string
	Text    string
	Photos  []PhotoSize
	Action  string
	Payload string

	// Handle is the user's native username without "@", if the transport
	// has one.
	Handle string
}

// Button is one labeled choice; pressing it yields an EventAction.
type Button struct {
	Label   string
	Action  string
	Payload string
}

// Keyboard is either a set of inline choices or a persistent reply menu.
type Keyboard struct {
	Inline [][]Button
	Reply  [][]string
}

// Transport delivers replies to the user who sent the current event.
type Transport interface {
	Reply(ctx context.Context, text string, kb *Keyboard) error
	ReplyWithImage(ctx context.Context, image, caption string, kb *Keyboard) error
	// EditLast edits the message the user just pressed a button on. An
	// empty text edits only the choices.
	EditLast(ctx context.Context, text string, kb *Keyboard) error
}

// Alerter sends out-of-band messages. Alert must not block on delivery.
type Alerter interface {
	Alert(ctx context.Context, to int64, text string)
}

// Store is the profile table the engine reads and mutates.
type Store interface {
	Get(id int64) (profile.Profile, bool)
	Upsert(ctx context.Context, p profile.Profile) error
	All() []profile.Profile
	MarkNotified(ctx context.Context, waiting, source int64) (bool, error)
}
