// Package profile defines the dating profile record, its state tags and the
// pure validation rules shared by the conversation engine and the store.
package profile

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrIncomplete is returned by Validate for a completed profile missing a
// required field.
var ErrIncomplete = errors.New("profile: incomplete")

// Gender is the binary gender selector.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

// Valid reports whether g is one of the known genders.
func (g Gender) Valid() bool { return g == Male || g == Female }

// Label returns the capitalized display name.
func (g Gender) Label() string {
	switch g {
	case Male:
		return "Male"
	case Female:
		return "Female"
	}
	return ""
}

// Platform is where a contact handle lives.
type Platform string

const (
	PlatformTelegram  Platform = "telegram"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformX         Platform = "x"
	PlatformOther     Platform = "other"
)

// PlatformOption pairs a platform with its button label.
type PlatformOption struct {
	Key   Platform
	Label string
}

// Platforms lists the platform choices in display order.
var Platforms = []PlatformOption{
	{PlatformTelegram, "Telegram"},
	{PlatformFacebook, "Facebook"},
	{PlatformInstagram, "Instagram"},
	{PlatformX, "X (Twitter)"},
	{PlatformOther, "Other"},
}

// LookupPlatform returns the option for key.
func LookupPlatform(key string) (PlatformOption, bool) {
	for _, p := range Platforms {
		if string(p.Key) == key {
			return p, true
		}
	}
	return PlatformOption{}, false
}

// MatchStep is the browse sub-state, independent of State.
type MatchStep string

const (
	MatchIdle                  MatchStep = ""
	MatchAwaitingLocation      MatchStep = "awaiting_location"
	MatchAwaitingLocationTyped MatchStep = "awaiting_location_typed"
)

// Hobbies are the predefined toggle choices.
var Hobbies = []string{"🎵 Music", "⚽ Sports", "🎬 Movies", "📚 Reading", "🌍 Travel", "🍳 Cooking"}

// Locations are the predefined location choices.
var Locations = []string{"Addis Ababa", "Mekelle", "Hawassa", "Gonder", "Adama"}

// MaxHobbies caps the hobby set.
const MaxHobbies = 5

// Profile is one user's record.
type Profile struct {
	ID            int64     `json:"id"`
	State         State     `json:"state"`
	Name          string    `json:"name,omitempty"`
	Gender        Gender    `json:"gender,omitempty"`
	Age           int       `json:"age,omitempty"`
	AgeVisible    bool      `json:"age_visible"`
	Location      string    `json:"location,omitempty"`
	Hobbies       []string  `json:"hobbies"`
	Bio           string    `json:"bio,omitempty"`
	Photo         string    `json:"photo,omitempty"`
	Handle        string    `json:"handle,omitempty"`
	Platform      Platform  `json:"platform,omitempty"`
	PlatformLabel string    `json:"platform_label,omitempty"`
	// PendingHandle holds a typed handle until its platform is chosen, so
	// Handle and Platform always change together.
	PendingHandle string    `json:"pending_handle,omitempty"`
	MatchStep     MatchStep `json:"match_step,omitempty"`
	MatchLocation string    `json:"match_location,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// New returns a fresh profile at the first onboarding step.
func New(id int64) Profile {
	return Profile{ID: id, State: AwaitingName, AgeVisible: true, Hobbies: []string{}}
}

// Clone returns a deep copy.
func (p Profile) Clone() Profile {
	p.Hobbies = slices.Clone(p.Hobbies)
	if p.Hobbies == nil {
		p.Hobbies = []string{}
	}
	return p
}

// IsCompleted reports whether the profile is visible to others.
func (p Profile) IsCompleted() bool { return p.State == Completed }

// IsEditing reports whether the profile is in the editing hub or a sub-state.
func (p Profile) IsEditing() bool { return p.State.Editing() }

// HasHobby reports whether h is already selected.
func (p Profile) HasHobby(h string) bool { return slices.Contains(p.Hobbies, h) }

// SetContact commits the pending handle, if any, together with its platform.
func (p *Profile) SetContact(platform Platform, label string) {
	if p.PendingHandle != "" {
		p.Handle = p.PendingHandle
	}
	p.PendingHandle = ""
	p.Platform, p.PlatformLabel = platform, label
}

// ContactLabel returns the platform label shown next to the handle.
func (p Profile) ContactLabel() string {
	if p.PlatformLabel != "" {
		return p.PlatformLabel
	}
	return "Telegram"
}

// Validate checks the completeness invariant of a completed profile.
// Profiles in any other state always pass.
func (p Profile) Validate() error {
	if p.State != Completed {
		return nil
	}
	switch {
	case !ValidString(p.Name):
		return fmt.Errorf("%w: name", ErrIncomplete)
	case !p.Gender.Valid():
		return fmt.Errorf("%w: gender", ErrIncomplete)
	case !ValidAge(p.Age):
		return fmt.Errorf("%w: age", ErrIncomplete)
	case !ValidString(p.Location):
		return fmt.Errorf("%w: location", ErrIncomplete)
	case len(p.Hobbies) == 0 || len(p.Hobbies) > MaxHobbies:
		return fmt.Errorf("%w: hobbies", ErrIncomplete)
	case !ValidString(p.Bio):
		return fmt.Errorf("%w: bio", ErrIncomplete)
	case !ValidString(p.Handle):
		return fmt.Errorf("%w: handle", ErrIncomplete)
	}
	return nil
}
