package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/lovematch/internal/profile"
)

type field int

const (
	fieldName field = iota + 1
	fieldGender
	fieldAge
	fieldAgeVisible
	fieldLocation
	fieldHobbies
	fieldBio
	fieldContact
	fieldPhoto
)

// stage distinguishes the sub-steps of a multi-step field.
type stage int

const (
	stageMain stage = iota
	stageTyped
	stagePlatform
	stageCustomPlatform
)

type mode int

const (
	modeOnboard mode = iota
	modeEdit
)

// slot says which field a state collects, at which sub-step, and where
// completion leads.
type slot struct {
	field field
	stage stage
	mode  mode
}

var slots = map[profile.State]slot{
	profile.AwaitingName:             {fieldName, stageMain, modeOnboard},
	profile.AwaitingGender:           {fieldGender, stageMain, modeOnboard},
	profile.AwaitingAge:              {fieldAge, stageMain, modeOnboard},
	profile.AwaitingAgeVisibility:    {fieldAgeVisible, stageMain, modeOnboard},
	profile.AwaitingLocation:         {fieldLocation, stageMain, modeOnboard},
	profile.AwaitingLocationTyped:    {fieldLocation, stageTyped, modeOnboard},
	profile.AwaitingHobbies:          {fieldHobbies, stageMain, modeOnboard},
	profile.AwaitingHobbyTyped:       {fieldHobbies, stageTyped, modeOnboard},
	profile.AwaitingBio:              {fieldBio, stageMain, modeOnboard},
	profile.AwaitingCustomUsername:   {fieldContact, stageMain, modeOnboard},
	profile.AwaitingUsernamePlatform: {fieldContact, stagePlatform, modeOnboard},
	profile.AwaitingCustomPlatform:   {fieldContact, stageCustomPlatform, modeOnboard},
	profile.AwaitingPhoto:            {fieldPhoto, stageMain, modeOnboard},

	profile.EditingName:             {fieldName, stageMain, modeEdit},
	profile.EditingGender:           {fieldGender, stageMain, modeEdit},
	profile.EditingAge:              {fieldAge, stageMain, modeEdit},
	profile.EditingAgeVisibility:    {fieldAgeVisible, stageMain, modeEdit},
	profile.EditingLocation:         {fieldLocation, stageMain, modeEdit},
	profile.EditingLocationTyped:    {fieldLocation, stageTyped, modeEdit},
	profile.EditingHobbies:          {fieldHobbies, stageMain, modeEdit},
	profile.EditingHobbyTyped:       {fieldHobbies, stageTyped, modeEdit},
	profile.EditingBio:              {fieldBio, stageMain, modeEdit},
	profile.EditingUsername:         {fieldContact, stageMain, modeEdit},
	profile.EditingUsernamePlatform: {fieldContact, stagePlatform, modeEdit},
	profile.EditingCustomPlatform:   {fieldContact, stageCustomPlatform, modeEdit},
	profile.EditingPhoto:            {fieldPhoto, stageMain, modeEdit},
}

var statesBySlot = func() map[slot]profile.State {
	out := make(map[slot]profile.State, len(slots))
	for st, sl := range slots {
		out[sl] = st
	}
	return out
}()

// at returns the state collecting the same field in the same mode at stage s.
func (sl slot) at(s stage) profile.State {
	return statesBySlot[slot{sl.field, s, sl.mode}]
}

// Edit menu payloads.
const (
	editName       = "name"
	editGender     = "gender"
	editAge        = "age"
	editAgeVisible = "age_visible"
	editLocation   = "location"
	editHobbies    = "hobbies"
	editBio        = "bio"
	editPhoto      = "photo"
	editContact    = "contact"
)

var editFields = map[string]field{
	editName:       fieldName,
	editGender:     fieldGender,
	editAge:        fieldAge,
	editAgeVisible: fieldAgeVisible,
	editLocation:   fieldLocation,
	editHobbies:    fieldHobbies,
	editBio:        fieldBio,
	editPhoto:      fieldPhoto,
	editContact:    fieldContact,
}

// nextOnboarding is the state after a field is collected during onboarding.
// Bio is resolved by the handler since it depends on the native handle.
var nextOnboarding = map[field]profile.State{
	fieldName:       profile.AwaitingGender,
	fieldGender:     profile.AwaitingAge,
	fieldAge:        profile.AwaitingAgeVisibility,
	fieldAgeVisible: profile.AwaitingLocation,
	fieldLocation:   profile.AwaitingHobbies,
	fieldHobbies:    profile.AwaitingBio,
	fieldContact:    profile.AwaitingPhoto,
}

// finish completes a field: onboarding moves on to the next step, editing
// returns to the hub. ack, when set, replaces the text of the message the
// user pressed a button on.
func (e *Engine) finish(ctx context.Context, tr Transport, p profile.Profile, sl slot, ack, edited string) error {
	from := p.State
	if sl.mode == modeEdit {
		p.State = profile.Editing
	} else if next, ok := nextOnboarding[sl.field]; ok {
		p.State = next
	}
	if err := e.save(ctx, p, from); err != nil {
		return err
	}
	if ack != "" {
		e.editLast(ctx, tr, ack, nil)
	}
	if sl.mode == modeEdit {
		return tr.Reply(ctx, edited, editMenu(p))
	}
	text, kb := prompt(p)
	return tr.Reply(ctx, text, kb)
}

// moveTo switches p to state and shows its prompt.
func (e *Engine) moveTo(ctx context.Context, tr Transport, p profile.Profile, state profile.State) error {
	from := p.State
	p.State = state
	if err := e.save(ctx, p, from); err != nil {
		return err
	}
	text, kb := prompt(p)
	return tr.Reply(ctx, text, kb)
}

// handleFieldText serves every state that accepts typed text.
func (e *Engine) handleFieldText(ctx context.Context, tr Transport, p profile.Profile, sl slot, ev Event) error {
	text := strings.TrimSpace(ev.Text)

	switch {
	case sl.field == fieldAge:
		age, ok := profile.ParseAge(text)
		if !ok {
			return e.reprompt(ctx, tr, p)
		}
		p.Age = age
		return e.finish(ctx, tr, p, sl, "", "🎂 Age updated!")

	case sl.field == fieldHobbies && sl.stage == stageTyped:
		return e.addTypedHobby(ctx, tr, p, sl, text)

	case sl.field == fieldContact && sl.stage == stagePlatform,
		sl.field == fieldGender, sl.field == fieldAgeVisible, sl.field == fieldPhoto,
		sl.field == fieldLocation && sl.stage == stageMain,
		sl.field == fieldHobbies && sl.stage == stageMain:
		// These states take a button or a photo.
		return e.reprompt(ctx, tr, p)
	}

	if !profile.ValidString(text) {
		return e.reprompt(ctx, tr, p)
	}

	switch sl.field {
	case fieldName:
		p.Name = text
		return e.finish(ctx, tr, p, sl, "", "📝 Name updated!")
	case fieldLocation:
		p.Location = text
		return e.finish(ctx, tr, p, sl, "", "📍 Location updated to: "+text)
	case fieldBio:
		p.Bio = text
		if sl.mode == modeEdit {
			return e.finish(ctx, tr, p, sl, "", "💡 Bio updated!")
		}
		if ev.Handle != "" {
			p.PendingHandle = "@" + strings.TrimPrefix(ev.Handle, "@")
			p.SetContact(profile.PlatformTelegram, "Telegram")
			return e.moveTo(ctx, tr, p, profile.AwaitingPhoto)
		}
		return e.moveTo(ctx, tr, p, profile.AwaitingCustomUsername)
	case fieldContact:
		if sl.stage == stageCustomPlatform {
			p.SetContact(profile.PlatformOther, text)
			return e.finish(ctx, tr, p, sl, "", "🗂 Platform updated!")
		}
		p.PendingHandle = text
		return e.moveTo(ctx, tr, p, sl.at(stagePlatform))
	}
	return e.reprompt(ctx, tr, p)
}

func (e *Engine) addTypedHobby(ctx context.Context, tr Transport, p profile.Profile, sl slot, hobby string) error {
	if !profile.ValidString(hobby) {
		return e.reprompt(ctx, tr, p)
	}
	from := p.State
	p.State = sl.at(stageMain)
	var reply string
	switch {
	case len(p.Hobbies) >= profile.MaxHobbies:
		reply = textHobbyCeiling
	case p.HasHobby(hobby):
		reply = textHobbyExists
	default:
		p.Hobbies = append(p.Hobbies, hobby)
		reply = "🏷️ Added hobby: " + hobby
	}
	if err := e.save(ctx, p, from); err != nil {
		return err
	}
	return tr.Reply(ctx, reply, hobbyKeyboard(p))
}

// handleFieldAction serves button presses that answer the current field.
func (e *Engine) handleFieldAction(ctx context.Context, tr Transport, p profile.Profile, sl slot, ev Event) error {
	switch {
	case ev.Action == ActionGender && sl.field == fieldGender:
		g := profile.Gender(ev.Payload)
		if !g.Valid() {
			return e.reprompt(ctx, tr, p)
		}
		p.Gender = g
		return e.finish(ctx, tr, p, sl, "🚻 Selected gender: "+g.Label(), "🚻 Gender updated to: "+g.Label())

	case ev.Action == ActionAgeVisible && sl.field == fieldAgeVisible:
		switch ev.Payload {
		case "yes":
			p.AgeVisible = true
			return e.finish(ctx, tr, p, sl, "🎂 Your age will be visible to others.", "👀 Age visibility updated!")
		case "no":
			p.AgeVisible = false
			return e.finish(ctx, tr, p, sl, "🎂 Your age will NOT be visible to others.", "👀 Age visibility updated!")
		}

	case ev.Action == ActionLocation && sl.field == fieldLocation && sl.stage == stageMain:
		if ev.Payload == payloadOther {
			return e.moveTo(ctx, tr, p, sl.at(stageTyped))
		}
		loc, ok := pick(profile.Locations, ev.Payload)
		if !ok {
			break
		}
		p.Location = loc
		return e.finish(ctx, tr, p, sl, "📍 Selected location: "+loc, "📍 Location updated to: "+loc)

	case sl.field == fieldHobbies && sl.stage == stageMain:
		return e.handleHobbyAction(ctx, tr, p, sl, ev)

	case ev.Action == ActionPlatform && sl.field == fieldContact && sl.stage == stagePlatform:
		if ev.Payload == string(profile.PlatformOther) {
			return e.moveTo(ctx, tr, p, sl.at(stageCustomPlatform))
		}
		opt, ok := profile.LookupPlatform(ev.Payload)
		if !ok {
			break
		}
		p.SetContact(opt.Key, opt.Label)
		ack := fmt.Sprintf("🔗 Username will show as: %s (%s)", p.Handle, opt.Label)
		return e.finish(ctx, tr, p, sl, ack, "🔗 Username updated!")
	}
	return e.reprompt(ctx, tr, p)
}

func (e *Engine) handleHobbyAction(ctx context.Context, tr Transport, p profile.Profile, sl slot, ev Event) error {
	switch ev.Action {
	case ActionHobbyToggle:
		hobby, ok := hobbyByPayload(p, ev.Payload)
		if !ok {
			return e.reprompt(ctx, tr, p)
		}
		if p.HasHobby(hobby) {
			if sl.mode == modeEdit && len(p.Hobbies) == 1 {
				return tr.Reply(ctx, textHobbyKeepOne, nil)
			}
			p.Hobbies = remove(p.Hobbies, hobby)
		} else {
			if len(p.Hobbies) >= profile.MaxHobbies {
				return tr.Reply(ctx, textHobbyCeiling, nil)
			}
			p.Hobbies = append(p.Hobbies, hobby)
		}
		if err := e.save(ctx, p, p.State); err != nil {
			return err
		}
		e.editLast(ctx, tr, "", hobbyKeyboard(p))
		return nil

	case ActionHobbyOther:
		if len(p.Hobbies) >= profile.MaxHobbies {
			return tr.Reply(ctx, textHobbyCeiling, nil)
		}
		return e.moveTo(ctx, tr, p, sl.at(stageTyped))

	case ActionHobbiesDone:
		if len(p.Hobbies) == 0 {
			return tr.Reply(ctx, textHobbyRequired, hobbyKeyboard(p))
		}
		ack := "🏷️ Selected hobbies: " + strings.Join(p.Hobbies, ", ")
		return e.finish(ctx, tr, p, sl, ack, "🏷️ Hobbies updated!")
	}
	return e.reprompt(ctx, tr, p)
}

// pick resolves an index payload against list.
func pick(list []string, payload string) (string, bool) {
	i, err := strconv.Atoi(payload)
	if err != nil || i < 0 || i >= len(list) {
		return "", false
	}
	return list[i], true
}

func remove(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
