package flow

import (
	"fmt"
	"hash/fnv"
	"slices"
	"strconv"
	"strings"

	"github.com/m3rciful/lovematch/internal/profile"
)

// Action keys carried by buttons.
const (
	ActionSignUp        = "signup"
	ActionGender        = "gender"
	ActionAgeVisible    = "age_visible"
	ActionLocation      = "location"
	ActionHobbyToggle   = "hobby_toggle"
	ActionHobbyOther    = "hobby_other"
	ActionHobbiesDone   = "hobbies_done"
	ActionPlatform      = "platform"
	ActionEdit          = "edit"
	ActionEditDone      = "edit_done"
	ActionEditCancel    = "edit_cancel"
	ActionMatchLocation = "match_location"
	ActionReveal        = "reveal"
)

// Actions lists every action key the engine understands.
var Actions = []string{
	ActionSignUp, ActionGender, ActionAgeVisible, ActionLocation, ActionHobbyToggle,
	ActionHobbyOther, ActionHobbiesDone, ActionPlatform, ActionEdit, ActionEditDone,
	ActionEditCancel, ActionMatchLocation, ActionReveal,
}

// Commands understood by the engine, without the leading slash.
const (
	CommandStart   = "start"
	CommandMatches = "matches"
	CommandProfile = "profile"
	CommandEdit    = "edit"
	CommandHelp    = "help"
	CommandSupport = "support"
)

// Main menu labels.
const (
	MenuMatches = "👀 See Matches"
	MenuProfile = "👤 Show Profile"
	MenuEdit    = "✏️ Edit Profile"
	MenuHelp    = "💬 Help"
	MenuSupport = "🛠 Support"
)

// MenuCommands maps main menu labels to commands.
var MenuCommands = map[string]string{
	MenuMatches: CommandMatches,
	MenuProfile: CommandProfile,
	MenuEdit:    CommandEdit,
	MenuHelp:    CommandHelp,
	MenuSupport: CommandSupport,
}

const payloadOther = "other"

const (
	textWelcome        = "💖 Welcome to LoveMatchBot! Ready to meet new people?"
	textConsent        = "🔒 By using this bot, you agree your profile info will be shown to other users for matching."
	textBegin          = "Tap below to begin your journey:"
	textSignUpFirst    = "👋 Please sign up first to use the bot."
	textWelcomeBack    = "👋 Welcome back! Use the menu below."
	textCompleteFirst  = "⚠️ Please complete your profile first!"
	textFinishMatches  = "✏️ Please finish editing your profile before viewing matches. Continue editing below:"
	textFinishProfile  = "✏️ Please finish editing your profile before viewing your profile. Continue editing below:"
	textHelp           = "ℹ️ Complete your profile and tap 👀 See Matches!"
	textNotUnderstood  = "🤖 I didn’t understand that. Use the menu below."
	textSomethingWrong = "⚠️ Something went wrong, please try again."

	textHobbyCeiling  = "❌ You can select up to 5 hobbies only. Remove one to add another."
	textHobbyRequired = "🏷️ Select at least one hobby!"
	textHobbyKeepOne  = "🏷️ Keep at least one hobby."
	textHobbyExists   = "🏷️ You already have that hobby."
	textNoPhoto       = "🚫 No photo received. Please try again."
	textCompleted     = "👍 Profile complete! Use the menu below."
	textEditDone      = "✅ Editing complete! Use the main menu:"
	textEditCancelled = "❌ Edit cancelled. Back to main menu:"
	textContinueEdit  = "✏️ Continue editing your profile:"

	textMatchWhere    = "🌍 Where do you want your date to be from?"
	textMatchTyped    = "🌍 Please type the city or location you want your date to be from:"
	textNoMatches     = "🔔 No matches found in that location. Try another location or check back later."
	textMatchesHeader = "👫 Here are your matches:"
	textSeeContact    = "📞 See Contact"
	textNoContact     = "❌ Could not find user contact."

	// AlertText is sent to waiting profiles when a compatible profile completes.
	AlertText = "👫 New match found! Someone new just finished their profile. Tap 👀 See Matches to check."
)

// prompt returns the instruction and choices for p's current state. Invalid
// input re-sends exactly this.
func prompt(p profile.Profile) (string, *Keyboard) {
	switch p.State {
	case profile.AwaitingName:
		return "📝 Let’s start with your name:", nil
	case profile.AwaitingGender:
		return "🚻 Select your gender:", genderKeyboard()
	case profile.AwaitingAge:
		return "🎂 Enter your age (16-45):", nil
	case profile.AwaitingAgeVisibility, profile.EditingAgeVisibility:
		return "👀 Should your age be visible to others?", ageVisibleKeyboard()
	case profile.AwaitingLocation:
		return "📍 Select your location:", locationKeyboard(ActionLocation)
	case profile.AwaitingLocationTyped:
		return "📍 Please type your city or location:", nil
	case profile.AwaitingHobbies, profile.EditingHobbies:
		return "🏷️ Select your hobbies (tap to toggle, then press Done):", hobbyKeyboard(p)
	case profile.AwaitingHobbyTyped, profile.EditingHobbyTyped:
		return "🏷️ Please type your hobby:", nil
	case profile.AwaitingBio:
		return "💡 Write a short bio:", nil
	case profile.AwaitingCustomUsername:
		return "👀 We couldn't find your Telegram username. Please enter a username you want displayed in your profile:", nil
	case profile.AwaitingUsernamePlatform, profile.EditingUsernamePlatform:
		return "📱 Where is this username from?", platformKeyboard()
	case profile.AwaitingCustomPlatform, profile.EditingCustomPlatform:
		return "🗂 Please specify the platform name:", nil
	case profile.AwaitingPhoto:
		return "📸 Please send your profile picture:", nil
	case profile.Completed:
		return textWelcomeBack, mainMenu()
	case profile.Editing:
		return "✏️ Select the field you want to edit:", editMenu(p)
	case profile.EditingName:
		return "📝 Enter your new name:", nil
	case profile.EditingGender:
		return "🚻 Select your (new) gender:", genderKeyboard()
	case profile.EditingAge:
		return fmt.Sprintf("🎂 Your current age is: %d\nEnter your new age (16-45):", p.Age), nil
	case profile.EditingLocation:
		return "📍 Select your new location:", locationKeyboard(ActionLocation)
	case profile.EditingLocationTyped:
		return "📍 Please type your new city or location:", nil
	case profile.EditingBio:
		return "💡 Enter your new bio:", nil
	case profile.EditingUsername:
		return "🔗 Enter your new profile username:", nil
	case profile.EditingPhoto:
		return "📸 Please send your new profile picture:", nil
	}
	return textNotUnderstood, mainMenu()
}

func mainMenu() *Keyboard {
	return &Keyboard{Reply: [][]string{
		{MenuMatches},
		{MenuProfile, MenuEdit},
		{MenuHelp, MenuSupport},
	}}
}

func signUpKeyboard() *Keyboard {
	return &Keyboard{Inline: [][]Button{{{Label: "📝 Sign Up", Action: ActionSignUp}}}}
}

func genderKeyboard() *Keyboard {
	return &Keyboard{Inline: [][]Button{{
		{Label: "♂️ Male", Action: ActionGender, Payload: string(profile.Male)},
		{Label: "♀️ Female", Action: ActionGender, Payload: string(profile.Female)},
	}}}
}

func ageVisibleKeyboard() *Keyboard {
	return &Keyboard{Inline: [][]Button{
		{{Label: "Yes", Action: ActionAgeVisible, Payload: "yes"}},
		{{Label: "No", Action: ActionAgeVisible, Payload: "no"}},
	}}
}

func locationKeyboard(action string) *Keyboard {
	rows := make([][]Button, 0, len(profile.Locations)+1)
	for i, loc := range profile.Locations {
		rows = append(rows, []Button{{Label: loc, Action: action, Payload: strconv.Itoa(i)}})
	}
	rows = append(rows, []Button{{Label: "Other...", Action: action, Payload: payloadOther}})
	return &Keyboard{Inline: rows}
}

// hobbyOptions lists the predefined hobbies followed by the custom ones p
// has typed, so every selected hobby can be toggled off.
func hobbyOptions(p profile.Profile) []string {
	opts := append([]string(nil), profile.Hobbies...)
	for _, h := range p.Hobbies {
		if !slices.Contains(profile.Hobbies, h) {
			opts = append(opts, h)
		}
	}
	return opts
}

// hobbyPayload names h on its toggle button independently of the button's
// position. Predefined hobbies use their fixed index; typed ones a hash of
// the text, which may not fit the 64-byte callback data.
func hobbyPayload(h string) string {
	if i := slices.Index(profile.Hobbies, h); i >= 0 {
		return strconv.Itoa(i)
	}
	f := fnv.New32a()
	_, _ = f.Write([]byte(h))
	return fmt.Sprintf("c%08x", f.Sum32())
}

// hobbyByPayload resolves a toggle payload against the hobbies p can see.
// A typed hobby that has since been removed no longer resolves.
func hobbyByPayload(p profile.Profile, payload string) (string, bool) {
	for _, h := range hobbyOptions(p) {
		if hobbyPayload(h) == payload {
			return h, true
		}
	}
	return "", false
}

func hobbyKeyboard(p profile.Profile) *Keyboard {
	opts := hobbyOptions(p)
	rows := make([][]Button, 0, len(opts)+2)
	for _, h := range opts {
		label := "🏷️ " + h
		if p.HasHobby(h) {
			label = "✅ " + h
		}
		rows = append(rows, []Button{{Label: label, Action: ActionHobbyToggle, Payload: hobbyPayload(h)}})
	}
	rows = append(rows,
		[]Button{{Label: "Other...", Action: ActionHobbyOther}},
		[]Button{{Label: "Done", Action: ActionHobbiesDone}},
	)
	return &Keyboard{Inline: rows}
}

func platformKeyboard() *Keyboard {
	rows := make([][]Button, 0, len(profile.Platforms))
	for _, opt := range profile.Platforms {
		rows = append(rows, []Button{{Label: opt.Label, Action: ActionPlatform, Payload: string(opt.Key)}})
	}
	return &Keyboard{Inline: rows}
}

func editMenu(p profile.Profile) *Keyboard {
	visible := "No"
	if p.AgeVisible {
		visible = "Yes"
	}
	btn := func(label, field string) []Button {
		return []Button{{Label: label, Action: ActionEdit, Payload: field}}
	}
	return &Keyboard{Inline: [][]Button{
		btn("📝 Name: "+p.Name, editName),
		btn("🚻 Gender: "+p.Gender.Label(), editGender),
		btn("🎂 Age: "+strconv.Itoa(p.Age), editAge),
		btn("👀 Age visible: "+visible, editAgeVisible),
		btn("📍 Location: "+p.Location, editLocation),
		btn("🏷️ Hobbies: "+strings.Join(p.Hobbies, ", "), editHobbies),
		btn("💡 Bio", editBio),
		btn("📸 Profile Picture", editPhoto),
		btn(fmt.Sprintf("🔗 Username: %s (%s)", p.Handle, p.ContactLabel()), editContact),
		{{Label: "❌ Cancel", Action: ActionEditCancel}},
		{{Label: "✅ Done", Action: ActionEditDone}},
	}}
}

func revealKeyboard(id int64) *Keyboard {
	return &Keyboard{Inline: [][]Button{{
		{Label: textSeeContact, Action: ActionReveal, Payload: strconv.FormatInt(id, 10)},
	}}}
}
