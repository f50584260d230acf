package profile

// State is the onboarding or editing step a profile is in.
type State string

// Onboarding states, in order.
const (
	AwaitingName             State = "awaiting_name"
	AwaitingGender           State = "awaiting_gender"
	AwaitingAge              State = "awaiting_age"
	AwaitingAgeVisibility    State = "awaiting_age_visibility"
	AwaitingLocation         State = "awaiting_location"
	AwaitingLocationTyped    State = "awaiting_location_typed"
	AwaitingHobbies          State = "awaiting_hobbies"
	AwaitingHobbyTyped       State = "awaiting_hobby_typed"
	AwaitingBio              State = "awaiting_bio"
	AwaitingCustomUsername   State = "awaiting_custom_username"
	AwaitingUsernamePlatform State = "awaiting_username_platform"
	AwaitingCustomPlatform   State = "awaiting_custom_platform"
	AwaitingPhoto            State = "awaiting_photo"
	Completed                State = "completed"
)

// Editing states. Editing is the hub; the rest edit one field each.
const (
	Editing                 State = "editing"
	EditingName             State = "editing_name"
	EditingGender           State = "editing_gender"
	EditingAge              State = "editing_age"
	EditingAgeVisibility    State = "editing_age_visibility"
	EditingLocation         State = "editing_location"
	EditingLocationTyped    State = "editing_location_typed"
	EditingHobbies          State = "editing_hobbies"
	EditingHobbyTyped       State = "editing_hobby_typed"
	EditingBio              State = "editing_bio"
	EditingUsername         State = "editing_username"
	EditingUsernamePlatform State = "editing_username_platform"
	EditingCustomPlatform   State = "editing_custom_platform"
	EditingPhoto            State = "editing_photo"
)

var onboarding = map[State]bool{
	AwaitingName: true, AwaitingGender: true, AwaitingAge: true, AwaitingAgeVisibility: true,
	AwaitingLocation: true, AwaitingLocationTyped: true, AwaitingHobbies: true, AwaitingHobbyTyped: true,
	AwaitingBio: true, AwaitingCustomUsername: true, AwaitingUsernamePlatform: true,
	AwaitingCustomPlatform: true, AwaitingPhoto: true,
}

var editing = map[State]bool{
	Editing: true, EditingName: true, EditingGender: true, EditingAge: true, EditingAgeVisibility: true,
	EditingLocation: true, EditingLocationTyped: true, EditingHobbies: true, EditingHobbyTyped: true,
	EditingBio: true, EditingUsername: true, EditingUsernamePlatform: true,
	EditingCustomPlatform: true, EditingPhoto: true,
}

// Onboarding reports whether s is a step before completion.
func (s State) Onboarding() bool { return onboarding[s] }

// Editing reports whether s is the editing hub or one of its sub-states.
func (s State) Editing() bool { return editing[s] }

// Valid reports whether s is a known state tag.
func (s State) Valid() bool { return s == Completed || onboarding[s] || editing[s] }
