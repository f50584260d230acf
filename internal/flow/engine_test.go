package flow

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/lovematch/internal/profile"
	"github.com/m3rciful/lovematch/internal/store"
)

type message struct {
	text  string
	image string
	kb    *Keyboard
	edit  bool
}

type fakeTransport struct {
	msgs []message
}

func (f *fakeTransport) Reply(_ context.Context, text string, kb *Keyboard) error {
	f.msgs = append(f.msgs, message{text: text, kb: kb})
	return nil
}

func (f *fakeTransport) ReplyWithImage(_ context.Context, image, caption string, kb *Keyboard) error {
	f.msgs = append(f.msgs, message{text: caption, image: image, kb: kb})
	return nil
}

func (f *fakeTransport) EditLast(_ context.Context, text string, kb *Keyboard) error {
	f.msgs = append(f.msgs, message{text: text, kb: kb, edit: true})
	return nil
}

func (f *fakeTransport) last() message {
	if len(f.msgs) == 0 {
		return message{}
	}
	return f.msgs[len(f.msgs)-1]
}

func (f *fakeTransport) reset() { f.msgs = nil }

type alert struct {
	to   int64
	text string
}

type fakeAlerter struct {
	mu   sync.Mutex
	sent []alert
}

func (f *fakeAlerter) Alert(_ context.Context, to int64, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, alert{to, text})
}

func (f *fakeAlerter) to(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.sent {
		if a.to == id {
			n++
		}
	}
	return n
}

type switchPersister struct {
	store.MemoryStore
	fail bool
}

func (s *switchPersister) SaveAll(ctx context.Context, snap store.Snapshot) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.MemoryStore.SaveAll(ctx, snap)
}

type harness struct {
	t       *testing.T
	persist *switchPersister
	store   *store.Store
	alerts  *fakeAlerter
	tr      *fakeTransport
	engine  *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, persist: &switchPersister{}, alerts: &fakeAlerter{}, tr: &fakeTransport{}}
	h.store = store.New(h.persist, "test")
	h.engine = New(h.store, h.alerts, Options{SupportHandle: "@help"})
	return h
}

func (h *harness) send(ev Event) error {
	return h.engine.Handle(context.Background(), ev, h.tr)
}

func (h *harness) text(id int64, s string) {
	h.t.Helper()
	require.NoError(h.t, h.send(Event{UserID: id, Kind: EventText, Text: s}))
}

func (h *harness) action(id int64, action, payload string) {
	h.t.Helper()
	require.NoError(h.t, h.send(Event{UserID: id, Kind: EventAction, Action: action, Payload: payload}))
}

func (h *harness) command(id int64, cmd string) {
	h.t.Helper()
	require.NoError(h.t, h.send(Event{UserID: id, Kind: EventCommand, Command: cmd}))
}

func (h *harness) photo(id int64, sizes ...PhotoSize) {
	h.t.Helper()
	require.NoError(h.t, h.send(Event{UserID: id, Kind: EventPhoto, Photos: sizes}))
}

func (h *harness) profile(id int64) profile.Profile {
	h.t.Helper()
	p, ok := h.store.Get(id)
	require.True(h.t, ok, "profile %d missing", id)
	return p
}

func (h *harness) state(id int64) profile.State {
	return h.profile(id).State
}

func locationIndex(loc string) string {
	return strconv.Itoa(slices.Index(profile.Locations, loc))
}

// onboard drives id through every step with a native handle.
func (h *harness) onboard(id int64, g profile.Gender, age int, loc string, ageVisible bool) {
	h.t.Helper()
	h.action(id, ActionSignUp, "")
	h.text(id, "User"+strconv.FormatInt(id, 10))
	h.action(id, ActionGender, string(g))
	h.text(id, strconv.Itoa(age))
	vis := "no"
	if ageVisible {
		vis = "yes"
	}
	h.action(id, ActionAgeVisible, vis)
	h.action(id, ActionLocation, locationIndex(loc))
	h.action(id, ActionHobbyToggle, "0")
	h.action(id, ActionHobbiesDone, "")
	require.NoError(h.t, h.send(Event{UserID: id, Kind: EventText, Text: "Hello there", Handle: "user" + strconv.FormatInt(id, 10)}))
	h.photo(id, PhotoSize{FileID: "small", Width: 90, Height: 90}, PhotoSize{FileID: "big", Width: 800, Height: 800})
	require.Equal(h.t, profile.Completed, h.state(id))
}

func TestOnboardingHappyPathWithNativeHandle(t *testing.T) {
	h := newHarness(t)
	const id = 1

	h.command(id, CommandStart)
	require.Len(t, h.tr.msgs, 3)
	assert.Equal(t, textBegin, h.tr.last().text)
	assert.Equal(t, ActionSignUp, h.tr.last().kb.Inline[0][0].Action)

	steps := []struct {
		do   func()
		want profile.State
	}{
		{func() { h.action(id, ActionSignUp, "") }, profile.AwaitingName},
		{func() { h.text(id, "  Abel  ") }, profile.AwaitingGender},
		{func() { h.action(id, ActionGender, "male") }, profile.AwaitingAge},
		{func() { h.text(id, "30") }, profile.AwaitingAgeVisibility},
		{func() { h.action(id, ActionAgeVisible, "yes") }, profile.AwaitingLocation},
		{func() { h.action(id, ActionLocation, "0") }, profile.AwaitingHobbies},
		{func() { h.action(id, ActionHobbyToggle, "0") }, profile.AwaitingHobbies},
		{func() { h.action(id, ActionHobbiesDone, "") }, profile.AwaitingBio},
		{func() {
			require.NoError(t, h.send(Event{UserID: id, Kind: EventText, Text: "Coffee lover", Handle: "abel"}))
		}, profile.AwaitingPhoto},
	}
	filled := 0
	for i, s := range steps {
		s.do()
		p := h.profile(id)
		require.Equal(t, s.want, p.State, "step %d", i)
		n := countFilled(p)
		assert.GreaterOrEqual(t, n, filled, "fields never reset (step %d)", i)
		filled = n
	}

	h.photo(id, PhotoSize{FileID: "s", Width: 90, Height: 90}, PhotoSize{FileID: "l", Width: 1280, Height: 960}, PhotoSize{FileID: "m", Width: 320, Height: 240})
	p := h.profile(id)
	require.Equal(t, profile.Completed, p.State)
	require.NoError(t, p.Validate())
	assert.Equal(t, "Abel", p.Name)
	assert.Equal(t, "l", p.Photo)
	assert.Equal(t, "@abel", p.Handle)
	assert.Equal(t, "Telegram", p.PlatformLabel)
	assert.Equal(t, "Addis Ababa", p.Location)
	assert.Equal(t, textCompleted, h.tr.last().text)
}

func countFilled(p profile.Profile) int {
	n := 0
	for _, set := range []bool{p.Name != "", p.Gender != "", p.Age != 0, p.Location != "", len(p.Hobbies) > 0, p.Bio != "", p.Handle != "", p.Photo != ""} {
		if set {
			n++
		}
	}
	return n
}

func TestOnboardingCustomHandleAndPlatform(t *testing.T) {
	h := newHarness(t)
	const id = 2
	h.action(id, ActionSignUp, "")
	h.text(id, "Sara")
	h.action(id, ActionGender, "female")
	h.text(id, "28")
	h.action(id, ActionAgeVisible, "no")
	h.action(id, ActionLocation, payloadOther)
	require.Equal(t, profile.AwaitingLocationTyped, h.state(id))
	h.text(id, "Bahir Dar")
	h.action(id, ActionHobbyOther, "")
	require.Equal(t, profile.AwaitingHobbyTyped, h.state(id))
	h.text(id, "Chess")
	require.Equal(t, profile.AwaitingHobbies, h.state(id))
	h.action(id, ActionHobbiesDone, "")
	h.text(id, "Bio text")
	require.Equal(t, profile.AwaitingCustomUsername, h.state(id))
	h.text(id, "sara.k")
	require.Equal(t, profile.AwaitingUsernamePlatform, h.state(id))
	h.action(id, ActionPlatform, "other")
	require.Equal(t, profile.AwaitingCustomPlatform, h.state(id))
	h.text(id, "Threads")
	require.Equal(t, profile.AwaitingPhoto, h.state(id))

	p := h.profile(id)
	assert.Equal(t, "Bahir Dar", p.Location)
	assert.Equal(t, []string{"Chess"}, p.Hobbies)
	assert.False(t, p.AgeVisible)
	assert.Equal(t, "sara.k", p.Handle)
	assert.Equal(t, profile.PlatformOther, p.Platform)
	assert.Equal(t, "Threads", p.PlatformLabel)
}

func TestInvalidAgeRepromptsWithoutWrite(t *testing.T) {
	h := newHarness(t)
	const id = 3
	h.action(id, ActionSignUp, "")
	h.text(id, "Abel")
	h.action(id, ActionGender, "male")
	want, _ := prompt(h.profile(id))
	saves := h.persist.Saves()

	for _, in := range []string{"15", "46", "thirty", "17.5"} {
		h.tr.reset()
		h.text(id, in)
		assert.Equal(t, profile.AwaitingAge, h.state(id), in)
		assert.Equal(t, want, h.tr.last().text, in)
	}
	assert.Equal(t, saves, h.persist.Saves(), "rejected input must not be persisted")

	h.text(id, "17")
	assert.Equal(t, profile.AwaitingAgeVisibility, h.state(id))
}

func TestWrongInputClassRepromptsSameStep(t *testing.T) {
	h := newHarness(t)
	const id = 4
	h.action(id, ActionSignUp, "")
	h.text(id, "Abel")
	saves := h.persist.Saves()

	h.tr.reset()
	h.text(id, "male")
	assert.Equal(t, profile.AwaitingGender, h.state(id))
	want, kb := prompt(h.profile(id))
	assert.Equal(t, want, h.tr.last().text)
	assert.Equal(t, kb, h.tr.last().kb)

	h.action(id, ActionLocation, "0")
	h.photo(id, PhotoSize{FileID: "x", Width: 1, Height: 1})
	h.action(id, ActionGender, "robot")
	assert.Equal(t, profile.AwaitingGender, h.state(id))
	assert.Equal(t, saves, h.persist.Saves())

	h.text(id, "   ")
	assert.Equal(t, profile.AwaitingGender, h.state(id))
}

func TestHobbyCeiling(t *testing.T) {
	h := newHarness(t)
	const id = 5
	h.action(id, ActionSignUp, "")
	h.text(id, "Abel")
	h.action(id, ActionGender, "male")
	h.text(id, "30")
	h.action(id, ActionAgeVisible, "yes")
	h.action(id, ActionLocation, "1")

	for i := 0; i < 5; i++ {
		h.action(id, ActionHobbyToggle, strconv.Itoa(i))
	}
	require.Len(t, h.profile(id).Hobbies, 5)
	assert.True(t, h.tr.last().edit, "toggles edit the keyboard in place")

	h.action(id, ActionHobbyToggle, "5")
	assert.Len(t, h.profile(id).Hobbies, 5)
	assert.Equal(t, textHobbyCeiling, h.tr.last().text)

	h.action(id, ActionHobbyOther, "")
	assert.Equal(t, textHobbyCeiling, h.tr.last().text)
	assert.Equal(t, profile.AwaitingHobbies, h.state(id))

	// Removing one frees a slot.
	h.action(id, ActionHobbyToggle, "0")
	assert.Len(t, h.profile(id).Hobbies, 4)
	h.action(id, ActionHobbyOther, "")
	h.text(id, "📚 Reading")
	assert.Equal(t, textHobbyExists, h.tr.last().text, "duplicate typed hobby")
	assert.Equal(t, profile.AwaitingHobbies, h.state(id))
	h.action(id, ActionHobbyToggle, "5")
	assert.Len(t, h.profile(id).Hobbies, 5)

	// Buttons are ignored while the hobby is being typed.
	h.action(id, ActionHobbyToggle, "5")
	h.action(id, ActionHobbyOther, "")
	h.action(id, ActionHobbyToggle, "5")
	require.Equal(t, profile.AwaitingHobbyTyped, h.state(id), "button ignored while typing")
}

func TestHobbyTypedAtCeiling(t *testing.T) {
	h := newHarness(t)
	const id = 6
	h.onboard(id, profile.Male, 30, "Adama", true)
	h.action(id, ActionSignUp, "")
	require.Equal(t, profile.Completed, h.state(id), "sign up never resets an existing profile")

	h.command(id, CommandEdit)
	h.action(id, ActionEdit, editHobbies)
	for i := 1; i < 5; i++ {
		h.action(id, ActionHobbyToggle, strconv.Itoa(i))
	}
	require.Len(t, h.profile(id).Hobbies, 5)

	// Force the typed sub-state with a full set.
	p := h.profile(id)
	p.State = profile.EditingHobbyTyped
	require.NoError(t, h.store.Upsert(context.Background(), p))
	h.text(id, "Dancing")
	assert.Equal(t, textHobbyCeiling, h.tr.last().text)
	assert.Equal(t, profile.EditingHobbies, h.state(id))
	assert.Len(t, h.profile(id).Hobbies, 5)
}

func TestHobbiesDoneRequiresOne(t *testing.T) {
	h := newHarness(t)
	const id = 7
	h.action(id, ActionSignUp, "")
	h.text(id, "Abel")
	h.action(id, ActionGender, "male")
	h.text(id, "30")
	h.action(id, ActionAgeVisible, "yes")
	h.action(id, ActionLocation, "1")

	h.action(id, ActionHobbiesDone, "")
	assert.Equal(t, profile.AwaitingHobbies, h.state(id))
	assert.Equal(t, textHobbyRequired, h.tr.last().text)
	require.NotNil(t, h.tr.last().kb)
	assert.Equal(t, ActionHobbyToggle, h.tr.last().kb.Inline[0][0].Action)
}

func TestEditFieldReturnsToHub(t *testing.T) {
	h := newHarness(t)
	const id = 8
	h.onboard(id, profile.Female, 25, "Hawassa", true)
	before := h.profile(id)

	h.text(id, MenuEdit)
	require.Equal(t, profile.Editing, h.state(id))

	h.action(id, ActionEdit, editName)
	require.Equal(t, profile.EditingName, h.state(id))
	h.text(id, "Hana")
	require.Equal(t, profile.Editing, h.state(id))
	assert.Equal(t, "📝 Name updated!", h.tr.last().text)

	h.action(id, ActionEdit, editLocation)
	h.action(id, ActionLocation, payloadOther)
	require.Equal(t, profile.EditingLocationTyped, h.state(id))
	h.text(id, "Dire Dawa")
	require.Equal(t, profile.Editing, h.state(id))

	h.action(id, ActionEdit, editContact)
	h.text(id, "hana_ig")
	require.Equal(t, profile.EditingUsernamePlatform, h.state(id))
	h.action(id, ActionPlatform, string(profile.PlatformInstagram))
	require.Equal(t, profile.Editing, h.state(id))

	h.action(id, ActionEdit, editAge)
	h.text(id, "50")
	assert.Equal(t, profile.EditingAge, h.state(id))
	h.text(id, "26")

	h.action(id, ActionEditDone, "")
	p := h.profile(id)
	require.Equal(t, profile.Completed, p.State)
	require.NoError(t, p.Validate())
	assert.Equal(t, "Hana", p.Name)
	assert.Equal(t, "Dire Dawa", p.Location)
	assert.Equal(t, "hana_ig", p.Handle)
	assert.Equal(t, "Instagram", p.PlatformLabel)
	assert.Equal(t, 26, p.Age)
	assert.Equal(t, before.Bio, p.Bio)
	assert.Equal(t, before.Photo, p.Photo)
	assert.Equal(t, 0, h.alerts.to(id), "re-edits never broadcast")
}

func TestEditCancelKeepsAppliedEdits(t *testing.T) {
	h := newHarness(t)
	const id = 9
	h.onboard(id, profile.Female, 25, "Hawassa", true)
	h.command(id, CommandEdit)
	h.action(id, ActionEdit, editBio)
	h.text(id, "New bio")
	h.action(id, ActionEdit, editName)
	h.action(id, ActionEditCancel, "")

	p := h.profile(id)
	assert.Equal(t, profile.Completed, p.State)
	assert.Equal(t, "New bio", p.Bio)
	assert.Equal(t, textEditCancelled, h.tr.last().text)
}

func TestEditModeKeepsLastHobby(t *testing.T) {
	h := newHarness(t)
	const id = 10
	h.onboard(id, profile.Male, 30, "Adama", true)
	h.command(id, CommandEdit)
	h.action(id, ActionEdit, editHobbies)
	h.action(id, ActionHobbyToggle, "0")
	assert.Equal(t, textHobbyKeepOne, h.tr.last().text)
	assert.Len(t, h.profile(id).Hobbies, 1)
}

func TestEditContactCancelKeepsHandleAndPlatform(t *testing.T) {
	h := newHarness(t)
	const id = 21
	h.onboard(id, profile.Female, 25, "Hawassa", true)
	require.Equal(t, "@user21", h.profile(id).Handle)

	h.command(id, CommandEdit)
	h.action(id, ActionEdit, editContact)
	h.text(id, "bob_on_insta")
	require.Equal(t, profile.EditingUsernamePlatform, h.state(id))
	p := h.profile(id)
	assert.Equal(t, "@user21", p.Handle, "handle waits for its platform")
	assert.Equal(t, "bob_on_insta", p.PendingHandle)

	h.action(id, ActionEditCancel, "")
	p = h.profile(id)
	assert.Equal(t, profile.Completed, p.State)
	assert.Equal(t, "@user21", p.Handle)
	assert.Equal(t, profile.PlatformTelegram, p.Platform)
	assert.Empty(t, p.PendingHandle)
	assert.Contains(t, profile.OwnCaption(p), "@user21")
	assert.NotContains(t, profile.OwnCaption(p), "bob_on_insta")

	h.action(99, ActionReveal, strconv.Itoa(id))
	assert.Equal(t, "📞 Contact info:\n@user21 (Telegram)", h.tr.last().text)
}

func TestEditContactFieldSwitchDropsTypedHandle(t *testing.T) {
	h := newHarness(t)
	const id = 22
	h.onboard(id, profile.Male, 30, "Adama", true)

	h.command(id, CommandEdit)
	h.action(id, ActionEdit, editContact)
	h.text(id, "bob_on_insta")
	h.action(id, ActionEdit, editName)
	require.Equal(t, profile.EditingName, h.state(id))
	p := h.profile(id)
	assert.Empty(t, p.PendingHandle)
	assert.Equal(t, "@user22", p.Handle)

	// A later contact edit starts clean and commits both halves together.
	h.action(id, ActionEdit, editContact)
	h.text(id, "bob.k")
	h.action(id, ActionPlatform, string(profile.PlatformOther))
	require.Equal(t, profile.EditingCustomPlatform, h.state(id))
	assert.Equal(t, "@user22", h.profile(id).Handle)
	h.text(id, "Threads")
	p = h.profile(id)
	require.Equal(t, profile.Editing, p.State)
	assert.Equal(t, "bob.k", p.Handle)
	assert.Equal(t, profile.PlatformOther, p.Platform)
	assert.Equal(t, "Threads", p.PlatformLabel)
	assert.Empty(t, p.PendingHandle)
}

func TestStaleHobbyTapTargetsSameHobby(t *testing.T) {
	h := newHarness(t)
	const id = 23
	h.onboard(id, profile.Male, 30, "Adama", true)
	h.command(id, CommandEdit)
	h.action(id, ActionEdit, editHobbies)
	for _, hobby := range []string{"Chess", "Yoga"} {
		h.action(id, ActionHobbyOther, "")
		h.text(id, hobby)
	}
	require.Equal(t, []string{profile.Hobbies[0], "Chess", "Yoga"}, h.profile(id).Hobbies)

	var chess string
	for _, row := range h.tr.last().kb.Inline {
		for _, btn := range row {
			if btn.Action == ActionHobbyToggle && strings.Contains(btn.Label, "Chess") {
				chess = btn.Payload
			}
		}
	}
	require.NotEmpty(t, chess)

	// The same keyboard is tapped twice before it refreshes.
	h.action(id, ActionHobbyToggle, chess)
	h.action(id, ActionHobbyToggle, chess)
	assert.Equal(t, []string{profile.Hobbies[0], "Yoga"}, h.profile(id).Hobbies)
	assert.Equal(t, profile.EditingHobbies, h.state(id))
}

func TestSlashTextRepromptsWithoutWrite(t *testing.T) {
	h := newHarness(t)
	const id = 24
	h.action(id, ActionSignUp, "")
	want, _ := prompt(h.profile(id))
	saves := h.persist.Saves()

	for _, in := range []string{"/stats", " /foo bar", "/Unknown@bot"} {
		h.tr.reset()
		h.text(id, in)
		assert.Equal(t, profile.AwaitingName, h.state(id), in)
		assert.Empty(t, h.profile(id).Name, in)
		assert.Equal(t, want, h.tr.last().text, in)
	}
	assert.Equal(t, saves, h.persist.Saves())

	h.onboard(25, profile.Female, 25, "Hawassa", true)
	h.command(25, CommandEdit)
	h.action(25, ActionEdit, editBio)
	h.text(25, "/stats")
	assert.Equal(t, profile.EditingBio, h.state(25))
	assert.Equal(t, "Hello there", h.profile(25).Bio)
}

func TestEditingBlocksMatchesAndProfile(t *testing.T) {
	h := newHarness(t)
	const id = 11
	h.onboard(id, profile.Male, 30, "Adama", true)
	h.command(id, CommandEdit)
	saves := h.persist.Saves()

	h.text(id, MenuMatches)
	assert.Equal(t, textFinishMatches, h.tr.last().text)
	assert.Equal(t, ActionEdit, h.tr.last().kb.Inline[0][0].Action)
	assert.Equal(t, profile.MatchIdle, h.profile(id).MatchStep, "no match flow started")

	h.command(id, CommandProfile)
	assert.Equal(t, textFinishProfile, h.tr.last().text)

	h.text(id, "what now?")
	assert.Equal(t, textContinueEdit, h.tr.last().text)
	assert.Equal(t, saves, h.persist.Saves())
}

func TestMatchesRequireCompletedProfile(t *testing.T) {
	h := newHarness(t)
	h.command(12, CommandMatches)
	assert.Equal(t, textCompleteFirst, h.tr.last().text)

	h.text(12, "hello")
	assert.Equal(t, textSignUpFirst, h.tr.last().text)
	assert.Equal(t, ActionSignUp, h.tr.last().kb.Inline[0][0].Action)
}

func TestNewMatchScenario(t *testing.T) {
	h := newHarness(t)
	const a, b = 100, 200
	h.onboard(b, profile.Female, 28, "Addis Ababa", true)
	assert.Equal(t, 0, h.alerts.to(b))

	h.onboard(a, profile.Male, 30, "Addis Ababa", false)
	assert.Equal(t, 1, h.alerts.to(b))
	assert.Equal(t, AlertText, h.alerts.sent[0].text)
	assert.Equal(t, 0, h.alerts.to(a), "the new profile is not alerted about the waiting one")

	require.NoError(t, h.engine.NotifyNewMatch(context.Background(), a))
	assert.Equal(t, 1, h.alerts.to(b), "second trigger is a no-op")
	assert.Equal(t, []int64{a}, h.store.Notified(b))

	h.tr.reset()
	h.text(b, MenuMatches)
	assert.Equal(t, profile.MatchAwaitingLocation, h.profile(b).MatchStep)
	h.action(b, ActionMatchLocation, locationIndex("Addis Ababa"))

	var summaries []message
	for _, m := range h.tr.msgs {
		if m.image != "" {
			summaries = append(summaries, m)
		}
	}
	require.Len(t, summaries, 1)
	assert.Equal(t, "big", summaries[0].image)
	assert.NotContains(t, summaries[0].text, "🎂 Age", "A hid their age")
	assert.Equal(t, ActionReveal, summaries[0].kb.Inline[0][0].Action)
	assert.Equal(t, strconv.Itoa(a), summaries[0].kb.Inline[0][0].Payload)
	assert.Equal(t, textMatchesHeader, h.tr.last().text)
	assert.Equal(t, profile.MatchIdle, h.profile(b).MatchStep)
	assert.Equal(t, "Addis Ababa", h.profile(b).MatchLocation)

	h.action(b, ActionReveal, strconv.Itoa(a))
	assert.Equal(t, "📞 Contact info:\n@user100 (Telegram)", h.tr.last().text)
}

func TestMatchTypedLocation(t *testing.T) {
	h := newHarness(t)
	h.onboard(1, profile.Female, 28, "Adama", true)
	h.onboard(2, profile.Male, 31, "Adama", true)

	h.command(1, CommandMatches)
	h.action(1, ActionMatchLocation, payloadOther)
	assert.Equal(t, profile.MatchAwaitingLocationTyped, h.profile(1).MatchStep)
	h.text(1, "adama")
	assert.Equal(t, textNoMatches, h.tr.last().text, "location match is case-sensitive")

	h.command(1, CommandMatches)
	h.action(1, ActionMatchLocation, payloadOther)
	h.text(1, "Adama")
	assert.Equal(t, textMatchesHeader, h.tr.last().text)
}

func TestRevealStaleProfile(t *testing.T) {
	h := newHarness(t)
	h.onboard(1, profile.Female, 28, "Adama", true)
	h.onboard(2, profile.Male, 31, "Adama", true)

	h.command(2, CommandEdit)
	h.action(2, ActionEdit, editBio)

	h.action(1, ActionReveal, "2")
	assert.Equal(t, textNoContact, h.tr.last().text)
	h.action(1, ActionReveal, "999")
	assert.Equal(t, textNoContact, h.tr.last().text)
	h.action(1, ActionReveal, "garbage")
	assert.Equal(t, textNoContact, h.tr.last().text)
}

func TestPhotoIngestion(t *testing.T) {
	h := newHarness(t)
	const id = 13
	h.onboard(id, profile.Male, 30, "Adama", true)
	h.command(id, CommandEdit)
	h.action(id, ActionEdit, editPhoto)

	h.photo(id)
	assert.Equal(t, textNoPhoto, h.tr.last().text)
	assert.Equal(t, profile.EditingPhoto, h.state(id))

	h.photo(id, PhotoSize{FileID: "wide", Width: 1000, Height: 100}, PhotoSize{FileID: "square", Width: 400, Height: 400})
	assert.Equal(t, "square", h.profile(id).Photo)
	assert.Equal(t, profile.Editing, h.state(id))
	assert.Equal(t, "📸 Photo updated!", h.tr.last().text)

	// Photo outside a photo step re-prompts.
	h.photo(id, PhotoSize{FileID: "other", Width: 10, Height: 10})
	assert.Equal(t, "square", h.profile(id).Photo)
}

func TestPersistFailureRepliesAndKeepsState(t *testing.T) {
	h := newHarness(t)
	const id = 14
	h.action(id, ActionSignUp, "")

	h.persist.fail = true
	err := h.send(Event{UserID: id, Kind: EventText, Text: "Abel"})
	require.ErrorIs(t, err, ErrSave)
	require.ErrorIs(t, err, store.ErrPersist)
	assert.Equal(t, textSomethingWrong, h.tr.last().text)
	assert.Equal(t, profile.AwaitingName, h.state(id))

	h.persist.fail = false
	h.text(id, "Abel")
	assert.Equal(t, profile.AwaitingGender, h.state(id))
}

func TestFindMatches(t *testing.T) {
	mk := func(id int64, st profile.State, g profile.Gender, age int, loc string) profile.Profile {
		return profile.Profile{ID: id, State: st, Gender: g, Age: age, Location: loc}
	}
	me := mk(1, profile.Completed, profile.Male, 30, "Adama")
	all := []profile.Profile{
		me,
		mk(2, profile.Completed, profile.Female, 25, "Adama"),
		mk(3, profile.Completed, profile.Female, 25, "Mekelle"),
		mk(4, profile.Completed, profile.Male, 25, "Adama"),
		mk(5, profile.Editing, profile.Female, 25, "Adama"),
		mk(6, profile.Completed, profile.Female, 50, "Adama"),
		mk(7, profile.Completed, "", 25, "Adama"),
		mk(8, profile.Completed, profile.Female, 45, "Adama"),
		mk(9, profile.Completed, profile.Female, 16, "adama"),
	}
	got := FindMatches(me, "Adama", all)
	ids := make([]int64, len(got))
	for i, p := range got {
		ids[i] = p.ID
	}
	assert.Equal(t, []int64{2, 8}, ids)
	for _, p := range got {
		assert.Equal(t, profile.Completed, p.State)
		assert.NotEqual(t, me.Gender, p.Gender)
		assert.True(t, profile.ValidAge(p.Age))
	}
}

func TestNotifySkipsIncompatible(t *testing.T) {
	h := newHarness(t)
	h.onboard(1, profile.Male, 30, "Adama", true)
	h.onboard(2, profile.Male, 33, "Mekelle", true)
	h.action(3, ActionSignUp, "")
	h.onboard(4, profile.Female, 22, "Gonder", true)

	assert.Equal(t, 1, h.alerts.to(1), "location does not gate alerts")
	assert.Equal(t, 1, h.alerts.to(2))
	assert.Equal(t, 0, h.alerts.to(3), "onboarding profiles are not alerted")
	assert.Equal(t, 0, h.alerts.to(4))
	assert.Empty(t, h.store.Notified(4))
}

func TestConcurrentEventsForOneUser(t *testing.T) {
	h := newHarness(t)
	const id = 15
	h.onboard(id, profile.Male, 30, "Adama", true)
	h.command(id, CommandEdit)
	h.action(id, ActionEdit, editHobbies)

	var wg sync.WaitGroup
	for i := 1; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = h.engine.Handle(context.Background(), Event{UserID: id, Kind: EventAction, Action: ActionHobbyToggle, Payload: strconv.Itoa(i)}, &fakeTransport{})
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, len(h.profile(id).Hobbies), profile.MaxHobbies)
}
