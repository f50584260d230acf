package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/lovematch/core/telegram"
	"github.com/m3rciful/lovematch/internal/flow"
	"github.com/m3rciful/lovematch/internal/profile"
	"github.com/m3rciful/lovematch/internal/store"
)

type call struct {
	what any
	opts []any
}

// fakeContext implements the parts of tele.Context the adapter touches.
type fakeContext struct {
	tele.Context
	user  *tele.User
	msg   *tele.Message
	cb    *tele.Callback
	vals  map[string]any
	sent  []call
	edits []call
}

func newFakeContext(userID int64, username string) *fakeContext {
	return &fakeContext{user: &tele.User{ID: userID, Username: username}, vals: map[string]any{}}
}

func (f *fakeContext) withText(text string) *fakeContext {
	f.msg, f.cb = &tele.Message{Text: text}, nil
	return f
}

func (f *fakeContext) withPhoto(id string, w, h int) *fakeContext {
	f.msg, f.cb = &tele.Message{Photo: &tele.Photo{File: tele.File{FileID: id}, Width: w, Height: h}}, nil
	return f
}

func (f *fakeContext) withCallback(data string) *fakeContext {
	f.msg, f.cb = nil, &tele.Callback{Data: data, Message: &tele.Message{ID: 9}}
	return f
}

func (f *fakeContext) Sender() *tele.User       { return f.user }
func (f *fakeContext) Chat() *tele.Chat         { return &tele.Chat{ID: f.user.ID} }
func (f *fakeContext) Callback() *tele.Callback { return f.cb }
func (f *fakeContext) Update() tele.Update {
	return tele.Update{ID: 1, Message: f.msg, Callback: f.cb}
}

func (f *fakeContext) Message() *tele.Message {
	if f.cb != nil {
		return f.cb.Message
	}
	return f.msg
}

func (f *fakeContext) Text() string {
	if f.msg == nil {
		return ""
	}
	return f.msg.Text
}

func (f *fakeContext) Get(key string) any      { return f.vals[key] }
func (f *fakeContext) Set(key string, val any) { f.vals[key] = val }

func (f *fakeContext) Send(what any, opts ...any) error {
	f.sent = append(f.sent, call{what, opts})
	return nil
}

func (f *fakeContext) Edit(what any, opts ...any) error {
	if f.cb == nil {
		return errors.New("edit outside a callback")
	}
	f.edits = append(f.edits, call{what, opts})
	return nil
}

func (f *fakeContext) lastText() string {
	if len(f.sent) == 0 {
		return ""
	}
	s, _ := f.sent[len(f.sent)-1].what.(string)
	return s
}

func (f *fakeContext) lastMarkup() *tele.ReplyMarkup {
	if len(f.sent) == 0 {
		return nil
	}
	for _, o := range f.sent[len(f.sent)-1].opts {
		if m, ok := o.(*tele.ReplyMarkup); ok {
			return m
		}
	}
	return nil
}

func newTestBot(t *testing.T) (*Bot, *store.Store) {
	t.Helper()
	st := store.New(&store.MemoryStore{}, store.BackendMemory)
	engine := flow.New(st, &Alerter{}, flow.Options{})
	return New(engine, st, 42), st
}

func TestMarkupRendersInlineAndReply(t *testing.T) {
	for _, kb := range []*flow.Keyboard{nil, {}} {
		m, err := markup(kb)
		require.NoError(t, err)
		assert.Nil(t, m)
	}

	m, err := markup(&flow.Keyboard{Inline: [][]flow.Button{
		{{Label: "Yes", Action: flow.ActionAgeVisible, Payload: "yes"}},
		{{Label: "Done", Action: flow.ActionHobbiesDone}},
	}})
	require.NoError(t, err)
	require.Len(t, m.InlineKeyboard, 2)
	assert.Equal(t, "Yes", m.InlineKeyboard[0][0].Text)
	assert.Equal(t, flow.ActionAgeVisible, m.InlineKeyboard[0][0].Unique)
	assert.Equal(t, "yes", m.InlineKeyboard[0][0].Data)

	r, err := markup(&flow.Keyboard{Reply: [][]string{{flow.MenuMatches}, {flow.MenuProfile, flow.MenuEdit}}})
	require.NoError(t, err)
	require.Len(t, r.ReplyKeyboard, 2)
	assert.Equal(t, flow.MenuEdit, r.ReplyKeyboard[1][1].Text)
	assert.True(t, r.ResizeKeyboard)
}

func TestEventMapping(t *testing.T) {
	c := newFakeContext(5, "abel")

	ev := messageEvent(c.withText("hello"))
	assert.Equal(t, flow.EventText, ev.Kind)
	assert.Equal(t, "hello", ev.Text)
	assert.Equal(t, int64(5), ev.UserID)
	assert.Equal(t, "abel", ev.Handle)

	ev = messageEvent(c.withPhoto("file-1", 640, 480))
	assert.Equal(t, flow.EventPhoto, ev.Kind)
	assert.Equal(t, []flow.PhotoSize{{FileID: "file-1", Width: 640, Height: 480}}, ev.Photos)

	ev = actionEvent(c.withCallback("\freveal|77"))
	assert.Equal(t, flow.EventAction, ev.Kind)
	assert.Equal(t, flow.ActionReveal, ev.Action)
	assert.Equal(t, "77", ev.Payload)

	ev = commandEvent(c, "/matches")
	assert.Equal(t, flow.CommandMatches, ev.Command)
}

func TestEditLastNeedsCallback(t *testing.T) {
	c := newFakeContext(1, "").withText("x")
	err := contextTransport{c}.EditLast(context.Background(), "ack", nil)
	assert.ErrorIs(t, err, errNoCallback)

	c.withCallback("\fhobby_toggle|0")
	tr := contextTransport{c}
	require.NoError(t, tr.EditLast(context.Background(), "", &flow.Keyboard{Inline: [][]flow.Button{{{Label: "a", Action: "b"}}}}))
	require.Len(t, c.edits, 1)
	_, isMarkup := c.edits[0].what.(*tele.ReplyMarkup)
	assert.True(t, isMarkup, "empty text edits only the keyboard")

	require.NoError(t, tr.EditLast(context.Background(), "done", nil))
	assert.Equal(t, "done", c.edits[1].what)
	assert.Empty(t, c.edits[1].opts)
}

func TestReplyWithImageSendsPhoto(t *testing.T) {
	c := newFakeContext(1, "")
	require.NoError(t, contextTransport{c}.ReplyWithImage(context.Background(), "file-9", "caption", nil))
	photo, ok := c.sent[0].what.(*tele.Photo)
	require.True(t, ok)
	assert.Equal(t, "file-9", photo.FileID)
	assert.Equal(t, "caption", photo.Caption)
}

func TestRegister(t *testing.T) {
	b, _ := newTestBot(t)
	reg := tg.NewRegistry()
	require.NoError(t, b.Register(reg))

	assert.Len(t, reg.Commands(), len(commands)+1)
	assert.ElementsMatch(t, flow.Actions, reg.ListCallbacks())

	key, _, ok := reg.LookupCommand(flow.MenuMatches)
	require.True(t, ok)
	assert.Equal(t, "/matches", key)

	for _, c := range reg.ListCommands(true) {
		assert.NotEqual(t, "stats", c.Text, "admin command stays hidden")
	}
	assert.NotNil(t, reg.TextFallback())
	assert.NotEmpty(t, b.Routes(reg))
}

func TestConversationThroughAdapter(t *testing.T) {
	b, st := newTestBot(t)
	c := newFakeContext(7, "abel")

	require.NoError(t, b.commandHandler(flow.CommandStart)(c.withText("/start")))
	require.Len(t, c.sent, 3)
	m := c.lastMarkup()
	require.NotNil(t, m)
	assert.Equal(t, flow.ActionSignUp, m.InlineKeyboard[0][0].Unique)
	assert.False(t, b.InProgress(7))

	require.NoError(t, b.handleCallback(c.withCallback("\fsignup")))
	assert.True(t, b.InProgress(7))

	require.NoError(t, b.Handle(c.withText("Abel")))
	p, ok := st.Get(7)
	require.True(t, ok)
	assert.Equal(t, "Abel", p.Name)
	assert.Equal(t, profile.AwaitingGender, p.State)
	assert.Equal(t, flow.ActionGender, c.lastMarkup().InlineKeyboard[0][0].Unique)

	require.NoError(t, b.handleCallback(c.withCallback("\fgender|female")))
	p, _ = st.Get(7)
	assert.Equal(t, profile.Female, p.Gender)
	require.NotEmpty(t, c.edits, "choice is acknowledged in place")
}

func TestStatsCommand(t *testing.T) {
	b, st := newTestBot(t)
	require.NoError(t, st.Upsert(context.Background(), profile.New(1)))
	require.NoError(t, st.Upsert(context.Background(), profile.New(2)))

	c := newFakeContext(42, "")
	require.NoError(t, b.handleStats(c))
	assert.Contains(t, c.lastText(), "📊 Profiles: 2 (onboarding: 2)")
	assert.Contains(t, c.lastText(), string(profile.AwaitingName)+": 2")
}

func TestSlashTextNeverFillsAField(t *testing.T) {
	b, st := newTestBot(t)
	c := newFakeContext(8, "")
	require.NoError(t, b.handleCallback(c.withCallback("\fsignup")))
	want := c.lastText()
	require.NotEmpty(t, want)

	// A non-admin /stats falls through to the conversation handler.
	for _, in := range []string{"/stats", "/unknown arg", "/Stats@lovematch_bot"} {
		require.NoError(t, b.Handle(c.withText(in)))
		p, ok := st.Get(8)
		require.True(t, ok)
		assert.Empty(t, p.Name, in)
		assert.Equal(t, profile.AwaitingName, p.State, in)
		assert.Equal(t, want, c.lastText(), in)
	}
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent map[int64]string
	err  error
}

func (f *fakeMessenger) Send(to tele.Recipient, what any, _ ...any) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = map[int64]string{}
	}
	id := to.(tele.ChatID)
	f.sent[int64(id)] = what.(string)
	return &tele.Message{}, f.err
}

type fakeQueue struct {
	accept bool
	jobs   []func() error
}

func (q *fakeQueue) Submit(_ context.Context, _, _ string, run func() error) bool {
	q.jobs = append(q.jobs, run)
	return q.accept
}

func TestAlerterQueuesThroughDispatcher(t *testing.T) {
	a := &Alerter{}
	a.Alert(context.Background(), 1, "dropped before start")

	m, q := &fakeMessenger{}, &fakeQueue{accept: true}
	a.Bind(m, q)
	a.Alert(context.Background(), 2, flow.AlertText)
	require.Len(t, q.jobs, 1)
	assert.Empty(t, m.sent, "alert is not sent inline")

	require.NoError(t, q.jobs[0]())
	assert.Equal(t, flow.AlertText, m.sent[2])

	m.err = errors.New("blocked by user")
	a.Alert(context.Background(), 3, flow.AlertText)
	assert.Error(t, q.jobs[1]())
}
