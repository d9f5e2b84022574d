package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"access-bot-backend/internal/bot"
	"access-bot-backend/internal/render"
)

type stubLimiter struct {
	allow bool
	calls int
}

func (s *stubLimiter) Allow(context.Context, int64) (bool, error) {
	s.calls++
	return s.allow, nil
}

func offlineBot(t *testing.T, limiter Limiter) *Bot {
	t.Helper()
	b, err := NewBot(Options{Token: "123:test", Offline: true}, nil, limiter, nil)
	require.NoError(t, err)
	return b
}

func TestToUpdateParsesCommand(t *testing.T) {
	b := offlineBot(t, nil)
	c := b.bot.NewContext(tele.Update{Message: &tele.Message{
		ID:     5,
		Text:   "/approve@access_bot 42",
		Sender: &tele.User{ID: 9, Username: "mod", FirstName: "Mo"},
		Chat:   &tele.Chat{ID: 9, Type: tele.ChatPrivate},
	}})

	u := toUpdate(c)
	assert.EqualValues(t, 9, u.SenderID)
	assert.Equal(t, "mod", u.Username)
	assert.Equal(t, "approve", u.Command)
	assert.Equal(t, []string{"42"}, u.Args)
	assert.Equal(t, 5, u.MessageID)
	assert.False(t, u.HasAttachment)
}

func TestToUpdateCallbackAndAttachment(t *testing.T) {
	b := offlineBot(t, nil)

	c := b.bot.NewContext(tele.Update{Callback: &tele.Callback{
		Data:   "admin_queue:5",
		Sender: &tele.User{ID: 3},
	}})
	u := toUpdate(c)
	assert.Equal(t, "admin_queue:5", u.Callback)
	assert.Empty(t, u.Command)

	c = b.bot.NewContext(tele.Update{Message: &tele.Message{
		ID:     8,
		Photo:  &tele.Photo{},
		Sender: &tele.User{ID: 4},
		Chat:   &tele.Chat{ID: 4, Type: tele.ChatPrivate},
	}})
	u = toUpdate(c)
	assert.True(t, u.HasAttachment)
	assert.Equal(t, 8, u.MessageID)
}

func TestMarkupPrefersInline(t *testing.T) {
	m := markup(render.Reply{
		Text:   "pay",
		Inline: [][]render.Button{render.Row(render.Link("Open", "https://pay.example"), render.Callback("Check", "check_invoice:1"))},
		Menu:   [][]string{{"menu"}},
	})
	require.NotNil(t, m)
	require.Len(t, m.InlineKeyboard, 1)
	assert.Equal(t, "https://pay.example", m.InlineKeyboard[0][0].URL)
	assert.Equal(t, "check_invoice:1", m.InlineKeyboard[0][1].Data)
	assert.Nil(t, m.ReplyKeyboard)

	m = markup(render.Reply{Text: "hi", Menu: [][]string{{"a"}, {"b", "c"}}, Placeholder: "..."})
	require.NotNil(t, m)
	assert.Len(t, m.ReplyKeyboard, 2)
	assert.True(t, m.ResizeKeyboard)
	assert.Equal(t, "...", m.Placeholder)

	assert.Nil(t, markup(render.Reply{Text: "plain"}))
}

func TestContentSendsPhotoWithCaption(t *testing.T) {
	what, _ := content(render.Reply{Text: "scan me", Photo: []byte{0x89, 'P', 'N', 'G'}})
	photo, ok := what.(*tele.Photo)
	require.True(t, ok)
	assert.Equal(t, "scan me", photo.Caption)

	what, _ = content(render.Reply{Text: "just text"})
	assert.Equal(t, "just text", what)
}

func TestThrottleDropsExcessUpdates(t *testing.T) {
	limiter := &stubLimiter{allow: false}
	b := offlineBot(t, limiter)

	called := false
	h := b.throttle(func(tele.Context) error {
		called = true
		return nil
	})
	c := b.bot.NewContext(tele.Update{Message: &tele.Message{
		Text:   "hi",
		Sender: &tele.User{ID: 4},
		Chat:   &tele.Chat{ID: 4, Type: tele.ChatPrivate},
	}})

	require.NoError(t, h(c))
	assert.False(t, called)
	assert.Equal(t, 1, limiter.calls)

	limiter.allow = true
	require.NoError(t, h(c))
	assert.True(t, called)
}

func TestThrottleIgnoresBots(t *testing.T) {
	limiter := &stubLimiter{allow: true}
	b := offlineBot(t, limiter)
	called := false
	h := b.throttle(func(tele.Context) error {
		called = true
		return nil
	})
	c := b.bot.NewContext(tele.Update{Message: &tele.Message{
		Text:   "hi",
		Sender: &tele.User{ID: 4, IsBot: true},
		Chat:   &tele.Chat{ID: 4},
	}})
	require.NoError(t, h(c))
	assert.False(t, called)
	assert.Zero(t, limiter.calls)
}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type recordingHandler struct {
	log      *callLog
	deadline time.Duration
}

func (h *recordingHandler) Handle(ctx context.Context, u bot.Update) render.Reply {
	h.log.add("handle:" + u.Callback)
	if d, ok := ctx.Deadline(); ok {
		h.deadline = time.Until(d)
	}
	return render.Reply{}
}

func TestCallbackAnsweredBeforeHandling(t *testing.T) {
	log := &callLog{}
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add("api:" + r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer api.Close()

	h := &recordingHandler{log: log}
	b, err := NewBot(Options{Token: "123:test", URL: api.URL, Offline: true, UpdateTimeout: 5 * time.Second}, h, nil, nil)
	require.NoError(t, err)

	c := b.bot.NewContext(tele.Update{Callback: &tele.Callback{
		ID:     "cb-1",
		Data:   "check_invoice:1",
		Sender: &tele.User{ID: 3},
	}})
	require.NoError(t, b.handleCallback(c))

	assert.Equal(t, []string{"api:answerCallbackQuery", "handle:check_invoice:1"}, log.snapshot())
	assert.Greater(t, h.deadline, time.Duration(0))
	assert.LessOrEqual(t, h.deadline, 5*time.Second)
}

func TestMessageHandlingHasDeadline(t *testing.T) {
	h := &recordingHandler{log: &callLog{}}
	b, err := NewBot(Options{Token: "123:test", Offline: true}, h, nil, nil)
	require.NoError(t, err)

	c := b.bot.NewContext(tele.Update{Message: &tele.Message{
		Text:   "hi",
		Sender: &tele.User{ID: 4},
		Chat:   &tele.Chat{ID: 4, Type: tele.ChatPrivate},
	}})
	require.NoError(t, b.handleMessage(c))

	assert.Equal(t, []string{"handle:"}, h.log.snapshot())
	assert.Greater(t, h.deadline, time.Duration(0))
	assert.LessOrEqual(t, h.deadline, defaultUpdateTimeout)
}
