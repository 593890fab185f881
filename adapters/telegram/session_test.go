package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/jdelaire/plugwire/core/event"
	"github.com/jdelaire/plugwire/core/session"
)

const testToken = "123:abc"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type apiCall struct {
	method string
	form   map[string]string
}

// fakeAPI answers Bot API methods from canned responses. getUpdates
// responses are served in order; once exhausted it returns an empty batch.
type fakeAPI struct {
	mu      sync.Mutex
	calls   []apiCall
	updates []any
	members map[string]any
	getMe   any
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		members: make(map[string]any),
		getMe: ok(map[string]any{
			"id": 99, "is_bot": true, "first_name": "Plug", "username": "plugbot",
		}),
	}
}

func ok(result any) map[string]any {
	return map[string]any{"ok": true, "result": result}
}

func apiError(code int, description string) map[string]any {
	return map[string]any{"ok": false, "error_code": code, "description": description}
}

func (f *fakeAPI) queueUpdates(responses ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, responses...)
}

func (f *fakeAPI) callsTo(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	prefix := "/bot" + testToken + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	method := strings.TrimPrefix(r.URL.Path, prefix)
	_ = r.ParseForm()
	form := make(map[string]string)
	for k := range r.Form {
		form[k] = r.Form.Get(k)
	}

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, form: form})
	var resp any
	switch method {
	case "getMe":
		resp = f.getMe
	case "getUpdates":
		if len(f.updates) > 0 {
			resp = f.updates[0]
			f.updates = f.updates[1:]
		} else {
			resp = ok([]any{})
		}
	case "getChatMember":
		resp = f.members[form["chat_id"]+"/"+form["user_id"]]
		if resp == nil {
			resp = apiError(400, "Bad Request: user not found")
		}
	case "sendMessage":
		resp = ok(map[string]any{
			"message_id": 10, "date": 0,
			"chat": map[string]any{"id": 5, "type": "private"},
		})
	case "answerCallbackQuery":
		resp = ok(true)
	default:
		resp = apiError(404, "Not Found")
	}
	f.mu.Unlock()

	if method == "getUpdates" && resp != nil {
		// Keep idle polling from spinning.
		time.Sleep(5 * time.Millisecond)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type SessionSuite struct {
	suite.Suite
	api  *fakeAPI
	srv  *httptest.Server
	sess *Session
	ctx  context.Context
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) SetupTest() {
	s.api = newFakeAPI()
	s.srv = httptest.NewServer(s.api)
	s.ctx = context.Background()

	sess, err := New(s.config(), testLogger())
	require.NoError(s.T(), err)
	s.sess = sess
}

func (s *SessionSuite) TearDownTest() {
	s.srv.Close()
}

func (s *SessionSuite) config() Config {
	return Config{
		Token:           testToken,
		APIEndpoint:     s.srv.URL + "/bot%s/%s",
		PollTimeout:     time.Second,
		RetryInterval:   time.Millisecond,
		RetryMaxElapsed: 2 * time.Second,
	}
}

func (s *SessionSuite) next() event.Event {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	ev, err := s.sess.NextEvent(ctx)
	require.NoError(s.T(), err)
	return ev
}

func (s *SessionSuite) TestNewResolvesIdentity() {
	self, err := s.sess.Self(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), session.Identity{ID: 99, Username: "plugbot"}, self)
}

func (s *SessionSuite) TestNewRejectsBadToken() {
	s.api.getMe = apiError(401, "Unauthorized")
	_, err := New(s.config(), testLogger())
	require.Error(s.T(), err)

	_, err = New(Config{}, testLogger())
	require.Error(s.T(), err)
}

func (s *SessionSuite) TestNextEventClassifiesUpdates() {
	chat := map[string]any{"id": -100, "type": "supergroup", "title": "Room"}
	from := map[string]any{"id": 7, "first_name": "Ann", "username": "ann"}
	s.api.queueUpdates(ok([]any{
		map[string]any{"update_id": 10, "message": map[string]any{
			"message_id": 1, "date": 1700000000, "chat": chat, "from": from,
			"text":     "hi @plugbot",
			"entities": []any{map[string]any{"type": "mention", "offset": 3, "length": 8}},
		}},
		map[string]any{"update_id": 11, "edited_message": map[string]any{
			"message_id": 1, "date": 1700000000, "chat": chat, "from": from, "text": "hello",
		}},
		map[string]any{"update_id": 12},
		map[string]any{"update_id": 13, "callback_query": map[string]any{
			"id": "cb1", "from": from, "data": "vote:1", "chat_instance": "x",
			"message": map[string]any{"message_id": 2, "date": 0, "chat": chat},
		}},
		map[string]any{"update_id": 14, "inline_query": map[string]any{
			"id": "iq1", "from": from, "query": "cats", "offset": "",
		}},
		map[string]any{"update_id": 15, "my_chat_member": map[string]any{
			"chat": chat, "from": from, "date": 0,
			"old_chat_member": map[string]any{"user": from, "status": "member"},
			"new_chat_member": map[string]any{"user": from, "status": "administrator"},
		}},
		map[string]any{"update_id": 16, "channel_post": map[string]any{
			"message_id": 3, "date": 0, "chat": map[string]any{"id": -200, "type": "channel"},
			"text": "news",
		}},
	}))

	ev := s.next()
	require.Equal(s.T(), event.TypeNewMessage, ev.Type())
	m := ev.Message()
	require.Equal(s.T(), "hi @plugbot", m.Text)
	require.Equal(s.T(), int64(-100), m.Chat.ID)
	require.Equal(s.T(), event.ChatSupergroup, m.Chat.Type)
	require.Equal(s.T(), int64(7), m.Sender.ID)
	require.True(s.T(), m.Mentioned)
	require.False(s.T(), m.Outgoing)
	require.Equal(s.T(), time.Unix(1700000000, 0), m.Date)

	ev = s.next()
	require.Equal(s.T(), event.TypeMessageEdited, ev.Type())
	require.Equal(s.T(), "hello", ev.Message().Text)

	ev = s.next()
	require.Equal(s.T(), event.TypeCallbackQuery, ev.Type())
	cq := ev.CallbackQuery()
	require.Equal(s.T(), "cb1", cq.ID)
	require.Equal(s.T(), []byte("vote:1"), cq.Data)
	require.Equal(s.T(), int64(-100), cq.Chat.ID)
	require.Equal(s.T(), 2, cq.MessageID)

	ev = s.next()
	require.Equal(s.T(), event.TypeInlineQuery, ev.Type())
	require.Equal(s.T(), "cats", ev.InlineQuery().Text)
	chatID, hasChat := ev.ChatID()
	require.True(s.T(), hasChat)
	require.Equal(s.T(), int64(7), chatID)

	ev = s.next()
	require.Equal(s.T(), event.TypeRaw, ev.Type())
	require.Equal(s.T(), "my_chat_member", ev.Raw().Name)
	_, isUpdate := ev.Raw().Native.(tgbotapi.Update)
	require.True(s.T(), isUpdate)

	ev = s.next()
	require.Equal(s.T(), event.TypeNewMessage, ev.Type())
	require.Equal(s.T(), event.ChatChannel, ev.Message().Chat.Type)
	require.Nil(s.T(), ev.Message().Sender)

	// The following poll acknowledges everything seen so far.
	s.api.queueUpdates(ok([]any{
		map[string]any{"update_id": 17, "message": map[string]any{
			"message_id": 4, "date": 0, "chat": chat, "from": from, "text": "again",
		}},
	}))
	ev = s.next()
	require.Equal(s.T(), "again", ev.Message().Text)

	polls := s.api.callsTo("getUpdates")
	require.GreaterOrEqual(s.T(), len(polls), 2)
	require.Equal(s.T(), "17", polls[len(polls)-1].form["offset"])
	require.Equal(s.T(), "1", polls[0].form["timeout"])
}

func (s *SessionSuite) TestNextEventRetriesTransientErrors() {
	s.api.queueUpdates(
		apiError(500, "Internal Server Error"),
		apiError(409, "Conflict: terminated by other getUpdates request"),
		ok([]any{map[string]any{"update_id": 1, "message": map[string]any{
			"message_id": 1, "date": 0, "chat": map[string]any{"id": 5, "type": "private"}, "text": "ok",
		}}}),
	)

	ev := s.next()
	require.Equal(s.T(), "ok", ev.Message().Text)
	require.Len(s.T(), s.api.callsTo("getUpdates"), 3)
}

func (s *SessionSuite) TestNextEventPermanentError() {
	s.api.queueUpdates(apiError(401, "Unauthorized"))

	_, err := s.sess.NextEvent(s.ctx)
	var apiErr *tgbotapi.Error
	require.True(s.T(), errors.As(err, &apiErr))
	require.Equal(s.T(), 401, apiErr.Code)
	require.Len(s.T(), s.api.callsTo("getUpdates"), 1)
}

func (s *SessionSuite) TestNextEventCancelled() {
	ctx, cancel := context.WithTimeout(s.ctx, 50*time.Millisecond)
	defer cancel()

	_, err := s.sess.NextEvent(ctx)
	require.ErrorIs(s.T(), err, context.DeadlineExceeded)
}

func (s *SessionSuite) TestClose() {
	s.sess.Close()
	_, err := s.sess.NextEvent(s.ctx)
	require.ErrorIs(s.T(), err, session.ErrClosed)
}

func (s *SessionSuite) TestGroupPermissions() {
	user := map[string]any{"id": 7, "first_name": "Ann"}
	s.api.members["-100/7"] = ok(map[string]any{"user": user, "status": "administrator"})
	s.api.members["-100/8"] = ok(map[string]any{"user": user, "status": "member"})
	s.api.members["-100/9"] = ok(map[string]any{"user": user, "status": "creator"})
	chat := event.Chat{ID: -100, Type: event.ChatSupergroup}

	p, err := s.sess.GroupPermissions(s.ctx, chat, 7)
	require.NoError(s.T(), err)
	require.True(s.T(), p.IsAdmin())
	require.Equal(s.T(), "administrator", p.Status)

	p, err = s.sess.GroupPermissions(s.ctx, chat, 8)
	require.NoError(s.T(), err)
	require.False(s.T(), p.IsAdmin())

	p, err = s.sess.GroupPermissions(s.ctx, chat, 9)
	require.NoError(s.T(), err)
	require.True(s.T(), p.Creator)
	require.True(s.T(), p.IsAdmin())

	_, err = s.sess.GroupPermissions(s.ctx, chat, 10)
	require.Error(s.T(), err)
}

func (s *SessionSuite) TestSendMessage() {
	require.NoError(s.T(), s.sess.SendMessage(s.ctx, 5, "pong"))

	calls := s.api.callsTo("sendMessage")
	require.Len(s.T(), calls, 1)
	require.Equal(s.T(), "5", calls[0].form["chat_id"])
	require.Equal(s.T(), "pong", calls[0].form["text"])
}

func (s *SessionSuite) TestAnswerCallback() {
	require.NoError(s.T(), s.sess.AnswerCallback(s.ctx, "cb1", "vote:1"))

	calls := s.api.callsTo("answerCallbackQuery")
	require.Len(s.T(), calls, 1)
	require.Equal(s.T(), "cb1", calls[0].form["callback_query_id"])
	require.Equal(s.T(), "vote:1", calls[0].form["text"])
}

func (s *SessionSuite) TestCancelledContextSkipsRequests() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	require.ErrorIs(s.T(), s.sess.SendMessage(ctx, 5, "x"), context.Canceled)
	require.ErrorIs(s.T(), s.sess.AnswerCallback(ctx, "cb", "x"), context.Canceled)
	_, err := s.sess.GroupPermissions(ctx, event.Chat{ID: 1}, 1)
	require.ErrorIs(s.T(), err, context.Canceled)
	require.Empty(s.T(), s.api.callsTo("sendMessage"))
}
