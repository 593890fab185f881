package event

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type EventSuite struct {
	suite.Suite
}

func TestEventSuite(t *testing.T) {
	suite.Run(t, new(EventSuite))
}

func (s *EventSuite) TestTypeKindMapping() {
	tests := []struct {
		typ  Type
		kind Kind
	}{
		{TypeCallbackQuery, KindCallbackQuery},
		{TypeInlineQuery, KindInlineQuery},
		{TypeNewMessage, KindMessage},
		{TypeMessageEdited, KindMessage},
		{TypeMessageDeleted, KindMessageDeleted},
		{TypeRaw, KindRaw},
		{Type(0), Kind(0)},
	}
	for _, tc := range tests {
		s.Run(tc.typ.String(), func() {
			require.Equal(s.T(), tc.kind, tc.typ.Kind())
		})
	}
}

func (s *EventSuite) TestKindValid() {
	require.True(s.T(), KindMessage.Valid())
	require.True(s.T(), KindRaw.Valid())
	require.False(s.T(), Kind(0).Valid())
	require.False(s.T(), Kind(99).Valid())
}

func (s *EventSuite) TestZeroEventInvalid() {
	var ev Event
	require.False(s.T(), ev.Valid())
	require.Equal(s.T(), Kind(0), ev.Kind())
	require.False(s.T(), FromNewMessage(nil).Valid())
}

func (s *EventSuite) TestExactlyOnePayload() {
	m := &Message{ID: 1, Chat: Chat{ID: 10}}
	ev := FromEditedMessage(m)

	require.True(s.T(), ev.Valid())
	require.Same(s.T(), m, ev.Message())
	require.Nil(s.T(), ev.NewMessage())
	require.Nil(s.T(), ev.CallbackQuery())
	require.Nil(s.T(), ev.InlineQuery())
	require.Nil(s.T(), ev.Deletion())
	require.Nil(s.T(), ev.Raw())
}

func (s *EventSuite) TestChatID() {
	tests := []struct {
		name   string
		ev     Event
		want   int64
		wantOK bool
	}{
		{"message", FromNewMessage(&Message{Chat: Chat{ID: -100}}), -100, true},
		{"edited", FromEditedMessage(&Message{Chat: Chat{ID: 5}}), 5, true},
		{"callback", FromCallbackQuery(&CallbackQuery{Chat: &Chat{ID: 7}}), 7, true},
		{"inline callback", FromCallbackQuery(&CallbackQuery{Sender: User{ID: 3}}), 0, false},
		{"inline query uses sender", FromInlineQuery(&InlineQuery{Sender: User{ID: 42}}), 42, true},
		{"deletion known", FromDeletion(&Deletion{ChatID: -9}), -9, true},
		{"deletion unknown", FromDeletion(&Deletion{MessageIDs: []int{1}}), 0, false},
		{"raw", FromRaw(&Raw{Name: "poll"}), 0, false},
	}
	for _, tc := range tests {
		s.Run(tc.name, func() {
			got, ok := tc.ev.ChatID()
			require.Equal(s.T(), tc.wantOK, ok)
			require.Equal(s.T(), tc.want, got)
		})
	}
}

func (s *EventSuite) TestSenderID() {
	id, ok := FromNewMessage(&Message{Sender: &User{ID: 8}}).SenderID()
	require.True(s.T(), ok)
	require.Equal(s.T(), int64(8), id)

	_, ok = FromNewMessage(&Message{}).SenderID()
	require.False(s.T(), ok)

	_, ok = FromRaw(&Raw{}).SenderID()
	require.False(s.T(), ok)
}

func (s *EventSuite) TestQuery() {
	q, err := FromCallbackQuery(&CallbackQuery{Data: []byte("vote:1")}).Query()
	require.NoError(s.T(), err)
	require.Equal(s.T(), "vote:1", q)

	q, err = FromInlineQuery(&InlineQuery{Text: "cats"}).Query()
	require.NoError(s.T(), err)
	require.Equal(s.T(), "cats", q)

	q, err = FromNewMessage(&Message{Text: "/start"}).Query()
	require.NoError(s.T(), err)
	require.Equal(s.T(), "/start", q)

	q, err = FromDeletion(&Deletion{}).Query()
	require.NoError(s.T(), err)
	require.Empty(s.T(), q)
}

func (s *EventSuite) TestQueryInvalidUTF8() {
	_, err := FromCallbackQuery(&CallbackQuery{Data: []byte{0xff, 0xfe}}).Query()
	require.ErrorIs(s.T(), err, ErrInvalidUTF8)
}

func (s *EventSuite) TestChatIsGroup() {
	require.True(s.T(), Chat{Type: ChatGroup}.IsGroup())
	require.True(s.T(), Chat{Type: ChatSupergroup}.IsGroup())
	require.False(s.T(), Chat{Type: ChatPrivate}.IsGroup())
	require.False(s.T(), Chat{Type: ChatChannel}.IsGroup())
}

func (s *EventSuite) TestHasMedia() {
	m := &Message{Media: &Media{Kind: MediaPhoto}}
	require.True(s.T(), m.HasMedia(MediaPhoto))
	require.False(s.T(), m.HasMedia(MediaDocument))
	require.False(s.T(), (&Message{}).HasMedia(MediaPhoto))
}
