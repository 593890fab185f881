package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDataMessage(t *testing.T) {
	m := &Message{Chat: Chat{ID: -5}, Sender: &User{ID: 9}, Text: "hi"}

	d, err := NewData("id-1", FromEditedMessage(m))
	require.NoError(t, err)
	require.Equal(t, "id-1", d.ID)
	require.Equal(t, KindMessage, d.Kind)
	require.Equal(t, TypeMessageEdited, d.Type)
	require.Equal(t, int64(-5), d.ChatID)
	require.Equal(t, int64(9), d.UserID)
	require.Equal(t, "hi", d.Query)
	require.Same(t, m, d.Message)
	require.Nil(t, d.CallbackQuery)
}

func TestNewDataInlineQueryChatIsSender(t *testing.T) {
	d, err := NewData("x", FromInlineQuery(&InlineQuery{Sender: User{ID: 77}, Text: "q"}))
	require.NoError(t, err)
	require.Equal(t, KindInlineQuery, d.Kind)
	require.Equal(t, int64(77), d.UserID)
	require.Equal(t, int64(77), d.ChatID)
	require.Equal(t, "q", d.Query)
	require.NotNil(t, d.InlineQuery)
}

func TestNewDataCallback(t *testing.T) {
	cq := &CallbackQuery{Sender: User{ID: 1}, Chat: &Chat{ID: 2}, Data: []byte("ok")}

	d, err := NewData("x", FromCallbackQuery(cq))
	require.NoError(t, err)
	require.Equal(t, KindCallbackQuery, d.Kind)
	require.Equal(t, int64(2), d.ChatID)
	require.Equal(t, int64(1), d.UserID)
	require.Equal(t, "ok", d.Query)
}

func TestNewDataRawHasNoIDs(t *testing.T) {
	d, err := NewData("x", FromRaw(&Raw{Name: "poll"}))
	require.NoError(t, err)
	require.Equal(t, KindRaw, d.Kind)
	require.Zero(t, d.ChatID)
	require.Zero(t, d.UserID)
	require.Empty(t, d.Query)
	require.NotNil(t, d.Raw)
}

func TestNewDataDeletion(t *testing.T) {
	d, err := NewData("x", FromDeletion(&Deletion{ChatID: -3, MessageIDs: []int{4}}))
	require.NoError(t, err)
	require.Equal(t, KindMessageDeleted, d.Kind)
	require.Equal(t, int64(-3), d.ChatID)
	require.NotNil(t, d.Deletion)
}

func TestNewDataErrors(t *testing.T) {
	_, err := NewData("x", Event{})
	require.Error(t, err)

	_, err = NewData("x", FromCallbackQuery(&CallbackQuery{Data: []byte{0xc3, 0x28}}))
	require.ErrorIs(t, err, ErrInvalidUTF8)
}
