package event

import (
	"errors"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned when callback data is read as text but is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("callback data is not valid UTF-8")

// Type is the variant tag of an Event.
type Type int

const (
	TypeCallbackQuery Type = iota + 1
	TypeInlineQuery
	TypeNewMessage
	TypeMessageEdited
	TypeMessageDeleted
	TypeRaw
)

func (t Type) String() string {
	switch t {
	case TypeCallbackQuery:
		return "callback_query"
	case TypeInlineQuery:
		return "inline_query"
	case TypeNewMessage:
		return "new_message"
	case TypeMessageEdited:
		return "message_edited"
	case TypeMessageDeleted:
		return "message_deleted"
	case TypeRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Kind returns the handler-facing kind of the variant. New and edited
// messages share KindMessage.
func (t Type) Kind() Kind {
	switch t {
	case TypeCallbackQuery:
		return KindCallbackQuery
	case TypeInlineQuery:
		return KindInlineQuery
	case TypeNewMessage, TypeMessageEdited:
		return KindMessage
	case TypeMessageDeleted:
		return KindMessageDeleted
	case TypeRaw:
		return KindRaw
	default:
		return 0
	}
}

// Kind describes which events a handler accepts.
type Kind int

const (
	KindCallbackQuery Kind = iota + 1
	KindInlineQuery
	KindMessage
	KindMessageDeleted
	KindRaw
)

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= KindCallbackQuery && k <= KindRaw
}

func (k Kind) String() string {
	switch k {
	case KindCallbackQuery:
		return "callback_query"
	case KindInlineQuery:
		return "inline_query"
	case KindMessage:
		return "message"
	case KindMessageDeleted:
		return "message_deleted"
	case KindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Event is one inbound occurrence from a session. Exactly one payload is set,
// matching Type; use the From* constructors to build one. The zero Event is
// not valid.
type Event struct {
	typ      Type
	callback *CallbackQuery
	inline   *InlineQuery
	message  *Message
	deletion *Deletion
	raw      *Raw
}

// FromCallbackQuery wraps a button callback.
func FromCallbackQuery(cq *CallbackQuery) Event {
	return Event{typ: TypeCallbackQuery, callback: cq}
}

// FromInlineQuery wraps an inline query.
func FromInlineQuery(iq *InlineQuery) Event {
	return Event{typ: TypeInlineQuery, inline: iq}
}

// FromNewMessage wraps a freshly received message.
func FromNewMessage(m *Message) Event {
	return Event{typ: TypeNewMessage, message: m}
}

// FromEditedMessage wraps an edit of an existing message.
func FromEditedMessage(m *Message) Event {
	return Event{typ: TypeMessageEdited, message: m}
}

// FromDeletion wraps a message deletion.
func FromDeletion(d *Deletion) Event {
	return Event{typ: TypeMessageDeleted, deletion: d}
}

// FromRaw wraps a protocol update that has no richer variant.
func FromRaw(r *Raw) Event {
	return Event{typ: TypeRaw, raw: r}
}

// Type returns the variant tag.
func (e Event) Type() Type { return e.typ }

// Kind returns the handler-facing kind.
func (e Event) Kind() Kind { return e.typ.Kind() }

// Valid reports whether the event was built by a constructor with a non-nil payload.
func (e Event) Valid() bool {
	switch e.typ {
	case TypeCallbackQuery:
		return e.callback != nil
	case TypeInlineQuery:
		return e.inline != nil
	case TypeNewMessage, TypeMessageEdited:
		return e.message != nil
	case TypeMessageDeleted:
		return e.deletion != nil
	case TypeRaw:
		return e.raw != nil
	default:
		return false
	}
}

// CallbackQuery returns the callback payload, or nil for other variants.
func (e Event) CallbackQuery() *CallbackQuery { return e.callback }

// InlineQuery returns the inline query payload, or nil for other variants.
func (e Event) InlineQuery() *InlineQuery { return e.inline }

// Message returns the message payload of new and edited messages, or nil.
func (e Event) Message() *Message { return e.message }

// NewMessage returns the message only when the event is a new message.
func (e Event) NewMessage() *Message {
	if e.typ != TypeNewMessage {
		return nil
	}
	return e.message
}

// Deletion returns the deletion payload, or nil for other variants.
func (e Event) Deletion() *Deletion { return e.deletion }

// Raw returns the raw protocol payload, or nil for other variants.
func (e Event) Raw() *Raw { return e.raw }

// ChatID returns the chat the event belongs to. Inline queries have no chat
// and report the sender id, as a private chat with the sender would.
func (e Event) ChatID() (int64, bool) {
	switch {
	case e.callback != nil:
		if e.callback.Chat == nil {
			return 0, false
		}
		return e.callback.Chat.ID, true
	case e.inline != nil:
		return e.inline.Sender.ID, true
	case e.message != nil:
		return e.message.Chat.ID, true
	case e.deletion != nil:
		if e.deletion.ChatID == 0 {
			return 0, false
		}
		return e.deletion.ChatID, true
	default:
		return 0, false
	}
}

// SenderID returns the user who caused the event.
func (e Event) SenderID() (int64, bool) {
	switch {
	case e.callback != nil:
		return e.callback.Sender.ID, true
	case e.inline != nil:
		return e.inline.Sender.ID, true
	case e.message != nil:
		if e.message.Sender == nil {
			return 0, false
		}
		return e.message.Sender.ID, true
	default:
		return 0, false
	}
}

// Query returns the text carried by the event: callback data, inline query
// text or message text. Other variants yield an empty string.
func (e Event) Query() (string, error) {
	switch {
	case e.callback != nil:
		if !utf8.Valid(e.callback.Data) {
			return "", ErrInvalidUTF8
		}
		return string(e.callback.Data), nil
	case e.inline != nil:
		return e.inline.Text, nil
	case e.message != nil:
		return e.message.Text, nil
	default:
		return "", nil
	}
}
