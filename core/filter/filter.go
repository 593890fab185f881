// Package filter implements the predicates handlers use to select events.
//
// A Filter is an immutable value. Evaluate reports a non-match as (false, nil)
// and keeps failures (permission lookups, undecodable callback data) on the
// error return.
package filter

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jdelaire/plugwire/core/event"
	"github.com/jdelaire/plugwire/core/session"
)

var (
	// ErrUnknownFilter is returned when evaluating a zero or corrupt Filter.
	ErrUnknownFilter = errors.New("unknown filter")

	// ErrPermissionLookup wraps failures of the Administrator permission check.
	ErrPermissionLookup = errors.New("permission lookup failed")
)

// Kind identifies a filter variant.
type Kind int

const (
	KindAll Kind = iota + 1
	KindAdministrator
	KindChat
	KindContact
	KindDeleted
	KindDocument
	KindEdited
	KindForward
	KindMedia
	KindMentioned
	KindOutgoing
	KindPhoto
	KindRaw
	KindReply
	KindRegex
	KindSticker
	KindText
)

var kindNames = map[Kind]string{
	KindAll:           "all",
	KindAdministrator: "administrator",
	KindChat:          "chat",
	KindContact:       "contact",
	KindDeleted:       "deleted",
	KindDocument:      "document",
	KindEdited:        "edited",
	KindForward:       "forward",
	KindMedia:         "media",
	KindMentioned:     "mentioned",
	KindOutgoing:      "outgoing",
	KindPhoto:         "photo",
	KindRaw:           "raw",
	KindReply:         "reply",
	KindRegex:         "regex",
	KindSticker:       "sticker",
	KindText:          "text",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Filter is a predicate over one event.
type Filter struct {
	kind    Kind
	chatID  int64
	text    string
	pattern *regexp.Regexp
}

func All() Filter           { return Filter{kind: KindAll} }
func Administrator() Filter { return Filter{kind: KindAdministrator} }
func Contact() Filter       { return Filter{kind: KindContact} }
func Deleted() Filter       { return Filter{kind: KindDeleted} }
func Document() Filter      { return Filter{kind: KindDocument} }
func Edited() Filter        { return Filter{kind: KindEdited} }
func Forward() Filter       { return Filter{kind: KindForward} }
func Media() Filter         { return Filter{kind: KindMedia} }
func Mentioned() Filter     { return Filter{kind: KindMentioned} }
func Outgoing() Filter      { return Filter{kind: KindOutgoing} }
func Photo() Filter         { return Filter{kind: KindPhoto} }
func Raw() Filter           { return Filter{kind: KindRaw} }
func Reply() Filter         { return Filter{kind: KindReply} }
func Sticker() Filter       { return Filter{kind: KindSticker} }

// Chat matches events whose chat id equals id.
func Chat(id int64) Filter {
	return Filter{kind: KindChat, chatID: id}
}

// Text matches messages whose text is exactly s.
func Text(s string) Filter {
	return Filter{kind: KindText, text: s}
}

// Regex matches events whose query string matches pattern.
func Regex(pattern string) (Filter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Filter{}, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return Filter{kind: KindRegex, text: pattern, pattern: re}, nil
}

// MustRegex is like Regex but panics on a malformed pattern.
func MustRegex(pattern string) Filter {
	f, err := Regex(pattern)
	if err != nil {
		panic(err)
	}
	return f
}

// Kind returns the filter variant.
func (f Filter) Kind() Kind { return f.kind }

func (f Filter) String() string {
	switch f.kind {
	case KindChat:
		return fmt.Sprintf("chat(%d)", f.chatID)
	case KindRegex:
		return fmt.Sprintf("regex(%q)", f.text)
	case KindText:
		return fmt.Sprintf("text(%q)", f.text)
	default:
		return f.kind.String()
	}
}

// Evaluate reports whether ev satisfies the filter. perms is consulted only
// by Administrator.
func (f Filter) Evaluate(ctx context.Context, ev event.Event, perms session.PermissionLookup) (bool, error) {
	switch f.kind {
	case KindAll:
		return true, nil

	case KindAdministrator:
		return isAdministrator(ctx, ev, perms)

	case KindChat:
		id, ok := ev.ChatID()
		return ok && id == f.chatID, nil

	case KindContact:
		m := ev.Message()
		return m != nil && m.HasMedia(event.MediaContact), nil

	case KindDeleted:
		return ev.Type() == event.TypeMessageDeleted, nil

	case KindDocument:
		m := ev.Message()
		return m != nil && m.HasMedia(event.MediaDocument), nil

	case KindEdited:
		return ev.Type() == event.TypeMessageEdited, nil

	case KindForward:
		m := ev.NewMessage()
		return m != nil && m.Forward != nil, nil

	case KindMedia:
		m := ev.Message()
		return m != nil && m.Media != nil, nil

	case KindMentioned:
		m := ev.NewMessage()
		return m != nil && m.Mentioned, nil

	case KindOutgoing:
		m := ev.NewMessage()
		return m != nil && m.Outgoing, nil

	case KindPhoto:
		m := ev.Message()
		return m != nil && m.HasMedia(event.MediaPhoto), nil

	case KindRaw:
		return ev.Type() == event.TypeRaw, nil

	case KindReply:
		m := ev.NewMessage()
		return m != nil && m.ReplyTo != nil, nil

	case KindRegex:
		if f.pattern == nil {
			return false, fmt.Errorf("%w: regex without compiled pattern", ErrUnknownFilter)
		}
		query, err := ev.Query()
		if err != nil {
			return false, err
		}
		return f.pattern.MatchString(query), nil

	case KindSticker:
		m := ev.NewMessage()
		return m != nil && m.HasMedia(event.MediaSticker), nil

	case KindText:
		m := ev.Message()
		return m != nil && m.Text == f.text, nil

	default:
		return false, fmt.Errorf("%w: kind %d", ErrUnknownFilter, int(f.kind))
	}
}

func isAdministrator(ctx context.Context, ev event.Event, perms session.PermissionLookup) (bool, error) {
	var (
		chat   *event.Chat
		sender int64
	)

	switch ev.Type() {
	case event.TypeCallbackQuery:
		cq := ev.CallbackQuery()
		if cq == nil {
			return false, nil
		}
		chat = cq.Chat
		sender = cq.Sender.ID
	case event.TypeNewMessage, event.TypeMessageEdited:
		m := ev.Message()
		if m == nil || m.Sender == nil {
			return false, nil
		}
		chat = &m.Chat
		sender = m.Sender.ID
	default:
		return false, nil
	}

	if chat == nil || !chat.IsGroup() {
		return false, nil
	}
	if perms == nil {
		return false, fmt.Errorf("%w: no session to query", ErrPermissionLookup)
	}

	p, err := perms.GroupPermissions(ctx, *chat, sender)
	if err != nil {
		return false, fmt.Errorf("%w: chat %d user %d: %w", ErrPermissionLookup, chat.ID, sender, err)
	}
	return p.IsAdmin(), nil
}
