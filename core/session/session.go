// Package session defines the protocol session the dispatch engine consumes.
package session

import (
	"context"
	"errors"

	"github.com/jdelaire/plugwire/core/event"
)

// ErrClosed is returned by NextEvent when the event stream has ended.
var ErrClosed = errors.New("session closed")

// Identity is the account the session is logged in as.
type Identity struct {
	ID       int64
	Username string
}

// Permissions are a user's rights inside a group.
type Permissions struct {
	Status  string
	Admin   bool
	Creator bool
}

// IsAdmin reports whether the user administers the group.
func (p Permissions) IsAdmin() bool {
	return p.Admin || p.Creator
}

// PermissionLookup resolves group permissions. It is the only session
// capability filters depend on.
type PermissionLookup interface {
	GroupPermissions(ctx context.Context, chat event.Chat, userID int64) (Permissions, error)
}

// Session is a connected messaging account. All methods except NextEvent may
// be called concurrently; NextEvent has a single consumer.
type Session interface {
	PermissionLookup

	// NextEvent blocks until the next event arrives. It returns ErrClosed at
	// the end of the stream and ctx.Err() when ctx is cancelled.
	NextEvent(ctx context.Context) (event.Event, error)

	// Self returns the logged-in identity.
	Self(ctx context.Context) (Identity, error)

	SendMessage(ctx context.Context, chatID int64, text string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
