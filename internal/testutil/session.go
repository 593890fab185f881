// Package testutil provides an in-memory session for tests.
package testutil

import (
	"context"
	"sync"

	"github.com/jdelaire/plugwire/core/event"
	"github.com/jdelaire/plugwire/core/session"
)

// SentMessage is a message recorded by Session.SendMessage.
type SentMessage struct {
	ChatID int64
	Text   string
}

// CallbackAnswer is an answer recorded by Session.AnswerCallback.
type CallbackAnswer struct {
	CallbackID string
	Text       string
}

type item struct {
	ev  event.Event
	err error
}

type member struct {
	chatID int64
	userID int64
}

// Session is a scripted session.Session. Events and errors are delivered in
// the order they were pushed; after Close, NextEvent returns session.ErrClosed
// once the queue is empty.
type Session struct {
	identity session.Identity
	queue    chan item
	once     sync.Once

	mu        sync.Mutex
	admins    map[member]bool
	lookupErr error
	lookups   int
	sent      []SentMessage
	answers   []CallbackAnswer
}

// NewSession creates a session that reports identity from Self.
func NewSession(identity session.Identity) *Session {
	return &Session{
		identity: identity,
		queue:    make(chan item, 256),
		admins:   make(map[member]bool),
	}
}

// Push queues events for NextEvent.
func (s *Session) Push(evs ...event.Event) {
	for _, ev := range evs {
		s.queue <- item{ev: ev}
	}
}

// Fail queues an error for NextEvent.
func (s *Session) Fail(err error) {
	s.queue <- item{err: err}
}

// Close ends the event stream.
func (s *Session) Close() {
	s.once.Do(func() { close(s.queue) })
}

// SetAdmin marks userID as an administrator of chatID.
func (s *Session) SetAdmin(chatID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[member{chatID, userID}] = true
}

// SetLookupError makes every permission lookup fail with err.
func (s *Session) SetLookupError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookupErr = err
}

func (s *Session) NextEvent(ctx context.Context) (event.Event, error) {
	select {
	case <-ctx.Done():
		return event.Event{}, ctx.Err()
	case it, ok := <-s.queue:
		if !ok {
			return event.Event{}, session.ErrClosed
		}
		return it.ev, it.err
	}
}

func (s *Session) Self(context.Context) (session.Identity, error) {
	return s.identity, nil
}

func (s *Session) GroupPermissions(_ context.Context, chat event.Chat, userID int64) (session.Permissions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.lookupErr != nil {
		return session.Permissions{}, s.lookupErr
	}
	if s.admins[member{chat.ID, userID}] {
		return session.Permissions{Status: "administrator", Admin: true}, nil
	}
	return session.Permissions{Status: "member"}, nil
}

func (s *Session) SendMessage(_ context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, SentMessage{ChatID: chatID, Text: text})
	return nil
}

func (s *Session) AnswerCallback(_ context.Context, callbackID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, CallbackAnswer{CallbackID: callbackID, Text: text})
	return nil
}

// Sent returns the messages sent so far.
func (s *Session) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentMessage(nil), s.sent...)
}

// Answers returns the callback answers sent so far.
func (s *Session) Answers() []CallbackAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CallbackAnswer(nil), s.answers...)
}

// Lookups returns the number of permission lookups performed.
func (s *Session) Lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

var _ session.Session = (*Session)(nil)
