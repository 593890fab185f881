// Package telegram implements session.Session over the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jdelaire/plugwire/core/event"
	"github.com/jdelaire/plugwire/core/session"
)

const (
	defaultPollTimeout   = 30 * time.Second
	defaultRetryInterval = 5 * time.Second
	httpGrace            = 5 * time.Second
)

// Config holds the connection settings.
type Config struct {
	Token string
	// APIEndpoint is a format string taking the token and the method name.
	// Defaults to tgbotapi.APIEndpoint.
	APIEndpoint string
	// PollTimeout is the server-side long-poll timeout.
	PollTimeout time.Duration
	// RetryInterval is the first wait after a failed poll.
	RetryInterval time.Duration
	// RetryMaxElapsed bounds how long failed polls are retried. Zero retries
	// until the context ends.
	RetryMaxElapsed time.Duration
}

type pollResult struct {
	updates []tgbotapi.Update
	err     error
}

// Session long-polls Telegram for updates and exposes them as events.
// NextEvent must be called from a single goroutine.
type Session struct {
	api    *tgbotapi.BotAPI
	cfg    Config
	logger *slog.Logger
	self   session.Identity
	closed atomic.Bool

	offset  int
	pending []event.Event
	// inflight is a getUpdates call that outlived the NextEvent that
	// started it. Telegram rejects concurrent polls, so it is awaited
	// before a new one is issued.
	inflight chan pollResult
}

// New connects to the Bot API and resolves the bot identity.
func New(cfg Config, logger *slog.Logger) (*Session, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram: token is required")
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}

	client := &http.Client{Timeout: cfg.PollTimeout + httpGrace}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}

	s := &Session{
		api:    api,
		cfg:    cfg,
		logger: logger,
		self:   session.Identity{ID: api.Self.ID, Username: api.Self.UserName},
	}
	logger.Info("telegram session connected", "bot_id", s.self.ID, "username", s.self.Username)
	return s, nil
}

// Close ends the event stream. NextEvent returns session.ErrClosed afterwards.
func (s *Session) Close() {
	s.closed.Store(true)
}

// NextEvent returns the next classified update, polling when none is
// buffered. Transient poll failures are retried with exponential backoff.
func (s *Session) NextEvent(ctx context.Context) (event.Event, error) {
	for {
		if s.closed.Load() {
			return event.Event{}, session.ErrClosed
		}
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}

		updates, err := s.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return event.Event{}, ctx.Err()
			}
			return event.Event{}, fmt.Errorf("telegram: poll: %w", err)
		}

		for _, u := range updates {
			if u.UpdateID >= s.offset {
				s.offset = u.UpdateID + 1
			}
			ev, ok := convert(u, s.self)
			if !ok {
				s.logger.Debug("skipping empty update", "update_id", u.UpdateID)
				continue
			}
			s.pending = append(s.pending, ev)
		}
	}
}

func (s *Session) poll(ctx context.Context) ([]tgbotapi.Update, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.RetryInterval
	bo.MaxElapsedTime = s.cfg.RetryMaxElapsed

	return backoff.RetryNotifyWithData(func() ([]tgbotapi.Update, error) {
		updates, err := s.fetch(ctx)
		if err != nil && (ctx.Err() != nil || isPermanent(err)) {
			return nil, backoff.Permanent(err)
		}
		return updates, err
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		s.logger.Error("poll error", "error", err, "retry_in", wait)
	})
}

// fetch runs one getUpdates call. The Bot API client is not
// context-aware, so the call runs in its own goroutine.
func (s *Session) fetch(ctx context.Context) ([]tgbotapi.Update, error) {
	if s.inflight == nil {
		cfg := tgbotapi.NewUpdate(s.offset)
		cfg.Timeout = int(s.cfg.PollTimeout / time.Second)

		ch := make(chan pollResult, 1)
		go func() {
			updates, err := s.api.GetUpdates(cfg)
			ch <- pollResult{updates: updates, err: err}
		}()
		s.inflight = ch
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-s.inflight:
		s.inflight = nil
		return r.updates, r.err
	}
}

// isPermanent reports API answers that retrying cannot fix.
func isPermanent(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusNotFound
}

func (s *Session) Self(context.Context) (session.Identity, error) {
	return s.self, nil
}

// GroupPermissions looks up the member status of userID in chat.
func (s *Session) GroupPermissions(ctx context.Context, chat event.Chat, userID int64) (session.Permissions, error) {
	if err := ctx.Err(); err != nil {
		return session.Permissions{}, err
	}

	member, err := s.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chat.ID, UserID: userID},
	})
	if err != nil {
		return session.Permissions{}, fmt.Errorf("telegram: get chat member: %w", err)
	}
	return session.Permissions{
		Status:  member.Status,
		Admin:   member.IsAdministrator(),
		Creator: member.IsCreator(),
	}, nil
}

func (s *Session) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

func (s *Session) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("telegram: answer callback: %w", err)
	}
	return nil
}

var _ session.Session = (*Session)(nil)
