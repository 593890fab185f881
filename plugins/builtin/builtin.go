// Package builtin provides the commands every plugwire bot answers.
package builtin

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/jdelaire/plugwire/core/event"
	"github.com/jdelaire/plugwire/core/filter"
	"github.com/jdelaire/plugwire/core/handler"
	"github.com/jdelaire/plugwire/core/plugin"
	"github.com/jdelaire/plugwire/core/session"
)

// Name is the plugin name used for registration.
const Name = "builtin"

var startTime = time.Now()

type command struct {
	name        string
	pattern     string
	description string
}

var commands = []command{
	{"ping", "ping$", "Check that the bot is alive"},
	{"status", "status$", "Show bot status"},
	{"help", "help$", "List available commands"},
	{"id", "id$", "Show the chat and user id"},
	{"admin", "admin", "Check administrator rights"},
}

type builtin struct {
	settings filter.Settings
	logger   *slog.Logger
}

// New returns a builder for the built-in plugin.
func New(logger *slog.Logger) plugin.Builder {
	return func(settings filter.Settings) (*plugin.Plugin, error) {
		b := &builtin{settings: settings, logger: logger}
		return b.build()
	}
}

func (b *builtin) build() (*plugin.Plugin, error) {
	filters := make(map[string]filter.Filter, len(commands))
	for _, c := range commands {
		f, err := b.settings.Command(c.pattern)
		if err != nil {
			return nil, fmt.Errorf("builtin: command %s: %w", c.name, err)
		}
		filters[c.name] = f
	}

	messages := []event.Kind{event.KindMessage}
	p := plugin.New(Name, "plugins/builtin/builtin.go")

	adminOnly, err := handler.New(messages, nil, filter.Administrator())
	if err != nil {
		return nil, err
	}

	handlers := []struct {
		name string
		cb   handler.CallbackFunc
		f    filter.Filter
		and  *handler.Handler
	}{
		{"ping", b.ping, filters["ping"], nil},
		{"status", b.status, filters["status"], nil},
		{"help", b.help, filters["help"], nil},
		{"id", b.id, filters["id"], nil},
		{"admin", b.admin, filters["admin"], &adminOnly},
		{"admin-denied", b.adminDenied, filters["admin"], nil},
	}
	for _, def := range handlers {
		h, err := handler.New(messages, def.cb, def.f)
		if err != nil {
			return nil, err
		}
		h = h.Named(def.name)
		if def.and != nil {
			h = h.And(*def.and)
		}
		if err := p.Add(h); err != nil {
			return nil, err
		}
	}

	answer, err := handler.New([]event.Kind{event.KindCallbackQuery}, handler.CallbackFunc(b.answer), filter.All())
	if err != nil {
		return nil, err
	}
	if err := p.Add(answer.Named("answer")); err != nil {
		return nil, err
	}
	return p, nil
}

func (b *builtin) reply(ctx context.Context, sess session.Session, data *event.Data, text string) error {
	if err := sess.SendMessage(ctx, data.ChatID, text); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}

func (b *builtin) ping(ctx context.Context, sess session.Session, data *event.Data) error {
	return b.reply(ctx, sess, data, "pong")
}

func (b *builtin) status(ctx context.Context, sess session.Session, data *event.Data) error {
	uptime := time.Since(startTime).Truncate(time.Second)
	return b.reply(ctx, sess, data, fmt.Sprintf("Status: OK\nUptime: %s\nGo: %s\nGoroutines: %d",
		uptime, runtime.Version(), runtime.NumGoroutine()))
}

func (b *builtin) help(ctx context.Context, sess session.Session, data *event.Data) error {
	prefix := b.settings.Prefixes()[0]

	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	for _, c := range commands {
		fmt.Fprintf(&sb, "  %s%s: %s\n", prefix, c.name, c.description)
	}
	return b.reply(ctx, sess, data, sb.String())
}

func (b *builtin) id(ctx context.Context, sess session.Session, data *event.Data) error {
	return b.reply(ctx, sess, data, fmt.Sprintf("Chat: %d\nUser: %d", data.ChatID, data.UserID))
}

func (b *builtin) admin(ctx context.Context, sess session.Session, data *event.Data) error {
	return b.reply(ctx, sess, data, "You are an administrator of this chat.")
}

func (b *builtin) adminDenied(ctx context.Context, sess session.Session, data *event.Data) error {
	b.logger.Debug("admin command denied", "chat_id", data.ChatID, "user_id", data.UserID)
	return b.reply(ctx, sess, data, "Only administrators can use this command.")
}

// answer acknowledges a button press with its own payload.
func (b *builtin) answer(ctx context.Context, sess session.Session, data *event.Data) error {
	if err := sess.AnswerCallback(ctx, data.CallbackQuery.ID, data.Query); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}
