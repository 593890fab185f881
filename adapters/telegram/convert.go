package telegram

import (
	"strings"
	"time"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jdelaire/plugwire/core/event"
	"github.com/jdelaire/plugwire/core/session"
)

// convert classifies one update. It reports false for updates with no
// populated payload.
func convert(u tgbotapi.Update, self session.Identity) (event.Event, bool) {
	switch {
	case u.Message != nil:
		return event.FromNewMessage(convertMessage(u.Message, self)), true
	case u.ChannelPost != nil:
		return event.FromNewMessage(convertMessage(u.ChannelPost, self)), true
	case u.EditedMessage != nil:
		return event.FromEditedMessage(convertMessage(u.EditedMessage, self)), true
	case u.EditedChannelPost != nil:
		return event.FromEditedMessage(convertMessage(u.EditedChannelPost, self)), true
	case u.CallbackQuery != nil:
		return event.FromCallbackQuery(convertCallback(u.CallbackQuery)), true
	case u.InlineQuery != nil:
		return event.FromInlineQuery(convertInline(u.InlineQuery)), true
	}

	if name := rawName(u); name != "" {
		return event.FromRaw(&event.Raw{Name: name, Native: u}), true
	}
	return event.Event{}, false
}

func rawName(u tgbotapi.Update) string {
	switch {
	case u.ChosenInlineResult != nil:
		return "chosen_inline_result"
	case u.ShippingQuery != nil:
		return "shipping_query"
	case u.PreCheckoutQuery != nil:
		return "pre_checkout_query"
	case u.Poll != nil:
		return "poll"
	case u.PollAnswer != nil:
		return "poll_answer"
	case u.MyChatMember != nil:
		return "my_chat_member"
	case u.ChatMember != nil:
		return "chat_member"
	case u.ChatJoinRequest != nil:
		return "chat_join_request"
	}
	return ""
}

func convertUser(u *tgbotapi.User) event.User {
	if u == nil {
		return event.User{}
	}
	return event.User{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		IsBot:     u.IsBot,
	}
}

func convertChat(c *tgbotapi.Chat) event.Chat {
	if c == nil {
		return event.Chat{}
	}
	return event.Chat{
		ID:       c.ID,
		Type:     event.ChatType(c.Type),
		Title:    c.Title,
		Username: c.UserName,
	}
}

func convertMessage(m *tgbotapi.Message, self session.Identity) *event.Message {
	text, entities := m.Text, m.Entities
	if text == "" {
		text, entities = m.Caption, m.CaptionEntities
	}

	out := &event.Message{
		ID:     m.MessageID,
		Chat:   convertChat(m.Chat),
		Text:   text,
		Media:  media(m),
		Date:   time.Unix(int64(m.Date), 0),
		Native: m,
	}
	if m.From != nil {
		sender := convertUser(m.From)
		out.Sender = &sender
		out.Outgoing = m.From.ID == self.ID
	}
	if m.ForwardFrom != nil || m.ForwardFromChat != nil || m.ForwardDate != 0 {
		f := &event.Forward{Date: time.Unix(int64(m.ForwardDate), 0)}
		if m.ForwardFrom != nil {
			f.FromUserID = m.ForwardFrom.ID
		}
		if m.ForwardFromChat != nil {
			f.FromChatID = m.ForwardFromChat.ID
		}
		out.Forward = f
	}

	var replyToSelf bool
	if r := m.ReplyToMessage; r != nil {
		reply := &event.Reply{MessageID: r.MessageID}
		if r.From != nil {
			reply.SenderID = r.From.ID
			replyToSelf = r.From.ID == self.ID
		}
		out.ReplyTo = reply
	}
	out.Mentioned = replyToSelf || mentions(text, entities, self)
	return out
}

// mentions reports whether an entity names the bot. Entity offsets count
// UTF-16 code units.
func mentions(text string, entities []tgbotapi.MessageEntity, self session.Identity) bool {
	if len(entities) == 0 {
		return false
	}
	units := utf16.Encode([]rune(text))
	for _, e := range entities {
		switch e.Type {
		case "text_mention":
			if e.User != nil && e.User.ID == self.ID {
				return true
			}
		case "mention":
			if self.Username == "" || e.Offset < 0 || e.Length <= 1 || e.Offset+e.Length > len(units) {
				continue
			}
			name := string(utf16.Decode(units[e.Offset+1 : e.Offset+e.Length]))
			if strings.EqualFold(name, self.Username) {
				return true
			}
		}
	}
	return false
}

func media(m *tgbotapi.Message) *event.Media {
	switch {
	case len(m.Photo) > 0:
		return &event.Media{Kind: event.MediaPhoto, FileID: m.Photo[len(m.Photo)-1].FileID}
	case m.Animation != nil:
		return &event.Media{Kind: event.MediaAnimation, FileID: m.Animation.FileID}
	case m.Document != nil:
		return &event.Media{Kind: event.MediaDocument, FileID: m.Document.FileID}
	case m.Sticker != nil:
		return &event.Media{Kind: event.MediaSticker, FileID: m.Sticker.FileID}
	case m.Video != nil:
		return &event.Media{Kind: event.MediaVideo, FileID: m.Video.FileID}
	case m.Audio != nil:
		return &event.Media{Kind: event.MediaAudio, FileID: m.Audio.FileID}
	case m.Voice != nil:
		return &event.Media{Kind: event.MediaVoice, FileID: m.Voice.FileID}
	case m.Contact != nil:
		return &event.Media{Kind: event.MediaContact}
	case m.Location != nil:
		return &event.Media{Kind: event.MediaLocation}
	case m.Poll != nil:
		return &event.Media{Kind: event.MediaPoll}
	case m.VideoNote != nil:
		return &event.Media{Kind: event.MediaOther, FileID: m.VideoNote.FileID}
	case m.Dice != nil:
		return &event.Media{Kind: event.MediaOther}
	}
	return nil
}

func convertCallback(cq *tgbotapi.CallbackQuery) *event.CallbackQuery {
	out := &event.CallbackQuery{
		ID:     cq.ID,
		Sender: convertUser(cq.From),
		Data:   []byte(cq.Data),
		Native: cq,
	}
	if cq.Message != nil {
		chat := convertChat(cq.Message.Chat)
		out.Chat = &chat
		out.MessageID = cq.Message.MessageID
	}
	return out
}

func convertInline(iq *tgbotapi.InlineQuery) *event.InlineQuery {
	return &event.InlineQuery{
		ID:     iq.ID,
		Sender: convertUser(iq.From),
		Text:   iq.Query,
		Offset: iq.Offset,
		Native: iq,
	}
}
