package event

import "time"

// ChatType is the protocol chat category.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// Chat identifies a conversation.
type Chat struct {
	ID       int64
	Type     ChatType
	Title    string
	Username string
}

// IsGroup reports whether the chat is a group or supergroup.
func (c Chat) IsGroup() bool {
	return c.Type == ChatGroup || c.Type == ChatSupergroup
}

// User is an event sender.
type User struct {
	ID        int64
	Username  string
	FirstName string
	IsBot     bool
}

// MediaKind names the media attached to a message.
type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaDocument  MediaKind = "document"
	MediaSticker   MediaKind = "sticker"
	MediaContact   MediaKind = "contact"
	MediaVideo     MediaKind = "video"
	MediaAudio     MediaKind = "audio"
	MediaVoice     MediaKind = "voice"
	MediaAnimation MediaKind = "animation"
	MediaLocation  MediaKind = "location"
	MediaPoll      MediaKind = "poll"
	MediaOther     MediaKind = "other"
)

// Media is the attachment of a message.
type Media struct {
	Kind   MediaKind
	FileID string
}

// Forward is the origin of a forwarded message.
type Forward struct {
	FromUserID int64
	FromChatID int64
	Date       time.Time
}

// Reply points at the message being replied to.
type Reply struct {
	MessageID int
	SenderID  int64
}

// Message is a new or edited chat message.
type Message struct {
	ID        int
	Chat      Chat
	Sender    *User // nil for anonymous channel posts
	Text      string
	Media     *Media
	Forward   *Forward
	ReplyTo   *Reply
	Mentioned bool
	Outgoing  bool
	Date      time.Time
	Native    any
}

// HasMedia reports whether the message carries media of the given kind.
func (m *Message) HasMedia(kind MediaKind) bool {
	return m.Media != nil && m.Media.Kind == kind
}

// CallbackQuery is a press on an inline keyboard button.
type CallbackQuery struct {
	ID        string
	Sender    User
	Chat      *Chat // nil when the button belongs to an inline message
	MessageID int
	Data      []byte
	Native    any
}

// InlineQuery is a query typed after the bot's username.
type InlineQuery struct {
	ID     string
	Sender User
	Text   string
	Offset string
	Native any
}

// Deletion reports messages removed from a chat. ChatID is zero when the
// protocol does not say where the messages lived.
type Deletion struct {
	ChatID     int64
	MessageIDs []int
	Native     any
}

// Raw is a protocol update with no richer variant.
type Raw struct {
	Name   string
	Native any
}
