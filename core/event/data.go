package event

import "fmt"

// Data is the context handed to a handler callback. It is built for one
// dispatch and discarded once the callback returns. Zero ids mean the event
// carried no such id.
type Data struct {
	ID     string
	Kind   Kind
	Type   Type
	UserID int64
	ChatID int64
	Query  string

	CallbackQuery *CallbackQuery
	InlineQuery   *InlineQuery
	Message       *Message
	Deletion      *Deletion
	Raw           *Raw
}

// NewData extracts the dispatch context from ev.
func NewData(id string, ev Event) (*Data, error) {
	if !ev.Valid() {
		return nil, fmt.Errorf("build data: invalid event of type %s", ev.Type())
	}

	query, err := ev.Query()
	if err != nil {
		return nil, fmt.Errorf("build data: %w", err)
	}

	d := &Data{
		ID:            id,
		Kind:          ev.Kind(),
		Type:          ev.Type(),
		Query:         query,
		CallbackQuery: ev.callback,
		InlineQuery:   ev.inline,
		Message:       ev.message,
		Deletion:      ev.deletion,
		Raw:           ev.raw,
	}
	if chatID, ok := ev.ChatID(); ok {
		d.ChatID = chatID
	}
	if userID, ok := ev.SenderID(); ok {
		d.UserID = userID
	}
	return d, nil
}
