package domain

import "strconv"

// EventKind classifies an inbound update.
type EventKind int

const (
	EventText EventKind = iota + 1
	EventCommand
	EventCallback
	EventMedia
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventCommand:
		return "command"
	case EventCallback:
		return "callback"
	case EventMedia:
		return "media"
	default:
		return "unknown"
	}
}

// Event is a transport-neutral inbound update.
type Event struct {
	Kind      EventKind
	UpdateID  int
	UserID    int64
	ChatID    int64
	MessageID int

	// Text holds the message text, or the caption of a media message.
	Text string

	// Command and Args are set for EventCommand ("/edit_draft 2" -> "edit_draft", "2").
	Command string
	Args    string

	CallbackID   string
	CallbackData string

	Media *Media
}

// Button is an inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Keyboard is either an inline keyboard or a reply keyboard (menu).
type Keyboard struct {
	Inline [][]Button
	Reply  [][]string
}

// Reply is an outbound text message to the chat the event came from.
type Reply struct {
	ChatID   int64
	Text     string
	Keyboard *Keyboard
}

// Target addresses a chat or channel the user wants to publish to.
type Target struct {
	ChatID   int64
	Username string
}

func (t Target) String() string {
	if t.Username != "" {
		return t.Username
	}
	return strconv.FormatInt(t.ChatID, 10)
}
