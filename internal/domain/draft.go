package domain

import (
	"strconv"
	"time"
)

// DraftID is the store-assigned durable identifier of a draft. It is never
// shown to the user; positions are.
type DraftID string

// Less orders ids numerically when both are integers, as Postgres serials
// are, and as strings otherwise.
func (id DraftID) Less(other DraftID) bool {
	a, aerr := strconv.ParseInt(string(id), 10, 64)
	b, berr := strconv.ParseInt(string(other), 10, 64)
	if aerr == nil && berr == nil {
		return a < b
	}
	return id < other
}

// MediaKind names the kind of a Telegram media attachment.
type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaVideoNote MediaKind = "video_note"
	MediaDocument  MediaKind = "document"
	MediaVoice     MediaKind = "voice"
)

// Supported reports whether the transport knows how to deliver this kind.
func (k MediaKind) Supported() bool {
	switch k {
	case MediaPhoto, MediaVideo, MediaVideoNote, MediaDocument, MediaVoice:
		return true
	default:
		return false
	}
}

// Media is a reference to a file already uploaded to the chat transport.
type Media struct {
	Kind MediaKind
	Ref  string
}

// Payload is the content of a post. When Media is set, Text is its caption.
type Payload struct {
	Text  string
	Media *Media
}

// TextPayload builds a plain text payload.
func TextPayload(text string) Payload {
	return Payload{Text: text}
}

// MediaPayload builds a media payload with a caption.
func MediaPayload(kind MediaKind, ref, caption string) Payload {
	return Payload{Text: caption, Media: &Media{Kind: kind, Ref: ref}}
}

// IsMedia reports whether the payload carries a media attachment.
func (p Payload) IsMedia() bool {
	return p.Media != nil
}

// Draft is a persisted post owned by exactly one user.
type Draft struct {
	ID        DraftID
	UserID    int64
	Idea      string
	Payload   Payload
	CreatedAt time.Time
}

// PendingPost is a generated post that lives only in the session until the
// user saves, sends or discards it. It has no DraftID on purpose.
type PendingPost struct {
	Idea  string `json:"idea"`
	Text  string `json:"text"`
	Media *Media `json:"media,omitempty"`
}

// Payload returns the post content in the same shape a saved draft uses.
func (p PendingPost) Payload() Payload {
	if p.Media != nil {
		m := *p.Media
		return Payload{Text: p.Text, Media: &m}
	}
	return Payload{Text: p.Text}
}
