// Package mediacodec reads and writes the single-string media payload format
// used by legacy draft rows and by the session scratchpad:
//
//	MEDIA|<kind>|<ref>|<caption>
//
// The caption is the last field and may itself contain the delimiter.
package mediacodec

import (
	"strings"

	"channel-assistant/internal/domain"
)

const (
	sentinel  = "MEDIA"
	delimiter = "|"
	fields    = 4
)

// Encode renders a media reference and caption as a tagged string.
func Encode(kind domain.MediaKind, ref, caption string) string {
	return strings.Join([]string{sentinel, string(kind), ref, caption}, delimiter)
}

// Decode parses a tagged string. ok is false when the sentinel is missing or
// there are too few fields. Unknown kinds are returned as-is; callers check
// Kind.Supported.
func Decode(text string) (media domain.Media, caption string, ok bool) {
	if !strings.HasPrefix(text, sentinel+delimiter) {
		return domain.Media{}, "", false
	}
	parts := strings.SplitN(text, delimiter, fields)
	if len(parts) < fields {
		return domain.Media{}, "", false
	}
	return domain.Media{Kind: domain.MediaKind(parts[1]), Ref: parts[2]}, parts[3], true
}

// EncodePayload returns plain text unchanged and encodes media payloads.
func EncodePayload(p domain.Payload) string {
	if p.Media == nil {
		return p.Text
	}
	return Encode(p.Media.Kind, p.Media.Ref, p.Text)
}

// DecodePayload is the inverse of EncodePayload. Text that does not decode as
// media is treated as a plain post.
func DecodePayload(text string) domain.Payload {
	media, caption, ok := Decode(text)
	if !ok {
		return domain.TextPayload(text)
	}
	return domain.Payload{Text: caption, Media: &media}
}
