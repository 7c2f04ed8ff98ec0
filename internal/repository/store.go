package repository

import (
	"context"
	"sort"
	"time"

	"channel-assistant/internal/domain"
	"channel-assistant/internal/mediacodec"
)

// DraftStore is the durable draft collection consumed by the flows. Every
// operation is scoped to the owning user; a foreign draft behaves exactly like
// a missing one.
type DraftStore interface {
	Create(ctx context.Context, userID int64, idea string, payload domain.Payload) (domain.DraftID, error)
	ListAll(ctx context.Context, userID int64) ([]domain.Draft, error)
	Get(ctx context.Context, userID int64, id domain.DraftID) (domain.Draft, error)
	UpdatePayload(ctx context.Context, userID int64, id domain.DraftID, payload domain.Payload) error
	Delete(ctx context.Context, userID int64, id domain.DraftID) (bool, error)
}

var (
	_ DraftStore = (*Client)(nil)
	_ DraftStore = (*Postgres)(nil)
	_ DraftStore = (*Memory)(nil)
)

// sortDrafts orders drafts by creation time, ties broken by id.
func sortDrafts(drafts []domain.Draft) {
	sort.SliceStable(drafts, func(i, j int) bool {
		a, b := drafts[i], drafts[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.Less(b.ID)
	})
}

// payloadFromColumns rebuilds a payload from its stored columns. Rows written
// before the columns were split carry no kind and keep the tagged string in
// the text column.
func payloadFromColumns(kind, text, mediaKind, mediaRef string) domain.Payload {
	switch kind {
	case payloadKindMedia:
		return domain.MediaPayload(domain.MediaKind(mediaKind), mediaRef, text)
	case payloadKindText:
		return domain.TextPayload(text)
	default:
		return mediacodec.DecodePayload(text)
	}
}

func payloadColumns(p domain.Payload) (kind, text, mediaKind, mediaRef string) {
	if p.Media != nil {
		return payloadKindMedia, p.Text, string(p.Media.Kind), p.Media.Ref
	}
	return payloadKindText, p.Text, "", ""
}

// copyDraft detaches the media pointer so callers cannot mutate stored state.
func copyDraft(d domain.Draft) domain.Draft {
	if d.Payload.Media != nil {
		m := *d.Payload.Media
		d.Payload.Media = &m
	}
	return d
}

func utcNow() time.Time {
	return time.Now().UTC()
}
