package usecase

import (
	"context"

	"channel-assistant/internal/domain"
)

// Transport delivers messages through the chat platform. Failures caused by
// missing rights in the target chat wrap domain.ErrForbidden.
type Transport interface {
	Send(ctx context.Context, r domain.Reply) error
	SendMedia(ctx context.Context, to domain.Target, m domain.Media, caption string) error
	SendText(ctx context.Context, to domain.Target, text string) error
	Edit(ctx context.Context, chatID int64, messageID int, r domain.Reply) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// AITools is the text generation backend.
type AITools interface {
	GenerateIdeas(ctx context.Context, profile string) ([]string, error)
	GeneratePost(ctx context.Context, idea string) (string, error)
	EditPost(ctx context.Context, text, instruction string) (string, error)
	Rewrite(ctx context.Context, text string) (string, error)
	Hashtags(ctx context.Context, text string) (string, error)
	Variants(ctx context.Context, text string) ([]string, error)
	ContentPlan(ctx context.Context, topic, period string) (string, error)
	StyleCopy(ctx context.Context, example, topic string) (string, error)
}

type DraftStore interface {
	Create(ctx context.Context, userID int64, idea string, payload domain.Payload) (domain.DraftID, error)
	ListAll(ctx context.Context, userID int64) ([]domain.Draft, error)
	Get(ctx context.Context, userID int64, id domain.DraftID) (domain.Draft, error)
	UpdatePayload(ctx context.Context, userID int64, id domain.DraftID, payload domain.Payload) error
	Delete(ctx context.Context, userID int64, id domain.DraftID) (bool, error)
}

// Sessions mutates the conversation context. Reads happen in the router,
// which hands every handler a snapshot.
type Sessions interface {
	SetState(ctx context.Context, userID int64, state domain.State) error
	UpdateData(ctx context.Context, userID int64, fields map[string]string) error
	SetPending(ctx context.Context, userID int64, p *domain.PendingPost) error
	Clear(ctx context.Context, userID int64) error
}
