package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"channel-assistant/internal/domain"
)

// DecodeUpdate parses a webhook request body.
func DecodeUpdate(body []byte) (tgbotapi.Update, error) {
	var u tgbotapi.Update
	if err := json.Unmarshal(body, &u); err != nil {
		return tgbotapi.Update{}, fmt.Errorf("telegram: decode update: %w", err)
	}
	return u, nil
}

// ToEvent converts an update to a domain event. ok is false for updates the
// assistant does not handle (edits, channel posts, stickers and so on).
func ToEvent(u tgbotapi.Update) (domain.Event, bool) {
	if cq := u.CallbackQuery; cq != nil {
		if cq.From == nil {
			return domain.Event{}, false
		}
		ev := domain.Event{
			Kind:         domain.EventCallback,
			UpdateID:     u.UpdateID,
			UserID:       cq.From.ID,
			ChatID:       cq.From.ID,
			CallbackID:   cq.ID,
			CallbackData: cq.Data,
		}
		if cq.Message != nil && cq.Message.Chat != nil {
			ev.ChatID = cq.Message.Chat.ID
			ev.MessageID = cq.Message.MessageID
		}
		return ev, true
	}

	m := u.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return domain.Event{}, false
	}
	ev := domain.Event{
		UpdateID:  u.UpdateID,
		UserID:    m.From.ID,
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
	}
	switch {
	case messageMedia(m) != nil:
		ev.Kind = domain.EventMedia
		ev.Media = messageMedia(m)
		ev.Text = m.Caption
	case m.IsCommand():
		ev.Kind = domain.EventCommand
		ev.Command = m.Command()
		ev.Args = m.CommandArguments()
		ev.Text = m.Text
	case m.Text != "":
		ev.Kind = domain.EventText
		ev.Text = m.Text
	default:
		return domain.Event{}, false
	}
	return ev, true
}

// messageMedia returns the attachment of a message, picking the largest photo size.
func messageMedia(m *tgbotapi.Message) *domain.Media {
	switch {
	case len(m.Photo) > 0:
		return &domain.Media{Kind: domain.MediaPhoto, Ref: m.Photo[len(m.Photo)-1].FileID}
	case m.Video != nil:
		return &domain.Media{Kind: domain.MediaVideo, Ref: m.Video.FileID}
	case m.VideoNote != nil:
		return &domain.Media{Kind: domain.MediaVideoNote, Ref: m.VideoNote.FileID}
	case m.Document != nil:
		return &domain.Media{Kind: domain.MediaDocument, Ref: m.Document.FileID}
	case m.Voice != nil:
		return &domain.Media{Kind: domain.MediaVoice, Ref: m.Voice.FileID}
	default:
		return nil
	}
}

// updateSource is the long-polling part of *tgbotapi.BotAPI.
type updateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poll receives updates until ctx is done, handling each on its own
// goroutine. It returns after in-flight handlers finish.
func Poll(ctx context.Context, src updateSource, timeoutSeconds int, handle func(context.Context, tgbotapi.Update)) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = timeoutSeconds
	updates := src.GetUpdatesChan(cfg)

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			src.StopReceivingUpdates()
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				handle(ctx, u)
			}()
		}
	}
}
