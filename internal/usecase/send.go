package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"channel-assistant/internal/domain"
	"channel-assistant/internal/mediacodec"
)

// Send flow.

func (b *Bot) startSend(ctx context.Context, ev domain.Event, _ domain.Session) error {
	b.ack(ctx, ev, "", false)
	return b.startWithPosition(ctx, ev, StateSendNumber, msgSendAsk, b.sendPosition)
}

func (b *Bot) sendPosition(ctx context.Context, ev domain.Event, _ domain.Session) error {
	d, n, err := b.resolvePosition(ctx, ev.UserID, ev.Text)
	if err != nil {
		return b.rejectPosition(ctx, ev, err)
	}
	if err := b.update(ctx, ev.UserID, map[string]string{
		keyDraftID:     string(d.ID),
		keySendSource:  sourceDraft,
		keyDraftNumber: strconv.Itoa(n),
	}); err != nil {
		return err
	}
	if err := b.setState(ctx, ev.UserID, StateSendChannel); err != nil {
		return err
	}
	return b.reply(ctx, ev, fmt.Sprintf(msgSendChannel, n), nil)
}

func (b *Bot) sendChannel(ctx context.Context, ev domain.Event, s domain.Session) error {
	target, ok := ParseTarget(ev.Text)
	if !ok {
		return b.reply(ctx, ev, msgBadChannel, nil)
	}
	p, found, err := b.outgoing(ctx, ev.UserID, s)
	if err != nil {
		return err
	}
	if err := b.clear(ctx, ev.UserID); err != nil {
		return err
	}
	if !found {
		return b.reply(ctx, ev, msgSendLost, nil)
	}

	if err := b.deliver(ctx, target, p); err != nil {
		b.logger.Warn("failed to publish", "user_id", ev.UserID, "target", target.String(), "err", err)
		if errors.Is(err, domain.ErrForbidden) {
			return b.reply(ctx, ev, fmt.Sprintf(msgSendForbidden, target, err), nil)
		}
		return b.reply(ctx, ev, fmt.Sprintf(msgSendFailed, target), nil)
	}

	if s.Value(keySendSource) == sourcePending {
		return b.reply(ctx, ev, fmt.Sprintf(msgSentPost, target), mainMenu())
	}
	return b.reply(ctx, ev, fmt.Sprintf(msgSentDraft, s.Value(keyDraftNumber), target), mainMenu())
}

// outgoing loads what the send flow publishes: the generated post kept in the
// session, or the chosen draft as it is stored now.
func (b *Bot) outgoing(ctx context.Context, userID int64, s domain.Session) (domain.Payload, bool, error) {
	if s.Value(keySendSource) == sourcePending {
		if s.Pending == nil {
			return domain.Payload{}, false, nil
		}
		return s.Pending.Payload(), true, nil
	}
	id := domain.DraftID(s.Value(keyDraftID))
	if id == "" {
		return domain.Payload{}, false, nil
	}
	d, err := b.drafts.Get(ctx, userID, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Payload{}, false, nil
	}
	if err != nil {
		return domain.Payload{}, false, storageError("draft_get", err)
	}
	return d.Payload, true, nil
}

// deliver publishes a payload. Media of a known kind goes out as media; a
// caption over the platform limit follows as separate messages. Media of an
// unknown kind is sent as its stored text form.
func (b *Bot) deliver(ctx context.Context, to domain.Target, p domain.Payload) error {
	if !p.IsMedia() {
		return b.sendLong(ctx, to, p.Text)
	}
	if !p.Media.Kind.Supported() {
		return b.sendLong(ctx, to, mediacodec.EncodePayload(p))
	}
	if utf8.RuneCountInString(p.Text) <= maxCaptionRunes {
		return b.transport.SendMedia(ctx, to, *p.Media, p.Text)
	}
	if err := b.transport.SendMedia(ctx, to, *p.Media, ""); err != nil {
		return err
	}
	return b.sendLong(ctx, to, p.Text)
}

// sendLong splits text into messages the platform accepts.
func (b *Bot) sendLong(ctx context.Context, to domain.Target, text string) error {
	for _, part := range splitRunes(text, maxPostRunes) {
		if err := b.transport.SendText(ctx, to, part); err != nil {
			return err
		}
	}
	return nil
}

var channelUsername = regexp.MustCompile(`^@[A-Za-z][A-Za-z0-9_]{3,31}$`)

// ParseTarget reads a channel reference: @username, a t.me link or a numeric
// chat id such as -1001234567890.
func ParseTarget(text string) (domain.Target, bool) {
	text = strings.TrimSpace(text)
	for _, prefix := range []string{"https://t.me/", "http://t.me/", "t.me/"} {
		if rest, ok := strings.CutPrefix(text, prefix); ok {
			text = "@" + strings.Trim(rest, "/")
			break
		}
	}
	if channelUsername.MatchString(text) {
		return domain.Target{Username: text}, true
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id == 0 {
		return domain.Target{}, false
	}
	return domain.Target{ChatID: id}, true
}

// Media-save flow.

func (b *Bot) startMedia(ctx context.Context, ev domain.Event, _ domain.Session) error {
	if err := b.enter(ctx, ev.UserID, StateMediaWaiting); err != nil {
		return err
	}
	return b.reply(ctx, ev, msgMediaAsk, nil)
}

func (b *Bot) mediaReceived(ctx context.Context, ev domain.Event, _ domain.Session) error {
	if ev.Media == nil || !ev.Media.Kind.Supported() {
		return b.reply(ctx, ev, msgMediaExpected, nil)
	}
	caption := strings.TrimSpace(ev.Text)
	idea := caption
	if idea == "" {
		idea = mediaNoCaption
	}

	id, err := b.drafts.Create(ctx, ev.UserID, idea, domain.MediaPayload(ev.Media.Kind, ev.Media.Ref, caption))
	if err != nil {
		return storageError("draft_create", err)
	}
	if err := b.clear(ctx, ev.UserID); err != nil {
		return err
	}
	return b.reply(ctx, ev, b.savedMessage(ctx, ev.UserID, id, msgMediaSaved), sendKeyboard())
}

func (b *Bot) mediaExpected(ctx context.Context, ev domain.Event, _ domain.Session) error {
	return b.reply(ctx, ev, msgMediaExpected, nil)
}
