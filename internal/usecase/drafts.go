package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"channel-assistant/internal/domain"
	"channel-assistant/internal/position"
)

// Draft builder.

func (b *Bot) startDraft(ctx context.Context, ev domain.Event, _ domain.Session) error {
	if err := b.enter(ctx, ev.UserID, StateDraftConfirm); err != nil {
		return err
	}
	return b.reply(ctx, ev, msgDraftIntro, draftCancelKeyboard())
}

func (b *Bot) draftConfirm(ctx context.Context, ev domain.Event, _ domain.Session) error {
	if strings.TrimSpace(ev.Text) != "+" {
		return b.reply(ctx, ev, msgDraftConfirmHint, draftCancelKeyboard())
	}
	if err := b.setState(ctx, ev.UserID, StateDraftIdea); err != nil {
		return err
	}
	return b.reply(ctx, ev, msgDraftIdea, draftCancelKeyboard())
}

func (b *Bot) draftIdea(ctx context.Context, ev domain.Event, _ domain.Session) error {
	return b.draftStep(ctx, ev, keyIdea, StateDraftTitle, msgDraftTitle, draftCancelKeyboard())
}

func (b *Bot) draftTitle(ctx context.Context, ev domain.Event, _ domain.Session) error {
	return b.draftStep(ctx, ev, keyTitle, StateDraftBody, msgDraftBody, draftCancelKeyboard())
}

func (b *Bot) draftBody(ctx context.Context, ev domain.Event, _ domain.Session) error {
	kb := inline(
		row(button("⏭ Skip conclusion", cbSkipConclusion)),
		row(button("❌ Cancel", cbDraftCancel)),
	)
	return b.draftStep(ctx, ev, keyBody, StateDraftConclusion, msgDraftConclusion, kb)
}

// draftStep stores one builder field and moves on. Empty input re-prompts
// without touching the session.
func (b *Bot) draftStep(ctx context.Context, ev domain.Event, key string, next domain.State, prompt string, kb *domain.Keyboard) error {
	value := strings.TrimSpace(ev.Text)
	if value == "" {
		return b.reply(ctx, ev, msgDraftEmptyInput, draftCancelKeyboard())
	}
	if err := b.update(ctx, ev.UserID, map[string]string{key: value}); err != nil {
		return err
	}
	if err := b.setState(ctx, ev.UserID, next); err != nil {
		return err
	}
	return b.reply(ctx, ev, prompt, kb)
}

func (b *Bot) draftConclusion(ctx context.Context, ev domain.Event, s domain.Session) error {
	conclusion := strings.TrimSpace(ev.Text)
	if conclusion == "-" {
		conclusion = ""
	}
	return b.finalizeDraft(ctx, ev, s, conclusion)
}

func (b *Bot) skipConclusion(ctx context.Context, ev domain.Event, s domain.Session) error {
	if s.State != StateDraftConclusion {
		b.ack(ctx, ev, msgSkipWrongStep, true)
		return nil
	}
	b.ack(ctx, ev, "", false)
	return b.finalizeDraft(ctx, ev, s, "")
}

func (b *Bot) finalizeDraft(ctx context.Context, ev domain.Event, s domain.Session, conclusion string) error {
	idea := s.Value(keyIdea)
	text := composeDraft(idea, s.Value(keyTitle), s.Value(keyBody), conclusion)

	id, err := b.drafts.Create(ctx, ev.UserID, idea, domain.TextPayload(text))
	if err != nil {
		return storageError("draft_create", err)
	}
	if err := b.clear(ctx, ev.UserID); err != nil {
		return err
	}
	return b.reply(ctx, ev, b.savedMessage(ctx, ev.UserID, id, msgDraftSaved), sendKeyboard())
}

func (b *Bot) cancelDraft(ctx context.Context, ev domain.Event, _ domain.Session) error {
	b.ack(ctx, ev, "", false)
	if err := b.clear(ctx, ev.UserID); err != nil {
		return err
	}
	return b.editOrReply(ctx, ev, msgDraftCancelled)
}

// savedMessage reports the position a new draft landed on. The draft is
// already stored, so a failed listing only degrades the message.
func (b *Bot) savedMessage(ctx context.Context, userID int64, id domain.DraftID, format string) string {
	drafts, err := b.drafts.ListAll(ctx, userID)
	if err != nil {
		b.logger.Warn("failed to list drafts after save", "user_id", userID, "err", err)
		return msgDraftSavedPlain
	}
	pos, ok := position.New(drafts).PositionOf(id)
	if !ok {
		return msgDraftSavedPlain
	}
	return fmt.Sprintf(format, pos)
}

// Positions.

// resolvePosition maps user input to the draft currently holding that
// position, using a fresh listing.
func (b *Bot) resolvePosition(ctx context.Context, userID int64, input string) (domain.Draft, int, error) {
	n, err := position.Parse(input)
	if err != nil {
		if errors.Is(err, position.ErrOutOfRange) {
			return domain.Draft{}, 0, newError(ErrorResolution, "position_out_of_range", err)
		}
		return domain.Draft{}, 0, newError(ErrorValidation, "not_a_number", err)
	}
	drafts, err := b.drafts.ListAll(ctx, userID)
	if err != nil {
		return domain.Draft{}, 0, storageError("draft_list", err)
	}
	d, err := position.New(drafts).Resolve(n)
	if err != nil {
		return domain.Draft{}, 0, newError(ErrorResolution, "position_out_of_range", err)
	}
	return d, n, nil
}

// rejectPosition re-prompts for input errors and passes everything else on.
func (b *Bot) rejectPosition(ctx context.Context, ev domain.Event, err error) error {
	var ue *Error
	if !errors.As(err, &ue) {
		return err
	}
	switch ue.Code {
	case ErrorValidation:
		return b.reply(ctx, ev, msgNotANumber, nil)
	case ErrorResolution:
		return b.reply(ctx, ev, fmt.Sprintf(msgNoSuchDraft, strings.TrimSpace(ev.Text)), nil)
	default:
		return err
	}
}

// startWithPosition enters a flow that asks for a draft number. A number
// given as the command argument is handled right away.
func (b *Bot) startWithPosition(ctx context.Context, ev domain.Event, st domain.State, prompt string,
	next func(context.Context, domain.Event, domain.Session) error) error {
	if err := b.enter(ctx, ev.UserID, st); err != nil {
		return err
	}
	if ev.Kind == domain.EventCommand && strings.TrimSpace(ev.Args) != "" {
		ev.Kind = domain.EventText
		ev.Text = ev.Args
		return next(ctx, ev, domain.Session{UserID: ev.UserID, State: st})
	}
	return b.reply(ctx, ev, prompt, nil)
}

// Listing.

func (b *Bot) listDrafts(ctx context.Context, ev domain.Event, _ domain.Session) error {
	drafts, err := b.drafts.ListAll(ctx, ev.UserID)
	if err != nil {
		return storageError("draft_list", err)
	}
	if len(drafts) == 0 {
		return b.reply(ctx, ev, msgNoDrafts, nil)
	}
	return b.sendEntries(ctx, ev, "Your drafts:", position.New(drafts).Entries())
}

func (b *Bot) sendEntries(ctx context.Context, ev domain.Event, header string, entries []position.Entry) error {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("#%d · %s\n%s",
			e.Position, e.Draft.CreatedAt.Format("2006-01-02 15:04"), describePayload(e.Draft.Payload)))
	}
	for _, msg := range chunk(header, lines) {
		if err := b.reply(ctx, ev, msg, nil); err != nil {
			return err
		}
	}
	return nil
}

// Delete flow.

func (b *Bot) startDelete(ctx context.Context, ev domain.Event, _ domain.Session) error {
	return b.startWithPosition(ctx, ev, StateDeleteID, msgDeleteAsk, b.deletePosition)
}

func (b *Bot) deletePosition(ctx context.Context, ev domain.Event, _ domain.Session) error {
	d, n, err := b.resolvePosition(ctx, ev.UserID, ev.Text)
	if err != nil {
		return b.rejectPosition(ctx, ev, err)
	}
	if err := b.update(ctx, ev.UserID, map[string]string{
		keyDraftID:     string(d.ID),
		keyDraftNumber: strconv.Itoa(n),
	}); err != nil {
		return err
	}
	if err := b.setState(ctx, ev.UserID, StateDeleteConfirm); err != nil {
		return err
	}
	kb := inline(row(
		button("✅ Delete", cbDeleteConfirm+string(d.ID)),
		button("❌ Cancel", cbDeleteCancel),
	))
	return b.reply(ctx, ev, fmt.Sprintf(msgDeleteConfirm, n, describePayload(d.Payload)), kb)
}

func (b *Bot) deleteAwaitButton(ctx context.Context, ev domain.Event, _ domain.Session) error {
	return b.reply(ctx, ev, msgDeleteUseButton, nil)
}

func (b *Bot) confirmDelete(ctx context.Context, ev domain.Event, s domain.Session) error {
	id := domain.DraftID(strings.TrimPrefix(ev.CallbackData, cbDeleteConfirm))
	b.ack(ctx, ev, "", false)

	deleted, err := b.drafts.Delete(ctx, ev.UserID, id)
	if err != nil {
		return storageError("draft_delete", err)
	}

	text := msgAlreadyDeleted
	if deleted {
		text = msgDeletedNoNumber
		if s.State == StateDeleteConfirm && s.Value(keyDraftID) == string(id) {
			if n, err := strconv.Atoi(s.Value(keyDraftNumber)); err == nil {
				text = fmt.Sprintf(msgDeleted, n)
			}
		}
	}
	if s.State == StateDeleteConfirm {
		if err := b.clear(ctx, ev.UserID); err != nil {
			return err
		}
	}
	return b.editOrReply(ctx, ev, text)
}

func (b *Bot) cancelDelete(ctx context.Context, ev domain.Event, s domain.Session) error {
	b.ack(ctx, ev, "", false)
	if s.State == StateDeleteConfirm || s.State == StateDeleteID {
		if err := b.clear(ctx, ev.UserID); err != nil {
			return err
		}
	}
	return b.editOrReply(ctx, ev, msgDeleteCancelled)
}

// Edit flow.

func (b *Bot) startEdit(ctx context.Context, ev domain.Event, _ domain.Session) error {
	return b.startWithPosition(ctx, ev, StateEditID, msgEditAsk, b.editPosition)
}

func (b *Bot) editPosition(ctx context.Context, ev domain.Event, _ domain.Session) error {
	d, n, err := b.resolvePosition(ctx, ev.UserID, ev.Text)
	if err != nil {
		return b.rejectPosition(ctx, ev, err)
	}
	if err := b.update(ctx, ev.UserID, map[string]string{
		keyDraftID:     string(d.ID),
		keyDraftNumber: strconv.Itoa(n),
	}); err != nil {
		return err
	}
	if err := b.setState(ctx, ev.UserID, StateEditText); err != nil {
		return err
	}
	return b.reply(ctx, ev, fmt.Sprintf(msgEditCurrent, n, describePayload(d.Payload)), nil)
}

func (b *Bot) editText(ctx context.Context, ev domain.Event, s domain.Session) error {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return b.reply(ctx, ev, msgDraftEmptyInput, nil)
	}
	id := domain.DraftID(s.Value(keyDraftID))

	err := b.drafts.UpdatePayload(ctx, ev.UserID, id, domain.TextPayload(text))
	if errors.Is(err, domain.ErrNotFound) {
		if err := b.clear(ctx, ev.UserID); err != nil {
			return err
		}
		return b.reply(ctx, ev, msgDraftVanished, nil)
	}
	if err != nil {
		return storageError("draft_update", err)
	}
	if err := b.clear(ctx, ev.UserID); err != nil {
		return err
	}
	return b.reply(ctx, ev, fmt.Sprintf(msgEdited, atoiOrZero(s.Value(keyDraftNumber))), sendKeyboard())
}

// Search flow.

func (b *Bot) startSearch(ctx context.Context, ev domain.Event, _ domain.Session) error {
	if err := b.enter(ctx, ev.UserID, StateSearchQuery); err != nil {
		return err
	}
	if ev.Kind == domain.EventCommand && strings.TrimSpace(ev.Args) != "" {
		ev.Text = ev.Args
		return b.searchQuery(ctx, ev, domain.Session{UserID: ev.UserID, State: StateSearchQuery})
	}
	return b.reply(ctx, ev, msgSearchAsk, nil)
}

func (b *Bot) searchQuery(ctx context.Context, ev domain.Event, _ domain.Session) error {
	query := strings.TrimSpace(ev.Text)
	if query == "" {
		return b.reply(ctx, ev, msgSearchAsk, nil)
	}
	drafts, err := b.drafts.ListAll(ctx, ev.UserID)
	if err != nil {
		return storageError("draft_list", err)
	}
	if err := b.clear(ctx, ev.UserID); err != nil {
		return err
	}

	needle := strings.ToLower(query)
	var found []position.Entry
	for _, e := range position.New(drafts).Entries() {
		if strings.Contains(strings.ToLower(e.Draft.Idea), needle) ||
			strings.Contains(strings.ToLower(e.Draft.Payload.Text), needle) {
			found = append(found, e)
		}
	}
	if len(found) == 0 {
		return b.reply(ctx, ev, fmt.Sprintf(msgSearchNone, query), nil)
	}
	return b.sendEntries(ctx, ev, msgSearchFound, found)
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
