package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"channel-assistant/internal/domain"
)

// Idea flow.

func (b *Bot) startIdea(ctx context.Context, ev domain.Event, _ domain.Session) error {
	if err := b.clear(ctx, ev.UserID); err != nil {
		return err
	}
	kb := inline(
		row(button("📡 Ideas for my channel", cbIdeaChannel)),
		row(button("💡 I have my own idea", cbIdeaOwn)),
	)
	return b.reply(ctx, ev, msgIdeaChoose, kb)
}

func (b *Bot) ideaModeChannel(ctx context.Context, ev domain.Event, _ domain.Session) error {
	b.ack(ctx, ev, "", false)
	if err := b.enter(ctx, ev.UserID, StateIdeaProfile); err != nil {
		return err
	}
	return b.reply(ctx, ev, msgIdeaProfile, nil)
}

func (b *Bot) ideaModeOwn(ctx context.Context, ev domain.Event, _ domain.Session) error {
	b.ack(ctx, ev, "", false)
	if err := b.enter(ctx, ev.UserID, StateIdeaOwn); err != nil {
		return err
	}
	return b.reply(ctx, ev, msgIdeaOwn, nil)
}

func (b *Bot) ideaProfile(ctx context.Context, ev domain.Event, _ domain.Session) error {
	profile := strings.TrimSpace(ev.Text)
	if profile == "" {
		return b.reply(ctx, ev, msgIdeaProfile, nil)
	}

	aiCtx, cancel := b.withAITimeout(ctx)
	ideas, err := b.ai.GenerateIdeas(aiCtx, profile)
	cancel()
	if err != nil {
		b.logger.Warn("idea generation failed, using fallback", "user_id", ev.UserID, "err", err)
	}
	if len(ideas) == 0 {
		ideas = fallbackIdeas(profile)
	}

	if err := b.clear(ctx, ev.UserID); err != nil {
		return err
	}
	lines := make([]string, len(ideas))
	for i, idea := range ideas {
		lines[i] = fmt.Sprintf("%d. %s", i+1, idea)
	}
	return b.reply(ctx, ev, fmt.Sprintf(msgIdeaList, strings.Join(lines, "\n")), mainMenu())
}

func (b *Bot) ideaOwn(ctx context.Context, ev domain.Event, _ domain.Session) error {
	idea := strings.TrimSpace(ev.Text)
	if idea == "" {
		return b.reply(ctx, ev, msgIdeaOwn, nil)
	}
	if err := b.update(ctx, ev.UserID, map[string]string{keyOwnIdea: idea}); err != nil {
		return err
	}
	kb := inline(
		row(button("✨ Write the post with AI", cbOwnIdeaGenerate)),
		row(button("📝 Build a draft step by step", cbOwnIdeaToDraft)),
		row(button("✍️ I'll write it myself", cbOwnIdeaSelf)),
	)
	return b.reply(ctx, ev, fmt.Sprintf(msgIdeaCaptured, idea), kb)
}

// ownIdea returns the captured idea, or alerts and resets when it is gone.
func (b *Bot) ownIdea(ctx context.Context, ev domain.Event, s domain.Session) (string, bool, error) {
	idea := s.Value(keyOwnIdea)
	if s.State == StateIdeaOwn && idea != "" {
		return idea, true, nil
	}
	b.ack(ctx, ev, msgIdeaMissing, true)
	if s.State == StateIdeaOwn {
		return "", false, b.clear(ctx, ev.UserID)
	}
	return "", false, nil
}

// ownIdeaToDraft jumps into the draft builder with the idea already filled in.
func (b *Bot) ownIdeaToDraft(ctx context.Context, ev domain.Event, s domain.Session) error {
	idea, ok, err := b.ownIdea(ctx, ev, s)
	if !ok {
		return err
	}
	b.ack(ctx, ev, "", false)
	if err := b.update(ctx, ev.UserID, map[string]string{keyIdea: idea, keyOwnIdea: ""}); err != nil {
		return err
	}
	if err := b.setState(ctx, ev.UserID, StateDraftTitle); err != nil {
		return err
	}
	return b.reply(ctx, ev, fmt.Sprintf(msgOwnIdeaToDraft, idea), draftCancelKeyboard())
}

func (b *Bot) ownIdeaSelf(ctx context.Context, ev domain.Event, _ domain.Session) error {
	b.ack(ctx, ev, "", false)
	if err := b.clear(ctx, ev.UserID); err != nil {
		return err
	}
	return b.editOrReply(ctx, ev, msgOwnIdeaSelf)
}

func (b *Bot) ownIdeaGenerate(ctx context.Context, ev domain.Event, s domain.Session) error {
	idea, ok, err := b.ownIdea(ctx, ev, s)
	if !ok {
		return err
	}
	b.ack(ctx, ev, msgWriting, false)

	aiCtx, cancel := b.withAITimeout(ctx)
	post, err := b.ai.GeneratePost(aiCtx, idea)
	cancel()
	if err != nil {
		return aiError("generate_post", err)
	}
	if strings.TrimSpace(post) == "" {
		return newError(ErrorUpstream, "generate_post_empty", nil)
	}
	return b.openPending(ctx, ev, domain.PendingPost{Idea: idea, Text: post})
}

// Generated-post editing.

// openPending makes p the user's pending post and shows the editor.
func (b *Bot) openPending(ctx context.Context, ev domain.Event, p domain.PendingPost) error {
	if err := b.clear(ctx, ev.UserID); err != nil {
		return err
	}
	if err := b.setPending(ctx, ev.UserID, &p); err != nil {
		return err
	}
	if err := b.setState(ctx, ev.UserID, StateGenEditing); err != nil {
		return err
	}
	return b.showPending(ctx, ev, p)
}

func (b *Bot) showPending(ctx context.Context, ev domain.Event, p domain.PendingPost) error {
	return b.reply(ctx, ev, renderPending(p), genKeyboard())
}

// storePending writes the new text, returns to the editor and redisplays.
func (b *Bot) storePending(ctx context.Context, ev domain.Event, p domain.PendingPost) error {
	if err := b.setPending(ctx, ev.UserID, &p); err != nil {
		return err
	}
	if err := b.setState(ctx, ev.UserID, StateGenEditing); err != nil {
		return err
	}
	return b.showPending(ctx, ev, p)
}

func (b *Bot) genAction(ctx context.Context, ev domain.Event, s domain.Session) error {
	if s.Pending == nil || !strings.HasPrefix(string(s.State), genpostPrefix) {
		b.ack(ctx, ev, msgGenInactive, true)
		return nil
	}
	p := *s.Pending
	action := strings.TrimPrefix(ev.CallbackData, cbGen)

	switch action {
	case genBack:
		b.ack(ctx, ev, "", false)
		if err := b.setState(ctx, ev.UserID, StateGenEditing); err != nil {
			return err
		}
		return b.showPending(ctx, ev, p)
	case genClose:
		b.ack(ctx, ev, "", false)
		if err := b.clear(ctx, ev.UserID); err != nil {
			return err
		}
		return b.editOrReply(ctx, ev, msgGenClosed)
	}

	if s.State != StateGenEditing {
		b.ack(ctx, ev, msgGenBusy, true)
		return nil
	}

	switch {
	case action == genShorten:
		return b.genTransform(ctx, ev, p, func(ctx context.Context) (string, error) {
			return b.ai.EditPost(ctx, p.Text, "Make the post noticeably shorter, keep the key points.")
		})
	case action == genExpand:
		return b.genTransform(ctx, ev, p, func(ctx context.Context) (string, error) {
			return b.ai.EditPost(ctx, p.Text, "Expand the post with details and examples.")
		})
	case action == genRewrite:
		return b.genTransform(ctx, ev, p, func(ctx context.Context) (string, error) {
			return b.ai.Rewrite(ctx, p.Text)
		})
	case action == genHashtags:
		return b.genTransform(ctx, ev, p, func(ctx context.Context) (string, error) {
			tags, err := b.ai.Hashtags(ctx, p.Text)
			if err != nil || strings.TrimSpace(tags) == "" {
				return "", err
			}
			return p.Text + "\n\n" + strings.TrimSpace(tags), nil
		})
	case action == genVariants:
		return b.genVariants(ctx, ev, p)
	case strings.HasPrefix(action, genPick):
		return b.genPickVariant(ctx, ev, s, p, strings.TrimPrefix(action, genPick))
	case action == genAIEdit:
		b.ack(ctx, ev, "", false)
		if err := b.setState(ctx, ev.UserID, StateGenAIEdit); err != nil {
			return err
		}
		return b.reply(ctx, ev, msgGenAIEditAsk, genBackKeyboard())
	case action == genMedia:
		b.ack(ctx, ev, "", false)
		if err := b.setState(ctx, ev.UserID, StateGenMedia); err != nil {
			return err
		}
		return b.reply(ctx, ev, msgGenMediaAsk, genBackKeyboard())
	case action == genSave:
		return b.genSave(ctx, ev, p)
	case action == genSend:
		b.ack(ctx, ev, "", false)
		if err := b.update(ctx, ev.UserID, map[string]string{keySendSource: sourcePending}); err != nil {
			return err
		}
		if err := b.setState(ctx, ev.UserID, StateSendChannel); err != nil {
			return err
		}
		return b.reply(ctx, ev, msgSendChannelGen, nil)
	default:
		b.ack(ctx, ev, msgStaleButton, false)
		return nil
	}
}

// genTransform runs one AI rewrite of the pending text. On failure the
// pending post is left as it was.
func (b *Bot) genTransform(ctx context.Context, ev domain.Event, p domain.PendingPost, fn func(context.Context) (string, error)) error {
	b.ack(ctx, ev, msgWriting, false)

	aiCtx, cancel := b.withAITimeout(ctx)
	out, err := fn(aiCtx)
	cancel()
	if err != nil {
		return aiError("edit_post", err)
	}
	if out = strings.TrimSpace(out); out == "" {
		return newError(ErrorUpstream, "edit_post_empty", nil)
	}
	p.Text = out
	return b.storePending(ctx, ev, p)
}

func (b *Bot) genVariants(ctx context.Context, ev domain.Event, p domain.PendingPost) error {
	b.ack(ctx, ev, msgWriting, false)

	aiCtx, cancel := b.withAITimeout(ctx)
	variants, err := b.ai.Variants(aiCtx, p.Text)
	cancel()
	if err != nil {
		return aiError("variants", err)
	}
	if len(variants) == 0 {
		return newError(ErrorUpstream, "variants_empty", nil)
	}

	fields := make(map[string]string, len(variants))
	blocks := make([]string, len(variants))
	buttons := make([]domain.Button, len(variants))
	for i, v := range variants {
		n := strconv.Itoa(i + 1)
		fields[keyVariant+n] = v
		blocks[i] = n + ") " + v
		buttons[i] = button("Variant "+n, cbGen+genPick+n)
	}
	if err := b.update(ctx, ev.UserID, fields); err != nil {
		return err
	}
	text := truncate(fmt.Sprintf(msgGenVariants, strings.Join(blocks, "\n\n")), maxMessageRunes)
	return b.reply(ctx, ev, text, inline(buttons, row(button(btnGenBack, cbGen+genBack))))
}

func (b *Bot) genPickVariant(ctx context.Context, ev domain.Event, s domain.Session, p domain.PendingPost, n string) error {
	v := s.Value(keyVariant + n)
	if v == "" {
		b.ack(ctx, ev, msgGenNoVariant, true)
		return nil
	}
	b.ack(ctx, ev, "", false)
	p.Text = v
	return b.storePending(ctx, ev, p)
}

func (b *Bot) genSave(ctx context.Context, ev domain.Event, p domain.PendingPost) error {
	b.ack(ctx, ev, "", false)
	idea := p.Idea
	if idea == "" {
		idea = genDefaultIdea
	}
	id, err := b.drafts.Create(ctx, ev.UserID, idea, p.Payload())
	if err != nil {
		return storageError("draft_create", err)
	}
	if err := b.clear(ctx, ev.UserID); err != nil {
		return err
	}
	return b.reply(ctx, ev, b.savedMessage(ctx, ev.UserID, id, msgGenSaved), sendKeyboard())
}

func (b *Bot) genUseButtons(ctx context.Context, ev domain.Event, _ domain.Session) error {
	return b.reply(ctx, ev, msgGenUseButtons, nil)
}

func (b *Bot) genAIEditText(ctx context.Context, ev domain.Event, s domain.Session) error {
	if s.Pending == nil {
		if err := b.clear(ctx, ev.UserID); err != nil {
			return err
		}
		return b.reply(ctx, ev, msgGenInactive, nil)
	}
	instruction := strings.TrimSpace(ev.Text)
	if instruction == "" {
		return b.reply(ctx, ev, msgGenAIEditAsk, genBackKeyboard())
	}
	p := *s.Pending

	aiCtx, cancel := b.withAITimeout(ctx)
	out, err := b.ai.EditPost(aiCtx, p.Text, instruction)
	cancel()
	if err == nil && strings.TrimSpace(out) != "" {
		p.Text = strings.TrimSpace(out)
		return b.storePending(ctx, ev, p)
	}

	b.logger.Warn("ai edit failed", "user_id", ev.UserID, "err", err)
	if err := b.reply(ctx, ev, msgGenAIEditFailed, nil); err != nil {
		return err
	}
	return b.storePending(ctx, ev, p)
}

func (b *Bot) genMediaReceived(ctx context.Context, ev domain.Event, s domain.Session) error {
	if s.Pending == nil {
		if err := b.clear(ctx, ev.UserID); err != nil {
			return err
		}
		return b.reply(ctx, ev, msgGenInactive, nil)
	}
	if ev.Media == nil || !ev.Media.Kind.Supported() {
		return b.reply(ctx, ev, msgGenMediaOrBack, genBackKeyboard())
	}
	p := *s.Pending
	m := *ev.Media
	p.Media = &m
	return b.storePending(ctx, ev, p)
}

func (b *Bot) genMediaExpected(ctx context.Context, ev domain.Event, _ domain.Session) error {
	return b.reply(ctx, ev, msgGenMediaOrBack, genBackKeyboard())
}

// Content plan.

func (b *Bot) startPlan(ctx context.Context, ev domain.Event, _ domain.Session) error {
	if err := b.enter(ctx, ev.UserID, StatePlanTopic); err != nil {
		return err
	}
	return b.reply(ctx, ev, msgPlanTopic, nil)
}

func (b *Bot) planTopic(ctx context.Context, ev domain.Event, _ domain.Session) error {
	topic := strings.TrimSpace(ev.Text)
	if topic == "" {
		return b.reply(ctx, ev, msgPlanTopic, nil)
	}
	if err := b.update(ctx, ev.UserID, map[string]string{keyPlanTopic: topic}); err != nil {
		return err
	}
	if err := b.setState(ctx, ev.UserID, StatePlanPeriod); err != nil {
		return err
	}
	kb := inline(row(
		button("🗓 Week", cbPlanPeriod+periodShort),
		button("📆 Month", cbPlanPeriod+periodLong),
	))
	return b.reply(ctx, ev, msgPlanPeriod, kb)
}

func (b *Bot) planAwaitButton(ctx context.Context, ev domain.Event, _ domain.Session) error {
	return b.reply(ctx, ev, msgPlanPeriodUse, nil)
}

func (b *Bot) planPeriod(ctx context.Context, ev domain.Event, s domain.Session) error {
	period := strings.TrimPrefix(ev.CallbackData, cbPlanPeriod)
	if s.State != StatePlanPeriod || (period != periodShort && period != periodLong) {
		b.ack(ctx, ev, msgStaleButton, true)
		return nil
	}
	b.ack(ctx, ev, msgWriting, false)

	aiCtx, cancel := b.withAITimeout(ctx)
	plan, err := b.ai.ContentPlan(aiCtx, s.Value(keyPlanTopic), period)
	cancel()
	if err != nil {
		return aiError("content_plan", err)
	}
	if err := b.clear(ctx, ev.UserID); err != nil {
		return err
	}
	return b.reply(ctx, ev, truncate(fmt.Sprintf(msgPlanResult, plan), maxMessageRunes), mainMenu())
}

// Style copy.

func (b *Bot) startStyle(ctx context.Context, ev domain.Event, _ domain.Session) error {
	if err := b.enter(ctx, ev.UserID, StateStyleExample); err != nil {
		return err
	}
	return b.reply(ctx, ev, msgStyleExample, nil)
}

func (b *Bot) styleExample(ctx context.Context, ev domain.Event, _ domain.Session) error {
	example := strings.TrimSpace(ev.Text)
	if example == "" {
		return b.reply(ctx, ev, msgStyleExample, nil)
	}
	if err := b.update(ctx, ev.UserID, map[string]string{keyStyleExample: example}); err != nil {
		return err
	}
	if err := b.setState(ctx, ev.UserID, StateStyleTopic); err != nil {
		return err
	}
	return b.reply(ctx, ev, msgStyleTopic, nil)
}

func (b *Bot) styleTopic(ctx context.Context, ev domain.Event, s domain.Session) error {
	topic := strings.TrimSpace(ev.Text)
	if topic == "" {
		return b.reply(ctx, ev, msgStyleTopic, nil)
	}
	if err := b.reply(ctx, ev, msgWriting, nil); err != nil {
		return err
	}

	aiCtx, cancel := b.withAITimeout(ctx)
	post, err := b.ai.StyleCopy(aiCtx, s.Value(keyStyleExample), topic)
	cancel()
	if err != nil {
		return aiError("style_copy", err)
	}
	if strings.TrimSpace(post) == "" {
		return newError(ErrorUpstream, "style_copy_empty", nil)
	}
	return b.openPending(ctx, ev, domain.PendingPost{Idea: topic, Text: strings.TrimSpace(post)})
}
