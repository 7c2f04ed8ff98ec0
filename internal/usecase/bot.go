package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"channel-assistant/internal/dispatch"
	"channel-assistant/internal/domain"
)

const defaultAITimeout = 60 * time.Second

// Bot implements the conversation flows on top of a dispatch.Router.
type Bot struct {
	transport Transport
	ai        AITools
	drafts    DraftStore
	sessions  Sessions
	logger    *slog.Logger
	aiTimeout time.Duration
}

type Config struct {
	// AITimeout bounds every AI call. Zero means the default of 60s.
	AITimeout time.Duration
	Logger    *slog.Logger
}

func NewBot(t Transport, ai AITools, drafts DraftStore, sessions Sessions, cfg Config) (*Bot, error) {
	if t == nil {
		return nil, errors.New("usecase: transport must not be nil")
	}
	if ai == nil {
		return nil, errors.New("usecase: ai tools must not be nil")
	}
	if drafts == nil {
		return nil, errors.New("usecase: draft store must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("usecase: sessions must not be nil")
	}
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = defaultAITimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bot{
		transport: t,
		ai:        ai,
		drafts:    drafts,
		sessions:  sessions,
		logger:    cfg.Logger,
		aiTimeout: cfg.AITimeout,
	}, nil
}

// Register installs every route and the failure hook on r.
func (b *Bot) Register(r *dispatch.Router) {
	text := dispatch.Kind(domain.EventText)
	media := dispatch.Kind(domain.EventMedia)
	inState := func(st domain.State, p dispatch.Predicate) dispatch.Predicate {
		return dispatch.All(dispatch.InState(st), p)
	}
	entry := func(cmd, label string) dispatch.Predicate {
		return dispatch.AnyOf(dispatch.Command(cmd), dispatch.Button(label))
	}

	r.OnError(b.HandleError)

	r.Handle(dispatch.PhaseEscape, "cancel", entry("cancel", btnCancel), b.cancel)

	r.Handle(dispatch.PhaseCommand, "start", dispatch.Command("start"), b.start)
	r.Handle(dispatch.PhaseCommand, "help", dispatch.Command("help"), b.help)
	r.Handle(dispatch.PhaseCommand, "idea", entry("idea", btnIdeas), b.startIdea)
	r.Handle(dispatch.PhaseCommand, "draft", entry("draft", btnNewDraft), b.startDraft)
	r.Handle(dispatch.PhaseCommand, "my_drafts", entry("my_drafts", btnMyDrafts), b.listDrafts)
	r.Handle(dispatch.PhaseCommand, "delete_draft", entry("delete_draft", btnDelete), b.startDelete)
	r.Handle(dispatch.PhaseCommand, "edit_draft", entry("edit_draft", btnEdit), b.startEdit)
	r.Handle(dispatch.PhaseCommand, "send_draft", entry("send_draft", btnSend), b.startSend)
	r.Handle(dispatch.PhaseCommand, "save_media_draft", entry("save_media_draft", btnSaveMedia), b.startMedia)
	r.Handle(dispatch.PhaseCommand, "search", entry("search", btnSearch), b.startSearch)
	r.Handle(dispatch.PhaseCommand, "plan", entry("plan", btnPlan), b.startPlan)
	r.Handle(dispatch.PhaseCommand, "style", entry("style", btnStyle), b.startStyle)

	r.Handle(dispatch.PhaseCallback, cbStartSend, dispatch.Callback(cbStartSend), b.startSend)
	r.Handle(dispatch.PhaseCallback, "delete_confirm", dispatch.CallbackPrefix(cbDeleteConfirm), b.confirmDelete)
	r.Handle(dispatch.PhaseCallback, cbDeleteCancel, dispatch.Callback(cbDeleteCancel), b.cancelDelete)
	r.Handle(dispatch.PhaseCallback, cbDraftCancel, dispatch.Callback(cbDraftCancel), b.cancelDraft)
	r.Handle(dispatch.PhaseCallback, cbSkipConclusion, dispatch.Callback(cbSkipConclusion), b.skipConclusion)
	r.Handle(dispatch.PhaseCallback, cbIdeaChannel, dispatch.Callback(cbIdeaChannel), b.ideaModeChannel)
	r.Handle(dispatch.PhaseCallback, cbIdeaOwn, dispatch.Callback(cbIdeaOwn), b.ideaModeOwn)
	r.Handle(dispatch.PhaseCallback, cbOwnIdeaGenerate, dispatch.Callback(cbOwnIdeaGenerate), b.ownIdeaGenerate)
	r.Handle(dispatch.PhaseCallback, cbOwnIdeaToDraft, dispatch.Callback(cbOwnIdeaToDraft), b.ownIdeaToDraft)
	r.Handle(dispatch.PhaseCallback, cbOwnIdeaSelf, dispatch.Callback(cbOwnIdeaSelf), b.ownIdeaSelf)
	r.Handle(dispatch.PhaseCallback, "gen", dispatch.CallbackPrefix(cbGen), b.genAction)
	r.Handle(dispatch.PhaseCallback, "plan_period", dispatch.CallbackPrefix(cbPlanPeriod), b.planPeriod)
	r.Handle(dispatch.PhaseCallback, "stale_callback", dispatch.Kind(domain.EventCallback), b.staleCallback)

	r.Handle(dispatch.PhaseState, string(StateDraftConfirm), inState(StateDraftConfirm, text), b.draftConfirm)
	r.Handle(dispatch.PhaseState, string(StateDraftIdea), inState(StateDraftIdea, text), b.draftIdea)
	r.Handle(dispatch.PhaseState, string(StateDraftTitle), inState(StateDraftTitle, text), b.draftTitle)
	r.Handle(dispatch.PhaseState, string(StateDraftBody), inState(StateDraftBody, text), b.draftBody)
	r.Handle(dispatch.PhaseState, string(StateDraftConclusion), inState(StateDraftConclusion, text), b.draftConclusion)
	r.Handle(dispatch.PhaseState, string(StateIdeaProfile), inState(StateIdeaProfile, text), b.ideaProfile)
	r.Handle(dispatch.PhaseState, string(StateIdeaOwn), inState(StateIdeaOwn, text), b.ideaOwn)
	r.Handle(dispatch.PhaseState, string(StateDeleteID), inState(StateDeleteID, text), b.deletePosition)
	r.Handle(dispatch.PhaseState, string(StateDeleteConfirm), inState(StateDeleteConfirm, text), b.deleteAwaitButton)
	r.Handle(dispatch.PhaseState, string(StateEditID), inState(StateEditID, text), b.editPosition)
	r.Handle(dispatch.PhaseState, string(StateEditText), inState(StateEditText, text), b.editText)
	r.Handle(dispatch.PhaseState, string(StateSendNumber), inState(StateSendNumber, text), b.sendPosition)
	r.Handle(dispatch.PhaseState, string(StateSendChannel), inState(StateSendChannel, text), b.sendChannel)
	r.Handle(dispatch.PhaseState, string(StateMediaWaiting)+"/media", inState(StateMediaWaiting, media), b.mediaReceived)
	r.Handle(dispatch.PhaseState, string(StateMediaWaiting)+"/text", inState(StateMediaWaiting, text), b.mediaExpected)
	r.Handle(dispatch.PhaseState, string(StateGenEditing), inState(StateGenEditing, text), b.genUseButtons)
	r.Handle(dispatch.PhaseState, string(StateGenAIEdit), inState(StateGenAIEdit, text), b.genAIEditText)
	r.Handle(dispatch.PhaseState, string(StateGenMedia)+"/media", inState(StateGenMedia, media), b.genMediaReceived)
	r.Handle(dispatch.PhaseState, string(StateGenMedia)+"/text", inState(StateGenMedia, text), b.genMediaExpected)
	r.Handle(dispatch.PhaseState, string(StateSearchQuery), inState(StateSearchQuery, text), b.searchQuery)
	r.Handle(dispatch.PhaseState, string(StatePlanTopic), inState(StatePlanTopic, text), b.planTopic)
	r.Handle(dispatch.PhaseState, string(StatePlanPeriod), inState(StatePlanPeriod, text), b.planAwaitButton)
	r.Handle(dispatch.PhaseState, string(StateStyleExample), inState(StateStyleExample, text), b.styleExample)
	r.Handle(dispatch.PhaseState, string(StateStyleTopic), inState(StateStyleTopic, text), b.styleTopic)
	r.Handle(dispatch.PhaseState, "unexpected_input", inFlow, b.unexpectedInput)
	r.Handle(dispatch.PhaseState, "idle_text", dispatch.All(dispatch.InState(domain.StateIdle), text), b.idleText)
}

// inFlow matches any event while a flow is active.
func inFlow(_ domain.Event, st domain.State) bool {
	return st != domain.StateIdle
}

// HandleError turns a failed handler into a user-visible reply. Storage
// failures abort the flow. A conflicting write leaves the session as the
// other writer stored it.
func (b *Bot) HandleError(ctx context.Context, ev domain.Event, err error) {
	log := b.logger.With("user_id", ev.UserID, "update_id", ev.UpdateID)

	code := errorCode(err)
	text := msgTryAgain
	switch code {
	case ErrorStorage:
		text = msgStorageFailed
		if cerr := b.sessions.Clear(ctx, ev.UserID); cerr != nil {
			log.Error("failed to clear session after storage error", "err", cerr)
		}
	case ErrorConflict:
		text = msgConflict
	case ErrorUpstream:
		text = msgUpstream
	case ErrorRateLimited:
		text = msgRateLimited
	}
	log.Warn("request failed", "code", string(code), "err", err)

	if ev.Kind == domain.EventCallback {
		if aerr := b.transport.AnswerCallback(ctx, ev.CallbackID, "", false); aerr != nil {
			log.Debug("failed to answer callback", "err", aerr)
		}
	}
	if serr := b.transport.Send(ctx, domain.Reply{ChatID: ev.ChatID, Text: text}); serr != nil {
		log.Error("failed to send error reply", "err", serr)
	}
}

func (b *Bot) reply(ctx context.Context, ev domain.Event, text string, kb *domain.Keyboard) error {
	if err := b.transport.Send(ctx, domain.Reply{ChatID: ev.ChatID, Text: text, Keyboard: kb}); err != nil {
		return newError(ErrorUpstream, "telegram_send", err)
	}
	return nil
}

// ack answers a callback query. Failures are logged only: the spinner on the
// user's button times out by itself.
func (b *Bot) ack(ctx context.Context, ev domain.Event, text string, alert bool) {
	if ev.Kind != domain.EventCallback {
		return
	}
	if err := b.transport.AnswerCallback(ctx, ev.CallbackID, text, alert); err != nil {
		b.logger.Debug("failed to answer callback", "user_id", ev.UserID, "err", err)
	}
}

// editOrReply replaces the message the callback came from, or sends a new one.
func (b *Bot) editOrReply(ctx context.Context, ev domain.Event, text string) error {
	if ev.Kind == domain.EventCallback && ev.MessageID != 0 {
		err := b.transport.Edit(ctx, ev.ChatID, ev.MessageID, domain.Reply{ChatID: ev.ChatID, Text: text})
		if err == nil {
			return nil
		}
		b.logger.Debug("edit failed, sending instead", "user_id", ev.UserID, "err", err)
	}
	return b.reply(ctx, ev, text, nil)
}

func (b *Bot) setState(ctx context.Context, userID int64, st domain.State) error {
	if err := b.sessions.SetState(ctx, userID, st); err != nil {
		return sessionError(err)
	}
	return nil
}

func (b *Bot) update(ctx context.Context, userID int64, fields map[string]string) error {
	if err := b.sessions.UpdateData(ctx, userID, fields); err != nil {
		return sessionError(err)
	}
	return nil
}

func (b *Bot) setPending(ctx context.Context, userID int64, p *domain.PendingPost) error {
	if err := b.sessions.SetPending(ctx, userID, p); err != nil {
		return sessionError(err)
	}
	return nil
}

func (b *Bot) clear(ctx context.Context, userID int64) error {
	if err := b.sessions.Clear(ctx, userID); err != nil {
		return sessionError(err)
	}
	return nil
}

// enter starts a flow from scratch: the previous flow, if any, is dropped.
func (b *Bot) enter(ctx context.Context, userID int64, st domain.State) error {
	if err := b.clear(ctx, userID); err != nil {
		return err
	}
	return b.setState(ctx, userID, st)
}

func (b *Bot) withAITimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.aiTimeout)
}

func (b *Bot) start(ctx context.Context, ev domain.Event, _ domain.Session) error {
	return b.reply(ctx, ev, msgStart, mainMenu())
}

func (b *Bot) help(ctx context.Context, ev domain.Event, _ domain.Session) error {
	return b.reply(ctx, ev, msgHelp, mainMenu())
}

func (b *Bot) cancel(ctx context.Context, ev domain.Event, s domain.Session) error {
	if s.Idle() && s.Pending == nil {
		return b.reply(ctx, ev, msgNothingToCancel, mainMenu())
	}
	if err := b.clear(ctx, ev.UserID); err != nil {
		return err
	}
	return b.reply(ctx, ev, msgCancelled, mainMenu())
}

func (b *Bot) staleCallback(ctx context.Context, ev domain.Event, _ domain.Session) error {
	b.ack(ctx, ev, msgStaleButton, false)
	return nil
}

func (b *Bot) unexpectedInput(ctx context.Context, ev domain.Event, _ domain.Session) error {
	return b.reply(ctx, ev, msgUnexpectedKind, nil)
}

func (b *Bot) idleText(ctx context.Context, ev domain.Event, _ domain.Session) error {
	return b.reply(ctx, ev, msgIdleHint, mainMenu())
}
