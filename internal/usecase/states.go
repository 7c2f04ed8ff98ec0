package usecase

import "channel-assistant/internal/domain"

const (
	StateDraftConfirm    domain.State = "draft.confirm"
	StateDraftIdea       domain.State = "draft.idea"
	StateDraftTitle      domain.State = "draft.title"
	StateDraftBody       domain.State = "draft.body"
	StateDraftConclusion domain.State = "draft.conclusion"

	StateIdeaProfile domain.State = "idea.profile"
	StateIdeaOwn     domain.State = "idea.own"

	StateDeleteID      domain.State = "delete.waiting_for_id"
	StateDeleteConfirm domain.State = "delete.waiting_for_confirm"

	StateEditID   domain.State = "edit.waiting_for_id"
	StateEditText domain.State = "edit.waiting_for_text"

	StateSendNumber  domain.State = "send.waiting_for_number"
	StateSendChannel domain.State = "send.waiting_for_channel"

	StateMediaWaiting domain.State = "media.waiting_for_media"

	StateGenEditing domain.State = "genpost.editing"
	StateGenAIEdit  domain.State = "genpost.waiting_for_ai_edit"
	StateGenMedia   domain.State = "genpost.waiting_for_media"

	StateSearchQuery domain.State = "search.waiting_for_query"

	StatePlanTopic  domain.State = "plan.waiting_for_topic"
	StatePlanPeriod domain.State = "plan.waiting_for_period"

	StateStyleExample domain.State = "style.waiting_for_example"
	StateStyleTopic   domain.State = "style.waiting_for_topic"
)

// genpostPrefix matches every generated-post state.
const genpostPrefix = "genpost."

// Scratchpad keys.
const (
	keyIdea         = "idea"
	keyTitle        = "title"
	keyBody         = "body"
	keyOwnIdea      = "own_idea"
	keyDraftID      = "draft_id"
	keyDraftNumber  = "draft_number"
	keySendSource   = "send_source"
	keyPlanTopic    = "plan_topic"
	keyStyleExample = "style_example"
	keyVariant      = "variant_"
)

const (
	sourceDraft   = "draft"
	sourcePending = "pending"
)

// Callback data.
const (
	cbStartSend       = "start_send_draft"
	cbDeleteConfirm   = "delete_confirm:"
	cbDeleteCancel    = "delete_cancel"
	cbDraftCancel     = "draft_cancel"
	cbSkipConclusion  = "draft_skip_conclusion"
	cbIdeaChannel     = "idea_mode:channel"
	cbIdeaOwn         = "idea_mode:own"
	cbOwnIdeaGenerate = "ownidea_generate_post"
	cbOwnIdeaToDraft  = "ownidea_to_draft"
	cbOwnIdeaSelf     = "ownidea_self"
	cbGen             = "gen:"
	cbPlanPeriod      = "plan_period:"
)

// Generated-post actions, carried after the gen: prefix.
const (
	genShorten  = "shorten"
	genExpand   = "expand"
	genRewrite  = "rewrite"
	genHashtags = "hashtags"
	genVariants = "variants"
	genPick     = "pick:"
	genAIEdit   = "ai_edit"
	genMedia    = "media"
	genSave     = "save"
	genSend     = "send"
	genClose    = "close"
	genBack     = "back"
)

const (
	periodShort = "short"
	periodLong  = "long"
)

// Reply keyboard labels.
const (
	btnIdeas     = "✨ Post ideas"
	btnNewDraft  = "📝 New draft"
	btnMyDrafts  = "📂 My drafts"
	btnDelete    = "🗑 Delete draft"
	btnEdit      = "✏️ Edit draft"
	btnSend      = "📤 Send draft"
	btnSaveMedia = "📎 Save media"
	btnSearch    = "🔍 Search"
	btnPlan      = "🗓 Content plan"
	btnStyle     = "🎨 Copy style"
	btnCancel    = "❌ Cancel"
)

// btnGenBack leaves a post editor sub-step and keeps the post.
const btnGenBack = "⬅️ Back"
