package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"channel-assistant/internal/domain"
)

const (
	msgStart = "Hi! I help you plan, write and publish posts for your Telegram channel.\n\n" +
		"Use the menu below or /help to see what I can do."

	msgHelp = "What I can do:\n\n" +
		"/idea - post ideas for your channel or help with your own idea\n" +
		"/draft - build a draft step by step\n" +
		"/my_drafts - list your drafts\n" +
		"/edit_draft - replace the text of a draft\n" +
		"/delete_draft - delete a draft\n" +
		"/send_draft - publish a draft to a channel\n" +
		"/save_media_draft - save a photo, video or file as a draft\n" +
		"/search - find drafts by text\n" +
		"/plan - make a content plan\n" +
		"/style - write a post in the style of an example\n" +
		"/cancel - stop the current action\n\n" +
		"Drafts are numbered 1, 2, 3 as in /my_drafts. Numbers change after a deletion."

	msgCancelled       = "Cancelled. What next?"
	msgNothingToCancel = "There is nothing to cancel."
	msgIdleHint        = "I did not get that. Use the menu below or /help."
	msgUnexpectedKind  = "Please answer with a text message, or /cancel."
	msgStaleButton     = "This button is no longer active."

	msgTryAgain      = "Something went wrong. Please try again."
	msgStorageFailed = "I could not save your changes, so the current action was cancelled. Please try again."
	msgConflict      = "Another of your messages was handled at the same moment, so this one was skipped. Please send it again."
	msgUpstream      = "The assistant is temporarily unavailable. Please try again in a moment."
	msgRateLimited   = "Too many requests right now. Please wait a minute and try again."

	msgDraftIntro = "Let's build a draft step by step: idea, title, text and conclusion.\n\n" +
		"Send + to start, or /cancel."
	msgDraftConfirmHint = "Send + to start building the draft, or /cancel."
	msgDraftIdea        = "Step 1. Idea\n\nWhat is the post about? Describe the idea in a sentence or two."
	msgDraftTitle       = "Step 2. Title\n\nSend the title of the post. Short and specific works best."
	msgDraftBody        = "Step 3. Text\n\nSend the main text of the post."
	msgDraftConclusion  = "Step 4. Conclusion\n\nSend a conclusion or call to action. Send - to skip."
	msgDraftEmptyInput  = "The message is empty. Please send some text."
	msgDraftCancelled   = "Draft cancelled."
	msgDraftSaved       = "Draft saved as #%d. It is in /my_drafts."
	msgDraftSavedPlain  = "Draft saved. It is in /my_drafts."
	msgSkipWrongStep    = "You can skip only the conclusion step."

	msgIdeaChoose     = "How can I help?"
	msgIdeaProfile    = "Describe your channel: topic, audience and tone."
	msgIdeaOwn        = "Send your idea in a few sentences."
	msgIdeaList       = "Post ideas:\n\n%s\n\nPick one and build it with /draft."
	msgIdeaCaptured   = "Your idea:\n\n%s\n\nWhat should we do with it?"
	msgIdeaMissing    = "I lost your idea. Please start again with /idea."
	msgOwnIdeaToDraft = "Building a draft from your idea:\n\n%s\n\n" + msgDraftTitle
	msgOwnIdeaSelf    = "OK, write it yourself. /draft can help with the structure."
	msgWriting        = "Writing, this takes a few seconds..."

	msgAskPosition   = "Send the draft number as in /my_drafts (1, 2, 3 ...), or /cancel."
	msgNotANumber    = "The draft number must be a positive number, for example 2."
	msgNoSuchDraft   = "There is no draft #%s. Check /my_drafts and try again, or /cancel."
	msgNoDrafts      = "You have no drafts yet. Create one with /draft."
	msgDraftVanished = "That draft no longer exists. Check /my_drafts and start again."

	msgDeleteAsk       = "Delete draft\n\n" + msgAskPosition
	msgDeleteConfirm   = "Delete draft #%d?\n\n%s"
	msgDeleteUseButton = "Use the buttons above to confirm or cancel, or /cancel."
	msgDeleted         = "Draft #%d deleted. Numbers of the drafts after it moved up."
	msgDeletedNoNumber = "Draft deleted."
	msgAlreadyDeleted  = "This draft was already deleted."
	msgDeleteCancelled = "Deletion cancelled."

	msgEditAsk     = "Edit draft\n\n" + msgAskPosition
	msgEditCurrent = "Draft #%d now reads:\n\n%s\n\nSend the new text. It replaces the whole draft."
	msgEdited      = "Draft #%d updated."

	msgSendAsk = "Send a draft to a channel\n\n" +
		"1) Send the draft number as in /my_drafts.\n" +
		"2) Then send the @username or chat id of the channel.\n\n" +
		"The bot must be an admin of the channel to publish. /cancel to stop."
	msgSendChannel    = "Draft #%d selected.\n\nNow send the @username or chat id of the channel, for example @mychannel or -1001234567890."
	msgSendChannelGen = "Send the @username or chat id of the channel, for example @mychannel or -1001234567890."
	msgBadChannel     = "That does not look like a channel. Send @username or a numeric chat id, or /cancel."
	msgSendLost       = "I could not find the post to send. Please start again with /send_draft."
	msgSentDraft      = "Draft #%s sent to %s."
	msgSentPost       = "Post sent to %s."
	msgSendForbidden  = "I could not post to %s: the bot has no rights there. Make the bot an admin of the channel and try again.\n\nDetails: %v"
	msgSendFailed     = "I could not send the message to %s. Check the @username or chat id and try again."

	msgMediaAsk      = "Send a photo, video, video note, document or voice message. A caption is optional. /cancel to stop."
	msgMediaExpected = "I am waiting for a photo, video, video note, document or voice message, or /cancel."
	msgMediaSaved    = "Media draft saved as #%d."
	mediaNoCaption   = "Media without caption"

	msgGenHeader       = "Post:\n\n%s"
	msgGenAttachment   = "\n\n[attached %s]"
	msgGenUseButtons   = "Use the buttons under the post, or /cancel."
	msgGenInactive     = "This post is no longer active."
	msgGenBusy         = "Finish the current step or press Back first."
	msgGenAIEditAsk    = "What should be changed? Describe the edit in your own words.\n\n" + msgGenKeepOrDrop
	msgGenAIEditFailed = "I could not apply the edit. The post is unchanged."
	msgGenMediaAsk     = "Send a photo, video, video note, document or voice message to attach.\n\n" + msgGenKeepOrDrop
	msgGenKeepOrDrop   = btnGenBack + " returns to the post. /cancel discards the whole post."
	msgGenMediaOrBack  = "Send a media file or press Back."
	msgGenVariants     = "Pick a variant:\n\n%s"
	msgGenNoVariant    = "This variant is no longer available."
	msgGenSaved        = "Post saved as draft #%d."
	msgGenClosed       = "Closed. The post was not saved."
	genDefaultIdea     = "Generated post"

	msgSearchAsk   = "Send a word or phrase to look for in your drafts."
	msgSearchNone  = "Nothing found for %q."
	msgSearchFound = "Found in your drafts:"

	msgPlanTopic     = "What is the channel or the series about? Send the topic."
	msgPlanPeriod    = "For which period?"
	msgPlanPeriodUse = "Choose the period with the buttons above, or /cancel."
	msgPlanResult    = "Content plan:\n\n%s"

	msgStyleExample = "Send an example post whose style I should copy."
	msgStyleTopic   = "Now send the topic of the new post."
)

// fallbackIdeaTemplates are offered when the AI returns nothing usable.
var fallbackIdeaTemplates = []string{
	"An introduction post: what the channel is about and who it is for: %s",
	"Five tips on the channel topic: %s",
	"A personal story connected to the channel topic: %s",
	"A common mistake your readers make, and how to fix it: %s",
	"A weekly recap of the channel topic with takeaways: %s",
}

const fallbackProfileRunes = 80

// fallbackIdeas fills the templates with the channel profile, shortened.
func fallbackIdeas(profile string) []string {
	short := truncate(profile, fallbackProfileRunes)
	ideas := make([]string, len(fallbackIdeaTemplates))
	for i, tmpl := range fallbackIdeaTemplates {
		ideas[i] = fmt.Sprintf(tmpl, short)
	}
	return ideas
}

const (
	previewRunes = 300
	// maxMessageRunes stays below the Telegram limit of 4096 characters.
	maxMessageRunes = 3800
	// Published posts may use the whole limit.
	maxPostRunes    = 4096
	maxCaptionRunes = 1024
)

func mainMenu() *domain.Keyboard {
	return &domain.Keyboard{Reply: [][]string{
		{"/help", btnIdeas, btnNewDraft},
		{btnMyDrafts, btnDelete, btnEdit},
		{btnSend, btnSaveMedia, btnSearch},
		{btnPlan, btnStyle, btnCancel},
	}}
}

func inline(rows ...[]domain.Button) *domain.Keyboard {
	return &domain.Keyboard{Inline: rows}
}

func row(buttons ...domain.Button) []domain.Button {
	return buttons
}

func button(text, data string) domain.Button {
	return domain.Button{Text: text, Data: data}
}

func draftCancelKeyboard() *domain.Keyboard {
	return inline(row(button("❌ Cancel", cbDraftCancel)))
}

func sendKeyboard() *domain.Keyboard {
	return inline(row(button("📤 Send to channel", cbStartSend)))
}

func genKeyboard() *domain.Keyboard {
	return inline(
		row(button("✂️ Shorter", cbGen+genShorten), button("➕ Longer", cbGen+genExpand)),
		row(button("🔄 Rewrite", cbGen+genRewrite), button("#️⃣ Hashtags", cbGen+genHashtags)),
		row(button("🎲 3 variants", cbGen+genVariants), button("🪄 Edit with AI", cbGen+genAIEdit)),
		row(button("📎 Attach media", cbGen+genMedia)),
		row(button("💾 Save", cbGen+genSave), button("📤 Send", cbGen+genSend)),
		row(button("❌ Close", cbGen+genClose)),
	)
}

func genBackKeyboard() *domain.Keyboard {
	return inline(row(button(btnGenBack, cbGen+genBack)))
}

// composeDraft joins the non-empty builder sections with blank lines.
func composeDraft(idea, title, body, conclusion string) string {
	var sections []string
	if idea != "" {
		sections = append(sections, "Idea: "+idea)
	}
	if title != "" {
		sections = append(sections, "Title: "+title)
	}
	if body != "" {
		sections = append(sections, "Text:\n"+body)
	}
	if conclusion != "" {
		sections = append(sections, "Conclusion:\n"+conclusion)
	}
	return strings.Join(sections, "\n\n")
}

// describePayload renders a payload for listings.
func describePayload(p domain.Payload) string {
	if !p.IsMedia() {
		return truncate(p.Text, previewRunes)
	}
	if p.Text == "" {
		return fmt.Sprintf("[%s]", p.Media.Kind)
	}
	return fmt.Sprintf("[%s] %s", p.Media.Kind, truncate(p.Text, previewRunes))
}

// renderPending shows the post under edit. The preview is cut to fit one
// message; the stored post stays whole.
func renderPending(p domain.PendingPost) string {
	text := fmt.Sprintf(msgGenHeader, truncate(p.Text, maxMessageRunes))
	if p.Media != nil {
		text += fmt.Sprintf(msgGenAttachment, p.Media.Kind)
	}
	return text
}

// splitRunes cuts s into parts of at most n runes, preferring line breaks.
func splitRunes(s string, n int) []string {
	r := []rune(s)
	if len(r) <= n {
		return []string{s}
	}
	var out []string
	for len(r) > n {
		cut := n
		for i := n; i > n/2; i-- {
			if r[i-1] == '\n' {
				cut = i
				break
			}
		}
		out = append(out, string(r[:cut]))
		r = r[cut:]
	}
	if len(r) > 0 {
		out = append(out, string(r))
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}

// chunk groups entries into messages that fit the transport limit. An entry
// longer than the limit is truncated.
func chunk(header string, entries []string) []string {
	var out []string
	cur := header
	for _, e := range entries {
		e = truncate(e, maxMessageRunes)
		if cur != "" && utf8.RuneCountInString(cur)+utf8.RuneCountInString(e)+2 > maxMessageRunes {
			out = append(out, cur)
			cur = ""
		}
		if cur == "" {
			cur = e
			continue
		}
		cur += "\n\n" + e
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}
