package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"channel-assistant/internal/domain"
	"channel-assistant/internal/position"
)

// ---------------------------------------------------------------------------
// draft builder
// ---------------------------------------------------------------------------

func TestDraftBuilder_DashSkipsConclusion(t *testing.T) {
	h := newHarness(t)

	h.command("draft", "")
	require.Equal(t, StateDraftConfirm, h.state())
	h.text("+")
	require.Equal(t, StateDraftIdea, h.state())
	h.text("Launch")
	h.text("v2")
	h.text("details")
	require.Equal(t, StateDraftConclusion, h.state())
	require.True(t, hasButton(h.lastReply().Keyboard, cbSkipConclusion))
	h.text("-")

	drafts := h.listDrafts()
	require.Len(t, drafts, 1)
	require.Equal(t, "Launch", drafts[0].Idea)
	require.Equal(t, "Idea: Launch\n\nTitle: v2\n\nText:\ndetails", drafts[0].Payload.Text)
	require.NotContains(t, drafts[0].Payload.Text, "Conclusion")

	require.Equal(t, domain.StateIdle, h.state())
	require.Equal(t, fmt.Sprintf(msgDraftSaved, 1), h.lastText())
	require.True(t, hasButton(h.lastReply().Keyboard, cbStartSend))
}

func TestDraftBuilder_WithConclusion(t *testing.T) {
	h := newHarness(t)
	h.createText("older")

	h.command("draft", "")
	h.text("+")
	h.text("idea")
	h.text("title")
	h.text("body")
	h.text("Subscribe!")

	drafts := h.listDrafts()
	require.Len(t, drafts, 2)
	require.Equal(t, "Idea: idea\n\nTitle: title\n\nText:\nbody\n\nConclusion:\nSubscribe!", drafts[1].Payload.Text)
	require.Equal(t, fmt.Sprintf(msgDraftSaved, 2), h.lastText())
}

func TestDraftBuilder_ConfirmRequiresPlus(t *testing.T) {
	h := newHarness(t)
	h.command("draft", "")

	h.text("yes")
	require.Equal(t, StateDraftConfirm, h.state())
	require.Equal(t, msgDraftConfirmHint, h.lastText())
}

func TestDraftBuilder_EmptyInputKeepsState(t *testing.T) {
	h := newHarness(t)
	h.setState(StateDraftTitle)

	h.text("   ")
	require.Equal(t, StateDraftTitle, h.state())
	require.Empty(t, h.session().Data)
	require.Equal(t, msgDraftEmptyInput, h.lastText())
}

func TestDraftBuilder_SkipCallbackOnlyAtConclusion(t *testing.T) {
	h := newHarness(t)
	h.command("draft", "")
	h.text("+")
	h.text("idea")

	h.callback(cbSkipConclusion)
	require.Equal(t, StateDraftTitle, h.state())
	require.True(t, h.lastAnswer().alert)
	require.Empty(t, h.listDrafts())

	h.text("title")
	h.text("body")
	h.callback(cbSkipConclusion)

	drafts := h.listDrafts()
	require.Len(t, drafts, 1)
	require.Equal(t, "Idea: idea\n\nTitle: title\n\nText:\nbody", drafts[0].Payload.Text)
	require.Equal(t, domain.StateIdle, h.state())
}

func TestDraftBuilder_CancelCallback(t *testing.T) {
	h := newHarness(t)
	h.command("draft", "")
	h.text("+")
	h.text("idea")

	h.callback(cbDraftCancel)
	require.Equal(t, domain.StateIdle, h.state())
	require.Empty(t, h.session().Data)
	require.Equal(t, msgDraftCancelled, h.lastEdit())
}

func TestDraftBuilder_RestartDropsPartialInput(t *testing.T) {
	h := newHarness(t)
	h.command("draft", "")
	h.text("+")
	h.text("first idea")

	h.text(btnNewDraft)
	require.Equal(t, StateDraftConfirm, h.state())
	require.Empty(t, h.session().Value(keyIdea))
}

// ---------------------------------------------------------------------------
// listing and search
// ---------------------------------------------------------------------------

func TestListDrafts(t *testing.T) {
	h := newHarness(t)
	h.command("my_drafts", "")
	require.Equal(t, msgNoDrafts, h.lastText())

	h.createText("first")
	_, err := h.store.Create(context.Background(), testUser, "pic", domain.MediaPayload(domain.MediaPhoto, "file-1", "sunset"))
	require.NoError(t, err)

	h.text(btnMyDrafts)
	out := h.lastText()
	require.Contains(t, out, "#1")
	require.Contains(t, out, "first")
	require.Contains(t, out, "#2")
	require.Contains(t, out, "[photo] sunset")
}

func TestSearch_ShowsCurrentPositions(t *testing.T) {
	h := newHarness(t)
	h.createText("apples")
	h.createText("Bananas and more")
	h.createText("cherries")

	h.command("search", "")
	require.Equal(t, StateSearchQuery, h.state())
	h.text("BANANA")

	require.Equal(t, domain.StateIdle, h.state())
	out := h.lastText()
	require.Contains(t, out, "#2")
	require.Contains(t, out, "Bananas")
	require.NotContains(t, out, "apples")

	h.command("search", "kiwi")
	require.Equal(t, fmt.Sprintf(msgSearchNone, "kiwi"), h.lastText())
}

// ---------------------------------------------------------------------------
// delete flow
// ---------------------------------------------------------------------------

func TestDelete_MiddleDraftShiftsPositions(t *testing.T) {
	h := newHarness(t)
	h.createText("one")
	second := h.createText("two")
	third := h.createText("three")

	h.command("delete_draft", "")
	require.Equal(t, StateDeleteID, h.state())
	h.text("2")
	require.Equal(t, StateDeleteConfirm, h.state())
	require.Equal(t, string(second), h.session().Value(keyDraftID))
	require.Equal(t, "2", h.session().Value(keyDraftNumber))
	require.True(t, hasButton(h.lastReply().Keyboard, cbDeleteConfirm+string(second)))

	h.callback(cbDeleteConfirm + string(second))
	require.Equal(t, domain.StateIdle, h.state())
	require.Equal(t, fmt.Sprintf(msgDeleted, 2), h.lastEdit())

	ix := position.New(h.listDrafts())
	require.Equal(t, 2, ix.Count())
	d, err := ix.Resolve(2)
	require.NoError(t, err)
	require.Equal(t, third, d.ID)
}

func TestDelete_SecondConfirmReportsAlreadyDeleted(t *testing.T) {
	h := newHarness(t)
	id := h.createText("one")

	h.command("delete_draft", "1")
	h.callback(cbDeleteConfirm + string(id))
	h.callback(cbDeleteConfirm + string(id))

	require.Equal(t, msgAlreadyDeleted, h.lastEdit())
	require.Empty(t, h.listDrafts())
}

func TestDelete_InvalidInputReprompts(t *testing.T) {
	h := newHarness(t)
	h.createText("one")
	h.command("delete_draft", "")

	h.text("abc")
	require.Equal(t, msgNotANumber, h.lastText())
	require.Equal(t, StateDeleteID, h.state())

	h.text("5")
	require.Equal(t, fmt.Sprintf(msgNoSuchDraft, "5"), h.lastText())
	require.Equal(t, StateDeleteID, h.state())

	h.text("0")
	require.Equal(t, StateDeleteID, h.state())

	h.text("99999999999999999999999")
	require.Equal(t, StateDeleteID, h.state())
	require.Len(t, h.listDrafts(), 1)
}

func TestDelete_TextWhileConfirmingGetsHint(t *testing.T) {
	h := newHarness(t)
	h.createText("one")
	h.command("delete_draft", "1")

	h.text("yes please")
	require.Equal(t, msgDeleteUseButton, h.lastText())
	require.Equal(t, StateDeleteConfirm, h.state())
	require.Len(t, h.listDrafts(), 1)
}

func TestDelete_Cancel(t *testing.T) {
	h := newHarness(t)
	h.createText("one")
	h.command("delete_draft", "1")

	h.callback(cbDeleteCancel)
	require.Equal(t, domain.StateIdle, h.state())
	require.Equal(t, msgDeleteCancelled, h.lastEdit())
	require.Len(t, h.listDrafts(), 1)
}

func TestDelete_PositionResolvedAgainstFreshListing(t *testing.T) {
	h := newHarness(t)
	first := h.createText("one")
	second := h.createText("two")

	h.command("delete_draft", "")
	// Draft #1 disappears between the prompt and the answer.
	_, err := h.store.Delete(context.Background(), testUser, first)
	require.NoError(t, err)

	h.text("1")
	require.Equal(t, string(second), h.session().Value(keyDraftID))
}

// ---------------------------------------------------------------------------
// edit flow
// ---------------------------------------------------------------------------

func TestEdit_ReplacesPayload(t *testing.T) {
	h := newHarness(t)
	h.createText("one")
	_, err := h.store.Create(context.Background(), testUser, "pic", domain.MediaPayload(domain.MediaPhoto, "file-1", "cap"))
	require.NoError(t, err)

	h.text(btnEdit)
	h.text("2")
	require.Equal(t, StateEditText, h.state())
	require.Contains(t, h.lastText(), "[photo] cap")

	h.text("brand new text")
	require.Equal(t, domain.StateIdle, h.state())
	require.Equal(t, fmt.Sprintf(msgEdited, 2), h.lastText())

	drafts := h.listDrafts()
	require.Equal(t, domain.TextPayload("brand new text"), drafts[1].Payload)
	require.Equal(t, "pic", drafts[1].Idea)
}

func TestEdit_DraftVanished(t *testing.T) {
	h := newHarness(t)
	id := h.createText("one")
	h.command("edit_draft", "1")

	_, err := h.store.Delete(context.Background(), testUser, id)
	require.NoError(t, err)

	h.text("new text")
	require.Equal(t, msgDraftVanished, h.lastText())
	require.Equal(t, domain.StateIdle, h.state())
	require.Empty(t, h.listDrafts())
}
