package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"channel-assistant/internal/domain"
)

func TestSend_TextDraft(t *testing.T) {
	h := newHarness(t)
	h.createText("one")
	h.createText("two")

	h.command("send_draft", "")
	require.Equal(t, StateSendNumber, h.state())
	h.text("2")
	require.Equal(t, StateSendChannel, h.state())
	require.Equal(t, "2", h.session().Value(keyDraftNumber))
	require.NotEmpty(t, h.session().Value(keyDraftID))
	require.Equal(t, sourceDraft, h.session().Value(keySendSource))

	h.text("@mychannel")
	require.Equal(t, domain.StateIdle, h.state())
	require.Equal(t, []textSend{{to: domain.Target{Username: "@mychannel"}, text: "two"}}, h.tr.texts)
	require.Equal(t, fmt.Sprintf(msgSentDraft, "2", "@mychannel"), h.lastText())
}

func TestSend_MediaDraftGoesOutAsMedia(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.Create(context.Background(), testUser, "pic", domain.MediaPayload(domain.MediaVideo, "vid-1", "a|b"))
	require.NoError(t, err)

	h.command("send_draft", "1")
	h.text("-1001234567890")

	require.Len(t, h.tr.media, 1)
	require.Equal(t, domain.Target{ChatID: -1001234567890}, h.tr.media[0].to)
	require.Equal(t, domain.Media{Kind: domain.MediaVideo, Ref: "vid-1"}, h.tr.media[0].media)
	require.Equal(t, "a|b", h.tr.media[0].caption)
	require.Empty(t, h.tr.texts)
}

func TestSend_UnsupportedKindSentAsRawText(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.Create(context.Background(), testUser, "x", domain.MediaPayload("sticker", "stk-1", "cap"))
	require.NoError(t, err)

	h.command("send_draft", "1")
	h.text("@mychannel")

	require.Empty(t, h.tr.media)
	require.Len(t, h.tr.texts, 1)
	require.Equal(t, "MEDIA|sticker|stk-1|cap", h.tr.texts[0].text)
}

func TestSend_TextDraftThatLooksEncodedStaysText(t *testing.T) {
	h := newHarness(t)
	h.createText("MEDIA|photo|x|y")

	h.command("send_draft", "1")
	h.text("@mychannel")

	require.Empty(t, h.tr.media)
	require.Equal(t, []textSend{{to: domain.Target{Username: "@mychannel"}, text: "MEDIA|photo|x|y"}}, h.tr.texts)
}

func TestSend_PublishesDraftAsStoredAtSendTime(t *testing.T) {
	h := newHarness(t)
	id := h.createText("old")

	h.command("send_draft", "1")
	require.NoError(t, h.store.UpdatePayload(context.Background(), testUser, id, domain.TextPayload("new")))
	h.text("@mychannel")

	require.Equal(t, "new", h.tr.texts[0].text)
}

func TestSend_DraftDeletedBeforeChannel(t *testing.T) {
	h := newHarness(t)
	id := h.createText("one")

	h.command("send_draft", "1")
	_, err := h.store.Delete(context.Background(), testUser, id)
	require.NoError(t, err)
	h.text("@mychannel")

	require.Equal(t, msgSendLost, h.lastText())
	require.Equal(t, domain.StateIdle, h.state())
	require.Empty(t, h.tr.texts)
}

func TestSend_LongCaptionFollowsMedia(t *testing.T) {
	h := newHarness(t)
	caption := strings.Repeat("c", maxCaptionRunes+1)
	_, err := h.store.Create(context.Background(), testUser, "pic", domain.MediaPayload(domain.MediaPhoto, "ph-1", caption))
	require.NoError(t, err)

	h.command("send_draft", "1")
	h.text("@mychannel")

	require.Len(t, h.tr.media, 1)
	require.Empty(t, h.tr.media[0].caption)
	require.Len(t, h.tr.texts, 1)
	require.Equal(t, caption, h.tr.texts[0].text)
}

func TestSend_LongTextIsSplit(t *testing.T) {
	h := newHarness(t)
	h.createText(strings.Repeat("a", maxPostRunes) + strings.Repeat("b", 10))

	h.command("send_draft", "1")
	h.text("@mychannel")

	require.Len(t, h.tr.texts, 2)
	require.Equal(t, strings.Repeat("a", maxPostRunes), h.tr.texts[0].text)
	require.Equal(t, strings.Repeat("b", 10), h.tr.texts[1].text)
}

func TestSend_Forbidden(t *testing.T) {
	h := newHarness(t)
	h.createText("one")
	h.tr.publishEr = fmt.Errorf("telegram: send: %w", domain.ErrForbidden)

	h.command("send_draft", "1")
	h.text("@mychannel")

	require.Equal(t, domain.StateIdle, h.state())
	require.Contains(t, h.lastText(), "no rights")
	require.Contains(t, h.lastText(), "forbidden")
}

func TestSend_OtherFailure(t *testing.T) {
	h := newHarness(t)
	h.createText("one")
	h.tr.publishEr = errors.New("chat not found")

	h.command("send_draft", "1")
	h.text("@mychannel")

	require.Equal(t, fmt.Sprintf(msgSendFailed, "@mychannel"), h.lastText())
	require.NotContains(t, h.lastText(), "chat not found")
}

func TestSend_BadChannelReprompts(t *testing.T) {
	h := newHarness(t)
	h.createText("one")
	h.command("send_draft", "1")

	h.text("my channel")
	require.Equal(t, msgBadChannel, h.lastText())
	require.Equal(t, StateSendChannel, h.state())
	require.Empty(t, h.tr.texts)
}

func TestSend_StartFromCallback(t *testing.T) {
	h := newHarness(t)
	h.createText("one")

	h.callback(cbStartSend)
	require.Equal(t, StateSendNumber, h.state())
	require.Equal(t, msgSendAsk, h.lastText())
	require.Equal(t, "cb-"+cbStartSend, h.lastAnswer().id)
}

func TestParseTarget(t *testing.T) {
	cases := []struct {
		in   string
		want domain.Target
		ok   bool
	}{
		{"@mychannel", domain.Target{Username: "@mychannel"}, true},
		{"  @my_channel_1 ", domain.Target{Username: "@my_channel_1"}, true},
		{"https://t.me/mychannel", domain.Target{Username: "@mychannel"}, true},
		{"t.me/mychannel/", domain.Target{Username: "@mychannel"}, true},
		{"-1001234567890", domain.Target{ChatID: -1001234567890}, true},
		{"12345", domain.Target{ChatID: 12345}, true},
		{"@ab", domain.Target{}, false},
		{"@1abc", domain.Target{}, false},
		{"mychannel", domain.Target{}, false},
		{"0", domain.Target{}, false},
		{"", domain.Target{}, false},
	}
	for _, tc := range cases {
		got, ok := ParseTarget(tc.in)
		require.Equal(t, tc.ok, ok, "in=%q", tc.in)
		require.Equal(t, tc.want, got, "in=%q", tc.in)
	}
}

// ---------------------------------------------------------------------------
// media-save flow
// ---------------------------------------------------------------------------

func TestMediaSave(t *testing.T) {
	h := newHarness(t)

	h.command("save_media_draft", "")
	require.Equal(t, StateMediaWaiting, h.state())

	h.text("not media")
	require.Equal(t, msgMediaExpected, h.lastText())
	require.Equal(t, StateMediaWaiting, h.state())

	h.media(domain.MediaVoice, "voice-1", "")
	require.Equal(t, domain.StateIdle, h.state())
	require.Equal(t, fmt.Sprintf(msgMediaSaved, 1), h.lastText())

	drafts := h.listDrafts()
	require.Len(t, drafts, 1)
	require.Equal(t, mediaNoCaption, drafts[0].Idea)
	require.Equal(t, domain.MediaPayload(domain.MediaVoice, "voice-1", ""), drafts[0].Payload)
}

func TestMediaSave_CaptionBecomesIdea(t *testing.T) {
	h := newHarness(t)
	h.text(btnSaveMedia)
	h.media(domain.MediaPhoto, "photo-1", " Sunset ")

	drafts := h.listDrafts()
	require.Len(t, drafts, 1)
	require.Equal(t, "Sunset", drafts[0].Idea)
	require.Equal(t, "Sunset", drafts[0].Payload.Text)
}
