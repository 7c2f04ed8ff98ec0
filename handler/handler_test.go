package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"channel-assistant/internal/domain"
)

type stubDispatcher struct {
	route  string
	err    error
	events []domain.Event
}

func (s *stubDispatcher) Dispatch(_ context.Context, ev domain.Event) (string, error) {
	s.events = append(s.events, ev)
	return s.route, s.err
}

const textUpdate = `{"update_id":7,"message":{"message_id":1,"date":0,"from":{"id":42,"is_bot":false,"first_name":"A"},"chat":{"id":42,"type":"private"},"text":"hello"}}`

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/webhook",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	d := &stubDispatcher{route: "idle_text"}
	h, err := NewHandler(d)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(textUpdate))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, d.events, 1)
	require.Equal(t, domain.EventText, d.events[0].Kind)
	require.Equal(t, int64(42), d.events[0].UserID)
	require.Equal(t, "hello", d.events[0].Text)

	out := parseBody[okResponse](t, resp.Body)
	require.True(t, out.OK)
	require.Equal(t, "idle_text", out.Route)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_InvalidBody(t *testing.T) {
	d := &stubDispatcher{}
	h, err := NewHandler(d)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, errorInvalidBody, parseBody[errorResponse](t, resp.Body).Error)
	require.Empty(t, d.events)
}

func TestHandle_Base64Body(t *testing.T) {
	d := &stubDispatcher{}
	h, err := NewHandler(d)
	require.NoError(t, err)

	event := makeEvent(base64.StdEncoding.EncodeToString([]byte(textUpdate)))
	event.IsBase64Encoded = true
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, d.events, 1)

	event.Body = "%%%"
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandle_IgnoredUpdate(t *testing.T) {
	d := &stubDispatcher{}
	h, err := NewHandler(d)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"update_id":3,"edited_message":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, d.events)
}

func TestHandle_DispatchErrorStillAcknowledged(t *testing.T) {
	d := &stubDispatcher{route: "draft_body", err: errors.New("boom")}
	h, err := NewHandler(d)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(textUpdate))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "draft_body", parseBody[okResponse](t, resp.Body).Route)
}

func TestHandle_Secret(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		status  int
	}{
		{name: "missing", headers: map[string]string{}, status: http.StatusForbidden},
		{name: "wrong", headers: map[string]string{"X-Telegram-Bot-Api-Secret-Token": "nope"}, status: http.StatusForbidden},
		{name: "match", headers: map[string]string{"X-Telegram-Bot-Api-Secret-Token": "s3cret"}, status: http.StatusOK},
		{name: "match lower case", headers: map[string]string{"x-telegram-bot-api-secret-token": "s3cret"}, status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := &stubDispatcher{}
			h, err := NewHandler(d, WithSecret("s3cret"))
			require.NoError(t, err)

			event := makeEvent(textUpdate)
			event.Headers = tc.headers
			resp, err := h.Handle(context.Background(), event)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
			if tc.status == http.StatusForbidden {
				require.Equal(t, errorForbidden, parseBody[errorResponse](t, resp.Body).Error)
				require.Empty(t, d.events)
			}
		})
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h, err := NewHandler(&stubDispatcher{})
	require.NoError(t, err)

	event := makeEvent(textUpdate)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestRouter_Webhook(t *testing.T) {
	d := &stubDispatcher{route: "start"}
	h, err := NewHandler(d, WithSecret("s3cret"))
	require.NoError(t, err)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhook", strings.NewReader(textUpdate))
	require.NoError(t, err)
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "s3cret")
	req.Header.Set("X-Correlation-Id", "corr-9")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "corr-9", resp.Header.Get("X-Correlation-Id"))
	var out okResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "start", out.Route)
	require.Len(t, d.events, 1)
}

func TestRouter_WebhookRejectsBadSecret(t *testing.T) {
	d := &stubDispatcher{}
	h, err := NewHandler(d, WithSecret("s3cret"))
	require.NoError(t, err)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Post(srv.URL+"/webhook", "application/json", strings.NewReader(textUpdate))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Empty(t, d.events)
}

func TestRouter_HealthAndMethods(t *testing.T) {
	h, err := NewHandler(&stubDispatcher{})
	require.NoError(t, err)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/webhook")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
