// Package handler exposes the Telegram webhook as an API Gateway Lambda
// handler and as a plain HTTP handler.
package handler

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"channel-assistant/internal/domain"
	"channel-assistant/internal/integrations/telegram"
)

const (
	secretHeader      = "X-Telegram-Bot-Api-Secret-Token"
	correlationHeader = "X-Correlation-Id"
	maxBodyBytes      = 1 << 20
)

const (
	errorInvalidBody = "INVALID_BODY"
	errorForbidden   = "FORBIDDEN"
)

// Dispatcher runs one event through the conversation routes.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event) (string, error)
}

type Handler struct {
	dispatcher Dispatcher
	secret     string
	logger     *slog.Logger
}

type Option func(*Handler)

// WithSecret requires the Telegram secret token header on every request.
func WithSecret(secret string) Option {
	return func(h *Handler) { h.secret = secret }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(d Dispatcher, opts ...Option) (*Handler, error) {
	if d == nil {
		return nil, errors.New("handler: dispatcher must not be nil")
	}
	h := &Handler{dispatcher: d, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type okResponse struct {
	OK    bool   `json:"ok"`
	Route string `json:"route,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handle is the Lambda entry point for API Gateway proxy events.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := header(req.Headers, correlationHeader)
	if corrID == "" {
		corrID = uuid.NewString()
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return h.respond(corrID, http.StatusBadRequest, errorResponse{Error: errorInvalidBody}), nil
		}
		body = decoded
	}

	status, payload := h.process(ctx, corrID, header(req.Headers, secretHeader), body)
	return h.respond(corrID, status, payload), nil
}

// process validates and dispatches one update. Once the update is decoded the
// answer is always 200: failures were already reported to the user, and a
// non-2xx reply makes Telegram redeliver the same update.
func (h *Handler) process(ctx context.Context, corrID, secret string, body []byte) (int, any) {
	log := h.logger.With("correlation_id", corrID)

	if h.secret != "" && subtle.ConstantTimeCompare([]byte(secret), []byte(h.secret)) != 1 {
		log.Warn("rejected webhook call with bad secret")
		return http.StatusForbidden, errorResponse{Error: errorForbidden}
	}

	u, err := telegram.DecodeUpdate(body)
	if err != nil {
		log.Warn("invalid update body", "err", err)
		return http.StatusBadRequest, errorResponse{Error: errorInvalidBody}
	}
	log = log.With("update_id", u.UpdateID)

	ev, ok := telegram.ToEvent(u)
	if !ok {
		log.Debug("ignoring update")
		return http.StatusOK, okResponse{OK: true}
	}

	route, err := h.dispatcher.Dispatch(ctx, ev)
	if err != nil {
		log.Error("update failed", "user_id", ev.UserID, "route", route, "err", err)
		return http.StatusOK, okResponse{OK: true, Route: route}
	}
	log.Info("update handled", "user_id", ev.UserID, "route", route)
	return http.StatusOK, okResponse{OK: true, Route: route}
}

func (h *Handler) respond(corrID string, status int, payload any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"INTERNAL"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(b),
	}
}

// NewRouter serves the webhook over plain HTTP.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/webhook", h.ServeWebhook)
	return r
}

// ServeWebhook is the net/http form of Handle.
func (h *Handler) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	corrID := r.Header.Get(correlationHeader)
	if corrID == "" {
		corrID = uuid.NewString()
	}

	var (
		status  int
		payload any
	)
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		status, payload = http.StatusBadRequest, errorResponse{Error: errorInvalidBody}
	} else {
		status, payload = h.process(r.Context(), corrID, r.Header.Get(secretHeader), body)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(correlationHeader, corrID)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// header looks up a header ignoring case; API Gateway passes them verbatim.
func header(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
