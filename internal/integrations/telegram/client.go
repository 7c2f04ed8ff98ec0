// Package telegram adapts the Telegram Bot API to the assistant's transport
// and event types.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"channel-assistant/internal/domain"
)

// botAPI is the minimal part of *tgbotapi.BotAPI the client uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Client implements usecase.Transport.
type Client struct {
	api botAPI
}

func New(api botAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("telegram: api must not be nil")
	}
	return &Client{api: api}, nil
}

// NewBotAPI connects to the Bot API. endpoint may be empty for the public
// API; it is a format string taking the token and the method name.
func NewBotAPI(token, endpoint string, httpClient *http.Client) (*tgbotapi.BotAPI, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram: token must not be empty")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", mapError(err))
	}
	return bot, nil
}

func (c *Client) Send(_ context.Context, r domain.Reply) error {
	msg := tgbotapi.NewMessage(r.ChatID, r.Text)
	if markup := replyMarkup(r.Keyboard); markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: send message: %w", mapError(err))
	}
	return nil
}

func (c *Client) SendText(_ context.Context, to domain.Target, text string) error {
	msg := tgbotapi.NewMessage(to.ChatID, text)
	msg.ChannelUsername = to.Username
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: send text to %s: %w", to, mapError(err))
	}
	return nil
}

func (c *Client) SendMedia(_ context.Context, to domain.Target, m domain.Media, caption string) error {
	cfg, err := mediaConfig(to, m, caption)
	if err != nil {
		return err
	}
	if _, err := c.api.Send(cfg); err != nil {
		return fmt.Errorf("telegram: send %s to %s: %w", m.Kind, to, mapError(err))
	}
	return nil
}

// mediaConfig builds the send request for a stored file id. Video notes
// carry no caption.
func mediaConfig(to domain.Target, m domain.Media, caption string) (tgbotapi.Chattable, error) {
	file := tgbotapi.FileID(m.Ref)
	switch m.Kind {
	case domain.MediaPhoto:
		cfg := tgbotapi.NewPhoto(to.ChatID, file)
		cfg.ChannelUsername = to.Username
		cfg.Caption = caption
		return cfg, nil
	case domain.MediaVideo:
		cfg := tgbotapi.NewVideo(to.ChatID, file)
		cfg.ChannelUsername = to.Username
		cfg.Caption = caption
		return cfg, nil
	case domain.MediaVideoNote:
		cfg := tgbotapi.NewVideoNote(to.ChatID, 0, file)
		cfg.ChannelUsername = to.Username
		return cfg, nil
	case domain.MediaDocument:
		cfg := tgbotapi.NewDocument(to.ChatID, file)
		cfg.ChannelUsername = to.Username
		cfg.Caption = caption
		return cfg, nil
	case domain.MediaVoice:
		cfg := tgbotapi.NewVoice(to.ChatID, file)
		cfg.ChannelUsername = to.Username
		cfg.Caption = caption
		return cfg, nil
	default:
		return nil, fmt.Errorf("telegram: unsupported media kind %q", m.Kind)
	}
}

func (c *Client) Edit(_ context.Context, chatID int64, messageID int, r domain.Reply) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, r.Text)
	if r.Keyboard != nil && len(r.Keyboard.Inline) > 0 {
		markup := inlineMarkup(r.Keyboard.Inline)
		edit.ReplyMarkup = &markup
	}
	if _, err := c.api.Request(edit); err != nil {
		return fmt.Errorf("telegram: edit message: %w", mapError(err))
	}
	return nil
}

func (c *Client) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	cfg := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cfg = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := c.api.Request(cfg); err != nil {
		return fmt.Errorf("telegram: answer callback: %w", mapError(err))
	}
	return nil
}

func replyMarkup(kb *domain.Keyboard) any {
	if kb == nil {
		return nil
	}
	if len(kb.Inline) > 0 {
		return inlineMarkup(kb.Inline)
	}
	if len(kb.Reply) > 0 {
		rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Reply))
		for _, r := range kb.Reply {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(r))
			for _, label := range r {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
		}
		markup := tgbotapi.NewReplyKeyboard(rows...)
		markup.ResizeKeyboard = true
		return markup
	}
	return nil
}

func inlineMarkup(rows [][]domain.Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, r := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}

// mapError marks permission failures with domain.ErrForbidden.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	code, msg := 0, ""
	var pe *tgbotapi.Error
	var ve tgbotapi.Error
	switch {
	case errors.As(err, &pe):
		code, msg = pe.Code, pe.Message
	case errors.As(err, &ve):
		code, msg = ve.Code, ve.Message
	}
	if code == http.StatusForbidden || strings.Contains(strings.ToLower(msg), "not enough rights") {
		return fmt.Errorf("%w: %w", domain.ErrForbidden, err)
	}
	return err
}
