// Package telegram connects the bot dispatcher to the Telegram Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vaultbot/internal/bot"
)

var _ bot.Messenger = (*Client)(nil)

// api is the subset of *tgbotapi.BotAPI the client calls.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Client sends messages through the Bot API and receives updates by long
// polling or webhook.
type Client struct {
	api api
	bot *tgbotapi.BotAPI
}

// New authenticates token against the Bot API.
func New(token string) (*Client, error) {
	b, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	slog.Info("Telegram bot authorized", "username", b.Self.UserName)
	return &Client{api: b, bot: b}, nil
}

func (c *Client) Send(_ context.Context, chatID int64, text string, keyboard []bot.Row) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup := inlineKeyboard(keyboard); markup != nil {
		msg.ReplyMarkup = *markup
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (c *Client) SendPhoto(_ context.Context, chatID int64, png []byte, caption string, keyboard []bot.Row) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "chart.png", Bytes: png})
	photo.Caption = caption
	if markup := inlineKeyboard(keyboard); markup != nil {
		photo.ReplyMarkup = *markup
	}
	if _, err := c.api.Send(photo); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

func (c *Client) EditPhoto(_ context.Context, chatID int64, messageID int, png []byte, caption string, keyboard []bot.Row) error {
	media := tgbotapi.NewInputMediaPhoto(tgbotapi.FileBytes{Name: "chart.png", Bytes: png})
	media.Caption = caption
	edit := tgbotapi.EditMessageMediaConfig{
		BaseEdit: tgbotapi.BaseEdit{
			ChatID:      chatID,
			MessageID:   messageID,
			ReplyMarkup: inlineKeyboard(keyboard),
		},
		Media: media,
	}
	if _, err := c.api.Send(edit); err != nil {
		return fmt.Errorf("edit photo: %w", err)
	}
	return nil
}

func (c *Client) AnswerCallback(_ context.Context, callbackID, text string) error {
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// SetWebhook registers url as the update endpoint. An empty url removes
// the webhook so that long polling works again.
func (c *Client) SetWebhook(url string) error {
	if url == "" {
		_, err := c.api.Request(tgbotapi.DeleteWebhookConfig{})
		if err != nil {
			return fmt.Errorf("delete webhook: %w", err)
		}
		return nil
	}
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	if _, err := c.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// Poll long-polls for updates and hands them to handle in arrival order
// until ctx is done. handle is expected to enqueue, not to do the work.
func (c *Client) Poll(ctx context.Context, handle func(context.Context, bot.Update)) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	updates := c.bot.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			in, ok := Decode(u)
			if !ok {
				continue
			}
			handle(ctx, in)
		}
	}
}

// DecodeRequest reads a webhook request body.
func DecodeRequest(r io.Reader) (bot.Update, bool, error) {
	var u tgbotapi.Update
	if err := json.NewDecoder(r).Decode(&u); err != nil {
		return bot.Update{}, false, fmt.Errorf("decode update: %w", err)
	}
	in, ok := Decode(u)
	return in, ok, nil
}

// Decode converts a text message or button press. Other updates are
// reported as not ok.
func Decode(u tgbotapi.Update) (bot.Update, bool) {
	switch {
	case u.Message != nil && u.Message.Text != "" && u.Message.Chat != nil:
		return bot.Update{Message: &bot.Message{
			ChatID: u.Message.Chat.ID,
			From:   displayName(u.Message.From),
			Text:   u.Message.Text,
		}}, true
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil && u.CallbackQuery.Message.Chat != nil:
		cq := u.CallbackQuery
		return bot.Update{Callback: &bot.Callback{
			ID:        cq.ID,
			ChatID:    cq.Message.Chat.ID,
			MessageID: cq.Message.MessageID,
			From:      displayName(cq.From),
			Data:      cq.Data,
		}}, true
	}
	return bot.Update{}, false
}

func displayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.UserName
	}
	return name
}

func inlineKeyboard(rows []bot.Row) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, r := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &markup
}

// WebhookHandler decodes webhook posts and hands updates to handle.
func WebhookHandler(handle func(context.Context, bot.Update)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		in, ok, err := DecodeRequest(r.Body)
		if err != nil {
			slog.WarnContext(r.Context(), "Invalid webhook payload", "error", err)
			http.Error(w, "invalid update", http.StatusBadRequest)
			return
		}
		if ok {
			handle(context.WithoutCancel(r.Context()), in)
		}
		w.WriteHeader(http.StatusOK)
	})
}
