package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/config"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
)

// Telegram implements Notifier over the Bot API and converts raw updates.
type Telegram struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
	logger      *zap.Logger
}

// NewTelegram authenticates with the Bot API.
func NewTelegram(cfg config.TelegramConfig, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	api.Debug = cfg.Debug
	logger.Info("authorized on telegram", zap.String("bot", api.Self.UserName))
	return &Telegram{api: api, pollTimeout: cfg.PollTimeoutSeconds, logger: logger}, nil
}

// BotID returns the id of the authenticated bot.
func (t *Telegram) BotID() int64 {
	return t.api.Self.ID
}

// Poll long-polls for updates and forwards them to out until ctx is done.
func (t *Telegram) Poll(ctx context.Context, out chan<- Update) {
	if _, err := t.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		t.logger.Warn("delete webhook before polling", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout
	updates := t.api.GetUpdatesChan(u)
	defer t.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-updates:
			if !ok {
				return
			}
			update, ok := convertUpdate(raw)
			if !ok {
				continue
			}
			select {
			case out <- update:
			case <-ctx.Done():
				return
			}
		}
	}
}

// SetWebhook registers url as the update endpoint.
func (t *Telegram) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("webhook config: %w", err)
	}
	if _, err := t.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// DecodeWebhook parses a webhook body. ok is false for update kinds the bot ignores.
func DecodeWebhook(body []byte) (Update, bool, error) {
	var raw tgbotapi.Update
	if err := json.Unmarshal(body, &raw); err != nil {
		return Update{}, false, fmt.Errorf("decode webhook update: %w", err)
	}
	update, ok := convertUpdate(raw)
	return update, ok, nil
}

func convertUpdate(raw tgbotapi.Update) (Update, bool) {
	switch {
	case raw.CallbackQuery != nil:
		cb := raw.CallbackQuery
		update := Update{
			ID:           raw.UpdateID,
			UserID:       cb.From.ID,
			FirstName:    cb.From.FirstName,
			Username:     cb.From.UserName,
			CallbackID:   cb.ID,
			CallbackData: cb.Data,
		}
		if cb.Message != nil {
			update.ChatID = cb.Message.Chat.ID
			update.MessageID = cb.Message.MessageID
			update.MessageText = cb.Message.Text
			if len(cb.Message.Photo) > 0 || cb.Message.Document != nil {
				update.MessageText = cb.Message.Caption
				update.MessageHasMedia = true
			}
		} else {
			update.ChatID = cb.From.ID
		}
		return update, true
	case raw.Message != nil:
		m := raw.Message
		if m.From == nil {
			return Update{}, false
		}
		update := Update{
			ID:        raw.UpdateID,
			ChatID:    m.Chat.ID,
			UserID:    m.From.ID,
			FirstName: m.From.FirstName,
			Username:  m.From.UserName,
			Text:      m.Text,
			MessageID: m.MessageID,
		}
		switch {
		case len(m.Photo) > 0:
			largest := m.Photo[len(m.Photo)-1]
			update.Attachment = &domain.Attachment{FileID: largest.FileID, Kind: domain.AttachmentPhoto}
			update.Text = m.Caption
		case m.Document != nil:
			update.Attachment = &domain.Attachment{FileID: m.Document.FileID, Kind: domain.AttachmentDocument}
			update.Text = m.Caption
		}
		return update, true
	default:
		return Update{}, false
	}
}

func (t *Telegram) SendText(_ context.Context, chatID int64, text string, markup *Markup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = replyMarkup(markup)
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

func (t *Telegram) SendAttachment(_ context.Context, chatID int64, attachment domain.Attachment, caption string, markup *Markup) (int, error) {
	var chattable tgbotapi.Chattable
	switch attachment.Kind {
	case domain.AttachmentPhoto:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(attachment.FileID))
		photo.Caption = caption
		photo.ReplyMarkup = replyMarkup(markup)
		chattable = photo
	default:
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileID(attachment.FileID))
		doc.Caption = caption
		doc.ReplyMarkup = replyMarkup(markup)
		chattable = doc
	}
	sent, err := t.api.Send(chattable)
	if err != nil {
		return 0, fmt.Errorf("send %s to %d: %w", attachment.Kind, chatID, err)
	}
	return sent.MessageID, nil
}

func (t *Telegram) EditText(_ context.Context, chatID int64, messageID int, text string, markup *Markup) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ReplyMarkup = inlineMarkup(markup)
	return t.request(edit, "edit text")
}

func (t *Telegram) EditCaption(_ context.Context, chatID int64, messageID int, caption string, markup *Markup) error {
	edit := tgbotapi.NewEditMessageCaption(chatID, messageID, caption)
	edit.ReplyMarkup = inlineMarkup(markup)
	return t.request(edit, "edit caption")
}

func (t *Telegram) Delete(_ context.Context, chatID int64, messageID int) error {
	return t.request(tgbotapi.NewDeleteMessage(chatID, messageID), "delete message")
}

func (t *Telegram) AnswerCallback(_ context.Context, callbackID, text string) error {
	return t.request(tgbotapi.NewCallback(callbackID, text), "answer callback")
}

func (t *Telegram) request(c tgbotapi.Chattable, op string) error {
	if _, err := t.api.Request(c); err != nil {
		// Rewriting a message with identical content is not a failure for us.
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func replyMarkup(m *Markup) any {
	if m == nil {
		return nil
	}
	if kb := inlineMarkup(m); kb != nil {
		return *kb
	}
	if len(m.Menu) > 0 {
		rows := make([][]tgbotapi.KeyboardButton, 0, len(m.Menu))
		for _, row := range m.Menu {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, text := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(text))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
		}
		kb := tgbotapi.NewReplyKeyboard(rows...)
		kb.ResizeKeyboard = true
		return kb
	}
	if m.RemoveMenu {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	return nil
}

func inlineMarkup(m *Markup) *tgbotapi.InlineKeyboardMarkup {
	if m == nil || len(m.Inline) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(m.Inline))
	for _, row := range m.Inline {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}
