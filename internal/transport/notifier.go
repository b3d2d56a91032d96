// Package transport abstracts the chat platform: outbound messages and the
// inbound update stream.
package transport

import (
	"context"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
)

// Button is an inline action attached to a message.
type Button struct {
	Text string
	Data string
}

// Markup describes the keyboard sent along with a message. Inline buttons and a
// reply menu are mutually exclusive on the wire; Inline wins when both are set.
type Markup struct {
	Inline     [][]Button
	Menu       [][]string
	RemoveMenu bool
}

// InlineRow is a convenience for one row of inline buttons.
func InlineRow(buttons ...Button) []Button {
	return buttons
}

// InlineMarkup builds a markup from inline rows; no rows yields nil.
func InlineMarkup(rows ...[]Button) *Markup {
	var kept [][]Button
	for _, row := range rows {
		if len(row) > 0 {
			kept = append(kept, row)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &Markup{Inline: kept}
}

// Notifier sends and edits chat messages. Methods return the platform message id
// where one is produced.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string, markup *Markup) (int, error)
	SendAttachment(ctx context.Context, chatID int64, attachment domain.Attachment, caption string, markup *Markup) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, markup *Markup) error
	EditCaption(ctx context.Context, chatID int64, messageID int, caption string, markup *Markup) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
