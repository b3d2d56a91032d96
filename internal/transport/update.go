package transport

import "github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"

// Update is one inbound event: a text or attachment message, or a button press.
type Update struct {
	ID        int
	ChatID    int64
	UserID    int64
	FirstName string
	Username  string

	Text       string
	Attachment *domain.Attachment

	CallbackID   string
	CallbackData string

	// MessageID is the id of the incoming message, or of the message carrying
	// the pressed button.
	MessageID int
	// MessageText is the text or caption of the message carrying the pressed button.
	MessageText     string
	MessageHasMedia bool
}

// IsCallback reports whether the update is a button press.
func (u Update) IsCallback() bool {
	return u.CallbackID != ""
}
