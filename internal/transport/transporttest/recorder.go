// Package transporttest provides a recording Notifier for tests.
package transporttest

import (
	"context"
	"errors"
	"sync"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/transport"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("transporttest: injected failure")

// Sent is a recorded outbound message.
type Sent struct {
	ChatID     int64
	MessageID  int
	Text       string
	Attachment *domain.Attachment
	Markup     *transport.Markup
}

// Edit is a recorded text or caption rewrite.
type Edit struct {
	ChatID    int64
	MessageID int
	Text      string
	Caption   bool
	Markup    *transport.Markup
}

// Ref points at a chat message.
type Ref struct {
	ChatID    int64
	MessageID int
}

// Recorder implements transport.Notifier in memory.
type Recorder struct {
	mu       sync.Mutex
	nextID   int
	Sent     []Sent
	Edits    []Edit
	Deleted  []Ref
	Answered []string

	// FailSendTo makes sends to the listed chats fail.
	FailSendTo map[int64]bool
	// FailDelete makes every delete fail.
	FailDelete bool
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{nextID: 100, FailSendTo: map[int64]bool{}}
}

func (r *Recorder) SendText(_ context.Context, chatID int64, text string, markup *transport.Markup) (int, error) {
	return r.record(chatID, text, nil, markup)
}

func (r *Recorder) SendAttachment(_ context.Context, chatID int64, attachment domain.Attachment, caption string, markup *transport.Markup) (int, error) {
	a := attachment
	return r.record(chatID, caption, &a, markup)
}

func (r *Recorder) record(chatID int64, text string, attachment *domain.Attachment, markup *transport.Markup) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSendTo[chatID] {
		return 0, ErrInjected
	}
	r.nextID++
	r.Sent = append(r.Sent, Sent{ChatID: chatID, MessageID: r.nextID, Text: text, Attachment: attachment, Markup: markup})
	return r.nextID, nil
}

func (r *Recorder) EditText(_ context.Context, chatID int64, messageID int, text string, markup *transport.Markup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Edits = append(r.Edits, Edit{ChatID: chatID, MessageID: messageID, Text: text, Markup: markup})
	return nil
}

func (r *Recorder) EditCaption(_ context.Context, chatID int64, messageID int, caption string, markup *transport.Markup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Edits = append(r.Edits, Edit{ChatID: chatID, MessageID: messageID, Text: caption, Caption: true, Markup: markup})
	return nil
}

func (r *Recorder) Delete(_ context.Context, chatID int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailDelete {
		return ErrInjected
	}
	r.Deleted = append(r.Deleted, Ref{ChatID: chatID, MessageID: messageID})
	return nil
}

func (r *Recorder) AnswerCallback(_ context.Context, _ string, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Answered = append(r.Answered, text)
	return nil
}

// SentTo returns every message sent to chatID in order.
func (r *Recorder) SentTo(chatID int64) []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sent
	for _, s := range r.Sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// LastTo returns the most recent message sent to chatID.
func (r *Recorder) LastTo(chatID int64) (Sent, bool) {
	sent := r.SentTo(chatID)
	if len(sent) == 0 {
		return Sent{}, false
	}
	return sent[len(sent)-1], true
}

// EditsOf returns the edits applied to one message.
func (r *Recorder) EditsOf(chatID int64, messageID int) []Edit {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Edit
	for _, e := range r.Edits {
		if e.ChatID == chatID && e.MessageID == messageID {
			out = append(out, e)
		}
	}
	return out
}

// WasDeleted reports whether the message was deleted.
func (r *Recorder) WasDeleted(chatID int64, messageID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.Deleted {
		if d.ChatID == chatID && d.MessageID == messageID {
			return true
		}
	}
	return false
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = nil
	r.Edits = nil
	r.Deleted = nil
	r.Answered = nil
}

// HasButton reports whether markup carries a button with the given payload.
func HasButton(markup *transport.Markup, data string) bool {
	if markup == nil {
		return false
	}
	for _, row := range markup.Inline {
		for _, b := range row {
			if b.Data == data {
				return true
			}
		}
	}
	return false
}

var _ transport.Notifier = (*Recorder)(nil)
