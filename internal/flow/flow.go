// Package flow runs scripted multi-step dialogues. A Flow is a list of Step
// descriptors; the Runner keeps the current step and the answers collected so far
// in the participant's session.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/action"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/session"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/transport"
	apperrors "github.com/lipetsk-helpdesk/helpdesk-bot/pkg/util/errorutil"
)

// Form holds the answers collected by a flow, keyed by step name.
type Form map[string]string

// InputKind says what a step accepts.
type InputKind int

const (
	InputText InputKind = iota
	InputChoice
	InputAttachment
)

// SkipValue is the choice value of the skip button on attachment steps.
const SkipValue = "skip"

// Choice is one option of a choice step.
type Choice struct {
	Label string
	Value string
}

// Step describes one question.
type Step struct {
	Name   string
	Prompt func(Form) string
	Input  InputKind
	// Choices lists the options of a choice step.
	Choices func(ctx context.Context, form Form) ([]Choice, error)
	// Validate checks a text answer. It may look at earlier answers.
	Validate func(value string, form Form) error
	// When skips the step unless it returns true. Nil means always.
	When func(Form) bool
	// Retry is shown when the input kind does not match.
	Retry string
}

// Text returns a constant prompt.
func Text(s string) func(Form) string {
	return func(Form) string { return s }
}

// Flow is a named dialogue.
type Flow struct {
	Name  string
	Stage func(step string) session.Stage
	Steps []Step
	// Complete receives the finished form after the session is cleared.
	Complete func(ctx context.Context, userID int64, form Form) error
}

func (f *Flow) step(name string) (int, *Step) {
	for i := range f.Steps {
		if f.Steps[i].Name == name {
			return i, &f.Steps[i]
		}
	}
	return -1, nil
}

// Owns reports whether stage belongs to this flow.
func (f *Flow) Owns(stage session.Stage) bool {
	return stage != session.StageNone && f.Stage(stage.Step()) == stage
}

// Input is one inbound answer.
type Input struct {
	Text       string
	Choice     string
	Attachment *domain.Attachment
	// MessageID is the prompt whose button was pressed, if any.
	MessageID int
}

// ErrNotActive is returned by Handle when the participant is not in the flow.
var ErrNotActive = errors.New("flow: not active")

// Runner drives flows over a session store.
type Runner struct {
	sessions session.Store
	notifier transport.Notifier
	botID    int64
	logger   *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(sessions session.Store, notifier transport.Notifier, botID int64, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{sessions: sessions, notifier: notifier, botID: botID, logger: logger}
}

// Start begins f for userID with seed answers and asks the first question.
func (r *Runner) Start(ctx context.Context, f *Flow, userID int64, seed Form) error {
	form := Form{}
	for k, v := range seed {
		form[k] = v
	}
	return r.advance(ctx, f, userID, form, -1)
}

// Handle applies in to the participant's current step. It returns ErrNotActive
// when the session is not in f.
func (r *Runner) Handle(ctx context.Context, f *Flow, userID int64, in Input) error {
	key := session.PrivateKey(r.botID, userID)
	state, err := r.sessions.Get(ctx, key)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if !f.Owns(state.Stage) {
		return ErrNotActive
	}
	idx, step := f.step(state.Stage.Step())
	if step == nil {
		if err := r.sessions.Clear(ctx, key); err != nil {
			r.logger.Warn("clear stale flow session", zap.String("stage", string(state.Stage)), zap.Error(err))
		}
		return apperrors.NewPreconditionFailed("Диалог устарел. Пожалуйста, начните заново с команды /start.", nil)
	}

	form := make(Form, len(state.Data.Form)+1)
	for k, v := range state.Data.Form {
		form[k] = v
	}
	value, label, err := r.accept(ctx, step, form, in)
	if err != nil {
		return err
	}
	form[step.Name] = value
	if in.Attachment != nil && step.Input == InputAttachment {
		form[step.Name+"_kind"] = string(in.Attachment.Kind)
	}
	if label != "" && in.MessageID != 0 {
		if err := r.notifier.EditText(ctx, userID, in.MessageID, "Вы выбрали: "+label, nil); err != nil {
			r.logger.Debug("edit choice prompt", zap.Error(err))
		}
	}
	return r.advance(ctx, f, userID, form, idx)
}

// accept validates in against step and returns the stored value and, for
// choices, the chosen label.
func (r *Runner) accept(ctx context.Context, step *Step, form Form, in Input) (string, string, error) {
	switch step.Input {
	case InputChoice:
		choices, err := step.Choices(ctx, form)
		if err != nil {
			return "", "", apperrors.NewInternalError(fmt.Errorf("load choices for %s: %w", step.Name, err))
		}
		for _, c := range choices {
			if (in.Choice != "" && c.Value == in.Choice) || (in.Choice == "" && in.Text != "" && c.Label == in.Text) {
				return c.Value, c.Label, nil
			}
		}
		return "", "", apperrors.NewValidationError(retryText(step, "Пожалуйста, выберите вариант из списка."), nil)
	case InputAttachment:
		if in.Attachment != nil {
			return in.Attachment.FileID, "", nil
		}
		if in.Choice == SkipValue {
			return "", "Пропустить", nil
		}
		return "", "", apperrors.NewValidationError(retryText(step, "Пожалуйста, отправьте фото или нажмите кнопку «Пропустить»."), nil)
	default:
		text := strings.TrimSpace(in.Text)
		if text == "" || in.Choice != "" {
			return "", "", apperrors.NewValidationError(retryText(step, "Пожалуйста, ответьте текстом."), nil)
		}
		if step.Validate != nil {
			if err := step.Validate(text, form); err != nil {
				return "", "", err
			}
		}
		return text, "", nil
	}
}

func retryText(step *Step, fallback string) string {
	if step.Retry != "" {
		return step.Retry
	}
	return fallback
}

// advance moves past step index from to the next step whose When holds, or
// completes the flow.
func (r *Runner) advance(ctx context.Context, f *Flow, userID int64, form Form, from int) error {
	key := session.PrivateKey(r.botID, userID)
	for i := from + 1; i < len(f.Steps); i++ {
		next := &f.Steps[i]
		if next.When != nil && !next.When(form) {
			continue
		}
		markup, err := r.markup(ctx, next, form)
		if err != nil {
			return err
		}
		state := session.State{Stage: f.Stage(next.Name), Data: session.Data{Form: form}}
		if err := r.sessions.Set(ctx, key, state); err != nil {
			return apperrors.NewInternalError(fmt.Errorf("save %s session: %w", f.Name, err))
		}
		if _, err := r.notifier.SendText(ctx, userID, next.Prompt(form), markup); err != nil {
			r.logger.Warn("send flow prompt", zap.String("flow", f.Name), zap.String("step", next.Name), zap.Error(err))
		}
		return nil
	}

	if err := r.sessions.Clear(ctx, key); err != nil {
		return apperrors.NewInternalError(fmt.Errorf("clear %s session: %w", f.Name, err))
	}
	r.logger.Info("flow completed", zap.String("flow", f.Name), zap.Int64("user_id", userID))
	return f.Complete(ctx, userID, form)
}

func (r *Runner) markup(ctx context.Context, step *Step, form Form) (*transport.Markup, error) {
	switch step.Input {
	case InputChoice:
		choices, err := step.Choices(ctx, form)
		if err != nil {
			return nil, apperrors.NewInternalError(fmt.Errorf("load choices for %s: %w", step.Name, err))
		}
		rows := make([][]transport.Button, 0, len(choices))
		for _, c := range choices {
			rows = append(rows, transport.InlineRow(action.ChoiceButton(c.Label, c.Value)))
		}
		return transport.InlineMarkup(rows...), nil
	case InputAttachment:
		return transport.InlineMarkup(transport.InlineRow(action.ChoiceButton("Пропустить", SkipValue))), nil
	default:
		return &transport.Markup{RemoveMenu: true}, nil
	}
}
