// Package session holds per-participant dialogue state: which stage of a
// conversation a user is in and the transient fields collected so far.
package session

import (
	"context"
	"fmt"
	"strings"
)

// Key identifies one participant's dialogue with one bot.
type Key struct {
	BotID  int64
	ChatID int64
	UserID int64
}

// PrivateKey builds the key for a one-to-one chat, where chat id equals user id.
func PrivateKey(botID, userID int64) Key {
	return Key{BotID: botID, ChatID: userID, UserID: userID}
}

func (k Key) String() string {
	return fmt.Sprintf("session:%d:%d:%d", k.BotID, k.ChatID, k.UserID)
}

// Stage is a namespaced dialogue position, e.g. "intake:description".
type Stage string

const (
	StageNone               Stage = ""
	StageAdminClarification Stage = "clarification:admin_active_dialogue"
	StageUserClarification  Stage = "clarification:user_active_dialogue"
	StageWaitingForFeedback Stage = "completion:waiting_for_feedback"
	registrationStagePrefix       = "registration:"
	intakeStagePrefix             = "intake:"
)

// RegistrationStage returns the stage name of a registration step.
func RegistrationStage(step string) Stage {
	return Stage(registrationStagePrefix + step)
}

// IntakeStage returns the stage name of a request intake step.
func IntakeStage(step string) Stage {
	return Stage(intakeStagePrefix + step)
}

// Namespace returns the part before the colon.
func (s Stage) Namespace() string {
	ns, _, _ := strings.Cut(string(s), ":")
	return ns
}

// Step returns the part after the colon.
func (s Stage) Step() string {
	_, step, _ := strings.Cut(string(s), ":")
	return step
}

// IsClarification reports whether s is one of the two relay stages.
func (s Stage) IsClarification() bool {
	return s == StageAdminClarification || s == StageUserClarification
}

// Data carries the transient fields of a stage.
type Data struct {
	CounterpartID   int64             `cbor:"counterpart_id,omitempty"`
	RequestID       int64             `cbor:"request_id,omitempty"`
	PromptMessageID int               `cbor:"prompt_message_id,omitempty"`
	PromptText      string            `cbor:"prompt_text,omitempty"`
	PromptHasMedia  bool              `cbor:"prompt_has_media,omitempty"`
	Form            map[string]string `cbor:"form,omitempty"`
}

// State is what the store keeps per key.
type State struct {
	Stage Stage `cbor:"stage"`
	Data  Data  `cbor:"data"`
}

// Empty reports whether no dialogue is in progress.
func (s State) Empty() bool {
	return s.Stage == StageNone
}

// Field returns a form value.
func (s State) Field(name string) string {
	return s.Data.Form[name]
}

// WithField returns a copy of s with a form value set.
func (s State) WithField(name, value string) State {
	form := make(map[string]string, len(s.Data.Form)+1)
	for k, v := range s.Data.Form {
		form[k] = v
	}
	form[name] = value
	s.Data.Form = form
	return s
}

// Store persists dialogue state. Get returns a zero State when nothing is stored.
type Store interface {
	Get(ctx context.Context, key Key) (State, error)
	Set(ctx context.Context, key Key, state State) error
	Clear(ctx context.Context, key Key) error
}
