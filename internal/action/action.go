// Package action encodes the button payloads exchanged with the chat platform.
// A payload is "<kind>:<request id>" for request actions and "flow:<value>" for
// dialogue choices.
package action

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/transport"
)

// Kind names a button action.
type Kind string

const (
	Accept           Kind = "accept"
	Decline          Kind = "decline"
	ClarifyStart     Kind = "clarify_start"
	ClarifyEnd       Kind = "clarify_end"
	Done             Kind = "done"
	FeedbackSkip     Kind = "feedback_skip"
	FeedbackCancel   Kind = "feedback_cancel"
	UserDone         Kind = "user_done"
	UserClarifyStart Kind = "user_clarify_start"
	UserClarifyEnd   Kind = "user_clarify_end"
	Flow             Kind = "flow"
)

var requestKinds = map[Kind]struct{}{
	Accept: {}, Decline: {}, ClarifyStart: {}, ClarifyEnd: {}, Done: {},
	FeedbackSkip: {}, FeedbackCancel: {}, UserDone: {}, UserClarifyStart: {}, UserClarifyEnd: {},
}

// Payload is a decoded button press.
type Payload struct {
	Kind      Kind
	RequestID int64
	Value     string
}

// Encode renders a request action payload.
func Encode(kind Kind, requestID int64) string {
	return string(kind) + ":" + strconv.FormatInt(requestID, 10)
}

// FlowChoice renders a dialogue choice payload.
func FlowChoice(value string) string {
	return string(Flow) + ":" + value
}

// Button builds an inline button for a request action.
func Button(text string, kind Kind, requestID int64) transport.Button {
	return transport.Button{Text: text, Data: Encode(kind, requestID)}
}

// ChoiceButton builds an inline button for a dialogue choice.
func ChoiceButton(text, value string) transport.Button {
	return transport.Button{Text: text, Data: FlowChoice(value)}
}

// Parse decodes a payload.
func Parse(data string) (Payload, error) {
	kind, rest, ok := strings.Cut(data, ":")
	if !ok {
		return Payload{}, fmt.Errorf("action: malformed payload %q", data)
	}
	if Kind(kind) == Flow {
		return Payload{Kind: Flow, Value: rest}, nil
	}
	if _, known := requestKinds[Kind(kind)]; !known {
		return Payload{}, fmt.Errorf("action: unknown kind %q", kind)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return Payload{}, fmt.Errorf("action: bad request id in %q", data)
	}
	return Payload{Kind: Kind(kind), RequestID: id}, nil
}
