package action

import "testing"

func TestParseRequestActions(t *testing.T) {
	kinds := []Kind{Accept, Decline, ClarifyStart, ClarifyEnd, Done, FeedbackSkip, FeedbackCancel, UserDone, UserClarifyStart, UserClarifyEnd}
	for _, kind := range kinds {
		got, err := Parse(Encode(kind, 42))
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if got.Kind != kind || got.RequestID != 42 {
			t.Fatalf("%s decoded as %+v", kind, got)
		}
	}
}

func TestParseFlowChoiceKeepsColons(t *testing.T) {
	got, err := Parse(FlowChoice("org:1"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Kind != Flow || got.Value != "org:1" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, data := range []string{"", "accept", "accept:x", "accept:-1", "explode:1"} {
		if _, err := Parse(data); err == nil {
			t.Fatalf("%q should not parse", data)
		}
	}
}
