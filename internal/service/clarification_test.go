package service

import (
	"strings"
	"testing"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/action"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/session"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/transport/transporttest"
	apperrors "github.com/lipetsk-helpdesk/helpdesk-bot/pkg/util/errorutil"
)

func startAdminClarification(t *testing.T, f *fixture, req *domain.Request) {
	t.Helper()
	if _, err := f.lifecycle.StartClarification(f.ctx, Actor{ID: itAdminX, Side: SideAdmin}, req.ID, Origin{}); err != nil {
		t.Fatalf("start clarification: %v", err)
	}
	f.rec.Reset()
}

func TestOpenBindsBothSessions(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "Не запускается компьютер")
	if _, err := f.lifecycle.StartClarification(f.ctx, Actor{ID: itAdminX, Side: SideAdmin}, req.ID, Origin{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	admin := f.stage(t, itAdminX)
	if admin.Stage != session.StageAdminClarification || admin.Data.CounterpartID != creatorID || admin.Data.RequestID != req.ID {
		t.Fatalf("admin session %+v", admin)
	}
	user := f.stage(t, creatorID)
	if user.Stage != session.StageUserClarification || user.Data.CounterpartID != itAdminX || user.Data.RequestID != req.ID {
		t.Fatalf("user session %+v", user)
	}

	notice, ok := f.rec.LastTo(creatorID)
	if !ok || !strings.Contains(notice.Text, "Администратор начал диалог") {
		t.Fatalf("creator not told: %+v", notice)
	}
	if !transporttest.HasButton(notice.Markup, action.Encode(action.UserClarifyEnd, req.ID)) {
		t.Fatalf("creator should get an end button")
	}
}

func TestRelayForwardsBothWays(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "Не работает сканер")
	startAdminClarification(t, f, req)

	if err := f.clarify.Relay(f.ctx, session.PrivateKey(testBotID, itAdminX), Message{Text: "Какая модель?"}); err != nil {
		t.Fatalf("relay from admin: %v", err)
	}
	got, ok := f.rec.LastTo(creatorID)
	if !ok || !strings.HasPrefix(got.Text, "💬 От администратора") || !strings.HasSuffix(got.Text, "Какая модель?") {
		t.Fatalf("unexpected relay to creator: %+v", got)
	}
	if !strings.Contains(got.Text, "ID:") {
		t.Fatalf("relay should reference the request: %q", got.Text)
	}

	photo := &domain.Attachment{FileID: "AgAD", Kind: domain.AttachmentPhoto}
	if err := f.clarify.Relay(f.ctx, session.PrivateKey(testBotID, creatorID), Message{Attachment: photo}); err != nil {
		t.Fatalf("relay from creator: %v", err)
	}
	got, ok = f.rec.LastTo(itAdminX)
	if !ok || got.Attachment == nil || got.Attachment.FileID != "AgAD" {
		t.Fatalf("photo not relayed: %+v", got)
	}
	if !strings.Contains(got.Text, "От пользователя Иванов Иван") {
		t.Fatalf("caption should name the creator: %q", got.Text)
	}
}

func TestRelayRejectsEmptyMessage(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "Пустое")
	startAdminClarification(t, f, req)

	err := f.clarify.Relay(f.ctx, session.PrivateKey(testBotID, itAdminX), Message{})
	assertCode(t, err, apperrors.CodeValidationFailed)
	if f.stage(t, itAdminX).Empty() {
		t.Fatalf("validation failure must keep the dialogue")
	}
}

func TestRelayFailsSoftWithoutCounterpart(t *testing.T) {
	f := newFixture(t)
	key := session.PrivateKey(testBotID, creatorID)
	broken := session.State{Stage: session.StageUserClarification, Data: session.Data{RequestID: 1}}
	if err := f.sessions.Set(f.ctx, key, broken); err != nil {
		t.Fatalf("set: %v", err)
	}

	err := f.clarify.Relay(f.ctx, key, Message{Text: "алло"})
	assertCode(t, err, apperrors.CodePreconditionFailed)
	if !f.stage(t, creatorID).Empty() {
		t.Fatalf("broken session should be cleared")
	}
	if len(f.rec.Sent) != 0 {
		t.Fatalf("nothing should be relayed: %+v", f.rec.Sent)
	}
}

func TestRelayClosesSessionWhenRequestMovedOn(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "Уже решено")
	startAdminClarification(t, f, req)

	stored := f.reload(t, req.ID)
	stored.Status = domain.StatusReceived
	stored.AssignedAdminID = nil
	if err := f.store.Requests.Update(f.ctx, stored); err != nil {
		t.Fatalf("update: %v", err)
	}

	err := f.clarify.Relay(f.ctx, session.PrivateKey(testBotID, creatorID), Message{Text: "ещё вопрос"})
	assertCode(t, err, apperrors.CodePreconditionFailed)
	if !f.stage(t, creatorID).Empty() {
		t.Fatalf("session should close once the request left clarification")
	}
}

func TestRelayReportsDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "Заблокировал бота")
	startAdminClarification(t, f, req)
	f.rec.FailSendTo[creatorID] = true

	err := f.clarify.Relay(f.ctx, session.PrivateKey(testBotID, itAdminX), Message{Text: "Вы тут?"})
	assertCode(t, err, apperrors.CodeDeliveryFailed)
	if !strings.Contains(err.Error(), "пользователю") {
		t.Fatalf("unexpected message: %v", err)
	}
	if f.metrics.DeliveryFailures("relay") != 1 {
		t.Fatalf("delivery failure not counted")
	}
}

func TestEndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "Дважды")
	startAdminClarification(t, f, req)
	current := f.reload(t, req.ID)

	cleared, err := f.clarify.End(f.ctx, SideAdmin, itAdminX, current)
	if err != nil || !cleared {
		t.Fatalf("first end: cleared=%v err=%v", cleared, err)
	}
	cleared, err = f.clarify.End(f.ctx, SideAdmin, itAdminX, current)
	if err != nil || cleared {
		t.Fatalf("second end: cleared=%v err=%v", cleared, err)
	}
	if len(sentContaining(f.rec, creatorID, "завершен администратором")) != 1 {
		t.Fatalf("creator should be told exactly once")
	}
}
