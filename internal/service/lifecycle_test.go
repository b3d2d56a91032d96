package service

import (
	"strings"
	"testing"
	"time"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/action"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/session"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/transport/transporttest"
	apperrors "github.com/lipetsk-helpdesk/helpdesk-bot/pkg/util/errorutil"
)

func TestAcceptRetractsOtherAdminCards(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "Не печатает принтер в 305")
	if len(req.AdminMessages) != 2 {
		t.Fatalf("expected 2 notified admins, got %v", req.AdminMessages)
	}
	msgX, msgY := req.AdminMessages[itAdminX], req.AdminMessages[itAdminY]

	req = f.accept(t, req, itAdminX)

	if req.Status != domain.StatusAccepted || !req.IsAssignedTo(itAdminX) {
		t.Fatalf("unexpected state %s assigned=%v", req.Status, req.AssignedAdminID)
	}
	if len(req.AdminMessages) != 1 || req.AdminMessages[itAdminX] != msgX {
		t.Fatalf("map should hold only the claiming admin: %v", req.AdminMessages)
	}
	if req.AdminMessageID == nil || *req.AdminMessageID != msgX {
		t.Fatalf("canonical message id = %v, want %d", req.AdminMessageID, msgX)
	}
	if !f.rec.WasDeleted(itAdminY, msgY) {
		t.Fatalf("other admin's card was not retracted")
	}
	if f.rec.WasDeleted(itAdminX, msgX) {
		t.Fatalf("claiming admin's card must stay")
	}

	edit := lastEdit(t, f.rec, itAdminX, msgX)
	if !strings.Contains(edit.Text, domain.StatusAccepted.Label()) {
		t.Fatalf("card not rewritten to accepted: %q", edit.Text)
	}
	if !transporttest.HasButton(edit.Markup, action.Encode(action.Done, req.ID)) {
		t.Fatalf("accepted card should offer done: %+v", edit.Markup)
	}

	notices := sentContaining(f.rec, creatorID, "принята к исполнению")
	if len(notices) != 1 || !strings.Contains(notices[0].Text, "IT Admin 11") {
		t.Fatalf("creator not told about executor: %+v", f.rec.SentTo(creatorID))
	}
	assertAssigneeInvariant(t, req)
}

func TestAcceptRaceCommitsOnce(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "Нет интернета")
	racing := &staleRequests{RequestRepository: f.store.Requests}
	f.store.Requests = racing

	snapshot := f.reload(t, req.ID)
	f.accept(t, req, itAdminX)

	racing.stale = snapshot
	_, err := f.lifecycle.Accept(f.ctx, itAdminY, req.ID, Origin{MessageID: req.AdminMessages[itAdminY]})
	assertCode(t, err, apperrors.CodePreconditionFailed)
	if !strings.Contains(apperrors.ToDomainError(err).Message, domain.StatusAccepted.Label()) {
		t.Fatalf("loser should see the current status: %v", err)
	}

	stored := f.reload(t, req.ID)
	if !stored.IsAssignedTo(itAdminX) {
		t.Fatalf("winner overwritten: assigned=%v", stored.AssignedAdminID)
	}
	if got := f.metrics.Transitions(string(domain.StatusReceived), string(domain.StatusAccepted)); got != 1 {
		t.Fatalf("expected one committed accept, got %d", got)
	}
	if n := len(sentContaining(f.rec, creatorID, "принята к исполнению")); n != 1 {
		t.Fatalf("creator notified %d times", n)
	}
	if f.rec.WasDeleted(itAdminX, req.AdminMessages[itAdminX]) {
		t.Fatalf("losing accept must not retract the winner's card")
	}
}

func TestAcceptRejectsNonAdmin(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "Сломался стул")
	_, err := f.lifecycle.Accept(f.ctx, otherUserID, req.ID, Origin{})
	assertCode(t, err, apperrors.CodeForbidden)
	if got := f.reload(t, req.ID); got.Status != domain.StatusReceived {
		t.Fatalf("status changed to %s", got.Status)
	}
}

func TestAcceptMissingRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.lifecycle.Accept(f.ctx, itAdminX, 999, Origin{})
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestAssigneeInvariantAcrossLifecycle(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "Настроить почту")
	assertAssigneeInvariant(t, req)

	admin := Actor{ID: itAdminX, Side: SideAdmin}
	steps := []func() error{
		func() error { _, err := f.lifecycle.StartClarification(f.ctx, admin, req.ID, Origin{}); return err },
		func() error { _, err := f.lifecycle.EndClarification(f.ctx, admin, req.ID); return err },
		func() error { _, err := f.lifecycle.Accept(f.ctx, itAdminX, req.ID, Origin{}); return err },
		func() error { _, err := f.lifecycle.StartClarification(f.ctx, admin, req.ID, Origin{}); return err },
		func() error { _, err := f.lifecycle.EndClarification(f.ctx, admin, req.ID); return err },
		func() error { return f.lifecycle.BeginCompletion(f.ctx, itAdminX, req.ID, Origin{}) },
		func() error { _, err := f.lifecycle.Complete(f.ctx, itAdminX, 0, nil); return err },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		assertAssigneeInvariant(t, f.reload(t, req.ID))
	}

	done := f.reload(t, req.ID)
	if done.Status != domain.StatusDone || done.CompletedByID == nil || *done.CompletedByID != itAdminX {
		t.Fatalf("unexpected final state %s completed_by=%v", done.Status, done.CompletedByID)
	}
}

func TestClarificationRestoresPreviousStatus(t *testing.T) {
	tests := []struct {
		name     string
		accepted bool
		want     domain.Status
	}{
		{name: "received", want: domain.StatusReceived},
		{name: "accepted", accepted: true, want: domain.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.submit(t, "Заменить картридж")
			if tt.accepted {
				req = f.accept(t, req, itAdminX)
			}
			admin := Actor{ID: itAdminX, Side: SideAdmin}

			started, err := f.lifecycle.StartClarification(f.ctx, admin, req.ID, Origin{MessageID: req.AdminMessages[itAdminX]})
			if err != nil {
				t.Fatalf("start: %v", err)
			}
			if started.Status != domain.StatusClarifying || started.ClarifyReturnStatus != tt.want {
				t.Fatalf("start left %s return=%s", started.Status, started.ClarifyReturnStatus)
			}

			ended, err := f.lifecycle.EndClarification(f.ctx, admin, req.ID)
			if err != nil {
				t.Fatalf("end: %v", err)
			}
			if ended.Status != tt.want {
				t.Fatalf("status after end = %s, want %s", ended.Status, tt.want)
			}
			assertAssigneeInvariant(t, f.reload(t, req.ID))
			if !f.stage(t, itAdminX).Empty() || !f.stage(t, creatorID).Empty() {
				t.Fatalf("sessions not cleared")
			}
		})
	}
}

func TestEndClarificationOffersDecline(t *testing.T) {
	f := newFixture(t)
	req := f.accept(t, f.submit(t, "Не работает VPN"), itAdminX)
	msgX := req.AdminMessages[itAdminX]
	admin := Actor{ID: itAdminX, Side: SideAdmin}

	if _, err := f.lifecycle.StartClarification(f.ctx, admin, req.ID, Origin{MessageID: msgX}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.lifecycle.EndClarification(f.ctx, Actor{ID: creatorID, Side: SideUser}, req.ID); err != nil {
		t.Fatalf("end by creator: %v", err)
	}
	edit := lastEdit(t, f.rec, itAdminX, msgX)
	if !transporttest.HasButton(edit.Markup, action.Encode(action.Decline, req.ID)) {
		t.Fatalf("card after clarification should offer decline: %+v", edit.Markup)
	}
	if len(sentContaining(f.rec, itAdminX, "завершен пользователем")) != 1 {
		t.Fatalf("admin not told the creator ended the dialogue")
	}
}

func TestEndClarificationKeepsUnrelatedUserSession(t *testing.T) {
	f := newFixture(t)
	first := f.submit(t, "Первая заявка")
	second := f.submit(t, "Вторая заявка")
	admin := Actor{ID: itAdminX, Side: SideAdmin}

	if _, err := f.lifecycle.StartClarification(f.ctx, admin, first.ID, Origin{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	// The creator moved on to a dialogue about another request.
	unrelated := session.State{
		Stage: session.StageUserClarification,
		Data:  session.Data{CounterpartID: itAdminY, RequestID: second.ID},
	}
	if err := f.sessions.Set(f.ctx, session.PrivateKey(testBotID, creatorID), unrelated); err != nil {
		t.Fatalf("set: %v", err)
	}

	if _, err := f.lifecycle.EndClarification(f.ctx, admin, first.ID); err != nil {
		t.Fatalf("end: %v", err)
	}

	got := f.stage(t, creatorID)
	if got.Stage != session.StageUserClarification || got.Data.RequestID != second.ID {
		t.Fatalf("unrelated session was touched: %+v", got)
	}
	if !f.stage(t, itAdminX).Empty() {
		t.Fatalf("admin session should be cleared")
	}
	if len(sentContaining(f.rec, creatorID, "завершен администратором")) != 0 {
		t.Fatalf("creator should not be told about a dialogue they already left")
	}
}

func TestUserClarificationRejectedBeforeAccept(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "Не открывается СУФД")

	_, err := f.lifecycle.StartClarification(f.ctx, Actor{ID: creatorID, Side: SideUser}, req.ID, Origin{})
	assertCode(t, err, apperrors.CodePreconditionFailed)
	if !strings.Contains(err.Error(), "еще не принята") {
		t.Fatalf("unexpected message: %v", err)
	}

	stored := f.reload(t, req.ID)
	if stored.Status != domain.StatusReceived || stored.AssignedAdminID != nil {
		t.Fatalf("state changed: %s %v", stored.Status, stored.AssignedAdminID)
	}
	if !f.stage(t, creatorID).Empty() {
		t.Fatalf("no session should be opened")
	}
}

func TestClarificationByAnotherAdminRejected(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "Синий экран")
	if _, err := f.lifecycle.StartClarification(f.ctx, Actor{ID: itAdminX, Side: SideAdmin}, req.ID, Origin{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := f.lifecycle.StartClarification(f.ctx, Actor{ID: itAdminY, Side: SideAdmin}, req.ID, Origin{})
	assertCode(t, err, apperrors.CodePreconditionFailed)
	if !f.reload(t, req.ID).IsAssignedTo(itAdminX) {
		t.Fatalf("assignee changed")
	}
}

func TestCompleteForwardsFeedback(t *testing.T) {
	f := newFixture(t)
	req := f.accept(t, f.submit(t, "Принтер зажевал бумагу"), itAdminX)
	msgX := req.AdminMessages[itAdminX]

	if err := f.lifecycle.BeginCompletion(f.ctx, itAdminX, req.ID, Origin{MessageID: msgX}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if f.stage(t, itAdminX).Stage != session.StageWaitingForFeedback {
		t.Fatalf("admin not waiting for feedback")
	}

	done, err := f.lifecycle.Complete(f.ctx, itAdminX, 0, &Feedback{Text: "Fixed the printer"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	forwarded := sentContaining(f.rec, creatorID, "Fixed the printer")
	if len(forwarded) != 1 || !strings.Contains(forwarded[0].Text, "IT Admin 11") {
		t.Fatalf("feedback not forwarded with admin name: %+v", f.rec.SentTo(creatorID))
	}
	if done.CompletedAt == nil || !done.CompletedAt.Equal(f.clock) {
		t.Fatalf("completed_at = %v", done.CompletedAt)
	}
	edit := lastEdit(t, f.rec, itAdminX, msgX)
	if !strings.Contains(edit.Text, domain.StatusDone.Label()) || edit.Markup != nil {
		t.Fatalf("card not rewritten to done: %q %+v", edit.Text, edit.Markup)
	}
	if !f.stage(t, itAdminX).Empty() {
		t.Fatalf("completion session not cleared")
	}
	assertAssigneeInvariant(t, f.reload(t, req.ID))
}

func TestCompleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	req := f.accept(t, f.submit(t, "Переполнен ящик"), itAdminX)
	if err := f.lifecycle.BeginCompletion(f.ctx, itAdminX, req.ID, Origin{}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := f.lifecycle.Complete(f.ctx, itAdminX, 0, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	completedAt := *f.reload(t, req.ID).CompletedAt

	f.clock = f.clock.Add(time.Hour)
	assertCode(t, f.lifecycle.BeginCompletion(f.ctx, itAdminX, req.ID, Origin{}), apperrors.CodePreconditionFailed)

	// A stale completion prompt pressed again.
	stale := session.State{Stage: session.StageWaitingForFeedback, Data: session.Data{RequestID: req.ID}}
	if err := f.sessions.Set(f.ctx, session.PrivateKey(testBotID, itAdminX), stale); err != nil {
		t.Fatalf("set: %v", err)
	}
	_, err := f.lifecycle.Complete(f.ctx, itAdminX, 0, nil)
	assertCode(t, err, apperrors.CodePreconditionFailed)

	if got := f.reload(t, req.ID).CompletedAt; got == nil || !got.Equal(completedAt) {
		t.Fatalf("completed_at moved from %v to %v", completedAt, got)
	}
	if _, err := f.lifecycle.CompleteByCreator(f.ctx, creatorID, req.ID, Origin{}); !apperrors.HasCode(err, apperrors.CodePreconditionFailed) {
		t.Fatalf("creator completion of a done request: %v", err)
	}
}

func TestBeginCompletionRequiresExecutor(t *testing.T) {
	f := newFixture(t)
	req := f.accept(t, f.submit(t, "Мышь не работает"), itAdminX)
	assertCode(t, f.lifecycle.BeginCompletion(f.ctx, itAdminY, req.ID, Origin{}), apperrors.CodeForbidden)
}

func TestCompleteWithoutSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.lifecycle.Complete(f.ctx, itAdminX, 0, nil)
	assertCode(t, err, apperrors.CodePreconditionFailed)
}

func TestFeedbackButtonOfOlderPromptIsStale(t *testing.T) {
	f := newFixture(t)
	first := f.accept(t, f.submit(t, "Принтер"), itAdminX)
	second := f.accept(t, f.submit(t, "Сканер"), itAdminX)
	for _, id := range []int64{first.ID, second.ID} {
		if err := f.lifecycle.BeginCompletion(f.ctx, itAdminX, id, Origin{}); err != nil {
			t.Fatalf("begin %d: %v", id, err)
		}
	}

	_, err := f.lifecycle.Complete(f.ctx, itAdminX, first.ID, nil)
	assertCode(t, err, apperrors.CodePreconditionFailed)
	assertCode(t, f.lifecycle.CancelCompletion(f.ctx, itAdminX, first.ID), apperrors.CodePreconditionFailed)

	if f.reload(t, first.ID).Status != domain.StatusAccepted || f.reload(t, second.ID).Status != domain.StatusAccepted {
		t.Fatalf("stale button must not close any request")
	}
	if state := f.stage(t, itAdminX); state.Data.RequestID != second.ID {
		t.Fatalf("parked request changed: %+v", state)
	}

	if _, err := f.lifecycle.Complete(f.ctx, itAdminX, second.ID, nil); err != nil {
		t.Fatalf("complete parked request: %v", err)
	}
	if f.reload(t, second.ID).Status != domain.StatusDone {
		t.Fatalf("parked request should be done")
	}
}

func TestCancelCompletionClearsSession(t *testing.T) {
	f := newFixture(t)
	req := f.accept(t, f.submit(t, "Клавиатура"), itAdminX)
	if err := f.lifecycle.BeginCompletion(f.ctx, itAdminX, req.ID, Origin{}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := f.lifecycle.CancelCompletion(f.ctx, itAdminX, req.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !f.stage(t, itAdminX).Empty() {
		t.Fatalf("session survived cancel")
	}
	if got := f.reload(t, req.ID); got.Status != domain.StatusAccepted {
		t.Fatalf("status changed to %s", got.Status)
	}
}

func TestCompleteByCreatorNotifiesExecutor(t *testing.T) {
	f := newFixture(t)
	req := f.accept(t, f.submit(t, "Монитор мигает"), itAdminX)

	_, err := f.lifecycle.CompleteByCreator(f.ctx, otherUserID, req.ID, Origin{})
	assertCode(t, err, apperrors.CodeNotFound)

	done, err := f.lifecycle.CompleteByCreator(f.ctx, creatorID, req.ID, Origin{MessageID: 900, Text: "--- Заявка ---"})
	if err != nil {
		t.Fatalf("complete by creator: %v", err)
	}
	if done.Status != domain.StatusDone || done.CompletedByID == nil || *done.CompletedByID != itAdminX {
		t.Fatalf("unexpected state %s completed_by=%v", done.Status, done.CompletedByID)
	}
	if len(sentContaining(f.rec, itAdminX, "отметил заявку")) != 1 {
		t.Fatalf("executor not notified: %+v", f.rec.SentTo(itAdminX))
	}
	if edit := lastEdit(t, f.rec, creatorID, 900); !strings.HasSuffix(edit.Text, domain.StatusDone.Label()) {
		t.Fatalf("creator card not marked done: %q", edit.Text)
	}
}

func TestDeclineReturnsRequestToPool(t *testing.T) {
	f := newFixture(t)
	req := f.accept(t, f.submit(t, "Сбой после обновления"), itAdminX)
	msgX := req.AdminMessages[itAdminX]
	admin := Actor{ID: itAdminX, Side: SideAdmin}
	if _, err := f.lifecycle.StartClarification(f.ctx, admin, req.ID, Origin{MessageID: msgX}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.lifecycle.EndClarification(f.ctx, admin, req.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	before := len(f.rec.SentTo(creatorID))

	declined, err := f.lifecycle.Decline(f.ctx, itAdminX, req.ID, Origin{MessageID: msgX})
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if declined.Status != domain.StatusReceived || declined.AssignedAdminID != nil {
		t.Fatalf("unexpected state %s %v", declined.Status, declined.AssignedAdminID)
	}
	if _, ok := f.reload(t, req.ID).AdminMessages[itAdminX]; ok {
		t.Fatalf("declining admin still in fan-out map")
	}
	if !f.rec.WasDeleted(itAdminX, msgX) {
		t.Fatalf("declining admin's card not deleted")
	}
	if len(f.rec.SentTo(creatorID)) != before {
		t.Fatalf("creator must not be told about a decline")
	}

	_, err = f.lifecycle.Decline(f.ctx, itAdminY, f.accept(t, declined, itAdminX).ID, Origin{})
	assertCode(t, err, apperrors.CodeForbidden)
}

func TestDeclineDuringClarificationEndsDialogue(t *testing.T) {
	f := newFixture(t)
	req := f.accept(t, f.submit(t, "Доступ к папке"), itAdminX)
	if _, err := f.lifecycle.StartClarification(f.ctx, Actor{ID: itAdminX, Side: SideAdmin}, req.ID, Origin{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.lifecycle.Decline(f.ctx, itAdminX, req.ID, Origin{}); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if !f.stage(t, creatorID).Empty() || !f.stage(t, itAdminX).Empty() {
		t.Fatalf("dialogue sessions survived decline")
	}
	assertAssigneeInvariant(t, f.reload(t, req.ID))
}

func TestListingsHideOldDoneRequests(t *testing.T) {
	f := newFixture(t)
	open := f.submit(t, "Открытая")
	closed := f.accept(t, f.submit(t, "Закрытая"), itAdminX)
	if _, err := f.lifecycle.CompleteByCreator(f.ctx, creatorID, closed.ID, Origin{}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	f.submitDraft(t, Draft{Type: domain.RequestTypeAHO, Description: "Стул", Urgency: domain.UrgencyASAP})

	mine, err := f.lifecycle.ListCreatorRequests(f.ctx, creatorID)
	if err != nil || len(mine) != 3 {
		t.Fatalf("expected 3 requests inside the window, got %d (%v)", len(mine), err)
	}
	handled, err := f.lifecycle.ListAdminRequests(f.ctx, itAdminX)
	if err != nil || len(handled) != 1 || handled[0].ID != closed.ID {
		t.Fatalf("admin listing should keep the completed request: %+v %v", handled, err)
	}
	fresh, err := f.lifecycle.ListNewRequests(f.ctx, itAdminY)
	if err != nil || len(fresh) != 1 || fresh[0].ID != open.ID {
		t.Fatalf("new IT requests = %+v %v", fresh, err)
	}

	f.clock = f.clock.Add(49 * time.Hour)
	mine, _ = f.lifecycle.ListCreatorRequests(f.ctx, creatorID)
	for _, r := range mine {
		if r.ID == closed.ID {
			t.Fatalf("done request outside the window is still listed")
		}
	}
	if len(mine) != 2 {
		t.Fatalf("open requests must stay listed, got %d", len(mine))
	}

	_, err = f.lifecycle.ListNewRequests(f.ctx, creatorID)
	assertCode(t, err, apperrors.CodeForbidden)
}

func TestShowCreatorRequestsOffersActions(t *testing.T) {
	f := newFixture(t)
	req := f.accept(t, f.submit(t, "Проблема с почтой"), itAdminX)
	if err := f.lifecycle.ShowCreatorRequests(f.ctx, creatorID); err != nil {
		t.Fatalf("show: %v", err)
	}
	card, ok := f.rec.LastTo(creatorID)
	if !ok || !strings.Contains(card.Text, "IT Admin 11") {
		t.Fatalf("card should name the executor: %+v", card)
	}
	if !transporttest.HasButton(card.Markup, action.Encode(action.UserDone, req.ID)) {
		t.Fatalf("card should offer creator completion")
	}
}

func TestStatusCountsIncludeEveryStatus(t *testing.T) {
	f := newFixture(t)
	f.accept(t, f.submit(t, "Один"), itAdminX)
	f.submit(t, "Два")

	counts, err := f.lifecycle.StatusCounts(f.ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if len(counts) != 4 {
		t.Fatalf("expected every status, got %v", counts)
	}
	if counts[domain.StatusReceived] != 1 || counts[domain.StatusAccepted] != 1 || counts[domain.StatusDone] != 0 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestAdminOfOtherGroupCannotAct(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "Не печатает принтер")
	aho := Actor{ID: ahoAdmin, Side: SideAdmin}

	_, err := f.lifecycle.Accept(f.ctx, ahoAdmin, req.ID, Origin{})
	assertCode(t, err, apperrors.CodeForbidden)
	_, err = f.lifecycle.StartClarification(f.ctx, aho, req.ID, Origin{})
	assertCode(t, err, apperrors.CodeForbidden)
	_, err = f.lifecycle.Decline(f.ctx, ahoAdmin, req.ID, Origin{})
	assertCode(t, err, apperrors.CodeForbidden)

	got := f.reload(t, req.ID)
	if got.Status != domain.StatusReceived || got.AssignedAdminID != nil {
		t.Fatalf("request changed by foreign admin: %+v", got)
	}
	if !f.stage(t, ahoAdmin).Empty() {
		t.Fatalf("foreign admin got a dialogue session")
	}
}

func TestAcceptMessageOmitsPlaceholderPhone(t *testing.T) {
	f := newFixture(t)
	f.accept(t, f.submit(t, "Нет звука"), itAdminX)
	msgs := sentContaining(f.rec, creatorID, "принята к исполнению")
	if len(msgs) != 1 || strings.Contains(msgs[0].Text, "Телефон") {
		t.Fatalf("placeholder phone should be omitted: %+v", msgs)
	}

	admin, err := f.store.Users.GetByID(f.ctx, itAdminY)
	if err != nil {
		t.Fatalf("get admin: %v", err)
	}
	admin.Phone = "+7 474 222-33-44"
	if err := f.store.Users.Update(f.ctx, admin); err != nil {
		t.Fatalf("update admin: %v", err)
	}
	f.accept(t, f.submit(t, "Нет изображения"), itAdminY)
	msgs = sentContaining(f.rec, creatorID, "принята к исполнению")
	if len(msgs) != 1 || !strings.Contains(msgs[0].Text, "Телефон: +7 474 222-33-44") {
		t.Fatalf("real phone should be shown: %+v", msgs)
	}
}
