package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/events"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/observability"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/repository"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/repository/memory"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/session"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/transport/transporttest"
	apperrors "github.com/lipetsk-helpdesk/helpdesk-bot/pkg/util/errorutil"
)

const (
	testBotID   = int64(7)
	itAdminX    = int64(11)
	itAdminY    = int64(12)
	ahoAdmin    = int64(21)
	creatorID   = int64(501)
	otherUserID = int64(502)
)

type fixture struct {
	ctx       context.Context
	store     *repository.Store
	sessions  *session.MemoryStore
	rec       *transporttest.Recorder
	metrics   *observability.Metrics
	published []events.Event
	clock     time.Time

	fanout    *FanoutService
	clarify   *ClarificationService
	lifecycle *LifecycleService
	intake    *IntakeService
	users     *UserService
	bootstrap *Bootstrap
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		store:    memory.NewStore(),
		sessions: session.NewMemoryStore(),
		rec:      transporttest.NewRecorder(),
		metrics:  observability.NewMetrics(),
		clock:    time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.AllEvents, func(_ context.Context, e events.Event) error {
		f.published = append(f.published, e)
		return nil
	})
	deps := Dependencies{
		Store:      f.store,
		Sessions:   f.sessions,
		Notifier:   f.rec,
		Dispatcher: dispatcher,
		Metrics:    f.metrics,
		BotID:      testBotID,
		Now:        func() time.Time { return f.clock },
		DoneWindow: 48 * time.Hour,
	}
	f.fanout = NewFanoutService(deps)
	f.clarify = NewClarificationService(deps)
	f.lifecycle = NewLifecycleService(deps, f.fanout, f.clarify)
	f.intake = NewIntakeService(deps, f.fanout)
	f.users = NewUserService(deps)
	f.bootstrap = NewBootstrap(deps)

	if err := f.bootstrap.ReconcileAdmins(f.ctx, []int64{itAdminX, itAdminY}, []int64{ahoAdmin}); err != nil {
		t.Fatalf("reconcile admins: %v", err)
	}
	for _, id := range []int64{creatorID, otherUserID} {
		if _, err := f.users.Register(f.ctx, id, Registration{
			FullName:     "Иванов Иван",
			Phone:        "+7 900 000-00-00",
			Organization: "Министерство финансов Липецкой области",
			OfficeNumber: "305",
		}); err != nil {
			t.Fatalf("register %d: %v", id, err)
		}
	}
	return f
}

// submit files an IT request from the creator and resets the recorder.
func (f *fixture) submit(t *testing.T, description string) *domain.Request {
	t.Helper()
	return f.submitDraft(t, Draft{Type: domain.RequestTypeIT, Description: description, Urgency: domain.UrgencyASAP})
}

func (f *fixture) submitDraft(t *testing.T, draft Draft) *domain.Request {
	t.Helper()
	req, err := f.intake.Submit(f.ctx, creatorID, draft)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.rec.Reset()
	return f.reload(t, req.ID)
}

func (f *fixture) reload(t *testing.T, id int64) *domain.Request {
	t.Helper()
	req, err := f.store.Requests.GetByID(f.ctx, id)
	if err != nil {
		t.Fatalf("reload request %d: %v", id, err)
	}
	return req
}

func (f *fixture) accept(t *testing.T, req *domain.Request, adminID int64) *domain.Request {
	t.Helper()
	if _, err := f.lifecycle.Accept(f.ctx, adminID, req.ID, Origin{MessageID: req.AdminMessages[adminID]}); err != nil {
		t.Fatalf("accept by %d: %v", adminID, err)
	}
	return f.reload(t, req.ID)
}

func (f *fixture) stage(t *testing.T, userID int64) session.State {
	t.Helper()
	state, err := f.sessions.Get(f.ctx, session.PrivateKey(testBotID, userID))
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return state
}

func assertAssigneeInvariant(t *testing.T, req *domain.Request) {
	t.Helper()
	if req.Status.RequiresAssignee() != (req.AssignedAdminID != nil) {
		t.Fatalf("request %d in %s has assignee %v", req.ID, req.Status, req.AssignedAdminID)
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func sentContaining(rec *transporttest.Recorder, chatID int64, fragment string) []transporttest.Sent {
	var out []transporttest.Sent
	for _, s := range rec.SentTo(chatID) {
		if strings.Contains(s.Text, fragment) {
			out = append(out, s)
		}
	}
	return out
}

func lastEdit(t *testing.T, rec *transporttest.Recorder, chatID int64, messageID int) transporttest.Edit {
	t.Helper()
	edits := rec.EditsOf(chatID, messageID)
	if len(edits) == 0 {
		t.Fatalf("message %d in chat %d was never edited", messageID, chatID)
	}
	return edits[len(edits)-1]
}

// staleRequests serves one stale snapshot to simulate a competing handler that
// read the request before another one committed.
type staleRequests struct {
	repository.RequestRepository
	stale *domain.Request
}

func (r *staleRequests) GetByID(ctx context.Context, id int64) (*domain.Request, error) {
	if r.stale != nil && r.stale.ID == id {
		snapshot := r.stale.Clone()
		r.stale = nil
		return snapshot, nil
	}
	return r.RequestRepository.GetByID(ctx, id)
}
