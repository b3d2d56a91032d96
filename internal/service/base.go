package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/events"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/observability"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/repository"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/session"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/transport"
	apperrors "github.com/lipetsk-helpdesk/helpdesk-bot/pkg/util/errorutil"
)

// Dependencies bundles what every service needs.
type Dependencies struct {
	Store      *repository.Store
	Sessions   session.Store
	Notifier   transport.Notifier
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	BotID      int64
	// Now defaults to time.Now.
	Now func() time.Time
	// DoneWindow is how long completed requests stay in listings.
	DoneWindow time.Duration
}

// base carries shared helpers; services embed it.
type base struct {
	store      *repository.Store
	sessions   session.Store
	notifier   transport.Notifier
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	botID      int64
	now        func() time.Time
}

func newBase(deps Dependencies) base {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{
		store:      deps.Store,
		sessions:   deps.Sessions,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		botID:      deps.BotID,
		now:        now,
	}
}

func (b *base) key(userID int64) session.Key {
	return session.PrivateKey(b.botID, userID)
}

func (b *base) loadRequest(ctx context.Context, id int64) (*domain.Request, error) {
	req, err := b.store.Requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("Заявка не найдена.", map[string]any{"request_id": id})
		}
		return nil, apperrors.NewInternalError(fmt.Errorf("load request %d: %w", id, err))
	}
	return req, nil
}

// loadUser returns nil when the user is unknown; names are decoration, not guards.
func (b *base) loadUser(ctx context.Context, id int64) *domain.User {
	user, err := b.store.Users.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			b.logger.Warn("load user", zap.Int64("user_id", id), zap.Error(err))
		}
		return nil
	}
	return user
}

func (b *base) loadUserPtr(ctx context.Context, id *int64) *domain.User {
	if id == nil {
		return nil
	}
	return b.loadUser(ctx, *id)
}

func (b *base) requireAdmin(ctx context.Context, adminID int64) (*domain.User, error) {
	admin := b.loadUser(ctx, adminID)
	if !admin.IsAdmin() {
		return nil, apperrors.NewForbidden("У вас нет доступа к этой функции.")
	}
	return admin, nil
}

// requireGroup rejects admins of the group that does not handle req.
func requireGroup(admin *domain.User, req *domain.Request) error {
	if admin.Role != req.Type.AdminType().Role() {
		return apperrors.NewForbidden("Эта заявка относится к другой группе администраторов.")
	}
	return nil
}

// commit writes req only if its stored status still equals expected. Losing a race
// reports the status the winner left behind.
func (b *base) commit(ctx context.Context, req *domain.Request, expected domain.Status, actorID int64, reason string) error {
	err := b.store.Requests.UpdateIfStatus(ctx, req, expected)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrStatusConflict):
		current := domain.Status("")
		if latest, getErr := b.store.Requests.GetByID(ctx, req.ID); getErr == nil {
			current = latest.Status
		}
		b.logger.Info("transition lost race",
			zap.Int64("request_id", req.ID),
			zap.String("expected", string(expected)),
			zap.String("current", string(current)))
		return alreadyInStatus(req.ID, current)
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("Заявка не найдена.", map[string]any{"request_id": req.ID})
	default:
		return apperrors.NewInternalError(fmt.Errorf("update request %d: %w", req.ID, err))
	}

	if expected != req.Status {
		b.metrics.RecordTransition(string(expected), string(req.Status))
		b.publishEvent(ctx, events.EventRequestStatusChanged, req.ID, actorID, events.RequestStatusChangedPayload{
			OldStatus: expected,
			NewStatus: req.Status,
			Reason:    reason,
		})
	}
	b.logger.Info("request updated",
		zap.Int64("request_id", req.ID),
		zap.Int64("actor_id", actorID),
		zap.String("from", string(expected)),
		zap.String("to", string(req.Status)),
		zap.String("reason", reason))
	return nil
}

func alreadyInStatus(requestID int64, status domain.Status) error {
	return apperrors.NewPreconditionFailed(
		fmt.Sprintf("Эта заявка уже имеет статус: %s.", status.Label()),
		map[string]any{"request_id": requestID, "status": status},
	)
}

func (b *base) publishEvent(ctx context.Context, eventType events.EventType, requestID, actorID int64, payload any) {
	if b.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		RequestID: requestID,
		ActorID:   actorID,
		Timestamp: b.now(),
		Payload:   payload,
	}
	if err := b.dispatcher.Publish(ctx, event); err != nil {
		b.logger.Warn("publish event", zap.String("type", string(eventType)), zap.Error(err))
	}
}

// send delivers a text message; failures are logged and counted.
func (b *base) send(ctx context.Context, chatID int64, text string, markup *transport.Markup) (int, bool) {
	id, err := b.notifier.SendText(ctx, chatID, text, markup)
	if err != nil {
		b.deliveryFailed("send", chatID, err)
		return 0, false
	}
	return id, true
}

func (b *base) sendAttachment(ctx context.Context, chatID int64, attachment domain.Attachment, caption string, markup *transport.Markup) (int, bool) {
	id, err := b.notifier.SendAttachment(ctx, chatID, attachment, caption, markup)
	if err != nil {
		b.deliveryFailed("send_attachment", chatID, err)
		return 0, false
	}
	return id, true
}

// sendCard sends an admin card, as a captioned attachment when the request has one.
func (b *base) sendCard(ctx context.Context, chatID int64, req *domain.Request, text string, markup *transport.Markup) (int, bool) {
	if req.Attachment != nil {
		return b.sendAttachment(ctx, chatID, *req.Attachment, text, markup)
	}
	return b.send(ctx, chatID, text, markup)
}

// editCard rewrites a card sent by sendCard.
func (b *base) editCard(ctx context.Context, chatID int64, messageID int, req *domain.Request, text string, markup *transport.Markup) bool {
	return b.edit(ctx, chatID, messageID, text, markup, req.Attachment != nil)
}

func (b *base) edit(ctx context.Context, chatID int64, messageID int, text string, markup *transport.Markup, hasMedia bool) bool {
	if messageID == 0 {
		return false
	}
	var err error
	if hasMedia {
		err = b.notifier.EditCaption(ctx, chatID, messageID, text, markup)
	} else {
		err = b.notifier.EditText(ctx, chatID, messageID, text, markup)
	}
	if err != nil {
		b.deliveryFailed("edit", chatID, err, zap.Int("message_id", messageID))
		return false
	}
	return true
}

func (b *base) remove(ctx context.Context, chatID int64, messageID int) bool {
	if messageID == 0 {
		return false
	}
	if err := b.notifier.Delete(ctx, chatID, messageID); err != nil {
		b.deliveryFailed("delete", chatID, err, zap.Int("message_id", messageID))
		return false
	}
	return true
}

func (b *base) deliveryFailed(op string, chatID int64, err error, fields ...zap.Field) {
	b.metrics.RecordDeliveryFailure(op)
	b.logger.Warn("chat delivery failed",
		append([]zap.Field{zap.String("op", op), zap.Int64("chat_id", chatID), zap.Error(err)}, fields...)...)
}

func (b *base) mainMenuFor(ctx context.Context, userID int64) *transport.Markup {
	role := domain.RoleUser
	if user := b.loadUser(ctx, userID); user != nil {
		role = user.Role
	}
	return MainMenu(role)
}
