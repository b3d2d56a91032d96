package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/events"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/session"
	apperrors "github.com/lipetsk-helpdesk/helpdesk-bot/pkg/util/errorutil"
)

// Origin describes the chat message whose button triggered an action.
type Origin struct {
	MessageID int
	Text      string
	HasMedia  bool
}

// Actor is whoever drives a clarification: an admin or the request's creator.
type Actor struct {
	ID   int64
	Side Side
}

// Feedback is what an admin attaches when closing a request. A nil *Feedback means
// the admin skipped it.
type Feedback = Message

// LifecycleService drives requests through RECEIVED, ACCEPTED, CLARIFYING and DONE.
type LifecycleService struct {
	base
	fanout     *FanoutService
	clarify    *ClarificationService
	doneWindow time.Duration
}

// NewLifecycleService wires the engine to its fan-out and clarification collaborators.
func NewLifecycleService(deps Dependencies, fanout *FanoutService, clarify *ClarificationService) *LifecycleService {
	window := deps.DoneWindow
	if window <= 0 {
		window = 48 * time.Hour
	}
	return &LifecycleService{
		base:       newBase(deps),
		fanout:     fanout,
		clarify:    clarify,
		doneWindow: window,
	}
}

// Accept assigns a RECEIVED request to adminID, retracts the other admins' copies
// and tells the creator who is working on it.
func (s *LifecycleService) Accept(ctx context.Context, adminID, requestID int64, origin Origin) (*domain.Request, error) {
	admin, err := s.requireAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}
	req, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := requireGroup(admin, req); err != nil {
		return nil, err
	}
	if req.Status != domain.StatusReceived {
		return nil, alreadyInStatus(req.ID, req.Status)
	}

	previous := req.Status
	req.Status = domain.StatusAccepted
	req.AssignedAdminID = domain.Int64Ptr(adminID)
	req.ClarifyReturnStatus = ""
	stale := s.fanout.Claim(req, adminID, origin.MessageID)
	if err := s.commit(ctx, req, previous, adminID, "accepted"); err != nil {
		return nil, err
	}

	s.fanout.Retract(ctx, req.ID, stale)
	s.fanout.Refresh(ctx, req, false)
	s.publishEvent(ctx, events.EventRequestAssigned, req.ID, adminID, events.RequestAssignedPayload{AdminID: domain.Int64Ptr(adminID)})

	text := fmt.Sprintf("Ваша заявка %s принята к исполнению.\nИсполнитель: %s.\n", requestRef(req), nameOf(admin, defaultAdminName))
	if phone := contactPhone(admin); phone != "" {
		text += "Телефон: " + phone + "\n"
	}
	s.send(ctx, req.CreatorID, text+"Мы уже приступаем к работе, скоро ваша заявка будет выполнена. Пожалуйста, ожидайте.", nil)
	return req, nil
}

// Decline returns a request to the pool. The admin's card is deleted and the
// creator is not told.
func (s *LifecycleService) Decline(ctx context.Context, adminID, requestID int64, origin Origin) (*domain.Request, error) {
	admin, err := s.requireAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}
	req, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := requireGroup(admin, req); err != nil {
		return nil, err
	}
	if req.Status == domain.StatusDone {
		return nil, apperrors.NewPreconditionFailed("Эта заявка уже выполнена.",
			map[string]any{"request_id": req.ID, "status": req.Status})
	}
	if req.AssignedAdminID != nil && !req.IsAssignedTo(adminID) {
		return nil, apperrors.NewForbidden("Эта заявка назначена другому администратору.")
	}

	previous := req.Status
	if previous == domain.StatusClarifying {
		if _, err := s.clarify.End(ctx, SideAdmin, adminID, req); err != nil {
			s.logger.Warn("end clarification on decline", zap.Int64("request_id", req.ID), zap.Error(err))
		}
	}

	canonical := req.AdminMessages[adminID]
	req.Status = domain.StatusReceived
	req.AssignedAdminID = nil
	req.ClarifyReturnStatus = ""
	delete(req.AdminMessages, adminID)
	if req.AdminMessageID != nil && *req.AdminMessageID == canonical {
		req.AdminMessageID = nil
	}
	if err := s.commit(ctx, req, previous, adminID, "declined"); err != nil {
		return nil, err
	}

	s.remove(ctx, adminID, origin.MessageID)
	if canonical != 0 && canonical != origin.MessageID {
		s.remove(ctx, adminID, canonical)
	}
	s.send(ctx, adminID, fmt.Sprintf("Вы отказались от заявки ID:%d. Она снова доступна в разделе «%s».", req.ID, MenuNewRequests),
		s.mainMenuFor(ctx, adminID))
	return req, nil
}

// BeginCompletion asks the executor for an optional closing message and parks the
// request id in their session until Complete or CancelCompletion.
func (s *LifecycleService) BeginCompletion(ctx context.Context, adminID, requestID int64, origin Origin) error {
	req, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status == domain.StatusDone {
		return apperrors.NewPreconditionFailed("Эта заявка уже отмечена как выполненная.",
			map[string]any{"request_id": req.ID, "status": req.Status})
	}
	if !req.IsAssignedTo(adminID) {
		return apperrors.NewForbidden("Вы не являетесь исполнителем этой заявки.")
	}

	state := session.State{
		Stage: session.StageWaitingForFeedback,
		Data: session.Data{
			RequestID:       req.ID,
			PromptMessageID: origin.MessageID,
			PromptText:      origin.Text,
			PromptHasMedia:  origin.HasMedia,
		},
	}
	if err := s.sessions.Set(ctx, s.key(adminID), state); err != nil {
		return apperrors.NewInternalError(fmt.Errorf("save completion session: %w", err))
	}
	s.send(ctx, adminID,
		"Перед завершением заявки отправьте пользователю файл/фото/текст (при необходимости) или нажмите кнопку ниже, чтобы отметить без сообщения.",
		feedbackKeyboard(req.ID))
	return nil
}

// Complete closes the request parked by BeginCompletion and forwards feedback, if
// any, to the creator. A non-zero requestID comes from a button under a specific
// prompt and must match the parked request.
func (s *LifecycleService) Complete(ctx context.Context, adminID, requestID int64, feedback *Feedback) (*domain.Request, error) {
	key := s.key(adminID)
	state, err := s.pendingCompletion(ctx, key, requestID)
	if err != nil {
		return nil, err
	}
	if feedback != nil && feedback.Empty() {
		return nil, apperrors.NewValidationError("Отправьте текст, фото или документ либо нажмите «Отправить без сообщения».", nil)
	}

	req, err := s.loadRequest(ctx, state.Data.RequestID)
	if err != nil {
		s.clearSession(ctx, key)
		return nil, err
	}
	if req.Status == domain.StatusDone {
		s.clearSession(ctx, key)
		return nil, apperrors.NewPreconditionFailed("Эта заявка уже отмечена как выполненная.",
			map[string]any{"request_id": req.ID, "status": req.Status})
	}
	if !req.IsAssignedTo(adminID) {
		s.clearSession(ctx, key)
		return nil, apperrors.NewForbidden("Вы не являетесь исполнителем этой заявки.")
	}

	s.fanout.Claim(req, adminID, state.Data.PromptMessageID)
	if err := s.markDone(ctx, req, domain.Int64Ptr(adminID), adminID, "completed by admin"); err != nil {
		return nil, err
	}

	admin := s.loadUser(ctx, adminID)
	adminName := nameOf(admin, defaultAdminName)
	if feedback != nil {
		prefix := fmt.Sprintf("Сообщение от администратора %s по заявке ID:%d\n", adminName, req.ID)
		if feedback.Attachment != nil {
			s.sendAttachment(ctx, req.CreatorID, *feedback.Attachment, prefix+feedback.Text, nil)
		} else {
			s.send(ctx, req.CreatorID, prefix+feedback.Text, nil)
		}
	}
	s.notifyCreatorDone(ctx, req, admin)
	s.fanout.Refresh(ctx, req, false)

	s.clearSession(ctx, key)
	s.send(ctx, adminID, fmt.Sprintf("Заявка ID:%d отмечена как выполненная.", req.ID), s.mainMenuFor(ctx, adminID))
	return req, nil
}

// CancelCompletion abandons the pending Complete of requestID.
func (s *LifecycleService) CancelCompletion(ctx context.Context, adminID, requestID int64) error {
	key := s.key(adminID)
	if _, err := s.pendingCompletion(ctx, key, requestID); err != nil {
		return err
	}
	if err := s.sessions.Clear(ctx, key); err != nil {
		return apperrors.NewInternalError(fmt.Errorf("clear completion session: %w", err))
	}
	s.send(ctx, adminID, "Отметка о выполнении отменена. Вы можете повторить действие позже.", s.mainMenuFor(ctx, adminID))
	return nil
}

// pendingCompletion returns the admin's completion session. A prompt for another
// request leaves the session untouched.
func (s *LifecycleService) pendingCompletion(ctx context.Context, key session.Key, requestID int64) (session.State, error) {
	state, err := s.sessions.Get(ctx, key)
	if err != nil {
		return session.State{}, apperrors.NewInternalError(err)
	}
	if state.Stage != session.StageWaitingForFeedback || state.Data.RequestID == 0 {
		if requestID != 0 {
			return session.State{}, staleCompletion(requestID)
		}
		return session.State{}, apperrors.NewPreconditionFailed("Не удалось определить заявку для завершения.", nil)
	}
	if requestID != 0 && requestID != state.Data.RequestID {
		return session.State{}, staleCompletion(requestID)
	}
	return state, nil
}

func staleCompletion(requestID int64) error {
	return apperrors.NewPreconditionFailed("Этот запрос на завершение устарел.",
		map[string]any{"request_id": requestID})
}

// CompleteByCreator lets the creator close their own request.
func (s *LifecycleService) CompleteByCreator(ctx context.Context, userID, requestID int64, origin Origin) (*domain.Request, error) {
	req, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.CreatorID != userID {
		return nil, apperrors.NewNotFound("Заявка не найдена или вы не являетесь ее создателем.",
			map[string]any{"request_id": requestID})
	}
	if req.Status == domain.StatusDone {
		return nil, apperrors.NewPreconditionFailed("Эта заявка уже отмечена как выполненная.",
			map[string]any{"request_id": req.ID, "status": req.Status})
	}

	executorID := req.AssignedAdminID
	wasClarifying := req.Status == domain.StatusClarifying
	if wasClarifying {
		if _, err := s.clarify.End(ctx, SideUser, userID, req); err != nil {
			s.logger.Warn("end clarification on completion", zap.Int64("request_id", req.ID), zap.Error(err))
		}
	}

	if err := s.markDone(ctx, req, executorID, userID, "completed by creator"); err != nil {
		return nil, err
	}

	if origin.MessageID != 0 {
		s.edit(ctx, userID, origin.MessageID, origin.Text+"\n\n✅ Статус: "+req.Status.Label(), nil, origin.HasMedia)
	}
	s.send(ctx, userID, fmt.Sprintf("Заявка ID:%d отмечена как выполненная. Спасибо!", req.ID), s.mainMenuFor(ctx, userID))

	if executorID != nil {
		creator := s.loadUser(ctx, userID)
		s.send(ctx, *executorID, fmt.Sprintf("🎉 Пользователь %s отметил заявку ID:%d как выполненную!",
			nameOf(creator, unknownUserName), req.ID), nil)
	}
	s.fanout.Refresh(ctx, req, false)
	return req, nil
}

// markDone commits DONE. completedBy becomes the recorded executor.
func (s *LifecycleService) markDone(ctx context.Context, req *domain.Request, completedBy *int64, actorID int64, reason string) error {
	previous := req.Status
	now := s.now()
	req.Status = domain.StatusDone
	req.CompletedAt = &now
	req.CompletedByID = completedBy
	req.AssignedAdminID = nil
	req.ClarifyReturnStatus = ""
	return s.commit(ctx, req, previous, actorID, reason)
}

func (s *LifecycleService) notifyCreatorDone(ctx context.Context, req *domain.Request, admin *domain.User) {
	phone := ""
	if admin != nil {
		phone = admin.Phone
	}
	s.send(ctx, req.CreatorID, fmt.Sprintf(
		"✨ Отличные новости! Ваша заявка выполнена.\nID:%d. Описание: %s...\nИсполнитель: %s (тел. %s)\nСпасибо за ожидание! Если потребуется дополнительная помощь, вы всегда можете оставить новую заявку.",
		req.ID, req.Excerpt(doneExcerptLength), nameOf(admin, defaultAdminName), phone), nil)
}

// StartClarification moves a request into CLARIFYING and links the creator with
// the admin. Either side may start it.
func (s *LifecycleService) StartClarification(ctx context.Context, actor Actor, requestID int64, origin Origin) (*domain.Request, error) {
	req, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status == domain.StatusDone {
		return nil, apperrors.NewPreconditionFailed("Эта заявка уже выполнена. Уточнение невозможно.",
			map[string]any{"request_id": req.ID, "status": req.Status})
	}

	var adminID int64
	if actor.Side == SideAdmin {
		admin, err := s.requireAdmin(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		if err := requireGroup(admin, req); err != nil {
			return nil, err
		}
		if req.AssignedAdminID != nil && !req.IsAssignedTo(actor.ID) {
			if req.Status == domain.StatusClarifying {
				return nil, apperrors.NewPreconditionFailed("По этой заявке уже ведется уточнение другим администратором.",
					map[string]any{"request_id": req.ID, "status": req.Status})
			}
			return nil, apperrors.NewForbidden("Эта заявка назначена другому администратору.")
		}
		adminID = actor.ID
	} else {
		if req.CreatorID != actor.ID {
			return nil, apperrors.NewNotFound("Заявка не найдена или вы не являетесь ее создателем.",
				map[string]any{"request_id": requestID})
		}
		if req.AssignedAdminID == nil {
			return nil, apperrors.NewPreconditionFailed("Эта заявка еще не принята администратором. Уточнение невозможно.",
				map[string]any{"request_id": req.ID, "status": req.Status})
		}
		adminID = *req.AssignedAdminID
	}

	if req.Status != domain.StatusClarifying {
		previous := req.Status
		req.ClarifyReturnStatus = previous
		req.Status = domain.StatusClarifying
		if req.AssignedAdminID == nil {
			req.AssignedAdminID = domain.Int64Ptr(adminID)
		}
		if actor.Side == SideAdmin && origin.MessageID != 0 {
			if _, known := req.AdminMessages[adminID]; !known {
				if req.AdminMessages == nil {
					req.AdminMessages = domain.AdminMessageMap{}
				}
				req.AdminMessages[adminID] = origin.MessageID
			}
		}
		if err := s.commit(ctx, req, previous, actor.ID, "clarification started"); err != nil {
			return nil, err
		}
	}

	if err := s.clarify.Open(ctx, req, adminID, actor.Side); err != nil {
		return nil, err
	}
	s.fanout.Refresh(ctx, req, false)
	return req, nil
}

// EndClarification closes the dialogue and restores the status the request had
// before it. Ending twice is harmless.
func (s *LifecycleService) EndClarification(ctx context.Context, actor Actor, requestID int64) (*domain.Request, error) {
	req, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	switch actor.Side {
	case SideAdmin:
		if req.AssignedAdminID != nil && !req.IsAssignedTo(actor.ID) {
			return nil, apperrors.NewForbidden("Вы не участвуете в уточнении этой заявки.")
		}
	default:
		if req.CreatorID != actor.ID {
			return nil, apperrors.NewNotFound("Заявка не найдена или вы не являетесь ее создателем.",
				map[string]any{"request_id": requestID})
		}
	}

	if _, err := s.clarify.End(ctx, actor.Side, actor.ID, req); err != nil {
		return nil, err
	}
	if req.Status != domain.StatusClarifying {
		return req, nil
	}

	next := req.ClarifyReturnStatus
	if next != domain.StatusAccepted || req.AssignedAdminID == nil {
		next = domain.StatusReceived
	}
	req.Status = next
	req.ClarifyReturnStatus = ""
	if next == domain.StatusReceived {
		req.AssignedAdminID = nil
	}
	if err := s.commit(ctx, req, domain.StatusClarifying, actor.ID, "clarification ended"); err != nil {
		return nil, err
	}
	s.fanout.Refresh(ctx, req, true)
	return req, nil
}

func (s *LifecycleService) clearSession(ctx context.Context, key session.Key) {
	if err := s.sessions.Clear(ctx, key); err != nil {
		s.logger.Warn("clear session", zap.String("key", key.String()), zap.Error(err))
	}
}
