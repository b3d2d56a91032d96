package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/action"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/session"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/transport"
	apperrors "github.com/lipetsk-helpdesk/helpdesk-bot/pkg/util/errorutil"
)

// Side names a party of a clarification dialogue.
type Side string

const (
	SideAdmin Side = "admin"
	SideUser  Side = "user"
)

func (s Side) stage() session.Stage {
	if s == SideAdmin {
		return session.StageAdminClarification
	}
	return session.StageUserClarification
}

func (s Side) other() Side {
	if s == SideAdmin {
		return SideUser
	}
	return SideAdmin
}

// Message is a relayed chat message.
type Message struct {
	Text       string
	Attachment *domain.Attachment
}

// Empty reports whether there is nothing to relay.
func (m Message) Empty() bool {
	return m.Text == "" && m.Attachment == nil
}

// ClarificationService links a creator's session to an admin's session for one
// request and relays messages between them.
type ClarificationService struct {
	base
}

// NewClarificationService creates the service.
func NewClarificationService(deps Dependencies) *ClarificationService {
	return &ClarificationService{base: newBase(deps)}
}

// Open binds both parties' sessions to req and tells each side how to leave.
func (s *ClarificationService) Open(ctx context.Context, req *domain.Request, adminID int64, initiator Side) error {
	adminState := session.State{
		Stage: session.StageAdminClarification,
		Data:  session.Data{CounterpartID: req.CreatorID, RequestID: req.ID},
	}
	userState := session.State{
		Stage: session.StageUserClarification,
		Data:  session.Data{CounterpartID: adminID, RequestID: req.ID},
	}
	if err := s.sessions.Set(ctx, s.key(adminID), adminState); err != nil {
		return apperrors.NewInternalError(fmt.Errorf("open admin session: %w", err))
	}
	if err := s.sessions.Set(ctx, s.key(req.CreatorID), userState); err != nil {
		return apperrors.NewInternalError(fmt.Errorf("open user session: %w", err))
	}

	adminEnd := transport.InlineMarkup(transport.InlineRow(action.Button(MenuEndClarify, action.ClarifyEnd, req.ID)))
	userEnd := transport.InlineMarkup(transport.InlineRow(action.Button(MenuEndClarify, action.UserClarifyEnd, req.ID)))

	if initiator == SideAdmin {
		s.send(ctx, adminID,
			"Вы начали диалог уточнения с пользователем. Отправляйте сообщения. Для завершения диалога нажмите кнопку:",
			adminEnd)
		s.send(ctx, req.CreatorID,
			fmt.Sprintf("Администратор начал диалог по вашей заявке %s.\nВы можете отправлять сообщения в ответ.", requestRef(req)),
			userEnd)
	} else {
		creator := s.loadUser(ctx, req.CreatorID)
		s.send(ctx, req.CreatorID,
			"Вы начали диалог уточнения с администратором. Отправляйте сообщения. Для завершения диалога нажмите кнопку:",
			userEnd)
		s.send(ctx, adminID,
			fmt.Sprintf("Пользователь %s начал диалог по заявке %s.\nВы можете отправлять сообщения в ответ.",
				nameOf(creator, unknownUserName), requestRef(req)),
			adminEnd)
	}

	s.logger.Info("clarification opened",
		zap.Int64("request_id", req.ID),
		zap.Int64("admin_id", adminID),
		zap.String("initiator", string(initiator)))
	return nil
}

// Relay forwards msg from the party owning key to its counterpart.
func (s *ClarificationService) Relay(ctx context.Context, key session.Key, msg Message) error {
	state, err := s.sessions.Get(ctx, key)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	side := SideUser
	if state.Stage == session.StageAdminClarification {
		side = SideAdmin
	} else if state.Stage != session.StageUserClarification {
		return apperrors.NewPreconditionFailed("Диалог уточнения не активен.", nil)
	}

	if state.Data.CounterpartID == 0 || state.Data.RequestID == 0 {
		s.clearOwn(ctx, key)
		return apperrors.NewPreconditionFailed(
			"Произошла ошибка в диалоге уточнения. Пожалуйста, попробуйте начать снова или используйте /start.", nil)
	}

	req, err := s.loadRequest(ctx, state.Data.RequestID)
	if err != nil {
		s.clearOwn(ctx, key)
		return err
	}
	if req.Status != domain.StatusClarifying {
		s.clearOwn(ctx, key)
		return apperrors.NewPreconditionFailed(
			fmt.Sprintf("Диалог по заявке ID:%d уже завершен.", req.ID),
			map[string]any{"request_id": req.ID, "status": req.Status})
	}
	if msg.Empty() {
		return apperrors.NewValidationError("Отправьте текст, фото или документ.", nil)
	}

	var prefix string
	var markup *transport.Markup
	if side == SideAdmin {
		prefix = fmt.Sprintf("💬 От администратора по заявке %s", requestRef(req))
		markup = transport.InlineMarkup(transport.InlineRow(action.Button(MenuEndClarify, action.UserClarifyEnd, req.ID)))
	} else {
		sender := s.loadUser(ctx, key.UserID)
		name := fmt.Sprint(key.UserID)
		if sender != nil && sender.FullName != "" {
			name = sender.FullName
		}
		prefix = fmt.Sprintf("💬 От пользователя %s по заявке %s", name, requestRef(req))
		markup = transport.InlineMarkup(transport.InlineRow(action.Button(MenuEndClarify, action.ClarifyEnd, req.ID)))
	}

	text := prefix
	if msg.Text != "" {
		text += "\n\n" + msg.Text
	}

	target := state.Data.CounterpartID
	if msg.Attachment != nil {
		_, err = s.notifier.SendAttachment(ctx, target, *msg.Attachment, text, markup)
	} else {
		_, err = s.notifier.SendText(ctx, target, text, markup)
	}
	if err != nil {
		s.deliveryFailed("relay", target, err, zap.Int64("request_id", req.ID))
		who := "пользователю"
		if side == SideUser {
			who = "администратору"
		}
		return apperrors.NewDeliveryFailed(
			fmt.Sprintf("Не удалось отправить сообщение %s. Возможно, он заблокировал бота.", who), err)
	}
	return nil
}

// End closes the dialogue of req from side. The actor's session is always cleared;
// the counterpart's only while it is still bound to the same request. It reports
// whether the counterpart was cleared and is safe to call repeatedly.
func (s *ClarificationService) End(ctx context.Context, side Side, actorID int64, req *domain.Request) (bool, error) {
	own, err := s.sessions.Get(ctx, s.key(actorID))
	if err != nil {
		return false, apperrors.NewInternalError(err)
	}

	counterpartID := int64(0)
	if own.Stage == side.stage() && own.Data.RequestID == req.ID {
		counterpartID = own.Data.CounterpartID
	}
	if counterpartID == 0 {
		if side == SideAdmin {
			counterpartID = req.CreatorID
		} else if req.AssignedAdminID != nil {
			counterpartID = *req.AssignedAdminID
		}
	}

	if err := s.sessions.Clear(ctx, s.key(actorID)); err != nil {
		return false, apperrors.NewInternalError(fmt.Errorf("clear session: %w", err))
	}

	cleared := false
	if counterpartID != 0 && counterpartID != actorID {
		cleared, err = s.clearIfBound(ctx, counterpartID, side.other(), req.ID)
		if err != nil {
			s.logger.Warn("clear counterpart session", zap.Int64("counterpart_id", counterpartID), zap.Error(err))
		}
	}

	s.send(ctx, actorID, "Диалог уточнения завершен.", s.mainMenuFor(ctx, actorID))
	if cleared {
		by := "администратором"
		if side == SideUser {
			by = "пользователем"
		}
		s.send(ctx, counterpartID,
			fmt.Sprintf("Диалог по заявке %s завершен %s.", requestRef(req), by),
			s.mainMenuFor(ctx, counterpartID))
	}

	s.logger.Info("clarification ended",
		zap.Int64("request_id", req.ID),
		zap.Int64("actor_id", actorID),
		zap.String("side", string(side)),
		zap.Bool("counterpart_cleared", cleared))
	return cleared, nil
}

// clearIfBound clears userID's session only if it is in side's dialogue stage for requestID.
func (s *ClarificationService) clearIfBound(ctx context.Context, userID int64, side Side, requestID int64) (bool, error) {
	key := s.key(userID)
	state, err := s.sessions.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if state.Stage != side.stage() || state.Data.RequestID != requestID {
		return false, nil
	}
	if err := s.sessions.Clear(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ClarificationService) clearOwn(ctx context.Context, key session.Key) {
	if err := s.sessions.Clear(ctx, key); err != nil {
		s.logger.Warn("clear session", zap.String("key", key.String()), zap.Error(err))
	}
}
