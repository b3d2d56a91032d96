package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
	apperrors "github.com/lipetsk-helpdesk/helpdesk-bot/pkg/util/errorutil"
)

// MessageRef points at one admin's copy of a request card.
type MessageRef struct {
	AdminID   int64
	MessageID int
}

// FanoutService broadcasts new requests to the matching admin group and retracts
// the stale copies once one admin claims the request.
type FanoutService struct {
	base
}

// NewFanoutService creates the service.
func NewFanoutService(deps Dependencies) *FanoutService {
	return &FanoutService{base: newBase(deps)}
}

// Notify sends the request card to every admin of the request's group and records
// each message id. It returns how many admins were reached.
func (s *FanoutService) Notify(ctx context.Context, req *domain.Request, creator *domain.User) (int, error) {
	admins, err := s.store.Admins.ListByType(ctx, req.Type.AdminType())
	if err != nil {
		return 0, apperrors.NewInternalError(fmt.Errorf("list admins: %w", err))
	}
	if len(admins) == 0 {
		s.logger.Warn("no admins to notify", zap.Int64("request_id", req.ID), zap.String("type", string(req.Type)))
		return 0, nil
	}

	text := renderAdminCard(req, creator, nil, true)
	messages := make(domain.AdminMessageMap, len(admins))
	for _, admin := range admins {
		msgID, ok := s.sendCard(ctx, admin.ID, req, text, adminKeyboard(req, admin.ID, false))
		if !ok {
			continue
		}
		messages[admin.ID] = msgID
		s.logger.Info("request card sent", zap.Int64("request_id", req.ID), zap.Int64("admin_id", admin.ID))
	}

	req.AdminMessages = messages
	if err := s.store.Requests.Update(ctx, req); err != nil {
		return len(messages), apperrors.NewInternalError(fmt.Errorf("save admin messages of request %d: %w", req.ID, err))
	}
	return len(messages), nil
}

// Claim makes adminID's message the canonical card of req and returns the other
// copies, which the caller retracts once the claim is committed. messageID, when
// set, is the message the admin acted on and wins over the recorded one.
func (s *FanoutService) Claim(req *domain.Request, adminID int64, messageID int) []MessageRef {
	canonical := messageID
	if canonical == 0 {
		canonical = req.AdminMessages[adminID]
	}

	var stale []MessageRef
	for other, msgID := range req.AdminMessages {
		if other == adminID && msgID == canonical {
			continue
		}
		stale = append(stale, MessageRef{AdminID: other, MessageID: msgID})
	}

	if canonical == 0 {
		req.AdminMessages = domain.AdminMessageMap{}
		req.AdminMessageID = nil
		return stale
	}
	req.AdminMessages = domain.AdminMessageMap{adminID: canonical}
	req.AdminMessageID = domain.IntPtr(canonical)
	return stale
}

// Retract deletes stale card copies. Failures are logged and skipped.
func (s *FanoutService) Retract(ctx context.Context, requestID int64, stale []MessageRef) {
	for _, ref := range stale {
		if s.remove(ctx, ref.AdminID, ref.MessageID) {
			s.logger.Info("stale request card retracted",
				zap.Int64("request_id", requestID),
				zap.Int64("admin_id", ref.AdminID),
				zap.Int("message_id", ref.MessageID))
		}
	}
}

// Refresh rewrites every recorded admin card of req with its current status and the
// actions each admin may take. After a claim that is the single canonical message.
func (s *FanoutService) Refresh(ctx context.Context, req *domain.Request, afterClarification bool) {
	if len(req.AdminMessages) == 0 {
		return
	}
	creator := s.loadUser(ctx, req.CreatorID)
	executorID := req.AssignedAdminID
	if executorID == nil {
		executorID = req.CompletedByID
	}
	text := renderAdminCard(req, creator, s.loadUserPtr(ctx, executorID), false)
	for adminID, msgID := range req.AdminMessages {
		s.editCard(ctx, adminID, msgID, req, text, adminKeyboard(req, adminID, afterClarification))
	}
}
