package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/events"
	apperrors "github.com/lipetsk-helpdesk/helpdesk-bot/pkg/util/errorutil"
)

// Draft is a request collected by the intake dialogue.
type Draft struct {
	Type          domain.RequestType
	CategoryID    *int64
	SubcategoryID *int64
	Description   string
	Urgency       domain.Urgency
	DueDate       string
	Attachment    *domain.Attachment
	Car           *domain.CarBooking
}

// Validate checks the fields a request cannot be stored without.
func (d Draft) Validate() error {
	if !d.Type.Valid() {
		return apperrors.NewValidationError("Неизвестный тип заявки.", map[string]any{"type": d.Type})
	}
	if strings.TrimSpace(d.Description) == "" {
		return apperrors.NewValidationError("Пожалуйста, введите описание проблемы текстом.", nil)
	}
	switch d.Urgency {
	case domain.UrgencyASAP:
	case domain.UrgencyDate:
		if _, err := time.Parse(domain.DueDateLayout, d.DueDate); err != nil {
			return apperrors.NewValidationError(DueDateFormatError, map[string]any{"due_date": d.DueDate})
		}
	default:
		return apperrors.NewValidationError("Выберите срочность заявки.", nil)
	}
	return nil
}

// DueDateFormatError is shown when a due date does not parse.
const DueDateFormatError = "Неверный формат даты и времени. Пожалуйста, используйте формат ГГГГ-ММ-ДД ЧЧ:ММ (например, 2025-12-31 10:00)."

// IntakeService stores new requests and hands them to the fan-out.
type IntakeService struct {
	base
	fanout *FanoutService
}

// NewIntakeService creates the service.
func NewIntakeService(deps Dependencies, fanout *FanoutService) *IntakeService {
	return &IntakeService{base: newBase(deps), fanout: fanout}
}

// Submit persists draft for userID and notifies the matching admins.
func (s *IntakeService) Submit(ctx context.Context, userID int64, draft Draft) (*domain.Request, error) {
	creator := s.loadUser(ctx, userID)
	if creator == nil || !creator.Registered {
		return nil, apperrors.NewPreconditionFailed(
			"Вы не зарегистрированы или регистрация не завершена. Пожалуйста, начните с команды /start.", nil)
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	req := &domain.Request{
		CreatorID:     userID,
		Type:          draft.Type,
		CategoryID:    draft.CategoryID,
		SubcategoryID: draft.SubcategoryID,
		Description:   strings.TrimSpace(draft.Description),
		Urgency:       draft.Urgency,
		Attachment:    draft.Attachment,
		Car:           draft.Car,
		Status:        domain.StatusReceived,
		AdminMessages: domain.AdminMessageMap{},
		CreatedAt:     s.now(),
	}
	if draft.Urgency == domain.UrgencyDate {
		req.DueDate = draft.DueDate
	}
	if err := s.store.Requests.Create(ctx, req); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("create request: %w", err))
	}
	if req.CategoryID != nil {
		if err := s.store.Categories.IncrementCount(ctx, *req.CategoryID, req.SubcategoryID); err != nil {
			s.logger.Warn("increment category count", zap.Int64("request_id", req.ID), zap.Error(err))
		}
	}

	s.send(ctx, userID, "Ваша заявка успешно создана и будет рассмотрена.", MainMenu(creator.Role))

	notified, err := s.fanout.Notify(ctx, req, creator)
	if err != nil {
		s.logger.Error("notify admins", zap.Int64("request_id", req.ID), zap.Error(err))
	}
	s.publishEvent(ctx, events.EventRequestCreated, req.ID, userID, events.RequestCreatedPayload{
		Type:        req.Type,
		Urgency:     req.Urgency,
		DueDate:     req.DueDate,
		Description: req.Description,
		Notified:    notified,
	})
	s.logger.Info("request created",
		zap.Int64("request_id", req.ID),
		zap.Int64("creator_id", userID),
		zap.String("type", string(req.Type)),
		zap.Int("notified_admins", notified))
	return req, nil
}

// Categories returns the category choices for requestType, most used first.
func (s *IntakeService) Categories(ctx context.Context, requestType domain.RequestType) ([]domain.Category, error) {
	categories, err := s.store.Categories.ListRanked(ctx, requestType)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("list categories: %w", err))
	}
	return categories, nil
}

// Subcategories returns the choices under categoryID, most used first.
func (s *IntakeService) Subcategories(ctx context.Context, categoryID int64) ([]domain.Subcategory, error) {
	subs, err := s.store.Categories.ListSubcategoriesRanked(ctx, categoryID)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("list subcategories: %w", err))
	}
	return subs, nil
}
