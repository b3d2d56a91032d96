package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
	apperrors "github.com/lipetsk-helpdesk/helpdesk-bot/pkg/util/errorutil"
)

// Registration is what the registration dialogue collects.
type Registration struct {
	FullName     string
	Phone        string
	Organization string
	OfficeNumber string
}

// UserService manages chat users.
type UserService struct {
	base
}

// NewUserService creates the service.
func NewUserService(deps Dependencies) *UserService {
	return &UserService{base: newBase(deps)}
}

// EnsureUser returns the user, creating an unregistered one on first contact.
// created reports whether the row is new.
func (s *UserService) EnsureUser(ctx context.Context, userID int64) (*domain.User, bool, error) {
	user, err := s.store.Users.GetByID(ctx, userID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, apperrors.NewInternalError(fmt.Errorf("load user %d: %w", userID, err))
	}

	user = &domain.User{ID: userID, Role: domain.RoleUser, CreatedAt: s.now()}
	if err := s.store.Users.Create(ctx, user); err != nil {
		return nil, false, apperrors.NewInternalError(fmt.Errorf("create user %d: %w", userID, err))
	}
	// Create ignores duplicates, so read back whatever won.
	stored, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, false, apperrors.NewInternalError(fmt.Errorf("reload user %d: %w", userID, err))
	}
	s.logger.Info("user created", zap.Int64("user_id", userID))
	return stored, true, nil
}

// Get returns a known user.
func (s *UserService) Get(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("Пользователь не найден. Пожалуйста, начните с команды /start.",
				map[string]any{"user_id": userID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// Register stores the registration fields and marks the user registered.
func (s *UserService) Register(ctx context.Context, userID int64, reg Registration) (*domain.User, error) {
	reg.FullName = strings.TrimSpace(reg.FullName)
	reg.Phone = strings.TrimSpace(reg.Phone)
	reg.Organization = strings.TrimSpace(reg.Organization)
	reg.OfficeNumber = strings.TrimSpace(reg.OfficeNumber)
	switch {
	case reg.FullName == "":
		return nil, apperrors.NewValidationError("Пожалуйста, введите ваше ФИО текстом.", nil)
	case reg.Phone == "":
		return nil, apperrors.NewValidationError("Пожалуйста, введите ваш номер телефона текстом.", nil)
	case reg.Organization == "":
		return nil, apperrors.NewValidationError("Пожалуйста, введите название вашей организации текстом.", nil)
	}

	user, _, err := s.EnsureUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.FullName = reg.FullName
	user.Phone = reg.Phone
	user.Organization = reg.Organization
	user.OfficeNumber = reg.OfficeNumber
	user.Registered = true
	if err := s.store.Users.Update(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("update user %d: %w", userID, err))
	}
	s.logger.Info("user registered", zap.Int64("user_id", userID), zap.String("organization", user.Organization))
	return user, nil
}
