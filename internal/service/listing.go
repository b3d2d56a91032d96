package service

import (
	"context"
	"fmt"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/repository"
	apperrors "github.com/lipetsk-helpdesk/helpdesk-bot/pkg/util/errorutil"
)

const listingLimit = 50

// ListCreatorRequests returns userID's own requests, newest first. DONE requests
// drop out once they are older than the listing window.
func (s *LifecycleService) ListCreatorRequests(ctx context.Context, userID int64) ([]domain.Request, error) {
	return s.list(ctx, repository.RequestFilter{CreatorID: &userID})
}

// ListAdminRequests returns requests adminID is working on or has completed.
func (s *LifecycleService) ListAdminRequests(ctx context.Context, adminID int64) ([]domain.Request, error) {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.list(ctx, repository.RequestFilter{AdminID: &adminID})
}

// ListNewRequests returns the unclaimed and in-clarification requests of the
// admin's group.
func (s *LifecycleService) ListNewRequests(ctx context.Context, adminID int64) ([]domain.Request, error) {
	admin, err := s.requireAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}
	requestType := domain.RequestTypeIT
	if admin.Role == domain.RoleAHOAdmin {
		requestType = domain.RequestTypeAHO
	}
	return s.list(ctx, repository.RequestFilter{
		Type:     &requestType,
		Statuses: []domain.Status{domain.StatusReceived, domain.StatusClarifying},
	})
}

func (s *LifecycleService) list(ctx context.Context, filter repository.RequestFilter) ([]domain.Request, error) {
	since := s.now().Add(-s.doneWindow)
	filter.DoneSince = &since
	if filter.Limit == 0 {
		filter.Limit = listingLimit
	}
	requests, err := s.store.Requests.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("list requests: %w", err))
	}
	return requests, nil
}

// ShowCreatorRequests sends the creator one card per request with the actions
// still open to them.
func (s *LifecycleService) ShowCreatorRequests(ctx context.Context, userID int64) error {
	requests, err := s.ListCreatorRequests(ctx, userID)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		s.send(ctx, userID, "У вас пока нет активных заявок.", s.mainMenuFor(ctx, userID))
		return nil
	}
	for i := range requests {
		req := &requests[i]
		executorID := req.AssignedAdminID
		if executorID == nil {
			executorID = req.CompletedByID
		}
		s.send(ctx, userID, renderCreatorCard(req, s.loadUserPtr(ctx, executorID)), creatorKeyboard(req))
	}
	return nil
}

// ShowAdminRequests sends adminID the cards of the requests they handle.
func (s *LifecycleService) ShowAdminRequests(ctx context.Context, adminID int64) error {
	requests, err := s.ListAdminRequests(ctx, adminID)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		s.send(ctx, adminID, "У вас нет принятых заявок.", nil)
		return nil
	}
	s.sendAdminCards(ctx, adminID, requests)
	return nil
}

// ShowNewRequests sends adminID the cards still waiting for an executor.
func (s *LifecycleService) ShowNewRequests(ctx context.Context, adminID int64) error {
	requests, err := s.ListNewRequests(ctx, adminID)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		s.send(ctx, adminID, "Новых заявок нет.", nil)
		return nil
	}
	s.sendAdminCards(ctx, adminID, requests)
	return nil
}

func (s *LifecycleService) sendAdminCards(ctx context.Context, adminID int64, requests []domain.Request) {
	for i := range requests {
		req := &requests[i]
		executorID := req.AssignedAdminID
		if executorID == nil {
			executorID = req.CompletedByID
		}
		text := renderAdminCard(req, s.loadUser(ctx, req.CreatorID), s.loadUserPtr(ctx, executorID), false)
		s.sendCard(ctx, adminID, req, text, adminKeyboard(req, adminID, false))
	}
}

// StatusCounts reports how many requests sit in each status. Every status is
// present, zero or not.
func (s *LifecycleService) StatusCounts(ctx context.Context) (map[domain.Status]int, error) {
	counts, err := s.store.Requests.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("count requests: %w", err))
	}
	out := map[domain.Status]int{
		domain.StatusReceived:   0,
		domain.StatusAccepted:   0,
		domain.StatusClarifying: 0,
		domain.StatusDone:       0,
	}
	for status, n := range counts {
		out[status] = n
	}
	return out, nil
}
