// Package memory keeps the bot's entities in process memory. It backs the bot
// when no database is configured and is the store used by service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/repository"
)

type state struct {
	mu            sync.Mutex
	users         map[int64]domain.User
	requests      map[int64]*domain.Request
	admins        map[domain.Admin]struct{}
	categories    map[int64]domain.Category
	subcategories map[int64]domain.Subcategory
	nextRequestID int64
	nextCatID     int64
	nextSubID     int64
	now           func() time.Time
}

// NewStore returns a repository.Store whose repositories share one in-memory state.
func NewStore() *repository.Store {
	s := &state{
		users:         make(map[int64]domain.User),
		requests:      make(map[int64]*domain.Request),
		admins:        make(map[domain.Admin]struct{}),
		categories:    make(map[int64]domain.Category),
		subcategories: make(map[int64]domain.Subcategory),
		now:           time.Now,
	}
	return &repository.Store{
		Users:      &users{s},
		Requests:   &requests{s},
		Admins:     &admins{s},
		Categories: &categories{s},
	}
}

type users struct{ *state }

func (r *users) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		return nil
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	user.CreatedAt = r.now()
	r.users[user.ID] = *user
	return nil
}

func (r *users) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	updated := *user
	updated.CreatedAt = existing.CreatedAt
	r.users[user.ID] = updated
	return nil
}

func (r *users) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

type requests struct{ *state }

func (r *requests) Create(_ context.Context, req *domain.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextRequestID++
	req.ID = r.nextRequestID
	req.CreatedAt = r.now()
	if req.Status == "" {
		req.Status = domain.StatusReceived
	}
	r.requests[req.ID] = req.Clone()
	return nil
}

func (r *requests) GetByID(_ context.Context, id int64) (*domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return req.Clone(), nil
}

func (r *requests) Update(_ context.Context, req *domain.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[req.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.requests[req.ID] = req.Clone()
	return nil
}

func (r *requests) UpdateIfStatus(_ context.Context, req *domain.Request, expected domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.requests[req.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if current.Status != expected {
		return repository.ErrStatusConflict
	}
	r.requests[req.ID] = req.Clone()
	return nil
}

func (r *requests) List(_ context.Context, filter repository.RequestFilter) ([]domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.Request
	for _, req := range r.requests {
		if matches(req, filter) {
			result = append(result, *req.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func matches(req *domain.Request, filter repository.RequestFilter) bool {
	if filter.CreatorID != nil && req.CreatorID != *filter.CreatorID {
		return false
	}
	if filter.AdminID != nil {
		assigned := req.AssignedAdminID != nil && *req.AssignedAdminID == *filter.AdminID
		completed := req.CompletedByID != nil && *req.CompletedByID == *filter.AdminID
		if !assigned && !completed {
			return false
		}
	}
	if filter.Type != nil && req.Type != *filter.Type {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, s := range filter.Statuses {
			if req.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.DoneSince != nil && req.Status == domain.StatusDone {
		if req.CompletedAt == nil || req.CompletedAt.Before(*filter.DoneSince) {
			return false
		}
	}
	return true
}

func (r *requests) CountByStatus(_ context.Context) (map[domain.Status]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.Status]int)
	for _, req := range r.requests {
		counts[req.Status]++
	}
	return counts, nil
}

type admins struct{ *state }

func (r *admins) ListByType(_ context.Context, adminType domain.AdminType) ([]domain.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Admin
	for admin := range r.admins {
		if admin.Type == adminType {
			result = append(result, admin)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *admins) ListAll(_ context.Context) ([]domain.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]domain.Admin, 0, len(r.admins))
	for admin := range r.admins {
		result = append(result, admin)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Type != result[j].Type {
			return result[i].Type < result[j].Type
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *admins) Upsert(_ context.Context, admin domain.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admins[admin] = struct{}{}
	return nil
}

func (r *admins) Delete(_ context.Context, admin domain.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.admins, admin)
	return nil
}

type categories struct{ *state }

func (r *categories) Upsert(_ context.Context, category *domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.categories {
		if existing.Name == category.Name && existing.Type == category.Type {
			*category = existing
			return nil
		}
	}
	r.nextCatID++
	category.ID = r.nextCatID
	r.categories[category.ID] = *category
	return nil
}

func (r *categories) UpsertSubcategory(_ context.Context, sub *domain.Subcategory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.categories[sub.CategoryID]; !ok {
		return pgx.ErrNoRows
	}
	for _, existing := range r.subcategories {
		if existing.CategoryID == sub.CategoryID && existing.Name == sub.Name {
			*sub = existing
			return nil
		}
	}
	r.nextSubID++
	sub.ID = r.nextSubID
	r.subcategories[sub.ID] = *sub
	return nil
}

func (r *categories) ListRanked(_ context.Context, requestType domain.RequestType) ([]domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Category
	for _, c := range r.categories {
		if c.Type == requestType {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].RequestCount == result[j].RequestCount {
			return result[i].ID < result[j].ID
		}
		return result[i].RequestCount > result[j].RequestCount
	})
	return result, nil
}

func (r *categories) ListSubcategoriesRanked(_ context.Context, categoryID int64) ([]domain.Subcategory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Subcategory
	for _, s := range r.subcategories {
		if s.CategoryID == categoryID {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].RequestCount == result[j].RequestCount {
			return result[i].ID < result[j].ID
		}
		return result[i].RequestCount > result[j].RequestCount
	})
	return result, nil
}

func (r *categories) IncrementCount(_ context.Context, categoryID int64, subcategoryID *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[categoryID]
	if !ok {
		return pgx.ErrNoRows
	}
	c.RequestCount++
	r.categories[categoryID] = c
	if subcategoryID != nil {
		if s, ok := r.subcategories[*subcategoryID]; ok {
			s.RequestCount++
			r.subcategories[s.ID] = s
		}
	}
	return nil
}
