package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
)

// CategoryRepository stores the category tree and its popularity counters.
type CategoryRepository interface {
	Upsert(ctx context.Context, category *domain.Category) error
	UpsertSubcategory(ctx context.Context, sub *domain.Subcategory) error
	ListRanked(ctx context.Context, requestType domain.RequestType) ([]domain.Category, error)
	ListSubcategoriesRanked(ctx context.Context, categoryID int64) ([]domain.Subcategory, error)
	IncrementCount(ctx context.Context, categoryID int64, subcategoryID *int64) error
}

type categoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository instantiates repository.
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool}
}

// Upsert inserts the category by (name, type) and fills in its id.
func (r *categoryRepository) Upsert(ctx context.Context, category *domain.Category) error {
	const query = `
        INSERT INTO categories (name, request_type)
        VALUES ($1, $2)
        ON CONFLICT (name, request_type) DO UPDATE SET name = EXCLUDED.name
        RETURNING id, request_count`
	return r.pool.QueryRow(ctx, query, category.Name, category.Type).
		Scan(&category.ID, &category.RequestCount)
}

func (r *categoryRepository) UpsertSubcategory(ctx context.Context, sub *domain.Subcategory) error {
	const query = `
        INSERT INTO subcategories (category_id, name)
        VALUES ($1, $2)
        ON CONFLICT (category_id, name) DO UPDATE SET name = EXCLUDED.name
        RETURNING id, request_count`
	return r.pool.QueryRow(ctx, query, sub.CategoryID, sub.Name).
		Scan(&sub.ID, &sub.RequestCount)
}

func (r *categoryRepository) ListRanked(ctx context.Context, requestType domain.RequestType) ([]domain.Category, error) {
	const query = `
        SELECT id, name, request_type, request_count
        FROM categories WHERE request_type=$1
        ORDER BY request_count DESC, id`

	rows, err := r.pool.Query(ctx, query, requestType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.RequestCount); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *categoryRepository) ListSubcategoriesRanked(ctx context.Context, categoryID int64) ([]domain.Subcategory, error) {
	const query = `
        SELECT id, category_id, name, request_count
        FROM subcategories WHERE category_id=$1
        ORDER BY request_count DESC, id`

	rows, err := r.pool.Query(ctx, query, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Subcategory
	for rows.Next() {
		var s domain.Subcategory
		if err := rows.Scan(&s.ID, &s.CategoryID, &s.Name, &s.RequestCount); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// IncrementCount bumps the popularity of a category and, when given, its subcategory.
func (r *categoryRepository) IncrementCount(ctx context.Context, categoryID int64, subcategoryID *int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `UPDATE categories SET request_count = request_count + 1 WHERE id=$1`, categoryID); err != nil {
		return err
	}
	if subcategoryID != nil {
		if _, err := tx.Exec(ctx, `UPDATE subcategories SET request_count = request_count + 1 WHERE id=$1`, *subcategoryID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
