package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
)

// AdminRepository stores admin group membership.
type AdminRepository interface {
	ListByType(ctx context.Context, adminType domain.AdminType) ([]domain.Admin, error)
	ListAll(ctx context.Context) ([]domain.Admin, error)
	Upsert(ctx context.Context, admin domain.Admin) error
	Delete(ctx context.Context, admin domain.Admin) error
}

type adminRepository struct {
	pool *pgxpool.Pool
}

// NewAdminRepository instantiates repository.
func NewAdminRepository(pool *pgxpool.Pool) AdminRepository {
	return &adminRepository{pool: pool}
}

func (r *adminRepository) ListByType(ctx context.Context, adminType domain.AdminType) ([]domain.Admin, error) {
	return r.list(ctx, `SELECT id, admin_type FROM admins WHERE admin_type=$1 ORDER BY id`, adminType)
}

func (r *adminRepository) ListAll(ctx context.Context) ([]domain.Admin, error) {
	return r.list(ctx, `SELECT id, admin_type FROM admins ORDER BY admin_type, id`)
}

func (r *adminRepository) list(ctx context.Context, query string, args ...any) ([]domain.Admin, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []domain.Admin
	for rows.Next() {
		var admin domain.Admin
		if err := rows.Scan(&admin.ID, &admin.Type); err != nil {
			return nil, err
		}
		admins = append(admins, admin)
	}
	return admins, rows.Err()
}

func (r *adminRepository) Upsert(ctx context.Context, admin domain.Admin) error {
	const query = `INSERT INTO admins (id, admin_type) VALUES ($1, $2) ON CONFLICT (id, admin_type) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, admin.ID, admin.Type)
	return err
}

func (r *adminRepository) Delete(ctx context.Context, admin domain.Admin) error {
	const query = `DELETE FROM admins WHERE id=$1 AND admin_type=$2`
	_, err := r.pool.Exec(ctx, query, admin.ID, admin.Type)
	return err
}
