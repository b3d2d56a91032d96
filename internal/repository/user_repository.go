package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
)

// UserRepository defines persistence access for chat users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

// Create inserts the user; an existing row with the same id is left untouched.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, full_name, phone, organization, office_number, registered, role)
        VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
        ON CONFLICT (id) DO NOTHING`

	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.FullName,
		user.Phone,
		user.Organization,
		user.OfficeNumber,
		user.Registered,
		user.Role,
	)
	return err
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET full_name=$1, phone=$2, organization=$3, office_number=NULLIF($4, ''),
            registered=$5, role=$6
        WHERE id=$7`

	cmd, err := r.pool.Exec(ctx, query,
		user.FullName,
		user.Phone,
		user.Organization,
		user.OfficeNumber,
		user.Registered,
		user.Role,
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `
        SELECT id, full_name, phone, organization, COALESCE(office_number, ''), registered, role, created_at
        FROM users WHERE id=$1`

	var user domain.User
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.FullName,
		&user.Phone,
		&user.Organization,
		&user.OfficeNumber,
		&user.Registered,
		&user.Role,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
