package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStatusConflict is returned by UpdateIfStatus when the stored status no longer
// matches the expected one.
var ErrStatusConflict = errors.New("repository: request status changed concurrently")

// Store groups the repositories the bot works with.
type Store struct {
	Users      UserRepository
	Requests   RequestRepository
	Admins     AdminRepository
	Categories CategoryRepository
}

// NewPostgresStore wires every repository to the same pool.
func NewPostgresStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Users:      NewUserRepository(pool),
		Requests:   NewRequestRepository(pool),
		Admins:     NewAdminRepository(pool),
		Categories: NewCategoryRepository(pool),
	}
}
