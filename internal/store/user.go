package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dt-demo-gcp/authserver/types"
)

// ErrNotFound is returned when no user has the requested username.
var ErrNotFound = errors.New("user not found")

// UserRepository reads user records from PostgreSQL.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByUsername returns the user with exactly this username, or ErrNotFound.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `
		SELECT id, username, hashed_password
		FROM users
		WHERE username = $1`
	var user types.User
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}
