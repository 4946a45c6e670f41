package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/gridops/netops-engine/internal/opserr"
)

// UserRepository reads the collaborator-owned users table. The core never
// writes users; it only checks technician eligibility and resolves
// notification recipients.
type UserRepository struct {
	BaseRepository
	logger *slog.Logger
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sqlx.DB, logger *slog.Logger) *UserRepository {
	return &UserRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user User
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, opserr.New(opserr.KindNotFound, "user %d not found", id)
	}
	if err != nil {
		r.logger.Error("Failed to get user by ID", "user_id", id, "error", err)
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return &user, nil
}

// ListActiveByRoles retrieves active users holding any of the given roles.
func (r *UserRepository) ListActiveByRoles(ctx context.Context, roles ...Role) ([]*User, error) {
	query := `
		SELECT * FROM users
		WHERE is_active = TRUE AND role = ANY($1)
		ORDER BY id ASC`

	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}

	var users []*User
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(names)); err != nil {
		r.logger.Error("Failed to list users by roles", "error", err)
		return nil, fmt.Errorf("failed to list users by roles: %w", err)
	}

	return users, nil
}
