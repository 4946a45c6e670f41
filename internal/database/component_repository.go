package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/gridops/netops-engine/internal/opserr"
)

// ComponentRepository handles network component data operations.
type ComponentRepository struct {
	BaseRepository
	logger *slog.Logger
}

// NewComponentRepository creates a new component repository.
func NewComponentRepository(db *sqlx.DB, logger *slog.Logger) *ComponentRepository {
	return &ComponentRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

// GetByID retrieves a component by ID.
func (r *ComponentRepository) GetByID(ctx context.Context, id int64) (*Component, error) {
	query := `SELECT * FROM network_components WHERE id = $1`

	var component Component
	err := r.db.GetContext(ctx, &component, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, opserr.New(opserr.KindNotFound, "component %d not found", id)
	}
	if err != nil {
		r.logger.Error("Failed to get component by ID", "component_id", id, "error", err)
		return nil, fmt.Errorf("failed to get component by ID: %w", err)
	}

	return &component, nil
}

// SetStatus updates a component's status. When fromStatus is non-empty the
// update only applies if the component currently holds that status; zero rows
// affected is not an error in that case (the guard simply did not fire).
func (r *ComponentRepository) SetStatus(ctx context.Context, id int64, status, fromStatus ComponentStatus) (bool, error) {
	var result sql.Result
	var err error

	if fromStatus != "" {
		query := `
			UPDATE network_components SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = $3`
		result, err = r.db.ExecContext(ctx, query, id, status, fromStatus)
	} else {
		query := `
			UPDATE network_components SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status <> $2`
		result, err = r.db.ExecContext(ctx, query, id, status)
	}
	if err != nil {
		r.logger.Error("Failed to set component status",
			"component_id", id, "status", status, "error", err)
		return false, fmt.Errorf("failed to set component status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		r.logger.Info("Component status changed", "component_id", id, "status", status)
	}
	return rowsAffected > 0, nil
}

// Counts returns the total number of components and how many are active.
func (r *ComponentRepository) Counts(ctx context.Context) (total, active int64, err error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'active') AS active
		FROM network_components`

	row := struct {
		Total  int64 `db:"total"`
		Active int64 `db:"active"`
	}{}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		r.logger.Error("Failed to count components", "error", err)
		return 0, 0, fmt.Errorf("failed to count components: %w", err)
	}

	return row.Total, row.Active, nil
}
