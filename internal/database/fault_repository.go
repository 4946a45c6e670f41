package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gridops/netops-engine/internal/opserr"
)

// FaultRepository handles fault data operations. It is the only writer of
// fault rows; updates are guarded by the fault's version column.
type FaultRepository struct {
	BaseRepository
	logger *slog.Logger
}

// NewFaultRepository creates a new fault repository.
func NewFaultRepository(db *sqlx.DB, logger *slog.Logger) *FaultRepository {
	return &FaultRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

// Create inserts a new fault and fills in its generated ID.
func (r *FaultRepository) Create(ctx context.Context, fault *Fault) error {
	query := `
		INSERT INTO faults (
			component_id, reported_by, assigned_to, title, category, description,
			priority, status, reported_at, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $10
		) RETURNING id`

	now := time.Now()
	fault.ReportedAt = now
	fault.CreatedAt = now
	fault.UpdatedAt = now
	fault.Version = 1

	err := r.db.QueryRowxContext(ctx, query,
		fault.ComponentID, fault.ReportedBy, fault.AssignedTo, fault.Title,
		fault.Category, fault.Description, fault.Priority, fault.Status,
		fault.ReportedAt, now,
	).Scan(&fault.ID)
	if err != nil {
		r.logger.Error("Failed to create fault", "title", fault.Title, "error", err)
		return fmt.Errorf("failed to create fault: %w", err)
	}

	r.logger.Info("Fault created", "fault_id", fault.ID, "priority", fault.Priority)
	return nil
}

// GetByID retrieves a fault by ID.
func (r *FaultRepository) GetByID(ctx context.Context, id int64) (*Fault, error) {
	query := `SELECT * FROM faults WHERE id = $1`

	var fault Fault
	err := r.db.GetContext(ctx, &fault, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, opserr.New(opserr.KindNotFound, "fault %d not found", id)
	}
	if err != nil {
		r.logger.Error("Failed to get fault by ID", "fault_id", id, "error", err)
		return nil, fmt.Errorf("failed to get fault by ID: %w", err)
	}

	return &fault, nil
}

// Update persists a mutated fault. The update is applied only when the row
// still carries the version the fault was read at; a stale version yields a
// Conflict error and the caller must re-read and retry.
func (r *FaultRepository) Update(ctx context.Context, fault *Fault) error {
	query := `
		UPDATE faults SET
			component_id = :component_id,
			assigned_to = :assigned_to,
			title = :title,
			category = :category,
			description = :description,
			priority = :priority,
			status = :status,
			resolution_notes = :resolution_notes,
			started_at = :started_at,
			resolved_at = :resolved_at,
			scheduled_for = :scheduled_for,
			response_time_minutes = :response_time_minutes,
			version = version + 1,
			updated_at = :updated_at
		WHERE id = :id AND version = :version`

	fault.UpdatedAt = time.Now()

	result, err := r.db.NamedExecContext(ctx, query, fault)
	if err != nil {
		r.logger.Error("Failed to update fault", "fault_id", fault.ID, "error", err)
		return fmt.Errorf("failed to update fault: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM faults WHERE id = $1)`, fault.ID); err != nil {
			return fmt.Errorf("failed to check fault existence: %w", err)
		}
		if !exists {
			return opserr.New(opserr.KindNotFound, "fault %d not found", fault.ID)
		}
		return opserr.New(opserr.KindConflict,
			"fault %d was modified concurrently (version %d is stale)", fault.ID, fault.Version)
	}

	fault.Version++
	r.logger.Info("Fault updated", "fault_id", fault.ID, "status", fault.Status, "version", fault.Version)
	return nil
}

// List retrieves faults with filtering and pagination.
func (r *FaultRepository) List(ctx context.Context, filter Filter) ([]*Fault, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 0

	if filter.Status != "" {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("priority = $%d", argIndex))
		args = append(args, filter.Priority)
	}
	if filter.ComponentID > 0 {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("component_id = $%d", argIndex))
		args = append(args, filter.ComponentID)
	}
	if filter.AssignedTo > 0 {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", argIndex))
		args = append(args, filter.AssignedTo)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM faults %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		r.logger.Error("Failed to count faults", "error", err)
		return nil, 0, fmt.Errorf("failed to count faults: %w", err)
	}

	limitClause := ""
	if filter.Limit > 0 {
		argIndex++
		limitClause = fmt.Sprintf("LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			argIndex++
			limitClause += fmt.Sprintf(" OFFSET $%d", argIndex)
			args = append(args, filter.Offset)
		}
	}

	dataQuery := fmt.Sprintf(
		"SELECT * FROM faults %s ORDER BY reported_at DESC %s", whereClause, limitClause)

	var faults []*Fault
	if err := r.db.SelectContext(ctx, &faults, dataQuery, args...); err != nil {
		r.logger.Error("Failed to list faults", "error", err)
		return nil, 0, fmt.Errorf("failed to list faults: %w", err)
	}

	return faults, total, nil
}

// CountActiveForComponent counts faults against a component that are still
// open, pending, or in progress, excluding the given fault. Used as the
// reactivation guard before flipping a component back to active.
func (r *FaultRepository) CountActiveForComponent(ctx context.Context, componentID, excludeFaultID int64) (int64, error) {
	query := `
		SELECT COUNT(*) FROM faults
		WHERE component_id = $1
		AND id <> $2
		AND status IN ('open', 'pending', 'in_progress')`

	var count int64
	if err := r.db.GetContext(ctx, &count, query, componentID, excludeFaultID); err != nil {
		r.logger.Error("Failed to count active faults for component",
			"component_id", componentID, "error", err)
		return 0, fmt.Errorf("failed to count active faults for component: %w", err)
	}

	return count, nil
}

// CountReportedSince counts faults reported at or after the given time.
func (r *FaultRepository) CountReportedSince(ctx context.Context, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM faults WHERE reported_at >= $1`

	var count int64
	if err := r.db.GetContext(ctx, &count, query, since); err != nil {
		r.logger.Error("Failed to count reported faults", "error", err)
		return 0, fmt.Errorf("failed to count reported faults: %w", err)
	}

	return count, nil
}

// CountSettledReportedSince counts faults reported in the window that have
// reached resolved or closed.
func (r *FaultRepository) CountSettledReportedSince(ctx context.Context, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM faults
		WHERE reported_at >= $1 AND status IN ('resolved', 'closed')`

	var count int64
	if err := r.db.GetContext(ctx, &count, query, since); err != nil {
		r.logger.Error("Failed to count settled faults", "error", err)
		return 0, fmt.Errorf("failed to count settled faults: %w", err)
	}

	return count, nil
}

// ResolutionStatsSince aggregates response times over faults resolved within
// the window.
func (r *FaultRepository) ResolutionStatsSince(ctx context.Context, since time.Time) (*ResolutionStats, error) {
	query := `
		SELECT
			COUNT(*) AS resolved_count,
			COALESCE(SUM(response_time_minutes), 0) AS total_response_mins,
			COALESCE(AVG(response_time_minutes), 0) AS avg_response_minutes
		FROM faults
		WHERE resolved_at >= $1 AND response_time_minutes IS NOT NULL`

	var stats ResolutionStats
	if err := r.db.GetContext(ctx, &stats, query, since); err != nil {
		r.logger.Error("Failed to get resolution stats", "error", err)
		return nil, fmt.Errorf("failed to get resolution stats: %w", err)
	}

	return &stats, nil
}

// TechnicianPerformanceSince aggregates per-technician fault handling over
// faults reported within the window.
func (r *FaultRepository) TechnicianPerformanceSince(ctx context.Context, since time.Time) ([]*TechnicianPerformance, error) {
	query := `
		SELECT
			u.id AS technician_id,
			u.name AS technician_name,
			COUNT(f.id) AS assigned_count,
			COUNT(f.id) FILTER (WHERE f.status IN ('resolved', 'closed')) AS resolved_count,
			AVG(f.response_time_minutes) FILTER (WHERE f.response_time_minutes IS NOT NULL) AS avg_resolution_minutes
		FROM users u
		JOIN faults f ON f.assigned_to = u.id
		WHERE f.reported_at >= $1
		GROUP BY u.id, u.name
		ORDER BY resolved_count DESC`

	var perf []*TechnicianPerformance
	if err := r.db.SelectContext(ctx, &perf, query, since); err != nil {
		r.logger.Error("Failed to get technician performance", "error", err)
		return nil, fmt.Errorf("failed to get technician performance: %w", err)
	}

	return perf, nil
}
