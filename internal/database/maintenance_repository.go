package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// PartUse is a requested stock consumption for one maintenance action.
type PartUse struct {
	ItemID   int64 `json:"item_id" validate:"required,gt=0"`
	Quantity int64 `json:"quantity" validate:"required,gt=0"`
}

// MaintenanceResult is the committed outcome of a maintenance record.
type MaintenanceResult struct {
	Log      *MaintenanceLog
	Outcomes []*MovementOutcome
}

// MaintenanceRepository handles maintenance log persistence. Part debits and
// the log row commit in a single transaction: a failed debit rolls back
// everything.
type MaintenanceRepository struct {
	BaseRepository
	inventory *InventoryRepository
	logger    *slog.Logger
}

// NewMaintenanceRepository creates a new maintenance repository.
func NewMaintenanceRepository(db *sqlx.DB, inventory *InventoryRepository, logger *slog.Logger) *MaintenanceRepository {
	return &MaintenanceRepository{
		BaseRepository: BaseRepository{db: db},
		inventory:      inventory,
		logger:         logger,
	}
}

// CreateWithParts inserts the maintenance log and debits every requested part
// within one transaction. If any debit fails, nothing persists.
func (r *MaintenanceRepository) CreateWithParts(ctx context.Context, log *MaintenanceLog, parts []PartUse, actorID int64) (*MaintenanceResult, error) {
	result := &MaintenanceResult{Log: log}

	err := r.Transaction(func(tx *sqlx.Tx) error {
		insert := `
			INSERT INTO maintenance_logs (
				component_id, technician_id, action_taken, result, duration_minutes,
				performed_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, NOW())
			RETURNING id, created_at`

		if log.PerformedAt.IsZero() {
			log.PerformedAt = time.Now()
		}

		err := tx.QueryRowxContext(ctx, insert,
			log.ComponentID, log.TechnicianID, log.ActionTaken, log.Result,
			log.DurationMinutes, log.PerformedAt,
		).Scan(&log.ID, &log.CreatedAt)
		if err != nil {
			r.logger.Error("Failed to create maintenance log",
				"component_id", log.ComponentID, "error", err)
			return fmt.Errorf("failed to create maintenance log: %w", err)
		}

		for _, part := range parts {
			reason := fmt.Sprintf("used in maintenance #%d", log.ID)
			outcome, err := r.inventory.ApplyMovementTx(
				ctx, tx, part.ItemID, -part.Quantity, actorID, reason, &log.ID)
			if err != nil {
				return err
			}
			result.Outcomes = append(result.Outcomes, outcome)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Maintenance recorded",
		"log_id", log.ID, "component_id", log.ComponentID, "parts", len(parts))
	return result, nil
}

// ListByComponent retrieves maintenance history for a component, most recent
// first.
func (r *MaintenanceRepository) ListByComponent(ctx context.Context, componentID int64, limit int) ([]*MaintenanceLog, error) {
	query := `
		SELECT * FROM maintenance_logs
		WHERE component_id = $1
		ORDER BY performed_at DESC
		LIMIT $2`

	if limit <= 0 {
		limit = 50
	}

	var logs []*MaintenanceLog
	if err := r.db.SelectContext(ctx, &logs, query, componentID, limit); err != nil {
		r.logger.Error("Failed to list maintenance logs", "component_id", componentID, "error", err)
		return nil, fmt.Errorf("failed to list maintenance logs: %w", err)
	}

	return logs, nil
}
