// Package maintenance records completed maintenance work together with the
// parts it consumed. The log row and every part debit commit atomically in
// the store; low-stock alerts fire only after that commit succeeds.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/gridops/netops-engine/internal/database"
	"github.com/gridops/netops-engine/internal/opserr"
)

// Store persists maintenance logs with their part debits.
type Store interface {
	CreateWithParts(ctx context.Context, log *database.MaintenanceLog, parts []database.PartUse, actorID int64) (*database.MaintenanceResult, error)
	ListByComponent(ctx context.Context, componentID int64, limit int) ([]*database.MaintenanceLog, error)
}

// ComponentStore verifies the target component exists.
type ComponentStore interface {
	GetByID(ctx context.Context, id int64) (*database.Component, error)
}

// StockFlagger raises low-stock alerts for committed movements.
type StockFlagger interface {
	FlagIfLow(ctx context.Context, outcome *database.MovementOutcome)
}

// Auditor records best-effort audit entries.
type Auditor interface {
	Record(ctx context.Context, actorID int64, action, entityType string, entityID int64, details string)
}

// RecordInput is a request to log maintenance work.
type RecordInput struct {
	ComponentID     int64              `json:"component_id" validate:"required,gt=0"`
	ActionTaken     string             `json:"action_taken" validate:"required"`
	Result          string             `json:"result"`
	DurationMinutes int64              `json:"duration_minutes" validate:"gte=0"`
	PerformedAt     time.Time          `json:"performed_at"`
	PartsUsed       []database.PartUse `json:"parts_used" validate:"dive"`
}

// Recorder validates and persists maintenance records.
type Recorder struct {
	store      Store
	components ComponentStore
	stock      StockFlagger
	auditor    Auditor
	logger     *slog.Logger
	validate   *validator.Validate
}

// NewRecorder creates a new maintenance recorder.
func NewRecorder(store Store, components ComponentStore, stock StockFlagger, auditor Auditor, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:      store,
		components: components,
		stock:      stock,
		auditor:    auditor,
		logger:     logger,
		validate:   validator.New(),
	}
}

// Record persists one maintenance log and debits its parts atomically. If any
// part lacks stock nothing is written, including the log row itself.
func (r *Recorder) Record(ctx context.Context, actorID int64, input RecordInput) (*database.MaintenanceResult, error) {
	if err := r.validate.Struct(input); err != nil {
		return nil, opserr.Wrap(opserr.KindValidation, err, "invalid maintenance record")
	}
	seen := make(map[int64]bool, len(input.PartsUsed))
	for _, part := range input.PartsUsed {
		if seen[part.ItemID] {
			return nil, opserr.New(opserr.KindValidation, "item %d listed more than once", part.ItemID)
		}
		seen[part.ItemID] = true
	}

	if _, err := r.components.GetByID(ctx, input.ComponentID); err != nil {
		return nil, err
	}

	log := &database.MaintenanceLog{
		ComponentID:     input.ComponentID,
		TechnicianID:    actorID,
		ActionTaken:     input.ActionTaken,
		Result:          input.Result,
		DurationMinutes: input.DurationMinutes,
		PerformedAt:     input.PerformedAt,
	}

	result, err := r.store.CreateWithParts(ctx, log, input.PartsUsed, actorID)
	if err != nil {
		return nil, err
	}

	// The transaction is committed; alerts come after so a notification
	// failure can never undo recorded work.
	for _, outcome := range result.Outcomes {
		r.stock.FlagIfLow(ctx, outcome)
	}

	r.auditor.Record(ctx, actorID, "maintenance.record", "maintenance_log", log.ID,
		fmt.Sprintf("component %d: %s (%d parts)", input.ComponentID, input.ActionTaken, len(input.PartsUsed)))
	return result, nil
}

// History retrieves the maintenance history for a component, most recent
// first.
func (r *Recorder) History(ctx context.Context, componentID int64, limit int) ([]*database.MaintenanceLog, error) {
	if _, err := r.components.GetByID(ctx, componentID); err != nil {
		return nil, err
	}
	return r.store.ListByComponent(ctx, componentID, limit)
}
