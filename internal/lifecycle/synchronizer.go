package lifecycle

import (
	"context"
	"log/slog"

	"github.com/gridops/netops-engine/internal/database"
)

// Synchronizer is the only writer of component status triggered by fault
// events. Operator-set states (maintenance, inactive) are never overridden.
type Synchronizer struct {
	components ComponentStore
	auditor    Auditor
	logger     *slog.Logger
}

// NewSynchronizer creates a new component status synchronizer.
func NewSynchronizer(components ComponentStore, auditor Auditor, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{components: components, auditor: auditor, logger: logger}
}

// MarkFaulty flips a component to faulty. No-op if already faulty.
func (s *Synchronizer) MarkFaulty(ctx context.Context, actorID, componentID int64) error {
	changed, err := s.components.SetStatus(ctx, componentID, database.ComponentFaulty, "")
	if err != nil {
		return err
	}
	if changed {
		s.auditor.Record(ctx, actorID, "component.mark_faulty", "component", componentID,
			"status set to faulty by fault lifecycle")
	}
	return nil
}

// MarkActive flips a component back to active, but only from faulty: a
// component an operator placed in maintenance or inactive stays there.
func (s *Synchronizer) MarkActive(ctx context.Context, actorID, componentID int64) error {
	changed, err := s.components.SetStatus(ctx, componentID, database.ComponentActive, database.ComponentFaulty)
	if err != nil {
		return err
	}
	if changed {
		s.auditor.Record(ctx, actorID, "component.mark_active", "component", componentID,
			"status restored to active by fault lifecycle")
	}
	return nil
}
