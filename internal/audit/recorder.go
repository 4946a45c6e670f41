// Package audit appends immutable activity records for mutating operations.
// Recording is fire-and-forget: audit completeness is secondary to
// primary-operation availability, so failures are logged and swallowed.
package audit

import (
	"context"
	"log/slog"

	"github.com/gridops/netops-engine/internal/database"
	"github.com/gridops/netops-engine/internal/metrics"
	"github.com/gridops/netops-engine/internal/reqctx"
)

// Store persists audit entries.
type Store interface {
	Create(ctx context.Context, entry *database.AuditEntry) error
}

// Recorder writes audit entries without ever failing the caller.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Collector
}

// NewRecorder creates a new audit recorder.
func NewRecorder(store Store, logger *slog.Logger, collector *metrics.Collector) *Recorder {
	return &Recorder{store: store, logger: logger, metrics: collector}
}

// Record appends an audit entry for a mutating operation. Insert failures are
// logged and swallowed.
func (r *Recorder) Record(ctx context.Context, actorID int64, action, entityType string, entityID int64, details string) {
	entry := &database.AuditEntry{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		RequestID:  reqctx.RequestID(ctx),
	}

	if err := r.store.Create(ctx, entry); err != nil {
		r.metrics.AuditFailures.Inc()
		r.logger.Error("Failed to record audit entry",
			"action", action, "entity_type", entityType, "entity_id", entityID, "error", err)
	}
}
