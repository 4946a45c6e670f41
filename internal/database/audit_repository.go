package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// AuditRepository appends audit rows. The core never reads them back.
type AuditRepository struct {
	BaseRepository
	logger *slog.Logger
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sqlx.DB, logger *slog.Logger) *AuditRepository {
	return &AuditRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

// Create appends an audit entry.
func (r *AuditRepository) Create(ctx context.Context, entry *AuditEntry) error {
	query := `
		INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, details, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`

	_, err := r.db.ExecContext(ctx, query,
		entry.ActorID, entry.Action, entry.EntityType, entry.EntityID,
		entry.Details, entry.RequestID)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	return nil
}

// DeleteOlderThan removes audit rows past the retention cutoff.
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM audit_logs WHERE created_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		r.logger.Error("Failed to clean up audit logs", "error", err)
		return 0, fmt.Errorf("failed to clean up audit logs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
