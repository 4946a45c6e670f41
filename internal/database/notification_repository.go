package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gridops/netops-engine/internal/opserr"
)

// NotificationRepository handles notification rows.
type NotificationRepository struct {
	BaseRepository
	logger *slog.Logger
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *sqlx.DB, logger *slog.Logger) *NotificationRepository {
	return &NotificationRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

// Create inserts a notification row.
func (r *NotificationRepository) Create(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (user_id, notif_type, message, link, is_read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, NOW())
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query, n.UserID, n.NotifType, n.Message, n.Link).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// ListForUser retrieves the most recent notifications for a user.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT * FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	if unreadOnly {
		query = `
			SELECT * FROM notifications
			WHERE user_id = $1 AND is_read = FALSE
			ORDER BY created_at DESC
			LIMIT $2`
	}

	var notifications []*Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID, limit); err != nil {
		r.logger.Error("Failed to list notifications", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return notifications, nil
}

// MarkRead flags a notification as read, scoped to its recipient.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID int64) error {
	query := `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		r.logger.Error("Failed to mark notification read", "notification_id", id, "error", err)
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return opserr.New(opserr.KindNotFound, "notification %d not found for user %d", id, userID)
	}

	return nil
}

// DeleteReadOlderThan removes read notifications past the retention cutoff.
func (r *NotificationRepository) DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM notifications WHERE is_read = TRUE AND created_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		r.logger.Error("Failed to clean up notifications", "error", err)
		return 0, fmt.Errorf("failed to clean up notifications: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
