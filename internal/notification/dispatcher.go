// Package notification inserts per-user notification rows. Dispatch is
// best-effort: a single insert attempt, no retries, and failures never abort
// or roll back the triggering business operation.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gridops/netops-engine/internal/database"
	"github.com/gridops/netops-engine/internal/metrics"
)

// Notification types written by the core.
const (
	TypeAssignment   = "assignment"
	TypeStatusChange = "status_change"
	TypeLowStock     = "low_stock"
)

// Store persists notification rows.
type Store interface {
	Create(ctx context.Context, n *database.Notification) error
}

// Directory resolves notification recipients.
type Directory interface {
	ListActiveByRoles(ctx context.Context, roles ...database.Role) ([]*database.User, error)
}

// Dispatcher creates notification rows for assignment, status-change and
// low-stock events.
type Dispatcher struct {
	store   Store
	users   Directory
	logger  *slog.Logger
	metrics *metrics.Collector
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(store Store, users Directory, logger *slog.Logger, collector *metrics.Collector) *Dispatcher {
	return &Dispatcher{store: store, users: users, logger: logger, metrics: collector}
}

// Notify inserts one notification row. Failure is logged and swallowed.
func (d *Dispatcher) Notify(ctx context.Context, userID int64, notifType, message, link string) {
	n := &database.Notification{
		UserID:    userID,
		NotifType: notifType,
		Message:   message,
		Link:      link,
	}

	if err := d.store.Create(ctx, n); err != nil {
		d.metrics.NotificationFailures.Inc()
		d.logger.Error("Failed to create notification",
			"user_id", userID, "type", notifType, "error", err)
		return
	}

	d.metrics.NotificationsCreated.WithLabelValues(notifType).Inc()
}

// NotifyAssignment tells a technician they were assigned a fault.
func (d *Dispatcher) NotifyAssignment(ctx context.Context, technicianID, faultID int64, title string) {
	d.Notify(ctx, technicianID, TypeAssignment,
		fmt.Sprintf("You have been assigned fault #%d: %s", faultID, title),
		faultLink(faultID))
}

// NotifyStatusChange tells the original reporter the fault status changed.
// Skipped when the reporter performed the change themselves.
func (d *Dispatcher) NotifyStatusChange(ctx context.Context, reporterID, actorID, faultID int64, from, to database.FaultStatus) {
	if reporterID == actorID {
		return
	}
	d.Notify(ctx, reporterID, TypeStatusChange,
		fmt.Sprintf("Fault #%d moved from %s to %s", faultID, from, to),
		faultLink(faultID))
}

// NotifyLowStock fans a low-stock warning out to every active admin and
// manager. Known limitation: repeated small debits on the same item re-alert
// every recipient; alerts are not de-duplicated.
func (d *Dispatcher) NotifyLowStock(ctx context.Context, itemID int64, itemName string, quantity, minLevel int64) {
	recipients, err := d.users.ListActiveByRoles(ctx, database.RoleAdmin, database.RoleManager)
	if err != nil {
		d.metrics.NotificationFailures.Inc()
		d.logger.Error("Failed to resolve low-stock recipients",
			"item_id", itemID, "error", err)
		return
	}

	message := fmt.Sprintf("Low stock: %s has %d left (minimum %d)",
		itemName, quantity, minLevel)
	link := fmt.Sprintf("/inventory/%d", itemID)

	for _, user := range recipients {
		d.Notify(ctx, user.ID, TypeLowStock, message, link)
	}
}

func faultLink(faultID int64) string {
	return fmt.Sprintf("/faults/%d", faultID)
}
