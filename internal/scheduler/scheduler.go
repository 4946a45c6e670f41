// Package scheduler runs the engine's periodic background work: retention
// cleanup of notification and audit rows, and a daily low-stock sweep.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gridops/netops-engine/internal/config"
	"github.com/gridops/netops-engine/internal/database"
)

// NotificationStore prunes old read notifications.
type NotificationStore interface {
	DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditStore prunes old audit entries.
type AuditStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// InventoryStore lists items at or below their minimum level.
type InventoryStore interface {
	ListAtOrBelowMinLevel(ctx context.Context) ([]*database.InventoryItem, error)
}

// Notifier raises low-stock alerts.
type Notifier interface {
	NotifyLowStock(ctx context.Context, itemID int64, itemName string, quantity, minLevel int64)
}

// Scheduler owns the cron runner and its registered tasks.
type Scheduler struct {
	cron          *cron.Cron
	cfg           config.SchedulerConfig
	notifications NotificationStore
	audits        AuditStore
	inventory     InventoryStore
	notifier      Notifier
	logger        *slog.Logger
}

// New creates a scheduler with the tasks wired but not yet running.
func New(
	cfg config.SchedulerConfig,
	notifications NotificationStore,
	audits AuditStore,
	inventory InventoryStore,
	notifier Notifier,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		cron:          cron.New(),
		cfg:           cfg,
		notifications: notifications,
		audits:        audits,
		inventory:     inventory,
		notifier:      notifier,
		logger:        logger,
	}
}

// Start registers the cron entries and begins running them. Returns without
// starting when the scheduler is disabled in config.
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("Scheduler disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.CleanupSchedule, s.runRetentionCleanup); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.LowStockSweepSchedule, s.runLowStockSweep); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		"cleanup_schedule", s.cfg.CleanupSchedule,
		"low_stock_schedule", s.cfg.LowStockSweepSchedule)
	return nil
}

// Stop halts the cron runner and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) runRetentionCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := time.Now()

	notifCutoff := now.AddDate(0, 0, -s.cfg.NotificationRetentionDays)
	removed, err := s.notifications.DeleteReadOlderThan(ctx, notifCutoff)
	if err != nil {
		s.logger.Error("Notification retention cleanup failed", "error", err)
	} else if removed > 0 {
		s.logger.Info("Pruned read notifications", "removed", removed, "cutoff", notifCutoff)
	}

	auditCutoff := now.AddDate(0, 0, -s.cfg.AuditRetentionDays)
	removed, err = s.audits.DeleteOlderThan(ctx, auditCutoff)
	if err != nil {
		s.logger.Error("Audit retention cleanup failed", "error", err)
	} else if removed > 0 {
		s.logger.Info("Pruned audit entries", "removed", removed, "cutoff", auditCutoff)
	}
}

func (s *Scheduler) runLowStockSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	items, err := s.inventory.ListAtOrBelowMinLevel(ctx)
	if err != nil {
		s.logger.Error("Low-stock sweep failed", "error", err)
		return
	}

	for _, item := range items {
		s.notifier.NotifyLowStock(ctx, item.ID, item.Name, item.Quantity, item.MinLevel)
	}
	if len(items) > 0 {
		s.logger.Info("Low-stock sweep complete", "items_flagged", len(items))
	}
}
