package scheduler

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gridops/netops-engine/internal/config"
	"github.com/gridops/netops-engine/internal/database"
)

type fakeNotificationStore struct {
	cutoff time.Time
}

func (s *fakeNotificationStore) DeleteReadOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return 3, nil
}

type fakeAuditStore struct {
	cutoff time.Time
}

func (s *fakeAuditStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return 12, nil
}

type fakeInventoryStore struct {
	low []*database.InventoryItem
}

func (s *fakeInventoryStore) ListAtOrBelowMinLevel(_ context.Context) ([]*database.InventoryItem, error) {
	return s.low, nil
}

type recordingNotifier struct {
	items []int64
}

func (n *recordingNotifier) NotifyLowStock(_ context.Context, itemID int64, _ string, _, _ int64) {
	n.items = append(n.items, itemID)
}

func newTestScheduler(cfg config.SchedulerConfig) (*Scheduler, *fakeNotificationStore, *fakeAuditStore, *recordingNotifier) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	notifications := &fakeNotificationStore{}
	audits := &fakeAuditStore{}
	notifier := &recordingNotifier{}
	inventory := &fakeInventoryStore{low: []*database.InventoryItem{
		{ID: 2, Name: "Patch cable", Quantity: 1, MinLevel: 5},
	}}
	return New(cfg, notifications, audits, inventory, notifier, logger), notifications, audits, notifier
}

func TestScheduler(t *testing.T) {
	t.Run("Disabled Start Is A No Op", func(t *testing.T) {
		s, _, _, _ := newTestScheduler(config.SchedulerConfig{Enabled: false})
		assert.NoError(t, s.Start())
	})

	t.Run("Invalid Schedule Fails Start", func(t *testing.T) {
		s, _, _, _ := newTestScheduler(config.SchedulerConfig{
			Enabled:               true,
			CleanupSchedule:       "not a cron expr",
			LowStockSweepSchedule: "0 7 * * *",
		})
		assert.Error(t, s.Start())
	})

	t.Run("Retention Cleanup Uses Configured Windows", func(t *testing.T) {
		s, notifications, audits, _ := newTestScheduler(config.SchedulerConfig{
			NotificationRetentionDays: 30,
			AuditRetentionDays:        90,
		})

		before := time.Now()
		s.runRetentionCleanup()

		expectedNotif := before.AddDate(0, 0, -30)
		expectedAudit := before.AddDate(0, 0, -90)
		assert.WithinDuration(t, expectedNotif, notifications.cutoff, time.Minute)
		assert.WithinDuration(t, expectedAudit, audits.cutoff, time.Minute)
	})

	t.Run("Low Stock Sweep Notifies Per Item", func(t *testing.T) {
		s, _, _, notifier := newTestScheduler(config.SchedulerConfig{})

		s.runLowStockSweep()
		assert.Equal(t, []int64{2}, notifier.items)
	})
}
