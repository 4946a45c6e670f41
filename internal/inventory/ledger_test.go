package inventory

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridops/netops-engine/internal/database"
	"github.com/gridops/netops-engine/internal/metrics"
	"github.com/gridops/netops-engine/internal/opserr"
)

type fakeStore struct {
	items map[int64]*database.InventoryItem
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: map[int64]*database.InventoryItem{
		1: {ID: 1, Name: "SFP module", Quantity: 10, MinLevel: 3},
		2: {ID: 2, Name: "Patch cable", Quantity: 2, MinLevel: 5},
	}}
}

func (s *fakeStore) GetItem(_ context.Context, id int64) (*database.InventoryItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, opserr.New(opserr.KindNotFound, "inventory item %d not found", id)
	}
	return item, nil
}

func (s *fakeStore) List(_ context.Context) ([]*database.InventoryItem, error) {
	var out []*database.InventoryItem
	for _, item := range s.items {
		out = append(out, item)
	}
	return out, nil
}

func (s *fakeStore) ApplyMovement(_ context.Context, itemID, delta, _ int64, _ string) (*database.MovementOutcome, error) {
	item, ok := s.items[itemID]
	if !ok {
		return nil, opserr.New(opserr.KindNotFound, "inventory item %d not found", itemID)
	}
	if item.Quantity+delta < 0 {
		return nil, opserr.New(opserr.KindInsufficientStock,
			"item %d has %d in stock, %d requested", itemID, item.Quantity, -delta)
	}
	item.Quantity += delta
	return &database.MovementOutcome{
		ItemID:      item.ID,
		ItemName:    item.Name,
		NewQuantity: item.Quantity,
		MinLevel:    item.MinLevel,
		LowStock:    item.Quantity <= item.MinLevel,
	}, nil
}

type recordingNotifier struct {
	lowStockItems []int64
}

func (n *recordingNotifier) NotifyLowStock(_ context.Context, itemID int64, _ string, _, _ int64) {
	n.lowStockItems = append(n.lowStockItems, itemID)
}

type recordingAuditor struct {
	actions []string
}

func (a *recordingAuditor) Record(_ context.Context, _ int64, action, _ string, _ int64, _ string) {
	a.actions = append(a.actions, action)
}

func newTestLedger() (*Ledger, *fakeStore, *recordingNotifier, *recordingAuditor) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	store := newFakeStore()
	notifier := &recordingNotifier{}
	auditor := &recordingAuditor{}
	collector := metrics.NewCollector(prometheus.NewRegistry())
	return NewLedger(store, notifier, auditor, logger, collector), store, notifier, auditor
}

func TestLedger_Debit(t *testing.T) {
	ctx := context.Background()

	t.Run("Reduces Quantity", func(t *testing.T) {
		ledger, store, _, auditor := newTestLedger()

		result, err := ledger.Debit(ctx, 7, 1, 4, "field repair")
		require.NoError(t, err)
		assert.Equal(t, int64(6), result.NewQuantity)
		assert.False(t, result.LowStock)
		assert.Equal(t, int64(6), store.items[1].Quantity)
		assert.Contains(t, auditor.actions, "inventory.debit")
	})

	t.Run("Insufficient Stock Leaves Quantity Unchanged", func(t *testing.T) {
		ledger, store, _, _ := newTestLedger()

		_, err := ledger.Debit(ctx, 7, 2, 5, "field repair")
		assert.True(t, opserr.IsKind(err, opserr.KindInsufficientStock))
		assert.Equal(t, int64(2), store.items[2].Quantity)
	})

	t.Run("Crossing Min Level Raises Low Stock Alert", func(t *testing.T) {
		ledger, _, notifier, _ := newTestLedger()

		result, err := ledger.Debit(ctx, 7, 1, 8, "field repair")
		require.NoError(t, err)
		assert.True(t, result.LowStock)
		assert.Equal(t, []int64{1}, notifier.lowStockItems)
	})

	t.Run("Rejects Non Positive Quantity", func(t *testing.T) {
		ledger, _, _, _ := newTestLedger()

		_, err := ledger.Debit(ctx, 7, 1, 0, "")
		assert.True(t, opserr.IsKind(err, opserr.KindValidation))

		_, err = ledger.Debit(ctx, 7, 1, -3, "")
		assert.True(t, opserr.IsKind(err, opserr.KindValidation))
	})

	t.Run("Unknown Item", func(t *testing.T) {
		ledger, _, _, _ := newTestLedger()

		_, err := ledger.Debit(ctx, 7, 99, 1, "")
		assert.True(t, opserr.IsKind(err, opserr.KindNotFound))
	})
}

func TestLedger_Credit(t *testing.T) {
	ctx := context.Background()

	t.Run("Increases Quantity", func(t *testing.T) {
		ledger, store, _, auditor := newTestLedger()

		result, err := ledger.Credit(ctx, 7, 2, 10, "quarterly restock")
		require.NoError(t, err)
		assert.Equal(t, int64(12), result.NewQuantity)
		assert.Equal(t, int64(12), store.items[2].Quantity)
		assert.Contains(t, auditor.actions, "inventory.credit")
	})

	t.Run("Rejects Non Positive Quantity", func(t *testing.T) {
		ledger, _, _, _ := newTestLedger()

		_, err := ledger.Credit(ctx, 7, 2, 0, "")
		assert.True(t, opserr.IsKind(err, opserr.KindValidation))
	})
}
