// Package inventory exposes stock operations over the movement ledger.
// Quantity changes happen through conditional updates in the repository, so a
// debit can never drive stock negative even under concurrent requests.
package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gridops/netops-engine/internal/database"
	"github.com/gridops/netops-engine/internal/metrics"
	"github.com/gridops/netops-engine/internal/opserr"
)

// Store is the repository surface the ledger needs.
type Store interface {
	GetItem(ctx context.Context, id int64) (*database.InventoryItem, error)
	List(ctx context.Context) ([]*database.InventoryItem, error)
	ApplyMovement(ctx context.Context, itemID, delta, actorID int64, reason string) (*database.MovementOutcome, error)
}

// Notifier raises low-stock alerts.
type Notifier interface {
	NotifyLowStock(ctx context.Context, itemID int64, itemName string, quantity, minLevel int64)
}

// Auditor records best-effort audit entries.
type Auditor interface {
	Record(ctx context.Context, actorID int64, action, entityType string, entityID int64, details string)
}

// Result reports the stock level after a movement.
type Result struct {
	ItemID      int64  `json:"item_id"`
	ItemName    string `json:"item_name"`
	NewQuantity int64  `json:"new_quantity"`
	LowStock    bool   `json:"low_stock"`
}

// Ledger applies debits and credits against inventory items.
type Ledger struct {
	store    Store
	notifier Notifier
	auditor  Auditor
	logger   *slog.Logger
	metrics  *metrics.Collector
}

// NewLedger creates a new inventory ledger.
func NewLedger(store Store, notifier Notifier, auditor Auditor, logger *slog.Logger, collector *metrics.Collector) *Ledger {
	return &Ledger{
		store:    store,
		notifier: notifier,
		auditor:  auditor,
		logger:   logger,
		metrics:  collector,
	}
}

// Debit removes quantity units from an item. It fails with an insufficient
// stock error, leaving the item untouched, when the item does not hold enough.
func (l *Ledger) Debit(ctx context.Context, actorID, itemID, quantity int64, reason string) (*Result, error) {
	if quantity <= 0 {
		return nil, opserr.New(opserr.KindValidation, "debit quantity must be positive, got %d", quantity)
	}
	if reason == "" {
		reason = "manual debit"
	}

	outcome, err := l.store.ApplyMovement(ctx, itemID, -quantity, actorID, reason)
	if err != nil {
		if opserr.IsKind(err, opserr.KindInsufficientStock) {
			l.metrics.InsufficientStock.Inc()
		}
		return nil, err
	}
	l.metrics.StockDebits.Inc()

	result := l.finishMovement(ctx, actorID, outcome)
	l.auditor.Record(ctx, actorID, "inventory.debit", "inventory_item", itemID,
		fmt.Sprintf("debited %d (%s), %d remaining", quantity, reason, outcome.NewQuantity))
	return result, nil
}

// Credit adds quantity units to an item, recording a restock movement.
func (l *Ledger) Credit(ctx context.Context, actorID, itemID, quantity int64, reason string) (*Result, error) {
	if quantity <= 0 {
		return nil, opserr.New(opserr.KindValidation, "credit quantity must be positive, got %d", quantity)
	}
	if reason == "" {
		reason = "restock"
	}

	outcome, err := l.store.ApplyMovement(ctx, itemID, quantity, actorID, reason)
	if err != nil {
		return nil, err
	}

	result := l.finishMovement(ctx, actorID, outcome)
	l.auditor.Record(ctx, actorID, "inventory.credit", "inventory_item", itemID,
		fmt.Sprintf("credited %d (%s), %d on hand", quantity, reason, outcome.NewQuantity))
	return result, nil
}

// GetItem retrieves a single inventory item.
func (l *Ledger) GetItem(ctx context.Context, itemID int64) (*database.InventoryItem, error) {
	return l.store.GetItem(ctx, itemID)
}

// List retrieves all inventory items.
func (l *Ledger) List(ctx context.Context) ([]*database.InventoryItem, error) {
	return l.store.List(ctx)
}

// FlagIfLow raises the low-stock alert for an already-applied movement
// outcome. Used by maintenance recording, which applies movements inside its
// own transaction and alerts only after commit.
func (l *Ledger) FlagIfLow(ctx context.Context, outcome *database.MovementOutcome) {
	if !outcome.LowStock {
		return
	}
	l.metrics.LowStockFlags.Inc()
	l.notifier.NotifyLowStock(ctx, outcome.ItemID, outcome.ItemName, outcome.NewQuantity, outcome.MinLevel)
}

func (l *Ledger) finishMovement(ctx context.Context, actorID int64, outcome *database.MovementOutcome) *Result {
	l.FlagIfLow(ctx, outcome)
	return &Result{
		ItemID:      outcome.ItemID,
		ItemName:    outcome.ItemName,
		NewQuantity: outcome.NewQuantity,
		LowStock:    outcome.LowStock,
	}
}
