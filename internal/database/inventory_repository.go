package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/gridops/netops-engine/internal/opserr"
)

// MovementOutcome reports the item balance after a stock movement was applied.
type MovementOutcome struct {
	ItemID      int64
	ItemName    string
	NewQuantity int64
	MinLevel    int64
	LowStock    bool
}

// InventoryRepository owns inventory_items.quantity: every quantity change
// goes through ApplyMovementTx so the balance and its movement row commit as
// one unit.
type InventoryRepository struct {
	BaseRepository
	logger *slog.Logger
}

// NewInventoryRepository creates a new inventory repository.
func NewInventoryRepository(db *sqlx.DB, logger *slog.Logger) *InventoryRepository {
	return &InventoryRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

// GetItem retrieves an inventory item by ID.
func (r *InventoryRepository) GetItem(ctx context.Context, id int64) (*InventoryItem, error) {
	query := `SELECT * FROM inventory_items WHERE id = $1`

	var item InventoryItem
	err := r.db.GetContext(ctx, &item, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, opserr.New(opserr.KindNotFound, "inventory item %d not found", id)
	}
	if err != nil {
		r.logger.Error("Failed to get inventory item", "item_id", id, "error", err)
		return nil, fmt.Errorf("failed to get inventory item: %w", err)
	}

	return &item, nil
}

// List retrieves all inventory items ordered by name.
func (r *InventoryRepository) List(ctx context.Context) ([]*InventoryItem, error) {
	query := `SELECT * FROM inventory_items ORDER BY name ASC`

	var items []*InventoryItem
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		r.logger.Error("Failed to list inventory items", "error", err)
		return nil, fmt.Errorf("failed to list inventory items: %w", err)
	}

	return items, nil
}

// ListAtOrBelowMinLevel retrieves items whose quantity is at or below their
// configured minimum level.
func (r *InventoryRepository) ListAtOrBelowMinLevel(ctx context.Context) ([]*InventoryItem, error) {
	query := `SELECT * FROM inventory_items WHERE quantity <= min_level ORDER BY name ASC`

	var items []*InventoryItem
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		r.logger.Error("Failed to list low-stock items", "error", err)
		return nil, fmt.Errorf("failed to list low-stock items: %w", err)
	}

	return items, nil
}

// ApplyMovement applies a signed quantity delta inside its own transaction.
func (r *InventoryRepository) ApplyMovement(ctx context.Context, itemID, delta, actorID int64, reason string) (*MovementOutcome, error) {
	var outcome *MovementOutcome
	err := r.Transaction(func(tx *sqlx.Tx) error {
		var txErr error
		outcome, txErr = r.ApplyMovementTx(ctx, tx, itemID, delta, actorID, reason, nil)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// ApplyMovementTx applies a signed quantity delta within the caller's
// transaction: a conditional balance update that refuses to go negative, plus
// the movement row justifying it. maintenanceLogID links movements created as
// part of a maintenance record.
func (r *InventoryRepository) ApplyMovementTx(ctx context.Context, tx *sqlx.Tx, itemID, delta, actorID int64, reason string, maintenanceLogID *int64) (*MovementOutcome, error) {
	update := `
		UPDATE inventory_items
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1 AND quantity + $2 >= 0
		RETURNING name, quantity, min_level`

	var (
		name     string
		quantity int64
		minLevel int64
	)
	err := tx.QueryRowxContext(ctx, update, itemID, delta).Scan(&name, &quantity, &minLevel)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the item is missing or the guard refused a negative balance.
		var available int64
		existsErr := tx.GetContext(ctx, &available,
			`SELECT quantity FROM inventory_items WHERE id = $1`, itemID)
		if errors.Is(existsErr, sql.ErrNoRows) {
			return nil, opserr.New(opserr.KindNotFound, "inventory item %d not found", itemID)
		}
		if existsErr != nil {
			return nil, fmt.Errorf("failed to check inventory item: %w", existsErr)
		}
		return nil, opserr.New(opserr.KindInsufficientStock,
			"item %d has %d in stock, %d requested", itemID, available, -delta)
	}
	if err != nil {
		r.logger.Error("Failed to apply stock movement", "item_id", itemID, "delta", delta, "error", err)
		return nil, fmt.Errorf("failed to apply stock movement: %w", err)
	}

	insert := `
		INSERT INTO stock_movements (item_id, actor_id, delta, reason, maintenance_log_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`

	if _, err := tx.ExecContext(ctx, insert, itemID, actorID, delta, reason, maintenanceLogID); err != nil {
		r.logger.Error("Failed to record stock movement", "item_id", itemID, "error", err)
		return nil, fmt.Errorf("failed to record stock movement: %w", err)
	}

	outcome := &MovementOutcome{
		ItemID:      itemID,
		ItemName:    name,
		NewQuantity: quantity,
		MinLevel:    minLevel,
		LowStock:    quantity <= minLevel,
	}

	r.logger.Info("Stock movement applied",
		"item_id", itemID, "delta", delta, "new_quantity", quantity, "low_stock", outcome.LowStock)
	return outcome, nil
}
