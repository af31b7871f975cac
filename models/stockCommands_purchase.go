package models

import (
	"fmt"

	"github.com/synerge/order101-backend/utils"
	"gorm.io/gorm"
)

// ApplyPurchaseStockForStatusTransition applies inventory changes for a
// purchase status transition.
//
// Submitted -> Confirmed : on_hand += order_qty per line
//
// Rejection and submission have no inventory effect. This is the explicit,
// command-style replacement for implicit model-hook side-effects.
func ApplyPurchaseStockForStatusTransition(tx *gorm.DB, purchase *Purchase, oldStatus OrderStatus) error {
	if tx == nil {
		return fmt.Errorf("tx is nil")
	}
	if purchase == nil {
		return fmt.Errorf("purchase is nil")
	}
	if oldStatus == purchase.OrderStatus {
		return nil
	}
	if !(oldStatus == OrderStatusSubmitted && purchase.OrderStatus == OrderStatusConfirmed) {
		return nil
	}

	ctx := tx.Statement.Context
	return utils.WarehouseLock(ctx, purchase.WarehouseId, "stockLock", "stockCommands_purchase.go", "ApplyPurchaseStockForStatusTransition", func() error {
		for _, line := range purchase.Details {
			if line.ProductId <= 0 || line.OrderQty <= 0 {
				continue
			}
			if err := EnsureInventoryRecord(tx, purchase.WarehouseId, line.ProductId); err != nil {
				return err
			}
			if err := AdjustInventoryQty(tx, purchase.WarehouseId, line.ProductId, line.OrderQty, 0); err != nil {
				return err
			}
		}
		return nil
	})
}
