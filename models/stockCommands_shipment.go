package models

import (
	"fmt"

	"github.com/synerge/order101-backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplyShipmentInTransit applies the IN_TRANSIT inventory effect for one
// shipment: every line of the originating order increases the destination
// ledger's in-transit quantity. The write-once flag is checked and set under
// the same row lock as the mutation, so concurrent or retried events apply
// at most once.
func ApplyShipmentInTransit(tx *gorm.DB, shipmentId int) error {
	if tx == nil {
		return fmt.Errorf("tx is nil")
	}
	ctx := tx.Statement.Context

	var shipment Shipment
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&shipment, shipmentId).Error; err != nil {
		return utils.ErrorShipmentNotFound
	}
	if shipment.InTransitApplied {
		return nil
	}
	// The flag may only become true while the shipment is IN_TRANSIT.
	if shipment.ShipmentStatus != ShipmentStatusInTransit {
		return nil
	}

	var lines []StoreOrderDetail
	if err := tx.WithContext(ctx).Where("store_order_id = ?", shipment.StoreOrderId).
		Order("id ASC").Find(&lines).Error; err != nil {
		return err
	}

	return utils.WarehouseLock(ctx, shipment.WarehouseId, "stockLock", "stockCommands_shipment.go", "ApplyShipmentInTransit", func() error {
		for _, line := range lines {
			if line.ProductId <= 0 || line.OrderQty <= 0 {
				continue
			}
			if err := EnsureInventoryRecord(tx, shipment.WarehouseId, line.ProductId); err != nil {
				return err
			}
			if err := AdjustInventoryQty(tx, shipment.WarehouseId, line.ProductId, 0, line.OrderQty); err != nil {
				return err
			}
		}

		res := tx.Model(&Shipment{}).
			Where("id = ? AND in_transit_applied = ?", shipment.ID, false).
			Update("in_transit_applied", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("shipment %d in-transit flag already set", shipment.ID)
		}

		return UpdateStoreOrderShipmentStatus(tx, shipment.StoreOrderId, ShipmentStatusInTransit)
	})
}

// ApplyShipmentDelivered applies the DELIVERED inventory effect exactly
// once. If the in-transit step ran, quantities move from in-transit to
// on-hand; if it was skipped, on-hand increases directly. Re-delivery of an
// already-applied shipment is a pure no-op. A shipment that is not in
// DELIVERED state is rejected with ErrorShipmentNotDelivered rather than
// partially applied.
func ApplyShipmentDelivered(tx *gorm.DB, shipmentId int) error {
	if tx == nil {
		return fmt.Errorf("tx is nil")
	}
	ctx := tx.Statement.Context

	var shipment Shipment
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&shipment, shipmentId).Error; err != nil {
		return utils.ErrorShipmentNotFound
	}
	if shipment.InventoryApplied {
		return nil
	}
	if shipment.ShipmentStatus != ShipmentStatusDelivered {
		return utils.ErrorShipmentNotDelivered
	}

	var lines []StoreOrderDetail
	if err := tx.WithContext(ctx).Where("store_order_id = ?", shipment.StoreOrderId).
		Order("id ASC").Find(&lines).Error; err != nil {
		return err
	}

	return utils.WarehouseLock(ctx, shipment.WarehouseId, "stockLock", "stockCommands_shipment.go", "ApplyShipmentDelivered", func() error {
		for _, line := range lines {
			if line.ProductId <= 0 || line.OrderQty <= 0 {
				continue
			}
			if err := EnsureInventoryRecord(tx, shipment.WarehouseId, line.ProductId); err != nil {
				return err
			}
			if shipment.InTransitApplied {
				// Move the quantity from in-transit to on-hand.
				if err := AdjustInventoryQty(tx, shipment.WarehouseId, line.ProductId, line.OrderQty, -line.OrderQty); err != nil {
					return err
				}
			} else {
				// Intermediate step was skipped; in-transit was never counted.
				if err := AdjustInventoryQty(tx, shipment.WarehouseId, line.ProductId, line.OrderQty, 0); err != nil {
					return err
				}
			}
		}

		res := tx.Model(&Shipment{}).
			Where("id = ? AND inventory_applied = ?", shipment.ID, false).
			Update("inventory_applied", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("shipment %d inventory flag already set", shipment.ID)
		}

		return UpdateStoreOrderShipmentStatus(tx, shipment.StoreOrderId, ShipmentStatusDelivered)
	})
}
