package models

import (
	"context"
	"time"

	"github.com/synerge/order101-backend/config"
	"github.com/synerge/order101-backend/utils"
	"gorm.io/gorm/clause"
)

// Shipment tracks one store order's fulfillment through
// WAITING -> IN_TRANSIT -> DELIVERED. The two applied flags are write-once
// guards: each inventory effect happens exactly once no matter how often a
// transition event is retried.
type Shipment struct {
	ID               int            `gorm:"primary_key" json:"id"`
	StoreOrderId     int            `gorm:"not null;uniqueIndex" json:"store_order_id"`
	WarehouseId      int            `gorm:"not null;index" json:"warehouse_id"`
	ShipmentStatus   ShipmentStatus `gorm:"size:20;not null;index" json:"shipment_status"`
	InTransitApplied bool           `gorm:"not null;default:false" json:"in_transit_applied"`
	InventoryApplied bool           `gorm:"not null;default:false" json:"inventory_applied"`
	CreatedAt        time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime;index" json:"updated_at"`
}

func GetShipment(ctx context.Context, id int) (*Shipment, error) {
	shipment, err := utils.FetchSingleModel[Shipment](ctx, id)
	if err != nil {
		return nil, utils.ErrorShipmentNotFound
	}
	return shipment, nil
}

// CreateShipmentForOrder dispatches a confirmed store order: one WAITING
// shipment destined for the given warehouse ledger.
func CreateShipmentForOrder(ctx context.Context, storeOrderId int, warehouseId int) (*Shipment, error) {
	db := config.GetDB()

	order, err := GetStoreOrder(ctx, storeOrderId)
	if err != nil {
		return nil, err
	}

	shipment := Shipment{
		StoreOrderId:   order.ID,
		WarehouseId:    warehouseId,
		ShipmentStatus: ShipmentStatusWaiting,
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Create(&shipment).Error; err != nil {
		return nil, err
	}
	if err := UpdateStoreOrderShipmentStatus(tx, order.ID, ShipmentStatusWaiting); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

// AdvanceShipment promotes one shipment by at most one step based on the
// time thresholds, applying the inventory effect inside the same
// transaction. Safe to call repeatedly; already-advanced shipments are
// untouched.
func AdvanceShipment(ctx context.Context, shipmentId int) (*Shipment, error) {
	db := config.GetDB()

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	var shipment Shipment
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&shipment, shipmentId).Error; err != nil {
		return nil, utils.ErrorShipmentNotFound
	}

	now := time.Now()
	switch shipment.ShipmentStatus {
	case ShipmentStatusWaiting:
		if now.Sub(shipment.CreatedAt) < config.ShipmentInTransitThreshold() {
			break
		}
		shipment.ShipmentStatus = ShipmentStatusInTransit
		if err := tx.WithContext(ctx).Model(&shipment).
			Update("shipment_status", ShipmentStatusInTransit).Error; err != nil {
			return nil, err
		}
		if err := ApplyShipmentInTransit(tx, shipment.ID); err != nil {
			return nil, err
		}
	case ShipmentStatusInTransit:
		if now.Sub(shipment.UpdatedAt) < config.ShipmentDeliveredThreshold() {
			break
		}
		if !shipment.InTransitApplied || shipment.InventoryApplied {
			break
		}
		shipment.ShipmentStatus = ShipmentStatusDelivered
		if err := tx.WithContext(ctx).Model(&shipment).
			Update("shipment_status", ShipmentStatusDelivered).Error; err != nil {
			return nil, err
		}
		if err := ApplyShipmentDelivered(tx, shipment.ID); err != nil {
			return nil, err
		}
	case ShipmentStatusDelivered:
		// terminal
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

// FindShipmentsDueForPromotion returns ids of shipments the sweep should
// advance: stale WAITING rows and stale IN_TRANSIT rows whose in-transit
// effect is applied but whose delivery effect is not.
func FindShipmentsDueForPromotion(ctx context.Context, now time.Time) ([]int, error) {
	db := config.GetDB()
	var ids []int
	err := db.WithContext(ctx).Model(&Shipment{}).
		Where(
			"(shipment_status = ? AND created_at <= ?) OR (shipment_status = ? AND updated_at <= ? AND in_transit_applied = ? AND inventory_applied = ?)",
			ShipmentStatusWaiting, now.Add(-config.ShipmentInTransitThreshold()),
			ShipmentStatusInTransit, now.Add(-config.ShipmentDeliveredThreshold()), true, false,
		).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
