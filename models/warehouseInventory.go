package models

import (
	"context"
	"errors"
	"time"

	"github.com/synerge/order101-backend/config"
	"github.com/synerge/order101-backend/utils"
	"gorm.io/gorm"
)

// WarehouseInventory is the per-(warehouse, product) stock ledger row.
// on_hand_qty and in_transit_qty never go negative; they are mutated only
// through the command functions below, never by direct field assignment.
type WarehouseInventory struct {
	ID           int       `gorm:"primary_key" json:"id"`
	WarehouseId  int       `gorm:"not null;index:uniq_wh_product,unique" json:"warehouse_id"`
	ProductId    int       `gorm:"not null;index:uniq_wh_product,unique" json:"product_id"`
	OnHandQty    int       `gorm:"not null;default:0" json:"on_hand_qty"`
	InTransitQty int       `gorm:"not null;default:0" json:"in_transit_qty"`
	SafetyQty    int       `gorm:"not null;default:0" json:"safety_qty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetInventory(ctx context.Context, warehouseId int, productId int) (*WarehouseInventory, error) {
	db := config.GetDB()
	var inv WarehouseInventory
	err := db.WithContext(ctx).
		Where("warehouse_id = ? AND product_id = ?", warehouseId, productId).
		First(&inv).Error
	if err != nil {
		return nil, utils.ErrorInventoryNotFound
	}
	return &inv, nil
}

// ListInventories returns all ledger rows of a warehouse ordered by product
// id so sweep output is deterministic.
func ListInventories(ctx context.Context, warehouseId int) ([]*WarehouseInventory, error) {
	db := config.GetDB()
	var rows []*WarehouseInventory
	err := db.WithContext(ctx).
		Where("warehouse_id = ?", warehouseId).
		Order("product_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateSafetyQty writes the recalculated safety quantity for one ledger row.
func UpdateSafetyQty(ctx context.Context, warehouseId int, productId int, safetyQty int) error {
	db := config.GetDB()
	return db.WithContext(ctx).Model(&WarehouseInventory{}).
		Where("warehouse_id = ? AND product_id = ?", warehouseId, productId).
		Update("safety_qty", safetyQty).Error
}

// EnsureInventoryRecord inserts a zeroed ledger row if none exists yet, so
// delta commands always have a row to hit.
func EnsureInventoryRecord(tx *gorm.DB, warehouseId int, productId int) error {
	return tx.Exec(
		"INSERT IGNORE INTO warehouse_inventories (warehouse_id, product_id, on_hand_qty, in_transit_qty, safety_qty, created_at, updated_at) VALUES (?, ?, 0, 0, 0, NOW(), NOW())",
		warehouseId, productId,
	).Error
}

// AdjustInventoryQty applies atomic deltas to one ledger row inside the
// caller's transaction. The WHERE clause enforces the non-negative
// invariant; zero affected rows means the adjustment was rejected.
func AdjustInventoryQty(tx *gorm.DB, warehouseId int, productId int, onHandDelta int, inTransitDelta int) error {
	if tx == nil {
		return errors.New("tx is nil")
	}
	res := tx.Exec(
		"UPDATE warehouse_inventories SET on_hand_qty = on_hand_qty + ?, in_transit_qty = in_transit_qty + ? "+
			"WHERE warehouse_id = ? AND product_id = ? AND on_hand_qty + ? >= 0 AND in_transit_qty + ? >= 0",
		onHandDelta, inTransitDelta, warehouseId, productId, onHandDelta, inTransitDelta,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("inventory adjustment rejected (missing ledger row or negative quantity)")
	}
	return nil
}
