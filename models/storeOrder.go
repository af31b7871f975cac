package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/synerge/order101-backend/config"
	"github.com/synerge/order101-backend/utils"
	"gorm.io/gorm"
)

// StoreOrder is a confirmed outbound order from a store against a warehouse.
// Confirmed store orders are the sales-history source for the safety stock
// window; each one also spawns a shipment whose status is mirrored here.
type StoreOrder struct {
	ID             int              `gorm:"primary_key" json:"id"`
	StoreId        int              `gorm:"not null;index" json:"store_id"`
	WarehouseId    int              `gorm:"not null;index" json:"warehouse_id"`
	OrderNumber    string           `gorm:"size:50;uniqueIndex" json:"order_number"`
	OrderStatus    StoreOrderStatus `gorm:"size:20;not null;index" json:"order_status"`
	ShipmentStatus ShipmentStatus   `gorm:"size:20" json:"shipment_status"`
	OrderedAt      time.Time        `gorm:"index;not null" json:"ordered_at"`
	Details        []StoreOrderDetail `gorm:"foreignKey:StoreOrderId" json:"details"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type StoreOrderDetail struct {
	ID           int             `gorm:"primary_key" json:"id"`
	StoreOrderId int             `gorm:"not null;index" json:"store_order_id"`
	ProductId    int             `gorm:"not null;index" json:"product_id"`
	OrderQty     int             `gorm:"not null" json:"order_qty"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(20,6)" json:"unit_price"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func GetStoreOrder(ctx context.Context, id int) (*StoreOrder, error) {
	return utils.FetchSingleModel[StoreOrder](ctx, id, "Details")
}

// DailySalesQty is one day's summed confirmed-order quantity for a product.
type DailySalesQty struct {
	SalesDate time.Time `json:"sales_date"`
	TotalQty  int       `json:"total_qty"`
}

// FindDailySalesQtySince aggregates confirmed store-order quantity per day
// for one product, ascending by date. Days with no sales produce no row.
func FindDailySalesQtySince(ctx context.Context, productId int, since time.Time) ([]DailySalesQty, error) {
	db := config.GetDB()
	var rows []DailySalesQty
	err := db.WithContext(ctx).
		Model(&StoreOrderDetail{}).
		Select("DATE(store_orders.ordered_at) AS sales_date, SUM(store_order_details.order_qty) AS total_qty").
		Joins("JOIN store_orders ON store_orders.id = store_order_details.store_order_id").
		Where("store_order_details.product_id = ?", productId).
		Where("store_orders.order_status = ?", StoreOrderStatusConfirmed).
		Where("store_orders.ordered_at >= ?", since).
		Group("DATE(store_orders.ordered_at)").
		Order("sales_date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStoreOrderShipmentStatus mirrors the shipment status onto the
// originating store order inside the shipment's transaction.
func UpdateStoreOrderShipmentStatus(tx *gorm.DB, storeOrderId int, status ShipmentStatus) error {
	return tx.Model(&StoreOrder{}).
		Where("id = ?", storeOrderId).
		Update("shipment_status", status).Error
}
