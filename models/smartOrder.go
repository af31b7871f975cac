package models

import (
	"context"
	"fmt"
	"time"

	"github.com/synerge/order101-backend/config"
	"github.com/synerge/order101-backend/utils"
	"gorm.io/gorm/clause"
)

// DemandForecast is the upstream-supplied predicted weekly demand for one
// product at one warehouse. This core never writes forecasts.
type DemandForecast struct {
	ID          int       `gorm:"primary_key" json:"id"`
	ProductId   int       `gorm:"not null;index:uniq_forecast,unique" json:"product_id"`
	WarehouseId int       `gorm:"not null;index:uniq_forecast,unique" json:"warehouse_id"`
	TargetWeek  string    `gorm:"size:10;not null;index:uniq_forecast,unique;index" json:"target_week"`
	YPred       int       `gorm:"not null" json:"y_pred"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// SmartOrder is one forecast-driven order recommendation. At most one per
// forecast row (unique demand_forecast_id).
type SmartOrder struct {
	ID                  int         `gorm:"primary_key" json:"id"`
	DemandForecastId    int         `gorm:"not null;uniqueIndex" json:"demand_forecast_id"`
	SupplierId          int         `gorm:"not null;index" json:"supplier_id"`
	ProductId           int         `gorm:"not null;index" json:"product_id"`
	WarehouseId         int         `gorm:"not null;index" json:"warehouse_id"`
	TargetWeek          string      `gorm:"size:10;not null;index" json:"target_week"`
	ForecastQty         int         `gorm:"not null" json:"forecast_qty"`
	OriginalOrderQty    int         `gorm:"not null" json:"original_order_qty"`
	RecommendedOrderQty int         `gorm:"not null" json:"recommended_order_qty"`
	OrderStatus         OrderStatus `gorm:"size:20;not null;index" json:"order_status"`
	SnapshotAt          time.Time   `gorm:"not null" json:"snapshot_at"`
	SubmittedBy         *string     `gorm:"size:100" json:"submitted_by"`
	CreatedAt           time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// ManualEdited reports whether a human changed the recommended quantity
// after generation.
func (s *SmartOrder) ManualEdited() bool {
	return s.RecommendedOrderQty != s.OriginalOrderQty
}

// GenerateSmartOrders plans the given target week exactly once. A week with
// any existing smart order is rejected with ErrorAlreadyExists; forecasts
// with a zero recommendation are dropped silently. One notification is
// queued per supplier batch.
func GenerateSmartOrders(ctx context.Context, targetWeek string, actor string) ([]*SmartOrder, error) {
	db := config.GetDB()

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	var existing int64
	if err := db.WithContext(ctx).Model(&SmartOrder{}).
		Where("target_week = ?", targetWeek).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, utils.ErrorAlreadyExists
	}

	var forecasts []DemandForecast
	if err := db.WithContext(ctx).Where("target_week = ?", targetWeek).
		Order("product_id ASC, warehouse_id ASC").Find(&forecasts).Error; err != nil {
		return nil, err
	}
	if len(forecasts) == 0 {
		return nil, utils.ErrorForecastNotFound
	}

	now := time.Now()
	var orders []*SmartOrder
	for _, forecast := range forecasts {
		mapping, err := FindPreferredSupplier(ctx, forecast.ProductId)
		if err != nil {
			return nil, err
		}

		onHandQty, safetyQty := 0, 0
		if inv, invErr := GetInventory(ctx, forecast.WarehouseId, forecast.ProductId); invErr == nil {
			onHandQty = inv.OnHandQty
			safetyQty = inv.SafetyQty
		}
		inTransitQty, err := SumOpenPurchaseQty(ctx, forecast.ProductId)
		if err != nil {
			return nil, err
		}

		recommended := CalculateSmartOrderQty(forecast.YPred, mapping.LeadTimeDays, safetyQty, onHandQty, inTransitQty)
		if recommended <= 0 {
			continue
		}

		orders = append(orders, &SmartOrder{
			DemandForecastId:    forecast.ID,
			SupplierId:          mapping.SupplierId,
			ProductId:           forecast.ProductId,
			WarehouseId:         forecast.WarehouseId,
			TargetWeek:          targetWeek,
			ForecastQty:         forecast.YPred,
			OriginalOrderQty:    recommended,
			RecommendedOrderQty: recommended,
			OrderStatus:         OrderStatusDraftAuto,
			SnapshotAt:          now,
		})
	}

	if len(orders) == 0 {
		return nil, nil
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Create(&orders).Error; err != nil {
		// Two concurrent runs race on the unique demand_forecast_id index.
		if utils.IsDuplicateKeyError(err) {
			return nil, utils.ErrorAlreadyExists
		}
		return nil, err
	}

	bySupplier := make(map[int]int)
	supplierOrder := []int{}
	for _, order := range orders {
		if _, seen := bySupplier[order.SupplierId]; !seen {
			supplierOrder = append(supplierOrder, order.SupplierId)
		}
		bySupplier[order.SupplierId]++
	}
	for _, supplierId := range supplierOrder {
		summary := fmt.Sprintf("%d smart order recommendations for supplier %d, week %s", bySupplier[supplierId], supplierId, targetWeek)
		if err := QueueNotification(tx, fmt.Sprintf("SUPPLIER:%d", supplierId), ReferenceTypeSmartOrder, supplierId, summary, correlationId); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// SubmitSmartOrder finalizes one recommendation. An optional edited quantity
// is applied first; both the edit and the transition are legal only while
// the order is still in draft.
func SubmitSmartOrder(ctx context.Context, smartOrderId int, actor string, editedQty *int) (*SmartOrder, error) {
	db := config.GetDB()

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	var order SmartOrder
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, smartOrderId).Error; err != nil {
		return nil, utils.ErrorSmartOrderNotFound
	}
	if order.OrderStatus != OrderStatusDraftAuto {
		return nil, utils.ErrorSubmitNotAllowed
	}

	if editedQty != nil {
		if *editedQty < 0 {
			return nil, utils.ErrorUpdateNotAllowed
		}
		order.RecommendedOrderQty = *editedQty
	}

	nextStatus, err := NextOrderStatus(order.OrderStatus, OrderActionSubmit)
	if err != nil {
		return nil, err
	}
	order.OrderStatus = nextStatus
	order.SubmittedBy = &actor
	order.SnapshotAt = time.Now()

	if err := tx.WithContext(ctx).Model(&order).
		Select("RecommendedOrderQty", "OrderStatus", "SubmittedBy", "SnapshotAt").
		Updates(&order).Error; err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ConfirmSmartOrder accepts a submitted recommendation and emits the
// settlement request for the downstream purchasing flow.
func ConfirmSmartOrder(ctx context.Context, smartOrderId int, actor string) (*SmartOrder, error) {
	return decideSmartOrder(ctx, smartOrderId, actor, OrderActionConfirm)
}

// RejectSmartOrder declines a submitted recommendation; terminal, no
// inventory effect.
func RejectSmartOrder(ctx context.Context, smartOrderId int, actor string) (*SmartOrder, error) {
	return decideSmartOrder(ctx, smartOrderId, actor, OrderActionReject)
}

func decideSmartOrder(ctx context.Context, smartOrderId int, actor string, action OrderAction) (*SmartOrder, error) {
	db := config.GetDB()

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	var order SmartOrder
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, smartOrderId).Error; err != nil {
		return nil, utils.ErrorSmartOrderNotFound
	}

	nextStatus, err := NextOrderStatus(order.OrderStatus, action)
	if err != nil {
		return nil, err
	}
	order.OrderStatus = nextStatus

	if err := tx.WithContext(ctx).Model(&order).
		Update("order_status", nextStatus).Error; err != nil {
		return nil, err
	}

	if nextStatus == OrderStatusConfirmed {
		payload := SettlementRequestPayload{
			PurchaseId: order.ID,
			SupplierId: order.SupplierId,
			PoNumber:   fmt.Sprintf("SMART-%s-%d", order.TargetWeek, order.ID),
		}
		if err := QueueOutboxMessage(tx, ReferenceTypeSettlement, order.ID, ActionSettlementRequest, payload, correlationId); err != nil {
			return nil, err
		}
	}

	summary := fmt.Sprintf("Smart order %d (week %s) %s by %s", order.ID, order.TargetWeek, string(nextStatus), actor)
	if err := QueueNotification(tx, RecipientsAdmins, ReferenceTypeSmartOrder, order.ID, summary, correlationId); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// SmartOrderSummary is the dashboard aggregate for one target week.
type SmartOrderSummary struct {
	TargetWeek     string              `json:"target_week"`
	TotalOrders    int                 `json:"total_orders"`
	TotalQty       int                 `json:"total_qty"`
	ManualEdited   int                 `json:"manual_edited"`
	CountsByStatus map[OrderStatus]int `json:"counts_by_status"`
}

// GetSmartOrderSummary aggregates one week's recommendations for the review
// dashboard.
func GetSmartOrderSummary(ctx context.Context, targetWeek string) (*SmartOrderSummary, error) {
	db := config.GetDB()
	var orders []SmartOrder
	if err := db.WithContext(ctx).Where("target_week = ?", targetWeek).
		Order("supplier_id ASC, product_id ASC").Find(&orders).Error; err != nil {
		return nil, err
	}

	summary := SmartOrderSummary{
		TargetWeek:     targetWeek,
		CountsByStatus: make(map[OrderStatus]int),
	}
	for i := range orders {
		summary.TotalOrders++
		summary.TotalQty += orders[i].RecommendedOrderQty
		summary.CountsByStatus[orders[i].OrderStatus]++
		if orders[i].ManualEdited() {
			summary.ManualEdited++
		}
	}
	return &summary, nil
}

// GetSmartOrdersForWeek lists a week's recommendations grouped for review.
func GetSmartOrdersForWeek(ctx context.Context, targetWeek string) ([]*SmartOrder, error) {
	db := config.GetDB()
	var orders []*SmartOrder
	err := db.WithContext(ctx).Where("target_week = ?", targetWeek).
		Order("supplier_id ASC, product_id ASC").Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
