package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/synerge/order101-backend/config"
	"github.com/synerge/order101-backend/utils"
	"gorm.io/gorm/clause"
)

type Purchase struct {
	ID               int              `gorm:"primary_key" json:"id"`
	SupplierId       int              `gorm:"not null;index" json:"supplier_id"`
	WarehouseId      int              `gorm:"not null;index" json:"warehouse_id"`
	PoNumber         string           `gorm:"size:50;uniqueIndex" json:"po_number"`
	OrderType        OrderType        `gorm:"size:20;not null;index" json:"order_type"`
	OrderStatus      OrderStatus      `gorm:"size:20;not null;index" json:"order_status"`
	OrderTotalAmount decimal.Decimal  `gorm:"type:decimal(20,6)" json:"order_total_amount"`
	SubmittedBy      *string          `gorm:"size:100" json:"submitted_by"`
	Details          []PurchaseDetail `gorm:"foreignKey:PurchaseId" json:"details"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseDetail struct {
	ID         int             `gorm:"primary_key" json:"id"`
	PurchaseId int             `gorm:"not null;index" json:"purchase_id"`
	ProductId  int             `gorm:"not null;index" json:"product_id"`
	OrderQty   int             `gorm:"not null" json:"order_qty"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(20,6)" json:"unit_price"`
	Deadline   *time.Time      `json:"deadline"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// PurchaseDetailHistory is the audit row written for every line edit while a
// purchase is in draft. BeforeQty = 0 marks an added line, AfterQty = 0 a
// deleted one.
type PurchaseDetailHistory struct {
	ID         int       `gorm:"primary_key" json:"id"`
	PurchaseId int       `gorm:"not null;index" json:"purchase_id"`
	ProductId  int       `gorm:"not null;index" json:"product_id"`
	BeforeQty  int       `gorm:"not null" json:"before_qty"`
	AfterQty   int       `gorm:"not null" json:"after_qty"`
	ChangedBy  string    `gorm:"size:100;not null" json:"changed_by"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewPurchaseDetail struct {
	ProductId int        `json:"product_id" binding:"required"`
	OrderQty  int        `json:"order_qty" binding:"required,gt=0"`
	Deadline  *time.Time `json:"deadline"`
}

type NewPurchase struct {
	SupplierId  int                 `json:"supplier_id" binding:"required"`
	WarehouseId int                 `json:"warehouse_id" binding:"required"`
	OrderType   OrderType           `json:"order_type" binding:"required,oneof=MANUAL AUTO SMART"`
	Details     []NewPurchaseDetail `json:"details" binding:"required,min=1,dive"`
}

func generatePoNumber(orderType OrderType) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("PO-%s-%s-%s", orderType, time.Now().Format("20060102"), strings.ToUpper(suffix))
}

func purchaseTotal(details []PurchaseDetail) decimal.Decimal {
	total := decimal.Zero
	for _, line := range details {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.OrderQty))))
	}
	return total
}

// CreatePurchase creates a purchase order with its lines. Unit prices come
// from the preferred supplier mapping; AUTO and SMART orders start in
// DRAFT_AUTO awaiting review, MANUAL orders are submitted directly by their
// author.
func CreatePurchase(ctx context.Context, input *NewPurchase, actor string) (*Purchase, error) {
	db := config.GetDB()

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	var details []PurchaseDetail
	for _, item := range input.Details {
		mapping, err := FindPreferredSupplier(ctx, item.ProductId)
		if err != nil {
			return nil, err
		}
		details = append(details, PurchaseDetail{
			ProductId: item.ProductId,
			OrderQty:  item.OrderQty,
			UnitPrice: mapping.PurchasePrice,
			Deadline:  item.Deadline,
		})
	}

	status := OrderStatusDraftAuto
	var submittedBy *string
	if input.OrderType == OrderTypeManual {
		status = OrderStatusSubmitted
		submittedBy = &actor
	}

	purchase := Purchase{
		SupplierId:       input.SupplierId,
		WarehouseId:      input.WarehouseId,
		PoNumber:         generatePoNumber(input.OrderType),
		OrderType:        input.OrderType,
		OrderStatus:      status,
		OrderTotalAmount: purchaseTotal(details),
		SubmittedBy:      submittedBy,
		Details:          details,
	}

	tx := db.Begin()
	// IMPORTANT: always rollback on early-return or panic to avoid leaking DB locks.
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Create(&purchase).Error; err != nil {
		return nil, err
	}

	recipients := RecipientsAdmins
	summary := fmt.Sprintf("Purchase %s created by %s", purchase.PoNumber, actor)
	if input.OrderType == OrderTypeAuto {
		recipients = RecipientsHQStaff
		summary = fmt.Sprintf("Auto purchase %s awaits review", purchase.PoNumber)
	}
	if err := QueueNotification(tx, recipients, ReferenceTypePurchase, purchase.ID, summary, correlationId); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

// SubmitAutoPurchase reconciles a draft auto purchase against the reviewer's
// target line set {productId -> qty}, records one audit row per change, and
// marks the order SUBMITTED. The reconciliation is order-independent: the
// net line set is the same regardless of iteration order over lineEdits.
// With STRICT_PURCHASE_IMMUTABLE set, any edit that would change a line is
// rejected with ErrorUpdateNotAllowed.
func SubmitAutoPurchase(ctx context.Context, purchaseId int, actor string, lineEdits map[int]int) (*Purchase, error) {
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

	var purchase Purchase
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&purchase, purchaseId).Error; err != nil {
		return nil, utils.ErrorPurchaseNotFound
	}
	if purchase.OrderStatus != OrderStatusDraftAuto {
		return nil, utils.ErrorSubmitNotAllowed
	}
	if err := tx.WithContext(ctx).Where("purchase_id = ?", purchaseId).
		Order("id ASC").Find(&purchase.Details).Error; err != nil {
		return nil, err
	}

	rec := BuildLineReconciliation(purchase.Details, lineEdits)

	// Strict mode: drafts go out exactly as planned. Anything else must be
	// rejected and re-planned.
	if rec.HasChanges() && config.StrictPurchaseImmutability() {
		return nil, utils.ErrorUpdateNotAllowed
	}

	var history []PurchaseDetailHistory
	for _, change := range rec.Deletes {
		if err := tx.WithContext(ctx).Delete(&PurchaseDetail{}, change.DetailId).Error; err != nil {
			return nil, err
		}
		history = append(history, PurchaseDetailHistory{
			PurchaseId: purchaseId,
			ProductId:  change.ProductId,
			BeforeQty:  change.BeforeQty,
			AfterQty:   0,
			ChangedBy:  actor,
		})
	}
	for _, change := range rec.Updates {
		if err := tx.WithContext(ctx).Model(&PurchaseDetail{}).
			Where("id = ?", change.DetailId).
			Update("order_qty", change.AfterQty).Error; err != nil {
			return nil, err
		}
		history = append(history, PurchaseDetailHistory{
			PurchaseId: purchaseId,
			ProductId:  change.ProductId,
			BeforeQty:  change.BeforeQty,
			AfterQty:   change.AfterQty,
			ChangedBy:  actor,
		})
	}
	for _, change := range rec.Adds {
		mapping, err := FindPreferredSupplier(ctx, change.ProductId)
		if err != nil {
			return nil, err
		}
		line := PurchaseDetail{
			PurchaseId: purchaseId,
			ProductId:  change.ProductId,
			OrderQty:   change.AfterQty,
			UnitPrice:  mapping.PurchasePrice,
		}
		if err := tx.WithContext(ctx).Create(&line).Error; err != nil {
			return nil, err
		}
		history = append(history, PurchaseDetailHistory{
			PurchaseId: purchaseId,
			ProductId:  change.ProductId,
			BeforeQty:  0,
			AfterQty:   change.AfterQty,
			ChangedBy:  actor,
		})
	}

	// Single batch insert for the audit rows.
	if len(history) > 0 {
		if err := tx.WithContext(ctx).Create(&history).Error; err != nil {
			return nil, err
		}
	}

	if err := tx.WithContext(ctx).Where("purchase_id = ?", purchaseId).
		Order("id ASC").Find(&purchase.Details).Error; err != nil {
		return nil, err
	}

	nextStatus, err := NextOrderStatus(purchase.OrderStatus, OrderActionSubmit)
	if err != nil {
		return nil, err
	}
	purchase.OrderStatus = nextStatus
	purchase.SubmittedBy = &actor
	purchase.OrderTotalAmount = purchaseTotal(purchase.Details)
	if err := tx.WithContext(ctx).Model(&purchase).
		Select("OrderStatus", "SubmittedBy", "OrderTotalAmount").
		Updates(&purchase).Error; err != nil {
		return nil, err
	}

	summary := fmt.Sprintf("Purchase %s submitted by %s", purchase.PoNumber, actor)
	if err := QueueNotification(tx, RecipientsAdmins, ReferenceTypePurchase, purchase.ID, summary, correlationId); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

// UpdatePurchaseStatus applies one lifecycle action through the transition
// table. Confirmation increases on-hand stock per line and emits a
// settlement request; rejection is terminal with no inventory effect.
func UpdatePurchaseStatus(ctx context.Context, purchaseId int, action OrderAction, actor string) (*Purchase, error) {
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

	var purchase Purchase
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&purchase, purchaseId).Error; err != nil {
		return nil, utils.ErrorPurchaseNotFound
	}
	if err := tx.WithContext(ctx).Where("purchase_id = ?", purchaseId).
		Order("id ASC").Find(&purchase.Details).Error; err != nil {
		return nil, err
	}

	nextStatus, err := NextOrderStatus(purchase.OrderStatus, action)
	if err != nil {
		return nil, err
	}
	oldStatus := purchase.OrderStatus
	purchase.OrderStatus = nextStatus

	if err := tx.WithContext(ctx).Model(&purchase).
		Update("order_status", nextStatus).Error; err != nil {
		return nil, err
	}

	if err := ApplyPurchaseStockForStatusTransition(tx, &purchase, oldStatus); err != nil {
		return nil, err
	}

	if nextStatus == OrderStatusConfirmed {
		payload := SettlementRequestPayload{
			PurchaseId:  purchase.ID,
			SupplierId:  purchase.SupplierId,
			PoNumber:    purchase.PoNumber,
			TotalAmount: purchase.OrderTotalAmount.String(),
		}
		if err := QueueOutboxMessage(tx, ReferenceTypeSettlement, purchase.ID, ActionSettlementRequest, payload, correlationId); err != nil {
			return nil, err
		}
	}

	summary := fmt.Sprintf("Purchase %s %s by %s", purchase.PoNumber, strings.ToLower(string(action)), actor)
	if err := QueueNotification(tx, RecipientsAdmins, ReferenceTypePurchase, purchase.ID, summary, correlationId); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

// SumOpenPurchaseQty totals the ordered-but-not-yet-confirmed quantity for
// one product across submitted purchases.
func SumOpenPurchaseQty(ctx context.Context, productId int) (int, error) {
	db := config.GetDB()
	var total int
	err := db.WithContext(ctx).Model(&PurchaseDetail{}).
		Select("COALESCE(SUM(purchase_details.order_qty), 0)").
		Joins("JOIN purchases ON purchases.id = purchase_details.purchase_id").
		Where("purchase_details.product_id = ?", productId).
		Where("purchases.order_status = ?", OrderStatusSubmitted).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// GetAutoPurchases lists draft auto purchases awaiting review, newest first.
func GetAutoPurchases(ctx context.Context) ([]*Purchase, error) {
	db := config.GetDB()
	var purchases []*Purchase
	err := db.WithContext(ctx).Preload("Details").
		Where("order_type = ? AND order_status = ?", OrderTypeAuto, OrderStatusDraftAuto).
		Order("id DESC").
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}
	return purchases, nil
}

// GetPurchaseDetail fetches one purchase with lines and audit history.
func GetPurchaseDetail(ctx context.Context, purchaseId int) (*Purchase, []PurchaseDetailHistory, error) {
	db := config.GetDB()
	var purchase Purchase
	if err := db.WithContext(ctx).Preload("Details").First(&purchase, purchaseId).Error; err != nil {
		return nil, nil, utils.ErrorPurchaseNotFound
	}
	var history []PurchaseDetailHistory
	if err := db.WithContext(ctx).Where("purchase_id = ?", purchaseId).
		Order("id ASC").Find(&history).Error; err != nil {
		return nil, nil, err
	}
	return &purchase, history, nil
}
