package workflow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/synerge/order101-backend/config"
	"github.com/synerge/order101-backend/models"
	"go.opentelemetry.io/otel"
)

// PlanAutoPurchases scans every ledger row for shortfalls (on-hand below
// safety), computes order quantities from the sales window and lead time,
// and creates one DRAFT_AUTO purchase per supplier per warehouse. Each
// created purchase is independently atomic; one failing supplier does not
// roll back the others.
func PlanAutoPurchases(ctx context.Context, logger *logrus.Logger) ([]*models.Purchase, error) {
	tracer := otel.Tracer("workflow")
	ctx, span := tracer.Start(ctx, "PlanAutoPurchases")
	defer span.End()

	since := time.Now().AddDate(0, 0, -config.SafetyStockWindowDays())

	warehouses, err := models.GetWarehouses(ctx)
	if err != nil {
		return nil, err
	}

	var created []*models.Purchase
	for _, warehouse := range warehouses {
		rows, err := models.ListInventories(ctx, warehouse.ID)
		if err != nil {
			config.LogError(logger, "autoPurchaseSweep.go", "PlanAutoPurchases", "list inventories", warehouse.ID, err)
			continue
		}

		var items []models.AutoPurchaseItem
		for _, row := range rows {
			if row.OnHandQty >= row.SafetyQty {
				continue
			}

			daily, err := models.FindDailySalesQtySince(ctx, row.ProductId, since)
			if err != nil {
				config.LogError(logger, "autoPurchaseSweep.go", "PlanAutoPurchases", "sales window", row.ProductId, err)
				continue
			}
			if len(daily) == 0 {
				logger.WithFields(logrus.Fields{
					"warehouse_id": row.WarehouseId,
					"product_id":   row.ProductId,
				}).Debug("shortfall skipped: empty sales window")
				continue
			}

			mapping, err := models.FindPreferredSupplier(ctx, row.ProductId)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"warehouse_id": row.WarehouseId,
					"product_id":   row.ProductId,
				}).Debug("shortfall skipped: no supplier mapping")
				continue
			}

			sales := make([]int, 0, len(daily))
			for _, d := range daily {
				sales = append(sales, d.TotalQty)
			}
			orderQty := models.CalculateAutoPurchaseQty(row.OnHandQty, row.SafetyQty, models.AverageDailySales(sales), mapping.LeadTimeDays)
			if orderQty <= 0 {
				continue
			}

			items = append(items, models.AutoPurchaseItem{
				ProductId:    row.ProductId,
				SupplierId:   mapping.SupplierId,
				OrderQty:     orderQty,
				UnitPrice:    mapping.PurchasePrice,
				LeadTimeDays: mapping.LeadTimeDays,
			})
		}

		for _, group := range models.GroupAutoItemsBySupplier(items) {
			input := models.NewPurchase{
				SupplierId:  group.SupplierId,
				WarehouseId: warehouse.ID,
				OrderType:   models.OrderTypeAuto,
			}
			for _, item := range group.Items {
				deadline := time.Now().AddDate(0, 0, item.LeadTimeDays)
				input.Details = append(input.Details, models.NewPurchaseDetail{
					ProductId: item.ProductId,
					OrderQty:  item.OrderQty,
					Deadline:  &deadline,
				})
			}

			purchase, err := models.CreatePurchase(ctx, &input, "system")
			if err != nil {
				config.LogError(logger, "autoPurchaseSweep.go", "PlanAutoPurchases", "create purchase", group.SupplierId, err)
				continue
			}
			created = append(created, purchase)
		}
	}

	logger.WithFields(logrus.Fields{
		"created": len(created),
	}).Info("auto purchase planning finished")
	return created, nil
}
