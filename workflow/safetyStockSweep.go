package workflow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/synerge/order101-backend/config"
	"github.com/synerge/order101-backend/models"
	"go.opentelemetry.io/otel"
)

// RunSafetyStockRecalculation recomputes safety quantities for every ledger
// row from the trailing sales window and the preferred supplier's lead time.
// Rows with no sales in the window or no supplier mapping are skipped and
// keep their previous value; per-row failures never abort the run.
func RunSafetyStockRecalculation(ctx context.Context, logger *logrus.Logger) (updated int, skipped int, err error) {
	tracer := otel.Tracer("workflow")
	ctx, span := tracer.Start(ctx, "RunSafetyStockRecalculation")
	defer span.End()

	since := time.Now().AddDate(0, 0, -config.SafetyStockWindowDays())

	warehouses, err := models.GetWarehouses(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, warehouse := range warehouses {
		rows, err := models.ListInventories(ctx, warehouse.ID)
		if err != nil {
			config.LogError(logger, "safetyStockSweep.go", "RunSafetyStockRecalculation", "list inventories", warehouse.ID, err)
			continue
		}
		for _, row := range rows {
			daily, err := models.FindDailySalesQtySince(ctx, row.ProductId, since)
			if err != nil {
				config.LogError(logger, "safetyStockSweep.go", "RunSafetyStockRecalculation", "sales window", row.ProductId, err)
				continue
			}
			if len(daily) == 0 {
				logger.WithFields(logrus.Fields{
					"warehouse_id": row.WarehouseId,
					"product_id":   row.ProductId,
				}).Debug("safety stock skipped: empty sales window")
				skipped++
				continue
			}

			mapping, err := models.FindPreferredSupplier(ctx, row.ProductId)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"warehouse_id": row.WarehouseId,
					"product_id":   row.ProductId,
				}).Debug("safety stock skipped: no supplier mapping")
				skipped++
				continue
			}

			sales := make([]int, 0, len(daily))
			for _, d := range daily {
				sales = append(sales, d.TotalQty)
			}
			safety := models.CalculateSafetyStock(sales, mapping.LeadTimeDays)

			if err := models.UpdateSafetyQty(ctx, row.WarehouseId, row.ProductId, safety); err != nil {
				config.LogError(logger, "safetyStockSweep.go", "RunSafetyStockRecalculation", "update safety qty", row.ProductId, err)
				continue
			}
			updated++
		}
	}

	logger.WithFields(logrus.Fields{
		"updated": updated,
		"skipped": skipped,
	}).Info("safety stock recalculation finished")
	return updated, skipped, nil
}
