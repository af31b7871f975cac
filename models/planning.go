package models

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// CalculateSafetyStock computes the buffer quantity for one product from its
// trailing daily sales window and supplier lead time:
//
//	safety = max(0, ceil((dMax - dAvg) * L))
//
// An empty window returns 0; callers treat that as a skip condition and keep
// the previous safety value.
func CalculateSafetyStock(sales []int, leadTimeDays int) int {
	if len(sales) == 0 || leadTimeDays <= 0 {
		return 0
	}
	dMax := 0
	sum := 0
	for _, qty := range sales {
		if qty > dMax {
			dMax = qty
		}
		sum += qty
	}
	dAvg := float64(sum) / float64(len(sales))
	safety := math.Ceil((float64(dMax) - dAvg) * float64(leadTimeDays))
	if safety < 0 {
		return 0
	}
	return int(safety)
}

// AverageDailySales is the mean of the sales window, 0 for an empty window.
func AverageDailySales(sales []int) float64 {
	if len(sales) == 0 {
		return 0
	}
	sum := 0
	for _, qty := range sales {
		sum += qty
	}
	return float64(sum) / float64(len(sales))
}

// CalculateAutoPurchaseQty computes the shortfall order quantity:
//
//	targetStock = ceil(safety + avgDaily * leadTime)
//	orderQty    = targetStock - onHand
//
// Returns 0 when there is no shortfall (onHand >= safety) or the computed
// quantity is not positive.
func CalculateAutoPurchaseQty(onHandQty int, safetyQty int, avgDailySales float64, leadTimeDays int) int {
	if onHandQty >= safetyQty {
		return 0
	}
	targetStock := int(math.Ceil(float64(safetyQty) + avgDailySales*float64(leadTimeDays)))
	orderQty := targetStock - onHandQty
	if orderQty <= 0 {
		return 0
	}
	return orderQty
}

// AutoPurchaseItem is one shortfall line produced by the planner before
// grouping.
type AutoPurchaseItem struct {
	ProductId    int
	SupplierId   int
	OrderQty     int
	UnitPrice    decimal.Decimal
	LeadTimeDays int
}

// SupplierItemGroup is the per-supplier batch that becomes one draft
// purchase order.
type SupplierItemGroup struct {
	SupplierId int
	Items      []AutoPurchaseItem
}

// GroupAutoItemsBySupplier partitions shortfall lines into one group per
// supplier. Output order is deterministic: suppliers ascending, items by
// product id ascending.
func GroupAutoItemsBySupplier(items []AutoPurchaseItem) []SupplierItemGroup {
	bySupplier := make(map[int][]AutoPurchaseItem)
	for _, item := range items {
		bySupplier[item.SupplierId] = append(bySupplier[item.SupplierId], item)
	}

	supplierIds := make([]int, 0, len(bySupplier))
	for supplierId := range bySupplier {
		supplierIds = append(supplierIds, supplierId)
	}
	sort.Ints(supplierIds)

	groups := make([]SupplierItemGroup, 0, len(supplierIds))
	for _, supplierId := range supplierIds {
		group := bySupplier[supplierId]
		sort.Slice(group, func(i, j int) bool { return group[i].ProductId < group[j].ProductId })
		groups = append(groups, SupplierItemGroup{SupplierId: supplierId, Items: group})
	}
	return groups
}

// CalculateSmartOrderQty computes a forecast-driven recommendation:
//
//	leadTimeDemand = round(weeklyForecast * leadTimeDays / 7)
//	targetStock    = weeklyForecast + leadTimeDemand + safety
//	recommended    = max(0, targetStock - onHand - inTransit)
func CalculateSmartOrderQty(weeklyForecast int, leadTimeDays int, safetyQty int, onHandQty int, inTransitQty int) int {
	leadTimeDemand := int(math.Round(float64(weeklyForecast) * float64(leadTimeDays) / 7.0))
	targetStock := weeklyForecast + leadTimeDemand + safetyQty
	recommended := targetStock - onHandQty - inTransitQty
	if recommended < 0 {
		return 0
	}
	return recommended
}

// LineChange is one reconciliation outcome for a purchase line. DetailId is
// zero for newly added lines.
type LineChange struct {
	DetailId  int
	ProductId int
	BeforeQty int
	AfterQty  int
}

// LineReconciliation is the full diff applied by submitAutoPurchase.
type LineReconciliation struct {
	Updates []LineChange
	Deletes []LineChange
	Adds    []LineChange
}

// HasChanges reports whether applying the diff would alter any line.
func (r LineReconciliation) HasChanges() bool {
	return len(r.Updates) > 0 || len(r.Deletes) > 0 || len(r.Adds) > 0
}

// BuildLineReconciliation diffs the existing lines of a draft purchase
// against the target {productId -> qty} set:
//   - existing product absent from target: delete, history afterQty = 0
//   - existing product present with different qty: update
//   - existing product present with same qty: untouched, no history
//   - target entries not matching any line: add, history beforeQty = 0
//
// The result is independent of the iteration order over target: existing
// lines are walked in slice order and adds are sorted by product id.
func BuildLineReconciliation(existing []PurchaseDetail, target map[int]int) LineReconciliation {
	var rec LineReconciliation

	remaining := make(map[int]int, len(target))
	for productId, qty := range target {
		remaining[productId] = qty
	}

	for _, line := range existing {
		newQty, present := remaining[line.ProductId]
		if !present {
			rec.Deletes = append(rec.Deletes, LineChange{
				DetailId:  line.ID,
				ProductId: line.ProductId,
				BeforeQty: line.OrderQty,
				AfterQty:  0,
			})
			continue
		}
		delete(remaining, line.ProductId)
		if newQty != line.OrderQty {
			rec.Updates = append(rec.Updates, LineChange{
				DetailId:  line.ID,
				ProductId: line.ProductId,
				BeforeQty: line.OrderQty,
				AfterQty:  newQty,
			})
		}
	}

	addProductIds := make([]int, 0, len(remaining))
	for productId := range remaining {
		addProductIds = append(addProductIds, productId)
	}
	sort.Ints(addProductIds)
	for _, productId := range addProductIds {
		rec.Adds = append(rec.Adds, LineChange{
			ProductId: productId,
			BeforeQty: 0,
			AfterQty:  remaining[productId],
		})
	}

	return rec
}
