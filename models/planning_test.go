package models

import "testing"

func TestCalculateSafetyStock(t *testing.T) {
	tests := []struct {
		name     string
		sales    []int
		leadTime int
		want     int
	}{
		{"empty window", nil, 7, 0},
		{"zero lead time", []int{5, 3}, 0, 0},
		{"flat sales give zero buffer", []int{4, 4, 4}, 10, 0},
		{"peak above mean", []int{2, 4, 9}, 3, 12}, // ceil((9-5)*3)
		{"fractional mean rounds up", []int{1, 2}, 7, 4}, // ceil((2-1.5)*7) = ceil(3.5)
		{"single day", []int{6}, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateSafetyStock(tt.sales, tt.leadTime); got != tt.want {
				t.Fatalf("CalculateSafetyStock(%v, %d) = %d, want %d", tt.sales, tt.leadTime, got, tt.want)
			}
		})
	}
}

func TestCalculateAutoPurchaseQty(t *testing.T) {
	// onHand=10, safety=20, avgDaily=5, leadTime=7:
	// targetStock = ceil(20 + 35) = 55, orderQty = 55 - 10 = 45.
	if got := CalculateAutoPurchaseQty(10, 20, 5, 7); got != 45 {
		t.Fatalf("shortfall example: got %d, want 45", got)
	}

	if got := CalculateAutoPurchaseQty(20, 20, 5, 7); got != 0 {
		t.Fatalf("no shortfall when on-hand meets safety: got %d", got)
	}
	if got := CalculateAutoPurchaseQty(50, 20, 5, 7); got != 0 {
		t.Fatalf("no shortfall when on-hand above safety: got %d", got)
	}
	// Fractional average rounds the target up.
	if got := CalculateAutoPurchaseQty(5, 10, 1.5, 3); got != 10 {
		t.Fatalf("fractional average: got %d, want 10", got) // ceil(10+4.5)=15, 15-5=10
	}
}

func TestCalculateSmartOrderQty(t *testing.T) {
	// weekly=100, leadTime=7, safety=20, onHand=10, inTransit=5:
	// leadTimeDemand = round(100*7/7) = 100, target = 220, rec = 205.
	if got := CalculateSmartOrderQty(100, 7, 20, 10, 5); got != 205 {
		t.Fatalf("recommendation example: got %d, want 205", got)
	}

	// Over-stocked products clamp to zero rather than going negative.
	if got := CalculateSmartOrderQty(10, 7, 0, 500, 100); got != 0 {
		t.Fatalf("over-stocked clamp: got %d, want 0", got)
	}

	// Lead time shorter than a week scales the demand down.
	// leadTimeDemand = round(70*3/7) = 30, target = 70+30+0 = 100.
	if got := CalculateSmartOrderQty(70, 3, 0, 0, 0); got != 100 {
		t.Fatalf("short lead time: got %d, want 100", got)
	}
}

func TestAverageDailySales(t *testing.T) {
	if got := AverageDailySales(nil); got != 0 {
		t.Fatalf("empty window: got %v", got)
	}
	if got := AverageDailySales([]int{2, 4, 6}); got != 4 {
		t.Fatalf("mean: got %v, want 4", got)
	}
}

func TestGroupAutoItemsBySupplier(t *testing.T) {
	items := []AutoPurchaseItem{
		{ProductId: 9, SupplierId: 2, OrderQty: 5},
		{ProductId: 1, SupplierId: 7, OrderQty: 3},
		{ProductId: 4, SupplierId: 2, OrderQty: 8},
		{ProductId: 2, SupplierId: 7, OrderQty: 1},
	}

	groups := GroupAutoItemsBySupplier(items)
	if len(groups) != 2 {
		t.Fatalf("expected 2 supplier groups, got %d", len(groups))
	}
	if groups[0].SupplierId != 2 || groups[1].SupplierId != 7 {
		t.Fatalf("groups not ordered by supplier id: %+v", groups)
	}
	if groups[0].Items[0].ProductId != 4 || groups[0].Items[1].ProductId != 9 {
		t.Fatalf("items not ordered by product id: %+v", groups[0].Items)
	}
	if groups[1].Items[0].ProductId != 1 || groups[1].Items[1].ProductId != 2 {
		t.Fatalf("items not ordered by product id: %+v", groups[1].Items)
	}
}

func TestGroupAutoItemsBySupplier_Empty(t *testing.T) {
	if groups := GroupAutoItemsBySupplier(nil); len(groups) != 0 {
		t.Fatalf("expected no groups, got %+v", groups)
	}
}
