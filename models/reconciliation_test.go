package models

import (
	"reflect"
	"testing"
)

func existingLines() []PurchaseDetail {
	return []PurchaseDetail{
		{ID: 11, ProductId: 1, OrderQty: 10},
		{ID: 12, ProductId: 2, OrderQty: 20},
		{ID: 13, ProductId: 3, OrderQty: 30},
	}
}

func TestBuildLineReconciliation(t *testing.T) {
	// Product 1 removed, product 2 changed, product 3 untouched, product 4 added.
	target := map[int]int{2: 25, 3: 30, 4: 5}

	rec := BuildLineReconciliation(existingLines(), target)

	wantDeletes := []LineChange{{DetailId: 11, ProductId: 1, BeforeQty: 10, AfterQty: 0}}
	if !reflect.DeepEqual(rec.Deletes, wantDeletes) {
		t.Fatalf("deletes = %+v, want %+v", rec.Deletes, wantDeletes)
	}

	wantUpdates := []LineChange{{DetailId: 12, ProductId: 2, BeforeQty: 20, AfterQty: 25}}
	if !reflect.DeepEqual(rec.Updates, wantUpdates) {
		t.Fatalf("updates = %+v, want %+v", rec.Updates, wantUpdates)
	}

	wantAdds := []LineChange{{ProductId: 4, BeforeQty: 0, AfterQty: 5}}
	if !reflect.DeepEqual(rec.Adds, wantAdds) {
		t.Fatalf("adds = %+v, want %+v", rec.Adds, wantAdds)
	}
}

func TestBuildLineReconciliation_UnchangedLinesProduceNoHistory(t *testing.T) {
	target := map[int]int{1: 10, 2: 20, 3: 30}

	rec := BuildLineReconciliation(existingLines(), target)
	if len(rec.Deletes) != 0 || len(rec.Updates) != 0 || len(rec.Adds) != 0 {
		t.Fatalf("expected empty reconciliation, got %+v", rec)
	}
}

func TestBuildLineReconciliation_EmptyTargetDeletesEverything(t *testing.T) {
	rec := BuildLineReconciliation(existingLines(), map[int]int{})
	if len(rec.Deletes) != 3 {
		t.Fatalf("expected 3 deletes, got %+v", rec.Deletes)
	}
	if len(rec.Updates) != 0 || len(rec.Adds) != 0 {
		t.Fatalf("expected no updates/adds, got %+v", rec)
	}
}

func TestLineReconciliation_HasChanges(t *testing.T) {
	if (LineReconciliation{}).HasChanges() {
		t.Fatal("empty reconciliation reported changes")
	}
	unchanged := BuildLineReconciliation(existingLines(), map[int]int{1: 10, 2: 20, 3: 30})
	if unchanged.HasChanges() {
		t.Fatalf("identical target reported changes: %+v", unchanged)
	}

	cases := map[string]map[int]int{
		"update": {1: 10, 2: 25, 3: 30},
		"delete": {1: 10, 2: 20},
		"add":    {1: 10, 2: 20, 3: 30, 4: 5},
	}
	for name, target := range cases {
		if rec := BuildLineReconciliation(existingLines(), target); !rec.HasChanges() {
			t.Fatalf("%s target reported no changes: %+v", name, rec)
		}
	}
}

// Building the diff repeatedly from equal target maps must give identical
// results regardless of map iteration order, including the order of added
// lines.
func TestBuildLineReconciliation_Deterministic(t *testing.T) {
	target := map[int]int{9: 1, 5: 2, 7: 3, 2: 25}

	first := BuildLineReconciliation(existingLines(), target)
	for i := 0; i < 50; i++ {
		clone := make(map[int]int, len(target))
		for k, v := range target {
			clone[k] = v
		}
		got := BuildLineReconciliation(existingLines(), clone)
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d diverged: %+v vs %+v", i, got, first)
		}
	}

	wantAdds := []LineChange{
		{ProductId: 5, BeforeQty: 0, AfterQty: 2},
		{ProductId: 7, BeforeQty: 0, AfterQty: 3},
		{ProductId: 9, BeforeQty: 0, AfterQty: 1},
	}
	if !reflect.DeepEqual(first.Adds, wantAdds) {
		t.Fatalf("adds not sorted by product id: %+v", first.Adds)
	}
}
