package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/synerge/order101-backend/config"
	"github.com/synerge/order101-backend/models"
	"github.com/synerge/order101-backend/utils"
	"github.com/synerge/order101-backend/workflow"
)

// End-to-end replenishment flow against real MySQL + Redis:
// safety stock recalculation -> auto purchase planning -> reviewed submit
// -> confirm (stock in) -> shipment WAITING -> IN_TRANSIT -> DELIVERED
// with conservation of on-hand and in-transit quantities.
func TestReplenishmentFlow_SafetyStockToDeliveredShipment(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "order101_test")
	// Promote shipments immediately so the sweep steps can run back to back.
	t.Setenv("SHIPMENT_IN_TRANSIT_THRESHOLD_SECONDS", "0")
	t.Setenv("SHIPMENT_DELIVERED_THRESHOLD_SECONDS", "0")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetCorrelationIdInContext(ctx, "itest-flow")

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	logger := config.GetLogger()

	active := true
	warehouse := models.Warehouse{Name: "Test Warehouse", Code: "WH-TEST", IsActive: &active}
	if err := db.WithContext(ctx).Create(&warehouse).Error; err != nil {
		t.Fatalf("create warehouse: %v", err)
	}
	supplier := models.Supplier{Name: "Test Supplier", Email: "po@test.local", IsActive: &active}
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	product := models.Product{Name: "Widget", Sku: "SKU-WIDGET", PurchasePrice: decimal.NewFromInt(3), SalesPrice: decimal.NewFromInt(5), IsActive: &active}
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	mapping := models.ProductSupplier{
		ProductId:     product.ID,
		SupplierId:    supplier.ID,
		LeadTimeDays:  5,
		PurchasePrice: product.PurchasePrice,
		IsPreferred:   true,
	}
	if err := models.SaveProductSupplier(ctx, &mapping); err != nil {
		t.Fatalf("save supplier mapping: %v", err)
	}
	inv := models.WarehouseInventory{WarehouseId: warehouse.ID, ProductId: product.ID, OnHandQty: 10}
	if err := db.WithContext(ctx).Create(&inv).Error; err != nil {
		t.Fatalf("create inventory: %v", err)
	}

	// 14 days of confirmed sales: 2/day with one spike of 9.
	// dAvg = 35/14 = 2.5, dMax = 9, safety = ceil((9-2.5)*5) = 33.
	now := time.Now()
	for day := 1; day <= 14; day++ {
		qty := 2
		if day == 7 {
			qty = 9
		}
		order := models.StoreOrder{
			StoreId:     1,
			WarehouseId: warehouse.ID,
			OrderNumber: fmt.Sprintf("SO-TEST-%03d", day),
			OrderStatus: models.StoreOrderStatusConfirmed,
			OrderedAt:   now.AddDate(0, 0, -day),
			Details: []models.StoreOrderDetail{
				{ProductId: product.ID, OrderQty: qty, UnitPrice: product.SalesPrice},
			},
		}
		if err := db.WithContext(ctx).Create(&order).Error; err != nil {
			t.Fatalf("create store order day %d: %v", day, err)
		}
	}

	// 1) Safety stock recalculation.
	updated, skipped, err := workflow.RunSafetyStockRecalculation(ctx, logger)
	if err != nil {
		t.Fatalf("RunSafetyStockRecalculation: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 updated safety value, got updated=%d skipped=%d", updated, skipped)
	}
	fresh, err := models.GetInventory(ctx, warehouse.ID, product.ID)
	if err != nil {
		t.Fatalf("GetInventory: %v", err)
	}
	if fresh.SafetyQty != 33 {
		t.Fatalf("safety qty = %d, want 33", fresh.SafetyQty)
	}

	// 2) Auto purchase planning: onHand 10 < safety 33.
	// targetStock = ceil(33 + 2.5*5) = 46, orderQty = 36.
	created, err := workflow.PlanAutoPurchases(ctx, logger)
	if err != nil {
		t.Fatalf("PlanAutoPurchases: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 draft purchase, got %d", len(created))
	}
	draft := created[0]
	if draft.OrderStatus != models.OrderStatusDraftAuto {
		t.Fatalf("purchase status = %s, want DRAFT_AUTO", draft.OrderStatus)
	}
	if len(draft.Details) != 1 || draft.Details[0].OrderQty != 36 {
		t.Fatalf("unexpected draft lines: %+v", draft.Details)
	}

	// 3) Reviewed submit with an edited quantity, audit row recorded.
	// Strict immutability refuses the edit outright; the draft stays put.
	t.Setenv("STRICT_PURCHASE_IMMUTABLE", "true")
	if _, err := models.SubmitAutoPurchase(ctx, draft.ID, "Reviewer", map[int]int{product.ID: 40}); err != utils.ErrorUpdateNotAllowed {
		t.Fatalf("strict mode edit: expected ErrorUpdateNotAllowed, got %v", err)
	}
	t.Setenv("STRICT_PURCHASE_IMMUTABLE", "false")

	submitted, err := models.SubmitAutoPurchase(ctx, draft.ID, "Reviewer", map[int]int{product.ID: 40})
	if err != nil {
		t.Fatalf("SubmitAutoPurchase: %v", err)
	}
	if submitted.OrderStatus != models.OrderStatusSubmitted {
		t.Fatalf("purchase status = %s, want SUBMITTED", submitted.OrderStatus)
	}
	_, history, err := models.GetPurchaseDetail(ctx, draft.ID)
	if err != nil {
		t.Fatalf("GetPurchaseDetail: %v", err)
	}
	if len(history) != 1 || history[0].BeforeQty != 36 || history[0].AfterQty != 40 {
		t.Fatalf("unexpected audit history: %+v", history)
	}

	// Resubmitting a non-draft purchase is rejected.
	if _, err := models.SubmitAutoPurchase(ctx, draft.ID, "Reviewer", nil); err != utils.ErrorSubmitNotAllowed {
		t.Fatalf("resubmit: expected ErrorSubmitNotAllowed, got %v", err)
	}

	// 4) Confirm books the stock in.
	if _, err := models.UpdatePurchaseStatus(ctx, draft.ID, models.OrderActionConfirm, "Manager"); err != nil {
		t.Fatalf("UpdatePurchaseStatus confirm: %v", err)
	}
	fresh, err = models.GetInventory(ctx, warehouse.ID, product.ID)
	if err != nil {
		t.Fatalf("GetInventory after confirm: %v", err)
	}
	if fresh.OnHandQty != 50 {
		t.Fatalf("on-hand after confirm = %d, want 50", fresh.OnHandQty)
	}

	// 5) Shipment lifecycle with conservation checks.
	shipOrder := models.StoreOrder{
		StoreId:     1,
		WarehouseId: warehouse.ID,
		OrderNumber: "SO-TEST-SHIP",
		OrderStatus: models.StoreOrderStatusConfirmed,
		OrderedAt:   now,
		Details: []models.StoreOrderDetail{
			{ProductId: product.ID, OrderQty: 8, UnitPrice: product.SalesPrice},
		},
	}
	if err := db.WithContext(ctx).Create(&shipOrder).Error; err != nil {
		t.Fatalf("create shipment order: %v", err)
	}
	shipment, err := models.CreateShipmentForOrder(ctx, shipOrder.ID, warehouse.ID)
	if err != nil {
		t.Fatalf("CreateShipmentForOrder: %v", err)
	}
	if shipment.ShipmentStatus != models.ShipmentStatusWaiting {
		t.Fatalf("shipment status = %s, want WAITING", shipment.ShipmentStatus)
	}

	shipment, err = models.AdvanceShipment(ctx, shipment.ID)
	if err != nil {
		t.Fatalf("AdvanceShipment to in transit: %v", err)
	}
	if shipment.ShipmentStatus != models.ShipmentStatusInTransit {
		t.Fatalf("shipment status = %s, want IN_TRANSIT", shipment.ShipmentStatus)
	}
	fresh, _ = models.GetInventory(ctx, warehouse.ID, product.ID)
	if fresh.InTransitQty != 8 {
		t.Fatalf("in-transit after first advance = %d, want 8", fresh.InTransitQty)
	}

	shipment, err = models.AdvanceShipment(ctx, shipment.ID)
	if err != nil {
		t.Fatalf("AdvanceShipment to delivered: %v", err)
	}
	if shipment.ShipmentStatus != models.ShipmentStatusDelivered {
		t.Fatalf("shipment status = %s, want DELIVERED", shipment.ShipmentStatus)
	}
	fresh, _ = models.GetInventory(ctx, warehouse.ID, product.ID)
	if fresh.OnHandQty != 58 || fresh.InTransitQty != 0 {
		t.Fatalf("inventory after delivery = onHand %d inTransit %d, want 58/0", fresh.OnHandQty, fresh.InTransitQty)
	}

	// 6) Idempotence: a delivered shipment is terminal, repeated advances and
	// replayed apply commands move no stock.
	shipment, err = models.AdvanceShipment(ctx, shipment.ID)
	if err != nil {
		t.Fatalf("AdvanceShipment on delivered: %v", err)
	}
	if !shipment.InTransitApplied || !shipment.InventoryApplied {
		t.Fatalf("applied flags not set: %+v", shipment)
	}
	tx := db.Begin()
	if err := models.ApplyShipmentDelivered(tx, shipment.ID); err != nil {
		tx.Rollback()
		t.Fatalf("replayed ApplyShipmentDelivered: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("commit replay: %v", err)
	}
	fresh, _ = models.GetInventory(ctx, warehouse.ID, product.ID)
	if fresh.OnHandQty != 58 || fresh.InTransitQty != 0 {
		t.Fatalf("replay moved stock: onHand %d inTransit %d", fresh.OnHandQty, fresh.InTransitQty)
	}

	// Store order mirror follows the shipment.
	mirrored, err := models.GetStoreOrder(ctx, shipOrder.ID)
	if err != nil {
		t.Fatalf("GetStoreOrder: %v", err)
	}
	if mirrored.ShipmentStatus != models.ShipmentStatusDelivered {
		t.Fatalf("store order mirror = %s, want DELIVERED", mirrored.ShipmentStatus)
	}
}

// Smart order generation is once per target week; a second run must fail
// with AlreadyExists and create nothing new.
func TestSmartOrderGeneration_DuplicateWeekRejected(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "order101_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	active := true
	warehouse := models.Warehouse{Name: "Smart Warehouse", Code: "WH-SMART", IsActive: &active}
	if err := db.WithContext(ctx).Create(&warehouse).Error; err != nil {
		t.Fatalf("create warehouse: %v", err)
	}
	supplier := models.Supplier{Name: "Smart Supplier", Email: "smart@test.local", IsActive: &active}
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	product := models.Product{Name: "Gadget", Sku: "SKU-GADGET", PurchasePrice: decimal.NewFromInt(2), SalesPrice: decimal.NewFromInt(4), IsActive: &active}
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	mapping := models.ProductSupplier{
		ProductId:     product.ID,
		SupplierId:    supplier.ID,
		LeadTimeDays:  7,
		PurchasePrice: product.PurchasePrice,
		IsPreferred:   true,
	}
	if err := models.SaveProductSupplier(ctx, &mapping); err != nil {
		t.Fatalf("save supplier mapping: %v", err)
	}
	inv := models.WarehouseInventory{WarehouseId: warehouse.ID, ProductId: product.ID, OnHandQty: 10, SafetyQty: 20}
	if err := db.WithContext(ctx).Create(&inv).Error; err != nil {
		t.Fatalf("create inventory: %v", err)
	}

	targetWeek := utils.TargetWeekOf(time.Now().AddDate(0, 0, 7))
	forecast := models.DemandForecast{
		ProductId:   product.ID,
		WarehouseId: warehouse.ID,
		TargetWeek:  targetWeek,
		YPred:       100,
	}
	if err := db.WithContext(ctx).Create(&forecast).Error; err != nil {
		t.Fatalf("create forecast: %v", err)
	}

	orders, err := models.GenerateSmartOrders(ctx, targetWeek, "Planner")
	if err != nil {
		t.Fatalf("GenerateSmartOrders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 smart order, got %d", len(orders))
	}
	// weekly=100, lead=7 -> leadTimeDemand=100, target=220, rec=220-10-0=210.
	if orders[0].RecommendedOrderQty != 210 {
		t.Fatalf("recommended qty = %d, want 210", orders[0].RecommendedOrderQty)
	}

	if _, err := models.GenerateSmartOrders(ctx, targetWeek, "Planner"); err != utils.ErrorAlreadyExists {
		t.Fatalf("duplicate week: expected ErrorAlreadyExists, got %v", err)
	}

	summary, err := models.GetSmartOrderSummary(ctx, targetWeek)
	if err != nil {
		t.Fatalf("GetSmartOrderSummary: %v", err)
	}
	if summary.TotalOrders != 1 {
		t.Fatalf("summary total = %d, want 1", summary.TotalOrders)
	}

	weekOrders, err := models.GetSmartOrdersForWeek(ctx, targetWeek)
	if err != nil {
		t.Fatalf("GetSmartOrdersForWeek: %v", err)
	}
	if len(weekOrders) != 1 || weekOrders[0].ProductId != product.ID {
		t.Fatalf("week listing = %+v, want the single generated order", weekOrders)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("order101-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("order101-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=order101_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
