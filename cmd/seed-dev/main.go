package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/synerge/order101-backend/config"
	"github.com/synerge/order101-backend/models"
	"github.com/synerge/order101-backend/utils"
)

// Seeds a small development dataset: two warehouses, three products with
// supplier mappings, a month of confirmed store orders and their ledger rows.
// Intended for local/dev databases only.
func main() {
	if os.Getenv("GO_ENV") == "production" {
		fmt.Fprintln(os.Stderr, "refusing to seed a production environment")
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	active := true
	warehouses := []models.Warehouse{
		{Name: "Central Warehouse", Code: "WH-CENTRAL", IsActive: &active},
		{Name: "North Warehouse", Code: "WH-NORTH", IsActive: &active},
	}
	if err := db.WithContext(ctx).Create(&warehouses).Error; err != nil {
		fmt.Fprintf(os.Stderr, "seed warehouses: %v\n", err)
		os.Exit(1)
	}

	suppliers := []models.Supplier{
		{Name: "Acme Trading", Email: "orders@acme.example", IsActive: &active},
		{Name: "Pacific Goods", Email: "po@pacific.example", IsActive: &active},
	}
	if err := db.WithContext(ctx).Create(&suppliers).Error; err != nil {
		fmt.Fprintf(os.Stderr, "seed suppliers: %v\n", err)
		os.Exit(1)
	}

	products := []models.Product{
		{Name: "Instant Noodles 24pk", Sku: "SKU-NOODLE", PurchasePrice: decimal.NewFromInt(12), SalesPrice: decimal.NewFromInt(18), IsActive: &active},
		{Name: "Bottled Water 12pk", Sku: "SKU-WATER", PurchasePrice: decimal.NewFromInt(5), SalesPrice: decimal.NewFromInt(9), IsActive: &active},
		{Name: "Rice 10kg", Sku: "SKU-RICE", PurchasePrice: decimal.NewFromInt(20), SalesPrice: decimal.NewFromInt(29), IsActive: &active},
	}
	if err := db.WithContext(ctx).Create(&products).Error; err != nil {
		fmt.Fprintf(os.Stderr, "seed products: %v\n", err)
		os.Exit(1)
	}

	for i, product := range products {
		mapping := models.ProductSupplier{
			ProductId:     product.ID,
			SupplierId:    suppliers[i%len(suppliers)].ID,
			LeadTimeDays:  5 + i,
			PurchasePrice: product.PurchasePrice,
			IsPreferred:   true,
		}
		if err := models.SaveProductSupplier(ctx, &mapping); err != nil {
			fmt.Fprintf(os.Stderr, "seed supplier mapping: %v\n", err)
			os.Exit(1)
		}
	}

	for _, warehouse := range warehouses {
		for _, product := range products {
			inv := models.WarehouseInventory{
				WarehouseId: warehouse.ID,
				ProductId:   product.ID,
				OnHandQty:   30,
			}
			if err := db.WithContext(ctx).Create(&inv).Error; err != nil {
				fmt.Fprintf(os.Stderr, "seed inventory: %v\n", err)
				os.Exit(1)
			}
		}
	}

	// A month of confirmed store orders against the first warehouse.
	now := time.Now()
	for day := 1; day <= 28; day++ {
		orderedAt := now.AddDate(0, 0, -day)
		order := models.StoreOrder{
			StoreId:     1,
			WarehouseId: warehouses[0].ID,
			OrderNumber: fmt.Sprintf("SO-%s-%03d", orderedAt.Format("20060102"), day),
			OrderStatus: models.StoreOrderStatusConfirmed,
			OrderedAt:   orderedAt,
		}
		for _, product := range products {
			order.Details = append(order.Details, models.StoreOrderDetail{
				ProductId: product.ID,
				OrderQty:  1 + (day+product.ID)%5,
				UnitPrice: product.SalesPrice,
			})
		}
		if err := db.WithContext(ctx).Create(&order).Error; err != nil {
			fmt.Fprintf(os.Stderr, "seed store order: %v\n", err)
			os.Exit(1)
		}
	}

	// One forecast row per product for next ISO week.
	targetWeek := utils.TargetWeekOf(now.AddDate(0, 0, 7))
	for _, product := range products {
		forecast := models.DemandForecast{
			ProductId:   product.ID,
			WarehouseId: warehouses[0].ID,
			TargetWeek:  targetWeek,
			YPred:       40 + product.ID*10,
		}
		if err := db.WithContext(ctx).Create(&forecast).Error; err != nil {
			fmt.Fprintf(os.Stderr, "seed forecast: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("seeded %d warehouses, %d suppliers, %d products, 28 days of sales, forecasts for %s\n",
		len(warehouses), len(suppliers), len(products), targetWeek)
}
