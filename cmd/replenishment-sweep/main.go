package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/synerge/order101-backend/config"
	"github.com/synerge/order101-backend/models"
	"github.com/synerge/order101-backend/utils"
	"github.com/synerge/order101-backend/workflow"
)

func main() {
	safetyOnly := flag.Bool("safety-only", false, "Run only the safety stock recalculation, skip auto purchase planning.")
	planOnly := flag.Bool("plan-only", false, "Run only the auto purchase planning, skip safety stock recalculation.")
	flag.Parse()

	ctx := context.Background()
	// Explicit DB connect (config no longer connects DB in init()).
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx = context.WithValue(ctx, utils.ContextKeyUserId, 0)
	ctx = context.WithValue(ctx, utils.ContextKeyUserName, "ReplenishmentSweep")

	logger := config.GetLogger()

	if !*planOnly {
		updated, skipped, err := workflow.RunSafetyStockRecalculation(ctx, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "safety stock recalculation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("safety stock: updated=%d skipped=%d\n", updated, skipped)
	}

	if !*safetyOnly {
		created, err := workflow.PlanAutoPurchases(ctx, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "auto purchase planning failed: %v\n", err)
			os.Exit(1)
		}
		for _, purchase := range created {
			fmt.Printf("created purchase %s (supplier=%d warehouse=%d lines=%d)\n",
				purchase.PoNumber, purchase.SupplierId, purchase.WarehouseId, len(purchase.Details))
		}
		fmt.Printf("auto purchase: created=%d\n", len(created))
	}
}
