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
	shipmentID := flag.Int("shipment-id", 0, "Optional: advance only one shipment. If 0, sweeps all due shipments.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx = context.WithValue(ctx, utils.ContextKeyUserId, 0)
	ctx = context.WithValue(ctx, utils.ContextKeyUserName, "ShipmentAdvance")

	logger := config.GetLogger()

	if *shipmentID > 0 {
		shipment, err := models.AdvanceShipment(ctx, *shipmentID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "advance shipment %d failed: %v\n", *shipmentID, err)
			os.Exit(1)
		}
		fmt.Printf("shipment %d: status=%s in_transit_applied=%t inventory_applied=%t\n",
			shipment.ID, shipment.ShipmentStatus, shipment.InTransitApplied, shipment.InventoryApplied)
		return
	}

	advanced, err := workflow.AdvanceShipments(ctx, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shipment sweep failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("shipment sweep: advanced=%d\n", advanced)
}
