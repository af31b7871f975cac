package models

import (
	"log"

	"github.com/synerge/order101-backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Warehouse{}, &Supplier{}, &Product{}, &ProductSupplier{},
		&WarehouseInventory{},
		&StoreOrder{}, &StoreOrderDetail{},
		&Purchase{}, &PurchaseDetail{}, &PurchaseDetailHistory{},
		&DemandForecast{}, &SmartOrder{},
		&Shipment{},
		&PubSubMessageRecord{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
