package config

import (
	"os"
	"strings"
	"time"
)

// ShipmentInTransitThreshold is how long a WAITING shipment sits before the
// sweep promotes it to IN_TRANSIT.
//
// Set via env:
// - SHIPMENT_IN_TRANSIT_THRESHOLD_SECONDS (default 60)
func ShipmentInTransitThreshold() time.Duration {
	return time.Duration(intFromEnv("SHIPMENT_IN_TRANSIT_THRESHOLD_SECONDS", 60)) * time.Second
}

// ShipmentDeliveredThreshold is how long an IN_TRANSIT shipment sits (since
// its last update) before the sweep promotes it to DELIVERED.
//
// Set via env:
// - SHIPMENT_DELIVERED_THRESHOLD_SECONDS (default 60)
func ShipmentDeliveredThreshold() time.Duration {
	return time.Duration(intFromEnv("SHIPMENT_DELIVERED_THRESHOLD_SECONDS", 60)) * time.Second
}

// ShipmentSweepInterval is the period of the in-process shipment sweep loop.
//
// Set via env:
// - SHIPMENT_SWEEP_INTERVAL_SECONDS (default 30)
func ShipmentSweepInterval() time.Duration {
	return time.Duration(intFromEnv("SHIPMENT_SWEEP_INTERVAL_SECONDS", 30)) * time.Second
}

// SafetyStockWindowDays is the sales-history window for safety stock
// recalculation.
//
// Set via env:
// - SAFETY_STOCK_WINDOW_DAYS (default 30)
func SafetyStockWindowDays() int {
	return intFromEnv("SAFETY_STOCK_WINDOW_DAYS", 30)
}

// StrictPurchaseImmutability blocks reviewer line edits when submitting an
// auto purchase draft; drafts must go out exactly as planned, or be rejected
// and re-planned.
//
// Set via env:
// - STRICT_PURCHASE_IMMUTABLE=true
func StrictPurchaseImmutability() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_PURCHASE_IMMUTABLE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// OutboxDispatcherEnabled gates the background outbox publisher loop.
//
// Set via env:
// - OUTBOX_DISPATCHER_ENABLED=true (default true)
func OutboxDispatcherEnabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("OUTBOX_DISPATCHER_ENABLED")))
	if raw == "" {
		return true
	}
	return raw == "1" || raw == "true" || raw == "yes" || raw == "y"
}
