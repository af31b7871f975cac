package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// Not-found variants surfaced to API callers.
var (
	ErrorPurchaseNotFound        = errors.New("purchase not found")
	ErrorSmartOrderNotFound      = errors.New("smart order not found")
	ErrorShipmentNotFound        = errors.New("shipment not found")
	ErrorInventoryNotFound       = errors.New("warehouse inventory not found")
	ErrorForecastNotFound        = errors.New("demand forecast not found")
	ErrorSupplierMappingNotFound = errors.New("supplier mapping not found")
)

// Guarded lifecycle violations.
var (
	ErrorInvalidStateTransition = errors.New("invalid state transition")
	ErrorSubmitNotAllowed       = errors.New("submit not allowed in current status")
	ErrorUpdateNotAllowed       = errors.New("update not allowed in current status")
)

// ErrorAlreadyExists is returned when a generation run targets a week that
// already has smart orders.
var ErrorAlreadyExists = errors.New("already exists")

// ErrorShipmentNotDelivered is returned when inventory application is
// requested for a shipment that has not reached DELIVERED.
var ErrorShipmentNotDelivered = errors.New("shipment not delivered")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
