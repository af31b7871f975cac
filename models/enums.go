package models

import (
	"github.com/synerge/order101-backend/utils"
)

type OrderType string

const (
	OrderTypeManual OrderType = "MANUAL"
	OrderTypeAuto   OrderType = "AUTO"
	OrderTypeSmart  OrderType = "SMART"
)

type OrderStatus string

const (
	OrderStatusDraftAuto OrderStatus = "DRAFT_AUTO"
	OrderStatusSubmitted OrderStatus = "SUBMITTED"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

type OrderAction string

const (
	OrderActionSubmit  OrderAction = "SUBMIT"
	OrderActionConfirm OrderAction = "CONFIRM"
	OrderActionReject  OrderAction = "REJECT"
)

type orderTransitionKey struct {
	Status OrderStatus
	Action OrderAction
}

// orderTransitions is the single lifecycle table shared by purchases and
// smart orders. A missing entry means the action is rejected.
var orderTransitions = map[orderTransitionKey]OrderStatus{
	{OrderStatusDraftAuto, OrderActionSubmit}:  OrderStatusSubmitted,
	{OrderStatusSubmitted, OrderActionConfirm}: OrderStatusConfirmed,
	{OrderStatusSubmitted, OrderActionReject}:  OrderStatusRejected,
}

// NextOrderStatus resolves the transition table for (current, action).
// Returns ErrorInvalidStateTransition when no entry exists.
func NextOrderStatus(current OrderStatus, action OrderAction) (OrderStatus, error) {
	next, ok := orderTransitions[orderTransitionKey{current, action}]
	if !ok {
		return current, utils.ErrorInvalidStateTransition
	}
	return next, nil
}

type ShipmentStatus string

const (
	ShipmentStatusWaiting   ShipmentStatus = "WAITING"
	ShipmentStatusInTransit ShipmentStatus = "IN_TRANSIT"
	ShipmentStatusDelivered ShipmentStatus = "DELIVERED"
)

type StoreOrderStatus string

const (
	StoreOrderStatusPending   StoreOrderStatus = "PENDING"
	StoreOrderStatusConfirmed StoreOrderStatus = "CONFIRMED"
	StoreOrderStatusCancelled StoreOrderStatus = "CANCELLED"
)

// ReferenceType tags outbox rows and pubsub messages with the aggregate kind
// they refer to.
type ReferenceType string

const (
	ReferenceTypePurchase     ReferenceType = "PURCHASE"
	ReferenceTypeSmartOrder   ReferenceType = "SMART_ORDER"
	ReferenceTypeShipment     ReferenceType = "SHIPMENT"
	ReferenceTypeNotification ReferenceType = "NOTIFICATION"
	ReferenceTypeSettlement   ReferenceType = "SETTLEMENT"
)

// PubSubMessageAction is the event verb carried on outbox rows.
type PubSubMessageAction string

const (
	ActionShipmentInTransit PubSubMessageAction = "SHIPMENT_IN_TRANSIT"
	ActionShipmentDelivered PubSubMessageAction = "SHIPMENT_DELIVERED"
	ActionNotify            PubSubMessageAction = "NOTIFY"
	ActionSettlementRequest PubSubMessageAction = "SETTLEMENT_REQUEST"
)
