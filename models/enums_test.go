package models

import (
	"errors"
	"testing"

	"github.com/synerge/order101-backend/utils"
)

func TestNextOrderStatus_ValidTransitions(t *testing.T) {
	tests := []struct {
		current OrderStatus
		action  OrderAction
		want    OrderStatus
	}{
		{OrderStatusDraftAuto, OrderActionSubmit, OrderStatusSubmitted},
		{OrderStatusSubmitted, OrderActionConfirm, OrderStatusConfirmed},
		{OrderStatusSubmitted, OrderActionReject, OrderStatusRejected},
	}
	for _, tt := range tests {
		got, err := NextOrderStatus(tt.current, tt.action)
		if err != nil {
			t.Fatalf("NextOrderStatus(%s, %s): %v", tt.current, tt.action, err)
		}
		if got != tt.want {
			t.Fatalf("NextOrderStatus(%s, %s) = %s, want %s", tt.current, tt.action, got, tt.want)
		}
	}
}

func TestNextOrderStatus_RejectedTransitions(t *testing.T) {
	tests := []struct {
		current OrderStatus
		action  OrderAction
	}{
		{OrderStatusDraftAuto, OrderActionConfirm},
		{OrderStatusDraftAuto, OrderActionReject},
		{OrderStatusSubmitted, OrderActionSubmit},
		{OrderStatusConfirmed, OrderActionSubmit},
		{OrderStatusConfirmed, OrderActionConfirm},
		{OrderStatusConfirmed, OrderActionReject},
		{OrderStatusRejected, OrderActionSubmit},
		{OrderStatusRejected, OrderActionConfirm},
		{OrderStatusRejected, OrderActionReject},
	}
	for _, tt := range tests {
		got, err := NextOrderStatus(tt.current, tt.action)
		if !errors.Is(err, utils.ErrorInvalidStateTransition) {
			t.Fatalf("NextOrderStatus(%s, %s): expected ErrorInvalidStateTransition, got %v", tt.current, tt.action, err)
		}
		if got != tt.current {
			t.Fatalf("NextOrderStatus(%s, %s): status changed to %s on rejected action", tt.current, tt.action, got)
		}
	}
}
