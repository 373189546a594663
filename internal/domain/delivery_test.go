package domain

import (
	"testing"
	"time"
)

func TestDeliveryStatus_CanTransition(t *testing.T) {
	cases := []struct {
		from DeliveryStatus
		to   DeliveryStatus
		ok   bool
	}{
		{DeliveryStatusPending, DeliveryStatusAssigned, true},
		{DeliveryStatusPending, DeliveryStatusDelivering, true}, // вперёд через шаг — допустимо
		{DeliveryStatusAssigned, DeliveryStatusPicking, true},
		{DeliveryStatusPicking, DeliveryStatusDelivering, true},
		{DeliveryStatusDelivering, DeliveryStatusDelivered, true},
		{DeliveryStatusAssigned, DeliveryStatusPending, false},
		{DeliveryStatusDelivering, DeliveryStatusPicking, false},
		{DeliveryStatusPending, DeliveryStatusCanceled, true},
		{DeliveryStatusDelivering, DeliveryStatusCanceled, true},
		{DeliveryStatusDelivered, DeliveryStatusCanceled, false},
		{DeliveryStatusCanceled, DeliveryStatusAssigned, false},
		{DeliveryStatusPending, DeliveryStatus("teleported"), false},
		{DeliveryStatusPending, DeliveryStatusPending, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			if got := tc.from.CanTransition(tc.to); got != tc.ok {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
			}
		})
	}
}

func TestDelivery_TransitionStampsDeliveredAt(t *testing.T) {
	now := time.Now().UTC()
	d := Delivery{
		ID:      "delivery-1",
		OrderID: "order-1",
		Status:  DeliveryStatusDelivering,
	}

	if err := d.Transition(DeliveryStatusDelivered, now); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if d.DeliveredAt == nil || !d.DeliveredAt.Equal(now) {
		t.Fatalf("delivered_at not stamped: %v", d.DeliveredAt)
	}
}

func TestDelivery_TransitionRejected(t *testing.T) {
	d := Delivery{Status: DeliveryStatusDelivered}
	if err := d.Transition(DeliveryStatusPicking, time.Now()); err != ErrInvalidState {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if d.DeliveredAt != nil {
		t.Fatal("rejected transition must not mutate delivery")
	}
}
