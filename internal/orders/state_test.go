package orders

import (
	"testing"
	"time"

	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
)

func TestStateOfRoundTrips(t *testing.T) {
	t.Parallel()

	now := time.Now()
	cases := []struct {
		name  string
		order models.Order
		want  enums.OrderStatus
	}{
		{"pending", models.Order{Status: enums.OrderStatusPending}, enums.OrderStatusPending},
		{"paid", models.Order{Status: enums.OrderStatusPaid, PaidAt: &now}, enums.OrderStatusPaid},
		{"fulfilled", models.Order{Status: enums.OrderStatusFulfilled, PaidAt: &now}, enums.OrderStatusFulfilled},
		{"cancelled", models.Order{Status: enums.OrderStatusCancelled, CanceledAt: &now, StockReleasedAt: &now}, enums.OrderStatusCancelled},
	}
	for _, tc := range cases {
		state, err := StateOf(&tc.order)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if state.Status() != tc.want {
			t.Fatalf("%s: status = %s", tc.name, state.Status())
		}
	}
}

func TestStateOfRejectsContradictoryRows(t *testing.T) {
	t.Parallel()

	now := time.Now()
	cases := []struct {
		name  string
		order models.Order
	}{
		{"pending with paid_at", models.Order{Status: enums.OrderStatusPending, PaidAt: &now}},
		{"paid without paid_at", models.Order{Status: enums.OrderStatusPaid}},
		{"fulfilled without paid_at", models.Order{Status: enums.OrderStatusFulfilled}},
		{"cancelled without canceled_at", models.Order{Status: enums.OrderStatusCancelled}},
		{"unknown status", models.Order{Status: enums.OrderStatus("SHIPPED")}},
	}
	for _, tc := range cases {
		if _, err := StateOf(&tc.order); !pkgerrors.IsCode(err, pkgerrors.CodeConstraintViolation) {
			t.Fatalf("%s: expected CONSTRAINT_VIOLATION, got %v", tc.name, err)
		}
	}
}

func TestCancelledStateRecordsRelease(t *testing.T) {
	t.Parallel()

	now := time.Now()
	order := models.Order{Status: enums.OrderStatusCancelled, CanceledAt: &now}
	state, err := StateOf(&order)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	cancelled, ok := state.(Cancelled)
	if !ok {
		t.Fatalf("state type %T", state)
	}
	if cancelled.StockReleased {
		t.Fatal("release not yet recorded")
	}

	order.StockReleasedAt = &now
	state, _ = StateOf(&order)
	if !state.(Cancelled).StockReleased {
		t.Fatal("release should be recorded")
	}
}

func TestAllowedTransitionRelation(t *testing.T) {
	t.Parallel()

	allowed := map[[2]enums.OrderStatus]bool{
		{enums.OrderStatusPending, enums.OrderStatusPaid}:      true,
		{enums.OrderStatusPending, enums.OrderStatusCancelled}: true,
		{enums.OrderStatusPaid, enums.OrderStatusFulfilled}:    true,
		{enums.OrderStatusPaid, enums.OrderStatusCancelled}:    true,
	}
	statuses := []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusPaid,
		enums.OrderStatusFulfilled,
		enums.OrderStatusCancelled,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]enums.OrderStatus{from, to}]
			if got := allowedTransition(from, to); got != want {
				t.Fatalf("allowedTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}
