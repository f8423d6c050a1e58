package orders

import (
	"time"

	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
)

// State models the order lifecycle as a closed set of variants. Each variant
// carries only the data that exists in that state, so a pending order with a
// payment timestamp is unrepresentable once a row passes through StateOf.
type State interface {
	Status() enums.OrderStatus
	isState()
}

// Pending is the initial state after placement.
type Pending struct{}

// Paid means payment was confirmed at PaidAt.
type Paid struct {
	PaidAt time.Time
}

// Fulfilled is terminal; the goods shipped after payment at PaidAt.
type Fulfilled struct {
	PaidAt time.Time
}

// Cancelled is terminal. StockReleased records whether the reservation was
// already returned to inventory.
type Cancelled struct {
	CanceledAt    time.Time
	StockReleased bool
}

func (Pending) Status() enums.OrderStatus   { return enums.OrderStatusPending }
func (Paid) Status() enums.OrderStatus      { return enums.OrderStatusPaid }
func (Fulfilled) Status() enums.OrderStatus { return enums.OrderStatusFulfilled }
func (Cancelled) Status() enums.OrderStatus { return enums.OrderStatusCancelled }

func (Pending) isState()   {}
func (Paid) isState()      {}
func (Fulfilled) isState() {}
func (Cancelled) isState() {}

// StateOf reconstructs the lifecycle variant from a stored row, rejecting
// rows whose columns contradict their status.
func StateOf(order *models.Order) (State, error) {
	switch order.Status {
	case enums.OrderStatusPending:
		if order.PaidAt != nil || order.CanceledAt != nil {
			return nil, pkgerrors.New(pkgerrors.CodeConstraintViolation, "pending order carries lifecycle timestamps")
		}
		return Pending{}, nil
	case enums.OrderStatusPaid:
		if order.PaidAt == nil {
			return nil, pkgerrors.New(pkgerrors.CodeConstraintViolation, "paid order missing paid_at")
		}
		return Paid{PaidAt: *order.PaidAt}, nil
	case enums.OrderStatusFulfilled:
		if order.PaidAt == nil {
			return nil, pkgerrors.New(pkgerrors.CodeConstraintViolation, "fulfilled order missing paid_at")
		}
		return Fulfilled{PaidAt: *order.PaidAt}, nil
	case enums.OrderStatusCancelled:
		if order.CanceledAt == nil {
			return nil, pkgerrors.New(pkgerrors.CodeConstraintViolation, "cancelled order missing canceled_at")
		}
		return Cancelled{CanceledAt: *order.CanceledAt, StockReleased: order.StockReleasedAt != nil}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeConstraintViolation, "unknown order status")
	}
}

// allowedTransition encodes the full transition relation. Terminal states
// allow nothing.
func allowedTransition(from, to enums.OrderStatus) bool {
	switch from {
	case enums.OrderStatusPending:
		return to == enums.OrderStatusPaid || to == enums.OrderStatusCancelled
	case enums.OrderStatusPaid:
		return to == enums.OrderStatusFulfilled || to == enums.OrderStatusCancelled
	default:
		return false
	}
}
