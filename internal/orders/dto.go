package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	"github.com/angelmondragon/orderdesk/pkg/money"
)

// LineInput is one requested product in a placement. The builder merges
// repeated product IDs by summing quantities.
type LineInput struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Qty       int64     `json:"qty"`
}

// PlaceOrderInput carries everything needed to place an order.
type PlaceOrderInput struct {
	UserID         uuid.UUID      `json:"userId" validate:"required"`
	Lines          []LineInput    `json:"lines" validate:"required,min=1"`
	TaxCents       money.Amount   `json:"taxCents" validate:"min=0"`
	ShippingCents  money.Amount   `json:"shippingCents" validate:"min=0"`
	Currency       enums.Currency `json:"currency" validate:"required"`
	IdempotencyKey string         `json:"idempotencyKey"`
}

// LineItemDTO is the immutable snapshot of one line as stored.
type LineItemDTO struct {
	ProductID      uuid.UUID    `json:"productId"`
	Qty            int64        `json:"qty"`
	UnitPriceCents money.Amount `json:"unitPriceCents"`
	LineTotalCents money.Amount `json:"lineTotalCents"`
}

// OrderDTO is the read model returned by placements and lifecycle calls.
type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"userId"`
	Status          enums.OrderStatus `json:"status"`
	SubtotalCents   money.Amount      `json:"subtotalCents"`
	TaxCents        money.Amount      `json:"taxCents"`
	ShippingCents   money.Amount      `json:"shippingCents"`
	TotalCents      money.Amount      `json:"totalCents"`
	Currency        enums.Currency    `json:"currency"`
	PaidAt          *time.Time        `json:"paidAt,omitempty"`
	CanceledAt      *time.Time        `json:"canceledAt,omitempty"`
	StockReleasedAt *time.Time        `json:"stockReleasedAt,omitempty"`
	Items           []LineItemDTO     `json:"items"`
	CreatedAt       time.Time         `json:"createdAt"`
}

func toOrderDTO(order *models.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:              order.ID,
		UserID:          order.UserID,
		Status:          order.Status,
		SubtotalCents:   order.SubtotalCents,
		TaxCents:        order.TaxCents,
		ShippingCents:   order.ShippingCents,
		TotalCents:      order.TotalCents,
		Currency:        order.Currency,
		PaidAt:          order.PaidAt,
		CanceledAt:      order.CanceledAt,
		StockReleasedAt: order.StockReleasedAt,
		CreatedAt:       order.CreatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, LineItemDTO{
			ProductID:      item.ProductID,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents,
		})
	}
	return dto
}

// OrderCreatedEvent is the payload recorded when a placement commits.
type OrderCreatedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	UserID     uuid.UUID         `json:"user_id"`
	Status     enums.OrderStatus `json:"status"`
	TotalCents money.Amount      `json:"total_cents"`
	Currency   enums.Currency    `json:"currency"`
	LineCount  int               `json:"line_count"`
}

// OrderTransitionEvent is the payload recorded on every lifecycle transition.
type OrderTransitionEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	UserID     uuid.UUID         `json:"user_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
}
