package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/pkg/enums"
	"github.com/angelmondragon/orderdesk/pkg/money"
)

// Order is the financial record of a placement. Rows are never physically
// deleted. The money invariant total = subtotal + tax + shipping holds at
// every write, not only at creation. StockReleasedAt marks that the order's
// reserved inventory has been returned; it is the idempotence guard for
// duplicate cancellation signals.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	User            *User             `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'PENDING';index"`
	SubtotalCents   money.Amount      `gorm:"column:subtotal_cents;not null"`
	TaxCents        money.Amount      `gorm:"column:tax_cents;not null;default:0"`
	ShippingCents   money.Amount      `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents      money.Amount      `gorm:"column:total_cents;not null"`
	Currency        enums.Currency    `gorm:"column:currency;type:text;not null;default:'USD'"`
	PaidAt          *time.Time        `gorm:"column:paid_at"`
	CanceledAt      *time.Time        `gorm:"column:canceled_at"`
	StockReleasedAt *time.Time        `gorm:"column:stock_released_at"`
	Items           []OrderLineItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the opaque 128-bit identifier when unset.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Totals bundles the order's monetary breakdown for invariant checks.
func (o *Order) Totals() money.Totals {
	return money.Totals{
		Subtotal: o.SubtotalCents,
		Tax:      o.TaxCents,
		Shipping: o.ShippingCents,
		Total:    o.TotalCents,
		Currency: o.Currency,
	}
}
