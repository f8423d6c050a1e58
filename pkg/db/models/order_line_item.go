package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/pkg/money"
)

// OrderLineItem captures the immutable snapshot of one product within an
// order. UnitPriceCents is frozen at order time and must not track the live
// product price. The unique index enforces at most one line per
// (order, product) pair.
type OrderLineItem struct {
	ID             uuid.UUID    `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID    `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_order_line_items_order_product"`
	ProductID      uuid.UUID    `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_order_line_items_order_product"`
	Product        *Product     `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	Qty            int64        `gorm:"column:qty;not null"`
	UnitPriceCents money.Amount `gorm:"column:unit_price_cents;not null"`
	LineTotalCents money.Amount `gorm:"column:line_total_cents;not null"`
	CreatedAt      time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the opaque 128-bit identifier when unset.
func (i *OrderLineItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
