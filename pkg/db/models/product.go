package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/pkg/enums"
	"github.com/angelmondragon/orderdesk/pkg/money"
)

// Product is a catalog listing. Stock mutation happens exclusively through
// guarded updates in the catalog repository; no caller holds a direct mutable
// reference to StockQty. Products referenced by order line items are never
// deleted; IsActive=false is the deletion substitute.
type Product struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	SKU        string         `gorm:"column:sku;not null;uniqueIndex"`
	Name       string         `gorm:"column:name;not null"`
	PriceCents money.Amount   `gorm:"column:price_cents;not null"`
	Currency   enums.Currency `gorm:"column:currency;type:text;not null;default:'USD'"`
	IsActive   bool           `gorm:"column:is_active;not null;default:true"`
	StockQty   int64          `gorm:"column:stock_qty;not null;default:0"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the opaque 128-bit identifier when unset.
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
