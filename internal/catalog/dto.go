package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	"github.com/angelmondragon/orderdesk/pkg/money"
)

// ProductDTO is the read model returned by catalog operations.
type ProductDTO struct {
	ID         uuid.UUID      `json:"id"`
	SKU        string         `json:"sku"`
	Name       string         `json:"name"`
	PriceCents money.Amount   `json:"priceCents"`
	Price      string         `json:"price"`
	Currency   enums.Currency `json:"currency"`
	IsActive   bool           `json:"isActive"`
	StockQty   int64          `json:"stockQty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func toProductDTO(product *models.Product) *ProductDTO {
	return &ProductDTO{
		ID:         product.ID,
		SKU:        product.SKU,
		Name:       product.Name,
		PriceCents: product.PriceCents,
		Price:      product.PriceCents.String(),
		Currency:   product.Currency,
		IsActive:   product.IsActive,
		StockQty:   product.StockQty,
		CreatedAt:  product.CreatedAt,
		UpdatedAt:  product.UpdatedAt,
	}
}
