package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/pkg/db"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
	"github.com/angelmondragon/orderdesk/pkg/logger"
	"github.com/angelmondragon/orderdesk/pkg/money"
	"github.com/angelmondragon/orderdesk/pkg/validate"
)

// Service exposes catalog management operations.
type Service interface {
	Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	GetBySKU(ctx context.Context, sku string) (*ProductDTO, error)
	Deactivate(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	Delete(ctx context.Context, productID uuid.UUID) error
	AdjustStock(ctx context.Context, productID uuid.UUID, delta int64, expectedStock *int64) (int64, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	SKU        string         `json:"sku" validate:"required"`
	Name       string         `json:"name" validate:"required"`
	PriceCents money.Amount   `json:"priceCents" validate:"min=0"`
	Currency   enums.Currency `json:"currency" validate:"required"`
	IsActive   *bool          `json:"isActive"`
	StockQty   int64          `json:"stockQty" validate:"min=0"`
}

// UpdateProductInput holds optional mutation values for a product. Stock is
// deliberately absent; AdjustStock is the only stock mutation path.
type UpdateProductInput struct {
	Name       *string         `json:"name"`
	PriceCents *money.Amount   `json:"priceCents"`
	Currency   *enums.Currency `json:"currency"`
	IsActive   *bool           `json:"isActive"`
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	logg     *logger.Logger
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository, dbClient *db.Client, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, dbClient: dbClient, logg: logg}, nil
}

// Create inserts a new listing.
func (s *service) Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	if err := validate.Struct(&input); err != nil {
		return nil, err
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	if input.PriceCents.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}

	product := &models.Product{
		SKU:        strings.TrimSpace(input.SKU),
		Name:       strings.TrimSpace(input.Name),
		PriceCents: input.PriceCents,
		Currency:   input.Currency,
		IsActive:   true,
		StockQty:   input.StockQty,
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	if err := s.repo.Create(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
		}
		return nil, err
	}
	return toProductDTO(product), nil
}

// Update applies partial edits to the listing.
func (s *service) Update(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if input.Currency != nil && !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	if input.PriceCents != nil && input.PriceCents.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}

	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.PriceCents != nil {
		product.PriceCents = *input.PriceCents
	}
	if input.Currency != nil {
		product.Currency = *input.Currency
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	if err := s.repo.Save(ctx, product); err != nil {
		return nil, err
	}
	return toProductDTO(product), nil
}

// Get loads the listing.
func (s *service) Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return toProductDTO(product), nil
}

// GetBySKU loads the listing by its merchant-facing SKU.
func (s *service) GetBySKU(ctx context.Context, sku string) (*ProductDTO, error) {
	product, err := s.repo.FindBySKU(ctx, strings.TrimSpace(sku))
	if err != nil {
		return nil, err
	}
	return toProductDTO(product), nil
}

// Deactivate retires a listing. Historical orders keep their snapshots; the
// product simply stops accepting new placements.
func (s *service) Deactivate(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return toProductDTO(product), nil
	}
	product.IsActive = false
	if err := s.repo.Save(ctx, product); err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithProductID(ctx, productID.String()), "product deactivated")
	}
	return toProductDTO(product), nil
}

// Delete physically removes a listing. Products referenced by any order line
// item are protected; callers should deactivate those instead.
func (s *service) Delete(ctx context.Context, productID uuid.UUID) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, productID); err != nil {
			return err
		}
		refs, err := repo.CountLineItemReferences(ctx, productID)
		if err != nil {
			return err
		}
		if refs > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "product is referenced by order line items")
		}
		return repo.Delete(ctx, productID)
	})
}

// AdjustStock mutates stock by delta through the guarded repository UPDATE.
// The write and the re-read of the resulting level share one transaction, so
// the returned stock is this adjustment's serialization point rather than a
// later writer's. A non-nil expectedStock turns the call into a
// compare-and-swap; a lost swap reports CONFLICT_RETRY.
func (s *service) AdjustStock(ctx context.Context, productID uuid.UUID, delta int64, expectedStock *int64) (int64, error) {
	var newQty int64
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		qty, adjustErr := s.repo.WithTx(tx).AdjustStock(ctx, productID, delta, expectedStock)
		newQty = qty
		return adjustErr
	})
	if err != nil {
		return newQty, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": productID.String(),
			"delta":      delta,
			"stock_qty":  newQty,
		})
		s.logg.Info(logCtx, "stock adjusted")
	}
	return newQty, nil
}
