package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
)

// Repository wires product persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product or reports NOT_FOUND.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	return &product, nil
}

// FindBySKU loads the product by its merchant-facing SKU.
func (r *Repository) FindBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "sku = ?", sku).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	return &product, nil
}

// Create inserts the product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Save persists non-stock mutations on the product.
func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// Delete removes the product row. Callers must first verify no order line
// items reference it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id).Error
}

// CountLineItemReferences reports how many order line items point at the
// product.
func (r *Repository) CountLineItemReferences(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderLineItem{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	return count, err
}

// AdjustStock applies delta to the product's stock in a single guarded
// UPDATE. The availability check and the write are one statement, so
// concurrent adjustments serialize on the row and can never drive stock
// negative. A non-nil expectedStock adds a compare-and-swap guard: the
// write only applies while the stock still holds that value. Returns the
// resulting stock level. Callers must run this on a transaction-bound
// repository so the re-read observes this call's own write.
func (r *Repository) AdjustStock(ctx context.Context, productID uuid.UUID, delta int64, expectedStock *int64) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_qty + ? >= 0", productID, delta)
	if expectedStock != nil {
		query = query.Where("stock_qty = ?", *expectedStock)
	}
	res := query.Update("stock_qty", gorm.Expr("stock_qty + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish a missing product, a lost compare-and-swap, and an
		// adjustment that would undershoot zero.
		product, err := r.FindByID(ctx, productID)
		if err != nil {
			return 0, err
		}
		if expectedStock != nil && product.StockQty != *expectedStock {
			return product.StockQty, pkgerrors.New(pkgerrors.CodeConflictRetry, "stock changed since it was read").
				WithDetails(map[string]any{
					"expected": *expectedStock,
					"actual":   product.StockQty,
				})
		}
		return product.StockQty, pkgerrors.New(pkgerrors.CodeInsufficientStock, "stock adjustment would go negative")
	}
	product, err := r.FindByID(ctx, productID)
	if err != nil {
		return 0, err
	}
	return product.StockQty, nil
}
