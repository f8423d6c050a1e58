package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
	"github.com/angelmondragon/orderdesk/pkg/logger"
	"github.com/angelmondragon/orderdesk/pkg/metrics"
)

// Line is one reservation request against a product.
type Line struct {
	ProductID uuid.UUID
	Qty       int64
}

// Reserver decrements and restores product stock inside caller-owned
// transactions. Placement and cancellation both run through it so the
// stock mutation rules live in one place.
type Reserver struct {
	logg    *logger.Logger
	metrics *metrics.EngineMetrics
}

func NewReserver(logg *logger.Logger, m *metrics.EngineMetrics) *Reserver {
	return &Reserver{logg: logg, metrics: m}
}

// Reserve decrements stock for every line or none. Lines are processed in
// ascending product ID order so concurrent multi-product reservations always
// lock rows in the same sequence. Each decrement is a single guarded UPDATE;
// the first failure surfaces an error and the enclosing transaction's
// rollback undoes any earlier decrements.
func (r *Reserver) Reserve(ctx context.Context, tx *gorm.DB, lines []Line) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	for _, line := range lines {
		if line.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "reservation quantity must be positive")
		}
	}

	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})

	for _, line := range sorted {
		res := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND is_active = ? AND stock_qty >= ?", line.ProductID, true, line.Qty).
			Update("stock_qty", gorm.Expr("stock_qty - ?", line.Qty))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			continue
		}
		if r.metrics != nil {
			r.metrics.IncReservationFailure()
		}
		return r.classifyFailure(ctx, tx, line)
	}
	return nil
}

// classifyFailure reloads the product to explain a guarded decrement that
// matched no row.
func (r *Reserver) classifyFailure(ctx context.Context, tx *gorm.DB, line Line) error {
	var product models.Product
	err := tx.WithContext(ctx).First(&product, "id = ?", line.ProductID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": line.ProductID.String()})
	case err != nil:
		return err
	case !product.IsActive:
		return pkgerrors.New(pkgerrors.CodeProductInactive, "product is not active").
			WithDetails(map[string]any{"product_id": line.ProductID.String()})
	default:
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{
				"product_id": line.ProductID.String(),
				"requested":  line.Qty,
				"available":  product.StockQty,
			})
	}
}

// Release returns an order's reserved stock to its products. The first call
// claims the order's stock_released_at marker with a guarded UPDATE; any
// later call matches zero rows and returns without touching stock, so
// duplicate cancellation signals release exactly once.
func (r *Reserver) Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}

	res := tx.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND stock_released_at IS NULL", orderID).
		Update("stock_released_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.WithContext(ctx).
			Model(&models.Order{}).
			Where("id = ?", orderID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		// Already released.
		return nil
	}

	var items []models.OrderLineItem
	if err := tx.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("product_id ASC").
		Find(&items).Error; err != nil {
		return err
	}
	for _, item := range items {
		if err := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", item.ProductID).
			Update("stock_qty", gorm.Expr("stock_qty + ?", item.Qty)).Error; err != nil {
			return err
		}
	}

	if r.metrics != nil {
		r.metrics.IncInventoryRelease()
	}
	if r.logg != nil {
		logCtx := r.logg.WithFields(ctx, map[string]any{
			"order_id": orderID.String(),
			"lines":    len(items),
		})
		r.logg.Info(logCtx, "inventory released")
	}
	return nil
}
