package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/internal/inventory"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
	"github.com/angelmondragon/orderdesk/pkg/logger"
	"github.com/angelmondragon/orderdesk/pkg/metrics"
	"github.com/angelmondragon/orderdesk/pkg/money"
	"github.com/angelmondragon/orderdesk/pkg/outbox"
	"github.com/angelmondragon/orderdesk/pkg/redis"
	"github.com/angelmondragon/orderdesk/pkg/validate"
)

const (
	placementScope  = "placement"
	inFlightMarker  = "__in_flight__"
	placementFailed = "failed"
	placementOK     = "created"
	placementReplay = "replayed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type inventoryReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// Builder places orders: it validates and merges requested lines, snapshots
// prices, reserves stock, and persists the order atomically.
type Builder struct {
	repo           Repository
	tx             txRunner
	outbox         outboxPublisher
	inventory      inventoryReserver
	idem           redis.IdempotencyStore
	idempotencyTTL time.Duration
	metrics        *metrics.EngineMetrics
	logg           *logger.Logger
}

// NewBuilder constructs the placement service. The idempotency store is
// optional; without it placements simply skip replay detection.
func NewBuilder(
	repo Repository,
	tx txRunner,
	publisher outboxPublisher,
	reserver inventoryReserver,
	idem redis.IdempotencyStore,
	idempotencyTTL time.Duration,
	m *metrics.EngineMetrics,
	logg *logger.Logger,
) (*Builder, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if reserver == nil {
		return nil, fmt.Errorf("inventory reserver required")
	}
	return &Builder{
		repo:           repo,
		tx:             tx,
		outbox:         publisher,
		inventory:      reserver,
		idem:           idem,
		idempotencyTTL: idempotencyTTL,
		metrics:        m,
		logg:           logg,
	}, nil
}

// PlaceOrder runs the full placement pipeline. On success the order, its
// line items, and the order_created outbox event are committed in one
// transaction with the stock decrements.
func (b *Builder) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderDTO, error) {
	start := time.Now()
	dto, outcome, err := b.placeOrder(ctx, input)
	if b.metrics != nil {
		b.metrics.ObservePlacement(outcome, time.Since(start))
	}
	return dto, err
}

func (b *Builder) placeOrder(ctx context.Context, input PlaceOrderInput) (*OrderDTO, string, error) {
	if err := validate.Struct(&input); err != nil {
		return nil, placementFailed, err
	}
	if !input.Currency.IsValid() {
		return nil, placementFailed, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	if input.TaxCents.IsNegative() || input.ShippingCents.IsNegative() {
		return nil, placementFailed, pkgerrors.New(pkgerrors.CodeValidation, "tax and shipping cannot be negative")
	}
	if err := validateLines(input.Lines); err != nil {
		return nil, placementFailed, err
	}
	merged := mergeLines(input.Lines)

	var redisKey string
	if input.IdempotencyKey != "" && b.idem != nil {
		key, replay, err := b.claimIdempotencyKey(ctx, input)
		if err != nil {
			return nil, placementFailed, err
		}
		if replay != nil {
			return replay, placementReplay, nil
		}
		redisKey = key
	}

	var order *models.Order
	err := b.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := b.repo.WithTx(tx)

		items, totals, err := b.snapshotLines(ctx, tx, merged, input.Currency)
		if err != nil {
			return err
		}
		totals.Tax = input.TaxCents
		totals.Shipping = input.ShippingCents
		totals.Total = totals.Subtotal.Add(totals.Tax).Add(totals.Shipping)
		if err := totals.Check(); err != nil {
			return err
		}

		reservations := make([]inventory.Line, len(merged))
		for i, line := range merged {
			reservations[i] = inventory.Line{ProductID: line.ProductID, Qty: line.Qty}
		}
		if err := b.inventory.Reserve(ctx, tx, reservations); err != nil {
			return err
		}

		order = &models.Order{
			UserID:        input.UserID,
			Status:        enums.OrderStatusPending,
			SubtotalCents: totals.Subtotal,
			TaxCents:      totals.Tax,
			ShippingCents: totals.Shipping,
			TotalCents:    totals.Total,
			Currency:      totals.Currency,
		}
		if err := repo.Create(ctx, order); err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.CreateLineItems(ctx, items); err != nil {
			return err
		}
		order.Items = items

		return b.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data: OrderCreatedEvent{
				OrderID:    order.ID,
				UserID:     order.UserID,
				Status:     order.Status,
				TotalCents: order.TotalCents,
				Currency:   order.Currency,
				LineCount:  len(items),
			},
		})
	})
	if err != nil {
		if redisKey != "" {
			_ = b.idem.Del(ctx, redisKey)
		}
		return nil, placementFailed, err
	}

	if redisKey != "" {
		if err := b.idem.Set(ctx, redisKey, order.ID.String(), b.idempotencyTTL); err != nil && b.logg != nil {
			b.logg.Error(b.logg.WithOrderID(ctx, order.ID.String()), "recording idempotency key", err)
		}
	}
	if b.logg != nil {
		logCtx := b.logg.WithFields(ctx, map[string]any{
			"order_id":    order.ID.String(),
			"user_id":     order.UserID.String(),
			"total_cents": int64(order.TotalCents),
			"lines":       len(order.Items),
		})
		b.logg.Info(logCtx, "order placed")
	}
	return toOrderDTO(order), placementOK, nil
}

// claimIdempotencyKey claims the (user, key) slot. A lost claim either maps
// to a finished placement, which is replayed, or to one still in flight,
// which callers should retry.
func (b *Builder) claimIdempotencyKey(ctx context.Context, input PlaceOrderInput) (string, *OrderDTO, error) {
	redisKey := b.idem.IdempotencyKey(placementScope, input.UserID.String()+":"+input.IdempotencyKey)
	claimed, err := b.idem.SetNX(ctx, redisKey, inFlightMarker, b.idempotencyTTL)
	if err != nil {
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claiming idempotency key")
	}
	if claimed {
		return redisKey, nil, nil
	}

	value, err := b.idem.Get(ctx, redisKey)
	if err != nil && !redis.IsNil(err) {
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading idempotency key")
	}
	if redis.IsNil(err) || value == inFlightMarker {
		return "", nil, pkgerrors.New(pkgerrors.CodeConflictRetry, "placement with this key is in flight")
	}

	orderID, err := uuid.Parse(value)
	if err != nil {
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "corrupt idempotency value")
	}
	existing, err := b.repo.FindByID(ctx, orderID)
	if err != nil {
		return "", nil, err
	}
	return "", toOrderDTO(existing), nil
}

// snapshotLines loads and freezes the unit price of every merged line.
func (b *Builder) snapshotLines(ctx context.Context, tx *gorm.DB, lines []LineInput, currency enums.Currency) ([]models.OrderLineItem, money.Totals, error) {
	totals := money.Totals{Currency: currency}
	items := make([]models.OrderLineItem, 0, len(lines))
	for _, line := range lines {
		var product models.Product
		err := tx.WithContext(ctx).First(&product, "id = ?", line.ProductID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, totals, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}
		if err != nil {
			return nil, totals, err
		}
		if !product.IsActive {
			return nil, totals, pkgerrors.New(pkgerrors.CodeProductInactive, "product is not active").
				WithDetails(map[string]any{"product_id": product.ID.String()})
		}
		if product.Currency != currency {
			return nil, totals, pkgerrors.New(pkgerrors.CodeCurrencyMismatch, "product currency differs from order currency").
				WithDetails(map[string]any{
					"product_id":       product.ID.String(),
					"product_currency": product.Currency,
					"order_currency":   currency,
				})
		}

		lineTotal := product.PriceCents.MulQty(line.Qty)
		totals.Subtotal = totals.Subtotal.Add(lineTotal)
		items = append(items, models.OrderLineItem{
			ProductID:      product.ID,
			Qty:            line.Qty,
			UnitPriceCents: product.PriceCents,
			LineTotalCents: lineTotal,
		})
	}
	return items, totals, nil
}

// validateLines collects every offending line instead of stopping at the
// first one.
func validateLines(lines []LineInput) error {
	var errs error
	for i, line := range lines {
		if line.ProductID == uuid.Nil {
			errs = multierr.Append(errs, fmt.Errorf("line %d: product id required", i))
		}
		if line.Qty <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("line %d: qty must be positive, got %d", i, line.Qty))
		}
	}
	if errs != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInvalidQuantity, errs, "invalid order lines")
	}
	return nil
}

// mergeLines collapses duplicate product requests into one line each,
// preserving first-occurrence order.
func mergeLines(lines []LineInput) []LineInput {
	index := make(map[uuid.UUID]int, len(lines))
	merged := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		if at, ok := index[line.ProductID]; ok {
			merged[at].Qty += line.Qty
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}
