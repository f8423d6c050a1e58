package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/internal/access"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
	"github.com/angelmondragon/orderdesk/pkg/logger"
	"github.com/angelmondragon/orderdesk/pkg/metrics"
	"github.com/angelmondragon/orderdesk/pkg/outbox"
)

// Lifecycle drives order status transitions. Each transition is one
// transaction whose guarded status UPDATE serializes concurrent writers.
type Lifecycle struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory inventoryReserver
	metrics   *metrics.EngineMetrics
	logg      *logger.Logger
}

// NewLifecycle constructs the transition service.
func NewLifecycle(
	repo Repository,
	tx txRunner,
	publisher outboxPublisher,
	reserver inventoryReserver,
	m *metrics.EngineMetrics,
	logg *logger.Logger,
) (*Lifecycle, error) {
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
	return &Lifecycle{
		repo:      repo,
		tx:        tx,
		outbox:    publisher,
		inventory: reserver,
		metrics:   m,
		logg:      logg,
	}, nil
}

// Get loads an order visible to the actor.
func (l *Lifecycle) Get(ctx context.Context, actor access.Actor, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := l.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireOwnerOrRole(actor, order.UserID, enums.RoleAdmin); err != nil {
		return nil, err
	}
	return toOrderDTO(order), nil
}

// ListForUser returns the actor's own orders, or any user's when the actor
// holds admin.
func (l *Lifecycle) ListForUser(ctx context.Context, actor access.Actor, userID uuid.UUID) ([]OrderDTO, error) {
	if err := access.RequireOwnerOrRole(actor, userID, enums.RoleAdmin); err != nil {
		return nil, err
	}
	rows, err := l.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	dtos := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *toOrderDTO(&rows[i]))
	}
	return dtos, nil
}

// MarkPaid confirms payment: PENDING to PAID, stamping paid_at.
func (l *Lifecycle) MarkPaid(ctx context.Context, actor access.Actor, orderID uuid.UUID) (*OrderDTO, error) {
	return l.transition(ctx, actor, orderID, enums.OrderStatusPaid)
}

// Fulfill ships the goods: PAID to FULFILLED.
func (l *Lifecycle) Fulfill(ctx context.Context, actor access.Actor, orderID uuid.UUID) (*OrderDTO, error) {
	return l.transition(ctx, actor, orderID, enums.OrderStatusFulfilled)
}

// Cancel aborts the order from PENDING or PAID, stamping canceled_at and
// releasing the reserved stock in the same transaction.
func (l *Lifecycle) Cancel(ctx context.Context, actor access.Actor, orderID uuid.UUID) (*OrderDTO, error) {
	return l.transition(ctx, actor, orderID, enums.OrderStatusCancelled)
}

func (l *Lifecycle) transition(ctx context.Context, actor access.Actor, orderID uuid.UUID, target enums.OrderStatus) (*OrderDTO, error) {
	var (
		updated *models.Order
		from    enums.OrderStatus
	)
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := access.RequireOwnerOrRole(actor, order.UserID, enums.RoleAdmin); err != nil {
			return err
		}
		if _, err := StateOf(order); err != nil {
			return err
		}
		if err := order.Totals().Check(); err != nil {
			if l.logg != nil {
				l.logg.Error(l.logg.WithOrderID(ctx, orderID.String()), "money invariant violated before transition", err)
			}
			return err
		}

		from = order.Status
		if !allowedTransition(from, target) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition,
				fmt.Sprintf("cannot transition %s order to %s", from, target))
		}

		now := time.Now()
		updates := map[string]any{"status": target}
		switch target {
		case enums.OrderStatusPaid:
			updates["paid_at"] = now
		case enums.OrderStatusCancelled:
			updates["canceled_at"] = now
		}

		rows, err := repo.UpdateStatusGuarded(ctx, orderID, from, updates)
		if err != nil {
			return err
		}
		if rows == 0 {
			reloaded, err := repo.FindByID(ctx, orderID)
			if err != nil {
				return err
			}
			if reloaded.Status != from {
				return pkgerrors.New(pkgerrors.CodeInvalidTransition,
					fmt.Sprintf("cannot transition %s order to %s", reloaded.Status, target))
			}
			return pkgerrors.New(pkgerrors.CodeConflictRetry, "concurrent transition in flight")
		}

		if target == enums.OrderStatusCancelled {
			if err := l.inventory.Release(ctx, tx, orderID); err != nil {
				return err
			}
		}

		if err := l.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventForTransition(target),
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Roles: actor.Roles.Names()},
			Data: OrderTransitionEvent{
				OrderID:    orderID,
				UserID:     order.UserID,
				FromStatus: from,
				ToStatus:   target,
			},
		}); err != nil {
			return err
		}

		updated, err = repo.FindByID(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if l.metrics != nil {
		l.metrics.IncTransition(string(from), string(target))
	}
	if l.logg != nil {
		logCtx := l.logg.WithFields(ctx, map[string]any{
			"order_id": orderID.String(),
			"from":     from,
			"to":       target,
		})
		l.logg.Info(logCtx, "order transitioned")
	}
	return toOrderDTO(updated), nil
}

func eventForTransition(target enums.OrderStatus) enums.OutboxEventType {
	switch target {
	case enums.OrderStatusPaid:
		return enums.EventOrderPaid
	case enums.OrderStatusFulfilled:
		return enums.EventOrderFulfilled
	default:
		return enums.EventOrderCanceled
	}
}
