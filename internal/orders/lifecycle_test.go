package orders

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/internal/access"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
)

func (e *testEnv) mustPlace(t *testing.T, userID uuid.UUID, productID uuid.UUID, qty int64) *OrderDTO {
	t.Helper()
	order, err := e.builder.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID:   userID,
		Lines:    []LineInput{{ProductID: productID, Qty: qty}},
		Currency: enums.CurrencyUSD,
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return order
}

func ownerActor(userID uuid.UUID) access.Actor {
	return access.Actor{UserID: userID, Roles: access.NewRoleSet(enums.RoleCustomer)}
}

func adminActor() access.Actor {
	return access.Actor{UserID: uuid.New(), Roles: access.NewRoleSet(enums.RoleAdmin)}
}

func TestMarkPaidStampsTimestamp(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.mustSeedUser(t)
	product := env.mustSeedProduct(t, 500, 10)
	order := env.mustPlace(t, user.ID, product.ID, 2)

	paid, err := env.lifecycle.MarkPaid(ctx, ownerActor(user.ID), order.ID)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != enums.OrderStatusPaid {
		t.Fatalf("status = %s", paid.Status)
	}
	if paid.PaidAt == nil {
		t.Fatal("paid_at not stamped")
	}
	if got := env.outboxCount(t, enums.EventOrderPaid); got != 1 {
		t.Fatalf("order_paid events = %d, want 1", got)
	}
}

func TestFulfillRequiresPaid(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.mustSeedUser(t)
	product := env.mustSeedProduct(t, 500, 10)
	order := env.mustPlace(t, user.ID, product.ID, 1)

	_, err := env.lifecycle.Fulfill(ctx, ownerActor(user.ID), order.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}

	if _, err := env.lifecycle.MarkPaid(ctx, ownerActor(user.ID), order.ID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	fulfilled, err := env.lifecycle.Fulfill(ctx, ownerActor(user.ID), order.ID)
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if fulfilled.Status != enums.OrderStatusFulfilled {
		t.Fatalf("status = %s", fulfilled.Status)
	}
	if fulfilled.PaidAt == nil {
		t.Fatal("fulfilled order must keep paid_at")
	}
}

func TestCancelReleasesStockExactlyOnce(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.mustSeedUser(t)
	product := env.mustSeedProduct(t, 500, 10)
	order := env.mustPlace(t, user.ID, product.ID, 4)

	if got := env.stockOf(t, product.ID); got != 6 {
		t.Fatalf("stock after placement = %d, want 6", got)
	}

	cancelled, err := env.lifecycle.Cancel(ctx, ownerActor(user.ID), order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.CanceledAt == nil || cancelled.StockReleasedAt == nil {
		t.Fatal("cancellation must stamp canceled_at and stock_released_at")
	}
	if got := env.stockOf(t, product.ID); got != 10 {
		t.Fatalf("stock after cancel = %d, want 10", got)
	}

	// A duplicate cancellation signal must not release twice.
	_, err = env.lifecycle.Cancel(ctx, ownerActor(user.ID), order.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
	if got := env.stockOf(t, product.ID); got != 10 {
		t.Fatalf("stock after duplicate cancel = %d, want 10", got)
	}
}

func TestCancelPaidOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.mustSeedUser(t)
	product := env.mustSeedProduct(t, 500, 10)
	order := env.mustPlace(t, user.ID, product.ID, 3)

	if _, err := env.lifecycle.MarkPaid(ctx, ownerActor(user.ID), order.ID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	cancelled, err := env.lifecycle.Cancel(ctx, ownerActor(user.ID), order.ID)
	if err != nil {
		t.Fatalf("cancel paid order: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("status = %s", cancelled.Status)
	}
	if got := env.stockOf(t, product.ID); got != 10 {
		t.Fatalf("stock = %d, want 10", got)
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.mustSeedUser(t)
	product := env.mustSeedProduct(t, 500, 10)
	order := env.mustPlace(t, user.ID, product.ID, 1)
	actor := ownerActor(user.ID)

	if _, err := env.lifecycle.MarkPaid(ctx, actor, order.ID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if _, err := env.lifecycle.Fulfill(ctx, actor, order.ID); err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	if _, err := env.lifecycle.MarkPaid(ctx, actor, order.ID); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("paid on fulfilled: %v", err)
	}
	if _, err := env.lifecycle.Cancel(ctx, actor, order.ID); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("cancel on fulfilled: %v", err)
	}
	if got := env.stockOf(t, product.ID); got != 9 {
		t.Fatalf("fulfilled order must keep its reservation, stock = %d", got)
	}
}

func TestTransitionAccessControl(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.mustSeedUser(t)
	product := env.mustSeedProduct(t, 500, 10)
	order := env.mustPlace(t, owner.ID, product.ID, 1)

	stranger := access.Actor{UserID: uuid.New(), Roles: access.NewRoleSet(enums.RoleCustomer)}
	_, err := env.lifecycle.MarkPaid(ctx, stranger, order.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}

	if _, err := env.lifecycle.MarkPaid(ctx, adminActor(), order.ID); err != nil {
		t.Fatalf("admin transition: %v", err)
	}
}

func TestTransitionRevalidatesMoneyInvariant(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.mustSeedUser(t)
	product := env.mustSeedProduct(t, 1000, 10)
	order := env.mustPlace(t, user.ID, product.ID, 2)

	// Corrupt the stored total: 2650 != 2000 + 160 + 500.
	if err := env.client.DB().Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{
			"subtotal_cents": 2000,
			"tax_cents":      160,
			"shipping_cents": 500,
			"total_cents":    2650,
		}).Error; err != nil {
		t.Fatalf("corrupt order: %v", err)
	}

	_, err := env.lifecycle.MarkPaid(ctx, ownerActor(user.ID), order.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConstraintViolation) {
		t.Fatalf("expected CONSTRAINT_VIOLATION, got %v", err)
	}

	var after models.Order
	if err := env.client.DB().First(&after, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if after.Status != enums.OrderStatusPending {
		t.Fatalf("status mutated to %s", after.Status)
	}
}

func TestConcurrentTransitionsHaveOneWinner(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.mustSeedUser(t)
	product := env.mustSeedProduct(t, 500, 10)
	order := env.mustPlace(t, user.ID, product.ID, 1)
	actor := ownerActor(user.ID)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < len(errs); i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = env.lifecycle.MarkPaid(ctx, actor, order.ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition):
		case pkgerrors.IsCode(err, pkgerrors.CodeConflictRetry):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
	if got := env.outboxCount(t, enums.EventOrderPaid); got != 1 {
		t.Fatalf("order_paid events = %d, want 1", got)
	}
}

func TestGetAndListRespectOwnership(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.mustSeedUser(t)
	product := env.mustSeedProduct(t, 500, 10)
	order := env.mustPlace(t, user.ID, product.ID, 1)

	got, err := env.lifecycle.Get(ctx, ownerActor(user.ID), order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != order.ID {
		t.Fatalf("got order %s", got.ID)
	}

	stranger := access.Actor{UserID: uuid.New(), Roles: access.NewRoleSet(enums.RoleCustomer)}
	if _, err := env.lifecycle.Get(ctx, stranger, order.ID); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
	if _, err := env.lifecycle.ListForUser(ctx, stranger, user.ID); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN list, got %v", err)
	}

	orders, err := env.lifecycle.ListForUser(ctx, adminActor(), user.ID)
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(orders))
	}
}
