package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
)

func TestCreateAndGetProduct(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	created := mustCreateProduct(t, svc, "SKU-001", 1999, 10)
	if !created.IsActive {
		t.Fatal("new product should default to active")
	}
	if created.Price != "19.99" {
		t.Fatalf("price formatting = %s", created.Price)
	}

	fetched, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.SKU != "SKU-001" || fetched.StockQty != 10 {
		t.Fatalf("unexpected product: %+v", fetched)
	}
}

func TestGetBySKU(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	created := mustCreateProduct(t, svc, "SKU-LOOKUP", 1500, 4)

	fetched, err := svc.GetBySKU(ctx, "  SKU-LOOKUP  ")
	if err != nil {
		t.Fatalf("get by sku: %v", err)
	}
	if fetched.ID != created.ID {
		t.Fatalf("fetched %s, want %s", fetched.ID, created.ID)
	}

	_, err = svc.GetBySKU(ctx, "SKU-NOWHERE")
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestAdjustStockReturnsOwnSerializationPoint(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	created := mustCreateProduct(t, svc, "SKU-SERIAL", 1000, 0)

	// Each +1 commits with its own re-read, so the returned levels
	// must be a permutation of 1..workers with no duplicates.
	const workers = 10
	var wg sync.WaitGroup
	results := make(chan int64, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			qty, err := svc.AdjustStock(ctx, created.ID, 1, nil)
			if err != nil {
				t.Errorf("adjust: %v", err)
				return
			}
			results <- qty
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool, workers)
	for qty := range results {
		if qty < 1 || qty > workers {
			t.Fatalf("returned stock %d outside 1..%d", qty, workers)
		}
		if seen[qty] {
			t.Fatalf("stock level %d reported twice", qty)
		}
		seen[qty] = true
	}
	if len(seen) != workers {
		t.Fatalf("observed %d distinct levels, want %d", len(seen), workers)
	}
}

func TestGetMissingProductReturnsNotFound(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestCreateRejectsDuplicateSKU(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	mustCreateProduct(t, svc, "SKU-DUP", 500, 1)

	_, err := svc.Create(context.Background(), CreateProductInput{
		SKU:        "SKU-DUP",
		Name:       "Other",
		PriceCents: 700,
		Currency:   enums.CurrencyUSD,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateProductInput{
		Name:       "No SKU",
		PriceCents: 100,
		Currency:   enums.CurrencyUSD,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}

	_, err = svc.Create(context.Background(), CreateProductInput{
		SKU:        "SKU-BAD-CCY",
		Name:       "Bad currency",
		PriceCents: 100,
		Currency:   enums.Currency("XXX"),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestUpdateEditsPriceWithoutTouchingStock(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	created := mustCreateProduct(t, svc, "SKU-UPD", 1000, 7)

	newPrice := created.PriceCents + 250
	updated, err := svc.Update(ctx, created.ID, UpdateProductInput{PriceCents: &newPrice})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.PriceCents != 1250 {
		t.Fatalf("price = %d", updated.PriceCents)
	}
	if updated.StockQty != 7 {
		t.Fatalf("stock must be untouched, got %d", updated.StockQty)
	}
}

func TestDeactivateIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	created := mustCreateProduct(t, svc, "SKU-DEACT", 1000, 1)

	for i := 0; i < 2; i++ {
		dto, err := svc.Deactivate(ctx, created.ID)
		if err != nil {
			t.Fatalf("deactivate attempt %d: %v", i+1, err)
		}
		if dto.IsActive {
			t.Fatal("product should be inactive")
		}
	}
}

func TestDeleteRestrictedWhileReferenced(t *testing.T) {
	t.Parallel()

	svc, client := newTestService(t)
	ctx := context.Background()
	created := mustCreateProduct(t, svc, "SKU-REF", 1000, 5)

	user := models.User{Email: "buyer@example.com", PasswordHash: "x", Status: enums.UserStatusActive}
	if err := client.DB().Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	order := models.Order{
		UserID:        user.ID,
		Status:        enums.OrderStatusPending,
		SubtotalCents: 1000,
		TotalCents:    1000,
		Currency:      enums.CurrencyUSD,
	}
	if err := client.DB().Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	item := models.OrderLineItem{
		OrderID:        order.ID,
		ProductID:      created.ID,
		Qty:            1,
		UnitPriceCents: 1000,
		LineTotalCents: 1000,
	}
	if err := client.DB().Create(&item).Error; err != nil {
		t.Fatalf("seed line item: %v", err)
	}

	err := svc.Delete(ctx, created.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); err != nil {
		t.Fatalf("product must survive restricted delete: %v", err)
	}
}

func TestDeleteUnreferencedProduct(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	created := mustCreateProduct(t, svc, "SKU-DEL", 1000, 5)

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err := svc.Get(ctx, created.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND after delete, got %v", err)
	}
}
