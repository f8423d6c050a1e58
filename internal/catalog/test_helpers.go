package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/pkg/config"
	"github.com/angelmondragon/orderdesk/pkg/db"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	"github.com/angelmondragon/orderdesk/pkg/money"
)

func newTestClient(t *testing.T) *db.Client {
	t.Helper()
	cfg := config.DBConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:catalog_%s?mode=memory&cache=shared", uuid.NewString()),
	}
	client, err := db.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := client.DB().AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return client
}

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := newTestClient(t)
	svc, err := NewService(NewRepository(client.DB()), client, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, client
}

func mustCreateProduct(t *testing.T, svc Service, sku string, priceCents money.Amount, stock int64) *ProductDTO {
	t.Helper()
	dto, err := svc.Create(context.Background(), CreateProductInput{
		SKU:        sku,
		Name:       "Test " + sku,
		PriceCents: priceCents,
		Currency:   enums.CurrencyUSD,
		StockQty:   stock,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", sku, err)
	}
	return dto
}
