package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/internal/inventory"
	"github.com/angelmondragon/orderdesk/pkg/config"
	"github.com/angelmondragon/orderdesk/pkg/db"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	"github.com/angelmondragon/orderdesk/pkg/money"
	"github.com/angelmondragon/orderdesk/pkg/outbox"
	"github.com/angelmondragon/orderdesk/pkg/redis"
)

type testEnv struct {
	client    *db.Client
	repo      Repository
	builder   *Builder
	lifecycle *Lifecycle
	redis     *redis.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.DBConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:orders_%s?mode=memory&cache=shared", uuid.NewString()),
	}
	client, err := db.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := client.DB().AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mr := miniredis.RunT(t)
	redisClient := redis.NewFromAddr(mr.Addr())
	t.Cleanup(func() { _ = redisClient.Close() })

	repo := NewRepository(client.DB())
	publisher := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	reserver := inventory.NewReserver(nil, nil)

	builder, err := NewBuilder(repo, client, publisher, reserver, redisClient, time.Hour, nil, nil)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	lifecycle, err := NewLifecycle(repo, client, publisher, reserver, nil, nil)
	if err != nil {
		t.Fatalf("new lifecycle: %v", err)
	}

	return &testEnv{
		client:    client,
		repo:      repo,
		builder:   builder,
		lifecycle: lifecycle,
		redis:     redisClient,
	}
}

func (e *testEnv) mustSeedUser(t *testing.T) *models.User {
	t.Helper()
	user := &models.User{
		Email:        fmt.Sprintf("buyer_%s@example.com", uuid.NewString()[:8]),
		PasswordHash: "x",
		Status:       enums.UserStatusActive,
	}
	if err := e.client.DB().Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (e *testEnv) mustSeedProduct(t *testing.T, priceCents money.Amount, stock int64) *models.Product {
	t.Helper()
	product := &models.Product{
		SKU:        fmt.Sprintf("SKU-%s", uuid.NewString()[:8]),
		Name:       "Seeded",
		PriceCents: priceCents,
		Currency:   enums.CurrencyUSD,
		IsActive:   true,
		StockQty:   stock,
	}
	if err := e.client.DB().Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func (e *testEnv) stockOf(t *testing.T, productID uuid.UUID) int64 {
	t.Helper()
	var product models.Product
	if err := e.client.DB().First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return product.StockQty
}

func (e *testEnv) outboxCount(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	if err := e.client.DB().
		Model(&models.OutboxEvent{}).
		Where("event_type = ?", eventType).
		Count(&count).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	return count
}

func (e *testEnv) orderCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	if err := e.client.DB().Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	return count
}
