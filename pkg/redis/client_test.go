package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	srv := miniredis.RunT(t)
	client := NewFromAddr(srv.Addr())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSetNXAndGet(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	key := client.IdempotencyKey("user-1|place_order", "key-abc")

	ok, err := client.SetNX(ctx, key, "order-1", time.Hour)
	if err != nil {
		t.Fatalf("setnx: %v", err)
	}
	if !ok {
		t.Fatal("expected first SetNX to win")
	}

	ok, err = client.SetNX(ctx, key, "order-2", time.Hour)
	if err != nil {
		t.Fatalf("setnx: %v", err)
	}
	if ok {
		t.Fatal("expected second SetNX to lose")
	}

	val, err := client.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "order-1" {
		t.Fatalf("expected original value, got %q", val)
	}
}

func TestSetOverwrites(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	key := client.IdempotencyKey("user-1|place_order", "key-xyz")

	if _, err := client.SetNX(ctx, key, "__in_flight__", time.Hour); err != nil {
		t.Fatalf("setnx: %v", err)
	}
	if err := client.Set(ctx, key, "order-9", time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	val, err := client.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "order-9" {
		t.Fatalf("expected overwritten value, got %q", val)
	}
}

func TestGetMissingKeyIsNil(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Get(context.Background(), client.IdempotencyKey("scope", "missing"))
	if !IsNil(err) {
		t.Fatalf("expected redis nil sentinel, got %v", err)
	}
}

func TestIdempotencyKeyNamespacing(t *testing.T) {
	client := newTestClient(t)

	key := client.IdempotencyKey("scope", "id")
	if key != "od:idempotency:scope:id" {
		t.Fatalf("unexpected key %q", key)
	}
}
