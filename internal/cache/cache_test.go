package cache

import (
	"context"
	"testing"
	"time"

	"github.com/fd1az/token-price-engine/internal/clock"
)

func TestCache_ExpiresWithClock(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	c := New[string, int](time.Minute, WithClock(clk))
	defer c.Close()

	c.Set(ctx, "eth", 42, 0)

	if v, ok := c.Get(ctx, "eth"); !ok || v != 42 {
		t.Fatalf("expected fresh hit, got %v %v", v, ok)
	}

	clk.Advance(59 * time.Second)
	if _, ok := c.Get(ctx, "eth"); !ok {
		t.Error("entry should still be fresh at 59s")
	}

	clk.Advance(time.Second)
	if _, ok := c.Get(ctx, "eth"); ok {
		t.Error("entry should be expired at exactly the TTL")
	}

	// Expired entries are still visible through Peek.
	e, ok := c.Peek(ctx, "eth")
	if !ok || e.Value != 42 {
		t.Fatalf("expected peek to return expired entry, got %+v %v", e, ok)
	}
	if c.Len() != 1 {
		t.Errorf("expired entries should not be evicted without a janitor, len=%d", c.Len())
	}
}

func TestCache_ExplicitTTL(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Unix(0, 0))
	c := New[string, string](time.Hour, WithClock(clk))

	c.Set(ctx, "k", "v", 5*time.Second)
	clk.Advance(6 * time.Second)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("explicit ttl should override the default")
	}
}

func TestCache_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Unix(0, 0))
	c := New[int, int](time.Second, WithClock(clk))

	c.Set(ctx, 1, 1, 0)
	c.Set(ctx, 2, 2, time.Hour)
	clk.Advance(2 * time.Second)
	c.deleteExpired()

	if c.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", c.Len())
	}
	if _, ok := c.Get(ctx, 2); !ok {
		t.Error("long-lived entry should survive cleanup")
	}
}
