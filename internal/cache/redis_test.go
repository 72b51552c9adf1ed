// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Typecraft/tbf/internal/log"
	"github.com/alicebob/miniredis/v2"
)

func newTestRedis(t *testing.T) Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	c, err := NewRedis(RedisConfig{Addr: srv.Addr()}, log.WithComponent("cache"))
	if err != nil {
		t.Fatalf("connect to miniredis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisCacheSetGet(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	got, ok := c.Get(ctx, "k")
	if !ok || string(got) != "v" {
		t.Fatalf("get = %q, %v", got, ok)
	}
}

func TestRedisCacheMiss(t *testing.T) {
	c := newTestRedis(t)
	if _, ok := c.Get(context.Background(), "missing"); ok {
		t.Fatal("expected miss")
	}
}

func TestRedisCacheDelete(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	c.Delete(ctx, "k")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("deleted entry still served")
	}
}

func TestRedisCacheUnreachable(t *testing.T) {
	if _, err := NewRedis(RedisConfig{Addr: "127.0.0.1:1"}, log.WithComponent("cache")); err == nil {
		t.Fatal("expected connection error")
	}
}
