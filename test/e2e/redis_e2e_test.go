//go:build e2e

package e2e

import (
	"context"
	"testing"
	"time"

	"flushnode/internal/flush/persistence"

	redis "github.com/redis/go-redis/v9"
)

// TestRedisIdempotentFlushE2E verifies the real Redis adapter path applies a
// flush exactly once and is a no-op on a replayed FlushID. Requires a Redis
// at 127.0.0.1:6379.
func TestRedisIdempotentFlushE2E(t *testing.T) {
	rc := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping: Redis not reachable on 127.0.0.1:6379: %v", err)
	}

	handler, target := "e2e-handler", "e2e-target"
	serialKey := persistence.RedisSerialKey(handler, target)
	_ = rc.Del(context.Background(), serialKey).Err()

	evaler := persistence.NewGoRedisEvaler("127.0.0.1:6379")
	rp := persistence.NewRedisPersister(evaler, time.Minute)

	entry := persistence.FlushEntry{Handler: handler, Target: target, Serial: 42, FlushID: "e2e-fixed-id"}

	// Apply the same flush id twice; the second call must be a no-op that
	// still returns success.
	if err := rp.FlushBatch(context.Background(), []persistence.FlushEntry{entry}); err != nil {
		t.Fatalf("first FlushBatch: %v", err)
	}
	if err := rp.FlushBatch(context.Background(), []persistence.FlushEntry{entry}); err != nil {
		t.Fatalf("second (replayed) FlushBatch: %v", err)
	}

	got, err := rc.HGet(context.Background(), serialKey, "flushed_serial").Result()
	if err != nil {
		t.Fatalf("redis HGET flushed_serial failed: %v", err)
	}
	if got != "42" {
		t.Fatalf("flushed_serial mismatch: got=%s want=42", got)
	}

	markerKey := persistence.RedisFlushMarkerKey(handler, target, entry.FlushID)
	ttl, err := rc.TTL(context.Background(), markerKey).Result()
	if err != nil {
		t.Fatalf("redis TTL failed: %v", err)
	}
	if ttl <= 0 {
		t.Fatalf("expected marker TTL to be set, got %s", ttl)
	}
}

// TestRedisDistinctFlushIDsBothApplyE2E verifies two distinct flush ids for
// the same handler/target both apply, leaving the serial at the latest value.
func TestRedisDistinctFlushIDsBothApplyE2E(t *testing.T) {
	rc := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping: Redis not reachable on 127.0.0.1:6379: %v", err)
	}

	handler, target := "e2e-handler-2", "e2e-target-2"
	serialKey := persistence.RedisSerialKey(handler, target)
	_ = rc.Del(context.Background(), serialKey).Err()

	evaler := persistence.NewGoRedisEvaler("127.0.0.1:6379")
	rp := persistence.NewRedisPersister(evaler, time.Minute)

	first := persistence.FlushEntry{Handler: handler, Target: target, Serial: 10, FlushID: "e2e-id-a"}
	second := persistence.FlushEntry{Handler: handler, Target: target, Serial: 20, FlushID: "e2e-id-b"}

	if err := rp.FlushBatch(context.Background(), []persistence.FlushEntry{first}); err != nil {
		t.Fatalf("first FlushBatch: %v", err)
	}
	if err := rp.FlushBatch(context.Background(), []persistence.FlushEntry{second}); err != nil {
		t.Fatalf("second FlushBatch: %v", err)
	}

	got, err := rc.HGet(context.Background(), serialKey, "flushed_serial").Result()
	if err != nil {
		t.Fatalf("redis HGET flushed_serial failed: %v", err)
	}
	if got != "20" {
		t.Fatalf("flushed_serial mismatch: got=%s want=20", got)
	}
}
