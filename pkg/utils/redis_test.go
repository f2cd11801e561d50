package utils

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestLock_ValidatesArguments(t *testing.T) {
	ctx := context.Background()
	if _, _, err := NewLock(nil, "k", time.Second).TryAcquire(ctx); err == nil {
		t.Fatalf("expected error for nil client")
	}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()
	for name, tc := range map[string]struct {
		key string
		ttl time.Duration
	}{
		"empty key": {"", time.Second},
		"zero ttl":  {"k", 0},
	} {
		if _, _, err := NewLock(rdb, tc.key, tc.ttl).TryAcquire(ctx); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func openTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb, err := OpenRedis(context.Background(), RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestLock_SingleHolder(t *testing.T) {
	rdb := openTestRedis(t)
	ctx := context.Background()
	lock := NewLock(rdb, "test:purge:"+uuid.NewString(), time.Minute)

	lease, ok, err := lock.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, err := lock.TryAcquire(ctx); err != nil || ok {
		t.Fatalf("second acquire should be rejected: ok=%v err=%v", ok, err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	lease, ok, err = lock.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
	_ = lease.Release(ctx)
}

func TestLock_ExpiredLeaseCannotReleaseNextHolder(t *testing.T) {
	rdb := openTestRedis(t)
	ctx := context.Background()
	key := "test:purge:" + uuid.NewString()
	t.Cleanup(func() { _ = rdb.Del(context.Background(), key).Err() })

	first, ok, err := NewLock(rdb, key, 50*time.Millisecond).TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	time.Sleep(150 * time.Millisecond)

	lock := NewLock(rdb, key, time.Minute)
	second, ok, err := lock.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire after expiry: ok=%v err=%v", ok, err)
	}

	if err := first.Release(ctx); !errors.Is(err, ErrLockLost) {
		t.Fatalf("expected ErrLockLost from stale lease, got %v", err)
	}
	if _, ok, err := lock.TryAcquire(ctx); err != nil || ok {
		t.Fatalf("second holder must still own the lock: ok=%v err=%v", ok, err)
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
}
