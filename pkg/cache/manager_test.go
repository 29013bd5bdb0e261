package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupTestRedis creates a test Redis client against a local instance.
// The integration tests run the same checks against a container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	// Ping to check connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	// Flush test DB before each test
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func newEntry(body string, ttl time.Duration) *CacheEntry {
	return &CacheEntry{
		Data:       []byte(body),
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": {"application/json"}},
		Expires:    time.Now().Add(ttl),
		CachedAt:   time.Now(),
	}
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client, zerolog.Nop())
	if manager == nil {
		t.Fatal("NewManager returned nil")
	}
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil, zerolog.Nop())
}

func TestManager_SetGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t), zerolog.Nop())
	ctx := context.Background()
	key := CacheKey{Account: "1234567", Path: "/services/rest/record/v1/customer/1"}

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get() before Set error = %v, want ErrCacheMiss", err)
	}

	if err := manager.Set(ctx, key, newEntry(`{"id":"1"}`, time.Minute)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Data) != `{"id":"1"}` {
		t.Errorf("Data = %q, want {\"id\":\"1\"}", got.Data)
	}
	if got.Headers.Get("Content-Type") != "application/json" {
		t.Errorf("Headers = %v", got.Headers)
	}
}

func TestManager_SetExpiredIsNoop(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client, zerolog.Nop())
	ctx := context.Background()
	key := CacheKey{Account: "1234567", Path: "/x"}

	if err := manager.Set(ctx, key, newEntry("{}", -time.Second)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if n, _ := client.Exists(ctx, key.String()).Result(); n != 0 {
		t.Error("expired entry was stored")
	}
	if err := manager.Set(ctx, key, nil); err == nil {
		t.Error("Set(nil) error = nil, want error")
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(setupTestRedis(t), zerolog.Nop())
	ctx := context.Background()
	key := CacheKey{Account: "1234567", Path: "/y"}

	if err := manager.Set(ctx, key, newEntry("{}", time.Minute)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after Delete error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_Invalidate(t *testing.T) {
	manager := NewManager(setupTestRedis(t), zerolog.Nop())
	ctx := context.Background()
	path := "/services/rest/record/v1/customer/42"

	keys := []CacheKey{
		{Account: "1234567", Path: path},
		{Account: "1234567", Path: path, Query: url.Values{"expandSubResources": {"true"}}},
		{Account: "1234567", Path: path + "/addressBook"},
	}
	for i := 0; i < 150; i++ {
		keys = append(keys, CacheKey{Account: "1234567", Path: path, Query: url.Values{"fields": {fmt.Sprint(i)}}})
	}
	other := CacheKey{Account: "1234567", Path: "/services/rest/record/v1/customer/43"}
	otherAccount := CacheKey{Account: "7654321", Path: path}

	for _, k := range append(keys, other, otherAccount) {
		if err := manager.Set(ctx, k, newEntry("{}", time.Minute)); err != nil {
			t.Fatalf("Set(%s) error = %v", k, err)
		}
	}

	removed, err := manager.Invalidate(ctx, CacheKey{Account: "1234567", Path: path})
	if err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if removed != len(keys) {
		t.Errorf("removed = %d, want %d", removed, len(keys))
	}

	for _, k := range keys {
		if _, err := manager.Get(ctx, k); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Get(%s) after Invalidate error = %v, want ErrCacheMiss", k, err)
		}
	}
	for _, k := range []CacheKey{other, otherAccount} {
		if _, err := manager.Get(ctx, k); err != nil {
			t.Errorf("Get(%s) error = %v, want entry kept", k, err)
		}
	}
}

func TestManager_InvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client, zerolog.Nop())
	ctx := context.Background()
	key := CacheKey{Account: "1234567", Path: "/z"}

	if err := client.Set(ctx, key.String(), "not json", time.Minute).Err(); err != nil {
		t.Fatalf("redis set: %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Get() error = %v, want ErrInvalidEntry", err)
	}
}
