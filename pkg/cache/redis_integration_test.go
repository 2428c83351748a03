//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_RedisStoreRoundTrip(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	store := NewRedisStore(redisClient)
	ctx := context.Background()

	key := testKey("container")
	entry := NewEntry([]byte(`{"query": "container"}`), 200, 5*time.Minute)

	if err := store.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	retrieved, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(retrieved.Data) != string(entry.Data) {
		t.Errorf("Data mismatch: got %s, want %s", retrieved.Data, entry.Data)
	}
}

// TestIntegration_RedisStoreTTLHonored verifies Redis drops entries on its
// own once the entry TTL elapses.
func TestIntegration_RedisStoreTTLHonored(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	store := NewRedisStore(redisClient)
	ctx := context.Background()

	key := testKey("short")
	if err := store.Set(ctx, key, NewEntry([]byte(`{}`), 200, time.Second)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := store.Get(ctx, key); err != nil {
		t.Fatalf("Get before expiry failed: %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after expiry = %v, want ErrCacheMiss", err)
	}

	// The key itself must be gone from Redis, not just flagged stale.
	n, err := redisClient.Exists(ctx, key.String()).Result()
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if n != 0 {
		t.Errorf("key still present in Redis after TTL, want removed")
	}
}

// TestIntegration_SharedCacheBetweenStores verifies two store instances on
// separate connections see each other's writes, the way two harvest
// processes sharing one API key would.
func TestIntegration_SharedCacheBetweenStores(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	second := redis.NewClient(&redis.Options{Addr: redisClient.Options().Addr})
	defer second.Close()

	writer := NewRedisStore(redisClient)
	reader := NewRedisStore(second)
	ctx := context.Background()

	key := testKey("shared")
	if err := writer.Set(ctx, key, NewEntry([]byte(`{"query": "shared"}`), 200, time.Minute)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	retrieved, err := reader.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get through second connection failed: %v", err)
	}
	if string(retrieved.Data) != `{"query": "shared"}` {
		t.Errorf("Data = %s", retrieved.Data)
	}
}
