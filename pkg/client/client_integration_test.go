//go:build integration

package client

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/harvestlib/catalog-client/internal/testutil"
	"github.com/harvestlib/catalog-client/pkg/cache"
	"github.com/harvestlib/catalog-client/pkg/catalog"
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

func TestIntegration_FullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetFixture(catalog.CategoryBook, testutil.GenerateFixture(catalog.CategoryBook, 8))

	cfg := DefaultConfig(mock.URL(), "integration-key")
	cfg.Store = cache.NewRedisStore(redisClient)

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	params := url.Values{}
	params.Set("q", "weather")
	params.Set("category", "book")

	// Request 1: hits the mock and populates Redis.
	t.Log("Request 1: initial request")
	body1, err := client.Get(ctx, catalog.SearchPath, params)
	if err != nil {
		t.Fatalf("Request 1 failed: %v", err)
	}
	if mock.GetSearchCount() != 1 {
		t.Errorf("After request 1: search count = %d, want 1", mock.GetSearchCount())
	}

	result, err := catalog.ParseSearchResult(body1, nil)
	if err != nil {
		t.Fatalf("ParseSearchResult() failed: %v", err)
	}
	if book := result.Category(catalog.CategoryBook); book == nil || book.Records.Total != 8 {
		t.Fatalf("Unexpected first page: %+v", result)
	}

	// Request 2: served from Redis without touching the mock.
	t.Log("Request 2: cached request")
	body2, err := client.Get(ctx, catalog.SearchPath, params)
	if err != nil {
		t.Fatalf("Request 2 failed: %v", err)
	}
	if mock.GetSearchCount() != 1 {
		t.Errorf("After request 2: search count = %d, want 1", mock.GetSearchCount())
	}
	if string(body1) != string(body2) {
		t.Error("Cached body differs from original response")
	}

	// The entry is visible through the store directly.
	key := cache.Key{Path: catalog.SearchPath, Params: params}
	entry, err := client.Store().Get(ctx, key)
	if err != nil {
		t.Fatalf("Store lookup failed: %v", err)
	}
	if entry.IsExpired() {
		t.Error("Entry should not be expired yet")
	}
}

func TestIntegration_SharedStoreAcrossClients(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetFixture(catalog.CategoryMusic, testutil.GenerateFixture(catalog.CategoryMusic, 4))

	store := cache.NewRedisStore(redisClient)

	newClient := func() *Client {
		cfg := DefaultConfig(mock.URL(), "integration-key")
		cfg.Store = store
		c, err := New(cfg)
		if err != nil {
			t.Fatalf("Failed to create client: %v", err)
		}
		return c
	}

	first := newClient()
	defer first.Close()
	second := newClient()
	defer second.Close()

	ctx := context.Background()
	params := url.Values{}
	params.Set("q", "shared")
	params.Set("category", "music")

	if _, err := first.Get(ctx, catalog.SearchPath, params); err != nil {
		t.Fatalf("First client request failed: %v", err)
	}
	if _, err := second.Get(ctx, catalog.SearchPath, params); err != nil {
		t.Fatalf("Second client request failed: %v", err)
	}

	// One upstream request serves both clients through the shared store.
	if mock.GetSearchCount() != 1 {
		t.Errorf("Search count = %d, want 1 with a shared store", mock.GetSearchCount())
	}
}

func TestIntegration_CacheExpiration(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetFixture(catalog.CategoryBook, testutil.GenerateFixture(catalog.CategoryBook, 20))

	cfg := DefaultConfig(mock.URL(), "integration-key")
	cfg.Store = cache.NewRedisStore(redisClient)
	cfg.TTL = cache.TTLPolicy{
		Search:          1 * time.Second,
		Sparse:          1 * time.Second,
		Pending:         1 * time.Second,
		Harvest:         1 * time.Second,
		Record:          1 * time.Second,
		SparseThreshold: cache.DefaultSparseThreshold,
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	params := url.Values{}
	params.Set("q", "ephemeral")
	params.Set("category", "book")

	if _, err := client.Get(ctx, catalog.SearchPath, params); err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	if mock.GetSearchCount() != 1 {
		t.Fatalf("Search count = %d, want 1", mock.GetSearchCount())
	}

	// Wait for the entry to expire out of Redis.
	time.Sleep(2 * time.Second)

	key := cache.Key{Path: catalog.SearchPath, Params: params}
	if _, err := client.Store().Get(ctx, key); err != cache.ErrCacheMiss {
		t.Errorf("Expected cache miss after expiration, got: %v", err)
	}

	if _, err := client.Get(ctx, catalog.SearchPath, params); err != nil {
		t.Fatalf("Second request failed: %v", err)
	}
	if mock.GetSearchCount() != 2 {
		t.Errorf("Search count = %d, want 2 after expiration", mock.GetSearchCount())
	}
}
