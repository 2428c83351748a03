package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/harvestlib/catalog-client/pkg/cache"
	"github.com/harvestlib/catalog-client/pkg/client"
	"github.com/harvestlib/catalog-client/pkg/logging"
)

func main() {
	logger := logging.Setup(logging.Config{
		Level:  getEnv("LOG_LEVEL", "info"),
		Pretty: getEnv("LOG_PRETTY", "") == "true",
		Output: os.Stderr,
	})

	// Configuration from environment
	baseURL := getEnv("CATALOG_API_URL", "")
	apiKey := getEnv("CATALOG_API_KEY", "")
	port := getEnv("PORT", "8080")

	if baseURL == "" || apiKey == "" {
		logger.Fatal().Msg("CATALOG_API_URL and CATALOG_API_KEY are required")
	}

	store, err := buildStore()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to set up cache store")
	}

	cfg := client.DefaultConfig(baseURL, apiKey)
	cfg.UserAgent = getEnv("USER_AGENT", cfg.UserAgent)
	cfg.Store = store
	if v := getEnv("RATE_LIMIT", ""); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			logger.Fatal().Str("rate_limit", v).Msg("RATE_LIMIT must be a positive number")
		}
		cfg.RateLimit = parsed
	}

	catalogClient, err := client.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create catalogue client")
	}
	defer catalogClient.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(catalogClient.Store()))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/", proxyHandler(catalogClient))

	addr := ":" + port
	logger.Info().
		Str("addr", addr).
		Str("upstream", baseURL).
		Msg("Starting catalogue proxy")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// buildStore picks the cache backend from CACHE_BACKEND: memory (default),
// sqlite, redis or none.
func buildStore() (cache.Store, error) {
	switch backend := getEnv("CACHE_BACKEND", "memory"); backend {
	case "memory":
		return cache.NewMemoryStore(), nil
	case "sqlite":
		return cache.NewSQLiteStore(getEnv("CACHE_PATH", "catalog-cache.db"))
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr: getEnv("REDIS_URL", "localhost:6379"),
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return cache.NewRedisStore(redisClient), nil
	case "none":
		return cache.NewNopStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler probes the cache store with a write and read round trip. A
// miss still counts as ready; only a backend error does not.
func readyHandler(store cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		key := cache.Key{Path: "/ready-probe"}
		if err := store.Set(ctx, key, cache.NewEntry([]byte("ok"), http.StatusOK, time.Minute)); err != nil {
			http.Error(w, fmt.Sprintf("cache store unavailable: %v", err), http.StatusServiceUnavailable)
			return
		}
		if _, err := store.Get(ctx, key); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			http.Error(w, fmt.Sprintf("cache store unavailable: %v", err), http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

// proxyHandler forwards GET /api/<path> through the orchestrated client,
// so every caller shares its cache, rate limiting and retries.
func proxyHandler(catalogClient *client.Client) http.HandlerFunc {
	logger := logging.NewLogger("catalog-proxy")

	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api")
		if path == "" || path == "/" {
			http.Error(w, "missing catalogue path", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
		defer cancel()

		body, err := catalogClient.Get(ctx, path, r.URL.Query())
		if err != nil {
			writeClientError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(body); err != nil {
			logger.Warn().Err(err).Str("endpoint", path).Msg("Failed to write response")
		}
	}
}

// writeClientError maps client error kinds onto proxy status codes.
// Anything unclassified is an upstream problem and reads as a bad gateway.
func writeClientError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway

	var apiErr *client.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case client.KindValidation:
			status = http.StatusBadRequest
		case client.KindAuthentication:
			status = http.StatusUnauthorized
		case client.KindAuthorization:
			status = http.StatusForbidden
		case client.KindNotFound:
			status = http.StatusNotFound
		case client.KindRateLimit:
			status = http.StatusTooManyRequests
		}
	}

	http.Error(w, err.Error(), status)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
