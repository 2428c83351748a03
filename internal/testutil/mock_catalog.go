// Package testutil provides testing utilities for the catalogue client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/harvestlib/catalog-client/pkg/catalog"
)

// MockResponse defines the behavior for a mock catalogue endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockCatalog is a configurable mock catalogue API server. Its default
// handler serves the search endpoint from per-category fixtures with real
// cursor pagination, so client and pagination tests can walk multi-page
// result sets without canned envelopes.
type MockCatalog struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	fixtures map[catalog.Category][]string

	// Tracking
	RequestCount      int
	SearchCount       int
	LastQuery         url.Values
	LastRequestHeader http.Header

	inFlight    int
	MaxInFlight int
}

// NewMockCatalog creates a new mock catalogue server.
func NewMockCatalog() *MockCatalog {
	mock := &MockCatalog{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		fixtures: make(map[catalog.Category][]string),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		if r.URL.Path == catalog.SearchPath {
			mock.SearchCount++
		}
		mock.LastQuery = r.URL.Query()
		mock.LastRequestHeader = r.Header.Clone()
		mock.inFlight++
		if mock.inFlight > mock.MaxInFlight {
			mock.MaxInFlight = mock.inFlight
		}
		mock.mu.Unlock()

		defer func() {
			mock.mu.Lock()
			mock.inFlight--
			mock.mu.Unlock()
		}()

		// Check for custom handler
		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.SearchCount = 0
	m.LastQuery = nil
	m.LastRequestHeader = nil
	m.MaxInFlight = 0
}

// SetHandler sets a custom handler for a specific path.
func (m *MockCatalog) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockCatalog) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetFixture populates a category with record JSON objects. The default
// search handler pages over them with cursors.
func (m *MockCatalog) SetFixture(c catalog.Category, records []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixtures[c] = records
}

// GenerateFixture produces count simple records for a category, useful for
// multi-page iteration tests.
func GenerateFixture(c catalog.Category, count int) []string {
	records := make([]string, count)
	for i := range records {
		records[i] = fmt.Sprintf(`{"id": "%s-%d", "title": "Record %d"}`, c, i, i)
	}
	return records
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetSearchCount returns the number of search endpoint requests.
func (m *MockCatalog) GetSearchCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.SearchCount
}

// GetMaxInFlight returns the highest number of concurrently handled
// requests observed.
func (m *MockCatalog) GetMaxInFlight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.MaxInFlight
}

// GetLastQuery returns the query parameters of the most recent request.
func (m *MockCatalog) GetLastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// ServeDefault runs the built-in fixture handler. Custom handlers can
// delegate to it for the requests they do not want to override.
func (m *MockCatalog) ServeDefault(w http.ResponseWriter, r *http.Request) {
	m.defaultHandler(w, r)
}

// defaultHandler serves the search endpoint from fixtures and a minimal
// record body for everything else.
func (m *MockCatalog) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if r.URL.Path != catalog.SearchPath {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"id": %q}`, strings.TrimPrefix(r.URL.Path, "/"))
		return
	}

	q := r.URL.Query()
	pageSize := 20
	if n := q.Get("n"); n != "" {
		if parsed, err := strconv.Atoi(n); err == nil && parsed > 0 {
			pageSize = parsed
		}
	}
	offset := parseCursor(q.Get("s"))

	var cats []any
	for _, name := range strings.Split(q.Get("category"), ",") {
		c := catalog.Category(name)

		m.mu.RLock()
		fixture := m.fixtures[c]
		m.mu.RUnlock()

		total := len(fixture)
		start := offset
		if start > total {
			start = total
		}
		end := start + pageSize
		if end > total {
			end = total
		}

		items := make([]json.RawMessage, 0, end-start)
		for _, rec := range fixture[start:end] {
			items = append(items, json.RawMessage(rec))
		}

		records := map[string]any{
			"s":     cursorString(offset),
			"n":     pageSize,
			"total": total,
		}
		if end < total {
			records["next"] = fmt.Sprintf("o%d", end)
		}
		if len(items) > 0 {
			records[catalog.ContainerField(c)] = items
		}

		cats = append(cats, map[string]any{
			"code":    c,
			"records": records,
		})
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"query":    q.Get("q"),
		"category": cats,
	})
}

// parseCursor decodes the mock's cursor scheme: "*" or "" is the start,
// "o<offset>" continues from offset. Clients must treat cursors as opaque;
// only the mock knows this layout.
func parseCursor(s string) int {
	if s == "" || s == "*" {
		return 0
	}
	if offset, err := strconv.Atoi(strings.TrimPrefix(s, "o")); err == nil && offset >= 0 {
		return offset
	}
	return 0
}

func cursorString(offset int) string {
	if offset == 0 {
		return "*"
	}
	return fmt.Sprintf("o%d", offset)
}

// NewSearchResponse creates a 200 OK response with a given body.
func NewSearchResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response carrying a
// Retry-After hint in seconds.
func NewRateLimitResponse(retryAfterSeconds int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"statusCode": 429, "statusText": "Too Many Requests", "description": "rate limit exceeded"}`,
		Headers: map[string]string{
			"Retry-After":  strconv.Itoa(retryAfterSeconds),
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"statusCode": 500, "statusText": "Internal Server Error", "description": "upstream failure"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"statusCode": 404, "statusText": "Not Found", "description": "no such resource"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewAuthErrorResponse creates a 401 Unauthorized response.
func NewAuthErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"statusCode": 401, "statusText": "Unauthorized", "description": "API key missing or unknown"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
