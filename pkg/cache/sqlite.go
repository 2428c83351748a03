package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// sqlitePurgeEvery is the number of writes between lazy purges of expired
// rows.
const sqlitePurgeEvery = 512

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key         TEXT PRIMARY KEY,
	data        BLOB NOT NULL,
	status_code INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL,
	cached_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
`

// SQLiteStore is a Store persisted to a local SQLite database. It survives
// process restarts, which suits long-running harvests that should not
// refetch thousands of pages after a crash. The driver is pure Go, so the
// store works without cgo.
type SQLiteStore struct {
	db     *sql.DB
	writes atomic.Int64
}

// NewSQLiteStore opens (and if needed creates) the database at path.
// Use ":memory:" for an ephemeral database in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get retrieves the entry for key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (s *SQLiteStore) Get(ctx context.Context, key Key) (*Entry, error) {
	k := key.String()

	var (
		data       []byte
		statusCode int
		expiresAt  int64
		cachedAt   int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, status_code, expires_at, cached_at FROM cache_entries WHERE key = ?`, k,
	).Scan(&data, &statusCode, &expiresAt, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		CacheMisses.WithLabelValues("sqlite").Inc()
		return nil, ErrCacheMiss
	}
	if err != nil {
		CacheErrors.WithLabelValues("sqlite", "get").Inc()
		return nil, fmt.Errorf("sqlite get: %w", err)
	}

	entry := &Entry{
		Data:       data,
		StatusCode: statusCode,
		Expires:    time.Unix(0, expiresAt),
		CachedAt:   time.Unix(0, cachedAt),
	}
	if entry.IsExpired() {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, k); err == nil {
			CacheEvictions.WithLabelValues("sqlite").Inc()
		}
		CacheMisses.WithLabelValues("sqlite").Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("sqlite").Inc()
	return entry, nil
}

// Set stores an entry. Entries that are already expired are dropped.
func (s *SQLiteStore) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return ErrInvalidEntry
	}
	if entry.TTL() <= 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (key, data, status_code, expires_at, cached_at) VALUES (?, ?, ?, ?, ?)`,
		key.String(), entry.Data, entry.StatusCode, entry.Expires.UnixNano(), entry.CachedAt.UnixNano(),
	)
	if err != nil {
		CacheErrors.WithLabelValues("sqlite", "set").Inc()
		return fmt.Errorf("sqlite set: %w", err)
	}

	if s.writes.Add(1)%sqlitePurgeEvery == 0 {
		s.purgeExpired(ctx)
	}
	return nil
}

// Delete removes the entry for key.
func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key.String()); err != nil {
		CacheErrors.WithLabelValues("sqlite", "delete").Inc()
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Len returns the number of stored rows, including not yet purged expired
// ones.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite count: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) purgeExpired(ctx context.Context) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, time.Now().UnixNano())
	if err != nil {
		CacheErrors.WithLabelValues("sqlite", "delete").Inc()
		return
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		CacheEvictions.WithLabelValues("sqlite").Add(float64(n))
	}
}
