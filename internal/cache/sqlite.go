package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"gittab/internal/logging"
)

// SQLiteBackend stores the cache table in a SQLite database. Unlike the
// snapshot-based DiskBackend it pays O(1) per mutation, so it suits larger
// key counts. Insertion order for eviction is tracked by a monotonic seq
// column; a re-set deletes and reinserts, which re-appends the key.
type SQLiteBackend struct {
	mu      sync.Mutex
	db      *sql.DB
	maxKeys int
	logger  *logging.Logger
}

// NewSQLiteBackend opens (or creates) the cache database at path.
func NewSQLiteBackend(path string, maxKeys int, logger *logging.Logger) (*SQLiteBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite cache: filepath is required")
	}
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL UNIQUE,
			value BLOB NOT NULL,
			cached_at TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}

	logger.Debug("SQLite cache opened", map[string]interface{}{
		"path":     path,
		"max_keys": maxKeys,
	})

	return &SQLiteBackend{db: db, maxKeys: maxKeys, logger: logger}, nil
}

// Close releases the database handle.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// Set stores value under key, evicting the oldest-inserted entries beyond
// the bound.
func (b *SQLiteBackend) Set(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)

	// Delete-then-insert rather than upsert so the seq column reflects
	// insertion order, including re-sets.
	if _, err := b.db.Exec("DELETE FROM cache_entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	if _, err := b.db.Exec(
		"INSERT INTO cache_entries (key, value, cached_at) VALUES (?, ?, ?)",
		key, value, now,
	); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}

	_, err := b.db.Exec(`
		DELETE FROM cache_entries WHERE seq IN (
			SELECT seq FROM cache_entries ORDER BY seq ASC
			LIMIT max(0, (SELECT COUNT(*) FROM cache_entries) - ?)
		)
	`, b.maxKeys)
	if err != nil {
		return fmt.Errorf("failed to evict cache entries: %w", err)
	}
	return nil
}

// Get returns the stored value or a miss.
func (b *SQLiteBackend) Get(key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var value []byte
	err := b.db.QueryRow("SELECT value FROM cache_entries WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}
	return value, true, nil
}

// Exists reports whether key is currently stored.
func (b *SQLiteBackend) Exists(key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var one int
	err := b.db.QueryRow("SELECT 1 FROM cache_entries WHERE key = ?", key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache lookup failed: %w", err)
	}
	return true, nil
}

// ListCachedKeys returns metadata for every live entry in insertion order.
func (b *SQLiteBackend) ListCachedKeys() ([]Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listLocked()
}

func (b *SQLiteBackend) listLocked() ([]Info, error) {
	rows, err := b.db.Query("SELECT key, cached_at FROM cache_entries ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var key, cachedAt string
		if err := rows.Scan(&key, &cachedAt); err != nil {
			return nil, fmt.Errorf("failed to list cache entries: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, cachedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid cached_at format: %w", err)
		}
		infos = append(infos, infoFor(key, ts))
	}
	return infos, rows.Err()
}

// GetCacheInfo returns metadata for one entry, or nil when absent.
func (b *SQLiteBackend) GetCacheInfo(key string) (*Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var cachedAt string
	err := b.db.QueryRow("SELECT cached_at FROM cache_entries WHERE key = ?", key).Scan(&cachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, cachedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid cached_at format: %w", err)
	}
	info := infoFor(key, ts)
	return &info, nil
}

// Invalidate removes the named keys.
func (b *SQLiteBackend) Invalidate(keys ...string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for _, key := range keys {
		res, err := b.db.Exec("DELETE FROM cache_entries WHERE key = ?", key)
		if err != nil {
			return removed, fmt.Errorf("failed to invalidate cache entry: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}
	return removed, nil
}

// InvalidatePattern removes every key matching a glob-style pattern. The
// shared matcher is applied to the listed keys so pattern semantics stay
// identical across backends.
func (b *SQLiteBackend) InvalidatePattern(pattern string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	infos, err := b.listLocked()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, info := range infos {
		if !MatchPattern(info.Key, pattern) {
			continue
		}
		res, err := b.db.Exec("DELETE FROM cache_entries WHERE key = ?", info.Key)
		if err != nil {
			return removed, fmt.Errorf("failed to invalidate cache entry: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}
	return removed, nil
}

// InvalidateAll clears the backend.
func (b *SQLiteBackend) InvalidateAll() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	res, err := b.db.Exec("DELETE FROM cache_entries")
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Stats returns global backend statistics.
func (b *SQLiteBackend) Stats() (*Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	infos, err := b.listLocked()
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, 0, len(infos))
	for _, info := range infos {
		times = append(times, info.CachedAt)
	}
	return statsFor(b.maxKeys, times), nil
}
