package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"gittab/internal/logging"
)

// snapshotVersion tags the on-disk format so future loaders can branch on
// it. Version 1 snapshots predate the cached_at field.
const snapshotVersion = 2

// diskSnapshot is the serialized form of a DiskBackend's table.
type diskSnapshot struct {
	Version int                      `json:"version"`
	Entries map[string]snapshotEntry `json:"entries"`
	Order   []string                 `json:"order,omitempty"`
}

// snapshotEntry mirrors Entry but keeps CachedAt optional so snapshots
// written before timestamps existed still load.
type snapshotEntry struct {
	Value    []byte     `json:"value"`
	CachedAt *time.Time `json:"cached_at,omitempty"`
}

// DiskBackend persists the cache table as a gzip-compressed JSON snapshot.
// The whole table is read at construction and rewritten on every mutation,
// so the file always reflects the last completed mutation. The O(table)
// write cost per mutation limits this backend to moderate key counts.
type DiskBackend struct {
	mu       sync.Mutex
	entries  map[string]Entry
	keyList  []string
	maxKeys  int
	filepath string
	logger   *logging.Logger
}

// NewDiskBackend loads (or starts) a snapshot at path. A corrupt or
// unreadable snapshot is treated as an empty cache with a logged warning,
// never a construction error. Entries from old snapshots that lack a
// cached_at field are assigned a load-time timestamp.
func NewDiskBackend(path string, maxKeys int, logger *logging.Logger) (*DiskBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("disk cache: filepath is required")
	}
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	b := &DiskBackend{
		entries:  make(map[string]Entry),
		maxKeys:  maxKeys,
		filepath: path,
		logger:   logger,
	}
	b.load()
	return b, nil
}

// load reads the snapshot into memory. Any failure leaves an empty table.
func (b *DiskBackend) load() {
	f, err := os.Open(b.filepath)
	if err != nil {
		if !os.IsNotExist(err) {
			b.logger.Warn("Cache snapshot unreadable, starting empty", map[string]interface{}{
				"path":  b.filepath,
				"error": err.Error(),
			})
		}
		return
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		b.logger.Warn("Cache snapshot corrupt, starting empty", map[string]interface{}{
			"path":  b.filepath,
			"error": err.Error(),
		})
		return
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		b.logger.Warn("Cache snapshot corrupt, starting empty", map[string]interface{}{
			"path":  b.filepath,
			"error": err.Error(),
		})
		return
	}

	var snap diskSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		b.logger.Warn("Cache snapshot corrupt, starting empty", map[string]interface{}{
			"path":  b.filepath,
			"error": err.Error(),
		})
		return
	}

	loadedAt := time.Now().UTC()
	synthesized := 0
	for key, se := range snap.Entries {
		cachedAt := loadedAt
		if se.CachedAt != nil && !se.CachedAt.IsZero() {
			cachedAt = *se.CachedAt
		} else {
			synthesized++
		}
		b.entries[key] = Entry{Value: se.Value, CachedAt: cachedAt}
	}

	// Restore insertion order where recorded; older snapshots fall back to
	// timestamp order.
	seen := make(map[string]bool, len(snap.Order))
	for _, key := range snap.Order {
		if _, ok := b.entries[key]; ok && !seen[key] {
			b.keyList = append(b.keyList, key)
			seen[key] = true
		}
	}
	for key := range b.entries {
		if !seen[key] {
			b.keyList = append(b.keyList, key)
		}
	}

	if synthesized > 0 {
		b.logger.Warn("Cache snapshot entries missing timestamps, synthesized at load", map[string]interface{}{
			"path":    b.filepath,
			"entries": synthesized,
		})
	}
	b.logger.Debug("Cache snapshot loaded", map[string]interface{}{
		"path":    b.filepath,
		"entries": len(b.entries),
	})
}

// flush writes the full table back to disk. Caller must hold the mutex.
// A failed flush is reported but not retried; the in-memory table stays
// authoritative for the rest of the process lifetime.
func (b *DiskBackend) flush() error {
	snap := diskSnapshot{
		Version: snapshotVersion,
		Entries: make(map[string]snapshotEntry, len(b.entries)),
		Order:   b.keyList,
	}
	for key, entry := range b.entries {
		ts := entry.CachedAt
		snap.Entries[key] = snapshotEntry{Value: entry.Value, CachedAt: &ts}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to serialize cache snapshot: %w", err)
	}

	if dir := filepath.Dir(b.filepath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	// Write to a temp file and rename so the snapshot on disk is never a
	// partial write.
	tmpPath := b.filepath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to write cache snapshot: %w", err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cache snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cache snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cache snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, b.filepath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cache snapshot: %w", err)
	}
	return nil
}

// Set stores value under key and rewrites the snapshot.
func (b *DiskBackend) Set(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.removeFromOrder(key)
	b.keyList = append(b.keyList, key)
	stored := make([]byte, len(value))
	copy(stored, value)
	b.entries[key] = Entry{Value: stored, CachedAt: time.Now().UTC()}

	for len(b.keyList) > b.maxKeys {
		oldest := b.keyList[0]
		b.keyList = b.keyList[1:]
		delete(b.entries, oldest)
	}
	return b.flush()
}

// Get returns the stored value without affecting eviction order.
func (b *DiskBackend) Get(key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(entry.Value))
	copy(out, entry.Value)
	return out, true, nil
}

// Exists reports whether key is currently stored.
func (b *DiskBackend) Exists(key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[key]
	return ok, nil
}

// ListCachedKeys returns metadata for every live entry in insertion order.
func (b *DiskBackend) ListCachedKeys() ([]Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	infos := make([]Info, 0, len(b.keyList))
	for _, key := range b.keyList {
		if entry, ok := b.entries[key]; ok {
			infos = append(infos, infoFor(key, entry.CachedAt))
		}
	}
	return infos, nil
}

// GetCacheInfo returns metadata for one entry, or nil when absent.
func (b *DiskBackend) GetCacheInfo(key string) (*Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[key]
	if !ok {
		return nil, nil
	}
	info := infoFor(key, entry.CachedAt)
	return &info, nil
}

// Invalidate removes the named keys and rewrites the snapshot.
func (b *DiskBackend) Invalidate(keys ...string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for _, key := range keys {
		if _, ok := b.entries[key]; ok {
			delete(b.entries, key)
			b.removeFromOrder(key)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, b.flush()
}

// InvalidatePattern removes every matching key and rewrites the snapshot.
func (b *DiskBackend) InvalidatePattern(pattern string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key := range b.entries {
		if MatchPattern(key, pattern) {
			delete(b.entries, key)
			b.removeFromOrder(key)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, b.flush()
}

// InvalidateAll clears the backend and rewrites the snapshot.
func (b *DiskBackend) InvalidateAll() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := len(b.entries)
	b.entries = make(map[string]Entry)
	b.keyList = b.keyList[:0]
	return removed, b.flush()
}

// Stats returns global backend statistics.
func (b *DiskBackend) Stats() (*Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	times := make([]time.Time, 0, len(b.entries))
	for _, entry := range b.entries {
		times = append(times, entry.CachedAt)
	}
	return statsFor(b.maxKeys, times), nil
}

// removeFromOrder drops key from the insertion order list if present.
// Caller must hold the mutex.
func (b *DiskBackend) removeFromOrder(key string) {
	for i, k := range b.keyList {
		if k == key {
			b.keyList = append(b.keyList[:i], b.keyList[i+1:]...)
			return
		}
	}
}
