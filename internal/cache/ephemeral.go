package cache

import (
	"sync"
	"time"
)

// EphemeralBackend is a bounded in-process store. Insertion order, not
// recency of access, governs eviction: when the bound is exceeded the
// oldest-inserted surviving key is dropped. Overwriting a live key
// re-appends it to the insertion order, since a re-set is a new entry with
// a new timestamp.
type EphemeralBackend struct {
	mu      sync.Mutex
	entries map[string]Entry
	keyList []string
	maxKeys int
}

// NewEphemeralBackend creates an in-memory backend bounded at maxKeys;
// zero or negative means DefaultMaxKeys.
func NewEphemeralBackend(maxKeys int) *EphemeralBackend {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &EphemeralBackend{
		entries: make(map[string]Entry),
		keyList: make([]string, 0),
		maxKeys: maxKeys,
	}
}

// Set stores value under key, evicting first-inserted entries beyond the
// bound.
func (b *EphemeralBackend) Set(key string, value []byte) error {
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
	return nil
}

// Get returns the stored value without affecting eviction order.
func (b *EphemeralBackend) Get(key string) ([]byte, bool, error) {
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
func (b *EphemeralBackend) Exists(key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[key]
	return ok, nil
}

// ListCachedKeys returns metadata for every live entry in insertion order.
func (b *EphemeralBackend) ListCachedKeys() ([]Info, error) {
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
func (b *EphemeralBackend) GetCacheInfo(key string) (*Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[key]
	if !ok {
		return nil, nil
	}
	info := infoFor(key, entry.CachedAt)
	return &info, nil
}

// Invalidate removes the named keys; absent keys are no-ops.
func (b *EphemeralBackend) Invalidate(keys ...string) (int, error) {
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
	return removed, nil
}

// InvalidatePattern removes every key matching a glob-style pattern.
func (b *EphemeralBackend) InvalidatePattern(pattern string) (int, error) {
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
	return removed, nil
}

// InvalidateAll clears the backend.
func (b *EphemeralBackend) InvalidateAll() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := len(b.entries)
	b.entries = make(map[string]Entry)
	b.keyList = b.keyList[:0]
	return removed, nil
}

// Stats returns global backend statistics.
func (b *EphemeralBackend) Stats() (*Stats, error) {
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
func (b *EphemeralBackend) removeFromOrder(key string) {
	for i, k := range b.keyList {
		if k == key {
			b.keyList = append(b.keyList[:i], b.keyList[i+1:]...)
			return
		}
	}
}
