// Package cache provides the pluggable key-value cache behind gittab's
// extraction methods. Four backends satisfy the same contract: a bounded
// in-memory store, a compressed on-disk snapshot, a SQLite table, and a
// Redis database. Values are opaque byte payloads; the wrapper in cached.go
// handles (de)serialization of analytics results.
package cache

import (
	"errors"
	"time"
)

// DefaultMaxKeys bounds a backend when no explicit limit is configured.
const DefaultMaxKeys = 1000

// ErrAmbiguousInvalidation is returned when an invalidation request names
// both exact keys and a pattern; the caller must pick one.
var ErrAmbiguousInvalidation = errors.New("cache: invalidate with either keys or a pattern, not both")

// Entry is one stored value plus its write timestamp. CachedAt is set once,
// when the value is written; overwriting a key creates a new entry with a
// new timestamp.
type Entry struct {
	Value    []byte    `json:"value"`
	CachedAt time.Time `json:"cached_at"`
}

// Info describes a live entry without its payload.
type Info struct {
	Key        string    `json:"key"`
	CachedAt   time.Time `json:"cached_at"`
	AgeSeconds float64   `json:"age_seconds"`
	AgeMinutes float64   `json:"age_minutes"`
	AgeHours   float64   `json:"age_hours"`
}

// Stats summarizes a backend's global state.
type Stats struct {
	TotalEntries         int      `json:"total_entries"`
	MaxKeys              int      `json:"max_keys"`
	CacheUsagePercent    float64  `json:"cache_usage_percent"`
	AverageEntryAgeHours *float64 `json:"average_entry_age_hours"`
	OldestEntryAgeHours  *float64 `json:"oldest_entry_age_hours"`
	NewestEntryAgeHours  *float64 `json:"newest_entry_age_hours"`
}

// Backend is the storage contract shared by all cache implementations.
// Backends exclusively own their stored entries; callers never mutate
// stored state except through these operations. A miss is a first-class
// outcome, not an error. Implementations must be safe for concurrent use
// by multiple owners sharing one instance.
type Backend interface {
	// Set stores value under key, evicting the oldest-inserted entry if
	// the configured bound would be exceeded.
	Set(key string, value []byte) error

	// Get returns the stored value. The bool reports whether the key was
	// present; absence is not an error.
	Get(key string) ([]byte, bool, error)

	// Exists reports whether key is currently stored.
	Exists(key string) (bool, error)

	// ListCachedKeys returns metadata for every live entry.
	ListCachedKeys() ([]Info, error)

	// GetCacheInfo returns metadata for one entry, or nil when absent.
	GetCacheInfo(key string) (*Info, error)

	// Invalidate removes the named keys, returning how many were present.
	Invalidate(keys ...string) (int, error)

	// InvalidatePattern removes every key matching a glob-style pattern,
	// returning the removed count.
	InvalidatePattern(pattern string) (int, error)

	// InvalidateAll clears the backend, returning the removed count.
	InvalidateAll() (int, error)

	// Stats returns global backend statistics.
	Stats() (*Stats, error)
}

// infoFor derives entry metadata at the current instant.
func infoFor(key string, cachedAt time.Time) Info {
	age := time.Since(cachedAt).Seconds()
	return Info{
		Key:        key,
		CachedAt:   cachedAt,
		AgeSeconds: age,
		AgeMinutes: age / 60,
		AgeHours:   age / 3600,
	}
}

// statsFor computes backend statistics from the live entry timestamps.
func statsFor(maxKeys int, cachedAt []time.Time) *Stats {
	stats := &Stats{
		TotalEntries: len(cachedAt),
		MaxKeys:      maxKeys,
	}
	if maxKeys > 0 {
		stats.CacheUsagePercent = float64(len(cachedAt)) / float64(maxKeys) * 100
	}
	if len(cachedAt) == 0 {
		return stats
	}

	now := time.Now()
	oldest := cachedAt[0]
	newest := cachedAt[0]
	var totalHours float64
	for _, ts := range cachedAt {
		if ts.Before(oldest) {
			oldest = ts
		}
		if ts.After(newest) {
			newest = ts
		}
		totalHours += now.Sub(ts).Hours()
	}

	avg := totalHours / float64(len(cachedAt))
	oldestAge := now.Sub(oldest).Hours()
	newestAge := now.Sub(newest).Hours()
	stats.AverageEntryAgeHours = &avg
	stats.OldestEntryAgeHours = &oldestAge
	stats.NewestEntryAgeHours = &newestAge
	return stats
}
