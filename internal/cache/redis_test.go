package cache

import (
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestApplyExtras(t *testing.T) {
	opts := &redis.Options{}
	applyExtras(opts, map[string]interface{}{
		"username":     "analytics",
		"pool_size":    20,
		"dial_timeout": "3s",
		"read_timeout": 5,
		"unknown_knob": "ignored",
	})

	if opts.Username != "analytics" {
		t.Errorf("username = %q", opts.Username)
	}
	if opts.PoolSize != 20 {
		t.Errorf("pool_size = %d", opts.PoolSize)
	}
	if opts.DialTimeout != 3*time.Second {
		t.Errorf("dial_timeout = %v", opts.DialTimeout)
	}
	if opts.ReadTimeout != 5*time.Second {
		t.Errorf("read_timeout = %v", opts.ReadTimeout)
	}
}

func TestAsDuration(t *testing.T) {
	cases := []struct {
		in   interface{}
		want time.Duration
		ok   bool
	}{
		{"250ms", 250 * time.Millisecond, true},
		{2, 2 * time.Second, true},
		{1.5, time.Second, true},
		{time.Minute, time.Minute, true},
		{"nonsense", 0, false},
	}
	for _, tc := range cases {
		got, ok := asDuration(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("asDuration(%v) = (%v, %v), want (%v, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

// Live-server tests run only when GITTAB_REDIS_ADDR points at a disposable
// Redis instance, e.g. GITTAB_REDIS_ADDR=localhost:6379.
func newLiveRedis(t *testing.T) *RedisBackend {
	t.Helper()
	addr := os.Getenv("GITTAB_REDIS_ADDR")
	if addr == "" {
		t.Skip("GITTAB_REDIS_ADDR not set")
	}

	host, portStr, _ := strings.Cut(addr, ":")
	port, _ := strconv.Atoi(portStr)
	b, err := NewRedisBackend(RedisConfig{Host: host, Port: port, DB: 12, MaxKeys: 100}, testLogger())
	if err != nil {
		t.Fatalf("NewRedisBackend failed: %v", err)
	}
	t.Cleanup(func() {
		_, _ = b.InvalidateAll()
		_ = b.Close()
	})
	return b
}

func TestRedisRoundTrip(t *testing.T) {
	b := newLiveRedis(t)

	value := []byte(`{"rows": [1, 2, 3]}`)
	mustSet(t, b, "live_roundtrip", value)
	assertValue(t, b, "live_roundtrip", value)

	info, err := b.GetCacheInfo("live_roundtrip")
	if err != nil {
		t.Fatalf("GetCacheInfo failed: %v", err)
	}
	if info == nil || info.CachedAt.IsZero() {
		t.Errorf("GetCacheInfo = %+v", info)
	}
}

func TestRedisInvalidatePattern(t *testing.T) {
	b := newLiveRedis(t)

	mustSet(t, b, "commit_history|repoA|main", []byte("1"))
	mustSet(t, b, "blame|repoA|HEAD", []byte("2"))

	removed, err := b.InvalidatePattern("commit_history*")
	if err != nil {
		t.Fatalf("InvalidatePattern failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if exists, _ := b.Exists("blame|repoA|HEAD"); !exists {
		t.Error("non-matching key must survive")
	}
}
