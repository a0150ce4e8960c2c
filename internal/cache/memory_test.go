package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, maxEntries int) *Memory {
	t.Helper()
	m := NewMemory(maxEntries, 0, nil)
	t.Cleanup(m.Stop)
	return m
}

func TestMemorySetGet(t *testing.T) {
	m := newTestCache(t, 0)

	require.True(t, m.Set("k1", "hello", time.Minute))
	v, ok := m.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	// Overwrite wins.
	require.True(t, m.Set("k1", 42, time.Minute))
	v, ok = m.Get("k1")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = m.Get("absent")
	assert.False(t, ok)
}

func TestMemoryFalsyValuesAreFound(t *testing.T) {
	m := newTestCache(t, 0)

	m.Set("zero", 0, time.Minute)
	m.Set("false", false, time.Minute)
	m.Set("nil", nil, time.Minute)
	m.Set("empty", "", time.Minute)

	for _, key := range []string{"zero", "false", "nil", "empty"} {
		_, ok := m.Get(key)
		assert.True(t, ok, "cached falsy value under %q must still be found", key)
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	m := newTestCache(t, 0)

	m.Set("short", "v", 20*time.Millisecond)
	_, ok := m.Get("short")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, ok = m.Get("short")
	assert.False(t, ok, "entry must be absent after TTL elapses")
}

func TestMemorySweepRemovesExpired(t *testing.T) {
	m := newTestCache(t, 0)

	m.Set("a", 1, 10*time.Millisecond)
	m.Set("b", 2, time.Minute)
	time.Sleep(30 * time.Millisecond)

	removed := m.SweepNow()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, m.Stats().Keys)
	assert.True(t, m.Has("b"))
}

func TestMemoryDeleteIdempotent(t *testing.T) {
	m := newTestCache(t, 0)

	m.Set("k", "v", time.Minute)
	assert.True(t, m.Delete("k"))
	assert.False(t, m.Delete("k"), "repeated delete is not an error")
	assert.False(t, m.Delete("never-existed"))
}

func TestMemoryHasDoesNotCount(t *testing.T) {
	m := newTestCache(t, 0)
	m.Set("k", "v", time.Minute)

	before := m.Stats()
	assert.True(t, m.Has("k"))
	assert.False(t, m.Has("absent"))
	after := m.Stats()

	assert.Equal(t, before.Hits, after.Hits)
	assert.Equal(t, before.Misses, after.Misses)
}

func TestMemoryDeleteByPattern(t *testing.T) {
	m := newTestCache(t, 0)

	m.Set("projects:aaaa", 1, time.Minute)
	m.Set("projects:bbbb", 2, time.Minute)
	m.Set("posts:cccc", 3, time.Minute)

	deleted := m.DeleteByPattern("^projects:")
	assert.Equal(t, 2, deleted)
	assert.False(t, m.Has("projects:aaaa"))
	assert.False(t, m.Has("projects:bbbb"))
	assert.True(t, m.Has("posts:cccc"), "unmatched keys stay untouched")

	// Invalid regex deletes nothing.
	assert.Equal(t, 0, m.DeleteByPattern("["))
	assert.True(t, m.Has("posts:cccc"))
}

func TestMemoryFlushAll(t *testing.T) {
	m := newTestCache(t, 0)
	m.Set("a", 1, time.Minute)
	m.Set("b", 2, time.Minute)

	m.FlushAll()
	assert.Equal(t, 0, m.Stats().Keys)
}

func TestMemoryStats(t *testing.T) {
	m := newTestCache(t, 0)
	m.Set("k", "v", time.Minute)

	m.Get("k")      // hit
	m.Get("absent") // miss

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Keys)
	assert.Greater(t, stats.MemoryBytes, 0)
}

func TestMemoryEvictionLeastRecentlySet(t *testing.T) {
	m := newTestCache(t, 3)

	m.Set("first", 1, time.Minute)
	m.Set("second", 2, time.Minute)
	m.Set("third", 3, time.Minute)

	// Access does not reorder: reading "first" must not rescue it.
	m.Get("first")
	// Re-setting "second" moves it to the back of the eviction order.
	m.Set("second", 22, time.Minute)

	m.Set("fourth", 4, time.Minute)

	assert.False(t, m.Has("first"), "oldest-by-set entry is evicted")
	assert.True(t, m.Has("second"))
	assert.True(t, m.Has("third"))
	assert.True(t, m.Has("fourth"))
	assert.Equal(t, 3, m.Stats().Keys)
}

func TestMemoryFetchComputesOnceOnMiss(t *testing.T) {
	m := newTestCache(t, 0)

	calls := 0
	v, err := m.Fetch("k", time.Minute, func() (any, error) {
		calls++
		return "computed", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "computed", v)

	v, err = m.Fetch("k", time.Minute, func() (any, error) {
		calls++
		return "recomputed", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "computed", v, "hit must not recompute")
	assert.Equal(t, 1, calls)
}

func TestMemoryFetchErrorNotCached(t *testing.T) {
	m := newTestCache(t, 0)

	boom := errors.New("boom")
	_, err := m.Fetch("k", time.Minute, func() (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, m.Has("k"))
}

func TestMemoryFetchSingleFlight(t *testing.T) {
	m := newTestCache(t, 0)

	var calls atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			v, err := m.Fetch("hot", time.Minute, func() (any, error) {
				calls.Add(1)
				time.Sleep(10 * time.Millisecond)
				return "shared", nil
			})
			assert.NoError(t, err)
			assert.Equal(t, "shared", v)
		}()
	}
	close(start)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2),
		"concurrent misses must share in-flight computations")
}

func TestMemoryConcurrentAccess(t *testing.T) {
	m := newTestCache(t, 100)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := string(rune('a' + n))
				m.Set(key, j, time.Minute)
				m.Get(key)
				m.Has(key)
				if j%50 == 0 {
					m.Delete(key)
				}
			}
		}(i)
	}
	wg.Wait()
	// No assertion beyond "the race detector stays quiet".
}

func TestKeyStableAndFamilyScoped(t *testing.T) {
	type filter struct {
		Status string
		Tag    string
	}
	k1 := Key("projects", filter{Status: "active"})
	k2 := Key("projects", filter{Status: "active"})
	k3 := Key("projects", filter{Status: "archived"})

	assert.Equal(t, k1, k2, "same params hash to the same key")
	assert.NotEqual(t, k1, k3)
	assert.Regexp(t, FamilyPattern("projects"), k1)
	assert.NotRegexp(t, FamilyPattern("posts"), k1)
}
