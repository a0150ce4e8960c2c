// Package cache implements the in-process TTL cache tier and the tiered
// memory-then-redis lookup used by the data-access layer.
//
// The cache is a best-effort optimization: every operation fails closed and
// never panics, so callers can always fall back to recomputing. Stored values
// are shared references; callers must treat them as read-only after Set.
package cache

import (
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"portfolio/internal/logger"
)

const (
	// DefaultTTL is applied when a caller passes a non-positive TTL.
	DefaultTTL = 600 * time.Second

	// entryOverhead is the rough per-entry bookkeeping cost used for the
	// memory estimate in Stats.
	entryOverhead = 96
)

type entry struct {
	value     any
	expiresAt time.Time
	size      int
}

// Memory is the in-process TTL cache. All state sits behind a single mutex.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	// order holds keys by last-set time, oldest first. Eviction is
	// least-recently-set, not LRU by access: a Get never reorders.
	order []string

	maxEntries int
	log        *logger.Logger

	hits   int64
	misses int64

	sweep    *time.Ticker
	stop     chan struct{}
	stopOnce sync.Once

	sf singleflight.Group
}

// Stats is a diagnostic snapshot of one cache tier. It is not transactionally
// consistent with concurrent mutations.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Keys        int   `json:"keys"`
	MemoryBytes int   `json:"memoryBytes"`
}

// NewMemory creates a bounded in-process cache and starts its sweeper.
// maxEntries <= 0 means unbounded; sweepInterval <= 0 disables the sweeper.
func NewMemory(maxEntries int, sweepInterval time.Duration, log *logger.Logger) *Memory {
	if log == nil {
		log = logger.NewNop()
	}
	m := &Memory{
		entries:    make(map[string]*entry),
		maxEntries: maxEntries,
		log:        log,
		stop:       make(chan struct{}),
	}
	if sweepInterval > 0 {
		m.sweep = time.NewTicker(sweepInterval)
		go m.sweepLoop()
	}
	return m
}

// Set stores value under key, overwriting any existing entry and resetting
// its position in the eviction order. Returns false only on internal fault.
func (m *Memory) Set(key string, value any, ttl time.Duration) bool {
	if key == "" {
		return false
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; exists {
		m.removeFromOrder(key)
	} else if m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evictOldestLocked()
	}
	m.entries[key] = &entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
		size:      len(key) + entryOverhead,
	}
	m.order = append(m.order, key)
	return true
}

// Get returns the stored value and an explicit found flag. A cached nil,
// false, or empty value is still found=true; expiry and absence are
// found=false. Expired entries are removed on read.
func (m *Memory) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		m.misses++
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.deleteLocked(key)
		m.misses++
		return nil, false
	}
	m.hits++
	return e.value, true
}

// Has reports whether key holds an unexpired entry. It does not extend the
// TTL and does not count as a hit or miss.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return false
	}
	if time.Now().After(e.expiresAt) {
		m.deleteLocked(key)
		return false
	}
	return true
}

// Delete removes one entry. Deleting an absent key is not an error; the
// return reports whether anything was removed.
func (m *Memory) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		return false
	}
	m.deleteLocked(key)
	return true
}

// DeleteByPattern removes every key matching the regular expression and
// returns the count removed. An invalid pattern deletes nothing.
func (m *Memory) DeleteByPattern(pattern string) int {
	re, err := regexp.Compile(pattern)
	if err != nil {
		m.log.Warn("cache: invalid delete pattern", zap.String("pattern", pattern), zap.Error(err))
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for key := range m.entries {
		if re.MatchString(key) {
			m.deleteLocked(key)
			deleted++
		}
	}
	return deleted
}

// FlushAll removes every entry.
func (m *Memory) FlushAll() {
	m.mu.Lock()
	n := len(m.entries)
	m.entries = make(map[string]*entry)
	m.order = m.order[:0]
	m.mu.Unlock()
	m.log.Info("cache: flushed all entries", zap.Int("evicted", n))
}

// Stats returns a snapshot of hit/miss counters, live key count, and a rough
// memory estimate.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem := 0
	for _, e := range m.entries {
		mem += e.size
	}
	return Stats{
		Hits:        m.hits,
		Misses:      m.misses,
		Keys:        len(m.entries),
		MemoryBytes: mem,
	}
}

// Fetch returns the cached value for key, or runs compute, caches its result
// for ttl, and returns it. Concurrent misses for the same key share a single
// in-flight computation. A compute error is returned to every waiter and
// nothing is cached.
func (m *Memory) Fetch(key string, ttl time.Duration, compute func() (any, error)) (any, error) {
	if v, ok := m.Get(key); ok {
		return v, nil
	}
	v, err, _ := m.sf.Do(key, func() (any, error) {
		// Re-check under singleflight: another caller may have populated
		// the key while we waited for the flight slot.
		if v, ok := m.Get(key); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		m.Set(key, v, ttl)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Stop halts the background sweeper. Safe to call more than once.
func (m *Memory) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		if m.sweep != nil {
			m.sweep.Stop()
		}
	})
}

// SweepNow removes all expired entries immediately and returns the count
// removed. The periodic sweeper calls this; tests can too.
func (m *Memory) SweepNow() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	removed := 0
	for key, e := range m.entries {
		if now.After(e.expiresAt) {
			m.deleteLocked(key)
			removed++
		}
	}
	return removed
}

func (m *Memory) sweepLoop() {
	for {
		select {
		case <-m.sweep.C:
			if n := m.SweepNow(); n > 0 {
				m.log.Debug("cache: swept expired entries", zap.Int("removed", n))
			}
		case <-m.stop:
			return
		}
	}
}

func (m *Memory) deleteLocked(key string) {
	delete(m.entries, key)
	m.removeFromOrder(key)
}

func (m *Memory) evictOldestLocked() {
	if len(m.order) == 0 {
		return
	}
	oldest := m.order[0]
	m.order = m.order[1:]
	delete(m.entries, oldest)
	m.log.Debug("cache: evicted least-recently-set entry", zap.String("key", oldest))
}

func (m *Memory) removeFromOrder(key string) {
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
