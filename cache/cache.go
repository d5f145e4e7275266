// Package cache implements the daemon's keyed lookup store with aging
// least-frequently-used eviction.
package cache

import (
	"sync"
	"time"

	"gitlab_nss_daemon/logging"
)

const (
	DefaultCapacity    = 100
	DefaultAgingPeriod = 30 * time.Minute
)

var log = logging.NewLogger("cache")

type entry[T any] struct {
	value      T
	hits       int64
	lastAccess time.Time
	seq        uint64
}

// Cache is a fixed-capacity keyed store. Each Get counts as an access; an
// entry's eviction priority is its access count minus the aging periods
// elapsed since its last access, so entries nobody asks for anymore decay to
// the bottom regardless of how hot they once were. Ties evict the oldest
// insertion. Safe for concurrent use.
type Cache[T any] struct {
	mu          sync.Mutex
	entries     map[string]*entry[T]
	capacity    int
	agingPeriod time.Duration
	seq         uint64
	now         func() time.Time
}

// New builds a cache holding at most capacity entries. Non-positive
// arguments fall back to the defaults.
func New[T any](capacity int, agingPeriod time.Duration) *Cache[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if agingPeriod <= 0 {
		agingPeriod = DefaultAgingPeriod
	}
	return &Cache[T]{
		entries:     make(map[string]*entry[T], capacity),
		capacity:    capacity,
		agingPeriod: agingPeriod,
		now:         time.Now,
	}
}

// Get returns the value stored under key. Absence is a normal outcome, never
// an error.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		log.Debug("Cache miss for key: %s", key)
		var zero T
		return zero, false
	}
	e.hits++
	e.lastAccess = c.now()
	log.Debug("Cache hit for key: %s", key)
	return e.value, true
}

// Put stores value under key, evicting the lowest-priority entry first when
// the insert would exceed capacity. Put never fails.
func (c *Cache[T]) Put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.hits++
		e.lastAccess = now
		return
	}

	if len(c.entries) >= c.capacity {
		c.evict(now)
	}
	c.seq++
	c.entries[key] = &entry[T]{value: value, hits: 1, lastAccess: now, seq: c.seq}
}

// Len reports the number of entries currently held.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evict drops the entry with the lowest aged priority. Caller holds the lock
// and guarantees the cache is non-empty.
func (c *Cache[T]) evict(now time.Time) {
	var (
		victim string
		lowest int64
		eldest uint64
		found  bool
	)
	for key, e := range c.entries {
		priority := e.hits - int64(now.Sub(e.lastAccess)/c.agingPeriod)
		if !found || priority < lowest || (priority == lowest && e.seq < eldest) {
			victim, lowest, eldest = key, priority, e.seq
			found = true
		}
	}
	if found {
		delete(c.entries, victim)
		log.Debug("Evicted cache entry: %s (priority %d)", victim, lowest)
	}
}
