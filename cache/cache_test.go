package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestCache returns a cache on a controllable clock.
func newTestCache(capacity int) (*Cache[string], *time.Time) {
	c := New[string](capacity, 30*time.Minute)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestGetMissIsNotAnError(t *testing.T) {
	c, _ := newTestCache(4)

	value, ok := c.Get("byID:7")
	require.False(t, ok)
	require.Empty(t, value)
}

func TestPutThenGet(t *testing.T) {
	c, _ := newTestCache(4)

	c.Put("byName:alice", "alice")
	value, ok := c.Get("byName:alice")
	require.True(t, ok)
	require.Equal(t, "alice", value)
}

func TestPutExistingKeyReplacesWithoutEviction(t *testing.T) {
	c, _ := newTestCache(2)

	c.Put("a", "old")
	c.Put("b", "b")
	c.Put("a", "new")

	require.Equal(t, 2, c.Len())
	value, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, "new", value)
	_, ok = c.Get("b")
	require.True(t, ok)
}

func TestCapacityNeverExceeded(t *testing.T) {
	const capacity = 100
	c, _ := newTestCache(capacity)

	for i := 0; i < 250; i++ {
		c.Put(fmt.Sprintf("byID:%d", i), "user")
		require.LessOrEqual(t, c.Len(), capacity)
	}
	require.Equal(t, capacity, c.Len())
}

func TestEvictsLeastFrequentlyUsed(t *testing.T) {
	c, _ := newTestCache(2)

	c.Put("hot", "hot")
	c.Put("cold", "cold")
	c.Get("hot")
	c.Get("hot")

	c.Put("new", "new")

	_, ok := c.Get("cold")
	require.False(t, ok, "the least-used entry should have been evicted")
	_, ok = c.Get("hot")
	require.True(t, ok)
	_, ok = c.Get("new")
	require.True(t, ok)
}

func TestAgingDecaysFrequency(t *testing.T) {
	c, now := newTestCache(2)

	// "hot" earns five accesses, then goes quiet for five aging periods:
	// its priority decays to zero, below the freshly inserted "recent".
	c.Put("hot", "hot")
	for i := 0; i < 4; i++ {
		c.Get("hot")
	}
	*now = now.Add(5 * 30 * time.Minute)

	c.Put("recent", "recent")
	c.Put("new", "new")

	_, ok := c.Get("hot")
	require.False(t, ok, "the aged-out entry should have been evicted")
	_, ok = c.Get("recent")
	require.True(t, ok)
	_, ok = c.Get("new")
	require.True(t, ok)
}

func TestEvictionTieBreaksOnOldestInsertion(t *testing.T) {
	c, _ := newTestCache(2)

	c.Put("first", "first")
	c.Put("second", "second")
	c.Put("third", "third")

	_, ok := c.Get("first")
	require.False(t, ok, "equal priorities should evict the oldest insertion")
	_, ok = c.Get("second")
	require.True(t, ok)
	_, ok = c.Get("third")
	require.True(t, ok)
}

func TestGetRefreshesRecency(t *testing.T) {
	c, now := newTestCache(2)

	c.Put("a", "a")
	c.Put("b", "b")
	*now = now.Add(5 * 30 * time.Minute)

	// Both have aged equally; touching "a" resets its decay, leaving "b"
	// as the eviction victim despite its equal access count.
	c.Get("a")
	c.Put("c", "c")

	_, ok := c.Get("b")
	require.False(t, ok)
	_, ok = c.Get("a")
	require.True(t, ok)
}

func TestDefaultsApplied(t *testing.T) {
	c := New[int](0, 0)
	require.Equal(t, DefaultCapacity, c.capacity)
	require.Equal(t, DefaultAgingPeriod, c.agingPeriod)
}
