package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingRecorder struct {
	mu     sync.Mutex
	hits   map[string]int
	misses map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{hits: map[string]int{}, misses: map[string]int{}}
}

func (r *countingRecorder) RecordHit(category string) {
	r.mu.Lock()
	r.hits[category]++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordMiss(category string) {
	r.mu.Lock()
	r.misses[category]++
	r.mu.Unlock()
}

func counterFetch(calls *int32, value string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		atomic.AddInt32(calls, 1)
		return value, nil
	}
}

func TestResultCache_HitWithinTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewResultCache[string]("trades", 30*time.Second, WithClock(clock.Now))
	ctx := context.Background()
	var calls int32

	v, hit, err := c.Get(ctx, "k", counterFetch(&calls, "first"))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "first", v)

	clock.Advance(29 * time.Second)
	v, hit, err = c.Get(ctx, "k", counterFetch(&calls, "second"))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "first", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestResultCache_RefetchAfterTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewResultCache[string]("trades", 30*time.Second, WithClock(clock.Now))
	ctx := context.Background()
	var calls int32

	_, _, err := c.Get(ctx, "k", counterFetch(&calls, "first"))
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	v, hit, err := c.Get(ctx, "k", counterFetch(&calls, "second"))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "second", v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestResultCache_KeysAreIndependent(t *testing.T) {
	c := NewResultCache[string]("trades", time.Minute)
	ctx := context.Background()
	var calls int32

	_, _, _ = c.Get(ctx, "a", counterFetch(&calls, "A"))
	v, hit, _ := c.Get(ctx, "b", counterFetch(&calls, "B"))

	assert.False(t, hit)
	assert.Equal(t, "B", v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 2, c.Stats().Entries)
}

func TestResultCache_Invalidate(t *testing.T) {
	c := NewResultCache[string]("trades", time.Hour)
	ctx := context.Background()
	var calls int32

	_, _, _ = c.Get(ctx, "a", counterFetch(&calls, "A"))
	_, _, _ = c.Get(ctx, "b", counterFetch(&calls, "B"))

	c.Invalidate()
	assert.Equal(t, 0, c.Stats().Entries)

	_, hit, _ := c.Get(ctx, "a", counterFetch(&calls, "A2"))
	assert.False(t, hit)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestResultCache_InvalidateKey(t *testing.T) {
	c := NewResultCache[string]("trades", time.Hour)
	ctx := context.Background()
	var calls int32

	_, _, _ = c.Get(ctx, "a", counterFetch(&calls, "A"))
	_, _, _ = c.Get(ctx, "b", counterFetch(&calls, "B"))

	c.InvalidateKey("a")

	_, hitA, _ := c.Get(ctx, "a", counterFetch(&calls, "A2"))
	_, hitB, _ := c.Get(ctx, "b", counterFetch(&calls, "B2"))
	assert.False(t, hitA)
	assert.True(t, hitB)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestResultCache_FetchErrorKeepsPriorEntry(t *testing.T) {
	clock := newFakeClock()
	c := NewResultCache[string]("trades", 10*time.Second, WithClock(clock.Now))
	ctx := context.Background()
	boom := errors.New("ledger down")
	var calls int32

	_, _, err := c.Get(ctx, "k", counterFetch(&calls, "good"))
	require.NoError(t, err)

	clock.Advance(11 * time.Second)
	v, hit, err := c.Get(ctx, "k", func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, hit)
	assert.Empty(t, v)

	// no entry was created for a key whose first fetch failed
	_, _, err = c.Get(ctx, "fresh", func(context.Context) (string, error) { return "", boom })
	assert.Error(t, err)
	_, ok := c.Peek("fresh")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.FetchErrors)
	assert.Equal(t, 1, stats.Entries)
}

func TestResultCache_InvalidationDuringFetchDiscardsResult(t *testing.T) {
	c := NewResultCache[string]("trades", time.Hour)
	ctx := context.Background()

	v, _, err := c.Get(ctx, "k", func(context.Context) (string, error) {
		c.Invalidate()
		return "stale", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "stale", v, "the caller still gets its own result")

	_, ok := c.Peek("k")
	assert.False(t, ok)
}

func TestResultCache_RecordsStats(t *testing.T) {
	rec := newCountingRecorder()
	c := NewResultCache[string]("shadow", time.Hour, WithStatsRecorder(rec))
	ctx := context.Background()
	var calls int32

	_, _, _ = c.Get(ctx, "k", counterFetch(&calls, "v"))
	_, _, _ = c.Get(ctx, "k", counterFetch(&calls, "v"))
	_, _, _ = c.Get(ctx, "k", counterFetch(&calls, "v"))

	assert.Equal(t, 2, rec.hits["shadow"])
	assert.Equal(t, 1, rec.misses["shadow"])
	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Fetches)
	assert.Equal(t, "shadow", c.Kind())
	assert.Equal(t, time.Hour, c.TTL())
}

func TestResultCache_ConcurrentReadersSeeWholeValues(t *testing.T) {
	c := NewResultCache[[]int]("trades", time.Nanosecond)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				v, _, err := c.Get(ctx, "k", func(context.Context) ([]int, error) {
					return []int{n, n, n}, nil
				})
				assert.NoError(t, err)
				if assert.Len(t, v, 3) {
					assert.Equal(t, v[0], v[2])
				}
				if j%10 == 0 {
					c.Invalidate()
				}
			}
		}(i)
	}
	wg.Wait()
}
