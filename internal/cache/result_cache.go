package cache

import (
	"context"
	"sync"
	"time"
)

// Entry is an immutable cached fetch result. A refresh installs a new Entry
// instead of mutating the old one.
type Entry[T any] struct {
	Key       string
	Value     T
	FetchedAt time.Time
}

// Age returns how long ago the entry was fetched.
func (e *Entry[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// StatsRecorder receives hit and miss events per dataset kind.
type StatsRecorder interface {
	RecordHit(category string)
	RecordMiss(category string)
}

// ResultCacheStats tracks cache performance for one dataset kind.
type ResultCacheStats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Fetches       int64 `json:"fetches"`
	FetchErrors   int64 `json:"fetch_errors"`
	Invalidations int64 `json:"invalidations"`
	Entries       int   `json:"entries"`
}

// ResultCache memoizes fetch results per filter key with a fixed TTL.
type ResultCache[T any] struct {
	kind     string
	ttl      time.Duration
	now      func() time.Time
	recorder StatsRecorder

	mu         sync.RWMutex
	entries    map[string]*Entry[T]
	generation uint64
	stats      ResultCacheStats
}

// Option configures a ResultCache.
type Option func(*options)

type options struct {
	now      func() time.Time
	recorder StatsRecorder
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithStatsRecorder forwards hit/miss events to an analytics sink.
func WithStatsRecorder(r StatsRecorder) Option {
	return func(o *options) { o.recorder = r }
}

// NewResultCache creates an empty cache for one dataset kind.
func NewResultCache[T any](kind string, ttl time.Duration, opts ...Option) *ResultCache[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &ResultCache[T]{
		kind:     kind,
		ttl:      ttl,
		now:      o.now,
		recorder: o.recorder,
		entries:  make(map[string]*Entry[T]),
	}
}

// Kind returns the dataset kind the cache serves.
func (c *ResultCache[T]) Kind() string {
	return c.kind
}

// TTL returns the configured time-to-live.
func (c *ResultCache[T]) TTL() time.Duration {
	return c.ttl
}

// Peek returns the current entry for key if it is still fresh.
func (c *ResultCache[T]) Peek(key string) (*Entry[T], bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || entry.Age(c.now()) >= c.ttl {
		return nil, false
	}
	return entry, true
}

// Get returns the cached value for key while it is younger than the TTL and
// otherwise calls fetch. A failed fetch leaves the cache untouched and returns
// the error; it is never reported as a hit.
//
// Concurrent misses on the same key may all fetch; the last successful writer wins.
func (c *ResultCache[T]) Get(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, bool, error) {
	if entry, ok := c.Peek(key); ok {
		c.recordHit()
		return entry.Value, true, nil
	}
	c.recordMiss()

	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()

	value, err := fetch(ctx)
	if err != nil {
		c.mu.Lock()
		c.stats.FetchErrors++
		c.mu.Unlock()
		var zero T
		return zero, false, err
	}

	entry := &Entry[T]{Key: key, Value: value, FetchedAt: c.now()}

	c.mu.Lock()
	c.stats.Fetches++
	// an invalidation that landed during the fetch wins over a result that started before it
	if c.generation == gen {
		c.entries[key] = entry
	}
	c.mu.Unlock()

	return value, false, nil
}

// Invalidate discards every entry regardless of age.
func (c *ResultCache[T]) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry[T])
	c.generation++
	c.stats.Invalidations++
	c.mu.Unlock()
}

// InvalidateKey discards the entry for one key.
func (c *ResultCache[T]) InvalidateKey(key string) {
	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.stats.Invalidations++
	}
	c.generation++
	c.mu.Unlock()
}

// Stats returns a snapshot of the cache counters.
func (c *ResultCache[T]) Stats() ResultCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}

func (c *ResultCache[T]) recordHit() {
	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()
	if c.recorder != nil {
		c.recorder.RecordHit(c.kind)
	}
}

func (c *ResultCache[T]) recordMiss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
	if c.recorder != nil {
		c.recorder.RecordMiss(c.kind)
	}
}
