package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// OverallCategory aggregates every dataset kind.
const OverallCategory = "overall"

// StatsSnapshotKey is the Redis key periodic reporting writes to.
const StatsSnapshotKey = "ledger:cache:analytics:stats"

// CacheStats represents cache statistics
type CacheStats struct {
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	HitRate     float64   `json:"hit_rate"`
	TotalOps    int64     `json:"total_ops"`
	LastUpdated time.Time `json:"last_updated"`
}

// CacheMetrics represents detailed cache metrics by dataset kind
type CacheMetrics struct {
	Overall          CacheStats            `json:"overall"`
	ByCategory       map[string]CacheStats `json:"by_category"`
	RedisInfo        map[string]string     `json:"redis_info,omitempty"`
	ConnectedClients int64                 `json:"connected_clients"`
	KeyCount         int64                 `json:"key_count"`
}

// CacheAnalyticsService tracks hit and miss counts of the result caches per
// dataset kind. It implements cache.StatsRecorder. The Redis client is optional
// and only used for metrics and snapshot reporting.
type CacheAnalyticsService struct {
	redisClient *redis.Client
	stats       map[string]*CacheStats
	mu          sync.RWMutex
	now         func() time.Time
}

// NewCacheAnalyticsService creates a new cache analytics service
func NewCacheAnalyticsService(redisClient *redis.Client) *CacheAnalyticsService {
	return &CacheAnalyticsService{
		redisClient: redisClient,
		stats:       make(map[string]*CacheStats),
		now:         time.Now,
	}
}

// RecordHit records a cache hit for the given dataset kind
func (c *CacheAnalyticsService) RecordHit(category string) {
	c.record(category, true)
}

// RecordMiss records a cache miss for the given dataset kind
func (c *CacheAnalyticsService) RecordMiss(category string) {
	c.record(category, false)
}

func (c *CacheAnalyticsService) record(category string, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, name := range []string{category, OverallCategory} {
		s := c.stats[name]
		if s == nil {
			s = &CacheStats{}
			c.stats[name] = s
		}
		if hit {
			s.Hits++
		} else {
			s.Misses++
		}
		s.TotalOps++
		s.HitRate = float64(s.Hits) / float64(s.TotalOps)
		s.LastUpdated = now
	}
}

// GetStats returns cache statistics for a specific dataset kind
func (c *CacheAnalyticsService) GetStats(category string) CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if stats, exists := c.stats[category]; exists {
		return *stats
	}
	return CacheStats{}
}

// GetAllStats returns all cache statistics
func (c *CacheAnalyticsService) GetAllStats() map[string]CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]CacheStats, len(c.stats))
	for category, stats := range c.stats {
		result[category] = *stats
	}
	return result
}

// GetMetrics returns the per-kind stats plus Redis server info when a client
// is configured. A failing INFO call leaves RedisInfo empty.
func (c *CacheAnalyticsService) GetMetrics(ctx context.Context) (*CacheMetrics, error) {
	allStats := c.GetAllStats()

	metrics := &CacheMetrics{
		Overall:    allStats[OverallCategory],
		ByCategory: allStats,
	}
	delete(metrics.ByCategory, OverallCategory)

	if c.redisClient == nil {
		return metrics, nil
	}

	if info, err := c.redisClient.Info(ctx, "clients", "keyspace").Result(); err == nil {
		metrics.RedisInfo = c.parseRedisInfo(info)
	}

	clientList, err := c.redisClient.ClientList(ctx).Result()
	if err == nil && clientList != "" {
		metrics.ConnectedClients = int64(len(strings.Split(strings.TrimSpace(clientList), "\n")))
	}

	keyCount, err := c.redisClient.DBSize(ctx).Result()
	if err != nil {
		return nil, err
	}
	metrics.KeyCount = keyCount

	return metrics, nil
}

// parseRedisInfo parses Redis INFO command output
func (c *CacheAnalyticsService) parseRedisInfo(info string) map[string]string {
	result := make(map[string]string)

	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, value, ok := strings.Cut(line, ":"); ok {
			result[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}

	return result
}

// ResetStats resets all cache statistics
func (c *CacheAnalyticsService) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = make(map[string]*CacheStats)
}

// StartPeriodicReporting writes a stats snapshot to Redis every interval until ctx is done.
func (c *CacheAnalyticsService) StartPeriodicReporting(ctx context.Context, interval time.Duration) {
	if c.redisClient == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = c.reportStats(ctx)
			}
		}
	}()
}

// reportStats stores the current stats in Redis with a 24 hour TTL
func (c *CacheAnalyticsService) reportStats(ctx context.Context) error {
	statsJSON, err := json.Marshal(c.GetAllStats())
	if err != nil {
		return err
	}
	return c.redisClient.Set(ctx, StatsSnapshotKey, statsJSON, 24*time.Hour).Err()
}
