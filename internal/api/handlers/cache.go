package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/celebrum-ledger/internal/cache"
	"github.com/irfndi/celebrum-ledger/internal/services"
)

// CacheAnalyticsInterface defines the interface for cache analytics operations
type CacheAnalyticsInterface interface {
	GetStats(category string) services.CacheStats
	GetAllStats() map[string]services.CacheStats
	GetMetrics(ctx context.Context) (*services.CacheMetrics, error)
	ResetStats()
}

// ResultCacheInspector exposes the state of the query layer caches.
type ResultCacheInspector interface {
	Stats() map[string]cache.ResultCacheStats
	TTLs() map[string]time.Duration
	BreakerState() string
}

// CacheHandler handles cache monitoring and analytics endpoints
type CacheHandler struct {
	cacheAnalytics CacheAnalyticsInterface
	inspector      ResultCacheInspector
}

// NewCacheHandler creates a new cache handler. inspector may be nil.
func NewCacheHandler(cacheAnalytics CacheAnalyticsInterface, inspector ResultCacheInspector) *CacheHandler {
	return &CacheHandler{
		cacheAnalytics: cacheAnalytics,
		inspector:      inspector,
	}
}

type resultCacheView struct {
	TTL string `json:"ttl"`
	cache.ResultCacheStats
}

// GetCacheStats returns hit/miss statistics for every dataset kind along with
// the result cache counters and the ledger breaker state.
// @Router /api/v1/cache/stats [get]
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	data := gin.H{
		"analytics": h.cacheAnalytics.GetAllStats(),
	}

	if h.inspector != nil {
		ttls := h.inspector.TTLs()
		caches := make(map[string]resultCacheView)
		for kind, stats := range h.inspector.Stats() {
			caches[kind] = resultCacheView{TTL: ttls[kind].String(), ResultCacheStats: stats}
		}
		data["caches"] = caches
		data["breaker"] = h.inspector.BreakerState()
	}

	respondOK(c, data)
}

// GetCacheStatsByCategory returns cache statistics for one dataset kind
// @Router /api/v1/cache/stats/{category} [get]
func (h *CacheHandler) GetCacheStatsByCategory(c *gin.Context) {
	category := c.Param("category")
	if category == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Category parameter is required",
		})
		return
	}

	respondOK(c, h.cacheAnalytics.GetStats(category))
}

// GetCacheMetrics returns cache metrics including Redis info
// @Router /api/v1/cache/metrics [get]
func (h *CacheHandler) GetCacheMetrics(c *gin.Context) {
	metrics, err := h.cacheAnalytics.GetMetrics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to get cache metrics: " + err.Error(),
		})
		return
	}

	respondOK(c, metrics)
}

// ResetCacheStats resets all cache statistics
// @Router /api/v1/cache/stats/reset [post]
func (h *CacheHandler) ResetCacheStats(c *gin.Context) {
	h.cacheAnalytics.ResetStats()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Cache statistics reset successfully",
	})
}
