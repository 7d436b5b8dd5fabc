package api

import (
	"github.com/gin-gonic/gin"

	"github.com/irfndi/celebrum-ledger/internal/api/handlers"
	"github.com/irfndi/celebrum-ledger/internal/logging"
	"github.com/irfndi/celebrum-ledger/internal/middleware"
)

// Dependencies are the components the HTTP layer is wired to.
type Dependencies struct {
	Analytics      handlers.LedgerAnalytics
	CacheAnalytics handlers.CacheAnalyticsInterface
	Inspector      handlers.ResultCacheInspector // optional
	Database       handlers.HealthChecker
	Redis          handlers.HealthChecker // optional
	Logger         logging.Logger
	AdminAPIKey    string
	Version        string
}

// SetupRoutes registers the health probe and the /api/v1 analytics routes.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	var breaker func() string
	if deps.Inspector != nil {
		breaker = deps.Inspector.BreakerState
	}
	healthHandler := handlers.NewHealthHandler(deps.Database, deps.Redis, breaker, deps.Version)
	analyticsHandler := handlers.NewAnalyticsHandler(deps.Analytics)
	cacheHandler := handlers.NewCacheHandler(deps.CacheAnalytics, deps.Inspector)
	admin := middleware.NewAdminMiddleware(deps.AdminAPIKey)

	router.Use(middleware.RequestID())
	if deps.Logger != nil {
		router.Use(middleware.RequestLogger(deps.Logger))
	}

	router.GET("/health", healthHandler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/summary", analyticsHandler.GetSummary)
		v1.GET("/pnl-by-symbol", analyticsHandler.GetPnlBySymbol)
		v1.GET("/equity-curve", analyticsHandler.GetEquityCurve)
		v1.GET("/latest-exits", analyticsHandler.GetLatestExits)
		v1.GET("/trades", analyticsHandler.GetTrades)
		v1.GET("/symbols", analyticsHandler.GetSymbols)
		v1.POST("/refresh", admin.RequireAdminAuth(), analyticsHandler.Refresh)

		shadow := v1.Group("/shadow")
		{
			shadow.GET("/overview", analyticsHandler.GetShadowOverview)
			shadow.GET("/logs", analyticsHandler.GetShadowLogs)
		}

		cache := v1.Group("/cache")
		{
			cache.GET("/stats", cacheHandler.GetCacheStats)
			cache.GET("/stats/:category", cacheHandler.GetCacheStatsByCategory)
			cache.POST("/stats/reset", admin.RequireAdminAuth(), cacheHandler.ResetCacheStats)
			cache.GET("/metrics", cacheHandler.GetCacheMetrics)
		}
	}
}
