package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/celebrum-ledger/internal/api"
	"github.com/irfndi/celebrum-ledger/internal/cache"
	"github.com/irfndi/celebrum-ledger/internal/config"
	"github.com/irfndi/celebrum-ledger/internal/database"
	"github.com/irfndi/celebrum-ledger/internal/ledger"
	"github.com/irfndi/celebrum-ledger/internal/logging"
	"github.com/irfndi/celebrum-ledger/internal/middleware"
	"github.com/irfndi/celebrum-ledger/internal/services"
	"github.com/irfndi/celebrum-ledger/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	durations, err := cfg.ParseDurations()
	if err != nil {
		return err
	}

	logrusLogger := logrus.New()
	logrusLogger.SetLevel(logging.ParseLogrusLevel(cfg.LogLevel))
	logrusLogger.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logging.ParseLogrusLevel(cfg.LogLevel))

	logger, otlpLogger := logging.NewStandardOTLPLogger(logging.OTLPConfig{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Environment,
		LogLevel:       cfg.LogLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.InitTelemetry(ctx, telemetry.TelemetryConfig{
		Enabled:        cfg.Telemetry.Enabled,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Environment,
	}, logger.Logger())
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdownTelemetry(provider, otlpLogger, logrusLogger)

	db, err := database.NewPostgresConnection(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	var redisClient *database.RedisClient
	if cfg.Redis.Enabled {
		redisClient, err = database.NewRedisConnection(ctx, cfg.Redis)
		if err != nil {
			// the engine runs fine without cross-replica invalidation
			logrusLogger.WithError(err).Warn("Redis unavailable, cache invalidation stays local")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var cacheAnalytics *services.CacheAnalyticsService
	var bus *cache.InvalidationBus
	if redisClient != nil {
		cacheAnalytics = services.NewCacheAnalyticsService(redisClient.Client)
		cacheAnalytics.StartPeriodicReporting(ctx, 5*time.Minute)
		bus = cache.NewInvalidationBus(redisClient.Client, cfg.Redis.InvalidationChannel, logger.Logger())
	} else {
		cacheAnalytics = services.NewCacheAnalyticsService(nil)
	}

	repo := database.NewInstrumentedRepository(
		database.NewLedgerRepository(database.NewTracedPool(db.Pool)),
		logger,
	)
	querier := ledger.NewQuerier(repo, querierConfig(cfg, durations, cacheAnalytics), logger)

	analyticsCfg := services.LedgerAnalyticsConfig{LatestExitsDefault: cfg.Ledger.LatestExitsDefault}
	base := decimal.NewFromFloat(cfg.Equity.BaseEquity)
	analyticsCfg.BaseEquity = &base

	var publisher services.InvalidationPublisher
	if bus != nil {
		publisher = bus
	}
	analytics := services.NewLedgerAnalyticsService(querier, publisher, analyticsCfg, logger)

	if bus != nil {
		go func() {
			err := bus.Listen(ctx, nil, analytics.ApplyRemoteInvalidation)
			if err != nil && !errors.Is(err, context.Canceled) {
				logrusLogger.WithError(err).Error("Invalidation listener stopped")
			}
		}()
	}

	deps := api.Dependencies{
		Analytics:      analytics,
		CacheAnalytics: cacheAnalytics,
		Inspector:      querier,
		Database:       db,
		Logger:         logger,
		AdminAPIKey:    cfg.Server.AdminAPIKey,
		Version:        cfg.Telemetry.ServiceVersion,
	}
	if redisClient != nil {
		deps.Redis = redisClient
	}
	router := newRouter(cfg, deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.LogStartup(cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	logger.LogShutdown(cfg.Telemetry.ServiceName, "signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logrusLogger.Info("Server exited")
	return nil
}

// querierConfig maps the ledger and cache settings onto the query layer.
func querierConfig(cfg *config.Config, d config.Durations, recorder *services.CacheAnalyticsService) ledger.Config {
	qc := ledger.DefaultConfig()
	qc.TradesTTL = d.TradesTTL
	qc.ShadowTTL = d.ShadowTTL
	qc.LedgerTTL = d.LedgerTTL
	qc.QueryTimeout = d.QueryTimeout
	if cfg.Ledger.BreakerMaxFailures > 0 {
		qc.Breaker.MaxFailures = cfg.Ledger.BreakerMaxFailures
	}
	if cfg.Ledger.BreakerFailureRatio > 0 {
		qc.Breaker.FailureRatio = cfg.Ledger.BreakerFailureRatio
	}
	if d.BreakerOpenTimeout > 0 {
		qc.Breaker.OpenTimeout = d.BreakerOpenTimeout
	}
	if recorder != nil {
		qc.Recorder = recorder
	}
	return qc
}

func newRouter(cfg *config.Config, deps api.Dependencies) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TelemetryMiddleware(cfg.Telemetry.ServiceName))
	router.Use(corsMiddleware(cfg.Server.AllowedOrigins))
	api.SetupRoutes(router, deps)
	return router
}

// corsMiddleware lets the dashboard origins call the API from a browser.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	origins := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		origins[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		_, ok := origins[origin]
		if _, wildcard := origins["*"]; wildcard {
			ok = true
		}
		if origin != "" && ok {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key, "+middleware.RequestIDHeader)
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func shutdownTelemetry(provider *telemetry.Provider, otlpLogger *logging.OTLPLogger, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := provider.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Failed to shutdown tracer provider")
	}
	if otlpLogger != nil {
		if err := otlpLogger.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Failed to shutdown OTLP logger")
		}
	}
}
