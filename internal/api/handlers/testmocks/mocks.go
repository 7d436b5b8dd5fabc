package testmocks

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/irfndi/celebrum-ledger/internal/cache"
	"github.com/irfndi/celebrum-ledger/internal/models"
	"github.com/irfndi/celebrum-ledger/internal/services"
)

// MockLedgerAnalytics implements handlers.LedgerAnalytics for testing
type MockLedgerAnalytics struct {
	mock.Mock
}

func (m *MockLedgerAnalytics) GetDailySummary(ctx context.Context, symbol *string, day time.Time) (models.DailySummary, error) {
	args := m.Called(ctx, symbol, day)
	return args.Get(0).(models.DailySummary), args.Error(1)
}

func (m *MockLedgerAnalytics) GetPnlBySymbol(ctx context.Context, symbol *string, day time.Time) (map[string]decimal.Decimal, error) {
	args := m.Called(ctx, symbol, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]decimal.Decimal), args.Error(1)
}

func (m *MockLedgerAnalytics) GetEquityCurve(ctx context.Context, symbol *string, start, end *time.Time, base *decimal.Decimal) ([]models.EquityPoint, error) {
	args := m.Called(ctx, symbol, start, end, base)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EquityPoint), args.Error(1)
}

func (m *MockLedgerAnalytics) GetLatestExits(ctx context.Context, n int, symbol *string) ([]models.TradeRecord, error) {
	args := m.Called(ctx, n, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TradeRecord), args.Error(1)
}

func (m *MockLedgerAnalytics) GetTrades(ctx context.Context, f models.Filter) ([]models.TradeRecord, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TradeRecord), args.Error(1)
}

func (m *MockLedgerAnalytics) ListSymbols(ctx context.Context, day time.Time) ([]string, error) {
	args := m.Called(ctx, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockLedgerAnalytics) GetShadowOverview(ctx context.Context, symbol *string, day time.Time) (models.ShadowOverview, error) {
	args := m.Called(ctx, symbol, day)
	return args.Get(0).(models.ShadowOverview), args.Error(1)
}

func (m *MockLedgerAnalytics) GetShadowLogs(ctx context.Context, f models.Filter) ([]models.ShadowRecord, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ShadowRecord), args.Error(1)
}

func (m *MockLedgerAnalytics) Refresh(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLedgerAnalytics) BaseEquity() decimal.Decimal {
	args := m.Called()
	return args.Get(0).(decimal.Decimal)
}

func (m *MockLedgerAnalytics) LatestExitsDefault() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockLedgerAnalytics) Today() time.Time {
	args := m.Called()
	return args.Get(0).(time.Time)
}

// MockCacheAnalyticsService implements handlers.CacheAnalyticsInterface for testing
type MockCacheAnalyticsService struct {
	mock.Mock
}

func (m *MockCacheAnalyticsService) GetStats(category string) services.CacheStats {
	args := m.Called(category)
	return args.Get(0).(services.CacheStats)
}

func (m *MockCacheAnalyticsService) GetAllStats() map[string]services.CacheStats {
	args := m.Called()
	return args.Get(0).(map[string]services.CacheStats)
}

func (m *MockCacheAnalyticsService) GetMetrics(ctx context.Context) (*services.CacheMetrics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CacheMetrics), args.Error(1)
}

func (m *MockCacheAnalyticsService) ResetStats() {
	m.Called()
}

// MockInspector implements handlers.ResultCacheInspector for testing
type MockInspector struct {
	mock.Mock
}

func (m *MockInspector) Stats() map[string]cache.ResultCacheStats {
	args := m.Called()
	return args.Get(0).(map[string]cache.ResultCacheStats)
}

func (m *MockInspector) TTLs() map[string]time.Duration {
	args := m.Called()
	return args.Get(0).(map[string]time.Duration)
}

func (m *MockInspector) BreakerState() string {
	args := m.Called()
	return args.String(0)
}

// MockHealthChecker implements handlers.HealthChecker for testing
type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
