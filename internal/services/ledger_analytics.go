package services

import (
	"context"
	"fmt"
	"time"

	"github.com/irfndi/celebrum-ledger/internal/analytics"
	"github.com/irfndi/celebrum-ledger/internal/logging"
	"github.com/irfndi/celebrum-ledger/internal/models"
	"github.com/irfndi/celebrum-ledger/internal/utils"
	"github.com/shopspring/decimal"
)

// DefaultBaseEquity is the starting balance of the equity curve.
var DefaultBaseEquity = decimal.NewFromInt(100000)

// TradeQuerier is the query layer the analytics service reads through.
type TradeQuerier interface {
	FetchTrades(ctx context.Context, f models.Filter) (models.RecordSet, error)
	FetchShadow(ctx context.Context, f models.Filter) ([]models.ShadowRecord, error)
	Invalidate(kind string) error
}

// InvalidationPublisher broadcasts a refresh to peer replicas.
type InvalidationPublisher interface {
	Publish(ctx context.Context, kind string) error
	Origin() string
}

// LedgerAnalyticsConfig configures LedgerAnalyticsService.
type LedgerAnalyticsConfig struct {
	BaseEquity         *decimal.Decimal // nil uses DefaultBaseEquity
	LatestExitsDefault int
	Now                func() time.Time
}

// LedgerAnalyticsService answers the analytical questions asked of the trade
// ledger: daily summaries, per-symbol P&L, equity curves and latest exits.
type LedgerAnalyticsService struct {
	querier       TradeQuerier
	publisher     InvalidationPublisher
	baseEquity    decimal.Decimal
	latestDefault int
	now           func() time.Time
	logger        logging.Logger
}

// NewLedgerAnalyticsService creates the service. publisher may be nil, in which
// case Refresh only clears this process.
func NewLedgerAnalyticsService(querier TradeQuerier, publisher InvalidationPublisher, cfg LedgerAnalyticsConfig, logger logging.Logger) *LedgerAnalyticsService {
	if logger == nil {
		logger = logging.NewStandardLoggerFrom(nil)
	}
	baseEquity := DefaultBaseEquity
	if cfg.BaseEquity != nil {
		baseEquity = *cfg.BaseEquity
	}
	if cfg.LatestExitsDefault <= 0 {
		cfg.LatestExitsDefault = 10
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &LedgerAnalyticsService{
		querier:       querier,
		publisher:     publisher,
		baseEquity:    baseEquity,
		latestDefault: cfg.LatestExitsDefault,
		now:           cfg.Now,
		logger:        logger,
	}
}

// BaseEquity returns the configured starting balance.
func (s *LedgerAnalyticsService) BaseEquity() decimal.Decimal {
	return s.baseEquity
}

// LatestExitsDefault returns the N used when a caller does not pass one.
func (s *LedgerAnalyticsService) LatestExitsDefault() int {
	return s.latestDefault
}

// Today returns the current UTC calendar day.
func (s *LedgerAnalyticsService) Today() time.Time {
	return models.StartOfDay(s.now())
}

func dayFilter(symbol *string, day time.Time) models.Filter {
	r := models.SingleDay(day)
	return models.Filter{Symbol: symbol, DateRange: &r}
}

// GetDailySummary summarizes the exits of one UTC day.
func (s *LedgerAnalyticsService) GetDailySummary(ctx context.Context, symbol *string, day time.Time) (models.DailySummary, error) {
	set, err := s.querier.FetchTrades(ctx, dayFilter(symbol, day))
	if err != nil {
		return models.DailySummary{}, err
	}
	return analytics.Summarize(set), nil
}

// GetPnlBySymbol sums the exits of one UTC day per symbol.
func (s *LedgerAnalyticsService) GetPnlBySymbol(ctx context.Context, symbol *string, day time.Time) (map[string]decimal.Decimal, error) {
	set, err := s.querier.FetchTrades(ctx, dayFilter(symbol, day))
	if err != nil {
		return nil, err
	}
	return analytics.PnlBySymbol(set), nil
}

// GetEquityCurve builds the cumulative equity series of the exits between
// start and end (inclusive UTC days). Either bound may be nil. A nil base
// uses the configured base equity.
//
// The anchor sits at the start of the start day; without a start it sits at
// the earliest exit.
func (s *LedgerAnalyticsService) GetEquityCurve(ctx context.Context, symbol *string, start, end *time.Time, base *decimal.Decimal) ([]models.EquityPoint, error) {
	baseEquity := s.baseEquity
	if base != nil {
		baseEquity = *base
	}
	if start != nil && end != nil && models.StartOfDay(*start).After(models.StartOfDay(*end)) {
		return nil, utils.NewFieldError("start", "start date %s is after end date %s",
			start.UTC().Format(models.DateLayout), end.UTC().Format(models.DateLayout))
	}

	var (
		set    models.RecordSet
		exits  []models.TradeRecord
		anchor *time.Time
		err    error
	)

	switch {
	case start != nil && end != nil:
		r := models.NewDateRange(*start, *end)
		set, err = s.querier.FetchTrades(ctx, models.Filter{Symbol: symbol, DateRange: &r})
		if err != nil {
			return nil, err
		}
		exits = analytics.Exits(set.Trades)
		from, _ := r.Bounds()
		anchor = &from
	default:
		// open or half-open ranges read the whole ledger and clip locally
		set, err = s.querier.FetchTrades(ctx, models.Filter{Symbol: symbol})
		if err != nil {
			return nil, err
		}
		var from, to *time.Time
		if start != nil {
			f := models.StartOfDay(*start)
			from, anchor = &f, &f
		}
		if end != nil {
			t := models.EndOfDay(*end)
			to = &t
		}
		exits = analytics.ClipToRange(analytics.Exits(set.Trades), from, to)
	}

	return analytics.BuildEquityCurve(exits, set.PnlColumn, baseEquity, anchor), nil
}

// GetLatestExits returns the n most recent exits of the whole ledger,
// optionally limited to one symbol.
func (s *LedgerAnalyticsService) GetLatestExits(ctx context.Context, n int, symbol *string) ([]models.TradeRecord, error) {
	if n < 0 {
		return nil, utils.NewFieldError("n", "must be >= 0, got %d", n)
	}
	set, err := s.querier.FetchTrades(ctx, models.Filter{Symbol: symbol})
	if err != nil {
		return nil, err
	}
	return analytics.LatestExits(set, n), nil
}

// GetTrades returns the raw trades matching f, newest first.
func (s *LedgerAnalyticsService) GetTrades(ctx context.Context, f models.Filter) ([]models.TradeRecord, error) {
	set, err := s.querier.FetchTrades(ctx, f)
	if err != nil {
		return nil, err
	}
	return analytics.NewestFirst(set.Trades), nil
}

// ListSymbols returns the distinct symbols traded on day, sorted.
func (s *LedgerAnalyticsService) ListSymbols(ctx context.Context, day time.Time) ([]string, error) {
	set, err := s.querier.FetchTrades(ctx, dayFilter(nil, day))
	if err != nil {
		return nil, err
	}
	return analytics.Symbols(set.Trades), nil
}

// GetShadowOverview counts the shadow predictions of one day.
func (s *LedgerAnalyticsService) GetShadowOverview(ctx context.Context, symbol *string, day time.Time) (models.ShadowOverview, error) {
	records, err := s.querier.FetchShadow(ctx, dayFilter(symbol, day))
	if err != nil {
		return models.ShadowOverview{}, err
	}
	return analytics.ShadowOverview(records), nil
}

// GetShadowLogs returns the shadow predictions matching f, newest first.
func (s *LedgerAnalyticsService) GetShadowLogs(ctx context.Context, f models.Filter) ([]models.ShadowRecord, error) {
	records, err := s.querier.FetchShadow(ctx, f)
	if err != nil {
		return nil, err
	}
	return analytics.ShadowNewestFirst(records), nil
}

// Refresh discards every cached result and asks peer replicas to do the same.
// A failed broadcast is logged; the local caches are cleared regardless.
func (s *LedgerAnalyticsService) Refresh(ctx context.Context) error {
	if err := s.querier.Invalidate(""); err != nil {
		return fmt.Errorf("failed to invalidate caches: %w", err)
	}

	origin := "local"
	if s.publisher != nil {
		origin = s.publisher.Origin()
		if err := s.publisher.Publish(ctx, ""); err != nil {
			s.logger.WithError(err).Warn("Refresh not broadcast to peers")
		}
	}
	s.logger.LogRefresh(origin, "")
	return nil
}

// ApplyRemoteInvalidation handles an invalidation received from a peer replica.
func (s *LedgerAnalyticsService) ApplyRemoteInvalidation(kind string) {
	if err := s.querier.Invalidate(kind); err != nil {
		s.logger.WithError(err).Warn("Ignoring remote invalidation", "dataset", kind)
		return
	}
	s.logger.LogRefresh("remote", kind)
}
