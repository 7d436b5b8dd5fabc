// Package ledger is the query layer between the analytics engine and the
// ledger store. It expands filters into store queries, normalizes rows, and
// memoizes results per filter in TTL caches.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/irfndi/celebrum-ledger/internal/cache"
	"github.com/irfndi/celebrum-ledger/internal/database"
	"github.com/irfndi/celebrum-ledger/internal/logging"
	"github.com/irfndi/celebrum-ledger/internal/models"
	"github.com/irfndi/celebrum-ledger/internal/utils"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Dataset kinds, one cache each.
const (
	KindTrades = "trades" // trades filtered by a date range
	KindLedger = "ledger" // the whole trades ledger, optionally per symbol
	KindShadow = "shadow"
)

// Kinds lists every dataset kind.
var Kinds = []string{KindTrades, KindLedger, KindShadow}

// Store reads raw ledger rows. *database.LedgerRepository and
// *database.InstrumentedRepository implement it.
type Store interface {
	Select(ctx context.Context, table database.LedgerTable, q database.LedgerQuery) ([]json.RawMessage, error)
}

// Config configures a Querier.
type Config struct {
	TradesTTL    time.Duration
	ShadowTTL    time.Duration
	LedgerTTL    time.Duration
	QueryTimeout time.Duration // zero means no per-query deadline
	Breaker      BreakerConfig
	Recorder     cache.StatsRecorder
	Clock        func() time.Time
}

// DefaultConfig returns the default TTLs and breaker settings.
func DefaultConfig() Config {
	return Config{
		TradesTTL:    30 * time.Second,
		ShadowTTL:    30 * time.Second,
		LedgerTTL:    10 * time.Second,
		QueryTimeout: 15 * time.Second,
		Breaker:      DefaultBreakerConfig(),
	}
}

// Querier fetches normalized trade and shadow records through per-kind caches.
type Querier struct {
	store   Store
	trades  *cache.ResultCache[models.RecordSet]
	ledger  *cache.ResultCache[models.RecordSet]
	shadow  *cache.ResultCache[[]models.ShadowRecord]
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  logging.Logger
	tracer  trace.Tracer
}

// NewQuerier creates a Querier reading from store.
func NewQuerier(store Store, cfg Config, logger logging.Logger) *Querier {
	if logger == nil {
		logger = logging.NewStandardLoggerFrom(nil)
	}
	var opts []cache.Option
	if cfg.Clock != nil {
		opts = append(opts, cache.WithClock(cfg.Clock))
	}
	if cfg.Recorder != nil {
		opts = append(opts, cache.WithStatsRecorder(cfg.Recorder))
	}
	def := DefaultConfig()
	if cfg.TradesTTL <= 0 {
		cfg.TradesTTL = def.TradesTTL
	}
	if cfg.ShadowTTL <= 0 {
		cfg.ShadowTTL = def.ShadowTTL
	}
	if cfg.LedgerTTL <= 0 {
		cfg.LedgerTTL = def.LedgerTTL
	}

	return &Querier{
		store:   store,
		trades:  cache.NewResultCache[models.RecordSet](KindTrades, cfg.TradesTTL, opts...),
		ledger:  cache.NewResultCache[models.RecordSet](KindLedger, cfg.LedgerTTL, opts...),
		shadow:  cache.NewResultCache[[]models.ShadowRecord](KindShadow, cfg.ShadowTTL, opts...),
		breaker: newBreaker("ledger", cfg.Breaker, logger.WithComponent("ledger_breaker")),
		timeout: cfg.QueryTimeout,
		logger:  logger,
		tracer:  otel.Tracer("github.com/irfndi/celebrum-ledger/internal/ledger"),
	}
}

// FetchTrades returns the normalized trades matching f, ascending by timestamp.
// Date-bounded filters and whole-ledger filters are cached separately.
func (q *Querier) FetchTrades(ctx context.Context, f models.Filter) (models.RecordSet, error) {
	c := q.trades
	if f.IsUnbounded() {
		c = q.ledger
	}
	return fetchCached(ctx, q, c, f, func(ctx context.Context) (models.RecordSet, error) {
		rows, err := q.selectRows(ctx, database.TradesTable, f)
		if err != nil {
			return models.RecordSet{}, err
		}
		set := models.NormalizeTrades(rows)
		SortTrades(set.Trades)
		return set, nil
	})
}

// FetchShadow returns the normalized shadow records matching f, ascending by timestamp.
func (q *Querier) FetchShadow(ctx context.Context, f models.Filter) ([]models.ShadowRecord, error) {
	return fetchCached(ctx, q, q.shadow, f, func(ctx context.Context) ([]models.ShadowRecord, error) {
		rows, err := q.selectRows(ctx, database.ShadowTable, f)
		if err != nil {
			return nil, err
		}
		records := models.NormalizeShadow(rows)
		SortShadow(records)
		return records, nil
	})
}

func fetchCached[T any](ctx context.Context, q *Querier, c *cache.ResultCache[T], f models.Filter, fetch func(context.Context) (T, error)) (T, error) {
	ctx, span := q.tracer.Start(ctx, "ledger.fetch", trace.WithAttributes(
		attribute.String("ledger.dataset", c.Kind()),
		attribute.String("ledger.filter", f.Key()),
	))
	defer span.End()

	start := time.Now()
	value, hit, err := c.Get(ctx, f.Key(), fetch)
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	if err != nil {
		span.RecordError(err)
		var zero T
		return zero, err
	}
	q.logger.LogCacheOperation(c.Kind(), f.Key(), hit, time.Since(start).Milliseconds())
	return value, nil
}

// selectRows runs one store read through the breaker. Store failures and
// breaker rejections come back wrapped in utils.ErrLedgerUnavailable.
func (q *Querier) selectRows(ctx context.Context, table database.LedgerTable, f models.Filter) ([]json.RawMessage, error) {
	lq := ToLedgerQuery(f)
	op := fmt.Sprintf("select %s", table)

	callCtx := ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	result, err := q.breaker.Execute(func() (interface{}, error) {
		return q.store.Select(callCtx, table, lq)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		if isBreakerRejection(err) {
			q.logger.WithDataset(string(table)).Warn("Ledger call rejected by circuit breaker", "state", q.breaker.State().String())
		} else {
			q.logger.WithError(err).Error("Ledger query failed", "table", string(table), "filter", f.Key())
		}
		return nil, utils.LedgerUnavailable(op, err)
	}

	rows, _ := result.([]json.RawMessage)
	return rows, nil
}

// ToLedgerQuery expands a filter into inclusive store bounds.
func ToLedgerQuery(f models.Filter) database.LedgerQuery {
	lq := database.LedgerQuery{Symbol: f.Symbol}
	if f.DateRange != nil {
		from, to := f.DateRange.Bounds()
		lq.From, lq.To = &from, &to
	}
	return lq
}

// SortTrades stable-sorts trades ascending by timestamp. Rows without a
// timestamp keep their relative order after all timed rows.
func SortTrades(trades []models.TradeRecord) {
	sort.SliceStable(trades, func(i, j int) bool {
		return timeLess(trades[i].Timestamp, trades[j].Timestamp)
	})
}

// SortShadow stable-sorts shadow records ascending by timestamp, untimed last.
func SortShadow(records []models.ShadowRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return timeLess(records[i].Timestamp, records[j].Timestamp)
	})
}

func timeLess(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a != nil && b == nil
	}
	return a.Before(*b)
}

// Invalidate discards cached results for kind. An empty kind clears every cache.
func (q *Querier) Invalidate(kind string) error {
	switch kind {
	case "":
		q.trades.Invalidate()
		q.ledger.Invalidate()
		q.shadow.Invalidate()
	case KindTrades:
		q.trades.Invalidate()
	case KindLedger:
		q.ledger.Invalidate()
	case KindShadow:
		q.shadow.Invalidate()
	default:
		return utils.NewFieldError("kind", "unknown dataset kind %q", kind)
	}
	return nil
}

// Stats returns the counters of every cache keyed by dataset kind.
func (q *Querier) Stats() map[string]cache.ResultCacheStats {
	return map[string]cache.ResultCacheStats{
		KindTrades: q.trades.Stats(),
		KindLedger: q.ledger.Stats(),
		KindShadow: q.shadow.Stats(),
	}
}

// TTLs returns the configured TTL per dataset kind.
func (q *Querier) TTLs() map[string]time.Duration {
	return map[string]time.Duration{
		KindTrades: q.trades.TTL(),
		KindLedger: q.ledger.TTL(),
		KindShadow: q.shadow.TTL(),
	}
}

// BreakerState reports the ledger circuit breaker state ("closed", "half-open", "open").
func (q *Querier) BreakerState() string {
	return q.breaker.State().String()
}
