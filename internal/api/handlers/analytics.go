package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/irfndi/celebrum-ledger/internal/analytics"
	"github.com/irfndi/celebrum-ledger/internal/models"
	"github.com/irfndi/celebrum-ledger/internal/utils"
)

// LedgerAnalytics is the engine surface the HTTP layer serves.
type LedgerAnalytics interface {
	GetDailySummary(ctx context.Context, symbol *string, day time.Time) (models.DailySummary, error)
	GetPnlBySymbol(ctx context.Context, symbol *string, day time.Time) (map[string]decimal.Decimal, error)
	GetEquityCurve(ctx context.Context, symbol *string, start, end *time.Time, base *decimal.Decimal) ([]models.EquityPoint, error)
	GetLatestExits(ctx context.Context, n int, symbol *string) ([]models.TradeRecord, error)
	GetTrades(ctx context.Context, f models.Filter) ([]models.TradeRecord, error)
	ListSymbols(ctx context.Context, day time.Time) ([]string, error)
	GetShadowOverview(ctx context.Context, symbol *string, day time.Time) (models.ShadowOverview, error)
	GetShadowLogs(ctx context.Context, f models.Filter) ([]models.ShadowRecord, error)
	Refresh(ctx context.Context) error
	BaseEquity() decimal.Decimal
	LatestExitsDefault() int
	Today() time.Time
}

// AnalyticsHandler serves the ledger analytics endpoints.
type AnalyticsHandler struct {
	service LedgerAnalytics
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(service LedgerAnalytics) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// GetSummary returns the headline metrics of one day.
// @Router /api/v1/summary [get]
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	symbol, day, err := h.symbolAndDay(c)
	if err != nil {
		respondError(c, err)
		return
	}

	summary, err := h.service.GetDailySummary(c.Request.Context(), symbol, day)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"date":    day.Format(models.DateLayout),
		"symbol":  symbol,
		"summary": summary,
	})
}

// GetPnlBySymbol returns realized P&L per symbol for one day.
// @Router /api/v1/pnl-by-symbol [get]
func (h *AnalyticsHandler) GetPnlBySymbol(c *gin.Context) {
	symbol, day, err := h.symbolAndDay(c)
	if err != nil {
		respondError(c, err)
		return
	}

	pnl, err := h.service.GetPnlBySymbol(c.Request.Context(), symbol, day)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"date":          day.Format(models.DateLayout),
		"pnl_by_symbol": pnl,
	})
}

// GetEquityCurve returns the cumulative equity series. start and end are
// optional; base overrides the configured starting balance.
// @Router /api/v1/equity-curve [get]
func (h *AnalyticsHandler) GetEquityCurve(c *gin.Context) {
	start, err := optionalDay(c, "start")
	if err != nil {
		respondError(c, err)
		return
	}
	end, err := optionalDay(c, "end")
	if err != nil {
		respondError(c, err)
		return
	}

	var base decimal.Decimal
	if raw := strings.TrimSpace(c.Query("base")); raw != "" {
		base, err = decimal.NewFromString(raw)
		if err != nil {
			respondError(c, utils.NewFieldError("base", "invalid decimal %q", raw))
			return
		}
	} else {
		base = h.service.BaseEquity()
	}

	curve, err := h.service.GetEquityCurve(c.Request.Context(), symbolParam(c), start, end, &base)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"base_equity":  base,
		"final_equity": analytics.FinalEquity(curve, base),
		"points":       curve,
	})
}

// GetLatestExits returns the most recent closed trades.
// @Router /api/v1/latest-exits [get]
func (h *AnalyticsHandler) GetLatestExits(c *gin.Context) {
	n := h.service.LatestExitsDefault()
	if raw := strings.TrimSpace(c.Query("n")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, utils.NewFieldError("n", "invalid integer %q", raw))
			return
		}
		n = parsed
	}

	exits, err := h.service.GetLatestExits(c.Request.Context(), n, symbolParam(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"count": len(exits),
		"exits": exits,
	})
}

// GetTrades returns the raw trade rows of one day, newest first.
// @Router /api/v1/trades [get]
func (h *AnalyticsHandler) GetTrades(c *gin.Context) {
	f, err := h.dayFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	trades, err := h.service.GetTrades(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"count":  len(trades),
		"trades": trades,
	})
}

// GetSymbols lists the symbols traded on one day.
// @Router /api/v1/symbols [get]
func (h *AnalyticsHandler) GetSymbols(c *gin.Context) {
	day, err := h.dayParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	symbols, err := h.service.ListSymbols(c.Request.Context(), day)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"date":    day.Format(models.DateLayout),
		"symbols": symbols,
	})
}

// GetShadowOverview counts the shadow predictions of one day.
// @Router /api/v1/shadow/overview [get]
func (h *AnalyticsHandler) GetShadowOverview(c *gin.Context) {
	symbol, day, err := h.symbolAndDay(c)
	if err != nil {
		respondError(c, err)
		return
	}

	overview, err := h.service.GetShadowOverview(c.Request.Context(), symbol, day)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, overview)
}

// GetShadowLogs returns the shadow predictions of one day, newest first.
// @Router /api/v1/shadow/logs [get]
func (h *AnalyticsHandler) GetShadowLogs(c *gin.Context) {
	f, err := h.dayFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	logs, err := h.service.GetShadowLogs(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"count": len(logs),
		"logs":  logs,
	})
}

// Refresh drops every cached result on this and peer replicas.
// @Router /api/v1/refresh [post]
func (h *AnalyticsHandler) Refresh(c *gin.Context) {
	if err := h.service.Refresh(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"refreshed": true})
}

func symbolParam(c *gin.Context) *string {
	return models.SymbolPtr(c.Query("symbol"))
}

func optionalDay(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	d, err := models.ParseDay(raw)
	if err != nil {
		return nil, utils.NewFieldError(name, "expected YYYY-MM-DD, got %q", raw)
	}
	return &d, nil
}

// dayParam reads ?date=, defaulting to today (UTC).
func (h *AnalyticsHandler) dayParam(c *gin.Context) (time.Time, error) {
	d, err := optionalDay(c, "date")
	if err != nil {
		return time.Time{}, err
	}
	if d == nil {
		return h.service.Today(), nil
	}
	return *d, nil
}

func (h *AnalyticsHandler) symbolAndDay(c *gin.Context) (*string, time.Time, error) {
	day, err := h.dayParam(c)
	return symbolParam(c), day, err
}

func (h *AnalyticsHandler) dayFilter(c *gin.Context) (models.Filter, error) {
	symbol, day, err := h.symbolAndDay(c)
	if err != nil {
		return models.Filter{}, err
	}
	r := models.SingleDay(day)
	return models.Filter{Symbol: symbol, DateRange: &r}, nil
}
