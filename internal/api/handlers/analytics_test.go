package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/celebrum-ledger/internal/api/handlers/testmocks"
	"github.com/irfndi/celebrum-ledger/internal/models"
	"github.com/irfndi/celebrum-ledger/internal/utils"
)

var (
	today   = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	someDay = time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Field   string          `json:"field"`
}

func newAnalyticsRouter(svc *testmocks.MockLedgerAnalytics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAnalyticsHandler(svc)
	r := gin.New()
	r.GET("/summary", h.GetSummary)
	r.GET("/pnl-by-symbol", h.GetPnlBySymbol)
	r.GET("/equity-curve", h.GetEquityCurve)
	r.GET("/latest-exits", h.GetLatestExits)
	r.GET("/trades", h.GetTrades)
	r.GET("/symbols", h.GetSymbols)
	r.GET("/shadow/overview", h.GetShadowOverview)
	r.GET("/shadow/logs", h.GetShadowLogs)
	r.POST("/refresh", h.Refresh)
	return r
}

func do(t *testing.T, r *gin.Engine, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestGetSummary_DefaultsToToday(t *testing.T) {
	svc := &testmocks.MockLedgerAnalytics{}
	svc.On("Today").Return(today)
	svc.On("GetDailySummary", mock.Anything, (*string)(nil), today).Return(models.DailySummary{
		TotalExits: 2,
		TotalPnl:   decimal.NewFromInt(60),
		Wins:       1,
		Losses:     1,
		WinRate:    50,
	}, nil)

	w, env := do(t, newAnalyticsRouter(svc), http.MethodGet, "/summary")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	var data struct {
		Date    string              `json:"date"`
		Summary models.DailySummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "2024-05-06", data.Date)
	assert.Equal(t, 2, data.Summary.TotalExits)
	assert.True(t, decimal.NewFromInt(60).Equal(data.Summary.TotalPnl))
	assert.Equal(t, 50.0, data.Summary.WinRate)
	svc.AssertExpectations(t)
}

func TestGetSummary_SymbolAndDate(t *testing.T) {
	svc := &testmocks.MockLedgerAnalytics{}
	svc.On("GetDailySummary", mock.Anything, models.SymbolPtr("BTC"), someDay).Return(models.DailySummary{}, nil)

	w, _ := do(t, newAnalyticsRouter(svc), http.MethodGet, "/summary?symbol=BTC&date=2024-04-30")

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
	svc.AssertNotCalled(t, "Today")
}

func TestGetSummary_InvalidDate(t *testing.T) {
	svc := &testmocks.MockLedgerAnalytics{}

	w, env := do(t, newAnalyticsRouter(svc), http.MethodGet, "/summary?date=06-05-2024")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "date", env.Field)
	svc.AssertNotCalled(t, "GetDailySummary", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetSummary_LedgerUnavailable(t *testing.T) {
	svc := &testmocks.MockLedgerAnalytics{}
	svc.On("Today").Return(today)
	svc.On("GetDailySummary", mock.Anything, mock.Anything, mock.Anything).
		Return(models.DailySummary{}, utils.LedgerUnavailable("select trades", errors.New("connection refused")))

	w, env := do(t, newAnalyticsRouter(svc), http.MethodGet, "/summary")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "ledger unavailable")
}

func TestGetPnlBySymbol(t *testing.T) {
	svc := &testmocks.MockLedgerAnalytics{}
	svc.On("Today").Return(today)
	svc.On("GetPnlBySymbol", mock.Anything, (*string)(nil), today).
		Return(map[string]decimal.Decimal{"A": decimal.NewFromInt(60)}, nil)

	w, env := do(t, newAnalyticsRouter(svc), http.MethodGet, "/pnl-by-symbol")

	assert.Equal(t, http.StatusOK, w.Code)
	var data struct {
		PnlBySymbol map[string]decimal.Decimal `json:"pnl_by_symbol"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, decimal.NewFromInt(60).Equal(data.PnlBySymbol["A"]))
}

func TestGetEquityCurve(t *testing.T) {
	svc := &testmocks.MockLedgerAnalytics{}
	base := decimal.NewFromInt(500)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	curve := []models.EquityPoint{
		{Timestamp: start, Equity: base},
		{Timestamp: start.Add(time.Hour), CumulativeRealizedPnl: decimal.NewFromInt(25), Equity: decimal.NewFromInt(525)},
	}
	svc.On("GetEquityCurve", mock.Anything, (*string)(nil), &start, (*time.Time)(nil), mock.MatchedBy(func(b *decimal.Decimal) bool {
		return b != nil && b.Equal(base)
	})).Return(curve, nil)

	w, env := do(t, newAnalyticsRouter(svc), http.MethodGet, "/equity-curve?start=2024-05-01&base=500")

	assert.Equal(t, http.StatusOK, w.Code)
	var data struct {
		FinalEquity decimal.Decimal      `json:"final_equity"`
		Points      []models.EquityPoint `json:"points"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.Points, 2)
	assert.True(t, decimal.NewFromInt(525).Equal(data.FinalEquity))
	svc.AssertNotCalled(t, "BaseEquity")
}

func TestGetEquityCurve_DefaultBase(t *testing.T) {
	svc := &testmocks.MockLedgerAnalytics{}
	svc.On("BaseEquity").Return(decimal.NewFromInt(100000))
	svc.On("GetEquityCurve", mock.Anything, models.SymbolPtr("ETH"), (*time.Time)(nil), (*time.Time)(nil), mock.Anything).
		Return([]models.EquityPoint{{Equity: decimal.NewFromInt(100000)}}, nil)

	w, _ := do(t, newAnalyticsRouter(svc), http.MethodGet, "/equity-curve?symbol=ETH")

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestGetEquityCurve_BadParams(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
	}{
		{"bad start", "start=yesterday", "start"},
		{"bad end", "end=2024-13-01", "end"},
		{"bad base", "base=lots", "base"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &testmocks.MockLedgerAnalytics{}
			svc.On("BaseEquity").Return(decimal.NewFromInt(100000)).Maybe()

			w, env := do(t, newAnalyticsRouter(svc), http.MethodGet, "/equity-curve?"+tt.query)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.field, env.Field)
		})
	}
}

func TestGetEquityCurve_StartAfterEnd(t *testing.T) {
	svc := &testmocks.MockLedgerAnalytics{}
	svc.On("BaseEquity").Return(decimal.NewFromInt(100000))
	svc.On("GetEquityCurve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, utils.NewFieldError("start", "start date is after end date"))

	w, env := do(t, newAnalyticsRouter(svc), http.MethodGet, "/equity-curve?start=2024-05-07&end=2024-05-06")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "start", env.Field)
}

func TestGetLatestExits(t *testing.T) {
	tests := []struct {
		name  string
		query string
		n     int
	}{
		{"default n", "", 10},
		{"explicit n", "?n=3", 3},
		{"zero", "?n=0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &testmocks.MockLedgerAnalytics{}
			svc.On("LatestExitsDefault").Return(10)
			svc.On("GetLatestExits", mock.Anything, tt.n, (*string)(nil)).Return([]models.TradeRecord{}, nil)

			w, env := do(t, newAnalyticsRouter(svc), http.MethodGet, "/latest-exits"+tt.query)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.True(t, env.Success)
			svc.AssertExpectations(t)
		})
	}
}

func TestGetLatestExits_Invalid(t *testing.T) {
	svc := &testmocks.MockLedgerAnalytics{}
	svc.On("LatestExitsDefault").Return(10)
	svc.On("GetLatestExits", mock.Anything, -1, (*string)(nil)).
		Return(nil, utils.NewFieldError("n", "must be >= 0, got %d", -1))
	r := newAnalyticsRouter(svc)

	w, env := do(t, r, http.MethodGet, "/latest-exits?n=-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "n", env.Field)

	w, env = do(t, r, http.MethodGet, "/latest-exits?n=ten")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "n", env.Field)
}

func TestGetTradesAndShadowLogs_DayFilter(t *testing.T) {
	svc := &testmocks.MockLedgerAnalytics{}
	r := models.SingleDay(someDay)
	expected := models.Filter{Symbol: models.SymbolPtr("SOL"), DateRange: &r}
	svc.On("GetTrades", mock.Anything, expected).Return([]models.TradeRecord{{Symbol: models.SymbolPtr("SOL")}}, nil)
	svc.On("GetShadowLogs", mock.Anything, expected).Return([]models.ShadowRecord{}, nil)
	router := newAnalyticsRouter(svc)

	w, env := do(t, router, http.MethodGet, "/trades?symbol=SOL&date=2024-04-30")
	assert.Equal(t, http.StatusOK, w.Code)
	var trades struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &trades))
	assert.Equal(t, 1, trades.Count)

	w, _ = do(t, router, http.MethodGet, "/shadow/logs?symbol=SOL&date=2024-04-30")
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestGetSymbolsAndShadowOverview(t *testing.T) {
	svc := &testmocks.MockLedgerAnalytics{}
	svc.On("Today").Return(today)
	svc.On("ListSymbols", mock.Anything, today).Return([]string{"A", "B"}, nil)
	svc.On("GetShadowOverview", mock.Anything, (*string)(nil), today).Return(models.ShadowOverview{
		TotalLogs:       3,
		UniqueSymbols:   2,
		DirectionCounts: map[string]int{"LONG": 2, "UNKNOWN": 1},
	}, nil)
	router := newAnalyticsRouter(svc)

	w, env := do(t, router, http.MethodGet, "/symbols")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"symbols":["A","B"]`)

	w, env = do(t, router, http.MethodGet, "/shadow/overview")
	assert.Equal(t, http.StatusOK, w.Code)
	var overview models.ShadowOverview
	require.NoError(t, json.Unmarshal(env.Data, &overview))
	assert.Equal(t, 1, overview.DirectionCounts["UNKNOWN"])
}

func TestRefresh(t *testing.T) {
	svc := &testmocks.MockLedgerAnalytics{}
	svc.On("Refresh", mock.Anything).Return(nil).Once()

	w, env := do(t, newAnalyticsRouter(svc), http.MethodPost, "/refresh")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	svc.AssertExpectations(t)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{utils.NewValidationError("bad"), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", utils.NewFieldError("n", "bad")), http.StatusBadRequest},
		{utils.LedgerUnavailable("select", errors.New("x")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
