package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PnlColumn names the ledger column a record set aggregates on.
type PnlColumn string

const (
	PnlColumnRealized PnlColumn = "realized_pnl"
	PnlColumnRaw      PnlColumn = "pnl"
)

// TradeRecord is one normalized row of the trades ledger.
// Nil pointers and invalid NullDecimals mean the column was missing or malformed.
type TradeRecord struct {
	ID          *string             `json:"id,omitempty"`
	Timestamp   *time.Time          `json:"ts"`
	Symbol      *string             `json:"symbol"`
	IsExit      bool                `json:"is_exit"`
	IsEntry     bool                `json:"is_entry"`
	RealizedPnl decimal.NullDecimal `json:"realized_pnl"`
	Pnl         decimal.NullDecimal `json:"pnl"`
	Win         *bool               `json:"win"`

	// Pass-through attributes, never read by the analytics engine.
	Side           *string             `json:"side,omitempty"`
	Qty            decimal.NullDecimal `json:"qty"`
	FillPrice      decimal.NullDecimal `json:"fill_price"`
	PnlPct         decimal.NullDecimal `json:"pnl_pct"`
	RealizedPnlPct decimal.NullDecimal `json:"realized_pnl_pct"`
	ExitReason     *string             `json:"exit_reason,omitempty"`
	Confidence     decimal.NullDecimal `json:"confidence"`
	Reasoning      *string             `json:"reasoning,omitempty"`
	OrderID        *string             `json:"order_id,omitempty"`
	EntryTradeID   *string             `json:"entry_trade_id,omitempty"`
	ModelVersion   *string             `json:"model_version,omitempty"`
}

// PnlValue returns the value of the given P&L column for this record.
func (t TradeRecord) PnlValue(col PnlColumn) decimal.NullDecimal {
	if col == PnlColumnRealized {
		return t.RealizedPnl
	}
	return t.Pnl
}

// IsWin reports whether the record is flagged as a win. A missing flag is a non-win.
func (t TradeRecord) IsWin() bool {
	return t.Win != nil && *t.Win
}

// RecordSet is the normalized result of a single trades fetch.
// PnlColumn is chosen once for the whole set.
type RecordSet struct {
	Trades    []TradeRecord `json:"trades"`
	PnlColumn PnlColumn     `json:"pnl_column"`
}

// Len returns the number of records in the set.
func (s RecordSet) Len() int {
	return len(s.Trades)
}

// ShadowRecord is one normalized row of the shadow prediction log.
// RealTradeID is a cross-reference only; the engine never joins on it.
type ShadowRecord struct {
	ID             *string             `json:"id,omitempty"`
	Timestamp      *time.Time          `json:"ts"`
	Symbol         *string             `json:"symbol"`
	Direction      *string             `json:"ml_direction"`
	Probabilities  []float64           `json:"ml_probs,omitempty"`
	WinProbability decimal.NullDecimal `json:"ml_win_prob"`
	BotAction      *string             `json:"bot_action,omitempty"`
	RealTradeID    *string             `json:"real_trade_id,omitempty"`
}

// EquityPoint is one sample of a reconstructed equity curve.
type EquityPoint struct {
	Timestamp             time.Time       `json:"ts"`
	CumulativeRealizedPnl decimal.Decimal `json:"cumulative_realized_pnl"`
	Equity                decimal.Decimal `json:"equity"`
}

// DailySummary holds the headline metrics over the exit set of a query.
type DailySummary struct {
	TotalExits int             `json:"total_exits"`
	TotalPnl   decimal.Decimal `json:"total_pnl"`
	Wins       int             `json:"wins"`
	Losses     int             `json:"losses"`
	WinRate    float64         `json:"win_rate"`
}

// ShadowOverview summarizes the shadow prediction log for a query.
type ShadowOverview struct {
	TotalLogs       int            `json:"total_logs"`
	UniqueSymbols   int            `json:"unique_symbols"`
	DirectionCounts map[string]int `json:"direction_counts"`
}
