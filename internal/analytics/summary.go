// Package analytics holds the pure computations over normalized ledger records:
// daily summaries, per-symbol P&L, equity curves and latest-exit selection.
// Nothing in this package blocks or touches shared state.
package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/irfndi/celebrum-ledger/internal/models"
)

// Exits returns the records flagged as exits, preserving ledger order.
func Exits(trades []models.TradeRecord) []models.TradeRecord {
	out := make([]models.TradeRecord, 0, len(trades))
	for _, t := range trades {
		if t.IsExit {
			out = append(out, t)
		}
	}
	return out
}

// sumPnl adds up the P&L column of the given records, treating nulls as zero.
func sumPnl(trades []models.TradeRecord, col models.PnlColumn) decimal.Decimal {
	total := decimal.Zero
	for _, t := range trades {
		if v := t.PnlValue(col); v.Valid {
			total = total.Add(v.Decimal)
		}
	}
	return total
}

// Summarize computes exit count, realized P&L, wins and win rate for a record set.
// An empty exit set yields an all-zero summary.
func Summarize(set models.RecordSet) models.DailySummary {
	exits := Exits(set.Trades)

	wins := 0
	for _, t := range exits {
		if t.IsWin() {
			wins++
		}
	}

	summary := models.DailySummary{
		TotalExits: len(exits),
		TotalPnl:   sumPnl(exits, set.PnlColumn),
		Wins:       wins,
		Losses:     len(exits) - wins,
	}
	if summary.TotalExits > 0 {
		summary.WinRate = float64(wins) / float64(summary.TotalExits) * 100
	}
	return summary
}

// PnlBySymbol groups the exit set by symbol and sums the P&L column per group.
// Exits without a symbol are skipped. No exits gives an empty, non-nil map.
func PnlBySymbol(set models.RecordSet) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, t := range Exits(set.Trades) {
		if t.Symbol == nil {
			continue
		}
		total, ok := out[*t.Symbol]
		if !ok {
			total = decimal.Zero
		}
		if v := t.PnlValue(set.PnlColumn); v.Valid {
			total = total.Add(v.Decimal)
		}
		out[*t.Symbol] = total
	}
	return out
}

// Symbols returns the sorted distinct symbols present in the records.
func Symbols(trades []models.TradeRecord) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, t := range trades {
		if t.Symbol == nil {
			continue
		}
		if _, ok := seen[*t.Symbol]; ok {
			continue
		}
		seen[*t.Symbol] = struct{}{}
		out = append(out, *t.Symbol)
	}
	sort.Strings(out)
	return out
}
