package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/irfndi/celebrum-ledger/internal/models"
)

// BuildEquityCurve reconstructs cumulative equity from exit records.
//
// Records without a timestamp are dropped, the rest are stably sorted by time and
// accumulated with nulls counted as zero. The curve always starts with an anchor
// point carrying zero cumulative P&L: at anchor when given, otherwise at the
// earliest exit. With no exits and no anchor the single point sits at the zero time.
func BuildEquityCurve(exits []models.TradeRecord, col models.PnlColumn, base decimal.Decimal, anchor *time.Time) []models.EquityPoint {
	timed := make([]models.TradeRecord, 0, len(exits))
	for _, t := range exits {
		if t.Timestamp != nil {
			timed = append(timed, t)
		}
	}
	sort.SliceStable(timed, func(i, j int) bool {
		return timed[i].Timestamp.Before(*timed[j].Timestamp)
	})

	var origin time.Time
	switch {
	case anchor != nil:
		origin = anchor.UTC()
	case len(timed) > 0:
		origin = *timed[0].Timestamp
	}

	curve := make([]models.EquityPoint, 0, len(timed)+1)
	curve = append(curve, models.EquityPoint{
		Timestamp:             origin,
		CumulativeRealizedPnl: decimal.Zero,
		Equity:                base,
	})

	cumulative := decimal.Zero
	for _, t := range timed {
		if v := t.PnlValue(col); v.Valid {
			cumulative = cumulative.Add(v.Decimal)
		}
		curve = append(curve, models.EquityPoint{
			Timestamp:             *t.Timestamp,
			CumulativeRealizedPnl: cumulative,
			Equity:                base.Add(cumulative),
		})
	}
	return curve
}

// FinalEquity returns the equity of the last point, or base for an empty curve.
func FinalEquity(curve []models.EquityPoint, base decimal.Decimal) decimal.Decimal {
	if len(curve) == 0 {
		return base
	}
	return curve[len(curve)-1].Equity
}

// ClipToRange keeps the records whose timestamp lies within the optional bounds.
// Nil bounds are open. Records without a timestamp are dropped.
func ClipToRange(trades []models.TradeRecord, from, to *time.Time) []models.TradeRecord {
	out := make([]models.TradeRecord, 0, len(trades))
	for _, t := range trades {
		if t.Timestamp == nil {
			continue
		}
		if from != nil && t.Timestamp.Before(*from) {
			continue
		}
		if to != nil && t.Timestamp.After(*to) {
			continue
		}
		out = append(out, t)
	}
	return out
}
