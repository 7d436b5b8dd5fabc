package analytics

import (
	"sort"
	"strings"

	"github.com/irfndi/celebrum-ledger/internal/models"
)

// LatestExits returns up to n closed trades with a P&L value, newest first.
// Equal timestamps come out in reverse ledger order. n <= 0 returns an empty slice.
func LatestExits(set models.RecordSet, n int) []models.TradeRecord {
	if n <= 0 {
		return []models.TradeRecord{}
	}

	qualifying := make([]models.TradeRecord, 0)
	for _, t := range set.Trades {
		if !t.IsExit || t.Timestamp == nil || !t.PnlValue(set.PnlColumn).Valid {
			continue
		}
		qualifying = append(qualifying, t)
	}

	// reversing first lets the stable sort keep later ledger rows ahead on ties
	for i, j := 0, len(qualifying)-1; i < j; i, j = i+1, j-1 {
		qualifying[i], qualifying[j] = qualifying[j], qualifying[i]
	}
	sort.SliceStable(qualifying, func(i, j int) bool {
		return qualifying[i].Timestamp.After(*qualifying[j].Timestamp)
	})

	if len(qualifying) > n {
		qualifying = qualifying[:n]
	}
	return qualifying
}

// NewestFirst returns a copy of the records sorted by descending timestamp.
// Records without a timestamp go last in their original order.
func NewestFirst(trades []models.TradeRecord) []models.TradeRecord {
	out := make([]models.TradeRecord, len(trades))
	copy(out, trades)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Timestamp, out[j].Timestamp
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.After(*b)
	})
	return out
}

// ShadowOverview counts shadow logs, distinct symbols and predicted directions.
// A missing direction is counted as UNKNOWN.
func ShadowOverview(records []models.ShadowRecord) models.ShadowOverview {
	symbols := make(map[string]struct{})
	directions := make(map[string]int)
	for _, r := range records {
		if r.Symbol != nil {
			symbols[*r.Symbol] = struct{}{}
		}
		dir := "UNKNOWN"
		if r.Direction != nil && strings.TrimSpace(*r.Direction) != "" {
			dir = *r.Direction
		}
		directions[dir]++
	}
	return models.ShadowOverview{
		TotalLogs:       len(records),
		UniqueSymbols:   len(symbols),
		DirectionCounts: directions,
	}
}

// ShadowNewestFirst returns a copy of the shadow records sorted by descending timestamp.
func ShadowNewestFirst(records []models.ShadowRecord) []models.ShadowRecord {
	out := make([]models.ShadowRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Timestamp, out[j].Timestamp
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.After(*b)
	})
	return out
}
