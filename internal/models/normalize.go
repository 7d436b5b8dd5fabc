package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
)

var truthy = map[string]struct{}{
	"true": {},
	"1":    {},
	"t":    {},
	"yes":  {},
	"y":    {},
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	DateLayout,
}

// ParseFlag is the single truthiness rule for every boolean ledger column.
// A real true is accepted as-is, false and nil are false, and any other value is
// rendered as text, case-folded and matched against the truthy set.
func ParseFlag(v any) bool {
	var text string
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		text = val
	case float64:
		text = strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		text = strconv.FormatFloat(float64(val), 'f', -1, 32)
	case json.Number:
		text = val.String()
	case fmt.Stringer:
		text = val.String()
	default:
		text = fmt.Sprint(val)
	}
	_, ok := truthy[cases.Fold().String(strings.TrimSpace(text))]
	return ok
}

// ParseTimestamp parses the ledger time encodings into UTC. Anything else returns nil.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			u := ts.UTC()
			return &u
		}
	}
	return nil
}

func flagField(row gjson.Result, name string) bool {
	return ParseFlag(row.Get(name).Value())
}

func optionalFlag(row gjson.Result, name string) *bool {
	res := row.Get(name)
	if !res.Exists() || res.Type == gjson.Null {
		return nil
	}
	v := ParseFlag(res.Value())
	return &v
}

func timestampField(row gjson.Result, name string) *time.Time {
	res := row.Get(name)
	if res.Type != gjson.String {
		return nil
	}
	return ParseTimestamp(res.Str)
}

func stringField(row gjson.Result, name string) *string {
	res := row.Get(name)
	switch res.Type {
	case gjson.Null:
		return nil
	case gjson.String:
		s := res.Str
		return &s
	default:
		s := res.String()
		return &s
	}
}

func decimalField(row gjson.Result, name string) decimal.NullDecimal {
	res := row.Get(name)
	var raw string
	switch res.Type {
	case gjson.Number:
		raw = res.Raw
	case gjson.String:
		raw = strings.TrimSpace(res.Str)
	default:
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func floatsField(row gjson.Result, name string) []float64 {
	res := row.Get(name)
	if res.Type == gjson.String {
		// jsonb text columns sometimes carry the encoded array
		res = gjson.Parse(res.Str)
	}
	if !res.IsArray() {
		return nil
	}
	items := res.Array()
	out := make([]float64, 0, len(items))
	for _, item := range items {
		if item.Type != gjson.Number {
			continue
		}
		out = append(out, item.Float())
	}
	return out
}

// DecodeTrade normalizes one raw ledger row. Malformed fields are nulled; the row is kept.
func DecodeTrade(raw []byte) TradeRecord {
	row := gjson.ParseBytes(raw)
	return TradeRecord{
		ID:             stringField(row, "id"),
		Timestamp:      timestampField(row, "ts"),
		Symbol:         stringField(row, "symbol"),
		IsExit:         flagField(row, "is_exit"),
		IsEntry:        flagField(row, "is_entry"),
		RealizedPnl:    decimalField(row, "realized_pnl"),
		Pnl:            decimalField(row, "pnl"),
		Win:            optionalFlag(row, "win"),
		Side:           stringField(row, "side"),
		Qty:            decimalField(row, "qty"),
		FillPrice:      decimalField(row, "fill_price"),
		PnlPct:         decimalField(row, "pnl_pct"),
		RealizedPnlPct: decimalField(row, "realized_pnl_pct"),
		ExitReason:     stringField(row, "exit_reason"),
		Confidence:     decimalField(row, "confidence"),
		Reasoning:      stringField(row, "reasoning"),
		OrderID:        stringField(row, "order_id"),
		EntryTradeID:   stringField(row, "entry_trade_id"),
		ModelVersion:   stringField(row, "model_version"),
	}
}

// NormalizeTrades decodes a fetch result and selects its P&L column once:
// realized_pnl when any row carries the column, pnl otherwise.
func NormalizeTrades(rows []json.RawMessage) RecordSet {
	set := RecordSet{
		Trades:    make([]TradeRecord, 0, len(rows)),
		PnlColumn: PnlColumnRaw,
	}
	for _, raw := range rows {
		if set.PnlColumn == PnlColumnRaw && gjson.GetBytes(raw, string(PnlColumnRealized)).Exists() {
			set.PnlColumn = PnlColumnRealized
		}
		set.Trades = append(set.Trades, DecodeTrade(raw))
	}
	return set
}

// DecodeShadow normalizes one raw shadow log row.
func DecodeShadow(raw []byte) ShadowRecord {
	row := gjson.ParseBytes(raw)
	return ShadowRecord{
		ID:             stringField(row, "id"),
		Timestamp:      timestampField(row, "ts"),
		Symbol:         stringField(row, "symbol"),
		Direction:      stringField(row, "ml_direction"),
		Probabilities:  floatsField(row, "ml_probs"),
		WinProbability: decimalField(row, "ml_win_prob"),
		BotAction:      stringField(row, "bot_action"),
		RealTradeID:    stringField(row, "real_trade_id"),
	}
}

// NormalizeShadow decodes a shadow log fetch result.
func NormalizeShadow(rows []json.RawMessage) []ShadowRecord {
	out := make([]ShadowRecord, 0, len(rows))
	for _, raw := range rows {
		out = append(out, DecodeShadow(raw))
	}
	return out
}
