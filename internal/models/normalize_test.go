package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlag_Truthy(t *testing.T) {
	for _, v := range []any{true, "true", "TRUE", "1", 1, "yes", "Y", "t", float64(1), " True "} {
		assert.True(t, ParseFlag(v), "expected %#v to be truthy", v)
	}
}

func TestParseFlag_Falsy(t *testing.T) {
	for _, v := range []any{false, nil, "", "0", "no", 0, "random", float64(0), 2.5, map[string]any{}} {
		assert.False(t, ParseFlag(v), "expected %#v to be falsy", v)
	}
}

func TestDecodeTrade_FlagEncodings(t *testing.T) {
	rows := []string{
		`{"is_exit": true}`,
		`{"is_exit": "TRUE"}`,
		`{"is_exit": 1}`,
		`{"is_exit": "y"}`,
	}
	for _, raw := range rows {
		assert.True(t, DecodeTrade([]byte(raw)).IsExit, raw)
	}

	for _, raw := range []string{`{}`, `{"is_exit": null}`, `{"is_exit": "0"}`, `{"is_exit": "random"}`, `{"is_exit": 0}`} {
		assert.False(t, DecodeTrade([]byte(raw)).IsExit, raw)
	}
}

func TestDecodeTrade_Fields(t *testing.T) {
	raw := `{
		"id": 42,
		"ts": "2024-03-01T09:05:00+02:00",
		"symbol": "BTCUSDT",
		"is_exit": "true",
		"is_entry": false,
		"realized_pnl": "12.5",
		"pnl": 11,
		"win": "yes",
		"side": "SELL",
		"qty": 0.25,
		"exit_reason": "tp",
		"model_version": "v3"
	}`

	rec := DecodeTrade([]byte(raw))

	require.NotNil(t, rec.Timestamp)
	assert.True(t, rec.Timestamp.Equal(time.Date(2024, 3, 1, 7, 5, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, rec.Timestamp.Location())
	require.NotNil(t, rec.ID)
	assert.Equal(t, "42", *rec.ID)
	require.NotNil(t, rec.Symbol)
	assert.Equal(t, "BTCUSDT", *rec.Symbol)
	assert.True(t, rec.IsExit)
	assert.False(t, rec.IsEntry)
	assert.True(t, rec.RealizedPnl.Valid)
	assert.True(t, rec.RealizedPnl.Decimal.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, rec.Pnl.Decimal.Equal(decimal.NewFromInt(11)))
	assert.True(t, rec.IsWin())
	assert.Equal(t, "SELL", *rec.Side)
	assert.True(t, rec.Qty.Decimal.Equal(decimal.RequireFromString("0.25")))
	assert.Equal(t, "tp", *rec.ExitReason)
	assert.Equal(t, "v3", *rec.ModelVersion)
	assert.Nil(t, rec.Reasoning)
}

func TestDecodeTrade_MalformedFieldsAreNulled(t *testing.T) {
	rec := DecodeTrade([]byte(`{"ts": "not-a-time", "realized_pnl": "abc", "symbol": null, "is_exit": true}`))

	assert.Nil(t, rec.Timestamp)
	assert.False(t, rec.RealizedPnl.Valid)
	assert.Nil(t, rec.Symbol)
	assert.Nil(t, rec.Win)
	assert.False(t, rec.IsWin())
	assert.True(t, rec.IsExit)
}

func TestParseTimestamp_Layouts(t *testing.T) {
	want := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	for _, s := range []string{
		"2024-01-02T09:30:00Z",
		"2024-01-02T09:30:00.000000+00:00",
		"2024-01-02T09:30:00",
		"2024-01-02 09:30:00",
		"2024-01-02 09:30:00+00:00",
		"2024-01-02 10:30:00+01",
	} {
		ts := ParseTimestamp(s)
		require.NotNil(t, ts, s)
		assert.True(t, ts.Equal(want), s)
	}

	day := ParseTimestamp("2024-01-02")
	require.NotNil(t, day)
	assert.True(t, day.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))

	assert.Nil(t, ParseTimestamp(""))
	assert.Nil(t, ParseTimestamp("yesterday"))
}

func TestNormalizeTrades_PnlColumnSelection(t *testing.T) {
	t.Run("falls back to pnl when realized_pnl is absent", func(t *testing.T) {
		set := NormalizeTrades([]json.RawMessage{
			json.RawMessage(`{"is_exit": true, "pnl": 10}`),
			json.RawMessage(`{"is_exit": true, "pnl": -3}`),
		})
		assert.Equal(t, PnlColumnRaw, set.PnlColumn)
		assert.Equal(t, 2, set.Len())
	})

	t.Run("realized_pnl wins for the whole set once any row carries it", func(t *testing.T) {
		set := NormalizeTrades([]json.RawMessage{
			json.RawMessage(`{"is_exit": true, "pnl": 10}`),
			json.RawMessage(`{"is_exit": true, "realized_pnl": null, "pnl": 5}`),
		})
		assert.Equal(t, PnlColumnRealized, set.PnlColumn)
		for _, tr := range set.Trades {
			assert.False(t, tr.PnlValue(set.PnlColumn).Valid)
		}
	})

	t.Run("empty set", func(t *testing.T) {
		set := NormalizeTrades(nil)
		assert.Equal(t, 0, set.Len())
		assert.NotNil(t, set.Trades)
	})
}

func TestDecodeShadow(t *testing.T) {
	rec := DecodeShadow([]byte(`{
		"ts": "2024-01-02T10:00:00Z",
		"symbol": "ETHUSDT",
		"ml_direction": "LONG",
		"ml_probs": [0.1, 0.2, 0.7],
		"ml_win_prob": 0.64,
		"bot_action": "BUY",
		"real_trade_id": "abc-1"
	}`))

	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, "ETHUSDT", *rec.Symbol)
	assert.Equal(t, "LONG", *rec.Direction)
	assert.Equal(t, []float64{0.1, 0.2, 0.7}, rec.Probabilities)
	assert.True(t, rec.WinProbability.Decimal.Equal(decimal.RequireFromString("0.64")))
	assert.Equal(t, "BUY", *rec.BotAction)
	assert.Equal(t, "abc-1", *rec.RealTradeID)

	encoded := DecodeShadow([]byte(`{"ml_probs": "[0.5, 0.5]"}`))
	assert.Equal(t, []float64{0.5, 0.5}, encoded.Probabilities)
	assert.Nil(t, encoded.Direction)
}
