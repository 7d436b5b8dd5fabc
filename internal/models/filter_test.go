package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRange_Bounds(t *testing.T) {
	day := time.Date(2024, 5, 6, 15, 4, 5, 0, time.UTC)
	r := SingleDay(day)

	from, to := r.Bounds()
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 5, 6, 23, 59, 59, 999999999, time.UTC), to)

	assert.True(t, r.Contains(from))
	assert.True(t, r.Contains(to))
	assert.False(t, r.Contains(to.Add(time.Nanosecond)))
	assert.False(t, r.Contains(from.Add(-time.Nanosecond)))
}

func TestDateRange_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	r := NewDateRange(time.Date(2024, 5, 7, 3, 0, 0, 0, loc), time.Date(2024, 5, 8, 3, 0, 0, 0, loc))

	assert.Equal(t, "2024-05-06..2024-05-07", r.String())
}

func TestFilter_Key(t *testing.T) {
	sym := "BTCUSDT"
	day := SingleDay(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "*|*", Filter{}.Key())
	assert.Equal(t, "BTCUSDT|*", Filter{Symbol: &sym}.Key())
	assert.Equal(t, "*|2024-05-06..2024-05-06", Filter{DateRange: &day}.Key())
	assert.Equal(t, "BTCUSDT|2024-05-06..2024-05-06", Filter{Symbol: &sym, DateRange: &day}.Key())
	assert.True(t, Filter{}.IsUnbounded())
}

func TestParseDay(t *testing.T) {
	day, err := ParseDay("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), day)

	_, err = ParseDay("02/29/2024")
	assert.Error(t, err)
}

func TestSymbolPtr(t *testing.T) {
	assert.Nil(t, SymbolPtr(""))
	assert.Nil(t, SymbolPtr("   "))
	require.NotNil(t, SymbolPtr("ETHUSDT"))
	assert.Equal(t, "ETHUSDT", *SymbolPtr(" ETHUSDT "))
}
