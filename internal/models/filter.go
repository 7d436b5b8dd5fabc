package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used in filters and cache keys.
const DateLayout = "2006-01-02"

// DateRange is an inclusive range of UTC calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange truncates both bounds to their UTC day.
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: StartOfDay(start), End: StartOfDay(end)}
}

// SingleDay returns the degenerate range covering one day.
func SingleDay(day time.Time) DateRange {
	return NewDateRange(day, day)
}

// Bounds expands the range to [start 00:00:00, end 23:59:59.999999999] in UTC.
func (r DateRange) Bounds() (time.Time, time.Time) {
	return StartOfDay(r.Start), EndOfDay(r.End)
}

// Contains reports whether ts falls inside the expanded bounds.
func (r DateRange) Contains(ts time.Time) bool {
	from, to := r.Bounds()
	return !ts.Before(from) && !ts.After(to)
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// Filter scopes a ledger query. A nil Symbol matches every symbol and a nil
// DateRange matches the whole ledger.
type Filter struct {
	Symbol    *string
	DateRange *DateRange
}

// Key identifies the filter in the result cache. Unfiltered queries get the "*|*" key.
func (f Filter) Key() string {
	var b strings.Builder
	if f.Symbol != nil {
		b.WriteString(*f.Symbol)
	} else {
		b.WriteString("*")
	}
	b.WriteString("|")
	if f.DateRange != nil {
		b.WriteString(f.DateRange.String())
	} else {
		b.WriteString("*")
	}
	return b.String()
}

// IsUnbounded reports whether the filter has no date range.
func (f Filter) IsUnbounded() bool {
	return f.DateRange == nil
}

func (f Filter) String() string {
	return fmt.Sprintf("Filter{%s}", f.Key())
}

// StartOfDay returns midnight UTC of the day containing t.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last representable instant of the UTC day containing t.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Nanosecond)
}

// ParseDay parses a YYYY-MM-DD calendar date as a UTC day.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

// SymbolPtr returns nil for an empty symbol so callers can pass query strings directly.
func SymbolPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
