package repository

import "strings"

// Timeframe is a TradingView chart resolution used to suffix field names
// (e.g. "close|60" for the hourly close).
type Timeframe string

const (
	TF5m      Timeframe = "5"
	TF15m     Timeframe = "15"
	TF1h      Timeframe = "60"
	TF4h      Timeframe = "240"
	TFDaily   Timeframe = "1D"
	TFWeekly  Timeframe = "1W"
	TFMonthly Timeframe = "1M"
)

var timeframeAliases = map[string]Timeframe{
	"5min":    TF5m,
	"5m":      TF5m,
	"5":       TF5m,
	"15min":   TF15m,
	"15m":     TF15m,
	"15":      TF15m,
	"1hr":     TF1h,
	"1h":      TF1h,
	"60":      TF1h,
	"4hr":     TF4h,
	"4h":      TF4h,
	"240":     TF4h,
	"daily":   TFDaily,
	"d":       TFDaily,
	"1d":      TFDaily,
	"weekly":  TFWeekly,
	"w":       TFWeekly,
	"1w":      TFWeekly,
	"monthly": TFMonthly,
	"m":       TFMonthly,
	"1mo":     TFMonthly,
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF5m, TF15m, TF1h, TF4h, TFDaily, TFWeekly, TFMonthly:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TFDaily }

// NormalizeTimeframe converts user-friendly spellings ("1hr", "4h", "daily")
// to the wire resolution, falling back to the default.
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	if tf, ok := timeframeAliases[strings.ToLower(s)]; ok {
		return tf
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// Suffix qualifies a field name with the timeframe ("close" -> "close|60").
func (tf Timeframe) Suffix(field string) string {
	return field + "|" + string(tf)
}
