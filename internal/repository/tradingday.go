package repository

import "time"

// TradingDay returns the trading day (YYYY-MM-DD) for a timestamp. The pair
// trades around the clock, so days roll over at 00:00 UTC.
func TradingDay(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

// TradingDayNow returns the trading day for the current moment.
func TradingDayNow() string {
	return TradingDay(time.Now())
}
