package models

import "time"

// GapPoint is one recorded observation of the reference/DEX price gap.
type GapPoint struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	ReferencePrice float64   `json:"referencePrice"`
	DexPrice       float64   `json:"dexPrice"`
	GapPct         float64   `json:"gapPct"`
	TradingDay     string    `json:"tradingDay"`
	CreatedAt      time.Time `json:"createdAt"`
}
