package models

import "time"

// Trade outcomes for the append-only audit log.
const (
	OutcomeFilled   = "FILLED"
	OutcomeRejected = "REJECTED"
	OutcomeFailed   = "FAILED"
)

// TradeRecord is one resolved trade attempt. Records are append-only; a
// failed or rejected attempt is recorded, never rewritten.
type TradeRecord struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	TradingDay     string    `json:"tradingDay"`
	Side           string    `json:"side"` // "buy" or "sell"
	AmountIn       float64   `json:"amountIn"`
	AmountOut      float64   `json:"amountOut"`
	ReferencePrice float64   `json:"referencePrice"`
	DexPrice       float64   `json:"dexPrice"`
	GapPct         float64   `json:"gapPct"`
	Outcome        string    `json:"outcome"`
	Reason         string    `json:"reason"`
	Error          *string   `json:"error,omitempty"`
	TxHash         *string   `json:"txHash,omitempty"`
	IsPaperTrade   bool      `json:"isPaperTrade"`
	CreatedAt      time.Time `json:"createdAt"`
}

type TradeStats struct {
	TotalTrades int64      `json:"totalTrades"`
	FilledCount int64      `json:"filledCount"`
	FailedCount int64      `json:"failedCount"`
	BuyCount    int64      `json:"buyCount"`
	SellCount   int64      `json:"sellCount"`
	TotalVolume *float64   `json:"totalVolume"`
	AvgGapPct   *float64   `json:"avgGapPct"`
	FirstTrade  *time.Time `json:"firstTrade"`
	LastTrade   *time.Time `json:"lastTrade"`
}
