package signal

import (
	"sync"
	"time"

	"dexarb/internal/indicator"
	"dexarb/internal/market"
	"dexarb/internal/position"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// TradeIntent is an ephemeral trade request. It is created here or by the
// stop-loss monitor, consumed exactly once by the execution coordinator, and
// discarded after resolution.
type TradeIntent struct {
	Side           Side              `json:"side"`
	ReferencePrice float64           `json:"referencePrice"`
	DexPrice       float64           `json:"dexPrice"`
	GapPct         float64           `json:"gapPct"`
	Indicators     indicator.Reading `json:"indicators"`
	Reason         string            `json:"reason"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// Thresholds are the detector's configured decision parameters.
type Thresholds struct {
	RSIOversold   float64
	RSIOverbought float64
	MinProfitPct  float64 // gap magnitude required, in percent
}

// Detector evaluates buy/sell conditions against a market snapshot and the
// current position side. All three sub-conditions (RSI, EMA, gap) must hold
// together; any single noisy indicator alone never fires a trade.
type Detector struct {
	thr Thresholds

	mu   sync.RWMutex
	last *TradeIntent
}

func NewDetector(thr Thresholds) *Detector {
	return &Detector{thr: thr}
}

// Evaluate returns at most one TradeIntent per call, or nil. Deterministic:
// the same snapshot and side always yield the same result.
//
// Buy (flat only): RSI oversold, reference price above EMA, and the reference
// price leads the DEX price by more than the minimum profit gap.
// Sell (long only): RSI overbought, reference price below EMA, and the DEX
// price leads the reference price by more than the minimum profit gap.
func (d *Detector) Evaluate(snap market.Snapshot, side position.Side) *TradeIntent {
	if !snap.HasBothSides() || snap.DexLiquidity <= 0 {
		return nil
	}
	ind := snap.Indicators
	if ind.RSI == nil || ind.EMA == nil {
		return nil
	}

	var intent *TradeIntent

	switch side {
	case position.Flat:
		if ind.OversoldAt(d.thr.RSIOversold) &&
			snap.ReferencePrice > *ind.EMA &&
			snap.GapPct > d.thr.MinProfitPct {
			intent = &TradeIntent{
				Side:   Buy,
				Reason: "rsi oversold, price above ema, reference leads dex",
			}
		}
	case position.Long:
		if ind.OverboughtAt(d.thr.RSIOverbought) &&
			snap.ReferencePrice < *ind.EMA &&
			-snap.GapPct > d.thr.MinProfitPct {
			intent = &TradeIntent{
				Side:   Sell,
				Reason: "rsi overbought, price below ema, dex leads reference",
			}
		}
	}

	if intent == nil {
		return nil
	}
	intent.ReferencePrice = snap.ReferencePrice
	intent.DexPrice = snap.DexPrice
	intent.GapPct = snap.GapPct
	intent.Indicators = ind
	intent.CreatedAt = time.Now()

	d.mu.Lock()
	d.last = intent
	d.mu.Unlock()
	return intent
}

// Last returns a copy of the most recent intent this detector emitted, or nil.
func (d *Detector) Last() *TradeIntent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.last == nil {
		return nil
	}
	cp := *d.last
	return &cp
}

// StopLossIntent builds the forced-exit SELL intent used by the stop-loss
// monitor. Kept here so both intent producers share one shape.
func StopLossIntent(snap market.Snapshot) *TradeIntent {
	return &TradeIntent{
		Side:           Sell,
		ReferencePrice: snap.ReferencePrice,
		DexPrice:       snap.DexPrice,
		GapPct:         snap.GapPct,
		Indicators:     snap.Indicators,
		Reason:         "trailing stop",
		CreatedAt:      time.Now(),
	}
}
