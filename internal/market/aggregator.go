package market

import (
	"sync"
	"time"

	"dexarb/internal/indicator"
)

// Snapshot is one consistent view of both feeds. Copies handed out by the
// Aggregator are value types; consumers must not share mutable state through
// them.
type Snapshot struct {
	ReferencePrice float64           `json:"referencePrice"`
	Indicators     indicator.Reading `json:"indicators"`

	DexPrice     float64 `json:"dexPrice"`
	DexLiquidity float64 `json:"dexLiquidity"`

	// GapPct = (reference - dex) / dex * 100. Zero when either price is
	// missing, so a half-initialized snapshot can never fake an opportunity.
	GapPct float64 `json:"gapPct"`

	ReferenceAt time.Time `json:"referenceAt"`
	DexAt       time.Time `json:"dexAt"`
	ObservedAt  time.Time `json:"observedAt"`
}

// HasBothSides reports whether both feeds have delivered at least one price.
func (s Snapshot) HasBothSides() bool {
	return s.ReferencePrice > 0 && s.DexPrice > 0
}

// Aggregator merges asynchronously arriving reference-feed and DEX-feed
// updates into a single snapshot. Updates from different feeds may race; each
// update is applied atomically and the gap is always recomputed from the
// latest stored pair. Per-side timestamps reject out-of-order arrivals.
type Aggregator struct {
	refStale time.Duration
	dexStale time.Duration

	ind *indicator.State

	mu   sync.RWMutex
	snap Snapshot

	subMu sync.Mutex
	subs  []chan Snapshot
}

func NewAggregator(ind *indicator.State, refStale, dexStale time.Duration) *Aggregator {
	return &Aggregator{
		refStale: refStale,
		dexStale: dexStale,
		ind:      ind,
	}
}

// UpdateReference applies a reference-feed update carrying price and,
// optionally, fresh indicator values. Updates stamped older than the stored
// reference-side timestamp are discarded.
func (a *Aggregator) UpdateReference(price float64, rsi, ema *float64, at time.Time) bool {
	if price <= 0 {
		return false
	}
	if rsi != nil && ema != nil {
		// Invalid indicator payloads keep the previous reading; the price
		// update still lands.
		_ = a.ind.Update(*rsi, *ema)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if at.Before(a.snap.ReferenceAt) {
		return false
	}
	a.snap.ReferencePrice = price
	a.snap.ReferenceAt = at
	a.snap.Indicators = a.ind.Reading()
	a.recompute(at)
	snap := a.snap
	a.publish(snap)
	return true
}

// UpdateDex applies a DEX-feed update. Liquidity is the pool's quote-side
// reserve; zero liquidity marks the price as unusable, not as a real zero.
func (a *Aggregator) UpdateDex(price, liquidity float64, at time.Time) bool {
	if price <= 0 {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if at.Before(a.snap.DexAt) {
		return false
	}
	a.snap.DexPrice = price
	a.snap.DexLiquidity = liquidity
	a.snap.DexAt = at
	a.recompute(at)
	snap := a.snap
	a.publish(snap)
	return true
}

// recompute must be called with the write lock held.
func (a *Aggregator) recompute(at time.Time) {
	a.snap.ObservedAt = at
	if a.snap.ReferencePrice <= 0 || a.snap.DexPrice <= 0 {
		a.snap.GapPct = 0
		return
	}
	a.snap.GapPct = (a.snap.ReferencePrice - a.snap.DexPrice) / a.snap.DexPrice * 100
}

// Snapshot returns an immutable copy of the current merged state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}

// IsStale reports whether either side's data is missing or older than its
// staleness window. Stale snapshots must never produce signals.
func (a *Aggregator) IsStale(now time.Time) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.snap.ReferenceAt.IsZero() || a.snap.DexAt.IsZero() {
		return true
	}
	return now.Sub(a.snap.ReferenceAt) > a.refStale || now.Sub(a.snap.DexAt) > a.dexStale
}

// Subscribe registers a new snapshot-update subscriber. Deliveries are
// non-blocking: a subscriber that falls behind misses intermediate snapshots
// and catches up on the next update, which is fine because only the latest
// snapshot ever matters.
func (a *Aggregator) Subscribe(buffer int) <-chan Snapshot {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)
	a.subMu.Lock()
	a.subs = append(a.subs, ch)
	a.subMu.Unlock()
	return ch
}

func (a *Aggregator) publish(snap Snapshot) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
