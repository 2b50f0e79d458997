package indicator

import (
	"errors"
	"math"
	"sync"
)

// ErrInvalidIndicator is returned when an update carries a value that is not
// a finite positive number.
var ErrInvalidIndicator = errors.New("indicator value must be a finite positive number")

// Reading is a point-in-time copy of the indicator state. Unset values are nil.
type Reading struct {
	RSI     *float64 `json:"rsi"`
	PrevRSI *float64 `json:"prevRsi"`
	EMA     *float64 `json:"ema"`
	PrevEMA *float64 `json:"prevEma"`
}

// State holds the latest and immediately-previous RSI and EMA values and
// derives the threshold predicates used by signal detection. The "previous"
// slot is exactly one update old; it is never back-filled from deeper history.
type State struct {
	oversold   float64
	overbought float64

	mu      sync.RWMutex
	rsi     *float64
	prevRSI *float64
	ema     *float64
	prevEMA *float64
}

func NewState(oversoldThreshold, overboughtThreshold float64) *State {
	return &State{
		oversold:   oversoldThreshold,
		overbought: overboughtThreshold,
	}
}

// Update stores new RSI and EMA values, shifting the current values into the
// previous slots.
func (s *State) Update(rsi, ema float64) error {
	if !validValue(rsi) || !validValue(ema) {
		return ErrInvalidIndicator
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prevRSI = s.rsi
	s.prevEMA = s.ema
	r, e := rsi, ema
	s.rsi = &r
	s.ema = &e
	return nil
}

// Reading returns a copy of the current state.
func (s *State) Reading() Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Reading{
		RSI:     copyPtr(s.rsi),
		PrevRSI: copyPtr(s.prevRSI),
		EMA:     copyPtr(s.ema),
		PrevEMA: copyPtr(s.prevEMA),
	}
}

// IsOversold reports whether the current RSI is at or below the oversold
// threshold. False while RSI is unset.
func (s *State) IsOversold() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rsi != nil && *s.rsi <= s.oversold
}

// IsOverbought reports whether the current RSI is at or above the overbought
// threshold. False while RSI is unset.
func (s *State) IsOverbought() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rsi != nil && *s.rsi >= s.overbought
}

// IsRisingFromOversold reports the recovery edge: the previous RSI was below
// the oversold threshold and the current RSI is strictly above the previous.
func (s *State) IsRisingFromOversold() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rsi != nil && s.prevRSI != nil &&
		*s.prevRSI < s.oversold && *s.rsi > *s.prevRSI
}

// IsFallingFromOverbought is the symmetric rollover edge on the high side.
func (s *State) IsFallingFromOverbought() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rsi != nil && s.prevRSI != nil &&
		*s.prevRSI > s.overbought && *s.rsi < *s.prevRSI
}

func validValue(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func copyPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Predicates on a Reading mirror the State predicates so that consumers of an
// immutable snapshot can evaluate thresholds without touching live state.

func (r Reading) OversoldAt(threshold float64) bool {
	return r.RSI != nil && *r.RSI <= threshold
}

func (r Reading) OverboughtAt(threshold float64) bool {
	return r.RSI != nil && *r.RSI >= threshold
}

func (r Reading) RisingFromOversold(threshold float64) bool {
	return r.RSI != nil && r.PrevRSI != nil && *r.PrevRSI < threshold && *r.RSI > *r.PrevRSI
}

func (r Reading) FallingFromOverbought(threshold float64) bool {
	return r.RSI != nil && r.PrevRSI != nil && *r.PrevRSI > threshold && *r.RSI < *r.PrevRSI
}
