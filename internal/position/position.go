package position

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

type Side string

const (
	Flat Side = "FLAT"
	Long Side = "LONG"
)

var (
	// ErrAlreadyLong is returned when a buy confirmation arrives while long.
	ErrAlreadyLong = errors.New("position is already long")
	// ErrNotLong is returned when a sell confirmation arrives while flat.
	ErrNotLong = errors.New("no long position to close")
)

// Status is a read-only copy of the machine state for API consumers.
type Status struct {
	Side          Side       `json:"side"`
	EntryPrice    float64    `json:"entryPrice,omitempty"`
	PeakPrice     float64    `json:"peakPrice,omitempty"`
	BaseAmount    float64    `json:"baseAmount,omitempty"`
	OpenedAt      *time.Time `json:"openedAt,omitempty"`
	RealizedPnL   float64    `json:"realizedPnl"`
	ClosedTrades  int        `json:"closedTrades"`
	UnrealizedPct float64    `json:"unrealizedPct,omitempty"`
}

// Machine tracks the single flat/long position. It reports state and accepts
// confirmed-execution transitions; it never initiates trades itself.
//
// The peak price lives in an atomic word so the stop-loss monitor's ratchet
// can race with concurrent price updates without taking the state lock.
type Machine struct {
	trailPct float64 // e.g. 0.005 for 0.5%

	mu         sync.RWMutex
	side       Side
	entryPrice float64
	baseAmount float64
	openedAt   time.Time

	realizedPnL  float64 // cumulative fractional return across closed trades
	closedTrades int

	peakBits atomic.Uint64
}

func NewMachine(trailingStopPct float64) *Machine {
	return &Machine{
		trailPct: trailingStopPct,
		side:     Flat,
	}
}

func (m *Machine) Side() Side {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.side
}

// OpenLong transitions FLAT -> LONG on a confirmed buy execution.
func (m *Machine) OpenLong(executionPrice, baseAmount float64, at time.Time) error {
	if executionPrice <= 0 {
		return fmt.Errorf("invalid execution price %.6f", executionPrice)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.side == Long {
		return ErrAlreadyLong
	}
	m.side = Long
	m.entryPrice = executionPrice
	m.baseAmount = baseAmount
	m.openedAt = at
	m.peakBits.Store(math.Float64bits(executionPrice))
	return nil
}

// CloseLong transitions LONG -> FLAT on a confirmed sell execution and
// returns the realized fractional P&L, (exit - entry) / entry.
func (m *Machine) CloseLong(exitPrice float64) (float64, error) {
	if exitPrice <= 0 {
		return 0, fmt.Errorf("invalid exit price %.6f", exitPrice)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.side != Long {
		return 0, ErrNotLong
	}
	pnl := (exitPrice - m.entryPrice) / m.entryPrice
	m.side = Flat
	m.entryPrice = 0
	m.baseAmount = 0
	m.openedAt = time.Time{}
	m.peakBits.Store(0)
	m.realizedPnL += pnl
	m.closedTrades++
	return pnl, nil
}

// UpdatePeak ratchets the peak price upward. The CAS loop makes the ratchet
// monotone even when ticks race: a lower price never overwrites a higher peak.
func (m *Machine) UpdatePeak(price float64) {
	if price <= 0 || m.Side() != Long {
		return
	}
	for {
		old := m.peakBits.Load()
		if price <= math.Float64frombits(old) {
			return
		}
		if m.peakBits.CompareAndSwap(old, math.Float64bits(price)) {
			return
		}
	}
}

// Peak returns the running peak price, zero while flat.
func (m *Machine) Peak() float64 {
	return math.Float64frombits(m.peakBits.Load())
}

// Entry returns the entry price, zero while flat.
func (m *Machine) Entry() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entryPrice
}

// BaseAmount returns the held base-asset quantity, zero while flat.
func (m *Machine) BaseAmount() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.baseAmount
}

// ShouldTriggerStopLoss reports whether the trailing stop has tripped:
// currentPrice < peak * (1 - trailPct). Advisory only, and only while long.
func (m *Machine) ShouldTriggerStopLoss(currentPrice float64) bool {
	if m.Side() != Long || currentPrice <= 0 {
		return false
	}
	peak := m.Peak()
	if peak <= 0 {
		return false
	}
	return currentPrice < peak*(1-m.trailPct)
}

// Status returns a copy of the full position state.
func (m *Machine) Status(currentPrice float64) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{
		Side:         m.side,
		RealizedPnL:  m.realizedPnL,
		ClosedTrades: m.closedTrades,
	}
	if m.side == Long {
		st.EntryPrice = m.entryPrice
		st.PeakPrice = math.Float64frombits(m.peakBits.Load())
		st.BaseAmount = m.baseAmount
		opened := m.openedAt
		st.OpenedAt = &opened
		if currentPrice > 0 && m.entryPrice > 0 {
			st.UnrealizedPct = (currentPrice - m.entryPrice) / m.entryPrice * 100
		}
	}
	return st
}
