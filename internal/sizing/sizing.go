package sizing

import (
	"errors"
	"math"
)

var (
	// ErrInsufficientBalance is returned when there is no balance to size
	// a trade against.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidAmount is returned when an expected output is not positive.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Allocator sizes trades as a fixed fraction of the available balance,
// floored to the asset's smallest representable unit. Stateless.
type Allocator struct {
	fraction float64 // e.g. 0.1 for 10% of balance per trade
	decimals int
}

func NewAllocator(maxCapitalFraction float64, assetDecimals int) *Allocator {
	return &Allocator{fraction: maxCapitalFraction, decimals: assetDecimals}
}

// SizeTrade returns availableBalance * fraction, floored to the smallest unit.
func (a *Allocator) SizeTrade(availableBalance float64) (float64, error) {
	if availableBalance <= 0 {
		return 0, ErrInsufficientBalance
	}
	amount := floorToUnit(availableBalance*a.fraction, a.decimals)
	if amount <= 0 {
		return 0, ErrInsufficientBalance
	}
	return amount, nil
}

// Guard converts expected outputs into minimum-acceptable outputs for
// slippage protection. Symmetric for buys and sells.
type Guard struct {
	maxSlippage float64 // e.g. 0.002 for 0.2%
	decimals    int
}

func NewGuard(maxSlippageFraction float64, assetDecimals int) *Guard {
	return &Guard{maxSlippage: maxSlippageFraction, decimals: assetDecimals}
}

// MinAcceptable returns expectedOut * (1 - maxSlippage), rounded down.
func (g *Guard) MinAcceptable(expectedOut float64) (float64, error) {
	if expectedOut <= 0 {
		return 0, ErrInvalidAmount
	}
	return floorToUnit(expectedOut*(1-g.maxSlippage), g.decimals), nil
}

func floorToUnit(v float64, decimals int) float64 {
	unit := math.Pow10(decimals)
	scaled := v * unit
	// Absorb float64 representation error before truncating, so that a value
	// sitting a few ulps below a whole unit does not lose that unit.
	if nearest := math.Round(scaled); math.Abs(scaled-nearest) < 1e-6 {
		scaled = nearest
	}
	return math.Floor(scaled) / unit
}
