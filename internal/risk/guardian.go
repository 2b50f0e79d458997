package risk

import (
	"context"
	"fmt"
)

// DailyTradeCounter abstracts the trade-counting dependency so Guardian
// can be tested without a real database.
type DailyTradeCounter interface {
	CountToday(ctx context.Context) (int, error)
}

// Limits holds the pre-trade risk thresholds from config.
// A zero value for any field means that check is disabled.
type Limits struct {
	MaxDailyTrades     int
	MaxPositionSizeUSD float64
}

// Guardian enforces per-trade limits before the coordinator hands an order
// to the execution collaborator. A blocked trade is a rejection, not a fault.
type Guardian struct {
	limits  Limits
	counter DailyTradeCounter
}

func NewGuardian(limits Limits, counter DailyTradeCounter) *Guardian {
	return &Guardian{limits: limits, counter: counter}
}

// PreTradeCheck validates per-trade constraints before execution.
// Returns nil if the trade is allowed, a descriptive error if blocked.
func (g *Guardian) PreTradeCheck(ctx context.Context, notionalUSD float64) error {
	if g.limits.MaxPositionSizeUSD > 0 && notionalUSD > g.limits.MaxPositionSizeUSD {
		return fmt.Errorf("trade blocked: notional $%.2f exceeds max $%.2f",
			notionalUSD, g.limits.MaxPositionSizeUSD)
	}

	if g.limits.MaxDailyTrades > 0 && g.counter != nil {
		count, err := g.counter.CountToday(ctx)
		if err != nil {
			return fmt.Errorf("trade blocked: unable to verify daily trade count: %w", err)
		}
		if count >= g.limits.MaxDailyTrades {
			return fmt.Errorf("trade blocked: daily limit of %d trades reached (%d filled today)",
				g.limits.MaxDailyTrades, count)
		}
	}

	return nil
}
