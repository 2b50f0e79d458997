package stoploss

import (
	"context"
	"testing"
	"time"

	"dexarb/internal/executor"
	"dexarb/internal/indicator"
	"dexarb/internal/market"
	"dexarb/internal/position"
	"dexarb/internal/sizing"
)

func setup(t *testing.T) (*position.Machine, *market.Aggregator, *executor.Coordinator, *executor.PaperTrader) {
	t.Helper()
	agg := market.NewAggregator(indicator.NewState(30, 70), time.Minute, time.Minute)
	pos := position.NewMachine(0.005)
	paper := executor.NewPaperTrader("ETH", "USDC", 0.01, 1000, 0,
		func() float64 { return agg.Snapshot().DexPrice })
	coord := executor.NewCoordinator(executor.Deps{
		Trader:      paper,
		Balances:    paper,
		Position:    pos,
		Allocator:   sizing.NewAllocator(0.1, 6),
		BuyGuard:    sizing.NewGuard(0.002, 18),
		SellGuard:   sizing.NewGuard(0.002, 6),
		BaseAsset:   "ETH",
		QuoteAsset:  "USDC",
		ExecTimeout: time.Second,
		PaperMode:   true,
	})
	return pos, agg, coord, paper
}

func TestTick_FlatIsNoop(t *testing.T) {
	pos, agg, coord, _ := setup(t)
	m := NewMonitor(pos, agg, coord, time.Second, nil, nil)

	agg.UpdateDex(50000, 1_000_000, time.Now())
	m.Tick(context.Background())

	if pos.Side() != position.Flat {
		t.Fatal("tick while flat must do nothing")
	}
}

func TestTick_RatchetsPeakWithoutTriggering(t *testing.T) {
	pos, agg, coord, _ := setup(t)
	m := NewMonitor(pos, agg, coord, time.Second, nil, nil)

	_ = pos.OpenLong(50000, 0.002, time.Now())
	agg.UpdateDex(51000, 1_000_000, time.Now())
	m.Tick(context.Background())

	if pos.Peak() != 51000 {
		t.Fatalf("tick must ratchet the peak, got %.2f", pos.Peak())
	}
	if pos.Side() != position.Long {
		t.Fatal("no trigger expected while price is at the peak")
	}
}

func TestTick_TriggersForcedExit(t *testing.T) {
	pos, agg, coord, paper := setup(t)
	m := NewMonitor(pos, agg, coord, time.Second, nil, nil)

	// Enter at 50000; the wallet already holds the bought ETH.
	agg.UpdateDex(50000, 1_000_000, time.Now())
	_ = pos.OpenLong(50000, 0.01, time.Now())

	// Rally to 51000, then drop to 50700, below 51000 * 0.995 = 50745.
	agg.UpdateDex(51000, 1_000_000, time.Now())
	m.Tick(context.Background())
	agg.UpdateDex(50700, 1_000_000, time.Now().Add(time.Second))
	m.Tick(context.Background())

	if pos.Side() != position.Flat {
		t.Fatalf("trailing stop must close the position, still %s", pos.Side())
	}
	eth, _ := paper.Balance(context.Background(), "ETH")
	if eth > 0.0001 {
		t.Fatalf("forced exit must liquidate the whole base balance, %.6f left", eth)
	}
}

func TestTick_NoTriggerAboveTrail(t *testing.T) {
	pos, agg, coord, _ := setup(t)
	m := NewMonitor(pos, agg, coord, time.Second, nil, nil)

	_ = pos.OpenLong(50000, 0.002, time.Now())
	agg.UpdateDex(51000, 1_000_000, time.Now())
	m.Tick(context.Background())

	// 50746 is just above the 50745 threshold.
	agg.UpdateDex(50746, 1_000_000, time.Now().Add(time.Second))
	m.Tick(context.Background())

	if pos.Side() != position.Long {
		t.Fatal("price above the trail threshold must not force an exit")
	}
}
