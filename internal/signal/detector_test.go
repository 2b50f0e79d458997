package signal

import (
	"testing"
	"time"

	"dexarb/internal/indicator"
	"dexarb/internal/market"
	"dexarb/internal/position"
)

func testThresholds() Thresholds {
	return Thresholds{RSIOversold: 30, RSIOverbought: 70, MinProfitPct: 0.6}
}

func fp(v float64) *float64 { return &v }

func snapshot(ref, dex, rsi, ema float64) market.Snapshot {
	return market.Snapshot{
		ReferencePrice: ref,
		DexPrice:       dex,
		DexLiquidity:   1_000_000,
		GapPct:         (ref - dex) / dex * 100,
		Indicators:     indicator.Reading{RSI: fp(rsi), EMA: fp(ema)},
		ReferenceAt:    time.Now(),
		DexAt:          time.Now(),
	}
}

func TestEvaluate_BuySignal(t *testing.T) {
	d := NewDetector(testThresholds())

	// RSI 25 oversold, 50100 above EMA 50000, gap ~0.80% above 0.6%.
	snap := snapshot(50100, 49700, 25, 50000)
	intent := d.Evaluate(snap, position.Flat)
	if intent == nil {
		t.Fatal("expected a buy intent")
	}
	if intent.Side != Buy {
		t.Fatalf("expected buy, got %s", intent.Side)
	}
	if intent.ReferencePrice != 50100 || intent.DexPrice != 49700 {
		t.Fatalf("intent prices wrong: %+v", intent)
	}
	if intent.GapPct != snap.GapPct {
		t.Fatalf("intent gap %.4f != snapshot gap %.4f", intent.GapPct, snap.GapPct)
	}
}

func TestEvaluate_BuyRequiresAllThreeConditions(t *testing.T) {
	d := NewDetector(testThresholds())

	cases := []struct {
		name string
		snap market.Snapshot
	}{
		{"rsi not oversold", snapshot(50100, 49700, 45, 50000)},
		{"price below ema", snapshot(50100, 49700, 25, 50200)},
		{"gap below threshold", snapshot(49900, 49700, 25, 49800)}, // ~0.40%
		{"gap negative", snapshot(49400, 49700, 25, 49300)},
	}
	for _, tc := range cases {
		if intent := d.Evaluate(tc.snap, position.Flat); intent != nil {
			t.Fatalf("%s: expected no signal, got %s", tc.name, intent.Side)
		}
	}
}

func TestEvaluate_SellSignal(t *testing.T) {
	d := NewDetector(testThresholds())

	// RSI 75 overbought, 49400 below EMA 50000, dex leads by ~0.60%+.
	snap := snapshot(49400, 49750, 75, 50000)
	intent := d.Evaluate(snap, position.Long)
	if intent == nil {
		t.Fatal("expected a sell intent")
	}
	if intent.Side != Sell {
		t.Fatalf("expected sell, got %s", intent.Side)
	}
}

func TestEvaluate_PositionGating(t *testing.T) {
	d := NewDetector(testThresholds())

	// Perfect buy conditions are inert while long.
	if intent := d.Evaluate(snapshot(50100, 49700, 25, 50000), position.Long); intent != nil {
		t.Fatalf("buy conditions while long produced %s", intent.Side)
	}
	// Perfect sell conditions are inert while flat.
	if intent := d.Evaluate(snapshot(49400, 49750, 75, 50000), position.Flat); intent != nil {
		t.Fatalf("sell conditions while flat produced %s", intent.Side)
	}
}

func TestEvaluate_RejectsUnusableSnapshots(t *testing.T) {
	d := NewDetector(testThresholds())

	snap := snapshot(50100, 49700, 25, 50000)
	snap.DexLiquidity = 0
	if d.Evaluate(snap, position.Flat) != nil {
		t.Fatal("zero liquidity must suppress signals")
	}

	snap = snapshot(50100, 49700, 25, 50000)
	snap.Indicators.RSI = nil
	if d.Evaluate(snap, position.Flat) != nil {
		t.Fatal("missing RSI must suppress signals")
	}

	snap = snapshot(50100, 49700, 25, 50000)
	snap.DexPrice = 0
	if d.Evaluate(snap, position.Flat) != nil {
		t.Fatal("half-initialized snapshot must suppress signals")
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	d := NewDetector(testThresholds())
	snap := snapshot(50100, 49700, 25, 50000)

	for i := 0; i < 5; i++ {
		if d.Evaluate(snap, position.Flat) == nil {
			t.Fatalf("iteration %d: same inputs produced a different result", i)
		}
	}
}

func TestLast_ReturnsCopy(t *testing.T) {
	d := NewDetector(testThresholds())
	if d.Last() != nil {
		t.Fatal("fresh detector has no last intent")
	}

	d.Evaluate(snapshot(50100, 49700, 25, 50000), position.Flat)
	last := d.Last()
	if last == nil || last.Side != Buy {
		t.Fatalf("expected stored buy intent, got %+v", last)
	}

	last.GapPct = -1
	if again := d.Last(); again.GapPct == -1 {
		t.Fatal("Last must return a copy, not shared state")
	}
}

func TestStopLossIntent(t *testing.T) {
	snap := snapshot(50100, 50700, 50, 50000)
	intent := StopLossIntent(snap)
	if intent.Side != Sell {
		t.Fatalf("stop-loss intent must be a sell, got %s", intent.Side)
	}
	if intent.Reason != "trailing stop" {
		t.Fatalf("unexpected reason %q", intent.Reason)
	}
	if intent.DexPrice != 50700 {
		t.Fatalf("intent must snapshot the DEX price, got %.2f", intent.DexPrice)
	}
}
