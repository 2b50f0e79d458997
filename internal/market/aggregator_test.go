package market

import (
	"testing"
	"time"

	"dexarb/internal/indicator"
)

func newTestAggregator() *Aggregator {
	return NewAggregator(indicator.NewState(30, 70), 30*time.Second, 20*time.Second)
}

func fp(v float64) *float64 { return &v }

func TestGapComputation(t *testing.T) {
	a := newTestAggregator()
	now := time.Now()

	a.UpdateReference(50100, fp(25), fp(50000), now)
	a.UpdateDex(49700, 1_000_000, now)

	snap := a.Snapshot()
	want := (50100.0 - 49700.0) / 49700.0 * 100
	if snap.GapPct != want {
		t.Fatalf("expected gap %.6f%%, got %.6f%%", want, snap.GapPct)
	}
	if !snap.HasBothSides() {
		t.Fatal("both sides delivered, HasBothSides should be true")
	}
}

func TestGapZeroWhileOneSideMissing(t *testing.T) {
	a := newTestAggregator()

	a.UpdateReference(50100, fp(25), fp(50000), time.Now())
	snap := a.Snapshot()
	if snap.GapPct != 0 {
		t.Fatalf("gap must be zero with no DEX price, got %.6f", snap.GapPct)
	}
	if snap.HasBothSides() {
		t.Fatal("HasBothSides must be false with only one feed")
	}
}

func TestOutOfOrderUpdatesDiscarded(t *testing.T) {
	a := newTestAggregator()
	now := time.Now()

	if !a.UpdateDex(49700, 1_000_000, now) {
		t.Fatal("first update should apply")
	}
	if a.UpdateDex(49000, 1_000_000, now.Add(-5*time.Second)) {
		t.Fatal("older DEX update must be discarded")
	}
	if got := a.Snapshot().DexPrice; got != 49700 {
		t.Fatalf("stale update overwrote price: %.2f", got)
	}

	// Ordering is tracked per side: an old reference stamp does not block
	// fresh DEX data.
	if !a.UpdateReference(50100, nil, nil, now.Add(-time.Minute)) {
		t.Fatal("reference side has no stored timestamp yet, update should apply")
	}
}

func TestInvalidPricesRejected(t *testing.T) {
	a := newTestAggregator()
	if a.UpdateReference(0, nil, nil, time.Now()) {
		t.Fatal("zero price must be rejected")
	}
	if a.UpdateDex(-42, 1, time.Now()) {
		t.Fatal("negative price must be rejected")
	}
}

func TestIsStale(t *testing.T) {
	a := newTestAggregator()
	now := time.Now()

	if !a.IsStale(now) {
		t.Fatal("empty aggregator must be stale")
	}

	a.UpdateReference(50100, fp(25), fp(50000), now)
	a.UpdateDex(49700, 1_000_000, now)
	if a.IsStale(now.Add(5 * time.Second)) {
		t.Fatal("fresh data flagged stale")
	}

	// DEX window is 20s; reference window 30s.
	if !a.IsStale(now.Add(25 * time.Second)) {
		t.Fatal("expected stale once the DEX window is exceeded")
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	a := newTestAggregator()
	ch := a.Subscribe(4)

	a.UpdateDex(49700, 1_000_000, time.Now())

	select {
	case snap := <-ch:
		if snap.DexPrice != 49700 {
			t.Fatalf("expected published price 49700, got %.2f", snap.DexPrice)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered to subscriber")
	}
}

func TestSlowSubscriberDoesNotBlockUpdates(t *testing.T) {
	a := newTestAggregator()
	_ = a.Subscribe(1) // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			a.UpdateDex(49700+float64(i), 1_000_000, time.Now())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("updates blocked on a full subscriber channel")
	}
}

func TestIndicatorCarryOverOnPriceOnlyUpdate(t *testing.T) {
	a := newTestAggregator()
	now := time.Now()

	a.UpdateReference(50100, fp(25), fp(50000), now)
	// Stream ticks carry no indicators; the last polled reading persists.
	a.UpdateReference(50150, nil, nil, now.Add(time.Second))

	snap := a.Snapshot()
	if snap.ReferencePrice != 50150 {
		t.Fatalf("price-only update not applied: %.2f", snap.ReferencePrice)
	}
	if snap.Indicators.RSI == nil || *snap.Indicators.RSI != 25 {
		t.Fatalf("indicator reading lost on price-only update: %v", snap.Indicators.RSI)
	}
}
