package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dexarb/internal/models"
	"dexarb/internal/position"
	"dexarb/internal/risk"
	"dexarb/internal/signal"
	"dexarb/internal/sizing"
)

type fakeBalances map[string]float64

func (f fakeBalances) Balance(_ context.Context, asset string) (float64, error) {
	bal, ok := f[asset]
	if !ok {
		return 0, fmt.Errorf("unknown asset %q", asset)
	}
	return bal, nil
}

type fakeTrader struct {
	mu    sync.Mutex
	calls int
	fill  *Fill
	err   error
	gate  chan struct{} // when set, Execute blocks until the gate closes
}

func (f *fakeTrader) Execute(_ context.Context, _ signal.Side, _, _ float64, _ time.Time) (*Fill, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.fill, nil
}

func (f *fakeTrader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memTradeLog struct {
	mu      sync.Mutex
	records []*models.TradeRecord
}

func (m *memTradeLog) Record(_ context.Context, t *models.TradeRecord) (*models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, t)
	return t, nil
}

func (m *memTradeLog) Outcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.records))
	for i, r := range m.records {
		out[i] = r.Outcome
	}
	return out
}

func buyIntent() *signal.TradeIntent {
	return &signal.TradeIntent{
		Side:           signal.Buy,
		ReferencePrice: 50100,
		DexPrice:       49700,
		GapPct:         0.8,
		Reason:         "test buy",
		CreatedAt:      time.Now(),
	}
}

func sellIntent() *signal.TradeIntent {
	return &signal.TradeIntent{
		Side:           signal.Sell,
		ReferencePrice: 49400,
		DexPrice:       49750,
		GapPct:         -0.7,
		Reason:         "test sell",
		CreatedAt:      time.Now(),
	}
}

func testDeps(trader Trader, balances BalanceSource, trades TradeLog, pos *position.Machine) Deps {
	return Deps{
		Trader:      trader,
		Balances:    balances,
		Position:    pos,
		Allocator:   sizing.NewAllocator(0.1, 6),
		BuyGuard:    sizing.NewGuard(0.002, 18),
		SellGuard:   sizing.NewGuard(0.002, 6),
		Trades:      trades,
		BaseAsset:   "ETH",
		QuoteAsset:  "USDC",
		ExecTimeout: 5 * time.Second,
	}
}

func TestSubmit_BuyFillOpensPosition(t *testing.T) {
	pos := position.NewMachine(0.005)
	trades := &memTradeLog{}
	trader := &fakeTrader{fill: &Fill{AmountOut: 0.002, TxHash: "0xabc", ConfirmedAt: time.Now()}}
	c := NewCoordinator(testDeps(trader, fakeBalances{"USDC": 1000, "ETH": 0}, trades, pos))

	rec, err := c.Submit(context.Background(), buyIntent())
	if err != nil {
		t.Fatal(err)
	}
	if rec.Outcome != models.OutcomeFilled {
		t.Fatalf("expected FILLED, got %s", rec.Outcome)
	}
	if rec.AmountIn != 100 {
		t.Fatalf("expected 10%% of 1000 USDC, got %.6f", rec.AmountIn)
	}
	if pos.Side() != position.Long {
		t.Fatalf("position must be long after a filled buy, got %s", pos.Side())
	}
	if pos.BaseAmount() != 0.002 {
		t.Fatalf("position holds %.6f, fill delivered 0.002", pos.BaseAmount())
	}
	// Execution price derives from the fill: 100 / 0.002 = 50000.
	if pos.Entry() != 50000 {
		t.Fatalf("expected entry 50000, got %.2f", pos.Entry())
	}
}

func TestSubmit_SellLiquidatesWholeBalance(t *testing.T) {
	pos := position.NewMachine(0.005)
	_ = pos.OpenLong(49000, 0.002, time.Now())

	trades := &memTradeLog{}
	trader := &fakeTrader{fill: &Fill{AmountOut: 99.5, TxHash: "0xdef", ConfirmedAt: time.Now()}}
	c := NewCoordinator(testDeps(trader, fakeBalances{"USDC": 900, "ETH": 0.002}, trades, pos))

	rec, err := c.Submit(context.Background(), sellIntent())
	if err != nil {
		t.Fatal(err)
	}
	if rec.Outcome != models.OutcomeFilled {
		t.Fatalf("expected FILLED, got %s", rec.Outcome)
	}
	if rec.AmountIn != 0.002 {
		t.Fatalf("sell must spend the full ETH balance, got %.6f", rec.AmountIn)
	}
	if pos.Side() != position.Flat {
		t.Fatalf("position must be flat after a filled sell, got %s", pos.Side())
	}
}

func TestSubmit_SingleFlight(t *testing.T) {
	pos := position.NewMachine(0.005)
	gate := make(chan struct{})
	trader := &fakeTrader{
		fill: &Fill{AmountOut: 0.002, TxHash: "0xabc", ConfirmedAt: time.Now()},
		gate: gate,
	}
	c := NewCoordinator(testDeps(trader, fakeBalances{"USDC": 1000, "ETH": 0}, &memTradeLog{}, pos))

	const contenders = 8
	results := make(chan error, contenders)

	// First submission grabs the lock and parks in Execute.
	go func() {
		_, err := c.Submit(context.Background(), buyIntent())
		results <- err
	}()
	for trader.Calls() == 0 {
		time.Sleep(time.Millisecond)
	}

	// Everyone else must bounce immediately with ErrBusy.
	var wg sync.WaitGroup
	busy := 0
	var busyMu sync.Mutex
	for i := 0; i < contenders-1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Submit(context.Background(), buyIntent())
			if errors.Is(err, ErrBusy) {
				busyMu.Lock()
				busy++
				busyMu.Unlock()
			}
			results <- err
		}()
	}
	wg.Wait()
	close(gate)

	if err := <-results; err != nil && !errors.Is(err, ErrBusy) {
		t.Fatalf("unexpected submit error: %v", err)
	}
	if busy != contenders-1 {
		t.Fatalf("expected %d ErrBusy rejections, got %d", contenders-1, busy)
	}
	if trader.Calls() != 1 {
		t.Fatalf("exactly one execution must reach the trader, got %d", trader.Calls())
	}
}

func TestSubmit_StaleIntent(t *testing.T) {
	pos := position.NewMachine(0.005)
	trades := &memTradeLog{}
	trader := &fakeTrader{fill: &Fill{AmountOut: 1, ConfirmedAt: time.Now()}}
	c := NewCoordinator(testDeps(trader, fakeBalances{"USDC": 1000, "ETH": 0}, trades, pos))

	// Sell while flat: the position moved after the intent was formed.
	_, err := c.Submit(context.Background(), sellIntent())
	if !errors.Is(err, ErrStaleIntent) {
		t.Fatalf("expected ErrStaleIntent, got %v", err)
	}
	if trader.Calls() != 0 {
		t.Fatal("stale intent must never reach the trader")
	}
	if len(trades.Outcomes()) != 0 {
		t.Fatal("dropped intents must not be recorded")
	}

	// Buy while long is the symmetric case.
	_ = pos.OpenLong(50000, 0.002, time.Now())
	if _, err := c.Submit(context.Background(), buyIntent()); !errors.Is(err, ErrStaleIntent) {
		t.Fatalf("expected ErrStaleIntent for buy while long, got %v", err)
	}
}

func TestSubmit_SizingFailureRecordsRejected(t *testing.T) {
	pos := position.NewMachine(0.005)
	trades := &memTradeLog{}
	trader := &fakeTrader{fill: &Fill{AmountOut: 1, ConfirmedAt: time.Now()}}
	c := NewCoordinator(testDeps(trader, fakeBalances{"USDC": 0, "ETH": 0}, trades, pos))

	rec, err := c.Submit(context.Background(), buyIntent())
	if err != nil {
		t.Fatalf("sizing no-trade is not a submit error, got %v", err)
	}
	if rec.Outcome != models.OutcomeRejected {
		t.Fatalf("expected REJECTED, got %s", rec.Outcome)
	}
	if rec.Error == nil {
		t.Fatal("rejected record must carry the reason")
	}
	if trader.Calls() != 0 {
		t.Fatal("rejected trades must not reach the trader")
	}
	if pos.Side() != position.Flat {
		t.Fatal("rejection must not touch the position")
	}
}

func TestSubmit_RiskLimitRecordsRejected(t *testing.T) {
	pos := position.NewMachine(0.005)
	trades := &memTradeLog{}
	trader := &fakeTrader{fill: &Fill{AmountOut: 1, ConfirmedAt: time.Now()}}
	deps := testDeps(trader, fakeBalances{"USDC": 1000, "ETH": 0}, trades, pos)
	deps.Guardian = risk.NewGuardian(risk.Limits{MaxPositionSizeUSD: 50}, nil)
	c := NewCoordinator(deps)

	rec, err := c.Submit(context.Background(), buyIntent())
	if err != nil {
		t.Fatal(err)
	}
	if rec.Outcome != models.OutcomeRejected {
		t.Fatalf("expected REJECTED on risk limit, got %s", rec.Outcome)
	}
	if trader.Calls() != 0 {
		t.Fatal("risk-rejected trades must not reach the trader")
	}
}

func TestSubmit_ExecutionFailureRecordsFailed(t *testing.T) {
	pos := position.NewMachine(0.005)
	trades := &memTradeLog{}
	trader := &fakeTrader{err: fmt.Errorf("%w: rpc unreachable", ErrNetwork)}
	c := NewCoordinator(testDeps(trader, fakeBalances{"USDC": 1000, "ETH": 0}, trades, pos))

	rec, err := c.Submit(context.Background(), buyIntent())
	if err == nil {
		t.Fatal("execution failure must surface as an error")
	}
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("error chain lost the cause: %v", err)
	}
	if rec.Outcome != models.OutcomeFailed {
		t.Fatalf("expected FAILED, got %s", rec.Outcome)
	}
	if pos.Side() != position.Flat {
		t.Fatal("failed execution must leave the position untouched")
	}

	// The coordinator is free again after a failure.
	trader.err = nil
	trader.fill = &Fill{AmountOut: 0.002, ConfirmedAt: time.Now()}
	if _, err := c.Submit(context.Background(), buyIntent()); err != nil {
		t.Fatalf("coordinator stuck after failure: %v", err)
	}
}

func TestSubmit_NilIntent(t *testing.T) {
	c := NewCoordinator(testDeps(&fakeTrader{}, fakeBalances{}, &memTradeLog{}, position.NewMachine(0.005)))
	if _, err := c.Submit(context.Background(), nil); err == nil {
		t.Fatal("nil intent must be an error")
	}
}
