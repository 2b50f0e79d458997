package executor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"dexarb/internal/signal"
)

const paperGasETH = 0.003

// PaperTrader simulates the execution collaborator against an in-memory
// wallet, with randomized bounded slippage and a flat gas charge. It
// satisfies both Trader and BalanceSource so the coordinator cannot tell it
// apart from the live path.
type PaperTrader struct {
	baseAsset  string
	quoteAsset string
	maxSlip    float64 // fraction, e.g. 0.001
	priceFn    func() float64

	mu       sync.Mutex
	balances map[string]float64
	gasSpent float64
	fills    int
}

// NewPaperTrader creates a paper trader. priceFn must return the current DEX
// price (quote per base); the simulator fills at that price minus slippage.
func NewPaperTrader(baseAsset, quoteAsset string, initialBase, initialQuote, maxSlipFraction float64, priceFn func() float64) *PaperTrader {
	return &PaperTrader{
		baseAsset:  baseAsset,
		quoteAsset: quoteAsset,
		maxSlip:    maxSlipFraction,
		priceFn:    priceFn,
		balances: map[string]float64{
			baseAsset:  initialBase,
			quoteAsset: initialQuote,
		},
	}
}

func (p *PaperTrader) Balance(_ context.Context, asset string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bal, ok := p.balances[asset]
	if !ok {
		return 0, fmt.Errorf("unknown asset %q", asset)
	}
	return bal, nil
}

func (p *PaperTrader) Execute(ctx context.Context, side signal.Side, amountIn, minAmountOut float64, _ time.Time) (*Fill, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	price := p.priceFn()
	if price <= 0 {
		return nil, fmt.Errorf("%w: no pool price available", ErrInsufficientLiquidity)
	}

	slip := rand.Float64() * p.maxSlip

	p.mu.Lock()
	defer p.mu.Unlock()

	var out float64
	switch side {
	case signal.Buy:
		if p.balances[p.quoteAsset] < amountIn {
			return nil, fmt.Errorf("insufficient %s: have %.2f, need %.2f",
				p.quoteAsset, p.balances[p.quoteAsset], amountIn)
		}
		out = amountIn / price * (1 - slip)
		if out < minAmountOut {
			return nil, fmt.Errorf("%w: out %.6f below min %.6f", ErrReverted, out, minAmountOut)
		}
		p.balances[p.quoteAsset] -= amountIn
		p.balances[p.baseAsset] += out
	case signal.Sell:
		if p.balances[p.baseAsset] < amountIn {
			return nil, fmt.Errorf("insufficient %s: have %.6f, need %.6f",
				p.baseAsset, p.balances[p.baseAsset], amountIn)
		}
		out = amountIn * price * (1 - slip)
		if out < minAmountOut {
			return nil, fmt.Errorf("%w: out %.2f below min %.2f", ErrReverted, out, minAmountOut)
		}
		p.balances[p.baseAsset] -= amountIn
		p.balances[p.quoteAsset] += out
	default:
		return nil, fmt.Errorf("unknown side %q", side)
	}

	p.balances[p.baseAsset] -= paperGasETH
	p.gasSpent += paperGasETH
	p.fills++

	return &Fill{
		AmountOut:   out,
		TxHash:      fmt.Sprintf("0xPAPER_%s_%x", side, time.Now().UnixNano()),
		ConfirmedAt: time.Now(),
	}, nil
}

// PaperStats is a snapshot of the simulated wallet for status reporting.
type PaperStats struct {
	BaseBalance  float64
	QuoteBalance float64
	GasSpentETH  float64
	Fills        int
}

func (p *PaperTrader) Stats() PaperStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PaperStats{
		BaseBalance:  p.balances[p.baseAsset],
		QuoteBalance: p.balances[p.quoteAsset],
		GasSpentETH:  p.gasSpent,
		Fills:        p.fills,
	}
}
