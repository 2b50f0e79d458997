package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dexarb/internal/logging"
	"dexarb/internal/models"
	"dexarb/internal/position"
	"dexarb/internal/risk"
	"dexarb/internal/signal"
	"dexarb/internal/sizing"
)

// Fill is a confirmed execution result from the trading collaborator.
type Fill struct {
	AmountOut   float64
	TxHash      string
	ConfirmedAt time.Time
}

// Trader submits one swap and waits for confirmation. Live (Uniswap) and
// paper implementations are interchangeable behind this contract.
type Trader interface {
	Execute(ctx context.Context, side signal.Side, amountIn, minAmountOut float64, deadline time.Time) (*Fill, error)
}

// BalanceSource reports spendable balances by asset symbol.
type BalanceSource interface {
	Balance(ctx context.Context, asset string) (float64, error)
}

// TradeLog appends resolved trade attempts to the audit log.
type TradeLog interface {
	Record(ctx context.Context, t *models.TradeRecord) (*models.TradeRecord, error)
}

// Notifier pushes operator-facing messages. Matches notifications.Sender.
type Notifier interface {
	Send(msg string)
}

type Deps struct {
	Trader      Trader
	Balances    BalanceSource
	Position    *position.Machine
	Allocator   *sizing.Allocator
	BuyGuard    *sizing.Guard // floors expected base output (buys)
	SellGuard   *sizing.Guard // floors expected quote output (sells)
	Guardian    *risk.Guardian
	Trades      TradeLog
	Notify      Notifier
	Log         *logging.Logger
	BaseAsset   string
	QuoteAsset  string
	ExecTimeout time.Duration
	PaperMode   bool
}

// Coordinator serializes trade intents into single-flight executions. It is
// the only component in the engine that takes a lock around external calls,
// and the only writer of position transitions.
type Coordinator struct {
	mu   sync.Mutex
	deps Deps
}

func NewCoordinator(deps Deps) *Coordinator {
	if deps.ExecTimeout <= 0 {
		deps.ExecTimeout = 60 * time.Second
	}
	return &Coordinator{deps: deps}
}

// Submit resolves one TradeIntent. Exactly one Submit may be in progress at a
// time; concurrent callers get ErrBusy immediately rather than queueing.
//
// Return shape:
//   - (nil, ErrBusy | ErrStaleIntent): intent dropped, nothing recorded
//   - (record REJECTED, nil): sizing or risk limits said no-trade
//   - (record FAILED, err): the external execution failed
//   - (record FILLED, nil): executed and position updated
func (c *Coordinator) Submit(ctx context.Context, intent *signal.TradeIntent) (*models.TradeRecord, error) {
	if intent == nil {
		return nil, fmt.Errorf("nil intent")
	}
	if !c.mu.TryLock() {
		return nil, ErrBusy
	}
	defer c.mu.Unlock()

	// Re-validate against the position now that we hold the lock; the world
	// may have moved since the intent was created.
	side := c.deps.Position.Side()
	if intent.Side == signal.Buy && side != position.Flat {
		return nil, ErrStaleIntent
	}
	if intent.Side == signal.Sell && side != position.Long {
		return nil, ErrStaleIntent
	}

	amountIn, expectedOut, minOut, err := c.size(ctx, intent)
	if err != nil {
		c.deps.Log.Warnf("[EXEC] %s sized to no-trade: %v", intent.Side, err)
		return c.record(ctx, intent, amountIn, 0, models.OutcomeRejected, err, nil), nil
	}

	notional := notionalUSD(intent, amountIn)
	if c.deps.Guardian != nil {
		if err := c.deps.Guardian.PreTradeCheck(ctx, notional); err != nil {
			c.notify(fmt.Sprintf("[RISK] %v", err))
			return c.record(ctx, intent, amountIn, 0, models.OutcomeRejected, err, nil), nil
		}
	}

	c.deps.Log.Infof("[EXEC] %s: in=%.6f %s, expected out=%.6f, min out=%.6f (gap %+.3f%%)",
		intent.Side, amountIn, c.inAsset(intent.Side), expectedOut, minOut, intent.GapPct)

	execCtx, cancel := context.WithTimeout(ctx, c.deps.ExecTimeout)
	defer cancel()

	fill, err := c.deps.Trader.Execute(execCtx, intent.Side, amountIn, minOut, time.Now().Add(c.deps.ExecTimeout))
	if err != nil {
		c.notify(fmt.Sprintf("%s execution failed: %v", intent.Side, err))
		rec := c.record(ctx, intent, amountIn, 0, models.OutcomeFailed, err, nil)
		return rec, fmt.Errorf("execute %s: %w", intent.Side, err)
	}

	// Position transition happens here, inside the critical section, so no
	// reader can see a filled trade paired with an untouched position.
	execPrice := executionPrice(intent.Side, amountIn, fill.AmountOut)
	switch intent.Side {
	case signal.Buy:
		if err := c.deps.Position.OpenLong(execPrice, fill.AmountOut, fill.ConfirmedAt); err != nil {
			c.deps.Log.Errorf("[EXEC] open long after fill: %v", err)
		}
		c.notify(fmt.Sprintf("Bought %.6f %s @ $%.2f (%s)",
			fill.AmountOut, c.deps.BaseAsset, execPrice, intent.Reason))
	case signal.Sell:
		pnl, err := c.deps.Position.CloseLong(execPrice)
		if err != nil {
			c.deps.Log.Errorf("[EXEC] close long after fill: %v", err)
		} else {
			c.notify(fmt.Sprintf("Sold for %.2f %s @ $%.2f, realized %+.2f%% (%s)",
				fill.AmountOut, c.deps.QuoteAsset, execPrice, pnl*100, intent.Reason))
		}
	}

	return c.record(ctx, intent, amountIn, fill.AmountOut, models.OutcomeFilled, nil, &fill.TxHash), nil
}

// size computes amountIn, the expected output at the decision-time DEX price,
// and the slippage-bounded minimum output.
func (c *Coordinator) size(ctx context.Context, intent *signal.TradeIntent) (amountIn, expectedOut, minOut float64, err error) {
	switch intent.Side {
	case signal.Buy:
		bal, berr := c.deps.Balances.Balance(ctx, c.deps.QuoteAsset)
		if berr != nil {
			return 0, 0, 0, fmt.Errorf("fetch %s balance: %w", c.deps.QuoteAsset, berr)
		}
		amountIn, err = c.deps.Allocator.SizeTrade(bal)
		if err != nil {
			return 0, 0, 0, err
		}
		expectedOut = amountIn / intent.DexPrice
		minOut, err = c.deps.BuyGuard.MinAcceptable(expectedOut)
		return amountIn, expectedOut, minOut, err

	case signal.Sell:
		// No partial positions: the whole held base balance goes out.
		bal, berr := c.deps.Balances.Balance(ctx, c.deps.BaseAsset)
		if berr != nil {
			return 0, 0, 0, fmt.Errorf("fetch %s balance: %w", c.deps.BaseAsset, berr)
		}
		if bal <= 0 {
			return 0, 0, 0, sizing.ErrInsufficientBalance
		}
		amountIn = bal
		expectedOut = amountIn * intent.DexPrice
		minOut, err = c.deps.SellGuard.MinAcceptable(expectedOut)
		return amountIn, expectedOut, minOut, err
	}
	return 0, 0, 0, fmt.Errorf("unknown side %q", intent.Side)
}

func (c *Coordinator) record(ctx context.Context, intent *signal.TradeIntent, amountIn, amountOut float64, outcome string, execErr error, txHash *string) *models.TradeRecord {
	rec := &models.TradeRecord{
		Timestamp:      time.Now(),
		Side:           string(intent.Side),
		AmountIn:       amountIn,
		AmountOut:      amountOut,
		ReferencePrice: intent.ReferencePrice,
		DexPrice:       intent.DexPrice,
		GapPct:         intent.GapPct,
		Outcome:        outcome,
		Reason:         intent.Reason,
		TxHash:         txHash,
		IsPaperTrade:   c.deps.PaperMode,
	}
	if execErr != nil {
		msg := execErr.Error()
		rec.Error = &msg
	}

	if c.deps.Trades != nil {
		stored, err := c.deps.Trades.Record(ctx, rec)
		if err != nil {
			c.deps.Log.Errorf("[EXEC] record trade: %v", err)
			return rec
		}
		return stored
	}
	return rec
}

func (c *Coordinator) notify(msg string) {
	if c.deps.Notify != nil {
		c.deps.Notify.Send(msg)
	}
}

func (c *Coordinator) inAsset(side signal.Side) string {
	if side == signal.Buy {
		return c.deps.QuoteAsset
	}
	return c.deps.BaseAsset
}

// notionalUSD approximates the trade's quote-denominated size for risk checks.
func notionalUSD(intent *signal.TradeIntent, amountIn float64) float64 {
	if intent.Side == signal.Buy {
		return amountIn
	}
	return amountIn * intent.DexPrice
}

// executionPrice derives the achieved quote-per-base price from a fill.
func executionPrice(side signal.Side, amountIn, amountOut float64) float64 {
	if side == signal.Buy {
		if amountOut <= 0 {
			return 0
		}
		return amountIn / amountOut
	}
	if amountIn <= 0 {
		return 0
	}
	return amountOut / amountIn
}
