package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"dexarb/internal/executor"
	"dexarb/internal/logging"
	"dexarb/internal/signal"
)

// LiveTrader executes swaps through the Uniswap V2 router and reports wallet
// balances. It satisfies both executor.Trader and executor.BalanceSource.
type LiveTrader struct {
	dex        *UniswapV2
	baseAsset  string
	quoteAsset string
	minReserve float64
	log        *logging.Logger
}

// NewLiveTrader builds a trader over the given venue. minReserveQuote is the
// smallest quote-side pool reserve we will trade against; thinner pools get
// executor.ErrInsufficientLiquidity.
func NewLiveTrader(dex *UniswapV2, baseAsset, quoteAsset string, minReserveQuote float64, log *logging.Logger) *LiveTrader {
	return &LiveTrader{
		dex:        dex,
		baseAsset:  baseAsset,
		quoteAsset: quoteAsset,
		minReserve: minReserveQuote,
		log:        log,
	}
}

func (t *LiveTrader) Balance(ctx context.Context, asset string) (float64, error) {
	if strings.EqualFold(asset, t.baseAsset) {
		return t.dex.ETHBalance(ctx)
	}
	return t.dex.TokenBalance(ctx)
}

// Execute submits the swap, waits for the receipt, and maps chain failures
// onto the coordinator's error taxonomy.
func (t *LiveTrader) Execute(ctx context.Context, side signal.Side, amountIn, minAmountOut float64, deadline time.Time) (*executor.Fill, error) {
	if _, quoteReserve, err := t.dex.PoolReserves(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", executor.ErrNetwork, err)
	} else if quoteReserve < t.minReserve {
		return nil, fmt.Errorf("%w: quote reserve %.2f below %.2f",
			executor.ErrInsufficientLiquidity, quoteReserve, t.minReserve)
	}

	outBefore, err := t.Balance(ctx, t.outAsset(side))
	if err != nil {
		return nil, fmt.Errorf("%w: read balance: %v", executor.ErrNetwork, err)
	}

	var txHash string
	switch side {
	case signal.Buy:
		txHash, err = t.dex.SwapQuoteForETH(ctx, amountIn, minAmountOut, deadline)
	case signal.Sell:
		txHash, err = t.dex.SwapETHForQuote(ctx, amountIn, minAmountOut, deadline)
	default:
		return nil, fmt.Errorf("unknown side %q", side)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", executor.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", executor.ErrNetwork, err)
	}

	t.log.Infof("[DEX] %s swap submitted: %s", side, t.dex.ExplorerURL(txHash))

	receipt, err := t.dex.client.WaitMined(ctx, txHash)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: tx %s unconfirmed: %v", executor.ErrTimeout, txHash, err)
		}
		if receipt != nil {
			return nil, fmt.Errorf("%w: tx %s", executor.ErrReverted, txHash)
		}
		return nil, fmt.Errorf("%w: %v", executor.ErrNetwork, err)
	}

	outAfter, err := t.Balance(ctx, t.outAsset(side))
	if err != nil {
		return nil, fmt.Errorf("%w: read balance after swap: %v", executor.ErrNetwork, err)
	}

	amountOut := outAfter - outBefore
	if side == signal.Buy {
		// The wallet also paid gas in ETH; add it back so the fill reflects
		// what the swap itself delivered.
		gasETH := fromTokenWei(
			new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed)), 18)
		amountOut += gasETH
	}
	if amountOut <= 0 {
		return nil, fmt.Errorf("%w: tx %s produced no output", executor.ErrReverted, txHash)
	}

	return &executor.Fill{
		AmountOut:   amountOut,
		TxHash:      txHash,
		ConfirmedAt: time.Now(),
	}, nil
}

func (t *LiveTrader) outAsset(side signal.Side) string {
	if side == signal.Buy {
		return t.baseAsset
	}
	return t.quoteAsset
}
