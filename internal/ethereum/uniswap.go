package ethereum

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const explorerTxPrefix = "https://etherscan.io/tx/"

// UniswapV2 wraps an Ethereum Client and provides Uniswap V2 quote, reserve
// and swap methods for the ETH/quote-token pair.
type UniswapV2 struct {
	client      *Client
	routerAddr  common.Address
	pairAddr    common.Address
	wethAddr    common.Address
	quoteAddr   common.Address
	quoteSymbol string
	quoteDec    int
	routerABI   abi.ABI
	pairABI     abi.ABI
	erc20ABI    abi.ABI
}

func NewUniswapV2(
	client *Client,
	routerAddr, pairAddr, wethAddr, quoteAddr string,
	quoteSymbol string,
	quoteDecimals int,
) (*UniswapV2, error) {
	rABI, err := abi.JSON(mustRouterABI())
	if err != nil {
		return nil, fmt.Errorf("parse router ABI: %w", err)
	}
	pABI, err := abi.JSON(mustPairABI())
	if err != nil {
		return nil, fmt.Errorf("parse pair ABI: %w", err)
	}
	eABI, err := abi.JSON(mustERC20ABI())
	if err != nil {
		return nil, fmt.Errorf("parse ERC20 ABI: %w", err)
	}
	return &UniswapV2{
		client:      client,
		routerAddr:  common.HexToAddress(routerAddr),
		pairAddr:    common.HexToAddress(pairAddr),
		wethAddr:    common.HexToAddress(wethAddr),
		quoteAddr:   common.HexToAddress(quoteAddr),
		quoteSymbol: quoteSymbol,
		quoteDec:    quoteDecimals,
		routerABI:   rABI,
		pairABI:     pABI,
		erc20ABI:    eABI,
	}, nil
}

func (u *UniswapV2) ExplorerURL(txHash string) string {
	return explorerTxPrefix + txHash
}

// QuotePrice returns the quote-token price of 1 ETH from the router's
// getAmountsOut, i.e. the executable spot price including the pool fee.
func (u *UniswapV2) QuotePrice(ctx context.Context) (float64, error) {
	oneEth := toEthWei(1.0)
	path := []common.Address{u.wethAddr, u.quoteAddr}

	data, err := u.routerABI.Pack("getAmountsOut", oneEth, path)
	if err != nil {
		return 0, err
	}
	result, err := u.client.CallContract(ctx, u.routerAddr, data)
	if err != nil {
		return 0, fmt.Errorf("getAmountsOut call: %w", err)
	}

	amounts, err := unpackAmounts(u.routerABI, result)
	if err != nil {
		return 0, err
	}
	out := amounts[len(amounts)-1]
	price := fromTokenWei(out, u.quoteDec)
	if price <= 0 {
		return 0, fmt.Errorf("zero quote for 1 ETH")
	}
	return price, nil
}

// PoolReserves returns the pair's ETH and quote-token reserves as
// human-readable floats.
func (u *UniswapV2) PoolReserves(ctx context.Context) (ethReserve, quoteReserve float64, err error) {
	data, err := u.pairABI.Pack("getReserves")
	if err != nil {
		return 0, 0, err
	}
	result, err := u.client.CallContract(ctx, u.pairAddr, data)
	if err != nil {
		return 0, 0, fmt.Errorf("getReserves call: %w", err)
	}
	vals, err := u.pairABI.Unpack("getReserves", result)
	if err != nil || len(vals) < 2 {
		return 0, 0, fmt.Errorf("unpack getReserves: %w", err)
	}
	r0, ok0 := vals[0].(*big.Int)
	r1, ok1 := vals[1].(*big.Int)
	if !ok0 || !ok1 {
		return 0, 0, fmt.Errorf("unexpected reserve types")
	}

	// Uniswap V2 orders reserves by token address. USDC sorts below WETH in
	// the canonical mainnet pair but we resolve it generically.
	if tokenLess(u.wethAddr, u.quoteAddr) {
		return fromTokenWei(r0, 18), fromTokenWei(r1, u.quoteDec), nil
	}
	return fromTokenWei(r1, 18), fromTokenWei(r0, u.quoteDec), nil
}

// TokenBalance returns the wallet's quote-token balance as a human-readable float.
func (u *UniswapV2) TokenBalance(ctx context.Context) (float64, error) {
	data, err := u.erc20ABI.Pack("balanceOf", u.client.wallet)
	if err != nil {
		return 0, err
	}
	result, err := u.client.CallContract(ctx, u.quoteAddr, data)
	if err != nil {
		return 0, fmt.Errorf("balanceOf call: %w", err)
	}
	return fromTokenWei(new(big.Int).SetBytes(result), u.quoteDec), nil
}

// ETHBalance returns wallet ETH balance as a human-readable float.
func (u *UniswapV2) ETHBalance(ctx context.Context) (float64, error) {
	bal, err := u.client.ETHBalance(ctx)
	if err != nil {
		return 0, err
	}
	return fromTokenWei(bal, 18), nil
}

// EnsureAllowance checks the router's allowance for the quote token and approves max if needed.
func (u *UniswapV2) EnsureAllowance(ctx context.Context, requiredAmount float64) error {
	data, err := u.erc20ABI.Pack("allowance", u.client.wallet, u.routerAddr)
	if err != nil {
		return err
	}
	result, err := u.client.CallContract(ctx, u.quoteAddr, data)
	if err != nil {
		return fmt.Errorf("allowance call: %w", err)
	}
	current := new(big.Int).SetBytes(result)

	requiredWei := toTokenWei(requiredAmount*2, u.quoteDec)
	if current.Cmp(requiredWei) >= 0 {
		return nil
	}

	fmt.Printf("Setting %s allowance for Uniswap Router...\n", u.quoteSymbol)
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	approveData, err := u.erc20ABI.Pack("approve", u.routerAddr, maxUint256)
	if err != nil {
		return err
	}

	txHash, err := u.client.SignAndSend(ctx, u.quoteAddr, big.NewInt(0), approveData)
	if err != nil {
		return fmt.Errorf("approve tx: %w", err)
	}
	fmt.Printf("Allowance TX confirmed: %s\n", u.ExplorerURL(txHash))
	return nil
}

// SwapQuoteForETH executes swapExactTokensForETH on the Uniswap V2 Router.
// minETHOut is passed through as amountOutMin; the swap reverts on-chain if
// the pool cannot deliver it. Returns the transaction hash.
func (u *UniswapV2) SwapQuoteForETH(ctx context.Context, quoteAmount, minETHOut float64, deadline time.Time) (string, error) {
	if err := u.EnsureAllowance(ctx, quoteAmount); err != nil {
		return "", err
	}

	path := []common.Address{u.quoteAddr, u.wethAddr}
	amountIn := toTokenWei(quoteAmount, u.quoteDec)
	minOutWei := toEthWei(minETHOut)

	data, err := u.routerABI.Pack("swapExactTokensForETH",
		amountIn, minOutWei, path, u.client.wallet, big.NewInt(deadline.Unix()))
	if err != nil {
		return "", fmt.Errorf("pack swapExactTokensForETH: %w", err)
	}

	return u.client.SignAndSend(ctx, u.routerAddr, big.NewInt(0), data)
}

// SwapETHForQuote executes swapExactETHForTokens on the Uniswap V2 Router.
// Returns the transaction hash.
func (u *UniswapV2) SwapETHForQuote(ctx context.Context, ethAmount, minQuoteOut float64, deadline time.Time) (string, error) {
	path := []common.Address{u.wethAddr, u.quoteAddr}
	value := toEthWei(ethAmount)
	minOutWei := toTokenWei(minQuoteOut, u.quoteDec)

	data, err := u.routerABI.Pack("swapExactETHForTokens",
		minOutWei, path, u.client.wallet, big.NewInt(deadline.Unix()))
	if err != nil {
		return "", fmt.Errorf("pack swapExactETHForTokens: %w", err)
	}

	return u.client.SignAndSend(ctx, u.routerAddr, value, data)
}

// GasCostETH estimates the gas cost for a transaction in ETH.
func (u *UniswapV2) GasCostETH(ctx context.Context) (float64, error) {
	gasPrice, err := u.client.GasPrice(ctx)
	if err != nil {
		return 0, err
	}
	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(u.client.GasLimit()))
	return fromTokenWei(cost, 18), nil
}

// --- helpers ---

func unpackAmounts(routerABI abi.ABI, result []byte) ([]*big.Int, error) {
	vals, err := routerABI.Unpack("getAmountsOut", result)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("unpack getAmountsOut: %w", err)
	}
	amounts, ok := vals[0].([]*big.Int)
	if !ok || len(amounts) == 0 {
		return nil, fmt.Errorf("unexpected getAmountsOut result")
	}
	return amounts, nil
}

func tokenLess(a, b common.Address) bool {
	return a.Big().Cmp(b.Big()) < 0
}

func toEthWei(eth float64) *big.Int {
	f := new(big.Float).Mul(new(big.Float).SetFloat64(eth), new(big.Float).SetFloat64(1e18))
	i, _ := f.Int(nil)
	return i
}

func toTokenWei(amount float64, decimals int) *big.Int {
	f := new(big.Float).Mul(
		new(big.Float).SetFloat64(amount),
		new(big.Float).SetFloat64(math.Pow10(decimals)),
	)
	i, _ := f.Int(nil)
	return i
}

func fromTokenWei(amount *big.Int, decimals int) float64 {
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(amount),
		new(big.Float).SetFloat64(math.Pow10(decimals)),
	).Float64()
	return f
}
