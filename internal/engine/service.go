package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dexarb/internal/config"
	"dexarb/internal/ethereum"
	"dexarb/internal/executor"
	"dexarb/internal/feeds"
	"dexarb/internal/indicator"
	"dexarb/internal/logging"
	"dexarb/internal/market"
	"dexarb/internal/notifications"
	"dexarb/internal/position"
	"dexarb/internal/repository"
	"dexarb/internal/risk"
	"dexarb/internal/signal"
	"dexarb/internal/sizing"
	"dexarb/internal/stoploss"
)

const baseAssetDecimals = 18

// Service owns the engine lifecycle: it wires the venue, the coordinator and
// the feeds from config, starts the run loop, and tears it down on Stop.
type Service struct {
	mu        sync.Mutex
	engine    *Engine
	paper     *executor.PaperTrader
	ethClient *ethereum.Client
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Start(ctx context.Context, cfg *config.Config,
	tradeRepo *repository.TradeRepo,
	gapRepo *repository.GapRepo,
	notify *notifications.Sender,
	log *logging.Logger,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		fmt.Println("[ENGINE] Already running")
		return nil
	}

	mode := "LIVE MODE"
	if cfg.PaperTradingEnabled {
		mode = "PAPER MODE"
	}
	notify.Send(fmt.Sprintf("Starting DEX arbitrage engine (ETH/%s) - %s", cfg.QuoteTokenSymbol, mode))

	ind := indicator.NewState(cfg.RSIOversold, cfg.RSIOverbought)
	agg := market.NewAggregator(ind,
		time.Duration(cfg.ReferenceStaleSeconds)*time.Second,
		time.Duration(cfg.DexStaleSeconds)*time.Second)

	pos := position.NewMachine(cfg.TrailingStopPercent / 100)
	detector := signal.NewDetector(signal.Thresholds{
		RSIOversold:   cfg.RSIOversold,
		RSIOverbought: cfg.RSIOverbought,
		MinProfitPct:  cfg.MinProfitPercent,
	})

	// The venue serves two roles: price/reserve polling (always on-chain)
	// and swap execution (replaced by the paper trader in paper mode).
	ethC, err := ethereum.NewClient(cfg.EthereumAPIEndpoint, cfg.PrivateKey,
		int64(cfg.ChainID), cfg.GasLimit, cfg.GasMultiplier)
	if err != nil {
		return fmt.Errorf("ethereum client: %w", err)
	}
	uni, err := ethereum.NewUniswapV2(ethC,
		cfg.UniswapRouterAddress, cfg.UniswapPairAddress,
		cfg.WETHAddress, cfg.QuoteTokenAddress,
		cfg.QuoteTokenSymbol, cfg.QuoteTokenDecimals)
	if err != nil {
		ethC.Close()
		return fmt.Errorf("uniswap client: %w", err)
	}

	var trader executor.Trader
	var balances executor.BalanceSource
	if cfg.PaperTradingEnabled {
		paper := executor.NewPaperTrader("ETH", cfg.QuoteTokenSymbol,
			cfg.PaperInitialETH, cfg.PaperInitialUSDC,
			cfg.PaperSlippagePercent/100,
			func() float64 { return agg.Snapshot().DexPrice })
		s.paper = paper
		trader, balances = paper, paper
	} else {
		live := ethereum.NewLiveTrader(uni, "ETH", cfg.QuoteTokenSymbol, cfg.MinPoolReserveUSD, log)
		trader, balances = live, live
		fmt.Printf("[LIVE] Ethereum client connected, wallet %s\n", ethC.WalletAddress().Hex())
	}

	coord := executor.NewCoordinator(executor.Deps{
		Trader:      trader,
		Balances:    balances,
		Position:    pos,
		Allocator:   sizing.NewAllocator(cfg.MaxCapitalPercent/100, cfg.QuoteTokenDecimals),
		BuyGuard:    sizing.NewGuard(cfg.MaxSlippagePercent/100, baseAssetDecimals),
		SellGuard:   sizing.NewGuard(cfg.MaxSlippagePercent/100, cfg.QuoteTokenDecimals),
		Guardian: risk.NewGuardian(risk.Limits{
			MaxDailyTrades:     cfg.MaxDailyTrades,
			MaxPositionSizeUSD: cfg.MaxPositionSizeUSD,
		}, tradeRepo),
		Trades:      tradeRepo,
		Notify:      notify,
		Log:         log,
		BaseAsset:   "ETH",
		QuoteAsset:  cfg.QuoteTokenSymbol,
		ExecTimeout: time.Duration(cfg.ExecutionTimeoutSeconds) * time.Second,
		PaperMode:   cfg.PaperTradingEnabled,
	})

	monitor := stoploss.NewMonitor(pos, agg, coord,
		time.Duration(cfg.StopLossCheckSeconds)*time.Second, notify, log)

	refFeed := feeds.NewReferenceClient(cfg.ReferenceFeedURL,
		time.Duration(cfg.FetchTimeoutSeconds)*time.Second)

	eng := New(cfg, refFeed, uni, agg, detector, pos, coord, monitor, gapRepo, notify, log)

	runCtx, cancel := context.WithCancel(ctx)
	s.engine = eng
	s.ethClient = ethC
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		eng.Run(runCtx)
		close(s.done)
	}()

	fmt.Println("[ENGINE] Started successfully")
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		return
	}
	s.cancel()
	<-s.done
	if s.ethClient != nil {
		s.ethClient.Close()
		s.ethClient = nil
	}
	s.engine = nil
	s.paper = nil
	fmt.Println("[ENGINE] Stopped")
}

// Engine returns the running engine, or nil when stopped. The API layer uses
// it for status snapshots.
func (s *Service) Engine() *Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// PaperStats returns paper wallet stats when running in paper mode.
func (s *Service) PaperStats() *executor.PaperStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paper == nil {
		return nil
	}
	st := s.paper.Stats()
	return &st
}
