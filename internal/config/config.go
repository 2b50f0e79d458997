package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Secrets (from .env)
	WalletAddress       string
	PrivateKey          string
	EthereumAPIEndpoint string
	ReferenceFeedURL    string
	ReferenceStreamURL  string
	WebhookURL          string
	BotName             string
	APIKey              string
	CORSAllowOrigin     string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// Blockchain
	ChainID              int
	QuoteTokenAddress    string
	QuoteTokenSymbol     string
	QuoteTokenDecimals   int
	WETHAddress          string
	UniswapRouterAddress string
	UniswapPairAddress   string

	// Signal thresholds
	RSIOversold      float64
	RSIOverbought    float64
	MinProfitPercent float64

	// Position / exit
	TrailingStopPercent float64

	// Sizing / execution
	MaxCapitalPercent  float64
	MaxSlippagePercent float64
	GasMultiplier      float64
	GasLimit           int

	// Risk Management
	MaxDailyTrades     int
	MaxPositionSizeUSD float64
	MinPoolReserveUSD  float64

	// Paper Trading
	PaperTradingEnabled  bool
	PaperInitialETH      float64
	PaperInitialUSDC     float64
	PaperSlippagePercent float64

	// Timing
	ReferencePollSeconds        int
	DexPollSeconds              int
	StopLossCheckSeconds        int
	ReferenceStaleSeconds       int
	DexStaleSeconds             int
	FetchTimeoutSeconds         int
	ExecutionTimeoutSeconds     int
	StatusReportIntervalMinutes int

	// Logging
	LogFile string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Secrets
		WalletAddress:       envStr("WALLET_ADDRESS", ""),
		PrivateKey:          envStr("PRIVATE_KEY", ""),
		EthereumAPIEndpoint: envStr("ETHEREUM_API_ENDPOINT", ""),
		ReferenceFeedURL:    envStr("REFERENCE_FEED_URL", "http://localhost:8000/v1/indicators/ETHUSDC"),
		ReferenceStreamURL:  envStr("REFERENCE_STREAM_URL", ""),
		WebhookURL:          envStr("WEBHOOK_URL", ""),
		BotName:             envStr("BOT_NAME", "DexArb"),
		APIKey:              envStr("API_KEY", ""),
		CORSAllowOrigin:     envStr("CORS_ALLOW_ORIGIN", "*"),

		// Database
		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "dexarb"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),

		// Blockchain
		ChainID:              envInt("CHAIN_ID", 1),
		QuoteTokenAddress:    envStr("QUOTE_TOKEN_ADDRESS", "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		QuoteTokenSymbol:     envStr("QUOTE_TOKEN_SYMBOL", "USDC"),
		QuoteTokenDecimals:   envInt("QUOTE_TOKEN_DECIMALS", 6),
		WETHAddress:          "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		UniswapRouterAddress: "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
		UniswapPairAddress:   envStr("UNISWAP_PAIR_ADDRESS", "0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"),

		// Signal thresholds
		RSIOversold:      envFloat("RSI_OVERSOLD", 30),
		RSIOverbought:    envFloat("RSI_OVERBOUGHT", 70),
		MinProfitPercent: envFloat("MIN_PROFIT_PERCENT", 0.6),

		// Position / exit
		TrailingStopPercent: envFloat("TRAILING_STOP_PERCENT", 0.5),

		// Sizing / execution
		MaxCapitalPercent:  envFloat("MAX_CAPITAL_PERCENT", 10),
		MaxSlippagePercent: envFloat("MAX_SLIPPAGE_PERCENT", 0.2),
		GasMultiplier:      envFloat("GAS_MULTIPLIER", 1.2),
		GasLimit:           envInt("GAS_LIMIT", 250000),

		// Risk Management
		MaxDailyTrades:     envInt("MAX_DAILY_TRADES", 20),
		MaxPositionSizeUSD: envFloat("MAX_POSITION_SIZE_USD", 10000),
		MinPoolReserveUSD:  envFloat("MIN_POOL_RESERVE_USD", 100000),

		// Paper Trading
		PaperTradingEnabled:  envBool("PAPER_TRADING_ENABLED", true),
		PaperInitialETH:      envFloat("PAPER_INITIAL_ETH", 0),
		PaperInitialUSDC:     envFloat("PAPER_INITIAL_USDC", 1000),
		PaperSlippagePercent: envFloat("PAPER_SLIPPAGE_PERCENT", 0.1),

		// Timing
		ReferencePollSeconds:        envInt("REFERENCE_POLL_SECONDS", 15),
		DexPollSeconds:              envInt("DEX_POLL_SECONDS", 10),
		StopLossCheckSeconds:        envInt("STOP_LOSS_CHECK_SECONDS", 15),
		ReferenceStaleSeconds:       envInt("REFERENCE_STALE_SECONDS", 0),
		DexStaleSeconds:             envInt("DEX_STALE_SECONDS", 0),
		FetchTimeoutSeconds:         envInt("FETCH_TIMEOUT_SECONDS", 10),
		ExecutionTimeoutSeconds:     envInt("EXECUTION_TIMEOUT_SECONDS", 60),
		StatusReportIntervalMinutes: envInt("STATUS_REPORT_INTERVAL_MINUTES", 60),

		// Logging
		LogFile: envStr("LOG_FILE", "logs/dexarb.log"),
	}

	// Staleness windows default to twice the feed's poll cadence.
	if cfg.ReferenceStaleSeconds <= 0 {
		cfg.ReferenceStaleSeconds = 2 * cfg.ReferencePollSeconds
	}
	if cfg.DexStaleSeconds <= 0 {
		cfg.DexStaleSeconds = 2 * cfg.DexPollSeconds
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.WalletAddress == "" && !c.PaperTradingEnabled {
		errs = append(errs, "WALLET_ADDRESS is required for live trading")
	}
	if !c.PaperTradingEnabled && c.PrivateKey == "" {
		errs = append(errs, "PRIVATE_KEY is required for live trading")
	}
	if !c.PaperTradingEnabled && c.EthereumAPIEndpoint == "" {
		errs = append(errs, "ETHEREUM_API_ENDPOINT is required for live trading")
	}
	if c.RSIOversold <= 0 || c.RSIOversold >= 100 {
		errs = append(errs, fmt.Sprintf("RSI_OVERSOLD must be in (0, 100), got %.2f", c.RSIOversold))
	}
	if c.RSIOverbought <= 0 || c.RSIOverbought >= 100 {
		errs = append(errs, fmt.Sprintf("RSI_OVERBOUGHT must be in (0, 100), got %.2f", c.RSIOverbought))
	}
	if c.RSIOversold >= c.RSIOverbought {
		errs = append(errs, fmt.Sprintf("RSI_OVERSOLD (%.2f) must be below RSI_OVERBOUGHT (%.2f)", c.RSIOversold, c.RSIOverbought))
	}
	if c.MinProfitPercent <= 0 {
		errs = append(errs, "MIN_PROFIT_PERCENT must be positive")
	}
	if c.TrailingStopPercent <= 0 || c.TrailingStopPercent >= 100 {
		errs = append(errs, fmt.Sprintf("TRAILING_STOP_PERCENT must be in (0, 100), got %.2f", c.TrailingStopPercent))
	}
	if c.MaxCapitalPercent <= 0 || c.MaxCapitalPercent > 100 {
		errs = append(errs, fmt.Sprintf("MAX_CAPITAL_PERCENT must be in (0, 100], got %.2f", c.MaxCapitalPercent))
	}
	if c.MaxSlippagePercent < 0 || c.MaxSlippagePercent >= 100 {
		errs = append(errs, fmt.Sprintf("MAX_SLIPPAGE_PERCENT must be in [0, 100), got %.2f", c.MaxSlippagePercent))
	}

	if c.MaxDailyTrades == 0 && c.MaxPositionSizeUSD == 0 {
		fmt.Println("[WARN] MAX_DAILY_TRADES and MAX_POSITION_SIZE_USD are both 0 — no per-trade risk limits active")
	}
	if c.APIKey == "" {
		fmt.Println("[WARN] API_KEY not set — REST API has no authentication")
	}
	if c.ReferenceStreamURL == "" {
		fmt.Println("[WARN] REFERENCE_STREAM_URL not set — reference prices arrive by polling only")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	fmt.Println("=== DexArb CEX/DEX Gap Trader Configuration ===")

	if c.PaperTradingEnabled {
		fmt.Println("════════════════════════════════════════")
		fmt.Println("  PAPER TRADING MODE ENABLED")
		fmt.Println("  No real transactions will execute")
		fmt.Println("════════════════════════════════════════")
		fmt.Printf("Paper Initial ETH: %.4f\n", c.PaperInitialETH)
		fmt.Printf("Paper Initial %s: %.2f\n", c.QuoteTokenSymbol, c.PaperInitialUSDC)
		fmt.Printf("Paper Slippage: 0-%.2f%%\n", c.PaperSlippagePercent)
	} else {
		fmt.Println("  LIVE TRADING MODE")
	}

	fmt.Println("--------------------------------------")
	fmt.Printf("Chain ID: %d\n", c.ChainID)
	if len(c.WalletAddress) > 16 {
		fmt.Printf("Wallet: %s...%s\n", c.WalletAddress[:10], c.WalletAddress[len(c.WalletAddress)-6:])
	}
	fmt.Printf("Trading Pair: ETH/%s\n", c.QuoteTokenSymbol)
	fmt.Println("--------------------------------------")
	fmt.Println("Signal Configuration:")
	fmt.Printf("  RSI Oversold/Overbought: %.0f / %.0f\n", c.RSIOversold, c.RSIOverbought)
	fmt.Printf("  Min Profit Gap: %.2f%%\n", c.MinProfitPercent)
	fmt.Printf("  Trailing Stop: %.2f%%\n", c.TrailingStopPercent)
	fmt.Println("--------------------------------------")
	fmt.Println("Sizing Configuration:")
	fmt.Printf("  Capital Per Trade: %.1f%%\n", c.MaxCapitalPercent)
	fmt.Printf("  Max Slippage: %.2f%%\n", c.MaxSlippagePercent)
	fmt.Printf("  Min Pool Reserve: $%.0f\n", c.MinPoolReserveUSD)
	fmt.Println("--------------------------------------")
	fmt.Println("Feed Cadence:")
	fmt.Printf("  Reference Poll: %ds (stale after %ds)\n", c.ReferencePollSeconds, c.ReferenceStaleSeconds)
	fmt.Printf("  DEX Poll: %ds (stale after %ds)\n", c.DexPollSeconds, c.DexStaleSeconds)
	fmt.Printf("  Stop-Loss Check: %ds\n", c.StopLossCheckSeconds)
	fmt.Printf("  Reference Stream: %s\n", boolLabel(c.ReferenceStreamURL != "", "configured", "disabled"))
	fmt.Println("==============================================")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
