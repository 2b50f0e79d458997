package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dexarb/internal/config"
	"dexarb/internal/executor"
	"dexarb/internal/feeds"
	"dexarb/internal/logging"
	"dexarb/internal/market"
	"dexarb/internal/position"
	"dexarb/internal/repository"
	"dexarb/internal/signal"
	"dexarb/internal/stoploss"
)

// DexVenue is the on-chain price view the engine polls. Satisfied by
// ethereum.UniswapV2.
type DexVenue interface {
	QuotePrice(ctx context.Context) (float64, error)
	PoolReserves(ctx context.Context) (ethReserve, quoteReserve float64, err error)
}

// Counters are running totals for status reporting.
type Counters struct {
	ReferencePolls  int `json:"referencePolls"`
	DexPolls        int `json:"dexPolls"`
	SignalsDetected int `json:"signalsDetected"`
	TradesSubmitted int `json:"tradesSubmitted"`
}

// Engine wires the feeds, the signal detector, and the execution coordinator
// into one run loop. Feeds write into the aggregator; the evaluation loop
// consumes snapshots; the stop-loss monitor runs beside it on its own cadence.
type Engine struct {
	cfg      *config.Config
	refFeed  *feeds.ReferenceClient
	stream   *feeds.Stream
	dex      DexVenue
	agg      *market.Aggregator
	detector *signal.Detector
	pos      *position.Machine
	coord    *executor.Coordinator
	monitor  *stoploss.Monitor
	gapRepo  *repository.GapRepo
	notify   executor.Notifier
	log      *logging.Logger

	mu       sync.Mutex
	counters Counters

	lastStatusReport time.Time
}

func New(
	cfg *config.Config,
	refFeed *feeds.ReferenceClient,
	dex DexVenue,
	agg *market.Aggregator,
	detector *signal.Detector,
	pos *position.Machine,
	coord *executor.Coordinator,
	monitor *stoploss.Monitor,
	gapRepo *repository.GapRepo,
	notify executor.Notifier,
	log *logging.Logger,
) *Engine {
	e := &Engine{
		cfg:      cfg,
		refFeed:  refFeed,
		dex:      dex,
		agg:      agg,
		detector: detector,
		pos:      pos,
		coord:    coord,
		monitor:  monitor,
		gapRepo:  gapRepo,
		notify:   notify,
		log:      log,
	}
	if cfg.ReferenceStreamURL != "" {
		e.stream = feeds.NewStream(cfg.ReferenceStreamURL, e.onStreamPrice, log)
	}
	return e
}

// Run starts the feed loops, the evaluation loop, and the stop-loss monitor,
// then blocks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup

	run := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
			e.log.Infof("[ENGINE] %s loop exited", name)
		}()
	}

	run("reference", e.referenceLoop)
	run("dex", e.dexLoop)
	run("evaluate", e.evaluateLoop)
	run("stoploss", e.monitor.Run)
	if e.stream != nil {
		run("stream", e.stream.Run)
	}

	e.log.Infof("[ENGINE] Started (reference every %ds, dex every %ds)",
		e.cfg.ReferencePollSeconds, e.cfg.DexPollSeconds)

	wg.Wait()
}

// --- feed loops ---

func (e *Engine) referenceLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(e.cfg.ReferencePollSeconds) * time.Second)
	defer ticker.Stop()

	e.pollReference(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pollReference(ctx)
		}
	}
}

func (e *Engine) pollReference(ctx context.Context) {
	tick, err := e.refFeed.Fetch(ctx)
	if err != nil {
		e.log.Warnf("[REF] Poll failed: %v", err)
		return
	}
	e.bump(func(c *Counters) { c.ReferencePolls++ })

	if !e.agg.UpdateReference(tick.Price, tick.RSI, tick.EMA, tick.Timestamp) {
		e.log.Debugf("[REF] Discarded tick @ %s (stale or invalid)", tick.Timestamp.Format(time.RFC3339))
	}
}

// onStreamPrice feeds push updates between polls. Stream ticks carry no
// indicator readings; the aggregator keeps the last polled RSI/EMA.
func (e *Engine) onStreamPrice(price float64, at time.Time) {
	e.agg.UpdateReference(price, nil, nil, at)
}

func (e *Engine) dexLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(e.cfg.DexPollSeconds) * time.Second)
	defer ticker.Stop()

	e.pollDex(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pollDex(ctx)
		}
	}
}

func (e *Engine) pollDex(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.FetchTimeoutSeconds)*time.Second)
	defer cancel()

	price, err := e.dex.QuotePrice(callCtx)
	if err != nil {
		e.log.Warnf("[DEX] Quote failed: %v", err)
		return
	}
	_, quoteReserve, err := e.dex.PoolReserves(callCtx)
	if err != nil {
		e.log.Warnf("[DEX] Reserves failed: %v", err)
		return
	}
	e.bump(func(c *Counters) { c.DexPolls++ })

	now := time.Now()
	if !e.agg.UpdateDex(price, quoteReserve, now) {
		e.log.Debugf("[DEX] Discarded quote %.2f (stale or invalid)", price)
		return
	}

	if snap := e.agg.Snapshot(); snap.HasBothSides() && e.gapRepo != nil {
		if _, err := e.gapRepo.Record(ctx, snap.ReferencePrice, snap.DexPrice, snap.GapPct, now); err != nil {
			e.log.Warnf("[DEX] Gap history write failed: %v", err)
		}
	}
}

// --- evaluation ---

func (e *Engine) evaluateLoop(ctx context.Context) {
	updates := e.agg.Subscribe(16)
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			e.evaluate(ctx, snap)
		}
	}
}

func (e *Engine) evaluate(ctx context.Context, snap market.Snapshot) {
	if e.agg.IsStale(time.Now()) {
		return
	}

	intent := e.detector.Evaluate(snap, e.pos.Side())
	if intent == nil {
		e.maybeReportStatus(snap)
		return
	}
	e.bump(func(c *Counters) { c.SignalsDetected++ })
	e.log.Infof("[SIGNAL] %s: %s (gap %.3f%%)", intent.Side, intent.Reason, intent.GapPct)

	record, err := e.coord.Submit(ctx, intent)
	switch {
	case errors.Is(err, executor.ErrBusy):
		e.log.Debugf("[SIGNAL] Dropped %s intent: execution in flight", intent.Side)
		return
	case errors.Is(err, executor.ErrStaleIntent):
		e.log.Debugf("[SIGNAL] Dropped %s intent: position moved", intent.Side)
		return
	case err != nil:
		e.log.Errorf("[SIGNAL] %s execution failed: %v", intent.Side, err)
	}
	if record != nil {
		e.bump(func(c *Counters) { c.TradesSubmitted++ })
	}

	e.maybeReportStatus(snap)
}

// --- status ---

func (e *Engine) maybeReportStatus(snap market.Snapshot) {
	interval := time.Duration(e.cfg.StatusReportIntervalMinutes) * time.Minute

	e.mu.Lock()
	due := time.Since(e.lastStatusReport) >= interval
	if due {
		e.lastStatusReport = time.Now()
	}
	e.mu.Unlock()
	if !due || e.notify == nil {
		return
	}

	e.notify.Send(e.StatusLine(snap))
}

// StatusLine formats the one-line operator status used by notifications and
// the scheduler.
func (e *Engine) StatusLine(snap market.Snapshot) string {
	prefix := ""
	if e.cfg.PaperTradingEnabled {
		prefix = "[PAPER] "
	}
	st := e.pos.Status(snap.DexPrice)
	c := e.Counters()
	return fmt.Sprintf(
		"%sStatus: ref $%.2f | dex $%.2f | gap %.3f%% | position %s | realized %.2f%% over %d trades | polls %d/%d | signals %d",
		prefix, snap.ReferencePrice, snap.DexPrice, snap.GapPct,
		st.Side, st.RealizedPnL*100, st.ClosedTrades,
		c.ReferencePolls, c.DexPolls, c.SignalsDetected,
	)
}

func (e *Engine) Counters() Counters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters
}

func (e *Engine) bump(f func(*Counters)) {
	e.mu.Lock()
	f(&e.counters)
	e.mu.Unlock()
}

// MarketSnapshot exposes the current merged view for the API layer.
func (e *Engine) MarketSnapshot() market.Snapshot { return e.agg.Snapshot() }

// PositionStatus exposes the current position for the API layer.
func (e *Engine) PositionStatus() position.Status {
	return e.pos.Status(e.agg.Snapshot().DexPrice)
}

// LastSignal exposes the most recent trade intent for the API layer.
func (e *Engine) LastSignal() *signal.TradeIntent { return e.detector.Last() }
