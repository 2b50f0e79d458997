package stoploss

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dexarb/internal/executor"
	"dexarb/internal/logging"
	"dexarb/internal/market"
	"dexarb/internal/position"
	"dexarb/internal/signal"
)

// Monitor re-evaluates the trailing-stop predicate on a fixed cadence,
// independent of new signals, and forces an exit through the coordinator when
// it trips. A busy coordinator makes the tick a no-op; the next tick retries
// against fresh state.
type Monitor struct {
	pos      *position.Machine
	agg      *market.Aggregator
	coord    *executor.Coordinator
	interval time.Duration
	notify   executor.Notifier
	log      *logging.Logger
}

func NewMonitor(pos *position.Machine, agg *market.Aggregator, coord *executor.Coordinator,
	interval time.Duration, notify executor.Notifier, log *logging.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Monitor{
		pos:      pos,
		agg:      agg,
		coord:    coord,
		interval: interval,
		notify:   notify,
		log:      log,
	}
}

// Run ticks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Infof("[STOPLOSS] Monitor started (every %s)", m.interval)
	for {
		select {
		case <-ctx.Done():
			m.log.Infof("[STOPLOSS] Monitor stopped")
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick performs one trailing-stop evaluation. Exported so tests can drive the
// monitor without waiting on real timers.
func (m *Monitor) Tick(ctx context.Context) {
	if m.pos.Side() != position.Long {
		return
	}

	snap := m.agg.Snapshot()
	price := snap.DexPrice
	if price <= 0 {
		return
	}

	m.pos.UpdatePeak(price)

	if !m.pos.ShouldTriggerStopLoss(price) {
		return
	}

	m.log.Warnf("[STOPLOSS] Triggered: price %.2f below peak %.2f trail", price, m.pos.Peak())
	if m.notify != nil {
		m.notify.Send(fmt.Sprintf("Trailing stop triggered @ $%.2f (peak $%.2f, entry $%.2f)",
			price, m.pos.Peak(), m.pos.Entry()))
	}

	_, err := m.coord.Submit(ctx, signal.StopLossIntent(snap))
	switch {
	case err == nil:
	case errors.Is(err, executor.ErrBusy):
		// Another submission holds the lock; re-check on the next tick.
		m.log.Debugf("[STOPLOSS] Coordinator busy, deferring to next tick")
	case errors.Is(err, executor.ErrStaleIntent):
		m.log.Debugf("[STOPLOSS] Position already flat, nothing to exit")
	default:
		m.log.Errorf("[STOPLOSS] Exit failed: %v", err)
	}
}
