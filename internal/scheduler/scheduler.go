package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"dexarb/internal/engine"
	"dexarb/internal/executor"
	"dexarb/internal/logging"
	"dexarb/internal/models"
	"dexarb/internal/repository"
)

// Scheduler owns the cron jobs that run beside the engine: the hourly status
// line and the end-of-day trade summary.
type Scheduler struct {
	cron      *cron.Cron
	svc       *engine.Service
	tradeRepo *repository.TradeRepo
	notify    executor.Notifier
	log       *logging.Logger
	ctx       context.Context
}

func New(ctx context.Context, svc *engine.Service, tradeRepo *repository.TradeRepo,
	notify executor.Notifier, log *logging.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		svc:       svc,
		tradeRepo: tradeRepo,
		notify:    notify,
		log:       log,
		ctx:       ctx,
	}
}

func (s *Scheduler) RegisterAll() error {
	if _, err := s.cron.AddFunc("0 * * * *", s.statusReport); err != nil {
		return fmt.Errorf("register status report: %w", err)
	}
	// Trading days roll over at midnight UTC; summarize the closed day a few
	// minutes after.
	if _, err := s.cron.AddFunc("5 0 * * *", s.dailySummary); err != nil {
		return fmt.Errorf("register daily summary: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Infof("[SCHED] Scheduler started")
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Infof("[SCHED] Scheduler stopped")
}

func (s *Scheduler) statusReport() {
	eng := s.svc.Engine()
	if eng == nil {
		return
	}
	snap := eng.MarketSnapshot()
	if !snap.HasBothSides() {
		s.log.Warnf("[SCHED] Skipping status report: no complete market snapshot yet")
		return
	}
	s.notify.Send(eng.StatusLine(snap))
}

func (s *Scheduler) dailySummary() {
	day := repository.TradingDay(time.Now().UTC().Add(-24 * time.Hour))

	trades, err := s.tradeRepo.GetByDay(s.ctx, day)
	if err != nil {
		s.log.Errorf("[SCHED] Daily summary fetch failed: %v", err)
		return
	}
	if len(trades) == 0 {
		s.notify.Send(fmt.Sprintf("Daily summary %s: no trade attempts", day))
		return
	}

	var filled, rejected, failed int
	var volume float64
	for _, t := range trades {
		switch t.Outcome {
		case models.OutcomeFilled:
			filled++
			// Buys spend the quote asset directly; sells spend ETH.
			if t.Side == "buy" {
				volume += t.AmountIn
			} else {
				volume += t.AmountIn * t.DexPrice
			}
		case models.OutcomeRejected:
			rejected++
		case models.OutcomeFailed:
			failed++
		}
	}

	s.notify.Send(fmt.Sprintf(
		"Daily summary %s: %d attempts | %d filled | %d rejected | %d failed | approx volume $%.2f",
		day, len(trades), filled, rejected, failed, volume))
}
