package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dexarb/internal/models"
)

type TradeRepo struct {
	pool *pgxpool.Pool
}

func NewTradeRepo(pool *pgxpool.Pool) *TradeRepo {
	return &TradeRepo{pool: pool}
}

func (r *TradeRepo) Record(ctx context.Context, t *models.TradeRecord) (*models.TradeRecord, error) {
	ts := t.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	td := TradingDay(ts)

	row := r.pool.QueryRow(ctx,
		`INSERT INTO trade_history
		 (timestamp, trading_day, side, amount_in, amount_out,
		  reference_price, dex_price, gap_pct, outcome, reason,
		  error, tx_hash, is_paper_trade)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		 RETURNING *`,
		ts, td, t.Side, t.AmountIn, t.AmountOut,
		t.ReferencePrice, t.DexPrice, t.GapPct, t.Outcome, t.Reason,
		t.Error, t.TxHash, t.IsPaperTrade,
	)
	return scanTrade(row)
}

// GetByDay returns trades for a trading day in execution order.
func (r *TradeRepo) GetByDay(ctx context.Context, tradingDay string) ([]models.TradeRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT * FROM trade_history WHERE trading_day = $1 ORDER BY timestamp ASC`,
		tradingDay,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

// GetAll returns the most recent trades, newest first.
func (r *TradeRepo) GetAll(ctx context.Context, limit int) ([]models.TradeRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT * FROM trade_history ORDER BY timestamp DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

// GetStats returns aggregate statistics over the whole audit log.
func (r *TradeRepo) GetStats(ctx context.Context) (*models.TradeStats, error) {
	var s models.TradeStats
	err := r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(CASE WHEN outcome = 'FILLED' THEN 1 END),
			COUNT(CASE WHEN outcome = 'FAILED' THEN 1 END),
			COUNT(CASE WHEN side = 'buy' THEN 1 END),
			COUNT(CASE WHEN side = 'sell' THEN 1 END),
			SUM(CASE WHEN outcome = 'FILLED' THEN amount_in END),
			AVG(gap_pct),
			MIN(timestamp),
			MAX(timestamp)
		 FROM trade_history`,
	).Scan(
		&s.TotalTrades, &s.FilledCount, &s.FailedCount,
		&s.BuyCount, &s.SellCount,
		&s.TotalVolume, &s.AvgGapPct, &s.FirstTrade, &s.LastTrade,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CountToday counts filled trades for the current trading day. Rejected and
// failed attempts do not consume the daily budget.
func (r *TradeRepo) CountToday(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM trade_history
		 WHERE trading_day = $1 AND outcome = 'FILLED'`,
		TradingDayNow(),
	).Scan(&count)
	return count, err
}

// --- scan helpers ---

func scanTrade(row scannable) (*models.TradeRecord, error) {
	var t models.TradeRecord
	var td time.Time
	err := row.Scan(
		&t.ID, &t.Timestamp, &td, &t.Side, &t.AmountIn, &t.AmountOut,
		&t.ReferencePrice, &t.DexPrice, &t.GapPct, &t.Outcome, &t.Reason,
		&t.Error, &t.TxHash, &t.IsPaperTrade, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.TradingDay = td.Format("2006-01-02")
	return &t, nil
}

func collectTrades(rows rowsIter) ([]models.TradeRecord, error) {
	var out []models.TradeRecord
	for rows.Next() {
		var t models.TradeRecord
		var td time.Time
		if err := rows.Scan(
			&t.ID, &t.Timestamp, &td, &t.Side, &t.AmountIn, &t.AmountOut,
			&t.ReferencePrice, &t.DexPrice, &t.GapPct, &t.Outcome, &t.Reason,
			&t.Error, &t.TxHash, &t.IsPaperTrade, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		t.TradingDay = td.Format("2006-01-02")
		out = append(out, t)
	}
	return out, rows.Err()
}
