package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dexarb/internal/models"
)

type GapRepo struct {
	pool *pgxpool.Pool
}

func NewGapRepo(pool *pgxpool.Pool) *GapRepo {
	return &GapRepo{pool: pool}
}

func (r *GapRepo) Record(ctx context.Context, refPrice, dexPrice, gapPct float64, ts time.Time) (*models.GapPoint, error) {
	td := TradingDay(ts)
	row := r.pool.QueryRow(ctx,
		`INSERT INTO gap_history (timestamp, reference_price, dex_price, gap_pct, trading_day)
		 VALUES ($1, $2, $3, $4, $5) RETURNING *`,
		ts, refPrice, dexPrice, gapPct, td,
	)
	return scanGap(row)
}

func (r *GapRepo) GetByDay(ctx context.Context, tradingDay string) ([]models.GapPoint, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT * FROM gap_history WHERE trading_day = $1 ORDER BY timestamp ASC`,
		tradingDay,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGaps(rows)
}

func (r *GapRepo) GetAvailableDays(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT trading_day FROM gap_history ORDER BY trading_day ASC LIMIT 30`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		days = append(days, d.Format("2006-01-02"))
	}
	return days, rows.Err()
}

func (r *GapRepo) GetLatest(ctx context.Context) (*models.GapPoint, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT * FROM gap_history ORDER BY timestamp DESC LIMIT 1`,
	)
	p, err := scanGap(row)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanGap(row scannable) (*models.GapPoint, error) {
	var p models.GapPoint
	var td time.Time
	err := row.Scan(&p.ID, &p.Timestamp, &p.ReferencePrice, &p.DexPrice, &p.GapPct, &td, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.TradingDay = td.Format("2006-01-02")
	return &p, nil
}

func collectGaps(rows rowsIter) ([]models.GapPoint, error) {
	var out []models.GapPoint
	for rows.Next() {
		var p models.GapPoint
		var td time.Time
		if err := rows.Scan(&p.ID, &p.Timestamp, &p.ReferencePrice, &p.DexPrice, &p.GapPct, &td, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.TradingDay = td.Format("2006-01-02")
		out = append(out, p)
	}
	return out, rows.Err()
}
