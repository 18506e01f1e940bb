// Package performance computes trading statistics from the persisted trade
// log.
package performance

import (
	"database/sql"
	"fmt"
	"math"
)

// Tracker computes per-bot performance metrics from the database.
type Tracker struct {
	sqlDB *sql.DB
}

func NewTracker(sqlDB *sql.DB) *Tracker {
	return &Tracker{sqlDB: sqlDB}
}

// Report contains the metrics for one bot.
type Report struct {
	BotID          string
	TotalTrades    int
	ResolvedTrades int
	TotalStaked    float64
	TotalPnL       float64
	ROI            float64
	WinRate        float64
	MaxDrawdown    float64
	ExitStats      map[string]ExitStats
}

// ExitStats breaks results down by exit category (trailing stop, hard
// stop, take profit, signal reversal).
type ExitStats struct {
	Count   int
	PnL     float64
	WinRate float64
}

// Generate computes the full report for one bot.
func (t *Tracker) Generate(botID string) (*Report, error) {
	r := &Report{BotID: botID, ExitStats: make(map[string]ExitStats)}

	if err := t.computeOverall(r); err != nil {
		return nil, fmt.Errorf("computing overall stats: %w", err)
	}
	if err := t.computeExitStats(r); err != nil {
		return nil, fmt.Errorf("computing exit stats: %w", err)
	}
	if err := t.computeDrawdown(r); err != nil {
		return nil, fmt.Errorf("computing drawdown: %w", err)
	}
	return r, nil
}

func (t *Tracker) computeOverall(r *Report) error {
	row := t.sqlDB.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM trades WHERE bot_id=?`, r.BotID)
	if err := row.Scan(&r.TotalTrades, &r.TotalStaked); err != nil {
		return err
	}

	var wins int
	row = t.sqlDB.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(pnl), 0), COALESCE(SUM(won), 0)
		FROM trades WHERE bot_id=? AND resolved=1`, r.BotID)
	if err := row.Scan(&r.ResolvedTrades, &r.TotalPnL, &wins); err != nil {
		return err
	}

	if r.TotalStaked > 0 {
		r.ROI = r.TotalPnL / r.TotalStaked
	}
	if r.ResolvedTrades > 0 {
		r.WinRate = float64(wins) / float64(r.ResolvedTrades)
	}
	return nil
}

func (t *Tracker) computeExitStats(r *Report) error {
	rows, err := t.sqlDB.Query(`
		SELECT exit_category, COUNT(*), COALESCE(SUM(pnl), 0), COALESCE(SUM(won), 0)
		FROM trades WHERE bot_id=? AND resolved=1
		GROUP BY exit_category`, r.BotID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var stats ExitStats
		var wins int
		if err := rows.Scan(&name, &stats.Count, &stats.PnL, &wins); err != nil {
			return err
		}
		if stats.Count > 0 {
			stats.WinRate = float64(wins) / float64(stats.Count)
		}
		r.ExitStats[name] = stats
	}
	return rows.Err()
}

// computeDrawdown walks the cumulative PnL curve in trade order.
func (t *Tracker) computeDrawdown(r *Report) error {
	rows, err := t.sqlDB.Query(`
		SELECT pnl FROM trades WHERE bot_id=? AND resolved=1
		ORDER BY exit_time ASC`, r.BotID)
	if err != nil {
		return err
	}
	defer rows.Close()

	var equity, peak, maxDD float64
	for rows.Next() {
		var pnl float64
		if err := rows.Scan(&pnl); err != nil {
			return err
		}
		equity += pnl
		if equity > peak {
			peak = equity
		}
		maxDD = math.Max(maxDD, peak-equity)
	}
	r.MaxDrawdown = maxDD
	return rows.Err()
}
