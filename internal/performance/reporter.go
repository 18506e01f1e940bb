package performance

import (
	"github.com/rs/zerolog"
)

// LogReport emits the report as structured log events.
func LogReport(log zerolog.Logger, r *Report) {
	log.Info().
		Str("bot", r.BotID).
		Int("total_trades", r.TotalTrades).
		Int("resolved_trades", r.ResolvedTrades).
		Float64("total_staked", r.TotalStaked).
		Float64("total_pnl", r.TotalPnL).
		Float64("roi", r.ROI).
		Float64("win_rate", r.WinRate).
		Float64("max_drawdown", r.MaxDrawdown).
		Msg("performance report")

	for name, stats := range r.ExitStats {
		log.Info().
			Str("bot", r.BotID).
			Str("exit_category", name).
			Int("count", stats.Count).
			Float64("pnl", stats.PnL).
			Float64("win_rate", stats.WinRate).
			Msg("exit category performance")
	}
}
