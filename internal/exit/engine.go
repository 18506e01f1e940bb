// Package exit decides when an open position should be closed. Checks run
// in a fixed priority order and at most one exit fires per tick.
package exit

import (
	"fmt"
	"time"

	"quarterhour/internal/config"
	"quarterhour/internal/indicator"
	"quarterhour/internal/signal"
)

// Exit reason categories.
const (
	CategoryTrailingStop   = "trailing_stop"
	CategoryTakeProfit     = "take_profit"
	CategoryHardStop       = "hard_stop"
	CategorySignalReversal = "signal_reversal"
)

// Effective trailing percentages are clamped to this range no matter what
// the pressure multiplier does.
const (
	minEffectiveTrailing = 0.02
	maxEffectiveTrailing = 0.40
)

// boundaryEpsilon absorbs float rounding in the threshold comparisons so a
// drawdown of exactly the configured percentage still fires.
const boundaryEpsilon = 1e-9

// PositionView is the slice of position state the exit checks need. The
// caller refreshes CurrentPrice and PeakPrice before each check.
type PositionView struct {
	Side         signal.Side
	EntryPrice   float64
	CurrentPrice float64
	PeakPrice    float64
	EntryTime    time.Time
}

// Decision reports whether, and why, a position should be closed.
type Decision struct {
	Exit     bool
	Reason   string
	Category string
}

// Engine evaluates the exit policy for one bot's open position.
type Engine struct {
	cfg config.ExitConfig
}

func NewEngine(cfg config.ExitConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Check runs the priority-ordered exit checks once. windowEnd is the
// resolution time of the current 15-minute market; pressure is the
// short-term reference-asset read used to scale the trailing stop.
func (e *Engine) Check(pos PositionView, composite signal.Composite, pressure signal.Pressure, windowEnd, now time.Time) Decision {
	if !e.cfg.Enabled || pos.Side == signal.SideNone {
		return Decision{}
	}

	// Minimum hold: give an entry room to breathe before any exit logic.
	if now.Sub(pos.EntryTime) < e.cfg.MinHold.Duration {
		return Decision{}
	}

	if d := e.checkTrailingStop(pos, pressure, windowEnd, now); d.Exit {
		return d
	}
	if d := e.checkTakeProfit(pos); d.Exit {
		return d
	}
	if d := e.checkHardStop(pos); d.Exit {
		return d
	}
	return e.checkSignalReversal(pos, composite)
}

// baseTrailingPct selects the trailing width by how close the market is to
// resolution: stops tighten as the window runs out.
func (e *Engine) baseTrailingPct(windowEnd, now time.Time) float64 {
	remaining := windowEnd.Sub(now)
	switch {
	case remaining <= e.cfg.FinalZone.Duration:
		return e.cfg.FinalTrailingPct
	case remaining <= e.cfg.TightenAt.Duration:
		return e.cfg.TightenedTrailingPct
	default:
		return e.cfg.TrailingStopPct
	}
}

// pressureMultiplier widens the stop when short-term pressure favors the
// held side and tightens it when pressure runs against it. Inside the
// neutral zone the stop is left alone.
func (e *Engine) pressureMultiplier(side signal.Side, pressure signal.Pressure) float64 {
	if !e.cfg.PressureScalingEnabled {
		return 1.0
	}

	aligned := pressure.Pressure
	if side == signal.SideDown {
		aligned = -aligned
	}

	nz := e.cfg.PressureNeutralZone
	mag := aligned
	if mag < 0 {
		mag = -mag
	}
	if mag < nz || nz >= 1 {
		return 1.0
	}

	// Linear ramp from 1.0 at the neutral-zone edge to the configured
	// extreme as |aligned| approaches 1.
	frac := (mag - nz) / (1 - nz)
	if aligned > 0 {
		return 1.0 + frac*(e.cfg.PressureWidenMax-1.0)
	}
	return 1.0 - frac*(1.0-e.cfg.PressureTightenMin)
}

func (e *Engine) checkTrailingStop(pos PositionView, pressure signal.Pressure, windowEnd, now time.Time) Decision {
	if pos.PeakPrice <= 0 {
		return Decision{}
	}

	effective := e.baseTrailingPct(windowEnd, now) * e.pressureMultiplier(pos.Side, pressure)

	// Scaling take profit: the deeper the position is in profit, the
	// tighter it trails, down to the configured floor.
	if e.cfg.ScalingTPEnabled && pos.EntryPrice > 0 {
		if gain := (pos.CurrentPrice - pos.EntryPrice) / pos.EntryPrice; gain > 0 {
			scaled := effective * (1 - e.cfg.ScalingTPPct*gain)
			if scaled < e.cfg.ScalingTPMinTrail {
				scaled = e.cfg.ScalingTPMinTrail
			}
			effective = scaled
		}
	}
	effective = indicator.Clip(effective, minEffectiveTrailing, maxEffectiveTrailing)

	drawdown := (pos.PeakPrice - pos.CurrentPrice) / pos.PeakPrice
	if drawdown >= effective-boundaryEpsilon {
		return Decision{
			Exit:     true,
			Category: CategoryTrailingStop,
			Reason: fmt.Sprintf("trailing stop: %.1f%% off peak %.3f (limit %.1f%%)",
				drawdown*100, pos.PeakPrice, effective*100),
		}
	}
	return Decision{}
}

func (e *Engine) checkTakeProfit(pos PositionView) Decision {
	if !e.cfg.HardTPEnabled || pos.EntryPrice <= 0 {
		return Decision{}
	}
	gain := (pos.CurrentPrice - pos.EntryPrice) / pos.EntryPrice
	if gain >= e.cfg.HardTPPct-boundaryEpsilon {
		return Decision{
			Exit:     true,
			Category: CategoryTakeProfit,
			Reason:   fmt.Sprintf("take profit: +%.1f%% from entry %.3f", gain*100, pos.EntryPrice),
		}
	}
	return Decision{}
}

// checkHardStop is the never-pressure-adjusted loss backstop.
func (e *Engine) checkHardStop(pos PositionView) Decision {
	if pos.EntryPrice <= 0 {
		return Decision{}
	}
	loss := (pos.EntryPrice - pos.CurrentPrice) / pos.EntryPrice
	if loss >= e.cfg.HardStopPct-boundaryEpsilon {
		return Decision{
			Exit:     true,
			Category: CategoryHardStop,
			Reason:   fmt.Sprintf("hard stop: -%.1f%% from entry %.3f", loss*100, pos.EntryPrice),
		}
	}
	return Decision{}
}

func (e *Engine) checkSignalReversal(pos PositionView, composite signal.Composite) Decision {
	th := e.cfg.SignalReversalThreshold
	reversed := (pos.Side == signal.SideUp && composite.Score <= -th) ||
		(pos.Side == signal.SideDown && composite.Score >= th)
	if !reversed {
		return Decision{}
	}
	return Decision{
		Exit:     true,
		Category: CategorySignalReversal,
		Reason:   fmt.Sprintf("signal reversal: composite %.2f against %s position", composite.Score, pos.Side),
	}
}
