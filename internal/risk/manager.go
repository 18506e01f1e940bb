// Package risk implements per-bot trade admission control: cooldowns,
// daily loss limits, loss streaks, and per-window trade caps.
package risk

import (
	"math"
	"sync"
	"time"

	"quarterhour/internal/config"
	"quarterhour/internal/signal"
)

// Rejection reasons reported by CanTrade.
const (
	ReasonOK                = "ok"
	ReasonCooldown          = "cooldown_active"
	ReasonDailyLossLimit    = "daily_loss_limit"
	ReasonConsecutiveLosses = "max_consecutive_losses"
	ReasonWindowTradeCap    = "window_trade_cap"
	ReasonSignalNotTradable = "signal_not_tradable"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	Reason  string
}

// State is an observability snapshot of the manager's counters.
type State struct {
	Day               time.Time
	DailyPnL          float64
	ConsecutiveLosses int
	InCooldown        bool
	CooldownUntil     time.Time
	WindowTrades      map[string]int
}

// Manager enforces the risk policy for one bot. Safe for concurrent use,
// though the bot loop calls it sequentially.
type Manager struct {
	cfg config.RiskConfig

	mu                sync.Mutex
	day               time.Time
	dailyPnL          float64
	consecutiveLosses int
	cooldownUntil     time.Time
	windowTrades      map[string]int
}

func NewManager(cfg config.RiskConfig) *Manager {
	return &Manager{cfg: cfg, windowTrades: make(map[string]int)}
}

// resetIfNewDay lazily clears daily state on the first check of a new UTC
// calendar day. Callers hold m.mu.
func (m *Manager) resetIfNewDay(now time.Time) {
	day := now.UTC().Truncate(24 * time.Hour)
	if day.Equal(m.day) {
		return
	}
	m.day = day
	m.dailyPnL = 0
	m.consecutiveLosses = 0
	m.cooldownUntil = time.Time{}
	m.windowTrades = make(map[string]int)
}

// CanTrade runs the ordered admission checks for a prospective entry.
// Hitting the daily loss limit or the loss streak also starts the cooldown
// timer, so subsequent checks fail fast on the cooldown reason.
func (m *Manager) CanTrade(sig signal.Composite, marketID string, now time.Time) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetIfNewDay(now)

	if now.Before(m.cooldownUntil) {
		return Decision{Reason: ReasonCooldown}
	}
	if m.dailyPnL <= -m.cfg.MaxDailyLoss {
		m.cooldownUntil = now.Add(m.cfg.Cooldown.Duration)
		return Decision{Reason: ReasonDailyLossLimit}
	}
	if m.consecutiveLosses >= m.cfg.MaxConsecutiveLosses {
		m.cooldownUntil = now.Add(m.cfg.Cooldown.Duration)
		return Decision{Reason: ReasonConsecutiveLosses}
	}
	if m.windowTrades[marketID] >= m.cfg.MaxTradesPerWindow {
		return Decision{Reason: ReasonWindowTradeCap}
	}
	if !sig.ShouldTrade {
		return Decision{Reason: ReasonSignalNotTradable}
	}
	return Decision{Allowed: true, Reason: ReasonOK}
}

// PositionSize returns the stake for a new trade: the configured maximum,
// shrunk to whatever remains of the daily loss budget, never negative.
func (m *Manager) PositionSize(now time.Time) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetIfNewDay(now)

	remaining := math.Max(0, m.cfg.MaxDailyLoss+m.dailyPnL)
	size := math.Min(m.cfg.MaxPositionSize, remaining)
	return math.Round(size*100) / 100
}

// RecordTradeResult is the single mutation point for trade outcomes.
func (m *Manager) RecordTradeResult(pnl float64, marketID string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetIfNewDay(now)

	m.dailyPnL += pnl
	if pnl < 0 {
		m.consecutiveLosses++
	} else {
		m.consecutiveLosses = 0
	}
	m.windowTrades[marketID]++
}

// OnMarketChange clears the per-window trade counters when the bot rolls
// to a new 15-minute market. Daily state is untouched.
func (m *Manager) OnMarketChange() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windowTrades = make(map[string]int)
}

// State returns a copy of the current counters.
func (m *Manager) State(now time.Time) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetIfNewDay(now)

	trades := make(map[string]int, len(m.windowTrades))
	for k, v := range m.windowTrades {
		trades[k] = v
	}
	return State{
		Day:               m.day,
		DailyPnL:          m.dailyPnL,
		ConsecutiveLosses: m.consecutiveLosses,
		InCooldown:        now.Before(m.cooldownUntil),
		CooldownUntil:     m.cooldownUntil,
		WindowTrades:      trades,
	}
}
