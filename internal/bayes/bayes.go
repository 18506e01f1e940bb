// Package bayes gates trade entries on the historical win rate of the
// current evidence combination, with Laplace smoothing and conservative
// fallbacks while history is thin.
package bayes

import (
	"fmt"
	"sync"
	"time"

	"quarterhour/internal/signal"
)

// priorCacheTTL bounds how stale the cached prior may be.
const priorCacheTTL = 60 * time.Second

// Fallback reasons reported on Result when the posterior could not be
// computed from history.
const (
	ReasonInsufficientHistory = "insufficient_history"
	ReasonUnseenEvidence      = "unseen_evidence_combination"
)

// LikelihoodRow holds the outcome counters for one evidence pair.
type LikelihoodRow struct {
	L1     signal.Evidence
	L2     signal.Evidence
	Wins   int
	Losses int
	Total  int
}

// Store is the persistence layer behind a Gate. Likelihood reports
// found=false for a pair with no recorded outcomes.
type Store interface {
	Likelihood(botID string, l1, l2 signal.Evidence) (row LikelihoodRow, found bool, err error)
	RecordOutcome(botID string, l1, l2 signal.Evidence, won bool) error
	RecentOutcomes(botID string, window int) (wins, total int, err error)
}

// Config is the per-bot tuning for a Gate.
type Config struct {
	RollingWindow       int
	MinSampleSize       int
	DefaultConfidence   float64
	ConfidenceThreshold float64
	SmoothingAlpha      float64
}

// Result is one posterior evaluation.
type Result struct {
	Posterior float64
	Prior     float64
	Gate      bool
	Fallback  bool
	Reason    string
}

// Gate computes P(win | evidence) for one bot. Safe for concurrent use;
// in practice each bot loop owns its own Gate.
type Gate struct {
	cfg   Config
	store Store
	botID string

	mu     sync.Mutex
	cached *cachedPrior
}

type cachedPrior struct {
	value      float64
	total      int
	computedAt time.Time
}

func NewGate(cfg Config, store Store, botID string) *Gate {
	return &Gate{cfg: cfg, store: store, botID: botID}
}

// Prior returns the smoothed base win rate over the rolling window,
// cached for up to a minute. Below the minimum sample size it returns 0.5
// without caching, so the first real prior is computed as soon as enough
// history exists.
func (g *Gate) Prior(now time.Time) (float64, error) {
	p, _, err := g.prior(now)
	return p, err
}

func (g *Gate) prior(now time.Time) (value float64, total int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c := g.cached; c != nil && now.Sub(c.computedAt) <= priorCacheTTL {
		return c.value, c.total, nil
	}

	wins, total, err := g.store.RecentOutcomes(g.botID, g.cfg.RollingWindow)
	if err != nil {
		return 0, 0, fmt.Errorf("loading trade history: %w", err)
	}

	if total < g.cfg.MinSampleSize {
		return 0.5, total, nil
	}

	a := g.cfg.SmoothingAlpha
	value = (float64(wins) + a) / (float64(total) + 2*a)
	g.cached = &cachedPrior{value: value, total: total, computedAt: now}
	return value, total, nil
}

// Evaluate computes the posterior win probability for an evidence pair.
// History gaps produce a fallback result that passes the gate at the
// configured default confidence rather than blocking the trade.
func (g *Gate) Evaluate(l1, l2 signal.Evidence, now time.Time) (Result, error) {
	prior, total, err := g.prior(now)
	if err != nil {
		return Result{}, err
	}

	if total < g.cfg.MinSampleSize {
		return Result{
			Posterior: g.cfg.DefaultConfidence,
			Prior:     prior,
			Gate:      true,
			Fallback:  true,
			Reason:    ReasonInsufficientHistory,
		}, nil
	}

	row, found, err := g.store.Likelihood(g.botID, l1, l2)
	if err != nil {
		return Result{}, fmt.Errorf("loading likelihood: %w", err)
	}
	if !found || row.Total == 0 {
		return Result{
			Posterior: g.cfg.DefaultConfidence,
			Prior:     prior,
			Gate:      true,
			Fallback:  true,
			Reason:    ReasonUnseenEvidence,
		}, nil
	}

	a := g.cfg.SmoothingAlpha
	pWin := (float64(row.Wins) + a) / (float64(row.Total) + 2*a)
	pLoss := (float64(row.Losses) + a) / (float64(row.Total) + 2*a)
	posterior := posteriorOdds(prior, pWin, pLoss)

	return Result{
		Posterior: posterior,
		Prior:     prior,
		Gate:      posterior >= g.cfg.ConfidenceThreshold,
	}, nil
}

// posteriorOdds applies Bayes' rule. Zero evidence probability falls back
// to 0.5 rather than dividing by zero.
func posteriorOdds(prior, pWin, pLoss float64) float64 {
	pEvidence := pWin*prior + pLoss*(1-prior)
	if pEvidence <= 0 {
		return 0.5
	}
	return pWin * prior / pEvidence
}

// RecordOutcome persists a resolved trade's outcome for its evidence pair
// and invalidates the cached prior. The caller resolves each trade exactly
// once.
func (g *Gate) RecordOutcome(l1, l2 signal.Evidence, won bool) error {
	if err := g.store.RecordOutcome(g.botID, l1, l2, won); err != nil {
		return fmt.Errorf("recording outcome: %w", err)
	}
	g.mu.Lock()
	g.cached = nil
	g.mu.Unlock()
	return nil
}
