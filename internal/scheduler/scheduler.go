// Package scheduler drives the periodic loops: candle refreshes, one
// decision loop per bot, and performance reports.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quarterhour/internal/config"
	"quarterhour/internal/engine"
	"quarterhour/internal/feed"
	"quarterhour/internal/performance"
)

// Scheduler owns the run loops. Each bot ticks on its own goroutine, so a
// slow bot never stalls the others; ticks within one bot are strictly
// sequential.
type Scheduler struct {
	feed    *feed.Feed
	bots    []*engine.Bot
	tracker *performance.Tracker
	cfg     config.ScheduleConfig
	log     zerolog.Logger
}

func New(
	f *feed.Feed,
	bots []*engine.Bot,
	tracker *performance.Tracker,
	cfg config.ScheduleConfig,
	log zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		feed:    f,
		bots:    bots,
		tracker: tracker,
		cfg:     cfg,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Run starts all loops and blocks until the context is cancelled. In-flight
// ticks finish before Run returns; sessions are opened on entry and settled
// on the way out.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().
		Dur("tick_interval", s.cfg.TickInterval.Duration).
		Dur("candle_refresh_interval", s.cfg.CandleRefreshInterval.Duration).
		Dur("performance_interval", s.cfg.PerformanceInterval.Duration).
		Int("bots", len(s.bots)).
		Msg("scheduler starting")

	now := time.Now()
	for _, b := range s.bots {
		if err := b.StartSession(now); err != nil {
			return err
		}
	}

	// Warm the candle cache before the first tick fires.
	s.refreshCandles(ctx)

	var wg sync.WaitGroup
	for _, b := range s.bots {
		wg.Add(1)
		go func(b *engine.Bot) {
			defer wg.Done()
			s.runBotLoop(ctx, b)
		}(b)
	}

	candleTicker := time.NewTicker(s.cfg.CandleRefreshInterval.Duration)
	perfTicker := time.NewTicker(s.cfg.PerformanceInterval.Duration)
	defer candleTicker.Stop()
	defer perfTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler shutting down")
			wg.Wait()
			s.endSessions()
			return ctx.Err()
		case <-candleTicker.C:
			s.refreshCandles(ctx)
		case <-perfTicker.C:
			s.runPerformanceReports()
		}
	}
}

// runBotLoop ticks one bot until cancellation.
func (s *Scheduler) runBotLoop(ctx context.Context, b *engine.Bot) {
	b.Tick(ctx, time.Now())

	ticker := time.NewTicker(s.cfg.TickInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Tick(ctx, time.Now())
		}
	}
}

func (s *Scheduler) refreshCandles(ctx context.Context) {
	if err := s.feed.Refresh(ctx, time.Now()); err != nil {
		s.log.Error().Err(err).Msg("candle refresh failed")
	}
}

func (s *Scheduler) runPerformanceReports() {
	for _, b := range s.bots {
		report, err := s.tracker.Generate(b.ID())
		if err != nil {
			s.log.Error().Err(err).Str("bot", b.ID()).Msg("performance report failed")
			continue
		}
		performance.LogReport(s.log, report)
	}
}

func (s *Scheduler) endSessions() {
	now := time.Now()
	for _, b := range s.bots {
		if err := b.EndSession(now); err != nil {
			s.log.Error().Err(err).Msg("session close failed")
		}
	}
}
