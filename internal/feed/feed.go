// Package feed keeps the shared reference-asset candle cache fresh. It is
// the single writer; bot loops only read snapshots.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"quarterhour/internal/candle"
)

// CandleProvider fetches reference-asset candles for one timeframe,
// oldest first.
type CandleProvider interface {
	Candles(ctx context.Context, tf candle.Timeframe, limit int) (candle.Series, error)
}

// candleLimit is how much history each refresh requests; enough for the
// longest configured EMA (200 on 1d) plus warmup.
const candleLimit = 300

// Feed refreshes the candle cache on demand.
type Feed struct {
	provider CandleProvider
	cache    *candle.Cache
	log      zerolog.Logger
}

func New(provider CandleProvider, cache *candle.Cache, log zerolog.Logger) *Feed {
	return &Feed{
		provider: provider,
		cache:    cache,
		log:      log.With().Str("component", "feed").Logger(),
	}
}

// Refresh fetches every timeframe and swaps the new snapshot in. A failed
// timeframe keeps its previous series; the cache only goes stale, never
// partial-empty.
func (f *Feed) Refresh(ctx context.Context, now time.Time) error {
	var firstErr error
	updated := 0
	for _, tf := range candle.AllTimeframes {
		series, err := f.provider.Candles(ctx, tf, candleLimit)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("fetching %s candles: %w", tf, err)
			}
			f.log.Warn().Err(err).Str("timeframe", string(tf)).Msg("candle fetch failed")
			continue
		}
		f.cache.SetSeries(tf, series, now)
		updated++
	}

	f.log.Debug().Int("timeframes", updated).Msg("candle cache refreshed")
	if updated == 0 && firstErr != nil {
		return firstErr
	}
	return nil
}
