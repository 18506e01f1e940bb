// Package sim provides a random-walk market simulator for dry runs. It
// stands in for the venue collaborators: reference-asset candles for the
// feed and contract quotes for the engine.
package sim

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"quarterhour/internal/candle"
	"quarterhour/internal/indicator"
	"quarterhour/internal/market"
)

// driftSensitivity maps reference-asset drift within the window onto the
// contract's probability. A 0.1% move shifts the contract by ~0.2.
const driftSensitivity = 200

// backfillMinutes is how much history the walk seeds on construction so
// every timeframe, daily included, has enough candles immediately.
const backfillMinutes = 210 * 24 * 60

// Walk is a geometric random walk over one reference asset, extended lazily
// to the current minute. Safe for concurrent use.
type Walk struct {
	mu      sync.Mutex
	rng     *rand.Rand
	start   time.Time // timestamp of minutes[0]
	minutes []float64 // per-minute closes
	volumes []float64
	volPct  float64
	spread  float64
}

// New seeds a walk at price start with per-minute volatility volPct
// (fraction, e.g. 0.0005) and a contract bid/ask spread.
func New(seed int64, start, volPct, spread float64, now time.Time) *Walk {
	w := &Walk{
		rng:    rand.New(rand.NewSource(seed)),
		start:  now.Truncate(time.Minute).Add(-backfillMinutes * time.Minute),
		volPct: volPct,
		spread: spread,
	}
	price := start
	for i := 0; i <= backfillMinutes; i++ {
		w.minutes = append(w.minutes, price)
		w.volumes = append(w.volumes, 50+w.rng.Float64()*100)
		price *= 1 + w.rng.NormFloat64()*volPct
	}
	return w
}

// maxRetainedMinutes caps the walk's history; anything older than the
// backfill depth plus a day of slack is never requested again.
const maxRetainedMinutes = backfillMinutes + 24*60

// extend appends minute closes up to now, trimming history the
// aggregators can no longer reach. Callers hold w.mu.
func (w *Walk) extend(now time.Time) {
	want := int(now.Truncate(time.Minute).Sub(w.start)/time.Minute) + 1
	for len(w.minutes) < want {
		last := w.minutes[len(w.minutes)-1]
		w.minutes = append(w.minutes, last*(1+w.rng.NormFloat64()*w.volPct))
		w.volumes = append(w.volumes, 50+w.rng.Float64()*100)
	}
	if excess := len(w.minutes) - maxRetainedMinutes; excess > 0 {
		w.minutes = append([]float64(nil), w.minutes[excess:]...)
		w.volumes = append([]float64(nil), w.volumes[excess:]...)
		w.start = w.start.Add(time.Duration(excess) * time.Minute)
	}
}

// Candles aggregates the minute walk into tf bars, most recent last.
func (w *Walk) Candles(_ context.Context, tf candle.Timeframe, limit int) (candle.Series, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.extend(time.Now())

	step := minutesPer(tf)
	var out candle.Series
	for end := len(w.minutes); end > step && len(out) < limit; end -= step {
		begin := end - step
		bucket := w.minutes[begin:end]
		c := candle.Candle{
			Timestamp: w.start.Add(time.Duration(begin) * time.Minute),
			Open:      bucket[0],
			Close:     bucket[len(bucket)-1],
			High:      bucket[0],
			Low:       bucket[0],
		}
		for i, p := range bucket {
			c.High = math.Max(c.High, p)
			c.Low = math.Min(c.Low, p)
			c.Volume += w.volumes[begin+i]
		}
		out = append(out, c)
	}
	// Reverse into ascending order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Quote derives the up-contract quote from the asset's drift since the
// window opened.
func (w *Walk) Quote(_ context.Context, _ string) (market.Quote, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	w.extend(now)

	mid := w.contractAt(len(w.minutes)-1, now)
	return market.Quote{
		Bid: indicator.Clip(mid-w.spread/2, 0.01, 0.99),
		Ask: indicator.Clip(mid+w.spread/2, 0.01, 0.99),
		Mid: mid,
	}, nil
}

// PriceHistory returns the contract's minute-sampled mid history, most
// recent last.
func (w *Walk) PriceHistory(_ context.Context, _ string, limit int) ([]candle.PricePoint, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	w.extend(now)

	begin := len(w.minutes) - limit
	if begin < 0 {
		begin = 0
	}
	pts := make([]candle.PricePoint, 0, len(w.minutes)-begin)
	for i := begin; i < len(w.minutes); i++ {
		pts = append(pts, candle.PricePoint{
			Timestamp: w.start.Add(time.Duration(i) * time.Minute),
			Price:     w.contractAt(i, now),
		})
	}
	return pts, nil
}

// contractAt maps the walk's drift over the trailing window onto a
// probability-like contract price. Callers hold w.mu.
func (w *Walk) contractAt(i int, now time.Time) float64 {
	winStart := market.CurrentWindow("", now).Start
	open := int(winStart.Sub(w.start) / time.Minute)
	if open < 0 {
		open = 0
	}
	if open > i {
		open = i
	}
	drift := (w.minutes[i] - w.minutes[open]) / w.minutes[open]
	return indicator.Clip(0.5+drift*driftSensitivity, 0.01, 0.99)
}

func minutesPer(tf candle.Timeframe) int {
	switch tf {
	case candle.TF5m:
		return 5
	case candle.TF15m:
		return 15
	case candle.TF1h:
		return 60
	case candle.TF4h:
		return 240
	case candle.TF1d:
		return 1440
	default:
		return 1
	}
}
