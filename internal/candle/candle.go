package candle

import (
	"sort"
	"time"
)

// Timeframe identifies a candle interval.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// AllTimeframes lists the timeframes the engine consumes, shortest first.
var AllTimeframes = []Timeframe{TF1m, TF5m, TF15m, TF1h, TF4h, TF1d}

// Candle is a single OHLCV bar.
type Candle struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Series is a time-ascending sequence of candles for one timeframe.
// The engine only ever reads a Series; the data-feed collaborator owns it.
type Series []Candle

// Closes returns the close prices of the series in order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// Last returns the most recent candle and true, or a zero candle and false
// when the series is empty.
func (s Series) Last() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[len(s)-1], true
}

// Since returns the suffix of the series at or after t.
func (s Series) Since(t time.Time) Series {
	i := sort.Search(len(s), func(i int) bool {
		return !s[i].Timestamp.Before(t)
	})
	return s[i:]
}

// Snapshot is an immutable per-tick view of the reference asset's candles
// across timeframes. Missing timeframes are simply absent from the map.
type Snapshot map[Timeframe]Series

// Get returns the series for tf, which may be nil.
func (s Snapshot) Get(tf Timeframe) Series {
	return s[tf]
}

// PricePoint is one sample of the traded instrument's own price history.
type PricePoint struct {
	Timestamp time.Time
	Price     float64
}
