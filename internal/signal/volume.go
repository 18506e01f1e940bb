package signal

import (
	"time"

	"quarterhour/internal/candle"
	"quarterhour/internal/config"
	"quarterhour/internal/indicator"
)

// minSessionCandles is the minimum number of in-session 1m candles the VWAP
// needs before it emits a signal.
const minSessionCandles = 5

// VolumeContext computes the session VWAP and VROC reads from 1-minute
// candles. Both features are individually toggleable in config; when off
// they return neutral values.
type VolumeContext struct {
	cfg config.SignalConfig
}

func NewVolumeContext(cfg config.SignalConfig) *VolumeContext {
	return &VolumeContext{cfg: cfg}
}

// sessionStart returns the most recent session boundary at or before now.
func (v *VolumeContext) sessionStart(now time.Time) time.Time {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), v.cfg.VWAPSessionResetHourUTC, 0, 0, 0, time.UTC)
	if start.After(now) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

// VWAP computes the session-bounded VWAP signal from 1-minute candles.
// Fewer than five in-session candles, or zero total volume, yields an
// invalid (neutral) signal.
func (v *VolumeContext) VWAP(oneMin candle.Series, price float64, now time.Time) VWAPSignal {
	if !v.cfg.VWAPEnabled {
		return VWAPSignal{}
	}

	session := oneMin.Since(v.sessionStart(now))
	if len(session) < minSessionCandles {
		return VWAPSignal{}
	}

	highs := make([]float64, len(session))
	lows := make([]float64, len(session))
	closes := make([]float64, len(session))
	volumes := make([]float64, len(session))
	for i, c := range session {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	vwap, stdDev, ok := indicator.VWAP(highs, lows, closes, volumes)
	if !ok {
		return VWAPSignal{}
	}

	var z float64
	if stdDev > 0 {
		z = (price - vwap) / stdDev
	}

	return VWAPSignal{
		Valid:        true,
		VWAP:         vwap,
		Price:        price,
		Upper1:       vwap + stdDev,
		Lower1:       vwap - stdDev,
		Upper2:       vwap + 2*stdDev,
		Lower2:       vwap - 2*stdDev,
		StdDev:       stdDev,
		BandPosition: z,
		Signal:       indicator.Clip(z/2, -1, 1),
	}
}

// VROC computes the volume rate of change for the latest 1-minute candle
// against the mean of the prior lookback candles. With the feature disabled
// the signal is always confirmed.
func (v *VolumeContext) VROC(oneMin candle.Series) VROCSignal {
	if !v.cfg.VROCEnabled {
		return VROCSignal{Confirmed: true}
	}

	volumes := make([]float64, len(oneMin))
	for i, c := range oneMin {
		volumes[i] = c.Volume
	}

	vroc := indicator.VROC(volumes, v.cfg.VROCLookback)

	sig := VROCSignal{VROC: vroc, Confirmed: vroc >= v.cfg.VROCThreshold}
	if len(volumes) > 0 {
		sig.CurrentVolume = volumes[len(volumes)-1]
	}
	if n := v.cfg.VROCLookback; len(volumes) >= n+1 {
		var sum float64
		for _, vol := range volumes[len(volumes)-1-n : len(volumes)-1] {
			sum += vol
		}
		sig.AvgVolume = sum / float64(n)
	}
	return sig
}
