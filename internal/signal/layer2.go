package signal

import (
	"sort"

	"quarterhour/internal/candle"
	"quarterhour/internal/config"
	"quarterhour/internal/indicator"
)

// layer2Weights are the fixed per-timeframe weights for the aggregate
// signal. Hand-tuned: 15m and 1h dominate because they carry the trend a
// 15-minute binary market resolves against. Renormalized over whichever
// timeframes actually produced data.
var layer2Weights = map[candle.Timeframe]float64{
	candle.TF1m:  0.10,
	candle.TF5m:  0.15,
	candle.TF15m: 0.35,
	candle.TF1h:  0.30,
	candle.TF4h:  0.05,
	candle.TF1d:  0.05,
}

// directionBuffer ignores sub-signals weaker than this when counting
// alignment and evaluating the fighting-trend veto.
const directionBuffer = 0.1

// Layer2Analyzer derives a directional score from the reference asset's
// candles across up to six timeframes.
type Layer2Analyzer struct {
	cfg config.SignalConfig
}

func NewLayer2Analyzer(cfg config.SignalConfig) *Layer2Analyzer {
	return &Layer2Analyzer{cfg: cfg}
}

func (a *Layer2Analyzer) emaPeriods(tf candle.Timeframe) []int {
	switch tf {
	case candle.TF1m:
		return a.cfg.EMA1m
	case candle.TF5m:
		return a.cfg.EMA5m
	case candle.TF15m:
		return a.cfg.EMA15m
	case candle.TF1h:
		return a.cfg.EMA1h
	case candle.TF4h:
		return a.cfg.EMA4h
	case candle.TF1d:
		return a.cfg.EMA1d
	default:
		return nil
	}
}

// Analyze computes the aggregate layer-2 signal from a candle snapshot.
// Missing timeframes are skipped; with no usable timeframes at all the zero
// signal is returned.
func (a *Layer2Analyzer) Analyze(snap candle.Snapshot) Layer2Signal {
	tfSignals := make(map[string]float64)
	var weightedSum, totalWeight float64
	var bullish, bearish, computed int

	for _, tf := range candle.AllTimeframes {
		series := snap.Get(tf)
		if len(series) == 0 {
			continue
		}

		sig := emaSignal(series, a.emaPeriods(tf))
		tfSignals[string(tf)] = sig

		weightedSum += sig * layer2Weights[tf]
		totalWeight += layer2Weights[tf]
		computed++

		if sig > directionBuffer {
			bullish++
		} else if sig < -directionBuffer {
			bearish++
		}
	}

	if totalWeight == 0 {
		return Layer2Signal{TimeframeSignals: tfSignals}
	}

	direction := weightedSum / totalWeight

	alignment := bullish
	if bearish > alignment {
		alignment = bearish
	}

	// Confidence rides on how many timeframes agree; direction magnitude
	// adds a small bonus.
	alignmentRatio := float64(alignment) / float64(computed)
	var base float64
	switch {
	case alignmentRatio >= 0.8:
		base = 0.80
	case alignmentRatio >= 0.67:
		base = 0.55
	case alignmentRatio >= 0.5:
		base = 0.30
	default:
		base = 0.10
	}
	bonus := indicator.Clip(direction*0.5, -0.20, 0.20)
	if bonus < 0 {
		bonus = -bonus
	}
	confidence := indicator.Clip(base+bonus, 0, 1)

	// Fighting-trend veto: a direction that disagrees with the 15m or 1h
	// sub-signal is not tradeable no matter how aligned the rest looks.
	// Evaluated after confidence on purpose; it overrides everything.
	sig15m := tfSignals[string(candle.TF15m)]
	sig1h := tfSignals[string(candle.TF1h)]
	vetoed := false
	if direction > directionBuffer {
		vetoed = sig15m < -directionBuffer || sig1h < -directionBuffer
	} else if direction < -directionBuffer {
		vetoed = sig15m > directionBuffer || sig1h > directionBuffer
	}
	if vetoed {
		direction = 0
		confidence = 0
	}

	return Layer2Signal{
		TimeframeSignals: tfSignals,
		AlignmentCount:   alignment,
		TotalTimeframes:  computed,
		Direction:        indicator.Clip(direction, -1, 1),
		Confidence:       confidence,
		Vetoed:           vetoed,
	}
}

// Pressure is the short-horizon reference-asset read used only by the exit
// engine to scale stop widths.
type Pressure struct {
	Pressure  float64 // [-1, 1]
	Momentum  float64 // raw 1m momentum, clipped to [-1, 1]
	Alignment int
	Total     int
	Details   map[string]float64
}

// shortTermWeights weight the three short timeframes for exit pressure;
// 1m heaviest because it is the most immediate.
var shortTermWeights = map[candle.Timeframe]float64{
	candle.TF1m:  0.45,
	candle.TF5m:  0.35,
	candle.TF15m: 0.20,
}

// ShortTermPressure computes the 1m/5m/15m-only pressure signal,
// independent of the six-timeframe aggregate.
func (a *Layer2Analyzer) ShortTermPressure(snap candle.Snapshot) Pressure {
	details := make(map[string]float64)
	var weightedSum, totalWeight float64
	var bullish, bearish int

	for _, tf := range []candle.Timeframe{candle.TF1m, candle.TF5m, candle.TF15m} {
		series := snap.Get(tf)
		if len(series) == 0 {
			continue
		}

		sig := emaSignal(series, a.emaPeriods(tf))
		details[string(tf)] = sig
		weightedSum += sig * shortTermWeights[tf]
		totalWeight += shortTermWeights[tf]

		if sig > directionBuffer {
			bullish++
		} else if sig < -directionBuffer {
			bearish++
		}
	}

	if totalWeight == 0 {
		return Pressure{Details: details}
	}

	// Raw momentum from the 1m series, the most sensitive horizon.
	var momentum float64
	if oneMin := snap.Get(candle.TF1m); len(oneMin) >= 4 {
		closes := oneMin.Closes()
		base := closes[len(closes)-4]
		if base != 0 {
			momentum = indicator.Clip((closes[len(closes)-1]-base)/base*100, -1, 1)
		}
	}

	alignment := bullish
	if bearish > alignment {
		alignment = bearish
	}

	return Pressure{
		Pressure:  indicator.Clip(weightedSum/totalWeight, -1, 1),
		Momentum:  momentum,
		Alignment: alignment,
		Total:     len(details),
		Details:   details,
	}
}

// emaSignal computes the per-timeframe sub-signal from EMA positioning,
// EMA ordering, and 3-candle momentum (weighted 0.40/0.35/0.25).
// Requires max(periods)+1 candles, else 0.
func emaSignal(series candle.Series, periods []int) float64 {
	if len(periods) == 0 {
		return 0
	}

	sorted := append([]int(nil), periods...)
	sort.Ints(sorted)
	if len(series) < sorted[len(sorted)-1]+1 {
		return 0
	}

	closes := series.Closes()
	price := closes[len(closes)-1]

	emas := make([]float64, len(sorted))
	for i, p := range sorted {
		emas[i] = indicator.EMA(closes, p)
	}

	// Component 1: fraction of EMAs below price, mapped to [-1, 1].
	above := 0
	for _, e := range emas {
		if price > e {
			above++
		}
	}
	positionSignal := float64(above)/float64(len(emas))*2 - 1

	// Component 2: pairwise EMA ordering (short above long = bullish).
	var orderingSignal float64
	if len(emas) >= 2 {
		score, pairs := 0, 0
		for i := 0; i < len(emas); i++ {
			for j := i + 1; j < len(emas); j++ {
				if emas[i] > emas[j] {
					score++
				} else {
					score--
				}
				pairs++
			}
		}
		orderingSignal = float64(score) / float64(pairs)
	}

	// Component 3: momentum over the last 3 candles.
	var momentumSignal float64
	if len(closes) >= 4 {
		base := closes[len(closes)-4]
		if base != 0 {
			momentumSignal = indicator.Clip((closes[len(closes)-1]-base)/base*50, -1, 1)
		}
	}

	combined := 0.40*positionSignal + 0.35*orderingSignal + 0.25*momentumSignal
	return indicator.Clip(combined, -1, 1)
}
