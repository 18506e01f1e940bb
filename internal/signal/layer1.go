package signal

import (
	"math"

	"quarterhour/internal/candle"
	"quarterhour/internal/config"
	"quarterhour/internal/indicator"
)

// minLayer1Samples is the minimum price history needed before layer 1
// produces anything other than a neutral signal.
const minLayer1Samples = 30

// Layer1Analyzer derives a directional score from the traded instrument's
// own price history: a mean-reversion RSI read blended with MACD
// trend-following and raw momentum.
type Layer1Analyzer struct {
	cfg config.SignalConfig
}

func NewLayer1Analyzer(cfg config.SignalConfig) *Layer1Analyzer {
	return &Layer1Analyzer{cfg: cfg}
}

// Analyze computes the layer-1 signal. With fewer than 30 samples it
// returns the zero signal (direction 0, confidence 0); it never fails.
func (a *Layer1Analyzer) Analyze(points []candle.PricePoint) Layer1Signal {
	if len(points) < minLayer1Samples {
		return Layer1Signal{RSI: 50}
	}

	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
	}

	rsi := indicator.RSI(prices, a.cfg.RSIPeriod)
	macd := indicator.MACD(prices, a.cfg.MACDFast, a.cfg.MACDSlow, a.cfg.MACDSignal)
	momentum := indicator.Momentum(prices, a.cfg.MomentumLookback)

	// Score accumulation. RSI extremes are treated as mean-reversion
	// signals; mid-range RSI contributes only a small trend nudge.
	var score, rsiBias float64
	switch {
	case rsi > a.cfg.RSIOverbought:
		rsiBias = -0.5
	case rsi < a.cfg.RSIOversold:
		rsiBias = 0.5
	case rsi > 50:
		rsiBias = 0.1
	case rsi < 50:
		rsiBias = -0.1
	}
	score += rsiBias

	var macdBias float64
	if macd.Histogram > 0 {
		macdBias = 0.5
		if macd.MACD > 0 {
			macdBias += 0.2
		}
	} else if macd.Histogram < 0 {
		macdBias = -0.5
		if macd.MACD < 0 {
			macdBias -= 0.2
		}
	}
	score += macdBias

	var momentumBias float64
	if momentum > 0.01 {
		momentumBias = 0.3
	} else if momentum < -0.01 {
		momentumBias = -0.3
	}
	score += momentumBias

	confidence := 0.0
	if rsiBias*macdBias > 0 {
		confidence += 0.3
	}
	if macdBias*momentumBias > 0 {
		confidence += 0.3
	}
	if rsi >= 90 || rsi <= 10 {
		confidence += 0.2
	}
	if math.Abs(momentum) > 0.05 {
		confidence += 0.2
	}

	return Layer1Signal{
		RSI:           rsi,
		MACD:          macd.MACD,
		MACDSignal:    macd.Signal,
		MACDHistogram: macd.Histogram,
		Momentum:      momentum,
		Direction:     indicator.Clip(score, -1, 1),
		// Floor at 0.1 so a computed confidence is never exactly zero;
		// only the no-data path above returns 0.
		Confidence: indicator.Clip(confidence, 0.1, 1),
	}
}
