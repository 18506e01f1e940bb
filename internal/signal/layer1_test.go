package signal

import (
	"math"
	"testing"
	"time"

	"quarterhour/internal/candle"
	"quarterhour/internal/config"
)

func pricePoints(prices []float64) []candle.PricePoint {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pts := make([]candle.PricePoint, len(prices))
	for i, p := range prices {
		pts[i] = candle.PricePoint{Timestamp: start.Add(time.Duration(i) * time.Second), Price: p}
	}
	return pts
}

func TestLayer1InsufficientSamples(t *testing.T) {
	a := NewLayer1Analyzer(config.DefaultBot().Signal)

	prices := make([]float64, 29)
	for i := range prices {
		prices[i] = 0.5
	}
	sig := a.Analyze(pricePoints(prices))

	if sig.Direction != 0 || sig.Confidence != 0 {
		t.Errorf("expected zero signal below sample minimum, got direction=%v confidence=%v",
			sig.Direction, sig.Confidence)
	}
	if sig.RSI != 50 {
		t.Errorf("RSI = %v, want neutral 50", sig.RSI)
	}
}

func TestLayer1BullishTrend(t *testing.T) {
	a := NewLayer1Analyzer(config.DefaultBot().Signal)

	// Steady climb: RSI pinned high, MACD positive, momentum positive.
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 0.30 + float64(i)*0.005
	}
	sig := a.Analyze(pricePoints(prices))

	if sig.Direction <= 0 {
		t.Errorf("direction = %v, want > 0 for a steady climb", sig.Direction)
	}
	if sig.Confidence < 0.1 || sig.Confidence > 1 {
		t.Errorf("confidence %v outside [0.1, 1]", sig.Confidence)
	}
	if sig.RSI < 70 {
		t.Errorf("RSI = %v, want overbought on a one-way climb", sig.RSI)
	}
}

func TestLayer1BearishTrend(t *testing.T) {
	a := NewLayer1Analyzer(config.DefaultBot().Signal)

	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 0.80 - float64(i)*0.005
	}
	sig := a.Analyze(pricePoints(prices))

	if sig.Direction >= 0 {
		t.Errorf("direction = %v, want < 0 for a steady decline", sig.Direction)
	}
}

func TestLayer1FlatMarket(t *testing.T) {
	a := NewLayer1Analyzer(config.DefaultBot().Signal)

	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 0.5
	}
	sig := a.Analyze(pricePoints(prices))

	if sig.Direction != 0 {
		t.Errorf("direction = %v, want 0 for a flat series", sig.Direction)
	}
	if math.Abs(sig.Confidence-0.1) > 1e-9 {
		t.Errorf("confidence = %v, want the 0.1 floor", sig.Confidence)
	}
}

func TestLayer1DirectionBounds(t *testing.T) {
	a := NewLayer1Analyzer(config.DefaultBot().Signal)

	// Violent moves in both directions should still stay within [-1, 1].
	prices := make([]float64, 60)
	for i := range prices {
		if i%2 == 0 {
			prices[i] = 0.10 + float64(i)*0.012
		} else {
			prices[i] = 0.90 - float64(i)*0.012
		}
	}
	sig := a.Analyze(pricePoints(prices))

	if sig.Direction < -1 || sig.Direction > 1 {
		t.Errorf("direction %v outside [-1, 1]", sig.Direction)
	}
	if sig.Confidence < 0.1 || sig.Confidence > 1 {
		t.Errorf("confidence %v outside [0.1, 1]", sig.Confidence)
	}
}
