package signal

import (
	"math"
	"testing"
	"time"

	"quarterhour/internal/candle"
	"quarterhour/internal/config"
)

// trendSeries builds n candles walking from start by step per candle.
func trendSeries(tf candle.Timeframe, n int, start, step float64) candle.Series {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := make(candle.Series, n)
	for i := range s {
		price := start + float64(i)*step
		s[i] = candle.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      price - step/2,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    100,
		}
	}
	return s
}

func TestLayer2EmptySnapshot(t *testing.T) {
	a := NewLayer2Analyzer(config.DefaultBot().Signal)

	sig := a.Analyze(candle.Snapshot{})
	if sig.Direction != 0 || sig.Confidence != 0 || sig.TotalTimeframes != 0 {
		t.Errorf("empty snapshot should yield zero signal, got %+v", sig)
	}
}

func TestLayer2AllBullish(t *testing.T) {
	a := NewLayer2Analyzer(config.DefaultBot().Signal)

	snap := candle.Snapshot{}
	for _, tf := range candle.AllTimeframes {
		snap[tf] = trendSeries(tf, 250, 100, 0.5)
	}
	sig := a.Analyze(snap)

	if sig.Direction <= 0 {
		t.Fatalf("direction = %v, want > 0 when every timeframe trends up", sig.Direction)
	}
	if sig.AlignmentCount != 6 || sig.TotalTimeframes != 6 {
		t.Errorf("alignment %d/%d, want 6/6", sig.AlignmentCount, sig.TotalTimeframes)
	}
	// Full alignment reaches the top confidence band.
	if sig.Confidence < 0.8 {
		t.Errorf("confidence = %v, want >= 0.8 at full alignment", sig.Confidence)
	}
	if sig.Vetoed {
		t.Error("fully aligned signal should not be vetoed")
	}
}

func TestLayer2FightingTrendVeto(t *testing.T) {
	a := NewLayer2Analyzer(config.DefaultBot().Signal)

	// Three timeframes scream up; the 15m trend is firmly down. The veto
	// must zero the signal even though the aggregate is bullish.
	snap := candle.Snapshot{
		candle.TF1m:  trendSeries(candle.TF1m, 250, 100, 0.5),
		candle.TF5m:  trendSeries(candle.TF5m, 250, 100, 0.5),
		candle.TF1h:  trendSeries(candle.TF1h, 250, 100, 0.5),
		candle.TF15m: trendSeries(candle.TF15m, 250, 300, -0.5),
	}
	sig := a.Analyze(snap)

	if !sig.Vetoed {
		t.Fatalf("expected fighting-trend veto, got direction=%v", sig.Direction)
	}
	if sig.Direction != 0 || sig.Confidence != 0 {
		t.Errorf("vetoed signal must be zeroed, got direction=%v confidence=%v",
			sig.Direction, sig.Confidence)
	}
}

func TestLayer2MissingTimeframesRenormalized(t *testing.T) {
	a := NewLayer2Analyzer(config.DefaultBot().Signal)

	// Only 15m present: its weight renormalizes to 1, so the aggregate
	// equals the 15m sub-signal.
	snap := candle.Snapshot{
		candle.TF15m: trendSeries(candle.TF15m, 250, 100, 0.5),
	}
	sig := a.Analyze(snap)

	sub, ok := sig.TimeframeSignals[string(candle.TF15m)]
	if !ok {
		t.Fatal("15m sub-signal missing")
	}
	if math.Abs(sig.Direction-sub) > 1e-9 {
		t.Errorf("direction = %v, want %v (single-timeframe aggregate)", sig.Direction, sub)
	}
	if sig.TotalTimeframes != 1 {
		t.Errorf("TotalTimeframes = %d, want 1", sig.TotalTimeframes)
	}
}

func TestLayer2InsufficientCandles(t *testing.T) {
	a := NewLayer2Analyzer(config.DefaultBot().Signal)

	// Under max(period)+1 candles the sub-signal must be zero, not noise.
	snap := candle.Snapshot{
		candle.TF1d: trendSeries(candle.TF1d, 50, 100, 1), // needs 201 for EMA200
	}
	sig := a.Analyze(snap)

	if sub := sig.TimeframeSignals[string(candle.TF1d)]; sub != 0 {
		t.Errorf("1d sub-signal = %v, want 0 with insufficient candles", sub)
	}
}

func TestShortTermPressure(t *testing.T) {
	a := NewLayer2Analyzer(config.DefaultBot().Signal)

	snap := candle.Snapshot{
		candle.TF1m:  trendSeries(candle.TF1m, 100, 100, 0.5),
		candle.TF5m:  trendSeries(candle.TF5m, 100, 100, 0.5),
		candle.TF15m: trendSeries(candle.TF15m, 100, 100, 0.5),
	}
	p := a.ShortTermPressure(snap)

	if p.Pressure <= 0 {
		t.Errorf("pressure = %v, want > 0 in an uptrend", p.Pressure)
	}
	if p.Momentum <= 0 {
		t.Errorf("momentum = %v, want > 0 in an uptrend", p.Momentum)
	}
	if p.Alignment != 3 || p.Total != 3 {
		t.Errorf("alignment %d/%d, want 3/3", p.Alignment, p.Total)
	}

	if empty := a.ShortTermPressure(candle.Snapshot{}); empty.Pressure != 0 || empty.Total != 0 {
		t.Errorf("empty snapshot pressure = %+v, want zero", empty)
	}
}
