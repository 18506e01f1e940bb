// Package indicator provides stateless technical-analysis primitives over
// ordered price slices. Every function returns a neutral value when the
// input is too short; none of them panic or return errors.
package indicator

import "math"

// Clip bounds x to [lo, hi].
func Clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// EMASeries computes the exponential moving average of x with the given
// period, seeded from the first sample (smoothing k = 2/(n+1)).
func EMASeries(x []float64, period int) []float64 {
	if len(x) == 0 || period <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	k := 2.0 / (float64(period) + 1)
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = x[i]*k + out[i-1]*(1-k)
	}
	return out
}

// EMA returns the latest EMA value, or 0 when x is empty.
func EMA(x []float64, period int) float64 {
	s := EMASeries(x, period)
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// RSI computes the relative strength index using Wilder's smoothing
// (alpha = 1/period). Returns 50 when there is not enough data, and 100/0
// at the one-sided extremes.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50
	}

	alpha := 1.0 / float64(period)
	var avgGain, avgLoss float64
	for i := 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		if i == 1 {
			avgGain, avgLoss = gain, loss
			continue
		}
		avgGain = alpha*gain + (1-alpha)*avgGain
		avgLoss = alpha*loss + (1-alpha)*avgLoss
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACDResult carries the latest MACD values plus the previous histogram
// sample, which layer-1 uses to detect acceleration.
type MACDResult struct {
	MACD          float64
	Signal        float64
	Histogram     float64
	PrevHistogram float64
}

// MACD computes moving-average convergence/divergence from fast/slow EMAs
// with an EMA signal line.
func MACD(prices []float64, fast, slow, signal int) MACDResult {
	if len(prices) == 0 {
		return MACDResult{}
	}
	emaFast := EMASeries(prices, fast)
	emaSlow := EMASeries(prices, slow)

	line := make([]float64, len(prices))
	for i := range prices {
		line[i] = emaFast[i] - emaSlow[i]
	}
	sig := EMASeries(line, signal)

	res := MACDResult{
		MACD:      line[len(line)-1],
		Signal:    sig[len(sig)-1],
		Histogram: line[len(line)-1] - sig[len(sig)-1],
	}
	if len(line) > 1 {
		res.PrevHistogram = line[len(line)-2] - sig[len(sig)-2]
	}
	return res
}

// Momentum returns the fractional price change over the last `lookback`
// samples: (p[n-1] - p[n-1-lookback]) / p[n-1-lookback].
func Momentum(prices []float64, lookback int) float64 {
	if lookback <= 0 || len(prices) < lookback+1 {
		return 0
	}
	base := prices[len(prices)-1-lookback]
	if base == 0 {
		return 0
	}
	return (prices[len(prices)-1] - base) / base
}

// ATR computes the average true range over highs/lows/closes using an EMA
// of the true range. Returns 0 with insufficient data.
func ATR(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if n == 0 || len(highs) != n || len(lows) != n || n < period+1 {
		return 0
	}
	tr := make([]float64, n)
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return EMA(tr, period)
}

// VWAP computes the volume-weighted typical price and its volume-weighted
// standard deviation over the given session bars. ok is false when the
// session carries no volume.
func VWAP(highs, lows, closes, volumes []float64) (vwap, stdDev float64, ok bool) {
	n := len(closes)
	if n == 0 || len(highs) != n || len(lows) != n || len(volumes) != n {
		return 0, 0, false
	}

	var cumVol, cumTPV float64
	typical := make([]float64, n)
	for i := 0; i < n; i++ {
		typical[i] = (highs[i] + lows[i] + closes[i]) / 3
		cumVol += volumes[i]
		cumTPV += typical[i] * volumes[i]
	}
	if cumVol == 0 {
		return 0, 0, false
	}
	vwap = cumTPV / cumVol

	var cumSq float64
	for i := 0; i < n; i++ {
		d := typical[i] - vwap
		cumSq += d * d * volumes[i]
	}
	return vwap, math.Sqrt(cumSq / cumVol), true
}

// VROC returns the percent change of the latest volume against the mean of
// the prior `lookback` volumes. Zero when history is short or the trailing
// mean is zero.
func VROC(volumes []float64, lookback int) float64 {
	if lookback <= 0 || len(volumes) < lookback+1 {
		return 0
	}
	current := volumes[len(volumes)-1]
	var sum float64
	for _, v := range volumes[len(volumes)-1-lookback : len(volumes)-1] {
		sum += v
	}
	avg := sum / float64(lookback)
	if avg == 0 {
		return 0
	}
	return (current - avg) / avg * 100
}

// PearsonCorrelation computes the correlation coefficient of two equal-length
// series, or 0 when either side is degenerate.
func PearsonCorrelation(x, y []float64) float64 {
	n := len(x)
	if n == 0 || len(y) != n {
		return 0
	}
	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-meanX, y[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}
