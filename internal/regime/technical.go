package regime

import "math"

const (
	defaultPeriod = 14
)

// RSIResult is the outcome of CalculateRSI.
type RSIResult struct {
	RSI     float64
	IsValid bool
}

// CalculateRSI computes Wilder's Relative Strength Index over closes,
// seeding the first average gain/loss with a simple mean over the first
// period then smoothing incrementally (alpha = 1/period) thereafter.
func CalculateRSI(closes []float64, period int) RSIResult {
	if period <= 0 {
		period = defaultPeriod
	}
	if len(closes) < period+1 {
		return RSIResult{RSI: 50.0, IsValid: false}
	}

	var sumGain, sumLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			sumGain += delta
		} else {
			sumLoss += -delta
		}
	}
	avgGain := sumGain / float64(period)
	avgLoss := sumLoss / float64(period)

	alpha := 1.0 / float64(period)
	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = avgGain + alpha*(gain-avgGain)
		avgLoss = avgLoss + alpha*(loss-avgLoss)
	}

	if avgLoss == 0 {
		return RSIResult{RSI: 100.0, IsValid: true}
	}
	rs := avgGain / avgLoss
	rsi := 100.0 - (100.0 / (1.0 + rs))
	return RSIResult{RSI: rsi, IsValid: true}
}

// ATRResult is the outcome of CalculateATR, including the full smoothed
// series (needed by Analyze to compute the window median).
type ATRResult struct {
	Series  []float64
	Current float64
	IsValid bool
}

func trueRange(c, prev Candle) float64 {
	hl := c.High - c.Low
	hc := math.Abs(c.High - prev.Close)
	lc := math.Abs(c.Low - prev.Close)
	return math.Max(hl, math.Max(hc, lc))
}

// CalculateATR computes Wilder's Average True Range: true range smoothed
// with alpha = 1/period, seeded by a simple mean over the first period
// true-range values.
func CalculateATR(candles []Candle, period int) ATRResult {
	if period <= 0 {
		period = defaultPeriod
	}
	if len(candles) < period+1 {
		return ATRResult{IsValid: false}
	}

	trs := make([]float64, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		trs[i-1] = trueRange(candles[i], candles[i-1])
	}

	var seed float64
	for i := 0; i < period; i++ {
		seed += trs[i]
	}
	seed /= float64(period)

	series := make([]float64, 0, len(trs)-period+1)
	series = append(series, seed)

	alpha := 1.0 / float64(period)
	atr := seed
	for i := period; i < len(trs); i++ {
		atr = atr + alpha*(trs[i]-atr)
		series = append(series, atr)
	}

	return ATRResult{Series: series, Current: atr, IsValid: true}
}

// ADXResult is the outcome of CalculateADX.
type ADXResult struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
	IsValid bool
}

// CalculateADX computes the Average Directional Index using Wilder's
// smoothing throughout, including the final DX-into-ADX smoothing step:
// +DM/-DM and true range are each smoothed with alpha = 1/period into
// +DI/-DI, DX is derived from their normalized difference, and ADX is
// DX smoothed again with the same alpha. Skipping that last smoothing
// step (as a naive port might) yields a much noisier, unsmoothed
// trend-strength reading.
func CalculateADX(candles []Candle, period int) ADXResult {
	if period <= 0 {
		period = defaultPeriod
	}
	if len(candles) < period*2 {
		return ADXResult{IsValid: false}
	}

	n := len(candles)
	plusDM := make([]float64, n-1)
	minusDM := make([]float64, n-1)
	tr := make([]float64, n-1)

	for i := 1; i < n; i++ {
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low

		if upMove > downMove && upMove > 0 {
			plusDM[i-1] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i-1] = downMove
		}
		tr[i-1] = trueRange(candles[i], candles[i-1])
	}

	alpha := 1.0 / float64(period)

	seedSum := func(xs []float64) float64 {
		var s float64
		for i := 0; i < period; i++ {
			s += xs[i]
		}
		return s
	}

	smoothTR := seedSum(tr)
	smoothPlusDM := seedSum(plusDM)
	smoothMinusDM := seedSum(minusDM)

	dxSeries := make([]float64, 0, n-period*2+1)

	plusDI := 100.0 * (smoothPlusDM / period) / (smoothTR / period)
	minusDI := 100.0 * (smoothMinusDM / period) / (smoothTR / period)
	dxSeries = append(dxSeries, directionalIndex(plusDI, minusDI))

	lastPlusDI, lastMinusDI := plusDI, minusDI

	for i := period; i < len(tr); i++ {
		smoothTR = smoothTR - smoothTR*alpha + tr[i]
		smoothPlusDM = smoothPlusDM - smoothPlusDM*alpha + plusDM[i]
		smoothMinusDM = smoothMinusDM - smoothMinusDM*alpha + minusDM[i]

		if smoothTR == 0 {
			continue
		}
		lastPlusDI = 100.0 * smoothPlusDM / smoothTR
		lastMinusDI = 100.0 * smoothMinusDM / smoothTR
		dxSeries = append(dxSeries, directionalIndex(lastPlusDI, lastMinusDI))
	}

	if len(dxSeries) < period {
		return ADXResult{IsValid: false}
	}

	var adxSeed float64
	for i := 0; i < period; i++ {
		adxSeed += dxSeries[i]
	}
	adx := adxSeed / float64(period)
	for i := period; i < len(dxSeries); i++ {
		adx = adx + alpha*(dxSeries[i]-adx)
	}

	return ADXResult{ADX: adx, PlusDI: lastPlusDI, MinusDI: lastMinusDI, IsValid: true}
}

func directionalIndex(plusDI, minusDI float64) float64 {
	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}
	return 100.0 * math.Abs(plusDI-minusDI) / sum
}

// median returns the 50th-percentile value of xs (nearest-rank, no
// interpolation — sufficient for the volatile/quiet split).
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
