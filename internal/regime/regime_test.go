package regime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticTrendCandles(n int, start float64, drift float64) []Candle {
	candles := make([]Candle, n)
	price := start
	for i := 0; i < n; i++ {
		open := price
		close := price + drift
		high := math.Max(open, close) + 0.5
		low := math.Min(open, close) - 0.5
		candles[i] = Candle{
			TimestampMS: int64(i) * 900000,
			Open:        open,
			High:        high,
			Low:         low,
			Close:       close,
			Volume:      1000,
		}
		price = close
	}
	return candles
}

func TestAnalyzeInsufficientData(t *testing.T) {
	candles := syntheticTrendCandles(10, 100, 1)
	m := Analyze(candles, Thresholds{})
	require.True(t, m.InsufficientData)
	assert.Equal(t, RangeQuiet, m.Regime)
}

func TestAnalyzeTrendingUp(t *testing.T) {
	candles := syntheticTrendCandles(60, 100, 5)
	m := Analyze(candles, Thresholds{})
	require.False(t, m.InsufficientData)
	assert.Equal(t, TrendingUp, m.Regime)
	assert.Greater(t, m.PlusDI, m.MinusDI)
}

func TestAnalyzeTrendingDown(t *testing.T) {
	candles := syntheticTrendCandles(60, 200, -5)
	m := Analyze(candles, Thresholds{})
	require.False(t, m.InsufficientData)
	assert.Equal(t, TrendingDown, m.Regime)
	assert.Greater(t, m.MinusDI, m.PlusDI)
}

func TestAnalyzeFlatIsRanging(t *testing.T) {
	candles := syntheticTrendCandles(60, 100, 0)
	m := Analyze(candles, Thresholds{})
	require.False(t, m.InsufficientData)
	assert.Contains(t, []Regime{RangeQuiet, RangeVolatile}, m.Regime)
	assert.Less(t, m.ADX, 25.0)
}

func TestADXStaysBoundedAfterWhipsaw(t *testing.T) {
	// A window with a sharp directional whipsaw still yields a valid ADX
	// inside [0, 100] after the DX series goes through the final
	// smoothing pass.
	candles := syntheticTrendCandles(60, 100, 3)
	for i := 40; i < 45; i++ {
		candles[i].Close = candles[i-1].Close - 10
		candles[i].Low = candles[i].Close - 1
		candles[i].High = candles[i-1].Close + 1
	}
	result := CalculateADX(candles, 14)
	require.True(t, result.IsValid)
	assert.GreaterOrEqual(t, result.ADX, 0.0)
	assert.LessOrEqual(t, result.ADX, 100.0)
}
