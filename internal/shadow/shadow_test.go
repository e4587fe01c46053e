package shadow

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateTradePairHoldSignalYieldsZeroPnL(t *testing.T) {
	e := New(100, 1.2, zerolog.Nop())
	result := e.SimulateTradePair("hold", 90000, 0.02)
	assert.Equal(t, 0.0, result.LivePnL)
	assert.Equal(t, 0.0, result.ShadowPnL)
}

func TestSimulateTradePairAccumulatesTradeCounts(t *testing.T) {
	e := New(100, 1.2, zerolog.Nop())
	for i := 0; i < 10; i++ {
		e.SimulateTradePair("buy", 90000, 0.02)
	}
	summary := e.ComparisonSummary()
	assert.Equal(t, 10, summary.Shadow.TradeCount)
	assert.Equal(t, 10, summary.Live.TradeCount)
}

func TestPromotionAlertDoesNotFireBeforeThreshold(t *testing.T) {
	e := New(100, 1.2, zerolog.Nop())
	var result SimulationResult
	for i := 0; i < 50; i++ {
		result = e.SimulateTradePair("buy", 90000, 0.02)
	}
	assert.Nil(t, result.PromotionAlert)
}

func TestCalculateSharpeRequiresAtLeastTwoReturns(t *testing.T) {
	e := New(100, 1.2, zerolog.Nop())
	s := newStrategy("test", 1.0, 1.0)
	assert.Equal(t, 0.0, e.calculateSharpe(s))

	s.recordTrade(10, true, 0)
	assert.Equal(t, 0.0, e.calculateSharpe(s))
}

func TestResetShadowStrategyVersionsName(t *testing.T) {
	e := New(100, 1.2, zerolog.Nop())
	e.ResetShadowStrategy(3.0, 2.0)
	summary := e.ComparisonSummary()
	assert.Equal(t, "Shadow-HighRisk-v1", summary.Shadow.Name)
	assert.Equal(t, 3.0, summary.Shadow.LeverageMultiplier)
}

func TestDashboardDataReflectsIterationsToPromotion(t *testing.T) {
	e := New(100, 1.2, zerolog.Nop())
	for i := 0; i < 10; i++ {
		e.SimulateTradePair("sell", 90000, 0.02)
	}
	dash := e.DashboardData()
	assert.Equal(t, 90, dash.IterationsToPromotion)
	assert.False(t, dash.PromotionAlertActive)
}

func TestStatsAvgAndWinRateComputeOverHistory(t *testing.T) {
	s := newStrategy("test", 1.0, 1.0)
	s.recordTrade(100, true, 1.5)
	s.recordTrade(-50, false, 1.0)
	stats := s.stats()
	require.Equal(t, 2, stats.TradeCount)
	assert.Equal(t, 0.5, stats.WinRate)
	assert.InDelta(t, (10.0-5.0)/2, stats.AvgROI, 1e-9)
}
