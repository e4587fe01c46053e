package narrative

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbhayRathi/AlphaWEEX/internal/state"
)

func TestCheckInflowBelowThresholdClearsWhaleFlagOnly(t *testing.T) {
	st := state.New(zerolog.Nop())
	p := New(st, 1000.0, zerolog.Nop())

	isWhale := p.CheckInflow(500.0)
	assert.False(t, isWhale)
	assert.False(t, st.GetWhaleDump())
	assert.Equal(t, state.RiskNormal, st.GetRisk())
}

func TestCheckInflowAboveThresholdElevatesNormalToHigh(t *testing.T) {
	st := state.New(zerolog.Nop())
	p := New(st, 1000.0, zerolog.Nop())

	isWhale := p.CheckInflow(1500.0)
	assert.True(t, isWhale)
	assert.True(t, st.GetWhaleDump())
	assert.Equal(t, state.RiskHigh, st.GetRisk())
}

func TestCheckInflowNeverDemotesRisk(t *testing.T) {
	st := state.New(zerolog.Nop())
	st.SetRisk(state.RiskHigh, nil) // e.g. set by Oracle
	p := New(st, 1000.0, zerolog.Nop())

	p.CheckInflow(100.0) // well below threshold
	assert.Equal(t, state.RiskHigh, st.GetRisk(), "NarrativePulse must never demote risk; only Oracle may")
}

func TestRecentEventsRecordsHighSeverityAboveDoubleThreshold(t *testing.T) {
	st := state.New(zerolog.Nop())
	p := New(st, 1000.0, zerolog.Nop())

	p.CheckInflow(2500.0)
	events := p.RecentEvents(10)
	require.Len(t, events, 1)
	assert.Equal(t, "HIGH", events[0].RiskLevel)
}

func TestSimulatedInflowIsPointOnePercentOfVolume(t *testing.T) {
	assert.InDelta(t, 50.0, SimulatedInflow(50000.0), 1e-9)
}

func TestSummaryReportsNormalRecommendationWithNoWhaleRisk(t *testing.T) {
	st := state.New(zerolog.Nop())
	p := New(st, 1000.0, zerolog.Nop())

	summary := p.Summary()
	assert.False(t, summary.WhaleDumpRisk)
	assert.Equal(t, "NORMAL", summary.RiskLevel)
	assert.Equal(t, "Continue normal trading operations", summary.Recommendation)
}

func TestSummaryReportsCautionRecommendationOnHighSeverityInflow(t *testing.T) {
	st := state.New(zerolog.Nop())
	p := New(st, 1000.0, zerolog.Nop())

	p.CheckInflow(2500.0)
	summary := p.Summary()
	assert.True(t, summary.WhaleDumpRisk)
	assert.Equal(t, "HIGH", summary.RiskLevel)
	assert.Equal(t, "Reduce position sizes and tighten stop-losses", summary.Recommendation)
	require.Len(t, summary.RecentEvents, 1)
	assert.Equal(t, summary.Recommendation, summary.RecentEvents[0].Recommendation)
}

func TestSummaryReportsWatchfulRecommendationOnMediumSeverityInflow(t *testing.T) {
	st := state.New(zerolog.Nop())
	p := New(st, 1000.0, zerolog.Nop())

	p.CheckInflow(1500.0)
	summary := p.Summary()
	assert.Equal(t, "MEDIUM", summary.RiskLevel)
	assert.Equal(t, "Monitor closely and be ready to reduce exposure", summary.Recommendation)
}
