// Package oracle implements Oracle (C9): the periodic traditional-
// finance risk monitor that sets SharedState's global risk level from
// SPY's 1-hour percentage change.
package oracle

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/AbhayRathi/AlphaWEEX/internal/market"
	"github.com/AbhayRathi/AlphaWEEX/internal/state"
)

// Summary mirrors the original's get_market_summary payload, attached
// to SharedState as the risk transition's payload.
type Summary struct {
	Timestamp      string  `json:"timestamp"`
	SPYPrice       float64 `json:"spy_price"`
	SPYChangePct   float64 `json:"spy_change_pct"`
	SPYPrevPrice   float64 `json:"spy_prev_price"`
	QQQPrice       float64 `json:"qqq_price"`
	QQQChangePct   float64 `json:"qqq_change_pct"`
	QQQPrevPrice   float64 `json:"qqq_prev_price"`
	Source         string  `json:"source"`
	Error          string  `json:"error,omitempty"`
}

// Oracle periodically fetches SPY/QQQ equity bars through the market
// adapter and derives a global risk level from SPY's 1-hour move.
type Oracle struct {
	log         zerolog.Logger
	adapter     *market.Adapter
	sharedState *state.SharedState
	spyThreshold float64 // fraction, e.g. -0.01 for -1%
}

func New(adapter *market.Adapter, sharedState *state.SharedState, spyThreshold float64, log zerolog.Logger) *Oracle {
	return &Oracle{
		log:          log.With().Str("component", "oracle").Logger(),
		adapter:      adapter,
		sharedState:  sharedState,
		spyThreshold: spyThreshold,
	}
}

// UpdateGlobalRisk fetches the latest SPY/QQQ bars, classifies risk
// against the configured threshold, and publishes the result (and its
// payload) to SharedState. Any failure along the way is absorbed and
// defaults to NORMAL risk, matching the original's safe-fallback
// contract: a broken market feed must never itself escalate risk.
func (o *Oracle) UpdateGlobalRisk(ctx context.Context) state.RiskLevel {
	summary, err := o.fetchSummary(ctx)
	if err != nil {
		o.log.Error().Err(err).Msg("failed to fetch market summary, defaulting to NORMAL risk")
		o.sharedState.SetRisk(state.RiskNormal, Summary{Source: "error_fallback", Error: err.Error()})
		return state.RiskNormal
	}

	thresholdPct := o.spyThreshold * 100
	level := state.RiskNormal
	if summary.SPYChangePct < thresholdPct {
		level = state.RiskHigh
		o.log.Warn().Float64("spy_change_pct", summary.SPYChangePct).Float64("threshold_pct", thresholdPct).Msg("high risk: SPY down past threshold")
	} else {
		o.log.Info().Float64("spy_change_pct", summary.SPYChangePct).Float64("threshold_pct", thresholdPct).Msg("normal risk")
	}

	o.sharedState.SetRisk(level, summary)
	return level
}

func (o *Oracle) fetchSummary(ctx context.Context) (Summary, error) {
	spyBars, err := o.adapter.FetchEquityBars(ctx, "SPY", 2)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch SPY bars: %w", err)
	}
	qqqBars, err := o.adapter.FetchEquityBars(ctx, "QQQ", 2)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch QQQ bars: %w", err)
	}
	if len(spyBars) < 2 || len(qqqBars) < 2 {
		return Summary{}, fmt.Errorf("insufficient bars: spy=%d qqq=%d", len(spyBars), len(qqqBars))
	}

	spyPrev, spyCur := spyBars[len(spyBars)-2].Close, spyBars[len(spyBars)-1].Close
	qqqPrev, qqqCur := qqqBars[len(qqqBars)-2].Close, qqqBars[len(qqqBars)-1].Close

	// FetchEquityBars absorbs transport failures into its own synthetic
	// fallback rather than surfacing them, so the adapter's Capabilities
	// mode is the only live signal of degraded operation available here.
	source := "alpaca"
	if o.adapter.Capabilities().Mode == market.ModeMock {
		source = "fallback"
	}

	return Summary{
		SPYPrice:     spyCur,
		SPYChangePct: pctChange(spyPrev, spyCur),
		SPYPrevPrice: spyPrev,
		QQQPrice:     qqqCur,
		QQQChangePct: pctChange(qqqPrev, qqqCur),
		QQQPrevPrice: qqqPrev,
		Source:       source,
	}, nil
}

func pctChange(prev, cur float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}
