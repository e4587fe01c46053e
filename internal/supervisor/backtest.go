package supervisor

import (
	"fmt"

	"github.com/AbhayRathi/AlphaWEEX/internal/regime"
	"github.com/AbhayRathi/AlphaWEEX/internal/shadow"
)

// shadowBacktestGate satisfies architect.BacktestGate, the evolution
// protocol's external backtest collaborator. Rather than re-running
// history against the candidate source, it judges deployability from
// the shadow engine's live running comparison: while the shadow strategy
// has no trades yet a candidate clears the gate on probation; after that
// it clears only once the parallel high-risk strategy has demonstrated
// both adequate risk-adjusted return and bounded drawdown.
type shadowBacktestGate struct {
	engine            *shadow.Engine
	minSharpeDeploy   float64
	maxDrawdownDeploy float64
}

func newShadowBacktestGate(engine *shadow.Engine, minSharpeDeploy, maxDrawdownDeploy float64) *shadowBacktestGate {
	return &shadowBacktestGate{
		engine:            engine,
		minSharpeDeploy:   minSharpeDeploy,
		maxDrawdownDeploy: maxDrawdownDeploy,
	}
}

// Evaluate ignores candidateSource and regime: the shadow comparison is
// the only backtest signal available without a dedicated historical
// replay collaborator.
func (g *shadowBacktestGate) Evaluate(_ string, _ regime.Regime) (bool, string) {
	summary := g.engine.ComparisonSummary()

	if summary.Shadow.TradeCount == 0 {
		return true, "no shadow trade history yet, deploying on probation"
	}
	if summary.Shadow.AvgSharpe < g.minSharpeDeploy {
		return false, fmt.Sprintf("shadow sharpe %.2f below minimum deploy threshold %.2f", summary.Shadow.AvgSharpe, g.minSharpeDeploy)
	}

	worstROI := 0.0
	for _, roi := range summary.Shadow.RecentROI {
		if roi < worstROI {
			worstROI = roi
		}
	}
	drawdown := -worstROI / 100
	if drawdown > g.maxDrawdownDeploy {
		return false, fmt.Sprintf("shadow drawdown %.2f%% exceeds max deploy drawdown %.2f%%", drawdown*100, g.maxDrawdownDeploy*100)
	}

	return true, "shadow sharpe and drawdown within deploy bounds"
}
