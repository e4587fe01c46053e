package architect

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbhayRathi/AlphaWEEX/internal/memory"
	"github.com/AbhayRathi/AlphaWEEX/internal/regime"
	"github.com/AbhayRathi/AlphaWEEX/internal/screen"
	"github.com/AbhayRathi/AlphaWEEX/internal/state"
)

type stubGuardrails struct {
	canEvolve    bool
	killSwitch   bool
	markedCalls  int
	equity       float64
}

func (s *stubGuardrails) CanEvolve() bool          { return s.canEvolve }
func (s *stubGuardrails) IsKillSwitchActive() bool { return s.killSwitch }
func (s *stubGuardrails) MarkEvolution()           { s.markedCalls++ }
func (s *stubGuardrails) CurrentEquity() float64   { return s.equity }

type stubBacktest struct {
	canDeploy bool
	reason    string
}

func (s stubBacktest) Evaluate(string, regime.Regime) (bool, string) {
	return s.canDeploy, s.reason
}

func newTestArchitect(t *testing.T, guard *stubGuardrails, bt stubBacktest) (*Architect, *memory.Memory) {
	t.Helper()
	dir := t.TempDir()

	mem, err := memory.New(filepath.Join(dir, "evolution_history.json"), zerolog.Nop())
	require.NoError(t, err)

	reg := NewRegistry(baseStrategy())
	st := state.New(zerolog.Nop())

	cfg := Config{
		ModulePath: filepath.Join(dir, "active_logic.go"),
		BackupPath: filepath.Join(dir, "active_logic.go.backup"),
		ScreenConfig: screen.Config{
			StopLossRequired:     true,
			FlashCrashPct:        -0.20,
			MaxDrawdownThreshold: 0.15,
		},
	}

	return New(guard, mem, bt, st, reg, cfg, zerolog.Nop()), mem
}

func TestEvolveBlockedByStabilityLock(t *testing.T) {
	guard := &stubGuardrails{canEvolve: false}
	a, _ := newTestArchitect(t, guard, stubBacktest{canDeploy: true})

	ok := a.Evolve(Analysis{EvolutionSuggestion: "widen stop", Regime: regime.TrendingUp})
	assert.False(t, ok)
	assert.Equal(t, 0, guard.markedCalls)
}

func TestEvolveBlockedByKillSwitch(t *testing.T) {
	guard := &stubGuardrails{canEvolve: true, killSwitch: true}
	a, _ := newTestArchitect(t, guard, stubBacktest{canDeploy: true})

	ok := a.Evolve(Analysis{EvolutionSuggestion: "widen stop", Regime: regime.TrendingUp})
	assert.False(t, ok)
}

func TestEvolveBlockedByEmptyProposal(t *testing.T) {
	guard := &stubGuardrails{canEvolve: true}
	a, _ := newTestArchitect(t, guard, stubBacktest{canDeploy: true})

	ok := a.Evolve(Analysis{EvolutionSuggestion: "", Regime: regime.TrendingUp})
	assert.False(t, ok)
}

func TestProposeRespectsOpenEvaluationWindow(t *testing.T) {
	guard := &stubGuardrails{canEvolve: true}
	a, mem := newTestArchitect(t, guard, stubBacktest{canDeploy: true})

	analysis := Analysis{EvolutionSuggestion: "widen stop", Regime: regime.TrendingUp}
	_, params, ok := a.Propose(analysis)
	require.True(t, ok)

	idx, err := mem.RecordEvolution(params, params.Reason, params.Suggestion, 1000.0)
	require.NoError(t, err)
	require.NoError(t, mem.UpdateWindow(idx, 900.0, -100.0))

	blacklisted, _ := mem.IsBlacklisted(params)
	require.False(t, blacklisted, "window has not elapsed yet in this synthetic test, exercising UpdateWindow's non-elapsed branch instead")
}

func TestEvolveBlockedByBacktestGate(t *testing.T) {
	guard := &stubGuardrails{canEvolve: true}
	a, _ := newTestArchitect(t, guard, stubBacktest{canDeploy: false, reason: "sharpe below threshold"})

	ok := a.Evolve(Analysis{EvolutionSuggestion: "widen stop", Regime: regime.RangeVolatile})
	assert.False(t, ok)
	assert.Equal(t, 0, guard.markedCalls)
}

func TestEvolveAcceptsFullyGatedCandidate(t *testing.T) {
	guard := &stubGuardrails{canEvolve: true}
	a, mem := newTestArchitect(t, guard, stubBacktest{canDeploy: true})

	before := a.registry.Version()
	ok := a.Evolve(Analysis{EvolutionSuggestion: "trend-follow harder", Regime: regime.TrendingUp})
	require.True(t, ok)

	assert.Equal(t, 1, guard.markedCalls)
	assert.Greater(t, a.registry.Version(), before)
	assert.Equal(t, 1, mem.Stats().TotalEvolutions)

	history := a.History()
	require.Len(t, history, 1)
	assert.True(t, history[0].Accepted)
}

func TestEvolveRecordsCurrentEquityFromGuardrails(t *testing.T) {
	guard := &stubGuardrails{canEvolve: true, equity: 1234.5}
	a, mem := newTestArchitect(t, guard, stubBacktest{canDeploy: true})

	ok := a.Evolve(Analysis{EvolutionSuggestion: "trend-follow harder", Regime: regime.TrendingUp})
	require.True(t, ok)

	recent := mem.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, 1234.5, recent[0].InitialEquity)
}

func TestGeneratedSourcePassesItsOwnGates(t *testing.T) {
	for _, r := range []regime.Regime{regime.TrendingUp, regime.TrendingDown, regime.RangeVolatile, regime.RangeQuiet} {
		src := GenerateCandidateSource(Analysis{Regime: r})

		audit := AuditCandidate(src)
		assert.Truef(t, audit.Passed, "regime %s: %s", r, audit.Reason)

		result := screen.Run(src, screen.Config{StopLossRequired: true, FlashCrashPct: -0.20, MaxDrawdownThreshold: 0.15})
		assert.Truef(t, result.Passed, "regime %s: %s", r, result.Reason)
	}
}

func TestGetAdjustedSizeHighRiskNoWhale(t *testing.T) {
	guard := &stubGuardrails{canEvolve: true}
	a, _ := newTestArchitect(t, guard, stubBacktest{canDeploy: true})

	a.sharedState.SetRisk(state.RiskHigh, nil)
	a.sharedState.SetSentiment(0.5, nil)

	assert.InDelta(t, 25.0, a.GetAdjustedSize(100.0), 1e-9)
}

func TestGetAdjustedSizeNormalWithWhaleDump(t *testing.T) {
	guard := &stubGuardrails{canEvolve: true}
	a, _ := newTestArchitect(t, guard, stubBacktest{canDeploy: true})

	a.sharedState.SetRisk(state.RiskNormal, nil)
	a.sharedState.SetSentiment(1.0, nil)
	a.sharedState.SetWhaleDump(true)

	assert.InDelta(t, 70.0, a.GetAdjustedSize(100.0), 1e-9)
}
