// Package architect implements Architect (C8): the end-to-end mutator
// for the active decision-module file, gated by Guardrails,
// AdversarialScreen, EvolutionMemory's blacklist, and an external
// backtest collaborator.
package architect

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/AbhayRathi/AlphaWEEX/internal/memory"
	"github.com/AbhayRathi/AlphaWEEX/internal/regime"
	"github.com/AbhayRathi/AlphaWEEX/internal/screen"
	"github.com/AbhayRathi/AlphaWEEX/internal/state"
)

const (
	confidenceBoost      = 0.1
	r1OverrideThreshold  = 0.7
	highRiskReduction    = 0.5
	whaleDumpReduction   = 0.7
)

// Analysis is the subset of ReasoningLoop's published Analysis that
// Architect consumes.
type Analysis struct {
	Signal              string
	Confidence          float64
	Reasoning           string
	Regime              regime.Regime
	EvolutionSuggestion string
}

// GuardrailsGate is the subset of Guardrails the Architect depends on.
type GuardrailsGate interface {
	CanEvolve() bool
	IsKillSwitchActive() bool
	MarkEvolution()
	CurrentEquity() float64
}

// BacktestGate is the external collaborator from evolution protocol
// step 6; deliberately out of scope per spec §1, specified only by the
// interface the core consumes.
type BacktestGate interface {
	Evaluate(candidateSource string, r regime.Regime) (canDeploy bool, reason string)
}

// HistoryEntry is one bounded in-memory record of an evolution attempt,
// accepted or rejected, for fast /status introspection without
// round-tripping through EvolutionMemory's JSON file.
type HistoryEntry struct {
	Timestamp   time.Time
	Accepted    bool
	RejectedBy  string
	Regime      regime.Regime
	Reason      string
}

const maxHistory = 50

// Architect wires every collaborator required by the evolution
// protocol and owns the active module file + its single backup.
type Architect struct {
	log zerolog.Logger

	guardrails   GuardrailsGate
	evoMemory    *memory.Memory
	backtest     BacktestGate
	sharedState  *state.SharedState
	registry     *Registry
	screenConfig screen.Config

	modulePath string
	backupPath string

	mu      sync.Mutex
	history []HistoryEntry
}

type Config struct {
	ModulePath   string
	BackupPath   string
	ScreenConfig screen.Config
}

func New(guardrails GuardrailsGate, evoMemory *memory.Memory, backtest BacktestGate, sharedState *state.SharedState, registry *Registry, cfg Config, log zerolog.Logger) *Architect {
	return &Architect{
		log:          log.With().Str("component", "architect").Logger(),
		guardrails:   guardrails,
		evoMemory:    evoMemory,
		backtest:     backtest,
		sharedState:  sharedState,
		registry:     registry,
		screenConfig: cfg.ScreenConfig,
		modulePath:   cfg.ModulePath,
		backupPath:   cfg.BackupPath,
	}
}

// Propose returns a candidate module source conditioned on the
// analysis, or empty if there's no suggestion or the implied parameters
// are blacklisted.
func (a *Architect) Propose(analysis Analysis) (source string, params memory.Parameters, ok bool) {
	if analysis.EvolutionSuggestion == "" {
		return "", memory.Parameters{}, false
	}

	params = memory.Parameters{
		Reason:     "evolution_suggestion",
		Suggestion: analysis.EvolutionSuggestion,
		Regime:     string(analysis.Regime),
	}

	if blacklisted, reason := a.evoMemory.IsBlacklisted(params); blacklisted {
		a.log.Info().Str("reason", reason).Msg("proposal blocked by blacklist")
		return "", params, false
	}

	return GenerateCandidateSource(analysis), params, true
}

// Evolve runs the full gate sequence from the evolution protocol,
// fail-closed at every step. Any rejection returns false after recording
// a rejected history entry that names the blocking gate; only a
// fully-accepted evolution writes the module file, bumps the registry,
// marks the stability lock, and records the evolution in memory.
func (a *Architect) Evolve(analysis Analysis) bool {
	if !a.guardrails.CanEvolve() {
		a.recordHistory(false, "stability_lock", analysis.Regime, "stability lock active")
		return false
	}
	if a.guardrails.IsKillSwitchActive() {
		a.recordHistory(false, "kill_switch", analysis.Regime, "kill switch active")
		return false
	}

	candidate, params, ok := a.Propose(analysis)
	if !ok || candidate == "" {
		a.recordHistory(false, "propose", analysis.Regime, "no candidate source")
		return false
	}

	screenResult := screen.Run(candidate, a.screenConfig)
	if !screenResult.Passed {
		a.recordHistory(false, "adversarial_screen", analysis.Regime, screenResult.Reason)
		return false
	}

	auditResult := AuditCandidate(candidate)
	if !auditResult.Passed {
		a.recordHistory(false, "guardrails_audit", analysis.Regime, auditResult.Reason)
		return false
	}

	canDeploy, btReason := a.backtest.Evaluate(candidate, analysis.Regime)
	if !canDeploy {
		a.recordHistory(false, "backtest_gate", analysis.Regime, btReason)
		return false
	}

	if err := a.commit(candidate); err != nil {
		a.log.Error().Err(err).Msg("invariant violation: failed to commit evolved module")
		a.recordHistory(false, "commit", analysis.Regime, err.Error())
		return false
	}

	a.registry.Swap(regimeAwareStrategy(analysis.Regime, confidenceBoost, r1OverrideThreshold))

	a.guardrails.MarkEvolution()
	if _, err := a.evoMemory.RecordEvolution(params, params.Reason, params.Suggestion, a.guardrails.CurrentEquity()); err != nil {
		a.log.Error().Err(err).Msg("failed to record evolution to memory")
	}

	a.recordHistory(true, "", analysis.Regime, "evolution accepted")
	return true
}

// commit copies the current module to the fixed backup path, writes the
// candidate to the module path, and attempts to restore from backup if
// the write fails.
func (a *Architect) commit(candidate string) error {
	current, readErr := os.ReadFile(a.modulePath)
	if readErr == nil {
		if err := os.WriteFile(a.backupPath, current, 0o644); err != nil {
			return fmt.Errorf("backup current module: %w", err)
		}
	}

	if err := os.WriteFile(a.modulePath, []byte(candidate), 0o644); err != nil {
		if current != nil {
			if restoreErr := os.WriteFile(a.modulePath, current, 0o644); restoreErr != nil {
				return fmt.Errorf("write failed (%v) and restore failed (%w)", err, restoreErr)
			}
		}
		return fmt.Errorf("write candidate module: %w", err)
	}

	return nil
}

func (a *Architect) recordHistory(accepted bool, rejectedBy string, r regime.Regime, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.history = append(a.history, HistoryEntry{
		Timestamp:  time.Now(),
		Accepted:   accepted,
		RejectedBy: rejectedBy,
		Regime:     r,
		Reason:     reason,
	})
	if len(a.history) > maxHistory {
		a.history = a.history[len(a.history)-maxHistory:]
	}
}

func (a *Architect) History() []HistoryEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]HistoryEntry, len(a.history))
	copy(out, a.history)
	return out
}

// GetAdjustedSize applies the size-adjustment formula, sampling
// SharedState once via Snapshot() to guarantee sentiment, risk, and
// whale-dump are evaluated coherently.
func (a *Architect) GetAdjustedSize(base float64) float64 {
	snap := a.sharedState.Snapshot()

	adjusted := base * snap.SentimentMultiplier
	if snap.RiskLevel == state.RiskHigh {
		adjusted *= highRiskReduction
	}
	if snap.WhaleDumpRisk {
		adjusted *= whaleDumpReduction
	}
	return adjusted
}
