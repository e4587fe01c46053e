// Package supervisor implements Supervisor (C18): the composition root
// that wires every collaborator from a loaded configuration and starts
// the fixed set of independent periodic loops described in spec §4.18,
// each running until a single shutdown signal fans out to all of them.
package supervisor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/AbhayRathi/AlphaWEEX/internal/adversary"
	"github.com/AbhayRathi/AlphaWEEX/internal/architect"
	"github.com/AbhayRathi/AlphaWEEX/internal/config"
	"github.com/AbhayRathi/AlphaWEEX/internal/guardrails"
	"github.com/AbhayRathi/AlphaWEEX/internal/ledger"
	"github.com/AbhayRathi/AlphaWEEX/internal/llm"
	"github.com/AbhayRathi/AlphaWEEX/internal/market"
	"github.com/AbhayRathi/AlphaWEEX/internal/memory"
	"github.com/AbhayRathi/AlphaWEEX/internal/mutator"
	"github.com/AbhayRathi/AlphaWEEX/internal/narrative"
	"github.com/AbhayRathi/AlphaWEEX/internal/oracle"
	"github.com/AbhayRathi/AlphaWEEX/internal/reasoning"
	"github.com/AbhayRathi/AlphaWEEX/internal/reconciliation"
	"github.com/AbhayRathi/AlphaWEEX/internal/screen"
	"github.com/AbhayRathi/AlphaWEEX/internal/sentiment"
	"github.com/AbhayRathi/AlphaWEEX/internal/shadow"
	"github.com/AbhayRathi/AlphaWEEX/internal/state"
)

const (
	shutdownGracePeriod       = 5 * time.Second
	defaultGlobalRiskInterval = time.Hour
	sentimentInterval         = 5 * time.Minute
	narrativeInterval         = 5 * time.Minute
	shadowDriverInterval      = time.Minute
	evolutionGateInterval     = time.Minute
	statusReportInterval      = time.Minute
	reconciliationPeriod      = time.Hour
	basePositionNotional      = 1000.0
	signalExecutionInterval   = time.Minute
	// defaultShadowReferencePrice keeps the behavioral adversary's
	// heuristic fallback meaningful when it has never seen a real price.
	defaultShadowReferencePrice = 90000.0
)

// Supervisor owns every collaborator's lifetime and the fixed loop
// topology: ReasoningLoop, Oracle, SentimentProducer, NarrativePulse,
// ReconciliationAuditor, EvolutionaryMutator, a signal-execution loop,
// a status-reporting loop, a shadow-engine driver, and the
// evolution-gate loop.
type Supervisor struct {
	log zerolog.Logger
	cfg config.Config

	sharedState   *state.SharedState
	marketAdapter *market.Adapter
	llmAdapter    *llm.Adapter
	evoMemory     *memory.Memory
	guardrails    *guardrails.Guardrails
	ledgerStore   *ledger.Ledger
	auditor       *reconciliation.Auditor

	oracle             *oracle.Oracle
	sentimentProducer  *sentiment.Producer
	narrativePulse     *narrative.Pulse
	reasoningLoop      *reasoning.Loop
	adversaryEngine    *adversary.Adversary
	promptMutator      *mutator.Mutator
	shadowEngine       *shadow.Engine
	globalRiskInterval time.Duration

	registry        *architect.Registry
	architectEngine *architect.Architect
}

// New constructs every collaborator. marketClient and llmTransport are
// supplied by the caller: their wire formats are out of scope here, so
// the composition root only depends on the narrow Client/Transport
// contracts the rest of the process already consumes.
func New(cfg config.Config, marketClient market.Client, llmTransport llm.Transport, log zerolog.Logger) (*Supervisor, error) {
	sharedState := state.New(log)

	marketAdapter := market.New(marketClient, log, market.Config{
		CacheEnabled: cfg.Cache.Enabled,
		CacheAddr:    cfg.Cache.Addr,
		CacheDB:      cfg.Cache.DB,
		CacheTTL:     cfg.Cache.DefaultTTL(),
	})
	llmAdapter := llm.New(llmTransport, log)

	evoMemory, err := memory.New(cfg.Paths.EvolutionHistoryFile, log)
	if err != nil {
		return nil, fmt.Errorf("open evolution memory: %w", err)
	}

	guard := guardrails.New(cfg.Trading.InitialEquity, cfg.Trading.KillSwitchThreshold, cfg.Trading.StabilityLockHours, log)

	var ledgerStore *ledger.Ledger
	var auditor *reconciliation.Auditor
	if cfg.Database.Enabled {
		ledgerStore, err = ledger.Open(ledger.Config{
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			QueryTimeout:    cfg.Database.QueryTimeout,
			Enabled:         cfg.Database.Enabled,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		auditor = reconciliation.New(ledgerStore, currentPriceFetcher(marketAdapter, cfg.Trading.Symbol), log)
	}

	oracleEngine := oracle.New(marketAdapter, sharedState, cfg.Evolution.SpyThreshold, log)
	sentimentProducer := sentiment.New(marketAdapter, sharedState, log)
	narrativePulse := narrative.New(sharedState, cfg.Evolution.WhaleThreshold, log)

	reasoningInterval := time.Duration(cfg.Trading.ReasoningIntervalMinutes) * time.Minute
	reasoningLoop := reasoning.New(marketAdapter, evoMemory, cfg.Trading.Symbol, reasoningInterval, log)

	adversaryEngine := adversary.New(llmAdapter, cfg.LLM.Model, defaultShadowReferencePrice, log)

	promptMutator, err := mutator.New(cfg.Paths.PromptsDir, llmAdapter, cfg.LLM.Model, time.Duration(cfg.Evolution.EvolutionIntervalHours)*time.Hour, log)
	if err != nil {
		return nil, fmt.Errorf("open evolutionary mutator: %w", err)
	}

	shadowEngine := shadow.New(cfg.Evolution.PromotionThresholdIterations, cfg.Evolution.SharpeRatioThreshold, log)

	globalRiskInterval := defaultGlobalRiskInterval
	if cfg.Trading.GlobalRiskIntervalMinutes > 0 {
		globalRiskInterval = time.Duration(cfg.Trading.GlobalRiskIntervalMinutes) * time.Minute
	}

	registry := architect.NewRegistry(architect.InitialDecisionModule())
	backtest := newShadowBacktestGate(shadowEngine, cfg.Evolution.MinSharpeDeploy, cfg.Evolution.MaxDrawdownDeploy)
	architectEngine := architect.New(guard, evoMemory, backtest, sharedState, registry, architect.Config{
		ModulePath: cfg.Paths.ActiveModuleFile,
		BackupPath: cfg.Paths.ActiveModuleBackup,
		ScreenConfig: screen.Config{
			StopLossRequired:     true,
			FlashCrashPct:        cfg.Evolution.FlashCrashPct,
			MaxDrawdownThreshold: cfg.Evolution.MaxDrawdownThreshold,
		},
	}, log)

	return &Supervisor{
		log:                log.With().Str("component", "supervisor").Logger(),
		cfg:                cfg,
		sharedState:        sharedState,
		marketAdapter:      marketAdapter,
		llmAdapter:         llmAdapter,
		evoMemory:          evoMemory,
		guardrails:         guard,
		ledgerStore:        ledgerStore,
		auditor:            auditor,
		oracle:             oracleEngine,
		sentimentProducer:  sentimentProducer,
		narrativePulse:     narrativePulse,
		reasoningLoop:      reasoningLoop,
		adversaryEngine:    adversaryEngine,
		promptMutator:      promptMutator,
		shadowEngine:       shadowEngine,
		registry:           registry,
		architectEngine:    architectEngine,
		globalRiskInterval: globalRiskInterval,
	}, nil
}

func currentPriceFetcher(adapter *market.Adapter, symbol string) reconciliation.PriceFetcher {
	return func(ctx context.Context) (float64, error) {
		candles, _, err := adapter.FetchOHLCV(ctx, symbol, "15m", 1)
		if err != nil {
			return 0, err
		}
		if len(candles) == 0 {
			return 0, fmt.Errorf("no candles returned for %s", symbol)
		}
		return candles[len(candles)-1].Close, nil
	}
}

// Run starts every loop and blocks until ctx is cancelled, then waits
// up to shutdownGracePeriod for all loops to return.
func (s *Supervisor) Run(ctx context.Context) {
	s.log.Info().Msg("supervisor starting")

	var wg sync.WaitGroup
	spawn := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
		s.log.Info().Str("loop", name).Msg("loop started")
	}

	spawn("reasoning", s.reasoningLoop.Run)
	spawn("oracle", s.runOracleLoop)
	spawn("sentiment", s.runSentimentLoop)
	spawn("narrative", s.runNarrativeLoop)
	spawn("signal_execution", s.runSignalExecutionLoop)
	spawn("shadow_driver", s.runShadowDriverLoop)
	spawn("evolution_gate", s.runEvolutionGateLoop)
	spawn("status_report", s.runStatusReportLoop)
	spawn("mutator", s.runMutatorLoop)
	if s.auditor != nil {
		spawn("reconciliation", func(ctx context.Context) { s.auditor.Run(ctx, reconciliationPeriod) })
	}

	<-ctx.Done()
	s.log.Info().Msg("shutdown signal received, waiting for loops to drain")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("all loops stopped cleanly")
	case <-time.After(shutdownGracePeriod):
		s.log.Warn().Dur("grace_period", shutdownGracePeriod).Msg("shutdown grace period elapsed, some loops may still be draining")
	}

	if s.ledgerStore != nil {
		if err := s.ledgerStore.Close(); err != nil {
			s.log.Error().Err(err).Msg("failed to close ledger")
		}
	}
}

// interruptibleSleep blocks for d or until ctx is cancelled, whichever
// comes first, returning false if the context won the race.
func interruptibleSleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (s *Supervisor) runOracleLoop(ctx context.Context) {
	for {
		s.oracle.UpdateGlobalRisk(ctx)
		if !interruptibleSleep(ctx, s.globalRiskInterval) {
			s.log.Info().Str("loop", "oracle").Msg("loop stopped")
			return
		}
	}
}

func (s *Supervisor) runSentimentLoop(ctx context.Context) {
	for {
		s.sentimentProducer.Tick(ctx)
		if !interruptibleSleep(ctx, sentimentInterval) {
			s.log.Info().Str("loop", "sentiment").Msg("loop stopped")
			return
		}
	}
}

func (s *Supervisor) runNarrativeLoop(ctx context.Context) {
	for {
		candles, _, err := s.marketAdapter.FetchOHLCV(ctx, s.cfg.Trading.Symbol, "1h", 24)
		if err != nil {
			s.log.Error().Err(err).Msg("narrative pulse failed to fetch volume window")
		} else {
			var volume24h float64
			for _, c := range candles {
				volume24h += c.Volume
			}
			inflow := narrative.SimulatedInflow(volume24h)
			s.narrativePulse.CheckInflow(inflow)
		}
		if !interruptibleSleep(ctx, narrativeInterval) {
			s.log.Info().Str("loop", "narrative").Msg("loop stopped")
			return
		}
	}
}

// runSignalExecutionLoop consumes the latest published analysis,
// combines it with the active decision module's own indicator read and
// the behavioral adversary's psychology read, applies the
// sentiment/risk/whale-aware size adjustment, and records the result
// as a prediction for later reconciliation.
func (s *Supervisor) runSignalExecutionLoop(ctx context.Context) {
	for {
		analysis := s.reasoningLoop.Latest()
		if analysis == nil {
			if !interruptibleSleep(ctx, statusReportInterval) {
				s.log.Info().Str("loop", "signal_execution").Msg("loop stopped")
				return
			}
			continue
		}

		candles, _, err := s.marketAdapter.FetchOHLCV(ctx, s.cfg.Trading.Symbol, "15m", 100)
		if err != nil {
			s.log.Error().Err(err).Msg("signal execution failed to fetch candles")
			if !interruptibleSleep(ctx, statusReportInterval) {
				return
			}
			continue
		}

		closes := make([]float64, len(candles))
		volumes := make([]float64, len(candles))
		for i, c := range candles {
			closes[i] = c.Close
			volumes[i] = c.Volume
		}

		module := s.registry.Current()
		indicators := module.CalculateIndicators(closes, volumes)
		moduleSignal := module.GenerateSignal(indicators, analysis.Signal, analysis.Confidence, analysis.Reasoning)

		adjustedSize := s.architectEngine.GetAdjustedSize(basePositionNotional)

		snapshot := adversary.MarketSnapshot{
			Price:          analysis.CurrentPrice,
			RSI:            analysis.RegimeMetrics.RSI,
			Volume:         indicators.CurrentVolume,
			PriceChangePct: analysis.PriceChange * 100,
			Volatility:     analysis.RegimeMetrics.ATR,
			RecentLows:     lastLows(closes, 10),
		}
		sentimentLabel, narrativeLabel := s.describeSentimentAndRisk()
		result := s.adversaryEngine.AnalyzePsychology(ctx, snapshot, sentimentLabel, narrativeLabel)

		s.shadowEngine.SimulateTradePair(strings.ToLower(moduleSignal.Action), analysis.CurrentPrice, analysis.RegimeMetrics.ATR)

		s.log.Info().
			Str("module_signal", moduleSignal.Action).
			Float64("module_confidence", moduleSignal.Confidence).
			Float64("adjusted_size", adjustedSize).
			Str("archetype", result.DetectedArchetype).
			Msg("signal execution tick")

		if s.ledgerStore != nil {
			_, err := s.ledgerStore.Record(ctx, ledger.Prediction{
				Timestamp:         result.Timestamp,
				PredictedBias:     result.PredictedBias,
				PredictedOutcome:  result.PredictedOutcome,
				Confidence:        result.Confidence,
				MarketRegime:      result.MarketRegime,
				Archetype:         result.DetectedArchetype,
				Signal:            moduleSignal.Action,
				PriceAtPrediction: analysis.CurrentPrice,
			})
			if err != nil {
				s.log.Error().Err(err).Msg("failed to record prediction")
			}
		}

		if !interruptibleSleep(ctx, signalExecutionInterval) {
			s.log.Info().Str("loop", "signal_execution").Msg("loop stopped")
			return
		}
	}
}

func (s *Supervisor) describeSentimentAndRisk() (sentimentLabel, narrativeLabel string) {
	snap := s.sharedState.Snapshot()
	switch {
	case snap.SentimentMultiplier > 1.1:
		sentimentLabel = "greedy"
	case snap.SentimentMultiplier < 0.9:
		sentimentLabel = "fearful"
	default:
		sentimentLabel = "neutral"
	}
	if snap.WhaleDumpRisk {
		narrativeLabel = "whale distribution detected"
	} else {
		narrativeLabel = "no unusual whale activity"
	}
	return sentimentLabel, narrativeLabel
}

func lastLows(closes []float64, n int) []float64 {
	if len(closes) == 0 {
		return nil
	}
	window := closes
	if len(window) > n {
		window = window[len(window)-n:]
	}
	out := make([]float64, len(window))
	copy(out, window)
	return out
}

func (s *Supervisor) runShadowDriverLoop(ctx context.Context) {
	for {
		summary := s.shadowEngine.ComparisonSummary()
		if summary.LatestPromotionAlert != nil {
			s.log.Warn().Str("message", summary.LatestPromotionAlert.Message).Msg("shadow promotion alert active")
		}
		if !interruptibleSleep(ctx, shadowDriverInterval) {
			s.log.Info().Str("loop", "shadow_driver").Msg("loop stopped")
			return
		}
	}
}

// runEvolutionGateLoop implements the evolution-gate loop from spec
// §4.18: every minute, read latest_analysis, and if it carries an
// evolution suggestion, attempt Architect.Evolve, then make the newly
// swapped registry version observable to the signal-execution loop
// (which already re-reads Registry.Current() every tick, so no
// separate reload step is needed beyond the Swap Architect performs
// internally).
func (s *Supervisor) runEvolutionGateLoop(ctx context.Context) {
	for {
		analysis := s.reasoningLoop.Latest()
		if analysis != nil && analysis.EvolutionSuggestion != nil {
			accepted := s.architectEngine.Evolve(architect.Analysis{
				Signal:              analysis.Signal,
				Confidence:          analysis.Confidence,
				Reasoning:           analysis.Reasoning,
				Regime:              analysis.Regime,
				EvolutionSuggestion: analysis.EvolutionSuggestion.Suggestion,
			})
			if accepted {
				s.log.Info().Uint64("registry_version", s.registry.Version()).Msg("decision module evolved and reloaded")
			}
		}
		if !interruptibleSleep(ctx, evolutionGateInterval) {
			s.log.Info().Str("loop", "evolution_gate").Msg("loop stopped")
			return
		}
	}
}

// runMutatorLoop periodically rewrites the adversary's system prompt
// from its worst-scoring ledger predictions. With no ledger configured
// there is nothing to learn from, so the loop idles without attempting
// evolution.
func (s *Supervisor) runMutatorLoop(ctx context.Context) {
	period := time.Duration(s.cfg.Evolution.EvolutionIntervalHours) * time.Hour
	for {
		if s.auditor != nil {
			failures, err := s.auditor.FailedForLearning(ctx, 10, 0.5)
			if err != nil {
				s.log.Error().Err(err).Msg("failed to load failed predictions for prompt evolution")
			} else if _, err := s.promptMutator.EvolvePrompt(ctx, failures, false); err != nil {
				s.log.Error().Err(err).Msg("prompt evolution rejected")
			}
		}
		if !interruptibleSleep(ctx, period) {
			s.log.Info().Str("loop", "mutator").Msg("loop stopped")
			return
		}
	}
}

// runStatusReportLoop periodically logs the consolidated operational
// picture: guardrails status, evolution memory stats, shadow dashboard,
// and shared-state snapshot.
func (s *Supervisor) runStatusReportLoop(ctx context.Context) {
	for {
		guardStatus := s.guardrails.Status()
		memStats := s.evoMemory.Stats()
		dashboard := s.shadowEngine.DashboardData()
		snap := s.sharedState.Snapshot()
		narrativeSummary := s.narrativePulse.Summary()

		s.log.Info().
			Float64("current_equity", guardStatus.CurrentEquity).
			Bool("kill_switch_triggered", guardStatus.KillSwitchTriggered).
			Int("total_evolutions", memStats.TotalEvolutions).
			Str("risk_level", string(snap.RiskLevel)).
			Float64("sentiment_multiplier", snap.SentimentMultiplier).
			Bool("whale_dump_risk", snap.WhaleDumpRisk).
			Str("narrative_recommendation", narrativeSummary.Recommendation).
			Float64("shadow_sharpe", dashboard.ShadowSharpe).
			Float64("live_sharpe", dashboard.LiveSharpe).
			Bool("promotion_alert_active", dashboard.PromotionAlertActive).
			Msg("status report")

		if !interruptibleSleep(ctx, statusReportInterval) {
			s.log.Info().Str("loop", "status_report").Msg("loop stopped")
			return
		}
	}
}

// Status is the read-only operational snapshot exposed to the HTTP
// status surface.
type Status struct {
	Guardrails       guardrails.Status
	Memory           memory.Stats
	Shadow           shadow.DashboardData
	SharedState      state.Snapshot
	Registry         uint64
	ArchitectHistory []architect.HistoryEntry
	Narrative        narrative.Summary
}

// Status assembles the same fields the status-reporting loop logs, for
// synchronous inspection by the HTTP surface.
func (s *Supervisor) Status() Status {
	return Status{
		Guardrails:       s.guardrails.Status(),
		Memory:           s.evoMemory.Stats(),
		Shadow:           s.shadowEngine.DashboardData(),
		SharedState:      s.sharedState.Snapshot(),
		Registry:         s.registry.Version(),
		ArchitectHistory: s.architectEngine.History(),
		Narrative:        s.narrativePulse.Summary(),
	}
}

// TriggerEvolution runs the evolution-gate loop's body once, outside
// its normal one-minute cadence, for operator-invoked forced attempts.
// It requires a reasoning analysis with an evolution suggestion already
// latched into latest_analysis; callers with none waiting get a false,
// no-suggestion-pending result rather than blocking for one to appear.
func (s *Supervisor) TriggerEvolution(ctx context.Context) (accepted bool, reason string) {
	analysis := s.reasoningLoop.Latest()
	if analysis == nil || analysis.EvolutionSuggestion == nil {
		return false, "no evolution suggestion pending in latest_analysis"
	}
	accepted = s.architectEngine.Evolve(architect.Analysis{
		Signal:              analysis.Signal,
		Confidence:          analysis.Confidence,
		Reasoning:           analysis.Reasoning,
		Regime:              analysis.Regime,
		EvolutionSuggestion: analysis.EvolutionSuggestion.Suggestion,
	})
	if accepted {
		return true, fmt.Sprintf("decision module evolved, registry now at version %d", s.registry.Version())
	}
	history := s.architectEngine.History()
	if len(history) > 0 {
		last := history[len(history)-1]
		return false, fmt.Sprintf("rejected by %s: %s", last.RejectedBy, last.Reason)
	}
	return false, "rejected, no history entry recorded"
}

// TriggerAuditCycle runs one reconciliation audit cycle immediately and
// reports how many timeframe scores it filled in: the drop in pending
// 1h/4h/12h scores, summed across the three timeframes. Requires a
// configured ledger database.
func (s *Supervisor) TriggerAuditCycle(ctx context.Context) (int, error) {
	if s.auditor == nil {
		return 0, fmt.Errorf("reconciliation auditor not configured, enable the ledger database")
	}
	before := s.countUnaudited(ctx)
	if err := s.auditor.RunCycle(ctx); err != nil {
		return 0, err
	}
	after := s.countUnaudited(ctx)
	return before - after, nil
}

func (s *Supervisor) countUnaudited(ctx context.Context) int {
	total := 0
	for _, timeframe := range []string{"1h", "4h", "12h"} {
		if predictions, err := s.ledgerStore.Unaudited(ctx, timeframe, 0); err == nil {
			total += len(predictions)
		}
	}
	return total
}
