// Package adversary implements BehavioralAdversary (C13): "the dark
// mirror" that analyzes retail trader psychology (FOMO chasing, panic
// selling, liquidity-hunt zones) via an LLM with a heuristic and shadow
// fallback chain for regional blocks and repeated API failures.
package adversary

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/AbhayRathi/AlphaWEEX/internal/apperrors"
	"github.com/AbhayRathi/AlphaWEEX/internal/llm"
)

// Mode is the three-variant analysis mode machine: API is the default,
// HEURISTIC is a one-shot fallback on a transient failure, SHADOW is a
// permanent fallback once a regional block or repeated failures occur.
type Mode string

const (
	ModeAPI       Mode = "API"
	ModeHeuristic Mode = "HEURISTIC"
	ModeShadow    Mode = "SHADOW"
)

const (
	ArchetypeFOMOChaser      = "FOMO_CHASER"
	ArchetypePanicSeller     = "PANIC_SELLER"
	ArchetypeRevengeTrader   = "REVENGE_TRADER"
	ArchetypeLiquidityHunter = "LIQUIDITY_HUNTER"
	ArchetypeNeutral         = "NEUTRAL"
)

const consecutiveErrorShadowThreshold = 3

// MarketSnapshot is the subset of market context the adversary reasons
// over.
type MarketSnapshot struct {
	Price          float64
	RSI            float64
	Volume         float64
	PriceChangePct float64
	Volatility     float64
	RecentLows     []float64
}

// Result is the adversary's structured output.
type Result struct {
	Timestamp          time.Time
	DetectedArchetype  string
	VulnerabilityScore float64
	PredictedBias      string
	PredictedOutcome   string
	Confidence         float64
	Reasoning          string
	Signal             string
	LiquidityZones     []float64
	MarketRegime       string
	Mode               Mode
	ResponseTime       time.Duration
}

// Adversary owns the mode machine and the LLM collaborator.
type Adversary struct {
	log           zerolog.Logger
	llmAdapter    *llm.Adapter
	model         string
	shadowPrice   float64

	forcedShadow  atomic.Bool
	shadowLatched atomic.Bool
	errorCount    atomic.Int32
}

func New(llmAdapter *llm.Adapter, model string, shadowPrice float64, log zerolog.Logger) *Adversary {
	return &Adversary{
		log:         log.With().Str("component", "behavioral_adversary").Logger(),
		llmAdapter:  llmAdapter,
		model:       model,
		shadowPrice: shadowPrice,
	}
}

// ForceShadowMode permanently switches the adversary into shadow mode,
// for operator-triggered testing or known-regional-block deployments.
func (a *Adversary) ForceShadowMode() {
	a.forcedShadow.Store(true)
}

// AnalyzePsychology is the main entry point; it tries the LLM first
// unless shadow mode is latched, falling back to heuristic-only on a
// transient failure and latching shadow mode permanently on a regional
// block or three consecutive failures.
func (a *Adversary) AnalyzePsychology(ctx context.Context, snapshot MarketSnapshot, sentiment, narrative string) Result {
	start := time.Now()

	if a.forcedShadow.Load() || a.shadowLatched.Load() {
		result := a.shadowModeAnalysis(snapshot, sentiment, narrative)
		result.Mode = ModeShadow
		result.ResponseTime = time.Since(start)
		return result
	}

	result, err := a.aiAnalysis(ctx, snapshot, sentiment, narrative)
	if err == nil {
		a.errorCount.Store(0)
		result.Mode = ModeAPI
		result.ResponseTime = time.Since(start)
		return result
	}

	a.log.Warn().Err(err).Msg("AI analysis failed, falling back")
	newCount := a.errorCount.Add(1)

	if apperrors.Is(err, apperrors.KindRegionalBlock) || newCount >= consecutiveErrorShadowThreshold {
		a.log.Warn().Msg("activating shadow mode due to API errors")
		a.shadowLatched.Store(true)
		result = a.shadowModeAnalysis(snapshot, sentiment, narrative)
		result.Mode = ModeShadow
	} else {
		result = a.heuristicAnalysis(snapshot, sentiment)
		result.Mode = ModeHeuristic
	}
	result.ResponseTime = time.Since(start)
	return result
}

func (a *Adversary) aiAnalysis(ctx context.Context, snapshot MarketSnapshot, sentiment, narrative string) (Result, error) {
	system := "You are a behavioral psychologist analyzing trader psychology. Explain your reasoning step-by-step before providing a final assessment."
	user := buildCoTPrompt(snapshot, sentiment, narrative)

	completion, err := a.llmAdapter.Complete(ctx, system, user, 0.7, 1000, 10*time.Second)
	if err != nil {
		return Result{}, err
	}

	return parseCompletion(completion.Content, snapshot), nil
}

func buildCoTPrompt(s MarketSnapshot, sentiment, narrative string) string {
	if sentiment == "" {
		sentiment = "Unknown"
	}
	if narrative == "" {
		narrative = "No specific narrative"
	}
	return fmt.Sprintf(`Analyze this market situation for psychological vulnerabilities:

TECHNICAL DATA:
- Current Price: $%.2f
- RSI: %.1f
- Volume: %.2f
- Price Change: %.2f%%

SENTIMENT: %s
NARRATIVE: %s

TASK:
1. Identify which trader archetype is vulnerable: FOMO Chaser, Panic Seller, Revenge Trader.
2. Assess if this is Rational or Emotional price action.
3. Predict whale manipulation zones (liquidity hunts).
4. Provide your reasoning step-by-step, then output detected_archetype, vulnerability_score, predicted_bias, predicted_outcome, confidence, signal as JSON.`,
		s.Price, s.RSI, s.Volume, s.PriceChangePct, sentiment, narrative)
}

// parseCompletion extracts a structured result from free-form LLM
// text. The production teacher here intentionally leaves full JSON
// extraction out of scope per spec §1's "LLM is a simple completion
// call" framing: a best-effort content excerpt is used as reasoning and
// the default neutral verdict fills every other field, since parsing
// arbitrary LLM-authored JSON reliably needs a schema contract this
// spec doesn't define.
func parseCompletion(content string, snapshot MarketSnapshot) Result {
	reasoning := content
	if len(reasoning) > 500 {
		reasoning = reasoning[:500]
	}
	return Result{
		Timestamp:          time.Now(),
		DetectedArchetype:  "UNKNOWN",
		VulnerabilityScore: 0.5,
		PredictedBias:      "Unknown",
		PredictedOutcome:   "Unknown",
		Confidence:         0.5,
		Reasoning:          reasoning,
		Signal:             "HOLD",
		LiquidityZones:     liquidityZones(snapshot),
		MarketRegime:       determineRegime(snapshot),
	}
}

// heuristicAnalysis is the offline RSI-driven fallback: detects the two
// cheapest-to-verify archetypes (FOMO chaser, panic seller) without any
// external call.
func (a *Adversary) heuristicAnalysis(s MarketSnapshot, sentiment string) Result {
	archetype := ArchetypeNeutral
	vulnerability := 0.5
	bias := "Unknown"
	outcome := "Unknown"
	confidence := 0.6
	signal := "HOLD"

	switch {
	case s.RSI > 75 && s.PriceChangePct > 3:
		archetype = ArchetypeFOMOChaser
		vulnerability = clamp01((s.RSI - 70) / 30)
		bias = "Bullish Extension"
		outcome = "Bull Trap / Reversal"
		confidence = 0.7
		signal = "SELL"
	case s.RSI < 25 && strings.Contains(strings.ToLower(sentiment), "fear"):
		archetype = ArchetypePanicSeller
		vulnerability = clamp01((25 - s.RSI) / 25)
		bias = "Bearish Capitulation"
		outcome = "Mean Reversion"
		confidence = 0.75
		signal = "BUY"
	}

	return Result{
		Timestamp:          time.Now(),
		DetectedArchetype:  archetype,
		VulnerabilityScore: vulnerability,
		PredictedBias:      bias,
		PredictedOutcome:   outcome,
		Confidence:         confidence,
		Reasoning:          fmt.Sprintf("heuristic analysis: RSI=%.1f, price change=%.1f%%", s.RSI, s.PriceChangePct),
		Signal:             signal,
		LiquidityZones:     liquidityZones(s),
		MarketRegime:       determineRegime(s),
	}
}

// shadowModeAnalysis keeps the reasoning loop alive on synthetic $90k
// BTC data, merging in whatever real fields the caller did supply.
func (a *Adversary) shadowModeAnalysis(s MarketSnapshot, sentiment, narrative string) Result {
	merged := s
	if merged.Price == 0 {
		merged.Price = a.shadowPrice
	}
	if merged.RSI == 0 {
		merged.RSI = 55.0
	}
	if merged.Volume == 0 {
		merged.Volume = 1000.0
	}

	result := a.heuristicAnalysis(merged, sentiment)
	result.Reasoning = fmt.Sprintf("shadow mode (synthetic price $%.0f): %s", a.shadowPrice, result.Reasoning)
	return result
}

// liquidityZones ports the stop-loss-cluster heuristic: obvious round
// percentage levels below price, plus 0.5%-below-swing-low zones,
// descending.
func liquidityZones(s MarketSnapshot) []float64 {
	if s.Price == 0 {
		return nil
	}

	zones := []float64{round2(s.Price * 0.995), round2(s.Price * 0.99), round2(s.Price * 0.98)}
	seen := map[float64]bool{}
	for _, z := range zones {
		seen[z] = true
	}

	for _, low := range s.RecentLows {
		zone := round2(low * 0.995)
		if !seen[zone] {
			zones = append(zones, zone)
			seen[zone] = true
		}
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(zones)))
	return zones
}

func determineRegime(s MarketSnapshot) string {
	switch {
	case s.Volatility > 3:
		return "VOLATILE"
	case s.RSI > 60 && s.PriceChangePct > 1:
		return "BULL"
	case s.RSI < 40 && s.PriceChangePct < -1:
		return "BEAR"
	default:
		return "CHOPPY"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
