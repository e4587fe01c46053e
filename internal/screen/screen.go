// Package screen implements AdversarialScreen (C16): a static
// pre-deployment screen of a candidate decision-module source using
// case-insensitive keyword presence against a fixed vocabulary.
package screen

import (
	"fmt"
	"strings"
)

var stopLossVocab = []string{"stop loss", "stop-loss", "stoploss", "stop_loss"}
var positionLimitVocab = []string{"position size", "position sizing", "position limit", "max position"}
var riskDrawdownVocab = []string{"drawdown", "risk management", "max_drawdown"}

// Config parameterizes the screen's thresholds.
type Config struct {
	StopLossRequired     bool
	FlashCrashPct        float64
	MaxDrawdownThreshold float64
}

// Result is the outcome of Run: Passed is false if any required check
// failed; CheckResults records each check's individual verdict for
// transparency, mirroring the teacher's GateReason aggregation style.
type Result struct {
	Passed       bool
	Reason       string
	CheckResults []CheckResult
}

type CheckResult struct {
	Name     string
	Passed   bool
	Required bool
	Detail   string
}

func containsAny(source string, vocab []string) bool {
	lower := strings.ToLower(source)
	for _, term := range vocab {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// Run screens a candidate module source. Checks run in a fixed order so
// the first blocking reason is deterministic.
func Run(source string, cfg Config) Result {
	results := make([]CheckResult, 0, 4)

	hasStopLoss := containsAny(source, stopLossVocab)
	stopLossCheck := CheckResult{Name: "stop_loss", Passed: hasStopLoss || !cfg.StopLossRequired, Required: cfg.StopLossRequired, Detail: "stop-loss vocabulary present"}
	if !hasStopLoss {
		stopLossCheck.Detail = "no stop-loss vocabulary found"
	}
	results = append(results, stopLossCheck)

	survived, simulatedDrawdown := simulateFlashCrash(source, cfg.FlashCrashPct, hasStopLoss)
	crashCheck := CheckResult{
		Name:     "flash_crash_survivability",
		Passed:   simulatedDrawdown <= cfg.MaxDrawdownThreshold,
		Required: true,
		Detail:   fmt.Sprintf("simulated drawdown %.4f vs threshold %.4f", simulatedDrawdown, cfg.MaxDrawdownThreshold),
	}
	results = append(results, crashCheck)
	_ = survived

	hasPositionSizing := containsAny(source, positionLimitVocab)
	results = append(results, CheckResult{Name: "position_sizing", Passed: true, Required: false, Detail: fmt.Sprintf("present=%v", hasPositionSizing)})

	hasDrawdownMonitoring := containsAny(source, riskDrawdownVocab)
	results = append(results, CheckResult{Name: "drawdown_monitoring", Passed: true, Required: false, Detail: fmt.Sprintf("present=%v", hasDrawdownMonitoring)})

	for _, r := range results {
		if r.Required && !r.Passed {
			return Result{Passed: false, Reason: fmt.Sprintf("blocked_by_%s: %s", r.Name, r.Detail), CheckResults: results}
		}
	}

	return Result{Passed: true, Reason: "all_checks_passed", CheckResults: results}
}

// simulateFlashCrash scales the configured flash-crash magnitude down
// based on which safety vocabulary is present in the candidate source,
// per the contract's fixed multiplier table.
func simulateFlashCrash(source string, flashCrashPct float64, hasStopLoss bool) (survived bool, simulatedDrawdown float64) {
	magnitude := flashCrashPct
	if magnitude < 0 {
		magnitude = -magnitude
	}

	switch {
	case hasStopLoss:
		magnitude *= 0.4
	case containsAny(source, positionLimitVocab):
		magnitude *= 0.7
	case containsAny(source, riskDrawdownVocab):
		magnitude *= 0.8
	}

	return true, magnitude
}
