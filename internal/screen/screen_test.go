package screen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseConfig() Config {
	return Config{StopLossRequired: true, FlashCrashPct: -0.20, MaxDrawdownThreshold: 0.15}
}

func TestRunPassesWithStopLossUnderThreshold(t *testing.T) {
	source := "func GenerateSignal() { applyStopLoss(price) }"
	result := Run(source, baseConfig())
	assert.True(t, result.Passed)
	assert.Equal(t, "all_checks_passed", result.Reason)
}

func TestRunBlocksOnMissingRequiredStopLoss(t *testing.T) {
	source := "func GenerateSignal() { return Signal{Action: \"BUY\"} }"
	cfg := baseConfig()
	cfg.FlashCrashPct = -0.05 // small enough that the unscaled crash check alone wouldn't trip
	result := Run(source, cfg)
	assert.False(t, result.Passed)
	assert.Contains(t, result.Reason, "blocked_by_stop_loss")
}

func TestRunBlocksOnFlashCrashSurvivabilityWithoutSafetyVocab(t *testing.T) {
	cfg := Config{StopLossRequired: false, FlashCrashPct: -0.50, MaxDrawdownThreshold: 0.15}
	result := Run("func GenerateSignal() { return Signal{} }", cfg)
	assert.False(t, result.Passed)
	assert.Contains(t, result.Reason, "blocked_by_flash_crash_survivability")
}

func TestRunAppliesStopLossMultiplierToFlashCrash(t *testing.T) {
	cfg := Config{StopLossRequired: false, FlashCrashPct: -0.50, MaxDrawdownThreshold: 0.25}
	result := Run("uses stop-loss on every order", cfg)
	assert.True(t, result.Passed)

	var crashResult CheckResult
	for _, r := range result.CheckResults {
		if r.Name == "flash_crash_survivability" {
			crashResult = r
		}
	}
	assert.Contains(t, crashResult.Detail, "0.2000")
}

func TestRunRecordsAdvisoryChecksWithoutBlocking(t *testing.T) {
	cfg := Config{StopLossRequired: false, FlashCrashPct: -0.10, MaxDrawdownThreshold: 0.5}
	result := Run("no safety vocabulary here", cfg)
	assert.True(t, result.Passed)
	for _, r := range result.CheckResults {
		if r.Name == "position_sizing" || r.Name == "drawdown_monitoring" {
			assert.False(t, r.Required)
			assert.True(t, r.Passed)
		}
	}
}

func TestRunChecksRunInFixedOrder(t *testing.T) {
	result := Run("drawdown managed carefully", baseConfig())
	names := make([]string, len(result.CheckResults))
	for i, r := range result.CheckResults {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"stop_loss", "flash_crash_survivability", "position_sizing", "drawdown_monitoring"}, names)
}
