package reconciliation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AbhayRathi/AlphaWEEX/internal/ledger"
)

func TestCalculateSuccessScoreBuyCorrectDirection(t *testing.T) {
	p := ledger.Prediction{Signal: "BUY", PriceAtPrediction: 100, Confidence: 1.0}
	// +10% move on a BUY: 10/5 = 2.0, clamped to 1.0
	score := calculateSuccessScore(p, 110)
	assert.Equal(t, 1.0, score)
}

func TestCalculateSuccessScoreBuyWrongDirection(t *testing.T) {
	p := ledger.Prediction{Signal: "BUY", PriceAtPrediction: 100, Confidence: 1.0}
	// -10% move on a BUY: -10/5 = -2.0, clamped to -1.0
	score := calculateSuccessScore(p, 90)
	assert.Equal(t, -1.0, score)
}

func TestCalculateSuccessScoreSellCorrectDirection(t *testing.T) {
	p := ledger.Prediction{Signal: "SELL", PriceAtPrediction: 100, Confidence: 0.5}
	// -4% move on a SELL: 4/5 = 0.8, weighted by confidence 0.5 -> 0.4
	score := calculateSuccessScore(p, 96)
	assert.Equal(t, 0.4, score)
}

func TestCalculateSuccessScoreReversalTrapBonus(t *testing.T) {
	p := ledger.Prediction{
		Signal:            "SELL",
		PredictedOutcome:  "Bull Trap / Reversal",
		PriceAtPrediction: 100,
		Confidence:        1.0,
	}
	// -2% move confirms the trap: base score = 2/5 = 0.4, boosted to 0.8
	score := calculateSuccessScore(p, 98)
	assert.Equal(t, 0.8, score)
}

func TestCalculateSuccessScoreMeanReversionBonus(t *testing.T) {
	p := ledger.Prediction{
		Signal:            "BUY",
		PredictedOutcome:  "Mean Reversion",
		PriceAtPrediction: 100,
		Confidence:        1.0,
	}
	// +0.5% move confirms the reversion direction: base score small, boosted to 0.7
	score := calculateSuccessScore(p, 100.5)
	assert.Equal(t, 0.7, score)
}

func TestCalculateSuccessScoreZeroPredictedPriceIsZero(t *testing.T) {
	p := ledger.Prediction{Signal: "BUY", PriceAtPrediction: 0, Confidence: 1.0}
	assert.Equal(t, 0.0, calculateSuccessScore(p, 100))
}

func TestCalculateSuccessScoreHoldSignalYieldsZeroBase(t *testing.T) {
	p := ledger.Prediction{Signal: "HOLD", PriceAtPrediction: 100, Confidence: 1.0}
	assert.Equal(t, 0.0, calculateSuccessScore(p, 110))
}

func TestTimeframeForFormatsHours(t *testing.T) {
	assert.Equal(t, "1h", timeframeFor(1))
	assert.Equal(t, "4h", timeframeFor(4))
	assert.Equal(t, "12h", timeframeFor(12))
}
