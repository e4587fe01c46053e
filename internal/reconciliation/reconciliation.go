// Package reconciliation implements ReconciliationAuditor (C14): the
// periodic job that compares past predictions against realized prices
// at 1h/4h/12h horizons and assigns each a success score, closing the
// loop between what the reasoning and adversary components predicted
// and what the market actually did.
package reconciliation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/AbhayRathi/AlphaWEEX/internal/ledger"
)

// auditIntervals are the horizons audited on every cycle, in hours.
var auditIntervals = []int{1, 4, 12}

func timeframeFor(hours int) string { return fmt.Sprintf("%dh", hours) }

// PriceFetcher returns the current market price to reconcile against.
type PriceFetcher func(ctx context.Context) (float64, error)

// Auditor drives the audit cycle against a Ledger.
type Auditor struct {
	log          zerolog.Logger
	ledger       *ledger.Ledger
	priceFetcher PriceFetcher
}

func New(l *ledger.Ledger, priceFetcher PriceFetcher, log zerolog.Logger) *Auditor {
	return &Auditor{
		log:          log.With().Str("component", "reconciliation_auditor").Logger(),
		ledger:       l,
		priceFetcher: priceFetcher,
	}
}

// RunCycle audits every timeframe against a single current price
// sample, then logs ledger-wide statistics. A failure to obtain the
// current price skips the entire cycle rather than auditing against
// stale or zero data.
func (a *Auditor) RunCycle(ctx context.Context) error {
	currentPrice, err := a.priceFetcher(ctx)
	if err != nil {
		return fmt.Errorf("fetch current price: %w", err)
	}
	if currentPrice <= 0 {
		a.log.Warn().Msg("no current price available, skipping audit cycle")
		return nil
	}

	for _, hours := range auditIntervals {
		tf := timeframeFor(hours)
		if err := a.auditTimeframe(ctx, tf, hours, currentPrice); err != nil {
			a.log.Error().Err(err).Str("timeframe", tf).Msg("timeframe audit failed")
		}
	}

	stats, err := a.ledger.Statistics(ctx)
	if err != nil {
		return fmt.Errorf("audit statistics: %w", err)
	}
	a.log.Info().
		Int("total_predictions", stats.TotalPredictions).
		Int("audited", stats.AuditedPredictions).
		Int("pending_audit", stats.PendingAudit).
		Float64("avg_score_1h", stats.AvgScore1h).
		Float64("avg_score_4h", stats.AvgScore4h).
		Float64("avg_score_12h", stats.AvgScore12h).
		Msg("audit cycle complete")
	return nil
}

func (a *Auditor) auditTimeframe(ctx context.Context, timeframe string, hours int, currentPrice float64) error {
	predictions, err := a.ledger.Unaudited(ctx, timeframe, hours)
	if err != nil {
		return fmt.Errorf("unaudited predictions: %w", err)
	}

	a.log.Debug().Int("count", len(predictions)).Str("timeframe", timeframe).Msg("auditing predictions")

	for _, pred := range predictions {
		if err := a.ledger.SetActualPrice(ctx, pred.ID, timeframe, currentPrice); err != nil {
			a.log.Error().Err(err).Int64("prediction_id", pred.ID).Msg("set actual price failed")
			continue
		}

		score := calculateSuccessScore(pred, currentPrice)

		if err := a.ledger.SetScore(ctx, pred.ID, timeframe, score); err != nil {
			a.log.Error().Err(err).Int64("prediction_id", pred.ID).Msg("set success score failed")
			continue
		}

		a.log.Debug().Int64("prediction_id", pred.ID).Str("bias", pred.PredictedBias).Float64("score", score).Msg("prediction scored")
	}
	return nil
}

// calculateSuccessScore ports the original's scoring rubric: scale the
// realized price-change percentage against the predicted direction to
// a [-1, 1] score, boost it when the predicted narrative pattern
// (reversal/trap, mean reversion) actually played out, then weight the
// result by the prediction's own confidence.
func calculateSuccessScore(p ledger.Prediction, actualPrice float64) float64 {
	if p.PriceAtPrediction == 0 {
		return 0
	}
	priceChangePct := (actualPrice - p.PriceAtPrediction) / p.PriceAtPrediction * 100

	var score float64
	switch p.Signal {
	case "BUY":
		if priceChangePct > 0 {
			score = math.Min(priceChangePct/5.0, 1.0)
		} else {
			score = math.Max(priceChangePct/5.0, -1.0)
		}
	case "SELL":
		if priceChangePct < 0 {
			score = math.Min(math.Abs(priceChangePct)/5.0, 1.0)
		} else {
			score = math.Max(-priceChangePct/5.0, -1.0)
		}
	}

	outcome := strings.ToLower(p.PredictedOutcome)
	switch {
	case strings.Contains(outcome, "reversal") || strings.Contains(outcome, "trap"):
		if p.Signal == "SELL" && priceChangePct < -1 {
			score = math.Max(score, 0.8)
		} else if p.Signal == "BUY" && priceChangePct > 1 {
			score = math.Max(score, 0.8)
		}
	case strings.Contains(outcome, "mean reversion"):
		if p.Signal == "BUY" && priceChangePct > 0 {
			score = math.Max(score, 0.7)
		} else if p.Signal == "SELL" && priceChangePct < 0 {
			score = math.Max(score, 0.7)
		}
	}

	score *= p.Confidence
	return math.Round(score*1000) / 1000
}

// FailedForLearning surfaces the worst-scoring audited predictions for
// the evolutionary mutator to learn from.
func (a *Auditor) FailedForLearning(ctx context.Context, topN int, minConfidence float64) ([]ledger.Prediction, error) {
	return a.ledger.Failed(ctx, topN, minConfidence)
}

// Run drives RunCycle on a fixed period until ctx is cancelled.
func (a *Auditor) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	a.log.Info().Dur("period", period).Msg("starting reconciliation auditor")
	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("reconciliation auditor stopped")
			return
		case <-ticker.C:
			if err := a.RunCycle(ctx); err != nil {
				a.log.Error().Err(err).Msg("audit cycle failed")
			}
		}
	}
}
