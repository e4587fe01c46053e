// Package sentiment implements SentimentProducer (C10): the periodic
// translator of Fear/Greed index readings plus headline keyword skew
// into SharedState's sentiment multiplier.
package sentiment

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/AbhayRathi/AlphaWEEX/internal/market"
	"github.com/AbhayRathi/AlphaWEEX/internal/state"
)

const (
	neutralMultiplier = 1.0
	skewDelta         = 0.1
	skewMinGap        = 2
)

var positiveKeywords = []string{"rally", "surge", "bullish", "gain", "breakout", "adoption", "optimis"}
var negativeKeywords = []string{"crash", "plunge", "bearish", "sell-off", "selloff", "panic", "fear", "collapse"}

// Reading is the producer's payload, attached to SharedState for
// observability via Snapshot.
type Reading struct {
	FearGreedValue   int     `json:"fear_greed_value"`
	Classification   string  `json:"classification"`
	BaseMultiplier   float64 `json:"base_multiplier"`
	PositiveCount    int     `json:"positive_count"`
	NegativeCount    int     `json:"negative_count"`
	SkewApplied      float64 `json:"skew_applied"`
	FinalMultiplier  float64 `json:"final_multiplier"`
	Error            string  `json:"error,omitempty"`
}

// Producer periodically fetches Fear/Greed + headlines through the
// market adapter and publishes a sentiment multiplier.
type Producer struct {
	log         zerolog.Logger
	adapter     *market.Adapter
	sharedState *state.SharedState
}

func New(adapter *market.Adapter, sharedState *state.SharedState, log zerolog.Logger) *Producer {
	return &Producer{
		log:         log.With().Str("component", "sentiment_producer").Logger(),
		adapter:     adapter,
		sharedState: sharedState,
	}
}

// Tick fetches Fear/Greed + headlines, derives a multiplier, and
// publishes it. Any failure falls back to a neutral 1.0 multiplier
// rather than propagating, matching the contract's "on any exception"
// clause.
func (p *Producer) Tick(ctx context.Context) float64 {
	fg, err := p.adapter.FetchFearGreed(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("fear/greed fetch failed, defaulting to neutral sentiment")
		p.sharedState.SetSentiment(neutralMultiplier, Reading{FinalMultiplier: neutralMultiplier, Error: err.Error()})
		return neutralMultiplier
	}

	headlines, err := p.adapter.FetchHeadlines(ctx, 20)
	if err != nil {
		p.log.Warn().Err(err).Msg("headline fetch failed, proceeding with base multiplier only")
		headlines = nil
	}

	base, classification := baseMultiplier(fg.Value)
	pos, neg := countKeywords(headlines)
	skew := headlineSkew(pos, neg)

	final := clamp(base + skew)

	reading := Reading{
		FearGreedValue:  fg.Value,
		Classification:  classification,
		BaseMultiplier:  base,
		PositiveCount:   pos,
		NegativeCount:   neg,
		SkewApplied:     skew,
		FinalMultiplier: final,
	}
	p.sharedState.SetSentiment(final, reading)

	p.log.Info().Int("fear_greed", fg.Value).Float64("multiplier", final).Msg("sentiment updated")
	return final
}

// baseMultiplier implements the F/G-value-to-multiplier table.
func baseMultiplier(value int) (float64, string) {
	switch {
	case value >= 75:
		return 0.6, "Euphoric"
	case value >= 55:
		return 1.0, "Neutral"
	case value >= 45:
		return 1.0, "Neutral"
	case value >= 25:
		return 0.9, "Neutral"
	default:
		return 0.7, "Panicked"
	}
}

func countKeywords(headlines []string) (positive, negative int) {
	for _, h := range headlines {
		lower := strings.ToLower(h)
		for _, kw := range positiveKeywords {
			if strings.Contains(lower, kw) {
				positive++
				break
			}
		}
		for _, kw := range negativeKeywords {
			if strings.Contains(lower, kw) {
				negative++
				break
			}
		}
	}
	return positive, negative
}

// headlineSkew returns +0.1 if positive headlines exceed negative by at
// least 2, -0.1 in the reverse case, and 0 otherwise.
func headlineSkew(positive, negative int) float64 {
	switch {
	case positive-negative >= skewMinGap:
		return skewDelta
	case negative-positive >= skewMinGap:
		return -skewDelta
	default:
		return 0
	}
}

func clamp(m float64) float64 {
	if m < 0.5 {
		return 0.5
	}
	if m > 1.5 {
		return 1.5
	}
	return m
}
