// Package reasoning implements ReasoningLoop (C12): the periodic
// OHLCV-driven regime-aware signal heuristic whose output is published
// as the process-wide latest analysis for the signal-execution loop and
// the Architect's evolution cycle to consume.
package reasoning

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/AbhayRathi/AlphaWEEX/internal/market"
	"github.com/AbhayRathi/AlphaWEEX/internal/memory"
	"github.com/AbhayRathi/AlphaWEEX/internal/regime"
)

const retryBackoff = 60 * time.Second

// EvolutionSuggestion mirrors the original's nullable suggestion
// payload: present only when confidence drops below the threshold.
type EvolutionSuggestion struct {
	Reason     string
	Suggestion string
}

// Analysis is one tick's complete published output.
type Analysis struct {
	Timestamp           time.Time
	Symbol              string
	Signal              string
	Confidence          float64
	Reasoning           string
	Regime              regime.Regime
	RegimeMetrics       regime.Metrics
	Metrics             map[string]any
	CurrentPrice        float64
	PriceChange         float64
	SMAShort            float64
	SMALong             float64
	VolumeSpike         bool
	EvolutionSuggestion *EvolutionSuggestion
}

// Loop owns the published latest analysis and the periodic fetch-
// analyze-publish cycle.
type Loop struct {
	log      zerolog.Logger
	adapter  *market.Adapter
	evoMem   *memory.Memory
	symbol   string
	interval time.Duration

	latest atomic.Pointer[Analysis]
}

func New(adapter *market.Adapter, evoMem *memory.Memory, symbol string, interval time.Duration, log zerolog.Logger) *Loop {
	return &Loop{
		log:      log.With().Str("component", "reasoning_loop").Logger(),
		adapter:  adapter,
		evoMem:   evoMem,
		symbol:   symbol,
		interval: interval,
	}
}

// Latest returns the most recently published analysis, or nil before
// the first tick completes.
func (l *Loop) Latest() *Analysis {
	return l.latest.Load()
}

// Run drives the periodic cycle until ctx is cancelled. Any error
// during a tick is logged and followed by a shortened retry backoff
// rather than terminating the loop, per the fault-tolerant-by-design
// contract.
func (l *Loop) Run(ctx context.Context) {
	l.log.Info().Dur("interval", l.interval).Msg("starting reasoning loop")

	for {
		analysis, err := l.tick(ctx)
		wait := l.interval
		if err != nil {
			l.log.Error().Err(err).Msg("reasoning tick failed, retrying after backoff")
			wait = retryBackoff
		} else {
			l.latest.Store(analysis)
			l.log.Info().Str("signal", analysis.Signal).Float64("confidence", analysis.Confidence).Str("regime", string(analysis.Regime)).Msg("analysis published")
		}

		select {
		case <-ctx.Done():
			l.log.Info().Msg("reasoning loop stopped")
			return
		case <-time.After(wait):
		}
	}
}

func (l *Loop) tick(ctx context.Context) (*Analysis, error) {
	candles, _, err := l.adapter.FetchOHLCV(ctx, l.symbol, "15m", 100)
	if err != nil {
		return nil, fmt.Errorf("fetch ohlcv: %w", err)
	}
	return l.analyze(candles), nil
}

// analyze is the pure regime-aware signal heuristic, ported from the
// original's analyze_ohlcv. It never returns an error: insufficient
// data yields a HOLD analysis rather than a failure.
func (l *Loop) analyze(candles []regime.Candle) *Analysis {
	now := time.Now()

	if len(candles) < 2 {
		return &Analysis{
			Timestamp:  now,
			Symbol:     l.symbol,
			Signal:     "HOLD",
			Confidence: 0,
			Reasoning:  "insufficient data for analysis",
			Regime:     "UNKNOWN",
		}
	}

	metrics := regime.Analyze(candles, regime.Thresholds{})

	recent := candles
	if len(candles) > 20 {
		recent = candles[len(candles)-20:]
	}
	closes := make([]float64, len(recent))
	volumes := make([]float64, len(recent))
	for i, c := range recent {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	currentPrice := closes[len(closes)-1]
	prevPrice := currentPrice
	if len(closes) > 1 {
		prevPrice = closes[len(closes)-2]
	}
	var priceChange float64
	if prevPrice > 0 {
		priceChange = (currentPrice - prevPrice) / prevPrice
	}

	smaShort := average(lastN(closes, 5))
	smaLong := average(closes)

	avgVolume := average(volumes)
	currentVolume := volumes[len(volumes)-1]
	volumeSpike := currentVolume > avgVolume*1.5

	signal := "HOLD"
	confidence := 0.5
	var reasoningParts []string

	switch metrics.Regime {
	case regime.TrendingUp:
		if currentPrice > smaLong && currentPrice > smaShort {
			switch {
			case priceChange > 0.01 && volumeSpike:
				signal, confidence = "BUY", 0.80
				reasoningParts = append(reasoningParts, "strong uptrend confirmed by regime detection with volume")
			case priceChange > 0.005:
				signal, confidence = "BUY", 0.70
				reasoningParts = append(reasoningParts, "trending up regime, moderate buy signal")
			}
		}
	case regime.TrendingDown:
		if currentPrice < smaLong && currentPrice < smaShort {
			switch {
			case priceChange < -0.01 && volumeSpike:
				signal, confidence = "SELL", 0.80
				reasoningParts = append(reasoningParts, "strong downtrend confirmed by regime detection with volume")
			case priceChange < -0.005:
				signal, confidence = "SELL", 0.70
				reasoningParts = append(reasoningParts, "trending down regime, moderate sell signal")
			}
		}
	case regime.RangeVolatile:
		confidence = 0.40
		reasoningParts = append(reasoningParts, "range-volatile regime, waiting for clearer signals, risk management active")
	case regime.RangeQuiet:
		confidence = 0.45
		reasoningParts = append(reasoningParts, "range-quiet regime, watching for breakout")
	default:
		reasoningParts = append(reasoningParts, "mixed signals, maintaining current position")
	}

	var suggestion *EvolutionSuggestion
	if confidence < 0.6 {
		suggestion = &EvolutionSuggestion{
			Reason:     fmt.Sprintf("low confidence (%.2f%%) in %s regime", confidence*100, metrics.Regime),
			Suggestion: fmt.Sprintf("adapt strategy for %s market conditions; consider regime-specific indicators and rules", metrics.Regime),
		}
	}

	return &Analysis{
		Timestamp:           now,
		Symbol:              l.symbol,
		Signal:              signal,
		Confidence:          confidence,
		Reasoning:           strings.Join(reasoningParts, " | "),
		Regime:              metrics.Regime,
		RegimeMetrics:       metrics,
		Metrics:             snapshotMetrics(candles, metrics),
		CurrentPrice:        currentPrice,
		PriceChange:         priceChange,
		SMAShort:            smaShort,
		SMALong:             smaLong,
		VolumeSpike:         volumeSpike,
		EvolutionSuggestion: suggestion,
	}
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

func lastN(xs []float64, n int) []float64 {
	if len(xs) < n {
		return xs
	}
	return xs[len(xs)-n:]
}

// snapshotMetrics builds a compact structured snapshot of the latest
// candle plus regime metrics, attached to each published analysis as
// its Metrics map. It is not written to any trace log.
// Kept as a plain JSON-serializable map rather than rendered text, so
// it composes with the rest of the process' structured logging.
func snapshotMetrics(candles []regime.Candle, metrics regime.Metrics) map[string]any {
	if len(candles) == 0 {
		return map[string]any{"available": false}
	}

	latest := candles[len(candles)-1]
	prevClose := latest.Close
	if len(candles) > 1 {
		prevClose = candles[len(candles)-2].Close
	}
	var change float64
	if prevClose > 0 {
		change = (latest.Close - prevClose) / prevClose * 100
	}

	rsiLabel := "Neutral"
	if metrics.RSI > 70 {
		rsiLabel = "Overbought"
	} else if metrics.RSI < 30 {
		rsiLabel = "Oversold"
	}

	trendLabel := "Weak/No trend"
	if metrics.ADX > 25 {
		trendLabel = "Strong trend"
	}

	return map[string]any{
		"available":     true,
		"timestamp":     time.UnixMilli(latest.TimestampMS).Format(time.RFC3339),
		"open":          latest.Open,
		"high":          latest.High,
		"low":           latest.Low,
		"close":         latest.Close,
		"change_pct":    change,
		"volume":        latest.Volume,
		"rsi":           metrics.RSI,
		"rsi_label":     rsiLabel,
		"atr":           metrics.ATR,
		"adx":           metrics.ADX,
		"trend_label":   trendLabel,
		"plus_di":       metrics.PlusDI,
		"minus_di":      metrics.MinusDI,
		"regime":        metrics.Regime,
	}
}
