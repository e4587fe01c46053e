// Package shadow implements ShadowEngine (C17): a parallel in-memory
// high-risk strategy run alongside the live one, tracked by rolling
// Sharpe ratio, that raises a promotion alert once it has sustained a
// higher risk-adjusted return than live over enough iterations.
package shadow

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	basePositionSize  = 1000.0
	sharpeWindow      = 30
	tradingDaysPerYear = 252
	bullishBias        = 0.3
)

// Strategy tracks one side's (shadow or live) simulated trade history.
type Strategy struct {
	Name               string
	LeverageMultiplier float64
	RiskMultiplier     float64

	roiHistory    []float64
	sharpeHistory []float64
	tradeCount    int
	winCount      int
	totalPnL      float64
}

func newStrategy(name string, leverage, risk float64) *Strategy {
	return &Strategy{Name: name, LeverageMultiplier: leverage, RiskMultiplier: risk}
}

func (s *Strategy) recordTrade(pnl float64, isWinner bool, sharpe float64) {
	s.tradeCount++
	if isWinner {
		s.winCount++
	}
	s.totalPnL += pnl
	roi := (pnl / basePositionSize) * 100
	s.roiHistory = append(s.roiHistory, roi)
	s.sharpeHistory = append(s.sharpeHistory, sharpe)
}

// Stats is the strategy's point-in-time summary.
type Stats struct {
	Name               string
	LeverageMultiplier float64
	RiskMultiplier     float64
	TradeCount         int
	WinCount           int
	WinRate            float64
	TotalPnL           float64
	AvgROI             float64
	AvgSharpe          float64
	RecentROI          []float64
	RecentSharpe       []float64
}

func (s *Strategy) stats() Stats {
	winRate := 0.0
	if s.tradeCount > 0 {
		winRate = float64(s.winCount) / float64(s.tradeCount)
	}
	return Stats{
		Name:               s.Name,
		LeverageMultiplier: s.LeverageMultiplier,
		RiskMultiplier:     s.RiskMultiplier,
		TradeCount:         s.tradeCount,
		WinCount:           s.winCount,
		WinRate:            winRate,
		TotalPnL:           s.totalPnL,
		AvgROI:             average(s.roiHistory),
		AvgSharpe:          average(s.sharpeHistory),
		RecentROI:          lastN(s.roiHistory, 10),
		RecentSharpe:       lastN(s.sharpeHistory, 10),
	}
}

// PromotionAlert fires once the shadow strategy sustains a higher
// Sharpe ratio than live over enough iterations.
type PromotionAlert struct {
	Timestamp    time.Time
	Message      string
	ShadowStats  Stats
	LiveStats    Stats
	Recommendation string
}

// SimulationResult is one simulate-trade-pair call's output.
type SimulationResult struct {
	Timestamp       time.Time
	MarketSignal    string
	LivePnL         float64
	LiveSharpe      float64
	ShadowPnL       float64
	ShadowSharpe    float64
	PromotionAlert  *PromotionAlert
}

// Engine owns both strategies and the accumulated promotion alert log.
type Engine struct {
	log zerolog.Logger

	promotionThresholdIterations int
	sharpeRatioThreshold          float64

	mu              sync.Mutex
	shadow          *Strategy
	live            *Strategy
	promotionAlerts []PromotionAlert
	rng             *rand.Rand
}

func New(promotionThresholdIterations int, sharpeRatioThreshold float64, log zerolog.Logger) *Engine {
	return &Engine{
		log:                           log.With().Str("component", "shadow_engine").Logger(),
		promotionThresholdIterations:  promotionThresholdIterations,
		sharpeRatioThreshold:          sharpeRatioThreshold,
		shadow:                        newStrategy("Shadow-HighRisk", 2.0, 1.5),
		live:                          newStrategy("Live-Standard", 1.0, 1.0),
		rng:                           rand.New(rand.NewSource(1)),
	}
}

// SimulateTradePair runs one simulated trade through both the live and
// shadow strategies and checks promotion criteria once shadow has
// enough trades.
func (e *Engine) SimulateTradePair(signal string, marketPrice, marketVolatility float64) SimulationResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	livePnL := e.simulateSingleTrade(signal, marketPrice, e.live.LeverageMultiplier, marketVolatility)
	liveSharpe := e.calculateSharpe(e.live)
	e.live.recordTrade(livePnL, livePnL > 0, liveSharpe)

	shadowVolatility := marketVolatility * e.shadow.RiskMultiplier
	shadowPnL := e.simulateSingleTrade(signal, marketPrice, e.shadow.LeverageMultiplier, shadowVolatility)
	shadowSharpe := e.calculateSharpe(e.shadow)
	e.shadow.recordTrade(shadowPnL, shadowPnL > 0, shadowSharpe)

	var alert *PromotionAlert
	if e.shadow.tradeCount >= e.promotionThresholdIterations {
		alert = e.checkPromotionCriteria()
	}

	return SimulationResult{
		Timestamp:      time.Now(),
		MarketSignal:   signal,
		LivePnL:        livePnL,
		LiveSharpe:     liveSharpe,
		ShadowPnL:      shadowPnL,
		ShadowSharpe:   shadowSharpe,
		PromotionAlert: alert,
	}
}

// simulateSingleTrade ports the original's Gaussian-noise-plus-bias
// PnL model: a hold signal never trades, buy/sell signals tilt the
// simulated price move in their favored direction before applying
// leverage against a fixed notional position size.
func (e *Engine) simulateSingleTrade(signal string, price, leverage, volatility float64) float64 {
	if signal == "hold" {
		return 0.0
	}

	baseMove := e.rng.NormFloat64() * volatility
	var priceMove float64
	switch signal {
	case "buy":
		priceMove = baseMove + volatility*bullishBias
	case "sell":
		priceMove = baseMove - volatility*bullishBias
	default:
		priceMove = baseMove
	}

	if price == 0 {
		return 0.0
	}
	return (priceMove * price) * leverage * (basePositionSize / price)
}

// calculateSharpe computes the annualized Sharpe ratio over the last
// 30 recorded returns, assuming daily sampling.
func (e *Engine) calculateSharpe(s *Strategy) float64 {
	if len(s.roiHistory) < 2 {
		return 0.0
	}
	recent := lastN(s.roiHistory, sharpeWindow)
	if len(recent) < 2 {
		return 0.0
	}

	avg := average(recent)
	std := stddev(recent, avg)
	if std == 0 {
		return 0.0
	}
	return (avg / std) * math.Sqrt(tradingDaysPerYear)
}

// checkPromotionCriteria fires (and resets both trade counts) the
// first time shadow's Sharpe both exceeds live's and clears the
// configured threshold, once shadow has traded enough times.
func (e *Engine) checkPromotionCriteria() *PromotionAlert {
	shadowStats := e.shadow.stats()
	liveStats := e.live.stats()

	if shadowStats.AvgSharpe > liveStats.AvgSharpe &&
		shadowStats.AvgSharpe >= e.sharpeRatioThreshold &&
		e.shadow.tradeCount >= e.promotionThresholdIterations {

		alert := PromotionAlert{
			Timestamp: time.Now(),
			Message: fmt.Sprintf("shadow strategy outperforms live: shadow sharpe %.2f > live sharpe %.2f over %d iterations",
				shadowStats.AvgSharpe, liveStats.AvgSharpe, e.shadow.tradeCount),
			ShadowStats:    shadowStats,
			LiveStats:      liveStats,
			Recommendation: "consider promoting shadow strategy to live",
		}
		e.promotionAlerts = append(e.promotionAlerts, alert)
		e.log.Warn().Str("message", alert.Message).Msg("promotion alert")

		e.shadow.tradeCount = 0
		e.live.tradeCount = 0

		return &alert
	}
	return nil
}

// ComparisonSummary is the shadow-vs-live head-to-head snapshot.
type ComparisonSummary struct {
	Shadow                Stats
	Live                  Stats
	ROIDiff               float64
	SharpeDiff            float64
	WinRateDiff           float64
	ShadowOutperforms     bool
	PromotionAlertsCount  int
	LatestPromotionAlert  *PromotionAlert
}

func (e *Engine) ComparisonSummary() ComparisonSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	shadowStats := e.shadow.stats()
	liveStats := e.live.stats()

	var latest *PromotionAlert
	if n := len(e.promotionAlerts); n > 0 {
		alert := e.promotionAlerts[n-1]
		latest = &alert
	}

	return ComparisonSummary{
		Shadow:               shadowStats,
		Live:                 liveStats,
		ROIDiff:              shadowStats.AvgROI - liveStats.AvgROI,
		SharpeDiff:           shadowStats.AvgSharpe - liveStats.AvgSharpe,
		WinRateDiff:          shadowStats.WinRate - liveStats.WinRate,
		ShadowOutperforms:    shadowStats.AvgSharpe > liveStats.AvgSharpe,
		PromotionAlertsCount: len(e.promotionAlerts),
		LatestPromotionAlert: latest,
	}
}

// ResetShadowStrategy replaces the shadow strategy with a freshly
// parameterized one, versioning its name by the number of promotions
// seen so far.
func (e *Engine) ResetShadowStrategy(leverage, risk float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shadow = newStrategy(fmt.Sprintf("Shadow-HighRisk-v%d", len(e.promotionAlerts)+1), leverage, risk)
	e.log.Info().Float64("leverage", leverage).Float64("risk", risk).Msg("shadow strategy reset")
}

// DashboardData is the operational-feed-friendly projection of the
// comparison summary.
type DashboardData struct {
	ShadowROI             float64
	LiveROI               float64
	ShadowSharpe          float64
	LiveSharpe            float64
	ShadowTrades          int
	IterationsToPromotion int
	PromotionAlertActive  bool
	LatestAlert           *PromotionAlert
}

func (e *Engine) DashboardData() DashboardData {
	comparison := e.ComparisonSummary()
	return DashboardData{
		ShadowROI:             comparison.Shadow.AvgROI,
		LiveROI:               comparison.Live.AvgROI,
		ShadowSharpe:          comparison.Shadow.AvgSharpe,
		LiveSharpe:            comparison.Live.AvgSharpe,
		ShadowTrades:          comparison.Shadow.TradeCount,
		IterationsToPromotion: e.promotionThresholdIterations - comparison.Shadow.TradeCount,
		PromotionAlertActive:  comparison.Shadow.AvgSharpe > comparison.Live.AvgSharpe && comparison.Shadow.TradeCount >= e.promotionThresholdIterations,
		LatestAlert:           comparison.LatestPromotionAlert,
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

func stddev(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sumSq float64
	for _, v := range xs {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

func lastN(xs []float64, n int) []float64 {
	if len(xs) <= n {
		out := make([]float64, len(xs))
		copy(out, xs)
		return out
	}
	out := make([]float64, n)
	copy(out, xs[len(xs)-n:])
	return out
}
