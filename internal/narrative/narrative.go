// Package narrative implements NarrativePulse (C11): the periodic
// whale-inflow monitor that sets SharedState's whale-dump flag and
// one-way elevates risk to HIGH, never demoting it itself.
package narrative

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/AbhayRathi/AlphaWEEX/internal/state"
)

// Event records a single observed inflow that crossed the whale
// threshold, for /status introspection.
type Event struct {
	InflowBTC      float64
	Threshold      float64
	RiskLevel      string // "HIGH" if > 2x threshold, else "MEDIUM"
	Recommendation string
}

// Summary is the narrative-wide state surfaced on /status, pairing the
// whale-risk flag with a short human-readable trading recommendation.
type Summary struct {
	WhaleDumpRisk  bool
	RiskLevel      string
	Recommendation string
	RecentEvents   []Event
}

const maxEvents = 50

// recommendationFor maps a narrative risk level to the original's
// trading recommendation text.
func recommendationFor(riskLevel string) string {
	switch riskLevel {
	case "HIGH":
		return "Reduce position sizes and tighten stop-losses"
	case "MEDIUM":
		return "Monitor closely and be ready to reduce exposure"
	default:
		return "Continue normal trading operations"
	}
}

// Pulse monitors simulated exchange inflow against a whale threshold.
type Pulse struct {
	log             zerolog.Logger
	sharedState     *state.SharedState
	whaleThreshold  float64

	mu      sync.Mutex
	events  []Event
}

func New(sharedState *state.SharedState, whaleThreshold float64, log zerolog.Logger) *Pulse {
	return &Pulse{
		log:            log.With().Str("component", "narrative_pulse").Logger(),
		sharedState:    sharedState,
		whaleThreshold: whaleThreshold,
	}
}

// CheckInflow evaluates one observed exchange-inflow reading. Crossing
// the threshold sets whale_dump_risk and, if current risk is NORMAL,
// elevates it to HIGH; Oracle remains the only component permitted to
// demote risk back to NORMAL, so a clear reading here only clears the
// whale-dump flag, never the risk level.
func (p *Pulse) CheckInflow(inflowBTC float64) (isWhaleEvent bool) {
	isWhaleEvent = inflowBTC > p.whaleThreshold

	if isWhaleEvent {
		level := "MEDIUM"
		if inflowBTC > p.whaleThreshold*2 {
			level = "HIGH"
		}
		p.log.Warn().Float64("inflow_btc", inflowBTC).Float64("threshold", p.whaleThreshold).Msg("whale inflow detected")

		p.recordEvent(Event{InflowBTC: inflowBTC, Threshold: p.whaleThreshold, RiskLevel: level, Recommendation: recommendationFor(level)})
		p.sharedState.SetWhaleDump(true)

		if p.sharedState.GetRisk() == state.RiskNormal {
			p.log.Warn().Msg("elevating risk to HIGH due to whale inflow")
			p.sharedState.SetRisk(state.RiskHigh, map[string]any{"reason": "whale_inflow", "inflow_btc": inflowBTC})
		}
	} else {
		p.sharedState.SetWhaleDump(false)
	}

	return isWhaleEvent
}

func (p *Pulse) recordEvent(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	if len(p.events) > maxEvents {
		p.events = p.events[len(p.events)-maxEvents:]
	}
}

func (p *Pulse) RecentEvents(limit int) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.events)
	if limit > n {
		limit = n
	}
	out := make([]Event, limit)
	copy(out, p.events[n-limit:])
	return out
}

// Summary reports the current whale-dump risk flag and the trading
// recommendation for the most recent event's risk level, alongside the
// recent event history.
func (p *Pulse) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()

	whaleDumpRisk := p.sharedState.Snapshot().WhaleDumpRisk

	riskLevel := "NORMAL"
	if n := len(p.events); n > 0 && whaleDumpRisk {
		riskLevel = p.events[n-1].RiskLevel
	}

	limit := len(p.events)
	if limit > 10 {
		limit = 10
	}
	recent := make([]Event, limit)
	copy(recent, p.events[len(p.events)-limit:])

	return Summary{
		WhaleDumpRisk:  whaleDumpRisk,
		RiskLevel:      riskLevel,
		Recommendation: recommendationFor(riskLevel),
		RecentEvents:   recent,
	}
}

// SimulatedInflow derives a mock exchange-inflow reading from observed
// 24h volume (0.1% of volume, per the original's demonstration
// heuristic), used when no real on-chain flow provider is configured.
func SimulatedInflow(volume24h float64) float64 {
	return volume24h * 0.001
}
