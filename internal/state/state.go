// Package state implements SharedState: the process-wide, concurrency-safe
// record of global risk level, sentiment multiplier, and whale-dump flag
// consulted by the Architect when adjusting trade size.
package state

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RiskLevel is the two-variant enum owned by SharedState.
type RiskLevel string

const (
	RiskNormal RiskLevel = "NORMAL"
	RiskHigh   RiskLevel = "HIGH"
)

const (
	sentimentMin = 0.5
	sentimentMax = 1.5
)

// Snapshot is a deep copy of every field plus last-update timestamps,
// returned by Snapshot() so callers that need several fields evaluated
// together don't tear a read across multiple lock acquisitions.
type Snapshot struct {
	RiskLevel           RiskLevel
	RiskPayload         any
	RiskUpdatedAt       time.Time
	SentimentMultiplier float64
	SentimentPayload    any
	SentimentUpdatedAt  time.Time
	WhaleDumpRisk       bool
	WhaleUpdatedAt      time.Time
}

// SharedState serializes all reads/writes behind a single exclusion
// scope. No operation spans more than one field's worth of work, and
// there is no multi-field atomic transaction — callers needing a
// coherent cross-field view must call Snapshot().
type SharedState struct {
	mu  sync.RWMutex
	log zerolog.Logger

	riskLevel     RiskLevel
	riskPayload   any
	riskUpdatedAt time.Time

	sentimentMultiplier float64
	sentimentPayload    any
	sentimentUpdatedAt  time.Time

	whaleDumpRisk  bool
	whaleUpdatedAt time.Time
}

// New returns a SharedState initialized to the documented defaults:
// risk NORMAL, sentiment 1.0, whale-dump false.
func New(log zerolog.Logger) *SharedState {
	now := time.Now()
	return &SharedState{
		log:                 log.With().Str("component", "shared_state").Logger(),
		riskLevel:           RiskNormal,
		riskUpdatedAt:       now,
		sentimentMultiplier: 1.0,
		sentimentUpdatedAt:  now,
		whaleDumpRisk:       false,
		whaleUpdatedAt:      now,
	}
}

// SetRisk sets the risk level and records the write timestamp. Logs a
// transition only when the value actually changes.
func (s *SharedState) SetRisk(level RiskLevel, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := s.riskLevel != level
	s.riskLevel = level
	s.riskPayload = payload
	s.riskUpdatedAt = time.Now()

	if changed {
		s.log.Info().Str("risk_level", string(level)).Msg("risk level transition")
	}
}

func (s *SharedState) GetRisk() RiskLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.riskLevel
}

// SetSentiment clamps m to [0.5, 1.5] before storing it.
func (s *SharedState) SetSentiment(m float64, payload any) {
	if m < sentimentMin {
		m = sentimentMin
	}
	if m > sentimentMax {
		m = sentimentMax
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := s.sentimentMultiplier != m
	s.sentimentMultiplier = m
	s.sentimentPayload = payload
	s.sentimentUpdatedAt = time.Now()

	if changed {
		s.log.Info().Float64("sentiment_multiplier", m).Msg("sentiment multiplier updated")
	}
}

func (s *SharedState) GetSentiment() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sentimentMultiplier
}

func (s *SharedState) SetWhaleDump(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := s.whaleDumpRisk != active
	s.whaleDumpRisk = active
	s.whaleUpdatedAt = time.Now()

	if changed {
		s.log.Info().Bool("whale_dump_risk", active).Msg("whale dump risk updated")
	}
}

func (s *SharedState) GetWhaleDump() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.whaleDumpRisk
}

// Snapshot returns a coherent deep copy of every field. This is the
// only way to read more than one field without risking a torn view
// across independent lock acquisitions.
func (s *SharedState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		RiskLevel:           s.riskLevel,
		RiskPayload:         s.riskPayload,
		RiskUpdatedAt:       s.riskUpdatedAt,
		SentimentMultiplier: s.sentimentMultiplier,
		SentimentPayload:    s.sentimentPayload,
		SentimentUpdatedAt:  s.sentimentUpdatedAt,
		WhaleDumpRisk:       s.whaleDumpRisk,
		WhaleUpdatedAt:      s.whaleUpdatedAt,
	}
}
