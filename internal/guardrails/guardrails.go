// Package guardrails implements Guardrails (C7): the equity trail,
// kill-switch state, stability-lock timer, and the static audit of
// proposed decision-module source.
package guardrails

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EquityPoint is a single timestamped equity observation.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}

// Status is a snapshot of Guardrails' state, returned by Status().
type Status struct {
	InitialEquity       float64
	CurrentEquity       float64
	KillSwitchThreshold float64
	StabilityLockHours  int
	KillSwitchTriggered bool
	LastEvolutionTime   *time.Time
	HistoryLength       int
}

// Guardrails owns the equity trail and kill-switch latch. No operation
// here performs I/O; every check returns a value, never an error.
type Guardrails struct {
	mu  sync.Mutex
	log zerolog.Logger

	initialEquity       float64
	currentEquity       float64
	killSwitchThreshold float64
	stabilityLockHours  int

	killSwitchTriggered bool
	lastEvolutionTime   *time.Time
	equityHistory       []EquityPoint
}

func New(initialEquity, killSwitchThreshold float64, stabilityLockHours int, log zerolog.Logger) *Guardrails {
	return &Guardrails{
		log:                 log.With().Str("component", "guardrails").Logger(),
		initialEquity:       initialEquity,
		currentEquity:       initialEquity,
		killSwitchThreshold: killSwitchThreshold,
		stabilityLockHours:  stabilityLockHours,
	}
}

// UpdateEquity appends a new equity observation then re-evaluates the
// kill-switch.
func (g *Guardrails) UpdateEquity(newEquity float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	g.currentEquity = newEquity
	g.equityHistory = append(g.equityHistory, EquityPoint{Timestamp: now, Equity: newEquity})
	g.checkKillSwitchLocked(now)
}

// checkKillSwitchLocked implements the kill-switch algorithm: among
// equity points from the last hour, compare current equity against the
// earliest such point. An inclusive <= keeps the boundary case (drop of
// exactly -threshold) triggering. The latch never auto-clears.
func (g *Guardrails) checkKillSwitchLocked(now time.Time) {
	if g.killSwitchTriggered {
		return
	}

	cutoff := now.Add(-1 * time.Hour)
	var earliest *EquityPoint
	for i := range g.equityHistory {
		p := g.equityHistory[i]
		if p.Timestamp.Before(cutoff) {
			continue
		}
		if earliest == nil || p.Timestamp.Before(earliest.Timestamp) {
			earliest = &g.equityHistory[i]
		}
	}

	if earliest == nil || earliest.Equity == 0 {
		return
	}

	drawdown := (g.currentEquity - earliest.Equity) / earliest.Equity
	if drawdown <= -g.killSwitchThreshold {
		g.killSwitchTriggered = true
		g.log.Error().Float64("drawdown", drawdown).Msg("kill switch triggered")
	}
}

func (g *Guardrails) IsKillSwitchActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.killSwitchTriggered
}

// CurrentEquity returns the most recent equity observation, or the
// configured initial equity if none has been recorded yet.
func (g *Guardrails) CurrentEquity() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentEquity
}

// CanEvolve is true iff no evolution has happened yet, or the stability
// lock interval has elapsed since the last one.
func (g *Guardrails) CanEvolve() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lastEvolutionTime == nil {
		return true
	}
	return time.Since(*g.lastEvolutionTime) >= time.Duration(g.stabilityLockHours)*time.Hour
}

func (g *Guardrails) MarkEvolution() {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	g.lastEvolutionTime = &now
}

func (g *Guardrails) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Status{
		InitialEquity:       g.initialEquity,
		CurrentEquity:       g.currentEquity,
		KillSwitchThreshold: g.killSwitchThreshold,
		StabilityLockHours:  g.stabilityLockHours,
		KillSwitchTriggered: g.killSwitchTriggered,
		LastEvolutionTime:   g.lastEvolutionTime,
		HistoryLength:       len(g.equityHistory),
	}
}
