// Package memory implements EvolutionMemory (C5): the durable store of
// evolution records and the blacklist of parameter sets that previously
// lost money, write-through JSON with atomic-replace persistence.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Parameters is the blacklist lookup key: full structural equality on
// {reason, suggestion, regime}, per the spec's Open Question resolution.
type Parameters struct {
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion"`
	Regime     string `json:"regime"`
}

// EvolutionRecord is a durable evolution event, mutated in place as its
// 2-hour performance window progresses.
type EvolutionRecord struct {
	Timestamp     time.Time  `json:"timestamp"`
	Parameters    Parameters `json:"parameters"`
	Reason        string     `json:"reason"`
	Suggestion    string     `json:"suggestion"`
	InitialEquity float64    `json:"initial_equity"`
	StartTime     time.Time  `json:"start_time"`
	Evaluated     bool       `json:"evaluated,omitempty"`
	FinalPnL      *float64   `json:"final_pnl,omitempty"`
	FinalEquity   *float64   `json:"final_equity,omitempty"`
	CurrentPnL    *float64   `json:"current_pnl,omitempty"`
	CurrentEquity *float64   `json:"current_equity,omitempty"`
	LastUpdate    *time.Time `json:"last_update,omitempty"`
}

// BlacklistEntry records a parameter set whose post-evolution window
// closed with negative PnL.
type BlacklistEntry struct {
	Parameters     Parameters `json:"parameters"`
	PnL            float64    `json:"pnl"`
	Timestamp      time.Time  `json:"timestamp"`
	EvolutionIndex int        `json:"evolution_index"`
	Reason         string     `json:"reason"`
}

type history struct {
	Evolutions            []EvolutionRecord `json:"evolutions"`
	BlacklistedParameters []BlacklistEntry  `json:"blacklisted_parameters"`
	PerformanceWindows    []any             `json:"performance_windows"`
}

// windowDuration is the fixed 2-hour post-evolution evaluation window.
const windowDuration = 2 * time.Hour

// Memory is EvolutionMemory's in-process implementation: an in-memory
// model reloaded from disk on construction, persisted write-through
// with atomic replace after every mutation.
type Memory struct {
	mu   sync.Mutex
	path string
	log  zerolog.Logger
	data history
}

// New loads history from path if present, otherwise starts empty.
func New(path string, log zerolog.Logger) (*Memory, error) {
	m := &Memory{path: path, log: log.With().Str("component", "evolution_memory").Logger()}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			m.log.Info().Msg("no evolution history found, starting fresh")
			return m, nil
		}
		return nil, fmt.Errorf("read evolution history: %w", err)
	}

	if err := json.Unmarshal(raw, &m.data); err != nil {
		m.log.Error().Err(err).Msg("corrupt evolution history, starting fresh")
		m.data = history{}
		return m, nil
	}

	m.log.Info().Int("evolutions", len(m.data.Evolutions)).Msg("loaded evolution history")
	return m, nil
}

// saveLocked persists m.data with write-temp-then-rename, guaranteeing
// readers never observe a torn file. Caller must hold m.mu.
func (m *Memory) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("mkdir evolution history dir: %w", err)
	}

	raw, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal evolution history: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write evolution history tmp: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("rename evolution history: %w", err)
	}
	return nil
}

// RecordEvolution appends a new evolution event and returns its index.
func (m *Memory) RecordEvolution(params Parameters, reason, suggestion string, initialEquity float64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	record := EvolutionRecord{
		Timestamp:     now,
		Parameters:    params,
		Reason:        reason,
		Suggestion:    suggestion,
		InitialEquity: initialEquity,
		StartTime:     now,
	}
	m.data.Evolutions = append(m.data.Evolutions, record)
	index := len(m.data.Evolutions) - 1

	if err := m.saveLocked(); err != nil {
		return index, err
	}
	m.log.Info().Str("reason", reason).Msg("recorded evolution")
	return index, nil
}

// UpdateWindow records current performance for an evolution's 2-hour
// window. Once the window has elapsed, negative PnL blacklists the
// parameters and the evolution is marked evaluated.
func (m *Memory) UpdateWindow(index int, currentEquity, pnl float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.data.Evolutions) {
		return fmt.Errorf("invalid evolution index %d", index)
	}

	record := &m.data.Evolutions[index]
	elapsed := time.Since(record.StartTime)

	if elapsed > windowDuration {
		if pnl < 0 {
			m.blacklistLocked(record.Parameters, pnl, index)
		}
		record.Evaluated = true
		record.FinalPnL = &pnl
		record.FinalEquity = &currentEquity
		m.log.Info().Int("index", index).Float64("pnl", pnl).Bool("blacklisted", pnl < 0).Msg("evolution window closed")
	} else {
		now := time.Now()
		record.CurrentPnL = &pnl
		record.CurrentEquity = &currentEquity
		record.LastUpdate = &now
	}

	return m.saveLocked()
}

func (m *Memory) blacklistLocked(params Parameters, pnl float64, index int) {
	entry := BlacklistEntry{
		Parameters:     params,
		PnL:            pnl,
		Timestamp:      time.Now(),
		EvolutionIndex: index,
		Reason:         fmt.Sprintf("Negative PnL (%.2f) over 2-hour window", pnl),
	}
	m.data.BlacklistedParameters = append(m.data.BlacklistedParameters, entry)
	m.log.Warn().Float64("pnl", pnl).Msg("parameters blacklisted due to negative PnL")
}

// IsBlacklisted checks full structural equality against every entry.
func (m *Memory) IsBlacklisted(params Parameters) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.data.BlacklistedParameters {
		if entry.Parameters == params {
			return true, entry.Reason
		}
	}
	return false, ""
}

// Recent returns the k most recent evolution records.
func (m *Memory) Recent(k int) []EvolutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.data.Evolutions)
	if k > n {
		k = n
	}
	out := make([]EvolutionRecord, k)
	copy(out, m.data.Evolutions[n-k:])
	return out
}

// Stats mirrors the original's get_statistics: counts plus success rate.
type Stats struct {
	TotalEvolutions     int
	EvaluatedEvolutions int
	BlacklistedCount    int
	SuccessRatePct      float64
	PendingEvaluations  int
}

func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var evaluated, pending int
	for _, e := range m.data.Evolutions {
		if e.Evaluated {
			evaluated++
		} else {
			pending++
		}
	}
	failed := len(m.data.BlacklistedParameters)

	var successRate float64
	if evaluated > 0 {
		successRate = float64(evaluated-failed) / float64(evaluated) * 100
	}

	return Stats{
		TotalEvolutions:     len(m.data.Evolutions),
		EvaluatedEvolutions: evaluated,
		BlacklistedCount:    failed,
		SuccessRatePct:      successRate,
		PendingEvaluations:  pending,
	}
}

// PurgeBlacklistOlderThan removes blacklist entries older than the
// given number of days.
func (m *Memory) PurgeBlacklistOlderThan(days int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -days)
	kept := m.data.BlacklistedParameters[:0]
	for _, e := range m.data.BlacklistedParameters {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := len(m.data.BlacklistedParameters) - len(kept)
	m.data.BlacklistedParameters = kept

	if removed > 0 {
		m.log.Info().Int("removed", removed).Msg("cleared old blacklist entries")
		return m.saveLocked()
	}
	return nil
}
