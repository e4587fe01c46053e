package memory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	path := filepath.Join(t.TempDir(), "evolution_history.json")
	m, err := New(path, zerolog.Nop())
	require.NoError(t, err)
	return m
}

func TestRecordAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	m, err := New(path, zerolog.Nop())
	require.NoError(t, err)

	params := Parameters{Reason: "low_confidence", Suggestion: "tighten stops", Regime: "RANGE_QUIET"}
	idx, err := m.RecordEvolution(params, "low_confidence", "tighten stops", 1000.0)
	require.NoError(t, err)
	require.Equal(t, 0, idx)

	reloaded, err := New(path, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Stats().TotalEvolutions)
}

func TestBlacklistRoundTrip(t *testing.T) {
	m := newTestMemory(t)
	params := Parameters{Reason: "r", Suggestion: "s", Regime: "TRENDING_UP"}
	idx, err := m.RecordEvolution(params, "r", "s", 1000.0)
	require.NoError(t, err)

	m.data.Evolutions[idx].StartTime = time.Now().Add(-3 * time.Hour)

	require.NoError(t, m.UpdateWindow(idx, 900.0, -100.0))

	blacklisted, reason := m.IsBlacklisted(params)
	require.True(t, blacklisted)
	require.NotEmpty(t, reason)
}

func TestWithinWindowDoesNotBlacklist(t *testing.T) {
	m := newTestMemory(t)
	params := Parameters{Reason: "r", Suggestion: "s", Regime: "RANGE_VOLATILE"}
	idx, err := m.RecordEvolution(params, "r", "s", 1000.0)
	require.NoError(t, err)

	require.NoError(t, m.UpdateWindow(idx, 900.0, -50.0))

	blacklisted, _ := m.IsBlacklisted(params)
	require.False(t, blacklisted)
}

func TestIsBlacklistedRequiresFullStructuralEquality(t *testing.T) {
	m := newTestMemory(t)
	params := Parameters{Reason: "r", Suggestion: "s", Regime: "RANGE_QUIET"}
	idx, err := m.RecordEvolution(params, "r", "s", 1000.0)
	require.NoError(t, err)
	m.data.Evolutions[idx].StartTime = time.Now().Add(-3 * time.Hour)
	require.NoError(t, m.UpdateWindow(idx, 900.0, -10.0))

	different := Parameters{Reason: "r", Suggestion: "s", Regime: "TRENDING_DOWN"}
	blacklisted, _ := m.IsBlacklisted(different)
	require.False(t, blacklisted)
}
