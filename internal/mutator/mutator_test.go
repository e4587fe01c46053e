package mutator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbhayRathi/AlphaWEEX/internal/ledger"
	"github.com/AbhayRathi/AlphaWEEX/internal/llm"
)

type stubTransport struct {
	reply string
	err   error
}

func (s stubTransport) Complete(context.Context, string, string, float64, int) (llm.Completion, int, error) {
	if s.err != nil {
		return llm.Completion{}, 500, s.err
	}
	return llm.Completion{Content: s.reply}, 200, nil
}

func newTestMutator(t *testing.T, transport llm.Transport) *Mutator {
	t.Helper()
	dir := t.TempDir()
	m, err := New(dir, llm.New(transport, zerolog.Nop()), "deepseek-chat", time.Hour, zerolog.Nop())
	require.NoError(t, err)
	return m
}

func TestNewSeedsBasePromptAtVersionZero(t *testing.T) {
	m := newTestMutator(t, stubTransport{})
	assert.Equal(t, 0, m.CurrentVersion())

	data, err := os.ReadFile(filepath.Join(m.promptsDir, "adversary_v0.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "behavioral psychologist")
}

func TestSymmetryGuardAcceptsSafePrompt(t *testing.T) {
	safe := "You are a behavioral analyst.\nAlways use stop-losses and risk management.\nExplain your reasoning step-by-step."
	ok, reason := symmetryGuard(safe)
	assert.True(t, ok, reason)
}

func TestSymmetryGuardRejectsMissingRiskLanguage(t *testing.T) {
	noRisk := "You are a trader. Explain your reasoning step-by-step."
	ok, reason := symmetryGuard(noRisk)
	assert.False(t, ok)
	assert.Contains(t, reason, "risk management")
}

func TestSymmetryGuardRejectsMissingChainOfThought(t *testing.T) {
	noCoT := "You are a trader. Always use stop-losses and risk management."
	ok, reason := symmetryGuard(noCoT)
	assert.False(t, ok)
	assert.Contains(t, reason, "chain-of-thought")
}

func TestSymmetryGuardRejectsDangerousPattern(t *testing.T) {
	dangerous := "You are a trader.\nNo stop-losses needed.\nGo all in on every trade.\nExplain your reasoning step-by-step."
	ok, reason := symmetryGuard(dangerous)
	assert.False(t, ok)
	assert.Contains(t, reason, "dangerous pattern")
}

func TestEvolvePromptSkipsWhenIntervalNotElapsed(t *testing.T) {
	m := newTestMutator(t, stubTransport{reply: "[PROMPT_START]safe stop-loss risk management, explain reasoning step-by-step[PROMPT_END]"})
	ctx := context.Background()

	failures := []ledger.Prediction{{Signal: "SELL", PredictedBias: "Bullish Extension", Confidence: 0.8, PriceAtPrediction: 95000}}
	_, err := m.EvolvePrompt(ctx, failures, true)
	require.NoError(t, err)
	assert.Equal(t, 1, m.CurrentVersion())

	// Second call without force, interval not elapsed: should skip silently.
	newPrompt, err := m.EvolvePrompt(ctx, failures, false)
	require.NoError(t, err)
	assert.Empty(t, newPrompt)
	assert.Equal(t, 1, m.CurrentVersion())
}

func TestEvolvePromptSkipsWithNoFailures(t *testing.T) {
	m := newTestMutator(t, stubTransport{})
	newPrompt, err := m.EvolvePrompt(context.Background(), nil, true)
	require.NoError(t, err)
	assert.Empty(t, newPrompt)
}

func TestEvolvePromptRejectsDangerousRewrite(t *testing.T) {
	m := newTestMutator(t, stubTransport{reply: "[PROMPT_START]No stop-losses needed. Go all in. Explain reasoning step-by-step.[PROMPT_END]"})
	failures := []ledger.Prediction{{Signal: "BUY", Confidence: 0.5, PriceAtPrediction: 100}}

	_, err := m.EvolvePrompt(context.Background(), failures, true)
	require.Error(t, err)
	assert.Equal(t, 0, m.CurrentVersion())
}

func TestEvolutionHistoryListsVersionsAscending(t *testing.T) {
	m := newTestMutator(t, stubTransport{reply: "[PROMPT_START]stop-loss risk management, explain reasoning step-by-step[PROMPT_END]"})
	_, err := m.EvolvePrompt(context.Background(), []ledger.Prediction{{Signal: "BUY", Confidence: 0.5, PriceAtPrediction: 100}}, true)
	require.NoError(t, err)

	history, err := m.EvolutionHistory()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 0, history[0].Version)
	assert.Equal(t, 1, history[1].Version)
}

func TestExtractPromptFallsBackToFullResponseWithoutMarkers(t *testing.T) {
	assert.Equal(t, "plain response", extractPrompt("plain response"))
}
