package supervisor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbhayRathi/AlphaWEEX/internal/config"
	"github.com/AbhayRathi/AlphaWEEX/internal/llm"
	"github.com/AbhayRathi/AlphaWEEX/internal/market"
	"github.com/AbhayRathi/AlphaWEEX/internal/regime"
	"github.com/AbhayRathi/AlphaWEEX/internal/shadow"
)

type stubMarketClient struct{}

func (stubMarketClient) FetchOHLCV(context.Context, string, string, int) ([]regime.Candle, error) {
	candles := make([]regime.Candle, 30)
	price := 90000.0
	for i := range candles {
		price += float64(i % 3)
		candles[i] = regime.Candle{Close: price, Volume: 1000 + float64(i)}
	}
	return candles, nil
}

func (stubMarketClient) FetchBalance(context.Context) (market.Balances, error) {
	return market.Balances{Source: "stub", Assets: map[string]float64{"USDT": 1000}}, nil
}

func (stubMarketClient) FetchEquityBars(context.Context, string, int) ([]market.EquityBar, error) {
	return []market.EquityBar{{TimestampMS: 0, Close: 450}}, nil
}

func (stubMarketClient) FetchFearGreed(context.Context) (market.FearGreed, error) {
	return market.FearGreed{Value: 50, Classification: "Neutral", Source: "stub"}, nil
}

func (stubMarketClient) FetchHeadlines(context.Context, int) ([]string, error) {
	return []string{"markets steady amid calm trading"}, nil
}

func (stubMarketClient) FetchSymbols(context.Context) ([]string, error) {
	return []string{"BTC/USDT"}, nil
}

type stubLLMTransport struct{}

func (stubLLMTransport) Complete(context.Context, string, string, float64, int) (llm.Completion, int, error) {
	return llm.Completion{Content: "HOLD, 0.5, neutral conditions"}, 200, nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.EvolutionHistoryFile = filepath.Join(dir, "evolution_history.json")
	cfg.Paths.ActiveModuleFile = filepath.Join(dir, "active_logic.go")
	cfg.Paths.ActiveModuleBackup = filepath.Join(dir, "active_logic.go.backup")
	cfg.Paths.PromptsDir = filepath.Join(dir, "prompts")
	cfg.Trading.ReasoningIntervalMinutes = 1
	cfg.Database.Enabled = false
	cfg.Cache.Enabled = false
	return cfg
}

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	s, err := New(testConfig(t), stubMarketClient{}, stubLLMTransport{}, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestNewWiresEveryCollaboratorWithoutDatabase(t *testing.T) {
	s := newTestSupervisor(t)
	assert.Nil(t, s.ledgerStore)
	assert.Nil(t, s.auditor)
	assert.NotNil(t, s.sharedState)
	assert.NotNil(t, s.architectEngine)
	assert.Equal(t, uint64(1), s.registry.Version())
}

func TestStatusReflectsFreshGuardrailsAndSharedState(t *testing.T) {
	s := newTestSupervisor(t)
	status := s.Status()
	assert.Equal(t, s.cfg.Trading.InitialEquity, status.Guardrails.CurrentEquity)
	assert.False(t, status.Guardrails.KillSwitchTriggered)
	assert.Equal(t, 0, status.Memory.TotalEvolutions)
	assert.Equal(t, uint64(1), status.Registry)
}

func TestRunStopsAllLoopsOnContextCancellation(t *testing.T) {
	s := newTestSupervisor(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return within the shutdown grace period")
	}
}

func TestInterruptibleSleepReturnsFalseOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, interruptibleSleep(ctx, time.Second))
}

func TestInterruptibleSleepReturnsTrueOnElapsed(t *testing.T) {
	assert.True(t, interruptibleSleep(context.Background(), time.Millisecond))
}

func TestShadowBacktestGateAllowsProbationWithNoHistory(t *testing.T) {
	gate := newShadowBacktestGate(shadow.New(100, 1.2, zerolog.Nop()), 1.2, 0.05)
	ok, reason := gate.Evaluate("package logic", regime.TrendingUp)
	assert.True(t, ok)
	assert.Contains(t, reason, "probation")
}

func TestShadowBacktestGateRejectsBelowMinSharpe(t *testing.T) {
	engine := shadow.New(1, 5.0, zerolog.Nop())
	engine.SimulateTradePair("buy", 90000, 0.001)
	gate := newShadowBacktestGate(engine, 5.0, 0.5)
	ok, reason := gate.Evaluate("package logic", regime.TrendingUp)
	assert.False(t, ok)
	assert.Contains(t, reason, "sharpe")
}

func TestCurrentPriceFetcherReturnsLastClose(t *testing.T) {
	adapter := market.New(stubMarketClient{}, zerolog.Nop(), market.Config{})
	fetch := currentPriceFetcher(adapter, "BTC/USDT")
	price, err := fetch(context.Background())
	require.NoError(t, err)
	assert.Greater(t, price, 0.0)
}
