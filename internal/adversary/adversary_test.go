package adversary

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbhayRathi/AlphaWEEX/internal/llm"
)

type stubTransport struct {
	status int
	err    error
	reply  string
}

func (s stubTransport) Complete(context.Context, string, string, float64, int) (llm.Completion, int, error) {
	if s.err != nil {
		return llm.Completion{}, s.status, s.err
	}
	return llm.Completion{Content: s.reply}, 200, nil
}

func TestHeuristicDetectsFOMOChaser(t *testing.T) {
	transport := stubTransport{err: errors.New("down")}
	a := New(llm.New(transport, zerolog.Nop()), "deepseek-chat", 90000.0, zerolog.Nop())

	result := a.AnalyzePsychology(context.Background(), MarketSnapshot{Price: 95000, RSI: 80, PriceChangePct: 4}, "Greed", "")
	assert.Equal(t, ModeHeuristic, result.Mode)
	assert.Equal(t, ArchetypeFOMOChaser, result.DetectedArchetype)
	assert.Equal(t, "SELL", result.Signal)
}

func TestHeuristicDetectsPanicSeller(t *testing.T) {
	transport := stubTransport{err: errors.New("down")}
	a := New(llm.New(transport, zerolog.Nop()), "deepseek-chat", 90000.0, zerolog.Nop())

	result := a.AnalyzePsychology(context.Background(), MarketSnapshot{Price: 80000, RSI: 18, PriceChangePct: -6}, "Extreme Fear", "")
	assert.Equal(t, ModeHeuristic, result.Mode)
	assert.Equal(t, ArchetypePanicSeller, result.DetectedArchetype)
	assert.Equal(t, "BUY", result.Signal)
}

func TestRegionalBlockLatchesShadowModePermanently(t *testing.T) {
	transport := stubTransport{status: 451, err: errors.New("blocked")}
	a := New(llm.New(transport, zerolog.Nop()), "deepseek-chat", 90000.0, zerolog.Nop())

	result := a.AnalyzePsychology(context.Background(), MarketSnapshot{Price: 90000, RSI: 50}, "", "")
	assert.Equal(t, ModeShadow, result.Mode)

	// Even if a subsequent call would have succeeded, shadow mode must
	// remain latched.
	a.llmAdapter = llm.New(stubTransport{reply: "ok"}, zerolog.Nop())
	result = a.AnalyzePsychology(context.Background(), MarketSnapshot{Price: 90000, RSI: 50}, "", "")
	assert.Equal(t, ModeShadow, result.Mode)
}

func TestThreeConsecutiveErrorsLatchShadowMode(t *testing.T) {
	transport := stubTransport{err: errors.New("timeout")}
	a := New(llm.New(transport, zerolog.Nop()), "deepseek-chat", 90000.0, zerolog.Nop())

	var last Result
	for i := 0; i < 3; i++ {
		last = a.AnalyzePsychology(context.Background(), MarketSnapshot{Price: 90000, RSI: 50}, "", "")
	}
	assert.Equal(t, ModeShadow, last.Mode)
}

func TestLiquidityZonesDescendingWithSwingLows(t *testing.T) {
	zones := liquidityZones(MarketSnapshot{Price: 90000, RecentLows: []float64{86000, 87000}})
	require.NotEmpty(t, zones)
	for i := 1; i < len(zones); i++ {
		assert.GreaterOrEqual(t, zones[i-1], zones[i])
	}
	assert.Contains(t, zones, round2(86000*0.995))
}

func TestDetermineRegimeVolatileTakesPriority(t *testing.T) {
	assert.Equal(t, "VOLATILE", determineRegime(MarketSnapshot{Volatility: 5, RSI: 80, PriceChangePct: 5}))
}
