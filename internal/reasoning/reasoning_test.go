package reasoning

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbhayRathi/AlphaWEEX/internal/market"
	"github.com/AbhayRathi/AlphaWEEX/internal/memory"
	"github.com/AbhayRathi/AlphaWEEX/internal/regime"
)

type stubClient struct {
	candles []regime.Candle
}

func (s stubClient) FetchOHLCV(context.Context, string, string, int) ([]regime.Candle, error) {
	return s.candles, nil
}
func (s stubClient) FetchBalance(context.Context) (market.Balances, error) { return market.Balances{}, nil }
func (s stubClient) FetchEquityBars(context.Context, string, int) ([]market.EquityBar, error) {
	return nil, nil
}
func (s stubClient) FetchFearGreed(context.Context) (market.FearGreed, error) { return market.FearGreed{}, nil }
func (s stubClient) FetchHeadlines(context.Context, int) ([]string, error)    { return nil, nil }
func (s stubClient) FetchSymbols(context.Context) ([]string, error)          { return []string{"BTC/USDT"}, nil }

func uptrendCandles(n int) []regime.Candle {
	out := make([]regime.Candle, n)
	base := 90000.0
	now := time.Now().UnixMilli()
	for i := 0; i < n; i++ {
		price := base + float64(i)*50
		out[i] = regime.Candle{
			TimestampMS: now - int64(n-i)*900000,
			Open:        price - 10,
			High:        price + 20,
			Low:         price - 20,
			Close:       price,
			Volume:      100 + float64(i),
		}
	}
	return out
}

func newTestLoop(t *testing.T, candles []regime.Candle) *Loop {
	t.Helper()
	adapter := market.New(stubClient{candles: candles}, zerolog.Nop(), market.Config{})
	mem, err := memory.New(t.TempDir()+"/history.json", zerolog.Nop())
	require.NoError(t, err)
	return New(adapter, mem, "BTC/USDT", time.Minute, zerolog.Nop())
}

func TestAnalyzeInsufficientDataHolds(t *testing.T) {
	short := []regime.Candle{{Close: 100}}
	l := newTestLoop(t, short)
	a := l.analyze(short)
	assert.Equal(t, "HOLD", a.Signal)
	assert.Equal(t, regime.Regime("UNKNOWN"), a.Regime)
}

func TestAnalyzeTrendingUpEvolutionSuggestionFollowsConfidence(t *testing.T) {
	candles := uptrendCandles(60)
	l := newTestLoop(t, candles)
	a := l.analyze(candles)

	assert.Equal(t, regime.TrendingUp, a.Regime)
	if a.Confidence >= 0.6 {
		assert.Nil(t, a.EvolutionSuggestion)
	} else {
		assert.NotNil(t, a.EvolutionSuggestion)
	}
}

func TestAnalyzePublishesStructuredMetricsSnapshot(t *testing.T) {
	candles := uptrendCandles(60)
	l := newTestLoop(t, candles)
	a := l.analyze(candles)

	require.NotNil(t, a.Metrics)
	assert.Equal(t, true, a.Metrics["available"])
	assert.Contains(t, a.Metrics, "close")
	assert.Contains(t, a.Metrics, "rsi_label")
}

func TestAnalyzeLowConfidenceProducesEvolutionSuggestion(t *testing.T) {
	flat := make([]regime.Candle, 40)
	now := time.Now().UnixMilli()
	for i := range flat {
		flat[i] = regime.Candle{TimestampMS: now - int64(40-i)*900000, Open: 100, High: 100.5, Low: 99.5, Close: 100, Volume: 10}
	}
	l := newTestLoop(t, flat)
	a := l.analyze(flat)

	require.Less(t, a.Confidence, 0.6)
	require.NotNil(t, a.EvolutionSuggestion)
	assert.Contains(t, a.EvolutionSuggestion.Reason, "low confidence")
}

func TestRunPublishesLatestAnalysisAndRespectsCancellation(t *testing.T) {
	candles := uptrendCandles(40)
	l := newTestLoop(t, candles)
	// Use a short interval so the loop would tick quickly if not cancelled.
	l.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	assert.NotNil(t, l.Latest())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
