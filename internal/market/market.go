// Package market implements MarketAdapter (C2): the external I/O
// boundary for candles, balances, equities quotes, and the Fear/Greed
// index, with a transparent synthetic fallback when live calls fail.
package market

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/AbhayRathi/AlphaWEEX/internal/regime"
)

// Mode distinguishes a fully-discovered live surface from the minimum
// viable mock set exposed when discovery fails.
type Mode string

const (
	ModeLive Mode = "LIVE"
	ModeMock Mode = "MOCK"
)

// Capabilities is the result of Discover.
type Capabilities struct {
	Symbols    []string
	Timeframes []string
	Mode       Mode
}

// Balances is a coarse account-balance snapshot; callers key by asset.
type Balances struct {
	Source string
	Assets map[string]float64
}

// FearGreed is the sentiment-index reading consulted by SentimentProducer.
type FearGreed struct {
	Value          int
	Classification string
	Source         string
}

// EquityBar is a single hourly equities bar used by Oracle.
type EquityBar struct {
	TimestampMS int64
	Close       float64
}

const fallbackSource = "fallback"

var fallbackSymbols = []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}

// Client is the live transport the Adapter wraps. A real implementation
// talks to an exchange SDK; tests and degraded environments can supply
// a stub that always errors to exercise the fallback path.
type Client interface {
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]regime.Candle, error)
	FetchBalance(ctx context.Context) (Balances, error)
	FetchEquityBars(ctx context.Context, ticker string, bars int) ([]EquityBar, error)
	FetchFearGreed(ctx context.Context) (FearGreed, error)
	FetchHeadlines(ctx context.Context, n int) ([]string, error)
	FetchSymbols(ctx context.Context) ([]string, error)
}

// Adapter wraps a Client with a circuit breaker, an optional warm Redis
// cache, a rate limiter, and the mandated synthetic-fallback behavior.
type Adapter struct {
	client  Client
	log     zerolog.Logger
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker

	cache        *redis.Client
	cacheEnabled bool
	cacheTTL     time.Duration

	mu           sync.RWMutex
	capabilities Capabilities
}

// Config configures the optional cache and the outbound rate limit.
type Config struct {
	CacheEnabled bool
	CacheAddr    string
	CacheDB      int
	CacheTTL     time.Duration
	RateLimit    rate.Limit
	RateBurst    int
}

func New(client Client, log zerolog.Logger, cfg Config) *Adapter {
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = 5
	}

	a := &Adapter{
		client:       client,
		log:          log.With().Str("component", "market_adapter").Logger(),
		limiter:      rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		cacheEnabled: cfg.CacheEnabled,
		cacheTTL:     cfg.CacheTTL,
	}

	a.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "market_adapter",
		Interval:    60 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: tripAfterThreeFailures,
	})

	if cfg.CacheEnabled {
		a.cache = redis.NewClient(&redis.Options{Addr: cfg.CacheAddr, DB: cfg.CacheDB})
	}

	return a
}

func tripAfterThreeFailures(counts gobreaker.Counts) bool {
	if counts.ConsecutiveFailures >= 3 {
		return true
	}
	if counts.Requests < 20 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
}

// Discover enumerates available symbols/timeframes once at startup. On
// failure it records the minimum viable mock set and mode MOCK.
func (a *Adapter) Discover(ctx context.Context) Capabilities {
	symbols, err := a.client.FetchSymbols(ctx)
	caps := Capabilities{}
	if err != nil || len(symbols) == 0 {
		a.log.Warn().Err(err).Msg("capability discovery failed, using mock symbol set")
		caps = Capabilities{Symbols: fallbackSymbols, Timeframes: []string{"1m", "5m", "15m"}, Mode: ModeMock}
	} else {
		caps = Capabilities{Symbols: symbols, Timeframes: []string{"1m", "5m", "15m", "1h"}, Mode: ModeLive}
	}

	a.mu.Lock()
	a.capabilities = caps
	a.mu.Unlock()
	return caps
}

func (a *Adapter) Capabilities() Capabilities {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.capabilities
}

// FetchOHLCV returns the live candle series, or a synthetic series
// centered on a fixed baseline price when the live call fails.
func (a *Adapter) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]regime.Candle, bool, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, false, fmt.Errorf("rate limiter: %w", err)
	}

	cacheKey := fmt.Sprintf("ohlcv:%s:%s:%d", symbol, timeframe, limit)
	if a.cacheEnabled {
		if cached, ok := a.readCandleCache(ctx, cacheKey); ok {
			return cached, false, nil
		}
	}

	result, err := a.breaker.Execute(func() (any, error) {
		return a.client.FetchOHLCV(ctx, symbol, timeframe, limit)
	})
	if err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("live OHLCV fetch failed, using synthetic fallback")
		return syntheticCandles(limit), true, nil
	}

	candles := result.([]regime.Candle)
	if a.cacheEnabled {
		a.writeCandleCache(ctx, cacheKey, candles)
	}
	return candles, false, nil
}

func (a *Adapter) FetchBalance(ctx context.Context) (Balances, error) {
	result, err := a.breaker.Execute(func() (any, error) {
		return a.client.FetchBalance(ctx)
	})
	if err != nil {
		a.log.Warn().Err(err).Msg("live balance fetch failed, using synthetic fallback")
		return Balances{Source: fallbackSource, Assets: map[string]float64{"USDT": 10000.0, "BTC": 0.0}}, nil
	}
	return result.(Balances), nil
}

func (a *Adapter) FetchEquityBars(ctx context.Context, ticker string, bars int) ([]EquityBar, error) {
	result, err := a.breaker.Execute(func() (any, error) {
		return a.client.FetchEquityBars(ctx, ticker, bars)
	})
	if err != nil {
		a.log.Warn().Err(err).Str("ticker", ticker).Msg("live equity bar fetch failed, using synthetic fallback")
		return syntheticEquityBars(ticker, bars), nil
	}
	return result.([]EquityBar), nil
}

func (a *Adapter) FetchFearGreed(ctx context.Context) (FearGreed, error) {
	result, err := a.breaker.Execute(func() (any, error) {
		return a.client.FetchFearGreed(ctx)
	})
	if err != nil {
		a.log.Warn().Err(err).Msg("live fear/greed fetch failed, using neutral fallback")
		return FearGreed{Value: 50, Classification: "Neutral", Source: fallbackSource}, nil
	}
	return result.(FearGreed), nil
}

func (a *Adapter) FetchHeadlines(ctx context.Context, n int) ([]string, error) {
	result, err := a.breaker.Execute(func() (any, error) {
		return a.client.FetchHeadlines(ctx, n)
	})
	if err != nil {
		a.log.Warn().Err(err).Msg("live headline fetch failed, using canned fallback")
		return cannedHeadlines(n), nil
	}
	return result.([]string), nil
}

func cannedHeadlines(n int) []string {
	canned := []string{
		"Markets trade sideways amid mixed macro signals",
		"Crypto volumes steady heading into the weekend",
		"Analysts split on near-term direction",
		"Volatility remains contained across major pairs",
	}
	if n < len(canned) {
		return canned[:n]
	}
	return canned
}

func syntheticEquityBars(ticker string, bars int) []EquityBar {
	base := 450.0
	if ticker == "QQQ" {
		base = 380.0
	}
	out := make([]EquityBar, bars)
	now := time.Now().UnixMilli()
	for i := 0; i < bars; i++ {
		out[i] = EquityBar{TimestampMS: now - int64(bars-i)*3600000, Close: base + float64(i)*0.1}
	}
	return out
}

func syntheticCandles(limit int) []regime.Candle {
	if limit <= 0 {
		limit = 100
	}
	base := 90000.0
	now := time.Now().UnixMilli()
	out := make([]regime.Candle, limit)
	for i := 0; i < limit; i++ {
		jitter := (rand.Float64() - 0.5) * 150
		out[i] = regime.Candle{
			TimestampMS: now - int64(limit-i)*900000,
			Open:        base,
			High:        base + 150 + jitter,
			Low:         base - 150 + jitter,
			Close:       base + jitter,
			Volume:      1.5,
		}
	}
	return out
}
