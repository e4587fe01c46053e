// Package exchange provides a concrete market.Client talking to
// Kraken's unauthenticated public REST surface: OHLC candles, the
// tradable asset pair list, and (via alternative.me) the Fear/Greed
// index. Balances, equities bars and headlines need authenticated or
// subscription APIs this module has no credentials for, so those three
// methods return an error and let market.Adapter's fallback machinery
// take over from there.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/AbhayRathi/AlphaWEEX/internal/market"
	"github.com/AbhayRathi/AlphaWEEX/internal/regime"
)

const (
	krakenBaseURL     = "https://api.kraken.com"
	fearGreedURL      = "https://api.alternative.me/fng/?limit=1"
	defaultHTTPClient = 10 * time.Second
)

var symbolToKrakenPair = map[string]string{
	"BTC/USDT": "XBTUSDT",
	"ETH/USDT": "ETHUSDT",
	"SOL/USDT": "SOLUSDT",
	"BTC/USD":  "XXBTZUSD",
	"ETH/USD":  "XETHZUSD",
}

var timeframeToKrakenInterval = map[string]int{
	"1m":  1,
	"5m":  5,
	"15m": 15,
	"1h":  60,
	"4h":  240,
	"1d":  1440,
}

var _ market.Client = (*KrakenClient)(nil)

// KrakenClient implements market.Client against Kraken's public API.
type KrakenClient struct {
	httpClient   *http.Client
	krakenBase   string
	fearGreedURL string
}

// NewKrakenClient returns a client with a bounded HTTP timeout; every
// call additionally carries the caller's context deadline.
func NewKrakenClient() *KrakenClient {
	return &KrakenClient{
		httpClient:   &http.Client{Timeout: defaultHTTPClient},
		krakenBase:   krakenBaseURL,
		fearGreedURL: fearGreedURL,
	}
}

func (k *KrakenClient) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// FetchOHLCV fetches candles from Kraken's public OHLC endpoint.
func (k *KrakenClient) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]regime.Candle, error) {
	pair, ok := symbolToKrakenPair[symbol]
	if !ok {
		return nil, fmt.Errorf("no kraken pair mapping for symbol %q", symbol)
	}
	interval, ok := timeframeToKrakenInterval[timeframe]
	if !ok {
		return nil, fmt.Errorf("no kraken interval mapping for timeframe %q", timeframe)
	}

	var result struct {
		Error  []string                   `json:"error"`
		Result map[string]json.RawMessage `json:"result"`
	}
	url := fmt.Sprintf("%s/0/public/OHLC?pair=%s&interval=%d", k.krakenBase, pair, interval)
	if err := k.get(ctx, url, &result); err != nil {
		return nil, err
	}
	if len(result.Error) > 0 {
		return nil, fmt.Errorf("kraken OHLC error: %v", result.Error)
	}

	var rows [][]json.RawMessage
	for key, raw := range result.Result {
		if key == "last" {
			continue
		}
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("decode OHLC rows: %w", err)
		}
		break
	}

	candles := make([]regime.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 7 {
			continue
		}
		var timestamp int64
		var openStr, highStr, lowStr, closeStr, volumeStr string
		if err := json.Unmarshal(row[0], &timestamp); err != nil {
			continue
		}
		_ = json.Unmarshal(row[1], &openStr)
		_ = json.Unmarshal(row[2], &highStr)
		_ = json.Unmarshal(row[3], &lowStr)
		_ = json.Unmarshal(row[4], &closeStr)
		_ = json.Unmarshal(row[6], &volumeStr)

		open, _ := strconv.ParseFloat(openStr, 64)
		high, _ := strconv.ParseFloat(highStr, 64)
		low, _ := strconv.ParseFloat(lowStr, 64)
		closePrice, _ := strconv.ParseFloat(closeStr, 64)
		volume, _ := strconv.ParseFloat(volumeStr, 64)

		candles = append(candles, regime.Candle{
			TimestampMS: timestamp * 1000,
			Open:        open,
			High:        high,
			Low:         low,
			Close:       closePrice,
			Volume:      volume,
		})
	}

	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// FetchBalance has no authenticated credentials to call against; it
// returns an error, and market.Adapter substitutes its synthetic
// fallback balance.
func (k *KrakenClient) FetchBalance(ctx context.Context) (market.Balances, error) {
	return market.Balances{}, fmt.Errorf("balance fetch requires authenticated exchange credentials, not configured")
}

// FetchEquityBars has no equities data provider wired; it returns an
// error, and market.Adapter falls back to its synthetic equities series.
func (k *KrakenClient) FetchEquityBars(ctx context.Context, ticker string, bars int) ([]market.EquityBar, error) {
	return nil, fmt.Errorf("equities provider not configured")
}

// FetchFearGreed reads the public alternative.me Fear & Greed index.
func (k *KrakenClient) FetchFearGreed(ctx context.Context) (market.FearGreed, error) {
	var result struct {
		Data []struct {
			Value               string `json:"value"`
			ValueClassification string `json:"value_classification"`
		} `json:"data"`
	}
	if err := k.get(ctx, k.fearGreedURL, &result); err != nil {
		return market.FearGreed{}, err
	}
	if len(result.Data) == 0 {
		return market.FearGreed{}, fmt.Errorf("alternative.me returned no data")
	}
	value, err := strconv.Atoi(result.Data[0].Value)
	if err != nil {
		return market.FearGreed{}, fmt.Errorf("parse fear/greed value: %w", err)
	}
	return market.FearGreed{
		Value:          value,
		Classification: result.Data[0].ValueClassification,
		Source:         "alternative.me",
	}, nil
}

// FetchHeadlines has no news provider wired; it returns an error, and
// market.Adapter falls back to its canned headlines.
func (k *KrakenClient) FetchHeadlines(ctx context.Context, n int) ([]string, error) {
	return nil, fmt.Errorf("headlines provider not configured")
}

// FetchSymbols calls Kraken's public asset-pairs endpoint and, when it
// answers without error, reports every symbol this client knows how to
// map to OHLC requests. The pairs in the response are not compared
// against that mapping.
func (k *KrakenClient) FetchSymbols(ctx context.Context) ([]string, error) {
	var result struct {
		Error  []string        `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	url := k.krakenBase + "/0/public/AssetPairs"
	if err := k.get(ctx, url, &result); err != nil {
		return nil, err
	}
	if len(result.Error) > 0 {
		return nil, fmt.Errorf("kraken AssetPairs error: %v", result.Error)
	}

	symbols := make([]string, 0, len(symbolToKrakenPair))
	for symbol := range symbolToKrakenPair {
		symbols = append(symbols, symbol)
	}
	return symbols, nil
}
