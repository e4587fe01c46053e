package market

import (
	"context"
	"encoding/json"

	"github.com/AbhayRathi/AlphaWEEX/internal/regime"
)

// readCandleCache and writeCandleCache are best-effort: any Redis error
// is treated as a cache miss, never a fetch failure. The cache is a
// pure optimization in front of the live/fallback path, never a
// correctness dependency.
func (a *Adapter) readCandleCache(ctx context.Context, key string) ([]regime.Candle, bool) {
	raw, err := a.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var candles []regime.Candle
	if err := json.Unmarshal(raw, &candles); err != nil {
		return nil, false
	}
	return candles, true
}

func (a *Adapter) writeCandleCache(ctx context.Context, key string, candles []regime.Candle) {
	raw, err := json.Marshal(candles)
	if err != nil {
		return
	}
	_ = a.cache.Set(ctx, key, raw, a.cacheTTL).Err()
}
