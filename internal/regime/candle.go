package regime

// Candle is an ordered OHLCV observation. Windows of at least
// MinCandles are required for a non-degenerate regime classification.
type Candle struct {
	TimestampMS int64
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
}

// MinCandles is the minimum window length below which classification
// falls back to RANGE_QUIET with InsufficientData set.
const MinCandles = 30
