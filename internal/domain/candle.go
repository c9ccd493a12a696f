package domain

// Candle is one OHLCV observation from the market-data collaborator.
type Candle struct {
	TimestampMs int64
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
}

// Tick is one streamed price point for an open position's monitor.
type Tick struct {
	Mint        string
	Price       float64
	Volume      float64
	TimestampMs int64
}
