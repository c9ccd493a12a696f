package domain

// TradeSide distinguishes fills in the trade log.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// Exit reason codes recorded on sell fills.
const (
	ExitReasonStopLoss     = "STOP_LOSS"
	ExitReasonTrailingStop = "TRAILING_STOP"
	ExitReasonTakeProfit   = "TAKE_PROFIT"
)

// TradeLogEntry is an immutable record of one fill. Entries are
// append-only: never edited after creation.
type TradeLogEntry struct {
	FillID      string    // deterministic hash
	Mint        string    // token mint address
	Symbol      string    // display symbol
	Side        TradeSide // BUY | SELL
	Quantity    float64   // token units
	Price       float64   // SOL per token
	SolDelta    float64   // signed cash movement (negative for buys)
	Fee         float64   // SOL, zero unless a fee hook is configured
	TimestampMs int64

	// Sell-only fields; zero values on buys.
	RealizedPnL float64
	ExitReason  string
}
