package domain

// TradeStatus tracks a token through the pipeline lifecycle.
type TradeStatus string

// Lifecycle states, in pipeline order. Failed covers both screening
// rejections and aborted monitors; Finished covers full exits and
// no-entry completions.
const (
	StatusPending    TradeStatus = "Pending"
	StatusScreening  TradeStatus = "Screening"
	StatusMonitoring TradeStatus = "Monitoring"
	StatusActive     TradeStatus = "Active"
	StatusFinished   TradeStatus = "Finished"
	StatusFailed     TradeStatus = "Failed"
)

// Position is an open holding owned by exactly one monitoring goroutine.
// Read-only snapshots are exposed to the ledger and broadcaster.
type Position struct {
	Mint        string
	Symbol      string
	EntryPrice  float64
	EntryQty    float64 // original purchase quantity, tier fractions apply to this
	SolInvested float64
	EntryTimeMs int64
}

// PositionSnapshot is an immutable view of an open holding for observers.
type PositionSnapshot struct {
	Mint      string  `json:"mint"`
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	CostBasis float64 `json:"cost_basis"`
}

// TradeSummary is one row of the SUMMARY broadcast: every token the
// system has seen this session, its current status, and realized P&L
// once finished.
type TradeSummary struct {
	Mint   string      `json:"mint"`
	Symbol string      `json:"symbol"`
	Status TradeStatus `json:"status"`
	PnL    float64     `json:"pnl"`
}
