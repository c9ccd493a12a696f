package domain

// Signal is a raw opportunity notification from the external feed.
// Immutable once enqueued; consumed exactly once by the screening stage.
type Signal struct {
	Mint       string // token mint address (base58)
	Symbol     string // display symbol, may be empty until metadata resolves
	ReceivedAt int64  // arrival timestamp (ms)
	Metadata   SignalMetadata
}

// SignalMetadata carries the opaque feed context attached to a signal.
type SignalMetadata struct {
	UniqueWalletCount int
	WalletAddresses   []string
	WindowStartMs     int64
	WindowEndMs       int64
	TriggeredAtMs     int64
}

// Candidate is a signal that completed sentiment screening.
// Failed candidates are dropped, never persisted.
type Candidate struct {
	Signal         Signal
	SentimentScore float64 // 0-100
	Mentions       int
	ScreenedAt     int64 // ms
}
