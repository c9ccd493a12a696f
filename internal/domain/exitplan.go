package domain

// TakeProfitTier defines one partial take-profit: when price reaches
// entry*(1+TargetGain), sell SellFraction of the original quantity.
type TakeProfitTier struct {
	TargetGain   float64 `json:"target_gain"`
	SellFraction float64 `json:"sell_fraction"`
}

// ExitPlanSnapshot is the broadcaster's view of a position's current
// exit policy. Tiers lists only the tiers not yet triggered.
type ExitPlanSnapshot struct {
	EntryPrice     float64          `json:"entry_price"`
	StopLossPrice  float64          `json:"stop_loss_price"`
	RemainingTiers []TakeProfitTier `json:"remaining_tiers"`
	HighestPrice   float64          `json:"highest_price"`
	Breakeven      bool             `json:"breakeven"`
}
