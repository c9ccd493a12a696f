// Package config holds runtime configuration for the trading service.
// Values are read from the environment with sensible defaults; cmd/trader
// layers command-line flags on top.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"solana-auto-trader/internal/domain"
)

// Tiers is a comma-separated list of target:fraction pairs,
// e.g. "0.30:0.33,0.75:0.33".
type Tiers []domain.TakeProfitTier

// Decode implements envconfig.Decoder.
func (t *Tiers) Decode(value string) error {
	parsed, err := ParseTiers(value)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTiers parses "target:fraction,target:fraction" into tiers.
// Tiers must be in ascending target order.
func ParseTiers(value string) (Tiers, error) {
	var tiers Tiers
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid tier %q: want target:fraction", part)
		}
		target, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tier target %q: %w", fields[0], err)
		}
		fraction, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tier fraction %q: %w", fields[1], err)
		}
		if target <= 0 || fraction <= 0 || fraction > 1 {
			return nil, fmt.Errorf("tier %q out of range", part)
		}
		tiers = append(tiers, domain.TakeProfitTier{TargetGain: target, SellFraction: fraction})
	}
	for i := 1; i < len(tiers); i++ {
		if tiers[i].TargetGain <= tiers[i-1].TargetGain {
			return nil, fmt.Errorf("tiers must be in ascending target order")
		}
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no tiers configured")
	}
	return tiers, nil
}

// Config is the full runtime configuration.
type Config struct {
	// Portfolio and risk
	InitialCapitalSOL float64 `envconfig:"INITIAL_CAPITAL_SOL" default:"50.0"`
	RiskPerTrade      float64 `envconfig:"RISK_PER_TRADE" default:"0.02"`
	MaxOpenPositions  int     `envconfig:"MAX_OPEN_POSITIONS" default:"5"`
	MinTradeSOL       float64 `envconfig:"MIN_TRADE_SOL" default:"0.01"`

	// Exit policy
	TakeProfitTiers Tiers   `envconfig:"TAKE_PROFIT_TIERS" default:"0.30:0.33,0.75:0.33"`
	InitialStopPct  float64 `envconfig:"INITIAL_STOP_PCT" default:"0.15"`
	TrailingStopPct float64 `envconfig:"TRAILING_STOP_PCT" default:"0.20"`

	// Optional scale-in: one extra buy at ScaleInTriggerGain above entry.
	ScaleInEnabled     bool    `envconfig:"SCALE_IN_ENABLED" default:"false"`
	ScaleInTriggerGain float64 `envconfig:"SCALE_IN_TRIGGER_GAIN" default:"0.10"`
	ScaleInRiskPct     float64 `envconfig:"SCALE_IN_RISK_PCT" default:"0.01"`

	// Screening
	SentimentEndpoint  string  `envconfig:"SENTIMENT_ENDPOINT" default:""`
	SentimentThreshold float64 `envconfig:"SENTIMENT_THRESHOLD" default:"60"`

	// Entry analysis
	EntryRule        string `envconfig:"ENTRY_RULE" default:"crossover"` // crossover | breakout
	SMAShortWindow   int    `envconfig:"SMA_SHORT_WINDOW" default:"10"`
	SMALongWindow    int    `envconfig:"SMA_LONG_WINDOW" default:"20"`
	BreakoutLookback int    `envconfig:"BREAKOUT_LOOKBACK" default:"50"`
	HistoryLimit     int    `envconfig:"HISTORY_LIMIT" default:"200"`

	// Collaborator endpoints
	SignalFeedEndpoint string `envconfig:"SIGNAL_FEED_ENDPOINT" default:""`
	GeckoBaseURL       string `envconfig:"GECKO_BASE_URL" default:"https://api.geckoterminal.com/api/v2"`
	GeckoNetwork       string `envconfig:"GECKO_NETWORK" default:"solana"`

	// Persistence (empty DSNs fall back to in-memory stores)
	PostgresDSN   string `envconfig:"POSTGRES_DSN" default:""`
	ClickhouseDSN string `envconfig:"CLICKHOUSE_DSN" default:""`

	// HTTP surface
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("TRADER", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that tags cannot express.
func (c *Config) Validate() error {
	if c.RiskPerTrade <= 0 || c.RiskPerTrade >= 1 {
		return fmt.Errorf("risk per trade must be in (0, 1), got %v", c.RiskPerTrade)
	}
	if c.MaxOpenPositions <= 0 {
		return fmt.Errorf("max open positions must be positive, got %d", c.MaxOpenPositions)
	}
	if c.InitialStopPct <= 0 || c.InitialStopPct >= 1 {
		return fmt.Errorf("initial stop pct must be in (0, 1), got %v", c.InitialStopPct)
	}
	if c.TrailingStopPct <= 0 || c.TrailingStopPct >= 1 {
		return fmt.Errorf("trailing stop pct must be in (0, 1), got %v", c.TrailingStopPct)
	}
	if c.SMAShortWindow >= c.SMALongWindow {
		return fmt.Errorf("SMA short window (%d) must be below long window (%d)", c.SMAShortWindow, c.SMALongWindow)
	}
	if c.BreakoutLookback < 2 {
		return fmt.Errorf("breakout lookback must be at least 2, got %d", c.BreakoutLookback)
	}
	if c.EntryRule != "crossover" && c.EntryRule != "breakout" {
		return fmt.Errorf("unknown entry rule %q", c.EntryRule)
	}
	return nil
}
