// Package main runs the autonomous trading service: signal intake,
// sentiment screening, entry analysis, position monitoring, and the
// observer WebSocket surface, all in one process.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"solana-auto-trader/internal/broadcast"
	"solana-auto-trader/internal/config"
	"solana-auto-trader/internal/domain"
	"solana-auto-trader/internal/entry"
	"solana-auto-trader/internal/execution"
	"solana-auto-trader/internal/marketdata"
	"solana-auto-trader/internal/observability"
	"solana-auto-trader/internal/orchestrator"
	"solana-auto-trader/internal/persist"
	"solana-auto-trader/internal/portfolio"
	"solana-auto-trader/internal/screening"
	"solana-auto-trader/internal/sentiment"
	sigsource "solana-auto-trader/internal/signal"
	"solana-auto-trader/internal/storage"
	chstore "solana-auto-trader/internal/storage/clickhouse"
	"solana-auto-trader/internal/storage/memory"
	"solana-auto-trader/internal/storage/migrations"
	pgstore "solana-auto-trader/internal/storage/postgres"
	"solana-auto-trader/internal/strategy"
)

// Demo mints streamed by the stub source when no feed is configured.
var demoMints = map[string]string{
	"So11111111111111111111111111111111111111112":  "WSOL",
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": "USDC",
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": "USDT",
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Flags layer on top of the environment.
	listenAddr := flag.String("listen-addr", cfg.ListenAddr, "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string")
	signalEndpoint := flag.String("signal-endpoint", cfg.SignalFeedEndpoint, "WebSocket signal feed endpoint")
	sentimentEndpoint := flag.String("sentiment-endpoint", cfg.SentimentEndpoint, "Sentiment service base URL")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	demo := flag.Bool("demo", false, "Run against synthetic market data and stub signals")

	flag.Parse()

	logger := log.New(os.Stdout, "[trader] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")
	ledger := portfolio.NewLedger(cfg.InitialCapitalSOL)
	hub := broadcast.NewHub(broadcast.HubOptions{Metrics: metrics, Logger: logger})

	persister := persist.New(persist.Options{
		Store:   stores.tradeLog,
		Metrics: metrics,
		Logger:  log.New(os.Stdout, "[persist] ", log.LstdFlags),
	})
	go persister.Run(ctx)

	simulator := execution.NewSimulator(ledger, nil, persister)

	provider := createProvider(cfg, *demo, logger)
	source := createSignalSource(cfg, *signalEndpoint, *demo, logger)
	scorer := createScorer(cfg, *sentimentEndpoint, *demo)

	orch := orchestrator.New(orchestrator.Options{
		Ledger:   ledger,
		Executor: simulator,
		Provider: provider,
		Hub:      hub,
		Queue:    sigsource.NewQueue(),
		Source:   source,
		Screener: screening.NewScreener(screening.Options{
			Scorer:    scorer,
			Threshold: cfg.SentimentThreshold,
			Logger:    log.New(os.Stdout, "[screen] ", log.LstdFlags),
		}),
		Analyzer: entry.NewAnalyzer(entry.AnalyzerOptions{
			Provider:     provider,
			Rule:         entryRule(cfg),
			HistoryLimit: cfg.HistoryLimit,
			Logger:       log.New(os.Stdout, "[entry] ", log.LstdFlags),
		}),
		StrategyConfig: strategy.Config{
			Tiers:           cfg.TakeProfitTiers,
			InitialStopPct:  cfg.InitialStopPct,
			TrailingStopPct: cfg.TrailingStopPct,
			ScaleIn: strategy.ScaleIn{
				Enabled:     cfg.ScaleInEnabled,
				TriggerGain: cfg.ScaleInTriggerGain,
				RiskPct:     cfg.ScaleInRiskPct,
			},
		},
		RiskPerTrade:     cfg.RiskPerTrade,
		MaxOpenPositions: cfg.MaxOpenPositions,
		MinTradeSOL:      cfg.MinTradeSOL,
		TickArchive:      stores.tickArchive,
		Metrics:          metrics,
		Logger:           logger,
	})

	// Market-index heartbeat keeps observers alive between positions.
	go hub.RunHeartbeat(ctx, 2*time.Second, func() bool {
		return orch.ActivePositions() > 0
	})

	startedAt := time.Now()
	go startHTTPServer(*listenAddr, hub, ledger, orch, startedAt, logger)

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = orch.Run(ctx)
	orch.Wait()
	persister.Wait()
	done <- err

	if err != nil && err != orchestrator.ErrShutdown {
		logger.Fatalf("Orchestrator error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// allStores holds the storage implementations in use.
type allStores struct {
	tradeLog    storage.TradeLogStore
	tickArchive storage.TickArchiveStore
}

// createStores builds either the in-memory stores or the
// PostgreSQL/ClickHouse pair, running migrations on boot.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, logger *log.Logger) (*allStores, func(), error) {
	if useMemory {
		return &allStores{
			tradeLog:    memory.NewTradeLogStore(),
			tickArchive: memory.NewTickArchiveStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	stores := &allStores{tradeLog: pgstore.NewTradeLogStore(pool)}
	cleanup := func() { pool.Close() }

	// The tick archive is optional: without ClickHouse ticks simply are
	// not archived.
	if clickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		stores.tickArchive = chstore.NewTickArchiveStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	} else {
		logger.Println("No ClickHouse DSN, tick archiving disabled")
	}

	return stores, cleanup, nil
}

// createProvider selects the market-data source.
func createProvider(cfg *config.Config, demo bool, logger *log.Logger) marketdata.Provider {
	if demo {
		return marketdata.NewSyntheticProvider(marketdata.DefaultSyntheticConfig())
	}
	return marketdata.NewGeckoProvider(marketdata.GeckoOptions{
		BaseURL: cfg.GeckoBaseURL,
		Network: cfg.GeckoNetwork,
		Logger:  log.New(os.Stdout, "[gecko] ", log.LstdFlags),
	})
}

// createSignalSource selects the live WebSocket feed or the demo stub.
func createSignalSource(cfg *config.Config, endpoint string, demo bool, logger *log.Logger) sigsource.Source {
	if !demo && endpoint != "" {
		return sigsource.NewWSSource(endpoint, nil, log.New(os.Stdout, "[signal-ws] ", log.LstdFlags))
	}

	logger.Println("No signal feed configured, using stub signals")
	signals := make([]*domain.Signal, 0, len(demoMints))
	for mint, symbol := range demoMints {
		signals = append(signals, &domain.Signal{Mint: mint, Symbol: symbol})
	}
	return sigsource.NewStubSource(signals, 5*time.Second)
}

// createScorer selects the sentiment collaborator or a static pass.
func createScorer(cfg *config.Config, endpoint string, demo bool) sentiment.Scorer {
	if !demo && endpoint != "" {
		return sentiment.NewClient(sentiment.ClientOptions{BaseURL: endpoint})
	}
	return &sentiment.StaticScorer{FixedScore: 75, FixedMentions: 10}
}

// entryRule maps configuration to the entry rule variant.
func entryRule(cfg *config.Config) entry.Rule {
	if cfg.EntryRule == "breakout" {
		return entry.Rule{Kind: entry.RuleBreakout, Lookback: cfg.BreakoutLookback}
	}
	return entry.Rule{
		Kind:        entry.RuleCrossover,
		ShortWindow: cfg.SMAShortWindow,
		LongWindow:  cfg.SMALongWindow,
	}
}

// startHTTPServer serves health, status, metrics, and the observer
// WebSocket endpoint.
func startHTTPServer(addr string, hub *broadcast.Hub, ledger *portfolio.Ledger, orch *orchestrator.Orchestrator, startedAt time.Time, logger *log.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())
	mux.Handle("/ws", broadcast.NewServer(hub, log.New(os.Stdout, "[ws] ", log.LstdFlags)))

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			Status:        "running",
			Uptime:        time.Since(startedAt).String(),
			OpenPositions: orch.ActivePositions(),
			CashBalance:   ledger.CashBalance(),
			RealizedPnL:   ledger.RealizedPnL(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}

// statusResponse is the JSON response for the /status endpoint.
type statusResponse struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	OpenPositions int     `json:"open_positions"`
	CashBalance   float64 `json:"cash_balance"`
	RealizedPnL   float64 `json:"realized_pnl"`
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
