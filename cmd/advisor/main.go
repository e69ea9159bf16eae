package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"crypto-advisor-go/internal/advisor"
	"crypto-advisor-go/internal/agent"
	"crypto-advisor-go/internal/binance"
	"crypto-advisor-go/internal/config"
	"crypto-advisor-go/internal/logger"
	"crypto-advisor-go/internal/server"
	"crypto-advisor-go/internal/state"
	"crypto-advisor-go/internal/trader"
	"crypto-advisor-go/internal/wallet"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "advisor",
		Short: "Multi-agent crypto advisor with a virtual paper-trading wallet",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional; real config comes from viper.
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./configs", "directory containing config.yml")

	root.AddCommand(runCmd(), analyzeCmd(), tradeCmd(), summaryCmd(), resetCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the wired components shared by every subcommand.
type app struct {
	cfg          config.Config
	log          *zap.Logger
	market       binance.MarketDataClient
	store        *state.Store
	wallet       *wallet.Wallet
	freshWallet  bool
	executor     *trader.Executor
	orchestrator *advisor.Orchestrator
	scalper      *advisor.Scalper
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return nil, fmt.Errorf("could not initialize logger: %w", err)
	}

	store, err := state.NewStore(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	// Restore the wallet wholesale from the snapshot, or start fresh.
	snap, found, err := store.Load()
	if err != nil {
		return nil, err
	}
	var w *wallet.Wallet
	if found {
		w = wallet.Restore(snap)
		log.Info("Restored wallet from snapshot",
			zap.Float64("balance", w.Balance()),
			zap.Int("positions", len(w.Positions())))
	} else {
		w = wallet.New(cfg.Trading.InitialBalance)
		log.Info("Initialized fresh virtual wallet",
			zap.Float64("balance", cfg.Trading.InitialBalance))
	}

	market := binance.NewRestClient(&cfg.Binance, log)

	generator, err := agent.NewChatGenerator(ctx, &cfg.LLM, log)
	if err != nil {
		return nil, err
	}

	executor := trader.NewExecutor(log, market, w, store, cfg.Trading.FeeRate)
	autoTrader := advisor.NewAutoTrader(log, market, w, executor,
		cfg.Trading.BuyFraction, cfg.Trading.MinOrderUSD, cfg.Trading.MaxEntryDrift)
	orchestrator := advisor.NewOrchestrator(log, market, generator, autoTrader,
		cfg.Trading.Watchlist, cfg.Trading.KlineInterval, cfg.Trading.KlineLimit)
	scalper := advisor.NewScalper(log, market, w, executor,
		cfg.Scalping.TakeProfitPct, cfg.Scalping.StopLossPct)

	return &app{
		cfg:          cfg,
		log:          log,
		market:       market,
		store:        store,
		wallet:       w,
		freshWallet:  !found,
		executor:     executor,
		orchestrator: orchestrator,
		scalper:      scalper,
	}, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the autonomous advisor loop and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			api := server.NewAPIServer(a.cfg.Server.Port, a.log, a.market, a.wallet,
				a.executor, a.orchestrator, a.cfg.Trading.KlineInterval, a.cfg.Trading.KlineLimit)
			api.Start()

			engine := trader.NewEngine(a.log, &a.cfg, a.market, a.executor,
				a.orchestrator, a.scalper, a.wallet, a.freshWallet)
			runErr := engine.Run(ctx)

			// The server is already up; shut it down even when the engine
			// failed to start.
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := api.Stop(shutdownCtx); err != nil {
				a.log.Warn("API server shutdown failed", zap.Error(err))
			}

			if runErr != nil {
				return runErr
			}
			a.log.Info("Advisor has been shut down.")
			return nil
		},
	}
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [symbol]",
		Short: "Run one analysis cycle (all watchlist pairs, or a single symbol)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			symbol := ""
			if len(args) == 1 {
				symbol = strings.ToUpper(args[0])
			}

			analyses, err := a.orchestrator.AnalyzeMarket(ctx, symbol)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(analyses))
			for name := range analyses {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("\n%s:\n%s\n%s\n", name, strings.Repeat("-", 50), analyses[name])
			}
			return nil
		},
	}
}

func tradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trade <symbol> <buy|sell> <amount-usd>",
		Short: "Execute a single virtual trade",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amountUSD, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid USD amount %q: %w", args[2], err)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			trade, err := a.executor.Execute(ctx, strings.ToUpper(args[0]), args[1], amountUSD)
			if err != nil {
				return err
			}

			return printJSON(trade)
		},
	}
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the wallet summary including live total value",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.log.Sync()

			prices := make(map[string]float64)
			for symbol := range a.wallet.Positions() {
				price, err := a.market.GetTickerPrice(symbol)
				if err != nil {
					a.log.Warn("Could not price position", zap.String("symbol", symbol), zap.Error(err))
					continue
				}
				prices[symbol] = price
			}

			summary := a.wallet.Summary()
			return printJSON(map[string]any{
				"summary":     summary,
				"total_value": a.wallet.TotalValue(prices),
			})
		},
	}
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the persisted snapshot and start over with a fresh wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.log.Sync()

			if err := a.store.Reset(); err != nil {
				return err
			}
			a.log.Info("Snapshot deleted, the next start will use a fresh wallet",
				zap.Float64("initial_balance", a.cfg.Trading.InitialBalance))
			return nil
		},
	}
}

func printJSON(payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
