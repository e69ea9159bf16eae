package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crypto-advisor-go/internal/advisor"
	"crypto-advisor-go/internal/binance"
	"crypto-advisor-go/internal/config"
	"crypto-advisor-go/internal/wallet"

	"go.uber.org/zap"
)

// Engine drives the autonomous loop: scheduled analysis cycles plus the
// faster scalping scan, both against the shared wallet. Each cycle runs to
// completion before the next fires; overlapping triggers are rejected by
// the orchestrator's single-flight guard.
type Engine struct {
	logger       *zap.Logger
	cfg          *config.Config
	market       binance.MarketDataClient
	executor     *Executor
	orchestrator *advisor.Orchestrator
	scalper      *advisor.Scalper
	wallet       *wallet.Wallet

	freshWallet bool // true when no persisted snapshot existed at startup
}

// NewEngine creates the trading engine.
func NewEngine(logger *zap.Logger, cfg *config.Config, market binance.MarketDataClient,
	executor *Executor, orchestrator *advisor.Orchestrator, scalper *advisor.Scalper,
	w *wallet.Wallet, freshWallet bool) *Engine {
	return &Engine{
		logger:       logger.Named("engine"),
		cfg:          cfg,
		market:       market,
		executor:     executor,
		orchestrator: orchestrator,
		scalper:      scalper,
		wallet:       w,
		freshWallet:  freshWallet,
	}
}

// Run starts the engine and blocks until the context is cancelled.
// A dead market data feed at startup is fatal: the advisor refuses to run
// blind rather than degrade with no prices at all.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Initializing trading engine...")
	if err := e.market.Ping(); err != nil {
		return fmt.Errorf("market data feed unavailable: %w", err)
	}

	e.maybeInitialBuy(ctx)

	analysisInterval := time.Duration(e.cfg.Trading.AnalysisInterval) * time.Second
	scalpInterval := time.Duration(e.cfg.Scalping.ScanInterval) * time.Second

	analysisTicker := time.NewTicker(analysisInterval)
	defer analysisTicker.Stop()
	scalpTicker := time.NewTicker(scalpInterval)
	defer scalpTicker.Stop()

	e.logger.Info("Starting autonomous loop",
		zap.Duration("analysis_interval", analysisInterval),
		zap.Duration("scalp_interval", scalpInterval))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping trading engine...")
			return nil

		case <-analysisTicker.C:
			if _, err := e.orchestrator.AnalyzeMarket(ctx, ""); err != nil {
				if errors.Is(err, advisor.ErrCycleInProgress) {
					e.logger.Debug("Skipping scheduled cycle, another is in flight")
				} else {
					e.logger.Error("Analysis cycle failed", zap.Error(err))
				}
			}

		case <-scalpTicker.C:
			e.scalper.ManagePositions(ctx)
		}
	}
}

// maybeInitialBuy makes the bootstrap BTC purchase on a fresh wallet so a
// brand new install has a position to manage. Skipped when state was
// restored, when a position already exists, or when the balance is below
// the order floor.
func (e *Engine) maybeInitialBuy(ctx context.Context) {
	if !e.cfg.Trading.AutoBuyBTC || !e.freshWallet {
		return
	}
	if len(e.wallet.Positions()) > 0 {
		return
	}
	if e.wallet.Balance() < e.cfg.Trading.MinOrderUSD {
		return
	}

	e.logger.Info("Making initial BTC purchase", zap.Float64("amount_usd", e.cfg.Trading.MinOrderUSD))
	if _, err := e.executor.Execute(ctx, "BTCUSDT", wallet.SideBuy, e.cfg.Trading.MinOrderUSD); err != nil {
		e.logger.Warn("Initial BTC purchase failed", zap.Error(err))
	}
}
