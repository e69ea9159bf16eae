package advisor

import (
	"context"
	"math"

	"crypto-advisor-go/internal/binance"
	"crypto-advisor-go/internal/wallet"

	"go.uber.org/zap"
)

// TradeExecutor routes selected trades to the execution engine. Satisfied
// by trader.Executor; tests substitute a recording fake.
type TradeExecutor interface {
	Execute(ctx context.Context, symbol, side string, amountUSD float64) (*wallet.Trade, error)
}

// AutoTrader turns extracted signals into bounded paper trades. Buys risk a
// configured fraction of the free balance (with a floor), sells unwind half
// of the current position's market value, and any signal whose entry price
// has drifted more than the tolerance from the live price is treated as
// stale and skipped.
type AutoTrader struct {
	logger   *zap.Logger
	market   binance.MarketDataClient
	wallet   *wallet.Wallet
	executor TradeExecutor

	buyFraction   float64 // fraction of free balance per buy signal
	minOrderUSD   float64 // order floor in USD
	maxEntryDrift float64 // max |current-entry|/entry before a signal is stale
}

// NewAutoTrader creates the autonomous trade selector.
func NewAutoTrader(logger *zap.Logger, market binance.MarketDataClient, w *wallet.Wallet,
	executor TradeExecutor, buyFraction, minOrderUSD, maxEntryDrift float64) *AutoTrader {
	return &AutoTrader{
		logger:        logger.Named("auto-trader"),
		market:        market,
		wallet:        w,
		executor:      executor,
		buyFraction:   buyFraction,
		minOrderUSD:   minOrderUSD,
		maxEntryDrift: maxEntryDrift,
	}
}

// ExecuteSignals processes each signal independently; a failure on one
// signal never blocks the remaining ones.
func (a *AutoTrader) ExecuteSignals(ctx context.Context, signals []TradeSignal) {
	for _, signal := range signals {
		a.executeSignal(ctx, signal)
	}
}

func (a *AutoTrader) executeSignal(ctx context.Context, signal TradeSignal) {
	l := a.logger.With(
		zap.String("symbol", signal.Symbol),
		zap.String("action", signal.Action),
		zap.Float64("entry_price", signal.EntryPrice),
	)

	if signal.EntryPrice <= 0 {
		l.Warn("Signal has no usable entry price, skipping")
		return
	}

	currentPrice, err := a.market.GetTickerPrice(signal.Symbol)
	if err != nil {
		l.Warn("Could not fetch current price for signal", zap.Error(err))
		return
	}

	drift := math.Abs(currentPrice-signal.EntryPrice) / signal.EntryPrice
	if drift > a.maxEntryDrift {
		l.Info("Skipping stale signal, price drifted from recommended entry",
			zap.Float64("current_price", currentPrice),
			zap.Float64("drift", drift))
		return
	}

	switch signal.Action {
	case "buy":
		available := a.wallet.Balance()
		if available < a.minOrderUSD {
			l.Info("Balance below order floor, skipping buy signal",
				zap.Float64("available", available))
			return
		}
		amountUSD := math.Max(available*a.buyFraction, a.minOrderUSD)
		if _, err := a.executor.Execute(ctx, signal.Symbol, wallet.SideBuy, amountUSD); err != nil {
			l.Warn("Autonomous buy failed", zap.Error(err))
		} else {
			l.Info("Autonomous buy executed", zap.Float64("amount_usd", amountUSD))
		}

	case "sell":
		pos, ok := a.wallet.Position(signal.Symbol)
		if !ok {
			l.Info("Sell signal for symbol not held, skipping")
			return
		}
		// Unwind half of the position's market value.
		amountUSD := pos.Amount * currentPrice * 0.5
		if _, err := a.executor.Execute(ctx, signal.Symbol, wallet.SideSell, amountUSD); err != nil {
			l.Warn("Autonomous sell failed", zap.Error(err))
		} else {
			l.Info("Autonomous sell executed", zap.Float64("amount_usd", amountUSD))
		}

	default:
		// "hold" and anything unrecognized produce no trade.
	}
}
