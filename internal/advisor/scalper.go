package advisor

import (
	"context"

	"crypto-advisor-go/internal/binance"
	"crypto-advisor-go/internal/wallet"

	"go.uber.org/zap"
)

// Scalper force-closes open positions at small profit or loss thresholds.
// It always sells the entire position, never a partial.
type Scalper struct {
	logger   *zap.Logger
	market   binance.MarketDataClient
	wallet   *wallet.Wallet
	executor TradeExecutor

	takeProfitPct float64
	stopLossPct   float64
}

// NewScalper creates the scalping position manager.
func NewScalper(logger *zap.Logger, market binance.MarketDataClient, w *wallet.Wallet,
	executor TradeExecutor, takeProfitPct, stopLossPct float64) *Scalper {
	return &Scalper{
		logger:        logger.Named("scalper"),
		market:        market,
		wallet:        w,
		executor:      executor,
		takeProfitPct: takeProfitPct,
		stopLossPct:   stopLossPct,
	}
}

// ManagePositions scans every open position once. Per-position failures are
// logged and the scan continues; there is no early abort.
func (s *Scalper) ManagePositions(ctx context.Context) {
	for symbol, pos := range s.wallet.Positions() {
		if pos.AvgPrice <= 0 || pos.Amount <= 0 {
			continue
		}

		l := s.logger.With(zap.String("symbol", symbol), zap.Float64("avg_price", pos.AvgPrice))

		currentPrice, err := s.market.GetTickerPrice(symbol)
		if err != nil {
			l.Warn("Could not fetch price for position", zap.Error(err))
			continue
		}

		pnlPct := (currentPrice - pos.AvgPrice) / pos.AvgPrice
		if pnlPct < s.takeProfitPct && pnlPct > -s.stopLossPct {
			continue
		}

		l.Info("Threshold hit, closing full position",
			zap.Float64("current_price", currentPrice),
			zap.Float64("pnl_pct", pnlPct))

		// Re-read the live position size; the scan iterates over a copy.
		amountUSD := s.wallet.PositionValue(symbol, currentPrice)
		if amountUSD <= 0 {
			continue
		}
		if _, err := s.executor.Execute(ctx, symbol, wallet.SideSell, amountUSD); err != nil {
			l.Warn("Failed to close position", zap.Error(err))
		}
	}
}
