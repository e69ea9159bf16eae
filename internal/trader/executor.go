package trader

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"crypto-advisor-go/internal/binance"
	"crypto-advisor-go/internal/wallet"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Slippage is drawn uniformly from this range and always applied in the
// adverse direction: buys fill higher, sells fill lower.
const (
	minSlippage = 0.0001 // 0.01%
	maxSlippage = 0.001  // 0.1%
)

// ErrBelowMinNotional is returned when the order value is under the
// instrument's minimum.
var ErrBelowMinNotional = errors.New("order value below minimum notional")

// SnapshotStore persists the wallet after every settlement.
// Satisfied by state.Store.
type SnapshotStore interface {
	Save(snap *wallet.Snapshot) error
}

// Executor fills virtual orders against live market prices with realistic
// execution: lot-size rounding, adverse slippage and taker fees. Every
// successful settlement is followed by a full wallet persist.
type Executor struct {
	logger  *zap.Logger
	market  binance.MarketDataClient
	wallet  *wallet.Wallet
	store   SnapshotStore
	feeRate float64
}

// NewExecutor creates the virtual trade executor.
func NewExecutor(logger *zap.Logger, market binance.MarketDataClient, w *wallet.Wallet,
	store SnapshotStore, feeRate float64) *Executor {
	return &Executor{
		logger:  logger.Named("executor"),
		market:  market,
		wallet:  w,
		store:   store,
		feeRate: feeRate,
	}
}

// Execute fills a virtual order for amountUSD worth of the symbol. Any
// failure (feed outage, validation, below-minimum order) is returned as an
// error; callers treat a failed execution as non-fatal and move on.
func (e *Executor) Execute(ctx context.Context, symbol, side string, amountUSD float64) (*wallet.Trade, error) {
	side = strings.ToUpper(side)
	l := e.logger.With(
		zap.String("symbol", symbol),
		zap.String("side", side),
		zap.Float64("amount_usd", amountUSD),
	)

	currentPrice, err := e.market.GetTickerPrice(symbol)
	if err != nil {
		return nil, fmt.Errorf("could not get price for %s: %w", symbol, err)
	}
	if currentPrice <= 0 {
		return nil, fmt.Errorf("invalid price %f for %s", currentPrice, symbol)
	}

	rules, err := e.market.GetSymbolRules(symbol)
	if err != nil {
		return nil, fmt.Errorf("could not get instrument rules for %s: %w", symbol, err)
	}

	quantity := floorToStep(amountUSD/currentPrice, rules.StepSize)
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity for $%.2f of %s rounds to zero", ErrBelowMinNotional, amountUSD, symbol)
	}

	// Adverse slippage against the quoted price.
	slippage := minSlippage + rand.Float64()*(maxSlippage-minSlippage)
	executionPrice := currentPrice * (1 + slippage)
	if side == wallet.SideSell {
		executionPrice = currentPrice * (1 - slippage)
	}

	tradeValue := quantity * executionPrice
	fees := tradeValue * e.feeRate

	if tradeValue < rules.MinNotional {
		return nil, fmt.Errorf("%w: order value $%.2f below minimum $%.2f for %s",
			ErrBelowMinNotional, tradeValue, rules.MinNotional, symbol)
	}

	// Gate on the fee-inclusive value; Settle itself is unconditional.
	if err := e.wallet.CanExecute(symbol, side, tradeValue+fees); err != nil {
		return nil, fmt.Errorf("trade declined: %w", err)
	}

	settled := e.wallet.Settle(wallet.Trade{
		ID:        ulid.Make().String(),
		Timestamp: time.Now(),
		Symbol:    symbol,
		Side:      side,
		Amount:    quantity,
		Price:     executionPrice,
		Fees:      fees,
		Slippage:  slippage,
	})

	l.Info("Virtual order executed",
		zap.Float64("quantity", quantity),
		zap.Float64("execution_price", executionPrice),
		zap.Float64("fees", fees),
		zap.Float64("slippage", slippage),
		zap.Float64("balance_after", settled.BalanceAfter),
	)

	// Persist the full wallet after every settlement. A failed persist is
	// logged but does not undo the trade.
	if err := e.store.Save(e.wallet.Snapshot()); err != nil {
		l.Error("Failed to persist wallet snapshot", zap.Error(err))
	}

	return &settled, nil
}

// floorToStep floors a quantity to the instrument's lot-size increment.
// An unparseable or empty step leaves the quantity untouched.
func floorToStep(quantity float64, stepSize string) float64 {
	step, err := decimal.NewFromString(stepSize)
	if err != nil || step.IsZero() {
		return quantity
	}
	q := decimal.NewFromFloat(quantity)
	floored, _ := q.Div(step).Floor().Mul(step).Float64()
	return floored
}
