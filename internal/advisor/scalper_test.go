package advisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"crypto-advisor-go/internal/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newScalperFixture(w *wallet.Wallet, market *mockMarket) (*Scalper, *mockExecutor) {
	executor := &mockExecutor{}
	s := NewScalper(zap.NewNop(), market, w, executor, 0.0025, 0.0015)
	return s, executor
}

func openPosition(w *wallet.Wallet, symbol string, amount, price float64) {
	w.Settle(wallet.Trade{
		Timestamp: time.Now(), Symbol: symbol, Side: wallet.SideBuy,
		Amount: amount, Price: price,
	})
}

func TestScalperClosesOnTakeProfit(t *testing.T) {
	w := wallet.New(1000)
	openPosition(w, "BTCUSDT", 0.001, 50000)
	// +0.3%, above the 0.25% take-profit threshold.
	market := &mockMarket{prices: map[string]float64{"BTCUSDT": 50150}}
	s, executor := newScalperFixture(w, market)

	s.ManagePositions(context.Background())

	require.Len(t, executor.orders, 1)
	assert.Equal(t, wallet.SideSell, executor.orders[0].Side)
	// Full position market value, not a partial.
	assert.InDelta(t, 0.001*50150, executor.orders[0].AmountUSD, 1e-9)
}

func TestScalperClosesOnStopLoss(t *testing.T) {
	w := wallet.New(1000)
	openPosition(w, "BTCUSDT", 0.001, 50000)
	// -0.2%, beyond the 0.15% stop-loss threshold.
	market := &mockMarket{prices: map[string]float64{"BTCUSDT": 49900}}
	s, executor := newScalperFixture(w, market)

	s.ManagePositions(context.Background())

	require.Len(t, executor.orders, 1)
	assert.Equal(t, "BTCUSDT", executor.orders[0].Symbol)
}

func TestScalperHoldsInsideThresholds(t *testing.T) {
	w := wallet.New(1000)
	openPosition(w, "BTCUSDT", 0.001, 50000)
	// +0.1%: inside both thresholds.
	market := &mockMarket{prices: map[string]float64{"BTCUSDT": 50050}}
	s, executor := newScalperFixture(w, market)

	s.ManagePositions(context.Background())

	assert.Empty(t, executor.orders)
}

func TestScalperContinuesAfterPerPositionFailure(t *testing.T) {
	w := wallet.New(1000)
	openPosition(w, "BTCUSDT", 0.001, 50000)
	openPosition(w, "ETHUSDT", 0.1, 2000)
	market := &mockMarket{
		prices:   map[string]float64{"ETHUSDT": 2010}, // +0.5%
		priceErr: map[string]error{"BTCUSDT": errors.New("feed down")},
	}
	s, executor := newScalperFixture(w, market)

	s.ManagePositions(context.Background())

	require.Len(t, executor.orders, 1)
	assert.Equal(t, "ETHUSDT", executor.orders[0].Symbol)
}
