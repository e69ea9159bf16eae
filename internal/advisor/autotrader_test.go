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

func newAutoTraderFixture(w *wallet.Wallet, market *mockMarket) (*AutoTrader, *mockExecutor) {
	executor := &mockExecutor{}
	at := NewAutoTrader(zap.NewNop(), market, w, executor, 0.2, 5.0, 0.01)
	return at, executor
}

func TestAutoTraderBuyWithinTolerance(t *testing.T) {
	w := wallet.New(100)
	market := &mockMarket{prices: map[string]float64{"BTCUSDT": 50100}}
	at, executor := newAutoTraderFixture(w, market)

	// 0.2% deviation from the recommended entry: within the 1% gate.
	at.ExecuteSignals(context.Background(), []TradeSignal{
		{Symbol: "BTCUSDT", Action: "buy", EntryPrice: 50000},
	})

	require.Len(t, executor.orders, 1)
	assert.Equal(t, wallet.SideBuy, executor.orders[0].Side)
	// max(100*0.2, 5) = 20
	assert.InDelta(t, 20.0, executor.orders[0].AmountUSD, 1e-9)
}

func TestAutoTraderSkipsStaleSignal(t *testing.T) {
	w := wallet.New(100)
	market := &mockMarket{prices: map[string]float64{"BTCUSDT": 51000}}
	at, executor := newAutoTraderFixture(w, market)

	// 2% deviation: stale, no trade.
	at.ExecuteSignals(context.Background(), []TradeSignal{
		{Symbol: "BTCUSDT", Action: "buy", EntryPrice: 50000},
	})

	assert.Empty(t, executor.orders)
}

func TestAutoTraderBuyUsesOrderFloor(t *testing.T) {
	w := wallet.New(10)
	market := &mockMarket{prices: map[string]float64{"BTCUSDT": 50000}}
	at, executor := newAutoTraderFixture(w, market)

	at.ExecuteSignals(context.Background(), []TradeSignal{
		{Symbol: "BTCUSDT", Action: "buy", EntryPrice: 50000},
	})

	require.Len(t, executor.orders, 1)
	// 10*0.2 = 2 is below the $5 floor.
	assert.InDelta(t, 5.0, executor.orders[0].AmountUSD, 1e-9)
}

func TestAutoTraderSkipsBuyBelowFloor(t *testing.T) {
	w := wallet.New(3)
	market := &mockMarket{prices: map[string]float64{"BTCUSDT": 50000}}
	at, executor := newAutoTraderFixture(w, market)

	at.ExecuteSignals(context.Background(), []TradeSignal{
		{Symbol: "BTCUSDT", Action: "buy", EntryPrice: 50000},
	})

	assert.Empty(t, executor.orders)
}

func TestAutoTraderSellHalfPosition(t *testing.T) {
	w := wallet.New(100)
	w.Settle(wallet.Trade{
		Timestamp: time.Now(), Symbol: "ETHUSDT", Side: wallet.SideBuy,
		Amount: 0.02, Price: 2000,
	})
	market := &mockMarket{prices: map[string]float64{"ETHUSDT": 2010}}
	at, executor := newAutoTraderFixture(w, market)

	at.ExecuteSignals(context.Background(), []TradeSignal{
		{Symbol: "ETHUSDT", Action: "sell", EntryPrice: 2000},
	})

	require.Len(t, executor.orders, 1)
	assert.Equal(t, wallet.SideSell, executor.orders[0].Side)
	// Half of 0.02 * 2010.
	assert.InDelta(t, 0.02*2010*0.5, executor.orders[0].AmountUSD, 1e-9)
}

func TestAutoTraderSellWithoutPositionAndHold(t *testing.T) {
	w := wallet.New(100)
	market := &mockMarket{prices: map[string]float64{"ETHUSDT": 2000, "BTCUSDT": 50000}}
	at, executor := newAutoTraderFixture(w, market)

	at.ExecuteSignals(context.Background(), []TradeSignal{
		{Symbol: "ETHUSDT", Action: "sell", EntryPrice: 2000},
		{Symbol: "BTCUSDT", Action: "hold", EntryPrice: 50000},
	})

	assert.Empty(t, executor.orders)
}

func TestAutoTraderFailureDoesNotBlockRemainingSignals(t *testing.T) {
	w := wallet.New(100)
	market := &mockMarket{
		prices:   map[string]float64{"ETHUSDT": 2000},
		priceErr: map[string]error{"BTCUSDT": errors.New("feed down")},
	}
	at, executor := newAutoTraderFixture(w, market)

	at.ExecuteSignals(context.Background(), []TradeSignal{
		{Symbol: "BTCUSDT", Action: "buy", EntryPrice: 50000},
		{Symbol: "ETHUSDT", Action: "buy", EntryPrice: 2000},
	})

	require.Len(t, executor.orders, 1)
	assert.Equal(t, "ETHUSDT", executor.orders[0].Symbol)
}
