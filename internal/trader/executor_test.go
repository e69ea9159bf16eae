package trader

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"crypto-advisor-go/internal/binance"
	"crypto-advisor-go/internal/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockMarket struct {
	prices   map[string]float64
	rules    map[string]*binance.SymbolRules
	priceErr error
}

var _ binance.MarketDataClient = (*mockMarket)(nil)

func (m *mockMarket) Ping() error { return nil }

func (m *mockMarket) GetTickerPrice(symbol string) (float64, error) {
	if m.priceErr != nil {
		return 0, m.priceErr
	}
	price, ok := m.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return price, nil
}

func (m *mockMarket) GetAllTickerPrices() (map[string]float64, error) { return m.prices, nil }

func (m *mockMarket) GetMarketSnapshot(symbol, interval string, limit int) (*binance.MarketSnapshot, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockMarket) GetSymbolRules(symbol string) (*binance.SymbolRules, error) {
	if rules, ok := m.rules[symbol]; ok {
		return rules, nil
	}
	return &binance.SymbolRules{Symbol: symbol, StepSize: "0.00001000", MinNotional: 1.0}, nil
}

type recordingStore struct {
	saves int
	err   error
}

func (s *recordingStore) Save(snap *wallet.Snapshot) error {
	s.saves++
	return s.err
}

func newExecutorFixture(w *wallet.Wallet, market *mockMarket) (*Executor, *recordingStore) {
	store := &recordingStore{}
	return NewExecutor(zap.NewNop(), market, w, store, 0.001), store
}

func TestExecuteBuy(t *testing.T) {
	w := wallet.New(100)
	market := &mockMarket{prices: map[string]float64{"BTCUSDT": 50000}}
	executor, store := newExecutorFixture(w, market)

	trade, err := executor.Execute(context.Background(), "BTCUSDT", "buy", 5.0)
	require.NoError(t, err)

	assert.Equal(t, wallet.SideBuy, trade.Side)
	assert.NotEmpty(t, trade.ID)
	assert.InDelta(t, 0.0001, trade.Amount, 1e-12)
	// Buy slippage is adverse: fill must be above the quote, within 0.1%.
	assert.Greater(t, trade.Price, 50000.0)
	assert.LessOrEqual(t, trade.Price, 50000.0*1.001)
	assert.InDelta(t, trade.Amount*trade.Price*0.001, trade.Fees, 1e-9)

	pos, ok := w.Position("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 0.0001, pos.Amount, 1e-12)
	assert.InDelta(t, trade.Price, pos.AvgPrice, 1e-9)
	assert.InDelta(t, 100-trade.ValueUSD-trade.Fees, w.Balance(), 1e-9)

	assert.Equal(t, 1, store.saves, "wallet must be persisted after settlement")
}

func TestExecuteSellClosesPosition(t *testing.T) {
	w := wallet.New(100)
	market := &mockMarket{prices: map[string]float64{"BTCUSDT": 50000}}
	executor, store := newExecutorFixture(w, market)

	_, err := executor.Execute(context.Background(), "BTCUSDT", "buy", 5.0)
	require.NoError(t, err)

	market.prices["BTCUSDT"] = 55000
	trade, err := executor.Execute(context.Background(), "BTCUSDT", "sell", 5.5)
	require.NoError(t, err)

	assert.Equal(t, wallet.SideSell, trade.Side)
	// Sell slippage is adverse: fill must be below the quote.
	assert.Less(t, trade.Price, 55000.0)
	assert.GreaterOrEqual(t, trade.Price, 55000.0*0.999)

	_, ok := w.Position("BTCUSDT")
	assert.False(t, ok, "selling the full amount removes the position")
	assert.Equal(t, 2, store.saves)
}

func TestExecuteRejectsBelowMinNotional(t *testing.T) {
	w := wallet.New(100)
	market := &mockMarket{
		prices: map[string]float64{"BTCUSDT": 50000},
		rules: map[string]*binance.SymbolRules{
			"BTCUSDT": {Symbol: "BTCUSDT", StepSize: "0.00001000", MinNotional: 10.0},
		},
	}
	executor, store := newExecutorFixture(w, market)

	_, err := executor.Execute(context.Background(), "BTCUSDT", "buy", 5.0)
	assert.ErrorIs(t, err, ErrBelowMinNotional)
	assert.Equal(t, 0, store.saves)
	assert.InDelta(t, 100.0, w.Balance(), 1e-9, "declined trades must not touch the wallet")
}

func TestExecuteRejectsInsufficientBalance(t *testing.T) {
	w := wallet.New(3)
	market := &mockMarket{prices: map[string]float64{"BTCUSDT": 50000}}
	executor, _ := newExecutorFixture(w, market)

	_, err := executor.Execute(context.Background(), "BTCUSDT", "buy", 5.0)
	assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)
}

func TestExecuteRejectsSellWithoutPosition(t *testing.T) {
	w := wallet.New(100)
	market := &mockMarket{prices: map[string]float64{"ETHUSDT": 2000}}
	executor, _ := newExecutorFixture(w, market)

	_, err := executor.Execute(context.Background(), "ETHUSDT", "sell", 5.0)
	assert.ErrorIs(t, err, wallet.ErrNoPosition)
}

func TestExecuteSurfacesFeedFailure(t *testing.T) {
	w := wallet.New(100)
	market := &mockMarket{priceErr: errors.New("connection reset")}
	executor, store := newExecutorFixture(w, market)

	_, err := executor.Execute(context.Background(), "BTCUSDT", "buy", 5.0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "could not get price")
	assert.Equal(t, 0, store.saves)
}

func TestFloorToStep(t *testing.T) {
	testCases := []struct {
		name     string
		quantity float64
		stepSize string
		expected float64
	}{
		{"Exact multiple", 0.0001, "0.00001000", 0.0001},
		{"Floors down", 0.000123456, "0.00001000", 0.00012},
		{"Whole units", 3.7, "1.00000000", 3.0},
		{"Empty step leaves quantity", 1.23456, "", 1.23456},
		{"Zero step leaves quantity", 1.23456, "0", 1.23456},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, floorToStep(tc.quantity, tc.stepSize), 1e-12)
		})
	}
}
