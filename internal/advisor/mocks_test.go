package advisor

import (
	"context"
	"fmt"

	"crypto-advisor-go/internal/binance"
	"crypto-advisor-go/internal/wallet"
)

// mockMarket is a canned MarketDataClient for tests.
type mockMarket struct {
	prices    map[string]float64
	snapshots map[string]*binance.MarketSnapshot
	priceErr  map[string]error
}

var _ binance.MarketDataClient = (*mockMarket)(nil)

func (m *mockMarket) Ping() error { return nil }

func (m *mockMarket) GetTickerPrice(symbol string) (float64, error) {
	if err, ok := m.priceErr[symbol]; ok {
		return 0, err
	}
	price, ok := m.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return price, nil
}

func (m *mockMarket) GetAllTickerPrices() (map[string]float64, error) {
	return m.prices, nil
}

func (m *mockMarket) GetMarketSnapshot(symbol, interval string, limit int) (*binance.MarketSnapshot, error) {
	snap, ok := m.snapshots[symbol]
	if !ok {
		return nil, fmt.Errorf("no snapshot for %s", symbol)
	}
	return snap, nil
}

func (m *mockMarket) GetSymbolRules(symbol string) (*binance.SymbolRules, error) {
	return &binance.SymbolRules{Symbol: symbol, StepSize: "0.00001000", MinNotional: 1.0}, nil
}

// executedOrder records one call routed to the mock executor.
type executedOrder struct {
	Symbol    string
	Side      string
	AmountUSD float64
}

// mockExecutor records orders; optionally failing specific symbols.
type mockExecutor struct {
	orders  []executedOrder
	failFor map[string]error
}

var _ TradeExecutor = (*mockExecutor)(nil)

func (m *mockExecutor) Execute(ctx context.Context, symbol, side string, amountUSD float64) (*wallet.Trade, error) {
	if err, ok := m.failFor[symbol]; ok {
		return nil, err
	}
	m.orders = append(m.orders, executedOrder{Symbol: symbol, Side: side, AmountUSD: amountUSD})
	return &wallet.Trade{Symbol: symbol, Side: side, ValueUSD: amountUSD}, nil
}

// scriptedGenerator returns per-role canned text keyed by system prompt,
// falling back to a default.
type scriptedGenerator struct {
	bySystemPrompt map[string]string
	fallback       string
	err            error
	calls          int
}

func (g *scriptedGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	if text, ok := g.bySystemPrompt[systemPrompt]; ok {
		return text, nil
	}
	return g.fallback, nil
}
