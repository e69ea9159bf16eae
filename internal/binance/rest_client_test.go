package binance

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	rc := &RestClient{
		client:  resty.New().SetBaseURL(server.URL),
		logger:  zap.NewNop(), // Use a no-op logger for tests
		limiter: rate.NewLimiter(rate.Inf, 1),
		rules:   make(map[string]*SymbolRules),
	}

	return rc, server
}

func TestGetTickerPrice(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/ticker/price", r.URL.Path)
			assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"symbol": "BTCUSDT", "price": "50000.12"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		price, err := rc.GetTickerPrice("BTCUSDT")

		assert.NoError(t, err)
		assert.InDelta(t, 50000.12, price, 1e-9)
	})

	t.Run("APIError", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code": -1121, "msg": "Invalid symbol."}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		price, err := rc.GetTickerPrice("NOPEUSDT")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get ticker price")
		assert.Equal(t, 0.0, price)
	})
}

func TestGetAllTickerPrices(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ticker/price", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"symbol": "BTCUSDT", "price": "50000"},
			{"symbol": "ETHUSDT", "price": "2000.5"},
			{"symbol": "BADUSDT", "price": "not-a-number"}
		]`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	prices, err := rc.GetAllTickerPrices()

	assert.NoError(t, err)
	assert.Len(t, prices, 2, "unparseable entries are skipped")
	assert.InDelta(t, 50000.0, prices["BTCUSDT"], 1e-9)
	assert.InDelta(t, 2000.5, prices["ETHUSDT"], 1e-9)
}

func TestGetKlines(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/klines", r.URL.Path)
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			[1700000000000, "100", "110", "95", "105", "1234.5", 1700003599999, "0", 0, "0", "0", "0"],
			[1700003600000, "105", "112", "101", "110", "987.6", 1700007199999, "0", 0, "0", "0", "0"]
		]`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	klines, err := rc.GetKlines("BTCUSDT", "1h", 2)

	require.NoError(t, err)
	require.Len(t, klines, 2)
	assert.InDelta(t, 100.0, klines[0].Open, 1e-9)
	assert.InDelta(t, 105.0, klines[0].Close, 1e-9)
	assert.InDelta(t, 110.0, klines[1].Close, 1e-9)
	assert.InDelta(t, 987.6, klines[1].Volume, 1e-9)
}

func TestGetSymbolRules(t *testing.T) {
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/exchangeInfo", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"symbols": [
				{
					"symbol": "BTCUSDT",
					"status": "TRADING",
					"filters": [
						{"filterType": "LOT_SIZE", "minQty": "0.00001000", "stepSize": "0.00001000"},
						{"filterType": "NOTIONAL", "minNotional": "10.00000000"}
					]
				}
			]
		}`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	rules, err := rc.GetSymbolRules("BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "0.00001000", rules.StepSize)
	assert.InDelta(t, 0.00001, rules.MinQty, 1e-12)
	assert.InDelta(t, 10.0, rules.MinNotional, 1e-9)

	// Second lookup must come from the cache.
	_, err = rc.GetSymbolRules("BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = rc.GetSymbolRules("UNKNOWNUSDT")
	assert.Error(t, err)
}

func TestGetSymbolRulesConcurrent(t *testing.T) {
	// The rules cache is hit by the engine loop and HTTP handlers at the
	// same time; run with -race.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"symbols": [
				{
					"symbol": "BTCUSDT",
					"status": "TRADING",
					"filters": [{"filterType": "LOT_SIZE", "minQty": "0.00001000", "stepSize": "0.00001000"}]
				},
				{
					"symbol": "ETHUSDT",
					"status": "TRADING",
					"filters": [{"filterType": "LOT_SIZE", "minQty": "0.00010000", "stepSize": "0.00010000"}]
				}
			]
		}`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	symbols := []string{"BTCUSDT", "ETHUSDT"}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				rules, err := rc.GetSymbolRules(symbol)
				assert.NoError(t, err)
				assert.Equal(t, symbol, rules.Symbol)
			}
		}(symbols[i%len(symbols)])
	}
	wg.Wait()
}
