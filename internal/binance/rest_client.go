package binance

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"crypto-advisor-go/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	baseURL        = "https://api.binance.com/api/v3"
	testnetBaseURL = "https://testnet.binance.vision/api/v3"
)

// MarketDataClient defines the read-only market data surface the advisor
// consumes. Only public endpoints are used; no keys and no order placement.
type MarketDataClient interface {
	Ping() error
	GetTickerPrice(symbol string) (float64, error)
	GetAllTickerPrices() (map[string]float64, error)
	GetMarketSnapshot(symbol, interval string, limit int) (*MarketSnapshot, error)
	GetSymbolRules(symbol string) (*SymbolRules, error)
}

// RestClient is a client for the Binance public REST API.
// It implements the MarketDataClient interface.
type RestClient struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter

	rulesMu sync.Mutex
	rules   map[string]*SymbolRules // exchangeInfo cache, filled lazily
}

// ensure RestClient implements the interface
var _ MarketDataClient = (*RestClient)(nil)

// NewRestClient creates a new Binance market data client.
func NewRestClient(cfg *config.Binance, logger *zap.Logger) *RestClient {
	var url string
	if cfg.Testnet {
		url = testnetBaseURL
		logger.Warn("Using Binance Testnet")
	} else {
		url = baseURL
		logger.Info("Using Binance Production API")
	}

	client := resty.New().SetBaseURL(url)

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:  client,
		logger:  logger,
		limiter: limiter,
		rules:   make(map[string]*SymbolRules),
	}
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == 418 { // HTTP 429 or 418
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// Ping checks connectivity by fetching the server time. A failure here at
// startup means the advisor has no market data and must refuse to run.
func (c *RestClient) Ping() error {
	type serverTimeResponse struct {
		ServerTime int64 `json:"serverTime"`
	}

	req := c.client.R().SetResult(&serverTimeResponse{})
	ctx := context.Background()

	if _, err := c.doRequest(ctx, "GET", "/time", req); err != nil {
		c.logger.Error("Failed to reach Binance", zap.Error(err))
		return fmt.Errorf("failed to reach Binance: %w", err)
	}
	return nil
}

// tickerPrice represents the response for a single ticker price.
type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetTickerPrice fetches the latest trade price for one symbol.
func (c *RestClient) GetTickerPrice(symbol string) (float64, error) {
	var ticker tickerPrice

	req := c.client.R().
		SetResult(&ticker).
		SetQueryParam("symbol", symbol)
	ctx := context.Background()

	if _, err := c.doRequest(ctx, "GET", "/ticker/price", req); err != nil {
		return 0, fmt.Errorf("failed to get ticker price for %s: %w", symbol, err)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ticker price %q for %s: %w", ticker.Price, symbol, err)
	}
	return price, nil
}

// GetAllTickerPrices fetches the latest price for all symbols.
func (c *RestClient) GetAllTickerPrices() (map[string]float64, error) {
	var prices []*tickerPrice

	req := c.client.R().
		SetResult(&prices).
		SetHeader("Content-Type", "application/json")
	ctx := context.Background()

	if _, err := c.doRequest(ctx, "GET", "/ticker/price", req); err != nil {
		return nil, fmt.Errorf("failed to get all ticker prices: %w", err)
	}

	priceMap := make(map[string]float64, len(prices))
	for _, p := range prices {
		price, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			c.logger.Warn("Skipping unparseable ticker price",
				zap.String("symbol", p.Symbol), zap.String("price", p.Price))
			continue
		}
		priceMap[p.Symbol] = price
	}

	return priceMap, nil
}

// Kline is a single closed candle.
type Kline struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// GetKlines fetches closed candles for a symbol, oldest first.
func (c *RestClient) GetKlines(symbol, interval string, limit int) ([]Kline, error) {
	// Binance returns klines as heterogeneous JSON arrays:
	// [openTime, "open", "high", "low", "close", "volume", closeTime, ...]
	var raw [][]any

	req := c.client.R().
		SetResult(&raw).
		SetQueryParams(map[string]string{
			"symbol":   symbol,
			"interval": interval,
			"limit":    strconv.Itoa(limit),
		})
	ctx := context.Background()

	if _, err := c.doRequest(ctx, "GET", "/klines", req); err != nil {
		return nil, fmt.Errorf("failed to get klines for %s: %w", symbol, err)
	}

	klines := make([]Kline, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		kline, err := parseKlineRow(row)
		if err != nil {
			c.logger.Warn("Skipping malformed kline row", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		klines = append(klines, kline)
	}

	return klines, nil
}

func parseKlineRow(row []any) (Kline, error) {
	openTime, ok := row[0].(float64)
	if !ok {
		return Kline{}, fmt.Errorf("unexpected open time type %T", row[0])
	}

	fields := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return Kline{}, fmt.Errorf("unexpected field type %T at index %d", row[i], i)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Kline{}, fmt.Errorf("failed to parse kline field %d: %w", i, err)
		}
		fields[i-1] = v
	}

	return Kline{
		OpenTime: time.UnixMilli(int64(openTime)),
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
	}, nil
}

// MarketSnapshot is the latest closed bar together with the technical
// indicators the analyst roles are prompted with.
type MarketSnapshot struct {
	Symbol         string  `json:"symbol"`
	Open           float64 `json:"open"`
	High           float64 `json:"high"`
	Low            float64 `json:"low"`
	Close          float64 `json:"close"`
	Volume         float64 `json:"volume"`
	RSI            float64 `json:"RSI"`
	SMA20          float64 `json:"SMA_20"`
	SMA50          float64 `json:"SMA_50"`
	MACD           float64 `json:"MACD"`
	MACDSignal     float64 `json:"MACD_SIGNAL"`
	MACDHist       float64 `json:"MACD_HIST"`
	PriceChange24h float64 `json:"price_change_24h"`
}

// GetMarketSnapshot fetches candles and computes the indicator set for the
// most recent bar.
func (c *RestClient) GetMarketSnapshot(symbol, interval string, limit int) (*MarketSnapshot, error) {
	klines, err := c.GetKlines(symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("no kline data returned for %s", symbol)
	}

	snapshot := buildSnapshot(symbol, klines)
	return snapshot, nil
}

// exchangeInfoResponse represents the response from the /exchangeInfo endpoint.
type exchangeInfoResponse struct {
	Symbols []symbolInfo `json:"symbols"`
}

type symbolInfo struct {
	Symbol  string         `json:"symbol"`
	Status  string         `json:"status"`
	Filters []symbolFilter `json:"filters"`
}

// symbolFilter carries the subset of exchange filters the executor needs:
// LOT_SIZE for the quantity step and NOTIONAL for the minimum order value.
type symbolFilter struct {
	FilterType  string `json:"filterType"`
	MinQty      string `json:"minQty,omitempty"`
	StepSize    string `json:"stepSize,omitempty"`
	MinNotional string `json:"minNotional,omitempty"`
}

// SymbolRules captures the trading constraints of one instrument.
type SymbolRules struct {
	Symbol      string
	StepSize    string  // quantity increment, e.g. "0.00001000"
	MinQty      float64 // smallest permitted quantity
	MinNotional float64 // smallest permitted order value in quote currency
}

// GetSymbolRules returns the instrument rules for a symbol, fetching and
// caching the full exchange info on first use. The cache is shared between
// the engine loop and the HTTP handlers, so lookups and fills take the mutex.
func (c *RestClient) GetSymbolRules(symbol string) (*SymbolRules, error) {
	c.rulesMu.Lock()
	if rules, ok := c.rules[symbol]; ok {
		c.rulesMu.Unlock()
		return rules, nil
	}
	c.rulesMu.Unlock()

	var info exchangeInfoResponse
	req := c.client.R().
		SetResult(&info).
		SetHeader("Content-Type", "application/json")
	ctx := context.Background()

	if _, err := c.doRequest(ctx, "GET", "/exchangeInfo", req); err != nil {
		return nil, fmt.Errorf("failed to get exchange info: %w", err)
	}

	c.rulesMu.Lock()
	defer c.rulesMu.Unlock()

	for _, s := range info.Symbols {
		rules := &SymbolRules{Symbol: s.Symbol, MinNotional: 5.0}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				rules.StepSize = f.StepSize
				rules.MinQty, _ = strconv.ParseFloat(f.MinQty, 64)
			case "NOTIONAL", "MIN_NOTIONAL":
				if v, err := strconv.ParseFloat(f.MinNotional, 64); err == nil && v > 0 {
					rules.MinNotional = v
				}
			}
		}
		c.rules[s.Symbol] = rules
	}

	rules, ok := c.rules[symbol]
	if !ok {
		return nil, fmt.Errorf("symbol %s not found in exchange info", symbol)
	}
	return rules, nil
}
