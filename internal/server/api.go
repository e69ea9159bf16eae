package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"crypto-advisor-go/internal/advisor"
	"crypto-advisor-go/internal/binance"
	"crypto-advisor-go/internal/trader"
	"crypto-advisor-go/internal/wallet"

	"go.uber.org/zap"
)

// APIServer exposes the trading system over HTTP for any front end.
type APIServer struct {
	server       *http.Server
	logger       *zap.Logger
	market       binance.MarketDataClient
	wallet       *wallet.Wallet
	executor     *trader.Executor
	orchestrator *advisor.Orchestrator

	klineInterval string
	klineLimit    int
}

// NewAPIServer creates the HTTP API on the given port.
func NewAPIServer(port int, logger *zap.Logger, market binance.MarketDataClient, w *wallet.Wallet,
	executor *trader.Executor, orchestrator *advisor.Orchestrator, klineInterval string, klineLimit int) *APIServer {
	s := &APIServer{
		logger:        logger.Named("api-server"),
		market:        market,
		wallet:        w,
		executor:      executor,
		orchestrator:  orchestrator,
		klineInterval: klineInterval,
		klineLimit:    klineLimit,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /wallet", s.walletHandler)
	mux.HandleFunc("GET /market/overview", s.marketOverviewHandler)
	mux.HandleFunc("GET /market/data/{symbol}", s.marketDataHandler)
	mux.HandleFunc("GET /trades/history", s.tradeHistoryHandler)
	mux.HandleFunc("POST /trade", s.tradeHandler)
	mux.HandleFunc("POST /analysis", s.analysisHandler)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	return s
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// walletSummaryResponse augments the ledger summary with the live total value.
type walletSummaryResponse struct {
	wallet.Summary
	TotalValue float64 `json:"total_value"`
}

func (s *APIServer) walletHandler(w http.ResponseWriter, r *http.Request) {
	// Price every open position; unreachable symbols price at zero rather
	// than failing the whole summary.
	prices := make(map[string]float64)
	for symbol := range s.wallet.Positions() {
		price, err := s.market.GetTickerPrice(symbol)
		if err != nil {
			s.logger.Warn("Could not price position for summary", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		prices[symbol] = price
	}

	s.writeJSON(w, http.StatusOK, walletSummaryResponse{
		Summary:    s.wallet.Summary(),
		TotalValue: s.wallet.TotalValue(prices),
	})
}

func (s *APIServer) marketOverviewHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := s.orchestrator.MarketOverview()
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *APIServer) marketDataHandler(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	snap, err := s.market.GetMarketSnapshot(symbol, s.klineInterval, s.klineLimit)
	if err != nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no data for %s: %w", symbol, err))
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *APIServer) tradeHistoryHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.wallet.History())
}

type tradeRequest struct {
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	AmountUSD float64 `json:"amount_usd"`
}

func (s *APIServer) tradeHandler(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Symbol == "" || req.Side == "" || req.AmountUSD <= 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("symbol, side and a positive amount_usd are required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	trade, err := s.executor.Execute(ctx, req.Symbol, req.Side, req.AmountUSD)
	if err != nil {
		// Validation failures are the client's problem, not the server's.
		status := http.StatusUnprocessableEntity
		if errors.Is(err, wallet.ErrInsufficientBalance) ||
			errors.Is(err, wallet.ErrNoPosition) {
			status = http.StatusConflict
		}
		s.writeError(w, status, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"status": "success", "order": trade})
}

func (s *APIServer) analysisHandler(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	analyses, err := s.orchestrator.AnalyzeMarket(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, advisor.ErrCycleInProgress) {
			s.writeError(w, http.StatusConflict, err)
			return
		}
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"timestamp": time.Now(),
		"analyses":  analyses,
	})
}
