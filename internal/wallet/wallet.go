package wallet

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

var (
	// ErrInsufficientBalance is returned when a buy exceeds the available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNoPosition is returned when a sell targets a symbol that is not held.
	ErrNoPosition = errors.New("no open position for symbol")
)

// Position is an open holding of a symbol. AvgPrice is the volume-weighted
// average cost basis across all buys since the position was last fully closed.
type Position struct {
	Amount   float64 `json:"amount"`
	AvgPrice float64 `json:"avg_price"`
}

// Trade is an immutable record of a settled trade.
type Trade struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Symbol       string    `json:"symbol"`
	Side         string    `json:"side"`
	Amount       float64   `json:"amount"`
	Price        float64   `json:"price"`
	ValueUSD     float64   `json:"value_usd"`
	Fees         float64   `json:"fees"`
	Slippage     float64   `json:"slippage"`
	BalanceAfter float64   `json:"balance_after"`
}

// Wallet is the virtual trading ledger. All trades are simulated against
// real market prices; the wallet itself never talks to an exchange.
//
// A symbol appears in Positions iff its amount is greater than zero, and
// TradeHistory is append-only in chronological order.
type Wallet struct {
	mu sync.Mutex

	initialBalance float64
	currentBalance float64
	positions      map[string]Position
	tradeHistory   []Trade
	startTime      time.Time
}

// Snapshot is a full copy of the wallet state, used for persistence.
type Snapshot struct {
	InitialBalance float64             `json:"initial_balance_usd"`
	CurrentBalance float64             `json:"current_balance_usd"`
	Positions      map[string]Position `json:"positions"`
	TradeHistory   []Trade             `json:"trade_history"`
	StartTime      time.Time           `json:"start_time"`
}

// Statistics summarizes the performance of the closed trades.
type Statistics struct {
	TotalTrades     int     `json:"total_trades"`
	WinningTrades   int     `json:"winning_trades"`
	WinRate         float64 `json:"win_rate"`
	DaysTrading     float64 `json:"days_trading"`
	AvgProfitPerDay float64 `json:"avg_profit_per_day"`
}

// Summary is a point-in-time view of the portfolio.
type Summary struct {
	Mode           string              `json:"mode"`
	InitialBalance float64             `json:"initial_balance_usd"`
	CurrentBalance float64             `json:"current_balance_usd"`
	TotalProfit    float64             `json:"total_profit_usd"`
	Positions      map[string]Position `json:"positions"`
	Statistics     Statistics          `json:"trade_statistics"`
}

// New creates a fresh wallet funded with the given USD balance.
func New(initialBalance float64) *Wallet {
	return &Wallet{
		initialBalance: initialBalance,
		currentBalance: initialBalance,
		positions:      make(map[string]Position),
		startTime:      time.Now(),
	}
}

// Restore rebuilds a wallet from a persisted snapshot.
func Restore(snap *Snapshot) *Wallet {
	positions := make(map[string]Position, len(snap.Positions))
	for symbol, pos := range snap.Positions {
		positions[symbol] = pos
	}
	history := make([]Trade, len(snap.TradeHistory))
	copy(history, snap.TradeHistory)

	return &Wallet{
		initialBalance: snap.InitialBalance,
		currentBalance: snap.CurrentBalance,
		positions:      positions,
		tradeHistory:   history,
		startTime:      snap.StartTime,
	}
}

// CanExecute checks whether a trade could settle against the current state.
// For buys the fee-inclusive USD value must not exceed the balance. For
// sells only the presence of a position is checked here; the requested
// amount is the caller's responsibility.
func (w *Wallet) CanExecute(symbol, side string, amountUSD float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch strings.ToUpper(side) {
	case SideBuy:
		if amountUSD > w.currentBalance {
			return fmt.Errorf("%w: need $%.2f, have $%.2f", ErrInsufficientBalance, amountUSD, w.currentBalance)
		}
		return nil
	case SideSell:
		if _, ok := w.positions[symbol]; !ok {
			return fmt.Errorf("%w: %s", ErrNoPosition, symbol)
		}
		return nil
	default:
		return fmt.Errorf("unknown trade side %q", side)
	}
}

// Settle applies a filled trade to the ledger unconditionally; callers must
// have passed CanExecute first. Buys merge into the position at the
// volume-weighted average price. Sells credit the balance and shrink the
// position; selling the full held amount (or more) removes the position
// entirely. Fees are debited from the proceeds in both directions.
func (w *Wallet) Settle(trade Trade) Trade {
	w.mu.Lock()
	defer w.mu.Unlock()

	trade.Side = strings.ToUpper(trade.Side)
	trade.ValueUSD = trade.Amount * trade.Price

	switch trade.Side {
	case SideBuy:
		w.currentBalance -= trade.ValueUSD + trade.Fees
		if pos, ok := w.positions[trade.Symbol]; ok {
			totalCost := pos.Amount*pos.AvgPrice + trade.ValueUSD
			newAmount := pos.Amount + trade.Amount
			w.positions[trade.Symbol] = Position{
				Amount:   newAmount,
				AvgPrice: totalCost / newAmount,
			}
		} else {
			w.positions[trade.Symbol] = Position{
				Amount:   trade.Amount,
				AvgPrice: trade.Price,
			}
		}

	case SideSell:
		w.currentBalance += trade.ValueUSD - trade.Fees
		if pos, ok := w.positions[trade.Symbol]; ok {
			if pos.Amount <= trade.Amount {
				delete(w.positions, trade.Symbol)
			} else {
				pos.Amount -= trade.Amount
				w.positions[trade.Symbol] = pos
			}
		}
	}

	trade.BalanceAfter = w.currentBalance
	w.tradeHistory = append(w.tradeHistory, trade)
	return trade
}

// Balance returns the free USD balance.
func (w *Wallet) Balance() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentBalance
}

// Positions returns a copy of the open positions.
func (w *Wallet) Positions() map[string]Position {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.copyPositions()
}

// Position returns the open position for a symbol, if any.
func (w *Wallet) Position(symbol string) (Position, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pos, ok := w.positions[symbol]
	return pos, ok
}

// PositionValue returns the current market value of a position.
func (w *Wallet) PositionValue(symbol string, currentPrice float64) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if pos, ok := w.positions[symbol]; ok {
		return pos.Amount * currentPrice
	}
	return 0
}

// TotalValue returns the portfolio value at the supplied prices. Symbols
// missing from the price map are treated as unpriceable and contribute
// nothing, rather than erroring.
func (w *Wallet) TotalValue(prices map[string]float64) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	total := w.currentBalance
	for symbol, pos := range w.positions {
		if price, ok := prices[symbol]; ok {
			total += pos.Amount * price
		}
	}
	return total
}

// History returns a copy of the trade history in chronological order.
func (w *Wallet) History() []Trade {
	w.mu.Lock()
	defer w.mu.Unlock()
	history := make([]Trade, len(w.tradeHistory))
	copy(history, w.tradeHistory)
	return history
}

// Summary computes the portfolio summary and trade statistics.
//
// Realized profit matches each sell against the first chronologically
// earlier buy of the same symbol. This is not strict FIFO across partial
// fills; it reproduces the accounting of the system this wallet simulates.
func (w *Wallet) Summary() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()

	var totalProfit float64
	var winningTrades int

	for _, trade := range w.tradeHistory {
		if trade.Side != SideSell {
			continue
		}
		sellValue := trade.Amount * trade.Price
		for _, prev := range w.tradeHistory {
			if prev.Symbol == trade.Symbol && prev.Side == SideBuy && prev.Timestamp.Before(trade.Timestamp) {
				profit := sellValue - prev.Amount*prev.Price
				totalProfit += profit
				if profit > 0 {
					winningTrades++
				}
				break
			}
		}
	}

	days := time.Since(w.startTime).Hours() / 24

	stats := Statistics{
		TotalTrades:   len(w.tradeHistory),
		WinningTrades: winningTrades,
		DaysTrading:   days,
	}
	if len(w.tradeHistory) > 0 {
		stats.WinRate = float64(winningTrades) / float64(len(w.tradeHistory))
	}
	if days > 0 {
		stats.AvgProfitPerDay = totalProfit / days
	}

	return Summary{
		Mode:           "Virtual Trading with Real Market Data",
		InitialBalance: w.initialBalance,
		CurrentBalance: w.currentBalance,
		TotalProfit:    totalProfit,
		Positions:      w.copyPositions(),
		Statistics:     stats,
	}
}

// Snapshot returns a full copy of the wallet state for persistence.
func (w *Wallet) Snapshot() *Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	history := make([]Trade, len(w.tradeHistory))
	copy(history, w.tradeHistory)

	return &Snapshot{
		InitialBalance: w.initialBalance,
		CurrentBalance: w.currentBalance,
		Positions:      w.copyPositions(),
		TradeHistory:   history,
		StartTime:      w.startTime,
	}
}

// copyPositions must be called with the mutex held.
func (w *Wallet) copyPositions() map[string]Position {
	positions := make(map[string]Position, len(w.positions))
	for symbol, pos := range w.positions {
		positions[symbol] = pos
	}
	return positions
}
