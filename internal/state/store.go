package state

import (
	"errors"
	"fmt"
	"time"

	"crypto-advisor-go/internal/wallet"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletState is the single-row snapshot header. There is at most one row;
// every save replaces it wholesale.
type WalletState struct {
	ID             uint `gorm:"primaryKey"`
	InitialBalance float64
	CurrentBalance float64
	StartTime      time.Time
	LastSaved      time.Time
}

// PositionRecord is an open position at snapshot time.
type PositionRecord struct {
	ID       uint   `gorm:"primaryKey"`
	Symbol   string `gorm:"uniqueIndex"`
	Amount   float64
	AvgPrice float64
}

// TradeRecord is one settled trade. Trades are append-only; saves never
// rewrite existing rows.
type TradeRecord struct {
	ID           string `gorm:"primaryKey"`
	Timestamp    time.Time
	Symbol       string
	Side         string
	Amount       float64
	Price        float64
	ValueUSD     float64
	Fees         float64
	Slippage     float64
	BalanceAfter float64
}

// Store persists wallet snapshots to sqlite. The wallet is loaded wholesale
// at startup and overwritten after every trade; deleting the rows resets
// the system to a fresh wallet.
type Store struct {
	db *gorm.DB
}

// NewStore opens the snapshot database and migrates the schema.
func NewStore(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	if err := db.AutoMigrate(&WalletState{}, &PositionRecord{}, &TradeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate snapshot schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Save overwrites the persisted snapshot in a single transaction.
func (s *Store) Save(snap *wallet.Snapshot) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&WalletState{}).Error; err != nil {
			return fmt.Errorf("failed to clear wallet state: %w", err)
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&PositionRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear positions: %w", err)
		}

		header := WalletState{
			InitialBalance: snap.InitialBalance,
			CurrentBalance: snap.CurrentBalance,
			StartTime:      snap.StartTime,
			LastSaved:      time.Now(),
		}
		if err := tx.Create(&header).Error; err != nil {
			return fmt.Errorf("failed to save wallet state: %w", err)
		}

		for symbol, pos := range snap.Positions {
			record := PositionRecord{Symbol: symbol, Amount: pos.Amount, AvgPrice: pos.AvgPrice}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("failed to save position %s: %w", symbol, err)
			}
		}

		for _, trade := range snap.TradeHistory {
			record := TradeRecord{
				ID:           trade.ID,
				Timestamp:    trade.Timestamp,
				Symbol:       trade.Symbol,
				Side:         trade.Side,
				Amount:       trade.Amount,
				Price:        trade.Price,
				ValueUSD:     trade.ValueUSD,
				Fees:         trade.Fees,
				Slippage:     trade.Slippage,
				BalanceAfter: trade.BalanceAfter,
			}
			// Existing trades are immutable, only new ones are inserted.
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
				return fmt.Errorf("failed to save trade %s: %w", trade.ID, err)
			}
		}

		return nil
	})
}

// Load restores the persisted snapshot. The second return value reports
// whether a snapshot existed.
func (s *Store) Load() (*wallet.Snapshot, bool, error) {
	var header WalletState
	if err := s.db.First(&header).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to load wallet state: %w", err)
	}

	var positionRecords []PositionRecord
	if err := s.db.Find(&positionRecords).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load positions: %w", err)
	}

	var tradeRecords []TradeRecord
	// ULIDs sort lexicographically by creation time, breaking ties between
	// trades settled in the same timestamp tick.
	if err := s.db.Order("timestamp asc, id asc").Find(&tradeRecords).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load trades: %w", err)
	}

	snap := &wallet.Snapshot{
		InitialBalance: header.InitialBalance,
		CurrentBalance: header.CurrentBalance,
		StartTime:      header.StartTime,
		Positions:      make(map[string]wallet.Position, len(positionRecords)),
	}
	for _, record := range positionRecords {
		snap.Positions[record.Symbol] = wallet.Position{Amount: record.Amount, AvgPrice: record.AvgPrice}
	}
	for _, record := range tradeRecords {
		snap.TradeHistory = append(snap.TradeHistory, wallet.Trade{
			ID:           record.ID,
			Timestamp:    record.Timestamp,
			Symbol:       record.Symbol,
			Side:         record.Side,
			Amount:       record.Amount,
			Price:        record.Price,
			ValueUSD:     record.ValueUSD,
			Fees:         record.Fees,
			Slippage:     record.Slippage,
			BalanceAfter: record.BalanceAfter,
		})
	}

	return snap, true, nil
}

// Reset deletes the persisted snapshot entirely.
func (s *Store) Reset() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		session := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := session.Delete(&WalletState{}).Error; err != nil {
			return fmt.Errorf("failed to delete wallet state: %w", err)
		}
		if err := session.Delete(&PositionRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete positions: %w", err)
		}
		if err := session.Delete(&TradeRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete trades: %w", err)
		}
		return nil
	})
}
