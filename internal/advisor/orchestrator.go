package advisor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"crypto-advisor-go/internal/agent"
	"crypto-advisor-go/internal/binance"

	"go.uber.org/zap"
)

// ErrCycleInProgress is returned when an analysis cycle is triggered while
// another one is still running. Cycles are serialized deliberately; a
// manual trigger racing the scheduled loop is rejected instead of mutating
// the wallet concurrently.
var ErrCycleInProgress = errors.New("analysis cycle already in progress")

// ErrNoMarketData is returned when no market data could be fetched at all.
var ErrNoMarketData = errors.New("failed to fetch market data")

// Analyses maps role name to that role's raw text output for one cycle.
type Analyses map[string]string

// Orchestrator sequences one analysis cycle: collect every analyst role's
// view of the same market data, synthesize a consensus, ask the trader role
// for a final plan, and (for multi-pair cycles) hand the trader's output to
// the autonomous trade selector.
type Orchestrator struct {
	logger    *zap.Logger
	market    binance.MarketDataClient
	generator agent.Generator

	roles     []agent.Role
	consensus agent.Role
	trader    agent.Role

	autoTrader *AutoTrader

	watchlist     []string
	klineInterval string
	klineLimit    int

	cycleMu sync.Mutex // single-flight guard for analysis cycles
}

// NewOrchestrator wires the analysis pipeline. autoTrader may be nil, in
// which case multi-pair cycles only analyze and never trade.
func NewOrchestrator(logger *zap.Logger, market binance.MarketDataClient, generator agent.Generator,
	autoTrader *AutoTrader, watchlist []string, klineInterval string, klineLimit int) *Orchestrator {
	return &Orchestrator{
		logger:        logger.Named("orchestrator"),
		market:        market,
		generator:     generator,
		roles:         agent.DefaultRoles(),
		consensus:     agent.ConsensusRole(),
		trader:        agent.TraderRole(),
		autoTrader:    autoTrader,
		watchlist:     watchlist,
		klineInterval: klineInterval,
		klineLimit:    klineLimit,
	}
}

// AnalyzeMarket runs one full cycle. With a symbol it analyzes that single
// pair; with an empty symbol it analyzes the whole watchlist and lets the
// autonomous selector act on the trader role's recommendations.
//
// Role failures are isolated: a failed role contributes an inline error
// string and its peers still run. Only a total market data outage fails
// the cycle.
func (o *Orchestrator) AnalyzeMarket(ctx context.Context, symbol string) (Analyses, error) {
	if !o.cycleMu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer o.cycleMu.Unlock()

	marketPrompt, err := o.buildMarketPrompt(symbol)
	if err != nil {
		return nil, err
	}
	multiPair := symbol == ""

	analyses := make(Analyses, len(o.roles)+2)

	// Collect every analyst role's view of the same payload.
	for _, role := range o.roles {
		text, err := o.generator.Generate(ctx, role.SystemPrompt, marketPrompt)
		if err != nil {
			o.logger.Warn("Analyst role failed", zap.String("role", role.Name), zap.Error(err))
			analyses[role.Name] = fmt.Sprintf("Error: %s", err)
			continue
		}
		analyses[role.Name] = text
	}

	// Synthesize the consensus over the labeled outputs.
	roleOrder := make([]string, len(o.roles))
	for i, role := range o.roles {
		roleOrder[i] = role.Name
	}
	consensusText, err := o.generator.Generate(ctx, o.consensus.SystemPrompt,
		agent.FormatConsensusPrompt(roleOrder, analyses))
	if err != nil {
		o.logger.Warn("Consensus synthesis failed", zap.Error(err))
		analyses[agent.RoleConsensus] = fmt.Sprintf("Error generating consensus: %s", err)
	} else {
		analyses[agent.RoleConsensus] = consensusText
	}

	// Feed the consensus back to the trader for a final concrete plan.
	planText, err := o.generator.Generate(ctx, o.trader.SystemPrompt,
		agent.FormatFinalPlanPrompt(analyses[agent.RoleConsensus], marketPrompt))
	if err != nil {
		o.logger.Warn("Final plan generation failed", zap.Error(err))
		analyses[agent.RoleFinalPlan] = fmt.Sprintf("Error generating final plan: %s", err)
	} else {
		analyses[agent.RoleFinalPlan] = planText
	}

	// The trader role's primary output, not the final-plan variant, is the
	// parse target for automated execution.
	if multiPair && o.autoTrader != nil {
		signals := ExtractSignals(analyses[agent.RoleTrader])
		if len(signals) > 0 {
			o.logger.Info("Extracted trade signals", zap.Int("count", len(signals)))
			o.autoTrader.ExecuteSignals(ctx, signals)
		}
	}

	return analyses, nil
}

func (o *Orchestrator) buildMarketPrompt(symbol string) (string, error) {
	if symbol != "" {
		snap, err := o.market.GetMarketSnapshot(symbol, o.klineInterval, o.klineLimit)
		if err != nil {
			return "", fmt.Errorf("%w for %s: %v", ErrNoMarketData, symbol, err)
		}
		return agent.FormatMarketPrompt(snap), nil
	}

	snapshots := make(map[string]*binance.MarketSnapshot, len(o.watchlist))
	for _, sym := range o.watchlist {
		snap, err := o.market.GetMarketSnapshot(sym, o.klineInterval, o.klineLimit)
		if err != nil {
			// Degrade to partial data; one dead symbol must not kill the cycle.
			o.logger.Warn("Skipping symbol with no market data", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		snapshots[sym] = snap
	}
	if len(snapshots) == 0 {
		return "", ErrNoMarketData
	}
	return agent.FormatMultiMarketPrompt(snapshots), nil
}

// MarketOverviewRow is one watchlist entry in the market overview.
type MarketOverviewRow struct {
	Symbol         string  `json:"symbol"`
	Price          float64 `json:"price"`
	Volume24h      float64 `json:"volume_24h"`
	PriceChange24h float64 `json:"price_change_24h"`
	RSI            float64 `json:"rsi"`
}

// MarketOverview returns a quick per-symbol view of the watchlist.
func (o *Orchestrator) MarketOverview() ([]MarketOverviewRow, error) {
	rows := make([]MarketOverviewRow, 0, len(o.watchlist))
	for _, sym := range o.watchlist {
		snap, err := o.market.GetMarketSnapshot(sym, o.klineInterval, o.klineLimit)
		if err != nil {
			o.logger.Warn("Skipping symbol in overview", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		rows = append(rows, MarketOverviewRow{
			Symbol:         sym,
			Price:          snap.Close,
			Volume24h:      snap.Volume,
			PriceChange24h: snap.PriceChange24h,
			RSI:            snap.RSI,
		})
	}
	if len(rows) == 0 {
		return nil, ErrNoMarketData
	}
	return rows, nil
}
