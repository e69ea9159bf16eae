package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"crypto-advisor-go/internal/binance"
)

type pricePayload struct {
	PriceData  map[string]float64 `json:"price_data"`
	Indicators map[string]float64 `json:"indicators"`
}

func snapshotPayload(snap *binance.MarketSnapshot) pricePayload {
	return pricePayload{
		PriceData: map[string]float64{
			"close":  snap.Close,
			"open":   snap.Open,
			"high":   snap.High,
			"low":    snap.Low,
			"volume": snap.Volume,
		},
		Indicators: map[string]float64{
			"RSI":              snap.RSI,
			"SMA_20":           snap.SMA20,
			"SMA_50":           snap.SMA50,
			"MACD":             snap.MACD,
			"MACD_SIGNAL":      snap.MACDSignal,
			"MACD_HIST":        snap.MACDHist,
			"price_change_24h": snap.PriceChange24h,
		},
	}
}

// FormatMarketPrompt renders the user prompt for a single-pair analysis.
func FormatMarketPrompt(snap *binance.MarketSnapshot) string {
	data, _ := json.MarshalIndent(snapshotPayload(snap), "", "  ")
	return marketPrompt(string(data))
}

// FormatMultiMarketPrompt renders the user prompt for a multi-pair analysis.
// Symbols are emitted in sorted order so prompts are stable across cycles.
func FormatMultiMarketPrompt(snapshots map[string]*binance.MarketSnapshot) string {
	payload := make(map[string]pricePayload, len(snapshots))
	for symbol, snap := range snapshots {
		payload[symbol] = snapshotPayload(snap)
	}
	data, _ := json.MarshalIndent(payload, "", "  ")
	return marketPrompt(string(data))
}

func marketPrompt(data string) string {
	return fmt.Sprintf("Current Market Data:\n%s\n\nProvide your analysis based on this market data.", data)
}

// FormatConsensusPrompt renders the labeled analyst outputs for the
// consensus role. Roles are emitted in the given order.
func FormatConsensusPrompt(order []string, analyses map[string]string) string {
	var b strings.Builder
	b.WriteString("Independent analyst outputs:\n\n")

	names := order
	if len(names) == 0 {
		names = make([]string, 0, len(analyses))
		for name := range analyses {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	for _, name := range names {
		text, ok := analyses[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "=== %s ===\n%s\n\n", name, text)
	}

	b.WriteString("Synthesize these into one consensus recommendation.")
	return b.String()
}

// FormatFinalPlanPrompt asks the trader role for a concrete plan given the
// consensus summary and the original market data prompt.
func FormatFinalPlanPrompt(consensus, marketPrompt string) string {
	return fmt.Sprintf("Consensus summary from the full analyst panel:\n%s\n\n%s\n\nGiven the consensus above, produce your final concrete trading plan in your standard format.",
		consensus, marketPrompt)
}
