package advisor

import (
	"strconv"
	"strings"
)

// TradeSignal is a structured trade intent parsed out of free-form analyst
// text. Signals are ephemeral; they are acted on within the cycle that
// produced them and never persisted.
type TradeSignal struct {
	Symbol     string
	Action     string // "buy", "sell" or "hold"
	EntryPrice float64
}

// Signal extraction is a best-effort line scan over the trader role's
// multi-pair output. Parsing only starts after the opportunities marker,
// and a signal is emitted when its three labels have been seen in order,
// with the entry price as the trigger. Malformed prices drop the pending
// signal without aborting the rest of the parse.
const opportunitiesMarker = "Top Trading Opportunities"

type parseState int

const (
	seekingMarker parseState = iota
	seekingSymbol
	seekingAction
	seekingEntryPrice
)

// ExtractSignals parses trade signals from the trader analysis text.
// Returns nil when the marker is absent or no complete signal is found.
func ExtractSignals(analysis string) []TradeSignal {
	if !strings.Contains(analysis, opportunitiesMarker) {
		return nil
	}

	var signals []TradeSignal
	state := seekingMarker
	var pending TradeSignal

	for _, line := range strings.Split(analysis, "\n") {
		if state == seekingMarker {
			if strings.Contains(line, opportunitiesMarker) {
				state = seekingSymbol
			}
			continue
		}

		switch {
		case strings.Contains(line, "Symbol:"):
			pending = TradeSignal{Symbol: labelValue(line, "Symbol:")}
			state = seekingAction

		case strings.Contains(line, "Action:"):
			if state != seekingAction {
				continue
			}
			pending.Action = strings.ToLower(labelValue(line, "Action:"))
			state = seekingEntryPrice

		case strings.Contains(line, "Entry Price:"):
			if state != seekingEntryPrice {
				continue
			}
			raw := strings.ReplaceAll(labelValue(line, "Entry Price:"), "$", "")
			raw = strings.ReplaceAll(raw, ",", "")
			price, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				// Malformed price: drop this signal, keep scanning.
				state = seekingSymbol
				continue
			}
			pending.EntryPrice = price
			signals = append(signals, pending)
			state = seekingSymbol
		}
	}

	return signals
}

func labelValue(line, label string) string {
	_, after, _ := strings.Cut(line, label)
	return strings.TrimSpace(after)
}
