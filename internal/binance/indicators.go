package binance

// Indicator math over closed candles. Values are computed on the full kline
// window and reported for the most recent bar, matching what the analyst
// prompts expect. Callers should request enough history for the longest
// lookback (SMA 50 plus the 24 bar change window).

const (
	rsiPeriod      = 14
	smaShortPeriod = 20
	smaLongPeriod  = 50
	macdFast       = 12
	macdSlow       = 26
	macdSignal     = 9
	changeWindow   = 24 // bars used for the 24h change on 1h candles
)

func buildSnapshot(symbol string, klines []Kline) *MarketSnapshot {
	closes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
	}

	last := klines[len(klines)-1]
	snapshot := &MarketSnapshot{
		Symbol: symbol,
		Open:   last.Open,
		High:   last.High,
		Low:    last.Low,
		Close:  last.Close,
		Volume: last.Volume,
		RSI:    rsi(closes, rsiPeriod),
		SMA20:  sma(closes, smaShortPeriod),
		SMA50:  sma(closes, smaLongPeriod),
	}

	macdLine, signalLine, hist := macd(closes, macdFast, macdSlow, macdSignal)
	snapshot.MACD = macdLine
	snapshot.MACDSignal = signalLine
	snapshot.MACDHist = hist

	if len(closes) > changeWindow {
		prev := closes[len(closes)-1-changeWindow]
		if prev != 0 {
			snapshot.PriceChange24h = (last.Close - prev) / prev * 100
		}
	}

	return snapshot
}

// sma returns the simple moving average of the last period values,
// or 0 when there is not enough history.
func sma(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// emaSeries returns the exponential moving average series. The first
// period-1 entries are zero; the series is seeded with the SMA of the
// first period values.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	ema := seed / float64(period)
	out[period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out
}

// rsi computes the Relative Strength Index with Wilder smoothing.
// Returns 50 (neutral) when there is not enough history.
func rsi(values []float64, period int) float64 {
	if len(values) < period+1 {
		return 50
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// macd computes the MACD line, signal line and histogram for the last bar.
func macd(values []float64, fast, slow, signal int) (line, signalLine, hist float64) {
	if len(values) < slow+signal {
		return 0, 0, 0
	}

	fastEMA := emaSeries(values, fast)
	slowEMA := emaSeries(values, slow)

	// The MACD line is only defined once the slow EMA is seeded.
	macdLine := make([]float64, 0, len(values)-slow+1)
	for i := slow - 1; i < len(values); i++ {
		macdLine = append(macdLine, fastEMA[i]-slowEMA[i])
	}

	signalSeries := emaSeries(macdLine, signal)

	line = macdLine[len(macdLine)-1]
	signalLine = signalSeries[len(signalSeries)-1]
	hist = line - signalLine
	return line, signalLine, hist
}
