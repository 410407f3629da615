package indicator

import (
	"math"

	"github.com/raykavin/calibrator/pkg/core"
)

// Indicator windows
const (
	RSIPeriod        = 14
	MACDFast         = 12
	MACDSlow         = 26
	MACDSignalPeriod = 9
	BBPeriod         = 20
	BBDeviation      = 2.0
	ATRPeriod        = 14
	VolumePeriod     = 20

	minVolumeRatio = 0.1
)

// Augment computes the indicator columns for a chronologically ordered
// candle sequence. Values inside a warm-up window are NaN. The input is not
// modified.
func Augment(candles []core.Candle) []core.Bar {
	n := len(candles)
	bars := make([]core.Bar, n)
	if n == 0 {
		return bars
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i], highs[i], lows[i], volumes[i] = c.Close, c.High, c.Low, c.Volume
	}

	rsi := RSI(closes, RSIPeriod)
	macd, signal := MACD(closes, MACDFast, MACDSlow, MACDSignalPeriod)
	upper, middle, lower := Bollinger(closes, BBPeriod, BBDeviation)
	ema9 := EWM(closes, 9)
	ema20 := EWM(closes, 20)
	ema50 := EWM(closes, 50)
	atr := ATR(highs, lows, closes, ATRPeriod)
	atrRatio := Div(atr, closes)
	volumeRatio := VolumeRatio(volumes, VolumePeriod)

	for i, c := range candles {
		bars[i] = core.Bar{
			Candle:      c,
			RSI:         rsi[i],
			MACD:        macd[i],
			MACDSignal:  signal[i],
			BBUpper:     upper[i],
			BBMiddle:    middle[i],
			BBLower:     lower[i],
			EMA9:        ema9[i],
			EMA20:       ema20[i],
			EMA50:       ema50[i],
			ATR:         atr[i],
			ATRRatio:    atrRatio[i],
			VolumeRatio: volumeRatio[i],
		}
	}

	return bars
}

// RSI computes the relative strength index from simple rolling means of
// gains and losses. A zero average loss is treated as 1.
func RSI(closes []float64, period int) []float64 {
	n := len(closes)
	if n < period {
		return nanSeries(n)
	}

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	avgGain := SMA(gains, period)
	avgLoss := SMA(losses, period)

	out := make([]float64, n)
	for i := range out {
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		loss := avgLoss[i]
		if loss == 0 {
			loss = 1
		}
		out[i] = 100 - 100/(1+avgGain[i]/loss)
	}
	return out
}

// MACD returns the MACD line and its signal line
func MACD(closes []float64, fast, slow, signal int) ([]float64, []float64) {
	line := Sub(EWM(closes, fast), EWM(closes, slow))
	return line, EWM(line, signal)
}

// EWM computes an exponential moving average seeded with the first value,
// alpha = 2/(span+1).
func EWM(input []float64, span int) []float64 {
	out := make([]float64, len(input))
	if len(input) == 0 {
		return out
	}

	alpha := 2 / (float64(span) + 1)
	out[0] = input[0]
	for i := 1; i < len(input); i++ {
		out[i] = alpha*input[i] + (1-alpha)*out[i-1]
	}
	return out
}

// Bollinger returns the upper, middle and lower bands using the sample
// standard deviation of the window.
func Bollinger(closes []float64, period int, deviation float64) ([]float64, []float64, []float64) {
	n := len(closes)
	if n < period || period < 2 {
		return nanSeries(n), nanSeries(n), nanSeries(n)
	}

	middle := SMA(closes, period)
	std := StdDev(closes, period, 1)
	correction := math.Sqrt(float64(period) / float64(period-1))

	upper := make([]float64, n)
	lower := make([]float64, n)
	for i := range closes {
		if i < period-1 {
			upper[i], middle[i], lower[i] = math.NaN(), math.NaN(), math.NaN()
			continue
		}
		band := std[i] * correction * deviation
		upper[i] = middle[i] + band
		lower[i] = middle[i] - band
	}
	return upper, middle, lower
}

// ATR computes the simple rolling mean of the true range. The first bar's
// true range is its high-low span.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	if n < period {
		return nanSeries(n)
	}

	tr := TRANGE(highs, lows, closes)
	tr[0] = highs[0] - lows[0]
	return warmup(SMA(tr, period), period-1)
}

// VolumeRatio divides each volume by its rolling mean. Unavailable values
// default to 1 and the result is floored at 0.1.
func VolumeRatio(volumes []float64, period int) []float64 {
	n := len(volumes)
	out := make([]float64, n)
	var avg []float64
	if n >= period {
		avg = SMA(volumes, period)
	}

	for i := range out {
		if avg == nil || i < period-1 {
			out[i] = 1
			continue
		}
		mean := avg[i]
		if mean == 0 {
			mean = 1
		}
		out[i] = math.Max(minVolumeRatio, volumes[i]/mean)
	}
	return out
}

func warmup(values []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(values); i++ {
		values[i] = math.NaN()
	}
	return values
}

func nanSeries(n int) []float64 {
	return warmup(make([]float64, n), n)
}
