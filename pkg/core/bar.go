package core

import "math"

// Bar is a candle enriched with the indicator values used by the scorer.
// A NaN indicator field means the value is not available yet (warm-up).
type Bar struct {
	Candle

	RSI         float64
	MACD        float64
	MACDSignal  float64
	BBUpper     float64
	BBMiddle    float64
	BBLower     float64
	EMA9        float64
	EMA20       float64
	EMA50       float64
	ATR         float64
	ATRRatio    float64
	VolumeRatio float64
}

// BBPosition returns where the close sits inside the Bollinger band,
// 0 at the lower band and 1 at the upper band. A flat band yields 0.5.
func (b Bar) BBPosition() float64 {
	width := b.BBUpper - b.BBLower
	if width == 0 || math.IsNaN(width) {
		return 0.5
	}
	return (b.Close - b.BBLower) / width
}

// Ready reports whether every indicator read by the scorer is available
func (b Bar) Ready() bool {
	for _, v := range []float64{
		b.RSI, b.MACD, b.MACDSignal, b.BBUpper, b.BBLower,
		b.EMA20, b.ATRRatio, b.VolumeRatio,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
