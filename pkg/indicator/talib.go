package indicator

import "github.com/markcheno/go-talib"

// SMA calculates Simple Moving Average
func SMA(input []float64, period int) []float64 {
	return talib.Sma(input, period)
}

// StdDev calculates the population standard deviation over period
func StdDev(input []float64, period int, nbDev float64) []float64 {
	return talib.StdDev(input, period, nbDev)
}

// TRANGE calculates True Range
func TRANGE(high []float64, low []float64, close []float64) []float64 {
	return talib.TRange(high, low, close)
}

// Sub subtracts two series element by element
func Sub(input0 []float64, input1 []float64) []float64 {
	return talib.Sub(input0, input1)
}

// Div divides two series element by element
func Div(input0 []float64, input1 []float64) []float64 {
	return talib.Div(input0, input1)
}
