package metric

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of the values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// PopStdDev calculates the population standard deviation
func PopStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	_, variance := stat.PopMeanVariance(values, nil)
	return math.Sqrt(variance)
}

// Payoff calculates the ratio of average win to average loss
func Payoff(values []float64) float64 {
	var wins, losses []float64
	for _, value := range values {
		switch {
		case value > 0:
			wins = append(wins, value)
		case value < 0:
			losses = append(losses, -value)
		}
	}

	if len(losses) == 0 {
		if len(wins) == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return Mean(wins) / Mean(losses)
}
