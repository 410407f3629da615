package core

import (
	"golang.org/x/exp/constraints"
)

// Series is a time series of numeric values
type Series[T constraints.Integer | constraints.Float] []T

// Max returns the highest value of the series, zero value when empty
func (s Series[T]) Max() T {
	var m T
	for i, v := range s {
		if i == 0 || v > m {
			m = v
		}
	}
	return m
}

// RunningMax returns the highest value seen up to each index, never below floor
func (s Series[T]) RunningMax(floor T) Series[T] {
	peaks := make(Series[T], len(s))
	peak := floor
	for i, v := range s {
		peak = max(peak, v)
		peaks[i] = peak
	}
	return peaks
}

// Sub returns the element-wise difference s - other over their common length
func (s Series[T]) Sub(other Series[T]) Series[T] {
	n := min(len(s), len(other))
	diff := make(Series[T], n)
	for i := range n {
		diff[i] = s[i] - other[i]
	}
	return diff
}
