package core

import (
	"sort"
)

// MarketData holds augmented bars per symbol and period name. It is shared
// read-only between evaluations.
type MarketData map[string]map[string][]Bar

// Symbols returns the symbols in lexical order
func (m MarketData) Symbols() []string {
	symbols := make([]string, 0, len(m))
	for symbol := range m {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Bars returns the bars of symbol for a period and whether they exist
func (m MarketData) Bars(symbol, period string) ([]Bar, bool) {
	bars, ok := m[symbol][period]
	return bars, ok
}

// Set stores the bars of symbol for a period
func (m MarketData) Set(symbol, period string, bars []Bar) {
	if m[symbol] == nil {
		m[symbol] = make(map[string][]Bar)
	}
	m[symbol][period] = bars
}
