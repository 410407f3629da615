package core

import "math"

// RegimeMetrics summarizes the trades taken during one market regime
type RegimeMetrics struct {
	WinRate float64 `json:"win_rate"`
	Return  float64 `json:"return"`
	Trades  int     `json:"trades"`
}

// Metrics summarizes a set of trades. Percentages are in points.
type Metrics struct {
	TotalTrades    int                      `json:"total_trades"`
	WinningTrades  int                      `json:"winning_trades"`
	LosingTrades   int                      `json:"losing_trades"`
	WinRate        float64                  `json:"win_rate"`
	ProfitFactor   float64                  `json:"profit_factor"`
	TotalReturn    float64                  `json:"total_return"`
	AvgTradeReturn float64                  `json:"avg_trade_return"`
	MaxDrawdown    float64                  `json:"max_drawdown"`
	AvgDuration    float64                  `json:"avg_duration"`
	Regimes        map[Regime]RegimeMetrics `json:"regimes,omitempty"`
}

// Regime returns the sub-metrics of a regime and whether any trade was taken in it
func (m Metrics) Regime(r Regime) (RegimeMetrics, bool) {
	rm, ok := m.Regimes[r]
	return rm, ok
}

// Flatten exposes the metrics as a flat key/value map, regime
// sub-metrics as {REGIME}_win_rate and {REGIME}_return
func (m Metrics) Flatten() map[string]float64 {
	flat := map[string]float64{
		"total_trades":     float64(m.TotalTrades),
		"winning_trades":   float64(m.WinningTrades),
		"losing_trades":    float64(m.LosingTrades),
		"win_rate":         m.WinRate,
		"profit_factor":    m.ProfitFactor,
		"total_return":     m.TotalReturn,
		"avg_trade_return": m.AvgTradeReturn,
		"max_drawdown":     m.MaxDrawdown,
		"avg_duration":     m.AvgDuration,
	}
	for regime, rm := range m.Regimes {
		flat[string(regime)+"_win_rate"] = rm.WinRate
		flat[string(regime)+"_return"] = rm.Return
	}
	return flat
}

// JSONSafe returns a copy with an infinite profit factor mapped to
// math.MaxFloat64 so it can be encoded as JSON.
func (m Metrics) JSONSafe() Metrics {
	if math.IsInf(m.ProfitFactor, 1) {
		m.ProfitFactor = math.MaxFloat64
	}
	return m
}

// CandidateConfig is an evaluated parameter set
type CandidateConfig struct {
	Parameters ParameterSet
	Metrics    Metrics
	Score      float64
	Trades     []Trade
}
