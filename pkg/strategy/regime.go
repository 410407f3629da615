package strategy

import "github.com/raykavin/calibrator/pkg/core"

// AdjustForRegime returns a copy of params tuned for the market regime.
// Unknown regimes are returned unchanged.
func AdjustForRegime(params core.ParameterSet, regime core.Regime) core.ParameterSet {
	adjusted := params

	switch regime {
	case core.RegimeBull:
		adjusted.MinScore = max(3.0, params.MinScore-0.5)
		adjusted.TakeProfitPct = params.TakeProfitPct * 1.2
		adjusted.RSIOversold = min(35, params.RSIOversold+5)
	case core.RegimeBear:
		adjusted.MinScore = min(6.0, params.MinScore+0.5)
		adjusted.StopLossPct = params.StopLossPct * 0.8
		adjusted.LeverageBase = max(1, params.LeverageBase-1)
	case core.RegimeRecovery:
		adjusted.TakeProfitPct = params.TakeProfitPct * 1.1
		adjusted.RSIOverbought = min(75, params.RSIOverbought+5)
	}

	return adjusted
}
