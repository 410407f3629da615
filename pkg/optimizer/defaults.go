package optimizer

import (
	"time"

	"github.com/raykavin/calibrator/pkg/core"
)

// DefaultSymbols are the markets calibrated when none are configured
var DefaultSymbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT", "ADAUSDT"}

// DefaultParameters fills parameters a grid does not mention
var DefaultParameters = core.ParameterSet{
	MinScore:        4.0,
	StopLossPct:     0.03,
	TakeProfitPct:   0.10,
	PositionSizePct: 0.02,
	LeverageBase:    2,
	RSIOversold:     30,
	RSIOverbought:   70,
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// DefaultPeriods returns three consecutive 2024 quarters, one per regime
func DefaultPeriods() []core.Period {
	return []core.Period{
		{Name: "Q1_2024_BULL", Start: day(2024, time.January, 1), End: day(2024, time.March, 31), Regime: core.RegimeBull, Weight: 0.33},
		{Name: "Q2_2024_CORRECTION", Start: day(2024, time.April, 1), End: day(2024, time.June, 30), Regime: core.RegimeBear, Weight: 0.33},
		{Name: "Q3_2024_RECOVERY", Start: day(2024, time.July, 1), End: day(2024, time.September, 30), Regime: core.RegimeRecovery, Weight: 0.34},
	}
}

// DefaultGrid is the wide grid explored by the first iteration
func DefaultGrid() []core.Parameter {
	return []core.Parameter{
		{Name: core.ParamMinScore, Values: []float64{3.5, 4.0, 4.5, 5.0, 5.5}},
		{Name: core.ParamStopLossPct, Values: []float64{0.02, 0.03, 0.04, 0.05, 0.06}},
		{Name: core.ParamTakeProfitPct, Values: []float64{0.08, 0.10, 0.12, 0.15, 0.20}},
		{Name: core.ParamPositionSizePct, Values: []float64{0.01, 0.02, 0.03}},
		{Name: core.ParamLeverageBase, Values: []float64{1, 2, 3}},
		{Name: core.ParamRSIOversold, Values: []float64{25, 30, 35}},
		{Name: core.ParamRSIOverbought, Values: []float64{65, 70, 75}},
	}
}

// DefaultIterations returns the three-step plan with escalating targets
func DefaultIterations() []Iteration {
	return []Iteration{
		{
			Description: "Wide initial search",
			Grid:        DefaultGrid(),
			Targets:     Targets{MinWinRate: 45, MinProfitFactor: 1.2, MinTrades: 5, MinReturn: 5},
		},
		{
			Description: "Refinement around the best results",
			Targets:     Targets{MinWinRate: 50, MinProfitFactor: 1.5, MinTrades: 8, MinReturn: 10},
		},
		{
			Description: "Final optimization",
			Targets:     Targets{MinWinRate: 55, MinProfitFactor: 1.8, MinTrades: 10, MinReturn: 15},
		},
	}
}
