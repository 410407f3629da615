package optimizer

import (
	"bytes"
	"encoding/csv"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/calibrator/pkg/core"
	"github.com/raykavin/calibrator/pkg/metric"
)

func candidate(p core.ParameterSet) core.CandidateConfig {
	return core.CandidateConfig{Parameters: p}
}

func gridValues(t *testing.T, grid []core.Parameter, name string) []float64 {
	t.Helper()
	for _, param := range grid {
		if param.Name == name {
			return param.Values
		}
	}
	t.Fatalf("parameter %s not found", name)
	return nil
}

func TestGenerateParameterSets(t *testing.T) {
	t.Run("default grid", func(t *testing.T) {
		sets, err := GenerateParameterSets(DefaultParameters, DefaultGrid(), 0)
		require.NoError(t, err)
		require.Len(t, sets, 5*5*5*3*3*3*3)
		require.Equal(t, GridSize(DefaultGrid()), len(sets))

		seen := make(map[string]struct{}, len(sets))
		for _, set := range sets {
			seen[set.Key()] = struct{}{}
		}
		require.Len(t, seen, len(sets))
	})

	t.Run("last parameter varies fastest", func(t *testing.T) {
		sets, err := GenerateParameterSets(DefaultParameters, smallGrid(), 0)
		require.NoError(t, err)
		require.Len(t, sets, 8)
		assert.Equal(t, 1, sets[0].LeverageBase)
		assert.Equal(t, 2, sets[1].LeverageBase)
		assert.Equal(t, 0.15, sets[2].TakeProfitPct)
		assert.Equal(t, 0.04, sets[7].StopLossPct)
		// untouched parameters come from the base
		assert.Equal(t, DefaultParameters.MinScore, sets[5].MinScore)
	})

	t.Run("limit", func(t *testing.T) {
		sets, err := GenerateParameterSets(DefaultParameters, DefaultGrid(), 10)
		require.NoError(t, err)
		require.Len(t, sets, 10)
	})

	t.Run("invalid grids", func(t *testing.T) {
		_, err := GenerateParameterSets(DefaultParameters, nil, 0)
		require.ErrorIs(t, err, core.ErrInvalidParameter)

		_, err = GenerateParameterSets(DefaultParameters, []core.Parameter{{Name: core.ParamMinScore}}, 0)
		require.ErrorIs(t, err, core.ErrInvalidParameter)

		_, err = GenerateParameterSets(DefaultParameters, []core.Parameter{{Name: core.ParamLeverageBase, Values: []float64{1.5}}}, 0)
		require.ErrorIs(t, err, core.ErrInvalidParameter)

		_, err = GenerateParameterSets(DefaultParameters, []core.Parameter{{Name: "trailing", Values: []float64{1}}}, 0)
		require.ErrorIs(t, err, core.ErrUnknownParameter)
	})
}

func TestRefine(t *testing.T) {
	best := []core.CandidateConfig{
		candidate(core.ParameterSet{MinScore: 4.0, StopLossPct: 0.02, TakeProfitPct: 0.10, PositionSizePct: 0.02, LeverageBase: 1, RSIOversold: 30, RSIOverbought: 70}),
		candidate(core.ParameterSet{MinScore: 4.5, StopLossPct: 0.03, TakeProfitPct: 0.12, PositionSizePct: 0.02, LeverageBase: 2, RSIOversold: 30, RSIOverbought: 75}),
		candidate(core.ParameterSet{MinScore: 5.0, StopLossPct: 0.05, TakeProfitPct: 0.20, PositionSizePct: 0.02, LeverageBase: 3, RSIOversold: 35, RSIOverbought: 65}),
		candidate(core.ParameterSet{MinScore: 5.5, StopLossPct: 0.06, TakeProfitPct: 0.08, PositionSizePct: 0.01, LeverageBase: 3, RSIOversold: 25, RSIOverbought: 65}),
	}

	grid, err := Refine(best)
	require.NoError(t, err)
	require.Len(t, grid, len(core.ParameterNames))

	t.Run("percentages stay inside the refined interval", func(t *testing.T) {
		for _, name := range []string{core.ParamStopLossPct, core.ParamTakeProfitPct, core.ParamPositionSizePct} {
			values := make([]float64, 0, 3)
			for _, c := range best[:3] {
				v, _ := c.Parameters.Value(name)
				values = append(values, v)
			}
			mean := metric.Mean(values)
			spread := math.Max(0.01, metric.PopStdDev(values))
			lower := math.Max(0.01, mean-spread)
			upper := math.Min(0.5, mean+spread)

			refined := gridValues(t, grid, name)
			require.NotEmpty(t, refined)
			for _, v := range refined {
				assert.GreaterOrEqual(t, v, lower, name)
				assert.LessOrEqual(t, v, upper, name)
				assert.InDelta(t, math.Round(v*100)/100, v, 1e-12, "%s rounded to 2 decimals", name)
			}
			assert.IsIncreasing(t, refined)
		}
	})

	t.Run("min score", func(t *testing.T) {
		assert.Equal(t, []float64{4.0, 4.5, 5.0}, gridValues(t, grid, core.ParamMinScore))
	})

	t.Run("integers use the median", func(t *testing.T) {
		assert.Equal(t, []float64{1, 2, 7}, gridValues(t, grid, core.ParamLeverageBase))
		assert.Equal(t, []float64{25, 30, 35}, gridValues(t, grid, core.ParamRSIOversold))
		assert.Equal(t, []float64{65, 70, 75}, gridValues(t, grid, core.ParamRSIOverbought))
	})

	t.Run("identical candidates collapse duplicates", func(t *testing.T) {
		same := []core.CandidateConfig{candidate(DefaultParameters), candidate(DefaultParameters)}
		grid, err := Refine(same)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{0.02, 0.03, 0.04}, gridValues(t, grid, core.ParamStopLossPct), 1e-12)
		assert.InDeltaSlice(t, []float64{0.01, 0.02, 0.03}, gridValues(t, grid, core.ParamPositionSizePct), 1e-12)
	})

	t.Run("bounds", func(t *testing.T) {
		edge := core.ParameterSet{MinScore: 3.0, StopLossPct: 0.01, TakeProfitPct: 0.5, PositionSizePct: 0.01, LeverageBase: 1, RSIOversold: 98, RSIOverbought: 100}
		grid, err := Refine([]core.CandidateConfig{candidate(edge)})
		require.NoError(t, err)
		assert.Equal(t, []float64{3.0, 3.5}, gridValues(t, grid, core.ParamMinScore))
		assert.Equal(t, []float64{0.01, 0.02}, gridValues(t, grid, core.ParamStopLossPct))
		assert.Equal(t, []float64{0.49, 0.5}, gridValues(t, grid, core.ParamTakeProfitPct))
		assert.Equal(t, []float64{1, 6}, gridValues(t, grid, core.ParamLeverageBase))
		assert.Equal(t, []float64{93, 98, 100}, gridValues(t, grid, core.ParamRSIOversold))
		assert.Equal(t, []float64{95, 100}, gridValues(t, grid, core.ParamRSIOverbought))
	})

	t.Run("no candidates", func(t *testing.T) {
		_, err := Refine(nil)
		require.ErrorIs(t, err, core.ErrNoConfiguration)
	})
}

func TestFitness(t *testing.T) {
	t.Run("capped components", func(t *testing.T) {
		assert.InDelta(t, 40.0, Fitness(core.Metrics{WinRate: 70}), 1e-9)
		assert.Equal(t, Fitness(core.Metrics{WinRate: 70}), Fitness(core.Metrics{WinRate: 95}))
		assert.InDelta(t, 30.0, Fitness(core.Metrics{ProfitFactor: math.Inf(1)}), 1e-9)
		assert.InDelta(t, 20.0, Fitness(core.Metrics{TotalReturn: 100}), 1e-9)
		assert.InDelta(t, 10.0, Fitness(core.Metrics{TotalTrades: 50}), 1e-9)
	})

	t.Run("composite", func(t *testing.T) {
		m := core.Metrics{WinRate: 50, ProfitFactor: 1.5, TotalReturn: 12, TotalTrades: 8, MaxDrawdown: 10}
		assert.InDelta(t, 30+15+6+4, Fitness(m), 1e-9)
	})

	t.Run("drawdown penalty", func(t *testing.T) {
		m := core.Metrics{WinRate: 50, MaxDrawdown: 30}
		assert.InDelta(t, 30-5, Fitness(m), 1e-9)
	})

	t.Run("consistency bonus", func(t *testing.T) {
		m := core.Metrics{
			WinRate: 50,
			Regimes: map[core.Regime]core.RegimeMetrics{
				core.RegimeBull: {WinRate: 60},
				core.RegimeBear: {WinRate: 40},
			},
		}
		assert.InDelta(t, 30+8, Fitness(m), 1e-9)

		delete(m.Regimes, core.RegimeBear)
		assert.InDelta(t, 30.0, Fitness(m), 1e-9)
	})

	t.Run("never negative", func(t *testing.T) {
		assert.Zero(t, Fitness(core.Metrics{TotalReturn: -80, MaxDrawdown: 90}))
	})
}

func TestRegimesConsistent(t *testing.T) {
	periods := DefaultPeriods()
	assert.True(t, RegimesConsistent(core.Metrics{}, periods, 40))
	assert.True(t, RegimesConsistent(core.Metrics{Regimes: regimes(40, 45, 50)}, periods, 40))
	assert.False(t, RegimesConsistent(core.Metrics{Regimes: regimes(40, 39, 50)}, periods, 40))

	missing := regimes(60, 60, 60)
	delete(missing, core.RegimeRecovery)
	assert.False(t, RegimesConsistent(core.Metrics{Regimes: missing}, periods, 40))
}

func TestWriteResultsCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteResultsCSV(&buf, []core.CandidateConfig{
		{Parameters: DefaultParameters, Score: 71.5, Metrics: core.Metrics{TotalTrades: 9, WinRate: 55}},
	})
	require.NoError(t, err)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "rank", rows[0][0])
	assert.Equal(t, "71.5000", rows[1][1])
	assert.Equal(t, "4.0000", rows[1][2])
	assert.Len(t, rows[1], 2+len(core.ParameterNames)+len(metricColumns))
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	PrintResults(&buf, IterationReport{
		Number:      1,
		Description: "Wide initial search",
		Grid:        smallGrid(),
		Tested:      8,
		Qualified:   1,
		Top:         []core.CandidateConfig{{Parameters: DefaultParameters, Score: 60}},
	}, 5)
	assert.Contains(t, buf.String(), "Iteration 1: Wide initial search")
	assert.Contains(t, buf.String(), "1/8")

	buf.Reset()
	PrintResults(&buf, IterationReport{Number: 2, Tested: 3}, 5)
	assert.Contains(t, buf.String(), "No configuration met the targets")
}
