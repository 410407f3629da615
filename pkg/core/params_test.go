package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParameterSet_WithValue(t *testing.T) {
	base := ParameterSet{MinScore: 4, StopLossPct: 0.03, TakeProfitPct: 0.1, LeverageBase: 2, RSIOversold: 30, RSIOverbought: 70}

	t.Run("returns a modified copy", func(t *testing.T) {
		next, err := base.WithValue(ParamStopLossPct, 0.05)
		require.NoError(t, err)
		require.Equal(t, 0.05, next.StopLossPct)
		require.Equal(t, 0.03, base.StopLossPct)
	})

	t.Run("integer parameter", func(t *testing.T) {
		next, err := base.WithValue(ParamLeverageBase, 3)
		require.NoError(t, err)
		require.Equal(t, 3, next.LeverageBase)

		_, err = base.WithValue(ParamLeverageBase, 2.5)
		require.ErrorIs(t, err, ErrInvalidParameter)
	})

	t.Run("unknown parameter", func(t *testing.T) {
		_, err := base.WithValue("trailing_stop", 1)
		require.ErrorIs(t, err, ErrUnknownParameter)

		_, err = base.Value("trailing_stop")
		require.ErrorIs(t, err, ErrUnknownParameter)
	})

	t.Run("non finite", func(t *testing.T) {
		_, err := base.WithValue(ParamMinScore, math.NaN())
		require.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestParameterSet_Key(t *testing.T) {
	a := ParameterSet{MinScore: 4, StopLossPct: 0.03}
	b := a
	require.Equal(t, a.Key(), b.Key())

	b.StopLossPct = 0.04
	require.NotEqual(t, a.Key(), b.Key())
	require.Len(t, a.Map(), len(ParameterNames))
}

func TestBar(t *testing.T) {
	bar := Bar{Candle: Candle{Close: 95}, BBUpper: 110, BBLower: 90}
	require.InDelta(t, 0.25, bar.BBPosition(), 1e-9)

	flat := Bar{Candle: Candle{Close: 100}, BBUpper: 100, BBLower: 100}
	require.Equal(t, 0.5, flat.BBPosition())

	require.False(t, Bar{RSI: math.NaN()}.Ready())
	require.True(t, Bar{}.Ready())
}

func TestMetrics_Flatten(t *testing.T) {
	m := Metrics{
		WinRate: 50,
		Regimes: map[Regime]RegimeMetrics{RegimeBull: {WinRate: 60, Return: 4}},
	}
	flat := m.Flatten()
	require.Equal(t, 60.0, flat["BULL_win_rate"])
	require.Equal(t, 4.0, flat["BULL_return"])
	require.Equal(t, 50.0, flat["win_rate"])
	_, ok := flat["BEAR_win_rate"]
	require.False(t, ok)

	require.Equal(t, math.MaxFloat64, Metrics{ProfitFactor: math.Inf(1)}.JSONSafe().ProfitFactor)
}
