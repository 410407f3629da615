package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/calibrator/pkg/core"
)

var defaultParams = core.ParameterSet{
	MinScore:        4.0,
	StopLossPct:     0.03,
	TakeProfitPct:   0.10,
	PositionSizePct: 0.02,
	LeverageBase:    2,
	RSIOversold:     30,
	RSIOverbought:   70,
}

func neutralBar() core.Bar {
	return core.Bar{
		Candle:      core.Candle{Close: 100, High: 101, Low: 99},
		RSI:         50,
		MACD:        0,
		MACDSignal:  0,
		BBUpper:     110,
		BBMiddle:    100,
		BBLower:     90,
		EMA20:       100,
		ATRRatio:    0.02,
		VolumeRatio: 1,
	}
}

func history(n int) []core.Bar {
	bars := make([]core.Bar, n)
	for i := range bars {
		bars[i] = neutralBar()
	}
	return bars
}

func TestAdaptive_Score(t *testing.T) {
	scorer := NewAdaptive()

	tests := []struct {
		name   string
		bar    func() core.Bar
		params *core.ParameterSet
		regime core.Regime
		want   Signal
	}{
		{
			name: "no confluence",
			bar:  neutralBar,
			want: Signal{},
		},
		{
			name: "long with four condition points",
			bar: func() core.Bar {
				b := neutralBar()
				b.RSI = 28
				b.MACD = 1
				b.VolumeRatio = 1.3
				b.EMA20 = 101
				return b
			},
			want: Signal{Side: core.SideLong, Score: 4.5, Ok: true},
		},
		{
			name: "long in bull market gets bonus",
			bar: func() core.Bar {
				b := neutralBar()
				b.RSI = 28
				b.MACD = 1
				return b
			},
			regime: core.RegimeBull,
			want:   Signal{Side: core.SideLong, Score: 4.5, Ok: true},
		},
		{
			name: "long in recovery market",
			bar: func() core.Bar {
				b := neutralBar()
				b.RSI = 28
				b.MACD = 1
				return b
			},
			regime: core.RegimeRecovery,
			want:   Signal{Side: core.SideLong, Score: 4.3, Ok: true},
		},
		{
			name: "short in bear market with high volatility",
			bar: func() core.Bar {
				b := neutralBar()
				b.RSI = 75
				b.MACD = -1
				b.Close = 109
				b.ATRRatio = 0.04
				return b
			},
			regime: core.RegimeBear,
			want:   Signal{Side: core.SideShort, Score: 4 + 0.5 + 0.5 - 0.3, Ok: true},
		},
		{
			name: "long is preferred when both qualify",
			bar: func() core.Bar {
				b := neutralBar()
				b.MACD = 1
				b.VolumeRatio = 2
				b.Close = 95
				b.EMA20 = 96
				b.ATRRatio = 0.01
				return b
			},
			params: &core.ParameterSet{MinScore: 4, RSIOversold: 60, RSIOverbought: 40},
			want:   Signal{Side: core.SideLong, Score: 4.5 + 0.2, Ok: true},
		},
		{
			name: "missing indicator yields no signal",
			bar: func() core.Bar {
				b := neutralBar()
				b.RSI = math.NaN()
				return b
			},
			want: Signal{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			params := defaultParams
			if tc.params != nil {
				params = *tc.params
			}
			got := scorer.Score(history(25), tc.bar(), neutralBar(), params, tc.regime)
			assert.Equal(t, tc.want.Ok, got.Ok)
			assert.Equal(t, tc.want.Side, got.Side)
			assert.InDelta(t, tc.want.Score, got.Score, 1e-9)
		})
	}
}

func TestAdaptive_ScoreShortHistory(t *testing.T) {
	b := neutralBar()
	b.RSI = 20
	b.MACD = 1
	got := NewAdaptive().Score(history(5), b, neutralBar(), defaultParams, "")
	require.False(t, got.Ok)
	require.Zero(t, got.Score)
}

func TestAdjustForRegime(t *testing.T) {
	t.Run("bull", func(t *testing.T) {
		p := AdjustForRegime(defaultParams, core.RegimeBull)
		assert.Equal(t, 3.5, p.MinScore)
		assert.InDelta(t, 0.12, p.TakeProfitPct, 1e-12)
		assert.Equal(t, 35, p.RSIOversold)

		low := defaultParams
		low.MinScore = 3.2
		low.RSIOversold = 33
		p = AdjustForRegime(low, core.RegimeBull)
		assert.Equal(t, 3.0, p.MinScore)
		assert.Equal(t, 35, p.RSIOversold)
	})

	t.Run("bear", func(t *testing.T) {
		p := AdjustForRegime(defaultParams, core.RegimeBear)
		assert.Equal(t, 4.5, p.MinScore)
		assert.InDelta(t, 0.024, p.StopLossPct, 1e-12)
		assert.Equal(t, 1, p.LeverageBase)

		high := defaultParams
		high.MinScore = 5.8
		high.LeverageBase = 1
		p = AdjustForRegime(high, core.RegimeBear)
		assert.Equal(t, 6.0, p.MinScore)
		assert.Equal(t, 1, p.LeverageBase)
	})

	t.Run("recovery", func(t *testing.T) {
		p := AdjustForRegime(defaultParams, core.RegimeRecovery)
		assert.InDelta(t, 0.11, p.TakeProfitPct, 1e-12)
		assert.Equal(t, 75, p.RSIOverbought)
	})

	t.Run("unknown regime is untouched", func(t *testing.T) {
		assert.Equal(t, defaultParams, AdjustForRegime(defaultParams, "SIDEWAYS"))
	})

	t.Run("input is not mutated", func(t *testing.T) {
		p := defaultParams
		_ = AdjustForRegime(p, core.RegimeBear)
		assert.Equal(t, defaultParams, p)
	})
}
