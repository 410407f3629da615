package metric

import (
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/raykavin/calibrator/pkg/core"
)

// Aggregate reduces a trade list into Metrics. Empty input yields the zero
// value. The input slice is not modified.
func Aggregate(trades []core.Trade) core.Metrics {
	if len(trades) == 0 {
		return core.Metrics{}
	}

	returns := lo.Map(trades, func(t core.Trade, _ int) float64 { return t.ReturnPct })
	winning := lo.CountBy(trades, core.Trade.Win)
	total := lo.Sum(returns)

	metrics := core.Metrics{
		TotalTrades:    len(trades),
		WinningTrades:  winning,
		LosingTrades:   len(trades) - winning,
		WinRate:        WinRate(returns),
		ProfitFactor:   ProfitFactor(returns),
		TotalReturn:    total,
		AvgTradeReturn: total / float64(len(trades)),
		MaxDrawdown:    MaxDrawdown(trades),
		AvgDuration: Mean(lo.Map(trades, func(t core.Trade, _ int) float64 {
			return float64(t.DurationDays)
		})),
	}

	byRegime := lo.GroupBy(lo.Filter(trades, func(t core.Trade, _ int) bool {
		return t.Regime != ""
	}), func(t core.Trade) core.Regime { return t.Regime })

	if len(byRegime) > 0 {
		metrics.Regimes = make(map[core.Regime]core.RegimeMetrics, len(byRegime))
		for regime, subset := range byRegime {
			values := lo.Map(subset, func(t core.Trade, _ int) float64 { return t.ReturnPct })
			metrics.Regimes[regime] = core.RegimeMetrics{
				WinRate: WinRate(values),
				Return:  lo.Sum(values),
				Trades:  len(subset),
			}
		}
	}

	return metrics
}

// WinRate is the percentage of strictly positive returns
func WinRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	wins := lo.CountBy(returns, func(r float64) bool { return r > 0 })
	return float64(wins) / float64(len(returns)) * 100
}

// ProfitFactor divides gross profit by gross loss. It is +Inf when there are
// profits and no losses, and 0 when there are neither.
func ProfitFactor(returns []float64) float64 {
	var profit, loss float64
	for _, r := range returns {
		switch {
		case r > 0:
			profit += r
		case r < 0:
			loss -= r
		}
	}

	if loss > 0 {
		return profit / loss
	}
	if profit > 0 {
		return math.Inf(1)
	}
	return 0
}

// EquityCurve replays trades by entry time and returns the running sum of
// their returns. Trades sharing an entry time keep their input order.
func EquityCurve(trades []core.Trade) core.Series[float64] {
	ordered := make([]core.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EntryTime.Before(ordered[j].EntryTime)
	})

	curve := make(core.Series[float64], 0, len(ordered))
	var cumulative float64
	for _, trade := range ordered {
		cumulative += trade.ReturnPct
		curve = append(curve, cumulative)
	}
	return curve
}

// MaxDrawdown returns the largest drop of the equity curve from its running
// peak, in percentage points. The peak starts at zero.
func MaxDrawdown(trades []core.Trade) float64 {
	curve := EquityCurve(trades)
	return curve.RunningMax(0).Sub(curve).Max()
}
