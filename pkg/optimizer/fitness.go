package optimizer

import (
	"math"

	"github.com/raykavin/calibrator/pkg/core"
)

const (
	winRateCap      = 40.0
	profitFactorCap = 30.0
	returnCap       = 20.0
	tradesCap       = 10.0
	drawdownLimit   = 20.0
)

// Fitness scores a metrics record. Each component is capped; drawdowns
// beyond 20 points are penalized and similar BULL/BEAR win rates earn a
// consistency bonus. The result is never negative.
func Fitness(m core.Metrics) float64 {
	score := math.Min(winRateCap, m.WinRate*0.6) +
		math.Min(profitFactorCap, m.ProfitFactor*10) +
		math.Min(returnCap, m.TotalReturn*0.5) +
		math.Min(tradesCap, float64(m.TotalTrades)*0.5)

	if m.MaxDrawdown > drawdownLimit {
		score -= (m.MaxDrawdown - drawdownLimit) * 0.5
	}

	bull, okBull := m.Regime(core.RegimeBull)
	bear, okBear := m.Regime(core.RegimeBear)
	if okBull && okBear {
		score += (100 - math.Abs(bull.WinRate-bear.WinRate)) * 0.1
	}

	return math.Max(0, score)
}

// RegimesConsistent reports whether every period regime reached floor.
// It holds trivially when m carries no regime breakdown; a regime with no
// trades counts as a zero win rate.
func RegimesConsistent(m core.Metrics, periods []core.Period, floor float64) bool {
	if len(m.Regimes) == 0 {
		return true
	}

	for _, period := range periods {
		if period.Regime == "" {
			continue
		}
		rm, _ := m.Regime(period.Regime)
		if rm.WinRate < floor {
			return false
		}
	}
	return true
}
