package optimizer

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/raykavin/calibrator/pkg/core"
	"github.com/raykavin/calibrator/pkg/metric"
)

const (
	refineTop = 3

	minPercent     = 0.01
	maxPercent     = 0.5
	minSpread      = 0.01
	minScoreFloor  = 3.0
	minScoreCap    = 6.0
	minScoreSpread = 0.5
	intSpread      = 5
	minInt         = 1
	maxInt         = 100
)

// Refine builds a narrower grid around the top candidates of a previous
// iteration. Percentages explore mean ± max(0.01, std) inside [0.01, 0.5]
// with two decimals, min_score explores mean ± 0.5 inside [3, 6] with one
// decimal, integers explore median ± 5 inside [1, 100]. Bounds are rounded
// inward so every candidate stays inside the unrounded interval.
func Refine(best []core.CandidateConfig) ([]core.Parameter, error) {
	if len(best) == 0 {
		return nil, core.ErrNoConfiguration
	}
	if len(best) > refineTop {
		best = best[:refineTop]
	}

	grid := make([]core.Parameter, 0, len(core.ParameterNames))
	for _, name := range core.ParameterNames {
		values := make([]float64, 0, len(best))
		for _, candidate := range best {
			v, err := candidate.Parameters.Value(name)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}

		var candidates []float64
		switch {
		case core.IsInteger(name):
			candidates = refineInteger(values)
		case core.IsPercent(name):
			spread := max(minSpread, metric.PopStdDev(values))
			candidates = refineRange(metric.Mean(values), spread, minPercent, maxPercent, 2)
		case name == core.ParamMinScore:
			candidates = refineRange(metric.Mean(values), minScoreSpread, minScoreFloor, minScoreCap, 1)
		default:
			return nil, fmt.Errorf("%w: no refinement rule for %s", core.ErrUnknownParameter, name)
		}

		grid = append(grid, core.Parameter{Name: name, Values: candidates})
	}

	return grid, nil
}

// refineRange returns {center-spread, center, center+spread} clipped to
// [lower, upper] and rounded to places decimals
func refineRange(center, spread, lower, upper float64, places int32) []float64 {
	low := min(max(lower, center-spread), upper)
	high := max(min(upper, center+spread), lower)

	lowRounded := decimal.NewFromFloat(low).RoundCeil(places)
	highRounded := decimal.NewFromFloat(high).RoundFloor(places)
	mid := decimal.NewFromFloat(min(max(center, low), high)).Round(places)
	mid = decimal.Max(lowRounded, decimal.Min(highRounded, mid))

	values := lo.Map([]decimal.Decimal{lowRounded, mid, highRounded}, func(d decimal.Decimal, _ int) float64 {
		return min(max(d.InexactFloat64(), low), high)
	})
	return uniqueSorted(values)
}

// refineInteger returns {median-5, median, median+5} clipped to [1, 100]
func refineInteger(values []float64) []float64 {
	center := float64(int(median(values)))
	return uniqueSorted([]float64{
		max(minInt, center-intSpread),
		min(max(minInt, center), maxInt),
		min(maxInt, center+intSpread),
	})
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func uniqueSorted(values []float64) []float64 {
	unique := lo.Uniq(values)
	sort.Float64s(unique)
	return unique
}
