package strategy

import "github.com/raykavin/calibrator/pkg/core"

// Signal is the entry decision produced by a Scorer. Ok is false when no
// direction reached the minimum confluence.
type Signal struct {
	Side  core.Side
	Score float64
	Ok    bool
}

type Scorer interface {
	// WarmupPeriod is the number of bars to skip before the first evaluation,
	// to let rolling indicators settle.
	WarmupPeriod() int
	// Adjust returns the parameters the scorer and simulator should use for the regime.
	Adjust(params core.ParameterSet, regime core.Regime) core.ParameterSet
	// Score evaluates the current bar. params are already regime-adjusted.
	Score(history []core.Bar, current, previous core.Bar, params core.ParameterSet, regime core.Regime) Signal
}
