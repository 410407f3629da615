package strategy

import "github.com/raykavin/calibrator/pkg/core"

const (
	minConditions   = 3
	conditionWeight = 0.5

	lowerBandZone   = 0.2
	upperBandZone   = 0.8
	highVolume      = 1.2
	highVolatility  = 0.03
	lowVolatility   = 0.015
	warmupBars      = 20
	minHistoryBars  = 20
	rsiWeight       = 2
	regimeBonus     = 0.5
	recoveryBonus   = 0.3
	volatilityCut   = 0.3
	volatilityBoost = 0.2
)

// Adaptive scores entries by counting confluent oversold/overbought,
// momentum, band, volume and trend conditions.
type Adaptive struct{}

func NewAdaptive() *Adaptive {
	return &Adaptive{}
}

func (Adaptive) WarmupPeriod() int { return warmupBars }

func (Adaptive) Adjust(params core.ParameterSet, regime core.Regime) core.ParameterSet {
	return AdjustForRegime(params, regime)
}

func (Adaptive) Score(history []core.Bar, current, _ core.Bar, params core.ParameterSet, regime core.Regime) Signal {
	if len(history) < minHistoryBars || !current.Ready() {
		return Signal{}
	}

	bbPosition := current.BBPosition()
	highVolumeBar := current.VolumeRatio > highVolume

	var long int
	if current.RSI <= float64(params.RSIOversold) {
		long += rsiWeight
	}
	if current.MACD > current.MACDSignal {
		long++
	}
	if bbPosition <= lowerBandZone {
		long++
	}
	if highVolumeBar {
		long++
	}
	if current.Close > current.EMA20 {
		long++
	}

	var short int
	if current.RSI >= float64(params.RSIOverbought) {
		short += rsiWeight
	}
	if current.MACD < current.MACDSignal {
		short++
	}
	if bbPosition >= upperBandZone {
		short++
	}
	if highVolumeBar {
		short++
	}
	if current.Close < current.EMA20 {
		short++
	}

	var signal Signal
	switch {
	case long >= minConditions:
		signal = Signal{Side: core.SideLong, Score: confluenceScore(params, long), Ok: true}
		switch regime {
		case core.RegimeBull:
			signal.Score += regimeBonus
		case core.RegimeRecovery:
			signal.Score += recoveryBonus
		}
	case short >= minConditions:
		signal = Signal{Side: core.SideShort, Score: confluenceScore(params, short), Ok: true}
		if regime == core.RegimeBear {
			signal.Score += regimeBonus
		}
	default:
		return Signal{}
	}

	switch {
	case current.ATRRatio > highVolatility:
		signal.Score -= volatilityCut
	case current.ATRRatio < lowVolatility:
		signal.Score += volatilityBoost
	}

	return signal
}

func confluenceScore(params core.ParameterSet, conditions int) float64 {
	return params.MinScore + float64(conditions-minConditions)*conditionWeight
}
