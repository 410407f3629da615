package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parameter names accepted by ParameterSet.Value and ParameterSet.WithValue
const (
	ParamMinScore        = "min_score"
	ParamStopLossPct     = "stop_loss_pct"
	ParamTakeProfitPct   = "take_profit_pct"
	ParamPositionSizePct = "position_size_pct"
	ParamLeverageBase    = "leverage_base"
	ParamRSIOversold     = "rsi_oversold"
	ParamRSIOverbought   = "rsi_overbought"
)

// ParameterNames lists every tunable parameter in canonical order
var ParameterNames = []string{
	ParamMinScore,
	ParamStopLossPct,
	ParamTakeProfitPct,
	ParamPositionSizePct,
	ParamLeverageBase,
	ParamRSIOversold,
	ParamRSIOverbought,
}

// ParameterSet is one candidate configuration of the trading heuristic.
// It is a value type: copies never share state.
type ParameterSet struct {
	MinScore        float64 `json:"min_score" mapstructure:"min_score"`
	StopLossPct     float64 `json:"stop_loss_pct" mapstructure:"stop_loss_pct"`
	TakeProfitPct   float64 `json:"take_profit_pct" mapstructure:"take_profit_pct"`
	PositionSizePct float64 `json:"position_size_pct" mapstructure:"position_size_pct"`
	LeverageBase    int     `json:"leverage_base" mapstructure:"leverage_base"`
	RSIOversold     int     `json:"rsi_oversold" mapstructure:"rsi_oversold"`
	RSIOverbought   int     `json:"rsi_overbought" mapstructure:"rsi_overbought"`
}

// IsInteger reports whether the named parameter holds an integer value
func IsInteger(name string) bool {
	switch name {
	case ParamLeverageBase, ParamRSIOversold, ParamRSIOverbought:
		return true
	}
	return false
}

// IsPercent reports whether the named parameter is expressed as a fraction
func IsPercent(name string) bool {
	return strings.HasSuffix(name, "_pct")
}

// Value returns the named parameter as float64
func (p ParameterSet) Value(name string) (float64, error) {
	switch name {
	case ParamMinScore:
		return p.MinScore, nil
	case ParamStopLossPct:
		return p.StopLossPct, nil
	case ParamTakeProfitPct:
		return p.TakeProfitPct, nil
	case ParamPositionSizePct:
		return p.PositionSizePct, nil
	case ParamLeverageBase:
		return float64(p.LeverageBase), nil
	case ParamRSIOversold:
		return float64(p.RSIOversold), nil
	case ParamRSIOverbought:
		return float64(p.RSIOverbought), nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
}

// WithValue returns a copy of p with the named parameter replaced.
// Integer parameters must receive a whole number.
func (p ParameterSet) WithValue(name string, v float64) (ParameterSet, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return p, fmt.Errorf("%w: %s=%v", ErrInvalidParameter, name, v)
	}
	if IsInteger(name) && v != math.Trunc(v) {
		return p, fmt.Errorf("%w: %s expects an integer, got %v", ErrInvalidParameter, name, v)
	}

	switch name {
	case ParamMinScore:
		p.MinScore = v
	case ParamStopLossPct:
		p.StopLossPct = v
	case ParamTakeProfitPct:
		p.TakeProfitPct = v
	case ParamPositionSizePct:
		p.PositionSizePct = v
	case ParamLeverageBase:
		p.LeverageBase = int(v)
	case ParamRSIOversold:
		p.RSIOversold = int(v)
	case ParamRSIOverbought:
		p.RSIOverbought = int(v)
	default:
		return p, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	return p, nil
}

// Map exposes the parameter set as name/value pairs
func (p ParameterSet) Map() map[string]float64 {
	m := make(map[string]float64, len(ParameterNames))
	for _, name := range ParameterNames {
		v, _ := p.Value(name)
		m[name] = v
	}
	return m
}

// Key returns a canonical representation used to deduplicate parameter sets
func (p ParameterSet) Key() string {
	var sb strings.Builder
	for i, name := range ParameterNames {
		if i > 0 {
			sb.WriteByte(';')
		}
		v, _ := p.Value(name)
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return sb.String()
}

func (p ParameterSet) String() string {
	return fmt.Sprintf("score>=%.1f sl=%.2f%% tp=%.2f%% size=%.2f%% lev=%dx rsi=%d/%d",
		p.MinScore, p.StopLossPct*100, p.TakeProfitPct*100, p.PositionSizePct*100,
		p.LeverageBase, p.RSIOversold, p.RSIOverbought)
}

// Parameter describes the discrete values explored for a single parameter
type Parameter struct {
	Name   string    `mapstructure:"name"`
	Values []float64 `mapstructure:"values"`
}
