package core

import "time"

// Regime labels the market behaviour of a historical period
type Regime string

const (
	RegimeBull     Regime = "BULL"
	RegimeBear     Regime = "BEAR"
	RegimeRecovery Regime = "RECOVERY"
)

// Period is a named calendar window used as an evaluation slice.
// Weight is informational only.
type Period struct {
	Name   string    `json:"name" mapstructure:"name"`
	Start  time.Time `json:"start" mapstructure:"start"`
	End    time.Time `json:"end" mapstructure:"end"`
	Regime Regime    `json:"regime" mapstructure:"regime"`
	Weight float64   `json:"weight" mapstructure:"weight"`
}

// Days returns the calendar length of the period
func (p Period) Days() float64 {
	return p.End.Sub(p.Start).Hours() / 24
}
