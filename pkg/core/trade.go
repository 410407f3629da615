package core

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

type ExitReason string

const (
	ExitStopLoss      ExitReason = "STOP_LOSS"
	ExitTakeProfit    ExitReason = "TAKE_PROFIT"
	ExitEndOfPeriod   ExitReason = "END_PERIOD"
	ExitPartialProfit ExitReason = "PARTIAL_PROFIT"
)

// Position is an open simulated position
type Position struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	Score      float64   `json:"score"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Period     string    `json:"period"`
	Regime     Regime    `json:"regime"`
}

// Change returns the direction-correct fractional price change at price
func (p Position) Change(price float64) float64 {
	if p.Side == SideShort {
		return p.EntryPrice/price - 1
	}
	return price/p.EntryPrice - 1
}

// Trade is a closed position
type Trade struct {
	Position
	ExitTime   time.Time  `json:"exit_time"`
	ExitPrice  float64    `json:"exit_price"`
	ExitReason ExitReason `json:"exit_reason"`
	// ReturnPct is expressed in percentage points, leverage and commission applied
	ReturnPct    float64 `json:"return_pct"`
	DurationDays int     `json:"duration_days"`
}

// Win reports whether the trade closed with a positive return
func (t Trade) Win() bool { return t.ReturnPct > 0 }
