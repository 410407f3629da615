package backtesting

import (
	"time"

	"github.com/raykavin/calibrator/pkg/core"
	"github.com/raykavin/calibrator/pkg/strategy"
)

// Commission is the flat cost deducted from every trade, in percentage points
const Commission = 0.2

// Simulator replays a bar sequence through a scorer and produces the trades
// a single-position exit policy would have taken. It holds no mutable state
// and is safe for concurrent use.
type Simulator struct {
	scorer strategy.Scorer

	profitLockDays     int
	profitLockFraction float64
}

type SimulatorOption func(*Simulator)

// WithProfitLock closes a position at the bar close once it has been open
// longer than days and its unrealized return exceeds fraction of the
// take-profit distance.
func WithProfitLock(days int, fraction float64) SimulatorOption {
	return func(s *Simulator) {
		s.profitLockDays = days
		s.profitLockFraction = fraction
	}
}

func NewSimulator(scorer strategy.Scorer, options ...SimulatorOption) *Simulator {
	s := &Simulator{scorer: scorer}
	for _, option := range options {
		option(s)
	}
	return s
}

// state is the per-run position state: flat when open is nil
type state struct {
	open *core.Position
}

func (s state) flat() bool { return s.open == nil }

// Run simulates one symbol over one period
func (s *Simulator) Run(symbol string, period core.Period, bars []core.Bar, params core.ParameterSet) []core.Trade {
	adjusted := s.scorer.Adjust(params, period.Regime)
	warmup := s.scorer.WarmupPeriod()

	var (
		trades []core.Trade
		st     state
	)

	for i := max(warmup, 1); i < len(bars); i++ {
		current := bars[i]

		if st.flat() {
			signal := s.scorer.Score(bars[:i+1], current, bars[i-1], adjusted, period.Regime)
			if signal.Ok && signal.Score >= adjusted.MinScore {
				st.open = openPosition(symbol, period, current, signal, adjusted)
			}
			continue
		}

		if price, reason, ok := s.exit(*st.open, current, adjusted); ok {
			trades = append(trades, closePosition(*st.open, current.Time, price, reason, adjusted))
			st.open = nil
		}
	}

	if !st.flat() {
		last := bars[len(bars)-1]
		trades = append(trades, closePosition(*st.open, last.Time, last.Close, core.ExitEndOfPeriod, adjusted))
	}

	return trades
}

func openPosition(symbol string, period core.Period, bar core.Bar, signal strategy.Signal, params core.ParameterSet) *core.Position {
	position := &core.Position{
		Symbol:     symbol,
		Side:       signal.Side,
		EntryTime:  bar.Time,
		EntryPrice: bar.Close,
		Score:      signal.Score,
		Period:     period.Name,
		Regime:     period.Regime,
	}

	if signal.Side == core.SideLong {
		position.StopLoss = bar.Close * (1 - params.StopLossPct)
		position.TakeProfit = bar.Close * (1 + params.TakeProfitPct)
	} else {
		position.StopLoss = bar.Close * (1 + params.StopLossPct)
		position.TakeProfit = bar.Close * (1 - params.TakeProfitPct)
	}

	return position
}

// exit checks the stop-loss first, then the take-profit, then the optional profit lock
func (s *Simulator) exit(position core.Position, bar core.Bar, params core.ParameterSet) (float64, core.ExitReason, bool) {
	if position.Side == core.SideLong {
		if bar.Low <= position.StopLoss {
			return position.StopLoss, core.ExitStopLoss, true
		}
		if bar.High >= position.TakeProfit {
			return position.TakeProfit, core.ExitTakeProfit, true
		}
	} else {
		if bar.High >= position.StopLoss {
			return position.StopLoss, core.ExitStopLoss, true
		}
		if bar.Low <= position.TakeProfit {
			return position.TakeProfit, core.ExitTakeProfit, true
		}
	}

	if s.profitLockDays > 0 && durationDays(position.EntryTime, bar.Time) > s.profitLockDays {
		if position.Change(bar.Close)*100 > params.TakeProfitPct*100*s.profitLockFraction {
			return bar.Close, core.ExitPartialProfit, true
		}
	}

	return 0, "", false
}

func closePosition(position core.Position, at time.Time, price float64, reason core.ExitReason, params core.ParameterSet) core.Trade {
	return core.Trade{
		Position:     position,
		ExitTime:     at,
		ExitPrice:    price,
		ExitReason:   reason,
		ReturnPct:    position.Change(price)*100*float64(params.LeverageBase) - Commission,
		DurationDays: durationDays(position.EntryTime, at),
	}
}

func durationDays(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
