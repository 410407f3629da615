package optimizer

import (
	"context"
	"time"

	"github.com/raykavin/calibrator/pkg/backtesting"
	"github.com/raykavin/calibrator/pkg/core"
	"github.com/raykavin/calibrator/pkg/metric"
)

// BacktestEvaluator simulates a parameter set over every symbol and period
// of a preloaded market data set
type BacktestEvaluator struct {
	data      core.MarketData
	periods   []core.Period
	simulator *backtesting.Simulator
}

func NewBacktestEvaluator(data core.MarketData, periods []core.Period, simulator *backtesting.Simulator) *BacktestEvaluator {
	return &BacktestEvaluator{
		data:      data,
		periods:   periods,
		simulator: simulator,
	}
}

// Evaluate runs the simulator for every (symbol, period) with data and
// aggregates the concatenated trades. Symbols run in lexical order and
// periods in configuration order.
func (e *BacktestEvaluator) Evaluate(ctx context.Context, params core.ParameterSet) (*Result, error) {
	start := time.Now()

	var trades []core.Trade
	for _, symbol := range e.data.Symbols() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, period := range e.periods {
			bars, ok := e.data.Bars(symbol, period.Name)
			if !ok {
				continue
			}
			trades = append(trades, e.simulator.Run(symbol, period, bars, params)...)
		}
	}

	return &Result{
		Parameters: params,
		Metrics:    metric.Aggregate(trades),
		Trades:     trades,
		Duration:   time.Since(start),
	}, nil
}
