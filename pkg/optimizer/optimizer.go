package optimizer

import (
	"context"
	"time"

	"github.com/raykavin/calibrator/pkg/core"
	"github.com/raykavin/calibrator/pkg/logger"
)

// Targets are the minimum metrics a parameter set must reach to qualify
type Targets struct {
	MinWinRate      float64 `mapstructure:"min_win_rate" json:"min_win_rate"`
	MinProfitFactor float64 `mapstructure:"min_profit_factor" json:"min_profit_factor"`
	MinTrades       int     `mapstructure:"min_trades" json:"min_trades"`
	MinReturn       float64 `mapstructure:"min_return" json:"min_return"`
}

// Met reports whether m reaches every target
func (t Targets) Met(m core.Metrics) bool {
	return m.WinRate >= t.MinWinRate &&
		m.ProfitFactor >= t.MinProfitFactor &&
		m.TotalTrades >= t.MinTrades &&
		m.TotalReturn >= t.MinReturn
}

// Iteration is one step of the calibration plan. Grid is only read for the
// first iteration; later iterations refine the previous best candidates.
type Iteration struct {
	Description string           `mapstructure:"description"`
	Grid        []core.Parameter `mapstructure:"grid"`
	Targets     Targets          `mapstructure:"targets"`
}

// Result is the outcome of evaluating a single parameter set
type Result struct {
	Parameters core.ParameterSet
	Metrics    core.Metrics
	Trades     []core.Trade
	Duration   time.Duration
}

// Evaluator defines the interface for evaluating a parameter set
type Evaluator interface {
	// Evaluate backtests params over every symbol and period and aggregates the trades
	Evaluate(ctx context.Context, params core.ParameterSet) (*Result, error)
}

// Config holds configuration for the calibration process
type Config struct {
	// Iterations is the calibration plan, in order
	Iterations []Iteration
	// Periods evaluated by the evaluator, used for the cross-regime gate
	Periods []core.Period
	// Number of parallel evaluations
	Parallelism int
	// Upper bound of parameter sets evaluated per iteration, 0 disables it
	MaxCombinations int
	// Wall-clock budget for the whole calibration, 0 disables it
	Budget time.Duration
	// Minimum win rate every regime must reach for an early stop
	RegimeFloor float64
	// Number of qualified candidates kept per iteration report
	TopN int
	// Render a progress bar per iteration
	Progress bool
	Logger   logger.Logger
}

// NewConfig creates a configuration reproducing the default three-step plan
func NewConfig() *Config {
	return &Config{
		Iterations:      DefaultIterations(),
		Periods:         DefaultPeriods(),
		Parallelism:     1,
		MaxCombinations: 0,
		RegimeFloor:     40,
		TopN:            5,
	}
}

// WithIterations replaces the calibration plan
func (c *Config) WithIterations(iterations ...Iteration) *Config {
	c.Iterations = iterations
	return c
}

// WithPeriods replaces the evaluation periods
func (c *Config) WithPeriods(periods ...core.Period) *Config {
	c.Periods = periods
	return c
}

// WithParallelism sets the number of parallel evaluations
func (c *Config) WithParallelism(n int) *Config {
	c.Parallelism = n
	return c
}

// WithMaxCombinations bounds the size of each iteration grid
func (c *Config) WithMaxCombinations(n int) *Config {
	c.MaxCombinations = n
	return c
}

// WithBudget bounds the wall-clock time of the calibration
func (c *Config) WithBudget(d time.Duration) *Config {
	c.Budget = d
	return c
}

// WithRegimeFloor sets the per-regime win rate required to stop early
func (c *Config) WithRegimeFloor(floor float64) *Config {
	c.RegimeFloor = floor
	return c
}

// WithTopN sets how many qualified candidates each iteration report keeps
func (c *Config) WithTopN(n int) *Config {
	c.TopN = n
	return c
}

// WithProgress enables the terminal progress bar
func (c *Config) WithProgress(enabled bool) *Config {
	c.Progress = enabled
	return c
}

// WithLogger sets the logger
func (c *Config) WithLogger(logger logger.Logger) *Config {
	c.Logger = logger
	return c
}

// ResultSorter orders candidates by descending score. Use with sort.Stable
// to keep grid order among ties.
type ResultSorter []core.CandidateConfig

func (s ResultSorter) Len() int           { return len(s) }
func (s ResultSorter) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s ResultSorter) Less(i, j int) bool { return s[i].Score > s[j].Score }
