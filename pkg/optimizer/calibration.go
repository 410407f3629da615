package optimizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/raykavin/calibrator/pkg/core"
	"github.com/raykavin/calibrator/pkg/logger"
)

// IterationReport describes what a single iteration explored and found
type IterationReport struct {
	Number      int
	Description string
	Targets     Targets
	Grid        []core.Parameter
	Tested      int
	Truncated   int
	Qualified   int
	Top         []core.CandidateConfig
	Duration    time.Duration
}

// Outcome is the result of a calibration run. Best is nil when no parameter
// set qualified in any iteration.
type Outcome struct {
	Best       *core.CandidateConfig
	Iterations []IterationReport
	Periods    []core.Period
	Performed  int
	EarlyStop  bool
}

// Calibration searches the parameter space iteratively, refining the grid
// around the best candidates of the previous successful iteration
type Calibration struct {
	config    *Config
	evaluator Evaluator
	log       logger.Logger
}

func NewCalibration(config *Config, evaluator Evaluator) (*Calibration, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if evaluator == nil {
		return nil, errors.New("evaluator cannot be nil")
	}
	if len(config.Iterations) == 0 {
		return nil, errors.New("at least one iteration must be provided")
	}
	if config.Parallelism < 1 {
		config.Parallelism = 1
	}

	return &Calibration{
		config:    config,
		evaluator: evaluator,
		log:       config.Logger,
	}, nil
}

// Run executes the calibration plan. When the context is cancelled or the
// budget runs out, the best candidate found so far is returned together
// with the context error.
func (c *Calibration) Run(ctx context.Context) (*Outcome, error) {
	if c.config.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Budget)
		defer cancel()
	}

	outcome := &Outcome{Periods: c.config.Periods}
	initial := c.config.Iterations[0].Grid
	if len(initial) == 0 {
		initial = DefaultGrid()
	}

	// top candidates of each iteration that qualified something
	var history [][]core.CandidateConfig

	for i, iteration := range c.config.Iterations {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		number := i + 1
		grid := initial
		if i > 0 && len(history) > 0 {
			refined, err := Refine(history[len(history)-1])
			if err != nil {
				return outcome, fmt.Errorf("refining iteration %d: %w", number, err)
			}
			grid = refined
		}

		report, err := c.runIteration(ctx, number, iteration, grid)
		if err != nil {
			return outcome, err
		}
		outcome.Iterations = append(outcome.Iterations, report)
		outcome.Performed = number

		if report.Qualified == 0 {
			c.warnf("No configuration met the targets in iteration %d", number)
			continue
		}

		top := report.Top[0]
		if outcome.Best == nil || top.Score > outcome.Best.Score {
			outcome.Best = &top
		}
		history = append(history, report.Top[:min(refineTop, len(report.Top))])

		if iteration.Targets.Met(top.Metrics) && RegimesConsistent(top.Metrics, c.config.Periods, c.config.RegimeFloor) {
			c.logf("Targets reached in iteration %d", number)
			outcome.EarlyStop = true
			break
		}
	}

	return outcome, nil
}

func (c *Calibration) runIteration(ctx context.Context, number int, iteration Iteration, grid []core.Parameter) (IterationReport, error) {
	start := time.Now()
	report := IterationReport{
		Number:      number,
		Description: iteration.Description,
		Targets:     iteration.Targets,
		Grid:        grid,
	}

	sets, err := GenerateParameterSets(DefaultParameters, grid, c.config.MaxCombinations)
	if err != nil {
		return report, fmt.Errorf("iteration %d: %w", number, err)
	}

	if total := GridSize(grid); total > len(sets) {
		report.Truncated = total - len(sets)
		c.warnf("Limiting parameter combinations from %d to %d", total, len(sets))
	}

	c.logf("Iteration %d/%d: %s, %d combinations", number, len(c.config.Iterations), iteration.Description, len(sets))

	results, err := c.runEvaluations(ctx, sets, fmt.Sprintf("iteration %d", number))
	if err != nil {
		return report, err
	}
	report.Tested = len(results)

	qualified := lo.FilterMap(results, func(result *Result, _ int) (core.CandidateConfig, bool) {
		if !iteration.Targets.Met(result.Metrics) {
			return core.CandidateConfig{}, false
		}
		return core.CandidateConfig{
			Parameters: result.Parameters,
			Metrics:    result.Metrics,
			Score:      Fitness(result.Metrics),
			Trades:     result.Trades,
		}, true
	})
	sort.Stable(ResultSorter(qualified))

	report.Qualified = len(qualified)
	topN := max(c.config.TopN, refineTop)
	report.Top = qualified[:min(topN, len(qualified))]
	report.Duration = time.Since(start)

	c.logf("Iteration %d completed: %d/%d qualified in %s", number, report.Qualified, report.Tested, report.Duration.Round(time.Millisecond))
	return report, nil
}

// runEvaluations evaluates every parameter set on a bounded worker pool.
// Results keep the order of sets.
func (c *Calibration) runEvaluations(ctx context.Context, sets []core.ParameterSet, description string) ([]*Result, error) {
	results := make([]*Result, len(sets))
	bar := c.progressBar(len(sets), description)
	defer func() { _ = bar.Close() }()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Parallelism)

	for i, params := range sets {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			result, err := c.evaluator.Evaluate(gctx, params)
			if err != nil {
				return fmt.Errorf("evaluation error: %w", err)
			}
			results[i] = result
			_ = bar.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

func (c *Calibration) progressBar(total int, description string) *progressbar.ProgressBar {
	if !c.config.Progress {
		return progressbar.DefaultSilent(int64(total), description)
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)
}

func (c *Calibration) logf(format string, args ...any) {
	if c.log != nil {
		c.log.Infof(format, args...)
	}
}

func (c *Calibration) warnf(format string, args ...any) {
	if c.log != nil {
		c.log.Warnf(format, args...)
	}
}
