package calibrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/raykavin/calibrator/pkg/backtesting"
	"github.com/raykavin/calibrator/pkg/core"
	"github.com/raykavin/calibrator/pkg/exchange"
	"github.com/raykavin/calibrator/pkg/logger"
	"github.com/raykavin/calibrator/pkg/optimizer"
	"github.com/raykavin/calibrator/pkg/storage"
	"github.com/raykavin/calibrator/pkg/strategy"
)

// Calibrator wires market data, the calibration loop, persistence and
// notifications into a single run
type Calibrator struct {
	feeder     core.Feeder
	config     *optimizer.Config
	symbols    []string
	timeframe  string
	simulator  *backtesting.Simulator
	storage    core.ResultStorage
	notifiers  []core.Notifier
	output     string
	resultsCSV string
	log        logger.Logger
	logLevel   *logger.Level
	now        func() time.Time
}

// Option is a functional option for configuring a Calibrator
type Option func(*Calibrator)

// WithSymbols replaces the default symbols
func WithSymbols(symbols ...string) Option {
	return func(c *Calibrator) {
		c.symbols = symbols
	}
}

// WithTimeframe sets the candle timeframe, "1d" by default
func WithTimeframe(timeframe string) Option {
	return func(c *Calibrator) {
		c.timeframe = timeframe
	}
}

// WithSimulator replaces the default simulator
func WithSimulator(simulator *backtesting.Simulator) Option {
	return func(c *Calibrator) {
		c.simulator = simulator
	}
}

// WithStorage stores the best configuration of every successful run
func WithStorage(storage core.ResultStorage) Option {
	return func(c *Calibrator) {
		c.storage = storage
	}
}

// WithNotifier registers a notifier for the final result
func WithNotifier(notifier core.Notifier) Option {
	return func(c *Calibrator) {
		c.notifiers = append(c.notifiers, notifier)
	}
}

// WithOutput writes the best configuration as a JSON document to path
func WithOutput(path string) Option {
	return func(c *Calibrator) {
		c.output = path
	}
}

// WithResultsCSV writes the ranked candidates of every iteration to path
func WithResultsCSV(path string) Option {
	return func(c *Calibrator) {
		c.resultsCSV = path
	}
}

// WithLogger replaces DefaultLog
func WithLogger(log logger.Logger) Option {
	return func(c *Calibrator) {
		c.log = log
	}
}

// WithLogLevel sets the log level of the configured logger, whatever the
// order of the options
func WithLogLevel(level logger.Level) Option {
	return func(c *Calibrator) {
		c.logLevel = &level
	}
}

func New(feeder core.Feeder, config *optimizer.Config, options ...Option) (*Calibrator, error) {
	if feeder == nil {
		return nil, errors.New("feeder cannot be nil")
	}
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	// the run owns a copy, the caller's config is left untouched
	runConfig := *config

	c := &Calibrator{
		feeder:    feeder,
		config:    &runConfig,
		symbols:   optimizer.DefaultSymbols,
		timeframe: "1d",
		simulator: backtesting.NewSimulator(strategy.NewAdaptive()),
		log:       DefaultLog,
		now:       time.Now,
	}

	for _, option := range options {
		option(c)
	}

	if len(c.symbols) == 0 {
		return nil, errors.New("at least one symbol must be provided")
	}
	if c.logLevel != nil {
		c.log.SetLevel(*c.logLevel)
	}
	if c.config.Logger == nil {
		c.config.Logger = c.log
	}

	return c, nil
}

// Run loads the market data once, runs the calibration and delivers the
// best configuration. The outcome is returned even when the run was cut
// short by the context, together with its error.
func (c *Calibrator) Run(ctx context.Context) (*optimizer.Outcome, error) {
	c.log.Infof("[SETUP] Calibrating %d symbols over %d periods (%s)", len(c.symbols), len(c.config.Periods), c.timeframe)

	data, err := exchange.LoadMarketData(ctx, c.feeder, c.symbols, c.config.Periods, c.timeframe, c.log)
	if err != nil {
		c.onError(err)
		return nil, fmt.Errorf("loading market data: %w", err)
	}

	evaluator := optimizer.NewBacktestEvaluator(data, c.config.Periods, c.simulator)
	calibration, err := optimizer.NewCalibration(c.config, evaluator)
	if err != nil {
		return nil, err
	}

	outcome, runErr := calibration.Run(ctx)
	if outcome == nil {
		c.onError(runErr)
		return nil, runErr
	}

	if outcome.Best == nil {
		c.log.Warn("No optimal configuration found")
		c.onError(fmt.Errorf("%w after %d iterations", core.ErrNoConfiguration, outcome.Performed))
		return outcome, runErr
	}

	if err := c.persist(outcome); err != nil {
		c.onError(err)
		return outcome, errors.Join(runErr, err)
	}

	c.notify(SummaryText(outcome))
	return outcome, runErr
}

func (c *Calibrator) persist(outcome *optimizer.Outcome) error {
	record := storage.NewRecord(*outcome.Best, outcome.Periods, outcome.Performed, c.now())

	if c.output != "" {
		if err := storage.SaveJSON(c.output, record); err != nil {
			return fmt.Errorf("saving %s: %w", c.output, err)
		}
		c.log.Infof("Configuration saved to %s", c.output)
	}

	if c.resultsCSV != "" {
		if err := optimizer.SaveResultsToCSV(rankedCandidates(outcome), c.resultsCSV); err != nil {
			return fmt.Errorf("saving %s: %w", c.resultsCSV, err)
		}
	}

	if c.storage != nil {
		if err := c.storage.SaveRecord(record); err != nil {
			return fmt.Errorf("storing record: %w", err)
		}
		c.log.Infof("Calibration %s stored", record.ID)
	}

	return nil
}

func rankedCandidates(outcome *optimizer.Outcome) []core.CandidateConfig {
	var candidates []core.CandidateConfig
	for _, report := range outcome.Iterations {
		candidates = append(candidates, report.Top...)
	}
	sort.Stable(optimizer.ResultSorter(candidates))
	return candidates
}

func (c *Calibrator) notify(text string) {
	for _, notifier := range c.notifiers {
		notifier.Notify(text)
	}
}

func (c *Calibrator) onError(err error) {
	if err == nil {
		return
	}
	for _, notifier := range c.notifiers {
		notifier.OnError(err)
	}
}
