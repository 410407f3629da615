package calibrator

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/calibrator/pkg/core"
	"github.com/raykavin/calibrator/pkg/logger"
	"github.com/raykavin/calibrator/pkg/logger/zerolog"
	"github.com/raykavin/calibrator/pkg/optimizer"
	"github.com/raykavin/calibrator/pkg/storage"
)

type waveFeeder struct{}

func (waveFeeder) CandlesByPeriod(_ context.Context, symbol, _ string, start, end time.Time) ([]core.Candle, error) {
	var candles []core.Candle
	for i, t := 0, start; !t.After(end); i, t = i+1, t.AddDate(0, 0, 1) {
		price := 100 + 15*math.Sin(float64(i)/4)
		candles = append(candles, core.Candle{
			Symbol: symbol,
			Time:   t,
			Open:   price - 0.5,
			Close:  price,
			Low:    price - 2,
			High:   price + 2,
			Volume: 1000 + 400*math.Cos(float64(i)/3),
		})
	}
	return candles, nil
}

type recordingNotifier struct {
	messages []string
	errors   []error
}

func (n *recordingNotifier) Notify(text string) { n.messages = append(n.messages, text) }
func (n *recordingNotifier) OnError(err error)  { n.errors = append(n.errors, err) }

func testConfig(targets optimizer.Targets) *optimizer.Config {
	periods := []core.Period{
		{Name: "BULL_2024", Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), Regime: core.RegimeBull},
		{Name: "BEAR_2024", Start: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), Regime: core.RegimeBear},
	}

	return optimizer.NewConfig().
		WithPeriods(periods...).
		WithIterations(optimizer.Iteration{
			Description: "single",
			Grid: []core.Parameter{
				{Name: core.ParamMinScore, Values: []float64{3.5, 4.5}},
				{Name: core.ParamTakeProfitPct, Values: []float64{0.05, 0.1}},
			},
			Targets: targets,
		})
}

func TestCalibrator_Run(t *testing.T) {
	store, err := storage.FromMemory(zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	notifier := &recordingNotifier{}
	output := filepath.Join(t.TempDir(), "best.json")
	resultsCSV := filepath.Join(t.TempDir(), "results.csv")

	c, err := New(waveFeeder{}, testConfig(optimizer.Targets{}),
		WithSymbols("BTCUSDT", "ETHUSDT"),
		WithLogger(zerolog.Nop()),
		WithStorage(store),
		WithNotifier(notifier),
		WithOutput(output),
		WithResultsCSV(resultsCSV),
	)
	require.NoError(t, err)

	outcome, err := c.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, outcome.Best)
	assert.Equal(t, 1, outcome.Performed)
	assert.Equal(t, 4, outcome.Iterations[0].Tested)

	records, err := store.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, outcome.Best.Parameters, records[0].Parameters)
	assert.Equal(t, []string{"BULL_2024", "BEAR_2024"}, records[0].PeriodsUsed)

	saved, err := storage.LoadJSON(output)
	require.NoError(t, err)
	assert.Equal(t, records[0].ID, saved.ID)

	content, err := os.ReadFile(resultsCSV)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "rank,score,"))

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "Subject: Calibration")
	assert.Empty(t, notifier.errors)

	var buf bytes.Buffer
	Summary(&buf, outcome)
	assert.Contains(t, buf.String(), "Optimal configuration found")
}

func TestCalibrator_NoConfiguration(t *testing.T) {
	notifier := &recordingNotifier{}
	c, err := New(waveFeeder{}, testConfig(optimizer.Targets{MinTrades: 1_000_000}),
		WithSymbols("BTCUSDT"),
		WithLogger(zerolog.Nop()),
		WithNotifier(notifier),
	)
	require.NoError(t, err)

	outcome, err := c.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Nil(t, outcome.Best)
	assert.Empty(t, notifier.messages)
	require.Len(t, notifier.errors, 1)
	assert.ErrorIs(t, notifier.errors[0], core.ErrNoConfiguration)

	var buf bytes.Buffer
	Summary(&buf, outcome)
	assert.Contains(t, buf.String(), "No optimal configuration found")
}

type failingFeeder struct{}

func (failingFeeder) CandlesByPeriod(context.Context, string, string, time.Time, time.Time) ([]core.Candle, error) {
	return nil, errors.New("exchange down")
}

func TestCalibrator_NoMarketData(t *testing.T) {
	notifier := &recordingNotifier{}
	c, err := New(failingFeeder{}, testConfig(optimizer.Targets{}), WithLogger(zerolog.Nop()), WithNotifier(notifier))
	require.NoError(t, err)

	_, err = c.Run(context.Background())
	require.ErrorIs(t, err, core.ErrInsufficientData)
	require.Len(t, notifier.errors, 1)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, optimizer.NewConfig())
	require.Error(t, err)

	_, err = New(waveFeeder{}, nil)
	require.Error(t, err)

	_, err = New(waveFeeder{}, optimizer.NewConfig(), WithSymbols())
	require.Error(t, err)
}

// levelLogger records its level instead of touching the global one
type levelLogger struct {
	logger.Logger
	level logger.Level
}

func (l *levelLogger) SetLevel(level logger.Level) { l.level = level }
func (l *levelLogger) GetLevel() logger.Level      { return l.level }

func TestNew_LogLevelAndConfig(t *testing.T) {
	fallback := &levelLogger{Logger: zerolog.Nop(), level: logger.InfoLevel}
	previous := DefaultLog
	DefaultLog = fallback
	t.Cleanup(func() { DefaultLog = previous })

	injected := &levelLogger{Logger: zerolog.Nop(), level: logger.InfoLevel}
	config := optimizer.NewConfig()

	c, err := New(waveFeeder{}, config, WithLogLevel(logger.DebugLevel), WithLogger(injected))
	require.NoError(t, err)

	assert.Equal(t, logger.DebugLevel, injected.level)
	assert.Equal(t, logger.InfoLevel, fallback.level)

	assert.Nil(t, config.Logger)
	assert.Equal(t, logger.Logger(injected), c.config.Logger)
}

func TestRate(t *testing.T) {
	tests := []struct {
		winRate, profitFactor float64
		expected              Rating
	}{
		{60, 2.5, RatingExcellent},
		{55, 2.0, RatingExcellent},
		{60, 1.9, RatingGood},
		{50, 1.5, RatingGood},
		{49, 3.0, RatingAcceptable},
		{45, 1.2, RatingAcceptable},
		{44.9, 5, RatingInsufficient},
		{70, 1.1, RatingInsufficient},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Rate(core.Metrics{WinRate: tt.winRate, ProfitFactor: tt.profitFactor}),
			"wr=%v pf=%v", tt.winRate, tt.profitFactor)
	}
}

func TestProject(t *testing.T) {
	projection := Project(core.Metrics{TotalReturn: 27, TotalTrades: 18})
	assert.InDelta(t, 3.0, projection.MonthlyReturn, 1e-9)
	assert.InDelta(t, 36.5, projection.AnnualReturn, 1e-9)
	assert.InDelta(t, 2.0, projection.TradesPerMonth, 1e-9)
}

func TestSummary(t *testing.T) {
	trades := []core.Trade{{ReturnPct: 10}, {ReturnPct: -4}, {ReturnPct: 6}, {ReturnPct: 8}}
	outcome := &optimizer.Outcome{
		Best: &core.CandidateConfig{
			Parameters: optimizer.DefaultParameters,
			Metrics: core.Metrics{
				TotalTrades: 4, WinningTrades: 3, LosingTrades: 1,
				WinRate: 75, ProfitFactor: math.Inf(1), TotalReturn: 20,
				Regimes: map[core.Regime]core.RegimeMetrics{core.RegimeBear: {WinRate: 50, Return: 6, Trades: 2}},
			},
			Score:  70,
			Trades: trades,
		},
		Iterations: []optimizer.IterationReport{{Number: 1, Description: "Wide initial search", Tested: 10, Qualified: 2}},
		Periods: []core.Period{{
			Name:   "Q1_2024",
			Start:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:    time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			Regime: core.RegimeBull,
		}},
		Performed: 1,
		EarlyStop: true,
	}

	var buf bytes.Buffer
	Summary(&buf, outcome)
	out := buf.String()

	assert.Contains(t, out, "EARLY STOP")
	assert.Contains(t, out, "1 PERFORMED")
	assert.Contains(t, out, "Q1_2024")
	assert.Contains(t, out, "2024-03-31")
	assert.Contains(t, out, "RATING: EXCELLENT")
	assert.Contains(t, out, "inf")
	assert.Contains(t, out, "BEAR")
	assert.Contains(t, out, "TAKE_PROFIT_PCT")
	assert.Contains(t, out, "10.0 %")
	assert.Contains(t, out, "------ RETURN -------")
	assert.Contains(t, out, "CONFIDENCE INTERVAL")

	text := SummaryText(outcome)
	assert.Contains(t, text, "Subject: Calibration EXCELLENT (score 70.00)")
	assert.Contains(t, text, "early stop: true")
}
