package backtesting

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/xhit/go-str2duration/v2"

	"github.com/raykavin/calibrator/pkg/core"
	"github.com/raykavin/calibrator/pkg/logger"
)

const (
	batchSize        = 500
	defaultPrecision = 8
)

// CSV header names understood by exchange.CSVFeed
var csvHeaders = []string{"time", "open", "close", "low", "high", "volume"}

// Downloader saves historical candles from a feeder as CSV
type Downloader struct {
	feeder core.Feeder
	log    logger.Logger
}

func NewDownloader(feeder core.Feeder, log logger.Logger) Downloader {
	return Downloader{
		feeder: feeder,
		log:    log,
	}
}

// Parameters defines the time range for data download
type Parameters struct {
	Start     time.Time
	End       time.Time
	Precision int
	Progress  bool
}

type Option func(*Parameters)

// WithInterval sets specific start and end times for the download
func WithInterval(start, end time.Time) Option {
	return func(parameters *Parameters) {
		parameters.Start = start
		parameters.End = end
	}
}

// WithDays sets the download period to a number of days back from now
func WithDays(days int) Option {
	return func(parameters *Parameters) {
		parameters.Start = time.Now().AddDate(0, 0, -days)
		parameters.End = time.Now()
	}
}

// WithPrecision sets the number of decimals written for prices
func WithPrecision(precision int) Option {
	return func(parameters *Parameters) {
		parameters.Precision = precision
	}
}

// WithoutProgress disables the terminal progress bar
func WithoutProgress() Option {
	return func(parameters *Parameters) {
		parameters.Progress = false
	}
}

func candleCount(start, end time.Time, timeframe string) (int, time.Duration, error) {
	interval, err := str2duration.ParseDuration(timeframe)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid timeframe %q: %w", timeframe, err)
	}
	if interval <= 0 {
		return 0, 0, fmt.Errorf("invalid timeframe %q", timeframe)
	}
	return int(end.Sub(start)/interval) + 1, interval, nil
}

// Download fetches candles for symbol and writes them to outputPath
func (d Downloader) Download(ctx context.Context, symbol, timeframe, outputPath string, options ...Option) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	return d.Write(ctx, file, symbol, timeframe, options...)
}

// Write fetches candles for symbol and writes them as CSV to w
func (d Downloader) Write(ctx context.Context, w io.Writer, symbol, timeframe string, options ...Option) error {
	now := time.Now()
	parameters := &Parameters{
		Start:     now.AddDate(0, -1, 0),
		End:       now,
		Precision: defaultPrecision,
		Progress:  true,
	}
	for _, option := range options {
		option(parameters)
	}
	normalizeTimeParameters(parameters)

	count, interval, err := candleCount(parameters.Start, parameters.End, timeframe)
	if err != nil {
		return err
	}

	d.log.Infof("Downloading %d candles of %s for %s", count, timeframe, symbol)

	var bar *progressbar.ProgressBar
	if parameters.Progress {
		bar = progressbar.Default(int64(count))
	} else {
		bar = progressbar.DefaultSilent(int64(count))
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeaders); err != nil {
		return err
	}

	missing := 0
	for batchStart := parameters.Start; batchStart.Before(parameters.End); batchStart = batchStart.Add(interval * batchSize) {
		batchEnd := batchStart.Add(interval * batchSize)
		last := !batchEnd.Before(parameters.End)
		if last {
			batchEnd = parameters.End
		} else {
			// avoid overlapping with the next batch start
			batchEnd = batchEnd.Add(-time.Second)
		}

		candles, err := d.feeder.CandlesByPeriod(ctx, symbol, timeframe, batchStart, batchEnd)
		if err != nil {
			return err
		}

		for _, candle := range candles {
			if err := writer.Write(candle.ToSlice(parameters.Precision)); err != nil {
				return err
			}
		}

		if !last && len(candles) < batchSize {
			missing += batchSize - len(candles)
		}

		if err := bar.Add(len(candles)); err != nil {
			d.log.Warnf("Failed to update progress bar: %s", err)
		}
	}

	if err := bar.Close(); err != nil {
		d.log.Warnf("Failed to close progress bar: %s", err)
	}

	if missing > 0 {
		d.log.Warnf("%d missing candles", missing)
	}

	writer.Flush()
	return writer.Error()
}

// normalizeTimeParameters moves the start to midnight and keeps the end out of the future
func normalizeTimeParameters(parameters *Parameters) {
	parameters.Start = time.Date(
		parameters.Start.Year(),
		parameters.Start.Month(),
		parameters.Start.Day(),
		0, 0, 0, 0, time.UTC,
	)

	now := time.Now()
	if parameters.End.Before(now) {
		parameters.End = time.Date(
			parameters.End.Year(),
			parameters.End.Month(),
			parameters.End.Day(),
			0, 0, 0, 0, time.UTC,
		)
	} else {
		parameters.End = now
	}
}
