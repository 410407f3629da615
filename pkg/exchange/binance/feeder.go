package binance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/jpillora/backoff"

	"github.com/raykavin/calibrator/pkg/core"
	"github.com/raykavin/calibrator/pkg/logger"
)

// klinesLimit is the maximum page size accepted by the klines endpoint
const klinesLimit = 1000

// Feeder downloads historical candles from the public Binance spot API.
// No credentials are needed.
type Feeder struct {
	client     *binance.Client
	log        logger.Logger
	maxRetries int
	backoff    func() *backoff.Backoff
}

// FeederOption configures a Feeder
type FeederOption func(*Feeder)

// WithBaseURL points the client at a custom REST endpoint
func WithBaseURL(url string) FeederOption {
	return func(f *Feeder) {
		f.client.BaseURL = url
	}
}

// WithTestNet uses the Binance spot testnet
func WithTestNet() FeederOption {
	return func(f *Feeder) {
		f.client.BaseURL = binance.BaseAPITestnetURL
	}
}

// WithRetries sets how many times a failed page request is retried
func WithRetries(retries int) FeederOption {
	return func(f *Feeder) {
		f.maxRetries = retries
	}
}

// WithBackoff replaces the retry delay policy
func WithBackoff(min, max time.Duration) FeederOption {
	return func(f *Feeder) {
		f.backoff = func() *backoff.Backoff {
			return &backoff.Backoff{Min: min, Max: max, Factor: 2, Jitter: true}
		}
	}
}

func NewFeeder(log logger.Logger, options ...FeederOption) *Feeder {
	feeder := &Feeder{
		client:     binance.NewClient("", ""),
		log:        log,
		maxRetries: 3,
		backoff:    setupBackoffRetry,
	}

	for _, option := range options {
		option(feeder)
	}

	return feeder
}

// setupBackoffRetry creates a backoff with sensible defaults
func setupBackoffRetry() *backoff.Backoff {
	return &backoff.Backoff{
		Min: 100 * time.Millisecond,
		Max: 1 * time.Second,
	}
}

// CandlesByPeriod pages through the klines of symbol opened within [start, end]
func (f *Feeder) CandlesByPeriod(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]core.Candle, error) {
	var candles []core.Candle

	from := start.UnixMilli()
	to := end.UnixMilli()

	for from <= to {
		page, err := f.klines(ctx, symbol, timeframe, from, to)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s %s: %w", symbol, timeframe, err)
		}

		for _, k := range page {
			candles = append(candles, convertKlineToCandle(symbol, *k))
		}

		if len(page) < klinesLimit {
			break
		}
		from = page[len(page)-1].OpenTime + 1
	}

	return candles, nil
}

// klines fetches one page, retrying failures with backoff
func (f *Feeder) klines(ctx context.Context, symbol, timeframe string, from, to int64) ([]*binance.Kline, error) {
	retry := f.backoff()

	for attempt := 0; ; attempt++ {
		data, err := f.client.NewKlinesService().
			Symbol(symbol).
			Interval(timeframe).
			StartTime(from).
			EndTime(to).
			Limit(klinesLimit).
			Do(ctx)
		if err == nil {
			return data, nil
		}

		if attempt >= f.maxRetries || ctx.Err() != nil {
			return nil, err
		}

		delay := retry.Duration()
		f.log.Warnf("klines request for %s failed (attempt %d/%d), retrying in %s: %v",
			symbol, attempt+1, f.maxRetries, delay, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// convertKlineToCandle converts a Binance kline to a core.Candle
func convertKlineToCandle(symbol string, k binance.Kline) core.Candle {
	candle := core.Candle{
		Symbol: symbol,
		Time:   time.UnixMilli(k.OpenTime).UTC(),
	}

	candle.Open, _ = strconv.ParseFloat(k.Open, 64)
	candle.Close, _ = strconv.ParseFloat(k.Close, 64)
	candle.High, _ = strconv.ParseFloat(k.High, 64)
	candle.Low, _ = strconv.ParseFloat(k.Low, 64)
	candle.Volume, _ = strconv.ParseFloat(k.Volume, 64)

	return candle
}
