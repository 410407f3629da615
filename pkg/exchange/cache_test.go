package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/calibrator/pkg/core"
)

type countingFeeder struct {
	calls   int
	candles []core.Candle
	err     error
}

func (f *countingFeeder) CandlesByPeriod(_ context.Context, symbol, _ string, start, end time.Time) ([]core.Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	var out []core.Candle
	for _, candle := range f.candles {
		if candle.Symbol == symbol && !candle.Time.Before(start) && !candle.Time.After(end) {
			out = append(out, candle)
		}
	}
	return out, nil
}

func dailyCandles(symbol string, start time.Time, days int) []core.Candle {
	candles := make([]core.Candle, days)
	for i := range candles {
		price := 100 + float64(i%7)
		candles[i] = core.Candle{
			Symbol: symbol,
			Time:   start.AddDate(0, 0, i),
			Open:   price, Close: price + 1, Low: price - 2, High: price + 2, Volume: 1000,
		}
	}
	return candles
}

func TestCache_CandlesByPeriod(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feeder := &countingFeeder{candles: dailyCandles("BTCUSDT", start, 30)}

	cache, err := NewCache(feeder, ":memory:", time.Hour)
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	first, err := cache.CandlesByPeriod(ctx, "BTCUSDT", "1d", start, start.AddDate(0, 0, 9))
	require.NoError(t, err)
	require.Len(t, first, 10)

	second, err := cache.CandlesByPeriod(ctx, "BTCUSDT", "1d", start, start.AddDate(0, 0, 9))
	require.NoError(t, err)
	require.Len(t, second, 10)
	assert.Equal(t, 1, feeder.calls)
	assert.True(t, second[3].Time.Equal(first[3].Time))
	assert.Equal(t, first[3].Close, second[3].Close)

	// a different range is a different entry
	_, err = cache.CandlesByPeriod(ctx, "BTCUSDT", "1d", start, start.AddDate(0, 0, 4))
	require.NoError(t, err)
	assert.Equal(t, 2, feeder.calls)
}

func TestCache_EmptyAndErrorsAreNotCached(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feeder := &countingFeeder{}

	cache, err := NewCache(feeder, ":memory:", 0)
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		candles, err := cache.CandlesByPeriod(ctx, "ETHUSDT", "1d", start, start.AddDate(0, 0, 5))
		require.NoError(t, err)
		assert.Empty(t, candles)
	}
	assert.Equal(t, 2, feeder.calls)

	feeder.err = errors.New("boom")
	_, err = cache.CandlesByPeriod(ctx, "ETHUSDT", "1d", start, start.AddDate(0, 0, 1))
	require.EqualError(t, err, "boom")
}
