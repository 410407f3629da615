package exchange

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/calibrator/pkg/core"
)

func writeCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

func hourlyLines(start time.Time, hours int) []string {
	lines := []string{"time,open,close,low,high,volume"}
	for i := 0; i < hours; i++ {
		ts := start.Add(time.Duration(i) * time.Hour).Unix()
		price := 100 + float64(i)
		lines = append(lines, fmt.Sprintf("%d,%.1f,%.1f,%.1f,%.1f,1", ts, price, price+0.5, price-1, price+2))
	}
	return lines
}

func TestReadCandles(t *testing.T) {
	t.Run("with header", func(t *testing.T) {
		candles, err := ReadCandles(strings.NewReader("time,open,close,low,high,volume\n1704067200,1,2,0.5,3,10\n"), "BTCUSDT")
		require.NoError(t, err)
		require.Len(t, candles, 1)
		assert.Equal(t, core.Candle{
			Symbol: "BTCUSDT",
			Time:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Open:   1, Close: 2, Low: 0.5, High: 3, Volume: 10,
		}, candles[0])
	})

	t.Run("reordered header", func(t *testing.T) {
		candles, err := ReadCandles(strings.NewReader("volume,high,low,close,open,time\n10,3,0.5,2,1,1704067200\n"), "BTCUSDT")
		require.NoError(t, err)
		require.Len(t, candles, 1)
		assert.Equal(t, 1.0, candles[0].Open)
		assert.Equal(t, 10.0, candles[0].Volume)
	})

	t.Run("without header", func(t *testing.T) {
		candles, err := ReadCandles(strings.NewReader("1704067200,1,2,0.5,3,10\n1704153600,2,3,1.5,4,20\n"), "ETHUSDT")
		require.NoError(t, err)
		require.Len(t, candles, 2)
		assert.Equal(t, 20.0, candles[1].Volume)
	})

	t.Run("bad number", func(t *testing.T) {
		_, err := ReadCandles(strings.NewReader("1704067200,1,x,0.5,3,10\n"), "ETHUSDT")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "close")
	})
}

func TestCSVFeed_CandlesByPeriod(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	path := writeCSV(t, hourlyLines(start, 24)...)

	feed, err := NewCSVFeed("1h", SymbolFeed{Symbol: "BTCUSDT", File: path, Timeframe: "1h"})
	require.NoError(t, err)

	candles, err := feed.CandlesByPeriod(context.Background(), "BTCUSDT", "1h", start.Add(2*time.Hour), start.Add(5*time.Hour))
	require.NoError(t, err)
	require.Len(t, candles, 4)
	assert.True(t, candles[0].Time.Equal(start.Add(2*time.Hour)))
	assert.True(t, candles[3].Time.Equal(start.Add(5*time.Hour)))

	_, err = feed.CandlesByPeriod(context.Background(), "SOLUSDT", "1h", start, start.Add(time.Hour))
	require.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestCSVFeed_Resample(t *testing.T) {
	// starts mid-period: the first two hours precede a 4h boundary
	start := time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)
	path := writeCSV(t, hourlyLines(start, 11)...)

	feed, err := NewCSVFeed("4h", SymbolFeed{Symbol: "BTCUSDT", File: path, Timeframe: "1h"})
	require.NoError(t, err)

	candles, err := feed.CandlesByPeriod(context.Background(), "BTCUSDT", "4h", start, start.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, candles, 2)

	first := candles[0]
	assert.True(t, first.Time.Equal(time.Date(2024, 1, 1, 4, 0, 0, 0, time.UTC)))
	assert.Equal(t, 102.0, first.Open)
	assert.Equal(t, 105.5, first.Close)
	assert.Equal(t, 101.0, first.Low)
	assert.Equal(t, 107.0, first.High)
	assert.Equal(t, 4.0, first.Volume)

	assert.True(t, candles[1].Time.Equal(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)))
}

func TestCSVFeed_Limit(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	path := writeCSV(t, hourlyLines(start, 10)...)

	feed, err := NewCSVFeed("1h", SymbolFeed{Symbol: "BTCUSDT", File: path, Timeframe: "1h"})
	require.NoError(t, err)

	feed.Limit(3 * time.Hour)
	candles, err := feed.CandlesByPeriod(context.Background(), "BTCUSDT", "1h", start, start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, candles, 3)
}

func TestIsTimeOnPeriodBoundary(t *testing.T) {
	ok, err := isTimeOnPeriodBoundary(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "1d")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = isTimeOnPeriodBoundary(time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC), "2h")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = isTimeOnPeriodBoundary(time.Now(), "3d")
	require.Error(t, err)
}
