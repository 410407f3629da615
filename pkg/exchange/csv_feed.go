package exchange

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/raykavin/calibrator/pkg/core"
	"github.com/samber/lo"
	"github.com/xhit/go-str2duration/v2"
)

var defaultHeaderMap = map[string]int{
	"time": 0, "open": 1, "close": 2, "low": 3, "high": 4, "volume": 5,
}

// SymbolFeed describes one CSV file of candles
type SymbolFeed struct {
	Symbol    string
	File      string
	Timeframe string
}

// CSVFeed serves candles loaded from CSV files, resampled to a target timeframe
type CSVFeed struct {
	Feeds                 map[string]SymbolFeed
	CandleSymbolTimeframe map[string][]core.Candle
}

// parseHeaders returns the column index of every header. Files without a
// header row (first cell is a unix timestamp) use the default layout.
func parseHeaders(headers []string) (headerMap map[string]int, hasHeader bool) {
	if _, err := strconv.ParseInt(headers[0], 10, 64); err == nil {
		return defaultHeaderMap, false
	}

	headerMap = make(map[string]int, len(headers))
	for index, header := range headers {
		headerMap[header] = index
	}

	for name := range defaultHeaderMap {
		if _, ok := headerMap[name]; !ok {
			return defaultHeaderMap, true
		}
	}

	return headerMap, true
}

// NewCSVFeed loads every feed and resamples it to targetTimeframe
func NewCSVFeed(targetTimeframe string, feeds ...SymbolFeed) (*CSVFeed, error) {
	csvFeed := &CSVFeed{
		Feeds:                 make(map[string]SymbolFeed),
		CandleSymbolTimeframe: make(map[string][]core.Candle),
	}

	for _, feed := range feeds {
		csvFeed.Feeds[feed.Symbol] = feed

		file, err := os.Open(feed.File)
		if err != nil {
			return nil, err
		}

		candles, err := ReadCandles(file, feed.Symbol)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", feed.File, err)
		}

		csvFeed.CandleSymbolTimeframe[csvFeed.feedTimeframeKey(feed.Symbol, feed.Timeframe)] = candles

		if err := csvFeed.resample(feed.Symbol, feed.Timeframe, targetTimeframe); err != nil {
			return nil, err
		}
	}

	return csvFeed, nil
}

// ReadCandles parses candles in the download format: time (unix seconds),
// open, close, low, high, volume. A header row is optional.
func ReadCandles(r io.Reader, symbol string) ([]core.Candle, error) {
	lines, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}

	if len(lines) == 0 {
		return nil, nil
	}

	headerMap, hasHeader := parseHeaders(lines[0])
	if hasHeader {
		lines = lines[1:]
	}

	candles := make([]core.Candle, 0, len(lines))
	for i, line := range lines {
		candle, err := parseCandleFromLine(line, headerMap, symbol)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

func parseCandleFromLine(line []string, headerMap map[string]int, symbol string) (core.Candle, error) {
	if len(line) < len(defaultHeaderMap) {
		return core.Candle{}, fmt.Errorf("expected %d columns, got %d", len(defaultHeaderMap), len(line))
	}

	timestamp, err := strconv.ParseInt(line[headerMap["time"]], 10, 64)
	if err != nil {
		return core.Candle{}, err
	}

	candle := core.Candle{
		Symbol: symbol,
		Time:   time.Unix(timestamp, 0).UTC(),
	}

	fields := []struct {
		name   string
		target *float64
	}{
		{"open", &candle.Open},
		{"close", &candle.Close},
		{"low", &candle.Low},
		{"high", &candle.High},
		{"volume", &candle.Volume},
	}

	for _, field := range fields {
		if *field.target, err = strconv.ParseFloat(line[headerMap[field.name]], 64); err != nil {
			return core.Candle{}, fmt.Errorf("%s: %w", field.name, err)
		}
	}

	return candle, nil
}

func (c CSVFeed) feedTimeframeKey(symbol, timeframe string) string {
	return fmt.Sprintf("%s--%s", symbol, timeframe)
}

// Limit keeps only the candles of the last duration of every series
func (c *CSVFeed) Limit(duration time.Duration) *CSVFeed {
	for key, candles := range c.CandleSymbolTimeframe {
		if len(candles) == 0 {
			continue
		}

		start := candles[len(candles)-1].Time.Add(-duration)
		c.CandleSymbolTimeframe[key] = lo.Filter(candles, func(candle core.Candle, _ int) bool {
			return candle.Time.After(start)
		})
	}
	return c
}

// isLastCandlePeriod reports whether the candle opened at t closes a target period
func isLastCandlePeriod(t time.Time, fromTimeframe, targetTimeframe string) (bool, error) {
	if fromTimeframe == targetTimeframe {
		return true, nil
	}

	fromDuration, err := str2duration.ParseDuration(fromTimeframe)
	if err != nil {
		return false, err
	}

	return isTimeOnPeriodBoundary(t.Add(fromDuration).UTC(), targetTimeframe)
}

func isTimeOnPeriodBoundary(t time.Time, targetTimeframe string) (bool, error) {
	switch targetTimeframe {
	case "1m":
		return t.Second() == 0, nil
	case "5m":
		return t.Minute()%5 == 0 && t.Second() == 0, nil
	case "15m":
		return t.Minute()%15 == 0 && t.Second() == 0, nil
	case "30m":
		return t.Minute()%30 == 0 && t.Second() == 0, nil
	case "1h":
		return t.Minute() == 0 && t.Second() == 0, nil
	case "2h":
		return t.Hour()%2 == 0 && t.Minute() == 0 && t.Second() == 0, nil
	case "4h":
		return t.Hour()%4 == 0 && t.Minute() == 0 && t.Second() == 0, nil
	case "12h":
		return t.Hour()%12 == 0 && t.Minute() == 0 && t.Second() == 0, nil
	case "1d":
		return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0, nil
	case "1w":
		return t.Weekday() == time.Monday && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0, nil
	default:
		return false, fmt.Errorf("invalid timeframe: %s", targetTimeframe)
	}
}

// resample aggregates the source series into the target timeframe. Leading
// candles before the first period boundary and a trailing incomplete
// period are dropped.
func (c *CSVFeed) resample(symbol, sourceTimeframe, targetTimeframe string) error {
	if sourceTimeframe == targetTimeframe {
		return nil
	}

	source := c.CandleSymbolTimeframe[c.feedTimeframeKey(symbol, sourceTimeframe)]
	if len(source) == 0 {
		return nil
	}

	var (
		target   = make([]core.Candle, 0, len(source)/4+1)
		current  core.Candle
		inPeriod bool
	)

	for _, candle := range source {
		if !inPeriod {
			first, err := isTimeOnPeriodBoundary(candle.Time.UTC(), targetTimeframe)
			if err != nil {
				return err
			}
			if !first {
				continue
			}
			current = candle
			inPeriod = true
		} else {
			current.High = max(current.High, candle.High)
			current.Low = min(current.Low, candle.Low)
			current.Close = candle.Close
			current.Volume += candle.Volume
		}

		last, err := isLastCandlePeriod(candle.Time, sourceTimeframe, targetTimeframe)
		if err != nil {
			return err
		}
		if last {
			target = append(target, current)
			inPeriod = false
		}
	}

	c.CandleSymbolTimeframe[c.feedTimeframeKey(symbol, targetTimeframe)] = target
	return nil
}

// CandlesByPeriod returns the candles opened within [start, end]
func (c CSVFeed) CandlesByPeriod(_ context.Context, symbol, timeframe string, start, end time.Time) ([]core.Candle, error) {
	candles, ok := c.CandleSymbolTimeframe[c.feedTimeframeKey(symbol, timeframe)]
	if !ok {
		return nil, fmt.Errorf("%w: no %s candles for %s", core.ErrInsufficientData, timeframe, symbol)
	}

	return lo.Filter(candles, func(candle core.Candle, _ int) bool {
		return !candle.Time.Before(start) && !candle.Time.After(end)
	}), nil
}
