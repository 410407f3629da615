package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/raykavin/calibrator/pkg/core"
)

// Cache is a core.Feeder that keeps the candles of a slower feeder in
// buntdb. Entries expire after the configured TTL; a zero TTL never expires.
type Cache struct {
	feeder core.Feeder
	db     *buntdb.DB
	ttl    time.Duration
}

// NewCache opens the buntdb file at path (":memory:" for a process-local cache)
func NewCache(feeder core.Feeder, path string, ttl time.Duration) (*Cache, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	return &Cache{
		feeder: feeder,
		db:     db,
		ttl:    ttl,
	}, nil
}

func cacheKey(symbol, timeframe string, start, end time.Time) string {
	return fmt.Sprintf("candles:%s:%s:%d:%d", symbol, timeframe, start.Unix(), end.Unix())
}

// CandlesByPeriod serves a cached range when present and otherwise fetches
// it from the wrapped feeder. Empty results are not cached.
func (c *Cache) CandlesByPeriod(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]core.Candle, error) {
	key := cacheKey(symbol, timeframe, start, end)

	candles, err := c.get(key)
	if err == nil {
		return candles, nil
	}
	if !errors.Is(err, buntdb.ErrNotFound) {
		return nil, err
	}

	candles, err = c.feeder.CandlesByPeriod(ctx, symbol, timeframe, start, end)
	if err != nil {
		return nil, err
	}

	if len(candles) > 0 {
		if err := c.set(key, candles); err != nil {
			return nil, err
		}
	}

	return candles, nil
}

func (c *Cache) get(key string) ([]core.Candle, error) {
	var candles []core.Candle

	err := c.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(key)
		if err != nil {
			return err
		}

		if err := json.Unmarshal([]byte(value), &candles); err != nil {
			return fmt.Errorf("failed to unmarshal candles: %w", err)
		}
		return nil
	})

	return candles, err
}

func (c *Cache) set(key string, candles []core.Candle) error {
	content, err := json.Marshal(candles)
	if err != nil {
		return fmt.Errorf("failed to marshal candles: %w", err)
	}

	var options *buntdb.SetOptions
	if c.ttl > 0 {
		options = &buntdb.SetOptions{Expires: true, TTL: c.ttl}
	}

	return c.db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set(key, string(content), options); err != nil {
			return fmt.Errorf("failed to store candles: %w", err)
		}
		return nil
	})
}

// Close closes the database
func (c *Cache) Close() error {
	return c.db.Close()
}
