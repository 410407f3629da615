package exchange

import (
	"context"
	"fmt"

	"github.com/raykavin/calibrator/pkg/core"
	"github.com/raykavin/calibrator/pkg/indicator"
	"github.com/raykavin/calibrator/pkg/logger"
)

// MinBars is the shortest series worth simulating: the indicator warm-up
// plus at least one tradable bar
const MinBars = 21

// LoadMarketData fetches every symbol over every period once and augments
// the candles with indicators. Series that fail to load or are shorter than
// MinBars are skipped with a warning. It fails only when nothing loaded.
func LoadMarketData(ctx context.Context, feeder core.Feeder, symbols []string, periods []core.Period,
	timeframe string, log logger.Logger) (core.MarketData, error) {

	data := make(core.MarketData)
	loaded := 0

	for _, symbol := range symbols {
		for _, period := range periods {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			candles, err := feeder.CandlesByPeriod(ctx, symbol, timeframe, period.Start, period.End)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.WithError(err).Warnf("skipping %s in %s: data unavailable", symbol, period.Name)
				continue
			}

			if len(candles) < MinBars {
				log.Warnf("skipping %s in %s: %d candles, need at least %d", symbol, period.Name, len(candles), MinBars)
				continue
			}

			data.Set(symbol, period.Name, indicator.Augment(candles))
			loaded++
			log.Debugf("loaded %d candles for %s in %s", len(candles), symbol, period.Name)
		}
	}

	if loaded == 0 {
		return nil, fmt.Errorf("%w: no symbol has data for any period", core.ErrInsufficientData)
	}

	log.Infof("market data loaded: %d series across %d symbols", loaded, len(data))
	return data, nil
}
