package core

import (
	"context"
	"time"
)

// Feeder provides historical candles for a symbol
type Feeder interface {
	CandlesByPeriod(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]Candle, error)
}

type Notifier interface {
	Notify(string)
	OnError(err error)
}

type NotifierWithStart interface {
	Notifier
	Start()
}
