package coordinator

import (
	"context"
	"sync"
	"time"

	"quantcoord/pkg/storage/postgres"

	"go.uber.org/zap"
)

// Backfill bulk-loads historical candles for every configured symbol into
// Postgres with bounded concurrency. A symbol whose metadata or history the
// venue cannot serve is logged and skipped; the loop continues.
func (c *Coordinator) Backfill(ctx context.Context, db *postgres.Client, start, end time.Time) {
	sem := make(chan struct{}, 5)
	var wg sync.WaitGroup

	for _, symbol := range c.cfg.Venue.Symbols {
		symbol := symbol
		sem <- struct{}{}
		wg.Add(1)

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.Feed.Timeout)
			byInterval, err := c.venue.GetHistoricalData(fetchCtx, symbol, start, end)
			cancel()
			if err != nil {
				c.log.Warn("historical fetch failed",
					zap.String("symbol", symbol),
					zap.Error(err))
				return
			}

			for _, candles := range byInterval {
				for _, candle := range candles {
					dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
					err := db.InsertCandle(dbCtx, postgres.ToCandleRecord(candle))
					cancel()
					if err != nil {
						c.log.Warn("failed to insert historical candle",
							zap.String("symbol", symbol),
							zap.String("interval", candle.Interval),
							zap.Error(err))
					}
				}
			}

			c.log.Info("backfill completed for symbol", zap.String("symbol", symbol))
		}()
	}

	wg.Wait()
}
