package postgres

import (
	"context"
	"time"

	"quantcoord/internal/market"

	"go.uber.org/zap"
)

// CandlePersister writes finalized candles to Postgres off the aggregation
// path. Enqueue never blocks: when the buffer is full the candle is dropped
// with a warning, since persistence is best-effort and the in-memory store
// remains authoritative.
type CandlePersister struct {
	client *Client
	ch     chan market.Candle
	logger *zap.Logger
}

func NewCandlePersister(client *Client, buffer int, logger *zap.Logger) *CandlePersister {
	if buffer <= 0 {
		buffer = 1024
	}
	return &CandlePersister{
		client: client,
		ch:     make(chan market.Candle, buffer),
		logger: logger,
	}
}

// Enqueue hands a finalized candle to the persistence worker.
func (p *CandlePersister) Enqueue(c market.Candle) {
	select {
	case p.ch <- c:
	default:
		p.logger.Warn("candle persister buffer full, dropping candle",
			zap.String("symbol", c.Symbol),
			zap.String("interval", c.Interval),
			zap.Time("bucket_start", c.BucketStart))
	}
}

// Run drains the queue until the context is cancelled. Insert failures are
// logged and skipped; a single bad row must not stall the worker.
func (p *CandlePersister) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-p.ch:
			insertCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err := p.client.InsertCandle(insertCtx, ToCandleRecord(c))
			cancel()
			if err != nil {
				p.logger.Warn("failed to persist candle",
					zap.String("symbol", c.Symbol),
					zap.String("interval", c.Interval),
					zap.Error(err))
			}
		}
	}
}
