package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"quantcoord/config"
	"quantcoord/internal/market"
	"quantcoord/internal/orders"
	"quantcoord/pkg/venue"

	"go.uber.org/zap"
)

// ErrClosed is returned for calls made after Close.
var ErrClosed = errors.New("coordinator closed")

// Coordinator ties the live pipeline together: it validates and routes ticks
// into the interval aggregator, manages the order lifecycle against the
// venue adapter, and reconciles asynchronous exchange responses.
//
// Lock discipline: orderMu guards the order book (both lifecycle maps, the
// child-order lists, and the modification queue) and serializes placement
// calls. Tick aggregation is deliberately outside that lock; the aggregator
// carries its own per-series locking.
type Coordinator struct {
	cfg   *config.Config
	log   *zap.Logger
	venue venue.Adapter

	algos       map[string]venue.ExecutionAlgo
	defaultAlgo venue.ExecutionAlgo

	ticks *market.LastTickCache
	store *market.CandleStore
	agg   *market.Aggregator

	enrollMu sync.Mutex
	enrolled map[string]*enrollment

	orderMu    sync.Mutex
	book       *orders.Book
	reconciler *orders.Reconciler

	candleSink func(market.Candle)

	closed    chan struct{}
	closeOnce sync.Once
}

// enrollment tracks an instrument subscribed for live ticks. firstTick is
// closed exactly once when the first valid tick for it arrives.
type enrollment struct {
	firstTick chan struct{}
	once      sync.Once
}

// Option customizes a Coordinator at construction time.
type Option func(*Coordinator)

// WithAlgo registers an execution algorithm under a name orders can select
// via their ExecutionAlgo field.
func WithAlgo(name string, algo venue.ExecutionAlgo) Option {
	return func(c *Coordinator) {
		c.algos[name] = algo
	}
}

// WithDefaultAlgo replaces the default execution algorithm.
func WithDefaultAlgo(algo venue.ExecutionAlgo) Option {
	return func(c *Coordinator) {
		c.defaultAlgo = algo
	}
}

// WithCandleSink installs a hook invoked for every finalized candle, e.g. a
// persistence worker's Enqueue. The hook must not block.
func WithCandleSink(sink func(market.Candle)) Option {
	return func(c *Coordinator) {
		c.candleSink = sink
	}
}

// New builds a Coordinator from configuration and a venue adapter.
func New(cfg *config.Config, log *zap.Logger, adapter venue.Adapter, opts ...Option) (*Coordinator, error) {
	clock, err := market.NewSessionClock(cfg.Venue)
	if err != nil {
		return nil, err
	}
	intervals, err := market.ParseIntervals(cfg.Venue.Intervals)
	if err != nil {
		return nil, err
	}

	book := orders.NewBook()
	c := &Coordinator{
		cfg:         cfg,
		log:         log,
		venue:       adapter,
		algos:       make(map[string]venue.ExecutionAlgo),
		defaultAlgo: &venue.PegToLastAlgo{},
		ticks:       market.NewLastTickCache(),
		enrolled:    make(map[string]*enrollment),
		book:        book,
		reconciler:  orders.NewReconciler(book, log),
		closed:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.store = market.NewCandleStore(intervals, c.candleSink)
	c.agg = market.NewAggregator(clock, intervals, c.store)

	for _, symbol := range cfg.Venue.Symbols {
		c.enroll(cfg.Venue.Exchange, symbol)
	}

	return c, nil
}

// OnTick validates and routes a batch of live ticks. Invalid ticks are
// dropped with no side effect. Valid ticks always refresh the last-tick
// cache; only ticks for enrolled instruments reach the aggregator.
func (c *Coordinator) OnTick(ticks []market.Tick) {
	for _, t := range ticks {
		if !c.venue.IsValidLiveTick(t) {
			continue
		}

		c.ticks.Put(t)

		e, ok := c.enrollmentFor(t.Exchange, t.Symbol)
		if !ok {
			continue
		}
		e.once.Do(func() { close(e.firstTick) })
		c.agg.Apply(t)
	}
}

// OnOrderResponse feeds one asynchronous venue response to the reconciler.
func (c *Coordinator) OnOrderResponse(resp orders.ExchangeResponse) {
	c.orderMu.Lock()
	c.reconciler.Apply(resp)
	c.orderMu.Unlock()
}

// MarketData returns a snapshot of all finalized candles for the interval.
func (c *Coordinator) MarketData(interval string) ([]market.Candle, error) {
	return c.store.Candles(interval)
}

// GetProcessedOrder returns a copy of a confirmed (last-processed) order.
func (c *Coordinator) GetProcessedOrder(orderID string) (orders.Order, bool) {
	c.orderMu.Lock()
	defer c.orderMu.Unlock()
	o, ok := c.book.LastProcessed[orderID]
	if !ok {
		return orders.Order{}, false
	}
	return *o, true
}

// GetInProgressOrder returns a copy of an order awaiting venue confirmation.
func (c *Coordinator) GetInProgressOrder(orderID string) (orders.Order, bool) {
	c.orderMu.Lock()
	defer c.orderMu.Unlock()
	o, ok := c.book.InProgress[orderID]
	if !ok {
		return orders.Order{}, false
	}
	return *o, true
}

// Run polls the modification queue and re-submits due orders until the
// context is cancelled or the coordinator is closed.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Orders.ModificationPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case now := <-ticker.C:
			c.orderMu.Lock()
			due := c.book.DueOrders(now)
			c.orderMu.Unlock()

			for _, o := range due {
				if _, err := c.PlaceOrModify(ctx, o, false); err != nil {
					c.log.Warn("order re-modification failed",
						zap.String("order_id", o.OrderID),
						zap.Error(err))
				}
			}
		}
	}
}

// Close stops the poller and unblocks any waiters.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// enroll subscribes an instrument for live-tick streaming and aggregation.
func (c *Coordinator) enroll(exchange, symbol string) *enrollment {
	key := exchange + ":" + symbol

	c.enrollMu.Lock()
	defer c.enrollMu.Unlock()
	e, ok := c.enrolled[key]
	if !ok {
		e = &enrollment{firstTick: make(chan struct{})}
		c.enrolled[key] = e
	}
	return e
}

func (c *Coordinator) enrollmentFor(exchange, symbol string) (*enrollment, bool) {
	c.enrollMu.Lock()
	defer c.enrollMu.Unlock()
	e, ok := c.enrolled[exchange+":"+symbol]
	return e, ok
}

func (c *Coordinator) algoFor(o *orders.Order) venue.ExecutionAlgo {
	if algo, ok := c.algos[o.ExecutionAlgo]; ok {
		return algo
	}
	return c.defaultAlgo
}
