package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"quantcoord/config"
	"quantcoord/internal/market"
	"quantcoord/internal/orders"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testOpen = time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)

// fakeVenue is a scriptable venue adapter.
type fakeVenue struct {
	mu         sync.Mutex
	nextID     int
	placed     []orders.Order
	modified   []orders.Order
	placeErr   error
	placeDelay time.Duration
	history    map[string]map[string][]market.Candle
	historyErr error
}

func (f *fakeVenue) PlaceNewOrder(ctx context.Context, o *orders.Order) (string, *orders.Order, error) {
	if f.placeDelay > 0 {
		select {
		case <-time.After(f.placeDelay):
		case <-ctx.Done():
			return "", nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return "", nil, f.placeErr
	}
	f.nextID++
	id := fmt.Sprintf("V%03d", f.nextID)
	f.placed = append(f.placed, *o)
	return id, o, nil
}

func (f *fakeVenue) ModifyExistingOrder(ctx context.Context, o *orders.Order) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	f.modified = append(f.modified, *o)
	return o, nil
}

func (f *fakeVenue) GetHistoricalData(ctx context.Context, symbol string, start, end time.Time) (map[string][]market.Candle, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history[symbol], nil
}

func (f *fakeVenue) IsValidLiveTick(t market.Tick) bool {
	return t.Symbol != "" && t.LastPrice > 0 && !t.LastTradeTime.IsZero()
}

func (f *fakeVenue) placedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.placed)
}

func (f *fakeVenue) modifiedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.modified)
}

// fakeAlgo pegs the price to the last tick and reschedules at a fixed delay.
type fakeAlgo struct {
	next   time.Duration
	onNext func()
}

func (a *fakeAlgo) ModifyOrder(last market.Tick, o *orders.Order, isNew bool) error {
	o.Price = last.LastPrice
	return nil
}

func (a *fakeAlgo) NextModificationTime(last market.Tick, o *orders.Order) time.Duration {
	if a.onNext != nil {
		a.onNext()
	}
	if a.next > 0 {
		return a.next
	}
	return 5 * time.Second
}

func testConfig() *config.Config {
	return &config.Config{
		Venue: config.VenueConfig{
			Exchange:          "NSE",
			SessionOpenHour:   9,
			SessionOpenMinute: 15,
			Timezone:          "UTC",
			Intervals:         []string{"minute"},
			Symbols:           []string{"RELIANCE"},
		},
		Orders: config.OrdersConfig{
			PlacementTimeout: 200 * time.Millisecond,
			FirstTickWait:    100 * time.Millisecond,
			ModificationPoll: 10 * time.Millisecond,
		},
	}
}

func newTestCoordinator(t *testing.T, fv *fakeVenue, opts ...Option) *Coordinator {
	t.Helper()
	opts = append([]Option{WithDefaultAlgo(&fakeAlgo{})}, opts...)
	c, err := New(testConfig(), zap.NewNop(), fv, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func primeTick(c *Coordinator, symbol string, price float64) {
	c.OnTick([]market.Tick{{
		InstrumentID:  1,
		Symbol:        symbol,
		Exchange:      "NSE",
		LastPrice:     price,
		VolumeTraded:  100,
		LastTradeTime: testOpen,
	}})
}

func newParentOrder(symbol string) *orders.Order {
	return &orders.Order{
		Tag:             "strat-1",
		Exchange:        "NSE",
		TradingSymbol:   symbol,
		TransactionType: orders.TransactionBuy,
		OrderType:       "LIMIT",
		Quantity:        10,
	}
}

func TestPlaceNewOrderPlacesParentAndChild(t *testing.T) {
	fv := &fakeVenue{}
	c := newTestCoordinator(t, fv)
	primeTick(c, "RELIANCE", 2500)

	orderID, err := c.PlaceOrModify(context.Background(), newParentOrder("RELIANCE"), true)
	require.NoError(t, err)
	assert.Equal(t, "V001", orderID)
	assert.Equal(t, 2, fv.placedCount(), "parent plus paired child")

	parent, ok := c.GetInProgressOrder("V001")
	require.True(t, ok)
	assert.Equal(t, orders.StatusPending, parent.OrderStatus)
	assert.Equal(t, 2500.0, parent.Price, "algorithm pegged to the last tick")

	child, ok := c.GetInProgressOrder("V002")
	require.True(t, ok)
	assert.True(t, child.IsChildOrder)
	assert.Equal(t, orders.TransactionSell, child.TransactionType)
	assert.Equal(t, parent.Tag, child.Tag)

	c.orderMu.Lock()
	queued := c.book.QueueLen()
	c.orderMu.Unlock()
	assert.Equal(t, 1, queued, "next modification scheduled")
}

func TestPlaceChildOrderSkipsPairing(t *testing.T) {
	fv := &fakeVenue{}
	c := newTestCoordinator(t, fv)
	primeTick(c, "RELIANCE", 2500)

	o := newParentOrder("RELIANCE")
	o.IsChildOrder = true

	_, err := c.PlaceOrModify(context.Background(), o, true)
	require.NoError(t, err)
	assert.Equal(t, 1, fv.placedCount(), "child orders are not paired again")
}

func TestPlaceOrModifyWaitsForFirstTick(t *testing.T) {
	fv := &fakeVenue{}
	c := newTestCoordinator(t, fv)

	done := make(chan error, 1)
	go func() {
		_, err := c.PlaceOrModify(context.Background(), newParentOrder("RELIANCE"), true)
		done <- err
	}()

	// Deliver the first tick while the placement is blocked waiting for it.
	time.Sleep(20 * time.Millisecond)
	primeTick(c, "RELIANCE", 2500)

	require.NoError(t, <-done)
	assert.Equal(t, 2, fv.placedCount())
}

func TestPlaceOrModifyFirstTickTimeout(t *testing.T) {
	fv := &fakeVenue{}
	c := newTestCoordinator(t, fv)

	_, err := c.PlaceOrModify(context.Background(), newParentOrder("RELIANCE"), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFirstTickTimeout)
	assert.Zero(t, fv.placedCount())
}

func TestPlacementFailureWrappedAndLockReleased(t *testing.T) {
	fv := &fakeVenue{placeErr: errors.New("venue says no")}
	c := newTestCoordinator(t, fv)
	primeTick(c, "RELIANCE", 2500)

	_, err := c.PlaceOrModify(context.Background(), newParentOrder("RELIANCE"), true)
	require.Error(t, err)

	var failed *OrderPlacementFailedError
	require.ErrorAs(t, err, &failed)
	assert.ErrorContains(t, failed.Err, "venue says no")

	// The lock must have been released on the failure path.
	fv.mu.Lock()
	fv.placeErr = nil
	fv.mu.Unlock()
	_, err = c.PlaceOrModify(context.Background(), newParentOrder("RELIANCE"), true)
	require.NoError(t, err)
}

func TestPlacementTimeoutIsDistinctFromRejection(t *testing.T) {
	fv := &fakeVenue{placeDelay: time.Second}
	c := newTestCoordinator(t, fv)
	primeTick(c, "RELIANCE", 2500)

	_, err := c.PlaceOrModify(context.Background(), newParentOrder("RELIANCE"), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPlacementTimeout)

	var failed *OrderPlacementFailedError
	assert.ErrorAs(t, err, &failed)
}

func TestModificationRoundTrip(t *testing.T) {
	fv := &fakeVenue{}
	c := newTestCoordinator(t, fv)
	primeTick(c, "RELIANCE", 2500)

	orderID, err := c.PlaceOrModify(context.Background(), newParentOrder("RELIANCE"), true)
	require.NoError(t, err)

	c.OnOrderResponse(orders.ExchangeResponse{OrderID: orderID, ResponseType: orders.RespNewOrderConfirm})

	confirmed, ok := c.GetProcessedOrder(orderID)
	require.True(t, ok)
	assert.Equal(t, orders.StatusOpen, confirmed.OrderStatus)
	_, inProgress := c.GetInProgressOrder(orderID)
	assert.False(t, inProgress)

	// Re-modification moves it back to in progress.
	primeTick(c, "RELIANCE", 2510)
	modOrder := confirmed
	_, err = c.PlaceOrModify(context.Background(), &modOrder, false)
	require.NoError(t, err)

	assert.Equal(t, 1, fv.modifiedCount())
	inflight, ok := c.GetInProgressOrder(orderID)
	require.True(t, ok)
	assert.Equal(t, 2510.0, inflight.Price)
	_, processed := c.GetProcessedOrder(orderID)
	assert.False(t, processed, "order id lives in at most one lifecycle map")
}

func TestRejectedOrderEntryDropsSilently(t *testing.T) {
	fv := &fakeVenue{}
	c := newTestCoordinator(t, fv)
	primeTick(c, "RELIANCE", 2500)

	o := newParentOrder("RELIANCE")
	o.IsChildOrder = true // keep the scenario to a single order
	orderID, err := c.PlaceOrModify(context.Background(), o, true)
	require.NoError(t, err)

	// The modification rejection arrives before the scheduled entry fires.
	c.OnOrderResponse(orders.ExchangeResponse{OrderID: orderID, ResponseType: orders.RespModOrderReject})

	c.orderMu.Lock()
	due := c.book.DueOrders(time.Now().Add(time.Minute))
	queued := c.book.QueueLen()
	c.orderMu.Unlock()

	assert.Empty(t, due, "terminal order never reaches re-modification")
	assert.Zero(t, queued)
	assert.Zero(t, fv.modifiedCount())
}

func TestCancelBetweenPollAndModifyIsANoOp(t *testing.T) {
	fv := &fakeVenue{}
	c := newTestCoordinator(t, fv)
	primeTick(c, "RELIANCE", 2500)

	o := newParentOrder("RELIANCE")
	o.IsChildOrder = true
	orderID, err := c.PlaceOrModify(context.Background(), o, true)
	require.NoError(t, err)
	c.OnOrderResponse(orders.ExchangeResponse{OrderID: orderID, ResponseType: orders.RespNewOrderConfirm})

	c.orderMu.Lock()
	due := c.book.DueOrders(time.Now().Add(time.Minute))
	c.orderMu.Unlock()
	require.Len(t, due, 1)

	// The cancel lands after the poll but before the re-modification runs.
	c.OnOrderResponse(orders.ExchangeResponse{OrderID: orderID, ResponseType: orders.RespCancelOrderConfirm})

	id, err := c.PlaceOrModify(context.Background(), due[0], false)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Zero(t, fv.modifiedCount(), "terminal order never reaches the venue")

	_, inProgress := c.GetInProgressOrder(orderID)
	_, processed := c.GetProcessedOrder(orderID)
	assert.False(t, inProgress, "terminal order never re-enters the lifecycle maps")
	assert.False(t, processed)

	c.orderMu.Lock()
	queued := c.book.QueueLen()
	c.orderMu.Unlock()
	assert.Zero(t, queued, "skipped re-modification schedules nothing")
}

func TestCompletionBetweenPollAndModifyIsANoOp(t *testing.T) {
	fv := &fakeVenue{}
	c := newTestCoordinator(t, fv)
	primeTick(c, "RELIANCE", 2500)

	o := newParentOrder("RELIANCE")
	o.IsChildOrder = true
	orderID, err := c.PlaceOrModify(context.Background(), o, true)
	require.NoError(t, err)
	c.OnOrderResponse(orders.ExchangeResponse{OrderID: orderID, ResponseType: orders.RespNewOrderConfirm})

	c.orderMu.Lock()
	due := c.book.DueOrders(time.Now().Add(time.Minute))
	c.orderMu.Unlock()
	require.Len(t, due, 1)

	// A full fill completes the order before the re-modification runs.
	c.OnOrderResponse(orders.ExchangeResponse{OrderID: orderID, ResponseType: orders.RespTradeConfirm, Quantity: 10})

	id, err := c.PlaceOrModify(context.Background(), due[0], false)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Zero(t, fv.modifiedCount())

	_, inProgress := c.GetInProgressOrder(orderID)
	assert.False(t, inProgress, "completed order never re-enters the lifecycle maps")
}

func TestNextModificationDelayComputedUnderOrderLock(t *testing.T) {
	fv := &fakeVenue{}
	var c *Coordinator
	var sawLockHeld bool
	algo := &fakeAlgo{onNext: func() {
		if c.orderMu.TryLock() {
			c.orderMu.Unlock()
			return
		}
		sawLockHeld = true
	}}
	c = newTestCoordinator(t, fv, WithDefaultAlgo(algo))
	primeTick(c, "RELIANCE", 2500)

	o := newParentOrder("RELIANCE")
	o.IsChildOrder = true
	_, err := c.PlaceOrModify(context.Background(), o, true)
	require.NoError(t, err)

	assert.True(t, sawLockHeld,
		"delay computation reads the registered order and must hold the lock the reconciler writes under")
}

func TestConcurrentModificationsKeepSingleInFlightEntry(t *testing.T) {
	fv := &fakeVenue{}
	c := newTestCoordinator(t, fv)
	primeTick(c, "RELIANCE", 2500)

	orderID, err := c.PlaceOrModify(context.Background(), newParentOrder("RELIANCE"), true)
	require.NoError(t, err)
	c.OnOrderResponse(orders.ExchangeResponse{OrderID: orderID, ResponseType: orders.RespNewOrderConfirm})

	confirmed, ok := c.GetProcessedOrder(orderID)
	require.True(t, ok)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := confirmed
			_, _ = c.PlaceOrModify(context.Background(), &o, false)
		}()
	}
	wg.Wait()

	c.orderMu.Lock()
	_, inProgress := c.book.InProgress[orderID]
	_, processed := c.book.LastProcessed[orderID]
	c.orderMu.Unlock()

	assert.True(t, inProgress)
	assert.False(t, processed, "at most one lifecycle entry under concurrent modification")
}

func TestTradeConfirmsCompleteOrderExactlyOnce(t *testing.T) {
	fv := &fakeVenue{}
	c := newTestCoordinator(t, fv)
	primeTick(c, "RELIANCE", 2500)

	o := newParentOrder("RELIANCE")
	o.IsChildOrder = true
	orderID, err := c.PlaceOrModify(context.Background(), o, true)
	require.NoError(t, err)

	c.OnOrderResponse(orders.ExchangeResponse{OrderID: orderID, ResponseType: orders.RespNewOrderConfirm})
	c.OnOrderResponse(orders.ExchangeResponse{OrderID: orderID, ResponseType: orders.RespTradeConfirm, Quantity: 4})
	c.OnOrderResponse(orders.ExchangeResponse{OrderID: orderID, ResponseType: orders.RespTradeConfirm, Quantity: 6})

	_, inProgress := c.GetInProgressOrder(orderID)
	_, processed := c.GetProcessedOrder(orderID)
	assert.False(t, inProgress)
	assert.False(t, processed, "completed order is terminal")
}

func TestOnTickRoutesOnlyValidEnrolledTicks(t *testing.T) {
	fv := &fakeVenue{}
	c := newTestCoordinator(t, fv)

	c.OnTick([]market.Tick{
		{Symbol: "RELIANCE", Exchange: "NSE", LastPrice: 0, LastTradeTime: testOpen},  // invalid: no price
		{Symbol: "UNKNOWN", Exchange: "NSE", LastPrice: 10, LastTradeTime: testOpen},  // valid but not enrolled
		{Symbol: "RELIANCE", Exchange: "NSE", LastPrice: 2500, VolumeTraded: 10, LastTradeTime: testOpen},
		{Symbol: "RELIANCE", Exchange: "NSE", LastPrice: 2501, VolumeTraded: 20, LastTradeTime: testOpen.Add(70 * time.Second)},
	})

	_, ok := c.ticks.Last("NSE", "RELIANCE")
	assert.True(t, ok)

	// The unenrolled symbol is cached but never aggregated.
	_, cached := c.ticks.Last("NSE", "UNKNOWN")
	assert.True(t, cached)

	candles, err := c.MarketData("minute")
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, "RELIANCE", candles[0].Symbol)
	assert.Equal(t, 2500.0, candles[0].Open)

	_, err = c.MarketData("day")
	var unsub *market.UnsubscribedIntervalError
	assert.ErrorAs(t, err, &unsub)
}

func TestRunResubmitsDueOrders(t *testing.T) {
	fv := &fakeVenue{}
	c := newTestCoordinator(t, fv, WithDefaultAlgo(&fakeAlgo{next: 20 * time.Millisecond}))
	primeTick(c, "RELIANCE", 2500)

	o := newParentOrder("RELIANCE")
	o.IsChildOrder = true
	orderID, err := c.PlaceOrModify(context.Background(), o, true)
	require.NoError(t, err)
	c.OnOrderResponse(orders.ExchangeResponse{OrderID: orderID, ResponseType: orders.RespNewOrderConfirm})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool {
		return fv.modifiedCount() >= 1
	}, time.Second, 10*time.Millisecond, "poller resubmits the confirmed order when due")
}
