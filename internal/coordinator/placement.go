package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quantcoord/internal/market"
	"quantcoord/internal/orders"

	"github.com/google/uuid"
)

var (
	// ErrPlacementTimeout marks a venue call that exceeded the configured
	// placement timeout, as opposed to an outright rejection.
	ErrPlacementTimeout = errors.New("venue placement call timed out")

	// ErrFirstTickTimeout marks an order whose instrument produced no tick
	// within the configured wait; the execution algorithm cannot run without
	// a reference price.
	ErrFirstTickTimeout = errors.New("timed out waiting for first tick")
)

// errOrderNotLive marks a re-modification that found its order terminal.
// The call becomes a silent no-op, matching the scheduler's handling of
// terminal entries.
var errOrderNotLive = errors.New("order is no longer live")

// OrderPlacementFailedError wraps any failure inside the placement critical
// section. The lock is always released before it propagates; the caller may
// retry at its own discretion, the coordinator does not.
type OrderPlacementFailedError struct {
	OrderID string
	Err     error
}

func (e *OrderPlacementFailedError) Error() string {
	return fmt.Sprintf("order placement failed (order_id=%s): %v", e.OrderID, e.Err)
}

func (e *OrderPlacementFailedError) Unwrap() error {
	return e.Err
}

// PlaceOrModify runs the full placement path for a new order (isNew) or an
// algorithm-driven re-modification of a confirmed one:
//
//  1. ensure the instrument streams live ticks, waiting (bounded) for the
//     first one if needed;
//  2. under the order lock, let the execution algorithm mutate the order,
//     call the venue, place the paired child order for non-child parents,
//     and register everything as in progress;
//  3. still under the lock, schedule the next re-evaluation.
//
// A re-modification whose order turned terminal in the meantime is a silent
// no-op: it returns an empty id and no error, and nothing reaches the venue.
func (c *Coordinator) PlaceOrModify(ctx context.Context, o *orders.Order, isNew bool) (string, error) {
	if err := c.ensureStreaming(ctx, o.Exchange, o.TradingSymbol); err != nil {
		return "", err
	}
	last, _ := c.ticks.Last(o.Exchange, o.TradingSymbol)

	c.orderMu.Lock()
	orderID, placed, err := c.submitLocked(ctx, last, o, isNew)
	if err == nil {
		// The delay is computed before the lock is released: the registered
		// order is shared with the reconciler, which mutates it on response
		// threads under this same lock.
		delay := c.algoFor(placed).NextModificationTime(last, placed)
		c.book.Schedule(orderID, placed.PlacementTime.Add(delay))
	}
	c.orderMu.Unlock()

	if errors.Is(err, errOrderNotLive) {
		return "", nil
	}
	if err != nil {
		return "", &OrderPlacementFailedError{OrderID: o.OrderID, Err: err}
	}
	return orderID, nil
}

// submitLocked is the placement critical section; orderMu must be held.
func (c *Coordinator) submitLocked(ctx context.Context, last market.Tick, o *orders.Order, isNew bool) (string, *orders.Order, error) {
	if !isNew {
		// Recheck liveness: a cancel confirm or completing fill may land
		// between the scheduler pop and this critical section, and a terminal
		// order never re-enters the lifecycle maps.
		if _, live := c.book.LastProcessed[o.OrderID]; !live {
			return "", nil, errOrderNotLive
		}
	}

	if err := c.algoFor(o).ModifyOrder(last, o, isNew); err != nil {
		return "", nil, err
	}

	vctx, cancel := context.WithTimeout(ctx, c.cfg.Orders.PlacementTimeout)
	defer cancel()

	if !isNew {
		placed, err := c.venue.ModifyExistingOrder(vctx, o)
		if err != nil {
			return "", nil, venueErr(err)
		}
		placed.PlacementTime = time.Now()
		placed.OrderStatus = orders.StatusPending
		c.book.Register(placed)
		return placed.OrderID, placed, nil
	}

	id, placed, err := c.venue.PlaceNewOrder(vctx, o)
	if err != nil {
		return "", nil, venueErr(err)
	}
	if placed == nil {
		placed = o
	}
	placed.OrderID = id
	if placed.OrderID == "" {
		placed.OrderID = uuid.NewString()
	}
	placed.PlacementTime = time.Now()
	placed.OrderStatus = orders.StatusPending
	c.book.Register(placed)

	// A non-child parent gets its paired child (the protective stop) placed
	// atomically, before the lock is released.
	if !placed.IsChildOrder {
		child := buildChildOrder(placed)
		cid, placedChild, err := c.venue.PlaceNewOrder(vctx, child)
		if err != nil {
			return "", nil, fmt.Errorf("placing paired child order: %w", venueErr(err))
		}
		if placedChild == nil {
			placedChild = child
		}
		placedChild.OrderID = cid
		if placedChild.OrderID == "" {
			placedChild.OrderID = uuid.NewString()
		}
		placedChild.PlacementTime = placed.PlacementTime
		placedChild.OrderStatus = orders.StatusTriggerPending
		c.book.Register(placedChild)
	}

	return placed.OrderID, placed, nil
}

// ensureStreaming enrolls the instrument if needed and blocks until its
// first tick has been observed, bounded by the configured wait and the
// caller's context.
func (c *Coordinator) ensureStreaming(ctx context.Context, exchange, symbol string) error {
	e := c.enroll(exchange, symbol)

	if _, ok := c.ticks.Last(exchange, symbol); ok {
		return nil
	}

	select {
	case <-e.firstTick:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrClosed
	case <-time.After(c.cfg.Orders.FirstTickWait):
		return fmt.Errorf("%w: %s:%s", ErrFirstTickTimeout, exchange, symbol)
	}
}

// buildChildOrder derives the paired stop from a parent: same instrument and
// size, opposite side, trigger pending until the stop condition fires.
func buildChildOrder(parent *orders.Order) *orders.Order {
	child := *parent
	child.OrderID = ""
	child.IsChildOrder = true
	child.OrderType = "SL"
	child.TransactionType = oppositeTransaction(parent.TransactionType)
	child.TriggerPrice = parent.Price
	child.FilledQuantity = 0
	return &child
}

func oppositeTransaction(t string) string {
	if t == orders.TransactionBuy {
		return orders.TransactionSell
	}
	return orders.TransactionBuy
}

func venueErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrPlacementTimeout, err)
	}
	return err
}
