package venue

import (
	"context"
	"time"

	"quantcoord/internal/market"
	"quantcoord/internal/orders"
)

// Adapter is the venue-facing surface the coordinator calls. Concrete
// brokers implement it over their own wire protocol and authentication.
type Adapter interface {
	// PlaceNewOrder submits a new order and returns the venue-assigned order
	// id together with the order as the venue accepted it.
	PlaceNewOrder(ctx context.Context, o *orders.Order) (string, *orders.Order, error)

	// ModifyExistingOrder re-submits mutated parameters for a working order.
	ModifyExistingOrder(ctx context.Context, o *orders.Order) (*orders.Order, error)

	// GetHistoricalData fetches finalized candles per interval for a symbol.
	GetHistoricalData(ctx context.Context, symbol string, start, end time.Time) (map[string][]market.Candle, error)

	// IsValidLiveTick reports whether a feed tick passes venue-specific
	// validity checks. Invalid ticks are dropped without side effects.
	IsValidLiveTick(t market.Tick) bool
}

// ExecutionAlgo is the pluggable strategy collaborator. Its internal sizing
// and timing decisions are opaque to the coordinator; only this contract is
// relied upon.
type ExecutionAlgo interface {
	// ModifyOrder mutates venue-facing order parameters (price, quantity,
	// order type) based on the latest tick before placement or modification.
	ModifyOrder(last market.Tick, o *orders.Order, isNew bool) error

	// NextModificationTime returns how long after placement the order should
	// be re-evaluated.
	NextModificationTime(last market.Tick, o *orders.Order) time.Duration
}
