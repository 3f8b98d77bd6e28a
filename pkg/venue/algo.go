package venue

import (
	"fmt"
	"time"

	"quantcoord/internal/market"
	"quantcoord/internal/orders"
)

// PegToLastAlgo is a minimal execution algorithm that reprices a limit order
// to the latest traded price on every evaluation. It serves as the default
// collaborator when a strategy does not bring its own.
type PegToLastAlgo struct {
	// Offset is added to the last price for buys and subtracted for sells,
	// letting the order rest slightly inside the spread.
	Offset float64

	// Reprice is the fixed delay before the next re-evaluation.
	Reprice time.Duration
}

func (a *PegToLastAlgo) ModifyOrder(last market.Tick, o *orders.Order, isNew bool) error {
	if last.LastPrice <= 0 {
		return fmt.Errorf("no reference price for %s:%s", o.Exchange, o.TradingSymbol)
	}
	switch o.TransactionType {
	case orders.TransactionBuy:
		o.Price = last.LastPrice + a.Offset
	case orders.TransactionSell:
		o.Price = last.LastPrice - a.Offset
	default:
		return fmt.Errorf("unknown transaction type %q for order %s", o.TransactionType, o.OrderID)
	}
	return nil
}

func (a *PegToLastAlgo) NextModificationTime(last market.Tick, o *orders.Order) time.Duration {
	if a.Reprice > 0 {
		return a.Reprice
	}
	return 5 * time.Second
}
