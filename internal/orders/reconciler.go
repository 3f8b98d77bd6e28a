package orders

import "go.uber.org/zap"

// Reconciler consumes asynchronous exchange responses and advances order
// state in the shared book. Apply must be called with the coordinator's
// order lock held; the reconciler itself never locks.
//
// A bad response must not halt the pipeline: unknown order ids and unknown
// response types are logged and skipped.
type Reconciler struct {
	book *Book
	log  *zap.Logger
}

func NewReconciler(book *Book, log *zap.Logger) *Reconciler {
	return &Reconciler{book: book, log: log}
}

// Apply runs one transition of the response state machine.
func (r *Reconciler) Apply(resp ExchangeResponse) {
	switch resp.ResponseType {
	case RespNewOrderConfirm, RespModOrderConfirm:
		o, ok := r.book.InProgress[resp.OrderID]
		if !ok {
			r.log.Warn("confirm for unknown in-progress order",
				zap.String("order_id", resp.OrderID),
				zap.String("response_type", string(resp.ResponseType)))
			return
		}
		delete(r.book.InProgress, resp.OrderID)
		o.OrderStatus = StatusOpen
		r.book.LastProcessed[resp.OrderID] = o

	case RespNewOrderReject, RespModOrderReject:
		o, ok := r.book.InProgress[resp.OrderID]
		if !ok {
			r.log.Warn("reject for unknown in-progress order",
				zap.String("order_id", resp.OrderID),
				zap.String("response_type", string(resp.ResponseType)))
			return
		}
		// Terminal: the order never re-enters either map.
		delete(r.book.InProgress, resp.OrderID)
		o.OrderStatus = StatusRejected
		r.log.Info("order rejected by venue",
			zap.String("order_id", resp.OrderID),
			zap.String("tag", o.Tag),
			zap.String("response_type", string(resp.ResponseType)),
			zap.String("message", resp.Message))

	case RespTradeConfirm:
		o, ok := r.book.LastProcessed[resp.OrderID]
		if !ok {
			r.log.Warn("trade confirm for unknown order",
				zap.String("order_id", resp.OrderID))
			return
		}
		o.FilledQuantity += resp.Quantity
		if o.FilledQuantity >= o.Quantity {
			o.OrderStatus = StatusComplete
			delete(r.book.InProgress, resp.OrderID)
			delete(r.book.LastProcessed, resp.OrderID)
			r.book.removeChild(o.Tag, o.OrderID)
		}

	case RespOMSReject, RespRMSReject:
		r.log.Warn("order rejected upstream",
			zap.String("order_id", resp.OrderID),
			zap.String("response_type", string(resp.ResponseType)),
			zap.String("message", resp.Message))

	case RespCancelOrderConfirm:
		r.book.dropEverywhere(resp.OrderID)

	case RespTriggerConfirm:
		o, ok := r.book.InProgress[resp.OrderID]
		if !ok {
			r.log.Warn("trigger confirm for unknown in-progress order",
				zap.String("order_id", resp.OrderID))
			return
		}
		// The trigger fired: the order is now a live working order owned by
		// its strategy's child list, not part of the fill path yet.
		delete(r.book.InProgress, resp.OrderID)
		o.OrderStatus = StatusOpen
		r.book.AppendChild(o)

	default:
		r.log.Warn("unhandled exchange response type",
			zap.String("order_id", resp.OrderID),
			zap.String("response_type", string(resp.ResponseType)))
	}
}
