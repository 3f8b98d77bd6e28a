package orders

import "time"

// OrderStatus is the coordinator's view of an order's lifecycle state.
type OrderStatus string

const (
	StatusPending        OrderStatus = "PENDING"
	StatusOpen           OrderStatus = "OPEN"
	StatusTriggerPending OrderStatus = "TRIGGER_PENDING"
	StatusComplete       OrderStatus = "COMPLETE"
	StatusCancelled      OrderStatus = "CANCELLED"
	StatusRejected       OrderStatus = "REJECTED"
)

// TransactionType values understood by the venue.
const (
	TransactionBuy  = "BUY"
	TransactionSell = "SELL"
)

// Order is a venue-facing order tracked through its full lifecycle. Tag
// identifies the owning strategy; child orders (e.g. the paired stop placed
// alongside a parent) share the parent's tag.
type Order struct {
	OrderID         string
	Tag             string
	Exchange        string
	TradingSymbol   string
	InstrumentID    int64
	TransactionType string
	OrderType       string
	Price           float64
	TriggerPrice    float64
	Quantity        int
	FilledQuantity  int

	OrderStatus       OrderStatus
	TransactionStatus string
	ExecutionAlgo     string
	IsChildOrder      bool
	PlacementTime     time.Time
}

// ResponseType classifies an asynchronous exchange response.
type ResponseType string

const (
	RespNewOrderConfirm    ResponseType = "NEW_ORDER_CONFIRM"
	RespModOrderConfirm    ResponseType = "MOD_ORDER_CONFIRM"
	RespNewOrderReject     ResponseType = "NEW_ORDER_REJECT"
	RespModOrderReject     ResponseType = "MOD_ORDER_REJECT"
	RespTradeConfirm       ResponseType = "TRADE_CONFIRM"
	RespOMSReject          ResponseType = "OMS_REJECT"
	RespRMSReject          ResponseType = "RMS_REJECT"
	RespCancelOrderConfirm ResponseType = "CANCEL_ORDER_CONFIRM"
	RespTriggerConfirm     ResponseType = "TRIGGER_CONFIRM"
)

// ExchangeResponse is a one-shot venue acknowledgment or fill notification.
type ExchangeResponse struct {
	OrderID      string       `json:"order_id"`
	ResponseType ResponseType `json:"response_type"`
	Quantity     int          `json:"quantity"`
	AveragePrice float64      `json:"average_price"`
	Message      string       `json:"message"`
}
