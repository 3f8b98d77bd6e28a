package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"quantcoord/internal/market"
	"quantcoord/internal/orders"
)

// RESTClient is a venue adapter speaking a plain JSON-over-HTTP order and
// market-data API. Authentication is the caller's concern (e.g. an
// http.RoundTripper injecting credentials).
type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Adapter = (*RESTClient)(nil)

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// venueEnvelope is the standard response wrapper returned by the venue.
type venueEnvelope struct {
	RetCode int             `json:"ret_code"`
	RetMsg  string          `json:"ret_msg"`
	Result  json.RawMessage `json:"result"`
}

type orderPayload struct {
	OrderID         string  `json:"order_id,omitempty"`
	Tag             string  `json:"tag"`
	Exchange        string  `json:"exchange"`
	TradingSymbol   string  `json:"tradingsymbol"`
	InstrumentID    int64   `json:"instrument_id"`
	TransactionType string  `json:"transaction_type"`
	OrderType       string  `json:"order_type"`
	Price           float64 `json:"price"`
	TriggerPrice    float64 `json:"trigger_price,omitempty"`
	Quantity        int     `json:"quantity"`
}

type placeResult struct {
	OrderID string        `json:"order_id"`
	Order   *orderPayload `json:"order"`
}

// PlaceNewOrder submits a new order and returns the venue-assigned id and
// the order as the venue accepted it.
func (c *RESTClient) PlaceNewOrder(ctx context.Context, o *orders.Order) (string, *orders.Order, error) {
	var result placeResult
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/orders", toPayload(o), &result); err != nil {
		return "", nil, err
	}
	accepted := mergePayload(o, result.Order)
	accepted.OrderID = result.OrderID
	return result.OrderID, accepted, nil
}

// ModifyExistingOrder re-submits mutated parameters for a working order.
func (c *RESTClient) ModifyExistingOrder(ctx context.Context, o *orders.Order) (*orders.Order, error) {
	var result placeResult
	url := fmt.Sprintf("%s/v1/orders/%s", c.baseURL, o.OrderID)
	if err := c.doJSON(ctx, http.MethodPut, url, toPayload(o), &result); err != nil {
		return nil, err
	}
	return mergePayload(o, result.Order), nil
}

type candlePayload struct {
	BucketStart int64   `json:"bucket_start"` // milliseconds since epoch
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      int64   `json:"volume"`
	TotalVolume int64   `json:"total_volume"`
}

// GetHistoricalData fetches finalized candles per interval for a symbol.
func (c *RESTClient) GetHistoricalData(ctx context.Context, symbol string, start, end time.Time) (map[string][]market.Candle, error) {
	url := fmt.Sprintf(
		"%s/v1/market/candles?symbol=%s&start=%d&end=%d",
		c.baseURL, symbol, start.UnixMilli(), end.UnixMilli(),
	)

	var raw map[string][]candlePayload
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &raw); err != nil {
		return nil, err
	}

	out := make(map[string][]market.Candle, len(raw))
	for interval, rows := range raw {
		candles := make([]market.Candle, 0, len(rows))
		for _, row := range rows {
			candles = append(candles, market.Candle{
				Symbol:      symbol,
				Interval:    interval,
				BucketStart: time.UnixMilli(row.BucketStart),
				Open:        row.Open,
				High:        row.High,
				Low:         row.Low,
				Close:       row.Close,
				Volume:      row.Volume,
				TotalVolume: row.TotalVolume,
			})
		}
		out[interval] = candles
	}
	return out, nil
}

// IsValidLiveTick rejects ticks the venue feed is known to emit during
// warm-up: zero/negative prices, empty symbols, and zero trade times.
func (c *RESTClient) IsValidLiveTick(t market.Tick) bool {
	return t.Symbol != "" && t.LastPrice > 0 && !t.LastTradeTime.IsZero()
}

func (c *RESTClient) doJSON(ctx context.Context, method, url string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	// Construct the request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("venue error: %s", msg)
	}

	var envelope venueEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.RetCode != 0 {
		return fmt.Errorf("venue rejected request: %s", envelope.RetMsg)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

func toPayload(o *orders.Order) *orderPayload {
	return &orderPayload{
		OrderID:         o.OrderID,
		Tag:             o.Tag,
		Exchange:        o.Exchange,
		TradingSymbol:   o.TradingSymbol,
		InstrumentID:    o.InstrumentID,
		TransactionType: o.TransactionType,
		OrderType:       o.OrderType,
		Price:           o.Price,
		TriggerPrice:    o.TriggerPrice,
		Quantity:        o.Quantity,
	}
}

// mergePayload folds the venue's view of the order back onto the local one.
func mergePayload(o *orders.Order, p *orderPayload) *orders.Order {
	merged := *o
	if p != nil {
		merged.Price = p.Price
		merged.TriggerPrice = p.TriggerPrice
		merged.Quantity = p.Quantity
		merged.OrderType = p.OrderType
	}
	return &merged
}
