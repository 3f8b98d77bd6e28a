package market

import (
	"sync"
	"time"
)

// Tick is a single trade update from the venue feed. VolumeTraded is the
// venue's cumulative traded volume for the session, not a per-trade quantity.
type Tick struct {
	InstrumentID  int64     `json:"instrument_id"`
	Symbol        string    `json:"symbol"`
	Exchange      string    `json:"exchange"`
	SecurityType  string    `json:"security_type"`
	LastPrice     float64   `json:"last_price"`
	VolumeTraded  int64     `json:"volume_traded"`
	LastTradeTime time.Time `json:"last_trade_time"`
}

// LastTickCache keeps the most recent valid tick per (exchange, symbol).
// The order coordinator reads it for streaming-readiness checks and as the
// reference price handed to the execution algorithm.
type LastTickCache struct {
	mu    sync.RWMutex
	ticks map[string]Tick
}

func NewLastTickCache() *LastTickCache {
	return &LastTickCache{ticks: make(map[string]Tick)}
}

func tickKey(exchange, symbol string) string {
	return exchange + ":" + symbol
}

func (c *LastTickCache) Put(t Tick) {
	c.mu.Lock()
	c.ticks[tickKey(t.Exchange, t.Symbol)] = t
	c.mu.Unlock()
}

func (c *LastTickCache) Last(exchange, symbol string) (Tick, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.ticks[tickKey(exchange, symbol)]
	return t, ok
}
