package coordinator

import (
	"encoding/json"
	"strings"
	"time"

	"quantcoord/internal/market"

	"go.uber.org/zap"
)

// tickMessage is the feed's wire envelope for a batch of ticks, e.g. topic
// "tick.NSE.RELIANCE".
type tickMessage struct {
	Topic string        `json:"topic"`
	Data  []tickPayload `json:"data"`
	Ts    int64         `json:"ts"`
	Type  string        `json:"type"`
}

type tickPayload struct {
	InstrumentID  int64   `json:"instrument_id"`
	Symbol        string  `json:"symbol"`
	Exchange      string  `json:"exchange"`
	SecurityType  string  `json:"security_type"`
	LastPrice     float64 `json:"last_price"`
	VolumeTraded  int64   `json:"volume_traded"`
	LastTradeTime int64   `json:"last_trade_time"` // milliseconds since epoch
}

// MakeTickHandler returns a feed message handler that decodes tick batches
// and routes them into the coordinator. Non-tick messages (subscription
// acks, heartbeats) are ignored; undecodable ones are logged and dropped.
func MakeTickHandler(logger *zap.Logger, c *Coordinator) func(msg []byte) {
	return func(msg []byte) {
		var meta struct {
			Topic string `json:"topic"`
		}
		if err := json.Unmarshal(msg, &meta); err != nil {
			logger.Warn("failed to extract topic", zap.Error(err))
			return
		}
		if !isTickTopic(meta.Topic) {
			return
		}

		var parsed tickMessage
		if err := json.Unmarshal(msg, &parsed); err != nil {
			logger.Warn("failed to parse tick payload", zap.Error(err))
			return
		}

		ticks := make([]market.Tick, 0, len(parsed.Data))
		for _, d := range parsed.Data {
			ticks = append(ticks, market.Tick{
				InstrumentID:  d.InstrumentID,
				Symbol:        d.Symbol,
				Exchange:      d.Exchange,
				SecurityType:  d.SecurityType,
				LastPrice:     d.LastPrice,
				VolumeTraded:  d.VolumeTraded,
				LastTradeTime: time.UnixMilli(d.LastTradeTime),
			})
		}
		c.OnTick(ticks)
	}
}

// isTickTopic returns true if the topic string indicates a tick stream.
func isTickTopic(topic string) bool {
	return strings.HasPrefix(topic, "tick.")
}
