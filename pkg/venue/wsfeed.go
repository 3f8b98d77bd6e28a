package venue

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// FeedClient handles the WebSocket connection to the venue's tick feed and
// routes raw messages to a handler.
type FeedClient struct {
	url     string
	topics  []string
	conn    *websocket.Conn
	handler func([]byte)
	logger  *zap.Logger
}

// NewFeedClient creates a feed client subscribing to the given topics.
func NewFeedClient(url string, topics []string, logger *zap.Logger) *FeedClient {
	return &FeedClient{
		url:    url,
		topics: topics,
		logger: logger,
	}
}

// SetMessageHandler sets the function to handle incoming messages.
func (c *FeedClient) SetMessageHandler(h func([]byte)) {
	c.handler = h
}

// Connect establishes the WebSocket connection and subscribes to the tick
// topics. It does not start the listener.
func (c *FeedClient) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		c.logger.Error("failed to connect to feed", zap.String("url", c.url), zap.Error(err))
		return err
	}
	c.conn = conn
	c.logger.Info("feed connected", zap.String("url", c.url))

	subMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": c.topics,
	}
	if err := conn.WriteJSON(subMsg); err != nil {
		c.logger.Error("failed to send subscription", zap.Error(err))
		return err
	}

	return nil
}

// Listen reads feed messages until the connection drops, then reconnects and
// resubscribes indefinitely.
func (c *FeedClient) Listen() {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.logger.Error("feed read error", zap.Error(err))

			for {
				time.Sleep(3 * time.Second)
				if err := c.reconnectAndResubscribe(); err != nil {
					c.logger.Warn("retrying feed reconnect...")
					continue
				}
				c.logger.Info("feed reconnected")
				break
			}
			continue // start listening again with the new connection
		}

		if c.handler != nil {
			c.handler(msg)
		}
	}
}

func (c *FeedClient) reconnectAndResubscribe() error {
	newConn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return err
	}

	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = newConn

	subMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": c.topics,
	}
	if err := c.conn.WriteJSON(subMsg); err != nil {
		return fmt.Errorf("feed subscribe failed: %w", err)
	}

	return nil
}
