package feed

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"pump-deck/internal/domain"
	"pump-deck/internal/observability"
)

// Subscription methods on the wire.
const (
	methodSubscribeNewToken   = "subscribeNewToken"
	methodSubscribeTokenTrade = "subscribeTokenTrade"
)

// Config configures feed client behavior.
type Config struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// EventBuffer is the capacity of the delivered events channel.
	EventBuffer int
}

// DefaultConfig returns default feed configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 60 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		EventBuffer:       10000,
	}
}

// subscribeRequest is an outgoing subscription frame.
type subscribeRequest struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

// Client maintains one WebSocket connection to the event feed. Subscriptions
// are remembered and replayed after every reconnect, so a consumer subscribes
// once and keeps reading the Events channel across connection loss.
type Client struct {
	endpoint string
	config   Config
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// subscription registry, replayed on reconnect
	subMu         sync.Mutex
	wantCreations bool
	tradeKeys     map[string]struct{}

	events chan *domain.Event

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewClient creates a new feed client and connects to the endpoint.
func NewClient(ctx context.Context, endpoint string, config *Config, logger *log.Logger) (*Client, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	c := &Client{
		endpoint:  endpoint,
		config:    cfg,
		logger:    logger,
		tradeKeys: make(map[string]struct{}),
		events:    make(chan *domain.Event, cfg.EventBuffer),
		done:      make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	return c, nil
}

// Events returns the stream of decoded events. The channel closes when the
// client closes.
func (c *Client) Events() <-chan *domain.Event {
	return c.events
}

// connect establishes the WebSocket connection.
func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// SubscribeCreations subscribes to new token creation events. Idempotent.
func (c *Client) SubscribeCreations(ctx context.Context) error {
	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}

	c.subMu.Lock()
	c.wantCreations = true
	c.subMu.Unlock()

	return c.send(subscribeRequest{Method: methodSubscribeNewToken})
}

// SubscribeTrades subscribes to trade events for the given mints. Keys
// accumulate across calls; already-subscribed keys are skipped.
func (c *Client) SubscribeTrades(ctx context.Context, keys []string) error {
	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}

	c.subMu.Lock()
	var fresh []string
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := c.tradeKeys[k]; ok {
			continue
		}
		c.tradeKeys[k] = struct{}{}
		fresh = append(fresh, k)
	}
	c.subMu.Unlock()

	if len(fresh) == 0 {
		return nil
	}
	return c.send(subscribeRequest{Method: methodSubscribeTokenTrade, Keys: fresh})
}

// send writes one frame under the connection lock.
func (c *Client) send(req subscribeRequest) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// Close closes the connection and the events channel.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.events)
	return nil
}

// readLoop reads frames, decodes them, and dispatches domain events.
func (c *Client) readLoop() {
	defer c.wg.Done()

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			// reconnectLoop owns the dial; wait for it
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				go c.reconnectLoop()
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		c.handleMessage(message)
	}
}

// handleMessage decodes one frame and delivers it. Acks and malformed frames
// never reach the consumer.
func (c *Client) handleMessage(message []byte) {
	ev, err := decodeFrame(message, time.Now().UTC())
	if err != nil {
		if err == ErrAckFrame {
			observability.RecordFrameDropped("ack")
		} else {
			observability.RecordFrameDropped("malformed")
			c.logger.Printf("drop malformed frame: %v", err)
		}
		return
	}

	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// reconnectLoop keeps dialing until a connection is established or the
// client closes. Backoff doubles per failed attempt, capped at
// MaxReconnectDelay, and the subscription registry is replayed on the
// fresh connection.
func (c *Client) reconnectLoop() {
	defer c.reconnecting.Store(false)

	delay := c.config.ReconnectDelay

	for {
		if c.closed.Load() {
			return
		}

		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}

		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.connect(ctx)
		cancel()

		if err != nil {
			c.logger.Printf("reconnect failed: %v", err)
			delay = delay * 2
			if delay > c.config.MaxReconnectDelay {
				delay = c.config.MaxReconnectDelay
			}
			continue
		}

		observability.RecordReconnect()
		c.logger.Printf("reconnected to %s", c.endpoint)
		c.resubscribeAll()
		return
	}
}

// resubscribeAll replays the full subscription registry.
func (c *Client) resubscribeAll() {
	c.subMu.Lock()
	wantCreations := c.wantCreations
	keys := make([]string, 0, len(c.tradeKeys))
	for k := range c.tradeKeys {
		keys = append(keys, k)
	}
	c.subMu.Unlock()

	if wantCreations {
		if err := c.send(subscribeRequest{Method: methodSubscribeNewToken}); err != nil {
			c.logger.Printf("resubscribe creations: %v", err)
		}
	}
	if len(keys) > 0 {
		if err := c.send(subscribeRequest{Method: methodSubscribeTokenTrade, Keys: keys}); err != nil {
			c.logger.Printf("resubscribe trades: %v", err)
		}
	}
}
