// Package stream manages the long-lived WebSocket connections that deliver
// live bars. Each subscription owns one Conn: the dialer performs the
// venue-specific handshake, keeps the connection alive with periodic pings,
// and transparently redials with backoff when the venue drops it. The
// Table type maps subscriber IDs to their connections so subscriptions can
// be replaced and cancelled idempotently.
package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/gorilla/websocket"

	"github.com/veiloq/chart-datafeed/pkg/logging"
)

// MessageHandler receives every inbound frame from a connection.
type MessageHandler func(message []byte)

// Config describes one streaming connection.
type Config struct {
	// URL is the full WebSocket endpoint, including any stream path.
	URL string

	// Handshake messages are JSON-encoded and sent in order after every
	// (re)dial, e.g. a venue subscribe request. May be empty for venues
	// that encode the subscription in the URL.
	Handshake []interface{}

	// PingMessage, when non-nil, is sent every HeartbeatInterval instead
	// of a WebSocket ping control frame. A []byte value is sent verbatim
	// as a text frame (OKX expects the bare word "ping"); anything else
	// is JSON-encoded (Bybit expects {"op":"ping"}).
	PingMessage interface{}

	// HeartbeatInterval is the keep-alive period; the read deadline is
	// three times this value.
	HeartbeatInterval time.Duration

	// ReconnectInterval is the base delay between redial attempts,
	// MaxRetries the attempt budget per disconnect.
	ReconnectInterval time.Duration
	MaxRetries        uint

	// Logger receives connection lifecycle events. Nil disables logging.
	Logger logging.Logger
}

// Conn is one live streaming connection. Create it with Dial; it stays up,
// redialing as needed, until Close is called or the redial budget is spent.
type Conn struct {
	config    Config
	onMessage MessageHandler
	logger    logging.Logger

	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// Dial opens a connection, performs the handshake and starts the read loop.
// The first dial is synchronous so callers learn immediately whether the
// subscription could be established; later disconnects are handled by
// background redials.
func Dial(config Config, onMessage MessageHandler) (*Conn, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("stream: empty URL")
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = 20 * time.Second
	}
	if config.ReconnectInterval <= 0 {
		config.ReconnectInterval = 5 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		config:    config,
		onMessage: onMessage,
		logger:    logger,
		cancel:    cancel,
	}

	ws, err := c.dial(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	go c.run(ctx, ws)
	return c, nil
}

// Close tears the connection down. Safe to call from any goroutine and
// idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	return nil
}

// dial establishes one WebSocket session and replays the handshake.
func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	ws, _, err := dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("stream: dial %s: %w", c.config.URL, err)
	}

	for _, msg := range c.config.Handshake {
		if err := ws.WriteJSON(msg); err != nil {
			ws.Close()
			return nil, fmt.Errorf("stream: handshake: %w", err)
		}
	}

	c.logger.Debug("stream connected", logging.String("url", c.config.URL))
	return ws, nil
}

// run owns the connection for its whole lifetime: read until failure,
// redial with backoff, repeat until the context is cancelled or the redial
// budget is exhausted.
func (c *Conn) run(ctx context.Context, ws *websocket.Conn) {
	for {
		err := c.readLoop(ctx, ws)

		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		ws.Close()

		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("stream disconnected, redialing",
			logging.String("url", c.config.URL),
			logging.Error(err),
		)

		next, err := c.redial(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Error("stream redial failed, giving up",
					logging.String("url", c.config.URL),
					logging.Error(err),
				)
			}
			return
		}
		ws = next
	}
}

// redial retries the dial with backoff until it succeeds or the attempt
// budget is spent.
func (c *Conn) redial(ctx context.Context) (*websocket.Conn, error) {
	var ws *websocket.Conn
	err := retry.Do(
		func() error {
			if ctx.Err() != nil {
				return retry.Unrecoverable(ctx.Err())
			}
			var err error
			ws, err = c.dial(ctx)
			return err
		},
		retry.Attempts(c.config.MaxRetries),
		retry.Delay(c.config.ReconnectInterval),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("stream redial attempt failed",
				logging.Int("attempt", int(n+1)),
				logging.Error(err),
			)
		}),
	)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// readLoop reads frames until an error occurs, keeping the connection alive
// with heartbeat pings and a rolling read deadline.
func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) error {
	deadline := 3 * c.config.HeartbeatInterval
	ws.SetReadDeadline(time.Now().Add(deadline))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(deadline))
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		for {
			_, message, err := ws.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			ws.SetReadDeadline(time.Now().Add(deadline))
			c.onMessage(message)
		}
	}()

	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-ticker.C:
			if err := c.ping(ws); err != nil {
				return err
			}
		}
	}
}

func (c *Conn) ping(ws *websocket.Conn) error {
	switch msg := c.config.PingMessage.(type) {
	case nil:
		return ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
	case []byte:
		return ws.WriteMessage(websocket.TextMessage, msg)
	default:
		return ws.WriteJSON(msg)
	}
}
