// Package realtime maintains the authenticated WebSocket connection that
// delivers notification and chat events.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nhle/storefront/internal/api"
	"github.com/nhle/storefront/internal/model"
)

const (
	// writeWait bounds control frame writes.
	writeWait = 10 * time.Second

	// maxMessageSize is the largest frame accepted from the server.
	maxMessageSize = 64 * 1024
)

// Options configures a Channel.
type Options struct {
	URL          string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	// PongWait is how long the connection may stay silent before it is
	// considered dead. Pings are sent at 9/10 of it.
	PongWait time.Duration
}

// OptionsFromConfig builds Options from the application config.
func OptionsFromConfig(cfg *model.AppConfig) Options {
	return Options{
		URL:          cfg.API.WebSocketURL(),
		ReconnectMin: time.Duration(cfg.Realtime.ReconnectMinMs) * time.Millisecond,
		ReconnectMax: time.Duration(cfg.Realtime.ReconnectMaxMs) * time.Millisecond,
		PongWait:     time.Duration(cfg.Realtime.PongWaitSec) * time.Second,
	}
}

func (o *Options) applyDefaults() {
	if o.ReconnectMin <= 0 {
		o.ReconnectMin = 500 * time.Millisecond
	}
	if o.ReconnectMax < o.ReconnectMin {
		o.ReconnectMax = 30 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
}

// Channel is a self-reconnecting client for the notification socket.
// Decoded events are passed to the handler from a single goroutine, in
// the order they were received.
type Channel struct {
	opts    Options
	auth    api.Authenticator
	handler func(model.Event)
	dialer  *websocket.Dialer
	logger  *zap.Logger

	wake chan struct{}

	mu          sync.Mutex
	state       State
	observers   []func(State)
	onConnected []func()
	conn        *websocket.Conn
	cancel      context.CancelFunc
	done        chan struct{}
}

// New creates a Channel. It does nothing until Start is called.
func New(opts Options, auth api.Authenticator, handler func(model.Event), logger *zap.Logger) *Channel {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		opts:    opts,
		auth:    auth,
		handler: handler,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
		},
		logger: logger,
		wake:   make(chan struct{}, 1),
		state:  StateDisconnected,
	}
}

// OnStateChange registers fn to be called on every state transition.
func (c *Channel) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// OnConnected registers fn to be called after every successful connect
// and reconnect. Hooks run on their own goroutine.
func (c *Channel) OnConnected(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnected = append(c.onConnected, fn)
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	if c.state == s || c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = s
	observers := append([]func(State){}, c.observers...)
	c.mu.Unlock()

	c.logger.Debug("realtime state", zap.Stringer("state", s))
	for _, fn := range observers {
		fn(s)
	}
}

// Start launches the connection loop. It returns immediately.
func (c *Channel) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil || c.state == StateClosed {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)
}

// Wake makes a channel that is waiting for a session, or backing off,
// try to connect now. Call it after login.
func (c *Channel) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Close tears the connection down for good and waits for the loop to
// exit. The channel cannot be restarted.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	cancel, done, conn := c.cancel, c.done, c.conn
	observers := append([]func(State){}, c.observers...)
	c.state = StateClosed
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if done != nil {
		<-done
	}
	for _, fn := range observers {
		fn(StateClosed)
	}
}

// Disconnect drops the current connection. The loop reconnects after
// its backoff while a session exists and otherwise waits for Wake, so
// calling it after logout parks the channel.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)

	backoff := c.opts.ReconnectMin
	authRetried := false

	for ctx.Err() == nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL, nil)
		if err != nil {
			c.logger.Error("invalid realtime URL", zap.String("url", c.opts.URL), zap.Error(err))
			return
		}
		token := c.auth.AttachCredentials(req)
		if token == "" {
			c.setState(StateDisconnected)
			if !c.waitWake(ctx, 0) {
				return
			}
			continue
		}

		c.setState(StateConnecting)
		conn, resp, err := c.dialer.DialContext(ctx, c.opts.URL, req.Header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if resp != nil && resp.StatusCode == http.StatusUnauthorized && !authRetried {
				authRetried = true
				c.logger.Debug("realtime handshake rejected, recovering session")
				if _, authErr := c.auth.HandleAuthFailure(ctx, token); authErr != nil {
					c.logger.Info("realtime channel waiting for login", zap.Error(authErr))
				}
				continue
			}

			c.setState(StateDisconnected)
			c.logger.Warn("realtime connect failed",
				zap.String("url", c.opts.URL),
				zap.Duration("retry_in", backoff),
				zap.Error(err),
			)
			if !c.waitWake(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, c.opts.ReconnectMax)
			authRetried = false
			continue
		}

		authRetried = false
		connectedAt := time.Now()
		c.serve(ctx, conn)

		if ctx.Err() != nil {
			return
		}
		c.setState(StateDisconnected)

		// Only a connection that stayed up resets the backoff, so a
		// server that accepts and drops at once is not redialed in a loop.
		if time.Since(connectedAt) > c.opts.ReconnectMin {
			backoff = c.opts.ReconnectMin
		}
		c.logger.Debug("realtime reconnect scheduled", zap.Duration("retry_in", backoff))
		if !c.waitWake(ctx, backoff) {
			return
		}
		backoff = min(backoff*2, c.opts.ReconnectMax)
	}
}

// waitWake blocks until Wake, ctx cancellation, or d elapses (d <= 0
// waits for Wake only). It reports false when ctx is done.
func (c *Channel) waitWake(ctx context.Context, d time.Duration) bool {
	var timer <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timer = t.C
	}
	select {
	case <-ctx.Done():
		return false
	case <-c.wake:
		return true
	case <-timer:
		return true
	}
}

// serve owns conn until it fails or is closed.
func (c *Channel) serve(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	hooks := append([]func(){}, c.onConnected...)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	c.setState(StateConnected)
	c.logger.Info("realtime channel connected", zap.String("url", c.opts.URL))
	for _, fn := range hooks {
		go fn()
	}

	pingDone := make(chan struct{})
	defer close(pingDone)
	go c.pingLoop(conn, pingDone)

	conn.SetReadLimit(maxMessageSize)
	extend := func() { conn.SetReadDeadline(time.Now().Add(c.opts.PongWait)) }
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		extend()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("realtime connection lost", zap.Error(err))
			}
			return
		}
		extend()

		var wire api.WireNotification
		if err := json.Unmarshal(frame, &wire); err != nil {
			c.logger.Warn("skipping malformed realtime frame", zap.Error(err), zap.Int("bytes", len(frame)))
			continue
		}
		if c.handler != nil {
			c.handler(wire.Event())
		}
	}
}

func (c *Channel) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
