package channel

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iksnae/agent-chat/internal"
)

const (
	// Time allowed to write a control message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next message or pong from the peer
	pongWait = 60 * time.Second

	// Send pings with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum event size accepted from the agent
	maxMessageSize = 8 * 1024 * 1024

	defaultBuffer = 64
)

// ErrClosedByAgent reports a normal close initiated by the agent
var ErrClosedByAgent = errors.New("event channel closed by agent")

// Client is the event channel to the agent backend. It decodes every text
// message into an internal.Event and delivers them in arrival order.
type Client struct {
	url     string
	conn    *websocket.Conn
	events  chan internal.Event
	done    chan struct{}
	quit    chan struct{}
	onState func(internal.ConnectionState)

	pingPeriod time.Duration
	pongWait   time.Duration

	mu      sync.Mutex
	state   internal.ConnectionState
	closing bool
	err     error
	// forwarded is set while Forward drains events; the final closed state
	// is then reported by Forward once the buffer is empty
	forwarded      bool
	closedReported bool
}

type options struct {
	header     http.Header
	onState    func(internal.ConnectionState)
	buffer     int
	pingPeriod time.Duration
	pongWait   time.Duration
	dialer     *websocket.Dialer
}

// Option configures Dial
type Option func(*options)

// WithHeader adds handshake headers
func WithHeader(h http.Header) Option {
	return func(o *options) { o.header = h }
}

// WithStateHandler registers a callback for every connection state change
func WithStateHandler(fn func(internal.ConnectionState)) Option {
	return func(o *options) { o.onState = fn }
}

// WithBuffer sets how many decoded events may queue before reads block
func WithBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// WithKeepalive overrides the ping period and pong deadline
func WithKeepalive(ping, pong time.Duration) Option {
	return func(o *options) {
		if ping > 0 && pong > ping {
			o.pingPeriod, o.pongWait = ping, pong
		}
	}
}

// WithDialer replaces the default websocket dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// Dial opens the event channel. An empty url is a configuration error and
// no connection is attempted.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		err := &internal.ConfigError{Key: "ws_url", Err: errors.New("event channel URL is not configured")}
		internal.LogError("%v", err)
		return nil, err
	}

	o := options{
		buffer:     defaultBuffer,
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
		dialer:     websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		url:        url,
		events:     make(chan internal.Event, o.buffer),
		done:       make(chan struct{}),
		quit:       make(chan struct{}),
		onState:    o.onState,
		pingPeriod: o.pingPeriod,
		pongWait:   o.pongWait,
		state:      internal.ConnectionUninstantiated,
	}

	c.setState(internal.ConnectionConnecting)
	internal.LogDebug("Dialing %s", url)
	conn, resp, err := o.dialer.DialContext(ctx, url, o.header)
	if err != nil {
		te := &internal.TransportError{Op: "dial", URL: url, Err: err}
		if resp != nil {
			te.Status = resp.StatusCode
			resp.Body.Close()
		}
		c.setState(internal.ConnectionClosed)
		return nil, te
	}
	c.conn = conn
	c.setState(internal.ConnectionOpen)
	internal.LogInfo("Connected to %s", url)

	go c.readPump()
	go c.pingLoop()
	return c, nil
}

// Events delivers decoded events. It is closed when the connection ends;
// Err then reports why.
func (c *Client) Events() <-chan internal.Event {
	return c.events
}

// Done is closed once the read loop has exited
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, or nil after Close or a
// normal close from the server
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// State returns the current connection state
func (c *Client) State() internal.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// URL returns the address the client is connected to
func (c *Client) URL() string {
	return c.url
}

// Close sends a close frame and tears the connection down. It waits for the
// read loop to exit.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	c.closing = true
	c.mu.Unlock()

	c.setState(internal.ConnectionClosing)
	close(c.quit)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		internal.LogDebug("Close frame not sent: %v", err)
	}
	err := c.conn.Close()
	<-c.done
	return err
}

// readPump decodes messages until the connection fails or is closed
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		c.mu.Lock()
		c.state = internal.ConnectionClosed
		report := !c.forwarded
		c.mu.Unlock()
		if report {
			c.reportClosed()
		}
		close(c.events)
		close(c.done)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		kind, message, err := c.conn.ReadMessage()
		if err != nil {
			c.finish(err)
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		if kind != websocket.TextMessage {
			internal.LogDebug("Ignoring non-text frame of %d bytes", len(message))
			continue
		}

		ev, err := internal.DecodeEvent(message)
		if err != nil {
			internal.LogWarn("Dropping malformed event: %v", err)
			continue
		}
		internal.LogDebug("Received %s event", ev.Type())
		select {
		case c.events <- ev:
		case <-c.quit:
			return
		}
	}
}

func (c *Client) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		internal.LogInfo("Agent closed the connection: %v", err)
		return
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
		internal.LogError("WebSocket error: %v", err)
	}
	c.err = &internal.TransportError{Op: "read", URL: c.url, Err: err}
}

// closedLocally reports whether Close was called
func (c *Client) closedLocally() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

// attach hands reporting of the closed state over to a forwarder
func (c *Client) attach() {
	c.mu.Lock()
	c.forwarded = true
	c.mu.Unlock()
}

// detach takes reporting back, delivering a close that already happened
func (c *Client) detach() {
	c.mu.Lock()
	c.forwarded = false
	pending := c.state == internal.ConnectionClosed
	c.mu.Unlock()
	if pending {
		c.reportClosed()
	}
}

// reportClosed delivers the closed state to the state handler exactly once
func (c *Client) reportClosed() {
	c.mu.Lock()
	if c.closedReported {
		c.mu.Unlock()
		return
	}
	c.closedReported = true
	fn := c.onState
	c.mu.Unlock()

	if fn != nil {
		fn(internal.ConnectionClosed)
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				internal.LogDebug("Ping failed: %v", err)
				return
			}
		}
	}
}

func (c *Client) setState(state internal.ConnectionState) {
	c.mu.Lock()
	// a connection that already ended never goes back to closing
	if c.state == state || (c.state == internal.ConnectionClosed && state == internal.ConnectionClosing) {
		c.mu.Unlock()
		return
	}
	c.state = state
	fn := c.onState
	c.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}
