package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var (
	ErrConnectionClosed = errors.New("subscription connection closed")
	ErrAckTimeout       = errors.New("timed out waiting for connection_ack")
)

// Options configures a subscription connection.
type Options struct {
	// Header is sent with the websocket handshake.
	Header http.Header
	// InitPayload is sent as the connection_init payload, e.g. an auth token.
	InitPayload map[string]any

	HandshakeTimeout time.Duration
	AckTimeout       time.Duration
	WriteTimeout     time.Duration
	// KeepAlive is the protocol ping interval. Negative disables pings.
	KeepAlive time.Duration
	// BufferSize is the per-subscription message buffer.
	BufferSize int

	Logger *logrus.Logger
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 30 * time.Second
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.KeepAlive == 0 {
		o.KeepAlive = 30 * time.Second
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 16
	}
	if o.Logger == nil {
		o.Logger = logrus.New()
		o.Logger.SetOutput(io.Discard)
	}
	return o
}

// Conn is a graphql-transport-ws connection multiplexing many subscriptions.
type Conn struct {
	ws     *websocket.Conn
	opts   Options
	logger *logrus.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool
	err    error

	done      chan struct{}
	readDone  chan struct{}
	closeOnce sync.Once
}

// Dial opens the websocket, performs the connection_init handshake and
// starts the read loop.
func Dial(ctx context.Context, endpoint string, opts Options) (*Conn, error) {
	opts = opts.withDefaults()

	wsURL, err := WebSocketURL(endpoint)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
		Subprotocols:     []string{Subprotocol},
	}

	ws, resp, err := dialer.DialContext(ctx, wsURL, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to websocket (status: %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to websocket: %w", err)
	}
	if ws.Subprotocol() != Subprotocol {
		_ = ws.Close()
		return nil, fmt.Errorf("server did not accept subprotocol %s", Subprotocol)
	}

	c := &Conn{
		ws:       ws,
		opts:     opts,
		logger:   opts.Logger,
		subs:     make(map[string]*Subscription),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}

	if err := c.init(ctx); err != nil {
		_ = ws.Close()
		return nil, err
	}

	go c.readLoop()
	if opts.KeepAlive > 0 {
		go c.keepAlive()
	}

	c.logger.WithField("url", wsURL).Info("subscription connection established")

	return c, nil
}

// WebSocketURL converts an http(s) GraphQL endpoint to its ws(s) form.
func WebSocketURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid subscription url %q: %w", endpoint, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported subscription url scheme %q", u.Scheme)
	}

	return u.String(), nil
}

func (c *Conn) init(ctx context.Context) error {
	init := Envelope{Type: MsgConnectionInit}
	if c.opts.InitPayload != nil {
		payload, err := json.Marshal(c.opts.InitPayload)
		if err != nil {
			return fmt.Errorf("encode connection_init payload: %w", err)
		}
		init.Payload = payload
	}
	if err := c.write(init); err != nil {
		return fmt.Errorf("send connection_init: %w", err)
	}

	deadline := time.Now().Add(c.opts.AckTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}

	for {
		var env Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return ErrAckTimeout
			}
			return fmt.Errorf("waiting for connection_ack: %w", err)
		}

		switch env.Type {
		case MsgConnectionAck:
			return c.ws.SetReadDeadline(time.Time{})
		case MsgPing:
			if err := c.write(Envelope{Type: MsgPong}); err != nil {
				return fmt.Errorf("send pong: %w", err)
			}
		default:
			return fmt.Errorf("unexpected %q before connection_ack", env.Type)
		}
	}
}

// Subscribe starts an operation. The subscription ends, and its channel
// closes, when the server completes it, when ctx is done, on Unsubscribe or
// when the connection closes.
func (c *Conn) Subscribe(ctx context.Context, operationName, query string, variables map[string]any) (*Subscription, error) {
	payload, err := json.Marshal(SubscribePayload{
		OperationName: operationName,
		Query:         query,
		Variables:     variables,
	})
	if err != nil {
		return nil, fmt.Errorf("encode subscribe payload: %w", err)
	}

	sub := newSubscription(c, uuid.NewString(), operationName, c.opts.BufferSize)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	c.subs[sub.id] = sub
	c.mu.Unlock()

	if err := c.write(Envelope{ID: sub.id, Type: MsgSubscribe, Payload: payload}); err != nil {
		c.remove(sub.id)
		sub.finish(err)
		return nil, fmt.Errorf("send subscribe: %w", err)
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-sub.stop:
		}
	}()

	c.logger.WithFields(logrus.Fields{
		"operation": operationName,
		"id":        sub.id,
	}).Debug("subscribed")

	return sub, nil
}

// Close ends every subscription with ErrConnectionClosed and closes the socket.
func (c *Conn) Close() error {
	c.shutdown(ErrConnectionClosed, true)
	<-c.readDone
	return nil
}

// Done is closed once the connection is gone.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection closed.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) shutdown(cause error, graceful bool) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.err = cause
		subs := make([]*Subscription, 0, len(c.subs))
		for id, sub := range c.subs {
			subs = append(subs, sub)
			delete(c.subs, id)
		}
		c.mu.Unlock()

		close(c.done)

		if graceful {
			c.writeMu.Lock()
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteTimeout))
			c.writeMu.Unlock()
		}
		_ = c.ws.Close()

		for _, sub := range subs {
			sub.finish(cause)
		}

		c.logger.WithError(cause).Info("subscription connection closed")
	})
}

func (c *Conn) readLoop() {
	defer close(c.readDone)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			var cause error = ErrConnectionClosed
			var closeErr *websocket.CloseError
			switch {
			case errors.As(err, &closeErr) && isProtocolCloseCode(closeErr.Code):
				c.logger.WithField("code", closeErr.Code).WithField("reason", closeErr.Text).Warn("server closed subscription connection")
				cause = &CloseError{Code: closeErr.Code, Reason: closeErr.Text}
			case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				c.logger.WithError(err).Warn("subscription read error")
				cause = fmt.Errorf("%w: %w", ErrConnectionClosed, err)
			}
			c.shutdown(cause, false)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.WithError(err).Warn("ignoring malformed message")
			continue
		}

		c.dispatch(env)
	}
}

func (c *Conn) dispatch(env Envelope) {
	switch env.Type {
	case MsgPing:
		if err := c.write(Envelope{Type: MsgPong, Payload: env.Payload}); err != nil {
			c.logger.WithError(err).Warn("failed to answer ping")
		}
		return
	case MsgPong, MsgConnectionAck:
		return
	}

	sub := c.lookup(env.ID)
	if sub == nil {
		// late frames for finished subscriptions
		return
	}

	switch env.Type {
	case MsgNext:
		var msg Message
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			c.remove(sub.id)
			sub.finish(fmt.Errorf("decode next payload: %w", err))
			return
		}
		sub.deliver(msg)
	case MsgError:
		var errs Error
		if err := json.Unmarshal(env.Payload, &errs.Errors); err != nil {
			errs.Errors = nil
		}
		c.remove(sub.id)
		sub.deliver(Message{Errors: errs.Errors})
		sub.finish(&errs)
	case MsgComplete:
		c.remove(sub.id)
		sub.finish(nil)
	default:
		c.logger.WithField("type", env.Type).Debug("ignoring unknown message")
	}
}

func (c *Conn) keepAlive() {
	ticker := time.NewTicker(c.opts.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.write(Envelope{Type: MsgPing}); err != nil {
				c.logger.WithError(err).Warn("failed to send ping")
				return
			}
		}
	}
}

func (c *Conn) write(env Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(env)
}

func (c *Conn) lookup(id string) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[id]
}

// remove reports whether id was still registered.
func (c *Conn) remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[id]; !ok {
		return false
	}
	delete(c.subs, id)
	return true
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
