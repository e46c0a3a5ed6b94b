package polkadot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// rpcRequest is an outbound JSON-RPC 2.0 request frame.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcMessage is any inbound frame: a call response (ID set) or a
// subscription notification (Params set).
type rpcMessage struct {
	JSONRPC string             `json:"jsonrpc"`
	ID      *uint64            `json:"id"`
	Result  json.RawMessage    `json:"result"`
	Error   *rpcError          `json:"error"`
	Method  string             `json:"method"`
	Params  *subscriptionEvent `json:"params"`
}

type subscriptionEvent struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// rpcConn is a JSON-RPC 2.0 client multiplexed over one WebSocket connection.
// A single reader goroutine routes responses to pending calls and
// notifications to active subscriptions; writes are serialized by writeMu.
type rpcConn struct {
	ws  *websocket.Conn
	url string
	log *logrus.Entry

	writeMu sync.Mutex
	nextID  uint64

	mu      sync.Mutex
	pending map[uint64]chan rpcMessage
	subs    map[string]*subscription
	// Notifications that arrive before their subscription is registered.
	orphans map[string][]json.RawMessage
	err     error
	done    chan struct{}
}

// dialNode establishes a WebSocket connection to a node and starts the
// read loop.
func dialNode(ctx context.Context, url string, log *logrus.Entry) (*rpcConn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}

	c := &rpcConn{
		ws:      ws,
		url:     url,
		log:     log.WithField("rpc_url", url),
		pending: make(map[uint64]chan rpcMessage),
		subs:    make(map[string]*subscription),
		orphans: make(map[string][]json.RawMessage),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *rpcConn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.fail(fmt.Errorf("websocket read: %w", err))
			return
		}

		var msg rpcMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.WithError(err).Warn("discarding unparseable RPC frame")
			continue
		}

		switch {
		case msg.ID != nil:
			c.mu.Lock()
			ch := c.pending[*msg.ID]
			delete(c.pending, *msg.ID)
			c.mu.Unlock()
			if ch != nil {
				ch <- msg
			}
		case msg.Params != nil:
			c.dispatchNotification(msg.Params)
		}
	}
}

func (c *rpcConn) dispatchNotification(ev *subscriptionEvent) {
	c.mu.Lock()
	sub := c.subs[ev.Subscription]
	if sub == nil {
		// The subscribe call may not have returned yet; park the event so
		// it is not lost. Unclaimed orphans die with the connection.
		if len(c.orphans[ev.Subscription]) < 32 {
			c.orphans[ev.Subscription] = append(c.orphans[ev.Subscription], ev.Result)
		}
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	select {
	case sub.events <- ev.Result:
	default:
		c.log.WithField("subscription", ev.Subscription).
			Warn("dropping subscription event, consumer not keeping up")
	}
}

// fail marks the connection dead exactly once and wakes every waiter.
func (c *rpcConn) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	close(c.done)
}

func (c *rpcConn) readErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// close tears down the socket; the read loop observes the closure and fails
// all in-flight calls and subscriptions.
func (c *rpcConn) close() {
	_ = c.ws.Close()
}

// call performs one request/response round trip.
func (c *rpcConn) call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}

	id := atomic.AddUint64(&c.nextID, 1)
	ch := make(chan rpcMessage, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case msg := <-ch:
		if msg.Error != nil {
			return nil, msg.Error
		}
		return msg.Result, nil
	case <-c.done:
		return nil, c.readErr()
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// notify sends a request without waiting for its response. The eventual
// response frame is discarded by the read loop.
func (c *rpcConn) notify(method string, params ...interface{}) {
	if params == nil {
		params = []interface{}{}
	}
	id := atomic.AddUint64(&c.nextID, 1)
	if err := c.write(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		c.log.WithError(err).WithField("method", method).Debug("fire-and-forget RPC write failed")
	}
}

func (c *rpcConn) write(req rpcRequest) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(req); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// subscription is a produced-once, finite stream of notification payloads.
type subscription struct {
	id      string
	conn    *rpcConn
	unwatch string
	events  chan json.RawMessage
}

// subscribe issues a subscription call and registers the returned id for
// notification routing, draining any events that raced ahead of us.
func (c *rpcConn) subscribe(ctx context.Context, method, unwatchMethod string, params ...interface{}) (*subscription, error) {
	result, err := c.call(ctx, method, params...)
	if err != nil {
		return nil, err
	}

	var id string
	if err := json.Unmarshal(result, &id); err != nil {
		return nil, fmt.Errorf("decode subscription id: %w", err)
	}

	sub := &subscription{
		id:      id,
		conn:    c,
		unwatch: unwatchMethod,
		events:  make(chan json.RawMessage, 32),
	}

	c.mu.Lock()
	for _, ev := range c.orphans[id] {
		sub.events <- ev
	}
	delete(c.orphans, id)
	c.subs[id] = sub
	c.mu.Unlock()

	return sub, nil
}

// Next blocks until the next event, a connection failure, or ctx expiry.
func (s *subscription) Next(ctx context.Context) (json.RawMessage, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.conn.done:
		// Deliver events that were queued before the connection died.
		select {
		case ev := <-s.events:
			return ev, nil
		default:
		}
		return nil, s.conn.readErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// close deregisters the subscription and tells the node to stop watching.
func (s *subscription) close() {
	s.conn.mu.Lock()
	delete(s.conn.subs, s.id)
	s.conn.mu.Unlock()
	s.conn.notify(s.unwatch, s.id)
}
