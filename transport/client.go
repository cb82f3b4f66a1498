package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultRequestTimeout is used by Request when no timeout is given.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultReconnectAttempts bounds one reconnect cycle. After the
	// attempts are exhausted the client stays disconnected and fails
	// fast; the next publish or request starts a new cycle.
	DefaultReconnectAttempts = 5

	// DefaultReconnectBackoff is the initial reconnect delay; it
	// doubles on every failed attempt.
	DefaultReconnectBackoff = 250 * time.Millisecond
)

// QueueHandler processes a fire-and-forget delivery. A returned error
// negatively acknowledges the delivery and triggers broker redelivery.
type QueueHandler func(ctx context.Context, env Envelope) error

// RPCHandler processes an RPC delivery and produces the reply that is
// routed back to the caller's correlation id. A returned error or a
// panic is converted into an error reply; it never reaches the caller
// as anything other than a structured reply.
type RPCHandler func(ctx context.Context, env Envelope) (Reply, error)

// Dialer establishes a broker connection for a client.
type Dialer func(ctx context.Context) (*Broker, error)

// ClientOptions configures a transport client. Zero values fall back to
// defaults.
type ClientOptions struct {
	RequestTimeout    time.Duration
	ReconnectAttempts int
	ReconnectBackoff  time.Duration
}

type registration struct {
	queue        string
	rpc          bool
	queueHandler QueueHandler
	rpcHandler   RPCHandler
	attached     *consumer
}

// Client is one plugin's handle on the message transport. It owns the
// plugin's queue consumers, correlates RPC replies by id, and
// reconnects with backoff when the broker connection drops. Publishes
// during a disconnected window fail fast with ErrTransportUnavailable;
// nothing is buffered client-side.
type Client struct {
	name string
	dial Dialer
	opts ClientOptions

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	broker       *Broker
	consumers    map[string]*registration
	closed       bool
	reconnecting bool

	pendingMu sync.Mutex
	pending   map[string]chan Reply
}

// NewClient creates a transport client for the named plugin.
func NewClient(name string, dial Dialer, opts ClientOptions) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = DefaultReconnectAttempts
	}
	if opts.ReconnectBackoff <= 0 {
		opts.ReconnectBackoff = DefaultReconnectBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		name:      name,
		dial:      dial,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		consumers: make(map[string]*registration),
		pending:   make(map[string]chan Reply),
	}
}

// Connect dials the broker and attaches all registered consumers.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.broker != nil {
		return nil
	}

	b, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	c.broker = b

	if err := c.attachAllLocked(); err != nil {
		c.broker = nil
		return err
	}

	log.Printf("[Transport] %s connected", c.name)
	return nil
}

// attachAllLocked attaches every registered consumer to the current
// broker. Caller holds c.mu.
func (c *Client) attachAllLocked() error {
	for _, reg := range c.consumers {
		if reg.attached != nil {
			continue
		}
		con := &consumer{
			client: c.name,
			queue:  reg.queue,
			handle: c.handlerFor(reg),
			stop:   make(chan struct{}),
		}
		if err := c.broker.attach(reg.queue, con); err != nil {
			return err
		}
		reg.attached = con
	}
	return nil
}

// ConsumeQueue registers a fire-and-forget handler for a queue. The
// handler's return value acknowledges or rejects the delivery.
func (c *Client) ConsumeQueue(queueName string, h QueueHandler) error {
	return c.register(&registration{queue: queueName, queueHandler: h})
}

// ConsumeRPCQueue registers an RPC handler for a queue. The handler's
// reply is routed back to the requester; errors and panics become error
// replies.
func (c *Client) ConsumeRPCQueue(queueName string, h RPCHandler) error {
	return c.register(&registration{queue: queueName, rpc: true, rpcHandler: h})
}

func (c *Client) register(reg *registration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if _, exists := c.consumers[reg.queue]; exists {
		return fmt.Errorf("%w: %s", ErrQueueConsumed, reg.queue)
	}
	c.consumers[reg.queue] = reg

	if c.broker != nil {
		return c.attachAllLocked()
	}
	return nil
}

// handlerFor wraps a registration into the broker-facing delivery
// handler, decoding the envelope and enforcing the reply contract.
func (c *Client) handlerFor(reg *registration) func(*delivery) error {
	if reg.rpc {
		return func(d *delivery) error {
			var env Envelope
			if err := json.Unmarshal(d.body, &env); err != nil {
				if d.reply != nil {
					d.reply(ErrorReply(fmt.Sprintf("malformed envelope: %v", err)))
				}
				return nil
			}
			rep := c.invokeRPC(reg.rpcHandler, env)
			if d.reply != nil {
				d.reply(rep)
			}
			return nil
		}
	}

	return func(d *delivery) error {
		var env Envelope
		if err := json.Unmarshal(d.body, &env); err != nil {
			// Malformed payloads are acked; redelivery cannot help.
			log.Printf("[Transport] %s: malformed envelope on %s: %v", c.name, reg.queue, err)
			return nil
		}
		if err := c.invokeQueue(reg.queueHandler, env); err != nil {
			log.Printf("[Transport] %s: handler error on %s: %v", c.name, reg.queue, err)
			return err
		}
		return nil
	}
}

func (c *Client) invokeRPC(h RPCHandler, env Envelope) (rep Reply) {
	defer func() {
		if r := recover(); r != nil {
			rep = ErrorReply(fmt.Sprintf("handler panic: %v", r))
		}
	}()

	rep, err := h(c.ctx, env)
	if err != nil {
		return ErrorReply(err.Error())
	}
	if rep.Status == "" {
		rep.Status = StatusSuccess
	}
	return rep
}

func (c *Client) invokeQueue(h QueueHandler, env Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return h(c.ctx, env)
}

// currentBroker returns the live broker or kicks off a reconnect cycle
// and fails fast.
func (c *Client) currentBroker() (*Broker, error) {
	c.mu.RLock()
	closed, b := c.closed, c.broker
	c.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if b != nil {
		return b, nil
	}

	c.mu.Lock()
	c.maybeReconnectLocked()
	c.mu.Unlock()
	return nil, ErrTransportUnavailable
}

// Publish sends a fire-and-forget envelope to a queue. It returns once
// the broker has accepted the delivery; the delivery then follows
// at-least-once semantics on the consumer side.
func (c *Client) Publish(ctx context.Context, queueName string, env Envelope) error {
	env.IsRPC = false

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	b, err := c.currentBroker()
	if err != nil {
		return err
	}

	if err := b.send(ctx, queueName, &delivery{body: body}); err != nil {
		return c.sendError(err)
	}
	return nil
}

// Request sends an RPC envelope and waits for the correlated reply or
// the timeout. On timeout the correlation entry is released and a late
// reply is discarded.
func (c *Client) Request(ctx context.Context, queueName string, env Envelope, timeout time.Duration) (Reply, error) {
	if timeout <= 0 {
		timeout = c.opts.RequestTimeout
	}
	env.IsRPC = true

	body, err := json.Marshal(env)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	b, err := c.currentBroker()
	if err != nil {
		return Reply{}, err
	}

	correlationID := uuid.NewString()
	ch := make(chan Reply, 1)

	c.pendingMu.Lock()
	c.pending[correlationID] = ch
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, correlationID)
		c.pendingMu.Unlock()
	}()

	d := &delivery{
		body:          body,
		correlationID: correlationID,
		reply: func(rep Reply) {
			c.deliverReply(correlationID, rep)
		},
	}

	if err := b.send(ctx, queueName, d); err != nil {
		return Reply{}, c.sendError(err)
	}

	select {
	case rep := <-ch:
		return rep, nil
	case <-time.After(timeout):
		return Reply{}, fmt.Errorf("%w: %s after %s", ErrRPCTimeout, queueName, timeout)
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case <-c.ctx.Done():
		return Reply{}, ErrClosed
	}
}

// deliverReply routes a reply to its waiting request. Replies arriving
// after the requester gave up are discarded.
func (c *Client) deliverReply(correlationID string, rep Reply) {
	c.pendingMu.Lock()
	ch, ok := c.pending[correlationID]
	if ok {
		delete(c.pending, correlationID)
	}
	c.pendingMu.Unlock()

	if !ok {
		log.Printf("[Transport] %s: discarding late reply (correlation %s)", c.name, correlationID)
		return
	}
	ch <- rep
}

// sendError maps broker-level send failures to transport errors and
// triggers reconnection when the broker went away.
func (c *Client) sendError(err error) error {
	if err == ErrClosed {
		c.mu.Lock()
		c.broker = nil
		c.maybeReconnectLocked()
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	return err
}

// maybeReconnectLocked starts one background reconnect cycle. Caller
// holds c.mu; the flag check keeps cycles from piling up.
func (c *Client) maybeReconnectLocked() {
	if c.reconnecting || c.closed || c.dial == nil {
		return
	}
	c.reconnecting = true
	go c.reconnectLoop()
}

// reconnectLoop re-dials the broker with exponential backoff and
// re-attaches all consumers. It gives up after the configured attempts;
// a later publish or request starts a new cycle.
func (c *Client) reconnectLoop() {
	backoff := c.opts.ReconnectBackoff

	for attempt := 1; attempt <= c.opts.ReconnectAttempts; attempt++ {
		select {
		case <-time.After(backoff):
		case <-c.ctx.Done():
			return
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}

		b, err := c.dial(c.ctx)
		if err == nil {
			c.broker = b
			for _, reg := range c.consumers {
				reg.attached = nil
			}
			err = c.attachAllLocked()
			if err == nil {
				c.reconnecting = false
				c.mu.Unlock()
				log.Printf("[Transport] %s reconnected after %d attempt(s)", c.name, attempt)
				return
			}
			c.broker = nil
		}
		c.mu.Unlock()

		log.Printf("[Transport] %s reconnect attempt %d/%d failed: %v", c.name, attempt, c.opts.ReconnectAttempts, err)
		backoff *= 2
	}

	c.mu.Lock()
	c.reconnecting = false
	c.mu.Unlock()
	log.Printf("[Transport] %s: reconnect attempts exhausted, staying disconnected", c.name)
}

// Disconnect detaches all consumers and drops the broker connection.
// Registered consumers survive and are re-attached on the next Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectLocked()
}

func (c *Client) disconnectLocked() {
	if c.broker == nil {
		return
	}
	for _, reg := range c.consumers {
		if reg.attached != nil {
			c.broker.detach(reg.attached)
			reg.attached = nil
		}
	}
	c.broker = nil
	log.Printf("[Transport] %s disconnected", c.name)
}

// Close shuts down the client. In-flight requests fail with ErrClosed.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.disconnectLocked()
	c.mu.Unlock()

	c.cancel()
}

// Name returns the plugin name this client was created for.
func (c *Client) Name() string {
	return c.name
}

// Connected reports whether the client currently holds a broker
// connection.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.broker != nil
}
