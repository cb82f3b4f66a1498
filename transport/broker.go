package transport

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultQueueBuffer is the per-queue delivery buffer size.
	DefaultQueueBuffer = 100

	// DefaultPublishTimeout bounds how long a publisher waits for space
	// in a full queue before giving up.
	DefaultPublishTimeout = 5 * time.Second

	// DefaultRedeliveryLimit bounds the total delivery attempts for a
	// fire-and-forget delivery. A limit of 3 means one initial attempt
	// and up to two redeliveries before the delivery is dropped.
	DefaultRedeliveryLimit = 3
)

// delivery is a single queued message. The body is the marshaled
// envelope; consumers never share memory with publishers.
type delivery struct {
	body          []byte
	correlationID string
	reply         func(Reply)
	attempts      int
}

// consumer is one attached queue consumer. A queue has at most one.
type consumer struct {
	client string
	queue  string
	handle func(*delivery) error
	stop   chan struct{}
}

type queue struct {
	name string
	ch   chan *delivery

	mu       sync.Mutex
	consumer *consumer
}

// Broker is a named-queue message broker supporting fire-and-forget
// delivery and RPC request/reply. Queues are created on first use and
// buffered; each queue has at most one consumer. Deliveries are
// acknowledged by successful handler completion and redelivered on
// handler failure, up to a bounded redelivery limit.
type Broker struct {
	mu     sync.RWMutex
	queues map[string]*queue
	closed bool
	wg     sync.WaitGroup

	bufSize         int
	publishTimeout  time.Duration
	redeliveryLimit int
}

// BrokerOptions configures a broker. Zero values fall back to defaults.
type BrokerOptions struct {
	QueueBuffer     int
	PublishTimeout  time.Duration
	RedeliveryLimit int
}

// NewBroker creates a new message broker.
func NewBroker(opts BrokerOptions) *Broker {
	if opts.QueueBuffer <= 0 {
		opts.QueueBuffer = DefaultQueueBuffer
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	if opts.RedeliveryLimit <= 0 {
		opts.RedeliveryLimit = DefaultRedeliveryLimit
	}

	return &Broker{
		queues:          make(map[string]*queue),
		bufSize:         opts.QueueBuffer,
		publishTimeout:  opts.PublishTimeout,
		redeliveryLimit: opts.RedeliveryLimit,
	}
}

// getQueue returns the named queue, creating it on first use.
func (b *Broker) getQueue(name string) (*queue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	q, ok := b.queues[name]
	if !ok {
		q = &queue{name: name, ch: make(chan *delivery, b.bufSize)}
		b.queues[name] = q
	}
	return q, nil
}

// send enqueues a delivery, waiting up to the publish timeout for space
// in a full queue. The send is acknowledged once the broker holds the
// delivery; consumer-side acknowledgement happens after handler success.
func (b *Broker) send(ctx context.Context, name string, d *delivery) error {
	q, err := b.getQueue(name)
	if err != nil {
		return err
	}

	select {
	case q.ch <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.publishTimeout):
		return fmt.Errorf("timeout enqueuing to %s (queue full)", name)
	}
}

// attach registers c as the sole consumer of the named queue and starts
// dispatching buffered and future deliveries to it.
func (b *Broker) attach(name string, c *consumer) error {
	q, err := b.getQueue(name)
	if err != nil {
		return err
	}

	q.mu.Lock()
	if q.consumer != nil {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s (held by %s)", ErrQueueConsumed, name, q.consumer.client)
	}
	q.consumer = c
	q.mu.Unlock()

	b.wg.Add(1)
	go b.dispatch(q, c)

	log.Printf("[Broker] %s consuming queue: %s", c.client, name)
	return nil
}

// detach removes c from its queue. Buffered deliveries stay queued for
// the next consumer.
func (b *Broker) detach(c *consumer) {
	b.mu.RLock()
	q := b.queues[c.queue]
	b.mu.RUnlock()
	if q == nil {
		return
	}

	q.mu.Lock()
	if q.consumer == c {
		q.consumer = nil
		close(c.stop)
	}
	q.mu.Unlock()
}

// dispatch feeds queued deliveries to a consumer until it detaches or
// the broker closes. Handler failure on a fire-and-forget delivery
// causes redelivery up to the redelivery limit.
func (b *Broker) dispatch(q *queue, c *consumer) {
	defer b.wg.Done()

	for {
		select {
		case d := <-q.ch:
			if err := c.handle(d); err != nil {
				b.redeliver(q, d, err)
			}
		case <-c.stop:
			return
		}
	}
}

// redeliver requeues a failed delivery or drops it once the redelivery
// limit is reached.
func (b *Broker) redeliver(q *queue, d *delivery, cause error) {
	d.attempts++
	if d.attempts >= b.redeliveryLimit {
		log.Printf("[Broker] Dropping delivery on %s after %d attempt(s): %v", q.name, d.attempts, cause)
		return
	}

	select {
	case q.ch <- d:
		log.Printf("[Broker] Redelivering on %s (attempt %d): %v", q.name, d.attempts+1, cause)
	default:
		log.Printf("[Broker] Queue %s full, dropping redelivery: %v", q.name, cause)
	}
}

// Close shuts down the broker and stops all consumer dispatch loops.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true

	for _, q := range b.queues {
		q.mu.Lock()
		if q.consumer != nil {
			close(q.consumer.stop)
			q.consumer = nil
		}
		q.mu.Unlock()
	}
	b.mu.Unlock()

	b.wg.Wait()
	log.Println("[Broker] Broker closed")
}

// QueueNames returns the names of all queues, sorted.
func (b *Broker) QueueNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.queues))
	for name := range b.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// QueueDepth returns the number of buffered deliveries on a queue.
func (b *Broker) QueueDepth(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if q, ok := b.queues[name]; ok {
		return len(q.ch)
	}
	return 0
}

// ConsumerCount returns how many queues currently have a consumer.
func (b *Broker) ConsumerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, q := range b.queues {
		q.mu.Lock()
		if q.consumer != nil {
			n++
		}
		q.mu.Unlock()
	}
	return n
}
