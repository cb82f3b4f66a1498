package transport

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func testDelivery(body string) *delivery {
	return &delivery{body: []byte(body)}
}

func TestBrokerDeliversToConsumer(t *testing.T) {
	b := NewBroker(BrokerOptions{})
	defer b.Close()

	got := make(chan string, 1)
	err := b.attach("svc:action", &consumer{
		client: "test",
		queue:  "svc:action",
		handle: func(d *delivery) error {
			got <- string(d.body)
			return nil
		},
		stop: make(chan struct{}),
	})
	if err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	if err := b.send(context.Background(), "svc:action", testDelivery("hello")); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case body := <-got:
		if body != "hello" {
			t.Errorf("got body %q, want %q", body, "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("delivery never reached consumer")
	}
}

func TestBrokerBuffersBeforeConsumer(t *testing.T) {
	b := NewBroker(BrokerOptions{})
	defer b.Close()

	// Publish first, attach later: buffered deliveries must survive.
	if err := b.send(context.Background(), "svc:action", testDelivery("early")); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if depth := b.QueueDepth("svc:action"); depth != 1 {
		t.Fatalf("queue depth = %d, want 1", depth)
	}

	got := make(chan string, 1)
	err := b.attach("svc:action", &consumer{
		client: "test",
		queue:  "svc:action",
		handle: func(d *delivery) error {
			got <- string(d.body)
			return nil
		},
		stop: make(chan struct{}),
	})
	if err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	select {
	case body := <-got:
		if body != "early" {
			t.Errorf("got body %q, want %q", body, "early")
		}
	case <-time.After(time.Second):
		t.Fatal("buffered delivery never reached consumer")
	}
}

func TestBrokerSingleConsumerPerQueue(t *testing.T) {
	b := NewBroker(BrokerOptions{})
	defer b.Close()

	noop := func(d *delivery) error { return nil }

	first := &consumer{client: "first", queue: "svc:action", handle: noop, stop: make(chan struct{})}
	if err := b.attach("svc:action", first); err != nil {
		t.Fatalf("first attach failed: %v", err)
	}

	second := &consumer{client: "second", queue: "svc:action", handle: noop, stop: make(chan struct{})}
	err := b.attach("svc:action", second)
	if !errors.Is(err, ErrQueueConsumed) {
		t.Errorf("second attach error = %v, want ErrQueueConsumed", err)
	}
}

func TestBrokerRedelivery(t *testing.T) {
	b := NewBroker(BrokerOptions{RedeliveryLimit: 3})
	defer b.Close()

	var calls atomic.Int32
	done := make(chan struct{})
	err := b.attach("svc:action", &consumer{
		client: "test",
		queue:  "svc:action",
		handle: func(d *delivery) error {
			if calls.Add(1) < 3 {
				return errors.New("transient failure")
			}
			close(done)
			return nil
		},
		stop: make(chan struct{}),
	})
	if err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	if err := b.send(context.Background(), "svc:action", testDelivery("retry me")); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("delivery not retried to success, calls = %d", calls.Load())
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("handler called %d times, want 3", n)
	}
}

func TestBrokerRedeliveryLimitDrops(t *testing.T) {
	b := NewBroker(BrokerOptions{RedeliveryLimit: 3})
	defer b.Close()

	var calls atomic.Int32
	err := b.attach("svc:action", &consumer{
		client: "test",
		queue:  "svc:action",
		handle: func(d *delivery) error {
			calls.Add(1)
			return errors.New("permanent failure")
		},
		stop: make(chan struct{}),
	})
	if err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	if err := b.send(context.Background(), "svc:action", testDelivery("poison")); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	// Allow delivery plus redeliveries to run, then verify the drop.
	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 3 {
		t.Errorf("handler called %d times, want exactly the redelivery limit (3)", n)
	}
}

func TestBrokerPublishTimeoutWhenFull(t *testing.T) {
	b := NewBroker(BrokerOptions{QueueBuffer: 1, PublishTimeout: 50 * time.Millisecond})
	defer b.Close()

	if err := b.send(context.Background(), "svc:action", testDelivery("one")); err != nil {
		t.Fatalf("first send failed: %v", err)
	}

	start := time.Now()
	err := b.send(context.Background(), "svc:action", testDelivery("two"))
	if err == nil {
		t.Fatal("second send succeeded, want timeout")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("send gave up after %s, want it to wait for the publish timeout", elapsed)
	}
}

func TestBrokerSendAfterClose(t *testing.T) {
	b := NewBroker(BrokerOptions{})
	b.Close()

	err := b.send(context.Background(), "svc:action", testDelivery("late"))
	if !errors.Is(err, ErrClosed) {
		t.Errorf("send after close error = %v, want ErrClosed", err)
	}
}

func TestBrokerQueueAccounting(t *testing.T) {
	b := NewBroker(BrokerOptions{})
	defer b.Close()

	if err := b.send(context.Background(), "forms:find", testDelivery("a")); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := b.send(context.Background(), "products:find", testDelivery("b")); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	names := b.QueueNames()
	if len(names) != 2 || names[0] != "forms:find" || names[1] != "products:find" {
		t.Errorf("QueueNames() = %v, want [forms:find products:find]", names)
	}
	if n := b.ConsumerCount(); n != 0 {
		t.Errorf("ConsumerCount() = %d, want 0", n)
	}
}
