package transport

import "errors"

var (
	// ErrTransportUnavailable is returned by Publish and Request when
	// the broker connection is down. Publishes during a disconnected
	// window fail fast; nothing is buffered on the client side.
	ErrTransportUnavailable = errors.New("transport: broker unavailable")

	// ErrRPCTimeout is returned by Request when no correlated reply
	// arrives within the deadline.
	ErrRPCTimeout = errors.New("transport: rpc timeout")

	// ErrQueueConsumed is returned when a second consumer is registered
	// for a queue that already has one.
	ErrQueueConsumed = errors.New("transport: queue already has a consumer")

	// ErrClosed is returned by operations on a closed broker or client.
	ErrClosed = errors.New("transport: closed")
)
