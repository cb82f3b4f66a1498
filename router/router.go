// Package router dispatches a plugin's named actions. Each action is
// registered once at startup; at dispatch time the router resolves the
// tenant's models through the plugin's registry, invokes the handler,
// and wraps the outcome as a uniform success or error reply.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"switchboard/transport"
)

// DuplicateActionError reports a second registration under an action
// name. It is a configuration error, fatal at startup.
type DuplicateActionError struct {
	Service string
	Action  string
}

func (e *DuplicateActionError) Error() string {
	return fmt.Sprintf("router: action %s already registered for service %s", e.Action, e.Service)
}

// HandlerFunc is a domain action handler. It receives the tenant id,
// the tenant-bound models, and the raw operation payload, and returns
// the result value to be serialized into the reply.
type HandlerFunc[M any] func(ctx context.Context, subdomain string, models M, data json.RawMessage) (interface{}, error)

// ModelResolver yields tenant-bound models; registry.Registry satisfies
// it.
type ModelResolver[M any] interface {
	Get(ctx context.Context, subdomain string) (M, error)
}

type action[M any] struct {
	fn  HandlerFunc[M]
	rpc bool
}

// Router is one plugin's action table.
type Router[M any] struct {
	service string
	models  ModelResolver[M]

	mu      sync.Mutex
	actions map[string]action[M]
}

// New creates a router for the named service backed by the given model
// resolver.
func New[M any](service string, models ModelResolver[M]) *Router[M] {
	return &Router[M]{
		service: service,
		models:  models,
		actions: make(map[string]action[M]),
	}
}

// RegisterRPC registers a request/reply action. The wire queue name is
// "<service>:<operation>".
func (r *Router[M]) RegisterRPC(operation string, fn HandlerFunc[M]) error {
	return r.add(operation, action[M]{fn: fn, rpc: true})
}

// Register registers a fire-and-forget action.
func (r *Router[M]) Register(operation string, fn HandlerFunc[M]) error {
	return r.add(operation, action[M]{fn: fn})
}

func (r *Router[M]) add(operation string, a action[M]) error {
	if operation == "" {
		return fmt.Errorf("router: empty operation name for service %s", r.service)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[operation]; exists {
		return &DuplicateActionError{Service: r.service, Action: operation}
	}
	r.actions[operation] = a
	return nil
}

// Attach binds every registered action to its queue on the transport
// client. Call once, after all registrations.
func (r *Router[M]) Attach(c *transport.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for operation, a := range r.actions {
		queueName := transport.QueueName(r.service, operation)

		var err error
		if a.rpc {
			err = c.ConsumeRPCQueue(queueName, r.dispatchRPC(a.fn))
		} else {
			err = c.ConsumeQueue(queueName, r.dispatch(a.fn))
		}
		if err != nil {
			return fmt.Errorf("router: failed to consume %s: %w", queueName, err)
		}
	}

	log.Printf("[Router] %s: %d action(s) attached", r.service, len(r.actions))
	return nil
}

// dispatchRPC resolves the tenant models and wraps the handler outcome
// as {status: "success", data} or {status: "error", errorMessage}. The
// wrapping is uniform across all actions.
func (r *Router[M]) dispatchRPC(fn HandlerFunc[M]) transport.RPCHandler {
	return func(ctx context.Context, env transport.Envelope) (transport.Reply, error) {
		models, err := r.models.Get(ctx, env.Subdomain)
		if err != nil {
			return transport.ErrorReply(err.Error()), nil
		}

		result, err := fn(ctx, env.Subdomain, models, env.Data)
		if err != nil {
			return transport.ErrorReply(err.Error()), nil
		}

		return transport.SuccessReply(result)
	}
}

func (r *Router[M]) dispatch(fn HandlerFunc[M]) transport.QueueHandler {
	return func(ctx context.Context, env transport.Envelope) error {
		models, err := r.models.Get(ctx, env.Subdomain)
		if err != nil {
			return err
		}

		_, err = fn(ctx, env.Subdomain, models, env.Data)
		return err
	}
}

// Service returns the service name this router dispatches for.
func (r *Router[M]) Service() string {
	return r.service
}

// Actions returns the registered queue names, sorted.
func (r *Router[M]) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.actions))
	for operation := range r.actions {
		names = append(names, transport.QueueName(r.service, operation))
	}
	sort.Strings(names)
	return names
}
