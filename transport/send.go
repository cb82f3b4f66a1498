package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// SendArgs describes one cross-plugin message. ServiceName and Action
// are combined into the target queue name; Data is the operation
// payload.
type SendArgs struct {
	ServiceName string
	Subdomain   string
	Action      string
	Data        interface{}
	IsRPC       bool

	// Timeout bounds an RPC call. Zero means the client default.
	Timeout time.Duration

	// DefaultValue, when non-nil on an RPC call, is returned in place
	// of any failure: transport down, timeout, or a remote error
	// reply. This degrades optional cross-plugin enrichment gracefully;
	// callers that need hard failure leave it nil.
	DefaultValue interface{}
}

// SendMessage publishes or requests against another plugin's queue
// without the caller knowing transport details. Fire-and-forget calls
// return nil data. RPC failures are substituted with DefaultValue when
// one was supplied; otherwise the error is returned as-is.
func (c *Client) SendMessage(ctx context.Context, args SendArgs) (json.RawMessage, error) {
	if args.ServiceName == "" || args.Action == "" {
		return nil, fmt.Errorf("send: serviceName and action are required")
	}

	queueName := QueueName(args.ServiceName, args.Action)

	env, err := NewEnvelope(args.Subdomain, args.Data)
	if err != nil {
		return nil, err
	}

	if !args.IsRPC {
		return nil, c.Publish(ctx, queueName, env)
	}

	data, err := c.request(ctx, queueName, env, args.Timeout)
	if err == nil {
		return data, nil
	}
	if args.DefaultValue == nil {
		return nil, err
	}

	log.Printf("[Transport] %s: %s failed, using default value: %v", c.name, queueName, err)
	return json.Marshal(args.DefaultValue)
}

// request performs the RPC and folds a remote error reply into an
// ordinary error, so callers see one failure path.
func (c *Client) request(ctx context.Context, queueName string, env Envelope, timeout time.Duration) (json.RawMessage, error) {
	rep, err := c.Request(ctx, queueName, env, timeout)
	if err != nil {
		return nil, err
	}
	if rep.Status != StatusSuccess {
		return nil, fmt.Errorf("%s: %s", queueName, rep.ErrorMessage)
	}
	return rep.Data, nil
}

// Decode unmarshals a reply payload into out. A nil payload leaves out
// untouched.
func Decode(data json.RawMessage, out interface{}) error {
	if data == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode reply data: %w", err)
	}
	return nil
}
