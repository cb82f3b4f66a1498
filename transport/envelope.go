package transport

import (
	"encoding/json"
	"fmt"
)

// Reply status values. Every RPC reply carries exactly one of these.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the message unit exchanged over the transport.
// Data is operation-specific and opaque to the transport itself;
// handlers decode it into their own request types.
type Envelope struct {
	// Subdomain is the tenant identifier. Every envelope carries
	// exactly one; operations never span tenants implicitly.
	Subdomain string `json:"subdomain"`

	// Data contains the operation-specific payload.
	Data json.RawMessage `json:"data"`

	// IsRPC indicates whether the sender expects a reply.
	IsRPC bool `json:"isRPC"`
}

// NewEnvelope builds an envelope for the given tenant, serializing data
// into the wire payload.
func NewEnvelope(subdomain string, data interface{}) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal envelope data: %w", err)
	}

	return Envelope{Subdomain: subdomain, Data: raw}, nil
}

// Reply is the RPC response unit. Status is always present; Data is set
// on success, ErrorMessage on error.
type Reply struct {
	Status       string          `json:"status"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

// SuccessReply wraps data as a success reply.
func SuccessReply(data interface{}) (Reply, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to marshal reply data: %w", err)
	}

	return Reply{Status: StatusSuccess, Data: raw}, nil
}

// ErrorReply wraps an error message as an error reply.
func ErrorReply(message string) Reply {
	return Reply{Status: StatusError, ErrorMessage: message}
}

// QueueName builds the wire-level queue name for a service operation,
// e.g. QueueName("forms", "validate") -> "forms:validate". This format
// is the cross-plugin contract and must remain stable.
func QueueName(service, action string) string {
	return service + ":" + action
}
