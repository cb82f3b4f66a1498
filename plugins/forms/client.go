package forms

import (
	"context"
	"encoding/json"
	"strings"

	"switchboard/transport"
)

// SendCommonMessage sends to any service by name. Action and service
// come from the caller; everything else is plumbing.
func SendCommonMessage(ctx context.Context, c *transport.Client, args transport.SendArgs) (json.RawMessage, error) {
	return c.SendMessage(ctx, args)
}

// SendProductsMessage sends to the products service.
func SendProductsMessage(ctx context.Context, c *transport.Client, args transport.SendArgs) (json.RawMessage, error) {
	args.ServiceName = "products"
	return c.SendMessage(ctx, args)
}

// FetchServiceFields asks the service owning a content type for its
// field definitions. Content types are "<service>:<type>"; the part
// before the colon names the owning service. A missing or failing
// owner yields an empty field list rather than an error.
func FetchServiceFields(ctx context.Context, c *transport.Client, subdomain, contentType string) ([]Field, error) {
	service := contentType
	if idx := strings.Index(contentType, ":"); idx >= 0 {
		service = contentType[:idx]
	}
	if service == "" || service == c.Name() {
		return nil, nil
	}

	raw, err := c.SendMessage(ctx, transport.SendArgs{
		ServiceName:  service,
		Subdomain:    subdomain,
		Action:       "fields.getList",
		Data:         map[string]string{"contentType": contentType},
		IsRPC:        true,
		DefaultValue: []Field{},
	})
	if err != nil {
		return nil, err
	}

	var fields []Field
	if err := transport.Decode(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
