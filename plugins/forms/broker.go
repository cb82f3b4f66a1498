package forms

import (
	"context"
	"encoding/json"
	"fmt"

	"switchboard/router"
	"switchboard/store"
	"switchboard/transport"
)

type validateRequest struct {
	FormID      string            `json:"formId"`
	Submissions []SubmissionEntry `json:"submissions"`
}

type duplicateRequest struct {
	FormID string `json:"formId"`
}

type createFormRequest struct {
	UserID string `json:"userId"`
	Form   Form   `json:"form"`
}

type removeFormRequest struct {
	FormID string `json:"formId"`
}

type combinedFieldsRequest struct {
	ContentType string `json:"contentType"`
}

// InitBroker builds the forms action table and attaches it to the
// transport client. The returned router is the plugin's action table,
// used for discovery.
func InitBroker(c *transport.Client, resolver router.ModelResolver[*Models]) (*router.Router[*Models], error) {
	r := router.New[*Models]("forms", resolver)

	rpcActions := map[string]router.HandlerFunc[*Models]{
		"validate":                    handleValidate,
		"find":                        handleFind,
		"findOne":                     handleFindOne,
		"duplicate":                   handleDuplicate,
		"createForm":                  handleCreateForm,
		"removeForm":                  handleRemoveForm,
		"fields.find":                 handleFieldsFind,
		"submissions.find":            handleSubmissionsFind,
		"fieldsCombinedByContentType": handleCombinedFields(c),
	}
	for operation, fn := range rpcActions {
		if err := r.RegisterRPC(operation, fn); err != nil {
			return nil, err
		}
	}

	if err := r.Register("fields.insertMany", handleFieldsInsertMany); err != nil {
		return nil, err
	}
	if err := r.Register("submissions.createFormSubmission", handleCreateSubmission); err != nil {
		return nil, err
	}

	if err := r.Attach(c); err != nil {
		return nil, err
	}
	return r, nil
}

func handleValidate(ctx context.Context, subdomain string, models *Models, data json.RawMessage) (interface{}, error) {
	var req validateRequest
	if err := transport.Decode(data, &req); err != nil {
		return nil, err
	}
	if req.FormID == "" {
		return nil, fmt.Errorf("formId is required")
	}
	return models.Forms.Validate(req.FormID, req.Submissions)
}

func handleFind(ctx context.Context, subdomain string, models *Models, data json.RawMessage) (interface{}, error) {
	query, err := decodeQuery(data)
	if err != nil {
		return nil, err
	}
	return models.Forms.Find(query)
}

func handleFindOne(ctx context.Context, subdomain string, models *Models, data json.RawMessage) (interface{}, error) {
	query, err := decodeQuery(data)
	if err != nil {
		return nil, err
	}
	return models.Forms.FindOne(query)
}

func handleDuplicate(ctx context.Context, subdomain string, models *Models, data json.RawMessage) (interface{}, error) {
	var req duplicateRequest
	if err := transport.Decode(data, &req); err != nil {
		return nil, err
	}
	return models.Forms.Duplicate(req.FormID)
}

func handleCreateForm(ctx context.Context, subdomain string, models *Models, data json.RawMessage) (interface{}, error) {
	var req createFormRequest
	if err := transport.Decode(data, &req); err != nil {
		return nil, err
	}
	return models.Forms.CreateForm(req.Form, req.UserID)
}

func handleRemoveForm(ctx context.Context, subdomain string, models *Models, data json.RawMessage) (interface{}, error) {
	var req removeFormRequest
	if err := transport.Decode(data, &req); err != nil {
		return nil, err
	}
	if err := models.Forms.RemoveForm(req.FormID); err != nil {
		return nil, err
	}
	return map[string]string{"status": "removed"}, nil
}

func handleFieldsFind(ctx context.Context, subdomain string, models *Models, data json.RawMessage) (interface{}, error) {
	query, err := decodeQuery(data)
	if err != nil {
		return nil, err
	}
	return models.Fields.Find(query)
}

func handleFieldsInsertMany(ctx context.Context, subdomain string, models *Models, data json.RawMessage) (interface{}, error) {
	var fields []Field
	if err := transport.Decode(data, &fields); err != nil {
		return nil, err
	}
	return nil, models.Fields.InsertMany(fields)
}

func handleCreateSubmission(ctx context.Context, subdomain string, models *Models, data json.RawMessage) (interface{}, error) {
	var subs []Submission
	if err := transport.Decode(data, &subs); err != nil {
		return nil, err
	}
	return nil, models.Submissions.InsertMany(subs)
}

func handleSubmissionsFind(ctx context.Context, subdomain string, models *Models, data json.RawMessage) (interface{}, error) {
	query, err := decodeQuery(data)
	if err != nil {
		return nil, err
	}
	return models.Submissions.Find(query)
}

// handleCombinedFields merges this plugin's own fields with the
// fields an owning service reports for the content type. The owning
// service is derived from the content type prefix and may be down, in
// which case its contribution degrades to an empty list.
func handleCombinedFields(c *transport.Client) router.HandlerFunc[*Models] {
	return func(ctx context.Context, subdomain string, models *Models, data json.RawMessage) (interface{}, error) {
		var req combinedFieldsRequest
		if err := transport.Decode(data, &req); err != nil {
			return nil, err
		}
		if req.ContentType == "" {
			return nil, fmt.Errorf("contentType is required")
		}

		own, err := models.Fields.Find(store.Document{"contentType": req.ContentType})
		if err != nil {
			return nil, err
		}

		external, err := FetchServiceFields(ctx, c, subdomain, req.ContentType)
		if err != nil {
			return nil, err
		}

		return append(own, external...), nil
	}
}

func decodeQuery(data json.RawMessage) (store.Document, error) {
	query := store.Document{}
	if len(data) == 0 {
		return query, nil
	}
	if err := transport.Decode(data, &query); err != nil {
		return nil, err
	}
	return query, nil
}
