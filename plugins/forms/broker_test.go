package forms

import (
	"context"
	"testing"
	"time"

	"switchboard/registry"
	"switchboard/store"
	"switchboard/transport"
)

// newFormsService wires a forms service onto a fresh broker and
// returns a caller client, mirroring how the plugin starts in the
// daemon.
func newFormsService(t *testing.T) *transport.Client {
	t.Helper()

	b := transport.NewBroker(transport.BrokerOptions{})
	t.Cleanup(b.Close)
	dial := func(ctx context.Context) (*transport.Broker, error) { return b, nil }

	s := store.New()
	t.Cleanup(s.Close)
	reg := registry.New(s.Connect, NewModels)

	// Short request timeout so peer lookups against absent services
	// degrade quickly.
	server := transport.NewClient("forms", dial, transport.ClientOptions{RequestTimeout: 200 * time.Millisecond})
	t.Cleanup(server.Close)
	if err := server.Connect(context.Background()); err != nil {
		t.Fatalf("connect server failed: %v", err)
	}
	if _, err := InitBroker(server, reg); err != nil {
		t.Fatalf("init broker failed: %v", err)
	}

	caller := transport.NewClient("caller", dial, transport.ClientOptions{})
	t.Cleanup(caller.Close)
	if err := caller.Connect(context.Background()); err != nil {
		t.Fatalf("connect caller failed: %v", err)
	}
	return caller
}

func callForms(t *testing.T, caller *transport.Client, subdomain, action string, data interface{}, out interface{}) {
	t.Helper()

	raw, err := caller.SendMessage(context.Background(), transport.SendArgs{
		ServiceName: "forms",
		Subdomain:   subdomain,
		Action:      action,
		Data:        data,
		IsRPC:       true,
		Timeout:     2 * time.Second,
	})
	if err != nil {
		t.Fatalf("forms:%s failed: %v", action, err)
	}
	if out != nil {
		if err := transport.Decode(raw, out); err != nil {
			t.Fatalf("decode forms:%s reply failed: %v", action, err)
		}
	}
}

func TestFormsServiceRoundTrip(t *testing.T) {
	caller := newFormsService(t)

	var created Form
	callForms(t, caller, "acme", "createForm", map[string]interface{}{
		"userId": "user1",
		"form":   Form{Title: "Intake", Type: "lead"},
	}, &created)
	if created.ID == "" {
		t.Fatal("created form has no id")
	}
	if created.CreatedBy != "user1" {
		t.Errorf("createdBy = %q, want user1", created.CreatedBy)
	}

	var found Form
	callForms(t, caller, "acme", "findOne", map[string]string{"_id": created.ID}, &found)
	if found.Title != "Intake" {
		t.Errorf("found title = %q, want Intake", found.Title)
	}

	var all []Form
	callForms(t, caller, "acme", "find", map[string]string{"type": "lead"}, &all)
	if len(all) != 1 {
		t.Errorf("found %d form(s), want 1", len(all))
	}
}

func TestFormsServiceTenantIsolation(t *testing.T) {
	caller := newFormsService(t)

	callForms(t, caller, "acme", "createForm", map[string]interface{}{
		"form": Form{Title: "Acme only"},
	}, nil)

	var acme, globex []Form
	callForms(t, caller, "acme", "find", nil, &acme)
	callForms(t, caller, "globex", "find", nil, &globex)

	if len(acme) != 1 {
		t.Errorf("acme sees %d form(s), want 1", len(acme))
	}
	if len(globex) != 0 {
		t.Errorf("globex sees %d form(s) from another tenant", len(globex))
	}
}

func TestFormsServiceValidate(t *testing.T) {
	caller := newFormsService(t)

	var form Form
	callForms(t, caller, "acme", "createForm", map[string]interface{}{
		"form": Form{Title: "Intake"},
	}, &form)

	// fields.insertMany is fire-and-forget; poll until the fields land.
	_, err := caller.SendMessage(context.Background(), transport.SendArgs{
		ServiceName: "forms",
		Subdomain:   "acme",
		Action:      "fields.insertMany",
		Data: []Field{
			{ContentType: "forms:form", ContentTypeID: form.ID, Text: "Name", IsRequired: true},
		},
	})
	if err != nil {
		t.Fatalf("insert fields failed: %v", err)
	}

	var fields []Field
	deadline := time.After(2 * time.Second)
	for len(fields) == 0 {
		select {
		case <-deadline:
			t.Fatal("inserted fields never became visible")
		case <-time.After(20 * time.Millisecond):
		}
		callForms(t, caller, "acme", "fields.find", map[string]string{"contentTypeId": form.ID}, &fields)
	}

	var errs []ValidationError
	callForms(t, caller, "acme", "validate", map[string]interface{}{
		"formId":      form.ID,
		"submissions": []SubmissionEntry{},
	}, &errs)
	if len(errs) != 1 || errs[0].Code != "required" {
		t.Fatalf("validation errors = %v, want one required error", errs)
	}

	callForms(t, caller, "acme", "validate", map[string]interface{}{
		"formId": form.ID,
		"submissions": []SubmissionEntry{
			{FieldID: fields[0].ID, Value: "Jan"},
		},
	}, &errs)
	if len(errs) != 0 {
		t.Errorf("valid submission produced errors: %v", errs)
	}
}

func TestFormsServiceValidateUnknownForm(t *testing.T) {
	caller := newFormsService(t)

	_, err := caller.SendMessage(context.Background(), transport.SendArgs{
		ServiceName: "forms",
		Subdomain:   "acme",
		Action:      "validate",
		Data:        map[string]string{"formId": "nope"},
		IsRPC:       true,
		Timeout:     2 * time.Second,
	})
	if err == nil {
		t.Error("validate of unknown form succeeded")
	}
}

func TestFormsServiceCombinedFieldsDegrades(t *testing.T) {
	caller := newFormsService(t)

	// No products service is attached: the external contribution must
	// degrade to nothing instead of failing the whole call.
	_, err := caller.SendMessage(context.Background(), transport.SendArgs{
		ServiceName: "forms",
		Subdomain:   "acme",
		Action:      "fieldsCombinedByContentType",
		Data:        map[string]string{"contentType": "products:product"},
		IsRPC:       true,
		Timeout:     2 * time.Second,
	})
	if err != nil {
		t.Errorf("combined fields failed without the peer service: %v", err)
	}
}
