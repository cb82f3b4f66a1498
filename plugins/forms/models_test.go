package forms

import (
	"context"
	"testing"

	"switchboard/store"
)

func newTestModels(t *testing.T) *Models {
	t.Helper()

	s := store.New()
	t.Cleanup(s.Close)

	conn, err := s.Connect(context.Background(), "acme")
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	return NewModels(conn, "acme")
}

// seedForm creates a form with one required text field, a number field
// and an email field, returning the form and the stored fields.
func seedForm(t *testing.T, m *Models) (Form, []Field) {
	t.Helper()

	form, err := m.Forms.CreateForm(Form{Title: "Intake", Type: "lead"}, "user1")
	if err != nil {
		t.Fatalf("create form failed: %v", err)
	}
	if form.ID == "" {
		t.Fatal("created form has no id")
	}

	err = m.Fields.InsertMany([]Field{
		{ContentType: "forms:form", ContentTypeID: form.ID, Text: "Full name", Type: "input", IsRequired: true},
		{ContentType: "forms:form", ContentTypeID: form.ID, Text: "Age", Type: "input", Validation: "number"},
		{ContentType: "forms:form", ContentTypeID: form.ID, Text: "Email", Type: "input", Validation: "email"},
	})
	if err != nil {
		t.Fatalf("insert fields failed: %v", err)
	}

	fields, err := m.Fields.Find(store.Document{"contentTypeId": form.ID})
	if err != nil {
		t.Fatalf("find fields failed: %v", err)
	}
	if len(fields) != 3 {
		t.Fatalf("seeded %d field(s), want 3", len(fields))
	}
	return form, fields
}

func fieldByText(t *testing.T, fields []Field, text string) Field {
	t.Helper()
	for _, f := range fields {
		if f.Text == text {
			return f
		}
	}
	t.Fatalf("no field with text %q", text)
	return Field{}
}

func TestValidateAcceptsGoodSubmission(t *testing.T) {
	m := newTestModels(t)
	form, fields := seedForm(t, m)

	errs, err := m.Forms.Validate(form.ID, []SubmissionEntry{
		{FieldID: fieldByText(t, fields, "Full name").ID, Value: "Jan Novak"},
		{FieldID: fieldByText(t, fields, "Age").ID, Value: "42"},
		{FieldID: fieldByText(t, fields, "Email").ID, Value: "jan@example.com"},
	})
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if len(errs) != 0 {
		t.Errorf("valid submission produced errors: %v", errs)
	}
}

func TestValidateRequiredField(t *testing.T) {
	m := newTestModels(t)
	form, fields := seedForm(t, m)

	errs, err := m.Forms.Validate(form.ID, nil)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if len(errs) != 1 {
		t.Fatalf("got %d error(s), want 1: %v", len(errs), errs)
	}
	if errs[0].Code != "required" {
		t.Errorf("error code = %q, want required", errs[0].Code)
	}
	if errs[0].FieldID != fieldByText(t, fields, "Full name").ID {
		t.Errorf("error field = %q, want the required field", errs[0].FieldID)
	}
}

func TestValidateNumberAndEmail(t *testing.T) {
	m := newTestModels(t)
	form, fields := seedForm(t, m)

	errs, err := m.Forms.Validate(form.ID, []SubmissionEntry{
		{FieldID: fieldByText(t, fields, "Full name").ID, Value: "Jan Novak"},
		{FieldID: fieldByText(t, fields, "Age").ID, Value: "not a number"},
		{FieldID: fieldByText(t, fields, "Email").ID, Value: "not-an-email"},
	})
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if len(errs) != 2 {
		t.Fatalf("got %d error(s), want 2: %v", len(errs), errs)
	}

	codes := map[string]bool{}
	for _, e := range errs {
		codes[e.Code] = true
	}
	if !codes["number"] || !codes["email"] {
		t.Errorf("error codes = %v, want number and email", codes)
	}
}

func TestValidateNumericValueTypes(t *testing.T) {
	m := newTestModels(t)
	form, fields := seedForm(t, m)

	name := fieldByText(t, fields, "Full name").ID
	age := fieldByText(t, fields, "Age").ID

	// JSON numbers decode as float64; both forms must pass.
	for _, value := range []interface{}{float64(42), "42", "3.5"} {
		errs, err := m.Forms.Validate(form.ID, []SubmissionEntry{
			{FieldID: name, Value: "Jan"},
			{FieldID: age, Value: value},
		})
		if err != nil {
			t.Fatalf("validate failed: %v", err)
		}
		if len(errs) != 0 {
			t.Errorf("value %v rejected: %v", value, errs)
		}
	}
}

func TestValidateUnknownForm(t *testing.T) {
	m := newTestModels(t)

	if _, err := m.Forms.Validate("nope", nil); err == nil {
		t.Error("validate of unknown form succeeded")
	}
}

func TestDuplicateCopiesFields(t *testing.T) {
	m := newTestModels(t)
	form, _ := seedForm(t, m)

	copied, err := m.Forms.Duplicate(form.ID)
	if err != nil {
		t.Fatalf("duplicate failed: %v", err)
	}
	if copied.ID == form.ID {
		t.Error("duplicate reused the original id")
	}
	if copied.Title != "Intake duplicated" {
		t.Errorf("title = %q, want %q", copied.Title, "Intake duplicated")
	}

	fields, err := m.Fields.Find(store.Document{"contentTypeId": copied.ID})
	if err != nil {
		t.Fatalf("find fields failed: %v", err)
	}
	if len(fields) != 3 {
		t.Errorf("copied form has %d field(s), want 3", len(fields))
	}

	// Originals stay untouched.
	original, err := m.Fields.Find(store.Document{"contentTypeId": form.ID})
	if err != nil {
		t.Fatalf("find fields failed: %v", err)
	}
	if len(original) != 3 {
		t.Errorf("original form has %d field(s), want 3", len(original))
	}
}

func TestRemoveFormCascades(t *testing.T) {
	m := newTestModels(t)
	form, fields := seedForm(t, m)

	err := m.Submissions.InsertMany([]Submission{
		{FormID: form.ID, FieldID: fields[0].ID, Value: "Jan"},
	})
	if err != nil {
		t.Fatalf("insert submission failed: %v", err)
	}

	if err := m.Forms.RemoveForm(form.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if _, err := m.Forms.FindOne(store.Document{"_id": form.ID}); err == nil {
		t.Error("removed form still found")
	}
	remaining, _ := m.Fields.Find(store.Document{"contentTypeId": form.ID})
	if len(remaining) != 0 {
		t.Errorf("%d field(s) survived form removal", len(remaining))
	}
	subs, _ := m.Submissions.Find(store.Document{"formId": form.ID})
	if len(subs) != 0 {
		t.Errorf("%d submission(s) survived form removal", len(subs))
	}

	if err := m.Forms.RemoveForm(form.ID); err == nil {
		t.Error("second remove succeeded")
	}
}
