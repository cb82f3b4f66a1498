package forms

import (
	"fmt"

	"switchboard/store"
)

// Form is a stored form definition.
type Form struct {
	ID          string `json:"_id,omitempty"`
	Title       string `json:"title"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"createdBy,omitempty"`
}

// Field is one form field definition.
type Field struct {
	ID            string `json:"_id,omitempty"`
	ContentType   string `json:"contentType"`
	ContentTypeID string `json:"contentTypeId,omitempty"`
	Text          string `json:"text"`
	Type          string `json:"type,omitempty"`
	IsRequired    bool   `json:"isRequired,omitempty"`
	Validation    string `json:"validation,omitempty"`
}

// Submission is one submitted field value.
type Submission struct {
	ID      string      `json:"_id,omitempty"`
	FormID  string      `json:"formId"`
	FieldID string      `json:"fieldId,omitempty"`
	Value   interface{} `json:"value,omitempty"`
}

// SubmissionEntry is the wire shape of a submitted value during
// validation: the field id plus the raw value.
type SubmissionEntry struct {
	FieldID string      `json:"_id"`
	Value   interface{} `json:"value"`
}

// ValidationError describes one failed field check.
type ValidationError struct {
	FieldID string `json:"fieldId"`
	Code    string `json:"code"`
	Text    string `json:"text"`
}

// Models is the forms plugin's tenant-bound model set.
type Models struct {
	Forms       *Forms
	Fields      *Fields
	Submissions *Submissions
}

// NewModels binds the forms models to one tenant's data connection.
func NewModels(conn *store.Conn, subdomain string) *Models {
	fields := &Fields{col: conn.Collection("form_fields")}
	submissions := &Submissions{col: conn.Collection("form_submissions")}

	return &Models{
		Forms:       &Forms{col: conn.Collection("forms"), fields: fields, submissions: submissions},
		Fields:      fields,
		Submissions: submissions,
	}
}

// Forms provides form-level operations.
type Forms struct {
	col         *store.Collection
	fields      *Fields
	submissions *Submissions
}

// CreateForm stores a new form.
func (f *Forms) CreateForm(form Form, userID string) (Form, error) {
	form.ID = ""
	form.CreatedBy = userID

	doc, err := store.ToDocument(form)
	if err != nil {
		return Form{}, err
	}
	form.ID = f.col.Insert(doc)
	return form, nil
}

// Find returns all forms matching the query document.
func (f *Forms) Find(query store.Document) ([]Form, error) {
	docs := f.col.Find(query)

	forms := make([]Form, 0, len(docs))
	for _, doc := range docs {
		var form Form
		if err := store.FromDocument(doc, &form); err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	return forms, nil
}

// FindOne returns the first form matching the query document.
func (f *Forms) FindOne(query store.Document) (Form, error) {
	doc, ok := f.col.FindOne(query)
	if !ok {
		return Form{}, fmt.Errorf("form not found")
	}

	var form Form
	if err := store.FromDocument(doc, &form); err != nil {
		return Form{}, err
	}
	return form, nil
}

// Duplicate copies a form together with its fields.
func (f *Forms) Duplicate(formID string) (Form, error) {
	original, err := f.FindOne(store.Document{"_id": formID})
	if err != nil {
		return Form{}, err
	}

	copied := original
	copied.ID = ""
	copied.Title = original.Title + " duplicated"

	doc, err := store.ToDocument(copied)
	if err != nil {
		return Form{}, err
	}
	copied.ID = f.col.Insert(doc)

	fields, err := f.fields.Find(store.Document{"contentTypeId": formID})
	if err != nil {
		return Form{}, err
	}
	for i := range fields {
		fields[i].ID = ""
		fields[i].ContentTypeID = copied.ID
	}
	if err := f.fields.InsertMany(fields); err != nil {
		return Form{}, err
	}

	return copied, nil
}

// RemoveForm deletes a form, its fields and its submissions.
func (f *Forms) RemoveForm(formID string) error {
	if n := f.col.Delete(store.Document{"_id": formID}); n == 0 {
		return fmt.Errorf("form not found")
	}
	f.fields.col.Delete(store.Document{"contentTypeId": formID})
	f.submissions.col.Delete(store.Document{"formId": formID})
	return nil
}

// Validate checks submitted values against the form's field
// definitions. It returns one entry per failed field; an empty result
// means the submission is valid.
func (f *Forms) Validate(formID string, submissions []SubmissionEntry) ([]ValidationError, error) {
	if _, err := f.FindOne(store.Document{"_id": formID}); err != nil {
		return nil, err
	}

	fields, err := f.fields.Find(store.Document{"contentTypeId": formID})
	if err != nil {
		return nil, err
	}

	byField := make(map[string]interface{}, len(submissions))
	for _, sub := range submissions {
		byField[sub.FieldID] = sub.Value
	}

	errs := []ValidationError{}
	for _, field := range fields {
		value, ok := byField[field.ID]

		if field.IsRequired && (!ok || value == nil || value == "") {
			errs = append(errs, ValidationError{
				FieldID: field.ID,
				Code:    "required",
				Text:    fmt.Sprintf("%s is required", field.Text),
			})
			continue
		}
		if !ok || value == nil || value == "" {
			continue
		}

		if msg := checkValidation(field.Validation, value); msg != "" {
			errs = append(errs, ValidationError{
				FieldID: field.ID,
				Code:    field.Validation,
				Text:    msg,
			})
		}
	}

	return errs, nil
}

// Fields provides field-level operations.
type Fields struct {
	col *store.Collection
}

// InsertMany stores fields in bulk.
func (f *Fields) InsertMany(fields []Field) error {
	docs := make([]store.Document, 0, len(fields))
	for _, field := range fields {
		doc, err := store.ToDocument(field)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	f.col.InsertMany(docs)
	return nil
}

// Find returns all fields matching the query document.
func (f *Fields) Find(query store.Document) ([]Field, error) {
	docs := f.col.Find(query)

	fields := make([]Field, 0, len(docs))
	for _, doc := range docs {
		var field Field
		if err := store.FromDocument(doc, &field); err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// FindOne returns the first field matching the query document.
func (f *Fields) FindOne(query store.Document) (Field, error) {
	doc, ok := f.col.FindOne(query)
	if !ok {
		return Field{}, fmt.Errorf("field not found")
	}

	var field Field
	if err := store.FromDocument(doc, &field); err != nil {
		return Field{}, err
	}
	return field, nil
}

// Submissions provides submission-level operations.
type Submissions struct {
	col *store.Collection
}

// Find returns all submissions matching the query document.
func (s *Submissions) Find(query store.Document) ([]Submission, error) {
	docs := s.col.Find(query)

	subs := make([]Submission, 0, len(docs))
	for _, doc := range docs {
		var sub Submission
		if err := store.FromDocument(doc, &sub); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// InsertMany stores submissions in bulk.
func (s *Submissions) InsertMany(subs []Submission) error {
	docs := make([]store.Document, 0, len(subs))
	for _, sub := range subs {
		doc, err := store.ToDocument(sub)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	s.col.InsertMany(docs)
	return nil
}
