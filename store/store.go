// Package store is the in-memory tenant document store backing plugin
// models. Each tenant gets an isolated connection with its own
// collections; no data is shared across tenants.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// Document is a single stored record. Inserted documents receive an
// "_id" field.
type Document map[string]interface{}

// Store is the process-wide document store. Connect hands out one
// isolated connection per tenant namespace.
type Store struct {
	mu      sync.Mutex
	tenants map[string]*Conn
	closed  bool
}

// New creates an empty store.
func New() *Store {
	return &Store{tenants: make(map[string]*Conn)}
}

// Connect opens (or reuses) the data connection for a tenant namespace.
func (s *Store) Connect(ctx context.Context, subdomain string) (*Conn, error) {
	if subdomain == "" {
		return nil, fmt.Errorf("store: empty tenant namespace")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("store: closed")
	}

	conn, ok := s.tenants[subdomain]
	if !ok || conn.isClosed() {
		conn = &Conn{
			subdomain:   subdomain,
			collections: make(map[string]*Collection),
		}
		s.tenants[subdomain] = conn
		log.Printf("[Store] Opened tenant namespace: %s", subdomain)
	}
	return conn, nil
}

// Close shuts the store down; existing connections become unusable.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conn := range s.tenants {
		conn.Close()
	}
	s.tenants = make(map[string]*Conn)
	s.closed = true
}

// Conn is one tenant's data connection.
type Conn struct {
	subdomain string

	mu          sync.RWMutex
	collections map[string]*Collection
	closed      bool
}

// Subdomain returns the tenant namespace this connection is bound to.
func (c *Conn) Subdomain() string {
	return c.subdomain
}

// Collection returns the named collection, creating it on first use.
func (c *Conn) Collection(name string) *Collection {
	c.mu.Lock()
	defer c.mu.Unlock()

	col, ok := c.collections[name]
	if !ok {
		col = &Collection{docs: make(map[string]Document)}
		c.collections[name] = col
	}
	return col
}

// Close tears the connection down. The registry calls this on Reset.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Conn) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Collection is a set of documents queried by example: a document
// matches a filter when every filter field is deep-equal to the
// document's field.
type Collection struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// Insert stores doc and returns its generated id.
func (col *Collection) Insert(doc Document) string {
	col.mu.Lock()
	defer col.mu.Unlock()
	return col.insertLocked(doc)
}

// InsertMany stores docs and returns their ids in order.
func (col *Collection) InsertMany(docs []Document) []string {
	col.mu.Lock()
	defer col.mu.Unlock()

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, col.insertLocked(doc))
	}
	return ids
}

func (col *Collection) insertLocked(doc Document) string {
	id, _ := doc["_id"].(string)
	if id == "" {
		id = uuid.NewString()
	}

	stored := make(Document, len(doc)+1)
	for k, v := range doc {
		stored[k] = copyValue(v)
	}
	stored["_id"] = id

	col.docs[id] = stored
	return id
}

// Find returns copies of all documents matching the filter. A nil or
// empty filter matches everything.
func (col *Collection) Find(filter Document) []Document {
	col.mu.RLock()
	defer col.mu.RUnlock()

	var out []Document
	for _, doc := range col.docs {
		if matches(doc, filter) {
			out = append(out, copyDoc(doc))
		}
	}
	return out
}

// FindOne returns a copy of one matching document.
func (col *Collection) FindOne(filter Document) (Document, bool) {
	col.mu.RLock()
	defer col.mu.RUnlock()

	for _, doc := range col.docs {
		if matches(doc, filter) {
			return copyDoc(doc), true
		}
	}
	return nil, false
}

// Update replaces the fields of every matching document and returns the
// number updated.
func (col *Collection) Update(filter, fields Document) int {
	col.mu.Lock()
	defer col.mu.Unlock()

	n := 0
	for _, doc := range col.docs {
		if matches(doc, filter) {
			for k, v := range fields {
				if k == "_id" {
					continue
				}
				doc[k] = copyValue(v)
			}
			n++
		}
	}
	return n
}

// Delete removes every matching document and returns the number
// removed.
func (col *Collection) Delete(filter Document) int {
	col.mu.Lock()
	defer col.mu.Unlock()

	n := 0
	for id, doc := range col.docs {
		if matches(doc, filter) {
			delete(col.docs, id)
			n++
		}
	}
	return n
}

// Count returns the number of stored documents.
func (col *Collection) Count() int {
	col.mu.RLock()
	defer col.mu.RUnlock()
	return len(col.docs)
}

func matches(doc, filter Document) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func copyDoc(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

// copyValue deep-copies the JSON-shaped containers a document can hold
// so nested maps and slices never alias stored data. Scalars are
// returned as-is.
func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case Document:
		return copyDoc(val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = copyValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

// ToDocument converts a struct (via its JSON tags) into a Document.
func ToDocument(v interface{}) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: failed to marshal document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("store: failed to build document: %w", err)
	}
	return doc, nil
}

// FromDocument decodes a Document into a struct via its JSON tags.
func FromDocument(doc Document, out interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: failed to marshal document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("store: failed to decode document: %w", err)
	}
	return nil
}
