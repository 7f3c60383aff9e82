package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Reserved document keys.
const (
	// KeyID is the store-assigned document identifier.
	KeyID = "_id"

	// KeyRev is the store-assigned document revision.
	KeyRev = "_rev"
)

// Document is a raw, schemaless document loaded from a store.
//
// It is a flat mapping from field name to scalar value (nil, bool, int64,
// float64, string); nested objects and arrays are kept as map[string]any and
// []any. A Document is read-only: accessors never expose the internal map.
type Document struct {
	id     string
	rev    string
	fields map[string]any
}

// Load decodes raw JSON document data into a Document.
//
// Parameters:
//   - raw: JSON object as returned by the store
//
// Returns:
//   - *Document: Loaded document with normalised numbers
//   - error: ErrInvalidDocument if raw is not a JSON object
func Load(raw json.RawMessage) (*Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: document is null", ErrInvalidDocument)
	}

	return NewDocument(fields), nil
}

// NewDocument builds a Document from an already decoded field map.
//
// The map is copied; later changes to fields do not affect the Document.
// The identifier and revision are taken from the _id and _rev keys.
func NewDocument(fields map[string]any) *Document {
	doc := &Document{
		fields: make(map[string]any, len(fields)),
	}
	for k, v := range fields {
		doc.fields[k] = normaliseValue(v)
	}

	if id, ok := doc.fields[KeyID].(string); ok {
		doc.id = id
	}
	if rev, ok := doc.fields[KeyRev].(string); ok {
		doc.rev = rev
	}

	return doc
}

// ID returns the store identifier (_id), or "" if the document has none.
func (d *Document) ID() string {
	return d.id
}

// Rev returns the store revision (_rev), or "" if the document has none.
func (d *Document) Rev() string {
	return d.rev
}

// Has reports whether the document contains the named field.
// A field explicitly set to null is present.
func (d *Document) Has(name string) bool {
	_, ok := d.fields[name]
	return ok
}

// Get returns the raw value of the named field.
func (d *Document) Get(name string) (any, bool) {
	v, ok := d.fields[name]
	return v, ok
}

// Keys returns all field names in sorted order, reserved keys included.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.fields))
	for k := range d.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fields returns a deep copy of the document fields.
func (d *Document) Fields() map[string]any {
	cpy := make(map[string]any, len(d.fields))
	for k, v := range d.fields {
		cpy[k] = copyValue(v)
	}
	return cpy
}

// MarshalJSON encodes the document fields.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.fields)
}

// normaliseValue converts decoded JSON values to the scalar set documents use.
func normaliseValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		return normaliseNumber(val)
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, elem := range val {
			m[k] = normaliseValue(elem)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, elem := range val {
			s[i] = normaliseValue(elem)
		}
		return s
	default:
		return v
	}
}

// normaliseNumber keeps integral literals exact and turns the rest into floats.
func normaliseNumber(n json.Number) any {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	f, err := n.Float64()
	if err != nil {
		// Out of range for float64 too; keep the literal.
		return s
	}
	return f
}

// copyValue deep-copies nested maps and slices.
func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, elem := range val {
			m[k] = copyValue(elem)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, elem := range val {
			s[i] = copyValue(elem)
		}
		return s
	default:
		return v
	}
}
