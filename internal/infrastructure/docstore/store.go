package docstore

import (
	"context"
	"encoding/json"
)

// Store is the document store client used by the state repository.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// DatabaseExists reports whether the configured database exists.
	DatabaseExists(ctx context.Context) (bool, error)

	// CreateDatabase provisions the configured database.
	// Creating a database that already exists is not an error.
	CreateDatabase(ctx context.Context) error

	// Find returns the raw documents matching selector, in store order.
	// A missing database is reported as ErrNotFound.
	Find(ctx context.Context, selector Selector) ([]json.RawMessage, error)

	// LoadDocument decodes one raw document returned by Find.
	LoadDocument(raw json.RawMessage) (*Document, error)
}

// Pinger is implemented by stores that can verify connectivity cheaply.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Selector is a Mango query selector.
//
// Only field equality is used by the state repository:
//
//	docstore.Eq("id", "0f8fad5b-d9cb-469f-a165-70867728950e")
//	// {"id": {"$eq": "0f8fad5b-d9cb-469f-a165-70867728950e"}}
type Selector map[string]any

// OpEq is the Mango equality operator.
const OpEq = "$eq"

// Eq builds a selector matching documents whose field equals value.
func Eq(field string, value any) Selector {
	return Selector{field: map[string]any{OpEq: value}}
}

// Equalities returns the field/value pairs of a selector built from
// equality conditions. Fields using other operators are reported with
// ok=false so backends without a full query engine can reject them.
func (s Selector) Equalities() (map[string]any, bool) {
	out := make(map[string]any, len(s))
	for field, cond := range s {
		ops, isMap := cond.(map[string]any)
		if !isMap {
			// Implicit equality: {"field": value}
			out[field] = cond
			continue
		}
		if len(ops) != 1 {
			return nil, false
		}
		v, ok := ops[OpEq]
		if !ok {
			return nil, false
		}
		out[field] = v
	}
	return out, true
}
