package state

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/docstore"
)

// State is a typed record materialized from a store document.
type State interface {
	// ID returns the state identifier.
	ID() uuid.UUID

	// Document returns the raw document the state was built from.
	Document() *docstore.Document

	// ToMap returns the state as a plain map, suitable for JSON encoding.
	ToMap() map[string]any
}

// Base is the minimal state: an identifier and its backing document.
// Other state types embed it.
type Base struct {
	id       uuid.UUID
	document *docstore.Document
}

// NewBase creates a base state.
//
// Parameters:
//   - id: Canonical UUID string (optionally braced or urn:uuid: prefixed)
//   - document: Backing document, required
//
// Returns:
//   - *Base: The state
//   - error: ErrInvalidArgument if id is not a valid UUID or document is nil
func NewBase(id string, document *docstore.Document) (*Base, error) {
	parsed, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, fmt.Errorf("%w: document is required", ErrInvalidArgument)
	}

	return &Base{id: parsed, document: document}, nil
}

// ID returns the state identifier.
func (b *Base) ID() uuid.UUID {
	return b.id
}

// Document returns the backing document.
func (b *Base) Document() *docstore.Document {
	return b.document
}

// ToMap returns {"id": "<uuid>"}.
func (b *Base) ToMap() map[string]any {
	return map[string]any{
		"id": b.id.String(),
	}
}

// parseID accepts the hyphenated UUID forms only.
func parseID(id string) (uuid.UUID, error) {
	// uuid.Parse also accepts 32 bare hex digits.
	if len(id) == 32 {
		return uuid.Nil, fmt.Errorf("%w: provided state id %q is not valid", ErrInvalidArgument, id)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: provided state id %q is not valid", ErrInvalidArgument, id)
	}
	return parsed, nil
}
