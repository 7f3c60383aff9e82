package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/docstore"
)

// Property field names as stored in documents.
const (
	FieldValue    = "value"
	FieldExpected = "expected"
	FieldPending  = "pending"
	FieldCreated  = "created"
	FieldUpdated  = "updated"
)

// timestampLayouts are tried in order when parsing created/updated values.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Property is the state of a device or channel property.
//
// Value and Expected hold a scalar: nil, bool, int64, float64 or string.
type Property struct {
	*Base

	value    any
	expected any
	pending  bool
	created  *time.Time
	updated  *time.Time
}

// NewProperty creates an empty property state.
//
// Returns:
//   - *Property: The state with nil value, not pending
//   - error: ErrInvalidArgument if id is not a valid UUID or document is nil
func NewProperty(id string, document *docstore.Document) (*Property, error) {
	base, err := NewBase(id, document)
	if err != nil {
		return nil, err
	}
	return &Property{Base: base}, nil
}

func (p *Property) property() *Property {
	return p
}

// Value returns the actual value.
func (p *Property) Value() any {
	return p.value
}

// SetValue sets the actual value.
// Returns ErrInvalidArgument for non-scalar values.
func (p *Property) SetValue(value any) error {
	v, err := scalar(value)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	p.value = v
	return nil
}

// Expected returns the value the property is expected to reach.
func (p *Property) Expected() any {
	return p.expected
}

// SetExpected sets the expected value.
// Returns ErrInvalidArgument for non-scalar values.
func (p *Property) SetExpected(expected any) error {
	v, err := scalar(expected)
	if err != nil {
		return fmt.Errorf("expected: %w", err)
	}
	p.expected = v
	return nil
}

// IsPending reports whether a change to the expected value is in flight.
func (p *Property) IsPending() bool {
	return p.pending
}

// SetPending sets the pending flag.
func (p *Property) SetPending(pending bool) {
	p.pending = pending
}

// Created returns the creation time, or nil if unknown.
func (p *Property) Created() *time.Time {
	return cloneTime(p.created)
}

// SetCreated parses and sets the creation time.
// A nil or unparsable value clears it.
func (p *Property) SetCreated(created *string) {
	p.created = parseTimestamp(created)
}

// Updated returns the last update time, or nil if unknown.
func (p *Property) Updated() *time.Time {
	return cloneTime(p.updated)
}

// SetUpdated parses and sets the last update time.
// A nil or unparsable value clears it.
func (p *Property) SetUpdated(updated *string) {
	p.updated = parseTimestamp(updated)
}

// ToMap returns the property as a plain map. Timestamps are RFC 3339 strings
// or nil.
func (p *Property) ToMap() map[string]any {
	m := p.Base.ToMap()
	m[FieldValue] = p.value
	m[FieldExpected] = p.expected
	m[FieldPending] = p.pending
	m[FieldCreated] = formatTimestamp(p.created)
	m[FieldUpdated] = formatTimestamp(p.updated)
	return m
}

// scalar validates and normalises a property value.
func scalar(v any) (any, error) {
	switch val := v.(type) {
	case nil, bool, int64, float64, string:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case float32:
		return float64(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidArgument, val.String())
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value type %T", ErrInvalidArgument, v)
	}
}

func parseTimestamp(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t
		}
	}
	return nil
}

func formatTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
