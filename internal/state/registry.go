package state

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/docstore"
)

// Built-in type names.
const (
	// TypeState is the base state type.
	TypeState = "state"

	// TypeProperty is the device property state type.
	TypeProperty = "property"
)

// Constructor parameter names resolved from the document itself.
const (
	ParamID       = "id"
	ParamDocument = "document"
)

// Param describes one constructor parameter of a state type.
type Param struct {
	// Name is matched against document field names.
	Name string

	// Nullable, Optional and HasDefault let the parameter be omitted.
	// An omitted parameter receives Default when HasDefault is set, nil otherwise.
	Nullable   bool
	Optional   bool
	HasDefault bool
	Default    any

	// Variadic parameters are never filled from document fields.
	Variadic bool
}

// Field describes one settable field of a state type.
type Field struct {
	// Name is the document field name.
	Name string

	// Kind is the primitive kind the raw value is coerced to.
	Kind Kind

	// Set applies the coerced value. A nil Set marks the field read-only.
	Set func(s State, value any) error
}

// Type describes how to build a state type from a document.
type Type struct {
	// Name is the registered type identifier.
	Name string

	// Parent names the type whose fields are applied after this type's own.
	Parent string

	// Params lists constructor parameters in call order.
	Params []Param

	// New constructs the state from the resolved parameters.
	New func(args []any) (State, error)

	// Fields lists the settable fields declared by this type.
	Fields []Field
}

// Registry holds state type descriptors by name.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]Type),
	}
}

// DefaultRegistry creates a registry with the built-in state and property
// types registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range []Type{baseType(), propertyType()} {
		if err := r.Register(t); err != nil {
			panic(fmt.Sprintf("state: registering built-in type %q: %v", t.Name, err))
		}
	}
	return r
}

// Register adds a type descriptor.
//
// Returns:
//   - error: ErrInvalidType if the name is empty, already registered, or the
//     parent is not registered
func (r *Registry) Register(t Type) error {
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[t.Name]; exists {
		return fmt.Errorf("%w: %q already registered", ErrInvalidType, t.Name)
	}
	if t.Parent != "" {
		if _, ok := r.types[t.Parent]; !ok {
			return fmt.Errorf("%w: %q has unknown parent %q", ErrInvalidType, t.Name, t.Parent)
		}
	}

	t.Params = append([]Param(nil), t.Params...)
	t.Fields = append([]Field(nil), t.Fields...)
	r.types[t.Name] = t
	return nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Names returns the registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create materializes a state of the named type from doc.
//
// Constructor parameters are resolved in order: a document field with the
// same name, then the document identifier for "id", then the document
// itself for "document", then the default (or nil) for parameters that may
// be omitted. Fields of the type and its ancestors that are present in the
// document are coerced to their Kind and applied through their setters.
//
// Returns:
//   - State: The new state
//   - error: ErrMaterialization wrapping the cause
func (r *Registry) Create(typeName string, doc *docstore.Document) (State, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: %w: document is nil", ErrMaterialization, ErrInvalidArgument)
	}

	t, ok := r.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrMaterialization, ErrUnknownType, typeName)
	}
	if t.New == nil {
		return nil, fmt.Errorf("%w: type %q has no constructor", ErrMaterialization, typeName)
	}

	args, err := resolveParams(t.Params, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMaterialization, typeName, err)
	}

	st, err := t.New(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMaterialization, typeName, err)
	}
	if st == nil {
		return nil, fmt.Errorf("%w: %s: constructor returned nil", ErrMaterialization, typeName)
	}

	for _, f := range r.fields(t) {
		raw, present := doc.Get(f.Name)
		if !present || f.Set == nil {
			continue
		}
		if err := f.Set(st, Coerce(f.Kind, raw)); err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %w", ErrMaterialization, typeName, f.Name, err)
		}
	}

	return st, nil
}

// fields returns the fields of t followed by those of its ancestors.
// A field redeclared by a descendant shadows the ancestor's.
func (r *Registry) fields(t Type) []Field {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Field
	seen := make(map[string]bool)
	visited := make(map[string]bool)

	for cur, ok := t, true; ok && !visited[cur.Name]; cur, ok = r.types[cur.Parent] {
		visited[cur.Name] = true
		for _, f := range cur.Fields {
			if seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			out = append(out, f)
		}
		if cur.Parent == "" {
			break
		}
	}

	return out
}

// resolveParams builds constructor arguments from a document.
func resolveParams(params []Param, doc *docstore.Document) ([]any, error) {
	args := make([]any, len(params))

	for i, p := range params {
		if v, ok := doc.Get(p.Name); ok && !p.Variadic {
			args[i] = v
			continue
		}

		switch {
		case p.Name == ParamID:
			args[i] = doc.ID()
		case p.Name == ParamDocument:
			args[i] = doc
		case p.HasDefault:
			args[i] = p.Default
		case p.Nullable || p.Optional || p.Variadic:
			args[i] = nil
		default:
			return nil, fmt.Errorf("cannot resolve constructor parameter %q", p.Name)
		}
	}

	return args, nil
}

// baseType describes the plain state.
func baseType() Type {
	return Type{
		Name:   TypeState,
		Params: []Param{{Name: ParamID}, {Name: ParamDocument}},
		New: func(args []any) (State, error) {
			id, doc, err := idAndDocument(args)
			if err != nil {
				return nil, err
			}
			return NewBase(id, doc)
		},
		Fields: []Field{
			{Name: ParamID, Kind: KindString},
			{Name: ParamDocument},
		},
	}
}

// propertyType describes the device property state.
func propertyType() Type {
	return Type{
		Name:   TypeProperty,
		Parent: TypeState,
		Params: []Param{{Name: ParamID}, {Name: ParamDocument}},
		New: func(args []any) (State, error) {
			id, doc, err := idAndDocument(args)
			if err != nil {
				return nil, err
			}
			return NewProperty(id, doc)
		},
		Fields: []Field{
			{Name: FieldValue, Kind: KindAny, Set: propertySetter(func(p *Property, v any) error {
				return p.SetValue(v)
			})},
			{Name: FieldExpected, Kind: KindAny, Set: propertySetter(func(p *Property, v any) error {
				return p.SetExpected(v)
			})},
			{Name: FieldPending, Kind: KindBool, Set: propertySetter(func(p *Property, v any) error {
				p.SetPending(v.(bool)) //nolint:forcetypeassert // KindBool always yields bool
				return nil
			})},
			{Name: FieldCreated, Kind: KindAny, Set: propertySetter(func(p *Property, v any) error {
				s, err := optionalString(v)
				if err != nil {
					return err
				}
				p.SetCreated(s)
				return nil
			})},
			{Name: FieldUpdated, Kind: KindAny, Set: propertySetter(func(p *Property, v any) error {
				s, err := optionalString(v)
				if err != nil {
					return err
				}
				p.SetUpdated(s)
				return nil
			})},
		},
	}
}

// propertyState is implemented by *Property and by types embedding it.
type propertyState interface {
	property() *Property
}

// propertySetter adapts a *Property setter to Field.Set.
func propertySetter(set func(p *Property, v any) error) func(State, any) error {
	return func(s State, v any) error {
		ps, ok := s.(propertyState)
		if !ok {
			return fmt.Errorf("%w: %T is not a property", ErrInvalidArgument, s)
		}
		return set(ps.property(), v)
	}
}

func idAndDocument(args []any) (string, *docstore.Document, error) {
	if len(args) != 2 {
		return "", nil, fmt.Errorf("%w: expected 2 arguments, got %d", ErrInvalidArgument, len(args))
	}
	id, ok := args[0].(string)
	if !ok {
		return "", nil, fmt.Errorf("%w: id must be a string, got %T", ErrInvalidArgument, args[0])
	}
	doc, ok := args[1].(*docstore.Document)
	if !ok {
		return "", nil, fmt.Errorf("%w: document must be *docstore.Document, got %T", ErrInvalidArgument, args[1])
	}
	return id, doc, nil
}

func optionalString(v any) (*string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &val, nil
	default:
		return nil, fmt.Errorf("%w: expected string or null, got %T", ErrInvalidArgument, v)
	}
}
