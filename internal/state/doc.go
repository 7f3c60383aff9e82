// Package state materializes typed state records from store documents.
//
// A state is identified by a UUID and keeps the raw document it was built
// from. Property extends it with the device property fields (value, expected
// value, pending flag and timestamps).
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                        Repository                           │
//	│  FindOne(ctx, id, type)                                     │
//	│     │                                                       │
//	│     ├──▶ Connector.Client(ctx)     lazy, memoized store     │
//	│     ├──▶ Store.Find({id: $eq})     first match wins         │
//	│     ├──▶ Store.LoadDocument(raw)                            │
//	│     └──▶ Registry.Create(type, doc)                         │
//	│             ├─ constructor params (document, id, defaults)  │
//	│             └─ field setters with kind coercion             │
//	└─────────────────────────────────────────────────────────────┘
//
// # Types
//
// Types are registered explicitly with a descriptor listing the constructor
// parameters and the settable fields, each with a primitive Kind used to
// coerce the raw document value:
//
//	reg := state.DefaultRegistry()
//	err := reg.Register(state.Type{
//	    Name:   "thermostat",
//	    Parent: state.TypeProperty,
//	    Params: []state.Param{{Name: "id"}, {Name: "document"}},
//	    New:    newThermostat,
//	    Fields: []state.Field{{Name: "setpoint", Kind: state.KindFloat, Set: setSetpoint}},
//	})
//
// # Errors
//
// Absence is not an error: FindOne returns (nil, false, nil) when no document
// matches. Store failures surface as ErrRepository, construction and setter
// failures as ErrMaterialization, and invalid identifiers as
// ErrInvalidArgument.
package state
