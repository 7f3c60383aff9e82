// Package docstore defines the document store boundary used by the state store.
//
// A document store is a schemaless database holding flat JSON records that are
// addressed by an identifier. This package owns the types shared by every
// backend:
//
//   - Store: the operations the state repository needs (existence check,
//     provisioning, selector lookup, document load)
//   - Document: a loaded, read-only raw document
//   - Selector: a Mango-style query selector ({"field": {"$eq": value}})
//
// Backends live in sibling packages:
//
//   - couchdb: HTTP driver for Apache CouchDB (the production backend)
//   - database: embedded SQLite backend for offline installs and tests
//
// # Number handling
//
// JSON numbers are normalised when a document is loaded: integral literals
// become int64 and everything else becomes float64. Callers never see
// json.Number.
//
// # Errors
//
// Backends report a missing database or document with ErrNotFound and
// non-success responses with *StatusError. Both can be inspected with
// errors.Is / errors.As.
package docstore
