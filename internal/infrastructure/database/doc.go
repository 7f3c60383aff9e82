// Package database provides the embedded SQLite document backend.
//
// It lets the state store run without a CouchDB server: DocumentStore
// implements docstore.Store over a single SQLite file, and the CouchDB
// connection handle dials it through couchdb.WithDialer.
//
// This package manages:
//   - Database connection with WAL mode for concurrent reads
//   - The embedded document schema (schema.sql), applied on Open
//   - Named document databases, mirroring CouchDB databases
//   - Equality lookups translated to json_extract queries
//
// Security Considerations:
//   - Selector values are bound as parameters; field names are validated
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	store, err := database.OpenStore(ctx, database.Config{
//	    Path:        "./data/statestore.db",
//	    WALMode:     true,
//	    BusyTimeout: 5,
//	}, "state_storage")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	docs, err := store.Find(ctx, docstore.Eq("id", id.String()))
package database
