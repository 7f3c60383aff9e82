package couchdb

import "errors"

// Sentinel errors for CouchDB operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, couchdb.ErrConnectionFailed) {
//	    // store unreachable, credentials rejected or database not provisioned
//	}
var (
	// ErrConnectionFailed indicates the client could not be created, the server
	// was unreachable or the database could not be verified/created.
	ErrConnectionFailed = errors.New("couchdb: connection failed")

	// ErrInvalidDSN indicates the connection parameters do not form a valid URL.
	ErrInvalidDSN = errors.New("couchdb: invalid connection parameters")

	// ErrRequestFailed indicates an HTTP request to CouchDB could not be completed.
	ErrRequestFailed = errors.New("couchdb: request failed")
)
