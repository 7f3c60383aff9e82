package docstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for document store operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, docstore.ErrNotFound) {
//	    // absent document, not a failure
//	}
var (
	// ErrNotFound indicates the database or document does not exist.
	ErrNotFound = errors.New("docstore: not found")

	// ErrInvalidDocument indicates raw document data could not be decoded.
	ErrInvalidDocument = errors.New("docstore: invalid document")

	// ErrInvalidSelector indicates a selector could not be encoded.
	ErrInvalidSelector = errors.New("docstore: invalid selector")
)

// StatusError describes a non-success response from a document store.
//
// Status carries the transport status (HTTP status for CouchDB) and is
// reported as the error code in structured log entries.
type StatusError struct {
	// Status is the transport status code (e.g. 500).
	Status int

	// ErrorCode is the store's short error identifier (e.g. "unauthorized").
	ErrorCode string

	// Reason is the human readable explanation returned by the store.
	Reason string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("docstore: status %d: %s", e.Status, e.ErrorCode)
	}
	return fmt.Sprintf("docstore: status %d: %s: %s", e.Status, e.ErrorCode, e.Reason)
}

// Code returns the transport status code.
func (e *StatusError) Code() int {
	return e.Status
}

// Is reports 404 responses as ErrNotFound so callers can use a single check.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Status == 404
}

// ErrorCode extracts a numeric code from err for structured logging.
//
// It returns the code of the first error in the chain implementing
// Code() int, or 0 when there is none.
func ErrorCode(err error) int {
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return 0
}
