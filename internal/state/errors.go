package state

import "errors"

// Domain errors for the state package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, state.ErrRepository) {
//	    // the store could not be queried
//	}
var (
	// ErrRepository is returned when a document could not be loaded from the store.
	ErrRepository = errors.New("state: document could not be loaded")

	// ErrMaterialization is returned when a document could not be turned into a state.
	ErrMaterialization = errors.New("state: could not be created")

	// ErrInvalidArgument is returned when a state is constructed with invalid input.
	ErrInvalidArgument = errors.New("state: invalid argument")

	// ErrUnknownType is returned when a state type name is not registered.
	ErrUnknownType = errors.New("state: unknown type")

	// ErrInvalidType is returned when a type descriptor cannot be registered.
	ErrInvalidType = errors.New("state: invalid type descriptor")
)
