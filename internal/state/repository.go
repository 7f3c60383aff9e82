package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/docstore"
)

// Connector provides the store client. couchdb.Connection implements it.
type Connector interface {
	Client(ctx context.Context) (docstore.Store, error)
}

// Logger defines the logging interface used by the Repository.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

// Outcome is the result of a lookup as reported to a LookupObserver.
type Outcome string

// Lookup outcomes.
const (
	OutcomeFound   Outcome = "found"
	OutcomeMissing Outcome = "missing"
	OutcomeFailed  Outcome = "failed"
)

// LookupObserver receives the outcome of every lookup.
// Implementations must not block.
type LookupObserver interface {
	ObserveLookup(typeName string, outcome Outcome, duration time.Duration)
}

// Repository loads states from the document store.
//
// It holds no cache: every lookup queries the store and returns a fresh
// instance.
type Repository struct {
	conn     Connector
	registry *Registry
	logger   Logger
	observer LookupObserver
}

// NewRepository creates a repository reading through conn.
// A nil registry uses DefaultRegistry().
func NewRepository(conn Connector, registry *Registry) *Repository {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Repository{
		conn:     conn,
		registry: registry,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the repository.
func (r *Repository) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// SetObserver sets the observer notified of lookup outcomes.
func (r *Repository) SetObserver(observer LookupObserver) {
	r.observer = observer
}

// Registry returns the type registry used for materialization.
func (r *Repository) Registry() *Registry {
	return r.registry
}

// FindOne loads the state whose document "id" field equals id and builds it
// as typeName. An empty typeName means TypeState.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - id: State identifier
//   - typeName: Registered state type
//
// Returns:
//   - State: The state, nil when not found
//   - bool: Whether a document was found
//   - error: ErrRepository if the store failed, ErrMaterialization if the
//     document could not be turned into the requested type
func (r *Repository) FindOne(ctx context.Context, id uuid.UUID, typeName string) (State, bool, error) {
	if typeName == "" {
		typeName = TypeState
	}
	start := time.Now()

	doc, err := r.findDocument(ctx, id)
	if err != nil {
		r.observe(typeName, OutcomeFailed, start)
		return nil, false, err
	}
	if doc == nil {
		r.logger.Debug("state not found", "id", id.String(), "type", typeName)
		r.observe(typeName, OutcomeMissing, start)
		return nil, false, nil
	}

	st, err := r.registry.Create(typeName, doc)
	if err != nil {
		r.observe(typeName, OutcomeFailed, start)
		return nil, false, err
	}

	r.observe(typeName, OutcomeFound, start)
	return st, true, nil
}

// FindProperty loads a property state.
//
// Returns:
//   - *Property: The property, nil when not found
//   - bool: Whether a document was found
//   - error: As FindOne
func (r *Repository) FindProperty(ctx context.Context, id uuid.UUID) (*Property, bool, error) {
	st, found, err := r.FindOne(ctx, id, TypeProperty)
	if err != nil || !found {
		return nil, found, err
	}

	p, ok := st.(*Property)
	if !ok {
		return nil, false, fmt.Errorf("%w: %q built %T, not a property", ErrMaterialization, TypeProperty, st)
	}
	return p, true, nil
}

// findDocument returns the first document matching id, or nil.
func (r *Repository) findDocument(ctx context.Context, id uuid.UUID) (*docstore.Document, error) {
	store, err := r.conn.Client(ctx)
	if err != nil {
		return nil, r.loadFailed(id, err)
	}

	raw, err := store.Find(ctx, docstore.Eq("id", id.String()))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, r.loadFailed(id, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	doc, err := store.LoadDocument(raw[0])
	if err != nil {
		return nil, r.loadFailed(id, err)
	}
	return doc, nil
}

// loadFailed logs a store failure and wraps it as ErrRepository.
func (r *Repository) loadFailed(id uuid.UUID, err error) error {
	r.logger.Error("document could not be loaded",
		"type", "repository",
		"action", "find_document",
		"property", id.String(),
		slog.Group("exception",
			"message", err.Error(),
			"code", docstore.ErrorCode(err),
		),
	)
	return fmt.Errorf("%w: %w", ErrRepository, err)
}

func (r *Repository) observe(typeName string, outcome Outcome, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveLookup(typeName, outcome, time.Since(start))
	}
}
