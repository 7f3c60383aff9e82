package state

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/docstore"
)

// memoryStore is an in-memory docstore.Store holding raw JSON documents.
type memoryStore struct {
	docs      []json.RawMessage
	findErr   error
	loadErr   error
	findCalls int
	lastQuery docstore.Selector
}

func (s *memoryStore) DatabaseExists(context.Context) (bool, error) { return true, nil }
func (s *memoryStore) CreateDatabase(context.Context) error         { return nil }

func (s *memoryStore) Find(_ context.Context, selector docstore.Selector) ([]json.RawMessage, error) {
	s.findCalls++
	s.lastQuery = selector
	if s.findErr != nil {
		return nil, s.findErr
	}

	want, ok := selector.Equalities()
	if !ok {
		return nil, docstore.ErrInvalidSelector
	}

	var out []json.RawMessage
	for _, raw := range s.docs {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		match := true
		for k, v := range want {
			if fields[k] != v {
				match = false
				break
			}
		}
		if match {
			out = append(out, raw)
		}
	}
	return out, nil
}

func (s *memoryStore) LoadDocument(raw json.RawMessage) (*docstore.Document, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return docstore.Load(raw)
}

func (s *memoryStore) add(t *testing.T, fields map[string]any) {
	t.Helper()
	raw, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	s.docs = append(s.docs, raw)
}

// staticConnector hands out a fixed store or error.
type staticConnector struct {
	store docstore.Store
	err   error
}

func (c *staticConnector) Client(context.Context) (docstore.Store, error) {
	return c.store, c.err
}

// recordingLogger captures log calls with their arguments.
type recordingLogger struct {
	mu     sync.Mutex
	errors []logEntry
	debugs []logEntry
}

type logEntry struct {
	msg  string
	args []any
}

func (l *recordingLogger) Debug(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugs = append(l.debugs, logEntry{msg: msg, args: args})
}

func (l *recordingLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, logEntry{msg: msg, args: args})
}

// attr returns the value following key in a flat key/value list.
func (e logEntry) attr(key string) any {
	for i := 0; i+1 < len(e.args); i++ {
		if k, ok := e.args[i].(string); ok && k == key {
			return e.args[i+1]
		}
	}
	return nil
}

// recordingObserver captures lookup outcomes.
type recordingObserver struct {
	outcomes []Outcome
	types    []string
}

func (o *recordingObserver) ObserveLookup(typeName string, outcome Outcome, _ time.Duration) {
	o.types = append(o.types, typeName)
	o.outcomes = append(o.outcomes, outcome)
}

func newTestRepository(store docstore.Store) (*Repository, *recordingLogger, *recordingObserver) {
	repo := NewRepository(&staticConnector{store: store}, nil)
	logger := &recordingLogger{}
	observer := &recordingObserver{}
	repo.SetLogger(logger)
	repo.SetObserver(observer)
	return repo, logger, observer
}

// =============================================================================
// FindOne Tests
// =============================================================================

func TestRepository_FindOne_Found(t *testing.T) {
	id := uuid.New()
	store := &memoryStore{}
	store.add(t, map[string]any{"_id": "other", "id": uuid.NewString()})
	store.add(t, map[string]any{"_id": "couch-1", "id": id.String(), "value": 5})

	repo, logger, observer := newTestRepository(store)

	st, found, err := repo.FindOne(context.Background(), id, TypeState)
	if err != nil {
		t.Fatalf("FindOne() error = %v", err)
	}
	if !found || st == nil {
		t.Fatal("FindOne() did not find the document")
	}
	if st.ID() != id {
		t.Errorf("ID() = %v, want %v", st.ID(), id)
	}
	if st.Document().ID() != "couch-1" {
		t.Errorf("Document().ID() = %q", st.Document().ID())
	}

	// Query is an equality on the "id" field.
	want, ok := store.lastQuery.Equalities()
	if !ok || len(want) != 1 || want["id"] != id.String() {
		t.Errorf("query = %v", store.lastQuery)
	}

	if len(logger.errors) != 0 {
		t.Errorf("logged %d errors on success", len(logger.errors))
	}
	if len(observer.outcomes) != 1 || observer.outcomes[0] != OutcomeFound {
		t.Errorf("outcomes = %v", observer.outcomes)
	}
}

func TestRepository_FindOne_DefaultType(t *testing.T) {
	id := uuid.New()
	store := &memoryStore{}
	store.add(t, map[string]any{"id": id.String()})

	repo, _, observer := newTestRepository(store)
	st, found, err := repo.FindOne(context.Background(), id, "")
	if err != nil || !found {
		t.Fatalf("FindOne() = %v, %v, %v", st, found, err)
	}
	if _, ok := st.(*Base); !ok {
		t.Errorf("FindOne() returned %T, want *Base", st)
	}
	if observer.types[0] != TypeState {
		t.Errorf("observed type = %q, want %q", observer.types[0], TypeState)
	}
}

func TestRepository_FindOne_Missing(t *testing.T) {
	tests := []struct {
		name  string
		store *memoryStore
	}{
		{name: "no match", store: &memoryStore{}},
		{name: "store not found", store: &memoryStore{findErr: docstore.ErrNotFound}},
		{name: "404 status", store: &memoryStore{findErr: &docstore.StatusError{Status: 404, ErrorCode: "not_found"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, logger, observer := newTestRepository(tt.store)

			st, found, err := repo.FindOne(context.Background(), uuid.New(), TypeProperty)
			if err != nil {
				t.Fatalf("FindOne() error = %v, want nil", err)
			}
			if found || st != nil {
				t.Errorf("FindOne() = %v, %v; want nil, false", st, found)
			}
			if len(logger.errors) != 0 {
				t.Errorf("absence logged as error: %v", logger.errors)
			}
			if observer.outcomes[0] != OutcomeMissing {
				t.Errorf("outcome = %v, want missing", observer.outcomes[0])
			}
		})
	}
}

func TestRepository_FindOne_StoreFailure(t *testing.T) {
	id := uuid.New()
	cause := &docstore.StatusError{Status: 500, ErrorCode: "internal_server_error", Reason: "boom"}
	repo, logger, observer := newTestRepository(&memoryStore{findErr: cause})

	st, found, err := repo.FindOne(context.Background(), id, TypeState)
	if !errors.Is(err, ErrRepository) {
		t.Fatalf("FindOne() error = %v, want ErrRepository", err)
	}
	var se *docstore.StatusError
	if !errors.As(err, &se) || se != cause {
		t.Errorf("FindOne() error does not wrap the cause: %v", err)
	}
	if st != nil || found {
		t.Errorf("FindOne() = %v, %v on failure", st, found)
	}

	if len(logger.errors) != 1 {
		t.Fatalf("logged %d errors, want 1", len(logger.errors))
	}
	entry := logger.errors[0]
	if entry.attr("type") != "repository" || entry.attr("action") != "find_document" {
		t.Errorf("log attrs = %v", entry.args)
	}
	if entry.attr("property") != id.String() {
		t.Errorf("log property = %v, want %s", entry.attr("property"), id)
	}
	if observer.outcomes[0] != OutcomeFailed {
		t.Errorf("outcome = %v, want failed", observer.outcomes[0])
	}
}

func TestRepository_FindOne_ConnectionFailure(t *testing.T) {
	connErr := errors.New("couchdb: connection failed")
	repo := NewRepository(&staticConnector{err: connErr}, nil)
	logger := &recordingLogger{}
	repo.SetLogger(logger)

	_, _, err := repo.FindOne(context.Background(), uuid.New(), TypeState)
	if !errors.Is(err, ErrRepository) || !errors.Is(err, connErr) {
		t.Errorf("FindOne() error = %v, want ErrRepository wrapping the connection error", err)
	}
	if len(logger.errors) != 1 {
		t.Errorf("logged %d errors, want 1", len(logger.errors))
	}
}

func TestRepository_FindOne_LoadFailure(t *testing.T) {
	id := uuid.New()
	store := &memoryStore{loadErr: docstore.ErrInvalidDocument}
	store.add(t, map[string]any{"id": id.String()})
	repo, logger, _ := newTestRepository(store)

	_, _, err := repo.FindOne(context.Background(), id, TypeState)
	if !errors.Is(err, ErrRepository) || !errors.Is(err, docstore.ErrInvalidDocument) {
		t.Errorf("FindOne() error = %v", err)
	}
	if len(logger.errors) != 1 {
		t.Errorf("logged %d errors, want 1", len(logger.errors))
	}
}

func TestRepository_FindOne_MaterializationFailure(t *testing.T) {
	id := uuid.New()
	store := &memoryStore{}
	store.add(t, map[string]any{"id": id.String()})
	repo, logger, observer := newTestRepository(store)

	_, found, err := repo.FindOne(context.Background(), id, "thermostat")
	if !errors.Is(err, ErrMaterialization) || !errors.Is(err, ErrUnknownType) {
		t.Errorf("FindOne() error = %v, want ErrMaterialization/ErrUnknownType", err)
	}
	if errors.Is(err, ErrRepository) {
		t.Error("materialization failure reported as repository failure")
	}
	if found {
		t.Error("found = true on materialization failure")
	}
	if len(logger.errors) != 0 {
		t.Errorf("materialization failure logged as store failure")
	}
	if observer.outcomes[0] != OutcomeFailed {
		t.Errorf("outcome = %v, want failed", observer.outcomes[0])
	}
}

func TestRepository_FindOne_NoCaching(t *testing.T) {
	id := uuid.New()
	store := &memoryStore{}
	store.add(t, map[string]any{"id": id.String(), "value": "on"})
	repo, _, _ := newTestRepository(store)

	first, _, err := repo.FindOne(context.Background(), id, TypeProperty)
	if err != nil {
		t.Fatalf("FindOne() error = %v", err)
	}
	second, _, err := repo.FindOne(context.Background(), id, TypeProperty)
	if err != nil {
		t.Fatalf("FindOne() error = %v", err)
	}

	if first == second {
		t.Error("FindOne() returned the same instance twice")
	}
	if store.findCalls != 2 {
		t.Errorf("Find called %d times, want 2", store.findCalls)
	}
}

// =============================================================================
// FindProperty Tests
// =============================================================================

func TestRepository_FindProperty(t *testing.T) {
	id := uuid.New()
	store := &memoryStore{}
	store.add(t, map[string]any{
		"id":       id.String(),
		"value":    21.5,
		"expected": 22,
		"pending":  1,
		"updated":  "2024-03-08 10:15:00",
	})
	repo, _, _ := newTestRepository(store)

	p, found, err := repo.FindProperty(context.Background(), id)
	if err != nil || !found {
		t.Fatalf("FindProperty() = %v, %v, %v", p, found, err)
	}
	if p.Value() != 21.5 {
		t.Errorf("Value() = %#v", p.Value())
	}
	if p.Expected() != int64(22) {
		t.Errorf("Expected() = %#v, want int64(22)", p.Expected())
	}
	if !p.IsPending() {
		t.Error("IsPending() = false")
	}
	if p.Updated() == nil || p.Updated().Hour() != 10 {
		t.Errorf("Updated() = %v", p.Updated())
	}

	missing, found, err := repo.FindProperty(context.Background(), uuid.New())
	if err != nil || found || missing != nil {
		t.Errorf("FindProperty(missing) = %v, %v, %v", missing, found, err)
	}
}

func TestRepository_Registry(t *testing.T) {
	reg := NewRegistry()
	repo := NewRepository(&staticConnector{}, reg)
	if repo.Registry() != reg {
		t.Error("Registry() did not return the configured registry")
	}
}
