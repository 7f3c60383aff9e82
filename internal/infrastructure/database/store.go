package database

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/docstore"
)

// DocumentStore implements docstore.Store on top of SQLite.
//
// Documents are JSON bodies grouped into named databases. Equality selectors
// are translated to json_extract comparisons.
//
// Thread Safety:
//   - All methods are safe for concurrent use (database/sql pools the connection).
type DocumentStore struct {
	db     *DB
	name   string
	ownsDB bool
}

// NewDocumentStore creates a store for the named database on an open DB.
// Closing the store does not close db.
func NewDocumentStore(db *DB, name string) *DocumentStore {
	return &DocumentStore{db: db, name: name}
}

// OpenStore opens the SQLite file and returns a store for the named database.
// The store owns the DB and closes it on Close.
//
// Parameters:
//   - ctx: Context for opening the file
//   - cfg: SQLite configuration
//   - name: Database (namespace) name
//
// Returns:
//   - *DocumentStore: Store ready for use
//   - error: If the file cannot be opened
func OpenStore(ctx context.Context, cfg Config, name string) (*DocumentStore, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &DocumentStore{db: db, name: name, ownsDB: true}, nil
}

// Name returns the database name.
func (s *DocumentStore) Name() string {
	return s.name
}

// DatabaseExists reports whether the database has been created.
func (s *DocumentStore) DatabaseExists(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM databases WHERE name = ?", s.name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking database %q: %w", s.name, err)
	}
	return count > 0, nil
}

// CreateDatabase creates the database. Creating an existing database is a no-op.
func (s *DocumentStore) CreateDatabase(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO databases (name) VALUES (?)", s.name); err != nil {
		return fmt.Errorf("creating database %q: %w", s.name, err)
	}
	return nil
}

// Find returns the documents matching an equality selector, oldest first.
//
// Returns:
//   - []json.RawMessage: Documents with _id and _rev set
//   - error: docstore.ErrNotFound if the database does not exist,
//     docstore.ErrInvalidSelector for unsupported selectors
func (s *DocumentStore) Find(ctx context.Context, selector docstore.Selector) ([]json.RawMessage, error) {
	if selector == nil {
		return nil, fmt.Errorf("%w: selector is nil", docstore.ErrInvalidSelector)
	}
	equalities, ok := selector.Equalities()
	if !ok {
		return nil, fmt.Errorf("%w: only $eq conditions are supported", docstore.ErrInvalidSelector)
	}

	exists, err := s.DatabaseExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: database %q", docstore.ErrNotFound, s.name)
	}

	where, args, err := buildWhere(s.name, equalities)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, rev, body FROM documents WHERE "+where+" ORDER BY rowid", args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []json.RawMessage
	for rows.Next() {
		var (
			id   string
			rev  int64
			body string
		)
		if err := rows.Scan(&id, &rev, &body); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		raw, err := withMeta(id, rev, body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// LoadDocument decodes a raw document returned by Find.
func (s *DocumentStore) LoadDocument(raw json.RawMessage) (*docstore.Document, error) {
	return docstore.Load(raw)
}

// Put inserts or replaces a document and returns its identifier and new
// revision. A missing _id is generated. The database must exist.
//
// Put is not part of docstore.Store and the lookup path never writes. It
// exists to seed the embedded store for local runs and tests.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - fields: Document fields; _id and _rev are not stored in the body
//
// Returns:
//   - string: Document identifier
//   - string: Revision ("<n>-<hash>")
//   - error: If the database does not exist or the write fails
func (s *DocumentStore) Put(ctx context.Context, fields map[string]any) (string, string, error) {
	id, _ := fields[docstore.KeyID].(string)
	if id == "" {
		id = uuid.NewString()
	}

	body := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == docstore.KeyID || k == docstore.KeyRev {
			continue
		}
		body[k] = v
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", docstore.ErrInvalidDocument, err)
	}

	exists, err := s.DatabaseExists(ctx)
	if err != nil {
		return "", "", err
	}
	if !exists {
		return "", "", fmt.Errorf("%w: database %q", docstore.ErrNotFound, s.name)
	}

	var rev int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO documents (db_name, id, body) VALUES (?, ?, ?)
		ON CONFLICT (db_name, id) DO UPDATE SET
			body = excluded.body,
			rev = documents.rev + 1,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		RETURNING rev`,
		s.name, id, string(encoded),
	).Scan(&rev)
	if err != nil {
		return "", "", fmt.Errorf("writing document %q: %w", id, err)
	}

	return id, revision(rev, string(encoded)), nil
}

// Ping verifies the database file is accessible.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

// Close closes the underlying DB when the store owns it.
func (s *DocumentStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// buildWhere translates field equalities into a WHERE clause.
// Fields are sorted so the generated SQL is stable.
func buildWhere(name string, equalities map[string]any) (string, []any, error) {
	fields := make([]string, 0, len(equalities))
	for f := range equalities {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	clauses := []string{"db_name = ?"}
	args := []any{name}

	for _, field := range fields {
		path, err := jsonPath(field)
		if err != nil {
			return "", nil, err
		}

		switch v := equalities[field].(type) {
		case nil:
			clauses = append(clauses, "json_type(body, "+path+") = 'null'")
		case bool:
			clauses = append(clauses, "json_type(body, "+path+") = ?")
			if v {
				args = append(args, "true")
			} else {
				args = append(args, "false")
			}
		case string, int, int64, float64:
			clauses = append(clauses, "json_extract(body, "+path+") = ?")
			args = append(args, v)
		default:
			return "", nil, fmt.Errorf("%w: unsupported value %T for field %q", docstore.ErrInvalidSelector, v, field)
		}
	}

	return strings.Join(clauses, " AND "), args, nil
}

// jsonPath returns the quoted SQLite JSON path literal for a top-level field.
// Plain identifiers use the short form so the expression index on $.id applies.
// _id and _rev are stored as columns, not in the body, and cannot be queried.
func jsonPath(field string) (string, error) {
	if field == "" || strings.ContainsAny(field, `"'\`) || strings.HasPrefix(field, "_") {
		return "", fmt.Errorf("%w: unsupported field %q", docstore.ErrInvalidSelector, field)
	}
	if isIdentifier(field) {
		return "'$." + field + "'", nil
	}
	return `'$."` + field + `"'`, nil
}

func isIdentifier(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

// withMeta adds _id and _rev to a stored body.
func withMeta(id string, rev int64, body string) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, fmt.Errorf("%w: stored document %q: %w", docstore.ErrInvalidDocument, id, err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, 2)
	}

	idJSON, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("encoding document id: %w", err)
	}
	revJSON, err := json.Marshal(revision(rev, body))
	if err != nil {
		return nil, fmt.Errorf("encoding document revision: %w", err)
	}
	fields[docstore.KeyID] = idJSON
	fields[docstore.KeyRev] = revJSON

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding document %q: %w", id, err)
	}
	return raw, nil
}

// revision formats a CouchDB style revision: sequence number and body hash.
func revision(seq int64, body string) string {
	sum := sha256.Sum256([]byte(body))
	return fmt.Sprintf("%d-%x", seq, sum[:16])
}

// Compile-time interface checks.
var (
	_ docstore.Store  = (*DocumentStore)(nil)
	_ docstore.Pinger = (*DocumentStore)(nil)
)
