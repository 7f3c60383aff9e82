package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-statestore/internal/auth"
	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/docstore"
	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-statestore/internal/state"
)

const testStateID = "f81d4fae-7dec-11d0-a765-00a0c91e6bf6"

// fakeFinder serves documents from memory through the default registry.
type fakeFinder struct {
	registry *state.Registry
	docs     map[uuid.UUID]map[string]any
	err      error
	calls    int
}

func newFakeFinder() *fakeFinder {
	return &fakeFinder{
		registry: state.DefaultRegistry(),
		docs:     make(map[uuid.UUID]map[string]any),
	}
}

func (f *fakeFinder) Registry() *state.Registry { return f.registry }

func (f *fakeFinder) FindOne(_ context.Context, id uuid.UUID, typeName string) (state.State, bool, error) {
	f.calls++
	if f.err != nil {
		return nil, false, f.err
	}
	fields, ok := f.docs[id]
	if !ok {
		return nil, false, nil
	}
	st, err := f.registry.Create(typeName, docstore.NewDocument(fields))
	if err != nil {
		return nil, false, err
	}
	return st, true, nil
}

type staticCheck struct{ err error }

func (c staticCheck) HealthCheck(context.Context) error { return c.err }

func testServer(t *testing.T, finder Finder, checks map[string]HealthChecker) (*Server, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	log := logging.NewWithWriter(config.LoggingConfig{Level: "debug", Format: "json"}, "test", &logs)

	srv, err := New(Deps{
		Config:  config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:  log,
		Finder:  finder,
		Checks:  checks,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, &logs
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return rec, body
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{Finder: newFakeFinder()}); err == nil {
		t.Error("New() without logger succeeded")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without finder succeeded")
	}
}

// =============================================================================
// State Lookup Tests
// =============================================================================

func TestHandleGetState(t *testing.T) {
	finder := newFakeFinder()
	finder.docs[uuid.MustParse(testStateID)] = map[string]any{
		"_id":     "doc-1",
		"id":      testStateID,
		"value":   42,
		"pending": false,
		"updated": "2024-03-01T10:00:00Z",
	}
	srv, _ := testServer(t, finder, nil)
	h := srv.Handler()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name: "property", path: "/api/v1/states/" + testStateID + "?type=property", wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				st, _ := body["state"].(map[string]any)
				if body["type"] != "property" || st["value"] != float64(42) || st["updated"] != "2024-03-01T10:00:00Z" {
					t.Errorf("body = %v", body)
				}
			},
		},
		{
			name: "default type", path: "/api/v1/states/" + testStateID, wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				st, _ := body["state"].(map[string]any)
				if body["type"] != "state" || len(st) != 1 || st["id"] != testStateID {
					t.Errorf("body = %v", body)
				}
			},
		},
		{name: "missing", path: "/api/v1/states/" + uuid.NewString(), wantStatus: http.StatusNotFound},
		{name: "invalid id", path: "/api/v1/states/not-a-uuid", wantStatus: http.StatusBadRequest},
		{name: "unknown type", path: "/api/v1/states/" + testStateID + "?type=thermostat", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := get(t, h, tt.path)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", rec.Code, tt.wantStatus, body)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("X-Request-ID header missing")
			}
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}

	// Validation failures never reach the store.
	if finder.calls != 3 {
		t.Errorf("FindOne called %d times, want 3", finder.calls)
	}
}

func TestHandleGetState_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "store failure",
			err:        fmt.Errorf("%w: %w", state.ErrRepository, errors.New("connection refused")),
			wantStatus: http.StatusBadGateway,
			wantCode:   ErrCodeBadGateway,
		},
		{
			name:       "materialization failure",
			err:        fmt.Errorf("%w: bad value", state.ErrMaterialization),
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finder := newFakeFinder()
			finder.err = tt.err
			srv, _ := testServer(t, finder, nil)

			rec, body := get(t, srv.Handler(), "/api/v1/states/"+testStateID)
			if rec.Code != tt.wantStatus || body["code"] != tt.wantCode {
				t.Errorf("response = %d %v, want %d %s", rec.Code, body, tt.wantStatus, tt.wantCode)
			}
			// Internal error details are not exposed.
			if msg, _ := body["message"].(string); strings.Contains(msg, "connection refused") {
				t.Errorf("message leaks cause: %q", msg)
			}
		})
	}
}

func TestHandleListTypes(t *testing.T) {
	srv, _ := testServer(t, newFakeFinder(), nil)

	rec, body := get(t, srv.Handler(), "/api/v1/types")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	types, _ := body["types"].([]any)
	if len(types) != 2 || types[0] != "property" || types[1] != "state" {
		t.Errorf("types = %v", body["types"])
	}
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]HealthChecker
		wantStatus int
		wantState  string
	}{
		{name: "no checks", wantStatus: http.StatusOK, wantState: "ok"},
		{
			name:       "healthy",
			checks:     map[string]HealthChecker{"store": staticCheck{}, "mqtt": staticCheck{}},
			wantStatus: http.StatusOK,
			wantState:  "ok",
		},
		{
			name:       "store down",
			checks:     map[string]HealthChecker{"store": staticCheck{err: errors.New("unreachable")}},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := testServer(t, newFakeFinder(), tt.checks)
			rec, body := get(t, srv.Handler(), "/api/v1/health")
			if rec.Code != tt.wantStatus || body["status"] != tt.wantState {
				t.Errorf("response = %d %v", rec.Code, body)
			}
			if body["version"] != "test" {
				t.Errorf("version = %v", body["version"])
			}
		})
	}
}

// =============================================================================
// Middleware Tests
// =============================================================================

func TestMiddleware_RequestIDAndLogging(t *testing.T) {
	srv, logs := testServer(t, newFakeFinder(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want req-123", got)
	}
	if !strings.Contains(logs.String(), `"request_id":"req-123"`) {
		t.Errorf("request not logged with id: %s", logs.String())
	}
}

func TestMiddleware_Recovery(t *testing.T) {
	srv, logs := testServer(t, newFakeFinder(), nil)

	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler bug")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(logs.String(), "panic recovered") {
		t.Error("panic not logged")
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	srv, _ := testServer(t, newFakeFinder(), nil)
	h := srv.Handler()

	rec, body := get(t, h, "/api/v1/nope")
	if rec.Code != http.StatusNotFound || body["code"] != ErrCodeNotFound {
		t.Errorf("unknown route = %d %v", rec.Code, body)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/states/"+testStateID, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rr.Code)
	}
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestServer_StartClose(t *testing.T) {
	srv, _ := testServer(t, newFakeFinder(), nil)

	if err := srv.Close(); err != nil {
		t.Errorf("Close() before Start error = %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// =============================================================================
// Authentication Tests
// =============================================================================

func TestAuthMiddleware(t *testing.T) {
	const secret = "api-test-secret-0123456789"

	finder := newFakeFinder()
	finder.docs[uuid.MustParse(testStateID)] = map[string]any{"id": testStateID}

	var logs bytes.Buffer
	srv, err := New(Deps{
		Config: config.APIConfig{Auth: config.APIAuthConfig{JWTSecret: secret}},
		Logger: logging.NewWithWriter(config.LoggingConfig{Level: "debug", Format: "json"}, "test", &logs),
		Finder: finder,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h := srv.Handler()

	readToken, err := auth.IssueToken("dashboard", secret, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	otherToken, err := auth.IssueToken("metrics", secret, time.Hour, "metrics:read")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	foreignToken, err := auth.IssueToken("dashboard", "some-other-secret-value", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{name: "health is open", path: "/api/v1/health", wantStatus: http.StatusOK},
		{name: "no token", path: "/api/v1/states/" + testStateID, wantStatus: http.StatusUnauthorized},
		{name: "not bearer", path: "/api/v1/states/" + testStateID, header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "foreign secret", path: "/api/v1/states/" + testStateID, header: "Bearer " + foreignToken, wantStatus: http.StatusUnauthorized},
		{name: "missing scope", path: "/api/v1/types", header: "Bearer " + otherToken, wantStatus: http.StatusForbidden},
		{name: "valid", path: "/api/v1/states/" + testStateID, header: "Bearer " + readToken, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if rec.Code == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate")
			}
		})
	}

	if !strings.Contains(logs.String(), `"subject":"dashboard"`) {
		t.Error("lookup not logged with token subject")
	}
}
