package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-statestore/internal/state"
)

// healthCheckTimeout bounds each component check on /health.
const healthCheckTimeout = 5 * time.Second

// handleHealth reports the server version and the status of every check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()

		if err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":  overall,
		"version": s.version,
		"checks":  checks,
	})
}

// handleListTypes lists the registered state types.
func (s *Server) handleListTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"types": s.finder.Registry().Names(),
	})
}

// handleGetState looks up one state. The type query parameter defaults to
// the base state type.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	rawID := chi.URLParam(r, "id")
	id, err := uuid.Parse(rawID)
	if err != nil {
		writeBadRequest(w, "invalid state id: "+rawID)
		return
	}

	typeName := r.URL.Query().Get("type")
	if typeName == "" {
		typeName = state.TypeState
	}
	if _, ok := s.finder.Registry().Lookup(typeName); !ok {
		writeBadRequest(w, "unknown state type: "+typeName)
		return
	}

	s.logger.Debug("state lookup",
		"id", rawID,
		"type", typeName,
		"subject", subject(r.Context()),
		"request_id", requestID(r.Context()),
	)

	st, found, err := s.finder.FindOne(r.Context(), id, typeName)
	switch {
	case errors.Is(err, state.ErrMaterialization):
		s.logger.Warn("state could not be materialized",
			"id", rawID,
			"type", typeName,
			"request_id", requestID(r.Context()),
			slog.Group("exception", "message", err.Error()),
		)
		writeInternalError(w, "state could not be created")
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, "document store unavailable")
		return
	case !found:
		writeNotFound(w, "state not found: "+rawID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"type":  typeName,
		"state": st.ToMap(),
	})
}
