// Package api implements the read-only HTTP API of the state store.
//
// Endpoints:
//
//	GET /api/v1/health              store (and optional MQTT) health
//	GET /api/v1/types               registered state types
//	GET /api/v1/states/{id}?type=   one state as JSON
//
// A lookup answers 200 with the state map, 400 for an invalid UUID or an
// unknown type, 404 when no document matches, 500 when the document cannot
// be materialized and 502 when the document store fails.
//
// When api.auth.jwt_secret is set, /types and /states require an
// "Authorization: Bearer <jwt>" header granting states:read (401 without a
// valid token, 403 without the scope). /health stays open.
//
// Every response carries an X-Request-ID header; requests are logged with
// method, path, status and duration.
package api
