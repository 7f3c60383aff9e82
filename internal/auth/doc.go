// Package auth issues and validates the bearer tokens that protect the
// state API.
//
// Tokens are HS256 JWTs with a subject, an expiry and a space-separated
// scope claim. Reading states requires the "states:read" scope:
//
//	token, err := auth.IssueToken("dashboard", secret, time.Hour)
//	claims, err := auth.Authorize(token, secret, auth.ScopeStatesRead)
package auth
