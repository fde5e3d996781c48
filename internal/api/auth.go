// Package api implements HTTP handlers and helpers for the zone service.
package api

import (
	"net/http"
	"strings"
)

type Principal struct {
	Subject string
	Role    string // admin, dispatcher, driver
}

// getPrincipal extracts the caller identity.
// - If Authorization: Bearer is present, uses the configured verifier (dev/hmac).
// - Else falls back to headers for dev.
func (s *Server) getPrincipal(r *http.Request) Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			return Principal{Subject: pr.Subject, Role: pr.Role}
		}
	}
	role := r.Header.Get("X-Role")
	if role == "" {
		role = "admin"
	}
	return Principal{Subject: r.Header.Get("X-Subject"), Role: role}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }
