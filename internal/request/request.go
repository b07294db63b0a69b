// Package request carries per-request identity between middleware and handlers.
package request

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/benvon/practice-queue/internal/models"
	"github.com/google/uuid"
)

type userKey struct{}

// WithUser returns a copy of ctx carrying the authenticated user
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated user, or nil for anonymous requests
func UserFromContext(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey{}).(*models.User)
	return u
}

// UserID returns the authenticated user's id. ok is false when the request is unauthenticated.
func UserID(r *http.Request) (id uuid.UUID, ok bool) {
	u := UserFromContext(r)
	if u == nil || u.ID == uuid.Nil {
		return uuid.Nil, false
	}
	return u.ID, true
}

// ClientIP returns the originating client address: the first valid X-Forwarded-For entry,
// then X-Real-IP, then the host part of RemoteAddr. Ports are never included.
func ClientIP(r *http.Request) string {
	for _, candidate := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := parseIP(candidate); ip != "" {
			return ip
		}
	}
	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := parseIP(r.RemoteAddr); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// parseIP accepts a bare address or host:port and returns the normalized address
func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}
