package models

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultSessionExpiry is the default session duration.
	DefaultSessionExpiry = 24 * time.Hour

	// RolePrefix marks the groups that become authorities.
	RolePrefix = "ROLE_"
)

// Grant is the authorization a principal holds against the identity provider.
type Grant struct {
	// RefreshToken is exchanged for access tokens on refresh_token registrations.
	RefreshToken string `json:"refresh_token,omitempty"`
	// IssuedAt is when the login flow obtained the grant.
	IssuedAt time.Time `json:"issued_at"`
}

// Principal is the authenticated caller. It is created by the login flow and
// only read here.
type Principal struct {
	// Subject identifies the caller and keys its cached credentials.
	Subject string `json:"subject"`
	// Name is the display name.
	Name string `json:"name,omitempty"`
	// Authorities are the ROLE_ prefixed groups the caller belongs to.
	Authorities []string `json:"authorities"`
	// Grant is the caller's current authorization grant.
	Grant Grant `json:"grant"`
}

// HasAuthority reports whether the principal holds authority.
func (p Principal) HasAuthority(authority string) bool {
	return slices.Contains(p.Authorities, authority)
}

// AuthoritiesFromGroups keeps the groups carrying the role prefix.
func AuthoritiesFromGroups(groups []string) []string {
	authorities := make([]string, 0, len(groups))
	for _, g := range groups {
		if strings.HasPrefix(g, RolePrefix) {
			authorities = append(authorities, g)
		}
	}
	return authorities
}

// Session binds a session cookie to a principal.
type Session struct {
	ID        string    `json:"id"`
	Principal Principal `json:"principal"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSession creates a session for principal with a random ID.
func NewSession(principal Principal, ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = DefaultSessionExpiry
	}
	now := time.Now()
	return &Session{
		ID:        uuid.New().String(),
		Principal: principal,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired reports whether the session is past its expiry.
func (s *Session) IsExpired() bool {
	return !time.Now().Before(s.ExpiresAt)
}
