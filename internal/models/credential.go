package models

import (
	"time"
)

// Grant types a registration may use.
const (
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeRefreshToken      = "refresh_token"
)

// TokenTypeBearer is the only token type attached to outgoing requests.
const TokenTypeBearer = "Bearer"

// ClientRegistration names a downstream API and how to obtain tokens for it.
// Registrations are loaded at startup and never change afterwards.
type ClientRegistration struct {
	RegistrationID string
	BaseURI        string
	ClientID       string
	ClientSecret   string
	TokenURL       string
	Scopes         []string
	GrantType      string
	Timeout        time.Duration
}

// CachedCredential is an access token held for one registration and principal.
type CachedCredential struct {
	RegistrationID string    `json:"registration_id"`
	PrincipalKey   string    `json:"principal_key"`
	AccessToken    string    `json:"access_token"`
	TokenType      string    `json:"token_type"`
	RefreshToken   string    `json:"refresh_token,omitempty"`
	Expiry         time.Time `json:"expiry"`
}

// UsableAt reports whether the token may still be attached at now, treating
// it as expired skew before its real expiry.
func (c *CachedCredential) UsableAt(now time.Time, skew time.Duration) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	return now.Before(c.Expiry.Add(-skew))
}

// TTL is how long the credential is worth keeping from now.
func (c *CachedCredential) TTL(now time.Time) time.Duration {
	return c.Expiry.Sub(now)
}
