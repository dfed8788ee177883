// Package token validates the bearer tokens presented to the catalogue API.
// Tokens issued by the identity provider are verified against its JWKS through
// OpenID Connect discovery or a configured JWKS URL; for local development a
// shared HS256 secret can be used instead.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jsamuelsen11/selmag/internal/config"
	"github.com/jsamuelsen11/selmag/internal/models"
)

// ScopePrefix marks authorities derived from the scope claim.
const ScopePrefix = "SCOPE_"

// Claims holds the parsed claims of a validated token.
type Claims struct {
	Subject  string
	Issuer   string
	Audience []string
	// Scopes come from the space separated "scope" claim.
	Scopes []string
	// Groups come from the "groups" claim.
	Groups []string
	Raw    map[string]any
}

// Authorities returns SCOPE_ prefixed scopes followed by ROLE_ prefixed groups.
func (c *Claims) Authorities() []string {
	authorities := make([]string, 0, len(c.Scopes)+len(c.Groups))
	for _, s := range c.Scopes {
		authorities = append(authorities, ScopePrefix+s)
	}
	return append(authorities, models.AuthoritiesFromGroups(c.Groups)...)
}

// Validator validates a bearer token and returns its claims.
type Validator interface {
	Validate(ctx context.Context, tokenString string) (*Claims, error)
}

// OIDCValidator validates tokens using the issuer's signing keys.
type OIDCValidator struct {
	verifier *oidc.IDTokenVerifier
}

// HS256Validator validates tokens signed with a shared HS256 secret.
type HS256Validator struct {
	secret   []byte
	audience string
}

// NewValidator picks the validator cfg describes: JWKS URL, then issuer
// discovery, then the shared secret.
func NewValidator(ctx context.Context, cfg *config.ResourceServerConfig) (Validator, error) {
	switch {
	case cfg.JWKSURL != "":
		return NewOIDCValidatorFromJWKS(ctx, cfg.JWKSURL, cfg.IssuerURL, cfg.Audience), nil
	case cfg.IssuerURL != "":
		return NewOIDCValidator(ctx, cfg.IssuerURL, cfg.Audience)
	default:
		return NewHS256Validator(cfg.JWTSecret, cfg.Audience)
	}
}

// NewOIDCValidator creates a validator from an OIDC issuer URL.
func NewOIDCValidator(ctx context.Context, issuerURL, audience string) (*OIDCValidator, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc provider discovery: %w", err)
	}
	return &OIDCValidator{verifier: provider.Verifier(oidcConfig(audience))}, nil
}

// NewOIDCValidatorFromJWKS creates a validator from a JWKS URL (no OIDC discovery).
// An empty issuerURL skips the issuer check.
func NewOIDCValidatorFromJWKS(ctx context.Context, jwksURL, issuerURL, audience string) *OIDCValidator {
	cfg := oidcConfig(audience)
	cfg.SkipIssuerCheck = issuerURL == ""
	keySet := oidc.NewRemoteKeySet(ctx, jwksURL)
	return &OIDCValidator{verifier: oidc.NewVerifier(issuerURL, keySet, cfg)}
}

func oidcConfig(audience string) *oidc.Config {
	return &oidc.Config{
		ClientID:          audience,
		SkipClientIDCheck: audience == "",
	}
}

// NewHS256Validator creates a validator for local/dev HS256 tokens.
func NewHS256Validator(secret, audience string) (*HS256Validator, error) {
	if secret == "" {
		return nil, errors.New("JWT secret is required")
	}
	return &HS256Validator{secret: []byte(secret), audience: audience}, nil
}

// Validate verifies the token using the issuer's JWKS.
func (v *OIDCValidator) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	verified, err := v.verifier.Verify(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	var raw map[string]any
	if err := verified.Claims(&raw); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}

	claims := claimsFromRaw(raw)
	claims.Subject = verified.Subject
	claims.Issuer = verified.Issuer
	claims.Audience = verified.Audience
	return claims, nil
}

// Validate verifies a token signed with HS256 and extracts claims.
func (v *HS256Validator) Validate(_ context.Context, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	tok, err := jwt.Parse(tokenString, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	raw, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("parse claims: unsupported claim type %T", tok.Claims)
	}

	claims := claimsFromRaw(raw)
	if sub, ok := raw["sub"].(string); ok {
		claims.Subject = sub
	}
	if iss, ok := raw["iss"].(string); ok {
		claims.Issuer = iss
	}
	claims.Audience = stringList(raw["aud"])
	return claims, nil
}

func claimsFromRaw(raw map[string]any) *Claims {
	claims := &Claims{Raw: raw}
	if scope, ok := raw["scope"].(string); ok {
		claims.Scopes = strings.Fields(scope)
	}
	claims.Groups = stringList(raw["groups"])
	return claims
}

// stringList reads a claim that may be a single string or an array of strings.
func stringList(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
