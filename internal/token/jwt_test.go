package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen11/selmag/internal/config"
	"github.com/jsamuelsen11/selmag/internal/token"
)

const (
	jwtSecret = "test-secret-key-for-jwt-testing-purposes-123456789" // pragma: allowlist secret
	issuer    = "http://localhost:8082/realms/selmag"
	audience  = "catalogue-service"
)

func sign(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":    "j.dewar",
		"iss":    issuer,
		"aud":    audience,
		"exp":    time.Now().Add(5 * time.Minute).Unix(),
		"iat":    time.Now().Unix(),
		"scope":  "openid view_catalogue edit_catalogue",
		"groups": []string{"ROLE_MANAGER", "catalogue-users"},
	}
}

func TestNewHS256Validator_RequiresSecret(t *testing.T) {
	_, err := token.NewHS256Validator("", audience)
	require.Error(t, err)
}

func TestHS256Validator_Validate(t *testing.T) {
	validator, err := token.NewHS256Validator(jwtSecret, audience)
	require.NoError(t, err)

	claims, err := validator.Validate(context.Background(), sign(t, jwtSecret, jwt.SigningMethodHS256, validClaims()))
	require.NoError(t, err)

	assert.Equal(t, "j.dewar", claims.Subject)
	assert.Equal(t, issuer, claims.Issuer)
	assert.Equal(t, []string{audience}, claims.Audience)
	assert.Equal(t, []string{"openid", "view_catalogue", "edit_catalogue"}, claims.Scopes)
	assert.Equal(t, []string{"ROLE_MANAGER", "catalogue-users"}, claims.Groups)
	assert.Equal(t,
		[]string{"SCOPE_openid", "SCOPE_view_catalogue", "SCOPE_edit_catalogue", "ROLE_MANAGER"},
		claims.Authorities(),
		"groups without the ROLE_ prefix are not authorities",
	)
}

func TestHS256Validator_Rejects(t *testing.T) {
	validator, err := token.NewHS256Validator(jwtSecret, audience)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		method jwt.SigningMethod
		mutate func(jwt.MapClaims)
	}{
		{
			name:   "wrong_secret",
			secret: "another-secret-key-that-is-long-enough-123456",
			method: jwt.SigningMethodHS256,
		},
		{
			name:   "wrong_algorithm",
			secret: jwtSecret,
			method: jwt.SigningMethodHS512,
		},
		{
			name:   "expired",
			secret: jwtSecret,
			method: jwt.SigningMethodHS256,
			mutate: func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Minute).Unix() },
		},
		{
			name:   "missing_expiry",
			secret: jwtSecret,
			method: jwt.SigningMethodHS256,
			mutate: func(c jwt.MapClaims) { delete(c, "exp") },
		},
		{
			name:   "wrong_audience",
			secret: jwtSecret,
			method: jwt.SigningMethodHS256,
			mutate: func(c jwt.MapClaims) { c["aud"] = "someone-else" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			if tt.mutate != nil {
				tt.mutate(claims)
			}

			_, err := validator.Validate(context.Background(), sign(t, tt.secret, tt.method, claims))
			assert.Error(t, err)
		})
	}
}

func TestHS256Validator_Malformed(t *testing.T) {
	validator, err := token.NewHS256Validator(jwtSecret, "")
	require.NoError(t, err)

	_, err = validator.Validate(context.Background(), "not-a-jwt")
	assert.Error(t, err)
}

func TestHS256Validator_NoAudienceCheck(t *testing.T) {
	validator, err := token.NewHS256Validator(jwtSecret, "")
	require.NoError(t, err)

	claims := validClaims()
	claims["aud"] = []string{"account", "other"}
	claims["scope"] = ""
	delete(claims, "groups")

	got, err := validator.Validate(context.Background(), sign(t, jwtSecret, jwt.SigningMethodHS256, claims))
	require.NoError(t, err)
	assert.Equal(t, []string{"account", "other"}, got.Audience)
	assert.Empty(t, got.Scopes)
	assert.Empty(t, got.Authorities())
}

func TestNewValidator_Selection(t *testing.T) {
	t.Run("secret", func(t *testing.T) {
		v, err := token.NewValidator(context.Background(), &config.ResourceServerConfig{JWTSecret: jwtSecret})
		require.NoError(t, err)
		assert.IsType(t, &token.HS256Validator{}, v)
	})

	t.Run("jwks", func(t *testing.T) {
		v, err := token.NewValidator(context.Background(), &config.ResourceServerConfig{
			JWKSURL:   "http://localhost:8082/realms/selmag/protocol/openid-connect/certs",
			JWTSecret: jwtSecret,
		})
		require.NoError(t, err)
		assert.IsType(t, &token.OIDCValidator{}, v)
	})

	t.Run("nothing_configured", func(t *testing.T) {
		_, err := token.NewValidator(context.Background(), &config.ResourceServerConfig{})
		assert.Error(t, err)
	})
}
