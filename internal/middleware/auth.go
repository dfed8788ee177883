package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jsamuelsen11/selmag/internal/constants"
	"github.com/jsamuelsen11/selmag/internal/models"
	redisStore "github.com/jsamuelsen11/selmag/internal/redis"
	"github.com/jsamuelsen11/selmag/internal/token"
	"github.com/jsamuelsen11/selmag/pkg/logger"
)

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a copy of ctx carrying principal.
func WithPrincipal(ctx context.Context, principal models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext returns the principal stored by BearerAuth or SessionAuth.
func PrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(models.Principal)
	return principal, ok
}

// BearerAuth validates the bearer token of every request and stores the
// caller's principal, with scope and role authorities, in the request context.
func (m *Stack) BearerAuth(validator token.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get(constants.HeaderAuthorization)
			if !strings.HasPrefix(authHeader, constants.BearerPrefix) {
				m.writeUnauthorized(w, r, "Bearer token required", "")
				return
			}

			claims, err := validator.Validate(r.Context(), strings.TrimPrefix(authHeader, constants.BearerPrefix))
			if err != nil {
				logger.WithCorrelationID(r.Context(), m.logger).WithError(err).Warn("Invalid bearer token")
				m.writeUnauthorized(w, r, "Invalid access token", "invalid_token")
				return
			}

			principal := models.Principal{
				Subject:     claims.Subject,
				Authorities: claims.Authorities(),
			}
			if name, ok := claims.Raw["preferred_username"].(string); ok {
				principal.Name = name
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireScopes admits safe methods holding readScope and all other methods
// holding writeScope. It must run after BearerAuth.
func (m *Stack) RequireScopes(readScope, writeScope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			required := writeScope
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				required = readScope
			}

			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				m.writeUnauthorized(w, r, "Bearer token required", "")
				return
			}

			if !principal.HasAuthority(token.ScopePrefix + required) {
				logger.WithCorrelationID(r.Context(), m.logger).WithFields(logrus.Fields{
					"subject":        principal.Subject,
					"required_scope": required,
				}).Warn("Insufficient scope")
				w.Header().Set(constants.HeaderWWWAuthenticate,
					`Bearer error="insufficient_scope", scope="`+required+`"`)
				WriteProblem(w, m.logger, models.NewProblem(http.StatusForbidden, r.URL.Path, "Insufficient scope"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SessionAuth loads the principal of the session named by cookieName and
// requires it to hold requiredRole.
func (m *Stack) SessionAuth(cookieName, requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.WithCorrelationID(r.Context(), m.logger)

			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				WriteProblem(w, m.logger, models.NewProblem(http.StatusUnauthorized, r.URL.Path, "Sign-in required"))
				return
			}

			session, err := m.store.GetSession(r.Context(), cookie.Value)
			switch {
			case errors.Is(err, redisStore.ErrCacheMiss):
				WriteProblem(w, m.logger, models.NewProblem(http.StatusUnauthorized, r.URL.Path, "Session expired"))
				return
			case err != nil:
				log.WithError(err).Error("Failed to load session")
				WriteProblem(w, m.logger, models.NewProblem(
					http.StatusServiceUnavailable, r.URL.Path, "Session store unavailable",
				))
				return
			case session.IsExpired():
				if delErr := m.store.DeleteSession(r.Context(), session.ID); delErr != nil {
					log.WithError(delErr).Warn("Failed to delete expired session")
				}
				WriteProblem(w, m.logger, models.NewProblem(http.StatusUnauthorized, r.URL.Path, "Session expired"))
				return
			}

			if !session.Principal.HasAuthority(requiredRole) {
				log.WithField("subject", session.Principal.Subject).Warn("Principal lacks the manager role")
				WriteProblem(w, m.logger, models.NewProblem(http.StatusForbidden, r.URL.Path, "Access denied"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), session.Principal)))
		})
	}
}

func (m *Stack) writeUnauthorized(w http.ResponseWriter, r *http.Request, detail, errorCode string) {
	challenge := "Bearer"
	if errorCode != "" {
		challenge += ` error="` + errorCode + `"`
	}
	w.Header().Set(constants.HeaderWWWAuthenticate, challenge)
	WriteProblem(w, m.logger, models.NewProblem(http.StatusUnauthorized, r.URL.Path, detail))
}
