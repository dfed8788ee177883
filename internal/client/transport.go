package client

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jsamuelsen11/selmag/internal/constants"
	"github.com/jsamuelsen11/selmag/internal/models"
)

// AuthorizedTransport attaches a bearer token for one registration and
// principal to every request that does not already carry an Authorization
// header. A 401 from the remote invalidates the cached token if it is still the
// one that was sent; the response is returned unchanged.
type AuthorizedTransport struct {
	// Base performs the request. nil means http.DefaultTransport.
	Base           http.RoundTripper
	Provider       CredentialProvider
	RegistrationID string
	Principal      models.Principal
	Logger         *logrus.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *AuthorizedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(constants.HeaderAuthorization) != "" {
		return t.base().RoundTrip(req)
	}

	token, err := t.Provider.Authorize(req.Context(), t.RegistrationID, t.Principal)
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}

	authorized := req.Clone(req.Context())
	authorized.Header.Set(constants.HeaderAuthorization, constants.BearerPrefix+token)

	resp, err := t.base().RoundTrip(authorized)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if invErr := t.invalidate(req, token); invErr != nil && t.Logger != nil {
			t.Logger.WithError(invErr).WithField("registration_id", t.RegistrationID).
				Warn("Failed to invalidate rejected credential")
		}
	}

	return resp, nil
}

func (t *AuthorizedTransport) invalidate(req *http.Request, rejected string) error {
	if ti, ok := t.Provider.(TokenInvalidator); ok {
		return ti.InvalidateToken(req.Context(), t.RegistrationID, t.Principal, rejected)
	}
	return t.Provider.Invalidate(req.Context(), t.RegistrationID, t.Principal)
}

func (t *AuthorizedTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// StaticTokenTransport sets a fixed bearer token on requests that have none.
// Placed in front of an AuthorizedTransport it makes every call pre-authenticated.
type StaticTokenTransport struct {
	Base  http.RoundTripper
	Token string
}

// RoundTrip implements http.RoundTripper.
func (t *StaticTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(constants.HeaderAuthorization) != "" || t.Token == "" {
		return t.base().RoundTrip(req)
	}

	authorized := req.Clone(req.Context())
	authorized.Header.Set(constants.HeaderAuthorization, constants.BearerPrefix+t.Token)
	return t.base().RoundTrip(authorized)
}

func (t *StaticTokenTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
