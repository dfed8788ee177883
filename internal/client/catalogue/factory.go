package catalogue

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jsamuelsen11/selmag/internal/client"
	"github.com/jsamuelsen11/selmag/internal/models"
)

// Factory builds catalogue clients bound to a principal. Clients share the base
// transport and its connection pool; only the bearer token differs.
type Factory struct {
	registration models.ClientRegistration
	provider     client.CredentialProvider
	base         http.RoundTripper
	metrics      *client.Metrics
	logger       *logrus.Logger
}

// NewFactory creates a factory for registration. base may be nil to use
// http.DefaultTransport.
func NewFactory(
	registration models.ClientRegistration,
	provider client.CredentialProvider,
	base http.RoundTripper,
	metrics *client.Metrics,
	logger *logrus.Logger,
) *Factory {
	return &Factory{
		registration: registration,
		provider:     provider,
		base:         base,
		metrics:      metrics,
		logger:       logger,
	}
}

// For returns a client whose requests carry principal's token for the
// factory's registration.
func (f *Factory) For(principal models.Principal) *Client {
	return f.newClient(&client.AuthorizedTransport{
		Base:           f.base,
		Provider:       f.provider,
		RegistrationID: f.registration.RegistrationID,
		Principal:      principal,
		Logger:         f.logger,
	})
}

// WithToken returns a client that sends token as is. The provider is never asked.
func (f *Factory) WithToken(token string) *Client {
	return f.newClient(&client.StaticTokenTransport{
		Token: token,
		Base: &client.AuthorizedTransport{
			Base:           f.base,
			Provider:       f.provider,
			RegistrationID: f.registration.RegistrationID,
			Logger:         f.logger,
		},
	})
}

// Registration returns the registration the factory's clients use.
func (f *Factory) Registration() models.ClientRegistration {
	return f.registration
}

func (f *Factory) newClient(transport http.RoundTripper) *Client {
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   f.registration.Timeout,
	}
	return NewClient(client.NewBaseClient(f.registration.BaseURI, httpClient, f.logger), f.metrics, f.logger)
}
