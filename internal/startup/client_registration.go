// Package startup provides utilities for service initialization including
// loading the client registrations the credential provider serves.
package startup

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/jsamuelsen11/selmag/internal/client"
	"github.com/jsamuelsen11/selmag/internal/config"
	"github.com/jsamuelsen11/selmag/internal/models"
)

// ClientRegistrations is the result of loading registrations at startup.
type ClientRegistrations struct {
	// Registry holds every registration.
	Registry *client.Registry
	// Catalogue is the registration used for catalogue API calls.
	Catalogue models.ClientRegistration
}

// LoadClientRegistrations builds the registry from the environment and the
// registration files. Registrations without a base URI get the environment's
// catalogue URL.
func LoadClientRegistrations(cfg *config.Config, logger *logrus.Logger) (*ClientRegistrations, error) {
	declared, err := cfg.LoadRegistrations()
	if err != nil {
		return nil, fmt.Errorf("failed to load client registrations: %w", err)
	}

	defaultBaseURI := cfg.GetServiceURLs().CatalogueServiceBaseURL
	registrations := make([]models.ClientRegistration, 0, len(declared))
	for i, reg := range declared {
		registration := toClientRegistration(reg, defaultBaseURI)
		registrations = append(registrations, registration)

		logger.WithFields(logrus.Fields{
			"registration_id": registration.RegistrationID,
			"base_uri":        registration.BaseURI,
			"grant_type":      registration.GrantType,
			"index":           i + 1,
			"total":           len(declared),
		}).Info("Client registration loaded")
	}

	registry, err := client.NewRegistry(registrations...)
	if err != nil {
		return nil, fmt.Errorf("invalid client registrations: %w", err)
	}

	catalogue, ok := registry.Get(cfg.Catalogue.RegistrationID)
	if !ok {
		return nil, fmt.Errorf("catalogue registration %q is not declared", cfg.Catalogue.RegistrationID)
	}

	return &ClientRegistrations{Registry: registry, Catalogue: catalogue}, nil
}

func toClientRegistration(reg config.RegistrationConfig, defaultBaseURI string) models.ClientRegistration {
	baseURI := reg.BaseURI
	if baseURI == "" {
		baseURI = defaultBaseURI
	}
	return models.ClientRegistration{
		RegistrationID: reg.RegistrationID,
		BaseURI:        baseURI,
		ClientID:       reg.ClientID,
		ClientSecret:   reg.ClientSecret,
		TokenURL:       reg.TokenURL,
		Scopes:         slices.Clone(reg.Scopes),
		GrantType:      reg.GrantType,
		Timeout:        reg.Timeout,
	}
}
