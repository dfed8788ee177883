package client

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jsamuelsen11/selmag/internal/models"
)

// Registry holds the client registrations loaded at startup. It is read-only
// after construction and safe for concurrent use.
type Registry struct {
	registrations map[string]models.ClientRegistration
}

// NewRegistry indexes registrations by ID. Duplicate or empty IDs are rejected.
func NewRegistry(registrations ...models.ClientRegistration) (*Registry, error) {
	r := &Registry{registrations: make(map[string]models.ClientRegistration, len(registrations))}

	for _, reg := range registrations {
		if reg.RegistrationID == "" {
			return nil, errors.New("registration ID is required")
		}
		if _, exists := r.registrations[reg.RegistrationID]; exists {
			return nil, fmt.Errorf("duplicate registration %q", reg.RegistrationID)
		}
		reg.Scopes = slices.Clone(reg.Scopes)
		r.registrations[reg.RegistrationID] = reg
	}

	return r, nil
}

// Get returns the registration with the given ID.
func (r *Registry) Get(registrationID string) (models.ClientRegistration, bool) {
	reg, ok := r.registrations[registrationID]
	return reg, ok
}

// IDs returns the registration IDs in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.registrations))
	for id := range r.registrations {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
