// Package models defines the data structures shared by the catalogue service and
// the manager application: products, client registrations, cached credentials,
// principals and sessions, and the typed errors the remote client returns.
package models

// Product is a catalogue entry. ID is zero until the catalogue assigns one.
type Product struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Details string `json:"details"`
}

// NewProductPayload is the body of a create request.
type NewProductPayload struct {
	Title   string `json:"title"   validate:"required,min=3,max=50"`
	Details string `json:"details" validate:"max=1000"`
}

// UpdateProductPayload is the body of an update request.
type UpdateProductPayload struct {
	Title   string `json:"title"   validate:"required,min=3,max=50"`
	Details string `json:"details" validate:"max=1000"`
}

// IsPersisted reports whether the catalogue has assigned an ID.
func (p Product) IsPersisted() bool {
	return p.ID > 0
}
