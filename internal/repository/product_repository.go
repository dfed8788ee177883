// Package repository defines interfaces and implementations for data access layers.
// This file contains the ProductRepository interface for the catalogue.
package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jsamuelsen11/selmag/internal/models"
)

// ErrDatabaseUnavailable is returned when the backing database has no active connection.
var ErrDatabaseUnavailable = errors.New("database connection not available")

// ProductRepository defines the interface for product persistence.
// Implementations may use different storage backends (PostgreSQL, MySQL, memory).
// All methods accept a context for cancellation and timeout support.
type ProductRepository interface {
	// FindAll lists products. A blank filter returns every product ordered by ID;
	// otherwise products whose title contains filter, ignoring case, ordered by title.
	FindAll(ctx context.Context, filter string) ([]models.Product, error)

	// FindByID returns the product or models.ErrNotFound.
	FindByID(ctx context.Context, id int) (models.Product, error)

	// Create stores a new product and returns it with its assigned ID.
	Create(ctx context.Context, title, details string) (models.Product, error)

	// Update replaces title and details, or returns models.ErrNotFound.
	Update(ctx context.Context, id int, title, details string) error

	// Delete removes the product, or returns models.ErrNotFound.
	Delete(ctx context.Context, id int) error
}

// isBlank reports whether filter selects every product.
func isBlank(filter string) bool {
	return strings.TrimSpace(filter) == ""
}

// likePattern builds a substring LIKE pattern with the wildcards in filter escaped.
func likePattern(filter string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(filter)
	return "%" + escaped + "%"
}
