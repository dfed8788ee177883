package repository

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/jsamuelsen11/selmag/internal/models"
)

// MemoryProductRepository keeps products in process memory. It backs the
// catalogue service when no database is configured.
type MemoryProductRepository struct {
	mu       sync.RWMutex
	products map[int]models.Product
	nextID   int
}

// NewMemoryProductRepository creates an empty in-memory repository.
func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		products: make(map[int]models.Product),
		nextID:   1,
	}
}

// NewSeededMemoryProductRepository creates an in-memory repository holding a
// few sample products for local development.
func NewSeededMemoryProductRepository() *MemoryProductRepository {
	r := NewMemoryProductRepository()
	for _, p := range []models.Product{
		{Title: "Product #1", Details: "Details of product #1"},
		{Title: "Product #2", Details: "Details of product #2"},
		{Title: "Product #3", Details: "Details of product #3"},
	} {
		r.insert(p.Title, p.Details)
	}
	return r
}

// FindAll lists products matching filter.
func (r *MemoryProductRepository) FindAll(_ context.Context, filter string) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	products := make([]models.Product, 0, len(r.products))
	needle := strings.ToLower(filter)
	for _, p := range r.products {
		if isBlank(filter) || strings.Contains(strings.ToLower(p.Title), needle) {
			products = append(products, p)
		}
	}

	if isBlank(filter) {
		slices.SortFunc(products, func(a, b models.Product) int { return cmp.Compare(a.ID, b.ID) })
	} else {
		slices.SortFunc(products, func(a, b models.Product) int {
			return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
		})
	}

	return products, nil
}

// FindByID retrieves a product by its ID.
func (r *MemoryProductRepository) FindByID(_ context.Context, id int) (models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return models.Product{}, models.ErrNotFound
	}
	return product, nil
}

// Create stores a product under the next ID.
func (r *MemoryProductRepository) Create(_ context.Context, title, details string) (models.Product, error) {
	return r.insert(title, details), nil
}

// Update replaces a product's title and details.
func (r *MemoryProductRepository) Update(_ context.Context, id int, title, details string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return models.ErrNotFound
	}
	r.products[id] = models.Product{ID: id, Title: title, Details: details}
	return nil
}

// Delete removes a product.
func (r *MemoryProductRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *MemoryProductRepository) insert(title, details string) models.Product {
	r.mu.Lock()
	defer r.mu.Unlock()

	product := models.Product{ID: r.nextID, Title: title, Details: details}
	r.products[product.ID] = product
	r.nextID++
	return product
}
