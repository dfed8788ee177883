package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jsamuelsen11/selmag/internal/models"
)

// PoolGetter is a function that returns the current database connection pool.
type PoolGetter func() *pgxpool.Pool

// PostgresProductRepository implements ProductRepository for PostgreSQL database.
type PostgresProductRepository struct {
	getPool PoolGetter
}

// NewPostgresProductRepository creates a new PostgreSQL product repository.
// The poolGetter function allows the repository to always use the current
// active connection pool, supporting automatic reconnection.
func NewPostgresProductRepository(poolGetter PoolGetter) *PostgresProductRepository {
	return &PostgresProductRepository{
		getPool: poolGetter,
	}
}

// FindAll lists products matching filter.
func (r *PostgresProductRepository) FindAll(ctx context.Context, filter string) ([]models.Product, error) {
	pool := r.getPool()
	if pool == nil {
		return nil, ErrDatabaseUnavailable
	}

	var (
		rows pgx.Rows
		err  error
	)
	if isBlank(filter) {
		rows, err = pool.Query(ctx, `
			SELECT id, c_title, c_details
			FROM t_product
			ORDER BY id`)
	} else {
		rows, err = pool.Query(ctx, `
			SELECT id, c_title, c_details
			FROM t_product
			WHERE c_title ILIKE $1
			ORDER BY c_title, id`, likePattern(filter))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}

	return products, nil
}

// FindByID retrieves a product by its ID.
func (r *PostgresProductRepository) FindByID(ctx context.Context, id int) (models.Product, error) {
	pool := r.getPool()
	if pool == nil {
		return models.Product{}, ErrDatabaseUnavailable
	}

	rows, err := pool.Query(ctx, `
		SELECT id, c_title, c_details
		FROM t_product
		WHERE id = $1`, id)
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to query product: %w", err)
	}

	product, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Product{}, models.ErrNotFound
		}
		return models.Product{}, fmt.Errorf("failed to scan product: %w", err)
	}

	return product, nil
}

// Create inserts a product and returns it with the generated ID.
func (r *PostgresProductRepository) Create(ctx context.Context, title, details string) (models.Product, error) {
	pool := r.getPool()
	if pool == nil {
		return models.Product{}, ErrDatabaseUnavailable
	}

	product := models.Product{Title: title, Details: details}
	err := pool.QueryRow(ctx, `
		INSERT INTO t_product (c_title, c_details)
		VALUES ($1, $2)
		RETURNING id`, title, details).Scan(&product.ID)
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

// Update replaces a product's title and details.
func (r *PostgresProductRepository) Update(ctx context.Context, id int, title, details string) error {
	pool := r.getPool()
	if pool == nil {
		return ErrDatabaseUnavailable
	}

	result, err := pool.Exec(ctx, `
		UPDATE t_product
		SET c_title = $1, c_details = $2
		WHERE id = $3`, title, details, id)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// Delete removes a product.
func (r *PostgresProductRepository) Delete(ctx context.Context, id int) error {
	pool := r.getPool()
	if pool == nil {
		return ErrDatabaseUnavailable
	}

	result, err := pool.Exec(ctx, `DELETE FROM t_product WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func scanProduct(row pgx.CollectableRow) (models.Product, error) {
	var (
		product models.Product
		details *string
	)
	if err := row.Scan(&product.ID, &product.Title, &details); err != nil {
		return models.Product{}, err
	}
	if details != nil {
		product.Details = *details
	}
	return product, nil
}
