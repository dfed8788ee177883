package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jsamuelsen11/selmag/internal/models"
)

// DBGetter is a function that returns the current database connection.
// This pattern allows the repository to use the current active connection,
// supporting automatic reconnection and graceful degradation.
type DBGetter func() *sql.DB

// MySQLProductRepository implements ProductRepository for MySQL database.
// Title matching relies on the table's case-insensitive collation.
type MySQLProductRepository struct {
	getDB DBGetter
}

// NewMySQLProductRepository creates a new MySQL product repository.
func NewMySQLProductRepository(dbGetter DBGetter) *MySQLProductRepository {
	return &MySQLProductRepository{
		getDB: dbGetter,
	}
}

// FindAll lists products matching filter.
func (r *MySQLProductRepository) FindAll(ctx context.Context, filter string) ([]models.Product, error) {
	db := r.getDB()
	if db == nil {
		return nil, ErrDatabaseUnavailable
	}

	var (
		rows *sql.Rows
		err  error
	)
	if isBlank(filter) {
		rows, err = db.QueryContext(ctx, `
			SELECT id, c_title, c_details
			FROM t_product
			ORDER BY id`)
	} else {
		rows, err = db.QueryContext(ctx, `
			SELECT id, c_title, c_details
			FROM t_product
			WHERE c_title LIKE ?
			ORDER BY c_title, id`, likePattern(filter))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		product, scanErr := scanSQLProduct(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan product: %w", scanErr)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// FindByID retrieves a product by its ID.
func (r *MySQLProductRepository) FindByID(ctx context.Context, id int) (models.Product, error) {
	db := r.getDB()
	if db == nil {
		return models.Product{}, ErrDatabaseUnavailable
	}

	row := db.QueryRowContext(ctx, `
		SELECT id, c_title, c_details
		FROM t_product
		WHERE id = ?`, id)

	product, err := scanSQLProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Product{}, models.ErrNotFound
		}
		return models.Product{}, fmt.Errorf("failed to get product: %w", err)
	}

	return product, nil
}

// Create inserts a product and returns it with the generated ID.
func (r *MySQLProductRepository) Create(ctx context.Context, title, details string) (models.Product, error) {
	db := r.getDB()
	if db == nil {
		return models.Product{}, ErrDatabaseUnavailable
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO t_product (c_title, c_details)
		VALUES (?, ?)`, title, details)
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to get product id: %w", err)
	}

	return models.Product{ID: int(id), Title: title, Details: details}, nil
}

// Update replaces a product's title and details. The connection must report
// matched rather than changed rows (clientFoundRows) so an unchanged update
// is not mistaken for a missing product.
func (r *MySQLProductRepository) Update(ctx context.Context, id int, title, details string) error {
	db := r.getDB()
	if db == nil {
		return ErrDatabaseUnavailable
	}

	result, err := db.ExecContext(ctx, `
		UPDATE t_product
		SET c_title = ?, c_details = ?
		WHERE id = ?`, title, details, id)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	return requireRow(result)
}

// Delete removes a product.
func (r *MySQLProductRepository) Delete(ctx context.Context, id int) error {
	db := r.getDB()
	if db == nil {
		return ErrDatabaseUnavailable
	}

	result, err := db.ExecContext(ctx, `DELETE FROM t_product WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLProduct(row rowScanner) (models.Product, error) {
	var (
		product models.Product
		details sql.NullString
	)
	if err := row.Scan(&product.ID, &product.Title, &details); err != nil {
		return models.Product{}, err
	}
	product.Details = details.String
	return product, nil
}
