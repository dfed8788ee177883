// Package catalogue implements the catalogue service's product operations on
// top of a product repository.
package catalogue

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jsamuelsen11/selmag/internal/models"
	"github.com/jsamuelsen11/selmag/internal/repository"
	"github.com/jsamuelsen11/selmag/pkg/logger"
)

// ProductService defines the catalogue's product operations.
type ProductService interface {
	// FindAllProducts lists products; see repository.ProductRepository.FindAll for ordering.
	FindAllProducts(ctx context.Context, filter string) ([]models.Product, error)

	// FindProduct returns the product or models.ErrNotFound.
	FindProduct(ctx context.Context, id int) (models.Product, error)

	// CreateProduct validates payload and stores it. Invalid payloads fail
	// with *models.BadRequestError.
	CreateProduct(ctx context.Context, payload models.NewProductPayload) (models.Product, error)

	// UpdateProduct validates payload and replaces the product. It fails with
	// *models.BadRequestError or models.ErrNotFound.
	UpdateProduct(ctx context.Context, id int, payload models.UpdateProductPayload) error

	// DeleteProduct removes the product or fails with models.ErrNotFound.
	DeleteProduct(ctx context.Context, id int) error
}

// productService implements the ProductService interface.
type productService struct {
	repo      repository.ProductRepository
	validator *PayloadValidator
	logger    *logrus.Logger
}

// NewProductService creates a new product service instance with the provided dependencies.
func NewProductService(repo repository.ProductRepository, logger *logrus.Logger) ProductService {
	return &productService{
		repo:      repo,
		validator: NewPayloadValidator(),
		logger:    logger,
	}
}

func (s *productService) FindAllProducts(ctx context.Context, filter string) ([]models.Product, error) {
	products, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find all products: %w", err)
	}
	return products, nil
}

func (s *productService) FindProduct(ctx context.Context, id int) (models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return models.Product{}, fmt.Errorf("find product %d: %w", id, err)
	}
	return product, nil
}

func (s *productService) CreateProduct(ctx context.Context, payload models.NewProductPayload) (models.Product, error) {
	if err := s.check(payload); err != nil {
		return models.Product{}, err
	}

	product, err := s.repo.Create(ctx, payload.Title, payload.Details)
	if err != nil {
		return models.Product{}, fmt.Errorf("create product: %w", err)
	}

	logger.WithCorrelationID(ctx, s.logger).WithField("product_id", product.ID).Info("Product created")
	return product, nil
}

func (s *productService) UpdateProduct(ctx context.Context, id int, payload models.UpdateProductPayload) error {
	if err := s.check(payload); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, id, payload.Title, payload.Details); err != nil {
		return fmt.Errorf("update product %d: %w", id, err)
	}

	logger.WithCorrelationID(ctx, s.logger).WithField("product_id", id).Info("Product updated")
	return nil
}

func (s *productService) DeleteProduct(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}

	logger.WithCorrelationID(ctx, s.logger).WithField("product_id", id).Info("Product deleted")
	return nil
}

func (s *productService) check(payload any) error {
	messages, err := s.validator.Messages(payload)
	if err != nil {
		return err
	}
	if len(messages) > 0 {
		return models.NewBadRequestError(messages)
	}
	return nil
}
