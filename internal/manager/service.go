// Package manager is the manager application's product service. It calls the
// catalogue API on behalf of an explicitly supplied principal.
package manager

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jsamuelsen11/selmag/internal/client/catalogue"
	"github.com/jsamuelsen11/selmag/internal/models"
	"github.com/jsamuelsen11/selmag/pkg/logger"
)

// ProductService defines the product operations available to presentation handlers.
// Errors are the remote client's typed errors; use models.Classify to branch on them.
type ProductService interface {
	FindAllProducts(ctx context.Context, principal models.Principal, filter string) ([]models.Product, error)
	FindProduct(ctx context.Context, principal models.Principal, id int) (models.Product, bool, error)
	CreateProduct(ctx context.Context, principal models.Principal, title, details string) (models.Product, error)
	UpdateProduct(ctx context.Context, principal models.Principal, id int, title, details string) error
	DeleteProduct(ctx context.Context, principal models.Principal, id int) error
}

// ClientFor returns the catalogue client acting for principal.
type ClientFor func(principal models.Principal) catalogue.ProductsClient

// productService implements the ProductService interface.
type productService struct {
	clientFor ClientFor
	logger    *logrus.Logger
}

// NewProductService creates a product service whose calls go through factory.
func NewProductService(factory *catalogue.Factory, logger *logrus.Logger) ProductService {
	return NewProductServiceWithClients(func(principal models.Principal) catalogue.ProductsClient {
		return factory.For(principal)
	}, logger)
}

// NewProductServiceWithClients creates a product service with a custom client source.
func NewProductServiceWithClients(clientFor ClientFor, logger *logrus.Logger) ProductService {
	return &productService{
		clientFor: clientFor,
		logger:    logger,
	}
}

func (s *productService) FindAllProducts(
	ctx context.Context,
	principal models.Principal,
	filter string,
) ([]models.Product, error) {
	products, err := s.clientFor(principal).FindAllProducts(ctx, filter)
	s.logOutcome(ctx, principal, catalogue.OpFindAll, err)
	return products, err
}

func (s *productService) FindProduct(
	ctx context.Context,
	principal models.Principal,
	id int,
) (models.Product, bool, error) {
	product, found, err := s.clientFor(principal).FindProduct(ctx, id)
	s.logOutcome(ctx, principal, catalogue.OpFind, err)
	return product, found, err
}

func (s *productService) CreateProduct(
	ctx context.Context,
	principal models.Principal,
	title, details string,
) (models.Product, error) {
	product, err := s.clientFor(principal).CreateProduct(ctx, title, details)
	s.logOutcome(ctx, principal, catalogue.OpCreate, err)
	return product, err
}

func (s *productService) UpdateProduct(
	ctx context.Context,
	principal models.Principal,
	id int,
	title, details string,
) error {
	err := s.clientFor(principal).UpdateProduct(ctx, id, title, details)
	s.logOutcome(ctx, principal, catalogue.OpUpdate, err)
	return err
}

func (s *productService) DeleteProduct(ctx context.Context, principal models.Principal, id int) error {
	err := s.clientFor(principal).DeleteProduct(ctx, id)
	s.logOutcome(ctx, principal, catalogue.OpDelete, err)
	return err
}

func (s *productService) logOutcome(ctx context.Context, principal models.Principal, op string, err error) {
	kind := models.Classify(err)
	entry := logger.WithCorrelationID(ctx, s.logger).WithFields(logrus.Fields{
		"operation": op,
		"subject":   principal.Subject,
		"outcome":   kind.String(),
	})

	switch kind {
	case models.KindOK:
		entry.Debug("Catalogue call completed")
	case models.KindValidationRejected, models.KindNotFound:
		entry.Info("Catalogue call rejected")
	default:
		entry.WithError(err).Warn("Catalogue call failed")
	}
}
