// Package catalogue provides the typed client for the catalogue API.
package catalogue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jsamuelsen11/selmag/internal/client"
	"github.com/jsamuelsen11/selmag/internal/models"
)

// ProductsPath is the catalogue API's product collection.
const ProductsPath = "/catalogue-api/products"

// Operation names used in errors, logs and metrics.
const (
	OpFindAll = "find all products"
	OpFind    = "find product"
	OpCreate  = "create product"
	OpUpdate  = "update product"
	OpDelete  = "delete product"
)

// ProductsClient is the catalogue API as the manager application sees it.
type ProductsClient interface {
	// FindAllProducts lists products matching filter in server order.
	FindAllProducts(ctx context.Context, filter string) ([]models.Product, error)
	// FindProduct returns the product and true, or false when it does not exist.
	FindProduct(ctx context.Context, id int) (models.Product, bool, error)
	// CreateProduct returns the product with its assigned ID, or *models.BadRequestError.
	CreateProduct(ctx context.Context, title, details string) (models.Product, error)
	// UpdateProduct fails with *models.BadRequestError or models.ErrNotFound.
	UpdateProduct(ctx context.Context, id int, title, details string) error
	// DeleteProduct fails with models.ErrNotFound when the product is already gone.
	DeleteProduct(ctx context.Context, id int) error
}

// Client provides methods for interacting with the catalogue API.
// Authentication is done by the transport of the embedded BaseClient.
type Client struct {
	*client.BaseClient

	metrics *client.Metrics
	logger  *logrus.Logger
}

// NewClient creates a new catalogue client.
//
// Parameters:
//   - baseClient: HTTP client pointed at the catalogue base URI
//   - metrics: optional call metrics, may be nil
//   - logger: Structured logger for catalogue operations
func NewClient(
	baseClient *client.BaseClient,
	metrics *client.Metrics,
	logger *logrus.Logger,
) *Client {
	return &Client{
		BaseClient: baseClient,
		metrics:    metrics,
		logger:     logger,
	}
}

// FindAllProducts lists the products whose title matches filter. The filter is
// always sent, blank included.
func (c *Client) FindAllProducts(ctx context.Context, filter string) (products []models.Product, err error) {
	defer c.observe(OpFindAll, time.Now(), &err)

	query := url.Values{"filter": []string{filter}}
	resp, err := c.Do(ctx, http.MethodGet, ProductsPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, transportError(OpFindAll, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.unexpectedStatus(OpFindAll, resp)
	}

	if decodeErr := c.DecodeJSON(resp, &products); decodeErr != nil {
		return nil, &models.TransportError{Op: OpFindAll, StatusCode: resp.StatusCode, Err: decodeErr}
	}
	if products == nil {
		products = []models.Product{}
	}

	return products, nil
}

// FindProduct fetches one product. A 404 is an empty result, not an error.
func (c *Client) FindProduct(ctx context.Context, id int) (product models.Product, found bool, err error) {
	defer c.observe(OpFind, time.Now(), &err)

	resp, err := c.Do(ctx, http.MethodGet, productPath(id), nil)
	if err != nil {
		return models.Product{}, false, transportError(OpFind, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if decodeErr := c.DecodeJSON(resp, &product); decodeErr != nil {
			return models.Product{}, false, &models.TransportError{Op: OpFind, StatusCode: resp.StatusCode, Err: decodeErr}
		}
		return product, true, nil
	case http.StatusNotFound:
		client.Discard(resp)
		return models.Product{}, false, nil
	default:
		return models.Product{}, false, c.unexpectedStatus(OpFind, resp)
	}
}

// CreateProduct creates a product and returns it with its assigned ID.
func (c *Client) CreateProduct(ctx context.Context, title, details string) (product models.Product, err error) {
	defer c.observe(OpCreate, time.Now(), &err)

	payload := models.NewProductPayload{Title: title, Details: details}
	resp, err := c.Do(ctx, http.MethodPost, ProductsPath, payload)
	if err != nil {
		return models.Product{}, transportError(OpCreate, err)
	}

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		if decodeErr := c.DecodeJSON(resp, &product); decodeErr != nil {
			return models.Product{}, &models.TransportError{Op: OpCreate, StatusCode: resp.StatusCode, Err: decodeErr}
		}
		c.logger.WithField("product_id", product.ID).Info("Product created")
		return product, nil
	case http.StatusBadRequest:
		return models.Product{}, c.badRequest(OpCreate, resp)
	default:
		return models.Product{}, c.unexpectedStatus(OpCreate, resp)
	}
}

// UpdateProduct replaces a product's title and details.
func (c *Client) UpdateProduct(ctx context.Context, id int, title, details string) (err error) {
	defer c.observe(OpUpdate, time.Now(), &err)

	payload := models.UpdateProductPayload{Title: title, Details: details}
	resp, err := c.Do(ctx, http.MethodPatch, productPath(id), payload)
	if err != nil {
		return transportError(OpUpdate, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		client.Discard(resp)
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		return c.badRequest(OpUpdate, resp)
	case resp.StatusCode == http.StatusNotFound:
		client.Discard(resp)
		return fmt.Errorf("%s %d: %w", OpUpdate, id, models.ErrNotFound)
	default:
		return c.unexpectedStatus(OpUpdate, resp)
	}
}

// DeleteProduct removes a product.
func (c *Client) DeleteProduct(ctx context.Context, id int) (err error) {
	defer c.observe(OpDelete, time.Now(), &err)

	resp, err := c.Do(ctx, http.MethodDelete, productPath(id), nil)
	if err != nil {
		return transportError(OpDelete, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		client.Discard(resp)
		return nil
	case resp.StatusCode == http.StatusNotFound:
		client.Discard(resp)
		return fmt.Errorf("%s %d: %w", OpDelete, id, models.ErrNotFound)
	default:
		return c.unexpectedStatus(OpDelete, resp)
	}
}

// badRequest unpacks a 400 problem body into a BadRequestError.
func (c *Client) badRequest(op string, resp *http.Response) error {
	problem, err := c.ParseProblem(resp)
	if err != nil {
		return &models.TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	c.logger.WithFields(logrus.Fields{
		"operation": op,
		"errors":    problem.Errors,
	}).Debug("Catalogue rejected the request")

	return models.NewBadRequestError(problem.Errors)
}

func (c *Client) unexpectedStatus(op string, resp *http.Response) error {
	var cause error
	if problem, err := c.ParseProblem(resp); err == nil && problem.Detail != "" {
		cause = errors.New(problem.Detail)
	}

	c.logger.WithFields(logrus.Fields{
		"operation": op,
		"status":    resp.StatusCode,
	}).Error("Catalogue request failed")

	return &models.TransportError{Op: op, StatusCode: resp.StatusCode, Err: cause}
}

func (c *Client) observe(op string, start time.Time, err *error) {
	c.metrics.ObserveCall(op, models.Classify(*err).String(), time.Since(start))
}

// transportError keeps authorization failures distinguishable and wraps
// everything else that prevented a response.
func transportError(op string, err error) error {
	var authErr *models.AuthorizationError
	if errors.As(err, &authErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &models.TransportError{Op: op, Err: err}
}

func productPath(id int) string {
	return ProductsPath + "/" + strconv.Itoa(id)
}
