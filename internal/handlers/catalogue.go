// Package handlers contains the HTTP handlers of the catalogue service and the
// manager application together with the shared health endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jsamuelsen11/selmag/internal/catalogue"
	"github.com/jsamuelsen11/selmag/internal/constants"
	"github.com/jsamuelsen11/selmag/internal/middleware"
	"github.com/jsamuelsen11/selmag/internal/models"
	"github.com/jsamuelsen11/selmag/pkg/logger"
)

const (
	// ProductsBasePath is the catalogue API's product collection.
	ProductsBasePath = "/catalogue-api/products"
	// ProductNotFoundDetail is the detail of every 404 problem.
	ProductNotFoundDetail = "Product not found"
	// MaxPayloadBytes bounds product request bodies.
	MaxPayloadBytes = 64 << 10
)

// ProductsHandler serves the catalogue REST API.
type ProductsHandler struct {
	service catalogue.ProductService
	logger  *logrus.Logger
}

// NewProductsHandler creates the catalogue API handler.
func NewProductsHandler(service catalogue.ProductService, logger *logrus.Logger) *ProductsHandler {
	return &ProductsHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the product endpoints on router.
func (h *ProductsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(ProductsBasePath, h.FindProducts).Methods(http.MethodGet)
	router.HandleFunc(ProductsBasePath, h.CreateProduct).Methods(http.MethodPost)
	router.HandleFunc(ProductsBasePath+"/{productId:[0-9]+}", h.FindProduct).Methods(http.MethodGet)
	router.HandleFunc(ProductsBasePath+"/{productId:[0-9]+}", h.UpdateProduct).Methods(http.MethodPatch)
	router.HandleFunc(ProductsBasePath+"/{productId:[0-9]+}", h.DeleteProduct).Methods(http.MethodDelete)
}

// FindProducts handles GET /catalogue-api/products?filter=.
func (h *ProductsHandler) FindProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.FindAllProducts(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, products)
}

// CreateProduct handles POST /catalogue-api/products.
func (h *ProductsHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var payload models.NewProductPayload
	if !h.decode(w, r, &payload) {
		return
	}

	product, err := h.service.CreateProduct(r.Context(), payload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set(constants.HeaderLocation, ProductsBasePath+"/"+strconv.Itoa(product.ID))
	h.writeJSON(w, http.StatusCreated, product)
}

// FindProduct handles GET /catalogue-api/products/{productId}.
func (h *ProductsHandler) FindProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	product, err := h.service.FindProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, product)
}

// UpdateProduct handles PATCH /catalogue-api/products/{productId}.
func (h *ProductsHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	var payload models.UpdateProductPayload
	if !h.decode(w, r, &payload) {
		return
	}

	if err := h.service.UpdateProduct(r.Context(), id, payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteProduct handles DELETE /catalogue-api/products/{productId}.
func (h *ProductsHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// productID parses the path ID. IDs that do not fit an int cannot exist.
func (h *ProductsHandler) productID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["productId"])
	if err != nil {
		middleware.WriteProblem(w, h.logger, models.NewNotFoundProblem(r.URL.Path, ProductNotFoundDetail))
		return 0, false
	}
	return id, true
}

func (h *ProductsHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxPayloadBytes))
	if err := dec.Decode(v); err != nil {
		logger.WithCorrelationID(r.Context(), h.logger).WithError(err).Debug("Malformed product payload")
		middleware.WriteProblem(w, h.logger, models.NewBadRequestProblem(
			r.URL.Path, []string{"request body must be a JSON object"},
		))
		return false
	}
	return true
}

func (h *ProductsHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var badRequest *models.BadRequestError
	switch {
	case errors.As(err, &badRequest):
		middleware.WriteProblem(w, h.logger, models.NewBadRequestProblem(r.URL.Path, badRequest.Errors))
	case errors.Is(err, models.ErrNotFound):
		middleware.WriteProblem(w, h.logger, models.NewNotFoundProblem(r.URL.Path, ProductNotFoundDetail))
	default:
		logger.WithCorrelationID(r.Context(), h.logger).WithError(err).Error("Product operation failed")
		middleware.WriteProblem(w, h.logger, models.NewProblem(
			http.StatusInternalServerError, r.URL.Path, "An unexpected error occurred",
		))
	}
}

func (h *ProductsHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}
