package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jsamuelsen11/selmag/internal/constants"
	"github.com/jsamuelsen11/selmag/internal/manager"
	"github.com/jsamuelsen11/selmag/internal/middleware"
	"github.com/jsamuelsen11/selmag/internal/models"
	"github.com/jsamuelsen11/selmag/pkg/logger"
)

// Manager application paths.
const (
	ManagerBasePath   = "/catalogue/products"
	ManagerListPath   = ManagerBasePath + "/list"
	ManagerCreatePath = ManagerBasePath + "/create"
)

// View names returned in the "view" field of every manager response.
const (
	ViewProductList  = "catalogue/products/list"
	ViewNewProduct   = "catalogue/products/new_product"
	ViewProduct      = "catalogue/products/product"
	ViewEditProduct  = "catalogue/products/edit"
	ViewBadRequest   = "errors/400"
	ViewUnauthorized = "errors/401"
	ViewNotFound     = "errors/404"
	ViewBadGateway   = "errors/502"
)

// ProductListView is the product list page model.
type ProductListView struct {
	View     string           `json:"view"`
	Filter   string           `json:"filter"`
	Products []models.Product `json:"products"`
}

// ProductFormPayload echoes the submitted form back to the form view.
type ProductFormPayload struct {
	Title   string `json:"title"`
	Details string `json:"details"`
}

// ProductFormView is the create and edit form model. Product is set when editing.
type ProductFormView struct {
	View    string              `json:"view"`
	Product *models.Product     `json:"product,omitempty"`
	Payload *ProductFormPayload `json:"payload,omitempty"`
	Errors  []string            `json:"errors,omitempty"`
}

// ProductView is the product page model.
type ProductView struct {
	View    string         `json:"view"`
	Product models.Product `json:"product"`
}

// ErrorView is the model of the error pages.
type ErrorView struct {
	View   string `json:"view"`
	Status int    `json:"status"`
	Error  string `json:"error"`
}

// ManagerHandler serves the manager application's product pages as JSON view models.
type ManagerHandler struct {
	products manager.ProductService
	logger   *logrus.Logger
}

// NewManagerHandler creates the manager presentation handler.
func NewManagerHandler(products manager.ProductService, logger *logrus.Logger) *ManagerHandler {
	return &ManagerHandler{
		products: products,
		logger:   logger,
	}
}

// RegisterRoutes registers the manager pages on router.
func (h *ManagerHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(ManagerListPath, h.ListProducts).Methods(http.MethodGet)
	router.HandleFunc(ManagerCreatePath, h.NewProductForm).Methods(http.MethodGet)
	router.HandleFunc(ManagerCreatePath, h.CreateProduct).Methods(http.MethodPost)

	product := ManagerBasePath + "/{productId:[0-9]+}"
	router.HandleFunc(product, h.GetProduct).Methods(http.MethodGet)
	router.HandleFunc(product+"/edit", h.EditProductForm).Methods(http.MethodGet)
	router.HandleFunc(product+"/edit", h.UpdateProduct).Methods(http.MethodPost)
	router.HandleFunc(product+"/delete", h.DeleteProduct).Methods(http.MethodPost)
}

// ListProducts renders the product list.
func (h *ManagerHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	filter := r.URL.Query().Get("filter")
	products, err := h.products.FindAllProducts(r.Context(), principal, filter)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.render(w, http.StatusOK, ProductListView{View: ViewProductList, Filter: filter, Products: products})
}

// NewProductForm renders the empty create form.
func (h *ManagerHandler) NewProductForm(w http.ResponseWriter, _ *http.Request) {
	h.render(w, http.StatusOK, ProductFormView{View: ViewNewProduct})
}

// CreateProduct submits the create form and redirects to the new product.
func (h *ManagerHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	payload, err := readForm(w, r)
	if err != nil {
		h.render(w, http.StatusBadRequest, ProductFormView{View: ViewNewProduct, Errors: []string{err.Error()}})
		return
	}

	product, err := h.products.CreateProduct(r.Context(), principal, payload.Title, payload.Details)
	var badRequest *models.BadRequestError
	switch {
	case errors.As(err, &badRequest):
		h.render(w, http.StatusBadRequest, ProductFormView{
			View:    ViewNewProduct,
			Payload: &payload,
			Errors:  badRequest.Errors,
		})
	case err != nil:
		h.renderError(w, r, err)
	default:
		http.Redirect(w, r, productPage(product.ID), http.StatusSeeOther)
	}
}

// GetProduct renders one product.
func (h *ManagerHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	_, product, ok := h.loadProduct(w, r)
	if !ok {
		return
	}
	h.render(w, http.StatusOK, ProductView{View: ViewProduct, Product: product})
}

// EditProductForm renders the edit form of one product.
func (h *ManagerHandler) EditProductForm(w http.ResponseWriter, r *http.Request) {
	_, product, ok := h.loadProduct(w, r)
	if !ok {
		return
	}
	h.render(w, http.StatusOK, ProductFormView{View: ViewEditProduct, Product: &product})
}

// UpdateProduct submits the edit form and redirects to the product.
func (h *ManagerHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	principal, product, ok := h.loadProduct(w, r)
	if !ok {
		return
	}

	payload, err := readForm(w, r)
	if err != nil {
		h.render(w, http.StatusBadRequest, ProductFormView{
			View: ViewEditProduct, Product: &product, Errors: []string{err.Error()},
		})
		return
	}

	err = h.products.UpdateProduct(r.Context(), principal, product.ID, payload.Title, payload.Details)
	var badRequest *models.BadRequestError
	switch {
	case errors.As(err, &badRequest):
		h.render(w, http.StatusBadRequest, ProductFormView{
			View:    ViewEditProduct,
			Product: &product,
			Payload: &payload,
			Errors:  badRequest.Errors,
		})
	case err != nil:
		h.renderError(w, r, err)
	default:
		http.Redirect(w, r, productPage(product.ID), http.StatusSeeOther)
	}
}

// DeleteProduct deletes a product and redirects to the list.
func (h *ManagerHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	principal, product, ok := h.loadProduct(w, r)
	if !ok {
		return
	}

	if err := h.products.DeleteProduct(r.Context(), principal, product.ID); err != nil {
		h.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, ManagerListPath, http.StatusSeeOther)
}

// loadProduct resolves the principal and the product named in the path,
// rendering the error view when either is missing.
func (h *ManagerHandler) loadProduct(w http.ResponseWriter, r *http.Request) (models.Principal, models.Product, bool) {
	principal, ok := h.principal(w, r)
	if !ok {
		return models.Principal{}, models.Product{}, false
	}

	id, err := strconv.Atoi(mux.Vars(r)["productId"])
	if err != nil {
		h.renderError(w, r, models.ErrNotFound)
		return models.Principal{}, models.Product{}, false
	}

	product, found, err := h.products.FindProduct(r.Context(), principal, id)
	if err != nil {
		h.renderError(w, r, err)
		return models.Principal{}, models.Product{}, false
	}
	if !found {
		h.renderError(w, r, models.ErrNotFound)
		return models.Principal{}, models.Product{}, false
	}

	return principal, product, true
}

func (h *ManagerHandler) principal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.render(w, http.StatusUnauthorized, ErrorView{
			View: ViewUnauthorized, Status: http.StatusUnauthorized, Error: "Sign-in required",
		})
	}
	return principal, ok
}

// renderError maps the remote client's errors onto the error views.
func (h *ManagerHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.WithCorrelationID(r.Context(), h.logger).WithError(err)

	switch models.Classify(err) {
	case models.KindNotFound:
		h.render(w, http.StatusNotFound, ErrorView{
			View: ViewNotFound, Status: http.StatusNotFound, Error: ProductNotFoundDetail,
		})
	case models.KindAuthorization:
		log.Warn("Catalogue authorization failed")
		h.render(w, http.StatusUnauthorized, ErrorView{
			View: ViewUnauthorized, Status: http.StatusUnauthorized, Error: "Authorization with the catalogue failed",
		})
	case models.KindValidationRejected:
		h.render(w, http.StatusBadRequest, ErrorView{
			View: ViewBadRequest, Status: http.StatusBadRequest, Error: err.Error(),
		})
	default:
		log.Error("Catalogue call failed")
		h.render(w, http.StatusBadGateway, ErrorView{
			View: ViewBadGateway, Status: http.StatusBadGateway, Error: "The catalogue is unavailable",
		})
	}
}

func (h *ManagerHandler) render(w http.ResponseWriter, status int, view any) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(view); err != nil {
		h.logger.WithError(err).Error("Failed to encode view")
	}
}

// readForm reads title and details from a form or JSON body.
func readForm(w http.ResponseWriter, r *http.Request) (ProductFormPayload, error) {
	var payload ProductFormPayload

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get(constants.HeaderContentType))
	if mediaType == constants.ContentTypeJSON {
		if err := json.NewDecoder(io.LimitReader(r.Body, MaxPayloadBytes)).Decode(&payload); err != nil {
			return ProductFormPayload{}, errors.New("request body must be a JSON object")
		}
		return payload, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxPayloadBytes)
	if err := r.ParseForm(); err != nil {
		return ProductFormPayload{}, errors.New("request body must be a form")
	}
	payload.Title = r.PostForm.Get("title")
	payload.Details = r.PostForm.Get("details")
	return payload, nil
}

func productPage(id int) string {
	return fmt.Sprintf("%s/%d", ManagerBasePath, id)
}
